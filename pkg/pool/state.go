// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package pool

import (
	"fmt"

	"github.com/pkg/errors"

	"blockwatch.cc/near-stake/pkg/near"
	"blockwatch.cc/near-stake/pkg/store"
)

const keyState = "pool/state"

type Status uint8

const (
	StatusOffline Status = iota
	StatusOnline
)

type OfflineReason uint8

const (
	ReasonStopped OfflineReason = iota
	ReasonStakeActionFailed
)

func (r OfflineReason) String() string {
	switch r {
	case ReasonStopped:
		return "Stopped"
	case ReasonStakeActionFailed:
		return "StakeActionFailed"
	default:
		return "Unknown"
	}
}

// StakeAction tracks the last validator action issued by the pool.
type StakeAction struct {
	ReceiptID string           `json:"receipt_id"`
	Amount    near.YoctoNear   `json:"amount"`
	Epoch     near.EpochHeight `json:"epoch"`
	Stop      bool             `json:"stop,omitempty"`
	Confirmed bool             `json:"confirmed"`
	Failed    bool             `json:"failed"`
}

func (a *StakeAction) Pending() bool {
	return a != nil && !a.Confirmed && !a.Failed
}

// State is the pool ledger. There is exactly one per deployed pool.
type State struct {
	Status                     Status           `json:"-"`
	OfflineReason              OfflineReason    `json:"-"`
	ValidatorKey               near.PublicKey   `json:"validator_key"`
	StakingFee                 near.BasisPoints `json:"staking_fee"`
	EarningsFee                near.BasisPoints `json:"earnings_fee"`
	TotalStaked                near.YoctoNear   `json:"total_staked"`
	TotalUnstaked              near.YoctoNear   `json:"total_unstaked"`
	UnstakedLiquidity          near.YoctoNear   `json:"unstaked_liquidity"`
	TreasuryBalance            near.YoctoNear   `json:"treasury_balance"`
	LastContractManagedBalance near.YoctoNear   `json:"last_contract_managed_balance"`
	CallbackGas                near.Gas         `json:"callback_gas"`
	StakeAction                *StakeAction     `json:"stake_action,omitempty"`
	ActionNonce                uint64           `json:"-"`
}

func (s *State) IsOnline() bool {
	return s.Status == StatusOnline
}

// StatusString renders the status as "Online" or "Offline(<reason>)".
func (s *State) StatusString() string {
	if s.IsOnline() {
		return "Online"
	}
	return fmt.Sprintf("Offline(%s)", s.OfflineReason)
}

func (s *State) Fees() Fees {
	return Fees{StakingFee: s.StakingFee, EarningsFee: s.EarningsFee}
}

func (s *State) IncrStaked(amount near.YoctoNear) {
	s.TotalStaked = s.TotalStaked.Add(amount)
}

func (s *State) DecrStaked(amount near.YoctoNear) {
	s.TotalStaked = s.TotalStaked.Sub(amount)
}

func (s *State) IncrUnstaked(amount near.YoctoNear) {
	s.TotalUnstaked = s.TotalUnstaked.Add(amount)
}

// DecrUnstaked debits liquidity first and the rest from TotalUnstaked. It
// saturates at zero, callers check balances beforehand.
func (s *State) DecrUnstaked(amount near.YoctoNear) {
	fromLiquidity := amount.Min(s.UnstakedLiquidity)
	s.UnstakedLiquidity = s.UnstakedLiquidity.Sub(fromLiquidity)
	s.TotalUnstaked = s.TotalUnstaked.SaturatingSub(amount.Sub(fromLiquidity))
}

// AddLiquidity moves up to amount of pending unstaked funds into liquidity.
func (s *State) AddLiquidity(amount near.YoctoNear) {
	liquidity := amount.Min(s.TotalUnstaked)
	if liquidity.IsZero() {
		return
	}
	s.TotalUnstaked = s.TotalUnstaked.Sub(liquidity)
	s.UnstakedLiquidity = s.UnstakedLiquidity.Add(liquidity)
}

type stakeActionRecord struct {
	ReceiptID string
	Amount    [4]uint64
	Epoch     uint64
	Flags     uint8
}

const (
	actionStop uint8 = 1 << iota
	actionConfirmed
	actionFailed
)

type stateRecord struct {
	Status                     uint8
	OfflineReason              uint8
	ValidatorKey               string
	StakingFee                 uint16
	EarningsFee                uint16
	TotalStaked                [4]uint64
	TotalUnstaked              [4]uint64
	UnstakedLiquidity          [4]uint64
	TreasuryBalance            [4]uint64
	LastContractManagedBalance [4]uint64
	CallbackGas                uint64
	ActionNonce                uint64
	StakeActions               []stakeActionRecord // zero or one
}

func (s *State) record() stateRecord {
	rec := stateRecord{
		Status:                     uint8(s.Status),
		OfflineReason:              uint8(s.OfflineReason),
		ValidatorKey:               string(s.ValidatorKey),
		StakingFee:                 uint16(s.StakingFee),
		EarningsFee:                uint16(s.EarningsFee),
		TotalStaked:                [4]uint64(s.TotalStaked),
		TotalUnstaked:              [4]uint64(s.TotalUnstaked),
		UnstakedLiquidity:          [4]uint64(s.UnstakedLiquidity),
		TreasuryBalance:            [4]uint64(s.TreasuryBalance),
		LastContractManagedBalance: [4]uint64(s.LastContractManagedBalance),
		CallbackGas:                uint64(s.CallbackGas),
		ActionNonce:                s.ActionNonce,
	}
	if a := s.StakeAction; a != nil {
		var flags uint8
		if a.Stop {
			flags |= actionStop
		}
		if a.Confirmed {
			flags |= actionConfirmed
		}
		if a.Failed {
			flags |= actionFailed
		}
		rec.StakeActions = []stakeActionRecord{{
			ReceiptID: a.ReceiptID,
			Amount:    [4]uint64(a.Amount),
			Epoch:     uint64(a.Epoch),
			Flags:     flags,
		}}
	}
	return rec
}

func (rec stateRecord) state() *State {
	s := &State{
		Status:                     Status(rec.Status),
		OfflineReason:              OfflineReason(rec.OfflineReason),
		ValidatorKey:               near.PublicKey(rec.ValidatorKey),
		StakingFee:                 near.BasisPoints(rec.StakingFee),
		EarningsFee:                near.BasisPoints(rec.EarningsFee),
		TotalStaked:                near.YoctoNear(rec.TotalStaked),
		TotalUnstaked:              near.YoctoNear(rec.TotalUnstaked),
		UnstakedLiquidity:          near.YoctoNear(rec.UnstakedLiquidity),
		TreasuryBalance:            near.YoctoNear(rec.TreasuryBalance),
		LastContractManagedBalance: near.YoctoNear(rec.LastContractManagedBalance),
		CallbackGas:                near.Gas(rec.CallbackGas),
		ActionNonce:                rec.ActionNonce,
	}
	if len(rec.StakeActions) > 0 {
		a := rec.StakeActions[0]
		s.StakeAction = &StakeAction{
			ReceiptID: a.ReceiptID,
			Amount:    near.YoctoNear(a.Amount),
			Epoch:     near.EpochHeight(a.Epoch),
			Stop:      a.Flags&actionStop > 0,
			Confirmed: a.Flags&actionConfirmed > 0,
			Failed:    a.Flags&actionFailed > 0,
		}
	}
	return s
}

func (p *Pool) loadState() (*State, error) {
	var rec stateRecord
	ok, err := store.Load(p.db, []byte(keyState), &rec)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotDeployed
	}
	return rec.state(), nil
}

func (p *Pool) saveState(s *State) error {
	if err := store.Save(p.db, []byte(keyState), s.record()); err != nil {
		return errors.Wrap(err, "save pool state")
	}
	updateMetrics(s)
	return nil
}

// ContractManagedTotalBalance is everything the contract owns, liquid and
// staked, minus the storage balances that belong to accounts.
func (p *Pool) ContractManagedTotalBalance(ctx *near.CallContext) (near.YoctoNear, error) {
	storage, err := p.accounts.TotalNearBalance()
	if err != nil {
		return near.ZeroYocto, err
	}
	return ctx.Balance.Add(ctx.LockedBalance).SaturatingSub(storage), nil
}
