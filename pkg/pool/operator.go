// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package pool

import (
	"github.com/pkg/errors"

	"blockwatch.cc/near-stake/pkg/account"
	"blockwatch.cc/near-stake/pkg/near"
)

type Fees struct {
	StakingFee  near.BasisPoints `json:"staking_fee"`
	EarningsFee near.BasisPoints `json:"earnings_fee"`
}

// Validate checks fee updates. Each fee is capped and they must not both
// be zero.
func (f Fees) Validate() error {
	if f.StakingFee > MAX_FEE_BPS {
		return errors.Wrapf(ErrFeeTooHigh, "staking fee %s", f.StakingFee)
	}
	if f.EarningsFee > MAX_FEE_BPS {
		return errors.Wrapf(ErrFeeTooHigh, "earnings fee %s", f.EarningsFee)
	}
	if f.StakingFee == 0 && f.EarningsFee == 0 {
		return ErrZeroFees
	}
	return nil
}

type CommandKind string

const (
	CmdStartStaking          CommandKind = "StartStaking"
	CmdStopStaking           CommandKind = "StopStaking"
	CmdUpdatePublicKey       CommandKind = "UpdatePublicKey"
	CmdUpdateFees            CommandKind = "UpdateFees"
	CmdSetStakeCallbackGas   CommandKind = "SetStakeCallbackGas"
	CmdClearStakeCallbackGas CommandKind = "ClearStakeCallbackGas"
)

// Command is an operator command. Only the fields used by Kind are read.
type Command struct {
	Kind      CommandKind    `json:"command"`
	PublicKey near.PublicKey `json:"public_key,omitempty"`
	Fees      *Fees          `json:"fees,omitempty"`
	Gas       near.Gas       `json:"gas,omitempty"`
}

// OpsCommand executes an operator command.
// Called by: operator, owner
func (p *Pool) OpsCommand(ctx *near.CallContext, cmd Command) error {
	if err := requireNoDeposit(ctx); err != nil {
		return err
	}
	if err := p.requirePermission(ctx.Caller, account.PermOperator); err != nil {
		return err
	}
	st, err := p.loadState()
	if err != nil {
		return err
	}

	switch cmd.Kind {
	case CmdStartStaking:
		err = p.startStaking(ctx, st)
	case CmdStopStaking:
		if st.IsOnline() {
			err = p.reconcile(ctx, st, near.ZeroYocto)
		}
		if err == nil {
			err = p.stopStaking(ctx, st, ReasonStopped)
		}
	case CmdUpdatePublicKey:
		err = updatePublicKey(st, cmd.PublicKey)
	case CmdUpdateFees:
		err = p.updateFees(ctx, st, cmd.Fees)
	case CmdSetStakeCallbackGas:
		if cmd.Gas < MIN_CALLBACK_GAS || cmd.Gas > MAX_CALLBACK_GAS {
			return errors.Wrapf(ErrInvalidCallbackGas, "%d", cmd.Gas)
		}
		st.CallbackGas = cmd.Gas
	case CmdClearStakeCallbackGas:
		st.CallbackGas = DEFAULT_CALLBACK_GAS
	default:
		return errors.Wrapf(ErrInvalidCommand, "%q", cmd.Kind)
	}
	if err != nil {
		return err
	}
	if err := p.saveState(st); err != nil {
		return err
	}
	metricOps.WithLabelValues("ops_" + string(cmd.Kind)).Inc()
	log.Infof("pool: %s executed %s", ctx.Caller, cmd.Kind)
	return nil
}

func updatePublicKey(st *State, key near.PublicKey) error {
	if st.IsOnline() {
		return ErrPoolOnline
	}
	if key == "" {
		return ErrValidatorKeyNotSet
	}
	st.ValidatorKey = key
	return nil
}

// updateFees settles earnings at the old fee before the new one applies.
func (p *Pool) updateFees(ctx *near.CallContext, st *State, fees *Fees) error {
	if fees == nil {
		return errors.Wrap(ErrInvalidCommand, "missing fees")
	}
	if err := fees.Validate(); err != nil {
		return err
	}
	if err := p.reconcile(ctx, st, near.ZeroYocto); err != nil {
		return err
	}
	st.StakingFee = fees.StakingFee
	st.EarningsFee = fees.EarningsFee
	return nil
}
