// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package pool

import (
	"blockwatch.cc/near-stake/pkg/account"
	"blockwatch.cc/near-stake/pkg/near"
)

type StakedBalance struct {
	Stake     near.TokenAmount `json:"stake"`
	NearValue near.YoctoNear   `json:"near_value"`
}

type UnstakedView struct {
	Total     near.YoctoNear  `json:"total"`
	Available near.YoctoNear  `json:"available"`
	Locked    []LockedBalance `json:"locked,omitempty"`
}

// AccountBalances is the balance view of one account. Staked and Unstaked
// are omitted when empty.
type AccountBalances struct {
	StorageBalance account.StorageBalance `json:"storage_balance"`
	Staked         *StakedBalance         `json:"staked,omitempty"`
	Unstaked       *UnstakedView          `json:"unstaked,omitempty"`
}

type PoolBalances struct {
	TotalStaked                   near.YoctoNear   `json:"total_staked"`
	TotalStakeSupply              near.TokenAmount `json:"total_stake_supply"`
	TotalUnstaked                 near.YoctoNear   `json:"total_unstaked"`
	UnstakedLiquidity             near.YoctoNear   `json:"unstaked_liquidity"`
	TreasuryBalance               near.YoctoNear   `json:"treasury_balance"`
	CurrentContractManagedBalance near.YoctoNear   `json:"current_contract_managed_total_balance"`
	LastContractManagedBalance    near.YoctoNear   `json:"last_contract_managed_total_balance"`
	Earnings                      near.YoctoNear   `json:"earnings"`
}

type StatusView struct {
	Status string `json:"status"`
	Online bool   `json:"online"`
}

type StateView struct {
	Status string `json:"status"`
	*State
}

// BalanceOf returns nil for unregistered accounts.
// Called by: anyone
func (p *Pool) BalanceOf(ctx *near.CallContext, id near.AccountID) (*AccountBalances, error) {
	st, err := p.loadState()
	if err != nil {
		return nil, err
	}
	ok, err := p.accounts.AccountExists(id)
	if err != nil || !ok {
		return nil, err
	}
	return p.accountBalances(ctx, st, id)
}

func (p *Pool) accountBalances(ctx *near.CallContext, st *State, id near.AccountID) (*AccountBalances, error) {
	storage, err := p.accounts.StorageBalanceOf(id)
	if err != nil {
		return nil, err
	}
	if storage == nil {
		return nil, nil
	}
	b := &AccountBalances{StorageBalance: *storage}

	shares, err := p.token.BalanceOf(id)
	if err != nil {
		return nil, err
	}
	if !shares.IsZero() {
		rate, err := p.exchangeRate(st)
		if err != nil {
			return nil, err
		}
		b.Staked = &StakedBalance{
			Stake:     shares,
			NearValue: rate.SharesToNearRoundDown(shares),
		}
	}

	unstaked, err := p.loadUnstaked(id)
	if err != nil {
		return nil, err
	}
	if unstaked != nil {
		unstaked.Unlock(ctx.Epoch)
		b.Unstaked = &UnstakedView{
			Total:     unstaked.Total(),
			Available: unstaked.Available,
			Locked:    unstaked.Locked,
		}
	}
	return b, nil
}

// Called by: anyone
func (p *Pool) PoolBalances(ctx *near.CallContext) (*PoolBalances, error) {
	st, err := p.loadState()
	if err != nil {
		return nil, err
	}
	supply, err := p.token.TotalSupply()
	if err != nil {
		return nil, err
	}
	managed, err := p.ContractManagedTotalBalance(ctx)
	if err != nil {
		return nil, err
	}
	return &PoolBalances{
		TotalStaked:                   st.TotalStaked,
		TotalStakeSupply:              supply,
		TotalUnstaked:                 st.TotalUnstaked,
		UnstakedLiquidity:             st.UnstakedLiquidity,
		TreasuryBalance:               st.TreasuryBalance,
		CurrentContractManagedBalance: managed,
		LastContractManagedBalance:    st.LastContractManagedBalance,
		Earnings:                      managed.SaturatingSub(st.LastContractManagedBalance),
	}, nil
}

// StakeTokenValue is the NEAR value of one whole STAKE at the last
// reconciled rate.
// Called by: anyone
func (p *Pool) StakeTokenValue() (near.YoctoNear, error) {
	st, err := p.loadState()
	if err != nil {
		return near.ZeroYocto, err
	}
	rate, err := p.exchangeRate(st)
	if err != nil {
		return near.ZeroYocto, err
	}
	return rate.SharesToNearRoundDown(near.TokenAmount(near.Near(1))), nil
}

// Called by: anyone
func (p *Pool) Fees() (Fees, error) {
	st, err := p.loadState()
	if err != nil {
		return Fees{}, err
	}
	return st.Fees(), nil
}

// Called by: anyone
func (p *Pool) Status() (StatusView, error) {
	st, err := p.loadState()
	if err != nil {
		return StatusView{}, err
	}
	return StatusView{Status: st.StatusString(), Online: st.IsOnline()}, nil
}

// Called by: anyone
func (p *Pool) State() (StateView, error) {
	st, err := p.loadState()
	if err != nil {
		return StateView{}, err
	}
	return StateView{Status: st.StatusString(), State: st}, nil
}
