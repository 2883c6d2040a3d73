// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package pool

import (
	"fmt"

	"github.com/pkg/errors"

	"blockwatch.cc/near-stake/pkg/account"
	"blockwatch.cc/near-stake/pkg/near"
)

// The treasury is the contract account itself. Its STAKE earns no yield, the
// dividend burn in reconcile hands staking gains back to the pool.

// TreasuryDeposit stakes the attached deposit into the treasury. The whole
// deposit is staked but the treasury only receives whole STAKE units. The
// remainder the minted STAKE is not worth is left in TotalStaked, where it
// raises the STAKE price for all holders like a distribution.
// Called by: anyone
func (p *Pool) TreasuryDeposit(ctx *near.CallContext) error {
	st, err := p.loadState()
	if err != nil {
		return err
	}
	amount := ctx.Amount
	if amount.IsZero() {
		return ErrZeroAmount
	}
	if st.IsOnline() {
		if err := checkStakeGas(ctx, st.CallbackGas); err != nil {
			return err
		}
	}
	if err := p.reconcile(ctx, st, amount); err != nil {
		return err
	}
	rate, err := p.exchangeRate(st)
	if err != nil {
		return err
	}
	shares, remainder := rate.NearToSharesWithRemainder(amount)
	if shares.IsZero() {
		return errors.Wrapf(ErrStakeAmountTooLow, "%s", amount)
	}
	if err := p.token.Mint(ctx.Contract, shares); err != nil {
		return err
	}
	if !remainder.IsZero() {
		ctx.Log(fmt.Sprintf("treasury deposit: %s distributed to holders", remainder))
	}
	st.IncrStaked(amount)
	st.AddLiquidity(amount)
	st.LastContractManagedBalance = st.LastContractManagedBalance.Add(amount)
	if err := p.recordTreasuryBalance(ctx, st); err != nil {
		return err
	}

	if err := p.syncStake(ctx, st); err != nil {
		return err
	}
	if err := p.saveState(st); err != nil {
		return err
	}
	metricOps.WithLabelValues("treasury_deposit").Inc()
	log.Infof("pool: treasury deposit %s for %s STAKE (remainder %s)", amount, shares, remainder)
	return nil
}

// TreasuryDistribution adds the attached deposit to the pool without minting,
// which raises the STAKE price for all holders. Without a deposit it only
// reconciles and re-stakes when the validator holds less than TotalStaked.
// Called by: anyone
func (p *Pool) TreasuryDistribution(ctx *near.CallContext) error {
	st, err := p.loadState()
	if err != nil {
		return err
	}
	if st.IsOnline() {
		if err := checkStakeGas(ctx, st.CallbackGas); err != nil {
			return err
		}
	}
	amount := ctx.Amount
	if err := p.reconcile(ctx, st, amount); err != nil {
		return err
	}
	if amount.IsZero() {
		if ctx.LockedBalance.Lt(st.TotalStaked) {
			if err := p.syncStake(ctx, st); err != nil {
				return err
			}
		}
	} else {
		st.IncrStaked(amount)
		st.AddLiquidity(amount)
		st.LastContractManagedBalance = st.LastContractManagedBalance.Add(amount)
		if err := p.syncStake(ctx, st); err != nil {
			return err
		}
	}
	if err := p.saveState(st); err != nil {
		return err
	}
	metricOps.WithLabelValues("treasury_distribution").Inc()
	log.Infof("pool: treasury distribution %s", amount)
	return nil
}

// TreasuryTransferToOwner moves treasury STAKE worth amount to the owner,
// all of it when amount is nil.
// Called by: owner, treasurer
func (p *Pool) TreasuryTransferToOwner(ctx *near.CallContext, amount *near.YoctoNear) error {
	if err := requireNoDeposit(ctx); err != nil {
		return err
	}
	if err := p.requirePermission(ctx.Caller, account.PermTreasurer); err != nil {
		return err
	}
	st, err := p.loadState()
	if err != nil {
		return err
	}
	if err := p.reconcile(ctx, st, near.ZeroYocto); err != nil {
		return err
	}
	balance, err := p.token.BalanceOf(ctx.Contract)
	if err != nil {
		return err
	}
	rate, err := p.exchangeRate(st)
	if err != nil {
		return err
	}
	shares := balance
	if amount != nil {
		if amount.IsZero() {
			return ErrZeroAmount
		}
		if st.TreasuryBalance.Lt(*amount) {
			return errors.Wrapf(ErrInsufficientTreasury, "treasury holds %s, requested %s", st.TreasuryBalance, amount)
		}
		shares = rate.NearToSharesRoundUp(*amount)
		if balance.Lt(shares) {
			shares = balance
		}
	}
	if shares.IsZero() {
		return errors.Wrap(ErrInsufficientTreasury, "treasury is empty")
	}
	owner, err := p.perms.CurrentOwner()
	if err != nil {
		return err
	}
	if err := p.token.Transfer(ctx.Contract, owner, shares, "treasury"); err != nil {
		return err
	}
	st.TreasuryBalance = rate.SharesToNearRoundDown(balance.Sub(shares))
	if err := p.saveState(st); err != nil {
		return err
	}
	metricOps.WithLabelValues("treasury_transfer").Inc()
	log.Infof("pool: treasury transferred %s STAKE to %s", shares, owner)
	return nil
}

// Called by: owner
func (p *Pool) GrantTreasurer(ctx *near.CallContext, id near.AccountID) error {
	if err := p.requireOwner(ctx.Caller); err != nil {
		return err
	}
	if err := p.requireRegistered(id); err != nil {
		return err
	}
	log.Infof("pool: granted treasurer to %s", id)
	return p.perms.GrantPermission(id, account.PermTreasurer)
}

// Called by: owner
func (p *Pool) RevokeTreasurer(ctx *near.CallContext, id near.AccountID) error {
	if err := p.requireOwner(ctx.Caller); err != nil {
		return err
	}
	log.Infof("pool: revoked treasurer from %s", id)
	return p.perms.RevokePermission(id, account.PermTreasurer)
}

func (p *Pool) recordTreasuryBalance(ctx *near.CallContext, st *State) error {
	balance, err := p.token.BalanceOf(ctx.Contract)
	if err != nil {
		return err
	}
	rate, err := p.exchangeRate(st)
	if err != nil {
		return err
	}
	st.TreasuryBalance = rate.SharesToNearRoundDown(balance)
	return nil
}
