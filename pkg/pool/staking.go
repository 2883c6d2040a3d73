// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package pool

import (
	"fmt"

	"github.com/pkg/errors"

	"blockwatch.cc/near-stake/pkg/near"
)

// Stake credits the attached deposit to the caller's storage balance and
// stakes the available storage balance. The part that cannot be converted
// into whole STAKE units stays in the storage balance.
// Called by: user
func (p *Pool) Stake(ctx *near.CallContext) (*AccountBalances, error) {
	st, err := p.loadState()
	if err != nil {
		return nil, err
	}
	if err := p.requireRegistered(ctx.Caller); err != nil {
		return nil, err
	}
	if st.IsOnline() {
		if err := checkStakeGas(ctx, st.CallbackGas); err != nil {
			return nil, err
		}
	}
	if !ctx.Amount.IsZero() {
		if err := p.accounts.IncrNearBalance(ctx.Caller, ctx.Amount); err != nil {
			return nil, err
		}
	}
	if err := p.reconcile(ctx, st, near.ZeroYocto); err != nil {
		return nil, err
	}

	storage, err := p.accounts.StorageBalanceOf(ctx.Caller)
	if err != nil {
		return nil, err
	}
	if err := p.stakeBalance(ctx, st, ctx.Caller, storage.Available); err != nil {
		return nil, err
	}
	metricOps.WithLabelValues("stake").Inc()
	return p.accountBalances(ctx, st, ctx.Caller)
}

// StakeOwnerBalance stakes amount from the owner's available storage
// balance, or all of it when amount is nil.
// Called by: owner
func (p *Pool) StakeOwnerBalance(ctx *near.CallContext, amount *near.YoctoNear) (*AccountBalances, error) {
	if err := requireNoDeposit(ctx); err != nil {
		return nil, err
	}
	if amount != nil && amount.IsZero() {
		return nil, ErrZeroAmount
	}
	if err := p.requireOwner(ctx.Caller); err != nil {
		return nil, err
	}
	st, err := p.loadState()
	if err != nil {
		return nil, err
	}
	if st.IsOnline() {
		if err := checkStakeGas(ctx, st.CallbackGas); err != nil {
			return nil, err
		}
	}
	if err := p.reconcile(ctx, st, near.ZeroYocto); err != nil {
		return nil, err
	}

	storage, err := p.accounts.StorageBalanceOf(ctx.Caller)
	if err != nil {
		return nil, err
	}
	if storage == nil {
		return nil, errors.Wrap(ErrAccountNotRegistered, ctx.Caller.String())
	}
	stake := storage.Available
	if amount != nil {
		if storage.Available.Lt(*amount) {
			return nil, errors.Wrapf(ErrInsufficientFunds, "owner has %s available, needs %s", storage.Available, amount)
		}
		stake = *amount
	}
	if err := p.stakeBalance(ctx, st, ctx.Caller, stake); err != nil {
		return nil, err
	}
	metricOps.WithLabelValues("stake_owner_balance").Inc()
	return p.accountBalances(ctx, st, ctx.Caller)
}

// stakeBalance converts amount from the storage balance of id into STAKE and
// syncs the validator stake. The remainder stays in the storage balance.
func (p *Pool) stakeBalance(ctx *near.CallContext, st *State, id near.AccountID, amount near.YoctoNear) error {
	if amount.IsZero() {
		return ErrZeroAmount
	}
	rate, err := p.exchangeRate(st)
	if err != nil {
		return err
	}
	shares, remainder := rate.NearToSharesWithRemainder(amount)
	if shares.IsZero() {
		return errors.Wrapf(ErrStakeAmountTooLow, "%s", amount)
	}
	value := amount.Sub(remainder)
	fee := feeShares(shares, st.StakingFee)

	if err := p.accounts.DecrNearBalance(id, value); err != nil {
		return err
	}
	// the staked value moved from storage into the managed balance
	st.LastContractManagedBalance = st.LastContractManagedBalance.Add(value)

	if err := p.token.Mint(id, shares.Sub(fee)); err != nil {
		return err
	}
	if !fee.IsZero() {
		owner, err := p.perms.CurrentOwner()
		if err != nil {
			return err
		}
		if err := p.token.Mint(owner, fee); err != nil {
			return err
		}
		ctx.Log(fmt.Sprintf("staking fee: minted %s STAKE to %s", fee, owner))
	}
	st.IncrStaked(value)
	st.AddLiquidity(value)

	if err := p.syncStake(ctx, st); err != nil {
		return err
	}
	if err := p.saveState(st); err != nil {
		return err
	}
	log.Infof("pool: %s staked %s for %s STAKE (fee %s, remainder %s)", id, value, shares, fee, remainder)
	return nil
}

// Unstake burns STAKE worth at least amount, or all of the caller's STAKE
// when amount is nil, and locks the released NEAR for UNSTAKE_LOCK_EPOCHS.
// Called by: user
func (p *Pool) Unstake(ctx *near.CallContext, amount *near.YoctoNear) (*AccountBalances, error) {
	if err := requireNoDeposit(ctx); err != nil {
		return nil, err
	}
	if amount != nil && amount.IsZero() {
		return nil, ErrZeroAmount
	}
	st, err := p.loadState()
	if err != nil {
		return nil, err
	}
	if err := p.requireRegistered(ctx.Caller); err != nil {
		return nil, err
	}
	if st.IsOnline() {
		if err := checkStakeGas(ctx, st.CallbackGas); err != nil {
			return nil, err
		}
	}
	if err := p.reconcile(ctx, st, near.ZeroYocto); err != nil {
		return nil, err
	}

	balance, err := p.token.BalanceOf(ctx.Caller)
	if err != nil {
		return nil, err
	}
	rate, err := p.exchangeRate(st)
	if err != nil {
		return nil, err
	}
	shares := balance
	if amount != nil {
		shares = rate.NearToSharesRoundUp(*amount)
	}
	if shares.IsZero() || balance.Lt(shares) {
		return nil, errors.Wrapf(ErrInsufficientStake, "%s has %s STAKE, needs %s", ctx.Caller, balance, shares)
	}
	value := rate.SharesToNearRoundDown(shares)
	if value.IsZero() {
		return nil, ErrStakeAmountTooLow
	}

	if err := p.token.Burn(ctx.Caller, shares); err != nil {
		return nil, err
	}
	st.DecrStaked(value)
	st.IncrUnstaked(value)

	unstaked, err := p.loadUnstaked(ctx.Caller)
	if err != nil {
		return nil, err
	}
	if unstaked == nil {
		unstaked = &UnstakedBalances{}
	}
	unstaked.Unlock(ctx.Epoch)
	unstaked.Lock(ctx.Epoch+UNSTAKE_LOCK_EPOCHS, value)
	if err := p.saveUnstaked(ctx.Caller, unstaked); err != nil {
		return nil, err
	}

	if err := p.syncStake(ctx, st); err != nil {
		return nil, err
	}
	if err := p.saveState(st); err != nil {
		return nil, err
	}
	metricOps.WithLabelValues("unstake").Inc()
	log.Infof("pool: %s unstaked %s for %s STAKE, unlocks at epoch %d", ctx.Caller, value, shares, ctx.Epoch+UNSTAKE_LOCK_EPOCHS)
	return p.accountBalances(ctx, st, ctx.Caller)
}

// Restake stakes unstaked NEAR again regardless of its lock state. The part
// that cannot be converted into whole STAKE units stays unstaked.
// Called by: user
func (p *Pool) Restake(ctx *near.CallContext, amount *near.YoctoNear) (*AccountBalances, error) {
	if err := requireNoDeposit(ctx); err != nil {
		return nil, err
	}
	if amount != nil && amount.IsZero() {
		return nil, ErrZeroAmount
	}
	st, err := p.loadState()
	if err != nil {
		return nil, err
	}
	if err := p.requireRegistered(ctx.Caller); err != nil {
		return nil, err
	}
	if st.IsOnline() {
		if err := checkStakeGas(ctx, st.CallbackGas); err != nil {
			return nil, err
		}
	}
	if err := p.reconcile(ctx, st, near.ZeroYocto); err != nil {
		return nil, err
	}

	unstaked, err := p.loadUnstaked(ctx.Caller)
	if err != nil {
		return nil, err
	}
	if unstaked == nil {
		return nil, errors.Wrap(ErrInsufficientUnstaked, ctx.Caller.String())
	}
	unstaked.Unlock(ctx.Epoch)
	total := unstaked.Total()
	restake := total
	if amount != nil {
		restake = *amount
	}
	if total.Lt(restake) {
		return nil, errors.Wrapf(ErrInsufficientUnstaked, "%s has %s, needs %s", ctx.Caller, total, restake)
	}
	rate, err := p.exchangeRate(st)
	if err != nil {
		return nil, err
	}
	shares, remainder := rate.NearToSharesWithRemainder(restake)
	if shares.IsZero() {
		return nil, errors.Wrapf(ErrStakeAmountTooLow, "%s", restake)
	}
	value := restake.Sub(remainder)

	unstaked.DebitLatest(value)
	st.DecrUnstaked(value)
	if err := p.saveUnstaked(ctx.Caller, unstaked); err != nil {
		return nil, err
	}
	if err := p.token.Mint(ctx.Caller, shares); err != nil {
		return nil, err
	}
	st.IncrStaked(value)

	if err := p.syncStake(ctx, st); err != nil {
		return nil, err
	}
	if err := p.saveState(st); err != nil {
		return nil, err
	}
	metricOps.WithLabelValues("restake").Inc()
	log.Infof("pool: %s restaked %s for %s STAKE", ctx.Caller, value, shares)
	return p.accountBalances(ctx, st, ctx.Caller)
}

// Withdraw transfers unlocked NEAR to the caller, all of it when amount is
// nil. Locked funds can be withdrawn early up to the pool liquidity.
// Called by: user
func (p *Pool) Withdraw(ctx *near.CallContext, amount *near.YoctoNear) (*AccountBalances, error) {
	if err := requireNoDeposit(ctx); err != nil {
		return nil, err
	}
	if amount != nil && amount.IsZero() {
		return nil, ErrZeroAmount
	}
	st, err := p.loadState()
	if err != nil {
		return nil, err
	}
	if err := p.requireRegistered(ctx.Caller); err != nil {
		return nil, err
	}
	if err := p.reconcile(ctx, st, near.ZeroYocto); err != nil {
		return nil, err
	}

	unstaked, err := p.loadUnstaked(ctx.Caller)
	if err != nil {
		return nil, err
	}
	if unstaked == nil {
		return nil, errors.Wrap(ErrInsufficientUnstaked, ctx.Caller.String())
	}
	unstaked.Unlock(ctx.Epoch)
	available := unstaked.Withdrawable(st.UnstakedLiquidity)
	withdraw := available
	if amount != nil {
		withdraw = *amount
	}
	if withdraw.IsZero() || available.Lt(withdraw) {
		return nil, errors.Wrapf(ErrInsufficientFunds, "%s can withdraw %s, requested %s", ctx.Caller, available, withdraw)
	}

	unstaked.DebitEarliest(withdraw)
	st.DecrUnstaked(withdraw)
	if err := p.saveUnstaked(ctx.Caller, unstaked); err != nil {
		return nil, err
	}
	if _, err := ctx.Transfer(ctx.Caller, withdraw); err != nil {
		return nil, errors.Wrapf(err, "withdraw %s", withdraw)
	}
	// the outgoing transfer is not negative earnings
	st.LastContractManagedBalance = st.LastContractManagedBalance.SaturatingSub(withdraw)

	if err := p.saveState(st); err != nil {
		return nil, err
	}
	metricOps.WithLabelValues("withdraw").Inc()
	log.Infof("pool: %s withdrew %s", ctx.Caller, withdraw)
	return p.accountBalances(ctx, st, ctx.Caller)
}

// Transfer moves STAKE between registered accounts.
// Called by: user
func (p *Pool) Transfer(ctx *near.CallContext, receiver near.AccountID, amount near.TokenAmount, memo string) error {
	st, err := p.prepareTransfer(ctx, receiver)
	if err != nil {
		return err
	}
	if err := p.token.Transfer(ctx.Caller, receiver, amount, memo); err != nil {
		return err
	}
	metricOps.WithLabelValues("transfer").Inc()
	return p.saveState(st)
}

// TransferCall moves STAKE and notifies the receiver.
// Called by: user
func (p *Pool) TransferCall(ctx *near.CallContext, receiver near.AccountID, amount near.TokenAmount, memo, msg string) (*near.Promise, error) {
	st, err := p.prepareTransfer(ctx, receiver)
	if err != nil {
		return nil, err
	}
	promise, err := p.token.TransferAndNotify(ctx, receiver, amount, memo, msg)
	if err != nil {
		return nil, err
	}
	metricOps.WithLabelValues("transfer_call").Inc()
	return promise, p.saveState(st)
}

func (p *Pool) prepareTransfer(ctx *near.CallContext, receiver near.AccountID) (*State, error) {
	if err := requireNoDeposit(ctx); err != nil {
		return nil, err
	}
	st, err := p.loadState()
	if err != nil {
		return nil, err
	}
	if err := p.requireRegistered(ctx.Caller); err != nil {
		return nil, err
	}
	if err := p.requireRegistered(receiver); err != nil {
		return nil, err
	}
	if err := p.reconcile(ctx, st, near.ZeroYocto); err != nil {
		return nil, err
	}
	return st, nil
}
