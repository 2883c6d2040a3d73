// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package pool

import (
	"github.com/pkg/errors"

	"blockwatch.cc/near-stake/pkg/near"
)

const (
	METHOD_STAKE_FINALIZE = "ops_stake_finalize"
	METHOD_STOP_FINALIZE  = "ops_stake_stop_finalize"
)

// checkStakeGas fails when the call cannot pay for a stake action and its
// finalize callback.
func checkStakeGas(ctx *near.CallContext, callbackGas near.Gas) error {
	need := STAKE_ACTION_GAS + callbackGas
	if have := ctx.RemainingGas(); have < need {
		return errors.Wrapf(ErrInsufficientGas, "need %d gas, have %d", need, have)
	}
	return nil
}

// issueStakeAction schedules a validator stake action for amount with the
// matching finalize callback. A zero amount unstakes everything.
func (p *Pool) issueStakeAction(ctx *near.CallContext, st *State, amount near.YoctoNear, stop bool) error {
	method, gas := METHOD_STAKE_FINALIZE, st.CallbackGas
	if stop {
		method, gas = METHOD_STOP_FINALIZE, STOP_CALLBACK_GAS
	}
	if err := checkStakeGas(ctx, gas); err != nil {
		return err
	}
	st.ActionNonce++
	promise := near.NewPromise(ctx.Contract).Stake(st.ValidatorKey, amount)
	id, err := promise.Seal(ctx.Height, st.ActionNonce)
	if err != nil {
		return errors.Wrap(err, "seal stake action")
	}
	promise.WithCallback(method, []byte(id.String()), gas)
	ctx.UseGas(STAKE_ACTION_GAS + gas)
	ctx.Schedule(promise)

	st.StakeAction = &StakeAction{
		ReceiptID: id.String(),
		Amount:    amount,
		Epoch:     ctx.Epoch,
		Stop:      stop,
	}
	metricStakeActions.WithLabelValues("issued").Inc()
	log.Infof("pool: issued stake action %s amount=%s stop=%t", id, amount, stop)
	return nil
}

// syncStake re-stakes TotalStaked with the validator while online.
func (p *Pool) syncStake(ctx *near.CallContext, st *State) error {
	if !st.IsOnline() {
		return nil
	}
	return p.issueStakeAction(ctx, st, st.TotalStaked, false)
}

func (p *Pool) startStaking(ctx *near.CallContext, st *State) error {
	if st.IsOnline() {
		log.Debugf("pool: already online")
		return nil
	}
	if st.ValidatorKey == "" {
		return ErrValidatorKeyNotSet
	}
	if err := p.reconcile(ctx, st, near.ZeroYocto); err != nil {
		return err
	}
	st.Status = StatusOnline
	st.OfflineReason = ReasonStopped
	if !st.TotalStaked.IsZero() {
		if err := p.issueStakeAction(ctx, st, st.TotalStaked, false); err != nil {
			return err
		}
	}
	ctx.Log("pool is online")
	log.Infof("pool: online")
	return nil
}

// stopStaking takes the pool offline and unstakes everything from the
// validator. It does nothing when the pool is already offline.
func (p *Pool) stopStaking(ctx *near.CallContext, st *State, reason OfflineReason) error {
	if !st.IsOnline() {
		log.Infof("pool: already %s", st.StatusString())
		return nil
	}
	st.Status = StatusOffline
	st.OfflineReason = reason
	if !ctx.LockedBalance.IsZero() {
		if err := p.issueStakeAction(ctx, st, near.ZeroYocto, true); err != nil {
			return err
		}
	}
	ctx.Log("pool is offline: " + reason.String())
	log.Infof("pool: %s", st.StatusString())
	return nil
}
