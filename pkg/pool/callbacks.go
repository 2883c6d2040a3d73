// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package pool

import (
	"fmt"

	"github.com/pkg/errors"

	"blockwatch.cc/near-stake/pkg/near"
)

// OnCallback dispatches promise callbacks. Args carry the receipt id of the
// stake action the callback belongs to.
// Called by: contract
func (p *Pool) OnCallback(ctx *near.CallContext, method string, args []byte, result near.PromiseResult) error {
	if !ctx.IsPrivate() {
		return errors.Wrap(ErrNotPrivate, method)
	}
	switch method {
	case METHOD_STAKE_FINALIZE:
		return p.stakeFinalize(ctx, string(args), result)
	case METHOD_STOP_FINALIZE:
		return p.stopFinalize(ctx, string(args), result)
	default:
		return errors.Errorf("unknown callback %q", method)
	}
}

func markAction(st *State, receiptID string, result near.PromiseResult) {
	a := st.StakeAction
	if a == nil || a.ReceiptID != receiptID {
		return
	}
	a.Confirmed = result.Success
	a.Failed = result.Failed()
}

// stakeFinalize confirms a stake action. A failure while online takes the
// whole pool offline and unstakes everything.
func (p *Pool) stakeFinalize(ctx *near.CallContext, receiptID string, result near.PromiseResult) error {
	st, err := p.loadState()
	if err != nil {
		return err
	}
	markAction(st, receiptID, result)
	if result.Success {
		metricStakeActions.WithLabelValues("confirmed").Inc()
		log.Debugf("pool: stake action %s confirmed", receiptID)
		return p.saveState(st)
	}

	metricStakeActions.WithLabelValues("failed").Inc()
	ctx.Log(fmt.Sprintf("ERR [STAKE_ACTION_FAILED] %s: %s", receiptID, result.Error))
	log.Errorf("pool: stake action %s failed: %s", receiptID, result.Error)
	if st.IsOnline() {
		if err := p.stopStaking(ctx, st, ReasonStakeActionFailed); err != nil {
			return err
		}
	}
	return p.saveState(st)
}

// stopFinalize confirms the unstake-everything action. Failures are only
// logged, the pool is already offline.
func (p *Pool) stopFinalize(ctx *near.CallContext, receiptID string, result near.PromiseResult) error {
	st, err := p.loadState()
	if err != nil {
		return err
	}
	markAction(st, receiptID, result)
	if result.Success {
		metricStakeActions.WithLabelValues("confirmed").Inc()
		log.Debugf("pool: stop action %s confirmed", receiptID)
	} else {
		metricStakeActions.WithLabelValues("failed").Inc()
		ctx.Log(fmt.Sprintf("ERR [STAKE_ACTION_FAILED] stop %s: %s", receiptID, result.Error))
		log.Errorf("pool: stop action %s failed: %s", receiptID, result.Error)
	}
	return p.saveState(st)
}
