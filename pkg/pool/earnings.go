// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package pool

import (
	"fmt"

	"blockwatch.cc/near-stake/pkg/near"
)

// reconcile detects earnings as the growth of the contract managed balance
// since the last call and distributes them. unaccounted is attached value
// the current call has not booked yet, it is never treated as earnings.
func (p *Pool) reconcile(ctx *near.CallContext, st *State, unaccounted near.YoctoNear) error {
	supply, err := p.token.TotalSupply()
	if err != nil {
		return err
	}
	if supply.IsZero() {
		return nil
	}

	managed, err := p.ContractManagedTotalBalance(ctx)
	if err != nil {
		return err
	}
	managed = managed.SaturatingSub(unaccounted)

	if managed.Lt(st.LastContractManagedBalance) {
		log.Warnf("pool: managed balance decreased from %s to %s, no earnings", st.LastContractManagedBalance, managed)
	}
	earnings := managed.SaturatingSub(st.LastContractManagedBalance)
	if !earnings.IsZero() {
		if err := p.distributeEarnings(ctx, st, earnings); err != nil {
			return err
		}
	}

	if err := p.payTreasuryDividend(ctx, st); err != nil {
		return err
	}
	st.LastContractManagedBalance = managed
	return nil
}

func (p *Pool) distributeEarnings(ctx *near.CallContext, st *State, earnings near.YoctoNear) error {
	ownerEarnings := st.EarningsFee.OfRoundedDown(earnings)
	st.IncrStaked(earnings.Sub(ownerEarnings))
	metricEarnings.Add(toNear(earnings))

	if ownerEarnings.IsZero() {
		log.Debugf("pool: distributed earnings %s", earnings)
		return nil
	}

	// owner STAKE is minted at the rate that already includes the pool share
	rate, err := p.exchangeRate(st)
	if err != nil {
		return err
	}
	shares := rate.NearToSharesRoundDown(ownerEarnings)
	if !shares.IsZero() {
		owner, err := p.perms.CurrentOwner()
		if err != nil {
			return err
		}
		if err := p.token.Mint(owner, shares); err != nil {
			return err
		}
		ctx.Log(fmt.Sprintf("earnings fee: minted %s STAKE to %s", shares, owner))
	}
	st.IncrStaked(ownerEarnings)
	log.Debugf("pool: distributed earnings %s owner=%s shares=%s", earnings, ownerEarnings, shares)
	return nil
}

// payTreasuryDividend burns the STAKE the treasury gained from staking
// rewards since the last call, which returns that yield to all holders.
func (p *Pool) payTreasuryDividend(ctx *near.CallContext, st *State) error {
	treasury := ctx.Contract
	shares, err := p.token.BalanceOf(treasury)
	if err != nil {
		return err
	}
	rate, err := p.exchangeRate(st)
	if err != nil {
		return err
	}
	value := rate.SharesToNearRoundDown(shares)
	if st.TreasuryBalance.IsZero() {
		st.TreasuryBalance = value
		return nil
	}

	gain := value.SaturatingSub(st.TreasuryBalance)
	burn := rate.NearToSharesRoundDown(gain)
	if burn.IsZero() {
		st.TreasuryBalance = value
		return nil
	}
	if err := p.token.Burn(treasury, burn); err != nil {
		return err
	}
	rate, err = p.exchangeRate(st)
	if err != nil {
		return err
	}
	st.TreasuryBalance = rate.SharesToNearRoundDown(shares.Sub(burn))
	log.Debugf("pool: treasury dividend burned %s STAKE worth %s", burn, gain)
	return nil
}
