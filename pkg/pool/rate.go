// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package pool

import (
	"github.com/holiman/uint256"

	"blockwatch.cc/near-stake/pkg/near"
)

// ExchangeRate converts between NEAR and STAKE at TotalStaked / TotalSupply.
// An empty supply or an empty staked balance means 1:1. Products are computed
// in 256 bits so two u128 values never overflow before the division.
type ExchangeRate struct {
	Staked near.YoctoNear
	Supply near.TokenAmount
}

func NewExchangeRate(staked near.YoctoNear, supply near.TokenAmount) ExchangeRate {
	return ExchangeRate{Staked: staked, Supply: supply}
}

func (r ExchangeRate) identity() bool {
	return r.Supply.IsZero() || r.Staked.IsZero()
}

func mulDiv(x, y, d *uint256.Int, roundUp bool) *uint256.Int {
	z := new(uint256.Int).Mul(x, y)
	if roundUp {
		z.Add(z, new(uint256.Int).SubUint64(d, 1))
	}
	return z.Div(z, d)
}

// NearToSharesRoundDown returns how much STAKE can be minted for amount.
func (r ExchangeRate) NearToSharesRoundDown(amount near.YoctoNear) near.TokenAmount {
	if r.identity() {
		return near.TokenAmount(amount)
	}
	return near.TokensFromInt(mulDiv(amount.Int(), r.Supply.Int(), r.Staked.Int(), false))
}

// NearToSharesRoundUp returns how much STAKE must be burned to release amount.
func (r ExchangeRate) NearToSharesRoundUp(amount near.YoctoNear) near.TokenAmount {
	if r.identity() {
		return near.TokenAmount(amount)
	}
	return near.TokensFromInt(mulDiv(amount.Int(), r.Supply.Int(), r.Staked.Int(), true))
}

// SharesToNearRoundDown values shares for reporting and payouts.
func (r ExchangeRate) SharesToNearRoundDown(shares near.TokenAmount) near.YoctoNear {
	if r.identity() {
		return near.YoctoNear(shares)
	}
	return near.YoctoFromInt(mulDiv(shares.Int(), r.Staked.Int(), r.Supply.Int(), false))
}

// SharesToNearRoundUp values shares for debiting a staked balance.
func (r ExchangeRate) SharesToNearRoundUp(shares near.TokenAmount) near.YoctoNear {
	if r.identity() {
		return near.YoctoNear(shares)
	}
	return near.YoctoFromInt(mulDiv(shares.Int(), r.Staked.Int(), r.Supply.Int(), true))
}

// NearToSharesWithRemainder converts amount into STAKE and returns the part of
// amount the minted STAKE is not worth. SharesToNearRoundDown(shares) plus the
// remainder always equals amount.
func (r ExchangeRate) NearToSharesWithRemainder(amount near.YoctoNear) (near.TokenAmount, near.YoctoNear) {
	shares := r.NearToSharesRoundDown(amount)
	return shares, amount.Sub(r.SharesToNearRoundDown(shares))
}

// feeShares returns shares * fee rounded down.
func feeShares(shares near.TokenAmount, fee near.BasisPoints) near.TokenAmount {
	z := new(uint256.Int).Mul(shares.Int(), uint256.NewInt(uint64(fee)))
	return near.TokenAmount(*z.Div(z, uint256.NewInt(near.BasisPointsDenominator)))
}
