// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"blockwatch.cc/near-stake/pkg/near"
)

func TestExchangeRateIdentity(t *testing.T) {
	r := NewExchangeRate(near.ZeroYocto, near.ZeroTokens)
	assert.Equal(t, near.NewTokenAmount(42), r.NearToSharesRoundDown(near.NewYocto(42)), "empty supply is 1:1")
	assert.Equal(t, near.NewYocto(42), r.SharesToNearRoundUp(near.NewTokenAmount(42)))

	shares, rem := r.NearToSharesWithRemainder(near.Near(1))
	assert.Equal(t, near.TokenAmount(near.Near(1)), shares)
	assert.True(t, rem.IsZero())
}

func TestExchangeRateRounding(t *testing.T) {
	// 3 NEAR backs 2 STAKE units
	r := NewExchangeRate(near.NewYocto(3), near.NewTokenAmount(2))
	assert.Equal(t, near.NewTokenAmount(0), r.NearToSharesRoundDown(near.NewYocto(1)), "1*2/3 down")
	assert.Equal(t, near.NewTokenAmount(1), r.NearToSharesRoundUp(near.NewYocto(1)), "1*2/3 up")
	assert.Equal(t, near.NewYocto(1), r.SharesToNearRoundDown(near.NewTokenAmount(1)), "1*3/2 down")
	assert.Equal(t, near.NewYocto(2), r.SharesToNearRoundUp(near.NewTokenAmount(1)), "1*3/2 up")
	assert.Equal(t, near.NewYocto(3), r.SharesToNearRoundUp(near.NewTokenAmount(2)), "exact")
}

func TestNearToSharesWithRemainder(t *testing.T) {
	big := near.MustParseYocto("123456789012345678901234567890123")
	rates := []ExchangeRate{
		NewExchangeRate(near.NewYocto(3), near.NewTokenAmount(2)),
		NewExchangeRate(near.Near(1_000_001), near.TokenAmount(near.Near(999_999))),
		NewExchangeRate(big, near.NewTokenAmount(7)),
		NewExchangeRate(near.Near(7), near.TokenAmount(near.Near(5000))),
	}
	amounts := []near.YoctoNear{
		near.NewYocto(1),
		near.NewYocto(999),
		near.Near(1),
		near.MustParseYocto("340282366920938463463374607431768211"), // ~u128 max / 1000
	}
	for i, r := range rates {
		for _, a := range amounts {
			shares, rem := r.NearToSharesWithRemainder(a)
			assert.Equal(t, a, r.SharesToNearRoundDown(shares).Add(rem), "rate %d amount %s", i, a)
		}
	}
}

func TestNearToSharesOverflow(t *testing.T) {
	// 7 yocto backing a huge supply values one NEAR above u128
	r := NewExchangeRate(near.NewYocto(7), near.TokenAmount(near.MustParseYocto("123456789012345678901234567890123")))
	assert.NotPanics(t, func() { r.NearToSharesRoundDown(near.NewYocto(999)) })
	assert.Panics(t, func() { r.NearToSharesRoundDown(near.Near(1)) })
	assert.Panics(t, func() { r.NearToSharesRoundUp(near.Near(1)) })
}

func TestUnstakeNeverUndercollects(t *testing.T) {
	r := NewExchangeRate(near.MustParseYocto("1000000000000000000000007"), near.TokenAmount(near.Near(1)))
	for _, a := range []near.YoctoNear{near.NewYocto(1), near.NewYocto(1000), near.Near(1).Div(3)} {
		shares := r.NearToSharesRoundUp(a)
		assert.False(t, r.SharesToNearRoundDown(shares).Lt(a), "burning %s STAKE releases at least %s", shares, a)
	}
}

func TestFeeShares(t *testing.T) {
	assert.Equal(t, near.NewTokenAmount(1), feeShares(near.NewTokenAmount(199), 100), "1% rounded down")
	assert.True(t, feeShares(near.NewTokenAmount(99), 100).IsZero())
	assert.True(t, feeShares(near.NewTokenAmount(1000), 0).IsZero())
}
