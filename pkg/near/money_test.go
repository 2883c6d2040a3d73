// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package near

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestYoctoArithmetic(t *testing.T) {
	a := NewYocto(1000)
	b := NewYocto(1)
	assert.Equal(t, NewYocto(1001), a.Add(b), "add")
	assert.Equal(t, NewYocto(999), a.Sub(b), "sub")
	assert.Equal(t, ZeroYocto, b.SaturatingSub(a), "saturating sub")
	assert.Equal(t, b, a.Min(b), "min")
	assert.True(t, b.Lt(a), "lt")
	assert.True(t, a.Gt(b), "gt")
	assert.Equal(t, NewYocto(3000), a.Mul(3), "mul")
	assert.Equal(t, NewYocto(333), a.Div(3), "div")
	assert.Panics(t, func() { b.Sub(a) }, "underflow")
}

func TestYoctoNear(t *testing.T) {
	one := Near(1)
	assert.Equal(t, "1000000000000000000000000", one.String())
	assert.Equal(t, uint64(1), one.Near())
	assert.Equal(t, uint64(2), one.Mul(2).Add(NewYocto(1)).Near())
}

func TestYoctoOverflow(t *testing.T) {
	max := MustParseYocto("340282366920938463463374607431768211455")
	assert.Panics(t, func() { max.Add(NewYocto(1)) }, "u128 overflow")
	_, err := ParseYocto("340282366920938463463374607431768211456")
	assert.Error(t, err, "exceeds u128")
	_, err = ParseYocto("-1")
	assert.Error(t, err, "negative")
	_, err = ParseYocto("abc")
	require.Error(t, err, "not a number")
	assert.Contains(t, err.Error(), `invalid yocto amount "abc"`)
}

func TestYoctoJSON(t *testing.T) {
	type balance struct {
		Total YoctoNear `json:"total"`
	}
	buf, err := json.Marshal(balance{Total: Near(2)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":"2000000000000000000000000"}`, string(buf))

	var b balance
	require.NoError(t, json.Unmarshal([]byte(`{"total":"42"}`), &b))
	assert.Equal(t, NewYocto(42), b.Total)
}

func TestBasisPoints(t *testing.T) {
	amount := NewYocto(10001)
	bps := BasisPoints(50)
	assert.Equal(t, NewYocto(50), bps.OfRoundedDown(amount), "rounded down")
	assert.Equal(t, NewYocto(51), bps.OfRoundedUp(amount), "rounded up")
	assert.Equal(t, ZeroYocto, BasisPoints(0).OfRoundedUp(amount), "zero bps")
	assert.Equal(t, amount, BasisPoints(BasisPointsDenominator).OfRoundedDown(amount), "100%")
}

func TestAccountPrefix(t *testing.T) {
	assert.Equal(t, "pearl", AccountID("pearl.stake-v1.oysterpack.near").Prefix())
	assert.Equal(t, "dev-123", AccountID("dev-123").Prefix())
}

func TestPromiseSeal(t *testing.T) {
	p1 := NewPromise("pool.near").Stake("ed25519:key", Near(10)).WithCallback("ops_stake_finalize", nil, 5*TGas)
	p2 := NewPromise("pool.near").Stake("ed25519:key", Near(10)).WithCallback("ops_stake_finalize", nil, 5*TGas)
	c1, err := p1.Seal(10, 1)
	require.NoError(t, err)
	c2, err := p2.Seal(10, 2)
	require.NoError(t, err)
	assert.NotEqual(t, c1.String(), c2.String(), "nonce separates ids")
	assert.Equal(t, c1, p1.ID())

	c3, err := p2.Seal(10, 1)
	require.NoError(t, err)
	assert.Equal(t, c1.String(), c3.String(), "content addressed")
}

func TestCallContextTransfer(t *testing.T) {
	ctx := &CallContext{Contract: "pool.near", Balance: NewYocto(100), PrepaidGas: 10 * TGas}
	_, err := ctx.Transfer("bob.near", NewYocto(101))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	_, err = ctx.Transfer("bob.near", NewYocto(40))
	require.NoError(t, err)
	assert.Equal(t, NewYocto(60), ctx.Balance)
	assert.Len(t, ctx.Promises(), 1)

	ctx.UseGas(11 * TGas)
	assert.Equal(t, Gas(0), ctx.RemainingGas())
}
