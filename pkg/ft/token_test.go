// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package ft

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockwatch.cc/near-stake/pkg/near"
	"blockwatch.cc/near-stake/pkg/store"
)

const (
	ALICE = "alice.near"
	BOB   = "bob.near"
)

func newToken(t *testing.T) *Token {
	db, err := store.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(store.NewStacked(db))
}

func TestMintBurn(t *testing.T) {
	tok := newToken(t)
	require.NoError(t, tok.Mint(ALICE, near.NewTokenAmount(100)))
	require.NoError(t, tok.Mint(BOB, near.NewTokenAmount(50)))
	assert.ErrorIs(t, tok.Mint(BOB, near.ZeroTokens), ErrZeroAmount)

	supply, err := tok.TotalSupply()
	require.NoError(t, err)
	assert.Equal(t, near.NewTokenAmount(150), supply)

	assert.ErrorIs(t, tok.Burn(BOB, near.NewTokenAmount(51)), ErrInsufficientBalance)
	require.NoError(t, tok.Burn(BOB, near.NewTokenAmount(50)))
	bal, err := tok.BalanceOf(BOB)
	require.NoError(t, err)
	assert.True(t, bal.IsZero(), "burned")
	supply, _ = tok.TotalSupply()
	assert.Equal(t, near.NewTokenAmount(100), supply)
}

func TestTransfer(t *testing.T) {
	tok := newToken(t)
	require.NoError(t, tok.Mint(ALICE, near.NewTokenAmount(100)))
	assert.ErrorIs(t, tok.Transfer(ALICE, ALICE, near.NewTokenAmount(1), ""), ErrSelfTransfer)
	assert.ErrorIs(t, tok.Transfer(ALICE, BOB, near.NewTokenAmount(101), ""), ErrInsufficientBalance)
	require.NoError(t, tok.Transfer(ALICE, BOB, near.NewTokenAmount(40), "rent"))

	a, _ := tok.BalanceOf(ALICE)
	b, _ := tok.BalanceOf(BOB)
	assert.Equal(t, near.NewTokenAmount(60), a)
	assert.Equal(t, near.NewTokenAmount(40), b)
}

func TestTransferAndNotify(t *testing.T) {
	tok := newToken(t)
	require.NoError(t, tok.Mint(ALICE, near.NewTokenAmount(100)))
	ctx := &near.CallContext{Contract: "pool.near", Caller: ALICE, PrepaidGas: near.MaxPrepaidGas}

	p, err := tok.TransferAndNotify(ctx, BOB, near.NewTokenAmount(10), "", "deposit")
	require.NoError(t, err)
	require.Len(t, ctx.Promises(), 1)
	assert.Equal(t, near.AccountID(BOB), p.Receiver)
	require.Len(t, p.Actions, 1)
	assert.Equal(t, OnTransferMethod, p.Actions[0].Method)

	var args TransferArgs
	require.NoError(t, json.Unmarshal(p.Actions[0].Args, &args))
	assert.Equal(t, near.AccountID(ALICE), args.SenderID)
	assert.Equal(t, near.NewTokenAmount(10), args.Amount)
	assert.Equal(t, "deposit", args.Msg)
}

func TestMetadata(t *testing.T) {
	tok := newToken(t)
	require.NoError(t, tok.SetMetadata(NewMetadata("pearl.stake-v1.near")))
	m, err := tok.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "PEARL", m.Symbol)
	assert.Equal(t, uint8(24), m.Decimals)
}
