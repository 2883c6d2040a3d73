// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package account

import (
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

var storageMin = near.NewYocto(1000)

func newRepo(t *testing.T) *Repository {
	db, err := store.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(store.NewStacked(db), storageMin)
}

func TestRegister(t *testing.T) {
	r := newRepo(t)
	assert.ErrorIs(t, r.Register(ALICE, near.NewYocto(999)), ErrInsufficientDeposit, "below storage min")
	require.NoError(t, r.Register(ALICE, near.NewYocto(1500)))
	assert.ErrorIs(t, r.Register(ALICE, near.NewYocto(1500)), ErrAlreadyRegistered, "duplicate")

	ok, err := r.AccountExists(ALICE)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.ErrorIs(t, r.RegisteredAccount(BOB), ErrNotRegistered)

	bal, err := r.StorageBalanceOf(ALICE)
	require.NoError(t, err)
	assert.Equal(t, near.NewYocto(1500), bal.Total, "total")
	assert.Equal(t, near.NewYocto(500), bal.Available, "available")

	bal, err = r.StorageBalanceOf(BOB)
	require.NoError(t, err)
	assert.Nil(t, bal, "unregistered")
}

func TestNearBalance(t *testing.T) {
	r := newRepo(t)
	require.NoError(t, r.Register(ALICE, storageMin))
	require.NoError(t, r.Register(BOB, storageMin))
	require.NoError(t, r.IncrNearBalance(ALICE, near.NewYocto(300)))

	total, err := r.TotalNearBalance()
	require.NoError(t, err)
	assert.Equal(t, near.NewYocto(2300), total, "sum of storage balances")

	assert.ErrorIs(t, r.DecrNearBalance(ALICE, near.NewYocto(301)), ErrInsufficientBalance, "locked part is not spendable")
	require.NoError(t, r.DecrNearBalance(ALICE, near.NewYocto(300)))
	total, err = r.TotalNearBalance()
	require.NoError(t, err)
	assert.Equal(t, near.NewYocto(2000), total)
	assert.ErrorIs(t, r.IncrNearBalance("carol.near", near.NewYocto(1)), ErrNotRegistered)
}

func TestPermissions(t *testing.T) {
	r := newRepo(t)
	require.NoError(t, r.Register(ALICE, storageMin))
	require.NoError(t, r.Register(BOB, storageMin))
	require.NoError(t, r.SetOwner(ALICE))

	owner, err := r.CurrentOwner()
	require.NoError(t, err)
	assert.Equal(t, near.AccountID(ALICE), owner)

	ok, err := r.HasPermission(ALICE, PermOperator)
	require.NoError(t, err)
	assert.True(t, ok, "owner is operator")

	ok, err = r.HasPermission(BOB, PermTreasurer)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.GrantPermission(BOB, PermTreasurer))
	ok, _ = r.HasPermission(BOB, PermTreasurer)
	assert.True(t, ok, "granted")

	require.NoError(t, r.RevokePermission(BOB, PermTreasurer))
	ok, _ = r.HasPermission(BOB, PermTreasurer)
	assert.False(t, ok, "revoked")
}

func TestStorageDeposit(t *testing.T) {
	r := newRepo(t)
	ctx := &near.CallContext{Contract: "pool.near", Caller: ALICE, Amount: near.NewYocto(1200), Balance: near.NewYocto(1200)}
	bal, err := r.StorageDeposit(ctx, ALICE)
	require.NoError(t, err)
	assert.Equal(t, near.NewYocto(200), bal.Available, "registered")

	ctx.Amount = near.NewYocto(100)
	bal, err = r.StorageDeposit(ctx, ALICE)
	require.NoError(t, err)
	assert.Equal(t, near.NewYocto(300), bal.Available, "topped up")

	zero := near.ZeroYocto
	_, err = r.StorageWithdraw(ctx, &zero)
	assert.ErrorIs(t, err, ErrZeroAmount, "explicit zero is not all")

	bal, err = r.StorageWithdraw(ctx, nil)
	require.NoError(t, err)
	assert.True(t, bal.Available.IsZero(), "withdrawn")
	require.Len(t, ctx.Promises(), 1)
	assert.Equal(t, near.NewYocto(300), ctx.Promises()[0].Actions[0].Amount)
	assert.Equal(t, near.NewYocto(900), ctx.Balance, "debited from contract")
}
