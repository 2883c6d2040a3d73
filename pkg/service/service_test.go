// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockwatch.cc/near-stake/pkg/near"
	"blockwatch.cc/near-stake/pkg/store"
)

func TestDeployAndReopen(t *testing.T) {
	backend, err := store.NewMem()
	require.NoError(t, err)
	defer backend.Close()

	cfg := DefaultConfig()
	cfg.Pool.StakingFee = 100
	svc, err := New(backend, cfg)
	require.NoError(t, err)
	require.NoError(t, svc.Deploy())
	require.NoError(t, svc.Deploy(), "second deploy is a no-op")

	owner, err := svc.Accounts.CurrentOwner()
	require.NoError(t, err)
	assert.Equal(t, cfg.Owner, owner)
	md, err := svc.Token.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "POOL", md.Symbol)

	require.NoError(t, svc.Chain.Fund("alice.near", near.Near(5)))
	bal, err := svc.Register("alice.near", near.Near(2))
	require.NoError(t, err)
	assert.Equal(t, near.Near(2).Sub(cfg.StorageMin), bal.Available)

	_, err = svc.Chain.Call("alice.near", near.ZeroYocto, 0, func(ctx *near.CallContext) error {
		_, err := svc.Pool.Stake(ctx)
		return err
	})
	require.NoError(t, err)

	// a new service over the same store resumes the deployed pool
	svc2, err := New(backend, cfg)
	require.NoError(t, err)
	assert.Equal(t, svc.Chain.Info(), svc2.Chain.Info())
	require.NoError(t, svc2.Deploy())
	fees, err := svc2.Pool.Fees()
	require.NoError(t, err)
	assert.Equal(t, near.BasisPoints(100), fees.StakingFee)
	st, err := svc2.Pool.State()
	require.NoError(t, err)
	assert.Equal(t, near.Near(2).Sub(cfg.StorageMin), st.TotalStaked)
}
