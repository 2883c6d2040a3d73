// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package chain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blockwatch.cc/near-stake/pkg/near"
	"blockwatch.cc/near-stake/pkg/store"
)

const (
	CONTRACT = "pool.near"
	ALICE    = "alice.near"
)

type callback struct {
	Method string
	Args   string
	Result near.PromiseResult
}

type recorder struct {
	calls []callback
	err   error
}

func (r *recorder) OnCallback(ctx *near.CallContext, method string, args []byte, result near.PromiseResult) error {
	r.calls = append(r.calls, callback{Method: method, Args: string(args), Result: result})
	return r.err
}

func testConfig() Config {
	return Config{ContractID: CONTRACT, InitialBalance: near.Near(10), UnlockEpochs: 3}
}

func newRuntime(t *testing.T, contract Contract) (*Runtime, *store.Stacked) {
	backend, err := store.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	db := store.NewStacked(backend)
	rt, err := New(db, testConfig(), contract)
	require.NoError(t, err)
	return rt, db
}

func TestCallRevertsOnError(t *testing.T) {
	rt, db := newRuntime(t, nil)
	require.NoError(t, rt.Fund(ALICE, near.Near(5)))

	boom := errors.New("boom")
	out, err := rt.Call(ALICE, near.Near(1), 0, func(ctx *near.CallContext) error {
		require.NoError(t, db.Put([]byte("k"), []byte("v")))
		ctx.Log("written")
		return boom
	})
	assert.ErrorIs(t, err, boom)
	require.NotNil(t, out)
	assert.False(t, out.Success)
	assert.Equal(t, []string{"written"}, out.Logs)

	ok, err := db.Has([]byte("k"))
	require.NoError(t, err)
	assert.False(t, ok, "write reverted")
	assert.Equal(t, near.Near(5), rt.WalletBalance(ALICE), "deposit refunded")
	assert.Equal(t, near.Near(10), rt.Info().Balance)
	assert.Equal(t, int64(1), rt.Info().Height, "failed calls still produce a block")

	_, err = rt.Call(ALICE, near.Near(6), 0, func(*near.CallContext) error { return nil })
	assert.ErrorIs(t, err, ErrInsufficientWallet)
}

func TestCallPanicIsFailure(t *testing.T) {
	rt, db := newRuntime(t, nil)
	_, err := rt.Call(ALICE, near.ZeroYocto, 0, func(ctx *near.CallContext) error {
		require.NoError(t, db.Put([]byte("k"), []byte("v")))
		near.NewYocto(1).Sub(near.NewYocto(2))
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	ok, _ := db.Has([]byte("k"))
	assert.False(t, ok)
}

func TestCallCommitsAndTransfers(t *testing.T) {
	rt, db := newRuntime(t, nil)
	require.NoError(t, rt.Fund(ALICE, near.Near(5)))

	out, err := rt.Call(ALICE, near.Near(2), 0, func(ctx *near.CallContext) error {
		assert.Equal(t, near.Near(12), ctx.Balance, "deposit is credited before execution")
		if err := db.Put([]byte("k"), []byte("v")); err != nil {
			return err
		}
		_, err := ctx.Transfer(ALICE, near.Near(1))
		return err
	})
	require.NoError(t, err)
	assert.True(t, out.Success)
	require.Len(t, out.Receipts, 1)
	assert.Equal(t, 1, rt.Pending())
	assert.Equal(t, near.Near(11), rt.Info().Balance)
	assert.Equal(t, near.Near(3), rt.WalletBalance(ALICE))

	outs, err := rt.Drain()
	require.NoError(t, err)
	require.Len(t, outs, 1)
	assert.Equal(t, out.Receipts[0], outs[0].ReceiptID)
	assert.Equal(t, near.Near(4), rt.WalletBalance(ALICE))
	assert.Equal(t, 0, rt.Pending())

	ok, err := db.Backend().Has([]byte("k"))
	require.NoError(t, err)
	assert.True(t, ok, "committed to the backend")
}

func TestStakeReceiptCallback(t *testing.T) {
	rec := &recorder{}
	rt, _ := newRuntime(t, rec)

	stake := func(amount near.YoctoNear) {
		_, err := rt.Call(CONTRACT, near.ZeroYocto, 0, func(ctx *near.CallContext) error {
			p := near.NewPromise(ctx.Contract).Stake(KEY, amount)
			p.WithCallback("on_stake", []byte("args"), 10*near.TGas)
			ctx.Schedule(p)
			return nil
		})
		require.NoError(t, err)
	}

	stake(near.Near(4))
	out, err := rt.Step()
	require.NoError(t, err)
	assert.True(t, out.Success)
	require.NotNil(t, out.Callback)
	assert.True(t, out.Callback.Success)
	require.Len(t, rec.calls, 1)
	assert.Equal(t, callback{Method: "on_stake", Args: "args", Result: near.PromiseResult{ReceiptID: out.ReceiptID, Success: true}}, rec.calls[0])

	info := rt.Info()
	assert.Equal(t, near.Near(4), info.Staked)
	assert.Equal(t, near.Near(6), info.Balance)

	rt.FailNextStake(1)
	stake(near.Near(5))
	out, err = rt.Step()
	require.NoError(t, err)
	assert.False(t, out.Success)
	require.Len(t, rec.calls, 2)
	assert.True(t, rec.calls[1].Result.Failed())
	assert.Equal(t, near.Near(4), rt.Info().Staked, "failed receipt changes nothing")

	rec.err = errors.New("callback failed")
	stake(near.Near(2))
	out, err = rt.Step()
	require.NoError(t, err)
	assert.True(t, out.Success, "receipt outcome is independent of its callback")
	assert.False(t, out.Callback.Success)
	assert.Equal(t, near.Near(2), rt.Info().Staked)
	assert.Equal(t, near.Near(4), rt.Info().LockedBalance)
}

func TestEpochRewardsAndUnlock(t *testing.T) {
	rt, _ := newRuntime(t, &recorder{})
	rt.cfg.RewardBps = 100
	_, err := rt.Call(CONTRACT, near.ZeroYocto, 0, func(ctx *near.CallContext) error {
		ctx.Schedule(near.NewPromise(ctx.Contract).Stake(KEY, near.Near(5)))
		return nil
	})
	require.NoError(t, err)
	_, err = rt.Drain()
	require.NoError(t, err)

	require.NoError(t, rt.AdvanceEpoch())
	info := rt.Info()
	assert.Equal(t, near.Near(5).Add(near.Near(5).Div(100)), info.Staked, "1% reward")
	assert.Equal(t, near.EpochHeight(1), info.Epoch)

	_, err = rt.Call(CONTRACT, near.ZeroYocto, 0, func(ctx *near.CallContext) error {
		ctx.Schedule(near.NewPromise(ctx.Contract).Stake(KEY, near.ZeroYocto))
		return nil
	})
	require.NoError(t, err)
	_, err = rt.Drain()
	require.NoError(t, err)
	assert.Equal(t, near.Near(5), rt.Info().Balance)

	rt.cfg.RewardBps = 0
	for i := 0; i < 2; i++ {
		require.NoError(t, rt.AdvanceEpoch())
	}
	assert.Equal(t, near.Near(5), rt.Info().Balance, "still unstaking")
	require.NoError(t, rt.AdvanceEpoch())
	info = rt.Info()
	assert.Equal(t, near.Near(10).Add(near.Near(5).Div(100)), info.Balance, "released after the unlock delay")
	assert.True(t, info.LockedBalance.IsZero())
}

func TestRuntimeReload(t *testing.T) {
	backend, err := store.NewMem()
	require.NoError(t, err)
	defer backend.Close()

	rt, err := New(store.NewStacked(backend), testConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, rt.Fund(ALICE, near.Near(3)))
	_, err = rt.Call(ALICE, near.Near(1), 0, func(ctx *near.CallContext) error {
		_, err := ctx.Transfer(ALICE, near.NewYocto(7))
		return err
	})
	require.NoError(t, err)
	require.NoError(t, rt.AdvanceEpoch())

	rt2, err := New(store.NewStacked(backend), testConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, rt.Info(), rt2.Info())
	assert.Equal(t, near.Near(2), rt2.WalletBalance(ALICE))

	outs, err := rt2.Drain()
	require.NoError(t, err)
	require.Len(t, outs, 1, "queued receipts survive a restart")
	assert.Equal(t, near.Near(2).Add(near.NewYocto(7)), rt2.WalletBalance(ALICE))
}
