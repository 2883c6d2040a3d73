// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"blockwatch.cc/near-stake/pkg/near"
)

func TestUnstakedLock(t *testing.T) {
	var u UnstakedBalances
	u.Lock(8, near.NewYocto(30))
	u.Lock(5, near.NewYocto(10))
	u.Lock(8, near.NewYocto(5))
	u.Lock(6, near.NewYocto(20))

	assert.Equal(t, []LockedBalance{
		{Epoch: 5, Amount: near.NewYocto(10)},
		{Epoch: 6, Amount: near.NewYocto(20)},
		{Epoch: 8, Amount: near.NewYocto(35)},
	}, u.Locked, "sorted and merged")
	assert.Equal(t, near.NewYocto(65), u.Total())

	u.Unlock(4)
	assert.True(t, u.Available.IsZero(), "nothing unlocked yet")
	u.Unlock(6)
	assert.Equal(t, near.NewYocto(30), u.Available, "unlocks at the unlock epoch")
	assert.Len(t, u.Locked, 1)
	u.Unlock(100)
	assert.Equal(t, near.NewYocto(65), u.Available)
	assert.Nil(t, u.Locked)
}

func TestUnstakedDebit(t *testing.T) {
	u := UnstakedBalances{Available: near.NewYocto(5)}
	u.Lock(5, near.NewYocto(10))
	u.Lock(6, near.NewYocto(20))

	assert.Equal(t, near.NewYocto(12), u.Withdrawable(near.NewYocto(7)), "liquidity covers part of the locked funds")
	assert.Equal(t, near.NewYocto(35), u.Withdrawable(near.Near(1)), "capped at locked total")

	u.DebitEarliest(near.NewYocto(8))
	assert.True(t, u.Available.IsZero())
	assert.Equal(t, near.NewYocto(7), u.Locked[0].Amount, "earliest entry debited")

	u.DebitLatest(near.NewYocto(25))
	assert.Equal(t, []LockedBalance{{Epoch: 5, Amount: near.NewYocto(2)}}, u.Locked, "latest entry removed first")

	u.DebitLatest(near.NewYocto(2))
	assert.True(t, u.IsEmpty())
}

func TestLedgerLiquidity(t *testing.T) {
	st := &State{TotalUnstaked: near.NewYocto(100)}
	st.AddLiquidity(near.NewYocto(30))
	assert.Equal(t, near.NewYocto(70), st.TotalUnstaked)
	assert.Equal(t, near.NewYocto(30), st.UnstakedLiquidity)

	st.AddLiquidity(near.NewYocto(500))
	assert.True(t, st.TotalUnstaked.IsZero(), "liquidity is carved out of unstaked funds")
	assert.Equal(t, near.NewYocto(100), st.UnstakedLiquidity)

	st = &State{TotalUnstaked: near.NewYocto(50), UnstakedLiquidity: near.NewYocto(20)}
	st.DecrUnstaked(near.NewYocto(30))
	assert.True(t, st.UnstakedLiquidity.IsZero(), "liquidity debited first")
	assert.Equal(t, near.NewYocto(40), st.TotalUnstaked)
	st.DecrUnstaked(near.NewYocto(100))
	assert.True(t, st.TotalUnstaked.IsZero(), "saturates")
}
