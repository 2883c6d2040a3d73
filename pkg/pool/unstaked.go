// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package pool

import (
	"sort"

	"blockwatch.cc/near-stake/pkg/near"
	"blockwatch.cc/near-stake/pkg/store"
)

const nsUnstaked = "pool/unstaked"

// LockedBalance is an unstaked amount that becomes available at Epoch.
type LockedBalance struct {
	Epoch  near.EpochHeight `json:"unlock_epoch"`
	Amount near.YoctoNear   `json:"amount"`
}

// UnstakedBalances holds an account's unstaked NEAR. Locked entries are kept
// sorted by unlock epoch and move into Available lazily on access.
type UnstakedBalances struct {
	Available near.YoctoNear  `json:"available"`
	Locked    []LockedBalance `json:"locked,omitempty"`
}

func (u *UnstakedBalances) LockedTotal() near.YoctoNear {
	var total near.YoctoNear
	for _, l := range u.Locked {
		total = total.Add(l.Amount)
	}
	return total
}

func (u *UnstakedBalances) Total() near.YoctoNear {
	return u.Available.Add(u.LockedTotal())
}

func (u *UnstakedBalances) IsEmpty() bool {
	return u.Available.IsZero() && len(u.Locked) == 0
}

// Lock adds amount to the entry unlocking at epoch.
func (u *UnstakedBalances) Lock(epoch near.EpochHeight, amount near.YoctoNear) {
	i := sort.Search(len(u.Locked), func(i int) bool { return u.Locked[i].Epoch >= epoch })
	if i < len(u.Locked) && u.Locked[i].Epoch == epoch {
		u.Locked[i].Amount = u.Locked[i].Amount.Add(amount)
		return
	}
	u.Locked = append(u.Locked, LockedBalance{})
	copy(u.Locked[i+1:], u.Locked[i:])
	u.Locked[i] = LockedBalance{Epoch: epoch, Amount: amount}
}

// Unlock moves all entries with an unlock epoch at or before epoch into
// Available.
func (u *UnstakedBalances) Unlock(epoch near.EpochHeight) {
	n := 0
	for _, l := range u.Locked {
		if l.Epoch > epoch {
			break
		}
		u.Available = u.Available.Add(l.Amount)
		n++
	}
	u.Locked = u.Locked[n:]
	if len(u.Locked) == 0 {
		u.Locked = nil
	}
}

// Withdrawable is the available balance plus locked funds that can be paid
// out of pool liquidity.
func (u *UnstakedBalances) Withdrawable(liquidity near.YoctoNear) near.YoctoNear {
	return u.Available.Add(u.LockedTotal().Min(liquidity))
}

// DebitEarliest takes amount from Available and then from the entries that
// unlock first. Callers check amount <= Total().
func (u *UnstakedBalances) DebitEarliest(amount near.YoctoNear) {
	take := amount.Min(u.Available)
	u.Available = u.Available.Sub(take)
	amount = amount.Sub(take)
	for len(u.Locked) > 0 && !amount.IsZero() {
		take = amount.Min(u.Locked[0].Amount)
		u.Locked[0].Amount = u.Locked[0].Amount.Sub(take)
		amount = amount.Sub(take)
		if u.Locked[0].Amount.IsZero() {
			u.Locked = u.Locked[1:]
		}
	}
	if len(u.Locked) == 0 {
		u.Locked = nil
	}
}

// DebitLatest takes amount from the entries that unlock last and then from
// Available. Callers check amount <= Total().
func (u *UnstakedBalances) DebitLatest(amount near.YoctoNear) {
	for n := len(u.Locked); n > 0 && !amount.IsZero(); n = len(u.Locked) {
		take := amount.Min(u.Locked[n-1].Amount)
		u.Locked[n-1].Amount = u.Locked[n-1].Amount.Sub(take)
		amount = amount.Sub(take)
		if u.Locked[n-1].Amount.IsZero() {
			u.Locked = u.Locked[:n-1]
		}
	}
	if len(u.Locked) == 0 {
		u.Locked = nil
	}
	u.Available = u.Available.Sub(amount)
}

type unstakedRecord struct {
	Available [4]uint64
	Epochs    []uint64
	Amounts   [][4]uint64
}

func (p *Pool) loadUnstaked(id near.AccountID) (*UnstakedBalances, error) {
	var rec unstakedRecord
	ok, err := store.Load(p.db, store.Key(nsUnstaked, id.String()), &rec)
	if err != nil || !ok {
		return nil, err
	}
	u := &UnstakedBalances{Available: near.YoctoNear(rec.Available)}
	for i, epoch := range rec.Epochs {
		u.Locked = append(u.Locked, LockedBalance{
			Epoch:  near.EpochHeight(epoch),
			Amount: near.YoctoNear(rec.Amounts[i]),
		})
	}
	return u, nil
}

// saveUnstaked deletes the record once it is empty.
func (p *Pool) saveUnstaked(id near.AccountID, u *UnstakedBalances) error {
	key := store.Key(nsUnstaked, id.String())
	if u == nil || u.IsEmpty() {
		return p.db.Delete(key)
	}
	rec := unstakedRecord{Available: [4]uint64(u.Available)}
	for _, l := range u.Locked {
		rec.Epochs = append(rec.Epochs, uint64(l.Epoch))
		rec.Amounts = append(rec.Amounts, [4]uint64(l.Amount))
	}
	return store.Save(p.db, key, rec)
}
