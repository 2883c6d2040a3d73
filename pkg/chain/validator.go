// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package chain

import (
	"github.com/pkg/errors"

	"blockwatch.cc/near-stake/pkg/near"
)

var (
	ErrStakeRejected    = errors.New("stake action rejected by validator")
	ErrInvalidStakeKey  = errors.New("invalid validator key")
	ErrStakeUnavailable = errors.New("liquid balance is too low to stake")
)

type unstaking struct {
	Epoch  near.EpochHeight
	Amount near.YoctoNear
}

// validator holds the contract's stake. Unstaked funds stay locked for the
// unlock delay. Raising the stake again first reclaims funds that are still
// unstaking, like the protocol does with an account's locked balance.
type validator struct {
	Staked    near.YoctoNear
	Unstaking []unstaking
}

func (v *validator) Locked() near.YoctoNear {
	total := v.Staked
	for _, u := range v.Unstaking {
		total = total.Add(u.Amount)
	}
	return total
}

func (v *validator) clone() validator {
	c := validator{Staked: v.Staked}
	c.Unstaking = append(c.Unstaking, v.Unstaking...)
	return c
}

// stake sets the staked amount and returns the updated liquid balance.
func (v *validator) stake(key near.PublicKey, amount, liquid near.YoctoNear, unlock near.EpochHeight) (near.YoctoNear, error) {
	if key == "" {
		return liquid, ErrInvalidStakeKey
	}
	if !amount.Lt(v.Staked) {
		need := amount.Sub(v.Staked)
		for i := len(v.Unstaking) - 1; i >= 0 && !need.IsZero(); i-- {
			take := need.Min(v.Unstaking[i].Amount)
			v.Unstaking[i].Amount = v.Unstaking[i].Amount.Sub(take)
			need = need.Sub(take)
		}
		v.compact()
		if liquid.Lt(need) {
			return liquid, errors.Wrapf(ErrStakeUnavailable, "need %s, have %s", need, liquid)
		}
		liquid = liquid.Sub(need)
	} else {
		diff := v.Staked.Sub(amount)
		if n := len(v.Unstaking); n > 0 && v.Unstaking[n-1].Epoch == unlock {
			v.Unstaking[n-1].Amount = v.Unstaking[n-1].Amount.Add(diff)
		} else {
			v.Unstaking = append(v.Unstaking, unstaking{Epoch: unlock, Amount: diff})
		}
	}
	v.Staked = amount
	return liquid, nil
}

// mature releases funds whose unlock epoch has been reached.
func (v *validator) mature(epoch near.EpochHeight) near.YoctoNear {
	var released near.YoctoNear
	keep := v.Unstaking[:0]
	for _, u := range v.Unstaking {
		if u.Epoch <= epoch {
			released = released.Add(u.Amount)
			continue
		}
		keep = append(keep, u)
	}
	v.Unstaking = keep
	v.compact()
	return released
}

func (v *validator) compact() {
	keep := v.Unstaking[:0]
	for _, u := range v.Unstaking {
		if !u.Amount.IsZero() {
			keep = append(keep, u)
		}
	}
	if len(keep) == 0 {
		keep = nil
	}
	v.Unstaking = keep
}
