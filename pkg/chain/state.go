// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package chain

import (
	"sort"

	"blockwatch.cc/near-stake/pkg/near"
	"blockwatch.cc/near-stake/pkg/store"
)

const (
	keyState = "chain/state"
	keyQueue = "chain/queue"
)

type chainState struct {
	Height    int64
	Epoch     near.EpochHeight
	Balance   near.YoctoNear
	Nonce     uint64
	Validator validator
	Wallets   map[near.AccountID]near.YoctoNear
}

func (s *chainState) clone() *chainState {
	c := *s
	c.Validator = s.Validator.clone()
	c.Wallets = make(map[near.AccountID]near.YoctoNear, len(s.Wallets))
	for k, v := range s.Wallets {
		c.Wallets[k] = v
	}
	return &c
}

type stateRecord struct {
	Height          uint64
	Epoch           uint64
	Balance         [4]uint64
	Nonce           uint64
	Staked          [4]uint64
	UnstakingEpochs []uint64
	UnstakingAmount [][4]uint64
	WalletIDs       []string
	WalletBalances  [][4]uint64
}

func (s *chainState) record() stateRecord {
	rec := stateRecord{
		Height:  uint64(s.Height),
		Epoch:   uint64(s.Epoch),
		Balance: [4]uint64(s.Balance),
		Nonce:   s.Nonce,
		Staked:  [4]uint64(s.Validator.Staked),
	}
	for _, u := range s.Validator.Unstaking {
		rec.UnstakingEpochs = append(rec.UnstakingEpochs, uint64(u.Epoch))
		rec.UnstakingAmount = append(rec.UnstakingAmount, [4]uint64(u.Amount))
	}
	ids := make([]string, 0, len(s.Wallets))
	for id := range s.Wallets {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	for _, id := range ids {
		rec.WalletIDs = append(rec.WalletIDs, id)
		rec.WalletBalances = append(rec.WalletBalances, [4]uint64(s.Wallets[near.AccountID(id)]))
	}
	return rec
}

func (rec stateRecord) state() *chainState {
	s := &chainState{
		Height:    int64(rec.Height),
		Epoch:     near.EpochHeight(rec.Epoch),
		Balance:   near.YoctoNear(rec.Balance),
		Nonce:     rec.Nonce,
		Validator: validator{Staked: near.YoctoNear(rec.Staked)},
		Wallets:   make(map[near.AccountID]near.YoctoNear, len(rec.WalletIDs)),
	}
	for i, epoch := range rec.UnstakingEpochs {
		s.Validator.Unstaking = append(s.Validator.Unstaking, unstaking{
			Epoch:  near.EpochHeight(epoch),
			Amount: near.YoctoNear(rec.UnstakingAmount[i]),
		})
	}
	for i, id := range rec.WalletIDs {
		s.Wallets[near.AccountID(id)] = near.YoctoNear(rec.WalletBalances[i])
	}
	return s
}

type actionRecord struct {
	Kind      uint8
	Amount    [4]uint64
	PublicKey string
	Method    string
	Args      []byte
	Gas       uint64
}

type receiptRecord struct {
	ID          string
	Predecessor string
	Receiver    string
	Actions     []actionRecord
	Callbacks   []actionRecord // zero or one function call
}

type queueRecord struct {
	Receipts []receiptRecord
}

func encodeReceipt(rc *Receipt) receiptRecord {
	rec := receiptRecord{
		ID:          rc.ID,
		Predecessor: string(rc.Predecessor),
		Receiver:    string(rc.Promise.Receiver),
	}
	for _, a := range rc.Promise.Actions {
		rec.Actions = append(rec.Actions, actionRecord{
			Kind:      uint8(a.Kind),
			Amount:    [4]uint64(a.Amount),
			PublicKey: string(a.PublicKey),
			Method:    a.Method,
			Args:      a.Args,
			Gas:       uint64(a.Gas),
		})
	}
	if cb := rc.Promise.Then; cb != nil {
		rec.Callbacks = []actionRecord{{
			Kind:   uint8(near.ActionFunctionCall),
			Method: cb.Method,
			Args:   cb.Args,
			Gas:    uint64(cb.Gas),
		}}
	}
	return rec
}

func decodeReceipt(rec receiptRecord) *Receipt {
	p := near.NewPromise(near.AccountID(rec.Receiver))
	for _, a := range rec.Actions {
		p.Actions = append(p.Actions, near.Action{
			Kind:      near.ActionKind(a.Kind),
			Amount:    near.YoctoNear(a.Amount),
			PublicKey: near.PublicKey(a.PublicKey),
			Method:    a.Method,
			Args:      a.Args,
			Gas:       near.Gas(a.Gas),
		})
	}
	if len(rec.Callbacks) > 0 {
		cb := rec.Callbacks[0]
		p.WithCallback(cb.Method, cb.Args, near.Gas(cb.Gas))
	}
	return &Receipt{
		ID:          rec.ID,
		Predecessor: near.AccountID(rec.Predecessor),
		Promise:     p,
	}
}

func (r *Runtime) load() (bool, error) {
	var rec stateRecord
	ok, err := store.Load(r.db, []byte(keyState), &rec)
	if err != nil || !ok {
		return false, err
	}
	r.st = rec.state()

	var queue queueRecord
	if _, err := store.Load(r.db, []byte(keyQueue), &queue); err != nil {
		return false, err
	}
	r.queue = r.queue[:0]
	for _, rc := range queue.Receipts {
		r.queue = append(r.queue, decodeReceipt(rc))
	}
	return true, nil
}

// persist writes chain state and the receipt queue and commits all pending
// store levels.
func (r *Runtime) persist() error {
	if err := store.Save(r.db, []byte(keyState), r.st.record()); err != nil {
		return err
	}
	var queue queueRecord
	for _, rc := range r.queue {
		queue.Receipts = append(queue.Receipts, encodeReceipt(rc))
	}
	if err := store.Save(r.db, []byte(keyQueue), queue); err != nil {
		return err
	}
	return r.db.Commit()
}
