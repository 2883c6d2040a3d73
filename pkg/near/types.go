// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package near

import (
	"strings"
)

type AccountID string

func (a AccountID) String() string {
	return string(a)
}

// Prefix returns the first label of a dotted account id, e.g. "pearl" for
// "pearl.stake-v1.near".
func (a AccountID) Prefix() string {
	s := string(a)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return s[:i]
	}
	return s
}

type PublicKey string

type Signature string

type EpochHeight uint64

// Gas is measured in gas units, 1 TGas = 10^12 gas.
type Gas uint64

const (
	TGas Gas = 1_000_000_000_000

	// MaxPrepaidGas is the per call gas limit of the NEAR protocol.
	MaxPrepaidGas = 300 * TGas
)

type Signer interface {
	Sign([]byte) []byte
}

// Transaction context available during contract execution
type CallContext struct {
	Contract      AccountID   // current account id (near.currentAccountId)
	Caller        AccountID   // predecessor account id (near.predecessorAccountId)
	SignedBy      PublicKey   // signer's pubkey
	Amount        YoctoNear   // attached deposit (near.attachedDeposit)
	Height        int64       // near.blockIndex
	Epoch         EpochHeight // near.epochHeight
	Balance       YoctoNear   // contract liquid balance incl. attached deposit (near.accountBalance)
	LockedBalance YoctoNear   // contract balance locked by staking (near.accountLockedBalance)
	PrepaidGas    Gas
	UsedGas       Gas
	ViewOnly      bool

	promises []*Promise
	logs     []string
}

// RemainingGas returns the gas that is still available to this call.
func (c *CallContext) RemainingGas() Gas {
	if c.UsedGas >= c.PrepaidGas {
		return 0
	}
	return c.PrepaidGas - c.UsedGas
}

// UseGas charges gas for synchronous work.
func (c *CallContext) UseGas(g Gas) {
	c.UsedGas += g
}

// IsPrivate reports whether the call was made by the contract itself, which is
// the case for promise callbacks.
func (c *CallContext) IsPrivate() bool {
	return c.Caller == c.Contract
}

// Log appends a message to the receipt's execution outcome.
func (c *CallContext) Log(msg string) {
	c.logs = append(c.logs, msg)
}

func (c *CallContext) Logs() []string {
	return c.logs
}

// Schedule registers a promise that is turned into a receipt once the call
// completes successfully.
func (c *CallContext) Schedule(p *Promise) {
	c.promises = append(c.promises, p)
}

func (c *CallContext) Promises() []*Promise {
	return c.promises
}

// Transfer schedules a NEAR transfer from the contract to the receiver. The
// amount is debited from the contract balance right away.
func (c *CallContext) Transfer(receiver AccountID, amount YoctoNear) (*Promise, error) {
	if c.ViewOnly {
		return nil, ErrViewOnly
	}
	if c.Balance.Lt(amount) {
		return nil, ErrInsufficientBalance
	}
	c.Balance = c.Balance.Sub(amount)
	p := NewPromise(receiver).Transfer(amount)
	c.Schedule(p)
	return p, nil
}
