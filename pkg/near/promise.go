// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package near

import (
	cid "github.com/ipfs/go-cid"
	mc "github.com/multiformats/go-multicodec"
	mh "github.com/multiformats/go-multihash"
	"github.com/near/borsh-go"
)

type ActionKind uint8

const (
	ActionTransfer ActionKind = iota
	ActionStake
	ActionFunctionCall
)

func (k ActionKind) String() string {
	switch k {
	case ActionTransfer:
		return "transfer"
	case ActionStake:
		return "stake"
	case ActionFunctionCall:
		return "function_call"
	default:
		return "unknown"
	}
}

// Action is a single receipt action. Only the fields relevant to the action
// kind are set.
type Action struct {
	Kind      ActionKind
	Amount    YoctoNear // transfer amount, stake amount or function call deposit
	PublicKey PublicKey // stake
	Method    string    // function call
	Args      []byte    // function call
	Gas       Gas       // function call
}

// Callback is a function call on the predecessor that receives the outcome of
// the promise it is chained to.
type Callback struct {
	Method string
	Args   []byte
	Gas    Gas
}

// Promise is an outgoing receipt in construction. Its ID is content addressed.
type Promise struct {
	Receiver AccountID
	Actions  []Action
	Then     *Callback

	id cid.Cid
}

func NewPromise(receiver AccountID) *Promise {
	return &Promise{Receiver: receiver}
}

func (p *Promise) Transfer(amount YoctoNear) *Promise {
	p.Actions = append(p.Actions, Action{Kind: ActionTransfer, Amount: amount})
	return p
}

func (p *Promise) Stake(key PublicKey, amount YoctoNear) *Promise {
	p.Actions = append(p.Actions, Action{Kind: ActionStake, PublicKey: key, Amount: amount})
	return p
}

func (p *Promise) FunctionCall(method string, args []byte, deposit YoctoNear, gas Gas) *Promise {
	p.Actions = append(p.Actions, Action{
		Kind:   ActionFunctionCall,
		Method: method,
		Args:   args,
		Amount: deposit,
		Gas:    gas,
	})
	return p
}

func (p *Promise) WithCallback(method string, args []byte, gas Gas) *Promise {
	p.Then = &Callback{Method: method, Args: args, Gas: gas}
	return p
}

func (p *Promise) ID() cid.Cid {
	return p.id
}

// receiptPayload is the borsh layout hashed into a promise id.
type receiptPayload struct {
	Nonce    uint64
	Height   uint64
	Receiver string
	Kinds    []uint8
	Amounts  [][4]uint64
	Keys     []string
	Methods  []string
}

// Seal assigns the promise its receipt id. The nonce keeps ids of identical
// promises created within the same block apart.
func (p *Promise) Seal(height int64, nonce uint64) (cid.Cid, error) {
	payload := receiptPayload{
		Nonce:    nonce,
		Height:   uint64(height),
		Receiver: string(p.Receiver),
	}
	for _, a := range p.Actions {
		payload.Kinds = append(payload.Kinds, uint8(a.Kind))
		payload.Amounts = append(payload.Amounts, [4]uint64(a.Amount))
		payload.Keys = append(payload.Keys, string(a.PublicKey))
		payload.Methods = append(payload.Methods, a.Method)
	}
	buf, err := borsh.Serialize(payload)
	if err != nil {
		return cid.Undef, err
	}
	pref := cid.Prefix{
		Version:  1,
		Codec:    uint64(mc.Raw),
		MhType:   mh.SHA2_256,
		MhLength: -1, // default length
	}
	c, err := pref.Sum(buf)
	if err != nil {
		return cid.Undef, err
	}
	p.id = c
	return c, nil
}

// PromiseResult is the outcome of a promise as observed by its callback.
type PromiseResult struct {
	ReceiptID string
	Success   bool
	Error     string
}

func (r PromiseResult) Failed() bool {
	return !r.Success
}
