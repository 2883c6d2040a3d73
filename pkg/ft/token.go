// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package ft

import (
	"encoding/json"
	"strings"

	logpkg "github.com/echa/log"
	"github.com/pkg/errors"

	"blockwatch.cc/near-stake/pkg/near"
	"blockwatch.cc/near-stake/pkg/store"
)

var log logpkg.Logger = logpkg.Log

func UseLogger(logger logpkg.Logger) {
	log = logger
}

const (
	nsBalance = "ft/balance"
	keySupply = "ft-meta/supply"
	keyMeta   = "ft-meta/metadata"

	// Called on the receiver of TransferAndNotify.
	OnTransferMethod = "ft_on_transfer"
	OnTransferGas    = 10 * near.TGas
)

var (
	ErrZeroAmount          = errors.New("token amount must not be zero")
	ErrSelfTransfer        = errors.New("sender and receiver must differ")
	ErrInsufficientBalance = errors.New("token balance is insufficient")
)

// Metadata follows the NEP-148 fungible token metadata shape.
type Metadata struct {
	Spec     string `json:"spec"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// NewMetadata derives the token symbol from the first label of the contract
// account id, e.g. "PEARL" for "pearl.stake-v1.near".
func NewMetadata(contract near.AccountID) Metadata {
	symbol := strings.ToUpper(contract.Prefix())
	return Metadata{
		Spec:     "ft-1.0.0",
		Name:     "STAKE",
		Symbol:   symbol,
		Decimals: 24,
	}
}

// Token is a KV backed fungible token ledger.
type Token struct {
	db store.GetPutter
}

func New(db store.GetPutter) *Token {
	return &Token{db: db}
}

func (t *Token) SetMetadata(m Metadata) error {
	return store.Save(t.db, []byte(keyMeta), m)
}

func (t *Token) Metadata() (Metadata, error) {
	var m Metadata
	_, err := store.Load(t.db, []byte(keyMeta), &m)
	return m, err
}

func (t *Token) BalanceOf(id near.AccountID) (near.TokenAmount, error) {
	var bal [4]uint64
	if _, err := store.Load(t.db, store.Key(nsBalance, id.String()), &bal); err != nil {
		return near.ZeroTokens, err
	}
	return near.TokenAmount(bal), nil
}

func (t *Token) TotalSupply() (near.TokenAmount, error) {
	var supply [4]uint64
	if _, err := store.Load(t.db, []byte(keySupply), &supply); err != nil {
		return near.ZeroTokens, err
	}
	return near.TokenAmount(supply), nil
}

func (t *Token) setBalance(id near.AccountID, amount near.TokenAmount) error {
	key := store.Key(nsBalance, id.String())
	if amount.IsZero() {
		return t.db.Delete(key)
	}
	return store.Save(t.db, key, [4]uint64(amount))
}

func (t *Token) setSupply(amount near.TokenAmount) error {
	return store.Save(t.db, []byte(keySupply), [4]uint64(amount))
}

func (t *Token) Mint(id near.AccountID, amount near.TokenAmount) error {
	if amount.IsZero() {
		return ErrZeroAmount
	}
	bal, err := t.BalanceOf(id)
	if err != nil {
		return err
	}
	supply, err := t.TotalSupply()
	if err != nil {
		return err
	}
	if err := t.setBalance(id, bal.Add(amount)); err != nil {
		return err
	}
	log.Debugf("ft: mint %s to %s", amount, id)
	return t.setSupply(supply.Add(amount))
}

func (t *Token) Burn(id near.AccountID, amount near.TokenAmount) error {
	if amount.IsZero() {
		return ErrZeroAmount
	}
	bal, err := t.BalanceOf(id)
	if err != nil {
		return err
	}
	if bal.Lt(amount) {
		return errors.Wrapf(ErrInsufficientBalance, "%s: %s < %s", id, bal, amount)
	}
	supply, err := t.TotalSupply()
	if err != nil {
		return err
	}
	if err := t.setBalance(id, bal.Sub(amount)); err != nil {
		return err
	}
	log.Debugf("ft: burn %s from %s", amount, id)
	return t.setSupply(supply.Sub(amount))
}

func (t *Token) Transfer(sender, receiver near.AccountID, amount near.TokenAmount, memo string) error {
	if amount.IsZero() {
		return ErrZeroAmount
	}
	if sender == receiver {
		return ErrSelfTransfer
	}
	from, err := t.BalanceOf(sender)
	if err != nil {
		return err
	}
	if from.Lt(amount) {
		return errors.Wrapf(ErrInsufficientBalance, "%s: %s < %s", sender, from, amount)
	}
	to, err := t.BalanceOf(receiver)
	if err != nil {
		return err
	}
	if err := t.setBalance(sender, from.Sub(amount)); err != nil {
		return err
	}
	if err := t.setBalance(receiver, to.Add(amount)); err != nil {
		return err
	}
	if memo != "" {
		log.Debugf("ft: transfer %s %s -> %s memo=%q", amount, sender, receiver, memo)
	} else {
		log.Debugf("ft: transfer %s %s -> %s", amount, sender, receiver)
	}
	return nil
}

// TransferArgs are the JSON arguments of the receiver notification.
type TransferArgs struct {
	SenderID near.AccountID   `json:"sender_id"`
	Amount   near.TokenAmount `json:"amount"`
	Memo     string           `json:"memo,omitempty"`
	Msg      string           `json:"msg"`
}

// TransferAndNotify transfers tokens and schedules an ft_on_transfer call on
// the receiver.
func (t *Token) TransferAndNotify(ctx *near.CallContext, receiver near.AccountID, amount near.TokenAmount, memo, msg string) (*near.Promise, error) {
	if err := t.Transfer(ctx.Caller, receiver, amount, memo); err != nil {
		return nil, err
	}
	args, err := json.Marshal(TransferArgs{
		SenderID: ctx.Caller,
		Amount:   amount,
		Memo:     memo,
		Msg:      msg,
	})
	if err != nil {
		return nil, err
	}
	p := near.NewPromise(receiver).FunctionCall(OnTransferMethod, args, near.ZeroYocto, OnTransferGas)
	ctx.Schedule(p)
	return p, nil
}
