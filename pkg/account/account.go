// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package account

import (
	"github.com/pkg/errors"

	"blockwatch.cc/near-stake/pkg/near"
	"blockwatch.cc/near-stake/pkg/store"
)

const (
	nsAccount = "acct"
	keyTotal  = "acct-meta/total"
	keyOwner  = "acct-meta/owner"
)

var (
	ErrNotRegistered       = errors.New("account is not registered")
	ErrAlreadyRegistered   = errors.New("account is already registered")
	ErrInsufficientDeposit = errors.New("deposit is below the storage minimum")
	ErrInsufficientBalance = errors.New("account storage balance is insufficient")
	ErrZeroAmount          = errors.New("withdraw amount must not be zero")
)

type Permission uint8

const (
	PermAdmin Permission = 1 << iota
	PermOperator
	PermTreasurer
)

func (p Permission) String() string {
	switch p {
	case PermAdmin:
		return "admin"
	case PermOperator:
		return "operator"
	case PermTreasurer:
		return "treasurer"
	default:
		return "unknown"
	}
}

// StorageBalance is an account's NEAR balance held for storage. Available is
// the portion above the storage minimum.
type StorageBalance struct {
	Total     near.YoctoNear `json:"total"`
	Available near.YoctoNear `json:"available"`
}

type record struct {
	NearBalance [4]uint64
	Permissions uint8
}

// Repository stores registered accounts with their storage balances and
// permissions. It also tracks the contract owner.
type Repository struct {
	db         store.GetPutter
	storageMin near.YoctoNear
}

func New(db store.GetPutter, storageMin near.YoctoNear) *Repository {
	return &Repository{
		db:         db,
		storageMin: storageMin,
	}
}

func (r *Repository) StorageMin() near.YoctoNear {
	return r.storageMin
}

func (r *Repository) load(id near.AccountID) (*record, error) {
	var rec record
	ok, err := store.Load(r.db, store.Key(nsAccount, id.String()), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

func (r *Repository) save(id near.AccountID, rec *record) error {
	return store.Save(r.db, store.Key(nsAccount, id.String()), *rec)
}

// Register creates an account funded with deposit, which must cover the
// storage minimum.
func (r *Repository) Register(id near.AccountID, deposit near.YoctoNear) error {
	rec, err := r.load(id)
	if err != nil {
		return err
	}
	if rec != nil {
		return errors.Wrap(ErrAlreadyRegistered, id.String())
	}
	if deposit.Lt(r.storageMin) {
		return errors.Wrapf(ErrInsufficientDeposit, "%s < %s", deposit, r.storageMin)
	}
	if err := r.save(id, &record{NearBalance: [4]uint64(deposit)}); err != nil {
		return err
	}
	return r.adjustTotal(deposit, true)
}

func (r *Repository) AccountExists(id near.AccountID) (bool, error) {
	return r.db.Has(store.Key(nsAccount, id.String()))
}

// RegisteredAccount fails if the account is not registered.
func (r *Repository) RegisteredAccount(id near.AccountID) error {
	ok, err := r.AccountExists(id)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrap(ErrNotRegistered, id.String())
	}
	return nil
}

// StorageBalanceOf returns nil for unregistered accounts.
func (r *Repository) StorageBalanceOf(id near.AccountID) (*StorageBalance, error) {
	rec, err := r.load(id)
	if err != nil || rec == nil {
		return nil, err
	}
	total := near.YoctoNear(rec.NearBalance)
	return &StorageBalance{
		Total:     total,
		Available: total.SaturatingSub(r.storageMin),
	}, nil
}

func (r *Repository) IncrNearBalance(id near.AccountID, amount near.YoctoNear) error {
	rec, err := r.load(id)
	if err != nil {
		return err
	}
	if rec == nil {
		return errors.Wrap(ErrNotRegistered, id.String())
	}
	rec.NearBalance = [4]uint64(near.YoctoNear(rec.NearBalance).Add(amount))
	if err := r.save(id, rec); err != nil {
		return err
	}
	return r.adjustTotal(amount, true)
}

// DecrNearBalance only draws from the available balance.
func (r *Repository) DecrNearBalance(id near.AccountID, amount near.YoctoNear) error {
	rec, err := r.load(id)
	if err != nil {
		return err
	}
	if rec == nil {
		return errors.Wrap(ErrNotRegistered, id.String())
	}
	balance := near.YoctoNear(rec.NearBalance)
	if balance.SaturatingSub(r.storageMin).Lt(amount) {
		return errors.Wrapf(ErrInsufficientBalance, "%s: available %s < %s", id, balance.SaturatingSub(r.storageMin), amount)
	}
	rec.NearBalance = [4]uint64(balance.Sub(amount))
	if err := r.save(id, rec); err != nil {
		return err
	}
	return r.adjustTotal(amount, false)
}

// TotalNearBalance is the sum of all account storage balances.
func (r *Repository) TotalNearBalance() (near.YoctoNear, error) {
	var total [4]uint64
	if _, err := store.Load(r.db, []byte(keyTotal), &total); err != nil {
		return near.ZeroYocto, err
	}
	return near.YoctoNear(total), nil
}

func (r *Repository) adjustTotal(amount near.YoctoNear, incr bool) error {
	total, err := r.TotalNearBalance()
	if err != nil {
		return err
	}
	if incr {
		total = total.Add(amount)
	} else {
		total = total.SaturatingSub(amount)
	}
	return store.Save(r.db, []byte(keyTotal), [4]uint64(total))
}

// StorageDeposit registers id with the attached deposit or tops up its
// storage balance.
// Called by: user
func (r *Repository) StorageDeposit(ctx *near.CallContext, id near.AccountID) (*StorageBalance, error) {
	if ctx.Amount.IsZero() {
		return nil, errors.Wrap(ErrInsufficientDeposit, "no deposit attached")
	}
	ok, err := r.AccountExists(id)
	if err != nil {
		return nil, err
	}
	if ok {
		err = r.IncrNearBalance(id, ctx.Amount)
	} else {
		err = r.Register(id, ctx.Amount)
	}
	if err != nil {
		return nil, err
	}
	return r.StorageBalanceOf(id)
}

// StorageWithdraw transfers available storage balance back to the caller,
// all of it when amount is nil.
// Called by: user
func (r *Repository) StorageWithdraw(ctx *near.CallContext, amount *near.YoctoNear) (*StorageBalance, error) {
	bal, err := r.StorageBalanceOf(ctx.Caller)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		return nil, errors.Wrap(ErrNotRegistered, ctx.Caller.String())
	}
	withdraw := bal.Available
	if amount != nil {
		if amount.IsZero() {
			return nil, ErrZeroAmount
		}
		withdraw = *amount
	}
	if withdraw.IsZero() {
		return bal, nil
	}
	if err := r.DecrNearBalance(ctx.Caller, withdraw); err != nil {
		return nil, err
	}
	if _, err := ctx.Transfer(ctx.Caller, withdraw); err != nil {
		return nil, err
	}
	return r.StorageBalanceOf(ctx.Caller)
}
