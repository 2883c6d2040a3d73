// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package account

import (
	"github.com/pkg/errors"

	"blockwatch.cc/near-stake/pkg/near"
	"blockwatch.cc/near-stake/pkg/store"
)

type ownerRecord struct {
	Owner string
}

func (r *Repository) CurrentOwner() (near.AccountID, error) {
	var rec ownerRecord
	if _, err := store.Load(r.db, []byte(keyOwner), &rec); err != nil {
		return "", err
	}
	return near.AccountID(rec.Owner), nil
}

// SetOwner records the contract owner and grants it admin and operator
// permissions. The owner must be registered.
func (r *Repository) SetOwner(id near.AccountID) error {
	if err := r.RegisteredAccount(id); err != nil {
		return err
	}
	if err := store.Save(r.db, []byte(keyOwner), ownerRecord{Owner: id.String()}); err != nil {
		return err
	}
	return r.GrantPermission(id, PermAdmin|PermOperator)
}

func (r *Repository) HasPermission(id near.AccountID, perm Permission) (bool, error) {
	rec, err := r.load(id)
	if err != nil || rec == nil {
		return false, err
	}
	return Permission(rec.Permissions)&perm == perm, nil
}

func (r *Repository) GrantPermission(id near.AccountID, perm Permission) error {
	rec, err := r.load(id)
	if err != nil {
		return err
	}
	if rec == nil {
		return errors.Wrap(ErrNotRegistered, id.String())
	}
	rec.Permissions |= uint8(perm)
	return r.save(id, rec)
}

func (r *Repository) RevokePermission(id near.AccountID, perm Permission) error {
	rec, err := r.load(id)
	if err != nil {
		return err
	}
	if rec == nil {
		return errors.Wrap(ErrNotRegistered, id.String())
	}
	rec.Permissions &^= uint8(perm)
	return r.save(id, rec)
}
