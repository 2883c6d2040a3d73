// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package store

import (
	"reflect"

	"github.com/near/borsh-go"
	"github.com/pkg/errors"
)

// Load decodes the borsh encoded record stored under key into v. It returns
// false when the key does not exist.
func Load(g Getter, key []byte, v interface{}) (bool, error) {
	buf, err := g.Get(key)
	if err != nil {
		if g.IsNotFound(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "load %s", key)
	}
	if err := borsh.Deserialize(v, buf); err != nil {
		return false, errors.Wrapf(err, "decode %s", key)
	}
	return true, nil
}

// Save borsh encodes v and stores it under key. Pointers are stored as the
// value they point to so records always decode with Load.
func Save(p Putter, key []byte, v interface{}) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return errors.Errorf("encode %s: nil record", key)
		}
		rv = rv.Elem()
	}
	buf, err := borsh.Serialize(rv.Interface())
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	return errors.Wrapf(p.Put(key, buf), "save %s", key)
}

// Key joins a namespace and an id into a store key.
func Key(namespace string, id string) []byte {
	return []byte(namespace + "/" + id)
}
