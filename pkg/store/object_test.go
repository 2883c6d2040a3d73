// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package store

import (
	"testing"

	"github.com/near/borsh-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	Balance [4]uint64
	Flags   uint8
	Name    string
}

func TestSaveLoadPointer(t *testing.T) {
	s := newStacked(t)
	rec := &testRecord{Balance: [4]uint64{1500}, Flags: 3, Name: "alice.near"}
	key := Key("acc", "alice.near")
	require.NoError(t, Save(s, key, rec))

	raw, err := s.Get(key)
	require.NoError(t, err)
	plain, err := borsh.Serialize(*rec)
	require.NoError(t, err)
	assert.Equal(t, plain, raw, "pointer stored as value")

	var got testRecord
	ok, err := Load(s, key, &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, *rec, got)

	var nilRec *testRecord
	assert.Error(t, Save(s, key, nilRec))
}

func TestLoadMissing(t *testing.T) {
	s := newStacked(t)
	var got testRecord
	ok, err := Load(s, Key("acc", "nobody"), &got)
	require.NoError(t, err)
	assert.False(t, ok)
}
