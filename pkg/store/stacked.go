// Copyright (c) 2022 Blockwatch Data Inc.
// Author: alex@blockwatch.cc

package store

import (
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("not found")

var _ GetPutter = (*Stacked)(nil)

type entry struct {
	value   []byte
	deleted bool
}

type level map[string]entry

// Stacked keeps uncommitted writes in a stack of levels on top of a backend.
// A level can be pushed before a call and popped to revert everything the
// call wrote. Commit flushes all levels into the backend in one batch.
type Stacked struct {
	backend Backend
	levels  []level
}

func NewStacked(backend Backend) *Stacked {
	return &Stacked{
		backend: backend,
		levels:  []level{make(level)},
	}
}

func (s *Stacked) Backend() Backend {
	return s.backend
}

// Depth returns the number of levels.
func (s *Stacked) Depth() int {
	return len(s.levels)
}

// Push pushes a new level and returns the depth before the push.
func (s *Stacked) Push() int {
	s.levels = append(s.levels, make(level))
	return len(s.levels) - 1
}

// PopTo drops levels until depth is reached. The base level is never dropped.
func (s *Stacked) PopTo(depth int) {
	if depth < 1 {
		depth = 1
	}
	for len(s.levels) > depth {
		s.levels[len(s.levels)-1] = nil
		s.levels = s.levels[:len(s.levels)-1]
	}
}

func (s *Stacked) IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || s.backend.IsNotFound(err)
}

func (s *Stacked) Get(key []byte) ([]byte, error) {
	for i := len(s.levels) - 1; i >= 0; i-- {
		if e, ok := s.levels[i][string(key)]; ok {
			if e.deleted {
				return nil, ErrNotFound
			}
			return e.value, nil
		}
	}
	val, err := s.backend.Get(key)
	if err != nil {
		if s.backend.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return val, nil
}

func (s *Stacked) Has(key []byte) (bool, error) {
	_, err := s.Get(key)
	if err != nil {
		if s.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Stacked) Put(key, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	s.levels[len(s.levels)-1][string(key)] = entry{value: v}
	return nil
}

func (s *Stacked) Delete(key []byte) error {
	s.levels[len(s.levels)-1][string(key)] = entry{deleted: true}
	return nil
}

// Commit writes all pending levels to the backend and resets the stack.
func (s *Stacked) Commit() error {
	merged := make(level)
	for _, lvl := range s.levels {
		for k, e := range lvl {
			merged[k] = e
		}
	}
	if len(merged) == 0 {
		return nil
	}
	batch := s.backend.NewBatch()
	for k, e := range merged {
		var err error
		if e.deleted {
			err = batch.Delete([]byte(k))
		} else {
			err = batch.Put([]byte(k), e.value)
		}
		if err != nil {
			return errors.Wrap(err, "stage commit")
		}
	}
	if err := batch.Write(); err != nil {
		return errors.Wrap(err, "write commit")
	}
	s.levels = []level{make(level)}
	return nil
}
