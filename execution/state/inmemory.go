// Copyright 2025 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package state

import (
	"sync"

	"github.com/erigontech/blockstm/execution/types"
)

var _ ExecutorView = (*InMemoryStateView)(nil)

// InMemoryStateView is a map backed base view. It is safe for concurrent
// readers; writes are expected between blocks only.
type InMemoryStateView struct {
	id     StateViewID
	mu     sync.RWMutex
	values map[types.StateKey][]byte
}

func NewInMemoryStateView(id StateViewID) *InMemoryStateView {
	return &InMemoryStateView{id: id, values: map[types.StateKey][]byte{}}
}

func (v *InMemoryStateView) ID() StateViewID {
	return v.id
}

// WithID returns a copy of the view under a different id. Later writes to
// either view are not seen by the other.
func (v *InMemoryStateView) WithID(id StateViewID) *InMemoryStateView {
	v.mu.RLock()
	defer v.mu.RUnlock()
	values := make(map[types.StateKey][]byte, len(v.values))
	for k, val := range v.values {
		values[k] = val
	}
	return &InMemoryStateView{id: id, values: values}
}

func (v *InMemoryStateView) GetStateValue(key types.StateKey) ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.values[key], nil
}

func (v *InMemoryStateView) GetResourceFromGroup(group types.StateKey, tag types.StructTag) ([]byte, error) {
	members, err := readGroup(v, group)
	if err != nil {
		return nil, err
	}
	return members[tag], nil
}

func (v *InMemoryStateView) ResourceGroupSize(group types.StateKey) (uint64, error) {
	blob, err := v.GetStateValue(group)
	return uint64(len(blob)), err
}

func (v *InMemoryStateView) Set(key types.StateKey, value []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if value == nil {
		delete(v.values, key)
		return
	}
	v.values[key] = value
}

func (v *InMemoryStateView) SetGroup(group types.StateKey, members map[types.StructTag][]byte) error {
	blob, err := EncodeGroup(members)
	if err != nil {
		return err
	}
	v.Set(group, blob)
	return nil
}

// ApplyWrites folds committed writes into the view.
func (v *InMemoryStateView) ApplyWrites(writes VersionedWrites) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, w := range writes {
		if w.Deleted {
			delete(v.values, w.Path)
			continue
		}
		v.values[w.Path] = w.Val
	}
}

func (v *InMemoryStateView) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.values)
}
