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

import "github.com/erigontech/blockstm/execution/types"

type overlayEntry struct {
	value   []byte
	deleted bool
}

var _ ExecutorView = (*OverlayView)(nil)

// OverlayView layers the writes of already executed transactions over a base
// view. It backs in-order execution where no speculation takes place.
type OverlayView struct {
	base    StateView
	entries map[types.StateKey]overlayEntry
}

func NewOverlayView(base StateView) *OverlayView {
	return &OverlayView{base: base, entries: map[types.StateKey]overlayEntry{}}
}

func (v *OverlayView) ID() StateViewID {
	return v.base.ID()
}

func (v *OverlayView) GetStateValue(key types.StateKey) ([]byte, error) {
	if e, ok := v.entries[key]; ok {
		if e.deleted {
			return nil, nil
		}
		return e.value, nil
	}
	return v.base.GetStateValue(key)
}

func (v *OverlayView) GetResourceFromGroup(group types.StateKey, tag types.StructTag) ([]byte, error) {
	if _, ok := v.entries[group]; !ok {
		members, err := readGroup(v.base, group)
		if err != nil {
			return nil, err
		}
		return members[tag], nil
	}
	blob, err := v.GetStateValue(group)
	if err != nil {
		return nil, err
	}
	members, err := DecodeGroup(blob)
	if err != nil {
		return nil, err
	}
	return members[tag], nil
}

func (v *OverlayView) ResourceGroupSize(group types.StateKey) (uint64, error) {
	blob, err := v.GetStateValue(group)
	return uint64(len(blob)), err
}

func (v *OverlayView) Apply(writes VersionedWrites) {
	for _, w := range writes {
		v.entries[w.Path] = overlayEntry{value: w.Val, deleted: w.Deleted}
	}
}
