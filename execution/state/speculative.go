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
	"fmt"
	"sort"

	"github.com/erigontech/blockstm/execution/types"
)

// ErrDependency is returned by a speculative read that hit a value another
// transaction is about to rewrite.
type ErrDependency struct {
	TxIndex    int
	Dependency int
	Path       types.StateKey
}

func (e ErrDependency) Error() string {
	return fmt.Sprintf("txn %d read estimate of txn %d at %s", e.TxIndex, e.Dependency, e.Path)
}

type cachedRead struct {
	value []byte
	read  VersionedRead
}

var _ ExecutorView = (*SpeculativeView)(nil)

// SpeculativeView serves reads of one incarnation of one transaction from the
// version map, falling back to the base view. The first read of each key is
// remembered and answers every later read of that key, so an incarnation
// always sees a consistent snapshot.
//
// A SpeculativeView is owned by a single worker and is not safe for
// concurrent use.
type SpeculativeView struct {
	base        StateView
	versionMap  *VersionMap
	txIdx       int
	incarnation int

	reads map[types.StateKey]cachedRead
	dep   int
}

func NewSpeculativeView(base StateView, versionMap *VersionMap, txIdx, incarnation int) *SpeculativeView {
	return &SpeculativeView{
		base:        base,
		versionMap:  versionMap,
		txIdx:       txIdx,
		incarnation: incarnation,
		reads:       map[types.StateKey]cachedRead{},
		dep:         -1,
	}
}

func (v *SpeculativeView) Version() Version {
	return Version{TxIndex: v.txIdx, Incarnation: v.incarnation}
}

func (v *SpeculativeView) GetStateValue(key types.StateKey) ([]byte, error) {
	if cr, ok := v.reads[key]; ok {
		return cr.value, nil
	}

	res := v.versionMap.Read(key, v.txIdx)
	cr := cachedRead{read: VersionedRead{Path: key, V: res.Version()}}

	switch res.Status() {
	case MVReadResultDone:
		cr.read.Kind = ReadKindMap
		if !res.Deleted() {
			cr.value = res.Value()
		}
	case MVReadResultDependency:
		v.dep = res.DepIdx()
		return nil, ErrDependency{TxIndex: v.txIdx, Dependency: res.DepIdx(), Path: key}
	case MVReadResultNone:
		value, err := v.base.GetStateValue(key)
		if err != nil {
			return nil, err
		}
		cr.read.Kind = ReadKindStorage
		cr.value = value
	}

	v.reads[key] = cr
	return cr.value, nil
}

func (v *SpeculativeView) GetResourceFromGroup(group types.StateKey, tag types.StructTag) ([]byte, error) {
	blob, err := v.GetStateValue(group)
	if err != nil {
		return nil, err
	}
	if cr := v.reads[group]; cr.read.Kind == ReadKindStorage {
		// untouched by this block, so the base view may have it decoded
		members, err := readGroup(v.base, group)
		if err != nil {
			return nil, err
		}
		return members[tag], nil
	}
	members, err := DecodeGroup(blob)
	if err != nil {
		return nil, err
	}
	return members[tag], nil
}

func (v *SpeculativeView) ResourceGroupSize(group types.StateKey) (uint64, error) {
	blob, err := v.GetStateValue(group)
	return uint64(len(blob)), err
}

// Dependency returns the transaction whose pending write interrupted this
// incarnation, if any.
func (v *SpeculativeView) Dependency() (int, bool) {
	return v.dep, v.dep >= 0
}

// Reads returns the tracked read set ordered by key.
func (v *SpeculativeView) Reads() VersionedReads {
	reads := make(VersionedReads, 0, len(v.reads))
	for _, cr := range v.reads {
		reads = append(reads, cr.read)
	}
	sort.Slice(reads, func(i, j int) bool { return reads[i].Path < reads[j].Path })
	return reads
}
