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
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/tidwall/btree"

	"github.com/erigontech/blockstm/execution/types"
)

type Version struct {
	TxIndex     int
	Incarnation int
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.TxIndex, v.Incarnation)
}

const (
	MVReadResultDone       = 0
	MVReadResultDependency = 1
	MVReadResultNone       = 2
)

type ReadResult struct {
	depIdx      int
	incarnation int
	value       []byte
	deleted     bool
}

func (res ReadResult) DepIdx() int      { return res.depIdx }
func (res ReadResult) Incarnation() int { return res.incarnation }
func (res ReadResult) Value() []byte    { return res.value }
func (res ReadResult) Deleted() bool    { return res.deleted }
func (res ReadResult) Version() Version { return Version{res.depIdx, res.incarnation} }

func (res ReadResult) Status() int {
	if res.depIdx != -1 {
		if res.incarnation == -1 {
			return MVReadResultDependency
		}
		return MVReadResultDone
	}
	return MVReadResultNone
}

type writeCell struct {
	flag        uint
	incarnation int
	value       []byte
	deleted     bool
}

const (
	flagDone     = 0
	flagEstimate = 1
)

type txCells struct {
	mu sync.RWMutex
	tm *btree.Map[int, *writeCell]
}

// VersionMap holds, for every key, the value written by each transaction of
// the block that wrote it. Reads at index i observe the highest write below
// i, falling back to storage when there is none.
type VersionMap struct {
	s *xsync.Map[types.StateKey, *txCells]
}

func NewVersionMap() *VersionMap {
	return &VersionMap{s: xsync.NewMap[types.StateKey, *txCells]()}
}

func (vm *VersionMap) getKeyCells(k types.StateKey, create bool) *txCells {
	if cells, ok := vm.s.Load(k); ok || !create {
		return cells
	}
	cells, _ := vm.s.LoadOrStore(k, &txCells{tm: btree.NewMap[int, *writeCell](8)})
	return cells
}

func (vm *VersionMap) Write(k types.StateKey, v Version, value []byte, deleted bool) {
	cells := vm.getKeyCells(k, true)
	cells.mu.Lock()
	defer cells.mu.Unlock()

	if ci, ok := cells.tm.Get(v.TxIndex); ok && ci.incarnation > v.Incarnation {
		panic(fmt.Errorf("existing transaction value does not have lower incarnation: %s, %s", k, v))
	}
	cells.tm.Set(v.TxIndex, &writeCell{
		flag:        flagDone,
		incarnation: v.Incarnation,
		value:       value,
		deleted:     deleted,
	})
}

// MarkEstimate flags the write of txIdx as likely to change. Readers hitting
// it get a dependency instead of the value.
func (vm *VersionMap) MarkEstimate(k types.StateKey, txIdx int) {
	cells := vm.getKeyCells(k, false)
	if cells == nil {
		panic(fmt.Errorf("path must already exist: %s", k))
	}
	cells.mu.Lock()
	defer cells.mu.Unlock()

	ci, ok := cells.tm.Get(txIdx)
	if !ok {
		panic(fmt.Errorf("should not happen - cell should be present for path: %s, tx: %d", k, txIdx))
	}
	ci.flag = flagEstimate
}

func (vm *VersionMap) Delete(k types.StateKey, txIdx int) {
	cells := vm.getKeyCells(k, false)
	if cells == nil {
		return
	}
	cells.mu.Lock()
	defer cells.mu.Unlock()
	cells.tm.Delete(txIdx)
}

func (vm *VersionMap) Read(k types.StateKey, txIdx int) (res ReadResult) {
	res.depIdx = -1
	res.incarnation = -1

	cells := vm.getKeyCells(k, false)
	if cells == nil || txIdx == 0 {
		return
	}

	cells.mu.RLock()
	defer cells.mu.RUnlock()

	cells.tm.Descend(txIdx-1, func(idx int, c *writeCell) bool {
		switch c.flag {
		case flagDone:
			res.depIdx = idx
			res.incarnation = c.incarnation
			res.value = c.value
			res.deleted = c.deleted
		case flagEstimate:
			res.depIdx = idx
		default:
			panic(fmt.Errorf("should not happen - unknown flag value"))
		}
		return false
	})
	return
}

// FlushVersionedWrites publishes a transaction's whole write set.
func (vm *VersionMap) FlushVersionedWrites(writes VersionedWrites) {
	for _, w := range writes {
		vm.Write(w.Path, w.V, w.Val, w.Deleted)
	}
}

func (vm *VersionMap) Size() int {
	return vm.s.Size()
}
