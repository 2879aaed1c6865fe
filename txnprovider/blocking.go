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

package txnprovider

import (
	"fmt"
	"sync"

	"github.com/erigontech/blockstm/execution/types"
)

type slotState uint8

const (
	slotWaiting slotState = iota
	slotReady
	slotCancelled
)

type txnSlot[T any] struct {
	mu    sync.Mutex
	cond  *sync.Cond
	state slotState
	txn   T
	// late is set by the first SetTxn after the slot was cancelled
	late bool
}

var (
	_ TxnProvider[*types.Transaction] = (*BlockingTxnsProvider[*types.Transaction])(nil)
	_ Canceller[*types.Transaction]   = (*BlockingTxnsProvider[*types.Transaction])(nil)
)

// BlockingTxnsProvider lets execution start before every transaction of the
// block has arrived. Each slot is filled exactly once by SetTxn; readers of a
// slot that is still empty park on the slot's condition variable until it is
// filled.
type BlockingTxnsProvider[T any] struct {
	slots []*txnSlot[T]
}

func NewBlockingTxnsProvider[T any](numTxns int) *BlockingTxnsProvider[T] {
	slots := make([]*txnSlot[T], numTxns)
	for i := range slots {
		s := &txnSlot[T]{}
		s.cond = sync.NewCond(&s.mu)
		slots[i] = s
	}
	return &BlockingTxnsProvider[T]{slots: slots}
}

func (p *BlockingTxnsProvider[T]) slot(idx types.TxnIndex) *txnSlot[T] {
	if int(idx) >= len(p.slots) {
		panic(fmt.Sprintf("txn index %d out of range, block has %d txns", idx, len(p.slots)))
	}
	return p.slots[idx]
}

// SetTxn publishes the transaction at idx and wakes every reader waiting on
// it. Setting the same slot twice panics. A slot released by CancelPending
// drops the first late transaction and panics on a second one.
func (p *BlockingTxnsProvider[T]) SetTxn(idx types.TxnIndex, txn T) {
	s := p.slot(idx)
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case slotReady:
		panic(fmt.Sprintf("Trying to add a txn that is already present, idx %d", idx))
	case slotCancelled:
		if s.late {
			panic(fmt.Sprintf("Trying to add a txn that is already present, idx %d", idx))
		}
		s.late = true
		return
	}
	s.txn = txn
	s.state = slotReady
	s.cond.Broadcast()
}

func (p *BlockingTxnsProvider[T]) NumTxns() int {
	return len(p.slots)
}

// GetTxn returns the transaction at idx, waiting for SetTxn if needed.
func (p *BlockingTxnsProvider[T]) GetTxn(idx types.TxnIndex) T {
	s := p.slot(idx)
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.state == slotWaiting {
		s.cond.Wait()
	}
	return s.txn
}

// IsReady reports whether idx has been filled, without blocking.
func (p *BlockingTxnsProvider[T]) IsReady(idx types.TxnIndex) bool {
	s := p.slot(idx)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == slotReady
}

// ToSlice waits for every slot and returns the transactions in order.
func (p *BlockingTxnsProvider[T]) ToSlice() []T {
	out := make([]T, len(p.slots))
	for i := range p.slots {
		out[i] = p.GetTxn(types.TxnIndex(i))
	}
	return out
}

// CancelPending fills every slot that is still waiting with sentinel, waking
// its readers, and returns how many slots it released.
func (p *BlockingTxnsProvider[T]) CancelPending(sentinel T) int {
	var released int
	for _, s := range p.slots {
		s.mu.Lock()
		if s.state == slotWaiting {
			s.txn = sentinel
			s.state = slotCancelled
			s.cond.Broadcast()
			released++
		}
		s.mu.Unlock()
	}
	return released
}
