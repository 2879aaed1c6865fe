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

	"github.com/erigontech/blockstm/execution/types"
)

// TxnProvider supplies the transactions of a single block by index. The
// number of transactions is fixed before execution starts and GetTxn may be
// called concurrently from many workers.
type TxnProvider[T any] interface {
	NumTxns() int
	// GetTxn returns the transaction at idx. Implementations may block until
	// the transaction becomes available. Panics if idx is out of range.
	GetTxn(idx types.TxnIndex) T
	// ToSlice returns all transactions in index order.
	ToSlice() []T
}

// Canceller is implemented by providers whose readers may block. It releases
// every waiting reader by filling the outstanding slots with sentinel.
type Canceller[T any] interface {
	CancelPending(sentinel T) int
}

var _ TxnProvider[*types.Transaction] = (*DefaultTxnProvider[*types.Transaction])(nil)

// DefaultTxnProvider serves a block whose transactions are all known up front.
type DefaultTxnProvider[T any] struct {
	txns []T
}

func NewDefaultTxnProvider[T any](txns []T) *DefaultTxnProvider[T] {
	return &DefaultTxnProvider[T]{txns: txns}
}

func (p *DefaultTxnProvider[T]) NumTxns() int {
	return len(p.txns)
}

func (p *DefaultTxnProvider[T]) GetTxn(idx types.TxnIndex) T {
	if int(idx) >= len(p.txns) {
		panic(fmt.Sprintf("txn index %d out of range, block has %d txns", idx, len(p.txns)))
	}
	return p.txns[idx]
}

func (p *DefaultTxnProvider[T]) ToSlice() []T {
	out := make([]T, len(p.txns))
	copy(out, p.txns)
	return out
}
