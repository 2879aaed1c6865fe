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

package blockstm

import (
	"fmt"
	"sort"
	"time"

	"github.com/erigontech/blockstm/execution/exec"
	"github.com/erigontech/blockstm/execution/state"
	"github.com/erigontech/blockstm/execution/types"
)

// TxnOutput is the committed record of one transaction: the outcome of its
// final execution.
type TxnOutput struct {
	Index  types.TxnIndex
	Kind   exec.StatusKind
	Output *exec.TransactionOutput
	Err    error

	writes state.VersionedWrites
}

func newTxnOutput(idx int, status exec.ExecutionStatus, writes state.VersionedWrites) TxnOutput {
	return TxnOutput{
		Index:  types.TxnIndex(idx),
		Kind:   status.Kind(),
		Output: status.Output(),
		Err:    status.Err(),
		writes: writes,
	}
}

// Writes returns the whole-key writes this transaction committed.
func (o TxnOutput) Writes() state.VersionedWrites {
	return o.writes
}

func (o TxnOutput) String() string {
	if o.Err != nil {
		return fmt.Sprintf("%d:%s(%v)", o.Index, o.Kind, o.Err)
	}
	return fmt.Sprintf("%d:%s", o.Index, o.Kind)
}

type Stats struct {
	Parallel           bool
	Fallback           bool
	Executions         int
	SpeculativeAborts  int
	Validations        int
	ValidationFailures int
	Duration           time.Duration
}

// BlockOutput holds the committed outputs of a block in index order. When a
// transaction halted the block, the outputs end with it and SkippedFrom is
// the index of the first transaction that was not committed.
type BlockOutput struct {
	Outputs     []TxnOutput
	SkippedFrom int
	NumTxns     int
	Stats       Stats
	// Deps is the read dependency graph of the final executions. It is only
	// set when dependency profiling is enabled.
	Deps map[int]map[int]bool
}

func (b *BlockOutput) Halted() bool {
	return b.SkippedFrom < b.NumTxns
}

func (b *BlockOutput) Statuses() []exec.StatusKind {
	kinds := make([]exec.StatusKind, len(b.Outputs))
	for i, o := range b.Outputs {
		kinds[i] = o.Kind
	}
	return kinds
}

// StateUpdates folds the writes of all committed transactions into the last
// write of every key, ordered by key.
func (b *BlockOutput) StateUpdates() state.VersionedWrites {
	last := map[types.StateKey]state.VersionedWrite{}
	for _, o := range b.Outputs {
		for _, w := range o.writes {
			last[w.Path] = w
		}
	}
	updates := make(state.VersionedWrites, 0, len(last))
	for _, w := range last {
		updates = append(updates, w)
	}
	sort.Slice(updates, func(i, j int) bool { return updates[i].Path < updates[j].Path })
	return updates
}

func (b *BlockOutput) GasUsed() (gas uint64) {
	for _, o := range b.Outputs {
		if o.Output != nil {
			gas += o.Output.GasUsed()
		}
	}
	return gas
}
