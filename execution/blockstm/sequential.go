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
	"context"
	"fmt"

	"github.com/erigontech/blockstm/execution/exec"
	"github.com/erigontech/blockstm/execution/state"
	"github.com/erigontech/blockstm/execution/types"
	"github.com/erigontech/blockstm/execution/vm"
	"github.com/erigontech/blockstm/txnprovider"
)

func (e *BlockExecutor) executeSequential(ctx context.Context, env *vm.Environment, provider txnprovider.TxnProvider[*types.Transaction], base *state.CachedStateView) (*BlockOutput, error) {
	numTxns := provider.NumTxns()
	out := &BlockOutput{
		Outputs:     make([]TxnOutput, 0, numTxns),
		SkippedFrom: numTxns,
		NumTxns:     numTxns,
	}

	task := e.builder(env, base)
	overlay := state.NewOverlayView(base)

	for idx := 0; idx < numTxns; idx++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		txn := provider.GetTxn(types.TxnIndex(idx))
		if txn == nil {
			return nil, fmt.Errorf("txn %d: cancelled by provider", idx)
		}
		status := task.ExecuteTransaction(base, overlay, txn, types.TxnIndex(idx))
		out.Stats.Executions++
		mxExecutions.Inc()

		switch status.Kind() {
		case exec.SpeculativeExecutionAbort:
			// nothing is speculative here, every read sees committed state
			return nil, fmt.Errorf("%w: txn %d: speculative abort in sequential execution: %s", ErrInvariantViolation, idx, status.Message())
		case exec.DelayedFieldsCodeInvariant:
			return nil, fmt.Errorf("%w: txn %d: %s", ErrDelayedFieldsCodeInvariant, idx, status.Message())
		}

		var writes state.VersionedWrites
		if status.HasOutput() {
			var view state.ExecutorView = overlay
			if status.Output().IsMaterialized() {
				view = base
			}
			var err error
			if writes, err = state.MaterializeWrites(view, status.Output().ChangeSet(), state.Version{TxIndex: idx}); err != nil {
				return nil, fmt.Errorf("txn %d: %w", idx, err)
			}
			overlay.Apply(writes)
		}

		out.Outputs = append(out.Outputs, newTxnOutput(idx, status, writes))
		if status.HaltsBlock() {
			out.SkippedFrom = idx + 1
			break
		}
	}
	return out, nil
}
