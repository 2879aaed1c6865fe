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

package exec

import (
	"sync/atomic"

	"github.com/erigontech/blockstm/execution/state"
	"github.com/erigontech/blockstm/execution/types"
	"github.com/erigontech/blockstm/execution/vm"
)

// ExecutorTask executes single transactions on behalf of a worker. A task is
// created once per worker and reused for every transaction the worker picks
// up; it keeps no per-transaction state.
type ExecutorTask interface {
	ExecuteTransaction(baseView state.StateView, view state.ExecutorView, txn *types.Transaction, idx types.TxnIndex) ExecutionStatus
}

// TaskBuilder creates the task of one worker.
type TaskBuilder func(env *vm.Environment, view state.StateView) ExecutorTask

// FailPoint, when set, forces every execution to report a delayed field
// invariant failure. Tests use it to exercise the fatal path.
var FailPoint atomic.Bool

var _ ExecutorTask = (*VMExecutorTask)(nil)

type VMExecutorTask struct {
	vm  vm.VM
	id  state.StateViewID
	env *vm.Environment
}

func NewVMExecutorTask(env *vm.Environment, view state.StateView) *VMExecutorTask {
	return &VMExecutorTask{
		vm:  env.NewVM(view),
		id:  view.ID(),
		env: env,
	}
}

// BuildVMExecutorTask matches TaskBuilder.
func BuildVMExecutorTask(env *vm.Environment, view state.StateView) ExecutorTask {
	return NewVMExecutorTask(env, view)
}

func (t *VMExecutorTask) ViewID() state.StateViewID {
	return t.id
}

// ExecuteTransaction runs txn and classifies the outcome. A direct write set
// is applied against baseView only; everything else runs against view.
func (t *VMExecutorTask) ExecuteTransaction(baseView state.StateView, view state.ExecutorView, txn *types.Transaction, idx types.TxnIndex) ExecutionStatus {
	logCtx := vm.NewLogContext(t.env.Logger, t.id, idx)

	if FailPoint.Load() {
		return NewDelayedFieldsCodeInvariantError("fail points error")
	}

	if cs, ok := txn.AsValidDirectWriteSetPayload(); ok {
		out, err := t.vm.ExecuteDirectWriteSetPayload(baseView, cs, logCtx)
		if err != nil {
			return NewAbort(err)
		}
		logCtx.Logger.Info("Reconfiguration occurred: restart required")
		return NewMaterializedSkipRest(NewCommitted(out))
	}

	resolver := t.vm.AsResolver(view)
	status, out, err := t.vm.ExecuteSingleTransaction(txn, resolver, logCtx)
	if err != nil {
		// Only transactions that must never fail take this path. Their
		// failures are still checked for the engine level codes first.
		if code, ok := vm.StatusCodeOf(err); ok {
			switch code {
			case vm.SpeculativeExecutionAbortError:
				return NewSpeculativeExecutionAbortError(vm.MessageOf(err))
			case vm.DelayedMaterializationCodeInvariantError:
				return NewDelayedFieldsCodeInvariantError(vm.MessageOf(err))
			}
		}
		return NewAbort(err)
	}

	switch status.StatusCode() {
	case vm.SpeculativeExecutionAbortError:
		return NewSpeculativeExecutionAbortError(status.Message)
	case vm.DelayedMaterializationCodeInvariantError:
		return NewDelayedFieldsCodeInvariantError(status.Message)
	}

	if out.IsDiscarded() {
		logCtx.Logger.Trace("Transaction discarded", "status", out.Status)
	}
	if t.vm.ShouldRestartExecution(out.ChangeSet) {
		logCtx.Logger.Info("Reconfiguration occurred: restart required")
		return NewSkipRest(NewTransactionOutput(out))
	}
	return NewSuccess(NewTransactionOutput(out))
}
