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
	"errors"
	"fmt"
	"testing"

	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/erigontech/blockstm/execution/state"
	"github.com/erigontech/blockstm/execution/types"
	"github.com/erigontech/blockstm/execution/vm"
	"github.com/erigontech/blockstm/turbo/testlog"
)

func newMockTask(t *testing.T) (*VMExecutorTask, *vm.MockVM, *state.InMemoryStateView) {
	ctrl := gomock.NewController(t)
	mockVM := vm.NewMockVM(ctrl)
	base := state.NewInMemoryStateView(state.BlockExecutionID(1))
	env := vm.NewEnvironment(1, vm.Features{}, func(*vm.Environment, state.StateView) vm.VM { return mockVM }, testlog.Logger(t, log.LvlDebug))
	task := NewVMExecutorTask(env, base)
	require.Equal(t, state.BlockExecutionID(1), task.ViewID())
	return task, mockVM, base
}

func keepOutput(cs *types.ChangeSet) *vm.Output {
	return vm.NewOutput(cs, 7, types.KeepSuccess())
}

func TestExecuteTransactionClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  *vm.Status
		output  *vm.Output
		err     error
		restart bool
		want    StatusKind
	}{
		{
			name:   "executed",
			status: vm.ExecutedStatus(),
			output: keepOutput(nil),
			want:   Success,
		},
		{
			name:    "executed with restart",
			status:  vm.ExecutedStatus(),
			output:  keepOutput(nil),
			restart: true,
			want:    SkipRest,
		},
		{
			name:   "discarded output is still committed",
			status: vm.ExecutedStatus(),
			output: vm.DiscardedOutput(vm.SequenceNumberTooOld),
			want:   Success,
		},
		{
			name:   "speculative code wins over restart",
			status: vm.NewStatus(vm.SpeculativeExecutionAbortError, "read estimate"),
			output: keepOutput(nil),
			want:   SpeculativeExecutionAbort,
		},
		{
			name:   "delayed field code wins over restart",
			status: vm.NewStatus(vm.DelayedMaterializationCodeInvariantError, "bad delta"),
			output: keepOutput(nil),
			want:   DelayedFieldsCodeInvariant,
		},
		{
			name: "err with speculative code",
			err:  vm.NewStatus(vm.SpeculativeExecutionAbortError, "read estimate"),
			want: SpeculativeExecutionAbort,
		},
		{
			name: "wrapped err with delayed field code",
			err:  fmt.Errorf("prologue: %w", vm.NewStatus(vm.DelayedMaterializationCodeInvariantError, "bad delta")),
			want: DelayedFieldsCodeInvariant,
		},
		{
			name: "err with other code",
			err:  vm.NewStatus(vm.Aborted, "prologue aborted"),
			want: Abort,
		},
		{
			name: "plain err",
			err:  errors.New("boom"),
			want: Abort,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			task, mockVM, base := newMockTask(t)
			view := state.NewOverlayView(base)
			txn := types.NewBlockMetadata(1)

			mockVM.EXPECT().AsResolver(view).Return(view).Times(1)
			mockVM.EXPECT().
				ExecuteSingleTransaction(txn, view, gomock.Any()).
				Return(tc.status, tc.output, tc.err).
				Times(1)
			if tc.err == nil && tc.status.StatusCode() == vm.Executed {
				mockVM.EXPECT().ShouldRestartExecution(tc.output.ChangeSet).Return(tc.restart).Times(1)
			}

			got := task.ExecuteTransaction(base, view, txn, 3)
			require.Equal(t, tc.want, got.Kind(), got.String())

			switch got.Kind() {
			case Success, SkipRest:
				require.Same(t, tc.output, got.Output().VMOutput())
				require.False(t, got.Output().IsMaterialized())
			case Abort:
				require.Equal(t, tc.err, got.Err())
			case SpeculativeExecutionAbort, DelayedFieldsCodeInvariant:
				require.NotEmpty(t, got.Message())
			}
		})
	}
}

func TestDirectWriteSetPayload(t *testing.T) {
	t.Parallel()

	cs := types.NewChangeSet()
	cs.Write("k", types.Creation([]byte("v")))
	txn := types.NewDirectGenesis(cs)

	t.Run("applied", func(t *testing.T) {
		t.Parallel()

		task, mockVM, base := newMockTask(t)
		out := keepOutput(cs)
		mockVM.EXPECT().ExecuteDirectWriteSetPayload(base, cs, gomock.Any()).Return(out, nil).Times(1)

		got := task.ExecuteTransaction(base, state.NewOverlayView(base), txn, 0)
		require.Equal(t, MaterializedSkipRest, got.Kind())
		require.True(t, got.Output().IsMaterialized())
		require.Equal(t, uint64(7), got.Output().GasUsed())
	})

	t.Run("rejected", func(t *testing.T) {
		t.Parallel()

		task, mockVM, base := newMockTask(t)
		// even a speculative code never turns a direct write set into a retry
		rejection := vm.NewStatus(vm.SpeculativeExecutionAbortError, "nope")
		mockVM.EXPECT().ExecuteDirectWriteSetPayload(base, cs, gomock.Any()).Return(nil, rejection).Times(1)

		got := task.ExecuteTransaction(base, state.NewOverlayView(base), txn, 0)
		require.Equal(t, Abort, got.Kind())
		require.ErrorIs(t, got.Err(), rejection)
	})

	t.Run("invalid signature is executed normally", func(t *testing.T) {
		t.Parallel()

		task, mockVM, base := newMockTask(t)
		view := state.NewOverlayView(base)
		unsigned := txn.WithInvalidSignature()
		mockVM.EXPECT().AsResolver(view).Return(view).Times(1)
		mockVM.EXPECT().ExecuteSingleTransaction(unsigned, view, gomock.Any()).
			Return(vm.ExecutedStatus(), vm.DiscardedOutput(vm.InvalidSignature), nil).Times(1)
		mockVM.EXPECT().ShouldRestartExecution(gomock.Any()).Return(false).Times(1)

		got := task.ExecuteTransaction(base, view, unsigned, 0)
		require.Equal(t, Success, got.Kind())
		require.True(t, got.Output().Status().IsDiscarded())
	})
}

func TestFailPoint(t *testing.T) {
	FailPoint.Store(true)
	defer FailPoint.Store(false)

	task, _, base := newMockTask(t)
	got := task.ExecuteTransaction(base, state.NewOverlayView(base), types.NewStateCheckpoint(), 0)
	require.Equal(t, DelayedFieldsCodeInvariant, got.Kind())
	require.Equal(t, "fail points error", got.Message())
}

func TestExecutionStatusAccessors(t *testing.T) {
	t.Parallel()

	out := NewTransactionOutput(keepOutput(nil))
	require.True(t, NewSuccess(out).HasOutput())
	require.False(t, NewSuccess(out).HaltsBlock())
	require.True(t, NewSkipRest(out).HaltsBlock())
	require.True(t, NewMaterializedSkipRest(NewCommitted(out.VMOutput())).HaltsBlock())
	require.False(t, NewAbort(errors.New("x")).HasOutput())
	require.Nil(t, NewAbort(errors.New("x")).Output())
	require.Equal(t, "SpeculativeExecutionAbortError(m)", NewSpeculativeExecutionAbortError("m").String())
	require.Equal(t, StatusKind(0), ExecutionStatus{}.Kind())
}
