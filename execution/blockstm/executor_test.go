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
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/blockstm/execution/exec"
	"github.com/erigontech/blockstm/execution/state"
	"github.com/erigontech/blockstm/execution/types"
	"github.com/erigontech/blockstm/execution/vm"
	"github.com/erigontech/blockstm/execution/vm/simplevm"
	"github.com/erigontech/blockstm/turbo/testlog"
	"github.com/erigontech/blockstm/txnprovider"
)

func newEnv(t *testing.T) *vm.Environment {
	return vm.NewEnvironment(1, vm.Features{AggregatorsEnabled: true}, simplevm.New, testlog.Logger(t, log.LvlWarn))
}

func newExecutor(t *testing.T, concurrency int) *BlockExecutor {
	cfg := DefaultConfig()
	cfg.Concurrency = concurrency
	cfg.AllowFallback = true
	cfg.LogEvery = 0
	cfg.ProfileDeps = true
	return NewBlockExecutor(cfg, testlog.Logger(t, log.LvlWarn))
}

func newBase() *state.InMemoryStateView {
	return state.NewInMemoryStateView(state.BlockExecutionID(1))
}

func execute(t *testing.T, e *BlockExecutor, base state.StateView, txns []*types.Transaction) *BlockOutput {
	t.Helper()
	out, err := e.ExecuteBlock(context.Background(), newEnv(t), txnprovider.NewDefaultTxnProvider(txns), base)
	require.NoError(t, err)
	return out
}

func stripVersions(writes state.VersionedWrites) []string {
	res := make([]string, 0, len(writes))
	for _, w := range writes {
		res = append(res, fmt.Sprintf("%s=%x/%t", w.Path, w.Val, w.Deleted))
	}
	return res
}

func requireSameOutputs(t *testing.T, expected, actual *BlockOutput) {
	t.Helper()
	require.Equal(t, expected.SkippedFrom, actual.SkippedFrom)
	require.Equal(t, expected.Statuses(), actual.Statuses())
	for i := range expected.Outputs {
		e, a := expected.Outputs[i], actual.Outputs[i]
		require.Equal(t, e.Index, a.Index)
		require.Equal(t, e.Err, a.Err, "txn %d", i)
		if e.Output == nil {
			require.Nil(t, a.Output, "txn %d", i)
			continue
		}
		require.Equal(t, e.Output.VMOutput(), a.Output.VMOutput(), "txn %d", i)
		require.Equal(t, stripVersions(e.Writes()), stripVersions(a.Writes()), "txn %d", i)
	}
	require.Equal(t, stripVersions(expected.StateUpdates()), stripVersions(actual.StateUpdates()))
}

// conflictingBlock generates user txns of a few senders that keep touching
// the same handful of keys.
func conflictingBlock(rng *rand.Rand, n int) []*types.Transaction {
	senders := []string{"alice", "bob", "carol"}
	seqs := map[string]uint64{}
	txns := make([]*types.Transaction, 0, n)
	for i := 0; i < n; i++ {
		sender := senders[rng.Intn(len(senders))]
		var ops []types.Op
		for j := 0; j < 1+rng.Intn(4); j++ {
			key := types.StateKey(fmt.Sprintf("k%d", rng.Intn(6)))
			switch rng.Intn(7) {
			case 0:
				ops = append(ops, types.Read(key))
			case 1:
				ops = append(ops, types.Write(key, []byte{byte(i), byte(j)}))
			case 2:
				ops = append(ops, types.Add("hot", uint64(1+rng.Intn(5))))
			case 3:
				ops = append(ops, types.GroupWrite("group", types.StructTag(fmt.Sprintf("T%d", rng.Intn(3))), []byte{byte(i)}))
			case 4:
				ops = append(ops, types.GroupRead("group", "T0"))
			case 5:
				ops = append(ops, types.AggregatorAdd("agg", uint64(rng.Intn(10)), 100))
			case 6:
				ops = append(ops, types.Delete(key))
			}
		}
		if rng.Intn(10) == 0 {
			ops = append(ops, types.Abort(7))
		}
		seq := seqs[sender]
		if rng.Intn(12) == 0 {
			seq++
		} else {
			seqs[sender]++
		}
		txns = append(txns, types.NewUserTransaction(sender, seq, ops...))
	}
	return txns
}

type countingTask struct {
	inner  exec.ExecutorTask
	counts []atomic.Int32
}

func (t *countingTask) ExecuteTransaction(base state.StateView, view state.ExecutorView, txn *types.Transaction, idx types.TxnIndex) exec.ExecutionStatus {
	t.counts[idx].Add(1)
	return t.inner.ExecuteTransaction(base, view, txn, idx)
}

func countingBuilder(counts []atomic.Int32) exec.TaskBuilder {
	return func(env *vm.Environment, view state.StateView) exec.ExecutorTask {
		return &countingTask{inner: exec.NewVMExecutorTask(env, view), counts: counts}
	}
}

type failingTask struct {
	inner   exec.ExecutorTask
	failIdx types.TxnIndex
	status  func(speculative bool) (exec.ExecutionStatus, bool)
}

func (t *failingTask) ExecuteTransaction(base state.StateView, view state.ExecutorView, txn *types.Transaction, idx types.TxnIndex) exec.ExecutionStatus {
	_, speculative := view.(*state.SpeculativeView)
	if idx == t.failIdx {
		if status, ok := t.status(speculative); ok {
			return status
		}
	}
	return t.inner.ExecuteTransaction(base, view, txn, idx)
}

func failingBuilder(failIdx types.TxnIndex, status func(speculative bool) (exec.ExecutionStatus, bool)) exec.TaskBuilder {
	return func(env *vm.Environment, view state.StateView) exec.ExecutorTask {
		return &failingTask{inner: exec.NewVMExecutorTask(env, view), failIdx: failIdx, status: status}
	}
}

func TestIndependentTxnsAllSucceed(t *testing.T) {
	t.Parallel()

	for _, concurrency := range []int{1, 4} {
		t.Run(fmt.Sprintf("concurrency=%d", concurrency), func(t *testing.T) {
			t.Parallel()
			txns := []*types.Transaction{
				types.NewUserTransaction("alice", 0, types.Write("a", []byte{1})),
				types.NewUserTransaction("bob", 0, types.Write("b", []byte{2})),
				types.NewUserTransaction("carol", 0, types.Write("c", []byte{3})),
			}
			out := execute(t, newExecutor(t, concurrency), newBase(), txns)
			require.Equal(t, []exec.StatusKind{exec.Success, exec.Success, exec.Success}, out.Statuses())
			require.Len(t, out.Outputs, 3)
			require.Equal(t, 3, out.SkippedFrom)
			require.False(t, out.Halted())
			require.Equal(t, concurrency > 1, out.Stats.Parallel)
			require.Equal(t, 3*2*simplevm.GasPerOp, out.GasUsed())
		})
	}
}

func TestReconfigurationHaltsBlock(t *testing.T) {
	t.Parallel()

	txns := []*types.Transaction{
		types.NewUserTransaction("alice", 0, types.Write("a", []byte{1})),
		types.NewBlockMetadata(7, types.Reconfigure()),
		types.NewUserTransaction("bob", 0, types.Write("b", []byte{2})),
	}

	counts := make([]atomic.Int32, len(txns))
	seq := execute(t, newExecutor(t, 1).WithTaskBuilder(countingBuilder(counts)), newBase(), txns)
	require.Equal(t, []exec.StatusKind{exec.Success, exec.SkipRest}, seq.Statuses())
	require.Equal(t, 2, seq.SkippedFrom)
	require.True(t, seq.Halted())
	require.Zero(t, counts[2].Load())
	require.True(t, seq.Outputs[1].Output.ChangeSet().HasNewEpochEvent())

	par := execute(t, newExecutor(t, 4), newBase(), txns)
	requireSameOutputs(t, seq, par)
	for _, w := range par.StateUpdates() {
		require.NotEqual(t, types.StateKey("b"), w.Path)
	}
}

func TestDirectGenesisHaltsBlock(t *testing.T) {
	t.Parallel()

	cs := types.NewChangeSet()
	cs.Write("a", types.Creation([]byte{1}))
	cs.WriteGroup("g", "T", types.Creation([]byte{2}))
	txns := []*types.Transaction{
		types.NewDirectGenesis(cs),
		types.NewUserTransaction("alice", 0, types.Write("b", []byte{2})),
	}

	seq := execute(t, newExecutor(t, 1), newBase(), txns)
	require.Equal(t, []exec.StatusKind{exec.MaterializedSkipRest}, seq.Statuses())
	require.True(t, seq.Outputs[0].Output.IsMaterialized())
	require.Equal(t, 1, seq.SkippedFrom)

	par := execute(t, newExecutor(t, 2), newBase(), txns)
	requireSameOutputs(t, seq, par)

	view := newBase()
	view.ApplyWrites(par.StateUpdates())
	got, err := view.GetResourceFromGroup("g", "T")
	require.NoError(t, err)
	require.Equal(t, []byte{2}, got)
}

func TestParallelMatchesSequential(t *testing.T) {
	t.Parallel()

	for seed := int64(0); seed < 8; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			t.Parallel()
			txns := conflictingBlock(rand.New(rand.NewSource(seed)), 96)

			base := newBase()
			base.Set("k0", []byte("base"))
			require.NoError(t, base.SetGroup("group", map[types.StructTag][]byte{"T0": {0xff}}))

			seq := execute(t, newExecutor(t, 1), base, txns)
			require.Equal(t, len(txns), len(seq.Outputs))
			for _, concurrency := range []int{2, 8, 16} {
				par := execute(t, newExecutor(t, concurrency), base, txns)
				requireSameOutputs(t, seq, par)
				require.GreaterOrEqual(t, par.Stats.Executions, len(txns))
				require.Equal(t, len(txns), par.Stats.Validations-par.Stats.ValidationFailures)
				require.NotNil(t, par.Deps)
			}
		})
	}
}

func TestParallelWithReconfigurationMatchesSequential(t *testing.T) {
	t.Parallel()

	txns := conflictingBlock(rand.New(rand.NewSource(42)), 64)
	txns[40] = types.NewBlockMetadata(3, types.Add("hot", 1), types.Reconfigure())

	seq := execute(t, newExecutor(t, 1), newBase(), txns)
	require.Equal(t, 41, seq.SkippedFrom)
	require.Equal(t, exec.SkipRest, seq.Outputs[40].Kind)

	for i := 0; i < 4; i++ {
		requireSameOutputs(t, seq, execute(t, newExecutor(t, 8), newBase(), txns))
	}
}

func TestHotCounter(t *testing.T) {
	t.Parallel()

	const n = 48
	txns := make([]*types.Transaction, n)
	for i := range txns {
		txns[i] = types.NewUserTransaction(fmt.Sprintf("user%d", i), 0, types.Add("hot", 1))
	}

	out := execute(t, newExecutor(t, 8), newBase(), txns)
	require.Len(t, out.Outputs, n)
	for _, o := range out.Outputs {
		require.Equal(t, exec.Success, o.Kind)
	}

	var hot []byte
	for _, w := range out.StateUpdates() {
		if w.Path == "hot" {
			hot = w.Val
		}
	}
	require.Equal(t, uint64(n), new(uint256.Int).SetBytes(hot).Uint64())
}

func TestDiscardedAndAbortedTxnsAreCommitted(t *testing.T) {
	t.Parallel()

	txns := []*types.Transaction{
		types.NewUserTransaction("alice", 0, types.Write("a", []byte{1})).WithInvalidSignature(),
		types.NewUserTransaction("alice", 5),
		types.NewUserTransaction("alice", 0, types.Write("a", []byte{1}), types.Abort(9)),
		types.NewBlockMetadata(1, types.Abort(3)),
		types.NewStateCheckpoint(),
	}
	for _, concurrency := range []int{1, 3} {
		out := execute(t, newExecutor(t, concurrency), newBase(), txns)
		require.Equal(t, []exec.StatusKind{exec.Success, exec.Success, exec.Success, exec.Abort, exec.Success}, out.Statuses())
		require.True(t, out.Outputs[0].Output.Status().IsDiscarded())
		require.True(t, out.Outputs[1].Output.Status().IsDiscarded())
		require.Equal(t, types.KeepAborted(9), out.Outputs[2].Output.Status())
		require.Error(t, out.Outputs[3].Err)
		require.Empty(t, out.Outputs[3].Writes())
		require.Equal(t, []string{fmt.Sprintf("%s=%x/false", simplevm.SequenceNumberKey("alice"), []byte{0, 0, 0, 0, 0, 0, 0, 1})}, stripVersions(out.StateUpdates()))
	}
}

func TestFallbackToSequential(t *testing.T) {
	t.Parallel()

	txns := conflictingBlock(rand.New(rand.NewSource(3)), 16)
	speculativeOnly := func(speculative bool) (exec.ExecutionStatus, bool) {
		return exec.NewDelayedFieldsCodeInvariantError("speculative invariant"), speculative
	}

	seq := execute(t, newExecutor(t, 1), newBase(), txns)

	out := execute(t, newExecutor(t, 4).WithTaskBuilder(failingBuilder(5, speculativeOnly)), newBase(), txns)
	require.True(t, out.Stats.Fallback)
	require.False(t, out.Stats.Parallel)
	requireSameOutputs(t, seq, out)

	e := newExecutor(t, 4).WithTaskBuilder(failingBuilder(5, speculativeOnly))
	e.cfg.AllowFallback = false
	_, err := e.ExecuteBlock(context.Background(), newEnv(t), txnprovider.NewDefaultTxnProvider(txns), newBase())
	require.ErrorIs(t, err, ErrDelayedFieldsCodeInvariant)
}

func TestCorruptedAggregatorFailsBlock(t *testing.T) {
	t.Parallel()

	base := newBase()
	base.Set("agg", []byte{1, 2, 3})
	txns := []*types.Transaction{
		types.NewUserTransaction("alice", 0),
		types.NewUserTransaction("bob", 0, types.AggregatorAdd("agg", 1, 10)),
	}
	for _, concurrency := range []int{1, 2} {
		_, err := newExecutor(t, concurrency).ExecuteBlock(context.Background(), newEnv(t), txnprovider.NewDefaultTxnProvider(txns), base)
		require.ErrorIs(t, err, ErrDelayedFieldsCodeInvariant)
	}
}

func TestSequentialSpeculativeAbortIsInvariantViolation(t *testing.T) {
	t.Parallel()

	always := func(bool) (exec.ExecutionStatus, bool) {
		return exec.NewSpeculativeExecutionAbortError("unexpected"), true
	}
	txns := []*types.Transaction{types.NewStateCheckpoint()}
	_, err := newExecutor(t, 1).WithTaskBuilder(failingBuilder(0, always)).
		ExecuteBlock(context.Background(), newEnv(t), txnprovider.NewDefaultTxnProvider(txns), newBase())
	require.ErrorIs(t, err, ErrInvariantViolation)
}

func TestStreamingProvider(t *testing.T) {
	t.Parallel()

	txns := conflictingBlock(rand.New(rand.NewSource(11)), 32)
	seq := execute(t, newExecutor(t, 1), newBase(), txns)

	provider := txnprovider.NewBlockingTxnsProvider[*types.Transaction](len(txns))
	go func() {
		for _, idx := range rand.New(rand.NewSource(12)).Perm(len(txns)) {
			time.Sleep(time.Millisecond)
			provider.SetTxn(types.TxnIndex(idx), txns[idx])
		}
	}()

	out, err := newExecutor(t, 4).ExecuteBlock(context.Background(), newEnv(t), provider, newBase())
	require.NoError(t, err)
	requireSameOutputs(t, seq, out)
}

func TestHaltCancelsPendingTxns(t *testing.T) {
	t.Parallel()

	provider := txnprovider.NewBlockingTxnsProvider[*types.Transaction](4)
	provider.SetTxn(0, types.NewBlockMetadata(1, types.Reconfigure()))

	out, err := newExecutor(t, 4).ExecuteBlock(context.Background(), newEnv(t), provider, newBase())
	require.NoError(t, err)
	require.Equal(t, []exec.StatusKind{exec.SkipRest}, out.Statuses())
	require.Equal(t, 1, out.SkippedFrom)

	require.False(t, provider.IsReady(1))
	require.NotPanics(t, func() {
		provider.SetTxn(1, types.NewStateCheckpoint())
	})
	require.False(t, provider.IsReady(1))
}

func TestContextCancellation(t *testing.T) {
	t.Parallel()

	provider := txnprovider.NewBlockingTxnsProvider[*types.Transaction](3)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newExecutor(t, 2).ExecuteBlock(ctx, newEnv(t), provider, newBase())
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, provider.IsReady(0))
}

func TestRecordDropsStaleWrites(t *testing.T) {
	t.Parallel()

	pe := &parallelExecutor{versionMap: state.NewVersionMap(), io: state.NewVersionedIO(2)}
	pe.record(0, nil, state.VersionedWrites{
		{Path: "a", V: state.Version{TxIndex: 0}, Val: []byte{1}},
		{Path: "b", V: state.Version{TxIndex: 0}, Val: []byte{1}},
	})
	require.Equal(t, state.MVReadResultDone, pe.versionMap.Read("a", 1).Status())

	// same keys again: nothing to drop
	pe.record(0, nil, state.VersionedWrites{
		{Path: "a", V: state.Version{TxIndex: 0, Incarnation: 1}, Val: []byte{2}},
		{Path: "b", V: state.Version{TxIndex: 0, Incarnation: 1}, Val: []byte{2}},
	})
	require.Equal(t, []byte{2}, pe.versionMap.Read("a", 1).Value())

	pe.record(0, nil, state.VersionedWrites{
		{Path: "b", V: state.Version{TxIndex: 0, Incarnation: 2}, Val: []byte{3}},
	})
	require.Equal(t, state.MVReadResultNone, pe.versionMap.Read("a", 1).Status())
	require.Equal(t, state.Version{TxIndex: 0, Incarnation: 2}, pe.versionMap.Read("b", 1).Version())
	require.False(t, pe.io.HasWritten(0, "a"))
	require.True(t, pe.io.HasWritten(0, "b"))
}

func TestDefaultConfigGroupCacheSize(t *testing.T) {
	t.Parallel()
	require.Equal(t, state.DefaultGroupCacheSize, DefaultConfig().GroupCacheSize)
}
