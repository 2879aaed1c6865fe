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

package ledger

import (
	"context"
	"testing"

	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/blockstm/execution/blockstm"
	"github.com/erigontech/blockstm/execution/state"
	"github.com/erigontech/blockstm/execution/types"
	"github.com/erigontech/blockstm/execution/vm"
	"github.com/erigontech/blockstm/execution/vm/simplevm"
	"github.com/erigontech/blockstm/turbo/testlog"
	"github.com/erigontech/blockstm/txnprovider"
)

func executeBlock(t *testing.T, concurrency int, txns []*types.Transaction) *blockstm.BlockOutput {
	t.Helper()
	logger := testlog.Logger(t, log.LvlWarn)
	cfg := blockstm.DefaultConfig()
	cfg.Concurrency = concurrency
	cfg.LogEvery = 0
	env := vm.NewEnvironment(1, vm.Features{AggregatorsEnabled: true}, simplevm.New, logger)
	out, err := blockstm.NewBlockExecutor(cfg, logger).ExecuteBlock(context.Background(), env,
		txnprovider.NewDefaultTxnProvider(txns), state.NewInMemoryStateView(state.BlockExecutionID(1)))
	require.NoError(t, err)
	return out
}

func reconfigBlock() []*types.Transaction {
	return []*types.Transaction{
		types.NewUserTransaction("alice", 0, types.Write("a", []byte{1}), types.Emit("transfer", []byte{1})),
		types.NewUserTransaction("alice", 1, types.Write("a", []byte{2})).WithInvalidSignature(),
		types.NewUserTransaction("bob", 0, types.Write("b", []byte{1}), types.Abort(9)),
		types.NewBlockMetadata(3, types.Reconfigure()),
		types.NewUserTransaction("carol", 0, types.Write("c", []byte{1})),
	}
}

func TestLedgerUpdateOutput(t *testing.T) {
	t.Parallel()

	txns := reconfigBlock()
	u, err := NewLedgerUpdateOutput(10, txns, executeBlock(t, 1, txns))
	require.NoError(t, err)

	require.Equal(t, []types.TransactionStatus{
		types.KeepSuccess(),
		types.Discard(uint64(vm.InvalidSignature)),
		types.KeepAborted(9),
		types.KeepSuccess(),
		types.Retry(),
	}, u.StatusesForInputTxns())

	require.Equal(t, 3, u.NumTxns())
	require.Equal(t, Version(10), u.FirstVersion())
	require.Equal(t, Version(12), u.LastVersion())
	require.Equal(t, Version(13), u.NextVersion())
	for i, txn := range u.ToCommit() {
		require.Equal(t, Version(10+i), txn.Version)
	}
	require.Same(t, txns[3], u.ToCommit()[2].Transaction)
	require.True(t, u.ToCommit()[2].IsReconfig)
	require.NoError(t, u.EnsureEndsWithStateCheckpoint())

	require.Len(t, u.SubscribableEvents(), 1)
	require.True(t, u.SubscribableEvents()[0].IsNewEpochEvent())
	require.Len(t, u.ToCommit()[0].Events, 1)

	var epochUpdated bool
	for _, w := range u.StateUpdatesUntilLastCheckpoint() {
		require.NotEqual(t, types.StateKey("c"), w.Path)
		epochUpdated = epochUpdated || w.Path == simplevm.EpochKey
	}
	require.True(t, epochUpdated)

	hashes := u.TransactionInfoHashes()
	require.Len(t, hashes, 3)
	require.NotEqual(t, hashes[0], hashes[1])
	require.NotEqual(t, hashes[1], hashes[2])

	suffix := u.ReconfigSuffix()
	require.Zero(t, suffix.NumTxns())
	require.Equal(t, u.NextVersion(), suffix.FirstVersion())
	require.Equal(t, u.NextVersion(), suffix.NextVersion())
}

func TestTransactionInfosMatchAcrossModes(t *testing.T) {
	t.Parallel()

	txns := reconfigBlock()
	seq, err := NewLedgerUpdateOutput(0, txns, executeBlock(t, 1, txns))
	require.NoError(t, err)
	par, err := NewLedgerUpdateOutput(0, txns, executeBlock(t, 4, txns))
	require.NoError(t, err)
	require.Equal(t, seq.TransactionInfoHashes(), par.TransactionInfoHashes())

	infos := make([]TransactionInfo, 0, par.NumTxns())
	for _, txn := range par.ToCommit() {
		infos = append(infos, txn.Info)
	}
	require.NoError(t, seq.EnsureTransactionInfosMatch(infos))

	require.ErrorIs(t, seq.EnsureTransactionInfosMatch(infos[:2]), ErrInfosMismatch)

	infos[1].GasUsed++
	require.ErrorIs(t, seq.EnsureTransactionInfosMatch(infos), ErrInfosMismatch)
}

func TestEnsureEndsWithStateCheckpoint(t *testing.T) {
	t.Parallel()

	txns := []*types.Transaction{
		types.NewUserTransaction("alice", 0, types.Write("a", []byte{1})),
		types.NewUserTransaction("bob", 0, types.Write("b", []byte{1})),
	}
	u, err := NewLedgerUpdateOutput(0, txns, executeBlock(t, 1, txns))
	require.NoError(t, err)
	require.ErrorIs(t, u.EnsureEndsWithStateCheckpoint(), ErrNotEndingWithCheckpoint)
	require.Nil(t, u.StateUpdatesUntilLastCheckpoint())

	txns = append(txns, types.NewStateCheckpoint())
	out := executeBlock(t, 2, txns)
	u, err = NewLedgerUpdateOutput(0, txns, out)
	require.NoError(t, err)
	require.NoError(t, u.EnsureEndsWithStateCheckpoint())
	require.Equal(t, out.StateUpdates(), u.StateUpdatesUntilLastCheckpoint())
}

func TestFailedSystemTxnIsDiscarded(t *testing.T) {
	t.Parallel()

	txns := []*types.Transaction{
		types.NewBlockMetadata(1, types.Abort(3)),
		types.NewStateCheckpoint(),
	}
	u, err := NewLedgerUpdateOutput(0, txns, executeBlock(t, 1, txns))
	require.NoError(t, err)
	require.Equal(t, []types.TransactionStatus{types.Discard(uint64(vm.Aborted)), types.KeepSuccess()}, u.StatusesForInputTxns())
	require.Equal(t, 1, u.NumTxns())
}

func TestLedgerUpdateOutputEdgeCases(t *testing.T) {
	t.Parallel()

	_, err := NewLedgerUpdateOutput(0, reconfigBlock(), &blockstm.BlockOutput{NumTxns: 2})
	require.Error(t, err)

	u, err := NewLedgerUpdateOutput(0, nil, &blockstm.BlockOutput{})
	require.NoError(t, err)
	require.NoError(t, u.EnsureEndsWithStateCheckpoint())
	require.Panics(t, func() { u.LastVersion() })
}
