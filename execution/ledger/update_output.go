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
	"errors"
	"fmt"
	"sort"

	"github.com/erigontech/blockstm/execution/blockstm"
	"github.com/erigontech/blockstm/execution/exec"
	"github.com/erigontech/blockstm/execution/state"
	"github.com/erigontech/blockstm/execution/types"
	"github.com/erigontech/blockstm/execution/vm"
)

var (
	ErrNotEndingWithCheckpoint = errors.New("block not ending with a state checkpoint")
	ErrInfosMismatch           = errors.New("transaction infos don't match")
)

// UpdateOutput is the ledger view of an executed block: the status of every
// input transaction and the kept transactions with the versions they are
// committed at. It is immutable once built.
type UpdateOutput struct {
	statuses     []types.TransactionStatus
	toCommit     []TransactionToCommit
	events       []types.Event
	infoHashes   []Hash
	checkpointed state.VersionedWrites
	firstVersion Version
}

// NewLedgerUpdateOutput numbers the kept transactions of out starting at
// parentNextVersion, the next version of the parent ledger.
func NewLedgerUpdateOutput(parentNextVersion Version, txns []*types.Transaction, out *blockstm.BlockOutput) (*UpdateOutput, error) {
	if len(txns) != out.NumTxns {
		return nil, fmt.Errorf("block output has %d txns, %d given", out.NumTxns, len(txns))
	}

	u := &UpdateOutput{
		statuses:     make([]types.TransactionStatus, len(txns)),
		firstVersion: parentNextVersion,
	}

	lastCheckpoint := -1
	for i := range txns {
		if i >= len(out.Outputs) {
			u.statuses[i] = types.Retry()
			continue
		}
		o := out.Outputs[i]
		if o.Kind == exec.Abort {
			code := vm.UnknownInvariantViolationError
			if c, ok := vm.StatusCodeOf(o.Err); ok {
				code = c
			}
			u.statuses[i] = types.Discard(uint64(code))
			continue
		}

		status := o.Output.Status()
		u.statuses[i] = status
		if !status.IsKeep() {
			continue
		}

		var events []types.Event
		if cs := o.Output.ChangeSet(); cs != nil {
			events = cs.Events
		}
		info, err := NewTransactionInfo(txns[i], o.Writes(), events, o.Output.GasUsed(), status)
		if err != nil {
			return nil, fmt.Errorf("txn %d: %w", i, err)
		}
		hash, err := info.Hash()
		if err != nil {
			return nil, fmt.Errorf("txn %d: %w", i, err)
		}

		isReconfig := o.Output.ChangeSet().HasNewEpochEvent()
		u.toCommit = append(u.toCommit, TransactionToCommit{
			Version:     parentNextVersion + Version(len(u.toCommit)),
			Transaction: txns[i],
			Writes:      o.Writes(),
			Events:      events,
			GasUsed:     o.Output.GasUsed(),
			Status:      status,
			Info:        info,
			IsReconfig:  isReconfig,
		})
		u.infoHashes = append(u.infoHashes, hash)
		for _, e := range events {
			if e.IsNewEpochEvent() {
				u.events = append(u.events, e)
			}
		}
		if isReconfig || txns[i].IsNonReconfigBlockEnding() {
			lastCheckpoint = len(u.toCommit) - 1
		}
	}

	if lastCheckpoint >= 0 {
		u.checkpointed = foldWrites(u.toCommit[:lastCheckpoint+1])
	}
	return u, nil
}

func foldWrites(txns []TransactionToCommit) state.VersionedWrites {
	last := map[types.StateKey]state.VersionedWrite{}
	for _, txn := range txns {
		for _, w := range txn.Writes {
			last[w.Path] = w
		}
	}
	writes := make(state.VersionedWrites, 0, len(last))
	for _, w := range last {
		writes = append(writes, w)
	}
	sort.Slice(writes, func(i, j int) bool { return writes[i].Path < writes[j].Path })
	return writes
}

// StatusesForInputTxns has one status per input transaction. Transactions
// after a reconfiguration are marked for retry.
func (u *UpdateOutput) StatusesForInputTxns() []types.TransactionStatus {
	return u.statuses
}

func (u *UpdateOutput) ToCommit() []TransactionToCommit {
	return u.toCommit
}

// SubscribableEvents are the events of kept transactions that consumers
// outside the ledger subscribe to.
func (u *UpdateOutput) SubscribableEvents() []types.Event {
	return u.events
}

func (u *UpdateOutput) TransactionInfoHashes() []Hash {
	return u.infoHashes
}

// StateUpdatesUntilLastCheckpoint is the folded state change of every kept
// transaction up to the last checkpoint, nil if the block has none.
func (u *UpdateOutput) StateUpdatesUntilLastCheckpoint() state.VersionedWrites {
	return u.checkpointed
}

func (u *UpdateOutput) NumTxns() int {
	return len(u.toCommit)
}

func (u *UpdateOutput) FirstVersion() Version {
	return u.firstVersion
}

func (u *UpdateOutput) NextVersion() Version {
	return u.firstVersion + Version(len(u.toCommit))
}

func (u *UpdateOutput) LastVersion() Version {
	next := u.NextVersion()
	if next == 0 {
		panic("empty block before genesis")
	}
	return next - 1
}

// EnsureEndsWithStateCheckpoint checks that the block ends either with a
// reconfiguration, whose followers are retried, or with a block ending
// transaction.
func (u *UpdateOutput) EnsureEndsWithStateCheckpoint() error {
	if len(u.toCommit) == 0 {
		return nil
	}
	last := u.toCommit[len(u.toCommit)-1]
	if last.IsReconfig || last.Transaction.IsNonReconfigBlockEnding() {
		return nil
	}
	return fmt.Errorf("%w: last txn %s at version %d", ErrNotEndingWithCheckpoint, last.Transaction.Kind, last.Version)
}

func (u *UpdateOutput) EnsureTransactionInfosMatch(infos []TransactionInfo) error {
	if len(u.toCommit) != len(infos) {
		return fmt.Errorf("%w: lengths don't match. %d vs %d", ErrInfosMismatch, len(u.toCommit), len(infos))
	}
	for i, txn := range u.toCommit {
		if txn.Info != infos[i] {
			return fmt.Errorf("%w: version:%d, txn_info:%s, expected_txn_info:%s", ErrInfosMismatch, txn.Version, txn.Info, infos[i])
		}
	}
	return nil
}

// ReconfigSuffix is the output of the blocks that follow a reconfiguration
// in the same round: nothing is committed and the version does not move.
func (u *UpdateOutput) ReconfigSuffix() *UpdateOutput {
	return &UpdateOutput{firstVersion: u.NextVersion()}
}
