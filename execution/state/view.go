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

	"github.com/erigontech/blockstm/execution/types"
)

type StateViewIDKind uint8

const (
	Miscellaneous StateViewIDKind = iota
	BlockExecution
	ChunkExecution
	TransactionValidation
)

// StateViewID tags a base view with the purpose it was opened for. It is
// carried into every log line an execution task emits.
type StateViewID struct {
	Kind  StateViewIDKind
	Value uint64
}

func BlockExecutionID(blockID uint64) StateViewID {
	return StateViewID{Kind: BlockExecution, Value: blockID}
}

func ChunkExecutionID(firstVersion uint64) StateViewID {
	return StateViewID{Kind: ChunkExecution, Value: firstVersion}
}

func TransactionValidationID(baseVersion uint64) StateViewID {
	return StateViewID{Kind: TransactionValidation, Value: baseVersion}
}

func MiscellaneousID() StateViewID {
	return StateViewID{Kind: Miscellaneous}
}

func (id StateViewID) String() string {
	switch id.Kind {
	case BlockExecution:
		return fmt.Sprintf("block_execution(%d)", id.Value)
	case ChunkExecution:
		return fmt.Sprintf("chunk_execution(%d)", id.Value)
	case TransactionValidation:
		return fmt.Sprintf("txn_validation(%d)", id.Value)
	default:
		return "miscellaneous"
	}
}

// StateView is a plain, non-speculative read interface over ledger state.
// GetStateValue returns a nil slice and no error for a missing key.
type StateView interface {
	ID() StateViewID
	GetStateValue(key types.StateKey) ([]byte, error)
}

type ResourceGroupView interface {
	GetResourceFromGroup(group types.StateKey, tag types.StructTag) ([]byte, error)
	// ResourceGroupSize is the encoded size of the whole group, zero when the
	// group does not exist.
	ResourceGroupSize(group types.StateKey) (uint64, error)
}

// ExecutorView is the view a transaction executes against. Speculative
// implementations track every read so it can be validated later.
type ExecutorView interface {
	GetStateValue(key types.StateKey) ([]byte, error)
	ResourceGroupView
}

// groupSource is implemented by base views that keep decoded groups around.
type groupSource interface {
	GetResourceGroup(group types.StateKey) (map[types.StructTag][]byte, error)
}

func readGroup(view StateView, group types.StateKey) (map[types.StructTag][]byte, error) {
	if gs, ok := view.(groupSource); ok {
		return gs.GetResourceGroup(group)
	}
	blob, err := view.GetStateValue(group)
	if err != nil {
		return nil, err
	}
	return DecodeGroup(blob)
}
