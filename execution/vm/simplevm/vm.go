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

// Package simplevm is a small op interpreter implementing the VM contract.
// It exists to drive the executor end to end: transactions are lists of
// state ops rather than bytecode.
package simplevm

import (
	"errors"
	"fmt"

	"github.com/erigontech/blockstm/execution/state"
	"github.com/erigontech/blockstm/execution/types"
	"github.com/erigontech/blockstm/execution/vm"
)

const (
	EpochKey types.StateKey = "0x1::reconfiguration::Configuration"
	BlockKey types.StateKey = "0x1::block::BlockResource"

	GasPerOp uint64 = 10
)

func SequenceNumberKey(sender string) types.StateKey {
	return types.StateKey("0x1::account::" + sender + "::sequence_number")
}

var _ vm.VM = (*VM)(nil)

type VM struct {
	features vm.Features
	viewID   state.StateViewID
}

// New matches vm.Builder.
func New(env *vm.Environment, view state.StateView) vm.VM {
	return &VM{features: env.Features, viewID: view.ID()}
}

func (v *VM) ShouldRestartExecution(cs *types.ChangeSet) bool {
	return cs.HasNewEpochEvent()
}

func (v *VM) AsResolver(view state.ExecutorView) vm.Resolver {
	return view
}

func (v *VM) ExecuteSingleTransaction(txn *types.Transaction, resolver vm.Resolver, logCtx vm.LogContext) (*vm.Status, *vm.Output, error) {
	switch txn.Kind {
	case types.UserTransactionKind:
		return v.executeUser(txn, resolver, logCtx)
	case types.BlockMetadataKind:
		ops := append([]types.Op{types.Write(BlockKey, encodeU64(txn.Round))}, txn.Ops...)
		return v.executeSystem(ops, resolver)
	case types.GenesisTransactionKind:
		if txn.Payload == nil || txn.Payload.Kind != types.WriteSetScript {
			return nil, nil, vm.NewStatus(vm.UnknownInvariantViolationError, "direct write set is not executable")
		}
		return v.executeSystem(txn.Payload.Script, resolver)
	case types.StateCheckpointKind, types.BlockEpilogueKind:
		return vm.ExecutedStatus(), vm.NewOutput(nil, 0, types.KeepSuccess()), nil
	default:
		return nil, nil, vm.NewStatus(vm.UnknownInvariantViolationError, fmt.Sprintf("unsupported transaction kind %s", txn.Kind))
	}
}

func (v *VM) executeUser(txn *types.Transaction, resolver vm.Resolver, logCtx vm.LogContext) (*vm.Status, *vm.Output, error) {
	if !txn.SignatureValid() {
		return vm.ExecutedStatus(), vm.DiscardedOutput(vm.InvalidSignature), nil
	}

	s := newSession(resolver, v.features, txn.GasLimit)
	seqKey := SequenceNumberKey(txn.Sender)
	rawSeq, err := s.read(seqKey)
	if err != nil {
		return failedStatus(err)
	}
	switch seq := decodeU64(rawSeq); {
	case txn.SequenceNumber < seq:
		return vm.ExecutedStatus(), vm.DiscardedOutput(vm.SequenceNumberTooOld), nil
	case txn.SequenceNumber > seq:
		return vm.ExecutedStatus(), vm.DiscardedOutput(vm.SequenceNumberTooNew), nil
	}

	err = s.charge(GasPerOp)
	for i := 0; err == nil && i < len(txn.Ops); i++ {
		if err = s.charge(GasPerOp); err == nil {
			err = s.exec(txn.Ops[i])
		}
	}

	var abort moveAbort
	switch {
	case err == nil:
		if err := s.write(seqKey, encodeU64(txn.SequenceNumber+1)); err != nil {
			return failedStatus(err)
		}
		return vm.ExecutedStatus(), vm.NewOutput(s.cs, s.gasUsed, types.KeepSuccess()), nil
	case errors.As(err, &abort):
		logCtx.Logger.Trace("transaction aborted", "code", abort.code)
		return keepFailed(s, seqKey, txn, &vm.Status{Code: vm.Aborted, AbortCode: abort.code}, abort.code)
	case errors.Is(err, outOfGas{}):
		return keepFailed(s, seqKey, txn, vm.NewStatus(vm.OutOfGas, ""), uint64(vm.OutOfGas))
	default:
		return failedStatus(err)
	}
}

// keepFailed charges a failed transaction: its effects are dropped but the
// sequence number still advances.
func keepFailed(s *session, seqKey types.StateKey, txn *types.Transaction, status *vm.Status, code uint64) (*vm.Status, *vm.Output, error) {
	gasUsed := s.gasUsed
	s.cs = types.NewChangeSet()
	s.values = map[types.StateKey]pendingValue{}
	s.members = map[types.StateKey]map[types.StructTag]pendingValue{}
	if err := s.write(seqKey, encodeU64(txn.SequenceNumber+1)); err != nil {
		return failedStatus(err)
	}
	return status, vm.NewOutput(s.cs, gasUsed, types.KeepAborted(code)), nil
}

// failedStatus maps an error that prevented producing an output to the
// status code the executor acts on.
func failedStatus(err error) (*vm.Status, *vm.Output, error) {
	status := statusOf(err)
	return status, vm.DiscardedOutput(status.Code), nil
}

func statusOf(err error) *vm.Status {
	var (
		dep       state.ErrDependency
		invariant invariantViolation
		abort     moveAbort
	)
	switch {
	case errors.As(err, &dep):
		return vm.NewStatus(vm.SpeculativeExecutionAbortError, dep.Error())
	case errors.As(err, &invariant):
		return vm.NewStatus(invariant.code, invariant.msg)
	case errors.As(err, &abort):
		return &vm.Status{Code: vm.Aborted, Message: abort.Error(), AbortCode: abort.code}
	default:
		return vm.NewStatus(vm.UnknownInvariantViolationError, err.Error())
	}
}

// executeSystem runs the ops of a transaction that is not allowed to fail.
// Any failure is reported through the error return.
func (v *VM) executeSystem(ops []types.Op, resolver vm.Resolver) (*vm.Status, *vm.Output, error) {
	s := newSession(resolver, v.features, 0)
	for _, op := range ops {
		if err := s.exec(op); err != nil {
			return nil, nil, statusOf(err)
		}
	}
	return vm.ExecutedStatus(), vm.NewOutput(s.cs, 0, types.KeepSuccess()), nil
}

func (v *VM) ExecuteDirectWriteSetPayload(base state.StateView, cs *types.ChangeSet, logCtx vm.LogContext) (*vm.Output, error) {
	for _, key := range cs.Keys() {
		op, ok := cs.Writes[key]
		if !ok {
			continue
		}
		existing, err := base.GetStateValue(key)
		if err != nil {
			return nil, statusOf(err)
		}
		switch {
		case op.Kind == types.WriteOpCreation && existing != nil:
			return nil, vm.NewStatus(vm.UnknownInvariantViolationError, fmt.Sprintf("creation of existing resource %s", key))
		case op.Kind != types.WriteOpCreation && existing == nil:
			return nil, vm.NewStatus(vm.UnknownInvariantViolationError, fmt.Sprintf("%s of missing resource %s", op.Kind, key))
		}
	}
	logCtx.Logger.Debug("applied direct write set", "writes", len(cs.Writes), "groups", len(cs.GroupWrites), "events", len(cs.Events))
	return vm.NewOutput(cs.Clone(), 0, types.KeepSuccess()), nil
}
