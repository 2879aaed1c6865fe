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
	"fmt"

	"github.com/erigontech/blockstm/execution/types"
	"github.com/erigontech/blockstm/execution/vm"
)

type StatusKind uint8

const (
	// Success: commit the output and carry on with the block.
	Success StatusKind = iota + 1
	// SkipRest: commit the output, then stop executing the block.
	SkipRest
	// MaterializedSkipRest: like SkipRest for an output that was applied
	// directly and needs no validation.
	MaterializedSkipRest
	// Abort: the transaction failed; nothing it did is committed.
	Abort
	// SpeculativeExecutionAbort: the transaction saw inconsistent
	// speculative state and has to run again.
	SpeculativeExecutionAbort
	// DelayedFieldsCodeInvariant: delayed field handling is broken. Fatal.
	DelayedFieldsCodeInvariant
)

func (k StatusKind) String() string {
	switch k {
	case Success:
		return "Success"
	case SkipRest:
		return "SkipRest"
	case MaterializedSkipRest:
		return "MaterializedSkipRest"
	case Abort:
		return "Abort"
	case SpeculativeExecutionAbort:
		return "SpeculativeExecutionAbortError"
	case DelayedFieldsCodeInvariant:
		return "DelayedFieldsCodeInvariantError"
	default:
		return fmt.Sprintf("StatusKind(%d)", uint8(k))
	}
}

// ExecutionStatus is the outcome of executing one transaction. Exactly one
// of its variants is set; build it with the constructors below and switch on
// Kind. The zero value is invalid.
type ExecutionStatus struct {
	kind   StatusKind
	output *TransactionOutput
	err    error
	msg    string
}

func NewSuccess(out *TransactionOutput) ExecutionStatus {
	return ExecutionStatus{kind: Success, output: out}
}

func NewSkipRest(out *TransactionOutput) ExecutionStatus {
	return ExecutionStatus{kind: SkipRest, output: out}
}

func NewMaterializedSkipRest(out *TransactionOutput) ExecutionStatus {
	return ExecutionStatus{kind: MaterializedSkipRest, output: out}
}

func NewAbort(err error) ExecutionStatus {
	return ExecutionStatus{kind: Abort, err: err}
}

func NewSpeculativeExecutionAbortError(msg string) ExecutionStatus {
	return ExecutionStatus{kind: SpeculativeExecutionAbort, msg: msg}
}

func NewDelayedFieldsCodeInvariantError(msg string) ExecutionStatus {
	return ExecutionStatus{kind: DelayedFieldsCodeInvariant, msg: msg}
}

func (s ExecutionStatus) Kind() StatusKind { return s.kind }

// Output is set for Success, SkipRest and MaterializedSkipRest.
func (s ExecutionStatus) Output() *TransactionOutput { return s.output }

// Err is set for Abort.
func (s ExecutionStatus) Err() error { return s.err }

// Message is set for the two retry/fatal error variants.
func (s ExecutionStatus) Message() string { return s.msg }

func (s ExecutionStatus) HasOutput() bool {
	switch s.kind {
	case Success, SkipRest, MaterializedSkipRest:
		return true
	default:
		return false
	}
}

// HaltsBlock reports whether no later transaction of the block may commit
// once this status is committed.
func (s ExecutionStatus) HaltsBlock() bool {
	return s.kind == SkipRest || s.kind == MaterializedSkipRest
}

func (s ExecutionStatus) String() string {
	switch s.kind {
	case Abort:
		return fmt.Sprintf("Abort(%v)", s.err)
	case SpeculativeExecutionAbort, DelayedFieldsCodeInvariant:
		return fmt.Sprintf("%s(%s)", s.kind, s.msg)
	default:
		return s.kind.String()
	}
}

// TransactionOutput wraps a VM output once it leaves the VM. It is never
// modified afterwards, so it can be shared freely between the task that
// produced it and the scheduler.
type TransactionOutput struct {
	out          *vm.Output
	materialized bool
}

func NewTransactionOutput(out *vm.Output) *TransactionOutput {
	return &TransactionOutput{out: out}
}

// NewCommitted wraps an output that was applied directly to state.
func NewCommitted(out *vm.Output) *TransactionOutput {
	return &TransactionOutput{out: out, materialized: true}
}

func (o *TransactionOutput) VMOutput() *vm.Output {
	return o.out
}

func (o *TransactionOutput) ChangeSet() *types.ChangeSet {
	return o.out.ChangeSet
}

func (o *TransactionOutput) GasUsed() uint64 {
	return o.out.GasUsed
}

func (o *TransactionOutput) Status() types.TransactionStatus {
	return o.out.Status
}

func (o *TransactionOutput) IsMaterialized() bool {
	return o.materialized
}
