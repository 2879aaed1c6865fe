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

package vm

import (
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/blockstm/execution/state"
	"github.com/erigontech/blockstm/execution/types"
)

//go:generate mockgen -typed=true -source=./vm.go -destination=./vm_mock.go -package=vm VM

// Output is what the VM produced for one transaction.
type Output struct {
	ChangeSet *types.ChangeSet
	GasUsed   uint64
	Status    types.TransactionStatus
}

func NewOutput(cs *types.ChangeSet, gasUsed uint64, status types.TransactionStatus) *Output {
	if cs == nil {
		cs = types.NewChangeSet()
	}
	return &Output{ChangeSet: cs, GasUsed: gasUsed, Status: status}
}

// DiscardedOutput is an output with no effects, rejected with code.
func DiscardedOutput(code StatusCode) *Output {
	return NewOutput(nil, 0, types.Discard(uint64(code)))
}

func (o *Output) IsDiscarded() bool {
	return o.Status.IsDiscarded()
}

// Resolver is the VM's read access to state for a single execution.
type Resolver interface {
	state.ExecutorView
}

type VM interface {
	// ExecuteSingleTransaction runs txn against resolver. A nil error means
	// the VM produced an output; the returned status may still carry a code
	// that tells the caller to retry or give up on the whole block. An error
	// is only returned for transactions that must never fail.
	ExecuteSingleTransaction(txn *types.Transaction, resolver Resolver, logCtx LogContext) (*Status, *Output, error)
	// ExecuteDirectWriteSetPayload applies a pre-built change set, consulting
	// nothing but the non-speculative base view.
	ExecuteDirectWriteSetPayload(base state.StateView, cs *types.ChangeSet, logCtx LogContext) (*Output, error)
	// ShouldRestartExecution reports whether the change set ends the block
	// early, for example because it starts a new epoch.
	ShouldRestartExecution(cs *types.ChangeSet) bool
	AsResolver(view state.ExecutorView) Resolver
}

// LogContext identifies the execution a log line belongs to.
type LogContext struct {
	ViewID   state.StateViewID
	TxnIndex types.TxnIndex
	Logger   log.Logger
}

func NewLogContext(logger log.Logger, id state.StateViewID, idx types.TxnIndex) LogContext {
	return LogContext{ViewID: id, TxnIndex: idx, Logger: logger.New("view", id, "txn", idx)}
}

// Builder creates a VM bound to the state the owning task was created for.
type Builder func(env *Environment, view state.StateView) VM

type Features struct {
	// AggregatorsEnabled turns on delayed field ops.
	AggregatorsEnabled bool
}

// Environment holds the chain configuration a VM is created from. It is
// immutable and shared by every execution task of a block.
type Environment struct {
	ChainID  uint64
	Features Features
	Logger   log.Logger

	builder Builder
}

func NewEnvironment(chainID uint64, features Features, builder Builder, logger log.Logger) *Environment {
	if logger == nil {
		logger = log.Root()
	}
	return &Environment{ChainID: chainID, Features: features, Logger: logger, builder: builder}
}

func (e *Environment) NewVM(view state.StateView) VM {
	return e.builder(e, view)
}
