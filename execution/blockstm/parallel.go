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
	"errors"
	"fmt"
	"time"

	"github.com/ledgerwatch/log/v3"
	"golang.org/x/sync/errgroup"

	"github.com/erigontech/blockstm/execution/exec"
	"github.com/erigontech/blockstm/execution/state"
	"github.com/erigontech/blockstm/execution/types"
	"github.com/erigontech/blockstm/execution/vm"
	"github.com/erigontech/blockstm/txnprovider"
)

type txState uint8

const (
	txPending txState = iota // queued or executing
	txWaiting                // parked until a dependency re-executes
	txExecuted
	txCommitted
)

type execTask struct {
	idx         int
	incarnation int
}

type execResult struct {
	execTask
	status exec.ExecutionStatus
	reads  state.VersionedReads
	writes state.VersionedWrites
	dep    int
	err    error
}

// parallelExecutor is the state of one parallel block run. Everything but
// the version map is owned by the coordinating goroutine; workers only see
// the tasks they are handed and the version map.
type parallelExecutor struct {
	cfg      Config
	env      *vm.Environment
	provider txnprovider.TxnProvider[*types.Transaction]
	base     *state.CachedStateView
	builder  exec.TaskBuilder
	logger   log.Logger

	numTxns    int
	versionMap *state.VersionMap
	io         *state.VersionedIO
	tasks      chan execTask
	results    chan execResult

	incarnation []int
	states      []txState
	estimate    []bool
	statuses    []exec.ExecutionStatus
	waiters     map[int][]int

	next   int
	halted bool
	out    *BlockOutput
}

func (e *BlockExecutor) executeParallel(ctx context.Context, env *vm.Environment, provider txnprovider.TxnProvider[*types.Transaction], base *state.CachedStateView, logger log.Logger) (*BlockOutput, error) {
	numTxns := provider.NumTxns()
	pe := &parallelExecutor{
		cfg:         e.cfg,
		env:         env,
		provider:    provider,
		base:        base,
		builder:     e.builder,
		logger:      logger,
		numTxns:     numTxns,
		versionMap:  state.NewVersionMap(),
		io:          state.NewVersionedIO(numTxns),
		tasks:       make(chan execTask, numTxns),
		results:     make(chan execResult, numTxns),
		incarnation: make([]int, numTxns),
		states:      make([]txState, numTxns),
		estimate:    make([]bool, numTxns),
		statuses:    make([]exec.ExecutionStatus, numTxns),
		waiters:     map[int][]int{},
		out: &BlockOutput{
			Outputs:     make([]TxnOutput, 0, numTxns),
			SkippedFrom: numTxns,
			NumTxns:     numTxns,
			Stats:       Stats{Parallel: true},
		},
	}
	return pe.run(ctx)
}

func (pe *parallelExecutor) run(ctx context.Context) (*BlockOutput, error) {
	workersCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := min(pe.cfg.Concurrency, pe.numTxns)
	g, gctx := errgroup.WithContext(workersCtx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			return pe.worker(gctx)
		})
	}

	for idx := 0; idx < pe.numTxns; idx++ {
		pe.dispatch(idx)
	}

	err := pe.coordinate(gctx)
	cancel()
	// A fallback run needs the remaining txns, so only a finished or failed
	// block releases workers blocked on missing txns.
	if !errors.Is(err, ErrFallbackToSequential) {
		if c, ok := pe.provider.(txnprovider.Canceller[*types.Transaction]); ok {
			if n := c.CancelPending(nil); n > 0 {
				pe.logger.Debug("[blockstm] cancelled pending txns", "count", n)
			}
		}
	}
	if werr := g.Wait(); werr != nil {
		err = werr
	}
	if err != nil {
		return nil, err
	}

	if pe.cfg.ProfileDeps {
		pe.profile()
	}
	return pe.out, nil
}

func (pe *parallelExecutor) worker(ctx context.Context) error {
	task := pe.builder(pe.env, pe.base)
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-pe.tasks:
			txn := pe.provider.GetTxn(types.TxnIndex(t.idx))
			if ctx.Err() != nil {
				return nil
			}
			if txn == nil {
				return fmt.Errorf("txn %d: cancelled by provider", t.idx)
			}
			res := pe.execute(task, txn, t)
			select {
			case pe.results <- res:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (pe *parallelExecutor) execute(task exec.ExecutorTask, txn *types.Transaction, t execTask) execResult {
	view := state.NewSpeculativeView(pe.base, pe.versionMap, t.idx, t.incarnation)
	res := execResult{
		execTask: t,
		status:   task.ExecuteTransaction(pe.base, view, txn, types.TxnIndex(t.idx)),
		dep:      -1,
	}

	if res.status.HasOutput() {
		var matView state.ExecutorView = view
		if res.status.Output().IsMaterialized() {
			matView = pe.base
		}
		writes, err := state.MaterializeWrites(matView, res.status.Output().ChangeSet(), view.Version())
		var depErr state.ErrDependency
		switch {
		case errors.As(err, &depErr):
			res.status = exec.NewSpeculativeExecutionAbortError(depErr.Error())
		case err != nil:
			res.err = fmt.Errorf("txn %d: %w", t.idx, err)
		default:
			res.writes = writes
		}
	}

	res.reads = view.Reads()
	if dep, ok := view.Dependency(); ok {
		res.dep = dep
	}
	return res
}

func (pe *parallelExecutor) coordinate(ctx context.Context) error {
	var logEvery <-chan time.Time
	if pe.cfg.LogEvery > 0 {
		ticker := time.NewTicker(pe.cfg.LogEvery)
		defer ticker.Stop()
		logEvery = ticker.C
	}

	for pe.next < pe.numTxns && !pe.halted {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-logEvery:
			pe.logger.Info("[blockstm] executing", "committed", pe.next, "executions", pe.out.Stats.Executions, "aborts", pe.out.Stats.SpeculativeAborts)
		case res := <-pe.results:
			if err := pe.handle(res); err != nil {
				return err
			}
			pe.tryCommit()
		}
	}
	return nil
}

func (pe *parallelExecutor) dispatch(idx int) {
	pe.states[idx] = txPending
	pe.tasks <- execTask{idx: idx, incarnation: pe.incarnation[idx]}
}

func (pe *parallelExecutor) handle(res execResult) error {
	pe.out.Stats.Executions++
	mxExecutions.Inc()
	if res.err != nil {
		return res.err
	}

	idx := res.idx
	switch res.status.Kind() {
	case exec.SpeculativeExecutionAbort:
		pe.out.Stats.SpeculativeAborts++
		mxSpeculativeAborts.Inc()
		pe.incarnation[idx]++
		if res.dep >= 0 && pe.estimate[res.dep] {
			pe.states[idx] = txWaiting
			pe.waiters[res.dep] = append(pe.waiters[res.dep], idx)
			return nil
		}
		pe.dispatch(idx)
		return nil
	case exec.DelayedFieldsCodeInvariant:
		if pe.cfg.AllowFallback {
			return fmt.Errorf("%w: txn %d: %s", ErrFallbackToSequential, idx, res.status.Message())
		}
		return fmt.Errorf("%w: txn %d: %s", ErrDelayedFieldsCodeInvariant, idx, res.status.Message())
	}

	pe.record(idx, res.reads, res.writes)
	pe.statuses[idx] = res.status
	pe.states[idx] = txExecuted
	pe.estimate[idx] = false
	for _, waiter := range pe.waiters[idx] {
		pe.dispatch(waiter)
	}
	delete(pe.waiters, idx)
	return nil
}

// record replaces the previous writes of idx in the version map.
func (pe *parallelExecutor) record(idx int, reads state.VersionedReads, writes state.VersionedWrites) {
	prev := pe.io.WriteSet(idx)
	pe.io.RecordRead(idx, reads)
	pe.io.RecordWrite(idx, writes)

	if prev.HasNewWrite(writes) {
		for _, w := range prev {
			if !pe.io.HasWritten(idx, w.Path) {
				pe.versionMap.Delete(w.Path, idx)
			}
		}
	}
	pe.versionMap.FlushVersionedWrites(writes)
}

// tryCommit validates and commits executed txns in index order. Every txn
// below pe.next is committed, so a txn that validates at pe.next read the
// final state of the block.
func (pe *parallelExecutor) tryCommit() {
	for pe.next < pe.numTxns && pe.states[pe.next] == txExecuted {
		idx := pe.next
		pe.out.Stats.Validations++
		if !state.ValidateVersion(idx, pe.io, pe.versionMap) {
			pe.out.Stats.ValidationFailures++
			mxValidationFailures.Inc()
			for _, w := range pe.io.WriteSet(idx) {
				pe.versionMap.MarkEstimate(w.Path, idx)
			}
			pe.estimate[idx] = true
			pe.incarnation[idx]++
			pe.dispatch(idx)
			return
		}

		pe.states[idx] = txCommitted
		status := pe.statuses[idx]
		pe.out.Outputs = append(pe.out.Outputs, newTxnOutput(idx, status, pe.io.WriteSet(idx)))
		pe.next++
		if status.HaltsBlock() {
			pe.halted = true
			pe.out.SkippedFrom = pe.next
			return
		}
	}
}

func (pe *parallelExecutor) profile() {
	committed := state.NewVersionedIO(pe.next)
	for i := 0; i < pe.next; i++ {
		committed.RecordRead(i, pe.io.ReadSet(i))
		committed.RecordWrite(i, pe.io.WriteSet(i))
	}
	dag := state.BuildDAG(committed, pe.logger)
	pe.out.Deps = state.GetDep(committed)
	pe.logger.Debug("[blockstm] dependency dag", "txns", dag.GetOrder(), "edges", dag.GetSize())
}
