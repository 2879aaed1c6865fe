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
	"time"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/blockstm/execution/exec"
	"github.com/erigontech/blockstm/execution/state"
	"github.com/erigontech/blockstm/execution/types"
	"github.com/erigontech/blockstm/execution/vm"
	"github.com/erigontech/blockstm/txnprovider"
)

// BlockExecutor executes the transactions of a block and commits their
// outcomes in order, either sequentially or speculatively in parallel.
type BlockExecutor struct {
	cfg     Config
	builder exec.TaskBuilder
	logger  log.Logger
}

func NewBlockExecutor(cfg Config, logger log.Logger) *BlockExecutor {
	if logger == nil {
		logger = log.Root()
	}
	return &BlockExecutor{cfg: cfg, builder: exec.BuildVMExecutorTask, logger: logger}
}

// WithTaskBuilder replaces the way execution tasks are created.
func (e *BlockExecutor) WithTaskBuilder(builder exec.TaskBuilder) *BlockExecutor {
	e.builder = builder
	return e
}

func (e *BlockExecutor) Config() Config {
	return e.cfg
}

// ExecuteBlock executes every transaction supplied by provider on top of
// base. The returned outputs are identical for the sequential and the
// parallel mode.
func (e *BlockExecutor) ExecuteBlock(ctx context.Context, env *vm.Environment, provider txnprovider.TxnProvider[*types.Transaction], base state.StateView) (*BlockOutput, error) {
	start := time.Now()
	numTxns := provider.NumTxns()
	logger := e.logger.New("view", base.ID(), "txns", numTxns)

	mxBlockTxns.SetInt(numTxns)
	defer mxBlockDuration.ObserveDuration(start)

	cached, err := state.NewCachedStateView(base, e.cfg.GroupCacheSize)
	if err != nil {
		return nil, err
	}

	var out *BlockOutput
	if e.cfg.parallel() && numTxns > 1 {
		out, err = e.executeParallel(ctx, env, provider, cached, logger)
		if errors.Is(err, ErrFallbackToSequential) {
			logger.Warn("[blockstm] parallel execution failed, falling back to sequential", "err", err)
			mxFallbacks.Inc()
			out, err = e.executeSequential(ctx, env, provider, cached)
			if out != nil {
				out.Stats.Fallback = true
			}
		}
	} else {
		out, err = e.executeSequential(ctx, env, provider, cached)
	}
	if err != nil {
		return nil, err
	}

	out.Stats.Duration = time.Since(start)
	lvl := log.LvlDebug
	if e.cfg.SlowBlock > 0 && out.Stats.Duration > e.cfg.SlowBlock {
		lvl = log.LvlInfo
	}
	logger.Log(lvl, "[blockstm] exec summary",
		"parallel", out.Stats.Parallel,
		"committed", len(out.Outputs),
		"skippedFrom", out.SkippedFrom,
		"executions", out.Stats.Executions,
		"aborts", out.Stats.SpeculativeAborts,
		"validations", out.Stats.Validations,
		"validationFailures", out.Stats.ValidationFailures,
		"gas", out.GasUsed(),
		"took", out.Stats.Duration)
	return out, nil
}
