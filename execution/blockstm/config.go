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
	"errors"
	"runtime"
	"time"

	"github.com/erigontech/blockstm/common/dbg"
	"github.com/erigontech/blockstm/execution/state"
)

var (
	// ErrDelayedFieldsCodeInvariant is returned when a transaction reports a
	// broken deferred-field invariant. The block cannot be executed.
	ErrDelayedFieldsCodeInvariant = errors.New("delayed fields code invariant error")
	// ErrFallbackToSequential is returned by a parallel run that gave up and
	// wants the block to be executed sequentially.
	ErrFallbackToSequential = errors.New("fallback to sequential execution")
	// ErrInvariantViolation is returned when the executor reaches a state it
	// should never reach, for example a speculative abort without speculation.
	ErrInvariantViolation = errors.New("block executor invariant violation")
)

type Config struct {
	// Concurrency is the number of execution workers. 0 or 1 executes the
	// block sequentially.
	Concurrency int
	// AllowFallback retries a block sequentially when the parallel run hits
	// an engine invariant error.
	AllowFallback bool
	// LogEvery is the progress log interval. 0 disables progress logs.
	LogEvery time.Duration
	// GroupCacheSize is the number of decoded resource groups kept per block.
	GroupCacheSize int
	// ProfileDeps builds the dependency DAG of every parallel block.
	ProfileDeps bool
	// SlowBlock is the duration above which a block is logged at Info.
	SlowBlock time.Duration
}

func DefaultConfig() Config {
	concurrency := dbg.ExecConcurrency
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(-1)
	}
	groupCacheSize := dbg.GroupCacheSize
	if groupCacheSize <= 0 {
		groupCacheSize = state.DefaultGroupCacheSize
	}
	return Config{
		Concurrency:    concurrency,
		AllowFallback:  dbg.AllowFallback,
		LogEvery:       dbg.LogEvery,
		GroupCacheSize: groupCacheSize,
		ProfileDeps:    dbg.ProfileDeps,
		SlowBlock:      dbg.SlowBlockThreshold,
	}
}

func (c Config) parallel() bool {
	return c.Concurrency > 1
}
