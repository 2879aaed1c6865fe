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

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWorkloadIsDeterministic(t *testing.T) {
	t.Parallel()

	w := workload{Txns: 50, Senders: 5, Keys: 10, HotRatio: 0.5, ReconfigAt: -1, Seed: 7}
	txns1, base1, err := w.generate()
	require.NoError(t, err)
	txns2, base2, err := w.generate()
	require.NoError(t, err)

	require.Equal(t, txns1, txns2)
	require.Equal(t, base1.Len(), base2.Len())
	require.Len(t, txns1, 52)
	require.True(t, txns1[len(txns1)-1].IsNonReconfigBlockEnding())
}

func TestBench(t *testing.T) {
	for _, args := range [][]string{
		{"--txns", "200", "--senders", "8", "--keys", "16", "--concurrency", "4"},
		{"--txns", "200", "--senders", "8", "--keys", "16", "--concurrency", "4", "--stream", "--reconfig.at", "120", "--profile.deps"},
	} {
		var out bytes.Buffer
		app := newApp()
		app.Writer = &out
		require.NoError(t, app.Run(append([]string{"blockstm", "--verbosity", "warn", "bench"}, args...)))
		require.Contains(t, out.String(), "parallel")
		require.Contains(t, out.String(), "ledger:")
	}
}
