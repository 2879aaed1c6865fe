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
	"fmt"
	"math/rand"

	"github.com/erigontech/blockstm/execution/state"
	"github.com/erigontech/blockstm/execution/types"
)

type workload struct {
	Txns       int
	Senders    int
	Keys       int
	HotRatio   float64
	ReconfigAt int
	Seed       int64
}

// generate builds a block of user txns ending with a state checkpoint, and
// the genesis state it runs on. Every txn of a sender bumps its sequence
// number, so txns of one sender always conflict.
func (w workload) generate() ([]*types.Transaction, *state.InMemoryStateView, error) {
	rng := rand.New(rand.NewSource(w.Seed))
	base := state.NewInMemoryStateView(state.BlockExecutionID(1))
	for k := 0; k < w.Keys; k++ {
		base.Set(key(k), []byte{byte(k)})
	}
	if err := base.SetGroup("group", map[types.StructTag][]byte{"Coin": {1}}); err != nil {
		return nil, nil, err
	}

	seqs := make([]uint64, max(w.Senders, 1))
	txns := make([]*types.Transaction, 0, w.Txns+2)
	txns = append(txns, types.NewBlockMetadata(1))
	for i := 0; i < w.Txns; i++ {
		if i == w.ReconfigAt {
			txns = append(txns, types.NewBlockMetadata(2, types.Reconfigure()))
			continue
		}
		sender := rng.Intn(len(seqs))
		ops := []types.Op{
			types.Read(key(rng.Intn(max(w.Keys, 1)))),
			types.Write(key(rng.Intn(max(w.Keys, 1))), []byte{byte(i), byte(i >> 8)}),
			types.GroupRead("group", "Coin"),
		}
		if rng.Float64() < w.HotRatio {
			ops = append(ops, types.Add("hot", 1), types.AggregatorAdd("supply", 1, 1<<40))
		}
		if rng.Intn(50) == 0 {
			ops = append(ops, types.Abort(uint64(i)))
		}
		txns = append(txns, types.NewUserTransaction(fmt.Sprintf("sender%d", sender), seqs[sender], ops...))
		seqs[sender]++
	}
	txns = append(txns, types.NewStateCheckpoint())
	return txns, base, nil
}

func key(k int) types.StateKey {
	return types.StateKey(fmt.Sprintf("key%d", k))
}
