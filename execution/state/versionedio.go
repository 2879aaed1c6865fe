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
	"sort"

	"github.com/heimdalr/dag"
	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/blockstm/execution/types"
)

const (
	ReadKindMap     = 0
	ReadKindStorage = 1
)

type VersionedRead struct {
	Path types.StateKey
	Kind int
	V    Version
}

type VersionedWrite struct {
	Path    types.StateKey
	V       Version
	Val     []byte
	Deleted bool
}

type VersionedReads []VersionedRead
type VersionedWrites []VersionedWrite

// HasNewWrite returns true if the current set has a write to a key that
// cmpSet does not touch.
func (txo VersionedWrites) HasNewWrite(cmpSet []VersionedWrite) bool {
	if len(txo) == 0 {
		return false
	} else if len(cmpSet) == 0 || len(txo) > len(cmpSet) {
		return true
	}

	cmpMap := make(map[types.StateKey]bool, len(cmpSet))
	for _, w := range cmpSet {
		cmpMap[w.Path] = true
	}
	for _, v := range txo {
		if !cmpMap[v.Path] {
			return true
		}
	}
	return false
}

func (txo VersionedWrites) Paths() map[types.StateKey]struct{} {
	paths := make(map[types.StateKey]struct{}, len(txo))
	for _, w := range txo {
		paths[w.Path] = struct{}{}
	}
	return paths
}

// MaterializeWrites turns a change set into the whole-key writes it implies.
// Group member ops are folded into the group as seen through view, so the
// group read is tracked like any other read.
func MaterializeWrites(view ExecutorView, cs *types.ChangeSet, v Version) (VersionedWrites, error) {
	if cs == nil {
		return nil, nil
	}
	writes := make(VersionedWrites, 0, len(cs.Writes)+len(cs.GroupWrites))
	for key, op := range cs.Writes {
		if _, ok := cs.GroupWrites[key]; ok {
			return nil, fmt.Errorf("key %s written both as resource and as group", key)
		}
		writes = append(writes, VersionedWrite{Path: key, V: v, Val: op.Value, Deleted: op.IsDeletion()})
	}
	for group, ops := range cs.GroupWrites {
		blob, err := view.GetStateValue(group)
		if err != nil {
			return nil, err
		}
		updated, err := ApplyGroupOps(blob, ops)
		if err != nil {
			return nil, err
		}
		writes = append(writes, VersionedWrite{Path: group, V: v, Val: updated, Deleted: updated == nil})
	}
	sort.Slice(writes, func(i, j int) bool { return writes[i].Path < writes[j].Path })
	return writes, nil
}

type VersionedIO struct {
	inputs     []VersionedReads
	outputs    []VersionedWrites
	outputsSet []map[types.StateKey]struct{}
}

func NewVersionedIO(numTx int) *VersionedIO {
	return &VersionedIO{
		inputs:     make([]VersionedReads, numTx),
		outputs:    make([]VersionedWrites, numTx),
		outputsSet: make([]map[types.StateKey]struct{}, numTx),
	}
}

func (io *VersionedIO) Len() int {
	return len(io.inputs)
}

func (io *VersionedIO) ReadSet(txnIdx int) VersionedReads {
	return io.inputs[txnIdx]
}

func (io *VersionedIO) WriteSet(txnIdx int) VersionedWrites {
	return io.outputs[txnIdx]
}

func (io *VersionedIO) HasWritten(txnIdx int, k types.StateKey) bool {
	_, ok := io.outputsSet[txnIdx][k]
	return ok
}

func (io *VersionedIO) RecordRead(txId int, input VersionedReads) {
	io.inputs[txId] = input
}

func (io *VersionedIO) RecordWrite(txId int, output VersionedWrites) {
	io.outputs[txId] = output
	io.outputsSet[txId] = output.Paths()
}

// ValidateVersion checks that every read of txIdx would still observe the
// same version if it was repeated now.
func ValidateVersion(txIdx int, lastIO *VersionedIO, versionedData *VersionMap) bool {
	for _, rd := range lastIO.ReadSet(txIdx) {
		mvResult := versionedData.Read(rd.Path, txIdx)

		var valid bool
		switch mvResult.Status() {
		case MVReadResultDone:
			valid = rd.Kind == ReadKindMap && rd.V == mvResult.Version()
		case MVReadResultDependency:
			valid = false
		case MVReadResultNone:
			valid = rd.Kind == ReadKindStorage
		default:
			panic(fmt.Errorf("should not happen - undefined mv read status: %d", mvResult.Status()))
		}

		if !valid {
			return false
		}
	}
	return true
}

type DAG struct {
	*dag.DAG
}

func HasReadDep(txFrom VersionedWrites, txTo VersionedReads) bool {
	reads := make(map[types.StateKey]bool, len(txTo))
	for _, v := range txTo {
		reads[v.Path] = true
	}
	for _, rd := range txFrom {
		if reads[rd.Path] {
			return true
		}
	}
	return false
}

// BuildDAG links every transaction to the earlier transactions whose writes
// it read.
func BuildDAG(deps *VersionedIO, logger log.Logger) (d DAG) {
	d = DAG{dag.NewDAG()}
	ids := make(map[int]string)

	vertex := func(i int) string {
		if id, ok := ids[i]; ok {
			return id
		}
		id, err := d.AddVertex(i)
		if err != nil {
			logger.Warn("Failed to add vertex", "tx", i, "err", err)
		}
		ids[i] = id
		return id
	}

	for i := len(deps.inputs) - 1; i > 0; i-- {
		txTo := deps.inputs[i]
		txToId := vertex(i)

		for j := i - 1; j >= 0; j-- {
			if !HasReadDep(deps.outputs[j], txTo) {
				continue
			}
			txFromId := vertex(j)
			if err := d.AddEdge(txFromId, txToId); err != nil {
				logger.Warn("Failed to add edge", "from", txFromId, "to", txToId, "err", err)
			}
		}
	}
	return
}

// GetDep returns, for every transaction, the minimal set of earlier
// transactions it directly depends on.
func GetDep(deps *VersionedIO) map[int]map[int]bool {
	dependencies := map[int]map[int]bool{}

	for i := 1; i < len(deps.inputs); i++ {
		txTo := deps.inputs[i]
		dependencies[i] = map[int]bool{}

		for j := 0; j <= i-1; j++ {
			if !HasReadDep(deps.outputs[j], txTo) {
				continue
			}
			dependencies[i][j] = true
			for k := range dependencies[i] {
				if dependencies[j][k] {
					delete(dependencies[i], k)
				}
			}
		}
	}
	return dependencies
}
