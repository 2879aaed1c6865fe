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

package types

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// TxnIndex is the dense, zero based position of a transaction within a block.
type TxnIndex uint32

// StateKey identifies a single resource (or a resource group) in ledger state.
type StateKey string

// StructTag identifies a member of a resource group.
type StructTag string

type WriteOpKind uint8

const (
	WriteOpCreation WriteOpKind = iota
	WriteOpModification
	WriteOpDeletion
)

func (k WriteOpKind) String() string {
	switch k {
	case WriteOpCreation:
		return "creation"
	case WriteOpModification:
		return "modification"
	case WriteOpDeletion:
		return "deletion"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

type WriteOp struct {
	Kind  WriteOpKind
	Value []byte
}

func Creation(v []byte) WriteOp     { return WriteOp{Kind: WriteOpCreation, Value: v} }
func Modification(v []byte) WriteOp { return WriteOp{Kind: WriteOpModification, Value: v} }
func Deletion() WriteOp             { return WriteOp{Kind: WriteOpDeletion} }

func (op WriteOp) IsDeletion() bool { return op.Kind == WriteOpDeletion }

type EventKind uint8

const (
	EventKindModule EventKind = iota
	EventKindNewEpoch
)

type Event struct {
	Kind EventKind
	Type string
	Data []byte
}

const NewEpochEventType = "0x1::reconfiguration::NewEpochEvent"

func NewEpochEvent(epoch uint64) Event {
	return Event{Kind: EventKindNewEpoch, Type: NewEpochEventType, Data: binary.BigEndian.AppendUint64(nil, epoch)}
}

func ModuleEvent(typ string, data []byte) Event {
	return Event{Kind: EventKindModule, Type: typ, Data: data}
}

func (e Event) IsNewEpochEvent() bool { return e.Kind == EventKindNewEpoch }

// ChangeSet is the full set of effects produced by a single transaction:
// plain resource writes, resource group member writes and emitted events.
type ChangeSet struct {
	Writes      map[StateKey]WriteOp
	GroupWrites map[StateKey]map[StructTag]WriteOp
	Events      []Event
}

func NewChangeSet() *ChangeSet {
	return &ChangeSet{
		Writes:      map[StateKey]WriteOp{},
		GroupWrites: map[StateKey]map[StructTag]WriteOp{},
	}
}

func (cs *ChangeSet) Write(key StateKey, op WriteOp) {
	if cs.Writes == nil {
		cs.Writes = map[StateKey]WriteOp{}
	}
	cs.Writes[key] = op
}

func (cs *ChangeSet) WriteGroup(group StateKey, tag StructTag, op WriteOp) {
	if cs.GroupWrites == nil {
		cs.GroupWrites = map[StateKey]map[StructTag]WriteOp{}
	}
	ops, ok := cs.GroupWrites[group]
	if !ok {
		ops = map[StructTag]WriteOp{}
		cs.GroupWrites[group] = ops
	}
	ops[tag] = op
}

func (cs *ChangeSet) Emit(e Event) {
	cs.Events = append(cs.Events, e)
}

func (cs *ChangeSet) HasNewEpochEvent() bool {
	if cs == nil {
		return false
	}
	for _, e := range cs.Events {
		if e.IsNewEpochEvent() {
			return true
		}
	}
	return false
}

func (cs *ChangeSet) IsEmpty() bool {
	return cs == nil || (len(cs.Writes) == 0 && len(cs.GroupWrites) == 0 && len(cs.Events) == 0)
}

// Keys returns every plain and group key touched by the change set, sorted.
func (cs *ChangeSet) Keys() []StateKey {
	if cs == nil {
		return nil
	}
	keys := make([]StateKey, 0, len(cs.Writes)+len(cs.GroupWrites))
	for k := range cs.Writes {
		keys = append(keys, k)
	}
	for k := range cs.GroupWrites {
		if _, ok := cs.Writes[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func (cs *ChangeSet) Clone() *ChangeSet {
	if cs == nil {
		return nil
	}
	c := NewChangeSet()
	for k, op := range cs.Writes {
		c.Writes[k] = op
	}
	for g, ops := range cs.GroupWrites {
		for t, op := range ops {
			c.WriteGroup(g, t, op)
		}
	}
	c.Events = append(c.Events, cs.Events...)
	return c
}
