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

package simplevm

import (
	"encoding/binary"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/erigontech/blockstm/execution/types"
	"github.com/erigontech/blockstm/execution/vm"
)

// Abort codes raised by the built-in ops.
const (
	EArithmeticError    uint64 = 0x01_0004
	EAggregatorOverflow uint64 = 0x02_0001
	EFeatureDisabled    uint64 = 0x0D_0001
)

type moveAbort struct {
	code uint64
}

func (e moveAbort) Error() string { return fmt.Sprintf("move abort %#x", e.code) }

type outOfGas struct{}

func (outOfGas) Error() string { return "out of gas" }

type invariantViolation struct {
	code vm.StatusCode
	msg  string
}

func (e invariantViolation) Error() string { return e.msg }

type pendingValue struct {
	value   []byte
	deleted bool
}

// session accumulates the effects of one transaction on top of the resolver.
type session struct {
	resolver vm.Resolver
	features vm.Features
	cs       *types.ChangeSet
	values   map[types.StateKey]pendingValue
	members  map[types.StateKey]map[types.StructTag]pendingValue

	gasUsed  uint64
	gasLimit uint64
}

func newSession(resolver vm.Resolver, features vm.Features, gasLimit uint64) *session {
	return &session{
		resolver: resolver,
		features: features,
		cs:       types.NewChangeSet(),
		values:   map[types.StateKey]pendingValue{},
		members:  map[types.StateKey]map[types.StructTag]pendingValue{},
		gasLimit: gasLimit,
	}
}

func (s *session) charge(amount uint64) error {
	s.gasUsed += amount
	if s.gasLimit > 0 && s.gasUsed > s.gasLimit {
		s.gasUsed = s.gasLimit
		return outOfGas{}
	}
	return nil
}

func (s *session) read(key types.StateKey) ([]byte, error) {
	if p, ok := s.values[key]; ok {
		if p.deleted {
			return nil, nil
		}
		return p.value, nil
	}
	return s.resolver.GetStateValue(key)
}

func (s *session) write(key types.StateKey, value []byte) error {
	if op, ok := s.cs.Writes[key]; ok && op.Kind == types.WriteOpCreation {
		s.cs.Write(key, types.Creation(value))
		s.values[key] = pendingValue{value: value}
		return nil
	}
	existing, err := s.resolver.GetStateValue(key)
	if err != nil {
		return err
	}
	if existing == nil {
		s.cs.Write(key, types.Creation(value))
	} else {
		s.cs.Write(key, types.Modification(value))
	}
	s.values[key] = pendingValue{value: value}
	return nil
}

func (s *session) delete(key types.StateKey) error {
	existing, err := s.read(key)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	if op, ok := s.cs.Writes[key]; ok && op.Kind == types.WriteOpCreation {
		delete(s.cs.Writes, key)
	} else {
		s.cs.Write(key, types.Deletion())
	}
	s.values[key] = pendingValue{deleted: true}
	return nil
}

func (s *session) readMember(group types.StateKey, tag types.StructTag) ([]byte, error) {
	if p, ok := s.members[group][tag]; ok {
		if p.deleted {
			return nil, nil
		}
		return p.value, nil
	}
	return s.resolver.GetResourceFromGroup(group, tag)
}

func (s *session) writeMember(group types.StateKey, tag types.StructTag, value []byte, deleted bool) error {
	existing, err := s.readMember(group, tag)
	if err != nil {
		return err
	}
	switch {
	case deleted && existing == nil:
		return nil
	case deleted:
		s.cs.WriteGroup(group, tag, types.Deletion())
	case existing == nil:
		s.cs.WriteGroup(group, tag, types.Creation(value))
	default:
		s.cs.WriteGroup(group, tag, types.Modification(value))
	}
	if s.members[group] == nil {
		s.members[group] = map[types.StructTag]pendingValue{}
	}
	s.members[group][tag] = pendingValue{value: value, deleted: deleted}
	return nil
}

func (s *session) exec(op types.Op) error {
	switch op.Code {
	case types.OpRead:
		_, err := s.read(op.Key)
		return err
	case types.OpWrite:
		return s.write(op.Key, op.Value)
	case types.OpDelete:
		return s.delete(op.Key)
	case types.OpAdd:
		return s.add(op.Key, op.Amount)
	case types.OpGroupRead:
		_, err := s.readMember(op.Key, op.Tag)
		return err
	case types.OpGroupWrite:
		return s.writeMember(op.Key, op.Tag, op.Value, false)
	case types.OpGroupDelete:
		return s.writeMember(op.Key, op.Tag, nil, true)
	case types.OpEmit:
		s.cs.Emit(types.ModuleEvent(op.EventType, op.Value))
		return nil
	case types.OpReconfigure:
		return s.reconfigure()
	case types.OpAbort:
		return moveAbort{code: op.AbortCode}
	case types.OpAggregatorAdd:
		return s.aggregatorAdd(op.Key, op.Amount, op.Limit)
	default:
		return invariantViolation{code: vm.UnknownInvariantViolationError, msg: fmt.Sprintf("unknown op code %d", op.Code)}
	}
}

func (s *session) add(key types.StateKey, amount uint64) error {
	raw, err := s.read(key)
	if err != nil {
		return err
	}
	cur := new(uint256.Int).SetBytes(raw)
	sum, overflow := new(uint256.Int).AddOverflow(cur, uint256.NewInt(amount))
	if overflow {
		return moveAbort{code: EArithmeticError}
	}
	b := sum.Bytes32()
	return s.write(key, b[:])
}

// aggregatorAdd updates a bounded counter. Its stored form is always a 32
// byte word; anything else can only come from a broken materialization.
func (s *session) aggregatorAdd(key types.StateKey, amount, limit uint64) error {
	if !s.features.AggregatorsEnabled {
		return moveAbort{code: EFeatureDisabled}
	}
	raw, err := s.read(key)
	if err != nil {
		return err
	}
	if raw != nil && len(raw) != 32 {
		return invariantViolation{
			code: vm.DelayedMaterializationCodeInvariantError,
			msg:  fmt.Sprintf("aggregator %s has %d byte value", key, len(raw)),
		}
	}
	cur := new(uint256.Int).SetBytes(raw)
	sum, overflow := new(uint256.Int).AddOverflow(cur, uint256.NewInt(amount))
	if overflow || sum.Gt(uint256.NewInt(limit)) {
		return moveAbort{code: EAggregatorOverflow}
	}
	b := sum.Bytes32()
	return s.write(key, b[:])
}

func (s *session) reconfigure() error {
	raw, err := s.read(EpochKey)
	if err != nil {
		return err
	}
	epoch := decodeU64(raw) + 1
	if err := s.write(EpochKey, encodeU64(epoch)); err != nil {
		return err
	}
	s.cs.Emit(types.NewEpochEvent(epoch))
	return nil
}

func encodeU64(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

func decodeU64(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
