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
	"errors"
	"fmt"

	"github.com/ugorji/go/codec"

	"github.com/erigontech/blockstm/execution/types"
)

var ErrCorruptedGroup = errors.New("corrupted resource group")

var groupHandle = func() *codec.CborHandle {
	h := &codec.CborHandle{}
	h.Canonical = true
	return h
}()

// EncodeGroup serializes group members into a canonical blob. An empty group
// encodes to nil, which is how a deleted group is stored.
func EncodeGroup(members map[types.StructTag][]byte) ([]byte, error) {
	if len(members) == 0 {
		return nil, nil
	}
	var out []byte
	if err := codec.NewEncoderBytes(&out, groupHandle).Encode(members); err != nil {
		return nil, fmt.Errorf("encode resource group: %w", err)
	}
	return out, nil
}

func DecodeGroup(blob []byte) (map[types.StructTag][]byte, error) {
	members := map[types.StructTag][]byte{}
	if len(blob) == 0 {
		return members, nil
	}
	if err := codec.NewDecoderBytes(blob, groupHandle).Decode(&members); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptedGroup, err)
	}
	return members, nil
}

// ApplyGroupOps applies member write ops to an encoded group and returns the
// new encoded group.
func ApplyGroupOps(blob []byte, ops map[types.StructTag]types.WriteOp) ([]byte, error) {
	members, err := DecodeGroup(blob)
	if err != nil {
		return nil, err
	}
	for tag, op := range ops {
		if op.IsDeletion() {
			delete(members, tag)
			continue
		}
		members[tag] = op.Value
	}
	return EncodeGroup(members)
}
