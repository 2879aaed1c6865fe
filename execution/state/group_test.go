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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/blockstm/execution/types"
)

func TestGroupEncodingIsCanonical(t *testing.T) {
	t.Parallel()

	members := map[types.StructTag][]byte{"b": []byte("2"), "a": []byte("1"), "c": []byte("3")}
	first, err := EncodeGroup(members)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := EncodeGroup(members)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}

	decoded, err := DecodeGroup(first)
	require.NoError(t, err)
	require.Equal(t, members, decoded)

	empty, err := EncodeGroup(nil)
	require.NoError(t, err)
	require.Nil(t, empty)
}

func TestApplyGroupOpsDeletesEmptyGroup(t *testing.T) {
	t.Parallel()

	blob, err := EncodeGroup(map[types.StructTag][]byte{"a": []byte("1")})
	require.NoError(t, err)

	updated, err := ApplyGroupOps(blob, map[types.StructTag]types.WriteOp{"a": types.Deletion()})
	require.NoError(t, err)
	require.Nil(t, updated)
}

func TestDecodeCorruptedGroup(t *testing.T) {
	t.Parallel()

	_, err := DecodeGroup([]byte{0xff, 0x00, 0x13})
	require.ErrorIs(t, err, ErrCorruptedGroup)
}

func TestCachedStateViewCachesGroups(t *testing.T) {
	t.Parallel()

	base := NewInMemoryStateView(BlockExecutionID(7))
	require.NoError(t, base.SetGroup("g", map[types.StructTag][]byte{"a": []byte("1")}))

	cached, err := NewCachedStateView(base, 0)
	require.NoError(t, err)
	require.Equal(t, BlockExecutionID(7), cached.ID())

	v, err := cached.GetResourceFromGroup("g", "a")
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)
	require.Equal(t, 1, cached.CachedGroups())

	// speculative reads of untouched groups go through the cache too
	view := NewSpeculativeView(cached, NewVersionMap(), 0, 0)
	v, err = view.GetResourceFromGroup("g", "a")
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)
	require.Equal(t, 1, cached.CachedGroups())
}

func TestOverlayGroupReads(t *testing.T) {
	t.Parallel()

	base := NewInMemoryStateView(BlockExecutionID(1))
	require.NoError(t, base.SetGroup("g", map[types.StructTag][]byte{"a": []byte("1")}))
	overlay := NewOverlayView(base)

	v, err := overlay.GetResourceFromGroup("g", "a")
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)

	blob, err := EncodeGroup(map[types.StructTag][]byte{"a": []byte("2")})
	require.NoError(t, err)
	overlay.Apply(VersionedWrites{{Path: "g", Val: blob}})
	v, err = overlay.GetResourceFromGroup("g", "a")
	require.NoError(t, err)
	require.Equal(t, []byte("2"), v)

	overlay.Apply(VersionedWrites{{Path: "g", Val: []byte{0xff, 0x00, 0x13}}})
	_, err = overlay.GetResourceFromGroup("g", "a")
	require.ErrorIs(t, err, ErrCorruptedGroup)
}

func TestInMemoryStateViewWithIDCopies(t *testing.T) {
	t.Parallel()

	base := NewInMemoryStateView(BlockExecutionID(1))
	base.Set("k", []byte("1"))
	other := base.WithID(BlockExecutionID(2))
	require.Equal(t, BlockExecutionID(2), other.ID())

	base.Set("k", []byte("2"))
	other.Set("x", []byte("3"))

	v, err := other.GetStateValue("k")
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)
	v, err = base.GetStateValue("x")
	require.NoError(t, err)
	require.Nil(t, v)
}
