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

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/erigontech/blockstm/execution/types"
)

const DefaultGroupCacheSize = 4096

var _ ExecutorView = (*CachedStateView)(nil)

// CachedStateView wraps an immutable base view and memoizes decoded
// resource groups. One instance is shared by all workers of a block.
type CachedStateView struct {
	base   StateView
	groups *lru.Cache[types.StateKey, map[types.StructTag][]byte]
}

func NewCachedStateView(base StateView, groupCacheSize int) (*CachedStateView, error) {
	if groupCacheSize <= 0 {
		groupCacheSize = DefaultGroupCacheSize
	}
	groups, err := lru.New[types.StateKey, map[types.StructTag][]byte](groupCacheSize)
	if err != nil {
		return nil, fmt.Errorf("group cache: %w", err)
	}
	return &CachedStateView{base: base, groups: groups}, nil
}

func (v *CachedStateView) ID() StateViewID {
	return v.base.ID()
}

func (v *CachedStateView) GetStateValue(key types.StateKey) ([]byte, error) {
	return v.base.GetStateValue(key)
}

// GetResourceGroup returns the decoded group. The returned map is shared and
// must not be modified.
func (v *CachedStateView) GetResourceGroup(group types.StateKey) (map[types.StructTag][]byte, error) {
	if members, ok := v.groups.Get(group); ok {
		return members, nil
	}
	blob, err := v.base.GetStateValue(group)
	if err != nil {
		return nil, err
	}
	members, err := DecodeGroup(blob)
	if err != nil {
		return nil, err
	}
	v.groups.Add(group, members)
	return members, nil
}

func (v *CachedStateView) GetResourceFromGroup(group types.StateKey, tag types.StructTag) ([]byte, error) {
	members, err := v.GetResourceGroup(group)
	if err != nil {
		return nil, err
	}
	return members[tag], nil
}

func (v *CachedStateView) ResourceGroupSize(group types.StateKey) (uint64, error) {
	blob, err := v.base.GetStateValue(group)
	return uint64(len(blob)), err
}

func (v *CachedStateView) CachedGroups() int {
	return v.groups.Len()
}
