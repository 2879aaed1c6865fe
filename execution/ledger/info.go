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

package ledger

import (
	"encoding/hex"
	"fmt"

	"github.com/ugorji/go/codec"
	"golang.org/x/crypto/sha3"

	"github.com/erigontech/blockstm/execution/state"
	"github.com/erigontech/blockstm/execution/types"
)

type Version = uint64

type Hash [32]byte

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

var hashHandle = func() *codec.CborHandle {
	h := &codec.CborHandle{}
	h.Canonical = true
	return h
}()

// hashOf is the sha3-256 of the canonical CBOR encoding of v.
func hashOf(v any) (Hash, error) {
	var buf []byte
	if err := codec.NewEncoderBytes(&buf, hashHandle).Encode(v); err != nil {
		return Hash{}, err
	}
	return sha3.Sum256(buf), nil
}

type writeEntry struct {
	Key     types.StateKey
	Value   []byte
	Deleted bool
}

// TransactionInfo summarizes the committed effects of one transaction.
type TransactionInfo struct {
	TransactionHash Hash
	StateChangeHash Hash
	EventRootHash   Hash
	GasUsed         uint64
	Status          types.TransactionStatus
}

func NewTransactionInfo(txn *types.Transaction, writes state.VersionedWrites, events []types.Event, gasUsed uint64, status types.TransactionStatus) (TransactionInfo, error) {
	info := TransactionInfo{GasUsed: gasUsed, Status: status}

	var err error
	if info.TransactionHash, err = hashOf(txn); err != nil {
		return info, fmt.Errorf("transaction hash: %w", err)
	}
	entries := make([]writeEntry, len(writes))
	for i, w := range writes {
		entries[i] = writeEntry{Key: w.Path, Value: w.Val, Deleted: w.Deleted}
	}
	if info.StateChangeHash, err = hashOf(entries); err != nil {
		return info, fmt.Errorf("state change hash: %w", err)
	}
	if events == nil {
		events = []types.Event{}
	}
	if info.EventRootHash, err = hashOf(events); err != nil {
		return info, fmt.Errorf("event root hash: %w", err)
	}
	return info, nil
}

// Hash identifies the info. Two infos are equal exactly when their hashes
// are.
func (i TransactionInfo) Hash() (Hash, error) {
	return hashOf(i)
}

func (i TransactionInfo) String() string {
	return fmt.Sprintf("TransactionInfo{txn: %s, changes: %s, events: %s, gas: %d, status: %s}",
		i.TransactionHash, i.StateChangeHash, i.EventRootHash, i.GasUsed, i.Status)
}

// TransactionToCommit is a kept transaction together with everything that
// is persisted for it.
type TransactionToCommit struct {
	Version     Version
	Transaction *types.Transaction
	Writes      state.VersionedWrites
	Events      []types.Event
	GasUsed     uint64
	Status      types.TransactionStatus
	Info        TransactionInfo
	IsReconfig  bool
}
