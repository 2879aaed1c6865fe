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

import "fmt"

type TransactionKind uint8

const (
	UserTransactionKind TransactionKind = iota
	BlockMetadataKind
	GenesisTransactionKind
	StateCheckpointKind
	BlockEpilogueKind
)

func (k TransactionKind) String() string {
	switch k {
	case UserTransactionKind:
		return "user"
	case BlockMetadataKind:
		return "block_metadata"
	case GenesisTransactionKind:
		return "genesis"
	case StateCheckpointKind:
		return "state_checkpoint"
	case BlockEpilogueKind:
		return "block_epilogue"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

type OpCode uint8

const (
	OpRead OpCode = iota
	OpWrite
	OpDelete
	OpAdd
	OpGroupRead
	OpGroupWrite
	OpGroupDelete
	OpEmit
	OpReconfigure
	OpAbort
	OpAggregatorAdd
)

// Op is a single step of a transaction program. Only the fields relevant to
// the op code are consulted.
type Op struct {
	Code      OpCode
	Key       StateKey
	Tag       StructTag
	Value     []byte
	Amount    uint64
	Limit     uint64
	AbortCode uint64
	EventType string
}

func Read(key StateKey) Op                 { return Op{Code: OpRead, Key: key} }
func Write(key StateKey, v []byte) Op      { return Op{Code: OpWrite, Key: key, Value: v} }
func Delete(key StateKey) Op               { return Op{Code: OpDelete, Key: key} }
func Add(key StateKey, amount uint64) Op   { return Op{Code: OpAdd, Key: key, Amount: amount} }
func GroupRead(g StateKey, t StructTag) Op { return Op{Code: OpGroupRead, Key: g, Tag: t} }
func GroupWrite(g StateKey, t StructTag, v []byte) Op {
	return Op{Code: OpGroupWrite, Key: g, Tag: t, Value: v}
}
func GroupDelete(g StateKey, t StructTag) Op { return Op{Code: OpGroupDelete, Key: g, Tag: t} }
func Emit(typ string, data []byte) Op        { return Op{Code: OpEmit, EventType: typ, Value: data} }
func Reconfigure() Op                        { return Op{Code: OpReconfigure} }
func Abort(code uint64) Op                   { return Op{Code: OpAbort, AbortCode: code} }
func AggregatorAdd(key StateKey, amount, limit uint64) Op {
	return Op{Code: OpAggregatorAdd, Key: key, Amount: amount, Limit: limit}
}

type WriteSetPayloadKind uint8

const (
	WriteSetDirect WriteSetPayloadKind = iota
	WriteSetScript
)

type WriteSetPayload struct {
	Kind      WriteSetPayloadKind
	ChangeSet *ChangeSet
	Script    []Op
}

// Transaction is an immutable unit of work. Construct through the New*
// helpers; fields must not be modified once the transaction is handed to a
// provider.
type Transaction struct {
	Kind           TransactionKind
	Sender         string
	SequenceNumber uint64
	GasLimit       uint64
	Ops            []Op
	Payload        *WriteSetPayload
	Round          uint64

	signatureValid bool
}

const DefaultGasLimit = 1_000

func NewUserTransaction(sender string, seq uint64, ops ...Op) *Transaction {
	return &Transaction{
		Kind:           UserTransactionKind,
		Sender:         sender,
		SequenceNumber: seq,
		GasLimit:       DefaultGasLimit,
		Ops:            ops,
		signatureValid: true,
	}
}

func NewBlockMetadata(round uint64, ops ...Op) *Transaction {
	return &Transaction{Kind: BlockMetadataKind, Round: round, Ops: ops, signatureValid: true}
}

func NewDirectGenesis(cs *ChangeSet) *Transaction {
	return &Transaction{
		Kind:           GenesisTransactionKind,
		Payload:        &WriteSetPayload{Kind: WriteSetDirect, ChangeSet: cs},
		signatureValid: true,
	}
}

func NewScriptGenesis(script ...Op) *Transaction {
	return &Transaction{
		Kind:           GenesisTransactionKind,
		Payload:        &WriteSetPayload{Kind: WriteSetScript, Script: script},
		signatureValid: true,
	}
}

func NewStateCheckpoint() *Transaction {
	return &Transaction{Kind: StateCheckpointKind, signatureValid: true}
}

func NewBlockEpilogue() *Transaction {
	return &Transaction{Kind: BlockEpilogueKind, signatureValid: true}
}

// WithInvalidSignature returns a copy of the transaction that failed
// signature verification.
func (t *Transaction) WithInvalidSignature() *Transaction {
	c := *t
	c.signatureValid = false
	return &c
}

func (t *Transaction) SignatureValid() bool { return t.signatureValid }

// AsValidDirectWriteSetPayload returns the change set of a genesis
// transaction carrying a direct write set, provided its signature verified.
func (t *Transaction) AsValidDirectWriteSetPayload() (*ChangeSet, bool) {
	if t == nil || !t.signatureValid || t.Kind != GenesisTransactionKind {
		return nil, false
	}
	if t.Payload == nil || t.Payload.Kind != WriteSetDirect {
		return nil, false
	}
	return t.Payload.ChangeSet, true
}

// IsNonReconfigBlockEnding reports whether the transaction closes a block
// without triggering a reconfiguration.
func (t *Transaction) IsNonReconfigBlockEnding() bool {
	return t.Kind == StateCheckpointKind || t.Kind == BlockEpilogueKind
}

func (t *Transaction) String() string {
	switch t.Kind {
	case UserTransactionKind:
		return fmt.Sprintf("user(%s/%d, ops=%d)", t.Sender, t.SequenceNumber, len(t.Ops))
	case BlockMetadataKind:
		return fmt.Sprintf("block_metadata(round=%d)", t.Round)
	default:
		return t.Kind.String()
	}
}
