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

type TxnStatusKind uint8

const (
	TxnStatusKeep TxnStatusKind = iota
	TxnStatusDiscard
	TxnStatusRetry
)

// TransactionStatus is the ledger-facing fate of a transaction. For Keep,
// Code is zero on success or the abort code charged to the sender. For
// Discard it carries the rejecting status code.
type TransactionStatus struct {
	Kind TxnStatusKind
	Code uint64
}

func KeepSuccess() TransactionStatus          { return TransactionStatus{Kind: TxnStatusKeep} }
func KeepAborted(code uint64) TransactionStatus { return TransactionStatus{Kind: TxnStatusKeep, Code: code} }
func Discard(code uint64) TransactionStatus     { return TransactionStatus{Kind: TxnStatusDiscard, Code: code} }
func Retry() TransactionStatus                  { return TransactionStatus{Kind: TxnStatusRetry} }

func (s TransactionStatus) IsKeep() bool      { return s.Kind == TxnStatusKeep }
func (s TransactionStatus) IsDiscarded() bool { return s.Kind == TxnStatusDiscard }
func (s TransactionStatus) IsRetry() bool     { return s.Kind == TxnStatusRetry }

func (s TransactionStatus) String() string {
	switch s.Kind {
	case TxnStatusKeep:
		if s.Code == 0 {
			return "Keep(Success)"
		}
		return fmt.Sprintf("Keep(Abort %d)", s.Code)
	case TxnStatusDiscard:
		return fmt.Sprintf("Discard(%d)", s.Code)
	case TxnStatusRetry:
		return "Retry"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s.Kind))
	}
}
