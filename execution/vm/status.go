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

package vm

import (
	"errors"
	"fmt"
)

type StatusCode uint64

const (
	InvalidSignature     StatusCode = 1
	SequenceNumberTooOld StatusCode = 3
	SequenceNumberTooNew StatusCode = 4
	OutOfGas             StatusCode = 4002

	UnknownInvariantViolationError StatusCode = 2000
	// SpeculativeExecutionAbortError reports that the transaction observed
	// inconsistent speculative state and has to be re-executed.
	SpeculativeExecutionAbortError StatusCode = 2024
	// DelayedMaterializationCodeInvariantError reports a defect in delayed
	// field handling. It is never the transaction's fault.
	DelayedMaterializationCodeInvariantError StatusCode = 2025

	Executed StatusCode = 4001
	Aborted  StatusCode = 4016
)

var statusNames = map[StatusCode]string{
	InvalidSignature:                         "INVALID_SIGNATURE",
	SequenceNumberTooOld:                     "SEQUENCE_NUMBER_TOO_OLD",
	SequenceNumberTooNew:                     "SEQUENCE_NUMBER_TOO_NEW",
	OutOfGas:                                 "OUT_OF_GAS",
	UnknownInvariantViolationError:           "UNKNOWN_INVARIANT_VIOLATION_ERROR",
	SpeculativeExecutionAbortError:           "SPECULATIVE_EXECUTION_ABORT_ERROR",
	DelayedMaterializationCodeInvariantError: "DELAYED_MATERIALIZATION_CODE_INVARIANT_ERROR",
	Executed:                                 "EXECUTED",
	Aborted:                                  "ABORTED",
}

func (c StatusCode) String() string {
	if name, ok := statusNames[c]; ok {
		return name
	}
	return fmt.Sprintf("STATUS_CODE(%d)", uint64(c))
}

// Status is the VM's verdict on a transaction. It doubles as the error type
// of the Err path.
type Status struct {
	Code      StatusCode
	Message   string
	AbortCode uint64
}

func NewStatus(code StatusCode, message string) *Status {
	return &Status{Code: code, Message: message}
}

func ExecutedStatus() *Status {
	return &Status{Code: Executed}
}

func (s *Status) StatusCode() StatusCode {
	if s == nil {
		return Executed
	}
	return s.Code
}

func (s *Status) Error() string {
	if s.Message == "" {
		return s.Code.String()
	}
	return fmt.Sprintf("%s: %s", s.Code, s.Message)
}

// StatusCodeOf extracts the status code carried by err, if any.
func StatusCodeOf(err error) (StatusCode, bool) {
	var st *Status
	if errors.As(err, &st) && st != nil {
		return st.Code, true
	}
	return 0, false
}

// MessageOf returns the status message carried by err, or err's text.
func MessageOf(err error) string {
	var st *Status
	if errors.As(err, &st) && st != nil && st.Message != "" {
		return st.Message
	}
	return err.Error()
}
