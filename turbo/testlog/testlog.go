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

// Package testlog provides loggers that write through testing.TB, so output
// only shows up for failing or verbose tests.
package testlog

import (
	"strings"
	"sync"
	"testing"

	"github.com/ledgerwatch/log/v3"
)

type tbWriter struct {
	t testing.TB
}

func (w tbWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// Logger returns a logger whose records at or above level go to t.Log.
func Logger(t testing.TB, level log.Lvl) log.Logger {
	l := log.New()
	l.SetHandler(log.LvlFilterHandler(level, log.StreamHandler(tbWriter{t}, log.TerminalFormatNoColor())))
	return l
}

// Recorder keeps every record logged through it.
type Recorder struct {
	mu      sync.Mutex
	records []*log.Record
}

// RecordingLogger returns a logger that writes to t like Logger and also
// keeps every record in the returned Recorder.
func RecordingLogger(t testing.TB, level log.Lvl) (log.Logger, *Recorder) {
	rec := &Recorder{}
	l := log.New()
	l.SetHandler(log.MultiHandler(
		log.LvlFilterHandler(level, log.StreamHandler(tbWriter{t}, log.TerminalFormatNoColor())),
		log.FuncHandler(func(r *log.Record) error {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.records = append(rec.records, r)
			return nil
		}),
	))
	return l, rec
}

// Count returns how many records carry msg.
func (r *Recorder) Count(msg string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for _, rec := range r.records {
		if rec.Msg == msg {
			n++
		}
	}
	return n
}

func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := make([]string, len(r.records))
	for i, rec := range r.records {
		msgs[i] = rec.Msg
	}
	return msgs
}
