// Paneld
// Copyright (c) 2026 The Paneld Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Paneld.
//
// Paneld is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Paneld is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Paneld.  If not, see <http://www.gnu.org/licenses/>.

package display

import (
	"time"

	"github.com/paneldproject/paneld/pkg/helpers/syncutil"
)

// FakePort simulates the panel's serial endpoint. It answers the init
// handshake and records everything written to it. When Baud is set, writes
// take as long as they would on a real line, which is useful for throughput
// runs but not for tests.
type FakePort struct {
	mu       syncutil.Mutex
	writes   [][]byte
	total    int
	answered bool
	closed   bool
	Baud     int
	KeepData bool
}

// NewFakePort returns a simulator that records write sizes only. Set
// KeepData before use to retain full packet contents.
func NewFakePort() *FakePort {
	return &FakePort{}
}

func (f *FakePort) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.answered || len(p) == 0 {
		return 0, nil
	}
	f.answered = true
	p[0] = initMarker
	return 1, nil
}

func (f *FakePort) Write(p []byte) (int, error) {
	if f.Baud > 0 {
		// 10 line bits per byte with start and stop bits.
		time.Sleep(time.Duration(len(p)) * 10 * time.Second / time.Duration(f.Baud))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.total += len(p)
	if f.KeepData {
		f.writes = append(f.writes, append([]byte(nil), p...))
	}
	return len(p), nil
}

func (f *FakePort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FakePort) SetReadTimeout(time.Duration) error { return nil }

func (f *FakePort) Drain() error { return nil }

// Writes returns the recorded packets. Empty unless KeepData is set.
func (f *FakePort) Writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.writes))
	copy(out, f.writes)
	return out
}

// BytesWritten returns the total payload written so far.
func (f *FakePort) BytesWritten() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

// Closed reports whether Close was called.
func (f *FakePort) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Reset clears recorded writes and the handshake state.
func (f *FakePort) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = nil
	f.total = 0
	f.answered = false
}
