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

// Package sensors provides the shared sensor value store and its producers:
// key-value sensor files, a system info poller and Prometheus scrapes.
package sensors

import (
	"github.com/paneldproject/paneld/pkg/helpers/syncutil"
)

// UnitSuffix is appended to a label to form the key holding its optional
// unit override.
const UnitSuffix = "#unit"

// Snapshot is a read-only view of the label to value mapping. It is only
// valid for the duration of a Store.View call.
type Snapshot map[string]string

// Value returns the value for a label.
func (s Snapshot) Value(label string) (string, bool) {
	v, ok := s[label]
	return v, ok
}

// Unit returns the unit override for a label, or fallback when none is set.
func (s Snapshot) Unit(label, fallback string) string {
	if u, ok := s[label+UnitSuffix]; ok {
		return u
	}
	return fallback
}

// Store is the shared sensor value map. Producers bulk-update it under the
// write lock; the render path reads it under the read lock for a whole
// render pass, so a render sees either all of an update or none of it.
type Store struct {
	mu     syncutil.RWMutex
	values map[string]string
}

// NewStore creates an empty sensor value store.
func NewStore() *Store {
	return &Store{values: make(map[string]string)}
}

// Set stores a single value.
func (s *Store) Set(label, value string) {
	s.mu.Lock()
	s.values[label] = value
	s.mu.Unlock()
}

// SetAll stores all values under a single write lock.
func (s *Store) SetAll(values map[string]string) {
	if len(values) == 0 {
		return
	}
	s.mu.Lock()
	for k, v := range values {
		s.values[k] = v
	}
	s.mu.Unlock()
}

// View runs fn with a snapshot of the current values, holding the read lock
// for the duration of the call. The snapshot must not be retained or
// mutated. Keeping the lock over a whole render pass trades a little writer
// latency for zero per-frame copy cost.
func (s *Store) View(fn func(Snapshot)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(Snapshot(s.values))
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
