// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package keyedmutex serializes work per key so that, e.g., two concurrent
// replays of the same (account, asset) pair never interleave, while
// replays of different pairs run unimpeded.
package keyedmutex

import "sync"

// Map lazily allocates one mutex per key and never removes it; the key
// space here (account, asset) is bounded by the portfolio's own size, so
// this does not grow without bound in practice.
type Map struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New returns a ready Map.
func New() *Map {
	return &Map{locks: make(map[string]*sync.Mutex)}
}

func (m *Map) lockFor(key string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// With runs fn while holding the lock for key, excluding any other With
// call on the same key until fn returns.
func (m *Map) With(key string, fn func() error) error {
	l := m.lockFor(key)
	l.Lock()
	defer l.Unlock()
	return fn()
}
