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
package keyedmutex

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithSerializesSameKey(t *testing.T) {
	m := New()

	const iterations = 200
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < iterations; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.With("acct/asset", func() error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()
	require.Equal(t, iterations, counter)
}

func TestWithPropagatesError(t *testing.T) {
	m := New()
	sentinel := errors.New("boom")
	err := m.With("k", func() error { return sentinel })
	require.ErrorIs(t, err, sentinel)
}

func TestWithDistinctKeysDoNotBlock(t *testing.T) {
	m := New()
	release := make(chan struct{})
	held := make(chan struct{})

	go func() {
		_ = m.With("a", func() error {
			close(held)
			<-release
			return nil
		})
	}()

	<-held
	done := make(chan struct{})
	go func() {
		_ = m.With("b", func() error { return nil })
		close(done)
	}()
	<-done
	close(release)
}
