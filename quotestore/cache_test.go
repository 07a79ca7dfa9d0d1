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
package quotestore

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestPriceCacheExpiry(t *testing.T) {
	c := NewPriceCache(5 * time.Minute)
	id := uuid.New()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	_, ok := c.get(id, now)
	require.False(t, ok)

	c.put(id, decimal.RequireFromString("10.50"), now)

	price, ok := c.get(id, now.Add(4*time.Minute))
	require.True(t, ok)
	require.Equal(t, "10.5", price.String())

	_, ok = c.get(id, now.Add(6*time.Minute))
	require.False(t, ok)
}

func TestPriceCacheInvalidate(t *testing.T) {
	c := NewPriceCache(time.Hour)
	id := uuid.New()
	now := time.Now()

	c.put(id, decimal.NewFromInt(7), now)
	c.invalidate(id)

	_, ok := c.get(id, now)
	require.False(t, ok)
}
