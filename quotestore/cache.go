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
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceCache is an optional in-process latest-price cache with a TTL.
// It is write-through: Save invalidates the entry for the upserted
// asset, and LatestBatch refills misses from the database. Every lookup
// remains correct with the cache empty or absent.
type PriceCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[uuid.UUID]cachedPrice
}

type cachedPrice struct {
	price    decimal.Decimal
	storedAt time.Time
}

// NewPriceCache builds a cache whose entries expire after ttl.
func NewPriceCache(ttl time.Duration) *PriceCache {
	return &PriceCache{ttl: ttl, entries: make(map[uuid.UUID]cachedPrice)}
}

func (c *PriceCache) get(id uuid.UUID, now time.Time) (decimal.Decimal, bool) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok || now.Sub(e.storedAt) > c.ttl {
		return decimal.Decimal{}, false
	}
	return e.price, true
}

func (c *PriceCache) put(id uuid.UUID, price decimal.Decimal, now time.Time) {
	c.mu.Lock()
	c.entries[id] = cachedPrice{price: price, storedAt: now}
	c.mu.Unlock()
}

func (c *PriceCache) invalidate(id uuid.UUID) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}
