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

// Package figi refines a foreign (non-B3) asset's type classification
// using the OpenFIGI mapping API, for tickers asset.Classify cannot tell
// apart from shape alone (an ETF and a common stock both default to
// AssetStock until FIGI data distinguishes them).
package figi

import "sync"

// Cache deduplicates OpenFIGI lookups across enrichment runs within one
// process. It holds no persistent state since ledger.Asset carries no
// FIGI column; every new process starts with an empty cache.
type Cache struct {
	mu    sync.RWMutex
	figis map[string]string
}

// NewCache builds an empty ticker->composite-FIGI cache.
func NewCache() *Cache {
	return &Cache{figis: make(map[string]string)}
}

// Get reports the cached composite FIGI for ticker, if any.
func (c *Cache) Get(ticker string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	figi, ok := c.figis[ticker]
	return figi, ok
}

// Set records ticker's composite FIGI.
func (c *Cache) Set(ticker, compositeFigi string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.figis[ticker] = compositeFigi
}
