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

// Package ports names the interfaces every external collaborator must
// satisfy. The core never imports a concrete adapter directly; it
// depends on these interfaces.
package ports

import (
	"context"
	"time"

	"github.com/bigodinhc/investctr/ledger"
)

// QuoteProvider fetches a batch of dated OHLCV bars for one ticker over a
// date range. Concrete adapters: provider.Polygon, provider.Tiingo.
type QuoteProvider interface {
	Name() string
	FetchQuotes(ctx context.Context, ticker string, from, to time.Time) ([]*ledger.Quote, error)
}

// FXProvider fetches daily mid-rates for a currency pair over a date
// range. Concrete adapter: provider.FRED.
type FXProvider interface {
	Name() string
	FetchRates(ctx context.Context, from, to string, start, end time.Time) ([]*ledger.ExchangeRate, error)
}

// LLMProvider takes PDF bytes plus a prompt and returns text expected to
// contain a JSON document; the parsing orchestrator strips markdown fences
// and parses it. Concrete adapter: llm.Anthropic.
type LLMProvider interface {
	Complete(ctx context.Context, pdf []byte, prompt string, maxTokens int) (string, error)
}

// DocumentBlobStore uploads and downloads the raw bytes of an ingested
// PDF. Concrete adapters: docstore.B2Store, docstore.FSStore.
type DocumentBlobStore interface {
	Upload(ctx context.Context, key string, data []byte) (path string, err error)
	Download(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

// TaskRunner schedules a named job on a cron-like trigger. The core's
// scheduler package exposes pure entry points; this interface is how an
// operator wires them to a trigger without the core depending on any
// particular scheduler implementation.
type TaskRunner interface {
	Schedule(cron string, name string, fn func(context.Context) error) error
}

// RateLimiter gates a caller identifier against a sliding window. The
// in-process adapter (ratelimit.Limiter) is token-bucket based; a
// Redis-backed adapter can implement the same interface without touching
// core logic.
type RateLimiter interface {
	Allow(callerID string) (allowed bool, retryAfter time.Duration)
}
