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

// Package quotestore persists and looks up dated OHLCV quotes.
package quotestore

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/bigodinhc/investctr/ledger"
)

// Store persists quotes against a shared connection pool. Cache, when
// set, fronts latest-price lookups; it is never consulted for at-date
// lookups.
type Store struct {
	Pool  *pgxpool.Pool
	Cache *PriceCache
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

// Save upserts a quote, keyed by (asset_id, date), overwriting any value
// already on file for that day.
func (s *Store) Save(ctx context.Context, q *ledger.Quote) error {
	conn, err := s.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
		INSERT INTO quotes (
			asset_id, date, open, high, low, close, adjusted_close, volume, source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT ON CONSTRAINT quotes_pkey
		DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			adjusted_close = EXCLUDED.adjusted_close,
			volume = EXCLUDED.volume,
			source = EXCLUDED.source`,
		q.AssetID, q.Date, q.Open, q.High, q.Low, q.Close, q.AdjustedClose,
		q.Volume, q.Source)
	if err != nil {
		log.Error().Err(err).Str("assetID", q.AssetID.String()).Time("date", q.Date).
			Msg("error saving quote to database")
		return err
	}
	if s.Cache != nil {
		s.Cache.invalidate(q.AssetID)
	}
	return nil
}

// SaveAll saves a batch of quotes sequentially, the shape the quote-sync job
// calls with a provider's fetched bar series.
func (s *Store) SaveAll(ctx context.Context, quotes []*ledger.Quote) error {
	for _, q := range quotes {
		if err := s.Save(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// Latest returns the most recent quote on or before asOf for an asset, or
// nil if none is on file, the lookup the NAV and unrealized-P&L engines use.
func (s *Store) Latest(ctx context.Context, assetID uuid.UUID, asOf time.Time) (*ledger.Quote, error) {
	var q ledger.Quote
	rows, err := s.Pool.Query(ctx, `
		SELECT asset_id, date, open, high, low, close, adjusted_close, volume, source
		FROM quotes
		WHERE asset_id = $1 AND date <= $2
		ORDER BY date DESC LIMIT 1`, assetID, asOf)
	if err != nil {
		return nil, err
	}
	if err := pgxscan.ScanOne(&q, rows); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &q, nil
}

// Range returns every quote for an asset in a closed date range, in
// chronological order, used by performance-series computation.
func (s *Store) Range(ctx context.Context, assetID uuid.UUID, from, to time.Time) ([]*ledger.Quote, error) {
	var quotes []*ledger.Quote
	err := pgxscan.Select(ctx, s.Pool, &quotes, `
		SELECT asset_id, date, open, high, low, close, adjusted_close, volume, source
		FROM quotes WHERE asset_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date`, assetID, from, to)
	return quotes, err
}

// History returns up to limit quotes for an asset, most recent first,
// optionally bounded by from/to (either may be the zero time to leave that
// end open).
func (s *Store) History(ctx context.Context, assetID uuid.UUID, from, to time.Time, limit int) ([]*ledger.Quote, error) {
	if limit <= 0 {
		limit = 100
	}
	var quotes []*ledger.Quote
	err := pgxscan.Select(ctx, s.Pool, &quotes, `
		SELECT asset_id, date, open, high, low, close, adjusted_close, volume, source
		FROM quotes
		WHERE asset_id = $1
			AND ($2::date IS NULL OR date >= $2)
			AND ($3::date IS NULL OR date <= $3)
		ORDER BY date DESC LIMIT $4`,
		assetID, nullableDate(from), nullableDate(to), limit)
	return quotes, err
}

func nullableDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// LatestBatch returns, for each asset in assetIDs, the price of its most
// recent quote on file (no date bound), keyed by asset id. Assets with no
// quote at all are omitted.
func (s *Store) LatestBatch(ctx context.Context, assetIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	return s.batchPrices(ctx, assetIDs, time.Time{})
}

// AtDateBatch returns, for each asset, the price of its most recent quote
// on or before asOf, keyed by asset id.
func (s *Store) AtDateBatch(ctx context.Context, assetIDs []uuid.UUID, asOf time.Time) (map[uuid.UUID]decimal.Decimal, error) {
	return s.batchPrices(ctx, assetIDs, asOf)
}

func (s *Store) batchPrices(ctx context.Context, assetIDs []uuid.UUID, asOf time.Time) (map[uuid.UUID]decimal.Decimal, error) {
	now := time.Now()
	latest := asOf.IsZero()
	result := make(map[uuid.UUID]decimal.Decimal, len(assetIDs))
	for _, id := range assetIDs {
		if latest && s.Cache != nil {
			if price, ok := s.Cache.get(id, now); ok {
				result[id] = price
				continue
			}
		}
		var q *ledger.Quote
		var err error
		if latest {
			q, err = s.Latest(ctx, id, now)
		} else {
			q, err = s.Latest(ctx, id, asOf)
		}
		if err != nil {
			return nil, err
		}
		if q != nil {
			result[id] = q.EffectivePrice()
			if latest && s.Cache != nil {
				s.Cache.put(id, result[id], now)
			}
		}
	}
	return result, nil
}
