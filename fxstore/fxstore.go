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

// Package fxstore persists and looks up dated currency exchange rates, and
// converts amounts between currencies through them.
package fxstore

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/bigodinhc/investctr/apperr"
	"github.com/bigodinhc/investctr/ledger"
)

// DefaultFallbackDays is how far back Lookup searches for a rate when none
// exists on the exact date, matching this system's prior fallback-window
// convention.
const DefaultFallbackDays = 7

// Store persists exchange rates against a shared connection pool.
type Store struct {
	Pool *pgxpool.Pool
}

// New wraps an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

// Save upserts a dated rate, keyed by (from_currency, to_currency, date).
func (s *Store) Save(ctx context.Context, r *ledger.ExchangeRate) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO exchange_rates (date, from_currency, to_currency, rate, source)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (date, from_currency, to_currency) DO UPDATE SET
			rate = EXCLUDED.rate,
			source = EXCLUDED.source`,
		r.Date, r.FromCurrency, r.ToCurrency, r.Rate, r.Source)
	if err != nil {
		log.Error().Err(err).Str("from", r.FromCurrency).Str("to", r.ToCurrency).
			Time("date", r.Date).Msg("error saving exchange rate to database")
	}
	return err
}

// SaveReciprocal derives and saves the inverse of a rate already fetched
// for the opposite pair, the same derivation the rate source applies when a
// provider only publishes one direction of a currency pair
// (1 / quoted_rate).
func (s *Store) SaveReciprocal(ctx context.Context, r *ledger.ExchangeRate) error {
	reciprocal := &ledger.ExchangeRate{
		Date:         r.Date,
		FromCurrency: r.ToCurrency,
		ToCurrency:   r.FromCurrency,
		Rate:         decimal.NewFromInt(1).Div(r.Rate),
		Source:       r.Source,
	}
	return s.Save(ctx, reciprocal)
}

// Lookup finds the rate for (from, to) on date, falling back to the most
// recent rate within fallbackDays prior days if the exact date is missing.
// If from == to, it returns 1 without touching the database. When the pair
// itself has no rate on file in the window but the reverse pair does, the
// reverse rate is inverted rather than reporting not-found.
func (s *Store) Lookup(ctx context.Context, from, to string, date time.Time, fallbackDays int) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	rate, err := s.lookupDirect(ctx, from, to, date, fallbackDays)
	if err == nil {
		return rate, nil
	}
	if !apperr.Is(err, apperr.CodeNotFound) {
		return decimal.Zero, err
	}

	reverse, revErr := s.lookupDirect(ctx, to, from, date, fallbackDays)
	if revErr != nil {
		if apperr.Is(revErr, apperr.CodeNotFound) {
			return decimal.Zero, apperr.NotFound("no exchange rate for %s->%s (or its reverse) within %d days of %s", from, to, fallbackDays, date.Format("2006-01-02"))
		}
		return decimal.Zero, revErr
	}
	return decimal.NewFromInt(1).Div(reverse), nil
}

func (s *Store) lookupDirect(ctx context.Context, from, to string, date time.Time, fallbackDays int) (decimal.Decimal, error) {
	var rate decimal.Decimal
	rows, err := s.Pool.Query(ctx, `
		SELECT rate FROM exchange_rates
		WHERE from_currency = $1 AND to_currency = $2
			AND date BETWEEN $3::date - make_interval(days => $4) AND $3::date
		ORDER BY date DESC LIMIT 1`, from, to, date, fallbackDays)
	if err != nil {
		return decimal.Zero, err
	}
	if err := pgxscan.ScanOne(&rate, rows); err != nil {
		if err == pgx.ErrNoRows {
			return decimal.Zero, apperr.NotFound("no exchange rate for %s->%s within %d days of %s", from, to, fallbackDays, date.Format("2006-01-02"))
		}
		return decimal.Zero, err
	}
	return rate, nil
}

// Convert applies Lookup's rate to amount. When no rate is on file within
// the fallback window (direct or reverse), it returns amount unchanged with
// a nil rate rather than an error; callers decide whether to surface that
// as a partial result.
func (s *Store) Convert(ctx context.Context, amount decimal.Decimal, from, to string, date time.Time, fallbackDays int) (decimal.Decimal, *decimal.Decimal, error) {
	rate, err := s.Lookup(ctx, from, to, date, fallbackDays)
	if err != nil {
		if apperr.Is(err, apperr.CodeNotFound) {
			return amount, nil, nil
		}
		return decimal.Zero, nil, err
	}
	return amount.Mul(rate), &rate, nil
}
