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

// Package scheduler exposes the pure, cron-triggered entry points (quote
// sync, FX sync, NAV, snapshot); it owns no embedded scheduler itself. A
// ports.TaskRunner adapter calls these at the configured times. Quote
// fetch fans out over a bounded errgroup so provider rate limits stay
// predictable.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/bigodinhc/investctr/apperr"
	"github.com/bigodinhc/investctr/ledger"
	"github.com/bigodinhc/investctr/nav"
	"github.com/bigodinhc/investctr/ports"
	"github.com/bigodinhc/investctr/snapshot"
)

// AssetLister is the narrow slice of *store.Store the quote-sync job needs.
type AssetLister interface {
	ActiveAssets(ctx context.Context) ([]*ledger.Asset, error)
}

// CurrencyLister is the narrow slice of *store.Store the FX-sync job needs.
type CurrencyLister interface {
	DistinctCurrencies(ctx context.Context) ([]string, error)
}

// RateSaver is the narrow slice of *fxstore.Store the FX-sync job needs.
type RateSaver interface {
	Save(ctx context.Context, r *ledger.ExchangeRate) error
}

// QuoteSaver is the narrow slice of *quotestore.Store the quote-sync job
// needs.
type QuoteSaver interface {
	SaveAll(ctx context.Context, quotes []*ledger.Quote) error
}

// UserLister is the narrow slice of *store.Store the NAV/snapshot jobs
// need to enumerate every user with at least one active account.
type UserLister interface {
	DistinctUserIDs(ctx context.Context) ([]uuid.UUID, error)
}

// QuoteSyncResult reports one asset's outcome so a caller can log or
// surface per-ticker failures without the whole job failing.
type QuoteSyncResult struct {
	Ticker string
	Err    error
}

// SyncAllQuotes fetches the last lookbackDays of bars for every active
// asset from provider, bounded to parallelism concurrent fetches, and
// upserts them through quotes. It returns one result per asset so a
// caller can report partial failures.
func SyncAllQuotes(ctx context.Context, assets AssetLister, quotes QuoteSaver, provider ports.QuoteProvider, parallelism int, lookbackDays int) ([]QuoteSyncResult, error) {
	active, err := assets.ActiveAssets(ctx)
	if err != nil {
		return nil, apperr.ExternalProvider(err, "listing active assets for quote sync failed")
	}

	if parallelism <= 0 {
		parallelism = 5
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -lookbackDays)

	results := make([]QuoteSyncResult, len(active))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i, a := range active {
		i, a := i, a
		g.Go(func() error {
			bars, err := provider.FetchQuotes(gctx, a.Ticker, from, to)
			if err != nil {
				results[i] = QuoteSyncResult{Ticker: a.Ticker, Err: err}
				return nil
			}
			for _, b := range bars {
				b.AssetID = a.ID
			}
			if err := quotes.SaveAll(gctx, bars); err != nil {
				results[i] = QuoteSyncResult{Ticker: a.Ticker, Err: err}
				return nil
			}
			results[i] = QuoteSyncResult{Ticker: a.Ticker}
			return nil
		})
	}

	// Every goroutine returns nil, so g.Wait reports no error here;
	// per-ticker failures (including a cancelled context) are captured in
	// results, never returned, so one bad ticker cannot fail the batch.
	if err := g.Wait(); err != nil {
		return results, apperr.ExternalProvider(err, "quote sync batch aborted")
	}
	return results, nil
}

// FXSyncResult reports one currency pair's outcome, mirroring
// QuoteSyncResult's per-item failure isolation.
type FXSyncResult struct {
	Currency string
	Err      error
}

// SyncAllFXRates fetches the last lookbackDays of daily rates for every
// currency in use against baseCurrency and upserts them through rates.
// The base currency itself is skipped since nav.Engine treats a
// base-to-base rate as always 1 without looking it up.
func SyncAllFXRates(ctx context.Context, currencies CurrencyLister, rates RateSaver, provider ports.FXProvider, baseCurrency string, lookbackDays int) ([]FXSyncResult, error) {
	all, err := currencies.DistinctCurrencies(ctx)
	if err != nil {
		return nil, apperr.ExternalProvider(err, "listing currencies for FX sync failed")
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -lookbackDays)

	var results []FXSyncResult
	for _, cur := range all {
		if cur == baseCurrency {
			continue
		}

		result := FXSyncResult{Currency: cur}
		quotes, err := provider.FetchRates(ctx, cur, baseCurrency, from, to)
		if err != nil {
			result.Err = err
			results = append(results, result)
			continue
		}
		for _, q := range quotes {
			if err := rates.Save(ctx, q); err != nil {
				result.Err = err
				break
			}
		}
		results = append(results, result)
	}
	return results, nil
}

// NAVForAllUsers computes and persists the daily fund share for every
// user with at least one active account, at date. A per-user failure is
// logged and skipped rather than aborting the whole run.
func NAVForAllUsers(ctx context.Context, users UserLister, navEngine *nav.Engine, date time.Time) error {
	ids, err := users.DistinctUserIDs(ctx)
	if err != nil {
		return apperr.ExternalProvider(err, "listing users for NAV job failed")
	}

	for _, userID := range ids {
		if _, err := navEngine.CreateDailyFundShare(ctx, userID, date); err != nil {
			log.Error().Err(err).Str("UserID", userID.String()).Time("Date", date).Msg("daily fund share computation failed")
		}
	}
	return nil
}

// SnapshotForAllUsers materializes the consolidated and per-account
// PortfolioSnapshot for every user with at least one active account, at
// date.
func SnapshotForAllUsers(ctx context.Context, users UserLister, snapEngine *snapshot.Engine, date time.Time) error {
	ids, err := users.DistinctUserIDs(ctx)
	if err != nil {
		return apperr.ExternalProvider(err, "listing users for snapshot job failed")
	}

	for _, userID := range ids {
		if err := snapEngine.MaterializeForUser(ctx, userID, date); err != nil {
			log.Error().Err(err).Str("UserID", userID.String()).Time("Date", date).Msg("snapshot materialization failed")
		}
	}
	return nil
}
