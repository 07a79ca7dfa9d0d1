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

// Package perf derives MTD/YTD/1-year returns, max drawdown, and
// annualized volatility from a user's FundShare history. Arithmetic is
// decimal throughout except the volatility standard deviation (mean,
// variance and square root), computed in float64 because the square
// root has no fixed-point equivalent.
package perf

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bigodinhc/investctr/ledger"
)

// MaxSamples bounds how many trailing daily FundShare rows feed drawdown
// and volatility (one trading year).
const MaxSamples = 252

// MinVolatilitySamples is the minimum sample count required to report a
// volatility figure; below it, Volatility is nil.
const MinVolatilitySamples = 20

// fundShareStore is the slice of *store.Store the engine needs.
type fundShareStore interface {
	LatestFundShare(ctx context.Context, userID uuid.UUID, before time.Time) (*ledger.FundShare, error)
	FundSharesForUserBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*ledger.FundShare, error)
}

// Engine computes FundPerformance reports from a fund-share store.
type Engine struct {
	Store fundShareStore
}

// New wraps a fund-share store.
func New(s fundShareStore) *Engine {
	return &Engine{Store: s}
}

// Result is the FundPerformance report for one user, as of its latest
// FundShare row.
type Result struct {
	AsOf              time.Time
	CurrentNAV        decimal.Decimal
	CurrentShareValue decimal.Decimal
	SharesOutstanding decimal.Decimal
	TotalReturn       decimal.Decimal
	DailyReturn       decimal.Decimal
	MTDReturn         *decimal.Decimal
	YTDReturn         *decimal.Decimal
	OneYearReturn     *decimal.Decimal
	MaxDrawdown       decimal.Decimal
	Volatility        *decimal.Decimal
}

// Performance builds the full metrics report for userID as of now.
func (e *Engine) Performance(ctx context.Context, userID uuid.UUID, now time.Time) (*Result, error) {
	latest, err := e.Store.LatestFundShare(ctx, userID, now.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return nil, nil
	}

	res := &Result{
		AsOf:              latest.Date,
		CurrentNAV:        latest.NAV,
		CurrentShareValue: latest.ShareValue,
		SharesOutstanding: latest.SharesOutstanding,
		TotalReturn:       latest.CumulativeReturn,
		DailyReturn:       latest.DailyReturn,
	}

	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	if r, err := e.returnAgainst(ctx, userID, latest, firstOfMonth.AddDate(0, 0, -1)); err != nil {
		return nil, err
	} else {
		res.MTDReturn = r
	}

	yearEnd := time.Date(now.Year()-1, time.December, 31, 0, 0, 0, 0, now.Location())
	if r, err := e.returnAgainst(ctx, userID, latest, yearEnd); err != nil {
		return nil, err
	} else {
		res.YTDReturn = r
	}

	if r, err := e.returnAgainst(ctx, userID, latest, now.AddDate(-1, 0, 0)); err != nil {
		return nil, err
	} else {
		res.OneYearReturn = r
	}

	history, err := e.Store.FundSharesForUserBetween(ctx, userID, time.Time{}, latest.Date)
	if err != nil {
		return nil, err
	}
	samples := trailingSamples(history, MaxSamples)

	res.MaxDrawdown = maxDrawdown(samples)
	res.Volatility = annualizedVolatility(samples)

	return res, nil
}

// returnAgainst computes (latest.ShareValue - baseline.ShareValue) /
// baseline.ShareValue where baseline is the latest row at or before
// asOf; nil if no such row exists.
func (e *Engine) returnAgainst(ctx context.Context, userID uuid.UUID, latest *ledger.FundShare, asOf time.Time) (*decimal.Decimal, error) {
	baseline, err := e.Store.LatestFundShare(ctx, userID, asOf.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	if baseline == nil || baseline.ShareValue.IsZero() {
		return nil, nil
	}
	r := ledger.RoundPercent(latest.ShareValue.Sub(baseline.ShareValue).Div(baseline.ShareValue))
	return &r, nil
}

// trailingSamples returns up to n of history's most recent rows, sorted
// oldest-first.
func trailingSamples(history []*ledger.FundShare, n int) []*ledger.FundShare {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	return history
}

// maxDrawdown peak-tracks share_value across samples and returns the
// largest (peak-value)/peak observed.
func maxDrawdown(samples []*ledger.FundShare) decimal.Decimal {
	if len(samples) == 0 {
		return decimal.Zero
	}

	peak := samples[0].ShareValue
	maxDD := decimal.Zero
	for _, s := range samples {
		if s.ShareValue.GreaterThan(peak) {
			peak = s.ShareValue
		}
		if peak.IsZero() {
			continue
		}
		dd := peak.Sub(s.ShareValue).Div(peak)
		if dd.GreaterThan(maxDD) {
			maxDD = dd
		}
	}
	return ledger.RoundPercent(maxDD)
}

// annualizedVolatility returns the sample standard deviation of
// daily_return across samples, annualized by sqrt(252); nil if there
// are fewer than MinVolatilitySamples.
func annualizedVolatility(samples []*ledger.FundShare) *decimal.Decimal {
	if len(samples) < MinVolatilitySamples {
		return nil
	}

	n := float64(len(samples))
	var sum float64
	for _, s := range samples {
		sum += s.DailyReturn.InexactFloat64()
	}
	mean := sum / n

	var sumSq float64
	for _, s := range samples {
		d := s.DailyReturn.InexactFloat64() - mean
		sumSq += d * d
	}
	variance := sumSq / (n - 1)
	stdDev := math.Sqrt(variance)
	annualized := stdDev * math.Sqrt(float64(MaxSamples))

	v := ledger.RoundPercent(decimal.NewFromFloat(annualized))
	return &v
}
