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
package perf

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bigodinhc/investctr/ledger"
)

type fakeFundShareStore struct {
	rows []*ledger.FundShare
}

func (f *fakeFundShareStore) LatestFundShare(_ context.Context, _ uuid.UUID, before time.Time) (*ledger.FundShare, error) {
	var best *ledger.FundShare
	for _, r := range f.rows {
		if r.Date.Before(before) && (best == nil || r.Date.After(best.Date)) {
			best = r
		}
	}
	return best, nil
}

func (f *fakeFundShareStore) FundSharesForUserBetween(_ context.Context, _ uuid.UUID, from, to time.Time) ([]*ledger.FundShare, error) {
	var out []*ledger.FundShare
	for _, r := range f.rows {
		if !r.Date.Before(from) && !r.Date.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func mkShare(date time.Time, shareValue float64, dailyReturn float64) *ledger.FundShare {
	return &ledger.FundShare{
		Date:        date,
		ShareValue:  decimal.NewFromFloat(shareValue),
		DailyReturn: decimal.NewFromFloat(dailyReturn),
	}
}

func TestPerformanceNoHistory(t *testing.T) {
	e := New(&fakeFundShareStore{})
	res, err := e.Performance(context.Background(), uuid.New(), time.Now())
	require.NoError(t, err)
	require.Nil(t, res)
}

func TestMaxDrawdown(t *testing.T) {
	samples := []*ledger.FundShare{
		mkShare(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 100, 0),
		mkShare(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), 120, 0.2),
		mkShare(time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC), 90, -0.25),
		mkShare(time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC), 110, 0.2222),
	}
	dd := maxDrawdown(samples)
	// peak 120 -> trough 90: (120-90)/120 = 0.25
	require.True(t, dd.Equal(decimal.NewFromFloat(0.25)), "dd=%s", dd)
}

func TestVolatilityRequiresMinimumSamples(t *testing.T) {
	samples := make([]*ledger.FundShare, 5)
	for i := range samples {
		samples[i] = mkShare(time.Date(2026, 1, i+1, 0, 0, 0, 0, time.UTC), 100, 0.01)
	}
	require.Nil(t, annualizedVolatility(samples))
}

func TestPerformanceReturns(t *testing.T) {
	userID := uuid.New()
	fs := &fakeFundShareStore{rows: []*ledger.FundShare{
		mkShare(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), 100, 0),
		mkShare(time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC), 110, 0.01),
		mkShare(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), 115, 0.0455),
	}}
	fs.rows[2].NAV = decimal.NewFromInt(11500)
	fs.rows[2].SharesOutstanding = decimal.NewFromInt(100)
	fs.rows[2].CumulativeReturn = decimal.NewFromFloat(0.15)

	e := New(fs)
	now := time.Date(2026, 7, 2, 0, 0, 0, 0, time.UTC)
	res, err := e.Performance(context.Background(), userID, now)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.True(t, res.CurrentShareValue.Equal(decimal.NewFromInt(115)))
	require.NotNil(t, res.MTDReturn)
	require.True(t, res.MTDReturn.Equal(decimal.NewFromFloat(0.0455)), "mtd=%s", *res.MTDReturn)
}
