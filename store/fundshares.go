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
package store

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigodinhc/investctr/ledger"
)

// UpsertFundShare writes a (user, date) quota row, overwriting any existing
// computation for that day (NAV jobs are idempotent and re-runnable).
func (s *Store) UpsertFundShare(ctx context.Context, f *ledger.FundShare) error {
	return s.DB.QueryRow(ctx, `
		INSERT INTO fund_shares
			(user_id, date, nav, shares_outstanding, share_value,
			 daily_return, cumulative_return)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, date) DO UPDATE SET
			nav = EXCLUDED.nav,
			shares_outstanding = EXCLUDED.shares_outstanding,
			share_value = EXCLUDED.share_value,
			daily_return = EXCLUDED.daily_return,
			cumulative_return = EXCLUDED.cumulative_return
		RETURNING id, created_at`,
		f.UserID, f.Date, f.NAV, f.SharesOutstanding, f.ShareValue,
		f.DailyReturn, f.CumulativeReturn,
	).Scan(&f.ID, &f.CreatedAt)
}

// LatestFundShare returns the most recent quota row strictly before date, or
// nil if the user has none yet (the seed case for NAV computation).
func (s *Store) LatestFundShare(ctx context.Context, userID uuid.UUID, before time.Time) (*ledger.FundShare, error) {
	var f ledger.FundShare
	rows, err := s.DB.Query(ctx, `
		SELECT id, user_id, date, nav, shares_outstanding, share_value,
			daily_return, cumulative_return, created_at
		FROM fund_shares
		WHERE user_id = $1 AND date < $2
		ORDER BY date DESC LIMIT 1`, userID, before)
	if err != nil {
		return nil, err
	}
	if err := pgxscan.ScanOne(&f, rows); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

// FundSharesForUserBetween lists quota rows in a closed date range, in
// chronological order, the series performance metrics are computed over.
func (s *Store) FundSharesForUserBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*ledger.FundShare, error) {
	var rows []*ledger.FundShare
	err := pgxscan.Select(ctx, s.DB, &rows, `
		SELECT id, user_id, date, nav, shares_outstanding, share_value,
			daily_return, cumulative_return, created_at
		FROM fund_shares
		WHERE user_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date`, userID, from, to)
	return rows, err
}
