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

	"github.com/bigodinhc/investctr/ledger"
)

// UpsertSnapshot writes a materialized daily total, consolidated
// (AccountID nil) or per-account, overwriting any existing row for the same
// (user, date, account) key. Category breakdown columns live in the
// category_breakdown jsonb column and are marshaled by the caller.
func (s *Store) UpsertSnapshot(ctx context.Context, snap *ledger.PortfolioSnapshot, breakdownJSON []byte) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO portfolio_snapshots
			(user_id, date, account_id, currency, nav, total_cost,
			 realized_pnl, unrealized_pnl, category_breakdown, document_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, date, coalesce(account_id, '00000000-0000-0000-0000-000000000000')) DO UPDATE SET
			currency = EXCLUDED.currency,
			nav = EXCLUDED.nav,
			total_cost = EXCLUDED.total_cost,
			realized_pnl = EXCLUDED.realized_pnl,
			unrealized_pnl = EXCLUDED.unrealized_pnl,
			category_breakdown = EXCLUDED.category_breakdown,
			document_id = EXCLUDED.document_id`,
		snap.UserID, snap.Date, snap.AccountID, snap.Currency, snap.NAV,
		snap.TotalCost, snap.RealizedPnL, snap.UnrealizedPnL, breakdownJSON,
		snap.DocumentID,
	)
	return err
}

// ConsolidatedSnapshotsForUser lists the whole-portfolio (AccountID is null)
// snapshot series for a user in chronological order.
func (s *Store) ConsolidatedSnapshotsForUser(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*ledger.PortfolioSnapshot, error) {
	var snaps []*ledger.PortfolioSnapshot
	err := pgxscan.Select(ctx, s.DB, &snaps, `
		SELECT user_id, date, account_id, currency, nav, total_cost,
			realized_pnl, unrealized_pnl, document_id
		FROM portfolio_snapshots
		WHERE user_id = $1 AND account_id IS NULL AND date BETWEEN $2 AND $3
		ORDER BY date`, userID, from, to)
	return snaps, err
}

// PerAccountSnapshotsForUser lists every per-account snapshot row for a
// user on a single date (AccountID is never null in the result).
func (s *Store) PerAccountSnapshotsForUser(ctx context.Context, userID uuid.UUID, date time.Time) ([]*ledger.PortfolioSnapshot, error) {
	var snaps []*ledger.PortfolioSnapshot
	err := pgxscan.Select(ctx, s.DB, &snaps, `
		SELECT user_id, date, account_id, currency, nav, total_cost,
			realized_pnl, unrealized_pnl, document_id
		FROM portfolio_snapshots
		WHERE user_id = $1 AND account_id IS NOT NULL AND date = $2
		ORDER BY account_id`, userID, date)
	return snaps, err
}

// SnapshotBreakdown fetches the raw category_breakdown jsonb for a snapshot
// row, the piece UpsertSnapshot writes but the struct scan above skips.
func (s *Store) SnapshotBreakdown(ctx context.Context, userID uuid.UUID, date time.Time, accountID *uuid.UUID) ([]byte, error) {
	var raw []byte
	err := s.DB.QueryRow(ctx, `
		SELECT category_breakdown FROM portfolio_snapshots
		WHERE user_id = $1 AND date = $2
			AND coalesce(account_id, '00000000-0000-0000-0000-000000000000') =
				coalesce($3, '00000000-0000-0000-0000-000000000000')`,
		userID, date, accountID,
	).Scan(&raw)
	return raw, err
}
