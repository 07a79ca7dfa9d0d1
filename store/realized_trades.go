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
	"github.com/shopspring/decimal"

	"github.com/bigodinhc/investctr/ledger"
)

// CreateRealizedTrade appends a permanent record of a closed quantity.
// Realized trades are never updated or deleted by replay. It is idempotent
// on (account_id, asset_id, close_date, close_quantity, close_avg_price): a
// second replay over the same transaction log does not duplicate the
// event. Returns false (with rt.ID left zero) when the row already existed.
func (s *Store) CreateRealizedTrade(ctx context.Context, rt *ledger.RealizedTrade) (bool, error) {
	var id uuid.UUID
	err := s.DB.QueryRow(ctx, `
		INSERT INTO realized_trades
			(account_id, asset_id, open_quantity, open_avg_price, open_date,
			 close_quantity, close_avg_price, close_date, realized_pnl,
			 realized_pnl_pct, document_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT ON CONSTRAINT realized_trades_dedup_key DO NOTHING
		RETURNING id`,
		rt.AccountID, rt.AssetID, rt.OpenQuantity, rt.OpenAvgPrice, rt.OpenDate,
		rt.CloseQuantity, rt.CloseAvgPrice, rt.CloseDate, rt.RealizedPnL,
		rt.RealizedPnLPct, rt.DocumentID, rt.Notes,
	).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	rt.ID = id
	return true, nil
}

// RealizedTradesForAccount lists every closed trade booked to an account.
func (s *Store) RealizedTradesForAccount(ctx context.Context, accountID uuid.UUID) ([]*ledger.RealizedTrade, error) {
	var trades []*ledger.RealizedTrade
	err := pgxscan.Select(ctx, s.DB, &trades, `
		SELECT id, account_id, asset_id, open_quantity, open_avg_price,
			open_date, close_quantity, close_avg_price, close_date,
			realized_pnl, realized_pnl_pct, document_id, notes
		FROM realized_trades WHERE account_id = $1 ORDER BY close_date, id`, accountID)
	return trades, err
}

// RealizedPnLForUserBetween sums the persisted realized_trades P&L for a
// user's accounts in a closed date window.
func (s *Store) RealizedPnLForUserBetween(ctx context.Context, userID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.DB.QueryRow(ctx, `
		SELECT coalesce(sum(rt.realized_pnl), 0)
		FROM realized_trades rt
		JOIN accounts a ON a.id = rt.account_id
		WHERE a.user_id = $1 AND rt.close_date::date BETWEEN $2::date AND $3::date`,
		userID, from, to,
	).Scan(&total)
	return total, err
}
