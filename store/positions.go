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

// PositionFor fetches the current open position for an (account, asset)
// pair, or nil if none is open.
func (s *Store) PositionFor(ctx context.Context, accountID, assetID uuid.UUID) (*ledger.Position, error) {
	var p ledger.Position
	rows, err := s.DB.Query(ctx, `
		SELECT id, account_id, asset_id, quantity, avg_price, total_cost,
			position_type, opened_at, updated_at, source
		FROM positions WHERE account_id = $1 AND asset_id = $2`, accountID, assetID)
	if err != nil {
		return nil, err
	}
	if err := pgxscan.ScanOne(&p, rows); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// UpsertPosition writes the replay engine's recomputed state for an
// (account, asset) pair. The unique constraint on (account_id, asset_id)
// guarantees at most one row survives. A zero UpdatedAt takes the write
// time; a statement-sourced position passes its reference date instead so
// later replays can anchor on it.
func (s *Store) UpsertPosition(ctx context.Context, p *ledger.Position) error {
	var updatedAt *time.Time
	if !p.UpdatedAt.IsZero() {
		updatedAt = &p.UpdatedAt
	}
	return s.DB.QueryRow(ctx, `
		INSERT INTO positions
			(account_id, asset_id, quantity, avg_price, total_cost,
			 position_type, opened_at, updated_at, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()), $9)
		ON CONFLICT (account_id, asset_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			avg_price = EXCLUDED.avg_price,
			total_cost = EXCLUDED.total_cost,
			position_type = EXCLUDED.position_type,
			updated_at = EXCLUDED.updated_at,
			source = EXCLUDED.source
		RETURNING id, updated_at`,
		p.AccountID, p.AssetID, p.Quantity, p.AvgPrice, p.TotalCost,
		p.Type, p.OpenedAt, updatedAt, p.Source,
	).Scan(&p.ID, &p.UpdatedAt)
}

// DeletePosition removes the (account, asset) position row entirely, used
// when replay or reconciliation determines the position has fully closed.
func (s *Store) DeletePosition(ctx context.Context, accountID, assetID uuid.UUID) error {
	_, err := s.DB.Exec(ctx, `DELETE FROM positions WHERE account_id = $1 AND asset_id = $2`, accountID, assetID)
	return err
}

// PositionsForAccount lists every open position in an account.
func (s *Store) PositionsForAccount(ctx context.Context, accountID uuid.UUID) ([]*ledger.Position, error) {
	var positions []*ledger.Position
	err := pgxscan.Select(ctx, s.DB, &positions, `
		SELECT id, account_id, asset_id, quantity, avg_price, total_cost,
			position_type, opened_at, updated_at, source
		FROM positions WHERE account_id = $1`, accountID)
	return positions, err
}

// PositionsForUser lists every open position across every account owned by
// a user, the input to NAV computation and snapshot materialization.
func (s *Store) PositionsForUser(ctx context.Context, userID uuid.UUID) ([]*ledger.Position, error) {
	var positions []*ledger.Position
	err := pgxscan.Select(ctx, s.DB, &positions, `
		SELECT p.id, p.account_id, p.asset_id, p.quantity, p.avg_price,
			p.total_cost, p.position_type, p.opened_at, p.updated_at, p.source
		FROM positions p
		JOIN accounts a ON a.id = p.account_id
		WHERE a.user_id = $1`, userID)
	return positions, err
}
