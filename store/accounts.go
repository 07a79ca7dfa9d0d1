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

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"github.com/bigodinhc/investctr/ledger"
)

// CreateAccount inserts a new account and stores its generated ID and
// creation time in a.
func (s *Store) CreateAccount(ctx context.Context, a *ledger.Account) error {
	return s.DB.QueryRow(ctx, `
		INSERT INTO accounts (user_id, name, type, currency, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		a.UserID, a.Name, a.Type, a.Currency, a.IsActive,
	).Scan(&a.ID, &a.CreatedAt)
}

// AccountByID fetches a single account, returning pgx.ErrNoRows if absent.
func (s *Store) AccountByID(ctx context.Context, id uuid.UUID) (*ledger.Account, error) {
	var a ledger.Account
	rows, err := s.DB.Query(ctx, `
		SELECT id, user_id, name, type, currency, is_active, created_at
		FROM accounts WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if err := pgxscan.ScanOne(&a, rows); err != nil {
		return nil, err
	}
	return &a, nil
}

// AccountsForUser lists every account owned by the given user.
func (s *Store) AccountsForUser(ctx context.Context, userID uuid.UUID) ([]*ledger.Account, error) {
	var accounts []*ledger.Account
	err := pgxscan.Select(ctx, s.DB, &accounts, `
		SELECT id, user_id, name, type, currency, is_active, created_at
		FROM accounts WHERE user_id = $1 ORDER BY created_at`, userID)
	return accounts, err
}

// UpdateAccount overwrites an account's mutable fields (name, type,
// currency).
func (s *Store) UpdateAccount(ctx context.Context, a *ledger.Account) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE accounts SET name = $2, type = $3, currency = $4
		WHERE id = $1`, a.ID, a.Name, a.Type, a.Currency)
	return err
}

// SetAccountActive flips the is_active flag, used when a brokerage
// relationship is closed without deleting its history.
func (s *Store) SetAccountActive(ctx context.Context, id uuid.UUID, active bool) error {
	_, err := s.DB.Exec(ctx, `UPDATE accounts SET is_active = $2 WHERE id = $1`, id, active)
	return err
}

// DistinctUserIDs lists every user who owns at least one active account,
// the driving set for the scheduler's NAV and snapshot jobs.
func (s *Store) DistinctUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.DB.Query(ctx, `SELECT DISTINCT user_id FROM accounts WHERE is_active = true`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
