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
	"github.com/shopspring/decimal"

	"github.com/bigodinhc/investctr/ledger"
)

// CreateCashFlow inserts a cash movement.
func (s *Store) CreateCashFlow(ctx context.Context, c *ledger.CashFlow) error {
	return s.DB.QueryRow(ctx, `
		INSERT INTO cash_flows
			(account_id, type, amount, currency, exchange_rate, executed_at,
			 shares_affected, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		c.AccountID, c.Type, c.Amount, c.Currency, c.ExchangeRate,
		c.ExecutedAt, c.SharesAffected, c.Notes,
	).Scan(&c.ID)
}

// UpdateCashFlow overwrites every mutable field of a cash movement except
// shares_affected, which SetCashFlowSharesAffected writes.
func (s *Store) UpdateCashFlow(ctx context.Context, c *ledger.CashFlow) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE cash_flows SET
			account_id = $2, type = $3, amount = $4, currency = $5,
			exchange_rate = $6, executed_at = $7, notes = $8
		WHERE id = $1`,
		c.ID, c.AccountID, c.Type, c.Amount, c.Currency, c.ExchangeRate,
		c.ExecutedAt, c.Notes,
	)
	return err
}

// DeleteCashFlow removes a cash movement.
func (s *Store) DeleteCashFlow(ctx context.Context, id uuid.UUID) error {
	_, err := s.DB.Exec(ctx, `DELETE FROM cash_flows WHERE id = $1`, id)
	return err
}

// CashFlowByID fetches a single cash movement.
func (s *Store) CashFlowByID(ctx context.Context, id uuid.UUID) (*ledger.CashFlow, error) {
	var c ledger.CashFlow
	rows, err := s.DB.Query(ctx, `
		SELECT id, account_id, type, amount, currency, exchange_rate,
			executed_at, shares_affected, notes
		FROM cash_flows WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if err := pgxscan.ScanOne(&c, rows); err != nil {
		return nil, err
	}
	return &c, nil
}

// CashFlowsForAccount lists every cash movement booked to an account.
func (s *Store) CashFlowsForAccount(ctx context.Context, accountID uuid.UUID) ([]*ledger.CashFlow, error) {
	var flows []*ledger.CashFlow
	err := pgxscan.Select(ctx, s.DB, &flows, `
		SELECT id, account_id, type, amount, currency, exchange_rate,
			executed_at, shares_affected, notes
		FROM cash_flows WHERE account_id = $1 ORDER BY executed_at, id`, accountID)
	return flows, err
}

// SetCashFlowSharesAffected records how many fund shares a deposit or
// withdrawal cash flow issued (positive) or redeemed (negative).
func (s *Store) SetCashFlowSharesAffected(ctx context.Context, id uuid.UUID, shares decimal.Decimal) error {
	_, err := s.DB.Exec(ctx, `UPDATE cash_flows SET shares_affected = $2 WHERE id = $1`, id, shares)
	return err
}

// CashFlowsForUserUpTo lists every cash flow across a user's accounts with
// executed_at at or before asOf, in chronological order.
func (s *Store) CashFlowsForUserUpTo(ctx context.Context, userID uuid.UUID, asOf time.Time) ([]*ledger.CashFlow, error) {
	var flows []*ledger.CashFlow
	err := pgxscan.Select(ctx, s.DB, &flows, `
		SELECT cf.id, cf.account_id, cf.type, cf.amount, cf.currency,
			cf.exchange_rate, cf.executed_at, cf.shares_affected, cf.notes
		FROM cash_flows cf
		JOIN accounts a ON a.id = cf.account_id
		WHERE a.user_id = $1 AND cf.executed_at <= $2
		ORDER BY cf.executed_at, cf.id`, userID, asOf)
	return flows, err
}

// CashBalanceForAccount lists every cash flow booked to an account up to
// and including asOf; the NAV and snapshot engines sum their effective
// amounts into the balance they add to marked positions.
func (s *Store) CashBalanceForAccount(ctx context.Context, accountID uuid.UUID, asOf time.Time) ([]*ledger.CashFlow, error) {
	var flows []*ledger.CashFlow
	err := pgxscan.Select(ctx, s.DB, &flows, `
		SELECT id, account_id, type, amount, currency, exchange_rate,
			executed_at, shares_affected, notes
		FROM cash_flows WHERE account_id = $1 AND executed_at <= $2
		ORDER BY executed_at, id`, accountID, asOf)
	return flows, err
}
