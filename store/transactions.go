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
	"strconv"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"github.com/bigodinhc/investctr/ledger"
)

// TransactionFilter narrows ListTransactions; nil fields are unconstrained.
type TransactionFilter struct {
	AccountID  *uuid.UUID
	AssetID    *uuid.UUID
	DocumentID *uuid.UUID
	Type       *ledger.TransactionType
	DateFrom   *time.Time
	DateTo     *time.Time
	Limit      int
	Offset     int
}

// ListTransactions applies a filter with pagination, newest-first.
func (s *Store) ListTransactions(ctx context.Context, f TransactionFilter) ([]*ledger.Transaction, error) {
	query := `
		SELECT id, account_id, asset_id, document_id, type, quantity, price,
			fees, currency, exchange_rate, executed_at, notes
		FROM transactions WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.AccountID != nil {
		query += " AND account_id = " + arg(*f.AccountID)
	}
	if f.AssetID != nil {
		query += " AND asset_id = " + arg(*f.AssetID)
	}
	if f.DocumentID != nil {
		query += " AND document_id = " + arg(*f.DocumentID)
	}
	if f.Type != nil {
		query += " AND type = " + arg(*f.Type)
	}
	if f.DateFrom != nil {
		query += " AND executed_at >= " + arg(*f.DateFrom)
	}
	if f.DateTo != nil {
		query += " AND executed_at <= " + arg(*f.DateTo)
	}
	query += " ORDER BY executed_at DESC, id DESC"

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT " + arg(limit) + " OFFSET " + arg(f.Offset)

	var txs []*ledger.Transaction
	err := pgxscan.Select(ctx, s.DB, &txs, query, args...)
	return txs, err
}

// CreateTransaction inserts an immutable journal entry.
func (s *Store) CreateTransaction(ctx context.Context, t *ledger.Transaction) error {
	return s.DB.QueryRow(ctx, `
		INSERT INTO transactions
			(account_id, asset_id, document_id, type, quantity, price, fees,
			 currency, exchange_rate, executed_at, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		t.AccountID, t.AssetID, t.DocumentID, t.Type, t.Quantity, t.Price,
		t.Fees, t.Currency, t.ExchangeRate, t.ExecutedAt, t.Notes,
	).Scan(&t.ID)
}

// TransactionByID fetches a single transaction, used to resolve its
// (account, asset) pair before an update or delete triggers a replay.
func (s *Store) TransactionByID(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	var t ledger.Transaction
	rows, err := s.DB.Query(ctx, `
		SELECT id, account_id, asset_id, document_id, type, quantity, price,
			fees, currency, exchange_rate, executed_at, notes
		FROM transactions WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if err := pgxscan.ScanOne(&t, rows); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTransaction overwrites every mutable field of a journal entry. The
// caller must replay the (account, asset) pair afterward (and, if the pair
// changed, the old pair too) since transactions are never edited in a way
// that leaves position state silently stale.
func (s *Store) UpdateTransaction(ctx context.Context, t *ledger.Transaction) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE transactions SET
			account_id = $2, asset_id = $3, document_id = $4, type = $5,
			quantity = $6, price = $7, fees = $8, currency = $9,
			exchange_rate = $10, executed_at = $11, notes = $12
		WHERE id = $1`,
		t.ID, t.AccountID, t.AssetID, t.DocumentID, t.Type, t.Quantity,
		t.Price, t.Fees, t.Currency, t.ExchangeRate, t.ExecutedAt, t.Notes,
	)
	return err
}

// DeleteTransaction removes a journal entry. The caller must replay its
// (account, asset) pair afterward.
func (s *Store) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	_, err := s.DB.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	return err
}

// TransactionsForReplay returns every replay-relevant transaction for an
// (account, asset) pair in chronological order, tie-broken by id, the order
// the replay engine requires.
func (s *Store) TransactionsForReplay(ctx context.Context, accountID, assetID uuid.UUID) ([]*ledger.Transaction, error) {
	var txs []*ledger.Transaction
	err := pgxscan.Select(ctx, s.DB, &txs, `
		SELECT id, account_id, asset_id, document_id, type, quantity, price,
			fees, currency, exchange_rate, executed_at, notes
		FROM transactions
		WHERE account_id = $1 AND asset_id = $2
			AND type IN ('BUY', 'SELL', 'SUBSCRIPTION', 'TRANSFER_IN', 'TRANSFER_OUT', 'SPLIT')
		ORDER BY executed_at, id`, accountID, assetID)
	return txs, err
}

// TransactionsForAccount lists every transaction booked to an account,
// chronologically.
func (s *Store) TransactionsForAccount(ctx context.Context, accountID uuid.UUID) ([]*ledger.Transaction, error) {
	var txs []*ledger.Transaction
	err := pgxscan.Select(ctx, s.DB, &txs, `
		SELECT id, account_id, asset_id, document_id, type, quantity, price,
			fees, currency, exchange_rate, executed_at, notes
		FROM transactions WHERE account_id = $1 ORDER BY executed_at, id`, accountID)
	return txs, err
}

// DistinctReplayPairs returns every (account, asset) pair with at least one
// replay-relevant transaction, the work list the replay command iterates.
func (s *Store) DistinctReplayPairs(ctx context.Context) ([][2]uuid.UUID, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT DISTINCT account_id, asset_id FROM transactions
		WHERE type IN ('BUY', 'SELL', 'SUBSCRIPTION', 'TRANSFER_IN', 'TRANSFER_OUT', 'SPLIT')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs [][2]uuid.UUID
	for rows.Next() {
		var accountID, assetID uuid.UUID
		if err := rows.Scan(&accountID, &assetID); err != nil {
			return nil, err
		}
		pairs = append(pairs, [2]uuid.UUID{accountID, assetID})
	}
	return pairs, rows.Err()
}
