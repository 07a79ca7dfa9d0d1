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

// ReplaceFixedIncomePositions swaps all fixed-income holdings of an account,
// whatever their reference date, for the parsed statement set, inside a
// transaction, the same replace-wholesale approach reconciliation uses for
// statement-only books.
func (s *Store) ReplaceFixedIncomePositions(ctx context.Context, accountID uuid.UUID, positions []*ledger.FixedIncomePosition) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM fixed_income_positions WHERE account_id = $1`, accountID); err != nil {
		return err
	}

	for _, p := range positions {
		if _, err := tx.Exec(ctx, `
			INSERT INTO fixed_income_positions
				(account_id, name, issuer, index_name, quantity, unit_price,
				 gross_value, maturity_date, reference_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			accountID, p.Name, p.Issuer, p.Index, p.Quantity, p.UnitPrice,
			p.GrossValue, p.MaturityDate, p.ReferenceDate,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// FixedIncomePositionsForAccount lists the current fixed-income book.
func (s *Store) FixedIncomePositionsForAccount(ctx context.Context, accountID uuid.UUID) ([]*ledger.FixedIncomePosition, error) {
	var positions []*ledger.FixedIncomePosition
	err := pgxscan.Select(ctx, s.DB, &positions, `
		SELECT id, account_id, name, issuer, index_name, quantity, unit_price,
			gross_value, maturity_date, reference_date
		FROM fixed_income_positions WHERE account_id = $1`, accountID)
	return positions, err
}

// ReplaceInvestmentFundPositions swaps all of an account's fund-quota
// holdings, whatever their reference date, for the parsed statement set.
func (s *Store) ReplaceInvestmentFundPositions(ctx context.Context, accountID uuid.UUID, positions []*ledger.InvestmentFundPosition) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM investment_fund_positions WHERE account_id = $1`, accountID); err != nil {
		return err
	}

	for _, p := range positions {
		if _, err := tx.Exec(ctx, `
			INSERT INTO investment_fund_positions
				(account_id, fund_name, cnpj, quotas, quota_value,
				 gross_value, reference_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			accountID, p.FundName, p.CNPJ, p.Quotas, p.QuotaValue,
			p.GrossValue, p.ReferenceDate,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// InvestmentFundPositionsForAccount lists the current fund-quota book.
func (s *Store) InvestmentFundPositionsForAccount(ctx context.Context, accountID uuid.UUID) ([]*ledger.InvestmentFundPosition, error) {
	var positions []*ledger.InvestmentFundPosition
	err := pgxscan.Select(ctx, s.DB, &positions, `
		SELECT id, account_id, fund_name, cnpj, quotas, quota_value,
			gross_value, reference_date
		FROM investment_fund_positions WHERE account_id = $1`, accountID)
	return positions, err
}
