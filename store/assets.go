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

// UpsertAsset inserts an asset or, if the ticker already exists, updates its
// mutable fields. Ticker is globally unique.
func (s *Store) UpsertAsset(ctx context.Context, a *ledger.Asset) error {
	return s.DB.QueryRow(ctx, `
		INSERT INTO assets (ticker, name, asset_type, currency, exchange, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ticker) DO UPDATE SET
			name = EXCLUDED.name,
			asset_type = EXCLUDED.asset_type,
			currency = EXCLUDED.currency,
			exchange = EXCLUDED.exchange,
			is_active = EXCLUDED.is_active
		RETURNING id`,
		a.Ticker, a.Name, a.Type, a.Currency, a.Exchange, a.IsActive,
	).Scan(&a.ID)
}

// AssetByID fetches a single asset.
func (s *Store) AssetByID(ctx context.Context, id uuid.UUID) (*ledger.Asset, error) {
	var a ledger.Asset
	rows, err := s.DB.Query(ctx, `
		SELECT id, ticker, name, asset_type, currency, exchange, is_active
		FROM assets WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if err := pgxscan.ScanOne(&a, rows); err != nil {
		return nil, err
	}
	return &a, nil
}

// AssetByTicker fetches a single asset by its globally unique ticker.
func (s *Store) AssetByTicker(ctx context.Context, ticker string) (*ledger.Asset, error) {
	var a ledger.Asset
	rows, err := s.DB.Query(ctx, `
		SELECT id, ticker, name, asset_type, currency, exchange, is_active
		FROM assets WHERE ticker = $1`, ticker)
	if err != nil {
		return nil, err
	}
	if err := pgxscan.ScanOne(&a, rows); err != nil {
		return nil, err
	}
	return &a, nil
}

// ActiveAssets lists every active asset, used by the quote-sync job and by
// the FIGI cache loader.
func (s *Store) ActiveAssets(ctx context.Context) ([]*ledger.Asset, error) {
	var assets []*ledger.Asset
	err := pgxscan.Select(ctx, s.DB, &assets, `
		SELECT id, ticker, name, asset_type, currency, exchange, is_active
		FROM assets WHERE is_active = true ORDER BY ticker`)
	return assets, err
}

// DistinctCurrencies lists every currency code in use by an active
// account or asset, the driving set for the FX-sync job: every currency
// the NAV engine might need to convert against the base currency.
func (s *Store) DistinctCurrencies(ctx context.Context) ([]string, error) {
	var currencies []string
	err := pgxscan.Select(ctx, s.DB, &currencies, `
		SELECT currency FROM accounts WHERE is_active = true
		UNION
		SELECT currency FROM assets WHERE is_active = true`)
	return currencies, err
}
