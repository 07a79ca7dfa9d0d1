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
package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bigodinhc/investctr/ledger"
)

type fakeStore struct {
	accounts  []*ledger.Account
	positions map[uuid.UUID][]*ledger.Position // by account
	assets    map[uuid.UUID]*ledger.Asset
	upserted  []*ledger.PortfolioSnapshot
}

func (f *fakeStore) PositionsForAccount(_ context.Context, accountID uuid.UUID) ([]*ledger.Position, error) {
	return f.positions[accountID], nil
}

func (f *fakeStore) PositionsForUser(_ context.Context, _ uuid.UUID) ([]*ledger.Position, error) {
	var all []*ledger.Position
	for _, ps := range f.positions {
		all = append(all, ps...)
	}
	return all, nil
}

func (f *fakeStore) AssetByID(_ context.Context, id uuid.UUID) (*ledger.Asset, error) {
	return f.assets[id], nil
}

func (f *fakeStore) AccountsForUser(_ context.Context, _ uuid.UUID) ([]*ledger.Account, error) {
	return f.accounts, nil
}

func (f *fakeStore) CashBalanceForAccount(_ context.Context, _ uuid.UUID, _ time.Time) ([]*ledger.CashFlow, error) {
	return nil, nil
}

func (f *fakeStore) DistinctReplayPairs(_ context.Context) ([][2]uuid.UUID, error) {
	return nil, nil
}

func (f *fakeStore) TransactionsForReplay(_ context.Context, _, _ uuid.UUID) ([]*ledger.Transaction, error) {
	return nil, nil
}

func (f *fakeStore) UpsertSnapshot(_ context.Context, snap *ledger.PortfolioSnapshot, _ []byte) error {
	f.upserted = append(f.upserted, snap)
	return nil
}

type fakePrices struct {
	prices map[uuid.UUID]decimal.Decimal
}

func (f *fakePrices) AtDateBatch(_ context.Context, assetIDs []uuid.UUID, _ time.Time) (map[uuid.UUID]decimal.Decimal, error) {
	out := make(map[uuid.UUID]decimal.Decimal)
	for _, id := range assetIDs {
		if p, ok := f.prices[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakeFX struct {
	usdbrl decimal.Decimal
}

func (f *fakeFX) Convert(_ context.Context, amount decimal.Decimal, from, to string, _ time.Time, _ int) (decimal.Decimal, *decimal.Decimal, error) {
	if from == to {
		one := decimal.NewFromInt(1)
		return amount, &one, nil
	}
	if from == "USD" && to == "BRL" {
		return amount.Mul(f.usdbrl), &f.usdbrl, nil
	}
	return amount, nil, nil
}

func TestMaterializeForUserConsolidatesAcrossCurrencies(t *testing.T) {
	userID := uuid.New()
	acctBRL := &ledger.Account{ID: uuid.New(), UserID: userID, Currency: "BRL"}
	acctUSD := &ledger.Account{ID: uuid.New(), UserID: userID, Currency: "USD"}
	assetBR := &ledger.Asset{ID: uuid.New(), Ticker: "PETR4", Type: ledger.AssetStock, Currency: "BRL"}
	assetUS := &ledger.Asset{ID: uuid.New(), Ticker: "VTI", Type: ledger.AssetETF, Currency: "USD"}

	s := &fakeStore{
		accounts: []*ledger.Account{acctBRL, acctUSD},
		positions: map[uuid.UUID][]*ledger.Position{
			acctBRL.ID: {{
				AccountID: acctBRL.ID, AssetID: assetBR.ID, Type: ledger.PositionLong,
				Quantity: decimal.NewFromInt(100), TotalCost: decimal.NewFromInt(800),
			}},
			acctUSD.ID: {{
				AccountID: acctUSD.ID, AssetID: assetUS.ID, Type: ledger.PositionLong,
				Quantity: decimal.NewFromInt(50), TotalCost: decimal.NewFromInt(90),
			}},
		},
		assets: map[uuid.UUID]*ledger.Asset{assetBR.ID: assetBR, assetUS.ID: assetUS},
	}
	prices := &fakePrices{prices: map[uuid.UUID]decimal.Decimal{
		assetBR.ID: decimal.NewFromInt(10), // 100 * 10 = 1000 BRL
		assetUS.ID: decimal.NewFromInt(2),  // 50 * 2 = 100 USD
	}}
	fx := &fakeFX{usdbrl: decimal.NewFromInt(5)}

	engine := New(s, prices, fx, "BRL", 7)
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, engine.MaterializeForUser(context.Background(), userID, date))

	// Two per-account rows plus the consolidated one.
	require.Len(t, s.upserted, 3)

	var consolidated *ledger.PortfolioSnapshot
	for _, snap := range s.upserted {
		if snap.AccountID == nil {
			consolidated = snap
		}
	}
	require.NotNil(t, consolidated)
	require.Equal(t, "BRL", consolidated.Currency)
	// 1000 BRL + 100 USD * 5 = 1500 BRL.
	require.True(t, consolidated.NAV.Equal(decimal.NewFromInt(1500)), "nav=%s", consolidated.NAV)
	require.True(t, consolidated.Breakdown.RendaVariavel.Equal(decimal.NewFromInt(1500)))
}

func TestApplyStatementOverride(t *testing.T) {
	snap := &ledger.PortfolioSnapshot{NAV: decimal.NewFromInt(999)}
	docID := uuid.New()
	breakdown := ledger.CategoryBreakdown{
		RendaFixa:     decimal.NewFromInt(300),
		RendaVariavel: decimal.NewFromInt(600),
		ContaCorrente: decimal.NewFromInt(100),
	}

	ApplyStatementOverride(snap, breakdown, docID)
	require.True(t, snap.NAV.Equal(decimal.NewFromInt(1000)))
	require.Equal(t, docID, *snap.DocumentID)
}
