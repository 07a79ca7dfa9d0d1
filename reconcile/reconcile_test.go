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
package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bigodinhc/investctr/asset"
	"github.com/bigodinhc/investctr/ledger"
	"github.com/bigodinhc/investctr/store"
)

type fakeReconcileStore struct {
	positions      map[uuid.UUID]*ledger.Position // keyed by asset ID
	assetsByID     map[uuid.UUID]*ledger.Asset
	assetsByTicker map[string]*ledger.Asset
	txs            []*ledger.Transaction
	realized       []*ledger.RealizedTrade
	deleted        []uuid.UUID
}

func newFakeStore() *fakeReconcileStore {
	return &fakeReconcileStore{
		positions:      make(map[uuid.UUID]*ledger.Position),
		assetsByID:     make(map[uuid.UUID]*ledger.Asset),
		assetsByTicker: make(map[string]*ledger.Asset),
	}
}

func (f *fakeReconcileStore) addAsset(ticker string) *ledger.Asset {
	a := &ledger.Asset{ID: uuid.New(), Ticker: ticker, Name: ticker, Type: ledger.AssetStock, Currency: "BRL", IsActive: true}
	f.assetsByID[a.ID] = a
	f.assetsByTicker[ticker] = a
	return a
}

func (f *fakeReconcileStore) PositionsForAccount(ctx context.Context, accountID uuid.UUID) ([]*ledger.Position, error) {
	var out []*ledger.Position
	for _, p := range f.positions {
		if p.AccountID == accountID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeReconcileStore) UpsertPosition(ctx context.Context, p *ledger.Position) error {
	f.positions[p.AssetID] = p
	return nil
}

func (f *fakeReconcileStore) DeletePosition(ctx context.Context, accountID, assetID uuid.UUID) error {
	delete(f.positions, assetID)
	f.deleted = append(f.deleted, assetID)
	return nil
}

func (f *fakeReconcileStore) AssetByID(ctx context.Context, id uuid.UUID) (*ledger.Asset, error) {
	a, ok := f.assetsByID[id]
	if !ok {
		return nil, apperrNotFound{}
	}
	return a, nil
}

func (f *fakeReconcileStore) AssetByTicker(ctx context.Context, ticker string) (*ledger.Asset, error) {
	a, ok := f.assetsByTicker[ticker]
	if !ok {
		return nil, apperrNotFound{}
	}
	return a, nil
}

func (f *fakeReconcileStore) UpsertAsset(ctx context.Context, a *ledger.Asset) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	f.assetsByID[a.ID] = a
	f.assetsByTicker[a.Ticker] = a
	return nil
}

func (f *fakeReconcileStore) ListTransactions(ctx context.Context, filter store.TransactionFilter) ([]*ledger.Transaction, error) {
	var out []*ledger.Transaction
	for _, t := range f.txs {
		if filter.AccountID != nil && t.AccountID != *filter.AccountID {
			continue
		}
		if filter.AssetID != nil && t.AssetID != *filter.AssetID {
			continue
		}
		if filter.DocumentID != nil && (t.DocumentID == nil || *t.DocumentID != *filter.DocumentID) {
			continue
		}
		if filter.Type != nil && t.Type != *filter.Type {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeReconcileStore) CreateRealizedTrade(ctx context.Context, rt *ledger.RealizedTrade) (bool, error) {
	f.realized = append(f.realized, rt)
	return true, nil
}

type apperrNotFound struct{}

func (apperrNotFound) Error() string { return "not found" }

func classifier(ticker string) asset.Classification {
	return asset.Classification{Ticker: ticker, Type: ledger.AssetStock, Currency: "BRL"}
}

func TestReconcileCreatesUpdatesAndCloses(t *testing.T) {
	fs := newFakeStore()
	accountID := uuid.New()
	documentID := uuid.New()

	petr := fs.addAsset("PETR4")
	vale := fs.addAsset("VALE3")

	fs.positions[petr.ID] = &ledger.Position{
		AccountID: accountID, AssetID: petr.ID,
		Quantity: decimal.NewFromInt(100), AvgPrice: decimal.NewFromInt(30),
		TotalCost: decimal.NewFromInt(3000), Type: ledger.PositionLong,
		OpenedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	fs.positions[vale.ID] = &ledger.Position{
		AccountID: accountID, AssetID: vale.ID,
		Quantity: decimal.NewFromInt(50), AvgPrice: decimal.NewFromInt(60),
		TotalCost: decimal.NewFromInt(3000), Type: ledger.PositionLong,
		OpenedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	fs.txs = []*ledger.Transaction{
		{AccountID: accountID, AssetID: vale.ID, DocumentID: &documentID, Type: ledger.TxSell, Quantity: decimal.NewFromInt(50), Price: decimal.NewFromInt(65)},
	}

	periodEnd := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	e := New(fs, classifier, nil)
	res, err := e.Reconcile(context.Background(), accountID, []StatementPosition{
		{Ticker: "PETR4", Quantity: decimal.NewFromInt(120), AvgPrice: decimal.NewFromInt(31)},
		{Ticker: "ITUB4.SA", Quantity: decimal.NewFromInt(10), AvgPrice: decimal.NewFromInt(25)},
	}, periodEnd, documentID)

	require.NoError(t, err)
	require.Empty(t, res.Errors)
	require.Len(t, res.Updated, 1)
	require.Len(t, res.Created, 1)
	require.Len(t, res.Closed, 1)

	updatedPos := fs.positions[petr.ID]
	require.True(t, updatedPos.Quantity.Equal(decimal.NewFromInt(120)))
	require.True(t, updatedPos.AvgPrice.Equal(decimal.NewFromInt(31)))

	itub, err := fs.AssetByTicker(context.Background(), "ITUB4")
	require.NoError(t, err)
	require.NotNil(t, fs.positions[itub.ID])

	require.Contains(t, fs.deleted, vale.ID)
	require.Len(t, fs.realized, 1)
	require.True(t, fs.realized[0].CloseAvgPrice.Equal(decimal.NewFromInt(65)))
	require.True(t, fs.realized[0].RealizedPnL.Equal(decimal.NewFromInt(250)), "pnl=%s", fs.realized[0].RealizedPnL)
}

func TestReconcileCloseFallsBackToAvgPriceWithoutMatchingFill(t *testing.T) {
	fs := newFakeStore()
	accountID := uuid.New()
	documentID := uuid.New()

	vale := fs.addAsset("VALE3")
	fs.positions[vale.ID] = &ledger.Position{
		AccountID: accountID, AssetID: vale.ID,
		Quantity: decimal.NewFromInt(50), AvgPrice: decimal.NewFromInt(60),
		TotalCost: decimal.NewFromInt(3000), Type: ledger.PositionLong,
		OpenedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	e := New(fs, classifier, nil)
	res, err := e.Reconcile(context.Background(), accountID, nil, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), documentID)

	require.NoError(t, err)
	require.Len(t, res.Closed, 1)
	require.Len(t, fs.realized, 1)
	require.True(t, fs.realized[0].CloseAvgPrice.Equal(decimal.NewFromInt(60)))
	require.True(t, fs.realized[0].RealizedPnL.IsZero())
}

func TestBatchImportReplacesAllPositions(t *testing.T) {
	fs := newFakeStore()
	accountID := uuid.New()

	stale := fs.addAsset("OLDX3")
	fs.positions[stale.ID] = &ledger.Position{AccountID: accountID, AssetID: stale.ID, Quantity: decimal.NewFromInt(10), Type: ledger.PositionLong}

	e := New(fs, classifier, nil)
	err := e.BatchImport(context.Background(), accountID, []StatementPosition{
		{Ticker: "PETR4", Quantity: decimal.NewFromInt(100), AvgPrice: decimal.NewFromInt(30)},
	}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	require.NotContains(t, fs.positions, stale.ID)

	petr, err := fs.AssetByTicker(context.Background(), "PETR4")
	require.NoError(t, err)
	require.NotNil(t, fs.positions[petr.ID])
}
