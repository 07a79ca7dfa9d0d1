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
package nav

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bigodinhc/investctr/apperr"
	"github.com/bigodinhc/investctr/ledger"
)

type fakeStore struct {
	positions   map[uuid.UUID][]*ledger.Position
	assets      map[uuid.UUID]*ledger.Asset
	accounts    map[uuid.UUID][]*ledger.Account
	cashByAcct  map[uuid.UUID][]*ledger.CashFlow
	cashByUser  map[uuid.UUID][]*ledger.CashFlow
	fundShares  map[uuid.UUID]*ledger.FundShare
	upserted    []*ledger.FundShare
	sharesSet   map[uuid.UUID]decimal.Decimal
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		positions:  make(map[uuid.UUID][]*ledger.Position),
		assets:     make(map[uuid.UUID]*ledger.Asset),
		accounts:   make(map[uuid.UUID][]*ledger.Account),
		cashByAcct: make(map[uuid.UUID][]*ledger.CashFlow),
		cashByUser: make(map[uuid.UUID][]*ledger.CashFlow),
		fundShares: make(map[uuid.UUID]*ledger.FundShare),
		sharesSet:  make(map[uuid.UUID]decimal.Decimal),
	}
}

func (f *fakeStore) PositionsForUser(_ context.Context, userID uuid.UUID) ([]*ledger.Position, error) {
	return f.positions[userID], nil
}
func (f *fakeStore) AssetByID(_ context.Context, id uuid.UUID) (*ledger.Asset, error) {
	return f.assets[id], nil
}
func (f *fakeStore) AccountsForUser(_ context.Context, userID uuid.UUID) ([]*ledger.Account, error) {
	return f.accounts[userID], nil
}
func (f *fakeStore) CashBalanceForAccount(_ context.Context, accountID uuid.UUID, _ time.Time) ([]*ledger.CashFlow, error) {
	return f.cashByAcct[accountID], nil
}
func (f *fakeStore) CashFlowsForUserUpTo(_ context.Context, userID uuid.UUID, _ time.Time) ([]*ledger.CashFlow, error) {
	return f.cashByUser[userID], nil
}
func (f *fakeStore) LatestFundShare(_ context.Context, userID uuid.UUID, _ time.Time) (*ledger.FundShare, error) {
	return f.fundShares[userID], nil
}
func (f *fakeStore) UpsertFundShare(_ context.Context, fs *ledger.FundShare) error {
	f.upserted = append(f.upserted, fs)
	f.fundShares[fs.UserID] = fs
	return nil
}
func (f *fakeStore) SetCashFlowSharesAffected(_ context.Context, id uuid.UUID, shares decimal.Decimal) error {
	f.sharesSet[id] = shares
	return nil
}

type fakeQuotes struct {
	prices map[uuid.UUID]decimal.Decimal
}

func (q *fakeQuotes) Latest(_ context.Context, assetID uuid.UUID, _ time.Time) (*ledger.Quote, error) {
	p, ok := q.prices[assetID]
	if !ok {
		return nil, nil
	}
	return &ledger.Quote{AssetID: assetID, Close: p}, nil
}

type fakeFX struct {
	rate decimal.Decimal
}

func (x *fakeFX) Convert(_ context.Context, amount decimal.Decimal, from, to string, _ time.Time, _ int) (decimal.Decimal, *decimal.Decimal, error) {
	if from == to {
		return amount, nil, nil
	}
	converted := amount.Mul(x.rate)
	return converted, &x.rate, nil
}

func testConfig() Config {
	return Config{
		BaseCurrency:      "BRL",
		FXFallbackDays:    7,
		InitialShareValue: decimal.NewFromInt(100),
	}
}

// NAV with FX: Acct-BRL holds 100 units @ BRL10.00 (no cash); Acct-USD
// holds 50 units @ USD2.00 (no cash); rate USD->BRL = 5.00. Expected NAV
// in BRL = 1000.00 + 100.00*5.00 = 1500.00.
func TestNAVWithFX(t *testing.T) {
	userID := uuid.New()
	acctBRL := uuid.New()
	acctUSD := uuid.New()
	assetBRL := uuid.New()
	assetUSD := uuid.New()

	fs := newFakeStore()
	fs.accounts[userID] = []*ledger.Account{
		{ID: acctBRL, UserID: userID, Currency: "BRL"},
		{ID: acctUSD, UserID: userID, Currency: "USD"},
	}
	fs.assets[assetBRL] = &ledger.Asset{ID: assetBRL, Currency: "BRL"}
	fs.assets[assetUSD] = &ledger.Asset{ID: assetUSD, Currency: "USD"}
	fs.positions[userID] = []*ledger.Position{
		{AccountID: acctBRL, AssetID: assetBRL, Type: ledger.PositionLong, Quantity: decimal.NewFromInt(100)},
		{AccountID: acctUSD, AssetID: assetUSD, Type: ledger.PositionLong, Quantity: decimal.NewFromInt(50)},
	}

	quotes := &fakeQuotes{prices: map[uuid.UUID]decimal.Decimal{
		assetBRL: decimal.NewFromFloat(10.00),
		assetUSD: decimal.NewFromFloat(2.00),
	}}
	fx := &fakeFX{rate: decimal.NewFromFloat(5.00)}

	e := &Engine{Store: fs, Quotes: quotes, FX: fx, Config: testConfig()}

	result, err := e.NAV(context.Background(), userID, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), true)
	require.NoError(t, err)
	require.True(t, result.NAV.Equal(decimal.NewFromFloat(1500.00)), "NAV=%s", result.NAV)
}

// A held position with no quote on file contributes its cost basis to
// NAV instead of being dropped.
func TestNAVUnpricedPositionFallsBackToCostBasis(t *testing.T) {
	userID := uuid.New()
	acctID := uuid.New()
	priced := uuid.New()
	unpriced := uuid.New()

	fs := newFakeStore()
	fs.accounts[userID] = []*ledger.Account{{ID: acctID, UserID: userID, Currency: "BRL"}}
	fs.assets[priced] = &ledger.Asset{ID: priced, Currency: "BRL"}
	fs.assets[unpriced] = &ledger.Asset{ID: unpriced, Currency: "BRL"}
	fs.positions[userID] = []*ledger.Position{
		{AccountID: acctID, AssetID: priced, Type: ledger.PositionLong, Quantity: decimal.NewFromInt(10), TotalCost: decimal.NewFromInt(80)},
		{AccountID: acctID, AssetID: unpriced, Type: ledger.PositionLong, Quantity: decimal.NewFromInt(5), TotalCost: decimal.NewFromInt(50)},
	}

	quotes := &fakeQuotes{prices: map[uuid.UUID]decimal.Decimal{
		priced: decimal.NewFromInt(10),
	}}
	e := &Engine{Store: fs, Quotes: quotes, FX: &fakeFX{rate: decimal.NewFromInt(1)}, Config: testConfig()}

	result, err := e.NAV(context.Background(), userID, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), true)
	require.NoError(t, err)
	// 10*10 market + 50 cost basis.
	require.True(t, result.NAV.Equal(decimal.NewFromInt(150)), "NAV=%s", result.NAV)
}

// Share issuance: previous share_value = 120.00, deposit of 12000.00 ->
// shares_affected = +100.00000000.
func TestIssueShares(t *testing.T) {
	userID := uuid.New()
	cashFlowID := uuid.New()

	fs := newFakeStore()
	fs.fundShares[userID] = &ledger.FundShare{UserID: userID, ShareValue: decimal.NewFromFloat(120.00)}

	e := &Engine{Store: fs, Quotes: &fakeQuotes{}, FX: &fakeFX{}, Config: testConfig()}

	shares, err := e.IssueShares(context.Background(), userID, cashFlowID, decimal.NewFromFloat(12000.00), time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, shares.Equal(decimal.NewFromFloat(100.00)), "shares=%s", shares)
	require.True(t, fs.sharesSet[cashFlowID].Equal(decimal.NewFromFloat(100.00)))
}

func TestRedeemSharesInsufficientShares(t *testing.T) {
	userID := uuid.New()
	cashFlowID := uuid.New()
	date := time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC)

	fs := newFakeStore()
	fs.fundShares[userID] = &ledger.FundShare{UserID: userID, ShareValue: decimal.NewFromFloat(100.00)}
	fs.cashByUser[userID] = []*ledger.CashFlow{
		{SharesAffected: decimalPtr(decimal.NewFromFloat(10.00))},
	}

	e := &Engine{Store: fs, Quotes: &fakeQuotes{}, FX: &fakeFX{}, Config: testConfig()}

	_, err := e.RedeemShares(context.Background(), userID, cashFlowID, decimal.NewFromFloat(5000.00), date)
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.CodeInsufficientShares))
}

// CreateDailyFundShare bootstraps the first investor's share value to
// exactly InitialShareValue regardless of the NAV.
func TestCreateDailyFundShareBootstrap(t *testing.T) {
	userID := uuid.New()
	acctID := uuid.New()
	assetID := uuid.New()
	date := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	fs := newFakeStore()
	fs.accounts[userID] = []*ledger.Account{{ID: acctID, UserID: userID, Currency: "BRL"}}
	fs.assets[assetID] = &ledger.Asset{ID: assetID, Currency: "BRL"}
	fs.positions[userID] = []*ledger.Position{
		{AccountID: acctID, AssetID: assetID, Type: ledger.PositionLong, Quantity: decimal.NewFromInt(10)},
	}
	quotes := &fakeQuotes{prices: map[uuid.UUID]decimal.Decimal{assetID: decimal.NewFromFloat(50.00)}}

	e := &Engine{Store: fs, Quotes: quotes, FX: &fakeFX{}, Config: testConfig()}

	share, err := e.CreateDailyFundShare(context.Background(), userID, date)
	require.NoError(t, err)
	require.NotNil(t, share)
	require.True(t, share.ShareValue.Equal(decimal.NewFromInt(100)), "share_value=%s", share.ShareValue)
	require.True(t, share.SharesOutstanding.Equal(decimal.NewFromInt(5)), "shares_outstanding=%s", share.SharesOutstanding)
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal { return &d }
