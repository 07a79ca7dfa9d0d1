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
package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bigodinhc/investctr/ledger"
)

type fakeAssetLister struct {
	assets []*ledger.Asset
	err    error
}

func (f *fakeAssetLister) ActiveAssets(ctx context.Context) ([]*ledger.Asset, error) {
	return f.assets, f.err
}

type fakeQuoteSaver struct {
	saved [][]*ledger.Quote
}

func (f *fakeQuoteSaver) SaveAll(ctx context.Context, quotes []*ledger.Quote) error {
	f.saved = append(f.saved, quotes)
	return nil
}

type fakeQuoteProvider struct {
	byTicker map[string][]*ledger.Quote
	failFor  map[string]error
}

func (f *fakeQuoteProvider) Name() string { return "fake" }

func (f *fakeQuoteProvider) FetchQuotes(ctx context.Context, ticker string, from, to time.Time) ([]*ledger.Quote, error) {
	if err, ok := f.failFor[ticker]; ok {
		return nil, err
	}
	return f.byTicker[ticker], nil
}

func TestSyncAllQuotes_PerTickerFailureIsolation(t *testing.T) {
	petr := &ledger.Asset{ID: uuid.New(), Ticker: "PETR4"}
	vale := &ledger.Asset{ID: uuid.New(), Ticker: "VALE3"}

	assets := &fakeAssetLister{assets: []*ledger.Asset{petr, vale}}
	quotes := &fakeQuoteSaver{}
	provider := &fakeQuoteProvider{
		byTicker: map[string][]*ledger.Quote{
			"VALE3": {{Close: decimal.NewFromInt(70)}},
		},
		failFor: map[string]error{
			"PETR4": errors.New("provider unavailable"),
		},
	}

	results, err := SyncAllQuotes(context.Background(), assets, quotes, provider, 2, 14)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byTicker := make(map[string]QuoteSyncResult)
	for _, r := range results {
		byTicker[r.Ticker] = r
	}
	require.Error(t, byTicker["PETR4"].Err)
	require.NoError(t, byTicker["VALE3"].Err)
	require.Len(t, quotes.saved, 1)
}

func TestSyncAllQuotes_AssetListingFails(t *testing.T) {
	assets := &fakeAssetLister{err: errors.New("db down")}
	_, err := SyncAllQuotes(context.Background(), assets, &fakeQuoteSaver{}, &fakeQuoteProvider{}, 2, 14)
	require.Error(t, err)
}

type fakeCurrencyLister struct {
	currencies []string
}

func (f *fakeCurrencyLister) DistinctCurrencies(ctx context.Context) ([]string, error) {
	return f.currencies, nil
}

type fakeRateSaver struct {
	saved []*ledger.ExchangeRate
}

func (f *fakeRateSaver) Save(ctx context.Context, r *ledger.ExchangeRate) error {
	f.saved = append(f.saved, r)
	return nil
}

type fakeFXProvider struct {
	rates map[string][]*ledger.ExchangeRate
	err   error
}

func (f *fakeFXProvider) Name() string { return "fake-fx" }

func (f *fakeFXProvider) FetchRates(ctx context.Context, from, to string, start, end time.Time) ([]*ledger.ExchangeRate, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rates[from], nil
}

func TestSyncAllFXRates_SkipsBaseCurrency(t *testing.T) {
	currencies := &fakeCurrencyLister{currencies: []string{"BRL", "USD", "EUR"}}
	rates := &fakeRateSaver{}
	provider := &fakeFXProvider{
		rates: map[string][]*ledger.ExchangeRate{
			"USD": {{FromCurrency: "USD", ToCurrency: "BRL", Rate: decimal.NewFromFloat(5.1)}},
			"EUR": {{FromCurrency: "EUR", ToCurrency: "BRL", Rate: decimal.NewFromFloat(5.6)}},
		},
	}

	results, err := SyncAllFXRates(context.Background(), currencies, rates, provider, "BRL", 14)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Len(t, rates.saved, 2)

	for _, r := range results {
		require.NotEqual(t, "BRL", r.Currency)
		require.NoError(t, r.Err)
	}
}

func TestSyncAllFXRates_PerCurrencyFailureIsolation(t *testing.T) {
	currencies := &fakeCurrencyLister{currencies: []string{"BRL", "USD"}}
	rates := &fakeRateSaver{}
	provider := &fakeFXProvider{err: errors.New("fred unavailable")}

	results, err := SyncAllFXRates(context.Background(), currencies, rates, provider, "BRL", 14)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)
	require.Empty(t, rates.saved)
}
