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
package provider

import (
	"context"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/bigodinhc/investctr/apperr"
	"github.com/bigodinhc/investctr/ledger"
)

// FRED is a ports.FXProvider over the St. Louis Fed's daily exchange-rate
// series (e.g. DEXBZUS for BRL per USD). A from/to currency pair is
// resolved into the matching FRED series id before the fetch.
type FRED struct {
	client *resty.Client
}

// NewFRED builds a FRED client using apiKey.
func NewFRED(apiKey string) *FRED {
	return &FRED{client: resty.New().SetQueryParam("api_key", apiKey)}
}

func (f *FRED) Name() string { return "FRED" }

// seriesFor maps a (from, to) currency pair to the FRED daily-rate series
// that publishes it. FRED only carries a fixed set of pairs against USD;
// an unlisted pair returns ok=false so the caller can fall back to
// another FXProvider. perUSD marks series quoted as units of the currency
// per one USD (DEXBZUS, DEXJPUS); the others are USD per one unit.
func seriesFor(from, to string) (series string, invert bool, ok bool) {
	usdSeries := map[string]struct {
		id     string
		perUSD bool
	}{
		"BRL": {"DEXBZUS", true},
		"EUR": {"DEXUSEU", false},
		"GBP": {"DEXUSUK", false},
		"JPY": {"DEXJPUS", true},
	}
	switch {
	case to == "USD":
		if s, ok := usdSeries[from]; ok {
			return s.id, s.perUSD, true
		}
	case from == "USD":
		if s, ok := usdSeries[to]; ok {
			return s.id, !s.perUSD, true
		}
	}
	return "", false, false
}

type fredResponse struct {
	Observations []fredObservation `json:"observations"`
}

type fredObservation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

// FetchRates retrieves the daily mid-rate series for the (from, to) pair
// between start and end.
func (f *FRED) FetchRates(ctx context.Context, from, to string, start, end time.Time) ([]*ledger.ExchangeRate, error) {
	if from == to {
		return nil, nil
	}

	series, invert, ok := seriesFor(from, to)
	if !ok {
		return nil, apperr.ExternalProvider(nil, "FRED has no series for %s/%s", from, to)
	}

	var resp fredResponse
	req, err := f.client.R().
		SetContext(ctx).
		SetQueryParam("file_type", "json").
		SetQueryParam("series_id", series).
		SetQueryParam("observation_start", start.Format("2006-01-02")).
		SetQueryParam("observation_end", end.Format("2006-01-02")).
		SetResult(&resp).
		Get("https://api.stlouisfed.org/fred/series/observations")
	if err != nil {
		return nil, apperr.ExternalProvider(err, "FRED request for series %s failed", series)
	}
	if req.StatusCode() >= 300 {
		return nil, apperr.ExternalProvider(ErrInvalidStatusCode, "FRED returned status %d for series %s", req.StatusCode(), series)
	}

	rates := make([]*ledger.ExchangeRate, 0, len(resp.Observations))
	for _, obs := range resp.Observations {
		if obs.Value == "." {
			continue
		}
		date, err := time.Parse("2006-01-02", obs.Date)
		if err != nil {
			continue
		}
		val, err := strconv.ParseFloat(obs.Value, 64)
		if err != nil {
			continue
		}

		rate := decimal.NewFromFloat(val)
		if invert && !rate.IsZero() {
			rate = decimal.NewFromInt(1).DivRound(rate, 10)
		}

		rates = append(rates, &ledger.ExchangeRate{
			Date:         date,
			FromCurrency: from,
			ToCurrency:   to,
			Rate:         rate,
			Source:       f.Name(),
		})
	}
	return rates, nil
}
