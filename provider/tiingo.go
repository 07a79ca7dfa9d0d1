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
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/bigodinhc/investctr/apperr"
	"github.com/bigodinhc/investctr/ledger"
)

// Tiingo is a ports.QuoteProvider backed by the Tiingo EOD price endpoint,
// one ticker per call so the scheduler's quote-sync job can drive it per
// asset.
type Tiingo struct {
	client  *resty.Client
	limiter *rate.Limiter
}

// NewTiingo builds a Tiingo client rate-limited to ratePerMinute requests.
func NewTiingo(apiKey string, ratePerMinute int) *Tiingo {
	if ratePerMinute <= 0 {
		ratePerMinute = 500
	}
	return &Tiingo{
		client:  resty.New().SetQueryParam("token", apiKey),
		limiter: rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60.0), 1),
	}
}

func (t *Tiingo) Name() string { return "tiingo" }

type tiingoEOD struct {
	Date     string  `json:"date"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adjClose"`
	Volume   float64 `json:"volume"`
}

// FetchQuotes retrieves daily bars for ticker between from and to.
// Tiingo spells share-class separators with "-", not "/".
func (t *Tiingo) FetchQuotes(ctx context.Context, ticker string, from, to time.Time) ([]*ledger.Quote, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, apperr.ExternalProvider(err, "tiingo rate limiter wait failed")
	}

	url := fmt.Sprintf("https://api.tiingo.com/tiingo/daily/%s/prices", strings.ReplaceAll(ticker, "/", "-"))
	respContent := make([]*tiingoEOD, 0)
	resp, err := t.client.R().
		SetContext(ctx).
		SetQueryParam("startDate", from.Format("2006-01-02")).
		SetQueryParam("endDate", to.Format("2006-01-02")).
		SetResult(&respContent).
		Get(url)
	if err != nil {
		return nil, apperr.ExternalProvider(err, "tiingo request for %s failed", ticker)
	}
	if resp.StatusCode() >= 300 {
		return nil, apperr.ExternalProvider(ErrInvalidStatusCode, "tiingo returned status %d for %s", resp.StatusCode(), ticker)
	}

	quotes := make([]*ledger.Quote, 0, len(respContent))
	assetID := uuid.Nil // resolved by the caller, which knows the asset row
	for _, bar := range respContent {
		date, err := time.Parse(time.RFC3339Nano, bar.Date)
		if err != nil {
			continue
		}
		adj := decimal.NewFromFloat(bar.AdjClose)
		quotes = append(quotes, &ledger.Quote{
			AssetID:       assetID,
			Date:          time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
			Open:          decimal.NewFromFloat(bar.Open),
			High:          decimal.NewFromFloat(bar.High),
			Low:           decimal.NewFromFloat(bar.Low),
			Close:         decimal.NewFromFloat(bar.Close),
			AdjustedClose: &adj,
			Volume:        decimal.NewFromFloat(bar.Volume),
			Source:        t.Name(),
		})
	}
	return quotes, nil
}
