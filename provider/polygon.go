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
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/bigodinhc/investctr/apperr"
	"github.com/bigodinhc/investctr/ledger"
)

var ErrInvalidStatusCode = errors.New("invalid status code received")

// Polygon is a ports.QuoteProvider over Polygon.io's daily aggregates
// ("/v2/aggs") endpoint.
type Polygon struct {
	client  *resty.Client
	limiter *rate.Limiter
}

// NewPolygon builds a Polygon client rate-limited to ratePerMinute requests.
func NewPolygon(apiKey string, ratePerMinute int) *Polygon {
	if ratePerMinute <= 0 {
		ratePerMinute = 5000
	}
	return &Polygon{
		client:  resty.New().SetQueryParam("apiKey", apiKey),
		limiter: rate.NewLimiter(rate.Limit(float64(ratePerMinute)/61.0), 1),
	}
}

func (p *Polygon) Name() string { return "polygon" }

type polygonAggsResponse struct {
	Results []*polygonBar `json:"results"`
}

type polygonBar struct {
	Timestamp int64   `json:"t"`
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
}

// FetchQuotes retrieves one daily bar per trading day for ticker between
// from and to from the v2 aggregates endpoint.
func (p *Polygon) FetchQuotes(ctx context.Context, ticker string, from, to time.Time) ([]*ledger.Quote, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, apperr.ExternalProvider(err, "polygon rate limiter wait failed")
	}

	url := fmt.Sprintf("https://api.polygon.io/v2/aggs/ticker/%s/range/1/day/%s/%s",
		ticker, from.Format("2006-01-02"), to.Format("2006-01-02"))

	var respContent polygonAggsResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("adjusted", "true").
		SetQueryParam("sort", "asc").
		SetResult(&respContent).
		Get(url)
	if err != nil {
		return nil, apperr.ExternalProvider(err, "polygon request for %s failed", ticker)
	}
	if resp.StatusCode() >= 300 {
		return nil, apperr.ExternalProvider(ErrInvalidStatusCode, "polygon returned status %d for %s", resp.StatusCode(), ticker)
	}

	quotes := make([]*ledger.Quote, 0, len(respContent.Results))
	for _, bar := range respContent.Results {
		date := time.UnixMilli(bar.Timestamp).UTC()
		quotes = append(quotes, &ledger.Quote{
			AssetID: uuid.Nil,
			Date:    time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC),
			Open:    decimal.NewFromFloat(bar.Open),
			High:    decimal.NewFromFloat(bar.High),
			Low:     decimal.NewFromFloat(bar.Low),
			Close:   decimal.NewFromFloat(bar.Close),
			Volume:  decimal.NewFromFloat(bar.Volume),
			Source:  p.Name(),
		})
	}
	return quotes, nil
}
