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
package figi

import (
	"context"
	"errors"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/bigodinhc/investctr/ledger"
)

const openFigiMappingURL = "https://api.openfigi.com/v3/mapping"

// ErrInvalidStatusCode reports a non-2xx response from the mapping API.
var ErrInvalidStatusCode = errors.New("invalid status code received")

type mappingResponse struct {
	Data []*openFigiAsset `json:"data"`
}

type openFigiAsset struct {
	Figi           string `json:"figi"`
	SecurityType   string `json:"securityType"`
	MarketSector   string `json:"marketSector"`
	Ticker         string `json:"ticker"`
	Name           string `json:"name"`
	ExchangeCode   string `json:"exchCode"`
	ShareClassFigi string `json:"shareClassFIGI"`
	CompositeFigi  string `json:"compositeFIGI"`
	SecurityType2  string `json:"securityType2"`
}

type openFigiQuery struct {
	IdType                  string `json:"idType"`
	IdValue                 string `json:"idValue"`
	ExchangeCode            string `json:"exchCode,omitempty"`
	MarketSectorDescription string `json:"marketSecDes"`
}

// Enricher refines foreign asset classifications via the OpenFIGI
// mapping API, rate-limited to the documented 25 requests/6s anonymous
// tier.
type Enricher struct {
	client  *resty.Client
	limiter *rate.Limiter
	cache   *Cache
	apiKey  string
}

// NewEnricher builds an Enricher. apiKey may be empty, which runs
// against OpenFIGI's anonymous (lower rate limit) tier.
func NewEnricher(apiKey string, cache *Cache) *Enricher {
	return &Enricher{
		client:  resty.New(),
		limiter: rate.NewLimiter(rate.Every((time.Second*6)/25), 10),
		cache:   cache,
		apiKey:  apiKey,
	}
}

// Enrich refines the Type of every foreign (non-BRL) asset in assets
// whose classification is still the asset/heuristic package's default
// guess. Brazilian assets are skipped: the B3 ticker shape already
// determines their type precisely.
func (e *Enricher) Enrich(ctx context.Context, assets []*ledger.Asset) {
	candidates := make([]*ledger.Asset, 0, len(assets))
	for _, a := range assets {
		if a.Currency == "BRL" {
			continue
		}
		if _, cached := e.cache.Get(a.Ticker); cached {
			continue
		}
		candidates = append(candidates, a)
	}
	if len(candidates) == 0 {
		return
	}

	mapped := e.lookupBatch(ctx, candidates)
	for _, a := range candidates {
		figiAsset, ok := mapped[a.Ticker]
		if !ok {
			continue
		}
		e.cache.Set(a.Ticker, figiAsset.CompositeFigi)
		a.Type = classifyFromFigi(figiAsset, a.Type)
	}
}

// classifyFromFigi maps OpenFIGI's securityType/securityType2 vocabulary
// onto ledger.AssetType, falling back to fallback when the combination is
// unrecognized.
func classifyFromFigi(f *openFigiAsset, fallback ledger.AssetType) ledger.AssetType {
	switch f.SecurityType2 {
	case "REIT":
		return ledger.AssetREIT
	case "Common Stock", "Partnership Shares":
		return ledger.AssetStock
	case "Mutual Fund":
		switch f.SecurityType {
		case "ETP":
			return ledger.AssetETF
		case "Open-End Fund", "Closed-End Fund":
			return ledger.AssetFund
		}
		return ledger.AssetFund
	}

	log.Warn().
		Str("Ticker", f.Ticker).
		Str("SecurityType", f.SecurityType).
		Str("SecurityType2", f.SecurityType2).
		Msg("unrecognized openfigi security type, keeping heuristic classification")
	return fallback
}

// lookupBatch queries OpenFIGI in batches of 100 (its per-request cap)
// and returns the results keyed by ticker.
func (e *Enricher) lookupBatch(ctx context.Context, assets []*ledger.Asset) map[string]*openFigiAsset {
	result := make(map[string]*openFigiAsset)

	for start := 0; start < len(assets); start += 100 {
		end := start + 100
		if end > len(assets) {
			end = len(assets)
		}
		batch := assets[start:end]

		query := make([]*openFigiQuery, 0, len(batch))
		for _, a := range batch {
			query = append(query, &openFigiQuery{
				IdType:                  "TICKER",
				IdValue:                 a.Ticker,
				ExchangeCode:            a.Exchange,
				MarketSectorDescription: "Equity",
			})
		}

		if err := e.limiter.Wait(ctx); err != nil {
			log.Error().Err(err).Msg("openfigi rate limiter wait failed")
			return result
		}

		responses, err := e.mapFigis(query)
		if err != nil {
			log.Error().Err(err).Msg("openfigi mapping call failed")
			continue
		}
		for _, resp := range responses {
			for _, figiAsset := range resp.Data {
				result[figiAsset.Ticker] = figiAsset
			}
		}
	}

	return result
}

func (e *Enricher) mapFigis(query []*openFigiQuery) ([]*mappingResponse, error) {
	responses := make([]*mappingResponse, 0)
	req := e.client.R().SetBody(query).SetResult(&responses)
	if e.apiKey != "" {
		req.SetHeader("X-OPENFIGI-APIKEY", e.apiKey)
	}

	resp, err := req.Post(openFigiMappingURL)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() >= 400 {
		log.Error().Int("StatusCode", resp.StatusCode()).Str("Body", string(resp.Body())).Msg("openfigi api call returned invalid status code")
		return nil, ErrInvalidStatusCode
	}
	return responses, nil
}
