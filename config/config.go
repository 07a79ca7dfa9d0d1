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

// Package config binds the module's Viper keys to a typed settings struct,
// the same way cmd/root.go's initConfig sets defaults before any
// subcommand runs.
package config

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Settings is the fully-resolved configuration for one process.
type Settings struct {
	DBUrl string

	BaseCurrency          string
	FXFallbackDays        int
	InitialShareValue     decimal.Decimal
	PriceCacheTTL         time.Duration
	QuoteFetchParallelism int
	MaxPDFBytes           int64

	SchedulerTimezone string
	QuoteSyncTimes    []string
	NAVTime           string
	SnapshotTime      string

	Providers ProviderSettings
	Documents DocumentStoreSettings

	HealthcheckURLs map[string]string
}

// ProviderSettings holds API keys and rate limits for the registered
// ports.QuoteProvider/ports.FXProvider adapters in package provider, plus
// the ports.LLMProvider (llm.Anthropic) and OpenFIGI enrichment keys used
// by the document commit path.
type ProviderSettings struct {
	TiingoAPIKey    string
	TiingoRateRPM   int
	PolygonAPIKey   string
	PolygonRateRPM  int
	FREDAPIKey      string
	AnthropicAPIKey string
	OpenFIGIAPIKey  string
}

// DocumentStoreSettings configures the ports.DocumentBlobStore backend for
// uploaded statement PDFs. An empty B2Bucket selects the local-disk
// FSStore, matching docstore's two adapters.
type DocumentStoreSettings struct {
	B2AppID  string
	B2AppKey string
	B2Bucket string
	LocalDir string
}

// SetDefaults installs the documented defaults into v. Call once before
// any viper.Get* call.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("db_url", "postgres://localhost:5432/investctr?sslmode=disable")

	v.SetDefault("base_currency", "BRL")
	v.SetDefault("fx_fallback_days", 7)
	v.SetDefault("initial_share_value", "100")
	v.SetDefault("price_cache_ttl_seconds", 300)
	v.SetDefault("quote_fetch_parallelism", 5)
	v.SetDefault("max_pdf_bytes", 20*1024*1024)

	v.SetDefault("scheduler_timezone", "America/Sao_Paulo")
	v.SetDefault("quote_sync_times", []string{"10:30", "14:00", "18:30"})
	v.SetDefault("nav_time", "19:00")
	v.SetDefault("snapshot_time", "19:30")

	v.SetDefault("providers.tiingo_rate_rpm", 500)
	v.SetDefault("providers.polygon_rate_rpm", 5000)

	v.SetDefault("documents.local_dir", "./documents")
}

// Load reads the bound keys off v into a Settings value.
func Load(v *viper.Viper) (Settings, error) {
	initialShareValue, err := decimal.NewFromString(v.GetString("initial_share_value"))
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		DBUrl: v.GetString("db_url"),

		BaseCurrency:          v.GetString("base_currency"),
		FXFallbackDays:        v.GetInt("fx_fallback_days"),
		InitialShareValue:     initialShareValue,
		PriceCacheTTL:         time.Duration(v.GetInt("price_cache_ttl_seconds")) * time.Second,
		QuoteFetchParallelism: v.GetInt("quote_fetch_parallelism"),
		MaxPDFBytes:           v.GetInt64("max_pdf_bytes"),

		SchedulerTimezone: v.GetString("scheduler_timezone"),
		QuoteSyncTimes:    v.GetStringSlice("quote_sync_times"),
		NAVTime:           v.GetString("nav_time"),
		SnapshotTime:      v.GetString("snapshot_time"),

		Providers: ProviderSettings{
			TiingoAPIKey:    v.GetString("providers.tiingo_api_key"),
			TiingoRateRPM:   v.GetInt("providers.tiingo_rate_rpm"),
			PolygonAPIKey:   v.GetString("providers.polygon_api_key"),
			PolygonRateRPM:  v.GetInt("providers.polygon_rate_rpm"),
			FREDAPIKey:      v.GetString("providers.fred_api_key"),
			AnthropicAPIKey: v.GetString("providers.anthropic_api_key"),
			OpenFIGIAPIKey:  v.GetString("providers.openfigi_api_key"),
		},
		Documents: DocumentStoreSettings{
			B2AppID:  v.GetString("documents.b2_app_id"),
			B2AppKey: v.GetString("documents.b2_app_key"),
			B2Bucket: v.GetString("documents.b2_bucket"),
			LocalDir: v.GetString("documents.local_dir"),
		},

		HealthcheckURLs: v.GetStringMapString("healthcheck_urls"),
	}, nil
}
