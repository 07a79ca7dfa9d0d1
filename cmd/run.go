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
package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bigodinhc/investctr/fxstore"
	"github.com/bigodinhc/investctr/healthcheck"
	"github.com/bigodinhc/investctr/nav"
	"github.com/bigodinhc/investctr/provider"
	"github.com/bigodinhc/investctr/quotestore"
	"github.com/bigodinhc/investctr/scheduler"
	"github.com/bigodinhc/investctr/snapshot"
	"github.com/bigodinhc/investctr/taskrunner"
)

// runCmd starts the daemon that drives the scheduled jobs (quote sync,
// FX sync, NAV, snapshot) at their configured times through a
// cron-backed taskrunner.CronRunner.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the quote-sync, NAV, and snapshot jobs on their configured schedule",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg := settings()
		s := openStore(ctx, cfg.DBUrl)
		defer s.Close()

		loc, err := time.LoadLocation(cfg.SchedulerTimezone)
		if err != nil {
			log.Fatal().Err(err).Str("Timezone", cfg.SchedulerTimezone).Msg("invalid scheduler_timezone")
		}

		provider.RegisterQuoteProvider(provider.NewTiingo(cfg.Providers.TiingoAPIKey, cfg.Providers.TiingoRateRPM))
		provider.RegisterQuoteProvider(provider.NewPolygon(cfg.Providers.PolygonAPIKey, cfg.Providers.PolygonRateRPM))
		provider.RegisterFXProvider(provider.NewFRED(cfg.Providers.FREDAPIKey))

		quotes := quotestore.New(s.Pool)
		if cfg.PriceCacheTTL > 0 {
			quotes.Cache = quotestore.NewPriceCache(cfg.PriceCacheTTL)
		}
		fx := fxstore.New(s.Pool)
		navEngine := nav.New(s, quotes, fx, nav.Config{
			BaseCurrency:      cfg.BaseCurrency,
			FXFallbackDays:    cfg.FXFallbackDays,
			InitialShareValue: cfg.InitialShareValue,
		})
		snapEngine := snapshot.New(s, quotes, fx, cfg.BaseCurrency, cfg.FXFallbackDays)

		quoteProvider, ok := provider.QuoteProviders[viper.GetString("quote_provider")]
		if !ok {
			log.Fatal().Str("Provider", viper.GetString("quote_provider")).Msg("configured quote_provider is not registered")
		}
		fxProvider, ok := provider.FXProviders["FRED"]
		if !ok {
			log.Fatal().Msg("FRED FX provider is not registered")
		}

		pinger := healthcheck.NewPinger(cfg.HealthcheckURLs)
		runner := taskrunner.New(ctx, loc)

		for _, t := range cfg.QuoteSyncTimes {
			spec, err := cronAt(t)
			if err != nil {
				log.Fatal().Err(err).Str("Time", t).Msg("invalid quote_sync_times entry")
			}
			if err := runner.Schedule(spec, "sync-quotes", withHealthcheck(pinger, "sync-quotes", func(jobCtx context.Context) error {
				results, err := scheduler.SyncAllQuotes(jobCtx, s, quotes, quoteProvider, cfg.QuoteFetchParallelism, 14)
				for _, r := range results {
					if r.Err != nil {
						log.Warn().Err(r.Err).Str("Ticker", r.Ticker).Msg("quote sync failed for ticker")
					}
				}
				return err
			})); err != nil {
				log.Fatal().Err(err).Msg("failed to schedule sync-quotes job")
			}

			if err := runner.Schedule(spec, "sync-fx-rates", withHealthcheck(pinger, "sync-fx-rates", func(jobCtx context.Context) error {
				results, err := scheduler.SyncAllFXRates(jobCtx, s, fx, fxProvider, cfg.BaseCurrency, 14)
				for _, r := range results {
					if r.Err != nil {
						log.Warn().Err(r.Err).Str("Currency", r.Currency).Msg("FX sync failed for currency")
					}
				}
				return err
			})); err != nil {
				log.Fatal().Err(err).Msg("failed to schedule sync-fx-rates job")
			}
		}

		navSpec, err := cronAt(cfg.NAVTime)
		if err != nil {
			log.Fatal().Err(err).Str("Time", cfg.NAVTime).Msg("invalid nav_time")
		}
		if err := runner.Schedule(navSpec, "nav", withHealthcheck(pinger, "nav", func(jobCtx context.Context) error {
			return scheduler.NAVForAllUsers(jobCtx, s, navEngine, today(loc))
		})); err != nil {
			log.Fatal().Err(err).Msg("failed to schedule nav job")
		}

		snapSpec, err := cronAt(cfg.SnapshotTime)
		if err != nil {
			log.Fatal().Err(err).Str("Time", cfg.SnapshotTime).Msg("invalid snapshot_time")
		}
		if err := runner.Schedule(snapSpec, "snapshot", withHealthcheck(pinger, "snapshot", func(jobCtx context.Context) error {
			return scheduler.SnapshotForAllUsers(jobCtx, s, snapEngine, today(loc))
		})); err != nil {
			log.Fatal().Err(err).Msg("failed to schedule snapshot job")
		}

		runner.Start()
		log.Info().Msg("scheduler started")

		<-ctx.Done()
		log.Info().Msg("shutting down scheduler")
		runner.Stop()
	},
}

// withHealthcheck wraps fn so a successful run pings pinger's "job"
// check and a failing run pings its "/fail" variant.
func withHealthcheck(pinger *healthcheck.Pinger, job string, fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil {
			if pingErr := pinger.PingFail(job); pingErr != nil {
				log.Warn().Err(pingErr).Str("Job", job).Msg("healthcheck fail-ping failed")
			}
			return err
		}
		if pingErr := pinger.Ping(job); pingErr != nil {
			log.Warn().Err(pingErr).Str("Job", job).Msg("healthcheck ping failed")
		}
		return nil
	}
}

// cronAt turns an "HH:MM" clock time into a daily 5-field cron expression.
func cronAt(hhmm string) (string, error) {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("expected HH:MM, got %q", hhmm)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", err
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

func today(loc *time.Location) time.Time {
	now := time.Now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().String("quote-provider", "tiingo", "registered quote provider to use for sync-quotes")
	if err := viper.BindPFlag("quote_provider", runCmd.Flags().Lookup("quote-provider")); err != nil {
		log.Fatal().Err(err).Msg("BindPFlag for quote-provider failed")
	}
}
