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
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bigodinhc/investctr/fxstore"
	"github.com/bigodinhc/investctr/parse"
	"github.com/bigodinhc/investctr/replay"
	"github.com/bigodinhc/investctr/store"
)

// importCmd loads transactions from a hand-maintained CSV into one
// account, then replays every (account, asset) pair the file touched.
// The type column accepts the same broker vocabulary the statement
// parser normalizes.
var importCmd = &cobra.Command{
	Use:   "import <csv-path>",
	Short: "Import transactions from a CSV file into an account",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := settings()
		s := openStore(ctx, cfg.DBUrl)
		defer s.Close()

		accountStr, _ := cmd.Flags().GetString("account")
		accountID, err := uuid.Parse(accountStr)
		if err != nil {
			log.Fatal().Err(err).Str("Account", accountStr).Msg("invalid --account UUID")
		}

		f, err := os.Open(args[0])
		if err != nil {
			log.Fatal().Err(err).Str("Path", args[0]).Msg("failed to open CSV")
		}
		defer f.Close()

		txs, skipped, err := parse.ReadTransactionsCSV(f)
		if err != nil {
			log.Fatal().Err(err).Str("Path", args[0]).Msg("failed to read CSV")
		}
		for _, raw := range skipped {
			log.Warn().Str("Value", raw).Msg("skipped CSV row with unrecognized type or date")
		}

		err = s.WithTx(ctx, func(txStore *store.Store) error {
			c := &committer{
				store:        txStore,
				fx:           fxstore.New(s.Pool),
				replay:       replay.NewEngine(txStore),
				baseCurrency: cfg.BaseCurrency,
				fxFallback:   cfg.FXFallbackDays,
			}

			affected := make(map[uuid.UUID]bool)
			if err := c.commitTransactions(ctx, accountID, nil, txs, affected); err != nil {
				return err
			}
			for assetID := range affected {
				if err := c.replay.ReplayAfterChange(ctx, accountID, assetID); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			log.Fatal().Err(err).Msg("importing transactions failed")
		}
		log.Info().Int("Transactions", len(txs)).Int("Skipped", len(skipped)).Msg("CSV import complete")
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().String("account", "", "account UUID to import into (required)")
}
