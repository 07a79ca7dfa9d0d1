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

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bigodinhc/investctr/replay"
)

// replayCmd forces a from-scratch position/realized-trade recomputation,
// for correcting drift after a manual database edit or a bug fix in the
// replay engine itself (replay.Engine.ReplayAccountAsset is otherwise
// only triggered by the transaction write path).
var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Recompute positions and realized trades from the transaction log",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := settings()
		s := openStore(ctx, cfg.DBUrl)
		defer s.Close()

		engine := replay.NewEngine(s)

		accountStr, _ := cmd.Flags().GetString("account")
		if accountStr != "" {
			accountID, err := uuid.Parse(accountStr)
			if err != nil {
				log.Fatal().Err(err).Str("Account", accountStr).Msg("invalid --account UUID")
			}
			results, err := engine.ReplayAccount(ctx, accountID, s)
			if err != nil {
				log.Fatal().Err(err).Str("AccountID", accountID.String()).Msg("replay failed")
			}
			log.Info().Int("Pairs", len(results)).Str("AccountID", accountID.String()).Msg("replay complete")
			return
		}

		pairs, err := s.DistinctReplayPairs(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("listing replay pairs failed")
		}
		for _, pair := range pairs {
			if _, err := engine.ReplayAccountAsset(ctx, pair[0], pair[1]); err != nil {
				log.Error().Err(err).Str("AccountID", pair[0].String()).Str("AssetID", pair[1].String()).Msg("replay failed for pair")
			}
		}
		log.Info().Int("Pairs", len(pairs)).Msg("replay complete")
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().String("account", "", "restrict replay to one account UUID (default: every pair)")
}
