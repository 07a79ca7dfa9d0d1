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
package replay

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bigodinhc/investctr/keyedmutex"
	"github.com/bigodinhc/investctr/ledger"
	"github.com/bigodinhc/investctr/store"
)

// pairStore is the slice of *store.Store the engine needs; named so tests
// can substitute a fake.
type pairStore interface {
	TransactionsForReplay(ctx context.Context, accountID, assetID uuid.UUID) ([]*ledger.Transaction, error)
	DistinctReplayPairs(ctx context.Context) ([][2]uuid.UUID, error)
	PositionFor(ctx context.Context, accountID, assetID uuid.UUID) (*ledger.Position, error)
	UpsertPosition(ctx context.Context, p *ledger.Position) error
	DeletePosition(ctx context.Context, accountID, assetID uuid.UUID) error
	CreateRealizedTrade(ctx context.Context, rt *ledger.RealizedTrade) (bool, error)
}

// Engine persists Replay's pure results, serializing per (account, asset)
// key so two concurrent triggers for the same pair never interleave.
type Engine struct {
	Store pairStore
	locks *keyedmutex.Map
}

// NewEngine wraps a store.Store.
func NewEngine(s *store.Store) *Engine {
	return &Engine{Store: s, locks: keyedmutex.New()}
}

func pairKey(accountID, assetID uuid.UUID) string {
	return fmt.Sprintf("%s/%s", accountID, assetID)
}

// ReplayAccountAsset reloads the transaction log for one pair, replays it,
// and persists the resulting Position (upserting, or deleting if the pair
// ended flat) plus any newly realized trades.
func (e *Engine) ReplayAccountAsset(ctx context.Context, accountID, assetID uuid.UUID) (*Result, error) {
	var result *Result
	err := e.locks.With(pairKey(accountID, assetID), func() error {
		txs, err := e.Store.TransactionsForReplay(ctx, accountID, assetID)
		if err != nil {
			return err
		}

		existing, err := e.Store.PositionFor(ctx, accountID, assetID)
		if err != nil {
			return err
		}

		if existing != nil && existing.Source == ledger.SourceStatement {
			// A statement set this position; it is the authoritative
			// opening as of its reference date. Replay only what came
			// after, seeded with the statement state.
			var later []*ledger.Transaction
			for _, tx := range txs {
				if tx.ExecutedAt.After(existing.UpdatedAt) {
					later = append(later, tx)
				}
			}
			result, err = ReplayFrom(accountID, assetID, existing, later)
		} else {
			result, err = Replay(accountID, assetID, txs)
		}
		if err != nil {
			return err
		}

		if result.Position == nil {
			if err := e.Store.DeletePosition(ctx, accountID, assetID); err != nil {
				return err
			}
		} else {
			if err := e.Store.UpsertPosition(ctx, result.Position); err != nil {
				return err
			}
		}

		for _, ev := range result.Events {
			rt := &ledger.RealizedTrade{
				AccountID:      accountID,
				AssetID:        assetID,
				OpenQuantity:   ev.OpenQuantity,
				OpenAvgPrice:   ev.OpenAvgPrice,
				OpenDate:       ev.OpenDate,
				CloseQuantity:  ev.CloseQuantity,
				CloseAvgPrice:  ev.CloseAvgPrice,
				CloseDate:      ev.CloseDate,
				RealizedPnL:    ev.RealizedPnL,
				RealizedPnLPct: ev.RealizedPnLPct,
				Notes:          ev.Kind,
			}
			if _, err := e.Store.CreateRealizedTrade(ctx, rt); err != nil {
				return err
			}
		}
		return nil
	})
	return result, err
}

// ReplayAccount applies ReplayAccountAsset to every asset with at least one
// replay-relevant transaction in the account.
func (e *Engine) ReplayAccount(ctx context.Context, accountID uuid.UUID, s *store.Store) ([]*Result, error) {
	txs, err := s.TransactionsForAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]bool)
	var results []*Result
	for _, tx := range txs {
		if !tx.Type.ReplayRelevant() || seen[tx.AssetID] {
			continue
		}
		seen[tx.AssetID] = true
		res, err := e.ReplayAccountAsset(ctx, accountID, tx.AssetID)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// ReplayAfterChange is the trigger hook fired after a transaction is
// created, updated, or deleted; it just re-runs replay for the affected
// pair, which is idempotent.
func (e *Engine) ReplayAfterChange(ctx context.Context, accountID, assetID uuid.UUID) error {
	_, err := e.ReplayAccountAsset(ctx, accountID, assetID)
	return err
}
