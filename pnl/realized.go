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

// Package pnl exposes realized and unrealized profit/loss aggregations over
// the position state the replay engine produces.
package pnl

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bigodinhc/investctr/ledger"
	"github.com/bigodinhc/investctr/replay"
)

// transactionSource is the slice of *store.Store RealizedPnL needs; named
// so callers (snapshot.Engine, reconcile) can pass a narrower interface
// and tests can substitute a fake, the same pattern as replay.pairStore.
type transactionSource interface {
	TransactionsForReplay(ctx context.Context, accountID, assetID uuid.UUID) ([]*ledger.Transaction, error)
}

// RealizedFilter narrows which (account, asset) pairs and which closing
// dates contribute to a RealizedSummary.
type RealizedFilter struct {
	AccountID *uuid.UUID
	AssetID   *uuid.UUID
	DateFrom  *time.Time
	DateTo    *time.Time
}

func (f RealizedFilter) matches(ev replay.RealizedEvent, accountID, assetID uuid.UUID) bool {
	if f.AccountID != nil && *f.AccountID != accountID {
		return false
	}
	if f.AssetID != nil && *f.AssetID != assetID {
		return false
	}
	if f.DateFrom != nil && ev.CloseDate.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && ev.CloseDate.After(*f.DateTo) {
		return false
	}
	return true
}

// RealizedSummary aggregates realized events matching a filter.
type RealizedSummary struct {
	TotalPnL       decimal.Decimal
	TotalProceeds  decimal.Decimal
	TotalCostBasis decimal.Decimal
	TotalFees      decimal.Decimal
	EntryCount     int
	Entries        []replay.RealizedEvent
}

// RealizedPnL re-runs replay for every matching (account, asset) pair and
// aggregates the resulting events. It deliberately recomputes from the
// transaction log rather than reading RealizedTrade rows, since the
// persisted table may lag or be empty in a fresh deployment.
func RealizedPnL(ctx context.Context, s transactionSource, pairs [][2]uuid.UUID, filter RealizedFilter) (*RealizedSummary, error) {
	summary := &RealizedSummary{}

	for _, pair := range pairs {
		accountID, assetID := pair[0], pair[1]
		if filter.AccountID != nil && *filter.AccountID != accountID {
			continue
		}
		if filter.AssetID != nil && *filter.AssetID != assetID {
			continue
		}

		txs, err := s.TransactionsForReplay(ctx, accountID, assetID)
		if err != nil {
			return nil, err
		}
		res, err := replay.Replay(accountID, assetID, txs)
		if err != nil {
			return nil, err
		}

		for _, ev := range res.Events {
			if !filter.matches(ev, accountID, assetID) {
				continue
			}
			proceeds := ev.CloseQuantity.Mul(ev.CloseAvgPrice)
			summary.TotalPnL = summary.TotalPnL.Add(ev.RealizedPnL)
			summary.TotalProceeds = summary.TotalProceeds.Add(proceeds)
			summary.TotalCostBasis = summary.TotalCostBasis.Add(proceeds.Sub(ev.RealizedPnL))
			summary.TotalFees = summary.TotalFees.Add(ev.Fees)
			summary.EntryCount++
			summary.Entries = append(summary.Entries, ev)
		}
	}

	return summary, nil
}

// RealizedPnLByAsset maps each asset with at least one qualifying event to
// its own summary.
func RealizedPnLByAsset(ctx context.Context, s transactionSource, pairs [][2]uuid.UUID, filter RealizedFilter) (map[uuid.UUID]*RealizedSummary, error) {
	byAsset := make(map[uuid.UUID]*RealizedSummary)

	for _, pair := range pairs {
		accountID, assetID := pair[0], pair[1]
		single, err := RealizedPnL(ctx, s, [][2]uuid.UUID{{accountID, assetID}}, filter)
		if err != nil {
			return nil, err
		}
		if single.EntryCount == 0 {
			continue
		}
		existing, ok := byAsset[assetID]
		if !ok {
			byAsset[assetID] = single
			continue
		}
		existing.TotalPnL = existing.TotalPnL.Add(single.TotalPnL)
		existing.TotalProceeds = existing.TotalProceeds.Add(single.TotalProceeds)
		existing.TotalCostBasis = existing.TotalCostBasis.Add(single.TotalCostBasis)
		existing.TotalFees = existing.TotalFees.Add(single.TotalFees)
		existing.EntryCount += single.EntryCount
		existing.Entries = append(existing.Entries, single.Entries...)
	}

	return byAsset, nil
}
