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

// Package reconcile diffs a parsed broker statement's stock positions
// against stored positions for one account, creating, updating, or
// closing positions to match. The statement is the source of truth for
// the account at its reference date.
package reconcile

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bigodinhc/investctr/asset"
	"github.com/bigodinhc/investctr/ledger"
	"github.com/bigodinhc/investctr/store"
)

// StatementPosition is one raw row from a parsed statement's
// stock_positions section, before sign/ticker normalization.
type StatementPosition struct {
	Ticker       string
	Quantity     decimal.Decimal // signed: negative means SHORT
	AvgPrice     decimal.Decimal
	TotalCost    *decimal.Decimal // defaults to |quantity|*avg_price when nil
	CurrentPrice *decimal.Decimal
}

// reconcileStore is the slice of *store.Store the engine needs.
type reconcileStore interface {
	PositionsForAccount(ctx context.Context, accountID uuid.UUID) ([]*ledger.Position, error)
	UpsertPosition(ctx context.Context, p *ledger.Position) error
	DeletePosition(ctx context.Context, accountID, assetID uuid.UUID) error
	AssetByID(ctx context.Context, id uuid.UUID) (*ledger.Asset, error)
	AssetByTicker(ctx context.Context, ticker string) (*ledger.Asset, error)
	UpsertAsset(ctx context.Context, a *ledger.Asset) error
	ListTransactions(ctx context.Context, f store.TransactionFilter) ([]*ledger.Transaction, error)
	CreateRealizedTrade(ctx context.Context, rt *ledger.RealizedTrade) (bool, error)
}

// assetClassifier backfills type/currency for a ticker newly seen in a
// statement. Satisfied by asset.Classify.
type assetClassifier func(ticker string) asset.Classification

// assetEnricher refines a newly created asset's Type in place using an
// external identifier lookup. Satisfied by (*figi.Enricher).Enrich with
// the asset wrapped in a single-element slice. Nil disables enrichment.
type assetEnricher func(ctx context.Context, assets []*ledger.Asset)

// Engine reconciles one account's statement-reported positions against
// the store.
type Engine struct {
	Store      reconcileStore
	Classifier assetClassifier
	Enricher   assetEnricher
}

// New wires an Engine. classifier backfills a newly seen ticker's asset
// type/currency (see asset.Classify); enricher, if non-nil, refines a
// newly created foreign asset's type via OpenFIGI (see figi.Enricher).
func New(s reconcileStore, classifier assetClassifier, enricher assetEnricher) *Engine {
	return &Engine{Store: s, Classifier: classifier, Enricher: enricher}
}

// PerTickerError is one ticker's reconciliation failure; errors are
// collected rather than aborting the whole run.
type PerTickerError struct {
	Ticker string
	Err    error
}

// Result is the outcome of reconciling one account.
type Result struct {
	Created []uuid.UUID // asset IDs of newly created positions
	Updated []uuid.UUID
	Closed  []uuid.UUID
	Errors  []PerTickerError
}

// normalize drops zero-quantity rows, uppercases and strips ".SA", splits
// sign into position_type, and defaults total_cost.
func normalize(raw []StatementPosition) map[string]normalized {
	out := make(map[string]normalized)
	for _, r := range raw {
		if r.Quantity.IsZero() {
			continue
		}
		ticker := strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(r.Ticker)), ".SA")

		posType := ledger.PositionLong
		qty := r.Quantity
		if qty.IsNegative() {
			posType = ledger.PositionShort
			qty = qty.Neg()
		}

		totalCost := qty.Mul(r.AvgPrice)
		if r.TotalCost != nil {
			totalCost = *r.TotalCost
		}

		out[ticker] = normalized{
			Ticker:       ticker,
			Quantity:     qty,
			AvgPrice:     r.AvgPrice,
			TotalCost:    totalCost,
			Type:         posType,
			CurrentPrice: r.CurrentPrice,
		}
	}
	return out
}

type normalized struct {
	Ticker       string
	Quantity     decimal.Decimal
	AvgPrice     decimal.Decimal
	TotalCost    decimal.Decimal
	Type         ledger.PositionType
	CurrentPrice *decimal.Decimal
}

// Reconcile diffs raw against the account's current positions (quantity >
// 0 only) and applies create/update/close. periodEnd is
// the statement's period.end_date, used as close_date for any closed
// position; documentID identifies the statement for matching a closing
// fill and for RealizedTrade provenance.
func (e *Engine) Reconcile(ctx context.Context, accountID uuid.UUID, raw []StatementPosition, periodEnd time.Time, documentID uuid.UUID) (*Result, error) {
	statement := normalize(raw)

	current, err := e.Store.PositionsForAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	currentByTicker := make(map[string]*ledger.Position)
	assetByTicker := make(map[string]*ledger.Asset)
	for _, p := range current {
		if !p.Quantity.IsPositive() {
			continue
		}
		asset, err := e.assetForPosition(ctx, p)
		if err != nil {
			continue
		}
		currentByTicker[asset.Ticker] = p
		assetByTicker[asset.Ticker] = asset
	}

	res := &Result{}

	for ticker, sp := range statement {
		func() {
			asset, err := e.resolveAsset(ctx, ticker)
			if err != nil {
				res.Errors = append(res.Errors, PerTickerError{Ticker: ticker, Err: err})
				return
			}

			pos := &ledger.Position{
				AccountID: accountID,
				AssetID:   asset.ID,
				Quantity:  sp.Quantity,
				AvgPrice:  sp.AvgPrice,
				TotalCost: sp.TotalCost,
				Type:      sp.Type,
				Source:    ledger.SourceStatement,
				UpdatedAt: periodEnd,
			}

			if existing, ok := currentByTicker[ticker]; ok {
				pos.OpenedAt = existing.OpenedAt
				if err := e.Store.UpsertPosition(ctx, pos); err != nil {
					res.Errors = append(res.Errors, PerTickerError{Ticker: ticker, Err: err})
					return
				}
				res.Updated = append(res.Updated, asset.ID)
			} else {
				pos.OpenedAt = periodEnd
				if err := e.Store.UpsertPosition(ctx, pos); err != nil {
					res.Errors = append(res.Errors, PerTickerError{Ticker: ticker, Err: err})
					return
				}
				res.Created = append(res.Created, asset.ID)
			}
		}()
	}

	for ticker, pos := range currentByTicker {
		if _, stillHeld := statement[ticker]; stillHeld {
			continue
		}
		asset := assetByTicker[ticker]
		if err := e.closePosition(ctx, accountID, asset, pos, periodEnd, documentID); err != nil {
			res.Errors = append(res.Errors, PerTickerError{Ticker: ticker, Err: err})
			continue
		}
		res.Closed = append(res.Closed, asset.ID)
	}

	return res, nil
}

func (e *Engine) assetForPosition(ctx context.Context, p *ledger.Position) (*ledger.Asset, error) {
	return e.Store.AssetByID(ctx, p.AssetID)
}

// resolveAsset finds an existing asset by ticker or creates one using the
// classifier heuristic.
func (e *Engine) resolveAsset(ctx context.Context, ticker string) (*ledger.Asset, error) {
	asset, err := e.Store.AssetByTicker(ctx, ticker)
	if err == nil && asset != nil {
		return asset, nil
	}

	class := e.Classifier(ticker)
	asset = &ledger.Asset{
		Ticker:   class.Ticker,
		Name:     ticker,
		Type:     class.Type,
		Currency: class.Currency,
		IsActive: true,
	}
	if e.Enricher != nil {
		e.Enricher(ctx, []*ledger.Asset{asset})
	}
	if err := e.Store.UpsertAsset(ctx, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// closePosition finds the closing fill (a SELL for a LONG close, a BUY
// for a SHORT close) booked against this statement's document, falling
// back to the position's stored avg_price, then emits a RealizedTrade
// and deletes the position.
func (e *Engine) closePosition(ctx context.Context, accountID uuid.UUID, asset *ledger.Asset, pos *ledger.Position, closeDate time.Time, documentID uuid.UUID) error {
	closeType := ledger.TxSell
	if pos.Type == ledger.PositionShort {
		closeType = ledger.TxBuy
	}

	closePrice := pos.AvgPrice
	txs, err := e.Store.ListTransactions(ctx, store.TransactionFilter{
		AccountID:  &accountID,
		AssetID:    &asset.ID,
		DocumentID: &documentID,
		Type:       &closeType,
		Limit:      1,
	})
	if err != nil {
		return err
	}
	if len(txs) > 0 {
		closePrice = txs[0].Price
	}

	proceeds := pos.Quantity.Mul(closePrice)
	cost := pos.Quantity.Mul(pos.AvgPrice)
	realizedPnL := proceeds.Sub(cost)
	if pos.Type == ledger.PositionShort {
		realizedPnL = cost.Sub(proceeds)
	}

	var pnlPct decimal.Decimal
	if !cost.IsZero() {
		pnlPct = realizedPnL.Div(cost).Mul(decimal.NewFromInt(100))
	}

	rt := &ledger.RealizedTrade{
		AccountID:      accountID,
		AssetID:        asset.ID,
		OpenQuantity:   pos.Quantity,
		OpenAvgPrice:   pos.AvgPrice,
		OpenDate:       pos.OpenedAt,
		CloseQuantity:  pos.Quantity,
		CloseAvgPrice:  closePrice,
		CloseDate:      closeDate,
		RealizedPnL:    ledger.RoundAmount(realizedPnL),
		RealizedPnLPct: ledger.RoundPercent(pnlPct),
		DocumentID:     &documentID,
		Notes:          "closed by statement reconciliation",
	}
	if _, err := e.Store.CreateRealizedTrade(ctx, rt); err != nil {
		return err
	}

	return e.Store.DeletePosition(ctx, accountID, asset.ID)
}

// BatchImport deletes every existing position for the account and
// inserts the statement's positions verbatim, for a first import only.
// It does not emit RealizedTrade rows.
func (e *Engine) BatchImport(ctx context.Context, accountID uuid.UUID, raw []StatementPosition, periodEnd time.Time) error {
	current, err := e.Store.PositionsForAccount(ctx, accountID)
	if err != nil {
		return err
	}
	for _, p := range current {
		if err := e.Store.DeletePosition(ctx, accountID, p.AssetID); err != nil {
			return err
		}
	}

	statement := normalize(raw)
	for ticker, sp := range statement {
		asset, err := e.resolveAsset(ctx, ticker)
		if err != nil {
			return err
		}
		pos := &ledger.Position{
			AccountID: accountID,
			AssetID:   asset.ID,
			Quantity:  sp.Quantity,
			AvgPrice:  sp.AvgPrice,
			TotalCost: sp.TotalCost,
			Type:      sp.Type,
			Source:    ledger.SourceStatement,
			OpenedAt:  periodEnd,
			UpdatedAt: periodEnd,
		}
		if err := e.Store.UpsertPosition(ctx, pos); err != nil {
			return err
		}
	}
	return nil
}
