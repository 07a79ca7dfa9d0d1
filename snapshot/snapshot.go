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

// Package snapshot materializes a daily PortfolioSnapshot, consolidated
// and per-account, from the same position/price/FX inputs the NAV engine
// uses.
package snapshot

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bigodinhc/investctr/ledger"
	"github.com/bigodinhc/investctr/pnl"
)

type snapshotStore interface {
	PositionsForAccount(ctx context.Context, accountID uuid.UUID) ([]*ledger.Position, error)
	PositionsForUser(ctx context.Context, userID uuid.UUID) ([]*ledger.Position, error)
	AssetByID(ctx context.Context, id uuid.UUID) (*ledger.Asset, error)
	AccountsForUser(ctx context.Context, userID uuid.UUID) ([]*ledger.Account, error)
	CashBalanceForAccount(ctx context.Context, accountID uuid.UUID, asOf time.Time) ([]*ledger.CashFlow, error)
	DistinctReplayPairs(ctx context.Context) ([][2]uuid.UUID, error)
	TransactionsForReplay(ctx context.Context, accountID, assetID uuid.UUID) ([]*ledger.Transaction, error)
	UpsertSnapshot(ctx context.Context, snap *ledger.PortfolioSnapshot, breakdownJSON []byte) error
}

type priceSource interface {
	AtDateBatch(ctx context.Context, assetIDs []uuid.UUID, asOf time.Time) (map[uuid.UUID]decimal.Decimal, error)
}

type fxSource interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string, date time.Time, fallbackDays int) (decimal.Decimal, *decimal.Decimal, error)
}

// Engine materializes PortfolioSnapshot rows.
type Engine struct {
	Store          snapshotStore
	Prices         priceSource
	FX             fxSource
	BaseCurrency   string
	FXFallbackDays int
}

// New wires a materializer from its backing stores.
func New(s snapshotStore, prices priceSource, fx fxSource, baseCurrency string, fxFallbackDays int) *Engine {
	return &Engine{Store: s, Prices: prices, FX: fx, BaseCurrency: baseCurrency, FXFallbackDays: fxFallbackDays}
}

// MaterializeForUser builds and upserts both the consolidated snapshot
// and one per-account snapshot for userID at date.
func (e *Engine) MaterializeForUser(ctx context.Context, userID uuid.UUID, date time.Time) error {
	accounts, err := e.Store.AccountsForUser(ctx, userID)
	if err != nil {
		return err
	}

	var consolidated ledger.PortfolioSnapshot
	consolidated.UserID = userID
	consolidated.Date = date
	consolidated.Currency = e.BaseCurrency

	for _, acct := range accounts {
		perAccount, err := e.materializeAccount(ctx, acct, date)
		if err != nil {
			return err
		}

		converted, err := e.convertSnapshot(ctx, perAccount, acct.Currency, date)
		if err != nil {
			return err
		}

		consolidated.NAV = consolidated.NAV.Add(converted.NAV)
		consolidated.TotalCost = consolidated.TotalCost.Add(converted.TotalCost)
		consolidated.RealizedPnL = consolidated.RealizedPnL.Add(converted.RealizedPnL)
		consolidated.UnrealizedPnL = consolidated.UnrealizedPnL.Add(converted.UnrealizedPnL)
		consolidated.Breakdown = addBreakdown(consolidated.Breakdown, converted.Breakdown)

		breakdownJSON, err := json.Marshal(perAccount.Breakdown)
		if err != nil {
			return err
		}
		if err := e.Store.UpsertSnapshot(ctx, perAccount, breakdownJSON); err != nil {
			return err
		}
	}

	consolidated.NAV = ledger.RoundAmount(consolidated.NAV)
	consolidated.TotalCost = ledger.RoundAmount(consolidated.TotalCost)
	consolidated.RealizedPnL = ledger.RoundAmount(consolidated.RealizedPnL)
	consolidated.UnrealizedPnL = ledger.RoundAmount(consolidated.UnrealizedPnL)

	breakdownJSON, err := json.Marshal(consolidated.Breakdown)
	if err != nil {
		return err
	}
	return e.Store.UpsertSnapshot(ctx, &consolidated, breakdownJSON)
}

func (e *Engine) materializeAccount(ctx context.Context, acct *ledger.Account, date time.Time) (*ledger.PortfolioSnapshot, error) {
	positions, err := e.Store.PositionsForAccount(ctx, acct.ID)
	if err != nil {
		return nil, err
	}

	assetIDs := make([]uuid.UUID, len(positions))
	for i, p := range positions {
		assetIDs[i] = p.AssetID
	}
	prices, err := e.Prices.AtDateBatch(ctx, assetIDs, date)
	if err != nil {
		return nil, err
	}

	unrealized := pnl.Unrealized(positions, prices)

	var pairs [][2]uuid.UUID
	for _, p := range positions {
		pairs = append(pairs, [2]uuid.UUID{acct.ID, p.AssetID})
	}
	realized, err := pnl.RealizedPnL(ctx, e.Store, pairs, pnl.RealizedFilter{AccountID: &acct.ID})
	if err != nil {
		return nil, err
	}

	breakdown, err := e.breakdown(ctx, positions, prices)
	if err != nil {
		return nil, err
	}

	accountID := acct.ID
	return &ledger.PortfolioSnapshot{
		UserID:        acct.UserID,
		Date:          date,
		AccountID:     &accountID,
		Currency:      acct.Currency,
		NAV:           ledger.RoundAmount(unrealized.MarketNAV),
		TotalCost:     ledger.RoundAmount(unrealized.TotalCost),
		RealizedPnL:   ledger.RoundAmount(realized.TotalPnL),
		UnrealizedPnL: ledger.RoundAmount(unrealized.TotalUnrealized),
		Breakdown:     breakdown,
	}, nil
}

// breakdown maps each position's asset type into the canonical
// renda_fixa/fundos_investimento/renda_variavel/derivativos/conta_corrente
// shape, using the market value when a price is on file, else cost basis.
func (e *Engine) breakdown(ctx context.Context, positions []*ledger.Position, prices map[uuid.UUID]decimal.Decimal) (ledger.CategoryBreakdown, error) {
	var b ledger.CategoryBreakdown
	for _, p := range positions {
		asset, err := e.Store.AssetByID(ctx, p.AssetID)
		if err != nil {
			return b, err
		}

		value := p.TotalCost
		if price, ok := prices[p.AssetID]; ok {
			value = p.Quantity.Mul(price)
		}
		if p.Type == ledger.PositionShort {
			value = value.Neg()
		}

		switch asset.Type {
		case ledger.AssetBond, ledger.AssetTreasury:
			b.RendaFixa = b.RendaFixa.Add(value)
		case ledger.AssetFund, ledger.AssetFIAgro:
			b.FundosInvestimento = b.FundosInvestimento.Add(value)
		case ledger.AssetOption, ledger.AssetFuture:
			b.Derivativos = b.Derivativos.Add(value)
		default:
			b.RendaVariavel = b.RendaVariavel.Add(value)
		}
	}
	return b, nil
}

func addBreakdown(a, b ledger.CategoryBreakdown) ledger.CategoryBreakdown {
	return ledger.CategoryBreakdown{
		RendaFixa:          a.RendaFixa.Add(b.RendaFixa),
		FundosInvestimento: a.FundosInvestimento.Add(b.FundosInvestimento),
		RendaVariavel:      a.RendaVariavel.Add(b.RendaVariavel),
		Derivativos:        a.Derivativos.Add(b.Derivativos),
		ContaCorrente:      a.ContaCorrente.Add(b.ContaCorrente),
		COE:                a.COE.Add(b.COE),
	}
}

func (e *Engine) convertSnapshot(ctx context.Context, s *ledger.PortfolioSnapshot, ccy string, date time.Time) (*ledger.PortfolioSnapshot, error) {
	cash, err := e.Store.CashBalanceForAccount(ctx, *s.AccountID, endOfDay(date))
	if err != nil {
		return nil, err
	}
	var cashTotal decimal.Decimal
	for _, f := range cash {
		cashTotal = cashTotal.Add(f.EffectiveAmount())
	}

	converted := *s
	converted.NAV = converted.NAV.Add(cashTotal)
	converted.Breakdown.ContaCorrente = converted.Breakdown.ContaCorrente.Add(cashTotal)

	if ccy == e.BaseCurrency {
		return &converted, nil
	}

	nav, _, err := e.FX.Convert(ctx, converted.NAV, ccy, e.BaseCurrency, date, e.FXFallbackDays)
	if err != nil {
		return nil, err
	}
	cost, _, err := e.FX.Convert(ctx, converted.TotalCost, ccy, e.BaseCurrency, date, e.FXFallbackDays)
	if err != nil {
		return nil, err
	}
	realized, _, err := e.FX.Convert(ctx, converted.RealizedPnL, ccy, e.BaseCurrency, date, e.FXFallbackDays)
	if err != nil {
		return nil, err
	}
	unrealized, _, err := e.FX.Convert(ctx, converted.UnrealizedPnL, ccy, e.BaseCurrency, date, e.FXFallbackDays)
	if err != nil {
		return nil, err
	}

	converted.NAV = nav
	converted.TotalCost = cost
	converted.RealizedPnL = realized
	converted.UnrealizedPnL = unrealized
	converted.Currency = e.BaseCurrency
	converted.Breakdown, err = e.convertBreakdown(ctx, converted.Breakdown, ccy, date)
	return &converted, err
}

func (e *Engine) convertBreakdown(ctx context.Context, b ledger.CategoryBreakdown, ccy string, date time.Time) (ledger.CategoryBreakdown, error) {
	convert := func(v decimal.Decimal) (decimal.Decimal, error) {
		r, _, err := e.FX.Convert(ctx, v, ccy, e.BaseCurrency, date, e.FXFallbackDays)
		return r, err
	}

	var out ledger.CategoryBreakdown
	var err error
	if out.RendaFixa, err = convert(b.RendaFixa); err != nil {
		return out, err
	}
	if out.FundosInvestimento, err = convert(b.FundosInvestimento); err != nil {
		return out, err
	}
	if out.RendaVariavel, err = convert(b.RendaVariavel); err != nil {
		return out, err
	}
	if out.Derivativos, err = convert(b.Derivativos); err != nil {
		return out, err
	}
	if out.ContaCorrente, err = convert(b.ContaCorrente); err != nil {
		return out, err
	}
	if out.COE, err = convert(b.COE); err != nil {
		return out, err
	}
	return out, nil
}

func endOfDay(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 23, 59, 59, 0, date.Location())
}

// ApplyStatementOverride overwrites a previously materialized snapshot
// with a statement's authoritative consolidated_position figures. When a
// statement covers the day, its totals win over the derived ones.
func ApplyStatementOverride(snap *ledger.PortfolioSnapshot, breakdown ledger.CategoryBreakdown, documentID uuid.UUID) {
	snap.Breakdown = breakdown
	snap.NAV = ledger.RoundAmount(breakdown.Total())
	snap.DocumentID = &documentID
}
