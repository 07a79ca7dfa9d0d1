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

// Package nav computes daily net asset value across a user's accounts and
// currencies, and maintains the personal fund-share (quota) ledger: share
// issuance and redemption on deposits and withdrawals, priced at the
// previous day's share value.
package nav

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bigodinhc/investctr/apperr"
	"github.com/bigodinhc/investctr/fxstore"
	"github.com/bigodinhc/investctr/ledger"
	"github.com/bigodinhc/investctr/quotestore"
	"github.com/bigodinhc/investctr/store"
)

// InitialShareValue is the bootstrap quota price for a user with no prior
// fund-share history.
const InitialShareValue = 100

// Config carries the engine's tunable parameters, bound from Viper keys by
// the config package.
type Config struct {
	BaseCurrency      string
	FXFallbackDays    int
	InitialShareValue decimal.Decimal
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		BaseCurrency:      "BRL",
		FXFallbackDays:    fxstore.DefaultFallbackDays,
		InitialShareValue: decimal.NewFromInt(InitialShareValue),
	}
}

// navStore is the slice of *store.Store the engine needs; named so tests
// can substitute a fake, the same way replay.pairStore does.
type navStore interface {
	PositionsForUser(ctx context.Context, userID uuid.UUID) ([]*ledger.Position, error)
	AssetByID(ctx context.Context, id uuid.UUID) (*ledger.Asset, error)
	AccountsForUser(ctx context.Context, userID uuid.UUID) ([]*ledger.Account, error)
	CashBalanceForAccount(ctx context.Context, accountID uuid.UUID, asOf time.Time) ([]*ledger.CashFlow, error)
	CashFlowsForUserUpTo(ctx context.Context, userID uuid.UUID, asOf time.Time) ([]*ledger.CashFlow, error)
	LatestFundShare(ctx context.Context, userID uuid.UUID, before time.Time) (*ledger.FundShare, error)
	UpsertFundShare(ctx context.Context, f *ledger.FundShare) error
	SetCashFlowSharesAffected(ctx context.Context, id uuid.UUID, shares decimal.Decimal) error
}

type priceSource interface {
	Latest(ctx context.Context, assetID uuid.UUID, asOf time.Time) (*ledger.Quote, error)
}

type fxSource interface {
	Convert(ctx context.Context, amount decimal.Decimal, from, to string, date time.Time, fallbackDays int) (decimal.Decimal, *decimal.Decimal, error)
}

// Engine computes NAV and maintains the quota ledger against the shared
// store, quote, and FX backends.
type Engine struct {
	Store  navStore
	Quotes priceSource
	FX     fxSource
	Config Config
}

// New wires an Engine from its three backing stores and a config.
func New(s *store.Store, q *quotestore.Store, fx *fxstore.Store, cfg Config) *Engine {
	return &Engine{Store: s, Quotes: q, FX: fx, Config: cfg}
}

// Result is the outcome of a NAV computation for one user and date.
type Result struct {
	Date              time.Time
	BaseCurrency      string
	TotalMarketValue  decimal.Decimal
	TotalCash         decimal.Decimal
	NAV               decimal.Decimal
	// RatesUsed maps a non-base currency encountered in the computation to
	// the rate applied to convert it into BaseCurrency; a currency present
	// in a position or cash balance but missing a usable rate is recorded
	// with a nil value, signaling a partial conversion to callers.
	RatesUsed map[string]*decimal.Decimal
}

// NAV computes total NAV for a user at targetDate: the signed sum of every
// open position's market value (LONG +, SHORT -), converted to the base
// currency, plus the user's cash balance across every account, similarly
// converted. When convert is false, currency conversion is skipped and
// amounts are summed as-is (only correct for a single-currency portfolio;
// callers doing cross-currency work should always pass convert=true).
func (e *Engine) NAV(ctx context.Context, userID uuid.UUID, targetDate time.Time, convert bool) (*Result, error) {
	res := &Result{
		Date:         targetDate,
		BaseCurrency: e.Config.BaseCurrency,
		RatesUsed:    make(map[string]*decimal.Decimal),
	}

	positions, err := e.Store.PositionsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	assetCache := make(map[uuid.UUID]*ledger.Asset)
	assetCurrency := func(id uuid.UUID) (string, error) {
		if a, ok := assetCache[id]; ok {
			return a.Currency, nil
		}
		a, err := e.Store.AssetByID(ctx, id)
		if err != nil {
			return "", err
		}
		assetCache[id] = a
		return a.Currency, nil
	}

	for _, p := range positions {
		ccy, err := assetCurrency(p.AssetID)
		if err != nil {
			return nil, err
		}

		price, err := e.Quotes.Latest(ctx, p.AssetID, targetDate)
		if err != nil {
			return nil, err
		}

		// Cost basis stands in when no quote is on file, so a held but
		// unpriced position still contributes to NAV instead of silently
		// understating the share value.
		mv := p.TotalCost
		if price != nil {
			mv = p.Quantity.Mul(price.EffectivePrice())
		}
		if p.Type == ledger.PositionShort {
			mv = mv.Neg()
		}

		converted, rate, err := e.convertIfNeeded(ctx, mv, ccy, targetDate, convert)
		if err != nil {
			return nil, err
		}
		if convert && ccy != e.Config.BaseCurrency {
			res.RatesUsed[ccy] = rate
		}
		res.TotalMarketValue = res.TotalMarketValue.Add(converted)
	}

	accounts, err := e.Store.AccountsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	endOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 23, 59, 59, 0, targetDate.Location())

	for _, acct := range accounts {
		flows, err := e.Store.CashBalanceForAccount(ctx, acct.ID, endOfDay)
		if err != nil {
			return nil, err
		}
		var accountCash decimal.Decimal
		for _, f := range flows {
			accountCash = accountCash.Add(f.EffectiveAmount())
		}

		converted, rate, err := e.convertIfNeeded(ctx, accountCash, acct.Currency, targetDate, convert)
		if err != nil {
			return nil, err
		}
		if convert && acct.Currency != e.Config.BaseCurrency {
			res.RatesUsed[acct.Currency] = rate
		}
		res.TotalCash = res.TotalCash.Add(converted)
	}

	res.TotalMarketValue = ledger.RoundAmount(res.TotalMarketValue)
	res.TotalCash = ledger.RoundAmount(res.TotalCash)
	res.NAV = ledger.RoundAmount(res.TotalMarketValue.Add(res.TotalCash))
	return res, nil
}

func (e *Engine) convertIfNeeded(ctx context.Context, amount decimal.Decimal, ccy string, date time.Time, convert bool) (decimal.Decimal, *decimal.Decimal, error) {
	if !convert || ccy == e.Config.BaseCurrency {
		return amount, nil, nil
	}
	return e.FX.Convert(ctx, amount, ccy, e.Config.BaseCurrency, date, e.Config.FXFallbackDays)
}

// SharesOutstanding sums every shares_affected delta up to and including
// asOf. When the sum is exactly zero (no deposits/withdrawals yet), the
// caller is expected to bootstrap via CreateDailyFundShare's first-row
// path rather than treat zero shares as valid.
func (e *Engine) SharesOutstanding(ctx context.Context, userID uuid.UUID, asOf time.Time) (decimal.Decimal, error) {
	flows, err := e.Store.CashFlowsForUserUpTo(ctx, userID, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	var total decimal.Decimal
	for _, f := range flows {
		if f.SharesAffected != nil {
			total = total.Add(*f.SharesAffected)
		}
	}
	return total, nil
}

// CreateDailyFundShare computes NAV for date, determines shares
// outstanding, and upserts the (user, date) quota row. It returns nil if
// NAV is zero (nothing to quote yet).
func (e *Engine) CreateDailyFundShare(ctx context.Context, userID uuid.UUID, date time.Time) (*ledger.FundShare, error) {
	result, err := e.NAV(ctx, userID, date, true)
	if err != nil {
		return nil, err
	}
	if result.NAV.IsZero() {
		return nil, nil
	}

	shares, err := e.SharesOutstanding(ctx, userID, date)
	if err != nil {
		return nil, err
	}

	if shares.IsZero() {
		// Bootstrap case: the very first quote for this user. The first
		// investor's share value is, by construction, exactly
		// InitialShareValue regardless of the actual NAV.
		shares = result.NAV.Div(e.Config.InitialShareValue)
	}

	shareValue := ledger.RoundQty(result.NAV.Div(shares))

	prev, err := e.Store.LatestFundShare(ctx, userID, date)
	if err != nil {
		return nil, err
	}

	dailyReturn := decimal.Zero
	cumulativeReturn := shareValue.Sub(e.Config.InitialShareValue).Div(e.Config.InitialShareValue)
	if prev != nil && !prev.ShareValue.IsZero() {
		dailyReturn = shareValue.Sub(prev.ShareValue).Div(prev.ShareValue)
	}

	fs := &ledger.FundShare{
		UserID:            userID,
		Date:              date,
		NAV:               result.NAV,
		SharesOutstanding: ledger.RoundQty(shares),
		ShareValue:        shareValue,
		DailyReturn:       ledger.RoundPercent(dailyReturn),
		CumulativeReturn:  ledger.RoundPercent(cumulativeReturn),
	}
	if err := e.Store.UpsertFundShare(ctx, fs); err != nil {
		return nil, err
	}
	return fs, nil
}

// IssueShares prices a deposit cash flow at the previous day's share value
// (or InitialShareValue if the user has no prior quote) and records the
// shares it issued on the cash flow itself.
func (e *Engine) IssueShares(ctx context.Context, userID uuid.UUID, cashFlowID uuid.UUID, amount decimal.Decimal, date time.Time) (decimal.Decimal, error) {
	prevValue, err := e.previousShareValue(ctx, userID, date)
	if err != nil {
		return decimal.Zero, err
	}
	newShares := ledger.RoundQty(amount.Div(prevValue))
	if err := e.Store.SetCashFlowSharesAffected(ctx, cashFlowID, newShares); err != nil {
		return decimal.Zero, err
	}
	return newShares, nil
}

// RedeemShares is IssueShares' symmetric counterpart: it prices a
// withdrawal at the previous day's share value and records a negative
// shares_affected delta. It fails with InsufficientShares if the
// redemption would drive shares_outstanding negative.
func (e *Engine) RedeemShares(ctx context.Context, userID uuid.UUID, cashFlowID uuid.UUID, amount decimal.Decimal, date time.Time) (decimal.Decimal, error) {
	prevValue, err := e.previousShareValue(ctx, userID, date)
	if err != nil {
		return decimal.Zero, err
	}
	redeemed := ledger.RoundQty(amount.Div(prevValue))

	outstanding, err := e.SharesOutstanding(ctx, userID, date)
	if err != nil {
		return decimal.Zero, err
	}
	if redeemed.GreaterThan(outstanding) {
		return decimal.Zero, apperr.InsufficientShares("redemption of %s shares exceeds %s outstanding", redeemed, outstanding)
	}

	if err := e.Store.SetCashFlowSharesAffected(ctx, cashFlowID, redeemed.Neg()); err != nil {
		return decimal.Zero, err
	}
	return redeemed, nil
}

func (e *Engine) previousShareValue(ctx context.Context, userID uuid.UUID, date time.Time) (decimal.Decimal, error) {
	prev, err := e.Store.LatestFundShare(ctx, userID, date)
	if err != nil {
		return decimal.Zero, err
	}
	if prev == nil {
		return e.Config.InitialShareValue, nil
	}
	return prev.ShareValue, nil
}
