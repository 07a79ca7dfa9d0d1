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
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Scales used when rounding decimals on persist.
const (
	ScaleAmount  = 2
	ScaleQty     = 8
	ScalePrice   = 6
	ScaleRate    = 6
	ScalePercent = 4
)

// Account is a brokerage holding context owned by a user.
type Account struct {
	ID        uuid.UUID   `db:"id"`
	UserID    uuid.UUID   `db:"user_id"`
	Name      string      `db:"name"`
	Type      AccountType `db:"type"`
	Currency  string      `db:"currency"`
	IsActive  bool        `db:"is_active"`
	CreatedAt time.Time   `db:"created_at"`
}

// Asset is a tradable instrument, identified globally by its ticker.
type Asset struct {
	ID       uuid.UUID `db:"id"`
	Ticker   string    `db:"ticker"`
	Name     string    `db:"name"`
	Type     AssetType `db:"asset_type"`
	Currency string    `db:"currency"`
	Exchange string    `db:"exchange"`
	IsActive bool      `db:"is_active"`
}

// Transaction is an immutable journal entry. Replay-relevant types mutate the
// (account, asset) Position; the rest are cash/journal events only.
type Transaction struct {
	ID            uuid.UUID       `db:"id"`
	AccountID     uuid.UUID       `db:"account_id"`
	AssetID       uuid.UUID       `db:"asset_id"`
	DocumentID    *uuid.UUID      `db:"document_id"`
	Type          TransactionType `db:"type"`
	Quantity      decimal.Decimal `db:"quantity"`
	Price         decimal.Decimal `db:"price"`
	Fees          decimal.Decimal `db:"fees"`
	Currency      string          `db:"currency"`
	ExchangeRate  decimal.Decimal `db:"exchange_rate"`
	ExecutedAt    time.Time       `db:"executed_at"`
	Notes         string          `db:"notes"`
}

// TotalValue recomputes quantity * price; the schema does not store it as a
// generated column.
func (t Transaction) TotalValue() decimal.Decimal {
	return t.Quantity.Mul(t.Price)
}

// Position is the current open exposure for a (account, asset) pair. At most
// one row may exist per pair; long and short never coexist.
type Position struct {
	ID           uuid.UUID       `db:"id"`
	AccountID    uuid.UUID       `db:"account_id"`
	AssetID      uuid.UUID       `db:"asset_id"`
	Quantity     decimal.Decimal `db:"quantity"`
	AvgPrice     decimal.Decimal `db:"avg_price"`
	TotalCost    decimal.Decimal `db:"total_cost"`
	Type         PositionType    `db:"position_type"`
	OpenedAt     time.Time       `db:"opened_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
	Source       PositionSource  `db:"source"`
}

// RealizedTrade is a permanent, append-only record of a closed quantity.
type RealizedTrade struct {
	ID             uuid.UUID       `db:"id"`
	AccountID      uuid.UUID       `db:"account_id"`
	AssetID        uuid.UUID       `db:"asset_id"`
	OpenQuantity   decimal.Decimal `db:"open_quantity"`
	OpenAvgPrice   decimal.Decimal `db:"open_avg_price"`
	OpenDate       time.Time       `db:"open_date"`
	CloseQuantity  decimal.Decimal `db:"close_quantity"`
	CloseAvgPrice  decimal.Decimal `db:"close_avg_price"`
	CloseDate      time.Time       `db:"close_date"`
	RealizedPnL    decimal.Decimal `db:"realized_pnl"`
	RealizedPnLPct decimal.Decimal `db:"realized_pnl_pct"`
	DocumentID     *uuid.UUID      `db:"document_id"`
	Notes          string          `db:"notes"`
}

// CashFlow is a deposit, withdrawal, dividend, fee, tax, interest,
// settlement, or rental-income event.
type CashFlow struct {
	ID             uuid.UUID        `db:"id"`
	AccountID      uuid.UUID        `db:"account_id"`
	Type           CashFlowType     `db:"type"`
	Amount         decimal.Decimal  `db:"amount"`
	Currency       string           `db:"currency"`
	ExchangeRate   decimal.Decimal  `db:"exchange_rate"`
	ExecutedAt     time.Time        `db:"executed_at"`
	SharesAffected *decimal.Decimal `db:"shares_affected"`
	Notes          string           `db:"notes"`
}

// EffectiveAmount returns the signed amount in the flow's native currency
// converted by its stored exchange_rate.
func (c CashFlow) EffectiveAmount() decimal.Decimal {
	v := c.Amount.Mul(c.ExchangeRate).Abs()
	switch {
	case c.Type.Sign() > 0:
		return v
	case c.Type.Sign() < 0:
		return v.Neg()
	default:
		return decimal.Zero
	}
}

// Quote is a dated OHLCV price for an asset.
type Quote struct {
	AssetID       uuid.UUID        `db:"asset_id"`
	Date          time.Time        `db:"date"`
	Open          decimal.Decimal  `db:"open"`
	High          decimal.Decimal  `db:"high"`
	Low           decimal.Decimal  `db:"low"`
	Close         decimal.Decimal  `db:"close"`
	AdjustedClose *decimal.Decimal `db:"adjusted_close"`
	Volume        decimal.Decimal  `db:"volume"`
	Source        string           `db:"source"`
}

// EffectivePrice is adjusted_close when present, else close.
func (q Quote) EffectivePrice() decimal.Decimal {
	if q.AdjustedClose != nil {
		return *q.AdjustedClose
	}
	return q.Close
}

// ExchangeRate is a dated currency conversion rate.
type ExchangeRate struct {
	Date         time.Time       `db:"date"`
	FromCurrency string          `db:"from_currency"`
	ToCurrency   string          `db:"to_currency"`
	Rate         decimal.Decimal `db:"rate"`
	Source       string          `db:"source"`
}

// FundShare is the quota-ledger row for a (user, date).
type FundShare struct {
	ID                uuid.UUID       `db:"id"`
	UserID            uuid.UUID       `db:"user_id"`
	Date              time.Time       `db:"date"`
	NAV               decimal.Decimal `db:"nav"`
	SharesOutstanding decimal.Decimal `db:"shares_outstanding"`
	ShareValue        decimal.Decimal `db:"share_value"`
	DailyReturn       decimal.Decimal `db:"daily_return"`
	CumulativeReturn  decimal.Decimal `db:"cumulative_return"`
	CreatedAt         time.Time       `db:"created_at"`
}

// CategoryBreakdown is the broker-agnostic allocation shape shared by
// PortfolioSnapshot and statement consolidated_position sections.
type CategoryBreakdown struct {
	RendaFixa          decimal.Decimal
	FundosInvestimento decimal.Decimal
	RendaVariavel      decimal.Decimal
	Derivativos        decimal.Decimal
	ContaCorrente      decimal.Decimal
	COE                decimal.Decimal
}

// Total sums every category.
func (c CategoryBreakdown) Total() decimal.Decimal {
	return c.RendaFixa.Add(c.FundosInvestimento).Add(c.RendaVariavel).
		Add(c.Derivativos).Add(c.ContaCorrente).Add(c.COE)
}

// PortfolioSnapshot is a materialized daily total, consolidated (AccountID
// nil) or per-account.
type PortfolioSnapshot struct {
	UserID        uuid.UUID         `db:"user_id"`
	Date          time.Time         `db:"date"`
	AccountID     *uuid.UUID        `db:"account_id"`
	Currency      string            `db:"currency"`
	NAV           decimal.Decimal   `db:"nav"`
	TotalCost     decimal.Decimal   `db:"total_cost"`
	RealizedPnL   decimal.Decimal   `db:"realized_pnl"`
	UnrealizedPnL decimal.Decimal   `db:"unrealized_pnl"`
	Breakdown     CategoryBreakdown `db:"-"`
	DocumentID    *uuid.UUID        `db:"document_id"`
}

// FixedIncomePosition is a statement-sourced holding not subject to replay.
type FixedIncomePosition struct {
	ID            uuid.UUID       `db:"id"`
	AccountID     uuid.UUID       `db:"account_id"`
	Name          string          `db:"name"`
	Issuer        string          `db:"issuer"`
	Index         string          `db:"index_name"`
	Quantity      decimal.Decimal `db:"quantity"`
	UnitPrice     decimal.Decimal `db:"unit_price"`
	GrossValue    decimal.Decimal `db:"gross_value"`
	MaturityDate  *time.Time      `db:"maturity_date"`
	ReferenceDate time.Time       `db:"reference_date"`
}

// InvestmentFundPosition is a statement-sourced fund quota holding.
type InvestmentFundPosition struct {
	ID            uuid.UUID       `db:"id"`
	AccountID     uuid.UUID       `db:"account_id"`
	FundName      string          `db:"fund_name"`
	CNPJ          string          `db:"cnpj"`
	Quotas        decimal.Decimal `db:"quotas"`
	QuotaValue    decimal.Decimal `db:"quota_value"`
	GrossValue    decimal.Decimal `db:"gross_value"`
	ReferenceDate time.Time       `db:"reference_date"`
}

// Document is a parsed source artifact (statement or trade confirmation).
type Document struct {
	ID                uuid.UUID     `db:"id"`
	UserID            uuid.UUID     `db:"user_id"`
	AccountID         *uuid.UUID    `db:"account_id"`
	DocType           DocType       `db:"doc_type"`
	FileName          string        `db:"file_name"`
	FilePath          string        `db:"file_path"`
	FileSize          int64         `db:"file_size"`
	ParsingStatus     ParsingStatus `db:"parsing_status"`
	ParsingError      string        `db:"parsing_error"`
	ParsedAt          *time.Time    `db:"parsed_at"`
	RawExtractedData  []byte        `db:"raw_extracted_data"`
}

// RoundAmount rounds a monetary value to the 2-decimal scale used for
// amounts and fees.
func RoundAmount(d decimal.Decimal) decimal.Decimal { return d.Round(ScaleAmount) }

// RoundQty rounds a quantity to the 8-decimal scale.
func RoundQty(d decimal.Decimal) decimal.Decimal { return d.Round(ScaleQty) }

// RoundPrice rounds a price to the 6-decimal scale.
func RoundPrice(d decimal.Decimal) decimal.Decimal { return d.Round(ScalePrice) }

// RoundPercent rounds a percentage (expressed as a decimal, 0.01 == 1%) to the
// 4-decimal scale.
func RoundPercent(d decimal.Decimal) decimal.Decimal { return d.Round(ScalePercent) }
