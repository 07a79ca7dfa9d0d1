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
package parse

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bigodinhc/investctr/ledger"
	"github.com/bigodinhc/investctr/reconcile"
)

// StatementParser implements Parser for a BTG brokerage statement. The
// same shape serves both the Brazilian (Portuguese) and Cayman (English)
// statement types; only the prompt text and doc type differ, since
// vocabulary normalization already handles both languages.
type StatementParser struct {
	Type           ledger.DocType
	Prompt         string
	Sections       []Section
	FocusedPrompts map[Section]string
}

// NewBTGBrasilParser builds the parser for DocStatementBR.
func NewBTGBrasilParser() *StatementParser {
	return &StatementParser{
		Type:   ledger.DocStatementBR,
		Prompt: btgBrasilPrompt,
		Sections: []Section{
			SectionTransactions,
			SectionCashMovements,
			SectionStockPositions,
			SectionFixedIncomePositions,
			SectionInvestmentFundPositions,
		},
		FocusedPrompts: map[Section]string{
			SectionTransactions:            focusedPrompt("transactions"),
			SectionCashMovements:           focusedPrompt("cash_movements"),
			SectionStockPositions:          focusedPrompt("stock_positions"),
			SectionFixedIncomePositions:    focusedPrompt("fixed_income_positions"),
			SectionInvestmentFundPositions: focusedPrompt("investment_fund_positions"),
		},
	}
}

// NewBTGCaymanParser builds the parser for DocStatementCayman.
func NewBTGCaymanParser() *StatementParser {
	return &StatementParser{
		Type:   ledger.DocStatementCayman,
		Prompt: btgCaymanPrompt,
		Sections: []Section{
			SectionTransactions,
			SectionCashMovements,
			SectionStockPositions,
		},
		FocusedPrompts: map[Section]string{
			SectionTransactions:   focusedPrompt("transactions"),
			SectionCashMovements:  focusedPrompt("cash_movements"),
			SectionStockPositions: focusedPrompt("stock_positions"),
		},
	}
}

const btgBrasilPrompt = `Extract every transaction, cash movement, stock
position, fixed-income position, and investment-fund position from this
BTG Pactual Brasil brokerage statement. Respond with a single JSON object
with keys: period (start_date, end_date), transactions, cash_movements,
stock_positions, fixed_income_positions, investment_fund_positions. Use
YYYY-MM-DD for all dates.`

const btgCaymanPrompt = `Extract every transaction, cash movement, and
stock position from this BTG Pactual Cayman brokerage statement. Respond
with a single JSON object with keys: period (start_date, end_date),
transactions, cash_movements, stock_positions. Use YYYY-MM-DD for all
dates.`

func focusedPrompt(section string) string {
	return fmt.Sprintf("The prior extraction is missing or empty for the "+
		"%q section. Re-read the statement and return a JSON object with "+
		"only that key, containing everything found for it.", section)
}

// DocType implements Parser.
func (p *StatementParser) DocType() ledger.DocType { return p.Type }

// PromptTemplate implements Parser.
func (p *StatementParser) PromptTemplate() string { return p.Prompt }

// RequiredSections implements Parser; the order fixes the order focused
// retries are issued in.
func (p *StatementParser) RequiredSections() []Section {
	return p.Sections
}

// FocusedPrompt implements Parser.
func (p *StatementParser) FocusedPrompt(section Section) (string, bool) {
	prompt, ok := p.FocusedPrompts[section]
	return prompt, ok
}

// Validate implements Parser: at least one data section must be present,
// and if a period object exists it must carry at least one of its dates.
func (p *StatementParser) Validate(raw map[string]any) error {
	anyPresent := false
	for _, s := range p.Sections {
		if v, ok := raw[string(s)]; ok && !isEmptySection(v) {
			anyPresent = true
			break
		}
	}
	if !anyPresent {
		return fmt.Errorf("no data sections present")
	}

	if periodVal, ok := raw["period"]; ok {
		period, ok := periodVal.(map[string]any)
		if ok {
			_, hasStart := period["start_date"]
			_, hasEnd := period["end_date"]
			if !hasStart && !hasEnd {
				return fmt.Errorf("period object present but carries no dates")
			}
		}
	}
	return nil
}

// ParsedCashFlow is the canonical shape ExtractCashFlows returns, broker
// vocabulary already normalized into ledger.CashFlowType.
type ParsedCashFlow struct {
	Type     ledger.CashFlowType
	Date     time.Time
	Amount   *decimal.Decimal
	Currency string
	Notes    string
}

// ExtractCashFlows reads the cash_movements section, normalizing each
// row's type label via NormalizeCashFlowType (falling back to
// CashOther rather than dropping the row, since every reported cash
// movement should be kept for audit).
func (p *StatementParser) ExtractCashFlows(raw map[string]any) []ParsedCashFlow {
	rows, _ := raw[string(SectionCashMovements)].([]any)

	var out []ParsedCashFlow
	for _, row := range rows {
		m, ok := row.(map[string]any)
		if !ok {
			continue
		}
		date, ok := parseDate(m["date"])
		if !ok {
			continue
		}
		out = append(out, ParsedCashFlow{
			Type:     NormalizeCashFlowType(stringField(m, "type")),
			Date:     date,
			Amount:   safeDecimal(m["amount"]),
			Currency: stringField(m, "currency"),
			Notes:    stringField(m, "notes"),
		})
	}
	return out
}

// ExtractStockPositions reads the stock_positions section into the shape
// reconcile.Engine.Reconcile expects, so a document commit can reconcile
// stored positions against what the statement reports holding.
func (p *StatementParser) ExtractStockPositions(raw map[string]any) []reconcile.StatementPosition {
	rows, _ := raw[string(SectionStockPositions)].([]any)

	var out []reconcile.StatementPosition
	for _, row := range rows {
		m, ok := row.(map[string]any)
		if !ok {
			continue
		}
		qty := safeDecimal(m["quantity"])
		avgPrice := safeDecimal(m["avg_price"])
		if qty == nil || avgPrice == nil {
			continue
		}
		out = append(out, reconcile.StatementPosition{
			Ticker:       stringField(m, "ticker"),
			Quantity:     *qty,
			AvgPrice:     *avgPrice,
			TotalCost:    safeDecimal(m["total_cost"]),
			CurrentPrice: safeDecimal(m["current_price"]),
		})
	}
	return out
}

// ExtractTransactions implements Parser, normalizing broker-local
// vocabulary into canonical types via NormalizeType and dropping rows
// whose type isn't recognized rather than guessing.
func (p *StatementParser) ExtractTransactions(raw map[string]any) ([]ParsedTransaction, error) {
	rows, _ := raw[string(SectionTransactions)].([]any)

	var out []ParsedTransaction
	for _, row := range rows {
		m, ok := row.(map[string]any)
		if !ok {
			continue
		}

		canonical, ok := NormalizeType(stringField(m, "type"))
		if !ok {
			continue
		}

		date, ok := parseDate(m["date"])
		if !ok {
			continue
		}

		out = append(out, ParsedTransaction{
			Type:     canonical,
			Date:     date,
			Ticker:   strings.ToUpper(strings.TrimSpace(stringField(m, "ticker"))),
			Quantity: safeDecimal(m["quantity"]),
			Price:    safeDecimal(m["price"]),
			Fees:     safeDecimal(m["fees"]),
			Amount:   safeDecimal(m["amount"]),
			Currency: stringField(m, "currency"),
			Notes:    stringField(m, "notes"),
		})
	}
	return out, nil
}
