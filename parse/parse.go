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

// Package parse drives LLM-based extraction of broker statements and
// trade notes into canonical transactions, with focused retry on
// missing sections and vocabulary normalization. Each document type has
// a Parser; a registry maps document type to parser.
package parse

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bigodinhc/investctr/apperr"
	"github.com/bigodinhc/investctr/ledger"
	"github.com/bigodinhc/investctr/ports"
)

// Section names one of a statement's data sections, used both as a JSON
// top-level key and as the key into a parser's focused-retry prompts.
type Section string

const (
	SectionTransactions            Section = "transactions"
	SectionCashMovements           Section = "cash_movements"
	SectionStockPositions          Section = "stock_positions"
	SectionFixedIncomePositions    Section = "fixed_income_positions"
	SectionInvestmentFundPositions Section = "investment_fund_positions"
)

// ParsedTransaction is the canonical shape extract_transactions returns,
// broker vocabulary already normalized into ledger.TransactionType.
type ParsedTransaction struct {
	Type     ledger.TransactionType
	Date     time.Time
	Ticker   string
	Quantity *decimal.Decimal
	Price    *decimal.Decimal
	Fees     *decimal.Decimal
	Amount   *decimal.Decimal
	Currency string
	Notes    string
}

// Parser is implemented once per Document type.
type Parser interface {
	DocType() ledger.DocType
	PromptTemplate() string
	RequiredSections() []Section
	FocusedPrompt(section Section) (string, bool)
	Validate(raw map[string]any) error
	ExtractTransactions(raw map[string]any) ([]ParsedTransaction, error)
}

// Registry maps a Document's doc_type to the Parser that understands it.
type Registry struct {
	parsers map[ledger.DocType]Parser
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[ledger.DocType]Parser)}
}

// Register adds or replaces the parser for its DocType().
func (r *Registry) Register(p Parser) {
	r.parsers[p.DocType()] = p
}

// Get returns the parser registered for dt, if any.
func (r *Registry) Get(dt ledger.DocType) (Parser, bool) {
	p, ok := r.parsers[dt]
	return p, ok
}

// Orchestrator drives the parse loop: a full-template pass, focused
// retries for any missing required section, then validation.
type Orchestrator struct {
	LLM       ports.LLMProvider
	Registry  *Registry
	MaxTokens int
}

// New wires an Orchestrator against an LLM provider and parser registry.
func New(llm ports.LLMProvider, registry *Registry) *Orchestrator {
	return &Orchestrator{LLM: llm, Registry: registry, MaxTokens: 4096}
}

// Run executes the parse loop for one document and returns the validated
// raw extraction, or a *apperr.Error with CodeParseFailed if validation
// never succeeds.
func (o *Orchestrator) Run(ctx context.Context, docType ledger.DocType, pdf []byte) (map[string]any, error) {
	parser, ok := o.Registry.Get(docType)
	if !ok {
		return nil, apperr.Validation("no parser registered for document type %s", docType)
	}

	raw, err := o.callLLM(ctx, pdf, parser.PromptTemplate())
	if err != nil {
		return nil, err
	}

	for _, section := range missingSections(raw, parser.RequiredSections()) {
		prompt, ok := parser.FocusedPrompt(section)
		if !ok {
			continue
		}
		fragment, err := o.callLLM(ctx, pdf, prompt)
		if err != nil {
			continue
		}
		if v, ok := fragment[string(section)]; ok {
			raw[string(section)] = v
		}
	}

	if err := parser.Validate(raw); err != nil {
		return nil, apperr.ParseFailed("document failed validation: %v", err)
	}
	return raw, nil
}

func (o *Orchestrator) callLLM(ctx context.Context, pdf []byte, prompt string) (map[string]any, error) {
	text, err := o.LLM.Complete(ctx, pdf, prompt, o.MaxTokens)
	if err != nil {
		return nil, apperr.ExternalProvider(err, "llm completion failed")
	}
	return decodeJSONObject(text)
}

// missingSections reports which required sections are absent or empty in
// raw.
func missingSections(raw map[string]any, required []Section) []Section {
	var missing []Section
	for _, s := range required {
		v, ok := raw[string(s)]
		if !ok || isEmptySection(v) {
			missing = append(missing, s)
		}
	}
	return missing
}

func isEmptySection(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}

// decodeJSONObject extracts the JSON object from an LLM response: a
// strict parse of the whole text first, then the first ```json fenced
// block, then any ``` fenced block (responses often carry prose around
// the fence), then failure.
func decodeJSONObject(text string) (map[string]any, error) {
	out, strictErr := decodeStrict(strings.TrimSpace(text))
	if strictErr == nil {
		return out, nil
	}
	if block, ok := fencedBlock(text, "```json"); ok {
		if out, err := decodeStrict(block); err == nil {
			return out, nil
		}
	}
	if block, ok := fencedBlock(text, "```"); ok {
		if out, err := decodeStrict(block); err == nil {
			return out, nil
		}
	}
	return nil, apperr.ParseFailed("no decodable JSON object in LLM response: %v", strictErr)
}

func decodeStrict(text string) (map[string]any, error) {
	var out map[string]any
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// fencedBlock returns the content of the first code fence opened by
// marker, up to the closing ``` (or end of text if unclosed).
func fencedBlock(text, marker string) (string, bool) {
	start := strings.Index(text, marker)
	if start < 0 {
		return "", false
	}
	rest := text[start+len(marker):]
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest), true
}

// safeDecimal coerces a raw JSON value to a decimal, returning nil rather
// than erroring on anything that doesn't parse.
func safeDecimal(v any) *decimal.Decimal {
	switch val := v.(type) {
	case nil:
		return nil
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return nil
		}
		return &d
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return nil
		}
		return &d
	case float64:
		d := decimal.NewFromFloat(val)
		return &d
	default:
		return nil
	}
}

// parseDate validates a raw JSON value as a YYYY-MM-DD date.
func parseDate(v any) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func stringField(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
