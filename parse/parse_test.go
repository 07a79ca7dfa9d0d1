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
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bigodinhc/investctr/apperr"
	"github.com/bigodinhc/investctr/ledger"
)

type fakeLLM struct {
	responses []string
	calls     int
}

func (f *fakeLLM) Complete(ctx context.Context, pdf []byte, prompt string, maxTokens int) (string, error) {
	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		return "{}", nil
	}
	return f.responses[i], nil
}

func TestNormalizeTypeCoversBothLanguages(t *testing.T) {
	tests := map[string]ledger.TransactionType{
		"COMPRA":    ledger.TxBuy,
		"Buy":       ledger.TxBuy,
		"venda":     ledger.TxSell,
		"Sale":      ledger.TxSell,
		"RENDIMENTO": ledger.TxInterest,
		"Interest":  ledger.TxInterest,
		"TAXA CUSTODIA": ledger.TxCustodyFee,
		"RESGATE":   ledger.TxRedemption,
		"APLICACAO": ledger.TxApplication,
	}
	for raw, want := range tests {
		got, ok := NormalizeType(raw)
		require.True(t, ok, raw)
		require.Equal(t, want, got, raw)
	}

	_, ok := NormalizeType("NOT A REAL TYPE")
	require.False(t, ok)
}

func TestOrchestratorFirstPassSucceeds(t *testing.T) {
	full := `{
		"period": {"start_date": "2024-01-01", "end_date": "2024-01-31"},
		"transactions": [{"type": "COMPRA", "date": "2024-01-15", "ticker": "PETR4", "quantity": "100", "price": "30.50"}],
		"cash_movements": [{"type": "TED", "date": "2024-01-05", "amount": "1000.00"}],
		"stock_positions": [{"ticker": "PETR4", "quantity": "100", "avg_price": "30.50"}],
		"fixed_income_positions": [{"name": "CDB Banco X"}],
		"investment_fund_positions": [{"fund_name": "Fundo Y"}]
	}`
	llm := &fakeLLM{responses: []string{"```json\n" + full + "\n```"}}
	reg := NewRegistry()
	reg.Register(NewBTGBrasilParser())

	o := New(llm, reg)
	raw, err := o.Run(context.Background(), ledger.DocStatementBR, []byte("pdf bytes"))
	require.NoError(t, err)
	require.Equal(t, 1, llm.calls)

	parser, _ := reg.Get(ledger.DocStatementBR)
	txs, err := parser.ExtractTransactions(raw)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, ledger.TxBuy, txs[0].Type)
	require.Equal(t, "PETR4", txs[0].Ticker)
	require.NotNil(t, txs[0].Quantity)
	require.True(t, txs[0].Quantity.Equal(decimal.NewFromInt(100)))
}

func TestOrchestratorRetriesMissingSection(t *testing.T) {
	firstPass := `{
		"period": {"start_date": "2024-01-01", "end_date": "2024-01-31"},
		"transactions": [],
		"cash_movements": [{"type": "TED", "date": "2024-01-05", "amount": "1000.00"}],
		"stock_positions": [{"ticker": "VALE3", "quantity": "10", "avg_price": "60.00"}],
		"fixed_income_positions": [{"name": "CDB Banco X"}],
		"investment_fund_positions": [{"fund_name": "Fundo Y"}]
	}`
	llm := &fakeLLM{responses: []string{
		firstPass,
		`{"transactions":[{"type":"VENDA","date":"2024-01-20","ticker":"VALE3","quantity":"10","price":"65.00"}]}`,
	}}
	reg := NewRegistry()
	reg.Register(NewBTGBrasilParser())

	o := New(llm, reg)
	raw, err := o.Run(context.Background(), ledger.DocStatementBR, []byte("pdf bytes"))
	require.NoError(t, err)
	require.Equal(t, 2, llm.calls)

	parser, _ := reg.Get(ledger.DocStatementBR)
	txs, err := parser.ExtractTransactions(raw)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, ledger.TxSell, txs[0].Type)
}

func TestDecodeJSONObjectFallbackChain(t *testing.T) {
	cases := map[string]string{
		"bare object":       `{"a": 1}`,
		"fenced json":       "```json\n{\"a\": 1}\n```",
		"plain fence":       "```\n{\"a\": 1}\n```",
		"prose then fence":  "Here is the extracted result:\n```json\n{\"a\": 1}\n```\nLet me know if you need anything else.",
		"unclosed fence":    "```json\n{\"a\": 1}",
		"prose plain fence": "Result:\n```\n{\"a\": 1}\n```",
	}
	for name, text := range cases {
		out, err := decodeJSONObject(text)
		require.NoError(t, err, name)
		require.Contains(t, out, "a", name)
	}

	_, err := decodeJSONObject("no json anywhere in this response")
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.CodeParseFailed))
}

func TestOrchestratorFailsValidationWhenNoSectionsPresent(t *testing.T) {
	llm := &fakeLLM{responses: []string{`{}`, `{}`, `{}`, `{}`, `{}`}}
	reg := NewRegistry()
	reg.Register(NewBTGBrasilParser())

	o := New(llm, reg)
	_, err := o.Run(context.Background(), ledger.DocStatementBR, []byte("pdf bytes"))
	require.Error(t, err)
	require.True(t, apperr.Is(err, apperr.CodeParseFailed))
}
