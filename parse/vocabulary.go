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
	"strings"

	"github.com/bigodinhc/investctr/ledger"
)

// vocabulary normalizes BTG Brasil (Portuguese) and BTG Cayman (English)
// broker terms into the canonical TransactionType set.
var vocabulary = map[string]ledger.TransactionType{
	"COMPRA":    ledger.TxBuy,
	"C":         ledger.TxBuy,
	"BUY":       ledger.TxBuy,
	"PURCHASE":  ledger.TxBuy,

	"VENDA": ledger.TxSell,
	"V":     ledger.TxSell,
	"SELL":  ledger.TxSell,
	"SALE":  ledger.TxSell,

	"DIVIDENDOS": ledger.TxDividend,
	"DIVIDEND":   ledger.TxDividend,

	"JUROS S/CAPITAL": ledger.TxJCP,
	"JCP":             ledger.TxJCP,

	"RENDIMENTO": ledger.TxInterest,
	"INTEREST":   ledger.TxInterest,

	"CORRETAGEM": ledger.TxFee,
	"BROKERAGE":  ledger.TxFee,
	"COMMISSION": ledger.TxFee,

	"TAXA CUSTODIA": ledger.TxCustodyFee,

	"IOF":        ledger.TxTax,
	"IR":         ledger.TxTax,
	"IRRF":       ledger.TxTax,
	"TAX":        ledger.TxTax,
	"WITHHOLDING": ledger.TxTax,

	"TED":      ledger.TxTransferIn,
	"DOC":      ledger.TxTransferIn,
	"WIRE IN":  ledger.TxTransferIn,
	"DEPOSIT":  ledger.TxTransferIn,

	"WIRE OUT":   ledger.TxTransferOut,
	"WITHDRAWAL": ledger.TxTransferOut,
	"SAQUE":      ledger.TxTransferOut,

	"APLICACAO": ledger.TxApplication,

	"RESGATE":    ledger.TxRedemption,
	"REDEMPTION": ledger.TxRedemption,

	"EMPRESTIMO": ledger.TxLendingOut,

	"LIQUIDACAO EMPRESTIMO": ledger.TxLendingReturn,

	"LIQ BOLSA":  ledger.TxSettlement,
	"SETTLEMENT": ledger.TxSettlement,

	"DESDOBRAMENTO": ledger.TxSplit,
	"GRUPAMENTO":    ledger.TxSplit,
	"SPLIT":         ledger.TxSplit,

	"BONIFICACAO": ledger.TxSubscription,
	"SUBSCRICAO":  ledger.TxSubscription,
	"SPINOFF":     ledger.TxSubscription,
}

// NormalizeType maps a broker-local transaction label (Portuguese or
// English) to its canonical TransactionType. The lookup is
// case-insensitive and trims surrounding whitespace; an unrecognized
// label reports ok=false rather than guessing.
func NormalizeType(raw string) (ledger.TransactionType, bool) {
	key := strings.ToUpper(strings.TrimSpace(raw))
	t, ok := vocabulary[key]
	return t, ok
}

// cashFlowVocabulary maps a statement's cash_movements type label onto the
// canonical CashFlowType set, separate from vocabulary since a cash
// movement's effect (deposit/withdrawal/income) doesn't line up 1:1 with
// a position-affecting transaction type.
var cashFlowVocabulary = map[string]ledger.CashFlowType{
	"DEPOSITO": ledger.CashDeposit,
	"DEPOSIT":  ledger.CashDeposit,
	"TED":      ledger.CashDeposit,
	"DOC":      ledger.CashDeposit,
	"WIRE IN":  ledger.CashDeposit,

	"SAQUE":      ledger.CashWithdrawal,
	"WITHDRAWAL": ledger.CashWithdrawal,
	"WIRE OUT":   ledger.CashWithdrawal,

	"DIVIDENDOS": ledger.CashDividend,
	"DIVIDEND":   ledger.CashDividend,

	"JUROS S/CAPITAL": ledger.CashJCP,
	"JCP":             ledger.CashJCP,

	"RENDIMENTO": ledger.CashInterest,
	"INTEREST":   ledger.CashInterest,

	"CORRETAGEM": ledger.CashFee,
	"BROKERAGE":  ledger.CashFee,
	"COMMISSION": ledger.CashFee,
	"TAXA CUSTODIA": ledger.CashFee,

	"IOF":         ledger.CashTax,
	"IR":          ledger.CashTax,
	"IRRF":        ledger.CashTax,
	"TAX":         ledger.CashTax,
	"WITHHOLDING": ledger.CashTax,

	"LIQ BOLSA":  ledger.CashSettlement,
	"SETTLEMENT": ledger.CashSettlement,

	"ALUGUEL": ledger.CashRentalIncome,
	"RENTAL":  ledger.CashRentalIncome,
}

// NormalizeCashFlowType maps a broker-local cash-movement label to its
// canonical CashFlowType, falling back to CashOther rather than dropping
// the row, since every cash movement a statement reports should be kept
// for audit even when its exact category can't be determined.
func NormalizeCashFlowType(raw string) ledger.CashFlowType {
	key := strings.ToUpper(strings.TrimSpace(raw))
	if t, ok := cashFlowVocabulary[key]; ok {
		return t
	}
	return ledger.CashOther
}
