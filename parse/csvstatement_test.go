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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bigodinhc/investctr/ledger"
)

func TestReadTransactionsCSV(t *testing.T) {
	csv := strings.Join([]string{
		"date,type,ticker,quantity,price,fees,currency,notes",
		"2024-01-02,COMPRA,petr4,100,10.50,4.90,BRL,",
		"2024-02-01,Sell,PETR4,100,12.00,4.90,BRL,closed out",
		"2024-02-15,DIVIDENDOS,PETR4,,,,BRL,",
		"2024-03-01,NOT-A-TYPE,XXXX3,1,1,0,BRL,",
		"bad-date,COMPRA,VALE3,10,60,0,BRL,",
	}, "\n")

	txs, skipped, err := ReadTransactionsCSV(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, txs, 3)
	require.Len(t, skipped, 2)

	require.Equal(t, ledger.TxBuy, txs[0].Type)
	require.Equal(t, "PETR4", txs[0].Ticker)
	require.Equal(t, "100", txs[0].Quantity.String())
	require.Equal(t, "10.5", txs[0].Price.String())
	require.Equal(t, "4.9", txs[0].Fees.String())

	require.Equal(t, ledger.TxSell, txs[1].Type)
	require.Equal(t, "closed out", txs[1].Notes)

	require.Equal(t, ledger.TxDividend, txs[2].Type)
	require.Nil(t, txs[2].Quantity)
}

func TestReadTransactionsCSVMalformed(t *testing.T) {
	_, _, err := ReadTransactionsCSV(strings.NewReader("date,type\n2024-01-02,COMPRA,extra,fields"))
	require.Error(t, err)
}
