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
package asset

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bigodinhc/investctr/ledger"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		ticker   string
		wantType ledger.AssetType
		wantCcy  string
		wantBR   bool
	}{
		{"PETR4", ledger.AssetStock, "BRL", true},
		{"MXRF11", ledger.AssetFII, "BRL", true},
		{"AAPL34", ledger.AssetBDR, "BRL", true},
		{"GOGL35", ledger.AssetBDR, "BRL", true},
		{"RZAG11", ledger.AssetFIAgro, "BRL", true},
		{"AAPL", ledger.AssetStock, "USD", false},
		{"VOO", ledger.AssetStock, "USD", false},
	}

	for _, c := range cases {
		got := Classify(c.ticker)
		require.Equal(t, c.wantType, got.Type, c.ticker)
		require.Equal(t, c.wantCcy, got.Currency, c.ticker)
		require.Equal(t, c.wantBR, got.IsBrazilian, c.ticker)
	}
}

func TestClassifyStripsSAExchangeSuffix(t *testing.T) {
	got := Classify("petr4.sa")
	require.Equal(t, "PETR4", got.Ticker)
	require.Equal(t, "PETR4.SA", got.QuoteTicker)
}
