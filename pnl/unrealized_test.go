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
package pnl

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bigodinhc/investctr/ledger"
)

func TestUnrealizedWithAndWithoutPrice(t *testing.T) {
	priced, unpriced := uuid.New(), uuid.New()

	positions := []*ledger.Position{
		{AssetID: priced, Type: ledger.PositionLong, Quantity: decimal.NewFromInt(10), TotalCost: decimal.NewFromInt(100)},
		{AssetID: unpriced, Type: ledger.PositionLong, Quantity: decimal.NewFromInt(5), TotalCost: decimal.NewFromInt(50)},
	}
	prices := map[uuid.UUID]decimal.Decimal{priced: decimal.NewFromInt(15)}

	summary := Unrealized(positions, prices)
	require.Len(t, summary.Positions, 2)
	require.True(t, summary.TotalCost.Equal(decimal.NewFromInt(150)))
	require.True(t, summary.LongValue.Equal(decimal.NewFromInt(150)), "long=%s", summary.LongValue)
	require.True(t, summary.Net.Equal(decimal.NewFromInt(150)))

	for _, p := range summary.Positions {
		if p.Position.AssetID == priced {
			require.NotNil(t, p.UnrealizedPnL)
			require.True(t, p.UnrealizedPnL.Equal(decimal.NewFromInt(50)), "pnl=%s", *p.UnrealizedPnL)
		} else {
			require.Nil(t, p.UnrealizedPnL)
		}
	}
}

func TestUnrealizedShortPosition(t *testing.T) {
	assetID := uuid.New()
	positions := []*ledger.Position{
		{AssetID: assetID, Type: ledger.PositionShort, Quantity: decimal.NewFromInt(10), TotalCost: decimal.NewFromInt(100)},
	}
	prices := map[uuid.UUID]decimal.Decimal{assetID: decimal.NewFromInt(12)}

	summary := Unrealized(positions, prices)
	require.True(t, summary.ShortValue.Equal(decimal.NewFromInt(120)))
	require.True(t, summary.Net.Equal(decimal.NewFromInt(-120)), "net=%s", summary.Net)
	// Shorted at 100, now worth 120: a 20 loss, and a -120 NAV contribution.
	require.True(t, summary.TotalUnrealized.Equal(decimal.NewFromInt(-20)), "upnl=%s", summary.TotalUnrealized)
	require.True(t, summary.MarketNAV.Equal(decimal.NewFromInt(-120)), "nav=%s", summary.MarketNAV)
}

func TestUnrealizedUnpricedContributesCostToNAV(t *testing.T) {
	assetID := uuid.New()
	positions := []*ledger.Position{
		{AssetID: assetID, Type: ledger.PositionLong, Quantity: decimal.NewFromInt(5), TotalCost: decimal.NewFromInt(50)},
	}

	summary := Unrealized(positions, nil)
	require.True(t, summary.TotalUnrealized.IsZero())
	require.True(t, summary.MarketNAV.Equal(decimal.NewFromInt(50)))
}
