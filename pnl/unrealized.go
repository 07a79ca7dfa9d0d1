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
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bigodinhc/investctr/ledger"
)

// PositionPnL is one position joined with its current price.
type PositionPnL struct {
	Position      *ledger.Position
	Price         *decimal.Decimal // nil if no price is on file
	MarketValue   *decimal.Decimal
	UnrealizedPnL *decimal.Decimal
	PctPnL        *decimal.Decimal
}

// UnrealizedSummary aggregates unrealized P&L across a set of positions.
// MarketNAV is the signed portfolio value: market value where a price is
// known, cost basis where it isn't, LONG positive and SHORT negative.
type UnrealizedSummary struct {
	Positions       []PositionPnL
	LongValue       decimal.Decimal
	ShortValue      decimal.Decimal
	Gross           decimal.Decimal
	Net             decimal.Decimal
	TotalCost       decimal.Decimal
	TotalUnrealized decimal.Decimal
	MarketNAV       decimal.Decimal
}

// Unrealized joins open positions with a price map (keyed by asset ID) and
// computes market value and P&L for each. Positions without a known price
// still contribute their cost basis to totals but get nil MV/P&L.
func Unrealized(positions []*ledger.Position, prices map[uuid.UUID]decimal.Decimal) *UnrealizedSummary {
	summary := &UnrealizedSummary{}

	for _, p := range positions {
		entry := PositionPnL{Position: p}
		summary.TotalCost = summary.TotalCost.Add(p.TotalCost)

		price, ok := prices[p.AssetID]
		if ok {
			priceCopy := price
			mv := p.Quantity.Mul(price)
			// A short's total_cost is its proceeds basis: profit when the
			// market value falls below it.
			upnl := mv.Sub(p.TotalCost)
			if p.Type == ledger.PositionShort {
				upnl = p.TotalCost.Sub(mv)
			}
			var pct decimal.Decimal
			if !p.TotalCost.IsZero() {
				pct = upnl.Div(p.TotalCost).Mul(decimal.NewFromInt(100))
			}
			entry.Price = &priceCopy
			entry.MarketValue = &mv
			entry.UnrealizedPnL = &upnl
			entry.PctPnL = &pct

			summary.TotalUnrealized = summary.TotalUnrealized.Add(upnl)
			switch p.Type {
			case ledger.PositionLong:
				summary.LongValue = summary.LongValue.Add(mv)
				summary.MarketNAV = summary.MarketNAV.Add(mv)
			case ledger.PositionShort:
				summary.ShortValue = summary.ShortValue.Add(mv)
				summary.MarketNAV = summary.MarketNAV.Sub(mv)
			}
		} else {
			if p.Type == ledger.PositionShort {
				summary.MarketNAV = summary.MarketNAV.Sub(p.TotalCost)
			} else {
				summary.MarketNAV = summary.MarketNAV.Add(p.TotalCost)
			}
		}

		summary.Positions = append(summary.Positions, entry)
	}

	summary.Gross = summary.LongValue.Add(summary.ShortValue)
	summary.Net = summary.LongValue.Sub(summary.ShortValue)

	return summary
}
