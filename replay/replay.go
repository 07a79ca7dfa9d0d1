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

// Package replay is the position state machine: given the complete ordered
// transaction log for one (account, asset) pair, it produces the current
// Position (or its absence) and the stream of realized trades, by netting
// buys against sells (and transfers and splits) under a single-position,
// long-or-short model with flip support.
package replay

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bigodinhc/investctr/apperr"
	"github.com/bigodinhc/investctr/ledger"
)

// RealizedEvent is one closing fill produced during replay.
type RealizedEvent struct {
	Kind           string // LONG_CLOSE or SHORT_CLOSE
	OpenQuantity   decimal.Decimal
	OpenAvgPrice   decimal.Decimal
	OpenDate       time.Time
	CloseQuantity  decimal.Decimal
	CloseAvgPrice  decimal.Decimal
	CloseDate      time.Time
	RealizedPnL    decimal.Decimal
	RealizedPnLPct decimal.Decimal
	Fees           decimal.Decimal
}

// state is the mutable accumulator walked across the transaction log.
type state struct {
	positionType ledger.PositionType // "" means flat
	quantity     decimal.Decimal
	totalCost    decimal.Decimal
	firstDate    time.Time
}

func (s *state) avgPrice() decimal.Decimal {
	if s.quantity.IsZero() {
		return decimal.Zero
	}
	return s.totalCost.Div(s.quantity)
}

func (s *state) clearIfFlat() {
	if s.quantity.IsZero() {
		s.positionType = ""
		s.totalCost = decimal.Zero
		s.firstDate = time.Time{}
	}
}

// Result is the outcome of replaying one (account, asset) pair's log.
type Result struct {
	Position *ledger.Position // nil if the pair ends flat
	Events   []RealizedEvent
}

// Replay runs the position state machine over txs, which must already be in
// ascending executed_at, ascending id order (the tie-break the caller's
// query enforces). It is a pure function: given the same input it always
// produces the same output.
func Replay(accountID, assetID uuid.UUID, txs []*ledger.Transaction) (*Result, error) {
	return run(accountID, assetID, state{}, txs, ledger.SourceCalculated, time.Time{})
}

// ReplayFrom seeds the state machine with a statement-sourced position and
// walks only the transactions dated after it. The statement stays the
// authoritative opening: the result keeps SourceStatement and the
// statement's reference date (baseline.UpdatedAt) so later replays anchor
// on the same point instead of rewinding past it.
func ReplayFrom(accountID, assetID uuid.UUID, baseline *ledger.Position, txs []*ledger.Transaction) (*Result, error) {
	st := state{
		positionType: baseline.Type,
		quantity:     baseline.Quantity,
		totalCost:    baseline.TotalCost,
		firstDate:    baseline.OpenedAt,
	}
	return run(accountID, assetID, st, txs, ledger.SourceStatement, baseline.UpdatedAt)
}

func run(accountID, assetID uuid.UUID, st state, txs []*ledger.Transaction, source ledger.PositionSource, anchor time.Time) (*Result, error) {
	var events []RealizedEvent

	for _, tx := range txs {
		if err := validate(tx); err != nil {
			return nil, err
		}
		switch tx.Type {
		case ledger.TxBuy, ledger.TxSubscription, ledger.TxTransferIn:
			fees := tx.Fees
			if tx.Type == ledger.TxTransferIn {
				fees = decimal.Zero
			}
			events = append(events, applyBuy(&st, tx, fees)...)
		case ledger.TxSell:
			events = append(events, applySell(&st, tx)...)
		case ledger.TxTransferOut:
			applyTransferOut(&st, tx)
		case ledger.TxSplit:
			applySplit(&st, tx)
		default:
			// cash/journal event only; no position change
		}
	}

	result := &Result{Events: events}
	if !st.quantity.IsZero() {
		result.Position = &ledger.Position{
			AccountID: accountID,
			AssetID:   assetID,
			Quantity:  ledger.RoundQty(st.quantity),
			AvgPrice:  ledger.RoundPrice(st.avgPrice()),
			TotalCost: ledger.RoundAmount(st.totalCost),
			Type:      st.positionType,
			OpenedAt:  st.firstDate,
			UpdatedAt: anchor,
			Source:    source,
		}
	}
	return result, nil
}

func validate(tx *ledger.Transaction) error {
	if tx.Type.ReplayRelevant() {
		if tx.Quantity.IsNegative() {
			return apperr.Validation("transaction %s: negative quantity", tx.ID)
		}
		needsPrice := tx.Type == ledger.TxBuy || tx.Type == ledger.TxSell
		if needsPrice && tx.Price.IsZero() {
			return apperr.Validation("transaction %s: missing price on %s", tx.ID, tx.Type)
		}
	}
	return nil
}

// applyBuy handles BUY, SUBSCRIPTION, and TRANSFER_IN (fees already zeroed
// by the caller for transfers). A SHORT position is closed first; any
// excess quantity flips into a new LONG.
func applyBuy(st *state, tx *ledger.Transaction, fees decimal.Decimal) []RealizedEvent {
	q := tx.Quantity
	p := tx.Price

	if st.positionType != ledger.PositionShort {
		st.totalCost = st.totalCost.Add(q.Mul(p)).Add(fees)
		st.quantity = st.quantity.Add(q)
		st.positionType = ledger.PositionLong
		if st.firstDate.IsZero() {
			st.firstDate = tx.ExecutedAt
		}
		return nil
	}

	qs := st.quantity
	ps := st.avgPrice()

	if q.LessThanOrEqual(qs) {
		grossProceeds := q.Mul(ps)
		costBasis := q.Mul(p).Add(fees)
		pnl := grossProceeds.Sub(costBasis)

		ev := closeEvent("SHORT_CLOSE", q, ps, st.firstDate, q, p, tx.ExecutedAt, pnl, costBasis, fees)

		remaining := qs.Sub(q)
		if !qs.IsZero() {
			st.totalCost = st.totalCost.Mul(remaining).Div(qs)
		}
		st.quantity = remaining
		st.clearIfFlat()
		return []RealizedEvent{ev}
	}

	feesForClose := fees.Mul(qs).Div(q)
	feesForOpen := fees.Sub(feesForClose)
	grossProceeds := qs.Mul(ps)
	costBasisClose := qs.Mul(p).Add(feesForClose)
	pnl := grossProceeds.Sub(costBasisClose)

	ev := closeEvent("SHORT_CLOSE", qs, ps, st.firstDate, qs, p, tx.ExecutedAt, pnl, costBasisClose, feesForClose)

	remaining := q.Sub(qs)
	st.quantity = remaining
	st.totalCost = remaining.Mul(p).Add(feesForOpen)
	st.positionType = ledger.PositionLong
	st.firstDate = tx.ExecutedAt

	return []RealizedEvent{ev}
}

// applySell closes a LONG position first; any excess quantity flips into a
// new SHORT. With no LONG on hand, it extends (or opens) a SHORT.
func applySell(st *state, tx *ledger.Transaction) []RealizedEvent {
	q := tx.Quantity
	p := tx.Price
	f := tx.Fees

	if st.positionType == ledger.PositionLong {
		ql := st.quantity
		cl := st.avgPrice()

		if q.LessThanOrEqual(ql) {
			grossProceeds := q.Mul(p)
			costBasis := q.Mul(cl)
			pnl := grossProceeds.Sub(f).Sub(costBasis)

			ev := closeEvent("LONG_CLOSE", q, cl, st.firstDate, q, p, tx.ExecutedAt, pnl, costBasis, f)

			st.quantity = ql.Sub(q)
			st.totalCost = st.totalCost.Sub(costBasis)
			st.clearIfFlat()
			return []RealizedEvent{ev}
		}

		feesForClose := f.Mul(ql).Div(q)
		costBasisClose := ql.Mul(cl)
		grossProceeds := ql.Mul(p)
		pnl := grossProceeds.Sub(feesForClose).Sub(costBasisClose)

		ev := closeEvent("LONG_CLOSE", ql, cl, st.firstDate, ql, p, tx.ExecutedAt, pnl, costBasisClose, feesForClose)

		remaining := q.Sub(ql)
		st.quantity = remaining
		st.totalCost = remaining.Mul(p)
		st.positionType = ledger.PositionShort
		st.firstDate = tx.ExecutedAt

		return []RealizedEvent{ev}
	}

	// NONE or SHORT: extend short.
	newTotalCost := st.totalCost.Add(q.Mul(p))
	st.quantity = st.quantity.Add(q)
	st.totalCost = newTotalCost
	st.positionType = ledger.PositionShort
	if st.firstDate.IsZero() {
		st.firstDate = tx.ExecutedAt
	}
	return nil
}

// applyTransferOut reduces a LONG position at its current average cost. It
// never produces a realized event; excess beyond the LONG quantity on hand
// is silently dropped rather than opening a SHORT.
func applyTransferOut(st *state, tx *ledger.Transaction) {
	if st.positionType != ledger.PositionLong {
		return
	}
	reduceQty := tx.Quantity
	if reduceQty.GreaterThan(st.quantity) {
		reduceQty = st.quantity
	}
	costReduced := reduceQty.Mul(st.avgPrice())
	st.quantity = st.quantity.Sub(reduceQty)
	st.totalCost = st.totalCost.Sub(costReduced)
	st.clearIfFlat()
}

// applySplit scales a LONG position's quantity by the transaction's
// quantity field, the split factor (reverse splits use a factor < 1).
// Total cost is unchanged; the average price is implicitly recomputed.
func applySplit(st *state, tx *ledger.Transaction) {
	if st.positionType != ledger.PositionLong || st.quantity.IsZero() {
		return
	}
	if tx.Quantity.IsZero() {
		return
	}
	st.quantity = st.quantity.Mul(tx.Quantity)
}

func closeEvent(kind string, openQty, openPrice decimal.Decimal, openDate time.Time, closeQty, closePrice decimal.Decimal, closeDate time.Time, pnl, costBasis, fees decimal.Decimal) RealizedEvent {
	pct := decimal.Zero
	if !costBasis.IsZero() {
		pct = pnl.Div(costBasis).Mul(decimal.NewFromInt(100))
	}
	return RealizedEvent{
		Kind:           kind,
		OpenQuantity:   ledger.RoundQty(openQty),
		OpenAvgPrice:   ledger.RoundPrice(openPrice),
		OpenDate:       openDate,
		CloseQuantity:  ledger.RoundQty(closeQty),
		CloseAvgPrice:  ledger.RoundPrice(closePrice),
		CloseDate:      closeDate,
		RealizedPnL:    ledger.RoundAmount(pnl),
		RealizedPnLPct: ledger.RoundPercent(pct),
		Fees:           ledger.RoundAmount(fees),
	}
}
