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
package replay

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/bigodinhc/investctr/ledger"
)

func tx(typ ledger.TransactionType, qty, price, fees string, day int) *ledger.Transaction {
	return &ledger.Transaction{
		ID:         uuid.New(),
		Type:       typ,
		Quantity:   decimal.RequireFromString(qty),
		Price:      decimal.RequireFromString(price),
		Fees:       decimal.RequireFromString(fees),
		ExecutedAt: time.Date(2026, 1, day, 12, 0, 0, 0, time.UTC),
	}
}

func TestReplay_SimpleLongPartialClose(t *testing.T) {
	accountID, assetID := uuid.New(), uuid.New()
	txs := []*ledger.Transaction{
		tx(ledger.TxBuy, "10", "100", "0", 1),
		tx(ledger.TxSell, "4", "120", "0", 2),
	}

	res, err := Replay(accountID, assetID, txs)
	require.NoError(t, err)
	require.NotNil(t, res.Position)
	require.True(t, res.Position.Quantity.Equal(decimal.RequireFromString("6")))
	require.True(t, res.Position.AvgPrice.Equal(decimal.RequireFromString("100")))
	require.Equal(t, ledger.PositionLong, res.Position.Type)

	require.Len(t, res.Events, 1)
	require.Equal(t, "LONG_CLOSE", res.Events[0].Kind)
	require.True(t, res.Events[0].RealizedPnL.Equal(decimal.RequireFromString("80")))
}

func TestReplay_LongToShortFlip(t *testing.T) {
	accountID, assetID := uuid.New(), uuid.New()
	txs := []*ledger.Transaction{
		tx(ledger.TxBuy, "10", "100", "0", 1),
		tx(ledger.TxSell, "15", "120", "0", 2),
	}

	res, err := Replay(accountID, assetID, txs)
	require.NoError(t, err)
	require.NotNil(t, res.Position)
	require.Equal(t, ledger.PositionShort, res.Position.Type)
	require.True(t, res.Position.Quantity.Equal(decimal.RequireFromString("5")))
	require.True(t, res.Position.TotalCost.Equal(decimal.RequireFromString("600")))

	require.Len(t, res.Events, 1)
	require.Equal(t, "LONG_CLOSE", res.Events[0].Kind)
	require.True(t, res.Events[0].RealizedPnL.Equal(decimal.RequireFromString("200")))
}

func TestReplay_ShortToLongFlipWithFeeProration(t *testing.T) {
	accountID, assetID := uuid.New(), uuid.New()
	txs := []*ledger.Transaction{
		tx(ledger.TxSell, "10", "100", "0", 1),
		tx(ledger.TxBuy, "15", "90", "15", 2),
	}

	res, err := Replay(accountID, assetID, txs)
	require.NoError(t, err)
	require.NotNil(t, res.Position)
	require.Equal(t, ledger.PositionLong, res.Position.Type)
	require.True(t, res.Position.Quantity.Equal(decimal.RequireFromString("5")))
	// fees pro-rated 10/15 to the close, 5/15 to the open: open fee = 5.
	require.True(t, res.Position.TotalCost.Equal(decimal.RequireFromString("455")))

	require.Len(t, res.Events, 1)
	require.Equal(t, "SHORT_CLOSE", res.Events[0].Kind)
}

func TestReplay_FullCloseGoesFlat(t *testing.T) {
	accountID, assetID := uuid.New(), uuid.New()
	txs := []*ledger.Transaction{
		tx(ledger.TxBuy, "10", "100", "0", 1),
		tx(ledger.TxSell, "10", "110", "0", 2),
	}

	res, err := Replay(accountID, assetID, txs)
	require.NoError(t, err)
	require.Nil(t, res.Position)
	require.Len(t, res.Events, 1)
}

func TestReplay_TransferOutBeyondQuantityIsSilentlyClamped(t *testing.T) {
	accountID, assetID := uuid.New(), uuid.New()
	txs := []*ledger.Transaction{
		tx(ledger.TxBuy, "10", "100", "0", 1),
		tx(ledger.TxTransferOut, "15", "0", "0", 2),
	}

	res, err := Replay(accountID, assetID, txs)
	require.NoError(t, err)
	require.Nil(t, res.Position)
	require.Empty(t, res.Events)
}

func TestReplay_SplitScalesQuantityNotCost(t *testing.T) {
	accountID, assetID := uuid.New(), uuid.New()
	txs := []*ledger.Transaction{
		tx(ledger.TxBuy, "10", "100", "0", 1),
		tx(ledger.TxSplit, "2", "0", "0", 2),
	}

	res, err := Replay(accountID, assetID, txs)
	require.NoError(t, err)
	require.NotNil(t, res.Position)
	require.True(t, res.Position.Quantity.Equal(decimal.RequireFromString("20")))
	require.True(t, res.Position.TotalCost.Equal(decimal.RequireFromString("1000")))
	require.True(t, res.Position.AvgPrice.Equal(decimal.RequireFromString("50")))
}

func TestReplay_IsIdempotent(t *testing.T) {
	accountID, assetID := uuid.New(), uuid.New()
	txs := []*ledger.Transaction{
		tx(ledger.TxBuy, "10", "100", "1", 1),
		tx(ledger.TxSell, "4", "120", "1", 2),
		tx(ledger.TxBuy, "3", "90", "0", 3),
	}

	first, err := Replay(accountID, assetID, txs)
	require.NoError(t, err)
	second, err := Replay(accountID, assetID, txs)
	require.NoError(t, err)

	require.Equal(t, first.Position, second.Position)
	require.Equal(t, first.Events, second.Events)
}

func TestReplay_LongRoundTripWithFees(t *testing.T) {
	accountID, assetID := uuid.New(), uuid.New()
	txs := []*ledger.Transaction{
		tx(ledger.TxBuy, "100", "10.00", "0", 2),
		tx(ledger.TxSell, "100", "12.00", "1.00", 3),
	}

	res, err := Replay(accountID, assetID, txs)
	require.NoError(t, err)
	require.Nil(t, res.Position)

	require.Len(t, res.Events, 1)
	ev := res.Events[0]
	require.Equal(t, "LONG_CLOSE", ev.Kind)
	require.True(t, ev.CloseQuantity.Equal(decimal.RequireFromString("100")))
	require.True(t, ev.OpenAvgPrice.Equal(decimal.RequireFromString("10")))
	require.True(t, ev.CloseAvgPrice.Equal(decimal.RequireFromString("12")))
	require.True(t, ev.RealizedPnL.Equal(decimal.RequireFromString("199")))
	require.True(t, ev.Fees.Equal(decimal.RequireFromString("1")))
}

func TestReplay_ShortPartialCloseWithProfit(t *testing.T) {
	accountID, assetID := uuid.New(), uuid.New()
	txs := []*ledger.Transaction{
		tx(ledger.TxSell, "10", "100.00", "0", 1),
		tx(ledger.TxBuy, "4", "90.00", "0", 2),
	}

	res, err := Replay(accountID, assetID, txs)
	require.NoError(t, err)
	require.NotNil(t, res.Position)
	require.Equal(t, ledger.PositionShort, res.Position.Type)
	require.True(t, res.Position.Quantity.Equal(decimal.RequireFromString("6")))
	require.True(t, res.Position.TotalCost.Equal(decimal.RequireFromString("600")))

	require.Len(t, res.Events, 1)
	ev := res.Events[0]
	require.Equal(t, "SHORT_CLOSE", ev.Kind)
	require.True(t, ev.RealizedPnL.Equal(decimal.RequireFromString("40")))
}

func TestReplayFrom_StatementBaselineIsAuthoritative(t *testing.T) {
	accountID, assetID := uuid.New(), uuid.New()
	refDate := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	baseline := &ledger.Position{
		AccountID: accountID,
		AssetID:   assetID,
		Quantity:  decimal.RequireFromString("50"),
		AvgPrice:  decimal.RequireFromString("20"),
		TotalCost: decimal.RequireFromString("1000"),
		Type:      ledger.PositionLong,
		OpenedAt:  refDate,
		UpdatedAt: refDate,
		Source:    ledger.SourceStatement,
	}

	// A later sell closes part of the statement's opening.
	txs := []*ledger.Transaction{
		tx(ledger.TxSell, "20", "25", "0", 15),
	}

	res, err := ReplayFrom(accountID, assetID, baseline, txs)
	require.NoError(t, err)
	require.NotNil(t, res.Position)
	require.True(t, res.Position.Quantity.Equal(decimal.RequireFromString("30")))
	require.True(t, res.Position.AvgPrice.Equal(decimal.RequireFromString("20")))
	require.Equal(t, ledger.SourceStatement, res.Position.Source)
	require.Equal(t, refDate, res.Position.UpdatedAt)

	require.Len(t, res.Events, 1)
	require.True(t, res.Events[0].RealizedPnL.Equal(decimal.RequireFromString("100")))
}

func TestReplay_RejectsNegativeQuantity(t *testing.T) {
	accountID, assetID := uuid.New(), uuid.New()
	txs := []*ledger.Transaction{
		tx(ledger.TxBuy, "-1", "100", "0", 1),
	}

	_, err := Replay(accountID, assetID, txs)
	require.Error(t, err)
}

func TestReplay_RejectsMissingPrice(t *testing.T) {
	accountID, assetID := uuid.New(), uuid.New()
	txs := []*ledger.Transaction{
		tx(ledger.TxBuy, "1", "0", "0", 1),
	}

	_, err := Replay(accountID, assetID, txs)
	require.Error(t, err)
}
