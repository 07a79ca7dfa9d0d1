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
	"io"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/bigodinhc/investctr/apperr"
)

// csvTransactionRow is one line of a manual transaction-import CSV. The
// type column accepts the same broker vocabulary the LLM extraction
// normalizes, so a statement exported to CSV by hand round-trips through
// the identical mapping.
type csvTransactionRow struct {
	Date     string `csv:"date"`
	Type     string `csv:"type"`
	Ticker   string `csv:"ticker"`
	Quantity string `csv:"quantity"`
	Price    string `csv:"price"`
	Fees     string `csv:"fees"`
	Currency string `csv:"currency"`
	Notes    string `csv:"notes"`
}

// ReadTransactionsCSV decodes a transaction CSV into the same canonical
// ParsedTransaction shape ExtractTransactions produces. Rows whose type
// is not position- or cash-relevant vocabulary, or whose date does not
// parse, are skipped; a malformed file fails as a whole.
func ReadTransactionsCSV(r io.Reader) ([]ParsedTransaction, []string, error) {
	var rows []*csvTransactionRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, nil, apperr.Validation("malformed transaction CSV: %v", err)
	}

	out := make([]ParsedTransaction, 0, len(rows))
	var skipped []string
	for _, row := range rows {
		txType, ok := NormalizeType(row.Type)
		if !ok {
			skipped = append(skipped, row.Type)
			continue
		}
		date, err := time.Parse("2006-01-02", strings.TrimSpace(row.Date))
		if err != nil {
			skipped = append(skipped, row.Date)
			continue
		}
		pt := ParsedTransaction{
			Type:     txType,
			Date:     date,
			Ticker:   strings.ToUpper(strings.TrimSpace(row.Ticker)),
			Quantity: safeDecimal(row.Quantity),
			Price:    safeDecimal(row.Price),
			Fees:     safeDecimal(row.Fees),
			Currency: strings.ToUpper(strings.TrimSpace(row.Currency)),
			Notes:    row.Notes,
		}
		out = append(out, pt)
	}
	return out, skipped, nil
}
