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

// Package asset classifies an unknown ticker so quote ingestion can
// auto-create it without waiting on a broker statement to say what it is.
package asset

import (
	"strings"

	"github.com/bigodinhc/investctr/ledger"
)

// Classification is the heuristic's verdict for a ticker.
type Classification struct {
	Type        ledger.AssetType
	Currency    string
	IsBrazilian bool
	// QuoteTicker is the ticker as a B3-preferring quote provider expects
	// it (".SA" appended); Ticker is the canonical, suffix-stripped form.
	QuoteTicker string
	Ticker      string
}

// Classify applies the B3-vs-foreign ticker heuristic: a 3-6 character
// ticker with a letter prefix of at least 3 letters and a 1-2 digit
// numeric suffix is treated as Brazilian (B3); everything else is
// foreign.
func Classify(rawTicker string) Classification {
	ticker := strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(rawTicker)), ".SA")

	prefix, suffix, ok := splitLetterDigit(ticker)
	if !ok {
		return Classification{
			Type:        ledger.AssetStock,
			Currency:    "USD",
			IsBrazilian: false,
			QuoteTicker: ticker,
			Ticker:      ticker,
		}
	}

	c := Classification{
		IsBrazilian: true,
		Currency:    "BRL",
		Ticker:      ticker,
		QuoteTicker: ticker + ".SA",
	}

	switch {
	case strings.Contains(ticker, "AGRO") || strings.HasPrefix(ticker, "FIAG") || fiagroPrefixes[prefix]:
		c.Type = ledger.AssetFIAgro
	case suffix == "11" && len(prefix) == 4:
		c.Type = ledger.AssetFII
	case suffix == "34" || suffix == "35":
		c.Type = ledger.AssetBDR
	default:
		c.Type = ledger.AssetStock
	}

	return c
}

// fiagroPrefixes lists FIAGRO funds whose tickers don't carry an "AGRO"
// or "FIAG" marker; they share the 4-letter-prefix/11-suffix shape with
// FIIs, so without this table they'd classify as FII.
var fiagroPrefixes = map[string]bool{
	"RZAG": true,
	"SNAG": true,
	"VGIA": true,
	"KNCA": true,
	"RURA": true,
	"CPTR": true,
	"EGAF": true,
	"FGAA": true,
	"XPCA": true,
}

// splitLetterDigit reports whether ticker matches the B3 shape (3-6
// chars, a letter prefix of at least 3 letters, a 1-2 digit suffix) and,
// if so, returns the two parts.
func splitLetterDigit(ticker string) (prefix, suffix string, ok bool) {
	if len(ticker) < 4 || len(ticker) > 6 {
		return "", "", false
	}

	i := 0
	for i < len(ticker) && isLetter(ticker[i]) {
		i++
	}
	if i < 3 {
		return "", "", false
	}

	digits := ticker[i:]
	if len(digits) < 1 || len(digits) > 2 {
		return "", "", false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return "", "", false
		}
	}

	return ticker[:i], digits, true
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
