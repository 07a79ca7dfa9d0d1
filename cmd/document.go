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
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/bigodinhc/investctr/asset"
	"github.com/bigodinhc/investctr/config"
	"github.com/bigodinhc/investctr/docstore"
	"github.com/bigodinhc/investctr/figi"
	"github.com/bigodinhc/investctr/fxstore"
	"github.com/bigodinhc/investctr/ledger"
	"github.com/bigodinhc/investctr/llm"
	"github.com/bigodinhc/investctr/parse"
	"github.com/bigodinhc/investctr/ports"
	"github.com/bigodinhc/investctr/reconcile"
	"github.com/bigodinhc/investctr/replay"
	"github.com/bigodinhc/investctr/store"
)

// documentCmd groups the statement-ingestion operations: upload a PDF,
// then parse and commit it (transactions, cash flows, and reconciled
// positions go in as one logical step, triggering replay for every
// affected (account, asset) pair).
var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Upload and process broker statement documents",
}

var documentUploadCmd = &cobra.Command{
	Use:   "upload <pdf-path>",
	Short: "Upload a statement PDF and queue it for parsing",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := settings()
		s := openStore(ctx, cfg.DBUrl)
		defer s.Close()

		userStr, _ := cmd.Flags().GetString("user")
		accountStr, _ := cmd.Flags().GetString("account")
		docTypeStr, _ := cmd.Flags().GetString("type")

		userID, err := uuid.Parse(userStr)
		if err != nil {
			log.Fatal().Err(err).Str("User", userStr).Msg("invalid --user UUID")
		}

		var accountID *uuid.UUID
		if accountStr != "" {
			id, err := uuid.Parse(accountStr)
			if err != nil {
				log.Fatal().Err(err).Str("Account", accountStr).Msg("invalid --account UUID")
			}
			accountID = &id
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatal().Err(err).Str("Path", args[0]).Msg("failed to read PDF")
		}
		if int64(len(data)) > cfg.MaxPDFBytes {
			log.Fatal().Int64("Bytes", int64(len(data))).Int64("Max", cfg.MaxPDFBytes).Msg("PDF exceeds max_pdf_bytes")
		}

		blobs := openBlobStore(cfg.Documents)
		key := fmt.Sprintf("%s/%s-%s", userID, time.Now().UTC().Format("20060102T150405"), filepath.Base(args[0]))
		path, err := blobs.Upload(ctx, key, data)
		if err != nil {
			log.Fatal().Err(err).Msg("blob upload failed")
		}

		doc := &ledger.Document{
			UserID:        userID,
			AccountID:     accountID,
			DocType:       ledger.DocType(docTypeStr),
			FileName:      filepath.Base(args[0]),
			FilePath:      path,
			FileSize:      int64(len(data)),
			ParsingStatus: ledger.ParsingPending,
		}
		if err := s.CreateDocument(ctx, doc); err != nil {
			log.Fatal().Err(err).Msg("failed to create document record")
		}
		log.Info().Str("DocumentID", doc.ID.String()).Msg("document uploaded and queued")
	},
}

var documentProcessCmd = &cobra.Command{
	Use:   "process",
	Short: "Parse and commit every pending document",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg := settings()
		s := openStore(ctx, cfg.DBUrl)
		defer s.Close()

		blobs := openBlobStore(cfg.Documents)
		fx := fxstore.New(s.Pool)
		replayEngine := replay.NewEngine(s)

		registry := parse.NewRegistry()
		registry.Register(parse.NewBTGBrasilParser())
		registry.Register(parse.NewBTGCaymanParser())
		orchestrator := parse.New(llm.NewAnthropic(cfg.Providers.AnthropicAPIKey, ""), registry)

		figiCache := figi.NewCache()
		enricher := figi.NewEnricher(cfg.Providers.OpenFIGIAPIKey, figiCache)
		reconcileEngine := reconcile.New(s, asset.Classify, enricher.Enrich)

		docs, err := s.PendingDocuments(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("listing pending documents failed")
		}

		c := &committer{
			store:        s,
			blobs:        blobs,
			fx:           fx,
			orchestrator: orchestrator,
			reconcile:    reconcileEngine,
			replay:       replayEngine,
			enrich:       enricher.Enrich,
			baseCurrency: cfg.BaseCurrency,
			fxFallback:   cfg.FXFallbackDays,
		}

		for _, doc := range docs {
			if err := c.process(ctx, doc); err != nil {
				log.Error().Err(err).Str("DocumentID", doc.ID.String()).Msg("document processing failed")
				continue
			}
			log.Info().Str("DocumentID", doc.ID.String()).Msg("document processed")
		}
	},
}

// committer holds the collaborators one document commit needs: the parse
// loop, asset resolution/enrichment, reconciliation, and replay. A commit
// inserts transactions, cash flows, and reconciled positions, then
// triggers per-(account, asset) replay; per-ticker reconciliation errors
// are warnings, not aborts.
type committer struct {
	store        *store.Store
	blobs        ports.DocumentBlobStore
	fx           *fxstore.Store
	orchestrator *parse.Orchestrator
	reconcile    *reconcile.Engine
	replay       *replay.Engine
	enrich       func(ctx context.Context, assets []*ledger.Asset)
	baseCurrency string
	fxFallback   int
}

func (c *committer) process(ctx context.Context, doc *ledger.Document) error {
	if err := c.store.UpdateDocumentStatus(ctx, doc.ID, ledger.ParsingProcessing, "", nil); err != nil {
		return err
	}

	pdf, err := c.blobs.Download(ctx, doc.FilePath)
	if err != nil {
		_ = c.store.UpdateDocumentStatus(ctx, doc.ID, ledger.ParsingFailed, err.Error(), nil)
		return err
	}

	raw, err := c.orchestrator.Run(ctx, doc.DocType, pdf)
	if err != nil {
		_ = c.store.UpdateDocumentStatus(ctx, doc.ID, ledger.ParsingFailed, err.Error(), nil)
		return err
	}

	parser, ok := c.orchestrator.Registry.Get(doc.DocType)
	if !ok {
		err := fmt.Errorf("no parser registered for doc type %s", doc.DocType)
		_ = c.store.UpdateDocumentStatus(ctx, doc.ID, ledger.ParsingFailed, err.Error(), nil)
		return err
	}
	statementParser, ok := parser.(*parse.StatementParser)
	if !ok {
		err := fmt.Errorf("doc type %s is not a statement parser", doc.DocType)
		_ = c.store.UpdateDocumentStatus(ctx, doc.ID, ledger.ParsingFailed, err.Error(), nil)
		return err
	}

	rawJSON, err := json.Marshal(raw)
	if err != nil {
		return err
	}

	if doc.AccountID == nil {
		err := fmt.Errorf("document %s has no associated account to commit against", doc.ID)
		_ = c.store.UpdateDocumentStatus(ctx, doc.ID, ledger.ParsingFailed, err.Error(), rawJSON)
		return err
	}
	accountID := *doc.AccountID

	// Every write the statement produces lands in one database
	// transaction; a failure rolls the whole commit back and leaves the
	// document FAILED so it can be re-processed.
	err = c.store.WithTx(ctx, func(txStore *store.Store) error {
		txc := &committer{
			store:        txStore,
			fx:           c.fx,
			reconcile:    reconcile.New(txStore, c.reconcile.Classifier, c.reconcile.Enricher),
			replay:       replay.NewEngine(txStore),
			enrich:       c.enrich,
			baseCurrency: c.baseCurrency,
			fxFallback:   c.fxFallback,
		}
		return txc.commit(ctx, doc, accountID, statementParser, raw)
	})
	if err != nil {
		_ = c.store.UpdateDocumentStatus(ctx, doc.ID, ledger.ParsingFailed, err.Error(), rawJSON)
		return err
	}

	return c.store.UpdateDocumentStatus(ctx, doc.ID, ledger.ParsingCompleted, "", rawJSON)
}

// commit applies one parsed statement's sections to the ledger: the
// transactions and cash movements, then reconciliation against its stock
// positions, then a replay of every affected (account, asset) pair.
func (c *committer) commit(ctx context.Context, doc *ledger.Document, accountID uuid.UUID, statementParser *parse.StatementParser, raw map[string]any) error {
	affected := make(map[uuid.UUID]bool)

	txs, err := statementParser.ExtractTransactions(raw)
	if err != nil {
		return err
	}
	if err := c.commitTransactions(ctx, accountID, &doc.ID, txs, affected); err != nil {
		return err
	}

	for _, pc := range statementParser.ExtractCashFlows(raw) {
		if pc.Amount == nil {
			continue
		}
		rate, err := c.exchangeRate(ctx, pc.Currency, pc.Date)
		if err != nil {
			log.Warn().Err(err).Str("Currency", pc.Currency).Msg("exchange rate lookup failed, defaulting to 1")
			rate = decimal.NewFromInt(1)
		}
		cf := &ledger.CashFlow{
			AccountID:    accountID,
			Type:         pc.Type,
			Amount:       *pc.Amount,
			Currency:     pc.Currency,
			ExchangeRate: rate,
			ExecutedAt:   pc.Date,
			Notes:        pc.Notes,
		}
		if err := c.store.CreateCashFlow(ctx, cf); err != nil {
			return err
		}
	}

	periodEnd := time.Now().UTC()
	if period, ok := raw["period"].(map[string]any); ok {
		if endStr, ok := period["end_date"].(string); ok {
			if t, err := time.Parse("2006-01-02", endStr); err == nil {
				periodEnd = t
			}
		}
	}

	res, err := c.reconcile.Reconcile(ctx, accountID, statementParser.ExtractStockPositions(raw), periodEnd, doc.ID)
	if err != nil {
		return err
	}
	for _, w := range res.Errors {
		log.Warn().Err(w.Err).Str("Ticker", w.Ticker).Msg("reconciliation warning")
	}
	for _, assetID := range res.Created {
		affected[assetID] = true
	}
	for _, assetID := range res.Updated {
		affected[assetID] = true
	}
	for _, assetID := range res.Closed {
		affected[assetID] = true
	}

	for assetID := range affected {
		if err := c.replay.ReplayAfterChange(ctx, accountID, assetID); err != nil {
			log.Warn().Err(err).Str("AssetID", assetID.String()).Msg("replay after commit failed")
		}
	}
	return nil
}

// commitTransactions persists every parsed transaction against accountID,
// resolving (and creating, if new) the asset each ticker names, and marks
// replay-relevant asset ids in affected.
func (c *committer) commitTransactions(ctx context.Context, accountID uuid.UUID, docID *uuid.UUID, txs []parse.ParsedTransaction, affected map[uuid.UUID]bool) error {
	for _, pt := range txs {
		a, err := c.resolveAsset(ctx, pt.Ticker)
		if err != nil {
			log.Warn().Err(err).Str("Ticker", pt.Ticker).Msg("skipping transaction for unresolvable ticker")
			continue
		}

		rate, err := c.exchangeRate(ctx, pt.Currency, pt.Date)
		if err != nil {
			log.Warn().Err(err).Str("Ticker", pt.Ticker).Msg("exchange rate lookup failed, defaulting to 1")
			rate = decimal.NewFromInt(1)
		}

		t := &ledger.Transaction{
			AccountID:    accountID,
			AssetID:      a.ID,
			DocumentID:   docID,
			Type:         pt.Type,
			Currency:     pt.Currency,
			ExchangeRate: rate,
			ExecutedAt:   pt.Date,
			Notes:        pt.Notes,
		}
		switch {
		case pt.Quantity != nil:
			// Position-affecting rows (buy/sell/transfer/split/...) report
			// an actual quantity and unit price.
			t.Quantity = *pt.Quantity
			if pt.Price != nil {
				t.Price = *pt.Price
			}
		case pt.Amount != nil:
			// Cash-only rows (dividend, fee, tax, interest, ...) report a
			// lump amount; store it as a unit price against quantity 1 so
			// Transaction.TotalValue() still recovers it.
			t.Quantity = decimal.NewFromInt(1)
			t.Price = *pt.Amount
		}
		if pt.Fees != nil {
			t.Fees = *pt.Fees
		}

		if err := c.store.CreateTransaction(ctx, t); err != nil {
			return err
		}
		if pt.Type.ReplayRelevant() {
			affected[a.ID] = true
		}
	}
	return nil
}

func (c *committer) exchangeRate(ctx context.Context, currency string, date time.Time) (decimal.Decimal, error) {
	if currency == "" || currency == c.baseCurrency {
		return decimal.NewFromInt(1), nil
	}
	return c.fx.Lookup(ctx, currency, c.baseCurrency, date, c.fxFallback)
}

// resolveAsset finds or creates the asset for ticker, applying the same
// classify-then-enrich policy reconcile.Engine uses for stock_positions
// rows, so a ticker introduced only via the transactions section gets
// identical treatment.
func (c *committer) resolveAsset(ctx context.Context, ticker string) (*ledger.Asset, error) {
	if a, err := c.store.AssetByTicker(ctx, ticker); err == nil && a != nil {
		return a, nil
	}
	class := asset.Classify(ticker)
	a := &ledger.Asset{
		Ticker:   class.Ticker,
		Name:     ticker,
		Type:     class.Type,
		Currency: class.Currency,
		IsActive: true,
	}
	if c.enrich != nil {
		c.enrich(ctx, []*ledger.Asset{a})
	}
	if err := c.store.UpsertAsset(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// openBlobStore wires the configured ports.DocumentBlobStore backend: B2
// when bucket credentials are set, otherwise local disk.
func openBlobStore(cfg config.DocumentStoreSettings) ports.DocumentBlobStore {
	if cfg.B2Bucket == "" {
		return docstore.NewFSStore(cfg.LocalDir)
	}
	b2, err := docstore.NewB2Store(cfg.B2AppID, cfg.B2AppKey, cfg.B2Bucket)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open backblaze document store")
	}
	return b2
}

func init() {
	rootCmd.AddCommand(documentCmd)
	documentCmd.AddCommand(documentUploadCmd, documentProcessCmd)

	documentUploadCmd.Flags().String("user", "", "owning user UUID (required)")
	documentUploadCmd.Flags().String("account", "", "account UUID this document reconciles against")
	documentUploadCmd.Flags().String("type", string(ledger.DocStatementBR), "document type (doc_type)")
}
