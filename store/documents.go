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
package store

import (
	"context"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"

	"github.com/bigodinhc/investctr/ledger"
)

// CreateDocument inserts a new document in PENDING status.
func (s *Store) CreateDocument(ctx context.Context, d *ledger.Document) error {
	return s.DB.QueryRow(ctx, `
		INSERT INTO documents
			(user_id, account_id, doc_type, file_name, file_path, file_size, parsing_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		d.UserID, d.AccountID, d.DocType, d.FileName, d.FilePath, d.FileSize,
		d.ParsingStatus,
	).Scan(&d.ID)
}

// DocumentByID fetches a single document.
func (s *Store) DocumentByID(ctx context.Context, id uuid.UUID) (*ledger.Document, error) {
	var d ledger.Document
	rows, err := s.DB.Query(ctx, `
		SELECT id, user_id, account_id, doc_type, file_name, file_path,
			file_size, parsing_status, parsing_error, parsed_at, raw_extracted_data
		FROM documents WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if err := pgxscan.ScanOne(&d, rows); err != nil {
		return nil, err
	}
	return &d, nil
}

// UpdateDocumentStatus transitions a document's parsing status, optionally
// recording an error message or the raw extracted payload.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id uuid.UUID, status ledger.ParsingStatus, parsingErr string, raw []byte) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE documents SET
			parsing_status = $2,
			parsing_error = $3,
			raw_extracted_data = $4,
			parsed_at = CASE WHEN $2 IN ('COMPLETED', 'FAILED') THEN now() ELSE parsed_at END
		WHERE id = $1`, id, status, parsingErr, raw)
	return err
}

// PendingDocuments lists every document still awaiting extraction, the
// worklist for the parsing orchestrator's retry loop.
func (s *Store) PendingDocuments(ctx context.Context) ([]*ledger.Document, error) {
	var docs []*ledger.Document
	err := pgxscan.Select(ctx, s.DB, &docs, `
		SELECT id, user_id, account_id, doc_type, file_name, file_path,
			file_size, parsing_status, parsing_error, parsed_at, raw_extracted_data
		FROM documents WHERE parsing_status IN ('PENDING', 'PROCESSING') ORDER BY id`)
	return docs, err
}
