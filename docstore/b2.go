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

// Package docstore holds the concrete ports.DocumentBlobStore adapters:
// B2Store (Backblaze B2) and FSStore (local disk), for uploaded
// statement PDFs.
package docstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kothar/go-backblaze"
	"github.com/rs/zerolog/log"
)

// B2Store stores document bytes in a single Backblaze B2 bucket, each
// document keyed by its storage path.
type B2Store struct {
	bucket *backblaze.Bucket
}

// NewB2Store authorizes against B2 and resolves the bucket once, so
// every later call reuses the same authorized client.
func NewB2Store(applicationID, applicationKey, bucketName string) (*B2Store, error) {
	b2, err := backblaze.NewB2(backblaze.Credentials{
		KeyID:          applicationID,
		ApplicationKey: applicationKey,
	})
	if err != nil {
		return nil, fmt.Errorf("docstore: authorize backblaze: %w", err)
	}

	bucket, err := b2.Bucket(bucketName)
	if err != nil {
		return nil, fmt.Errorf("docstore: lookup bucket %q: %w", bucketName, err)
	}
	if bucket == nil {
		return nil, fmt.Errorf("docstore: bucket %q not found", bucketName)
	}

	return &B2Store{bucket: bucket}, nil
}

// Upload implements ports.DocumentBlobStore.
func (s *B2Store) Upload(ctx context.Context, key string, data []byte) (string, error) {
	metadata := make(map[string]string)
	file, err := s.bucket.UploadFile(key, metadata, bytes.NewReader(data))
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("docstore: b2 upload failed")
		return "", fmt.Errorf("docstore: upload %q: %w", key, err)
	}
	log.Info().Str("key", file.Name).Int64("size", file.ContentLength).Str("fileID", file.ID).Msg("docstore: uploaded document to b2")
	return file.Name, nil
}

// Download implements ports.DocumentBlobStore.
func (s *B2Store) Download(ctx context.Context, path string) ([]byte, error) {
	_, reader, err := s.bucket.DownloadFileByName(path)
	if err != nil {
		return nil, fmt.Errorf("docstore: download %q: %w", path, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("docstore: read %q: %w", path, err)
	}
	return data, nil
}

// Delete implements ports.DocumentBlobStore.
func (s *B2Store) Delete(ctx context.Context, path string) error {
	versions, err := s.bucket.ListFileVersions(path, "", 1)
	if err != nil {
		return fmt.Errorf("docstore: list versions of %q: %w", path, err)
	}
	if len(versions.Files) == 0 {
		return errors.New("docstore: file not found: " + path)
	}
	_, err = s.bucket.DeleteFileVersion(path, versions.Files[0].ID)
	if err != nil {
		return fmt.Errorf("docstore: delete %q: %w", path, err)
	}
	return nil
}
