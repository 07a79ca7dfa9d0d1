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
package docstore

import (
	"context"
	"fmt"
	"os"
	"path"
)

// FSStore stores document bytes on local disk under BasePath, for local
// development and tests.
type FSStore struct {
	BasePath string
}

// NewFSStore returns an FSStore rooted at basePath.
func NewFSStore(basePath string) *FSStore {
	return &FSStore{BasePath: basePath}
}

// Upload implements ports.DocumentBlobStore.
func (s *FSStore) Upload(ctx context.Context, key string, data []byte) (string, error) {
	filePath := path.Join(s.BasePath, key)
	if err := os.MkdirAll(path.Dir(filePath), 0o755); err != nil {
		return "", fmt.Errorf("docstore: mkdir for %q: %w", key, err)
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return "", fmt.Errorf("docstore: write %q: %w", key, err)
	}
	return filePath, nil
}

// Download implements ports.DocumentBlobStore.
func (s *FSStore) Download(ctx context.Context, filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("docstore: read %q: %w", filePath, err)
	}
	return data, nil
}

// Delete implements ports.DocumentBlobStore.
func (s *FSStore) Delete(ctx context.Context, filePath string) error {
	if err := os.Remove(filePath); err != nil {
		return fmt.Errorf("docstore: remove %q: %w", filePath, err)
	}
	return nil
}
