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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFSStoreRoundTrip(t *testing.T) {
	store := NewFSStore(t.TempDir())
	ctx := context.Background()

	path, err := store.Upload(ctx, "documents/2024/statement.pdf", []byte("pdf-bytes"))
	require.NoError(t, err)

	data, err := store.Download(ctx, path)
	require.NoError(t, err)
	require.Equal(t, []byte("pdf-bytes"), data)

	require.NoError(t, store.Delete(ctx, path))

	_, err = store.Download(ctx, path)
	require.Error(t, err)
}
