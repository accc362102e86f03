/*
 *     Copyright 2024 The CNAI Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package objstore

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStorePutGetExistsDelete(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	exists, err := store.Exists(ctx, "dat/Garden.age.gz")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, store.Put(ctx, "dat/Garden.age.gz", strings.NewReader("blob contents")))

	exists, err = store.Exists(ctx, "dat/Garden.age.gz")
	require.NoError(t, err)
	require.True(t, exists)

	size, err := store.Size(ctx, "dat/Garden.age.gz")
	require.NoError(t, err)
	require.EqualValues(t, len("blob contents"), size)

	r, err := store.Get(ctx, "dat/Garden.age.gz")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "blob contents", string(data))

	require.NoError(t, store.Delete(ctx, "dat/Garden.age.gz"))
	exists, err = store.Exists(ctx, "dat/Garden.age.gz")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, store.Delete(ctx, "dat/never-existed.gz"))
}

func TestOpenDispatchesOnScheme(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, dir)
	require.NoError(t, err)
	_, ok := s.(*LocalStore)
	require.True(t, ok)

	s, err = Open(ctx, "file://"+dir)
	require.NoError(t, err)
	_, ok = s.(*LocalStore)
	require.True(t, ok)
}
