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

package pypack

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/stretchr/testify/require"

	"github.com/urumanifest/manifestgen/pkg/assets"
	"github.com/urumanifest/manifestgen/pkg/cipher"
	"github.com/urumanifest/manifestgen/pkg/manifestdb"
	"github.com/urumanifest/manifestgen/pkg/objstore"
	"github.com/urumanifest/manifestgen/pkg/pybridge"
	"github.com/urumanifest/manifestgen/pkg/resolve"
)

func newEmptyStaged() *resolve.Staged {
	return &resolve.Staged{
		Entries:     make(map[string]*manifestdb.Entry),
		Manifests:   make(map[string]*treeset.Set),
		PythonStems: make(map[string]bool),
	}
}

type fakeCompiler struct {
	mu    sync.Mutex
	calls map[string]bool
}

func (f *fakeCompiler) Compyle(ctx context.Context, pyFilePath, pyGluePath, moduleName string, forceAppendGlue bool) (*pybridge.CompyleResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]bool)
	}
	f.calls[moduleName] = true
	return &pybridge.CompyleResult{
		ReturnCode:   pybridge.ResultSuccess,
		Code:         []byte("code-for-" + moduleName),
		PFM:          pybridge.PFMNotAModifier,
		GlueAppended: forceAppendGlue,
	}, nil
}

func writePySource(t *testing.T, root, rel string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("# source"), 0o644))
	return p
}

func TestBuildCompilesAndPacksSources(t *testing.T) {
	root := t.TempDir()
	pythonRoot := filepath.Join(root, "Python")

	idx := assets.NewIndex()
	for _, rel := range []string{"xKI.py", "xAgeSDLBoolHack.py"} {
		src := writePySource(t, pythonRoot, rel)
		clientPath := "Python/" + rel
		sp, err := assets.ServerPath(clientPath, []string{assets.CategoryPython})
		require.NoError(t, err)
		require.NoError(t, idx.Put(sp, &assets.Asset{SourcePath: src, ClientPath: clientPath, Categories: []string{assets.CategoryPython}}))
	}

	staged := newEmptyStaged()
	compiler := &fakeCompiler{}
	cached := manifestdb.NewDatabase()

	opts := Options{PythonRoot: pythonRoot, OutputDir: t.TempDir(), Key: cipher.Key{9, 9, 9, 9}, Concurrency: 2}
	err := Build(context.Background(), idx, staged, cached, compiler, nil, opts)
	require.NoError(t, err)

	pakServerPath, err := assets.ServerPath(pakClientPath, []string{assets.CategoryPython})
	require.NoError(t, err)

	asset, ok := idx.Get(pakServerPath)
	require.True(t, ok)
	require.FileExists(t, asset.SourcePath)

	entry, ok := staged.Entries[pakServerPath]
	require.True(t, ok)
	require.True(t, entry.Flags&manifestdb.DontEncrypt != 0)

	require.Len(t, compiler.calls, 2)
}

func TestBuildSkipsWhenPrebuiltPakPresent(t *testing.T) {
	root := t.TempDir()
	idx := assets.NewIndex()

	pakPath := filepath.Join(root, "Python.pak")
	require.NoError(t, os.WriteFile(pakPath, []byte("already-built"), 0o644))
	sp, err := assets.ServerPath("Python/Python.pak", []string{assets.CategoryPython})
	require.NoError(t, err)
	require.NoError(t, idx.Put(sp, &assets.Asset{SourcePath: pakPath, ClientPath: "Python/Python.pak", Categories: []string{assets.CategoryPython}}))

	staged := newEmptyStaged()
	compiler := &fakeCompiler{}

	opts := Options{OutputDir: t.TempDir(), Key: cipher.Key{1, 1, 1, 1}}
	err = Build(context.Background(), idx, staged, manifestdb.NewDatabase(), compiler, nil, opts)
	require.NoError(t, err)

	require.Empty(t, compiler.calls)
	entry, ok := staged.Entries[sp]
	require.True(t, ok)
	require.True(t, entry.Flags&manifestdb.DontEncrypt != 0)
}

func TestBuildReusesCachedPak(t *testing.T) {
	listsDir := t.TempDir()
	store, err := objstore.NewLocalStore(listsDir)
	require.NoError(t, err)

	pakServerPath, err := assets.ServerPath("Python/Python.pak", []string{assets.CategoryPython})
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), pakServerPath, bytes.NewReader([]byte("cached-pak-bytes"))))

	idx := assets.NewIndex()
	staged := newEmptyStaged()
	cached := manifestdb.NewDatabase()
	cached.Lists[manifestdb.ListKey{Directory: "scripts/python_pak", Extension: "pak"}] = []*manifestdb.ListEntry{
		{FileName: "Python.pak", FileSize: 16},
	}

	opts := Options{OutputDir: t.TempDir(), Reuse: true}
	err = Build(context.Background(), idx, staged, cached, &fakeCompiler{}, store, opts)
	require.NoError(t, err)

	asset, ok := idx.Get(pakServerPath)
	require.True(t, ok)
	require.FileExists(t, asset.SourcePath)

	entry, ok := staged.Entries[pakServerPath]
	require.True(t, ok)
	require.True(t, entry.Flags&manifestdb.DontEncrypt != 0)
}
