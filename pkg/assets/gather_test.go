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

package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadGathersStarCategory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "asset_gather.json"), `{"data": "*"}`)
	writeFile(t, filepath.Join(root, "page1.prp"), "x")
	writeFile(t, filepath.Join(root, "page2.prp"), "y")

	idx, err := LoadGathers([]string{root}, "asset_gather.json")
	require.NoError(t, err)
	require.Equal(t, 2, idx.Len())

	_, ok := idx.Get("data/prp/page1.prp")
	require.True(t, ok)
}

func TestLoadGathersExplicitList(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "asset_gather.json"), `{"sdl": ["foo.sdl", "bar.sdl"]}`)
	writeFile(t, filepath.Join(root, "foo.sdl"), "x")
	writeFile(t, filepath.Join(root, "bar.sdl"), "y")
	writeFile(t, filepath.Join(root, "baz.sdl"), "z") // not listed, must not be indexed

	idx, err := LoadGathers([]string{root}, "asset_gather.json")
	require.NoError(t, err)
	require.Equal(t, 2, idx.Len())

	_, ok := idx.Get("scripts/sdl/baz.sdl")
	require.False(t, ok)
}

func TestLoadGathersFolders(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "asset_gather.json"), `{"folders": {"sub": "sub_gather.json"}}`)
	writeFile(t, filepath.Join(root, "sub", "sub_gather.json"), `{"data": "*"}`)
	writeFile(t, filepath.Join(root, "sub", "nested.prp"), "x")

	idx, err := LoadGathers([]string{root}, "asset_gather.json")
	require.NoError(t, err)
	require.Equal(t, 1, idx.Len())
}

func TestLoadGathersRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "asset_gather.json"), `{"folders": {"../escape": "x.json"}}`)

	idx, err := LoadGathers([]string{root}, "asset_gather.json")
	require.NoError(t, err)
	require.Equal(t, 0, idx.Len())
}

func TestLoadGathersControlFileNotIndexed(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "asset_gather.json"), `{"data": "*"}`)
	writeFile(t, filepath.Join(root, "thing.prp"), "x")

	idx, err := LoadGathers([]string{root}, "asset_gather.json")
	require.NoError(t, err)
	require.Equal(t, 1, idx.Len())
}

func TestMergeGatherOverridesPrebuilt(t *testing.T) {
	prebuilt := NewIndex()
	require.NoError(t, prebuilt.put("data/prp/same.prp", &Asset{ClientPath: "dat/same.prp"}, "prebuilt"))

	gathered := NewIndex()
	require.NoError(t, gathered.put("data/prp/same.prp", &Asset{ClientPath: "dat/same.prp", GatherPath: "/pkg1"}, "gather"))

	merged, err := Merge(prebuilt, gathered)
	require.NoError(t, err)

	asset, ok := merged.Get("data/prp/same.prp")
	require.True(t, ok)
	require.Equal(t, "/pkg1", asset.GatherPath)
}
