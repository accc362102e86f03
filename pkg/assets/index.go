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
	"fmt"
	"strings"

	"github.com/emirpasic/gods/sets/treeset"
	"github.com/sirupsen/logrus"
)

// Asset is a single logical input file discovered by either loader.
type Asset struct {
	GatherPath string // container package path; empty for prebuilt
	SourcePath string // authoritative bytes on disk
	ClientPath string // path as the game client expects it
	Categories []string
}

// Index is the case-insensitive server-path -> Asset map. Original
// case is retained on the stored key string for reporting; lookups
// always go through strings.ToLower.
type Index struct {
	byLowerPath map[string]*entry
}

type entry struct {
	serverPath string // original case
	asset      *Asset
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{byLowerPath: make(map[string]*entry)}
}

// Get looks up an asset by server path, case-insensitively.
func (idx *Index) Get(serverPath string) (*Asset, bool) {
	e, ok := idx.byLowerPath[strings.ToLower(serverPath)]
	if !ok {
		return nil, false
	}
	return e.asset, true
}

// put inserts or overwrites the entry for serverPath, warning on a
// case-insensitive collision with a previously stored key that
// differs only in case.
func (idx *Index) put(serverPath string, asset *Asset, overridePolicy string) error {
	key := strings.ToLower(serverPath)
	existing, exists := idx.byLowerPath[key]

	if exists {
		if existing.asset.ClientPath != asset.ClientPath {
			return fmt.Errorf("assets: server path %q maps to conflicting client paths %q and %q",
				serverPath, existing.asset.ClientPath, asset.ClientPath)
		}
		if existing.serverPath != serverPath {
			logrus.Warnf("assets: case-insensitive duplicate server path %q / %q coalesced (%s)",
				existing.serverPath, serverPath, overridePolicy)
		}
	}

	idx.byLowerPath[key] = &entry{serverPath: serverPath, asset: asset}
	return nil
}

// SortedServerPaths returns every server path in the index, ordered by
// case-insensitive comparison, for deterministic iteration over
// manifest diffing and logging.
func (idx *Index) SortedServerPaths() []string {
	set := treeset.NewWith(func(a, b interface{}) int {
		return strings.Compare(strings.ToLower(a.(string)), strings.ToLower(b.(string)))
	})
	for _, e := range idx.byLowerPath {
		set.Add(e.serverPath)
	}

	out := make([]string, 0, set.Size())
	for _, v := range set.Values() {
		out = append(out, v.(string))
	}
	return out
}

// Put inserts or overwrites the entry for serverPath. It is exported
// for callers assembling an Index outside of LoadPrebuilt/LoadGathers
// (tests, and the resolver's synthetic page/age entries).
func (idx *Index) Put(serverPath string, asset *Asset) error {
	return idx.put(serverPath, asset, "put")
}

// Len reports how many assets are indexed.
func (idx *Index) Len() int { return len(idx.byLowerPath) }

// IndexedAsset pairs a server path with the Asset stored under it.
type IndexedAsset struct {
	ServerPath string
	Asset      *Asset
}

// All returns every (server path, Asset) pair in the index, in
// case-insensitive sorted order.
func (idx *Index) All() []IndexedAsset {
	paths := idx.SortedServerPaths()
	out := make([]IndexedAsset, 0, len(paths))
	for _, sp := range paths {
		a, _ := idx.Get(sp)
		out = append(out, IndexedAsset{ServerPath: sp, Asset: a})
	}
	return out
}

// Merge overlays gather-loaded assets on top of prebuilt ones: a
// gather asset always wins a server-path conflict against a prebuilt
// asset. Two gather assets conflicting with different client paths is
// handled by put's fatal-conflict check.
func Merge(prebuilt, gathered *Index) (*Index, error) {
	merged := NewIndex()

	for _, sp := range prebuilt.SortedServerPaths() {
		asset, _ := prebuilt.Get(sp)
		if err := merged.put(sp, asset, "prebuilt"); err != nil {
			return nil, err
		}
	}

	for _, sp := range gathered.SortedServerPaths() {
		asset, _ := gathered.Get(sp)
		key := strings.ToLower(sp)
		if _, exists := merged.byLowerPath[key]; exists {
			// Gather overrides prebuilt unconditionally; conflicting
			// gather-vs-gather entries were already rejected while
			// building `gathered`.
			delete(merged.byLowerPath, key)
		}
		if err := merged.put(sp, asset, "gather-overrides-prebuilt"); err != nil {
			return nil, err
		}
	}

	return merged, nil
}
