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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"
)

var knownGatherCategories = map[string]bool{
	CategoryData: true, CategorySDL: true, CategoryPython: true,
	CategorySFX: true, CategoryAVI: true, CategoryExternal: true,
	CategoryExternal64: true, CategoryInternal: true, CategoryInternal64: true,
	CategoryPrereq: true, CategoryPrereq64: true, CategoryMacExternal: true,
	CategoryMacInternal: true, CategoryMacBundleExternal: true,
	CategoryMacBundleInternal: true, CategoryMac: true,
}

// LoadGathers recursively loads every gather package rooted at each
// dir in roots, each identified by a JSON control file named
// controlFileName ("asset_gather.json" by convention).
func LoadGathers(roots []string, controlFileName string) (*Index, error) {
	idx := NewIndex()
	for _, root := range roots {
		if err := loadGatherDir(idx, root, filepath.Join(root, controlFileName)); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func loadGatherDir(idx *Index, dir, controlPath string) error {
	raw, err := os.ReadFile(controlPath)
	if err != nil {
		return fmt.Errorf("assets: reading gather control %q: %w", controlPath, err)
	}

	var control map[string]json.RawMessage
	if err := json.Unmarshal(raw, &control); err != nil {
		return fmt.Errorf("assets: parsing gather control %q: %w", controlPath, err)
	}

	for key, value := range control {
		if key == "folders" {
			continue
		}
		if !knownGatherCategories[key] {
			return fmt.Errorf("assets: gather control %q: unknown category %q", controlPath, key)
		}

		files, err := resolveCategoryFiles(dir, value, filepath.Base(controlPath))
		if err != nil {
			return fmt.Errorf("assets: gather control %q category %q: %w", controlPath, key, err)
		}

		for _, name := range files {
			sourcePath := filepath.Join(dir, name)
			clientPath := categoryRootFor(key) + filepathToSlash(name)

			serverPath, err := ServerPath(clientPath, []string{key})
			if err != nil {
				return err
			}

			if err := idx.put(serverPath, &Asset{
				GatherPath: dir,
				SourcePath: sourcePath,
				ClientPath: clientPath,
				Categories: []string{key},
			}, "gather"); err != nil {
				return err
			}
		}
	}

	if foldersRaw, ok := control["folders"]; ok {
		var folders map[string]string
		if err := json.Unmarshal(foldersRaw, &folders); err != nil {
			return fmt.Errorf("assets: gather control %q: bad folders section: %w", controlPath, err)
		}

		for subdir, subcontrol := range folders {
			if err := rejectTraversal(subdir); err != nil {
				logrus.Warnf("assets: gather control %q: %v; skipping", controlPath, err)
				continue
			}
			if err := rejectTraversal(subcontrol); err != nil {
				logrus.Warnf("assets: gather control %q: %v; skipping", controlPath, err)
				continue
			}

			childDir := filepath.Join(dir, subdir)
			childControl := filepath.Join(childDir, subcontrol)
			if err := loadGatherDir(idx, childDir, childControl); err != nil {
				return err
			}
		}
	}

	return nil
}

// resolveCategoryFiles interprets one category section's JSON value:
// either the literal "*" (every regular file in the package root) or
// a list of relative filenames/glob patterns matched with doublestar.
func resolveCategoryFiles(dir string, value json.RawMessage, controlFileName string) ([]string, error) {
	var star string
	if err := json.Unmarshal(value, &star); err == nil {
		if star != "*" {
			return nil, fmt.Errorf("string value must be the literal \"*\", got %q", star)
		}
		return listRegularFiles(dir, controlFileName)
	}

	var patterns []string
	if err := json.Unmarshal(value, &patterns); err != nil {
		return nil, fmt.Errorf("category value must be \"*\" or a list of filenames: %w", err)
	}

	var out []string
	for _, pattern := range patterns {
		if err := rejectTraversal(pattern); err != nil {
			logrus.Warnf("assets: gather pattern %q: %v; skipping", pattern, err)
			continue
		}

		if !strings.ContainsAny(pattern, "*?[") {
			out = append(out, pattern)
			continue
		}

		matches, err := doublestar.Glob(os.DirFS(dir), pattern)
		if err != nil {
			return nil, fmt.Errorf("bad glob pattern %q: %w", pattern, err)
		}
		out = append(out, matches...)
	}
	return out, nil
}

func listRegularFiles(dir, excludeName string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, e := range entries {
		if e.Name() == excludeName {
			continue
		}
		if e.Type().IsRegular() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// rejectTraversal rejects any path segment containing "..", "../", or
// "..\" per the gather loader's fixed anti-traversal check.
func rejectTraversal(p string) error {
	if strings.Contains(p, "..") {
		return fmt.Errorf("path %q contains a traversal segment", p)
	}
	return nil
}
