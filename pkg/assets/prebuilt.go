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
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// pythonStdlibDenyList is skipped when indexing the external
// interpreter's standard library into Python/system/...
var pythonStdlibDenyList = map[string]bool{
	"__pycache__": true, "site-packages": true, "asyncio": true,
	"concurrent": true, "ctypes": true, "curses": true, "dbm": true,
	"distutils": true, "ensurepip": true, "email": true, "html": true,
	"http": true, "idlelib": true, "lib2to3": true, "msilib": true,
	"multiprocessing": true, "pydoc_data": true, "sqlite3": true,
	"test": true, "tkinter": true, "turtledemo": true, "unittest": true,
	"urllib": true, "venv": true, "wsgiref": true, "xml": true, "xmlrpc": true,
}

// PythonLibLocator asks the external interpreter bridge where its
// standard library lives on disk, for Python/system auto-discovery.
type PythonLibLocator interface {
	GetPythonLib(ctx context.Context) (string, error)
}

// PrebuiltCategory describes one client-directory mapping the
// prebuilt loader walks.
type PrebuiltCategory struct {
	Category   string
	ScriptsDir string // may be empty
	DataDir    string // may be empty
}

// LoadPrebuilt walks each category's scripts tree then data tree
// (scripts first, so data overrides scripts on path conflict) and
// indexes every regular file as an Asset with GatherPath empty. If
// "Python/system" is absent from whichever scripts tree feeds the
// python category, the interpreter's standard library location is
// requested and indexed under that prefix, skipping the deny-list.
func LoadPrebuilt(ctx context.Context, categories []PrebuiltCategory, pyLib PythonLibLocator) (*Index, error) {
	idx := NewIndex()
	sawPythonSystem := false

	for _, cat := range categories {
		for _, dir := range []string{cat.ScriptsDir, cat.DataDir} {
			if dir == "" {
				continue
			}
			if err := walkPrebuiltTree(idx, dir, cat.Category); err != nil {
				return nil, err
			}
		}
		if cat.Category == CategoryPython && cat.ScriptsDir != "" {
			if fi, err := os.Stat(filepath.Join(cat.ScriptsDir, "system")); err == nil && fi.IsDir() {
				sawPythonSystem = true
			}
		}
	}

	if !sawPythonSystem && pyLib != nil {
		libDir, err := pyLib.GetPythonLib(ctx)
		if err != nil {
			return nil, fmt.Errorf("assets: locating python stdlib: %w", err)
		}
		if libDir != "" {
			if err := walkPythonStdlib(idx, libDir); err != nil {
				return nil, err
			}
		}
	}

	return idx, nil
}

func walkPrebuiltTree(idx *Index, root, category string) error {
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		clientPath := categoryRootFor(category) + filepathToSlash(rel)

		serverPath, err := ServerPath(clientPath, []string{category})
		if err != nil {
			return err
		}

		return idx.put(serverPath, &Asset{
			SourcePath: p,
			ClientPath: clientPath,
			Categories: []string{category},
		}, "prebuilt-tree")
	})
}

// categoryRootFor returns the client-path prefix a category's tree is
// rooted at, so walked relative paths become full client paths.
func categoryRootFor(category string) string {
	switch category {
	case CategoryData:
		return "dat/"
	case CategorySDL:
		return "SDL/"
	case CategoryPython:
		return "Python/"
	case CategorySFX:
		return "sfx/"
	case CategoryAVI:
		return "avi/"
	default:
		return ""
	}
}

func walkPythonStdlib(idx *Index, libDir string) error {
	entries, err := os.ReadDir(libDir)
	if err != nil {
		return fmt.Errorf("assets: reading python stdlib dir %q: %w", libDir, err)
	}

	for _, top := range entries {
		if pythonStdlibDenyList[top.Name()] {
			continue
		}
		topPath := filepath.Join(libDir, top.Name())

		err := filepath.WalkDir(topPath, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if pythonStdlibDenyList[d.Name()] {
					return filepath.SkipDir
				}
				return nil
			}

			rel, err := filepath.Rel(libDir, p)
			if err != nil {
				return err
			}
			clientPath := "Python/system/" + filepathToSlash(rel)

			serverPath, err := ServerPath(clientPath, []string{CategoryPython})
			if err != nil {
				return err
			}

			return idx.put(serverPath, &Asset{
				SourcePath: p,
				ClientPath: clientPath,
				Categories: []string{CategoryPython},
			}, "python-stdlib-auto-discovery")
		})
		if err != nil {
			return err
		}
	}

	return nil
}
