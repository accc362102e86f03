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

package resolve

import (
	"fmt"
	"os"
	"path"

	"github.com/sirupsen/logrus"

	"github.com/urumanifest/manifestgen/pkg/assets"
	"github.com/urumanifest/manifestgen/pkg/manifestdb"
	"github.com/urumanifest/manifestgen/pkg/sdl"
)

// resolveScriptDependencies implements §4.5's third pass: the SDL
// descriptor closure rooted at the client-core descriptors plus every
// PythonFileMod stem discovered in the age pass. SDL source files MUST
// NOT be encrypted; the parser simply fails if they are.
func (r *Resolver) resolveScriptDependencies(idx *assets.Index, manager *sdl.Manager, staged *Staged) error {
	sourceFileOf := make(map[string]string)

	for _, ia := range idx.All() {
		if path.Ext(ia.Asset.ClientPath) != ".sdl" {
			continue
		}

		f, err := os.Open(ia.Asset.SourcePath)
		if err != nil {
			return fmt.Errorf("opening sdl file %q: %w", ia.Asset.SourcePath, err)
		}
		descs, err := manager.LoadReaderFrom(ia.ServerPath, f)
		closeErr := f.Close()
		if err != nil {
			return fmt.Errorf("parsing sdl file %q: %w", ia.Asset.SourcePath, err)
		}
		if closeErr != nil {
			return closeErr
		}

		for _, d := range descs {
			sourceFileOf[d.Name] = ia.ServerPath
		}
	}

	closure, err := manager.ResolveClosure(clientCoreRoots)
	if err != nil {
		return fmt.Errorf("resolving client-core sdl closure: %w", err)
	}

	pythonStems := make([]string, 0, len(staged.PythonStems))
	for stem := range staged.PythonStems {
		pythonStems = append(pythonStems, stem)
	}
	for _, stem := range pythonStems {
		stemClosure, err := manager.ResolveClosure([]string{stem})
		if err != nil {
			logrus.Warnf("resolve: script pass: no sdl descriptor for python stem %q: %v", stem, err)
			continue
		}
		for name := range stemClosure {
			closure[name] = struct{}{}
		}
	}

	sdlServerPaths := make(map[string]bool)
	for name := range closure {
		sourceFile, ok := sourceFileOf[name]
		if !ok {
			continue
		}
		sdlServerPaths[sourceFile] = true
	}

	for serverPath := range sdlServerPaths {
		asset, ok := idx.Get(serverPath)
		if !ok {
			continue
		}
		staged.Stage(serverPath, asset.ClientPath, 0)
	}

	for _, ia := range idx.All() {
		for _, category := range ia.Asset.Categories {
			if category != assets.CategoryPython {
				continue
			}
			if path.Ext(ia.Asset.ClientPath) != ".py" {
				continue
			}
			staged.Stage(ia.ServerPath, ia.Asset.ClientPath, manifestdb.Consumable)
		}
	}

	return nil
}
