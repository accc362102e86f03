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
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/urumanifest/manifestgen/pkg/assets"
	"github.com/urumanifest/manifestgen/pkg/cipher"
	"github.com/urumanifest/manifestgen/pkg/manifestdb"
	"github.com/urumanifest/manifestgen/pkg/objstore"
	"github.com/urumanifest/manifestgen/pkg/pybridge"
	"github.com/urumanifest/manifestgen/pkg/resolve"
)

// glueClientPath is the single fixed glue source appended to every
// PythonFileMod the compiler confirms; someday it may be rewritten in
// C++, so its absence is logged but not fatal.
const glueClientPath = "Python/plasma/glue.py"

// pakClientPath is the archive's fixed client path.
const pakClientPath = "Python/Python.pak"

// Compiler is the subset of pybridge.Bridge that Build depends on,
// narrowed for testability.
type Compiler interface {
	Compyle(ctx context.Context, pyFilePath, pyGluePath, moduleName string, forceAppendGlue bool) (*pybridge.CompyleResult, error)
}

// Options configures one Build invocation.
type Options struct {
	// PythonRoot is the filesystem directory the gathered/prebuilt
	// "Python" client tree is rooted at, for ModuleName's ancestor walk.
	PythonRoot string
	// OutputDir is a scratch directory Build may write Python.pak (or a
	// reused copy of it) into.
	OutputDir string
	// Key frames the archive; BTEA always requires an explicit key.
	Key cipher.Key
	// Concurrency bounds the compiler sub-process worker pool.
	Concurrency int
	// Reuse requests the cached-secure-list short-circuit instead of
	// recompiling everything.
	Reuse bool
}

// Build implements §4.8: if a prebuilt Python.pak is already present
// it is staged as-is; otherwise, unless Reuse recycles a previously
// published one, every python-category .py source is submitted to
// compiler and the results packed into a fresh archive. idx and staged
// are mutated in place with the resulting synthetic asset/entry.
func Build(ctx context.Context, idx *assets.Index, staged *resolve.Staged, cached *manifestdb.Database, compiler Compiler, listStore objstore.Store, opts Options) error {
	if prebuilt, ok := findPrebuiltPak(idx); ok {
		logrus.Warnf("pypack: using prebuilt %q -- this is not recommended", prebuilt.ClientPath)
		stagePak(staged, prebuilt.ClientPath)
		return nil
	}

	if opts.Reuse {
		return reuse(ctx, idx, staged, cached, listStore, opts)
	}

	sources := pythonSources(idx)
	if len(sources) == 0 {
		logrus.Warn("pypack: no python sources to compyle")
		return nil
	}

	modules, err := compyleAll(ctx, idx, staged, sources, compiler, opts)
	if err != nil {
		return err
	}
	if len(modules) == 0 {
		logrus.Error("pypack: no marshalled python code available for packaging")
		return nil
	}

	pakSourcePath := filepath.Join(opts.OutputDir, filepath.FromSlash(pakClientPath))
	if err := writeArchive(pakSourcePath, modules, opts.Key); err != nil {
		return err
	}

	pakServerPath, err := assets.ServerPath(pakClientPath, []string{assets.CategoryPython})
	if err != nil {
		return err
	}
	if err := idx.Put(pakServerPath, &assets.Asset{
		SourcePath: pakSourcePath,
		ClientPath: pakClientPath,
		Categories: []string{assets.CategoryPython},
	}); err != nil {
		return err
	}
	staged.Stage(pakServerPath, pakClientPath, manifestdb.DontEncrypt)

	return nil
}

// findPrebuiltPak reports the first .pak asset already present in the
// python category, if any.
func findPrebuiltPak(idx *assets.Index) (*assets.Asset, bool) {
	for _, ia := range idx.All() {
		if !hasCategory(ia.Asset.Categories, assets.CategoryPython) {
			continue
		}
		if strings.ToLower(path.Ext(ia.Asset.ClientPath)) == ".pak" {
			return ia.Asset, true
		}
	}
	return nil, false
}

func hasCategory(categories []string, want string) bool {
	for _, c := range categories {
		if c == want {
			return true
		}
	}
	return false
}

// stagePak records a .pak's server path (derived from its client path)
// as a staged, already-encrypted entry.
func stagePak(staged *resolve.Staged, clientPath string) {
	serverPath, err := assets.ServerPath(clientPath, []string{assets.CategoryPython})
	if err != nil {
		logrus.Errorf("pypack: cannot stage prebuilt pak %q: %v", clientPath, err)
		return
	}
	staged.Stage(serverPath, clientPath, manifestdb.DontEncrypt)
}

// pythonSource is one .py asset awaiting compilation.
type pythonSource struct {
	serverPath string
	clientPath string
	sourcePath string
}

func pythonSources(idx *assets.Index) []pythonSource {
	var out []pythonSource
	for _, ia := range idx.All() {
		if !hasCategory(ia.Asset.Categories, assets.CategoryPython) {
			continue
		}
		if strings.ToLower(path.Ext(ia.Asset.ClientPath)) != ".py" {
			continue
		}
		out = append(out, pythonSource{serverPath: ia.ServerPath, clientPath: ia.Asset.ClientPath, sourcePath: ia.Asset.SourcePath})
	}
	return out
}

// gluePath locates the fixed Plasma glue source, if present.
func gluePath(idx *assets.Index) string {
	serverPath, err := assets.ServerPath(glueClientPath, []string{assets.CategoryPython})
	if err != nil {
		return ""
	}
	asset, ok := idx.Get(serverPath)
	if !ok {
		logrus.Error("pypack: plasma python glue not available -- this might be bad news")
		return ""
	}
	return asset.SourcePath
}

// compyleAll submits every source to compiler, bounded by
// opts.Concurrency, returning the modules that compiled successfully.
func compyleAll(ctx context.Context, idx *assets.Index, staged *resolve.Staged, sources []pythonSource, compiler Compiler, opts Options) ([]moduleCode, error) {
	glue := gluePath(idx)

	moduleNames := make([]string, len(sources))
	counts := make(map[string]int, len(sources))
	for i, src := range sources {
		name := ModuleName(src.sourcePath, opts.PythonRoot)
		moduleNames[i] = name
		counts[name]++
	}

	var mu sync.Mutex
	var modules []moduleCode

	g, gctx := errgroup.WithContext(ctx)
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	g.SetLimit(concurrency)

	for i, src := range sources {
		i, src := i, src
		name := moduleNames[i]

		if name == "" {
			logrus.Errorf("pypack: skipping %q due to empty module name", src.clientPath)
			continue
		}
		if counts[name] != 1 {
			logrus.Errorf("pypack: skipping %q due to conflicting module name %q", src.clientPath, name)
			continue
		}

		entry := staged.Stage(src.serverPath, src.clientPath, manifestdb.Consumable)
		isPFM := entry.Flags&manifestdb.PythonFileMod != 0

		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			result, err := compiler.Compyle(gctx, src.sourcePath, glue, name, isPFM)
			if err != nil {
				return fmt.Errorf("pypack: compyling %q: %w", src.clientPath, err)
			}
			logPFMVerdict(src.clientPath, name, isPFM, result)

			switch result.ReturnCode {
			case pybridge.ResultSuccess:
				mu.Lock()
				modules = append(modules, moduleCode{name: name, code: result.Code})
				mu.Unlock()
			case pybridge.ResultFileNotFound:
				logrus.Errorf("pypack: compiler could not load %q", src.sourcePath)
			default:
				logrus.Errorf("pypack: compiler traceback in %q: %s", src.sourcePath, result.Traceback)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return modules, nil
}

func logPFMVerdict(clientPath, moduleName string, wasPFM bool, result *pybridge.CompyleResult) {
	if result.ReturnCode != pybridge.ResultSuccess {
		return
	}
	switch {
	case wasPFM && result.PFM == pybridge.PFMIndeed:
		logrus.Debugf("pypack: %s is a PythonFileMod", moduleName)
	case !wasPFM && result.PFM == pybridge.PFMIndeed:
		logrus.Debugf("pypack: %s could be a PythonFileMod", moduleName)
	case !wasPFM && result.PFM != pybridge.PFMIndeed:
		logrus.Debugf("pypack: %s is a plain script file", moduleName)
	case wasPFM && result.PFM != pybridge.PFMIndeed:
		logrus.Errorf("pypack: forcing %s as a PythonFileMod despite verdict %q", moduleName, result.PFM)
	}

	switch {
	case wasPFM && result.PFM == pybridge.PFMNotAModifier:
		logrus.Errorf("pypack: python class %q does not derive from a Plasma type", strings.TrimSuffix(path.Base(clientPath), ".py"))
	case wasPFM && result.PFM == pybridge.PFMNoClass:
		logrus.Errorf("pypack: python class %q was not found", strings.TrimSuffix(path.Base(clientPath), ".py"))
	case wasPFM && result.PFM == pybridge.PFMASTCrashed:
		logrus.Debugf("pypack: ast parse crashed in %q -- may be fine", clientPath)
	}
}

// reuse implements the caller-requested short-circuit: adopt whatever
// Python/*.pak the cached secure list published last run.
func reuse(ctx context.Context, idx *assets.Index, staged *resolve.Staged, cached *manifestdb.Database, listStore objstore.Store, opts Options) error {
	logrus.Info("pypack: recycling client python")

	var found bool
	for key, entries := range cached.Lists {
		if !strings.EqualFold(key.Extension, "pak") || !strings.EqualFold(path.Base(key.Directory), "python_pak") {
			continue
		}
		for _, e := range entries {
			clientPath := "Python/" + e.FileName
			serverPath, err := assets.ServerPath(clientPath, []string{assets.CategoryPython})
			if err != nil {
				return err
			}

			localPath, err := materializeReused(ctx, listStore, serverPath, opts.OutputDir)
			if err != nil {
				logrus.Errorf("pypack: cannot recycle %q: %v", clientPath, err)
				continue
			}

			if err := idx.Put(serverPath, &assets.Asset{
				SourcePath: localPath,
				ClientPath: clientPath,
				Categories: []string{assets.CategoryPython},
			}); err != nil {
				return err
			}
			staged.Stage(serverPath, clientPath, manifestdb.DontEncrypt)
			found = true
		}
	}

	if !found {
		logrus.Error("pypack: no python pak files were found to recycle")
		logrus.Error("pypack: no client python code will be available")
	}
	return nil
}

// materializeReused copies serverPath out of listStore into a local
// file under outputDir, so the rest of the pipeline (which reads
// source paths directly off disk) can see it regardless of whether
// listStore is local or remote.
func materializeReused(ctx context.Context, listStore objstore.Store, serverPath, outputDir string) (string, error) {
	exists, err := listStore.Exists(ctx, serverPath)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%q does not exist in the published secure list", serverPath)
	}

	r, err := listStore.Get(ctx, serverPath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	localPath := filepath.Join(outputDir, filepath.FromSlash(serverPath))
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return "", err
	}

	f, err := os.Create(localPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return localPath, nil
}
