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
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/urumanifest/manifestgen/pkg/assets"
	"github.com/urumanifest/manifestgen/pkg/cipher"
	"github.com/urumanifest/manifestgen/pkg/manifestdb"
	"github.com/urumanifest/manifestgen/pkg/page"
	"github.com/urumanifest/manifestgen/pkg/sdl"
)

// Resolver drives the three dependency-resolution passes over a
// unified asset index.
type Resolver struct {
	// Concurrency bounds the page-parsing worker pool in the age pass.
	Concurrency int
	// Key decrypts BTEA-framed age source files; XTEA-framed input
	// always uses the hardcoded default key regardless of Key, and a
	// nil Key with BTEA-framed input is an error.
	Key *cipher.Key
}

// New returns a Resolver with a sane default concurrency.
func New(concurrency int, key *cipher.Key) *Resolver {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Resolver{Concurrency: concurrency, Key: key}
}

// Run drives all three passes and returns the populated Staged set.
func (r *Resolver) Run(ctx context.Context, idx *assets.Index, manager *sdl.Manager) (*Staged, error) {
	staged := newStaged()

	if err := r.resolveAgeDependencies(ctx, idx, staged); err != nil {
		return nil, fmt.Errorf("resolve: age pass: %w", err)
	}

	if err := r.resolveClientSurfaceDependencies(idx, staged); err != nil {
		return nil, fmt.Errorf("resolve: client-surface pass: %w", err)
	}

	if err := r.resolveScriptDependencies(idx, manager, staged); err != nil {
		return nil, fmt.Errorf("resolve: script pass: %w", err)
	}

	return staged, nil
}

// depRef is one dependency a parsed page contributes.
type depRef struct {
	ClientPath string
	Category   string
	Flags      manifestdb.Flags
	IsScript   bool
}

// resolveAgeDependencies implements §4.5's first pass.
func (r *Resolver) resolveAgeDependencies(ctx context.Context, idx *assets.Index, staged *Staged) error {
	for _, ia := range idx.All() {
		if path.Ext(ia.Asset.ClientPath) != ".age" {
			continue
		}

		ageName := strings.TrimSuffix(path.Base(ia.Asset.ClientPath), ".age")

		ageFile, err := cipherAwareOpen(ia.Asset.SourcePath, r.Key)
		if err != nil {
			return fmt.Errorf("opening age file %q: %w", ia.Asset.SourcePath, err)
		}
		parsedAge, err := page.ParseAge(ageFile)
		closeErr := ageFile.Close()
		if err != nil {
			return fmt.Errorf("parsing age file %q: %w", ia.Asset.SourcePath, err)
		}
		if closeErr != nil {
			return closeErr
		}

		var pageAssets []assets.IndexedAsset
		for _, pageName := range parsedAge.Pages {
			pageClientPath := page.PageFilePath(ageName, pageName)
			pageServerPath, err := assets.ServerPath(pageClientPath, []string{assets.CategoryData})
			if err != nil {
				return err
			}
			pa, ok := idx.Get(pageServerPath)
			if !ok {
				logrus.Warnf("resolve: age %q: missing page %q", ageName, pageClientPath)
				continue
			}
			pageAssets = append(pageAssets, assets.IndexedAsset{ServerPath: pageServerPath, Asset: pa})
		}

		refsByPage := make([][]depRef, len(pageAssets))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.Concurrency)
		for i, pa := range pageAssets {
			i, pa := i, pa
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				refs, err := parsePageDeps(pa.Asset.SourcePath, ageName)
				if err != nil {
					return fmt.Errorf("parsing page %q: %w", pa.Asset.SourcePath, err)
				}
				refsByPage[i] = refs
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for _, refs := range refsByPage {
			for _, ref := range refs {
				serverPath, err := assets.ServerPath(ref.ClientPath, []string{ref.Category})
				if err != nil {
					return err
				}
				staged.Stage(serverPath, ref.ClientPath, ref.Flags)
				if !ref.IsScript {
					staged.AddToManifest(ageName, serverPath)
					continue
				}
				stem := strings.TrimSuffix(path.Base(ref.ClientPath), ".py")
				staged.PythonStems[stem] = true
			}
		}

		staged.Stage(ia.ServerPath, ia.Asset.ClientPath, 0)
		staged.AddToManifest(ageName, ia.ServerPath)

		fniClientPath := strings.TrimSuffix(ia.Asset.ClientPath, ".age") + ".fni"
		fniServerPath, err := assets.ServerPath(fniClientPath, []string{assets.CategoryData})
		if err != nil {
			return err
		}
		if fniAsset, ok := idx.Get(fniServerPath); ok {
			staged.Stage(fniServerPath, fniAsset.ClientPath, 0)
			staged.AddToManifest(ageName, fniServerPath)
		}
	}

	return nil
}

// parsePageDeps parses one .prp page and converts its dependency
// records into client-path/flag/category tuples.
func parsePageDeps(sourcePath, ageName string) ([]depRef, error) {
	f, err := os.Open(sourcePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	pg, err := page.ParsePRP(f, info.Size())
	if err != nil {
		return nil, err
	}

	var refs []depRef
	for _, sb := range pg.SoundBuffers {
		refs = append(refs, depRef{
			ClientPath: "sfx/" + sb.FileName,
			Category:   assets.CategorySFX,
			Flags:      soundCacheFlag(sb.CacheKind),
		})
	}
	for _, pfm := range pg.PythonFileMods {
		refs = append(refs, depRef{
			ClientPath: "Python/" + pfm.ModuleFileName,
			Category:   assets.CategoryPython,
			Flags:      manifestdb.PythonFileMod | manifestdb.Script | manifestdb.Consumable,
			IsScript:   true,
		})
	}
	if pg.HasRelevanceRegion {
		refs = append(refs, depRef{
			ClientPath: "dat/" + ageName + ".csv",
			Category:   assets.CategoryData,
		})
	}

	return refs, nil
}

func soundCacheFlag(kind string) manifestdb.Flags {
	switch kind {
	case "sound_stream_compressed":
		return manifestdb.SoundStreamCompressed
	case "sound_cache_split":
		return manifestdb.SoundCacheSplit
	default:
		return manifestdb.SoundCacheStereo
	}
}

// cipherAwareOpen is used by the age pass, where a source file
// may optionally be XTEA/BTEA-framed; it transparently decrypts if a
// recognized magic is present, otherwise reads the file as-is.
func cipherAwareOpen(path string, key *cipher.Key) (*cipher.Stream, error) {
	return cipher.Open(path, cipher.ReadText, cipher.Unspecified, key)
}
