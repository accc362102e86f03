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

// Package pipeline drives the ten ordered build stages over a resolved
// asset set: encrypt, hash, dirty-compare, secure-download,
// manifest-merge, compress, secure-copy, server-asset-copy,
// orphan-removal, database-write.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/urumanifest/manifestgen/internal/cache"
	"github.com/urumanifest/manifestgen/internal/pb"
	"github.com/urumanifest/manifestgen/pkg/assets"
	"github.com/urumanifest/manifestgen/pkg/cipher"
	"github.com/urumanifest/manifestgen/pkg/config"
	"github.com/urumanifest/manifestgen/pkg/manifestdb"
	"github.com/urumanifest/manifestgen/pkg/objstore"
	"github.com/urumanifest/manifestgen/pkg/resolve"
)

// securePreloaderManifest is the synthetic manifest the secure-download
// stage populates when server.secure_manifest is enabled.
const securePreloaderManifest = "SecurePreloader"

// item is one staged server path's working state through the ten
// stages: the manifest entry staging built it, and the source path the
// encrypt stage may redirect to a re-encrypted temp file.
type item struct {
	serverPath string
	entry      *manifestdb.Entry
	sourcePath string
}

// Report summarizes what a Run changed, for CLI/log reporting.
type Report struct {
	Added   []string
	Changed []string
	Deleted []string
}

// Orchestrator holds everything a Run needs: the merged asset index,
// the resolver's staged output, the previously-published database, the
// selected manifest-db backend, and the destinations a Run writes to.
type Orchestrator struct {
	cfg     *config.Build
	idx     *assets.Index
	staged  *resolve.Staged
	cached  *manifestdb.Database
	backend manifestdb.Backend
	key     cipher.Key

	fileCache cache.Cache
	bars      *pb.ProgressBar

	manifestStore objstore.Store
	listStore     objstore.Store

	items map[string]*item
	order []string
	lists map[manifestdb.ListKey][]*manifestdb.ListEntry

	// secureServerPaths collects every server path the secure-download
	// stage routed into a secure list, for the secure-copy stage.
	secureServerPaths map[string]bool

	report Report
}

// New prepares an Orchestrator over every server path resolve.Staged
// named, resolving each one's authoritative source path from idx.
func New(ctx context.Context, cfg *config.Build, idx *assets.Index, staged *resolve.Staged, cached *manifestdb.Database, backend manifestdb.Backend, key cipher.Key, fileCache cache.Cache, bars *pb.ProgressBar) (*Orchestrator, error) {
	manifestStore, err := objstore.Open(ctx, cfg.Output.Manifests)
	if err != nil {
		return nil, fmt.Errorf("pipeline: opening manifest destination: %w", err)
	}
	listStore, err := objstore.Open(ctx, cfg.Output.Lists)
	if err != nil {
		return nil, fmt.Errorf("pipeline: opening list destination: %w", err)
	}

	o := &Orchestrator{
		cfg:           cfg,
		idx:           idx,
		staged:        staged,
		cached:        cached,
		backend:       backend,
		key:           key,
		fileCache:     fileCache,
		bars:          bars,
		manifestStore: manifestStore,
		listStore:     listStore,
		items:             make(map[string]*item, len(staged.Entries)),
		lists:             make(map[manifestdb.ListKey][]*manifestdb.ListEntry),
		secureServerPaths: make(map[string]bool),
	}

	for sp, e := range staged.Entries {
		asset, ok := idx.Get(sp)
		if !ok {
			return nil, fmt.Errorf("pipeline: staged server path %q has no indexed asset", sp)
		}
		o.items[sp] = &item{serverPath: sp, entry: e, sourcePath: asset.SourcePath}
	}

	o.order = make([]string, 0, len(o.items))
	for sp := range o.items {
		o.order = append(o.order, sp)
	}
	sort.Slice(o.order, func(i, j int) bool {
		return strings.ToLower(o.order[i]) < strings.ToLower(o.order[j])
	})

	return o, nil
}

// Run executes all ten stages in §4.7 order, stopping at the first
// fatal error. It returns a Report of what changed once every stage has
// completed.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	stages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"encrypt", o.encryptStage},
		{"hash", o.hashStage},
		{"dirty-compare", o.dirtyCompareStage},
		{"secure-download", o.secureDownloadStage},
		{"manifest-merge", o.manifestMergeStage},
		{"compress", o.compressStage},
		{"secure-copy", o.secureCopyStage},
		{"server-asset-copy", o.serverAssetCopyStage},
		{"orphan-removal", o.orphanRemovalStage},
		{"database-write", o.databaseWriteStage},
	}

	for _, st := range stages {
		if err := st.fn(ctx); err != nil {
			return nil, fmt.Errorf("pipeline: %s stage: %w", st.name, err)
		}
	}

	return &o.report, nil
}

func (o *Orchestrator) concurrency() int {
	if o.cfg.Concurrency > 0 {
		return o.cfg.Concurrency
	}
	return 1
}

// forEach fans fn out across every staged item through a bounded
// worker pool, advancing a count-based progress bar named after the
// stage as each item completes.
func (o *Orchestrator) forEach(ctx context.Context, stage string, fn func(ctx context.Context, it *item) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency())

	if o.bars != nil {
		o.bars.AddCount(pb.NormalizePrompt(stage), stage, int64(len(o.order)))
	}

	for _, sp := range o.order {
		it := o.items[sp]
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			err := fn(gctx, it)
			if o.bars != nil {
				o.bars.Increment(stage)
			}
			return err
		})
	}

	return g.Wait()
}
