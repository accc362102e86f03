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

package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/urumanifest/manifestgen/pkg/hashutil"
	"github.com/urumanifest/manifestgen/pkg/manifestdb"
)

// compressStage implements §4.7 step 6: every server path appearing in
// at least one manifest gets a gzip download blob, recomputed only
// when the entry is dirty or a regenerate was forced.
func (o *Orchestrator) compressStage(ctx context.Context) error {
	inAnyManifest := make(map[string]bool)
	for _, set := range o.staged.Manifests {
		for _, v := range set.Values() {
			inAnyManifest[v.(string)] = true
		}
	}

	return o.forEach(ctx, "compress", func(ctx context.Context, it *item) error {
		if !inAnyManifest[it.serverPath] {
			return nil
		}

		it.entry.DownloadName = it.serverPath + ".gz"
		it.entry.Flags |= manifestdb.FileGzipped

		if it.entry.Flags&manifestdb.Dirty == 0 && !o.cfg.Regenerate {
			if cached, ok := o.cached.Assets[it.serverPath]; ok {
				it.entry.DownloadHash = cached.DownloadHash
				it.entry.DownloadSize = cached.DownloadSize
				return nil
			}
		}

		tmp, err := os.CreateTemp("", "manifestgen-gzip-*")
		if err != nil {
			return err
		}
		tmpPath := tmp.Name()
		tmp.Close()
		defer os.Remove(tmpPath)

		digest, size, err := hashutil.GzipAndHash(it.sourcePath, tmpPath)
		if err != nil {
			return fmt.Errorf("compressing %q: %w", it.sourcePath, err)
		}

		f, err := os.Open(tmpPath)
		if err != nil {
			return err
		}
		defer f.Close()

		if err := o.manifestStore.Put(ctx, it.entry.DownloadName, f); err != nil {
			return fmt.Errorf("publishing %q: %w", it.entry.DownloadName, err)
		}

		it.entry.DownloadHash = digest
		it.entry.DownloadSize = uint32(size)
		return nil
	})
}
