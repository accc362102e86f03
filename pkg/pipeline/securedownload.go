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
	"path"
	"strings"

	"github.com/urumanifest/manifestgen/pkg/manifestdb"
)

// secureDownloadSuffixes names the extensions that go into per-
// directory secure lists rather than (or in addition to) a named
// manifest.
var secureDownloadSuffixes = map[string]bool{".pak": true, ".sdl": true}

// secureDownloadStage implements §4.7 step 4: route pak/sdl assets
// into secure lists keyed by (containing directory, extension), and
// optionally into the synthetic SecurePreloader manifest.
func (o *Orchestrator) secureDownloadStage(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, sp := range o.order {
		it := o.items[sp]
		ext := strings.ToLower(path.Ext(sp))
		if !secureDownloadSuffixes[ext] {
			continue
		}

		key := manifestdb.ListKey{Directory: path.Dir(sp), Extension: strings.TrimPrefix(ext, ".")}
		o.lists[key] = append(o.lists[key], &manifestdb.ListEntry{
			FileName: it.entry.FileName,
			FileSize: it.entry.FileSize,
		})
		o.secureServerPaths[sp] = true

		if o.cfg.Server.SecureManifest {
			o.staged.AddToManifest(securePreloaderManifest, sp)
		}
	}

	return nil
}
