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

	"github.com/urumanifest/manifestgen/pkg/hashutil"
	"github.com/urumanifest/manifestgen/pkg/manifestdb"
)

// hashStage implements §4.7 step 2: parallel MD5 of every staged
// entry's source_path, skipping consumable entries (they are staged
// for the Python pack builder, not published directly).
func (o *Orchestrator) hashStage(ctx context.Context) error {
	return o.forEach(ctx, "hash", func(ctx context.Context, it *item) error {
		if it.entry.Flags&manifestdb.Consumable != 0 {
			return nil
		}

		digest, size, err := hashutil.MD5FileCached(ctx, it.sourcePath, o.fileCache)
		if err != nil {
			return fmt.Errorf("hashing %q: %w", it.sourcePath, err)
		}

		it.entry.FileHash = digest
		it.entry.FileSize = uint32(size)
		return nil
	})
}
