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

	"github.com/urumanifest/manifestgen/pkg/manifestdb"
)

// dirtyCompareStage implements §4.7 step 3. It is pure in-memory
// bookkeeping against o.report, so unlike the filesystem-touching
// stages it runs on the orchestrator thread rather than fanned out
// across the worker pool.
func (o *Orchestrator) dirtyCompareStage(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, sp := range o.order {
		it := o.items[sp]
		if it.entry.Flags&manifestdb.Consumable != 0 {
			continue
		}

		cached, ok := o.cached.Assets[sp]
		if !ok {
			it.entry.Flags |= manifestdb.Dirty
			o.report.Added = append(o.report.Added, sp)
			continue
		}

		if cached.FileHash != it.entry.FileHash {
			it.entry.Flags |= manifestdb.Dirty
			o.report.Changed = append(o.report.Changed, sp)
		}
	}

	for sp := range o.cached.Assets {
		if _, ok := o.items[sp]; !ok {
			o.report.Deleted = append(o.report.Deleted, sp)
		}
	}

	return nil
}
