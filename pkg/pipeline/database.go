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
	"sort"
	"strings"

	"github.com/urumanifest/manifestgen/pkg/manifestdb"
)

// databaseWriteStage implements §4.7 step 10: the final manifest/list
// schema is serialized through the selected backend. Manifests are
// skipped when unchanged (manifestdb.IsDirty, applied inside the
// backend); lists are always rewritten; anything that dropped out of
// this run entirely is deleted.
func (o *Orchestrator) databaseWriteStage(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	staged := make(map[string][]*manifestdb.Entry, len(o.staged.Manifests))
	for name, set := range o.staged.Manifests {
		entries := make([]*manifestdb.Entry, 0, set.Size())
		for _, v := range set.Values() {
			it, ok := o.items[v.(string)]
			if !ok {
				continue
			}
			entries = append(entries, it.entry)
		}
		sort.Slice(entries, func(i, j int) bool {
			return strings.ToLower(entries[i].FileName) < strings.ToLower(entries[j].FileName)
		})
		staged[name] = entries
	}

	if err := o.backend.WriteManifests(o.cfg.Output.Manifests, staged, o.cached); err != nil {
		return fmt.Errorf("writing manifests: %w", err)
	}
	if err := o.backend.DeleteManifests(o.cfg.Output.Manifests, staged, o.cached); err != nil {
		return fmt.Errorf("deleting orphaned manifests: %w", err)
	}

	if err := o.backend.WriteLists(o.cfg.Output.Lists, o.lists); err != nil {
		return fmt.Errorf("writing secure lists: %w", err)
	}
	if err := o.backend.DeleteLists(o.cfg.Output.Lists, o.lists, o.cached); err != nil {
		return fmt.Errorf("deleting orphaned secure lists: %w", err)
	}

	return nil
}
