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
)

// orphanRemovalStage implements §4.7 step 9: a server path present in
// the cached database but absent from this run's staged set has its
// download blob and any published secure copy removed. The dirty-
// compare stage already collected this set in report.Deleted.
func (o *Orchestrator) orphanRemovalStage(ctx context.Context) error {
	for _, sp := range o.report.Deleted {
		if err := ctx.Err(); err != nil {
			return err
		}

		downloadName := sp + ".gz"
		if err := o.manifestStore.Delete(ctx, downloadName); err != nil {
			return fmt.Errorf("removing orphaned download %q: %w", downloadName, err)
		}
		if err := o.listStore.Delete(ctx, sp); err != nil {
			return fmt.Errorf("removing orphaned secure copy %q: %w", sp, err)
		}
	}
	return nil
}
