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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urumanifest/manifestgen/pkg/hashutil"
)

// secureCopyStage implements §4.7 step 7: every server path routed
// into a secure list is compared, encryption-aware, against its
// previously-published copy; only a genuine content change triggers a
// re-copy. The authoritative file_size is recorded regardless.
func (o *Orchestrator) secureCopyStage(ctx context.Context) error {
	return o.forEach(ctx, "secure-copy", func(ctx context.Context, it *item) error {
		if !o.secureServerPaths[it.serverPath] {
			return nil
		}

		info, err := os.Stat(it.sourcePath)
		if err != nil {
			return fmt.Errorf("stat %q: %w", it.sourcePath, err)
		}
		it.entry.FileSize = uint32(info.Size())

		exists, err := o.listStore.Exists(ctx, it.serverPath)
		if err != nil {
			return fmt.Errorf("checking published copy of %q: %w", it.serverPath, err)
		}

		needsCopy := true
		if exists {
			equal, err := o.comparePublished(ctx, it)
			if err != nil {
				return err
			}
			needsCopy = !equal
		}

		if !needsCopy {
			return nil
		}

		f, err := os.Open(it.sourcePath)
		if err != nil {
			return err
		}
		defer f.Close()

		if err := o.listStore.Put(ctx, it.serverPath, f); err != nil {
			return fmt.Errorf("publishing secure copy %q: %w", it.serverPath, err)
		}
		return nil
	})
}

// comparePublished downloads the previously-published copy of it to a
// temp file and runs it through hashutil.ContentEqual against the
// current authoritative source.
func (o *Orchestrator) comparePublished(ctx context.Context, it *item) (bool, error) {
	r, err := o.listStore.Get(ctx, it.serverPath)
	if err != nil {
		return false, fmt.Errorf("fetching published copy of %q: %w", it.serverPath, err)
	}
	defer r.Close()

	tmp, err := os.CreateTemp("", "manifestgen-securecopy-*")
	if err != nil {
		return false, err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return false, err
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}

	equal, err := hashutil.ContentEqual(it.sourcePath, tmpPath, &o.key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return equal, nil
}
