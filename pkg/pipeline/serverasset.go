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
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/urumanifest/manifestgen/internal/pb"
	"github.com/urumanifest/manifestgen/pkg/assets"
	"github.com/urumanifest/manifestgen/pkg/cipher"
)

// serverAssetCopyStage implements §4.7 step 8: stage age/sdl assets
// into the directories the game server itself reads from, decrypting
// on the fly. Either directory being unconfigured skips that category.
func (o *Orchestrator) serverAssetCopyStage(ctx context.Context) error {
	return o.forEach(ctx, "server-asset-copy", func(ctx context.Context, it *item) error {
		asset, ok := o.idx.Get(it.serverPath)
		if !ok {
			return nil
		}

		dir := o.serverAssetTarget(asset.Categories, it.serverPath)
		if dir == "" {
			return nil
		}

		destPath := filepath.Join(dir, path.Base(it.entry.FileName))

		r, err := cipher.Open(it.sourcePath, cipher.ReadBinary, cipher.Unspecified, &o.key)
		if err != nil {
			return fmt.Errorf("opening %q for server-asset copy: %w", it.sourcePath, err)
		}
		defer r.Close()

		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		w, err := os.Create(destPath)
		if err != nil {
			return err
		}
		defer w.Close()

		// These files can be large enough (age/sdl data) that a
		// per-item byte bar is more useful than the stage's item-count
		// bar alone; Add no-ops to a passthrough reader when disabled.
		var src io.Reader = r
		if o.bars != nil {
			src = o.bars.Add(pb.NormalizePrompt("server-asset-copy"), it.serverPath, int64(r.Length()), r)
		}

		if _, err := io.Copy(w, src); err != nil {
			return fmt.Errorf("writing %q: %w", destPath, err)
		}

		return nil
	})
}

// serverAssetTarget returns the configured destination directory for
// categories/serverPath, or "" if this asset isn't one of the two
// server-consumed kinds or its directory isn't configured.
func (o *Orchestrator) serverAssetTarget(categories []string, serverPath string) string {
	ext := strings.ToLower(path.Ext(serverPath))
	for _, c := range categories {
		switch {
		case c == assets.CategoryData && ext == ".age":
			return o.cfg.Server.AgeDirectory
		case c == assets.CategorySDL && ext == ".sdl":
			return o.cfg.Server.SDLDirectory
		}
	}
	return ""
}
