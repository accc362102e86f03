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
	"path"
	"strings"

	"github.com/urumanifest/manifestgen/pkg/assets"
	"github.com/urumanifest/manifestgen/pkg/manifestdb"
)

// resolveClientSurfaceDependencies implements §4.5's second pass: the
// static platform-variant manifest tables, plus the always-full/thin
// extension rule.
func (r *Resolver) resolveClientSurfaceDependencies(idx *assets.Index, staged *Staged) error {
	allFull, allThin := definedFullAndThinManifests()

	for _, ia := range idx.All() {
		flags := clientSurfaceFlags(ia.Asset.Categories)

		for _, category := range ia.Asset.Categories {
			vm, ok := variantManifests[category]
			if !ok {
				continue
			}

			staged.Stage(ia.ServerPath, ia.Asset.ClientPath, flags)

			staged.AddToManifest(vm.Thin, ia.ServerPath)
			staged.AddToManifest(vm.Full, ia.ServerPath)

			declaredPatcher, hasPatcher := patcherExecutable[category]
			if !hasPatcher || path.Base(ia.Asset.ClientPath) == declaredPatcher {
				staged.AddToManifest(vm.Patcher, ia.ServerPath)
			}
		}

		ext := pathExtLower(ia.Asset.ClientPath)
		if alwaysFullAndThinSuffixes[ext] {
			staged.Stage(ia.ServerPath, ia.Asset.ClientPath, flags)
			for _, m := range allFull {
				staged.AddToManifest(m, ia.ServerPath)
			}
			for _, m := range allThin {
				staged.AddToManifest(m, ia.ServerPath)
			}
		}
	}

	return nil
}

// clientSurfaceFlags implements the flag policy from §4.5: installer
// for prereq categories, bundle for Mac .app bundle members.
func clientSurfaceFlags(categories []string) manifestdb.Flags {
	var flags manifestdb.Flags
	for _, c := range categories {
		switch c {
		case assets.CategoryPrereq, assets.CategoryPrereq64:
			flags |= manifestdb.Installer
		case assets.CategoryMacBundleExternal, assets.CategoryMacBundleInternal:
			flags |= manifestdb.Bundle
		}
	}
	return flags
}

func definedFullAndThinManifests() (full, thin []string) {
	for _, vm := range variantManifests {
		if vm.Full != "" {
			full = append(full, vm.Full)
		}
		if vm.Thin != "" {
			thin = append(thin, vm.Thin)
		}
	}
	return full, thin
}

func pathExtLower(p string) string {
	return strings.ToLower(path.Ext(p))
}
