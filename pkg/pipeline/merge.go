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

	"github.com/urumanifest/manifestgen/pkg/resolve"
)

// manifestMergeStage implements §4.7 step 5: for every defined full
// manifest that exists in this build, union in every age manifest's
// entries and every SecurePreloader entry; thin manifests only receive
// the SecurePreloader entries.
func (o *Orchestrator) manifestMergeStage(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	variantNames := resolve.VariantManifestNames()
	full, thin := resolve.FullAndThinManifestNames()

	var ageServerPaths []string
	for name, set := range o.staged.Manifests {
		if variantNames[name] || name == securePreloaderManifest {
			continue
		}
		for _, v := range set.Values() {
			ageServerPaths = append(ageServerPaths, v.(string))
		}
	}

	var secureServerPaths []string
	if set, ok := o.staged.Manifests[securePreloaderManifest]; ok {
		for _, v := range set.Values() {
			secureServerPaths = append(secureServerPaths, v.(string))
		}
	}

	for _, name := range full {
		if _, ok := o.staged.Manifests[name]; !ok {
			continue
		}
		for _, sp := range ageServerPaths {
			o.staged.AddToManifest(name, sp)
		}
		for _, sp := range secureServerPaths {
			o.staged.AddToManifest(name, sp)
		}
	}

	for _, name := range thin {
		if _, ok := o.staged.Manifests[name]; !ok {
			continue
		}
		for _, sp := range secureServerPaths {
			o.staged.AddToManifest(name, sp)
		}
	}

	return nil
}
