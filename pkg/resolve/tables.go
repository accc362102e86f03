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

// Package resolve computes, per-manifest, the transitive set of server
// paths a deployable manifest must contain: the age/page dependency
// closure, the static client-surface tables, and the SDL descriptor
// closure reachable from the client-core roots and discovered scripts.
package resolve

import "github.com/urumanifest/manifestgen/pkg/assets"

// variantManifest is the {thin, patcher, full} manifest-name triple a
// platform/variant category fans out into. An empty field means that
// variant has no manifest of that kind.
type variantManifest struct {
	Thin    string
	Patcher string
	Full    string
}

// variantManifests is invariant to the Plasma engine's deployment
// layout, not configuration.
var variantManifests = map[string]variantManifest{
	assets.CategoryExternal:          {Thin: "ThinExternal", Patcher: "ExternalPatcher", Full: "External"},
	assets.CategoryExternal64:        {Thin: "ThinExternal64", Patcher: "ExternalPatcher64", Full: "External64"},
	assets.CategoryInternal:          {Thin: "ThinInternal", Patcher: "InternalPatcher", Full: "Internal"},
	assets.CategoryInternal64:        {Thin: "ThinInternal64", Patcher: "InternalPatcher64", Full: "Internal64"},
	assets.CategoryPrereq:            {Patcher: "DependencyPatcher"},
	assets.CategoryPrereq64:          {Patcher: "DependencyPatcher64"},
	assets.CategoryMac:               {Full: "macExternal"},
	assets.CategoryMacExternal:       {Full: "macExternal"},
	assets.CategoryMacInternal:       {Full: "macInternal"},
	assets.CategoryMacBundleExternal: {Full: "macBundleExternal"},
	assets.CategoryMacBundleInternal: {Full: "macBundleInternal"},
}

// patcherExecutable names the declared patcher executable per variant;
// categories absent here have no declared patcher restriction.
var patcherExecutable = map[string]string{
	assets.CategoryExternal:   "UruLauncher.exe",
	assets.CategoryExternal64: "UruLauncher64.exe",
	assets.CategoryInternal:   "plUruLauncher.exe",
	assets.CategoryInternal64: "plUruLauncher64.exe",
}

// FullAndThinManifestNames returns every platform/variant manifest name
// that participates in the pipeline's full/thin age-and-secure merge
// step.
func FullAndThinManifestNames() (full, thin []string) {
	return definedFullAndThinManifests()
}

// VariantManifestNames returns the full set of manifest names the
// client-surface pass can produce (thin, patcher, and full), so the
// pipeline can tell an age-per-manifest apart from a platform/variant
// one when merging.
func VariantManifestNames() map[string]bool {
	out := make(map[string]bool)
	for _, vm := range variantManifests {
		if vm.Thin != "" {
			out[vm.Thin] = true
		}
		if vm.Patcher != "" {
			out[vm.Patcher] = true
		}
		if vm.Full != "" {
			out[vm.Full] = true
		}
	}
	return out
}

// clientCoreRoots are always resolved into the SDL closure regardless
// of which scripts were discovered in the age/page pass.
var clientCoreRoots = []string{
	"AGMaster", "avatar", "avatarPhysical", "CloneMessage", "clothing",
	"Layer", "MorphSequence", "ParticleSystem", "physical", "Responder",
	"Sound", "XRegion",
}

// commonPages are always implied for every age. Nothing in this
// package reads it: page.ParseAge itself adds these pages to every
// Age's Pages.
var commonPages = []string{"BuiltIn", "Textures"}

// alwaysFullAndThinSuffixes names the file extensions that, regardless
// of category, are added to every defined full and thin manifest.
var alwaysFullAndThinSuffixes = map[string]bool{
	".age": true, ".p2f": true, ".loc": true,
	".avi": true, ".bik": true, ".webm": true,
}
