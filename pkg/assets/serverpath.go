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

// Package assets builds the case-insensitive server-path index that
// merges prebuilt client trees with declarative gather packages.
package assets

import (
	"fmt"
	"path"
	"strings"
)

// Category tags an Asset carries. These mirror the fixed vocabulary
// in the data model: some select a client-path top segment, others
// select a build-output platform/variant.
const (
	CategoryData              = "data"
	CategorySDL               = "sdl"
	CategoryPython            = "python"
	CategorySFX               = "sfx"
	CategoryAVI               = "avi"
	CategoryExternal          = "external"
	CategoryExternal64        = "external64"
	CategoryInternal          = "internal"
	CategoryInternal64        = "internal64"
	CategoryPrereq            = "prereq"
	CategoryPrereq64          = "prereq64"
	CategoryMacExternal       = "macExternal"
	CategoryMacInternal       = "macInternal"
	CategoryMacBundleExternal = "macBundleExternal"
	CategoryMacBundleInternal = "macBundleInternal"
	CategoryMac               = "mac"
)

// clientPrefixSegment maps a client-path top-level directory to its
// server-path top segment.
var clientPrefixSegment = map[string]string{
	"dat":    "data",
	"Python": "scripts",
	"SDL":    "scripts",
	"sfx":    "audio",
	"avi":    "video",
}

// suffixSubdir maps a file extension to its server-path subdirectory.
var suffixSubdir = map[string]string{
	".prp": "prp",
	".age": "age",
	".py":  "python_code",
	".pak": "python_pak",
	".sdl": "sdl",
	".fni": "fni",
	".csv": "csv",
	".loc": "localization",
	".p2f": "font",
}

// clientCategoryPlatformVariant maps the "client output" category
// tags to a (platform, variant) pair used to build the
// client/<platform>/<variant> top segment.
var clientCategoryPlatformVariant = map[string][2]string{
	CategoryExternal:          {"win", "external"},
	CategoryExternal64:        {"win64", "external"},
	CategoryInternal:          {"win", "internal"},
	CategoryInternal64:        {"win64", "internal"},
	CategoryMacExternal:       {"mac", "external"},
	CategoryMacInternal:       {"mac", "internal"},
	CategoryMacBundleExternal: {"mac", "bundleExternal"},
	CategoryMacBundleInternal: {"mac", "bundleInternal"},
	CategoryMac:               {"mac", "installer"},
}

var prereqArch = map[string]string{
	CategoryPrereq:   "x86",
	CategoryPrereq64: "x64",
}

// ServerPath derives the canonical, forward-slash, case-insensitively
// compared key for an asset from its client path and category set.
func ServerPath(clientPath string, categories []string) (string, error) {
	clientPath = filepathToSlash(clientPath)

	topSegment, err := topSegmentFor(clientPath, categories)
	if err != nil {
		return "", err
	}

	ext := strings.ToLower(path.Ext(clientPath))
	base := path.Base(clientPath)

	if subdir, ok := suffixSubdir[ext]; ok {
		return path.Join(topSegment, subdir, base), nil
	}
	return path.Join(topSegment, base), nil
}

func topSegmentFor(clientPath string, categories []string) (string, error) {
	for _, cat := range categories {
		if pv, ok := clientCategoryPlatformVariant[cat]; ok {
			return path.Join("client", pv[0], pv[1]), nil
		}
	}
	for _, cat := range categories {
		if arch, ok := prereqArch[cat]; ok {
			return path.Join("dependencies", arch), nil
		}
	}

	top, _, _ := strings.Cut(clientPath, "/")
	if seg, ok := clientPrefixSegment[top]; ok {
		return seg, nil
	}

	return "", fmt.Errorf("assets: cannot derive server-path top segment for client path %q (categories %v)", clientPath, categories)
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
