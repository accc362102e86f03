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

// Package pypack invokes the external byte-compiler over every
// gathered Python source and packs the results into a single
// BTEA-encrypted Python.pak archive.
package pypack

import (
	"os"
	"path/filepath"
	"strings"
)

// ModuleName computes the dotted module name the compiler should use
// for sourcePath: every ancestor directory that itself contains an
// __init__.py is a package and contributes its name, stopping at the
// first ancestor that doesn't (or at pythonRoot). The leaf keeps its
// full file name, extension included, matching the wire format the
// engine's Python.pak loader expects.
//
// This walks the real on-disk tree under pythonRoot rather than the
// server-path form of each ancestor, because assets.ServerPath collapses
// every Python source to a single flat "scripts/python_code" directory;
// nested __init__.py siblings would otherwise be indistinguishable from
// each other.
func ModuleName(sourcePath, pythonRoot string) string {
	components := []string{filepath.Base(sourcePath)}

	root := filepath.Clean(pythonRoot)
	dir := filepath.Dir(sourcePath)

	for filepath.Clean(dir) != root {
		if _, err := os.Stat(filepath.Join(dir, "__init__.py")); err != nil {
			break
		}
		components = append([]string{filepath.Base(dir)}, components...)

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return strings.Join(components, ".")
}
