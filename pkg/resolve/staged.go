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
	"strings"

	"github.com/emirpasic/gods/sets/treeset"

	"github.com/urumanifest/manifestgen/pkg/manifestdb"
)

// Staged is the Dependency Resolver's output: every server path that
// must exist in the staged pool, plus the named manifest membership
// sets each server path was pulled into.
type Staged struct {
	Entries   map[string]*manifestdb.Entry
	Manifests map[string]*treeset.Set

	// PythonStems collects every PythonFileMod module stem (file name
	// without the .py suffix) discovered while parsing pages in the age
	// pass, for use as extra SDL closure roots in the script pass.
	PythonStems map[string]bool
}

func newStaged() *Staged {
	return &Staged{
		Entries:     make(map[string]*manifestdb.Entry),
		Manifests:   make(map[string]*treeset.Set),
		PythonStems: make(map[string]bool),
	}
}

func caseInsensitiveStringSet() *treeset.Set {
	return treeset.NewWith(func(a, b interface{}) int {
		return strings.Compare(strings.ToLower(a.(string)), strings.ToLower(b.(string)))
	})
}

// Stage returns the (possibly newly created) entry for serverPath,
// OR-ing in extraFlags on every call.
func (s *Staged) Stage(serverPath, clientPath string, extraFlags manifestdb.Flags) *manifestdb.Entry {
	e, ok := s.Entries[serverPath]
	if !ok {
		e = &manifestdb.Entry{FileName: clientPath}
		s.Entries[serverPath] = e
	}
	e.Flags |= extraFlags
	return e
}

// AddToManifest records serverPath as a member of the named manifest,
// creating the manifest's set on first use.
func (s *Staged) AddToManifest(name, serverPath string) {
	if name == "" {
		return
	}
	set, ok := s.Manifests[name]
	if !ok {
		set = caseInsensitiveStringSet()
		s.Manifests[name] = set
	}
	set.Add(serverPath)
}

// ManifestEntries returns, in case-insensitive sorted order, the
// staged entries belonging to the named manifest.
func (s *Staged) ManifestEntries(name string) []*manifestdb.Entry {
	set, ok := s.Manifests[name]
	if !ok {
		return nil
	}

	out := make([]*manifestdb.Entry, 0, set.Size())
	for _, v := range set.Values() {
		if e, ok := s.Entries[v.(string)]; ok {
			out = append(out, e)
		}
	}
	return out
}
