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

package sdl

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/emirpasic/gods/sets/linkedhashset"
	"github.com/sirupsen/logrus"
)

// Manager aggregates every STATEDESC block loaded from any number of
// SDL files, keyed case-insensitively by descriptor name.
type Manager struct {
	byLowerName map[string][]*Descriptor
}

// NewManager returns an empty Manager ready for LoadReader/LoadReaderFrom.
func NewManager() *Manager {
	return &Manager{byLowerName: make(map[string][]*Descriptor)}
}

// LoadReader parses SDL source text and merges every descriptor it
// contains into the manager.
func (m *Manager) LoadReader(r io.Reader) error {
	_, err := m.LoadReaderFrom("", r)
	return err
}

// LoadReaderFrom is LoadReader, additionally stamping every descriptor
// it loads with sourceFile and returning the descriptors added so a
// caller can map a descriptor name back to the file it came from.
func (m *Manager) LoadReaderFrom(sourceFile string, r io.Reader) ([]*Descriptor, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("sdl: read: %w", err)
	}

	descs, err := parse(lex(string(data)))
	if err != nil {
		return nil, err
	}

	for _, d := range descs {
		d.SourceFile = sourceFile
		key := strings.ToLower(d.Name)
		m.byLowerName[key] = append(m.byLowerName[key], d)
	}

	return descs, nil
}

// Find returns the highest-VERSION descriptor registered under name,
// looked up case-insensitively. A case mismatch between the requested
// name and the stored name is logged, not rejected.
func (m *Manager) Find(name string) (*Descriptor, bool) {
	all := m.FindAll(name)
	if len(all) == 0 {
		return nil, false
	}

	best := all[0]
	for _, d := range all[1:] {
		if d.Version > best.Version {
			best = d
		}
	}
	return best, true
}

// FindAll returns every descriptor registered under name across all
// loaded files, in load order.
func (m *Manager) FindAll(name string) []*Descriptor {
	key := strings.ToLower(name)
	descs := m.byLowerName[key]
	if len(descs) == 0 {
		return nil
	}

	for _, d := range descs {
		if d.Name != name {
			logrus.Warnf("sdl: descriptor name case mismatch: requested %q, stored as %q", name, d.Name)
		}
	}

	out := make([]*Descriptor, len(descs))
	copy(out, descs)
	return out
}

// Names returns every distinct descriptor name known to the manager,
// sorted for deterministic iteration.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.byLowerName))
	seen := make(map[string]bool)
	for _, descs := range m.byLowerName {
		for _, d := range descs {
			if !seen[d.Name] {
				seen[d.Name] = true
				names = append(names, d.Name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// ResolveClosure walks every $embedded descriptor reference reachable
// from roots and returns the full set of descriptor names involved,
// roots included. Cycles (a descriptor embedding itself, directly or
// transitively) terminate safely rather than recursing forever.
func (m *Manager) ResolveClosure(roots []string) (map[string]struct{}, error) {
	visited := linkedhashset.New()
	result := make(map[string]struct{})

	var visit func(name string) error
	visit = func(name string) error {
		if visited.Contains(name) {
			return nil
		}
		visited.Add(name)

		d, ok := m.Find(name)
		if !ok {
			return fmt.Errorf("sdl: closure: descriptor %q not found", name)
		}
		result[d.Name] = struct{}{}

		for _, v := range d.Vars {
			if v.Type.EmbeddedName == "" {
				continue
			}
			if err := visit(v.Type.EmbeddedName); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range roots {
		if err := visit(root); err != nil {
			return nil, err
		}
	}

	return result, nil
}
