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

package manifestdb

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	mfsExt  = ".mfs"
	listExt = ".list"
)

// PlainBackend implements Back-end A: one manifest per comma-separated
// ".mfs" text file, one secure list per "<directory>_<extension>.list"
// text file, backslash path separators, no persisted encryption key.
type PlainBackend struct{}

func (b *PlainBackend) Load(dir string) (*Database, error) {
	db := NewDatabase()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return db, nil
		}
		return nil, fmt.Errorf("manifestdb: reading dir %q: %w", dir, err)
	}

	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		name := de.Name()

		switch {
		case strings.HasSuffix(name, mfsExt):
			manifestName := strings.TrimSuffix(name, mfsExt)
			es, err := loadMfsFile(filepath.Join(dir, name))
			if err != nil {
				return nil, err
			}
			db.Manifests[manifestName] = es

		case strings.HasSuffix(name, listExt):
			key, ok := parseListFileName(name)
			if !ok {
				continue
			}
			ls, err := loadListFile(filepath.Join(dir, name))
			if err != nil {
				return nil, err
			}
			db.Lists[key] = ls
		}
	}

	return db, nil
}

func loadMfsFile(path string) ([]*Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("manifestdb: opening %q: %w", path, err)
	}
	defer f.Close()

	var out []*Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		e, err := parseMfsLine(line)
		if err != nil {
			return nil, fmt.Errorf("manifestdb: %q: %w", path, err)
		}
		out = append(out, e)
	}
	return out, scanner.Err()
}

func parseMfsLine(line string) (*Entry, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 7 {
		return nil, fmt.Errorf("expected 7 comma-separated fields, got %d", len(fields))
	}

	fileSize, err := strconv.ParseUint(fields[4], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("bad file_size: %w", err)
	}
	downloadSize, err := strconv.ParseUint(fields[5], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("bad download_size: %w", err)
	}
	flags, err := strconv.ParseUint(fields[6], 10, 16)
	if err != nil {
		return nil, fmt.Errorf("bad flags: %w", err)
	}

	return &Entry{
		FileName:     backslashToSlash(fields[0]),
		DownloadName: backslashToSlash(fields[1]),
		FileHash:     fields[2],
		DownloadHash: fields[3],
		FileSize:     uint32(fileSize),
		DownloadSize: uint32(downloadSize),
		Flags:        Flags(flags),
	}, nil
}

func loadListFile(path string) ([]*ListEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("manifestdb: opening %q: %w", path, err)
	}
	defer f.Close()

	var out []*ListEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 2 {
			return nil, fmt.Errorf("manifestdb: %q: expected 2 fields, got %d", path, len(fields))
		}
		size, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("manifestdb: %q: bad file_size: %w", path, err)
		}
		out = append(out, &ListEntry{FileName: backslashToSlash(fields[0]), FileSize: uint32(size)})
	}
	return out, scanner.Err()
}

func (b *PlainBackend) WriteManifests(dir string, staged map[string][]*Entry, cached *Database) error {
	for name, entries := range staged {
		if !IsDirty(cached.Manifests[name], entries) {
			logrus.Debugf("manifestdb: manifest %q is unchanged, skipping rewrite", name)
			continue
		}
		if err := writeMfsFile(filepath.Join(dir, name+mfsExt), entries); err != nil {
			return err
		}
	}
	return nil
}

func writeMfsFile(path string, entries []*Entry) error {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s,%s,%s,%s,%d,%d,%d\n",
			slashToBackslash(e.FileName), slashToBackslash(e.DownloadName),
			e.FileHash, e.DownloadHash, e.FileSize, e.DownloadSize, e.Flags.SerializedLow16())
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func (b *PlainBackend) WriteLists(dir string, staged map[ListKey][]*ListEntry) error {
	for key, entries := range staged {
		if err := writeListFile(filepath.Join(dir, listFileName(key)), entries); err != nil {
			return err
		}
	}
	return nil
}

func writeListFile(path string, entries []*ListEntry) error {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s,%d\n", slashToBackslash(e.FileName), e.FileSize)
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func (b *PlainBackend) DeleteManifests(dir string, staged map[string][]*Entry, cached *Database) error {
	for name := range cached.Manifests {
		if _, ok := staged[name]; ok {
			continue
		}
		path := filepath.Join(dir, name+mfsExt)
		if err := removeIfExists(path); err != nil {
			return err
		}
	}
	return nil
}

func (b *PlainBackend) DeleteLists(dir string, staged map[ListKey][]*ListEntry, cached *Database) error {
	for key := range cached.Lists {
		if _, ok := staged[key]; ok {
			continue
		}
		path := filepath.Join(dir, listFileName(key))
		if err := removeIfExists(path); err != nil {
			return err
		}
	}
	return nil
}

func listFileName(key ListKey) string {
	return fmt.Sprintf("%s_%s%s", key.Directory, key.Extension, listExt)
}

// parseListFileName reverses listFileName for files discovered on
// disk, splitting on the last underscore before the extension.
func parseListFileName(name string) (ListKey, bool) {
	stem := strings.TrimSuffix(name, listExt)
	idx := strings.LastIndex(stem, "_")
	if idx < 0 {
		return ListKey{}, false
	}
	return ListKey{Directory: stem[:idx], Extension: stem[idx+1:]}, true
}

func backslashToSlash(p string) string { return strings.ReplaceAll(p, `\`, "/") }
func slashToBackslash(p string) string { return strings.ReplaceAll(p, "/", `\`) }

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
