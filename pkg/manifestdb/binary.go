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
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/unicode"

	"github.com/urumanifest/manifestgen/pkg/cipher"
)

const (
	mbmExt  = ".mbm"
	mbamExt = ".mbam"
	keyFile = "encryption.key"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// BinaryBackend implements Back-end B: length-prefixed binary
// manifests with UTF-16LE strings and big-endian integers, plus a
// persisted 128-bit encryption key.
type BinaryBackend struct {
	Key cipher.Key
}

func (b *BinaryBackend) Load(dir string) (*Database, error) {
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
		case strings.HasSuffix(name, mbmExt):
			manifestName := strings.TrimSuffix(name, mbmExt)
			es, err := loadMbmFile(filepath.Join(dir, name))
			if err != nil {
				return nil, err
			}
			db.Manifests[manifestName] = es

		case strings.HasSuffix(name, mbamExt):
			directory := strings.TrimSuffix(name, mbamExt)
			ls, err := loadMbamFile(filepath.Join(dir, name))
			if err != nil {
				return nil, err
			}
			db.Lists[ListKey{Directory: directory}] = ls
		}
	}

	return db, nil
}

func loadMbmFile(path string) ([]*Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifestdb: reading %q: %w", path, err)
	}

	r := bytes.NewReader(raw)
	var numEntries uint32
	if err := binary.Read(r, binary.LittleEndian, &numEntries); err != nil {
		return nil, fmt.Errorf("manifestdb: %q: num_entries: %w", path, err)
	}

	out := make([]*Entry, 0, numEntries)
	for i := uint32(0); i < numEntries; i++ {
		var entryLen uint32
		if err := binary.Read(r, binary.LittleEndian, &entryLen); err != nil {
			return nil, fmt.Errorf("manifestdb: %q: entry %d length: %w", path, i, err)
		}
		payload := make([]byte, entryLen)
		if _, err := r.Read(payload); err != nil {
			return nil, fmt.Errorf("manifestdb: %q: entry %d payload: %w", path, i, err)
		}

		e, err := decodeEntryPayload(payload)
		if err != nil {
			return nil, fmt.Errorf("manifestdb: %q: entry %d: %w", path, i, err)
		}
		out = append(out, e)
	}

	return out, nil
}

func decodeEntryPayload(payload []byte) (*Entry, error) {
	off := 0

	readStr := func() (string, error) {
		s, n, err := readWStr(payload[off:])
		if err != nil {
			return "", err
		}
		off += n
		return s, nil
	}
	readInt := func() (uint32, error) {
		v, n, err := readIntBE(payload[off:])
		if err != nil {
			return 0, err
		}
		off += n
		return v, nil
	}

	fileName, err := readStr()
	if err != nil {
		return nil, fmt.Errorf("file_name: %w", err)
	}
	downloadName, err := readStr()
	if err != nil {
		return nil, fmt.Errorf("download_name: %w", err)
	}
	fileHash, err := readStr()
	if err != nil {
		return nil, fmt.Errorf("file_hash: %w", err)
	}
	downloadHash, err := readStr()
	if err != nil {
		return nil, fmt.Errorf("download_hash: %w", err)
	}
	fileSize, err := readInt()
	if err != nil {
		return nil, fmt.Errorf("file_size: %w", err)
	}
	downloadSize, err := readInt()
	if err != nil {
		return nil, fmt.Errorf("download_size: %w", err)
	}
	flags, err := readInt()
	if err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}

	return &Entry{
		FileName:     backslashToSlash(fileName),
		DownloadName: backslashToSlash(downloadName),
		FileHash:     fileHash,
		DownloadHash: downloadHash,
		FileSize:     fileSize,
		DownloadSize: downloadSize,
		Flags:        Flags(flags),
	}, nil
}

func loadMbamFile(path string) ([]*ListEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifestdb: reading %q: %w", path, err)
	}

	var out []*ListEntry
	off := 0
	for off < len(raw) {
		name, n, err := readWStr(raw[off:])
		if err != nil {
			return nil, fmt.Errorf("manifestdb: %q: file_name: %w", path, err)
		}
		off += n

		size, n, err := readIntBE(raw[off:])
		if err != nil {
			return nil, fmt.Errorf("manifestdb: %q: file_size: %w", path, err)
		}
		off += n

		out = append(out, &ListEntry{FileName: backslashToSlash(name), FileSize: size})
	}

	return out, nil
}

func (b *BinaryBackend) WriteManifests(dir string, staged map[string][]*Entry, cached *Database) error {
	for name, entries := range staged {
		if !IsDirty(cached.Manifests[name], entries) {
			logrus.Debugf("manifestdb: manifest %q is unchanged, skipping rewrite", name)
			continue
		}
		if err := writeMbmFile(filepath.Join(dir, name+mbmExt), entries); err != nil {
			return err
		}
	}

	return writeKeyFile(filepath.Join(dir, keyFile), b.Key)
}

func writeMbmFile(path string, entries []*Entry) error {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(len(entries)))

	for _, e := range entries {
		payload := encodeEntryPayload(e)
		binary.Write(&buf, binary.LittleEndian, uint32(len(payload)))
		buf.Write(payload)
	}

	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func encodeEntryPayload(e *Entry) []byte {
	var b bytes.Buffer
	writeWStr(&b, slashToBackslash(e.FileName))
	writeWStr(&b, slashToBackslash(e.DownloadName))
	writeWStr(&b, e.FileHash)
	writeWStr(&b, e.DownloadHash)
	writeIntBE(&b, e.FileSize)
	writeIntBE(&b, e.DownloadSize)
	writeIntBE(&b, uint32(e.Flags.SerializedLow16()))
	return b.Bytes()
}

func (b *BinaryBackend) WriteLists(dir string, staged map[ListKey][]*ListEntry) error {
	byDir := make(map[string][]*ListEntry)
	for key, entries := range staged {
		byDir[key.Directory] = append(byDir[key.Directory], entries...)
	}

	for directory, entries := range byDir {
		if err := writeMbamFile(filepath.Join(dir, directory+mbamExt), entries); err != nil {
			return err
		}
	}
	return nil
}

func writeMbamFile(path string, entries []*ListEntry) error {
	var buf bytes.Buffer
	for _, e := range entries {
		writeWStr(&buf, slashToBackslash(e.FileName))
		writeIntBE(&buf, e.FileSize)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func writeKeyFile(path string, key cipher.Key) error {
	var buf bytes.Buffer
	for _, word := range key {
		binary.Write(&buf, binary.LittleEndian, word)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func (b *BinaryBackend) DeleteManifests(dir string, staged map[string][]*Entry, cached *Database) error {
	for name := range cached.Manifests {
		if _, ok := staged[name]; ok {
			continue
		}
		if err := removeIfExists(filepath.Join(dir, name+mbmExt)); err != nil {
			return err
		}
	}
	return nil
}

func (b *BinaryBackend) DeleteLists(dir string, staged map[ListKey][]*ListEntry, cached *Database) error {
	stagedDirs := make(map[string]bool)
	for key := range staged {
		stagedDirs[key.Directory] = true
	}
	for key := range cached.Lists {
		if stagedDirs[key.Directory] {
			continue
		}
		if err := removeIfExists(filepath.Join(dir, key.Directory+mbamExt)); err != nil {
			return err
		}
	}
	return nil
}

// writeWStr appends a UTF-16LE-encoded string followed by a NUL code
// unit.
func writeWStr(b *bytes.Buffer, s string) {
	encoded, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		// Malformed UTF-8 input never reaches here in practice; fall
		// back to an empty string rather than panicking.
		encoded = nil
	}
	b.Write(encoded)
	b.Write([]byte{0x00, 0x00})
}

// readWStr reads a NUL-code-unit-terminated UTF-16LE string, returning
// the decoded string and the number of bytes consumed (including the
// terminator).
func readWStr(data []byte) (string, int, error) {
	for i := 0; i+1 < len(data); i += 2 {
		if data[i] == 0 && data[i+1] == 0 {
			decoded, err := utf16le.NewDecoder().Bytes(data[:i])
			if err != nil {
				return "", 0, err
			}
			return string(decoded), i + 2, nil
		}
	}
	return "", 0, fmt.Errorf("manifestdb: unterminated wide string")
}

// writeIntBE appends a 4-byte big-endian integer followed by a NUL
// code unit.
func writeIntBE(b *bytes.Buffer, v uint32) {
	binary.Write(b, binary.BigEndian, v)
	b.Write([]byte{0x00, 0x00})
}

// readIntBE reads a 4-byte big-endian integer followed by its NUL
// code-unit terminator, returning the value and bytes consumed.
func readIntBE(data []byte) (uint32, int, error) {
	if len(data) < 6 {
		return 0, 0, fmt.Errorf("manifestdb: short integer field")
	}
	v := binary.BigEndian.Uint32(data[:4])
	return v, 6, nil
}
