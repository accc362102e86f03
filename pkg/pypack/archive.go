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

package pypack

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/urumanifest/manifestgen/pkg/cipher"
	"github.com/urumanifest/manifestgen/pkg/page"
)

// moduleCode is one compiled module's marshalled byte-code, keyed by
// its dotted module name.
type moduleCode struct {
	name string
	code []byte
}

// writeArchive serializes modules (order doesn't matter; the function
// sorts for determinism) to destPath as a single BTEA-framed stream:
//
//	uint32 num_entries
//	repeat: safe_string module_name, uint32 offset
//	repeat: uint32 blob_length, byte blob[blob_length]
//
// offset is the absolute byte offset of each blob into the decrypted
// archive, computed up front so the write never needs to seek.
func writeArchive(destPath string, modules []moduleCode, key cipher.Key) error {
	sort.Slice(modules, func(i, j int) bool { return modules[i].name < modules[j].name })

	headerSize := uint32(4)
	for _, m := range modules {
		headerSize += 2 + uint32(len(m.name)) + 4
	}

	offsets := make([]uint32, len(modules))
	dataOffset := uint32(0)
	for i, m := range modules {
		offsets[i] = headerSize + dataOffset
		dataOffset += 4 + uint32(len(m.code))
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("pypack: creating archive directory: %w", err)
	}

	stream, err := cipher.Open(destPath, cipher.WriteBinary, cipher.BTEA, &key)
	if err != nil {
		return fmt.Errorf("pypack: opening archive %q for write: %w", destPath, err)
	}

	if err := writeArchiveBody(stream, modules, offsets); err != nil {
		stream.Close()
		return err
	}

	return stream.Close()
}

func writeArchiveBody(stream *cipher.Stream, modules []moduleCode, offsets []uint32) error {
	var numEntries [4]byte
	binary.LittleEndian.PutUint32(numEntries[:], uint32(len(modules)))
	if _, err := stream.Write(numEntries[:]); err != nil {
		return fmt.Errorf("pypack: writing entry count: %w", err)
	}

	for i, m := range modules {
		if err := page.WriteSafeString(stream, m.name); err != nil {
			return fmt.Errorf("pypack: writing module name %q: %w", m.name, err)
		}
		var offBuf [4]byte
		binary.LittleEndian.PutUint32(offBuf[:], offsets[i])
		if _, err := stream.Write(offBuf[:]); err != nil {
			return fmt.Errorf("pypack: writing offset for %q: %w", m.name, err)
		}
	}

	for _, m := range modules {
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(m.code)))
		if _, err := stream.Write(lenBuf[:]); err != nil {
			return fmt.Errorf("pypack: writing blob length for %q: %w", m.name, err)
		}
		if _, err := stream.Write(m.code); err != nil {
			return fmt.Errorf("pypack: writing blob for %q: %w", m.name, err)
		}
	}

	return nil
}
