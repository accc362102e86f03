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

package page

import (
	"encoding/binary"
	"fmt"
	"io"
)

const prpVersion = 6

// Class ids the reader materializes; every other class id is skipped
// by the data_pos/data_length recorded in its key.
const (
	classSoundBuffer     = 0x0029
	classPythonFileMod   = 0x00A2
	classRelevanceRegion = 0x011E
)

// Sound buffer flag bits.
const (
	soundIsExternal       = 1 << 0
	soundAlwaysExternal   = 1 << 1
	soundOnlyLeft         = 1 << 2
	soundOnlyRight        = 1 << 3
	soundStreamCompressed = 1 << 4
)

// SynchedObject flag bits gating PythonFileMod's optional state lists.
const (
	synchedHasExcludedStates = 1 << 4
	synchedHasVolatileStates = 1 << 6
)

// SoundBufferRef is a dependency-relevant SoundBuffer key object.
type SoundBufferRef struct {
	FileName  string
	CacheKind string // sound_stream_compressed | sound_cache_split | sound_cache_stereo
}

// PythonFileModRef is a dependency-relevant PythonFileMod key object.
type PythonFileModRef struct {
	ModuleFileName string // "<name>.py"
}

// Page is the subset of a parsed PRP page relevant to dependency
// extraction.
type Page struct {
	Age     string
	Name    string
	Version uint16

	SoundBuffers       []SoundBufferRef
	PythonFileMods     []PythonFileModRef
	HasRelevanceRegion bool
}

// pageKey is the closed tagged union over the three class bodies this
// reader materializes. Other class ids never implement it; their
// bytes are skipped entirely.
type pageKey interface {
	isPageKey()
}

type soundBufferKey struct{ ref SoundBufferRef }
type pythonFileModKey struct{ ref PythonFileModRef }
type relevanceRegionKey struct{ present bool }

func (soundBufferKey) isPageKey()     {}
func (pythonFileModKey) isPageKey()   {}
func (relevanceRegionKey) isPageKey() {}

// ParsePRP parses a binary PRP v6 page, returning only the
// dependency-relevant records.
func ParsePRP(r io.ReaderAt, size int64) (*Page, error) {
	sr := io.NewSectionReader(r, 0, size)

	var version uint32
	if err := binary.Read(sr, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("page: prp version: %w", err)
	}
	if version != prpVersion {
		return nil, fmt.Errorf("page: unsupported prp version %d (want %d)", version, prpVersion)
	}

	if _, err := readLocation(sr); err != nil {
		return nil, fmt.Errorf("page: prp header location: %w", err)
	}

	age, err := readSafeString(sr)
	if err != nil {
		return nil, fmt.Errorf("page: prp header age name: %w", err)
	}
	name, err := readSafeString(sr)
	if err != nil {
		return nil, fmt.Errorf("page: prp header page name: %w", err)
	}

	var version2 uint16
	if err := binary.Read(sr, binary.LittleEndian, &version2); err != nil {
		return nil, fmt.Errorf("page: prp header version2: %w", err)
	}

	var checksum, dataStart, indexPos uint32
	if err := binary.Read(sr, binary.LittleEndian, &checksum); err != nil {
		return nil, fmt.Errorf("page: prp header checksum: %w", err)
	}
	if err := binary.Read(sr, binary.LittleEndian, &dataStart); err != nil {
		return nil, fmt.Errorf("page: prp header data_start: %w", err)
	}
	if err := binary.Read(sr, binary.LittleEndian, &indexPos); err != nil {
		return nil, fmt.Errorf("page: prp header index_pos: %w", err)
	}
	_ = checksum
	_ = dataStart

	pg := &Page{Age: age, Name: name, Version: version2}

	if _, err := sr.Seek(int64(indexPos), io.SeekStart); err != nil {
		return nil, fmt.Errorf("page: seeking to index: %w", err)
	}

	var numGroups uint32
	if err := binary.Read(sr, binary.LittleEndian, &numGroups); err != nil {
		return nil, fmt.Errorf("page: num_class_groups: %w", err)
	}

	for g := uint32(0); g < numGroups; g++ {
		var classID uint16
		var keylistLen uint32
		var discard uint8
		var numKeys uint32

		if err := binary.Read(sr, binary.LittleEndian, &classID); err != nil {
			return nil, fmt.Errorf("page: class group %d class_id: %w", g, err)
		}
		if err := binary.Read(sr, binary.LittleEndian, &keylistLen); err != nil {
			return nil, fmt.Errorf("page: class group %d keylist length: %w", g, err)
		}
		if err := binary.Read(sr, binary.LittleEndian, &discard); err != nil {
			return nil, fmt.Errorf("page: class group %d discard byte: %w", g, err)
		}
		if err := binary.Read(sr, binary.LittleEndian, &numKeys); err != nil {
			return nil, fmt.Errorf("page: class group %d num_keys: %w", g, err)
		}
		_ = keylistLen

		keys := make([]plKey, numKeys)
		for i := range keys {
			k, err := readKey(sr)
			if err != nil {
				return nil, fmt.Errorf("page: class group %d key %d: %w", g, i, err)
			}
			keys[i] = k
		}

		indexResume, err := sr.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, fmt.Errorf("page: class group %d: %w", g, err)
		}

		for _, k := range keys {
			switch classID {
			case classSoundBuffer, classPythonFileMod, classRelevanceRegion:
				variant, err := readPageKeyBody(sr, classID, k)
				if err != nil {
					return nil, fmt.Errorf("page: class %#x body at %d: %w", classID, k.DataPos, err)
				}
				applyPageKey(pg, variant)
			default:
				// Unmaterialized class: skip by recorded position, never read.
			}
		}

		if _, err := sr.Seek(indexResume, io.SeekStart); err != nil {
			return nil, fmt.Errorf("page: class group %d: returning to index: %w", g, err)
		}
	}

	return pg, nil
}

// readPageKeyBody seeks to the key's recorded data position and parses
// exactly one of the three materialized class bodies.
func readPageKeyBody(sr *io.SectionReader, classID uint16, k plKey) (pageKey, error) {
	if _, err := sr.Seek(int64(k.DataPos), io.SeekStart); err != nil {
		return nil, err
	}
	lr := io.LimitReader(sr, int64(k.DataLength))

	switch classID {
	case classSoundBuffer:
		ref, err := readSoundBuffer(lr)
		if err != nil {
			return nil, err
		}
		return soundBufferKey{ref: ref}, nil
	case classPythonFileMod:
		ref, err := readPythonFileMod(lr)
		if err != nil {
			return nil, err
		}
		return pythonFileModKey{ref: ref}, nil
	case classRelevanceRegion:
		present, err := readRelevanceRegion(lr)
		if err != nil {
			return nil, err
		}
		return relevanceRegionKey{present: present}, nil
	default:
		return nil, fmt.Errorf("page: unmaterialized class %#x", classID)
	}
}

func applyPageKey(pg *Page, k pageKey) {
	switch v := k.(type) {
	case soundBufferKey:
		pg.SoundBuffers = append(pg.SoundBuffers, v.ref)
	case pythonFileModKey:
		pg.PythonFileMods = append(pg.PythonFileMods, v.ref)
	case relevanceRegionKey:
		if v.present {
			pg.HasRelevanceRegion = true
		}
	}
}

// readSoundBuffer parses a SoundBuffer body (KeyedObject + fields).
func readSoundBuffer(r io.Reader) (SoundBufferRef, error) {
	if _, err := readUoid(r); err != nil {
		return SoundBufferRef{}, fmt.Errorf("keyed object uoid: %w", err)
	}

	var flags, dataLength uint32
	if err := binary.Read(r, binary.LittleEndian, &flags); err != nil {
		return SoundBufferRef{}, fmt.Errorf("flags: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &dataLength); err != nil {
		return SoundBufferRef{}, fmt.Errorf("data_length: %w", err)
	}

	fileName, err := readSafeString(r)
	if err != nil {
		return SoundBufferRef{}, fmt.Errorf("file_name: %w", err)
	}

	var formatTag, channels, blockAlign, bitsPerSample uint16
	var samplesPerSec, avgBytesPerSec uint32
	if err := binary.Read(r, binary.LittleEndian, &formatTag); err != nil {
		return SoundBufferRef{}, err
	}
	if err := binary.Read(r, binary.LittleEndian, &channels); err != nil {
		return SoundBufferRef{}, err
	}
	if err := binary.Read(r, binary.LittleEndian, &samplesPerSec); err != nil {
		return SoundBufferRef{}, err
	}
	if err := binary.Read(r, binary.LittleEndian, &avgBytesPerSec); err != nil {
		return SoundBufferRef{}, err
	}
	if err := binary.Read(r, binary.LittleEndian, &blockAlign); err != nil {
		return SoundBufferRef{}, err
	}
	if err := binary.Read(r, binary.LittleEndian, &bitsPerSample); err != nil {
		return SoundBufferRef{}, err
	}

	var kind string
	switch {
	case flags&soundStreamCompressed != 0:
		kind = "sound_stream_compressed"
	case flags&(soundOnlyLeft|soundOnlyRight) != 0:
		kind = "sound_cache_split"
	default:
		kind = "sound_cache_stereo"
	}

	return SoundBufferRef{FileName: fileName, CacheKind: kind}, nil
}

// readPythonFileMod parses a PythonFileMod body (SynchedObject +
// MultiModifier + file_name).
func readPythonFileMod(r io.Reader) (PythonFileModRef, error) {
	if _, err := readUoid(r); err != nil {
		return PythonFileModRef{}, fmt.Errorf("keyed object uoid: %w", err)
	}

	var synchFlags uint32
	if err := binary.Read(r, binary.LittleEndian, &synchFlags); err != nil {
		return PythonFileModRef{}, fmt.Errorf("synched flags: %w", err)
	}

	if synchFlags&synchedHasExcludedStates != 0 {
		if err := skipCountedByteLists(r); err != nil {
			return PythonFileModRef{}, fmt.Errorf("excluded states: %w", err)
		}
	}
	if synchFlags&synchedHasVolatileStates != 0 {
		if err := skipCountedByteLists(r); err != nil {
			return PythonFileModRef{}, fmt.Errorf("volatile states: %w", err)
		}
	}

	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return PythonFileModRef{}, fmt.Errorf("multi modifier count: %w", err)
	}
	if _, err := io.CopyN(io.Discard, r, int64(n)*4); err != nil {
		return PythonFileModRef{}, fmt.Errorf("multi modifier payload: %w", err)
	}

	fileName, err := readSafeString(r)
	if err != nil {
		return PythonFileModRef{}, fmt.Errorf("file_name: %w", err)
	}

	return PythonFileModRef{ModuleFileName: fileName + ".py"}, nil
}

// readRelevanceRegion parses a RelevanceRegion body (ObjInterface +
// region Uoid) and reports whether a region key is present.
func readRelevanceRegion(r io.Reader) (bool, error) {
	if _, err := readUoid(r); err != nil {
		return false, fmt.Errorf("keyed object uoid: %w", err)
	}

	var synchFlags uint32
	if err := binary.Read(r, binary.LittleEndian, &synchFlags); err != nil {
		return false, fmt.Errorf("synched flags: %w", err)
	}
	if synchFlags&synchedHasExcludedStates != 0 {
		if err := skipCountedByteLists(r); err != nil {
			return false, fmt.Errorf("excluded states: %w", err)
		}
	}
	if synchFlags&synchedHasVolatileStates != 0 {
		if err := skipCountedByteLists(r); err != nil {
			return false, fmt.Errorf("volatile states: %w", err)
		}
	}

	if _, err := readUoid(r); err != nil {
		return false, fmt.Errorf("owner uoid: %w", err)
	}

	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return false, fmt.Errorf("obj interface count: %w", err)
	}
	if _, err := io.CopyN(io.Discard, r, int64(n)*4); err != nil {
		return false, fmt.Errorf("obj interface payload: %w", err)
	}

	region, err := readUoid(r)
	if err != nil {
		return false, fmt.Errorf("region uoid: %w", err)
	}

	return region.Name != "" || region.ObjectID != 0 || region.Class != 0, nil
}

// skipCountedByteLists discards one counted list: a uint32 element
// count followed by that many uint16-length-prefixed byte strings (the
// excluded/volatile state list entries).
func skipCountedByteLists(r io.Reader) error {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return err
		}
		if _, err := io.CopyN(io.Discard, r, int64(n)); err != nil {
			return err
		}
	}
	return nil
}
