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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/urumanifest/manifestgen/pkg/cipher"
)

func sampleEntries() []*Entry {
	return []*Entry{
		{
			FileName: "dat/Teledahn_District_Nexus.prp", DownloadName: "data/prp/Teledahn_District_Nexus.prp",
			FileHash: "abc123", DownloadHash: "def456", FileSize: 1000, DownloadSize: 500,
			Flags: Installer | Dirty,
		},
		{
			FileName: "Python/xFoo.py", DownloadName: "scripts/python_code/xFoo.py",
			FileHash: "111", DownloadHash: "222", FileSize: 20, DownloadSize: 10,
			Flags: Script | Consumable,
		},
	}
}

func TestPlainBackendRoundtrip(t *testing.T) {
	dir := t.TempDir()
	b := &PlainBackend{}
	cached := NewDatabase()

	staged := map[string][]*Entry{"ExternalThin": sampleEntries()}
	require.NoError(t, b.WriteManifests(dir, staged, cached))

	loaded, err := b.Load(dir)
	require.NoError(t, err)

	got := loaded.Manifests["ExternalThin"]
	require.Len(t, got, 2)
	require.Equal(t, "dat/Teledahn_District_Nexus.prp", got[0].FileName)
	// Serialized flags strip internal-only bits (Dirty, Script, Consumable).
	require.Equal(t, Installer, got[0].Flags)
	require.Equal(t, Flags(0), got[1].Flags)
}

func TestPlainBackendListRoundtrip(t *testing.T) {
	dir := t.TempDir()
	b := &PlainBackend{}

	staged := map[ListKey][]*ListEntry{
		{Directory: "avi", Extension: "bik"}: {{FileName: "intro.bik", FileSize: 4096}},
	}
	require.NoError(t, b.WriteLists(dir, staged))

	loaded, err := b.Load(dir)
	require.NoError(t, err)
	require.Len(t, loaded.Lists[ListKey{Directory: "avi", Extension: "bik"}], 1)
}

func TestBinaryBackendRoundtrip(t *testing.T) {
	dir := t.TempDir()
	b := &BinaryBackend{Key: cipher.DefaultXTEAKey}
	cached := NewDatabase()

	staged := map[string][]*Entry{"InternalFull": sampleEntries()}
	require.NoError(t, b.WriteManifests(dir, staged, cached))

	loaded, err := b.Load(dir)
	require.NoError(t, err)

	got := loaded.Manifests["InternalFull"]
	require.Len(t, got, 2)
	require.Equal(t, "Python/xFoo.py", got[1].FileName)
	require.Equal(t, uint32(20), got[1].FileSize)
}

func TestBinaryBackendPersistsKey(t *testing.T) {
	dir := t.TempDir()
	b := &BinaryBackend{Key: cipher.Key{1, 2, 3, 4}}
	require.NoError(t, b.WriteManifests(dir, map[string][]*Entry{}, NewDatabase()))

	raw, err := os.ReadFile(filepath.Join(dir, keyFile))
	require.NoError(t, err)
	require.Len(t, raw, 16)
}

func TestIsDirtyOnFileNameSetDifference(t *testing.T) {
	cached := []*Entry{{FileName: "a"}}
	staged := []*Entry{{FileName: "b"}}
	require.True(t, IsDirty(cached, staged))
}

func TestIsDirtyOnDirtyFlag(t *testing.T) {
	cached := []*Entry{{FileName: "a"}}
	staged := []*Entry{{FileName: "a", Flags: Dirty}}
	require.True(t, IsDirty(cached, staged))
}

func TestIsDirtyFalseWhenUnchanged(t *testing.T) {
	cached := []*Entry{{FileName: "a"}}
	staged := []*Entry{{FileName: "a"}}
	require.False(t, IsDirty(cached, staged))
}
