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

package hashutil

import (
	"compress/gzip"
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/urumanifest/manifestgen/pkg/cipher"
)

func TestMD5File(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "sample.txt")
	content := []byte("The quick brown fox jumps over the lazy dog!")
	require.NoError(t, os.WriteFile(p, content, 0o644))

	digest, size, err := MD5File(p)
	require.NoError(t, err)
	require.EqualValues(t, len(content), size)

	sum := md5.Sum(content)
	require.Equal(t, hex.EncodeToString(sum[:]), digest)
}

func TestGzipAndHash(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "src.bin.gz")
	content := []byte("repeated repeated repeated repeated content")
	require.NoError(t, os.WriteFile(src, content, 0o644))

	digest, size, err := GzipAndHash(src, dst)
	require.NoError(t, err)
	require.Greater(t, size, int64(0))

	gzBytes, err := os.ReadFile(dst)
	require.NoError(t, err)
	sum := md5.Sum(gzBytes)
	require.Equal(t, hex.EncodeToString(sum[:]), digest)

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	r, err := gzip.NewReader(f)
	require.NoError(t, err)
	decompressed, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, content, decompressed)
}

func TestContentEqualRawBytes(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("identical"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("identical"), 0o644))

	eq, err := ContentEqual(a, b, nil)
	require.NoError(t, err)
	require.True(t, eq)
}

func TestContentEqualDifferentSizes(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("short"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("much much longer content"), 0o644))

	eq, err := ContentEqual(a, b, nil)
	require.NoError(t, err)
	require.False(t, eq)
}

func TestContentEqualAcrossEncryption(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain.age")
	encrypted := filepath.Join(dir, "encrypted.age")
	content := []byte("SequencePrefix=1\nPage=BuiltIn\n")
	require.NoError(t, os.WriteFile(plain, content, 0o644))

	key := cipher.DefaultXTEAKey
	w, err := cipher.Open(encrypted, cipher.WriteText, cipher.XTEA, &key)
	require.NoError(t, err)
	_, err = w.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	eq, err := ContentEqual(plain, encrypted, &key)
	require.NoError(t, err)
	require.True(t, eq)
}
