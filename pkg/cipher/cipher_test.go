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

package cipher

import (
	"bytes"
	"encoding/hex"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const knownPlaintext = "The quick brown fox jumps over the lazy dog!"

func TestXTEAKnownAnswer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xtea.bin")

	w, err := Open(path, WriteBinary, XTEA, nil)
	require.NoError(t, err)
	_, err = w.Write([]byte(knownPlaintext))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	wantHeader, _ := hex.DecodeString("77686174646f796f75736565" + "2c000000")
	require.Equal(t, wantHeader, raw[:16])

	r, err := Open(path, ReadBinary, Unspecified, nil)
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, knownPlaintext, string(got))
	require.Equal(t, XTEA, r.Kind())
}

func TestBTEAKnownAnswer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "btea.bin")

	n := new(big.Int)
	n.SetString("31415926535897932384626433832795", 16)
	key, err := KeyFromInt(n)
	require.NoError(t, err)

	w, err := Open(path, WriteBinary, BTEA, &key)
	require.NoError(t, err)
	_, err = w.Write([]byte(knownPlaintext))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	require.True(t, bytes.HasPrefix(raw, []byte("notthedroids")))

	r, err := Open(path, ReadBinary, Unspecified, &key)
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, knownPlaintext, string(got))
	require.Equal(t, BTEA, r.Kind())
}

func TestStreamBoundaries(t *testing.T) {
	dir := t.TempDir()

	t.Run("empty write produces a bare header", func(t *testing.T) {
		path := filepath.Join(dir, "empty.bin")
		w, err := Open(path, WriteBinary, XTEA, nil)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Len(t, raw, headerLen)
		require.Equal(t, uint32(0), readLengthField(raw))

		r, err := Open(path, ReadBinary, Unspecified, nil)
		require.NoError(t, err)
		defer r.Close()
		got, err := io.ReadAll(r)
		require.NoError(t, err)
		require.Empty(t, got)
	})

	t.Run("exactly one block writes no visible padding", func(t *testing.T) {
		path := filepath.Join(dir, "oneblock.bin")
		plaintext := "12345678"
		w, err := Open(path, WriteBinary, XTEA, nil)
		require.NoError(t, err)
		_, err = w.Write([]byte(plaintext))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Len(t, raw, headerLen+blockSize)

		r, err := Open(path, ReadBinary, Unspecified, nil)
		require.NoError(t, err)
		defer r.Close()
		got, err := io.ReadAll(r)
		require.NoError(t, err)
		require.Equal(t, plaintext, string(got))
	})

	t.Run("partial final block hides zero padding", func(t *testing.T) {
		path := filepath.Join(dir, "partial.bin")
		plaintext := "12345"
		w, err := Open(path, WriteBinary, BTEA, &DefaultXTEAKey)
		require.NoError(t, err)
		_, err = w.Write([]byte(plaintext))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		r, err := Open(path, ReadBinary, Unspecified, &DefaultXTEAKey)
		require.NoError(t, err)
		defer r.Close()
		got, err := io.ReadAll(r)
		require.NoError(t, err)
		require.Equal(t, plaintext, string(got))
	})
}

func TestRoundtripAcrossMultipleReads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunked.bin")
	plaintext := bytes.Repeat([]byte("abcdefghijklmnopqrstuvwxyz"), 37)

	w, err := Open(path, WriteBinary, XTEA, nil)
	require.NoError(t, err)
	require.NoError(t, writeInChunks(w, plaintext, 7))
	require.NoError(t, w.Close())

	r, err := Open(path, ReadBinary, Unspecified, nil)
	require.NoError(t, err)
	defer r.Close()

	var out bytes.Buffer
	buf := make([]byte, 5)
	for {
		n, err := r.Read(buf)
		out.Write(buf[:n])
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}

	require.Equal(t, plaintext, out.Bytes())
}

func writeInChunks(w io.Writer, data []byte, chunk int) error {
	for len(data) > 0 {
		n := chunk
		if n > len(data) {
			n = len(data)
		}
		if _, err := w.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func readLengthField(raw []byte) uint32 {
	return uint32(raw[12]) | uint32(raw[13])<<8 | uint32(raw[14])<<16 | uint32(raw[15])<<24
}
