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
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadSafeStringPlain(t *testing.T) {
	buf := append([]byte{5, 0xF0}, []byte("hello")...)
	s, err := readSafeString(bytes.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, "hello", s)
}

func TestReadSafeStringEmpty(t *testing.T) {
	buf := []byte{0, 0xF0}
	s, err := readSafeString(bytes.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, "", s)
}

func TestReadSafeStringInverted(t *testing.T) {
	payload := []byte("hi")
	inverted := make([]byte, len(payload))
	for i, b := range payload {
		inverted[i] = ^b
	}
	buf := append([]byte{2, 0xF0}, inverted...)
	s, err := readSafeString(bytes.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, "hi", s)
}

func TestReadSafeStringLegacyCount(t *testing.T) {
	// High nibble of the length word is 0: a legacy dummy uint16 follows
	// before the real (masked) length.
	buf := []byte{3, 0, 0, 0}
	buf = append(buf, []byte("abc")...)
	s, err := readSafeString(bytes.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, "abc", s)
}

func TestWriteSafeStringRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSafeString(&buf, "avatar.customization"))

	s, err := readSafeString(&buf)
	require.NoError(t, err)
	require.Equal(t, "avatar.customization", s)
}

func TestWriteSafeStringRejectsNonASCII(t *testing.T) {
	var buf bytes.Buffer
	err := WriteSafeString(&buf, string([]byte{0x80, 'x'}))
	require.Error(t, err)
}

func TestReadLocationPositiveRange(t *testing.T) {
	// n=33 -> signed = 0 -> prefix=0, suffix=0
	buf := []byte{33, 0, 0, 0, 0xAB, 0xCD}
	loc, err := readLocation(bytes.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, int32(0), loc.Prefix)
	require.Equal(t, int32(0), loc.Suffix)
}

func TestReadLocationHighBitSet(t *testing.T) {
	// n = 0xFF000001 -> signed = 0 -> prefix = 0, suffix = 0.
	buf := []byte{0x01, 0x00, 0x00, 0xFF, 0, 0}
	loc, err := readLocation(bytes.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, int32(0), loc.Prefix)
	require.Equal(t, int32(0), loc.Suffix)
}

func TestReadLocationHighBitSetNonzeroPrefix(t *testing.T) {
	// n = 0xFF020006 -> signed = 0x00020005 -> pre-negation prefix = 2,
	// suffix = 5, then prefix is negated last: (prefix=-2, suffix=5).
	// Computing suffix from an already-negated prefix (the bug this
	// guards against) instead yields suffix = 262149.
	buf := []byte{0x06, 0x00, 0x02, 0xFF, 0, 0}
	loc, err := readLocation(bytes.NewReader(buf))
	require.NoError(t, err)
	require.Equal(t, int32(-2), loc.Prefix)
	require.Equal(t, int32(5), loc.Suffix)
}
