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

// Package cipher implements the two 32-round block ciphers (XTEA and
// BTEA) the Plasma engine uses to frame its encrypted game files, and
// wraps them as bounded streams behind a common 16-byte header.
package cipher

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Key is the 128-bit key shared by both ciphers, stored as four
// 32-bit words in the order they are consumed by the round functions.
type Key [4]uint32

// DefaultXTEAKey is the well-known default key used when an XTEA
// stream's key is not supplied by the caller.
var DefaultXTEAKey = Key{0x6C0A5452, 0x03827D0F, 0x3A170B92, 0x16DB7FC2}

// KeyFromWords builds a Key from four 32-bit words, in natural order.
func KeyFromWords(words [4]uint32) Key {
	return Key(words)
}

// KeyFromHex parses a 32-hex-digit string into a Key using big-endian
// grouping of the underlying 16-byte buffer, per spec.
func KeyFromHex(s string) (Key, error) {
	if len(s) != 32 {
		return Key{}, fmt.Errorf("cipher: key hex string must be 32 digits, got %d", len(s))
	}

	raw, err := hex.DecodeString(s)
	if err != nil {
		return Key{}, fmt.Errorf("cipher: invalid key hex string: %w", err)
	}

	return keyFromBytes(raw)
}

// KeyFromInt parses a 128-bit integer into a Key using the same
// big-endian byte grouping as KeyFromHex.
func KeyFromInt(n *big.Int) (Key, error) {
	raw := n.Bytes()
	if len(raw) > 16 {
		return Key{}, fmt.Errorf("cipher: key integer overflows 128 bits")
	}

	padded := make([]byte, 16)
	copy(padded[16-len(raw):], raw)

	return keyFromBytes(padded)
}

// keyFromBytes groups a 16-byte buffer into four big-endian 32-bit
// words, matching the "four 32-bit words (big-endian grouping from the
// 16-byte buffer)" key form from spec.
func keyFromBytes(raw []byte) (Key, error) {
	if len(raw) != 16 {
		return Key{}, fmt.Errorf("cipher: key buffer must be 16 bytes, got %d", len(raw))
	}

	var k Key
	for i := range k {
		k[i] = binary.BigEndian.Uint32(raw[i*4 : i*4+4])
	}

	return k, nil
}
