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
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Kind identifies which cipher (if any) frames a stream.
type Kind int

const (
	// Unspecified means the stream carries no recognized magic and is
	// treated as a plain, unframed file.
	Unspecified Kind = iota
	XTEA
	BTEA
)

const (
	magicXTEA    = "whatdoyousee"
	magicXTEAAlt = "BriceIsSmart"
	magicBTEA    = "notthedroids"
	magicLen     = 12
	headerLen    = magicLen + 4
	blockSize    = 8
)

func (k Kind) String() string {
	switch k {
	case XTEA:
		return "XTEA"
	case BTEA:
		return "BTEA"
	default:
		return "Unspecified"
	}
}

func magicFor(k Kind) (string, error) {
	switch k {
	case XTEA:
		return magicXTEA, nil
	case BTEA:
		return magicBTEA, nil
	default:
		return "", fmt.Errorf("cipher: kind %s has no magic", k)
	}
}

// blockCodec is the common shape of the two ciphers: fixed block size,
// in-place encrypt/decrypt of one block.
type blockCodec interface {
	BlockSize() int
	EncryptBlock(block []byte)
	DecryptBlock(block []byte)
}

func codecFor(k Kind, key *Key) (blockCodec, error) {
	switch k {
	case XTEA:
		// XTEA always uses the hardcoded default key; only BTEA
		// (kEncDroid) is ever keyed by the droid key. A caller's key
		// argument is irrelevant here and intentionally ignored.
		return xteaCodec{key: DefaultXTEAKey}, nil
	case BTEA:
		if key == nil {
			return nil, errors.New("cipher: BTEA requires an explicit key")
		}
		return bteaCodec{key: *key}, nil
	default:
		return nil, fmt.Errorf("cipher: kind %s has no codec", k)
	}
}

// DetectMagic peeks at the leading bytes of r (without consuming more
// than necessary on a *bufio.Reader) and reports which cipher, if any,
// framed the stream. Any other or short header is reported as
// Unspecified, per spec.
func DetectMagic(r *bufio.Reader) (Kind, error) {
	peek, err := r.Peek(headerLen)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Unspecified, nil
		}
		return Unspecified, err
	}

	switch string(peek[:magicLen]) {
	case magicXTEA, magicXTEAAlt:
		return XTEA, nil
	case magicBTEA:
		return BTEA, nil
	default:
		return Unspecified, nil
	}
}

// Mode selects the direction and representation a Stream is opened in.
type Mode int

const (
	ReadBinary Mode = iota
	ReadText
	WriteBinary
	WriteText
)

// Stream is a random-access-bounded, sequentially-read/written encrypted
// file stream. It guarantees: sequential reads yield exactly `length`
// plaintext bytes regardless of block padding; on Close after a write,
// the header is rewritten with the correct length; trailing padding
// bytes in the last block are never exposed to callers.
type Stream struct {
	f        *os.File
	kind     Kind
	key      *Key
	mode     Mode
	codec    blockCodec
	length   uint32 // plaintext length; known up front on read, accumulated on write
	consumed uint32 // plaintext bytes decoded into pendingPT so far (read only)

	br        *bufio.Reader
	pendingPT []byte // leftover decrypted plaintext not yet consumed by the caller

	bw         *bufio.Writer
	pendingRaw []byte // buffered plaintext bytes not yet forming a full block, on write
}

// Open opens path for the requested mode. On read, kind may be
// Unspecified to request auto-detection from the magic. On write, kind
// must be XTEA or BTEA (plain-file writes are not framed by this
// package; callers wanting a plain file should just use os.Create).
func Open(path string, mode Mode, kind Kind, key *Key) (*Stream, error) {
	switch mode {
	case ReadBinary, ReadText:
		return openRead(path, kind, key)
	case WriteBinary, WriteText:
		return openWrite(path, mode, kind, key)
	default:
		return nil, fmt.Errorf("cipher: unknown mode %d", mode)
	}
}

func openRead(path string, kind Kind, key *Key) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	br := bufio.NewReaderSize(f, 64*1024)

	detected, err := DetectMagic(br)
	if err != nil {
		f.Close()
		return nil, err
	}

	effective := kind
	if effective == Unspecified {
		effective = detected
	}

	s := &Stream{f: f, kind: effective, key: key, mode: ReadBinary, br: br}

	if effective == Unspecified {
		// Plain file: no header to skip; length is the file size.
		info, statErr := f.Stat()
		if statErr != nil {
			f.Close()
			return nil, statErr
		}
		s.length = uint32(info.Size())
		return s, nil
	}

	// Consume the 12-byte magic (already peeked) and the length word.
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(br, header); err != nil {
		f.Close()
		return nil, fmt.Errorf("cipher: short header: %w", err)
	}
	s.length = binary.LittleEndian.Uint32(header[magicLen:])

	codec, err := codecFor(effective, key)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.codec = codec

	return s, nil
}

func openWrite(path string, mode Mode, kind Kind, key *Key) (*Stream, error) {
	if kind != XTEA && kind != BTEA {
		return nil, fmt.Errorf("cipher: write mode requires an explicit XTEA/BTEA kind")
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	codec, err := codecFor(kind, key)
	if err != nil {
		f.Close()
		return nil, err
	}

	magic, err := magicFor(kind)
	if err != nil {
		f.Close()
		return nil, err
	}

	// Write a placeholder header; Close rewrites the length word.
	if _, err := f.Write([]byte(magic)); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Write(make([]byte, 4)); err != nil {
		f.Close()
		return nil, err
	}

	return &Stream{
		f:     f,
		kind:  kind,
		key:   key,
		mode:  mode,
		codec: codec,
		bw:    bufio.NewWriterSize(f, 64*1024),
	}, nil
}

// Read implements io.Reader, yielding plaintext bytes.
func (s *Stream) Read(p []byte) (int, error) {
	if s.mode != ReadBinary && s.mode != ReadText {
		return 0, errors.New("cipher: stream not opened for reading")
	}

	if s.consumed >= s.length && len(s.pendingPT) == 0 {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) {
		if len(s.pendingPT) == 0 {
			if s.consumed >= s.length {
				break
			}
			if err := s.fillBlock(); err != nil {
				if err == io.EOF && n > 0 {
					break
				}
				return n, err
			}
		}

		c := copy(p[n:], s.pendingPT)
		n += c
		s.pendingPT = s.pendingPT[c:]
	}

	if n == 0 {
		return 0, io.EOF
	}

	return n, nil
}

// fillBlock reads and decrypts (or passes through, if plain) the next
// block, trimming it to the remaining plaintext length and stashing it
// in pendingPT.
func (s *Stream) fillBlock() error {
	if s.codec == nil {
		// Plain passthrough: read up to blockSize bytes directly.
		buf := make([]byte, blockSize)
		n, err := io.ReadFull(s.br, buf)
		if n == 0 {
			return err
		}
		remaining := s.length - s.consumed
		if uint32(n) > remaining {
			n = int(remaining)
		}
		s.pendingPT = buf[:n]
		s.consumed += uint32(n)
		return nil
	}

	block := make([]byte, s.codec.BlockSize())
	if _, err := io.ReadFull(s.br, block); err != nil {
		return fmt.Errorf("cipher: short block: %w", err)
	}
	s.codec.DecryptBlock(block)

	remaining := s.length - s.consumed
	n := uint32(len(block))
	if n > remaining {
		n = remaining
	}
	s.pendingPT = block[:n]
	s.consumed += n
	return nil
}

// Write implements io.Writer, accepting plaintext bytes.
func (s *Stream) Write(p []byte) (int, error) {
	if s.mode != WriteBinary && s.mode != WriteText {
		return 0, errors.New("cipher: stream not opened for writing")
	}

	s.pendingRaw = append(s.pendingRaw, p...)
	s.length += uint32(len(p))

	for len(s.pendingRaw) >= s.codec.BlockSize() {
		block := make([]byte, s.codec.BlockSize())
		copy(block, s.pendingRaw[:s.codec.BlockSize()])
		s.codec.EncryptBlock(block)
		if _, err := s.bw.Write(block); err != nil {
			return 0, err
		}
		s.pendingRaw = s.pendingRaw[s.codec.BlockSize():]
	}

	return len(p), nil
}

// Close flushes any partial block (zero-padded), rewrites the header
// length, and closes the underlying file.
func (s *Stream) Close() error {
	defer s.f.Close()

	switch s.mode {
	case ReadBinary, ReadText:
		return nil

	case WriteBinary, WriteText:
		if len(s.pendingRaw) > 0 {
			block := make([]byte, s.codec.BlockSize())
			copy(block, s.pendingRaw)
			s.codec.EncryptBlock(block)
			if _, err := s.bw.Write(block); err != nil {
				return err
			}
			s.pendingRaw = nil
		}

		if err := s.bw.Flush(); err != nil {
			return err
		}

		lengthBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(lengthBuf, s.length)
		if _, err := s.f.WriteAt(lengthBuf, magicLen); err != nil {
			return err
		}

		return nil
	}

	return nil
}

// Length returns the plaintext length. On a write stream this is only
// meaningful after all writes are complete.
func (s *Stream) Length() uint32 { return s.length }

// Kind returns the cipher kind in effect (possibly auto-detected).
func (s *Stream) Kind() Kind { return s.kind }
