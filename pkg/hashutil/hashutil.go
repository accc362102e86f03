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

// Package hashutil implements §4.9's hash/compare utilities: streaming
// MD5, gzip-and-hash, and an encryption-aware content comparison used
// by the secure-copy stage.
package hashutil

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/md5"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	godigest "github.com/opencontainers/go-digest"

	"github.com/urumanifest/manifestgen/pkg/cipher"
)

// chunkSize matches §4.9's "streaming in 10-MiB chunks".
const chunkSize = 10 << 20

// MD5File returns the hex MD5 digest and size in bytes of the file at
// path, read in 10-MiB chunks.
func MD5File(path string) (digest string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := md5.New()
	buf := make([]byte, chunkSize)
	n, err := io.CopyBuffer(h, f, buf)
	if err != nil {
		return "", 0, fmt.Errorf("hashutil: md5 %q: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Digest wraps a bare hex digest as an opencontainers/go-digest value
// for in-memory bookkeeping; the manifest DB's on-disk schemas store
// the bare hex form, not this algorithm-prefixed one.
func Digest(hexMD5 string) godigest.Digest {
	return godigest.NewDigestFromHex("md5", hexMD5)
}

// GzipAndHash gzip-compresses src into dst at the default compression
// level and returns the hex MD5 digest and size of the gzip blob.
func GzipAndHash(src, dst string) (digest string, size int64, err error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return "", 0, err
	}

	h := md5.New()
	gz := gzip.NewWriter(io.MultiWriter(out, h))

	if _, err := io.CopyBuffer(gz, in, make([]byte, chunkSize)); err != nil {
		gz.Close()
		out.Close()
		os.Remove(tmp)
		return "", 0, fmt.Errorf("hashutil: gzip %q: %w", src, err)
	}
	if err := gz.Close(); err != nil {
		out.Close()
		os.Remove(tmp)
		return "", 0, err
	}

	info, err := out.Stat()
	if err != nil {
		out.Close()
		os.Remove(tmp)
		return "", 0, err
	}
	size = info.Size()

	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return "", 0, err
	}
	if err := os.Rename(tmp, dst); err != nil {
		return "", 0, err
	}

	return hex.EncodeToString(h.Sum(nil)), size, nil
}

// ContentEqual implements §4.9's content_equal: files sharing the same
// encryption magic are compared by raw size then raw bytes; files with
// differing magic are decrypted through the stream codec and compared
// by SHA-512, since framing overhead means their raw sizes need not
// match even when the underlying content is identical.
func ContentEqual(pathA, pathB string, key *cipher.Key) (bool, error) {
	kindA, err := detectMagic(pathA)
	if err != nil {
		return false, err
	}
	kindB, err := detectMagic(pathB)
	if err != nil {
		return false, err
	}

	if kindA == kindB {
		sizeA, err := fileSize(pathA)
		if err != nil {
			return false, err
		}
		sizeB, err := fileSize(pathB)
		if err != nil {
			return false, err
		}
		if sizeA != sizeB {
			return false, nil
		}
		return rawEqual(pathA, pathB)
	}

	sumA, err := decryptedSHA512(pathA, kindA, key)
	if err != nil {
		return false, err
	}
	sumB, err := decryptedSHA512(pathB, kindB, key)
	if err != nil {
		return false, err
	}
	return sumA == sumB, nil
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func detectMagic(path string) (cipher.Kind, error) {
	f, err := os.Open(path)
	if err != nil {
		return cipher.Unspecified, err
	}
	defer f.Close()
	kind, err := cipher.DetectMagic(bufio.NewReader(f))
	if err != nil {
		return cipher.Unspecified, err
	}
	return kind, nil
}

func rawEqual(pathA, pathB string) (bool, error) {
	fa, err := os.Open(pathA)
	if err != nil {
		return false, err
	}
	defer fa.Close()
	fb, err := os.Open(pathB)
	if err != nil {
		return false, err
	}
	defer fb.Close()

	bufA := make([]byte, chunkSize)
	bufB := make([]byte, chunkSize)
	for {
		na, erra := io.ReadFull(fa, bufA)
		nb, errb := io.ReadFull(fb, bufB)
		if na != nb {
			return false, nil
		}
		if !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
		if erra == io.EOF || erra == io.ErrUnexpectedEOF {
			return errb == io.EOF || errb == io.ErrUnexpectedEOF, nil
		}
		if erra != nil {
			return false, erra
		}
	}
}

func decryptedSHA512(path string, kind cipher.Kind, key *cipher.Key) (string, error) {
	s, err := cipher.Open(path, cipher.ReadText, kind, key)
	if err != nil {
		return "", err
	}
	defer s.Close()

	h := sha512.New()
	if _, err := io.Copy(h, s); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
