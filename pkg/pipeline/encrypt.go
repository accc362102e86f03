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

package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/urumanifest/manifestgen/pkg/asseterr"
	"github.com/urumanifest/manifestgen/pkg/cipher"
	"github.com/urumanifest/manifestgen/pkg/manifestdb"
)

// desiredEncryption maps a staged file's extension to the encryption
// kind it must carry by the time it is published.
var desiredEncryption = map[string]cipher.Kind{
	".age": cipher.XTEA,
	".csv": cipher.XTEA,
	".fni": cipher.XTEA,
	".pak": cipher.BTEA,
	".sdl": cipher.BTEA,
}

// encryptStage implements §4.7 step 1: bring every staged source that
// needs a particular cipher up to that cipher, redirecting source_path
// to a re-encrypted temp file when a change was needed.
func (o *Orchestrator) encryptStage(ctx context.Context) error {
	return o.forEach(ctx, "encrypt", func(ctx context.Context, it *item) error {
		if it.entry.Flags&manifestdb.DontEncrypt != 0 {
			return nil
		}

		desired, ok := desiredEncryption[strings.ToLower(path.Ext(it.sourcePath))]
		if !ok {
			return nil
		}

		current, err := detectFileMagic(it.sourcePath)
		if err != nil {
			return fmt.Errorf("detecting encryption of %q: %w", it.sourcePath, err)
		}

		switch {
		case current == desired:
			if desired == cipher.BTEA {
				logrus.Warnf("pipeline: %q is already BTEA-encrypted; double-encryption is opaque, leaving as-is", it.sourcePath)
			}
			return nil

		case current == cipher.Unspecified, current != cipher.BTEA:
			tmp, err := reencryptToTemp(it.sourcePath, current, desired, o.key)
			if err != nil {
				return fmt.Errorf("re-encrypting %q: %w", it.sourcePath, err)
			}
			it.sourcePath = tmp
			it.entry.Flags |= manifestdb.Dirty
			return nil

		default:
			return asseterr.New("pipeline.encrypt", fmt.Errorf("%q is BTEA-encrypted but %s encryption is required and cannot be downgraded", it.sourcePath, desired))
		}
	})
}

func detectFileMagic(path string) (cipher.Kind, error) {
	f, err := os.Open(path)
	if err != nil {
		return cipher.Unspecified, err
	}
	defer f.Close()
	return cipher.DetectMagic(bufio.NewReader(f))
}

// reencryptToTemp decrypts sourcePath (if current carries a known
// cipher) and re-encrypts it to a fresh temp file under desired,
// returning the temp file's path.
func reencryptToTemp(sourcePath string, current, desired cipher.Kind, key cipher.Key) (string, error) {
	tmp, err := os.CreateTemp("", "manifestgen-encrypt-*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	tmp.Close()

	r, err := cipher.Open(sourcePath, cipher.ReadBinary, current, &key)
	if err != nil {
		os.Remove(tmpPath)
		return "", err
	}
	defer r.Close()

	w, err := cipher.Open(tmpPath, cipher.WriteBinary, desired, &key)
	if err != nil {
		os.Remove(tmpPath)
		return "", err
	}

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		os.Remove(tmpPath)
		return "", err
	}
	if err := w.Close(); err != nil {
		os.Remove(tmpPath)
		return "", err
	}

	return tmpPath, nil
}
