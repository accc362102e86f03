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

// Package pytool embeds the Python-side half of the pybridge RPC
// protocol so manifestgen ships as a single binary with no external
// install step beyond a working Python interpreter.
package pytool

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed tool.py
var source []byte

// Extract writes the embedded tool script to a fresh temp file and
// returns its path. The caller is responsible for removing it once the
// pybridge.Bridge built around it is no longer needed.
func Extract() (string, error) {
	f, err := os.CreateTemp("", "manifestgen-pytool-*.py")
	if err != nil {
		return "", fmt.Errorf("pytool: creating temp file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(source); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("pytool: writing %s: %w", f.Name(), err)
	}

	return filepath.Clean(f.Name()), nil
}
