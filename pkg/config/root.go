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

package config

import (
	"os"
	"path/filepath"
)

// Root holds the persistent flags every manifestgen sub-command shares.
type Root struct {
	StorageDir      string
	Pprof           bool
	PprofAddr       string
	DisableProgress bool
	LogDir          string
	LogLevel        string
}

// NewRoot returns a Root with sane defaults under the user's cache dir.
func NewRoot() (*Root, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	base := filepath.Join(cacheDir, "manifestgen")

	return &Root{
		StorageDir: base,
		PprofAddr:  "localhost:6060",
		LogDir:     filepath.Join(base, "logs"),
		LogLevel:   "info",
	}, nil
}
