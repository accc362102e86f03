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
	"encoding/hex"
	"fmt"
	"runtime"
)

const (
	// ServerTypePlain selects the CSV-style manifest DB back-end.
	ServerTypePlain = "plain"
	// ServerTypeBinary selects the UTF-16LE binary manifest DB back-end.
	ServerTypeBinary = "binary"

	droidKeyHexLen = 32
)

// Build holds every configuration key spec.md §6 requires for one
// pipeline run. It is populated by the out-of-scope INI/YAML loader
// (via viper) and validated here before the pipeline runs.
type Build struct {
	// Concurrency is the worker-pool size; 0 or negative means "use the
	// host CPU count" (§5).
	Concurrency int

	Server struct {
		Type           string // "plain" or "binary"
		DroidKey       string // 32 hex digits
		SecureManifest bool
		AgeDirectory   string // optional
		SDLDirectory   string // optional
	}

	Python struct {
		Major int
		Minor int
		Path  string // optional; defaults to "python3" on PATH
		Reuse bool   // recycle a cached Python.pak instead of recompiling
	}

	Output struct {
		Manifests string
		Lists     string
	}

	Source struct {
		DataPath    string
		ScriptsPath string
		GatherPath  string
	}

	// Stage holds a stage name. It is stored only: no build step reads
	// it, and output always goes to the configured Output paths.
	Stage string

	// Regenerate forces full recompression/recopy even for unchanged
	// (non-dirty) staged entries.
	Regenerate bool
}

// NewBuild returns a Build with concurrency defaulted to the host CPU
// count, matching §5's "ncpus... else host CPU count" rule.
func NewBuild() *Build {
	b := &Build{Concurrency: runtime.NumCPU()}
	b.Server.Type = ServerTypePlain
	return b
}

// Validate checks every key spec.md §6 marks required.
func (b *Build) Validate() error {
	if b.Concurrency <= 0 {
		b.Concurrency = runtime.NumCPU()
	}

	switch b.Server.Type {
	case ServerTypePlain, ServerTypeBinary:
	default:
		return fmt.Errorf("config: server.type must be %q or %q, got %q", ServerTypePlain, ServerTypeBinary, b.Server.Type)
	}

	if len(b.Server.DroidKey) != droidKeyHexLen {
		return fmt.Errorf("config: server.droid_key must be %d hex digits, got %d", droidKeyHexLen, len(b.Server.DroidKey))
	}
	if _, err := hex.DecodeString(b.Server.DroidKey); err != nil {
		return fmt.Errorf("config: server.droid_key is not valid hex: %w", err)
	}

	if b.Output.Manifests == "" {
		return fmt.Errorf("config: output.manifests is required")
	}
	if b.Output.Lists == "" {
		return fmt.Errorf("config: output.lists is required")
	}

	if b.Source.DataPath == "" {
		return fmt.Errorf("config: source.data_path is required")
	}
	if b.Source.ScriptsPath == "" {
		return fmt.Errorf("config: source.scripts_path is required")
	}
	if b.Source.GatherPath == "" {
		return fmt.Errorf("config: source.gather_path is required")
	}

	return nil
}
