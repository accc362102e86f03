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

// Package version holds build-time metadata set via -ldflags.
package version

var (
	// GitVersion is the semantic version, set by -ldflags at build time.
	GitVersion = "unknown"

	// GitCommit is the commit hash, set by -ldflags at build time.
	GitCommit = "unknown"

	// Platform is the GOOS/GOARCH pair, set by -ldflags at build time.
	Platform = "unknown"

	// BuildTime is the build timestamp, set by -ldflags at build time.
	BuildTime = "unknown"
)
