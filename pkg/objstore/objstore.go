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

// Package objstore abstracts the write target for the published
// download tree and manifest/list output directories: a local
// directory, or an S3 bucket for deployments that serve downloads
// straight out of object storage. Neither backend implements a
// download server; they only publish the tree a download server reads
// from.
package objstore

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Store is the write/read surface the pipeline's output stages need.
type Store interface {
	// Put writes the full contents of r to key, overwriting any
	// existing object.
	Put(ctx context.Context, key string, r io.Reader) error

	// Get opens key for reading. The caller must Close it.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes key; a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Size returns the size in bytes of key.
	Size(ctx context.Context, key string) (int64, error)
}

// Open returns the Store addressed by dest: a bare path or file://
// path for Local, or s3://bucket/prefix for S3.
func Open(ctx context.Context, dest string) (Store, error) {
	switch {
	case strings.HasPrefix(dest, "s3://"):
		rest := strings.TrimPrefix(dest, "s3://")
		parts := strings.SplitN(rest, "/", 2)
		bucket := parts[0]
		prefix := ""
		if len(parts) == 2 {
			prefix = parts[1]
		}
		return NewS3Store(ctx, bucket, prefix)
	case strings.HasPrefix(dest, "file://"):
		return NewLocalStore(strings.TrimPrefix(dest, "file://"))
	default:
		return NewLocalStore(dest)
	}
}

func keyErr(op, key string, err error) error {
	return fmt.Errorf("objstore: %s %q: %w", op, key, err)
}
