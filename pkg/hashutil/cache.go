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

package hashutil

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urumanifest/manifestgen/internal/cache"
	"github.com/urumanifest/manifestgen/pkg/xattr"
)

// MD5FileCached is MD5File with a fast path: it first checks a
// filesystem xattr recording the digest alongside the mtime/size it
// was computed from, falling back to fileCache when xattrs aren't
// supported, and to a full MD5File pass on any cache miss or read
// error. A successful full pass refreshes whichever cache is usable.
func MD5FileCached(ctx context.Context, path string, fileCache cache.Cache) (digest string, size int64, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, err
	}

	if d, ok := xattrLookup(path, info); ok {
		return d, info.Size(), nil
	}

	if fileCache != nil {
		if item, err := fileCache.Get(ctx, path); err == nil {
			if item.Size == info.Size() && item.ModTime.Equal(info.ModTime()) {
				return item.Digest, item.Size, nil
			}
		}
	}

	digest, size, err = MD5File(path)
	if err != nil {
		return "", 0, err
	}

	xattrStore(path, info, digest)
	if fileCache != nil {
		_ = fileCache.Put(ctx, &cache.Item{
			Path:      path,
			ModTime:   info.ModTime(),
			Size:      size,
			Digest:    digest,
			CreatedAt: time.Now(),
		})
	}

	return digest, size, nil
}

func xattrLookup(path string, info os.FileInfo) (string, bool) {
	raw, err := xattr.Get(path, xattr.MakeKey(xattr.KeyMD5))
	if err != nil {
		return "", false
	}
	stamp, err := xattr.Get(path, xattr.MakeKey(xattr.KeyMtime))
	if err != nil {
		return "", false
	}
	if string(stamp) != mtimeStamp(info) {
		return "", false
	}
	return string(raw), true
}

func xattrStore(path string, info os.FileInfo, digest string) {
	_ = xattr.Set(path, xattr.MakeKey(xattr.KeyMD5), []byte(digest))
	_ = xattr.Set(path, xattr.MakeKey(xattr.KeyMtime), []byte(mtimeStamp(info)))
}

func mtimeStamp(info os.FileInfo) string {
	return fmt.Sprintf("%d:%d", info.ModTime().UnixNano(), info.Size())
}
