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

package manifestdb

import "github.com/urumanifest/manifestgen/pkg/cipher"

// Backend is the shared contract both on-disk schemas implement.
type Backend interface {
	// Load reads whatever manifests and lists already exist under dir
	// into a Database, for dirty-detection and orphan deletion.
	Load(dir string) (*Database, error)

	// WriteManifests writes every manifest in staged, skipping any
	// whose contents are not dirty with respect to cached.
	WriteManifests(dir string, staged map[string][]*Entry, cached *Database) error

	// WriteLists always rewrites every secure list in staged (lists
	// carry no hash to compare against, so they are never skipped).
	WriteLists(dir string, staged map[ListKey][]*ListEntry) error

	// DeleteManifests removes on-disk manifests present in cached but
	// absent from staged.
	DeleteManifests(dir string, staged map[string][]*Entry, cached *Database) error

	// DeleteLists removes on-disk lists present in cached but absent
	// from staged.
	DeleteLists(dir string, staged map[ListKey][]*ListEntry, cached *Database) error
}

// NewBackend selects a Backend by server type: "plain" for Back-end A
// (text/CSV), "binary" for Back-end B (length-prefixed UTF-16LE). key
// is only used by the binary backend, which persists it as
// encryption.key.
func NewBackend(serverType string, key cipher.Key) (Backend, error) {
	switch serverType {
	case "plain":
		return &PlainBackend{}, nil
	case "binary":
		return &BinaryBackend{Key: key}, nil
	default:
		return nil, errUnknownServerType(serverType)
	}
}

type errUnknownServerType string

func (e errUnknownServerType) Error() string {
	return "manifestdb: unknown server type " + string(e)
}
