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

package page

import (
	"encoding/binary"
	"fmt"
	"io"
)

// uoidHasCloneIDs marks that a Uoid carries the optional clone/clone
// player/clone-owner triple.
const uoidHasCloneIDs = 0x01

// uoidHasLoadMask marks that a Uoid carries an optional load-mask byte.
const uoidHasLoadMask = 0x02

// Uoid is a unique object identifier: a location, a class id, an
// object id, and a name, with two optional trailing fields.
type Uoid struct {
	Location Location
	LoadMask uint8
	Class    uint16
	ObjectID uint32
	Name     string

	HasCloneIDs bool
	CloneID     uint16
	CloneCount  uint16
	CloneOwner  uint32
}

// readUoid decodes one full Uoid record.
func readUoid(r io.Reader) (Uoid, error) {
	var contents uint8
	if err := binary.Read(r, binary.LittleEndian, &contents); err != nil {
		return Uoid{}, fmt.Errorf("page: uoid contents byte: %w", err)
	}

	loc, err := readLocation(r)
	if err != nil {
		return Uoid{}, err
	}

	u := Uoid{Location: loc}

	if contents&uoidHasLoadMask != 0 {
		if err := binary.Read(r, binary.LittleEndian, &u.LoadMask); err != nil {
			return Uoid{}, fmt.Errorf("page: uoid load mask: %w", err)
		}
	}

	if err := binary.Read(r, binary.LittleEndian, &u.Class); err != nil {
		return Uoid{}, fmt.Errorf("page: uoid class: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &u.ObjectID); err != nil {
		return Uoid{}, fmt.Errorf("page: uoid object id: %w", err)
	}

	u.Name, err = readSafeString(r)
	if err != nil {
		return Uoid{}, err
	}

	if contents&uoidHasCloneIDs != 0 {
		u.HasCloneIDs = true
		if err := binary.Read(r, binary.LittleEndian, &u.CloneID); err != nil {
			return Uoid{}, fmt.Errorf("page: uoid clone id: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &u.CloneCount); err != nil {
			return Uoid{}, fmt.Errorf("page: uoid clone count: %w", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &u.CloneOwner); err != nil {
			return Uoid{}, fmt.Errorf("page: uoid clone owner: %w", err)
		}
	}

	return u, nil
}

// plKey pairs a Uoid with the on-disk position of the object body it
// names.
type plKey struct {
	Uoid       Uoid
	DataPos    uint32
	DataLength uint32
}

func readKey(r io.Reader) (plKey, error) {
	u, err := readUoid(r)
	if err != nil {
		return plKey{}, err
	}

	var k plKey
	k.Uoid = u
	if err := binary.Read(r, binary.LittleEndian, &k.DataPos); err != nil {
		return plKey{}, fmt.Errorf("page: key data pos: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &k.DataLength); err != nil {
		return plKey{}, fmt.Errorf("page: key data length: %w", err)
	}

	return k, nil
}
