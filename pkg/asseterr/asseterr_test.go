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

package asseterr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetErrorUnwrap(t *testing.T) {
	cause := errors.New("missing age page")
	err := New("resolve: age pass", cause)

	assert.Equal(t, "resolve: age pass: missing age page", err.Error())
	require.ErrorIs(t, err, cause)
}

func TestProgrammingErrorUnwrap(t *testing.T) {
	cause := errors.New("nil dereference")
	err := Wrap(cause)

	assert.Equal(t, "programming error: nil dereference", err.Error())
	require.ErrorIs(t, err, cause)
}
