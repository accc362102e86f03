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

package sdl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleSDL = `
# a top-level comment
STATEDESC Clickable {
	VERSION 2
	VAR INT clicked[]
	VAR $ClickableData data  // embedded descriptor, trailing directives ignored
	VAR STRING32 label DEFAULT whatever
}

STATEDESC Clickable {
	VERSION 1
	VAR INT clicked[]
}

STATEDESC ClickableData {
	VERSION 1
	VAR BOOL enabled
}
`

func TestParseAndFind(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.LoadReader(strings.NewReader(sampleSDL)))

	d, ok := m.Find("Clickable")
	require.True(t, ok)
	require.Equal(t, 2, d.Version)
	require.Len(t, d.Vars, 3)
	require.Equal(t, "data", d.Vars[1].Name)
	require.Equal(t, "ClickableData", d.Vars[1].Type.EmbeddedName)

	all := m.FindAll("clickable")
	require.Len(t, all, 2)
}

func TestResolveClosure(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.LoadReader(strings.NewReader(sampleSDL)))

	closure, err := m.ResolveClosure([]string{"Clickable"})
	require.NoError(t, err)
	require.Contains(t, closure, "Clickable")
	require.Contains(t, closure, "ClickableData")
}

func TestResolveClosureHandlesCycles(t *testing.T) {
	src := `
STATEDESC A {
	VERSION 1
	VAR $B ref
}
STATEDESC B {
	VERSION 1
	VAR $A ref
}
`
	m := NewManager()
	require.NoError(t, m.LoadReader(strings.NewReader(src)))

	closure, err := m.ResolveClosure([]string{"A"})
	require.NoError(t, err)
	require.Len(t, closure, 2)
}

func TestVarArraySize(t *testing.T) {
	src := `
STATEDESC Foo {
	VERSION 3
	VAR FLOAT samples[16]
}
`
	m := NewManager()
	require.NoError(t, m.LoadReader(strings.NewReader(src)))
	d, ok := m.Find("Foo")
	require.True(t, ok)
	require.True(t, d.Vars[0].IsArray)
	require.Equal(t, 16, d.Vars[0].ArraySize)
}
