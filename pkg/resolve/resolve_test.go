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

package resolve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/urumanifest/manifestgen/pkg/assets"
	"github.com/urumanifest/manifestgen/pkg/sdl"
)

func writeTempFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(contents), 0o644))
	return p
}

// coreRootsSDL defines every client-core root descriptor, so the
// core closure resolves.
const coreRootsSDL = `
STATEDESC AGMaster
{
	VERSION 1
	VAR INT count[1]
}
STATEDESC avatar { VERSION 1 }
STATEDESC avatarPhysical { VERSION 1 }
STATEDESC CloneMessage { VERSION 1 }
STATEDESC clothing { VERSION 1 }
STATEDESC Layer { VERSION 1 }
STATEDESC MorphSequence { VERSION 1 }
STATEDESC ParticleSystem { VERSION 1 }
STATEDESC physical { VERSION 1 }
STATEDESC Responder { VERSION 1 }
STATEDESC Sound { VERSION 1 }
STATEDESC XRegion { VERSION 1 }
`

func TestResolveScriptDependenciesStagesClosureOnly(t *testing.T) {
	dir := t.TempDir()

	coreSDL := writeTempFile(t, dir, "core.sdl", coreRootsSDL)
	stemSDL := writeTempFile(t, dir, "stem.sdl", `
STATEDESC myScript
{
	VERSION 1
	VAR INT ticks[1]
}
`)
	unreachableSDL := writeTempFile(t, dir, "unreachable.sdl", `
STATEDESC neverUsed
{
	VERSION 1
	VAR INT x[1]
}
`)

	idx := assets.NewIndex()
	require.NoError(t, idx.Put("scripts/sdl/core.sdl", &assets.Asset{
		SourcePath: coreSDL, ClientPath: "SDL/core.sdl", Categories: []string{assets.CategorySDL},
	}))
	require.NoError(t, idx.Put("scripts/sdl/stem.sdl", &assets.Asset{
		SourcePath: stemSDL, ClientPath: "SDL/stem.sdl", Categories: []string{assets.CategorySDL},
	}))
	require.NoError(t, idx.Put("scripts/sdl/unreachable.sdl", &assets.Asset{
		SourcePath: unreachableSDL, ClientPath: "SDL/unreachable.sdl", Categories: []string{assets.CategorySDL},
	}))
	require.NoError(t, idx.Put("scripts/python_code/myScript.py", &assets.Asset{
		SourcePath: filepath.Join(dir, "myScript.py"), ClientPath: "Python/myScript.py", Categories: []string{assets.CategoryPython},
	}))

	staged := newStaged()
	staged.PythonStems["myScript"] = true

	r := New(1, nil)
	manager := sdl.NewManager()
	err := r.resolveScriptDependencies(idx, manager, staged)
	require.NoError(t, err)

	_, coreStaged := staged.Entries["scripts/sdl/core.sdl"]
	_, stemStaged := staged.Entries["scripts/sdl/stem.sdl"]
	_, unreachableStaged := staged.Entries["scripts/sdl/unreachable.sdl"]
	_, pyStaged := staged.Entries["scripts/python_code/myScript.py"]

	require.True(t, coreStaged)
	require.True(t, stemStaged)
	require.False(t, unreachableStaged)
	require.True(t, pyStaged)
}

func TestResolveScriptDependenciesFatalOnMissingCoreRoot(t *testing.T) {
	idx := assets.NewIndex()
	staged := newStaged()
	r := New(1, nil)
	manager := sdl.NewManager()

	err := r.resolveScriptDependencies(idx, manager, staged)
	require.Error(t, err)
}

func TestResolveScriptDependenciesWarnsOnMissingPythonStem(t *testing.T) {
	dir := t.TempDir()
	coreSDL := writeTempFile(t, dir, "core.sdl", coreRootsSDL)

	idx := assets.NewIndex()
	require.NoError(t, idx.Put("scripts/sdl/core.sdl", &assets.Asset{
		SourcePath: coreSDL, ClientPath: "SDL/core.sdl", Categories: []string{assets.CategorySDL},
	}))

	staged := newStaged()
	staged.PythonStems["noSuchDescriptor"] = true

	r := New(1, nil)
	manager := sdl.NewManager()
	err := r.resolveScriptDependencies(idx, manager, staged)
	require.NoError(t, err)

	_, coreStaged := staged.Entries["scripts/sdl/core.sdl"]
	require.True(t, coreStaged)
}

func TestResolveClientSurfaceDependenciesManifestMembership(t *testing.T) {
	idx := assets.NewIndex()
	require.NoError(t, idx.Put("client/win/external/UruLauncher.exe", &assets.Asset{
		ClientPath: "UruLauncher.exe", Categories: []string{assets.CategoryExternal},
	}))
	require.NoError(t, idx.Put("client/win/external/plClient.exe", &assets.Asset{
		ClientPath: "plClient.exe", Categories: []string{assets.CategoryExternal},
	}))
	require.NoError(t, idx.Put("dependencies/x86/vcredist.exe", &assets.Asset{
		ClientPath: "vcredist.exe", Categories: []string{assets.CategoryPrereq},
	}))

	staged := newStaged()
	r := New(1, nil)
	require.NoError(t, r.resolveClientSurfaceDependencies(idx, staged))

	thin := staged.ManifestEntries("ThinExternal")
	full := staged.ManifestEntries("External")
	patcher := staged.ManifestEntries("ExternalPatcher")

	require.Len(t, thin, 2)
	require.Len(t, full, 2)
	require.Len(t, patcher, 1)
	require.Equal(t, "UruLauncher.exe", patcher[0].FileName)

	prereqEntry := staged.Entries["dependencies/x86/vcredist.exe"]
	require.NotZero(t, prereqEntry.Flags)
}
