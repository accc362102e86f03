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

package assets

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServerPathDataPRP(t *testing.T) {
	sp, err := ServerPath("dat/Teledahn_District_Nexus.prp", []string{CategoryData})
	require.NoError(t, err)
	require.Equal(t, "data/prp/Teledahn_District_Nexus.prp", sp)
}

func TestServerPathPythonScript(t *testing.T) {
	sp, err := ServerPath("Python/xPlayerBook.py", []string{CategoryPython})
	require.NoError(t, err)
	require.Equal(t, "scripts/python_code/xPlayerBook.py", sp)
}

func TestServerPathSFX(t *testing.T) {
	sp, err := ServerPath("sfx/door_open.ogg", []string{CategorySFX})
	require.NoError(t, err)
	require.Equal(t, "audio/door_open.ogg", sp)
}

func TestServerPathClientExternal(t *testing.T) {
	sp, err := ServerPath("plClient.exe", []string{CategoryExternal})
	require.NoError(t, err)
	require.Equal(t, "client/win/external/plClient.exe", sp)
}

func TestServerPathClientExternal64(t *testing.T) {
	sp, err := ServerPath("plClient64.exe", []string{CategoryExternal64})
	require.NoError(t, err)
	require.Equal(t, "client/win64/external/plClient64.exe", sp)
}

func TestServerPathPrereq(t *testing.T) {
	sp, err := ServerPath("vcredist_x86.exe", []string{CategoryPrereq})
	require.NoError(t, err)
	require.Equal(t, "dependencies/x86/vcredist_x86.exe", sp)
}

func TestServerPathUnknownClientTopReturnsError(t *testing.T) {
	_, err := ServerPath("weird/thing.bin", nil)
	require.Error(t, err)
}
