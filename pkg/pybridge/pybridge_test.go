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

package pybridge

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeFakeTool writes a shell script standing in for the interpreter
// tool script: it echoes a fixed JSON response to stdout and a fixed
// line to stderr, regardless of the request it receives on stdin.
func writeFakeTool(t *testing.T, response, stderrLine string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tool.sh")
	script := "#!/bin/sh\ncat >/dev/null\necho '" + stderrLine + "' >&2\necho '" + response + "'\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestCompyleSuccess(t *testing.T) {
	tool := writeFakeTool(t, `{"returncode":"success","code":"Ynl0ZWNvZGU=","pfm":"indeed"}`, "compiling")
	b := New("/bin/sh", tool)

	result, err := b.Compyle(context.Background(), "foo.py", "", "foo", false)
	require.NoError(t, err)
	require.Equal(t, ResultSuccess, result.ReturnCode)
	require.Equal(t, PFMIndeed, result.PFM)
}

func TestCompyleModuleTraceback(t *testing.T) {
	tool := writeFakeTool(t, `{"returncode":"module_traceback","traceback":"boom"}`, "")
	b := New("/bin/sh", tool)

	result, err := b.Compyle(context.Background(), "foo.py", "", "foo", false)
	require.NoError(t, err)
	require.Equal(t, ResultModuleTraceback, result.ReturnCode)
	require.Equal(t, "boom", result.Traceback)
}

func TestGetPythonLib(t *testing.T) {
	tool := writeFakeTool(t, `{"returncode":"success","python_lib":"/usr/lib/python3.9"}`, "")
	b := New("/bin/sh", tool)

	lib, err := b.GetPythonLib(context.Background())
	require.NoError(t, err)
	require.Equal(t, "/usr/lib/python3.9", lib)
}

func TestCompyleOmittedReturnCodeDefaultsToSuccess(t *testing.T) {
	tool := writeFakeTool(t, `{"pfm":"not_a_modifier"}`, "")
	b := New("/bin/sh", tool)

	result, err := b.Compyle(context.Background(), "foo.py", "", "foo", false)
	require.NoError(t, err)
	require.Equal(t, ResultSuccess, result.ReturnCode)
}

func TestGetPythonLibFileNotFound(t *testing.T) {
	tool := writeFakeTool(t, `{"returncode":"file_not_found"}`, "")
	b := New("/bin/sh", tool)

	_, err := b.GetPythonLib(context.Background())
	require.Error(t, err)
}

func TestInvokeMissingInterpreterErrors(t *testing.T) {
	b := New(filepath.Join(t.TempDir(), "does-not-exist"), "tool.py")
	_, err := b.GetPythonLib(context.Background())
	require.Error(t, err)
}
