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

// Package pybridge talks to the external Python interpreter that
// compiles and introspects script sources. Each call is modeled as a
// small RPC: one sub-process invocation, one serialized request over
// its standard input, one serialized response read back from its
// standard output, with standard error treated purely as log output.
// No interpreter process is kept alive between calls.
package pybridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/sirupsen/logrus"
)

// Result codes the interpreter's response carries in returncode.
const (
	ResultSuccess         = "success"
	ResultCrashed         = "crashed"
	ResultInvalidCommand  = "invalid_command"
	ResultModuleTraceback = "module_traceback"
	ResultFileNotFound    = "file_not_found"
)

// PFM (python_file_mod) AST verdicts a compyle response may carry.
const (
	PFMIndeed       = "indeed"
	PFMNotAModifier = "not_a_modifier"
	PFMNoClass      = "no_class"
	PFMASTCrashed   = "ast_crashed"
)

// retryOpts bounds retries to transient sub-process launch failures;
// a well-formed response with a non-success returncode is a legitimate
// result, not something to retry.
var retryOpts = []retry.Option{
	retry.Attempts(3),
	retry.DelayType(retry.BackOffDelay),
	retry.Delay(1 * time.Second),
	retry.MaxDelay(5 * time.Second),
}

// Bridge invokes the named Python interpreter and tool script for
// byte-compilation and standard-library discovery.
type Bridge struct {
	pyExe      string
	toolScript string
}

// New returns a Bridge that invokes pyExe toolScript for every call.
func New(pyExe, toolScript string) *Bridge {
	return &Bridge{pyExe: pyExe, toolScript: toolScript}
}

type request struct {
	Cmd             string `json:"cmd"`
	PyFilePath      string `json:"py_file_path,omitempty"`
	PyGluePath      string `json:"py_glue_path,omitempty"`
	ModuleName      string `json:"module_name,omitempty"`
	ForceAppendGlue bool   `json:"force_append_glue,omitempty"`
}

type response struct {
	ReturnCode   string `json:"returncode"`
	Code         []byte `json:"code,omitempty"`
	PFM          string `json:"pfm,omitempty"`
	Traceback    string `json:"traceback,omitempty"`
	GlueAppended bool   `json:"glue_appended,omitempty"`
	PythonLib    string `json:"python_lib,omitempty"`
}

// CompyleResult is the outcome of one "compyle" RPC call.
type CompyleResult struct {
	ReturnCode   string
	Code         []byte
	PFM          string
	Traceback    string
	GlueAppended bool
}

// Compyle submits one Python source to the external compiler. pyGluePath
// may be empty; forceAppendGlue requests glue be appended regardless of
// the file's python_file_mod AST verdict.
func (b *Bridge) Compyle(ctx context.Context, pyFilePath, pyGluePath, moduleName string, forceAppendGlue bool) (*CompyleResult, error) {
	resp, err := b.call(ctx, request{
		Cmd:             "compyle",
		PyFilePath:      pyFilePath,
		PyGluePath:      pyGluePath,
		ModuleName:      moduleName,
		ForceAppendGlue: forceAppendGlue,
	})
	if err != nil {
		return nil, err
	}
	return &CompyleResult{
		ReturnCode:   resp.ReturnCode,
		Code:         resp.Code,
		PFM:          resp.PFM,
		Traceback:    resp.Traceback,
		GlueAppended: resp.GlueAppended,
	}, nil
}

// GetPythonLib asks the interpreter where its standard library lives
// on disk, implementing assets.PythonLibLocator.
func (b *Bridge) GetPythonLib(ctx context.Context) (string, error) {
	resp, err := b.call(ctx, request{Cmd: "get_python_lib"})
	if err != nil {
		return "", err
	}
	if resp.ReturnCode != ResultSuccess {
		return "", fmt.Errorf("pybridge: get_python_lib returned %q", resp.ReturnCode)
	}
	return resp.PythonLib, nil
}

// call runs one request/response round trip, retrying only on
// sub-process launch/transport failures.
func (b *Bridge) call(ctx context.Context, req request) (*response, error) {
	var resp *response
	err := retry.Do(func() error {
		r, err := b.invoke(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, append(retryOpts, retry.Context(ctx))...)
	if err != nil {
		return nil, fmt.Errorf("pybridge: invoking %s for %s: %w", b.toolScript, req.Cmd, err)
	}
	return resp, nil
}

func (b *Bridge) invoke(ctx context.Context, req request) (*response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	cmd := exec.CommandContext(ctx, b.pyExe, b.toolScript)
	cmd.Stdin = bytes.NewReader(payload)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("running interpreter: %w", err)
	}

	for _, line := range bytes.Split(stderr.Bytes(), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		logrus.Debugf("pybridge: %s: %s", req.Cmd, line)
	}

	scanner := bufio.NewScanner(&stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}
		return nil, fmt.Errorf("interpreter produced no response")
	}

	var resp response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if resp.ReturnCode == "" {
		resp.ReturnCode = ResultSuccess
	}
	return &resp, nil
}
