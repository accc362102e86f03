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

// Package asseterr implements the two error kinds from the pipeline's
// error handling design: AssetError, recoverable at the top level, and
// ProgrammingError, any uncaught fault.
package asseterr

import "fmt"

// AssetError wraps a cause that is recoverable at the top level:
// missing inputs, malformed control files, bad configuration, or an
// unrecoverable encryption mismatch. It is logged and causes a
// non-zero exit, never a panic.
type AssetError struct {
	Op    string
	Cause error
}

// New returns an AssetError tagging cause with the operation that
// produced it.
func New(op string, cause error) *AssetError {
	return &AssetError{Op: op, Cause: cause}
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Cause)
}

func (e *AssetError) Unwrap() error { return e.Cause }

// ProgrammingError wraps any uncaught fault recovered at the command
// boundary (a panic, an invariant violation). Unlike AssetError it
// indicates a bug in this program, not a problem with its inputs.
type ProgrammingError struct {
	Cause error
}

// Wrap returns a ProgrammingError wrapping cause.
func Wrap(cause error) *ProgrammingError {
	return &ProgrammingError{Cause: cause}
}

func (e *ProgrammingError) Error() string {
	return fmt.Sprintf("programming error: %v", e.Cause)
}

func (e *ProgrammingError) Unwrap() error { return e.Cause }
