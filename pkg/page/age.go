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

// Package page parses the two binary/text resource formats the Plasma
// engine builds ages out of: the text .age descriptor and the binary
// PRP page format.
package page

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// commonPages are implied for every age regardless of its Page= lines.
var commonPages = []string{"BuiltIn", "Textures"}

// Age is the parsed contents of a .age descriptor.
type Age struct {
	Pages          []string
	SequencePrefix int
}

// ParseAge reads a text .age descriptor: blank lines, #-comments, and
// key=value pairs. Page= entries are order-preserving and may repeat;
// BuiltIn and Textures are always implied members regardless of
// whether they were named explicitly.
func ParseAge(r io.Reader) (*Age, error) {
	age := &Age{}
	seen := make(map[string]bool)

	addPage := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		age.Pages = append(age.Pages, name)
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("page: age file line %d: missing '=': %q", lineNo, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "Page":
			for _, name := range strings.Split(value, ",") {
				name = strings.TrimSpace(name)
				if name != "" {
					addPage(name)
				}
			}
		case "SequencePrefix":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("page: age file line %d: bad SequencePrefix %q: %w", lineNo, value, err)
			}
			age.SequencePrefix = n
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for _, name := range commonPages {
		addPage(name)
	}

	return age, nil
}

// PageFilePath returns the client-relative path to the .prp file for
// age page P of the named age, per the "dat/<age>_District_<P>.prp"
// rule.
func PageFilePath(ageName, pageName string) string {
	return fmt.Sprintf("dat/%s_District_%s.prp", ageName, pageName)
}
