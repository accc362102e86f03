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
	"fmt"
	"strconv"
	"strings"
)

// VarType is one of the SDL scalar/vector types, or an embedded
// descriptor reference (EmbeddedName non-empty).
type VarType struct {
	Name         string // one of the builtin type keywords, upper-cased
	EmbeddedName string // set instead of Name for a '$' embedded descriptor
}

var builtinTypes = map[string]bool{
	"INT": true, "FLOAT": true, "BOOL": true, "STRING32": true,
	"PLKEY": true, "CREATABLE": true, "MESSAGE": true, "DOUBLE": true,
	"TIME": true, "AGETIMEOFDAY": true, "BYTE": true, "SHORT": true,
	"VECTOR3": true, "POINT3": true, "RGB": true, "RGBA": true,
	"QUAT": true, "QUATERNION": true, "RGB8": true, "RGBA8": true,
}

// Var is one VAR declaration inside a STATEDESC body.
type Var struct {
	Type       VarType
	Name       string
	IsArray    bool
	ArraySize  int // 0 when unspecified ("[]")
}

// Descriptor is one parsed STATEDESC block.
type Descriptor struct {
	Name    string
	Version int
	Vars    []Var

	// SourceFile is the server path of the .sdl file this descriptor
	// was loaded from, set by Manager.LoadReaderFrom. Empty when loaded
	// via the bare LoadReader.
	SourceFile string
}

// parse runs the STATEDESC grammar over a token stream, returning every
// descriptor found in source order.
func parse(toks []token) ([]*Descriptor, error) {
	p := &parser{toks: toks}

	var descs []*Descriptor
	for !p.atEOF() {
		d, err := p.parseStatedesc()
		if err != nil {
			return nil, err
		}
		descs = append(descs, d)
	}
	return descs, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) atEOF() bool { return p.cur().kind == tokEOF }
func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) advance() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expectIdent(word string) error {
	t := p.advance()
	if t.kind != tokIdent || !strings.EqualFold(t.text, word) {
		return fmt.Errorf("sdl: line %d: expected %q, got %q", t.line, word, t.text)
	}
	return nil
}

func (p *parser) expectPunct(punct string) error {
	t := p.advance()
	if t.kind != tokPunct || t.text != punct {
		return fmt.Errorf("sdl: line %d: expected %q, got %q", t.line, punct, t.text)
	}
	return nil
}

func (p *parser) parseStatedesc() (*Descriptor, error) {
	if err := p.expectIdent("STATEDESC"); err != nil {
		return nil, err
	}

	nameTok := p.advance()
	if nameTok.kind != tokIdent {
		return nil, fmt.Errorf("sdl: line %d: expected descriptor name, got %q", nameTok.line, nameTok.text)
	}

	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	if err := p.expectIdent("VERSION"); err != nil {
		return nil, err
	}

	verTok := p.advance()
	if verTok.kind != tokInt {
		return nil, fmt.Errorf("sdl: line %d: expected VERSION integer, got %q", verTok.line, verTok.text)
	}
	version, err := strconv.Atoi(verTok.text)
	if err != nil {
		return nil, fmt.Errorf("sdl: line %d: bad VERSION %q: %w", verTok.line, verTok.text, err)
	}

	d := &Descriptor{Name: nameTok.text, Version: version}

	for {
		t := p.cur()
		if t.kind == tokPunct && t.text == "}" {
			p.advance()
			break
		}
		if t.kind == tokEOF {
			return nil, fmt.Errorf("sdl: unexpected EOF inside STATEDESC %q", d.Name)
		}
		if t.kind == tokIdent && strings.EqualFold(t.text, "VAR") {
			v, err := p.parseVar()
			if err != nil {
				return nil, err
			}
			d.Vars = append(d.Vars, *v)
			continue
		}
		// Tolerate unknown top-level directives.
		p.advance()
	}

	return d, nil
}

func (p *parser) parseVar() (*Var, error) {
	if err := p.expectIdent("VAR"); err != nil {
		return nil, err
	}

	typeTok := p.advance()
	var vt VarType
	switch typeTok.kind {
	case tokDollarIdent:
		vt = VarType{EmbeddedName: typeTok.text}
	case tokIdent:
		upper := strings.ToUpper(typeTok.text)
		if !builtinTypes[upper] {
			return nil, fmt.Errorf("sdl: line %d: unknown VAR type %q", typeTok.line, typeTok.text)
		}
		vt = VarType{Name: upper}
	default:
		return nil, fmt.Errorf("sdl: line %d: expected VAR type, got %q", typeTok.line, typeTok.text)
	}

	nameTok := p.advance()
	if nameTok.kind != tokIdent {
		return nil, fmt.Errorf("sdl: line %d: expected VAR name, got %q", nameTok.line, nameTok.text)
	}

	v := &Var{Type: vt, Name: nameTok.text}

	if p.cur().kind == tokPunct && p.cur().text == "[" {
		p.advance()
		v.IsArray = true
		if p.cur().kind == tokInt {
			n, err := strconv.Atoi(p.advance().text)
			if err != nil {
				return nil, fmt.Errorf("sdl: bad array size: %w", err)
			}
			v.ArraySize = n
		}
		if err := p.expectPunct("]"); err != nil {
			return nil, err
		}
	}

	// Tolerate any trailing directives (DEFAULT, DEFAULTOPTION, and
	// anything unrecognized) up to the next VAR or the closing brace.
	for {
		t := p.cur()
		if t.kind == tokEOF {
			return nil, fmt.Errorf("sdl: unexpected EOF inside VAR %q", v.Name)
		}
		if t.kind == tokPunct && t.text == "}" {
			break
		}
		if t.kind == tokIdent && strings.EqualFold(t.text, "VAR") {
			break
		}
		p.advance()
	}

	return v, nil
}
