// This file is part of ngaro - https://github.com/db47h/ngaro
//
// Copyright 2016 Denis Bernard <db047h@gmail.com>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package asm assembles arsenalVM source text into a bytecode image.
//
// The pipeline is a single pass over the token stream: Tokenize splits the
// source into the closed token set of token.go, then a parser builds a
// linear data plan alongside the label and size symbol tables, and
// finally resolves the plan into the byte image the vm package executes.
// Labels and sizes may be referenced before they are declared — the two
// symbol tables are complete by the time resolution runs, even though
// they are populated incrementally during the same pass that builds the
// data plan.
package asm

import (
	"io"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Assemble reads r as arsenalVM source text and returns the assembled
// byte image, or a classified error (see errors.go) describing the first
// grammar or symbol-resolution violation encountered. There is no partial
// result and no recovery: assembly either fully succeeds or fails.
func Assemble(r io.Reader) ([]byte, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read source")
	}
	if !utf8.Valid(src) {
		return nil, ErrInvalidEncoding
	}

	tokens, err := Tokenize(string(src))
	if err != nil {
		return nil, errors.Wrap(err, "tokenize")
	}

	p := newParser(tokens)
	if err := p.parseProgram(); err != nil {
		return nil, errors.Wrap(err, "parse")
	}
	return p.resolve()
}

// AssembleString is a convenience wrapper around Assemble for callers that
// already hold the source text in memory.
func AssembleString(src string) ([]byte, error) {
	return Assemble(strings.NewReader(src))
}

// Symbols is the label and size symbol table produced by a successful
// assembly, exposed for diagnostics (cmd/arsenal's -symbols flag).
type Symbols struct {
	Labels map[string]uint64
	Sizes  map[string]uint64
}

// AssembleWithSymbols behaves like Assemble but also returns the resolved
// label and size symbol tables alongside the byte image.
func AssembleWithSymbols(r io.Reader) ([]byte, Symbols, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, Symbols{}, errors.Wrap(err, "read source")
	}
	if !utf8.Valid(src) {
		return nil, Symbols{}, ErrInvalidEncoding
	}

	tokens, err := Tokenize(string(src))
	if err != nil {
		return nil, Symbols{}, errors.Wrap(err, "tokenize")
	}

	p := newParser(tokens)
	if err := p.parseProgram(); err != nil {
		return nil, Symbols{}, errors.Wrap(err, "parse")
	}
	image, err := p.resolve()
	if err != nil {
		return nil, Symbols{}, err
	}
	return image, Symbols{Labels: p.labels, Sizes: p.sizes}, nil
}
