// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Parser defines the contract for a front-end that extracts class
// definitions from one compilation unit.
//
// Description:
//
//	A Parser turns raw source text into a ParseResult whose Classes are the
//	class definitions of the unit in document order, already filtered:
//	anonymous classes and every definition nested (at any depth) in an
//	anonymous namespace are never delivered.
//
// Inputs:
//
//	ctx      - Context for cancellation.
//	content  - Raw source bytes. Must be valid UTF-8.
//	filePath - Path used for diagnostics and recorded on every ClassDecl.
//
// Outputs:
//
//	*ParseResult - Delivered definitions and metadata.
//	error        - Non-nil when the unit cannot be analyzed. Callers treat
//	               this as fatal for the whole run.
//
// Thread Safety:
//
//	Implementations must be safe for concurrent use with different content.
type Parser interface {
	// Parse extracts class definitions from source code.
	Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error)

	// Language returns the canonical lowercase language name.
	Language() string

	// Extensions returns the file extensions this parser handles,
	// including the leading dot.
	Extensions() []string
}

// ParserRegistry maps file extensions to parsers.
//
// Thread Safety: Safe for concurrent use.
type ParserRegistry struct {
	mu          sync.RWMutex
	byExtension map[string]Parser
}

// NewParserRegistry creates an empty registry.
func NewParserRegistry() *ParserRegistry {
	return &ParserRegistry{byExtension: make(map[string]Parser)}
}

// Register claims every extension of parser, replacing earlier claims.
// Nil is ignored.
func (r *ParserRegistry) Register(parser Parser) {
	if parser == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range parser.Extensions() {
		r.byExtension[strings.ToLower(ext)] = parser
	}
}

// ForFile returns the parser for filePath's extension, compared
// case-insensitively. An unclaimed extension yields a *ParseError wrapping
// ErrUnsupportedLanguage.
func (r *ParserRegistry) ForFile(filePath string) (Parser, error) {
	ext := filepath.Ext(filePath)

	r.mu.RLock()
	parser, ok := r.byExtension[strings.ToLower(ext)]
	r.mu.RUnlock()

	if !ok {
		return nil, syntaxError(filePath, 0, 0, "no parser for extension "+strconv.Quote(ext), ErrUnsupportedLanguage)
	}
	return parser, nil
}
