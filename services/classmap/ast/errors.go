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
	"errors"
	"strconv"
	"strings"
)

// Front-end failure categories. Check with errors.Is.
var (
	// ErrUnsupportedLanguage means no registered parser claims the file's
	// extension.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrParseFailed means the unit has no usable syntax tree. In strict
	// mode any syntax error is reported this way.
	ErrParseFailed = errors.New("parse failed")

	// ErrInvalidContent means the bytes cannot be a C++ unit at all: nil
	// content or invalid UTF-8.
	ErrInvalidContent = errors.New("invalid content")

	// ErrFileTooLarge means the unit exceeds the parser's size limit.
	ErrFileTooLarge = errors.New("file too large")
)

// ParseError locates a front-end failure in a unit.
//
// Line and Column are 1-indexed and 0 when the failure has no position,
// for example when the extension is unsupported. Cause is one of the
// sentinel errors above and is reachable through errors.Is.
//
//	var pe *ast.ParseError
//	if errors.As(err, &pe) {
//	    fmt.Println(pe.FilePath, pe.Line, pe.Column)
//	}
type ParseError struct {
	FilePath string
	Line     int
	Column   int
	Message  string
	Cause    error
}

// Error renders the compiler-style "file:line:col: message" form,
// omitting position parts that are unknown.
func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString(e.FilePath)
	if e.Line > 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(e.Line))
		if e.Column > 0 {
			b.WriteByte(':')
			b.WriteString(strconv.Itoa(e.Column))
		}
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// syntaxError reports a failure at a 1-indexed position. Use 0, 0 when
// the position is unknown.
func syntaxError(filePath string, line, column int, message string, cause error) *ParseError {
	return &ParseError{
		FilePath: filePath,
		Line:     line,
		Column:   column,
		Message:  message,
		Cause:    cause,
	}
}
