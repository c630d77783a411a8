// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ast provides the C++ front-end for class hierarchy analysis.
//
// The package turns C++ source text into a flat, document-ordered list of
// class definitions. Each definition carries exactly what the inheritance
// analysis needs: its qualified name, its own access specifier, whether it
// is a class template pattern, its ordered base specifiers and the chain of
// enclosing lookup contexts.
//
// Design principles:
//   - Definitions only: forward declarations are never reported
//   - Anonymous classes and anything inside an anonymous namespace are
//     filtered here, before the analysis sees them
//   - Base names are canonicalized by the front-end; consumers treat them
//     as opaque keys
package ast

import (
	"fmt"
	"strings"
)

// AccessSpecifier is a C++ member access level.
type AccessSpecifier int

const (
	// AccessNone means the declaration is not a class member, so no access
	// specifier applies (namespace or function scope).
	AccessNone AccessSpecifier = iota

	// AccessPublic is the public access level.
	AccessPublic

	// AccessProtected is the protected access level.
	AccessProtected

	// AccessPrivate is the private access level.
	AccessPrivate
)

// String returns the C++ keyword for the access level.
func (a AccessSpecifier) String() string {
	switch a {
	case AccessPublic:
		return "public"
	case AccessProtected:
		return "protected"
	case AccessPrivate:
		return "private"
	default:
		return "none"
	}
}

// ParseAccessSpecifier parses a C++ access keyword.
//
// Surrounding whitespace and a trailing colon are ignored, so both
// "public" and "public:" are accepted.
func ParseAccessSpecifier(s string) (AccessSpecifier, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ":"))
	switch s {
	case "public":
		return AccessPublic, true
	case "protected":
		return AccessProtected, true
	case "private":
		return AccessPrivate, true
	default:
		return AccessNone, false
	}
}

// RecordKind is the class-key a record was introduced with.
type RecordKind int

const (
	// RecordClass is a record introduced with "class".
	RecordClass RecordKind = iota

	// RecordStruct is a record introduced with "struct".
	RecordStruct

	// RecordUnion is a record introduced with "union".
	RecordUnion
)

// String returns the class-key keyword.
func (k RecordKind) String() string {
	switch k {
	case RecordStruct:
		return "struct"
	case RecordUnion:
		return "union"
	default:
		return "class"
	}
}

// DefaultMemberAccess returns the access that applies to members declared
// before any access label: private for class, public for struct and union.
func (k RecordKind) DefaultMemberAccess() AccessSpecifier {
	if k == RecordClass {
		return AccessPrivate
	}
	return AccessPublic
}

// ContextKind discriminates the LookupContext variants.
type ContextKind int

const (
	// ContextNamespace is a named or anonymous namespace.
	ContextNamespace ContextKind = iota

	// ContextRecord is an enclosing class, struct or union.
	ContextRecord

	// ContextFunction is a function body (local class scope).
	ContextFunction
)

// String returns the lowercase name of the context kind.
func (k ContextKind) String() string {
	switch k {
	case ContextNamespace:
		return "namespace"
	case ContextRecord:
		return "record"
	case ContextFunction:
		return "function"
	default:
		return "unknown"
	}
}

// LookupContext is one link in the chain of enclosing scopes of a
// declaration, ascending toward the translation unit.
//
// The translation unit itself is represented by a nil *LookupContext.
//
// Variants:
//   - ContextNamespace: Name and Anonymous are set, Parent is the next
//     enclosing scope.
//   - ContextRecord: Record points at the enclosing class. The chain
//     continues from Record.Parent; the Parent field is unused.
//   - ContextFunction: Name is the function name, Parent is the next
//     enclosing scope.
type LookupContext struct {
	Kind      ContextKind
	Name      string
	Anonymous bool
	Record    *ClassDecl
	Parent    *LookupContext
}

// NewNamespaceContext creates a namespace lookup context.
func NewNamespaceContext(name string, parent *LookupContext) *LookupContext {
	return &LookupContext{
		Kind:      ContextNamespace,
		Name:      name,
		Anonymous: name == "",
		Parent:    parent,
	}
}

// NewRecordContext creates a lookup context for an enclosing class.
func NewRecordContext(record *ClassDecl) *LookupContext {
	return &LookupContext{
		Kind:   ContextRecord,
		Record: record,
	}
}

// NewFunctionContext creates a lookup context for a function body.
func NewFunctionContext(name string, parent *LookupContext) *LookupContext {
	return &LookupContext{
		Kind:   ContextFunction,
		Name:   name,
		Parent: parent,
	}
}

// Next returns the next enclosing context, or nil at the translation unit.
func (c *LookupContext) Next() *LookupContext {
	if c == nil {
		return nil
	}
	if c.Kind == ContextRecord {
		if c.Record == nil {
			return nil
		}
		return c.Record.Parent
	}
	return c.Parent
}

// scopeSegment returns the text this context contributes to a qualified name.
func (c *LookupContext) scopeSegment() string {
	switch c.Kind {
	case ContextNamespace:
		if c.Anonymous {
			return "(anonymous namespace)"
		}
		return c.Name
	case ContextRecord:
		if c.Record == nil {
			return ""
		}
		if c.Record.Name == "" {
			return "(anonymous " + c.Record.Kind.String() + ")"
		}
		return c.Record.Name
	case ContextFunction:
		return c.Name + "()"
	default:
		return ""
	}
}

// QualifiedPrefix returns the "::"-joined scope names from the translation
// unit down to and including this context. Returns "" for nil.
func (c *LookupContext) QualifiedPrefix() string {
	var segments []string
	for ctx := c; ctx != nil; ctx = ctx.Next() {
		segments = append(segments, ctx.scopeSegment())
	}
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return strings.Join(segments, "::")
}

// BaseSpecifier is one entry in a class's base-clause.
type BaseSpecifier struct {
	// Type is the canonical name of the base type: namespace-qualified,
	// aliases expanded, no tag keyword, template arguments verbatim.
	Type string `json:"type"`

	// Written is the base name as it appears in the source.
	Written string `json:"written,omitempty"`

	// Access is the effective access of the inheritance.
	Access AccessSpecifier `json:"access"`

	// Virtual is true for virtual inheritance.
	Virtual bool `json:"virtual,omitempty"`
}

// ClassDecl is a class, struct or union definition delivered by the
// front-end.
type ClassDecl struct {
	// Name is the unqualified name. Empty for anonymous records.
	Name string

	// QualifiedName is the fully scoped name including all enclosing
	// namespaces and classes.
	QualifiedName string

	// Kind is the class-key used in the definition.
	Kind RecordKind

	// Access is the class's own access relative to its immediate enclosing
	// class. AccessNone when not nested in a class.
	Access AccessSpecifier

	// IsTemplate is true when the definition is a class template pattern.
	// Explicit and partial specializations are not patterns.
	IsTemplate bool

	// Bases is the ordered list of base specifiers.
	Bases []BaseSpecifier

	// Parent is the immediate lookup parent. Nil at translation-unit scope.
	Parent *LookupContext

	// FilePath is the file the definition came from.
	FilePath string

	// StartLine is the 1-indexed first line of the definition.
	StartLine int

	// EndLine is the 1-indexed last line of the definition.
	EndLine int
}

// IsAnonymous reports whether the record has no name.
func (c *ClassDecl) IsAnonymous() bool {
	return c == nil || c.Name == ""
}

// Location returns "file:line" for diagnostics.
func (c *ClassDecl) Location() string {
	return fmt.Sprintf("%s:%d", c.FilePath, c.StartLine)
}

// Depth returns the number of enclosing lookup contexts.
func (c *ClassDecl) Depth() int {
	n := 0
	for ctx := c.Parent; ctx != nil; ctx = ctx.Next() {
		n++
	}
	return n
}

// ParseResult is the output of parsing one compilation unit.
type ParseResult struct {
	// FilePath is the path the content was read from.
	FilePath string

	// Language is always "cpp" for this front-end.
	Language string

	// Hash is the hex SHA-256 of the parsed content.
	Hash string

	// ParsedAtMilli is the parse time as Unix milliseconds.
	ParsedAtMilli int64

	// Classes holds every delivered class definition in document order.
	Classes []*ClassDecl

	// Errors holds non-fatal diagnostics (lenient mode syntax errors).
	Errors []string
}

// HasErrors reports whether the parse recorded any diagnostics.
func (r *ParseResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Validate checks structural invariants of the result.
//
// Every delivered class must be named and carry a qualified name.
func (r *ParseResult) Validate() error {
	for i, c := range r.Classes {
		if c == nil {
			return fmt.Errorf("class %d: nil declaration", i)
		}
		if c.IsAnonymous() {
			return fmt.Errorf("class %d at line %d: anonymous class delivered", i, c.StartLine)
		}
		if c.QualifiedName == "" {
			return fmt.Errorf("class %q: empty qualified name", c.Name)
		}
	}
	return nil
}
