// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package inherit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/classmap/services/classmap/ast"
)

// namespaces builds a named namespace chain, outermost first.
func namespaces(names ...string) *ast.LookupContext {
	var ctx *ast.LookupContext
	for _, name := range names {
		ctx = ast.NewNamespaceContext(name, ctx)
	}
	return ctx
}

func class(name string, access ast.AccessSpecifier, parent *ast.LookupContext, bases ...ast.BaseSpecifier) *ast.ClassDecl {
	qualified := name
	if prefix := parent.QualifiedPrefix(); prefix != "" && name != "" {
		qualified = prefix + "::" + name
	}
	return &ast.ClassDecl{
		Name:          name,
		QualifiedName: qualified,
		Kind:          ast.RecordClass,
		Access:        access,
		Parent:        parent,
		Bases:         bases,
	}
}

func publicBase(name string) ast.BaseSpecifier {
	return ast.BaseSpecifier{Type: name, Written: name, Access: ast.AccessPublic}
}

func visibilityCases() []struct {
	name string
	decl *ast.ClassDecl
	want bool
} {
	visibleOuter := class("Outer", ast.AccessNone, namespaces("ns"))
	hiddenOuter := class("Hidden", ast.AccessPrivate, ast.NewRecordContext(visibleOuter))
	anonRecord := &ast.ClassDecl{Kind: ast.RecordStruct}

	deep := namespaces()
	for i := 0; i < MaxScopeDepth+10; i++ {
		deep = ast.NewNamespaceContext("n", deep)
	}
	limit := namespaces()
	for i := 0; i < MaxScopeDepth; i++ {
		limit = ast.NewNamespaceContext("n", limit)
	}

	return []struct {
		name string
		decl *ast.ClassDecl
		want bool
	}{
		{"nil", nil, false},
		{"global", class("A", ast.AccessNone, nil), true},
		{"named namespace", class("A", ast.AccessNone, namespaces("a", "b")), true},
		{"anonymous namespace", class("A", ast.AccessNone, namespaces("")), false},
		{"inside anonymous namespace deep", class("A", ast.AccessNone, namespaces("outer", "", "inner")), false},
		{"anonymous class", anonRecord, false},
		{"public nested", class("Inner", ast.AccessPublic, ast.NewRecordContext(visibleOuter)), true},
		{"private nested", class("Inner", ast.AccessPrivate, ast.NewRecordContext(visibleOuter)), false},
		{"protected nested", class("Inner", ast.AccessProtected, ast.NewRecordContext(visibleOuter)), false},
		{"public inside private", class("Leaf", ast.AccessPublic, ast.NewRecordContext(hiddenOuter)), false},
		{"inside anonymous record", class("Named", ast.AccessPublic, ast.NewRecordContext(anonRecord)), false},
		{"record context without record", class("A", ast.AccessPublic, &ast.LookupContext{Kind: ast.ContextRecord}), false},
		{"function local", class("Local", ast.AccessNone, ast.NewFunctionContext("f", nil)), false},
		{"nested in function local", class("Inner", ast.AccessPublic, ast.NewRecordContext(class("Local", ast.AccessNone, ast.NewFunctionContext("f", nil)))), false},
		{"depth at limit", class("A", ast.AccessNone, limit), true},
		{"depth beyond limit", class("A", ast.AccessNone, deep), false},
	}
}

func TestIsGloballyVisible(t *testing.T) {
	for _, tt := range visibilityCases() {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsGloballyVisible(tt.decl))
		})
	}
}

func TestVisibilityCache_AgreesWithPredicate(t *testing.T) {
	cache := NewVisibilityCache()
	for _, tt := range visibilityCases() {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, IsGloballyVisible(tt.decl), cache.IsGloballyVisible(tt.decl))
			// Second lookup is served from the memo.
			assert.Equal(t, tt.want, cache.IsGloballyVisible(tt.decl))
		})
	}
}

func TestVisibilityCache_SharesAncestors(t *testing.T) {
	outer := class("Outer", ast.AccessNone, nil)
	a := class("A", ast.AccessPublic, ast.NewRecordContext(outer))
	b := class("B", ast.AccessPublic, ast.NewRecordContext(outer))

	cache := NewVisibilityCache()
	assert.True(t, cache.IsGloballyVisible(a))
	assert.True(t, cache.IsGloballyVisible(b))
	assert.Equal(t, 3, cache.Len())
}
