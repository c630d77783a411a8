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

import "github.com/AleutianAI/classmap/services/classmap/ast"

// MaxScopeDepth bounds the number of lookup contexts examined for one
// visibility decision. Chains longer than this are treated as not visible.
const MaxScopeDepth = 256

// IsGloballyVisible reports whether decl can be named by ordinary lookup
// from outside every enclosing scope.
//
// Description:
//
//	A class is not visible when it is anonymous, when it is a private or
//	protected member, when an anonymous namespace encloses it, when it is
//	local to a function, or when an enclosing class is itself not visible.
//	Named namespaces are transparent. Reaching the translation unit without
//	a negative finding means visible.
//
//	The ascent is an iterative loop: stepping into an enclosing class
//	restarts the checks with that class as the subject.
//
// Inputs:
//
//	decl - The class definition. Nil is treated as anonymous.
//
// Outputs:
//
//	bool - True if reachable from global scope.
//
// Thread Safety: Pure function; safe for concurrent use.
func IsGloballyVisible(decl *ast.ClassDecl) bool {
	steps := 0
	for {
		if decl.IsAnonymous() {
			return false
		}
		if decl.Access == ast.AccessPrivate || decl.Access == ast.AccessProtected {
			return false
		}

		enclosing, visible := ascend(decl.Parent, &steps)
		if enclosing == nil {
			return visible
		}
		decl = enclosing
	}
}

// ascend walks from ctx toward the translation unit.
//
// It stops at the first enclosing class, returning it so the caller can
// continue with that class as the subject. Otherwise enclosing is nil and
// visible carries the final answer.
func ascend(ctx *ast.LookupContext, steps *int) (enclosing *ast.ClassDecl, visible bool) {
	for ctx != nil {
		*steps++
		if *steps > MaxScopeDepth {
			return nil, false
		}

		switch ctx.Kind {
		case ast.ContextNamespace:
			if ctx.Anonymous {
				return nil, false
			}
			ctx = ctx.Parent
		case ast.ContextRecord:
			if ctx.Record == nil {
				return nil, false
			}
			return ctx.Record, false
		default:
			// Function-local classes cannot be named from outside.
			return nil, false
		}
	}
	return nil, true
}

// VisibilityCache memoizes IsGloballyVisible per declaration.
//
// Nested classes share their ancestors' answers, so a unit with deep
// nesting resolves each enclosing class once. Results always agree with
// IsGloballyVisible.
//
// Thread Safety: NOT safe for concurrent use.
type VisibilityCache struct {
	memo map[*ast.ClassDecl]bool
}

// NewVisibilityCache creates an empty cache.
func NewVisibilityCache() *VisibilityCache {
	return &VisibilityCache{memo: make(map[*ast.ClassDecl]bool)}
}

// IsGloballyVisible returns the memoized visibility of decl.
func (c *VisibilityCache) IsGloballyVisible(decl *ast.ClassDecl) bool {
	return c.resolve(decl, 0)
}

func (c *VisibilityCache) resolve(decl *ast.ClassDecl, depth int) bool {
	if decl == nil {
		return false
	}
	if v, ok := c.memo[decl]; ok {
		return v
	}

	var visible bool
	switch {
	case decl.IsAnonymous(),
		decl.Access == ast.AccessPrivate,
		decl.Access == ast.AccessProtected:
		visible = false
	default:
		steps := depth
		enclosing, v := ascend(decl.Parent, &steps)
		if enclosing != nil {
			visible = c.resolve(enclosing, steps)
		} else {
			visible = v
		}
	}

	c.memo[decl] = visible
	return visible
}

// Len returns the number of memoized declarations.
func (c *VisibilityCache) Len() int {
	return len(c.memo)
}
