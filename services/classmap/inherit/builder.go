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
	"log/slog"

	"github.com/AleutianAI/classmap/services/classmap/ast"
)

// Context holds the two maps accumulated by one analysis run.
//
// A Context is created per compilation unit and passed to the Builder.
// There is no cross-unit merge.
type Context struct {
	// Inheritance maps canonical base names to publicly derived classes.
	Inheritance *InheritanceMap

	// Attributes holds per-class is_template / is_visible.
	Attributes *AttributeStore
}

// NewContext creates a Context with empty maps.
func NewContext() *Context {
	return &Context{
		Inheritance: NewInheritanceMap(),
		Attributes:  NewAttributeStore(),
	}
}

// BuildStats counts what a Builder did.
type BuildStats struct {
	// ClassesVisited is the number of Visit calls with a named class.
	ClassesVisited int `json:"classes_visited" yaml:"classes_visited" msgpack:"classes_visited"`

	// ClassesWithBases is the number of visited classes with at least one base.
	ClassesWithBases int `json:"classes_with_bases" yaml:"classes_with_bases" msgpack:"classes_with_bases"`

	// EdgesInserted is the number of new (base, derived) pairs.
	EdgesInserted int `json:"edges_inserted" yaml:"edges_inserted" msgpack:"edges_inserted"`

	// NonPublicBases is the number of protected/private bases skipped.
	NonPublicBases int `json:"non_public_bases" yaml:"non_public_bases" msgpack:"non_public_bases"`

	// AttributeWrites is the number of per-base attribute recordings.
	// Each recording sets both is_template and is_visible.
	AttributeWrites int `json:"attribute_writes" yaml:"attribute_writes" msgpack:"attribute_writes"`
}

// VisibilityFunc decides global visibility of a class.
type VisibilityFunc func(decl *ast.ClassDecl) bool

// BuilderOptions configures Builder behavior.
type BuilderOptions struct {
	// Visibility resolves is_visible. Default: IsGloballyVisible.
	Visibility VisibilityFunc

	// Logger receives debug output. Default: slog.Default().
	Logger *slog.Logger
}

// BuilderOption is a functional option for configuring Builder.
type BuilderOption func(*BuilderOptions)

// WithVisibilityCache resolves visibility through a memoizing cache.
func WithVisibilityCache(cache *VisibilityCache) BuilderOption {
	return func(o *BuilderOptions) {
		if cache != nil {
			o.Visibility = cache.IsGloballyVisible
		}
	}
}

// WithBuilderLogger sets the logger.
func WithBuilderLogger(logger *slog.Logger) BuilderOption {
	return func(o *BuilderOptions) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// Builder records public-inheritance edges and class attributes into a
// Context, one class definition at a time.
//
// Thread Safety: NOT safe for concurrent use.
type Builder struct {
	ctx     *Context
	options BuilderOptions
	stats   BuildStats
}

// NewBuilder creates a builder writing into ctx. A nil ctx gets a fresh one.
func NewBuilder(ctx *Context, opts ...BuilderOption) *Builder {
	options := BuilderOptions{
		Visibility: IsGloballyVisible,
		Logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if ctx == nil {
		ctx = NewContext()
	}
	return &Builder{ctx: ctx, options: options}
}

// Context returns the context the builder writes into.
func (b *Builder) Context() *Context {
	return b.ctx
}

// Stats returns the counters accumulated so far.
func (b *Builder) Stats() BuildStats {
	return b.stats
}

// Visit processes one class definition.
//
// Description:
//
//	For every base specifier of decl:
//	  - a public base inserts decl's qualified name under the base's
//	    canonical name
//	  - any base records is_template and is_visible for decl
//
//	A class without bases therefore leaves both maps untouched. Edges are
//	recorded whether or not decl itself is globally visible.
//
// Inputs:
//
//	decl - The class definition. Nil and anonymous classes are ignored.
func (b *Builder) Visit(decl *ast.ClassDecl) {
	if decl.IsAnonymous() {
		return
	}
	b.stats.ClassesVisited++

	if len(decl.Bases) == 0 {
		return
	}
	b.stats.ClassesWithBases++

	name := decl.QualifiedName
	for _, base := range decl.Bases {
		if base.Access == ast.AccessPublic {
			if b.ctx.Inheritance.Insert(base.Type, name) {
				b.stats.EdgesInserted++
			}
		} else {
			b.stats.NonPublicBases++
			b.options.Logger.Debug("non-public base skipped",
				slog.String("class", name),
				slog.String("location", decl.Location()),
				slog.String("base", base.Type),
				slog.String("access", base.Access.String()),
			)
		}

		b.ctx.Attributes.Set(name, AttributeIsTemplate, decl.IsTemplate)
		b.ctx.Attributes.Set(name, AttributeIsVisible, b.options.Visibility(decl))
		b.stats.AttributeWrites++
	}
}
