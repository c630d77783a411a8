// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package inherit builds the public-inheritance map and per-class
// attributes of a C++ compilation unit.
//
// The package consumes class definitions delivered by the ast front-end
// and produces two maps:
//   - InheritanceMap: canonical base name -> set of derived qualified names,
//     recorded only for public bases
//   - AttributeStore: qualified name -> {is_template, is_visible}
//
// # Ownership Model
//
// Both maps live in a Context that is owned by exactly one analysis run.
// The Builder receives the Context at construction and mutates it on every
// Visit; there is no package-level state.
//
// # Thread Safety
//
// Context, Builder, InheritanceMap and AttributeStore are NOT safe for
// concurrent use. One run is single-threaded and synchronous. The Analyzer
// may run several compilation units in parallel, each with its own Context.
//
// # Lifecycle
//
//  1. Create with NewContext()
//  2. Call Builder.Visit once per delivered class definition
//  3. Read the maps after the last Visit
package inherit

import "errors"

// Sentinel errors for analysis runs.
var (
	// ErrNilSource is returned when Process is called without source bytes.
	ErrNilSource = errors.New("nil source")

	// ErrAnalysisCancelled is returned when the context is cancelled while
	// class definitions are still being visited. Partial maps are discarded.
	ErrAnalysisCancelled = errors.New("analysis cancelled")
)
