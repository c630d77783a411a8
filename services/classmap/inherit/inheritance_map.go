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

import "sort"

// InheritanceMap maps a canonical base name to the set of qualified names
// of classes that publicly derive from it.
//
// The map only grows. Inserting an existing edge is a no-op.
//
// Thread Safety: NOT safe for concurrent use.
type InheritanceMap struct {
	edges map[string]map[string]struct{}
	count int
}

// NewInheritanceMap creates an empty map.
func NewInheritanceMap() *InheritanceMap {
	return &InheritanceMap{edges: make(map[string]map[string]struct{})}
}

// Insert adds derived to the set for base, creating the set if absent.
// Returns true if the edge was new.
func (m *InheritanceMap) Insert(base, derived string) bool {
	set, ok := m.edges[base]
	if !ok {
		set = make(map[string]struct{})
		m.edges[base] = set
	}
	if _, exists := set[derived]; exists {
		return false
	}
	set[derived] = struct{}{}
	m.count++
	return true
}

// Contains reports whether derived is recorded under base.
func (m *InheritanceMap) Contains(base, derived string) bool {
	_, ok := m.edges[base][derived]
	return ok
}

// Derived returns the classes recorded under base, sorted. Returns nil if
// base has no entry.
func (m *InheritanceMap) Derived(base string) []string {
	set, ok := m.edges[base]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Bases returns every base key, sorted.
func (m *InheritanceMap) Bases() []string {
	out := make([]string, 0, len(m.edges))
	for base := range m.edges {
		out = append(out, base)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of base keys.
func (m *InheritanceMap) Len() int {
	return len(m.edges)
}

// EdgeCount returns the number of distinct (base, derived) pairs.
func (m *InheritanceMap) EdgeCount() int {
	return m.count
}

// Snapshot returns a copy with each derived set as a sorted slice.
func (m *InheritanceMap) Snapshot() map[string][]string {
	out := make(map[string][]string, len(m.edges))
	for base := range m.edges {
		out[base] = m.Derived(base)
	}
	return out
}
