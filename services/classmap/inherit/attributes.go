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

// AttributeKind selects one of the per-class booleans.
type AttributeKind int

const (
	// AttributeIsTemplate records whether the class is a class template pattern.
	AttributeIsTemplate AttributeKind = iota

	// AttributeIsVisible records whether the class is globally visible.
	AttributeIsVisible

	numAttributeKinds
)

// String returns the serialized name of the attribute.
func (k AttributeKind) String() string {
	switch k {
	case AttributeIsTemplate:
		return "is_template"
	case AttributeIsVisible:
		return "is_visible"
	default:
		return "unknown"
	}
}

// Attributes is the recorded metadata of one class.
type Attributes struct {
	IsTemplate bool `json:"is_template" yaml:"is_template" msgpack:"is_template"`
	IsVisible  bool `json:"is_visible" yaml:"is_visible" msgpack:"is_visible"`
}

// Instantiable reports whether a harness generator can target the class
// directly: visible and not a template pattern.
func (a Attributes) Instantiable() bool {
	return a.IsVisible && !a.IsTemplate
}

type attributeEntry struct {
	values   Attributes
	recorded [numAttributeKinds]bool
}

// AttributeStore holds per-class attributes keyed by qualified name.
//
// Set upserts (last write wins). There is no delete. A name that was never
// set is absent, which callers must treat as "not recorded" rather than as
// false.
//
// Thread Safety: NOT safe for concurrent use.
type AttributeStore struct {
	entries map[string]*attributeEntry
	writes  int
}

// NewAttributeStore creates an empty store.
func NewAttributeStore() *AttributeStore {
	return &AttributeStore{entries: make(map[string]*attributeEntry)}
}

// Set records one attribute of a class. Unknown kinds are ignored.
func (s *AttributeStore) Set(name string, kind AttributeKind, value bool) {
	if kind < 0 || kind >= numAttributeKinds {
		return
	}
	entry, ok := s.entries[name]
	if !ok {
		entry = &attributeEntry{}
		s.entries[name] = entry
	}
	switch kind {
	case AttributeIsTemplate:
		entry.values.IsTemplate = value
	case AttributeIsVisible:
		entry.values.IsVisible = value
	}
	entry.recorded[kind] = true
	s.writes++
}

// Get returns one attribute of a class. ok is false if that attribute was
// never set for name.
func (s *AttributeStore) Get(name string, kind AttributeKind) (value bool, ok bool) {
	entry, exists := s.entries[name]
	if !exists || kind < 0 || kind >= numAttributeKinds || !entry.recorded[kind] {
		return false, false
	}
	switch kind {
	case AttributeIsTemplate:
		return entry.values.IsTemplate, true
	default:
		return entry.values.IsVisible, true
	}
}

// Lookup returns all attributes of a class.
func (s *AttributeStore) Lookup(name string) (Attributes, bool) {
	entry, ok := s.entries[name]
	if !ok {
		return Attributes{}, false
	}
	return entry.values, true
}

// Len returns the number of classes with at least one recorded attribute.
func (s *AttributeStore) Len() int {
	return len(s.entries)
}

// Writes returns the total number of Set calls that were applied.
func (s *AttributeStore) Writes() int {
	return s.writes
}

// Names returns the recorded class names, sorted.
func (s *AttributeStore) Names() []string {
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of all recorded attributes.
func (s *AttributeStore) Snapshot() map[string]Attributes {
	out := make(map[string]Attributes, len(s.entries))
	for name, entry := range s.entries {
		out[name] = entry.values
	}
	return out
}
