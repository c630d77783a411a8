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
	"github.com/stretchr/testify/require"
)

func TestAttributeStore(t *testing.T) {
	t.Run("absent name is not recorded", func(t *testing.T) {
		s := NewAttributeStore()
		v, ok := s.Get("Missing", AttributeIsVisible)
		assert.False(t, v)
		assert.False(t, ok)
		_, ok = s.Lookup("Missing")
		assert.False(t, ok)
	})

	t.Run("kinds are independent", func(t *testing.T) {
		s := NewAttributeStore()
		s.Set("A", AttributeIsTemplate, true)

		v, ok := s.Get("A", AttributeIsTemplate)
		assert.True(t, ok)
		assert.True(t, v)

		_, ok = s.Get("A", AttributeIsVisible)
		assert.False(t, ok, "is_visible was never set")
	})

	t.Run("last write wins", func(t *testing.T) {
		s := NewAttributeStore()
		s.Set("A", AttributeIsVisible, true)
		s.Set("A", AttributeIsVisible, false)

		v, ok := s.Get("A", AttributeIsVisible)
		assert.True(t, ok)
		assert.False(t, v)
		assert.Equal(t, 2, s.Writes())
		assert.Equal(t, 1, s.Len())
	})

	t.Run("unknown kind ignored", func(t *testing.T) {
		s := NewAttributeStore()
		s.Set("A", AttributeKind(42), true)
		assert.Equal(t, 0, s.Len())
		assert.Equal(t, 0, s.Writes())
		assert.Equal(t, "unknown", AttributeKind(42).String())
	})

	t.Run("names sorted and snapshot copied", func(t *testing.T) {
		s := NewAttributeStore()
		s.Set("b::C", AttributeIsVisible, true)
		s.Set("A", AttributeIsTemplate, true)
		assert.Equal(t, []string{"A", "b::C"}, s.Names())

		snap := s.Snapshot()
		snap["A"] = Attributes{}
		got, ok := s.Lookup("A")
		require.True(t, ok)
		assert.True(t, got.IsTemplate)
	})
}

func TestAttributes_Instantiable(t *testing.T) {
	assert.True(t, Attributes{IsVisible: true}.Instantiable())
	assert.False(t, Attributes{IsVisible: true, IsTemplate: true}.Instantiable())
	assert.False(t, Attributes{}.Instantiable())
}

func TestInheritanceMap(t *testing.T) {
	m := NewInheritanceMap()

	assert.True(t, m.Insert("Base", "Z"))
	assert.True(t, m.Insert("Base", "A"))
	assert.False(t, m.Insert("Base", "A"), "duplicate edge is a no-op")
	assert.True(t, m.Insert("Other", "A"))

	assert.Equal(t, []string{"A", "Z"}, m.Derived("Base"))
	assert.Nil(t, m.Derived("Missing"))
	assert.True(t, m.Contains("Other", "A"))
	assert.False(t, m.Contains("Other", "Z"))
	assert.Equal(t, []string{"Base", "Other"}, m.Bases())
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 3, m.EdgeCount())

	snap := m.Snapshot()
	assert.Equal(t, map[string][]string{
		"Base":  {"A", "Z"},
		"Other": {"A"},
	}, snap)
}
