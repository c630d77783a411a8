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
	"strings"
	"testing"
)

func TestNormalizeTypeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Base", "Base"},
		{"  ns :: Base ", "ns::Base"},
		{"Pair<int,float>", "Pair<int, float>"},
		{"Pair< int , float >", "Pair<int, float>"},
		{"Box<unsigned   int>", "Box<unsigned int>"},
		{"Outer<Inner<int> >", "Outer<Inner<int>>"},
	}

	for _, tt := range tests {
		if got := normalizeTypeText(tt.in); got != tt.want {
			t.Errorf("normalizeTypeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitTemplateArgs(t *testing.T) {
	tests := []struct {
		in, head, args string
	}{
		{"Base", "Base", ""},
		{"ns::Base<int>", "ns::Base", "<int>"},
		{"Outer<Inner<int>>", "Outer", "<Inner<int>>"},
		{"Outer<int>::Inner", "Outer<int>::Inner", ""},
	}

	for _, tt := range tests {
		head, args := splitTemplateArgs(tt.in)
		if head != tt.head || args != tt.args {
			t.Errorf("splitTemplateArgs(%q) = (%q, %q), want (%q, %q)", tt.in, head, args, tt.head, tt.args)
		}
	}
}

func TestSplitScope(t *testing.T) {
	got := splitScope("::a::b<c::d>::e")
	want := []string{"a", "b<c::d>", "e"}
	if len(got) != len(want) {
		t.Fatalf("splitScope = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d = %q, want %q", i, got[i], want[i])
		}
	}

	scope, last := splitLastScope("a::b::C")
	if scope != "a::b" || last != "C" {
		t.Errorf("splitLastScope = (%q, %q)", scope, last)
	}
}

func TestSymbolTable_Canonicalize(t *testing.T) {
	table := newSymbolTable()
	table.declareRecord("Base", AccessNone, nil)
	table.declareRecord("ns::Base", AccessNone, nil)
	table.declareRecord("ns::Tmpl", AccessNone, nil)
	table.declareAlias("Handle", "ns::Base")
	table.declareAlias("Chain", "Handle")
	table.declareAlias("Loop", "Loop2")
	table.declareAlias("Loop2", "Loop")

	tests := []struct {
		name    string
		written string
		scopes  []string
		want    string
	}{
		{"global record", "Base", []string{""}, "Base"},
		{"innermost scope wins", "Base", []string{"ns::inner", "ns", ""}, "ns::Base"},
		{"absolute name skips scopes", "::Base", []string{"ns", ""}, "Base"},
		{"alias expanded", "Handle", []string{""}, "ns::Base"},
		{"alias chain expanded", "Chain", []string{""}, "ns::Base"},
		{"template args kept", "Tmpl<int,long>", []string{"ns", ""}, "ns::Tmpl<int, long>"},
		{"unknown kept as written", "std::exception", []string{"ns", ""}, "std::exception"},
		{"alias cycle terminates", "Loop", []string{""}, "Loop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := table.canonicalize(tt.written, tt.scopes); got != tt.want {
				t.Errorf("canonicalize(%q) = %q, want %q", tt.written, got, tt.want)
			}
		})
	}
}

func TestSymbolTable_ScopesFromFollowsBases(t *testing.T) {
	table := newSymbolTable()
	ns := NewNamespaceContext("n", nil)
	root := &ClassDecl{Name: "Root", QualifiedName: "n::Root", Parent: ns}
	mid := &ClassDecl{Name: "Mid", QualifiedName: "n::Mid", Parent: ns,
		Bases: []BaseSpecifier{{Type: "n::Root"}, {Type: "std::vector<int>"}}}
	leaf := &ClassDecl{Name: "Leaf", QualifiedName: "n::Leaf", Parent: ns,
		Bases: []BaseSpecifier{{Type: "n::Mid"}, {Type: "n::Root"}}}
	for _, c := range []*ClassDecl{root, mid, leaf} {
		table.declareRecord(c.QualifiedName, AccessNone, c)
	}

	got := table.scopesFrom(NewRecordContext(leaf))
	want := []string{"n::Leaf", "n::Mid", "n::Root", "n", ""}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("scopesFrom = %q, want %q", got, want)
	}

	if got := table.scopesFrom(nil); len(got) != 1 || got[0] != "" {
		t.Errorf("scopesFrom(nil) = %q, want only the translation unit", got)
	}
}

func TestAccessSpecifier_Parse(t *testing.T) {
	tests := []struct {
		in   string
		want AccessSpecifier
		ok   bool
	}{
		{"public", AccessPublic, true},
		{"protected:", AccessProtected, true},
		{" private : ", AccessPrivate, true},
		{"friend", AccessNone, false},
	}
	for _, tt := range tests {
		got, ok := ParseAccessSpecifier(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseAccessSpecifier(%q) = (%s, %v), want (%s, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLookupContext_QualifiedPrefix(t *testing.T) {
	outer := &ClassDecl{Name: "Outer", Kind: RecordClass, Parent: NewNamespaceContext("ns", nil)}
	ctx := NewFunctionContext("run", NewRecordContext(outer))

	if got := ctx.QualifiedPrefix(); got != "ns::Outer::run()" {
		t.Errorf("QualifiedPrefix() = %q", got)
	}

	var nilCtx *LookupContext
	if nilCtx.QualifiedPrefix() != "" || nilCtx.Next() != nil {
		t.Error("nil context should be the translation unit")
	}

	anon := NewRecordContext(&ClassDecl{Kind: RecordUnion})
	if got := anon.QualifiedPrefix(); got != "(anonymous union)" {
		t.Errorf("anonymous record prefix = %q", got)
	}
}
