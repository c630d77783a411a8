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
	"unicode"
)

// maxAliasDepth bounds alias chain expansion (typedef of typedef of ...).
const maxAliasDepth = 16

// recordEntry is what the symbol table knows about one record name.
type recordEntry struct {
	decl   *ClassDecl
	access AccessSpecifier
}

// symbolTable records the record and alias names declared so far in a
// compilation unit, keyed by qualified name. It backs base-name
// canonicalization: a base is resolved against the names visible at the
// point where the derived class is defined.
type symbolTable struct {
	records map[string]*recordEntry
	aliases map[string]string
}

func newSymbolTable() *symbolTable {
	return &symbolTable{
		records: make(map[string]*recordEntry),
		aliases: make(map[string]string),
	}
}

// declareRecord records a forward declaration or definition. The access of
// the first declaration wins; a definition always replaces decl.
func (t *symbolTable) declareRecord(qname string, access AccessSpecifier, decl *ClassDecl) *recordEntry {
	entry, ok := t.records[qname]
	if !ok {
		entry = &recordEntry{access: access}
		t.records[qname] = entry
	}
	if decl != nil {
		entry.decl = decl
	}
	return entry
}

func (t *symbolTable) declareAlias(qname, target string) {
	t.aliases[qname] = target
}

// canonicalize resolves a base name as written to the canonical key.
//
// scopes lists the enclosing scope prefixes from innermost to outermost,
// ending with "" for the translation unit.
func (t *symbolTable) canonicalize(written string, scopes []string) string {
	name := normalizeTypeText(written)
	for depth := 0; depth < maxAliasDepth; depth++ {
		head, args := splitTemplateArgs(name)
		absolute := strings.HasPrefix(head, "::")
		head = strings.TrimPrefix(head, "::")

		candidates := scopes
		if absolute {
			candidates = []string{""}
		}

		resolved, isAlias, found := t.lookup(head, candidates)
		if !found {
			return head + args
		}
		if !isAlias {
			return resolved + args
		}
		if args != "" {
			// Alias templates are not tracked; keep what was written.
			return head + args
		}
		// Targets are canonical already, so further lookups are absolute.
		if resolved == name {
			return resolved
		}
		name = resolved
		scopes = []string{""}
	}
	return name
}

// lookup finds head in the innermost scope that declares it.
func (t *symbolTable) lookup(head string, scopes []string) (string, bool, bool) {
	for _, scope := range scopes {
		qname := head
		if scope != "" {
			qname = scope + "::" + head
		}
		if target, ok := t.aliases[qname]; ok {
			return target, true, true
		}
		if _, ok := t.records[qname]; ok {
			return qname, false, true
		}
	}
	return "", false, false
}

// scopesFrom lists the scope prefixes searched for a name used at ctx,
// innermost first, ending with the translation unit (""). An enclosing
// record is followed by the scopes of its known bases, depth first, so
// member types inherited from a base resolve to the base's name. Bases
// with template arguments are not searched.
func (t *symbolTable) scopesFrom(ctx *LookupContext) []string {
	var scopes []string
	seen := make(map[string]bool)
	add := func(scope string) {
		if !seen[scope] {
			seen[scope] = true
			scopes = append(scopes, scope)
		}
	}
	for c := ctx; c != nil; c = c.Next() {
		add(c.QualifiedPrefix())
		if c.Kind == ContextRecord {
			t.addBaseScopes(c.Record, add, 0)
		}
	}
	add("")
	return scopes
}

func (t *symbolTable) addBaseScopes(decl *ClassDecl, add func(string), depth int) {
	if decl == nil || depth >= maxAliasDepth {
		return
	}
	for _, base := range decl.Bases {
		entry, ok := t.records[base.Type]
		if !ok {
			continue
		}
		add(base.Type)
		t.addBaseScopes(entry.decl, add, depth+1)
	}
}

// splitTemplateArgs splits "ns::Base<int, T>" into "ns::Base" and "<int, T>".
// Only a trailing argument list at nesting depth zero is split off.
func splitTemplateArgs(name string) (string, string) {
	if !strings.HasSuffix(name, ">") {
		return name, ""
	}
	depth := 0
	for i := len(name) - 1; i >= 0; i-- {
		switch name[i] {
		case '>':
			depth++
		case '<':
			depth--
			if depth == 0 {
				return name[:i], name[i:]
			}
		}
	}
	return name, ""
}

// normalizeTypeText rewrites type text into clang's printing layout: no
// whitespace around punctuation, a single space between adjacent words and
// ", " between template arguments.
func normalizeTypeText(text string) string {
	var b strings.Builder
	prevWord := false
	pendingSpace := false

	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
		case isWordRune(r):
			if prevWord && pendingSpace {
				b.WriteByte(' ')
			}
			b.WriteRune(r)
			prevWord = true
			pendingSpace = false
		case r == ',':
			b.WriteString(", ")
			prevWord = false
			pendingSpace = false
		default:
			b.WriteRune(r)
			prevWord = false
			pendingSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
