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
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
)

// File size limits for the C++ front-end.
const (
	// DefaultMaxFileSize is the default maximum file size (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// WarnFileSize is the size above which a warning is logged (1MB).
	WarnFileSize = 1 * 1024 * 1024
)

// CppParserOption configures a CppParser instance.
type CppParserOption func(*CppParser)

// WithCppMaxFileSize sets the maximum file size the parser will accept.
// Non-positive values are ignored.
func WithCppMaxFileSize(bytes int64) CppParserOption {
	return func(p *CppParser) {
		if bytes > 0 {
			p.maxFileSize = bytes
		}
	}
}

// WithCppStrict controls how syntax errors are handled.
//
// In strict mode (the default) any syntax error fails the parse with a
// *ParseError wrapping ErrParseFailed. In lenient mode the error is
// recorded in ParseResult.Errors and extraction continues over the
// recovered tree.
func WithCppStrict(strict bool) CppParserOption {
	return func(p *CppParser) {
		p.strict = strict
	}
}

// CppParser implements the Parser interface for C++ source code.
//
// Description:
//
//	CppParser uses tree-sitter to parse C++ and delivers every class, struct
//	and union definition of the unit in document order. It does not run a
//	preprocessor: #include is not followed and only the first branch of a
//	conditional group is walked.
//
// Thread Safety:
//
//	CppParser instances are safe for concurrent use. Each Parse call
//	creates its own tree-sitter parser.
type CppParser struct {
	maxFileSize int64
	strict      bool
}

// NewCppParser creates a new CppParser with the given options.
func NewCppParser(opts ...CppParserOption) *CppParser {
	p := &CppParser{
		maxFileSize: DefaultMaxFileSize,
		strict:      true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Language returns "cpp".
func (p *CppParser) Language() string {
	return "cpp"
}

// Extensions returns the C++ source and header extensions.
func (p *CppParser) Extensions() []string {
	return []string{".cc", ".cpp", ".cxx", ".c++", ".hpp", ".hh", ".hxx", ".h", ".ipp"}
}

// Parse extracts class definitions from C++ source code.
//
// Description:
//
//	Parses the content with the tree-sitter C++ grammar, then walks the tree
//	keeping the chain of enclosing namespaces, classes and function bodies.
//	Definitions inside anonymous namespaces are walked for name resolution
//	but never delivered; anonymous records are never delivered.
//
// Outputs:
//   - *ParseResult: Delivered definitions. Never nil on success.
//   - error: ErrFileTooLarge, ErrInvalidContent, a *ParseError wrapping
//     ErrParseFailed (strict mode syntax error), or a context error.
func (p *CppParser) Parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	ctx, span := startParseSpan(ctx, filePath, len(content))
	defer span.End()
	start := time.Now()

	result, err := p.parse(ctx, content, filePath)
	if err != nil {
		recordParseMetrics(ctx, time.Since(start), 0, false)
		span.RecordError(err)
		return nil, err
	}

	recordParseMetrics(ctx, time.Since(start), len(result.Classes), true)
	setParseSpanResult(span, len(result.Classes), len(result.Errors))
	return result, nil
}

func (p *CppParser) parse(ctx context.Context, content []byte, filePath string) (*ParseResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled before start: %w", err)
	}
	if content == nil {
		return nil, fmt.Errorf("%w: nil content", ErrInvalidContent)
	}
	if int64(len(content)) > p.maxFileSize {
		return nil, fmt.Errorf("%w: size %d exceeds limit %d", ErrFileTooLarge, len(content), p.maxFileSize)
	}
	if len(content) > WarnFileSize {
		slog.Warn("parsing large file",
			slog.String("file", filePath),
			slog.Int("size_bytes", len(content)))
	}
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: content is not valid UTF-8", ErrInvalidContent)
	}

	hash := sha256.Sum256(content)

	parser := sitter.NewParser()
	parser.SetLanguage(cpp.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, syntaxError(filePath, 0, 0, "tree-sitter parse failed", fmt.Errorf("%w: %v", ErrParseFailed, err))
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled after tree-sitter: %w", err)
	}

	result := &ParseResult{
		FilePath:      filePath,
		Language:      "cpp",
		Hash:          hex.EncodeToString(hash[:]),
		ParsedAtMilli: time.Now().UnixMilli(),
		Classes:       make([]*ClassDecl, 0),
		Errors:        make([]string, 0),
	}

	root := tree.RootNode()
	if root == nil {
		return nil, syntaxError(filePath, 0, 0, "tree-sitter returned nil root node", ErrParseFailed)
	}

	if root.HasError() {
		syntaxErr := firstSyntaxError(root, content, filePath)
		if p.strict {
			return nil, syntaxErr
		}
		result.Errors = append(result.Errors, syntaxErr.Error())
		slog.Debug("continuing past syntax error",
			slog.String("file", filePath),
			slog.String("error", syntaxErr.Error()))
	}

	ex := newClassExtractor(content, filePath)
	ex.walk(root, walkState{})
	result.Classes = ex.classes

	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("result validation failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("parse canceled after extraction: %w", err)
	}
	return result, nil
}

// firstSyntaxError returns a ParseError for the first ERROR or MISSING node
// in document order.
func firstSyntaxError(root *sitter.Node, content []byte, filePath string) *ParseError {
	var found *sitter.Node
	var find func(n *sitter.Node)
	find = func(n *sitter.Node) {
		if found != nil || n == nil {
			return
		}
		if n.IsError() || n.IsMissing() {
			found = n
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			find(n.Child(i))
		}
	}
	find(root)

	if found == nil {
		return syntaxError(filePath, 0, 0, "source contains syntax errors", ErrParseFailed)
	}

	msg := "syntax error"
	if found.IsMissing() {
		msg = "missing " + found.Type()
	} else {
		near := string(content[found.StartByte():found.EndByte()])
		if len(near) > 40 {
			near = near[:40] + "..."
		}
		if near != "" {
			msg = "syntax error near " + fmt.Sprintf("%q", near)
		}
	}
	pt := found.StartPoint()
	return syntaxError(filePath, int(pt.Row)+1, int(pt.Column)+1, msg, ErrParseFailed)
}

// walkState is the traversal position: the lookup parent for anything
// defined here, the access that applies to record members, and whether we
// are inside an anonymous namespace. templateParams holds the type
// parameter names of every enclosing template declaration.
type walkState struct {
	ctx            *LookupContext
	memberAccess   AccessSpecifier
	suppressed     bool
	templateParams []string
}

// nested returns the state for a new scope: same suppression and template
// parameters, no member access.
func (st walkState) nested(ctx *LookupContext) walkState {
	return walkState{ctx: ctx, suppressed: st.suppressed, templateParams: st.templateParams}
}

func (st walkState) withTemplateParams(names []string) walkState {
	if len(names) == 0 {
		return st
	}
	merged := make([]string, 0, len(st.templateParams)+len(names))
	st.templateParams = append(append(merged, st.templateParams...), names...)
	return st
}

type nodeKey struct {
	start, end uint32
}

func keyOf(n *sitter.Node) nodeKey {
	return nodeKey{start: n.StartByte(), end: n.EndByte()}
}

// classExtractor walks one syntax tree and collects class definitions.
type classExtractor struct {
	content          []byte
	filePath         string
	table            *symbolTable
	classes          []*ClassDecl
	templatePatterns map[nodeKey]bool
}

func newClassExtractor(content []byte, filePath string) *classExtractor {
	return &classExtractor{
		content:          content,
		filePath:         filePath,
		table:            newSymbolTable(),
		templatePatterns: make(map[nodeKey]bool),
	}
}

func (e *classExtractor) text(n *sitter.Node) string {
	return string(e.content[n.StartByte():n.EndByte()])
}

func isRecordSpecifier(nodeType string) bool {
	switch nodeType {
	case "class_specifier", "struct_specifier", "union_specifier":
		return true
	}
	return false
}

func recordKindOf(nodeType string) RecordKind {
	switch nodeType {
	case "struct_specifier":
		return RecordStruct
	case "union_specifier":
		return RecordUnion
	default:
		return RecordClass
	}
}

func (e *classExtractor) walk(n *sitter.Node, st walkState) {
	if n == nil {
		return
	}

	switch n.Type() {
	case "namespace_definition":
		e.walkNamespace(n, st)
	case "class_specifier", "struct_specifier", "union_specifier":
		e.walkRecord(n, st)
	case "template_declaration":
		e.markTemplatePattern(n)
		e.walkChildren(n, st.withTemplateParams(e.templateParamNames(n)))
	case "function_definition":
		e.walkFunction(n, st)
	case "lambda_expression":
		if body := n.ChildByFieldName("body"); body != nil {
			e.walk(body, st.nested(NewFunctionContext("(lambda)", st.ctx)))
		}
	case "alias_declaration":
		e.declareUsingAlias(n, st)
	case "type_definition":
		e.walkChildren(n, st)
		e.declareTypedef(n, st)
	case "using_declaration":
		e.declareUsingName(n, st)
	case "friend_declaration", "enum_specifier":
		// Friend classes are not members; enums cannot be bases.
	case "preproc_else", "preproc_elif", "preproc_elifdef":
		// Only the first branch of a conditional group is walked.
	default:
		e.walkChildren(n, st)
	}
}

func (e *classExtractor) walkChildren(n *sitter.Node, st walkState) {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil || !child.IsNamed() {
			continue
		}
		e.walk(child, st)
	}
}

func (e *classExtractor) walkNamespace(n *sitter.Node, st walkState) {
	body := n.ChildByFieldName("body")
	nameNode := n.ChildByFieldName("name")

	inner := walkState{ctx: st.ctx, suppressed: st.suppressed}
	if nameNode == nil {
		inner.ctx = NewNamespaceContext("", st.ctx)
		inner.suppressed = true
	} else {
		for _, seg := range splitScope(e.text(nameNode)) {
			seg = strings.TrimSpace(strings.TrimPrefix(seg, "inline "))
			inner.ctx = NewNamespaceContext(seg, inner.ctx)
		}
	}

	if body != nil {
		e.walk(body, inner)
	}
}

func (e *classExtractor) walkFunction(n *sitter.Node, st walkState) {
	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	name := e.functionName(n.ChildByFieldName("declarator"))
	e.walk(body, st.nested(NewFunctionContext(name, st.ctx)))
}

// functionName unwraps pointer, reference and function declarators down to
// the declared name.
func (e *classExtractor) functionName(n *sitter.Node) string {
	for n != nil {
		if !strings.HasSuffix(n.Type(), "_declarator") {
			return normalizeTypeText(e.text(n))
		}
		next := n.ChildByFieldName("declarator")
		if next == nil && n.NamedChildCount() > 0 {
			next = n.NamedChild(int(n.NamedChildCount()) - 1)
		}
		n = next
	}
	return "(anonymous)"
}

// templateParamNames returns the type and template template parameter
// names a template declaration introduces. Non-type parameters cannot name
// a base and are skipped.
func (e *classExtractor) templateParamNames(n *sitter.Node) []string {
	params := n.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	var names []string
	for i := 0; i < int(params.NamedChildCount()); i++ {
		if name := e.typeParamName(params.NamedChild(i)); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (e *classExtractor) typeParamName(p *sitter.Node) string {
	if p == nil {
		return ""
	}
	switch p.Type() {
	case "optional_type_parameter_declaration":
		if name := p.ChildByFieldName("name"); name != nil {
			return e.text(name)
		}
	case "type_parameter_declaration", "variadic_type_parameter_declaration":
		for i := 0; i < int(p.NamedChildCount()); i++ {
			if c := p.NamedChild(i); c != nil && c.Type() == "type_identifier" {
				return e.text(c)
			}
		}
	case "template_template_parameter_declaration":
		for i := 0; i < int(p.NamedChildCount()); i++ {
			if c := p.NamedChild(i); c != nil && c.Type() != "template_parameter_list" {
				return e.typeParamName(c)
			}
		}
	}
	return ""
}

// markTemplatePattern records the record specifier declared by a template
// declaration with a non-empty parameter list.
func (e *classExtractor) markTemplatePattern(n *sitter.Node) {
	params := n.ChildByFieldName("parameters")
	if params == nil || params.NamedChildCount() == 0 {
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil || child.Type() == "template_parameter_list" {
			continue
		}
		if isRecordSpecifier(child.Type()) {
			e.templatePatterns[keyOf(child)] = true
			return
		}
		if child.Type() == "declaration" || child.Type() == "field_declaration" {
			if t := child.ChildByFieldName("type"); t != nil && isRecordSpecifier(t.Type()) {
				e.templatePatterns[keyOf(t)] = true
				return
			}
		}
	}
}

func (e *classExtractor) walkRecord(n *sitter.Node, st walkState) {
	kind := recordKindOf(n.Type())
	nameNode := n.ChildByFieldName("name")
	body := n.ChildByFieldName("body")

	if body == nil {
		// Forward declaration or elaborated type specifier.
		if nameNode != nil && nameNode.Type() != "template_type" {
			e.declare(st.ctx, normalizeTypeText(e.text(nameNode)), st.memberAccess, nil)
		}
		return
	}

	decl := &ClassDecl{
		Kind:      kind,
		Access:    st.memberAccess,
		Parent:    st.ctx,
		FilePath:  e.filePath,
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
	}

	specialization := false
	if nameNode != nil {
		written := normalizeTypeText(e.text(nameNode))
		scope, last := splitLastScope(written)
		if scope != "" || strings.HasPrefix(written, "::") {
			decl.Parent, decl.Access = e.resolveDefinitionScope(st.ctx, scope, written)
		}
		name, args := splitTemplateArgs(last)
		decl.Name = name
		specialization = args != ""
	}

	if !decl.IsAnonymous() {
		decl.QualifiedName = qualify(decl.Parent, decl.Name)
		decl.IsTemplate = e.templatePatterns[keyOf(n)] && !specialization
		e.declare(decl.Parent, decl.Name, decl.Access, decl)
	}

	decl.Bases = e.baseSpecifiers(n, kind, st.nested(decl.Parent))

	if !decl.IsAnonymous() && !st.suppressed {
		e.classes = append(e.classes, decl)
	}

	e.walkMembers(body, kind, st.nested(NewRecordContext(decl)))
}

// declare enters a record name into the symbol table. Names declared
// directly in an anonymous namespace are also reachable unqualified from
// the enclosing scope.
func (e *classExtractor) declare(ctx *LookupContext, name string, access AccessSpecifier, decl *ClassDecl) {
	qname := qualify(ctx, name)
	e.table.declareRecord(qname, access, decl)
	if ctx != nil && ctx.Kind == ContextNamespace && ctx.Anonymous {
		outer := qualify(ctx.Parent, name)
		if _, ok := e.table.records[outer]; !ok {
			e.table.declareAlias(outer, qname)
		}
	}
}

// walkMembers walks a field_declaration_list, tracking access labels.
func (e *classExtractor) walkMembers(body *sitter.Node, kind RecordKind, st walkState) {
	st.memberAccess = kind.DefaultMemberAccess()
	e.walkMemberList(body, &st)
}

// walkMemberList walks member items in order. A label inside the first
// branch of a conditional group applies to the members after the group.
func (e *classExtractor) walkMemberList(n *sitter.Node, st *walkState) {
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child == nil || !child.IsNamed() {
			continue
		}
		switch child.Type() {
		case "access_specifier":
			if acc, ok := ParseAccessSpecifier(e.text(child)); ok {
				st.memberAccess = acc
			}
		case "preproc_if", "preproc_ifdef":
			e.walkMemberList(child, st)
		default:
			e.walk(child, *st)
		}
	}
}

// resolveDefinitionScope finds the lookup parent of an out-of-line
// definition such as "struct Outer::Inner { ... };".
func (e *classExtractor) resolveDefinitionScope(ctx *LookupContext, scope, written string) (*LookupContext, AccessSpecifier) {
	current := ctx
	if strings.HasPrefix(written, "::") {
		current = nil
	}
	for _, seg := range splitScope(scope) {
		seg, _ = splitTemplateArgs(seg)
		if seg == "" {
			continue
		}
		if entry := e.table.records[qualify(current, seg)]; entry != nil && entry.decl != nil {
			current = NewRecordContext(entry.decl)
			continue
		}
		current = NewNamespaceContext(seg, current)
	}

	access := AccessNone
	if current != nil && current.Kind == ContextRecord {
		_, last := splitLastScope(written)
		name, _ := splitTemplateArgs(last)
		if entry := e.table.records[qualify(current, name)]; entry != nil && entry.access != AccessNone {
			access = entry.access
		} else {
			access = current.Record.Kind.DefaultMemberAccess()
		}
	}
	return current, access
}

// baseSpecifiers parses the base_class_clause of a record definition.
// st.ctx is the lookup parent of the derived class.
func (e *classExtractor) baseSpecifiers(n *sitter.Node, kind RecordKind, st walkState) []BaseSpecifier {
	var clause *sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); child != nil && child.Type() == "base_class_clause" {
			clause = child
			break
		}
	}
	if clause == nil {
		return nil
	}

	var bases []BaseSpecifier
	access := AccessNone
	virtual := false

	for i := 0; i < int(clause.ChildCount()); i++ {
		child := clause.Child(i)
		if child == nil {
			continue
		}
		switch child.Type() {
		case ":", "...", "attribute_declaration", "comment":
		case ",":
			access, virtual = AccessNone, false
		case "virtual":
			virtual = true
		case "access_specifier", "public", "protected", "private":
			if acc, ok := ParseAccessSpecifier(e.text(child)); ok {
				access = acc
			}
		default:
			if !child.IsNamed() {
				continue
			}
			written := normalizeTypeText(e.text(child))
			effective := access
			if effective == AccessNone {
				effective = kind.DefaultMemberAccess()
			}
			bases = append(bases, BaseSpecifier{
				Type:    e.resolveType(written, st),
				Written: written,
				Access:  effective,
				Virtual: virtual,
			})
			access, virtual = AccessNone, false
		}
	}
	return bases
}

// declareUsingAlias handles "using Alias = Type;". Alias templates are not
// tracked.
func (e *classExtractor) declareUsingAlias(n *sitter.Node, st walkState) {
	if parent := n.Parent(); parent != nil && parent.Type() == "template_declaration" {
		return
	}
	nameNode := n.ChildByFieldName("name")
	typeNode := n.ChildByFieldName("type")
	if nameNode == nil || typeNode == nil {
		return
	}
	if inner := typeNode.ChildByFieldName("type"); inner != nil {
		typeNode = inner
	}
	target := e.resolveType(e.text(typeNode), st)
	e.table.declareAlias(qualify(st.ctx, e.text(nameNode)), target)
}

// declareTypedef handles "typedef Type Name;" including typedefs whose type
// is a record defined in place.
func (e *classExtractor) declareTypedef(n *sitter.Node, st walkState) {
	typeNode := n.ChildByFieldName("type")
	if typeNode == nil {
		return
	}

	var target string
	if isRecordSpecifier(typeNode.Type()) {
		nameNode := typeNode.ChildByFieldName("name")
		if nameNode == nil {
			return
		}
		target = e.resolveType(e.text(nameNode), st)
	} else {
		target = e.resolveType(e.text(typeNode), st)
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil || child.Type() != "type_identifier" || keyOf(child) == keyOf(typeNode) {
			continue
		}
		e.table.declareAlias(qualify(st.ctx, e.text(child)), target)
	}
}

// declareUsingName handles "using ns::Base;", which makes Base usable as an
// unqualified name in the current scope. Using-directives are ignored.
func (e *classExtractor) declareUsingName(n *sitter.Node, st walkState) {
	if st.ctx != nil && st.ctx.Kind == ContextRecord {
		// Member using-declarations name members of bases, not types.
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if child := n.Child(i); child != nil && child.Type() == "namespace" {
			return
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child == nil || child.Type() != "qualified_identifier" {
			continue
		}
		written := normalizeTypeText(e.text(child))
		_, last := splitLastScope(written)
		e.table.declareAlias(qualify(st.ctx, last), e.resolveType(written, st))
		return
	}
}

// qualify joins the qualified prefix of ctx with name.
func qualify(ctx *LookupContext, name string) string {
	prefix := ctx.QualifiedPrefix()
	if prefix == "" {
		return name
	}
	return prefix + "::" + name
}

// resolveType canonicalizes a type name written at the position st
// describes. A name rooted at a template parameter is dependent and stays
// as written.
func (e *classExtractor) resolveType(written string, st walkState) string {
	name := normalizeTypeText(written)
	if !strings.HasPrefix(name, "::") {
		head, _ := splitTemplateArgs(splitScope(name)[0])
		if slices.Contains(st.templateParams, head) {
			return name
		}
	}
	return e.table.canonicalize(name, e.table.scopesFrom(st.ctx))
}

// splitScope splits "a::b<c::d>::e" on top-level "::" separators.
func splitScope(name string) []string {
	name = strings.TrimPrefix(name, "::")
	var segments []string
	depth := 0
	start := 0
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '<':
			depth++
		case '>':
			depth--
		case ':':
			if depth == 0 && i+1 < len(name) && name[i+1] == ':' {
				segments = append(segments, name[start:i])
				start = i + 2
				i++
			}
		}
	}
	return append(segments, name[start:])
}

// splitLastScope splits "a::b::C" into "a::b" and "C".
func splitLastScope(name string) (string, string) {
	segments := splitScope(name)
	last := segments[len(segments)-1]
	return strings.Join(segments[:len(segments)-1], "::"), last
}
