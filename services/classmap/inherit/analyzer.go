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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/classmap/services/classmap/ast"
)

// Result is the outcome of analyzing one compilation unit.
type Result struct {
	// RunID uniquely identifies the analysis run.
	RunID string `json:"run_id" yaml:"run_id" msgpack:"run_id"`

	// FilePath is the unit that was analyzed.
	FilePath string `json:"file" yaml:"file" msgpack:"file"`

	// SourceHash is the hex SHA-256 of the unit's bytes.
	SourceHash string `json:"source_hash" yaml:"source_hash" msgpack:"source_hash"`

	// Inheritance maps canonical base names to sorted derived names.
	Inheritance map[string][]string `json:"inheritance" yaml:"inheritance" msgpack:"inheritance"`

	// Attributes maps qualified class names to their attributes.
	Attributes map[string]Attributes `json:"attributes" yaml:"attributes" msgpack:"attributes"`

	// Stats are the builder counters.
	Stats BuildStats `json:"stats" yaml:"stats" msgpack:"stats"`

	// ClassesDelivered is the number of definitions the front-end delivered.
	ClassesDelivered int `json:"classes_delivered" yaml:"classes_delivered" msgpack:"classes_delivered"`

	// Diagnostics holds non-fatal front-end messages.
	Diagnostics []string `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty" msgpack:"diagnostics,omitempty"`

	// AnalyzedAtMilli is the completion time as Unix milliseconds.
	AnalyzedAtMilli int64 `json:"analyzed_at" yaml:"analyzed_at" msgpack:"analyzed_at"`

	// DurationMilli is the wall time of the run.
	DurationMilli int64 `json:"duration_ms" yaml:"duration_ms" msgpack:"duration_ms"`
}

// Derived returns the classes publicly derived from base, or nil.
func (r *Result) Derived(base string) []string {
	return r.Inheritance[base]
}

// AttributesOf returns the recorded attributes of a class.
// ok is false when the class was never recorded.
func (r *Result) AttributesOf(name string) (Attributes, bool) {
	a, ok := r.Attributes[name]
	return a, ok
}

// AnalyzerOptions configures Analyzer behavior.
type AnalyzerOptions struct {
	// Parser is used by Process. Default: ast.NewCppParser().
	Parser ast.Parser

	// Registry selects a parser by extension in ProcessFile.
	// Default: a registry holding Parser.
	Registry *ast.ParserRegistry

	// Workers bounds concurrent units in ProcessFiles.
	// Default: runtime.NumCPU().
	Workers int

	// MemoizeVisibility resolves visibility through a per-run cache.
	MemoizeVisibility bool

	// Logger receives run summaries. Default: slog.Default().
	Logger *slog.Logger
}

// AnalyzerOption is a functional option for configuring Analyzer.
type AnalyzerOption func(*AnalyzerOptions)

// WithParser sets the front-end parser.
func WithParser(p ast.Parser) AnalyzerOption {
	return func(o *AnalyzerOptions) {
		o.Parser = p
	}
}

// WithRegistry sets the registry used by ProcessFile.
func WithRegistry(r *ast.ParserRegistry) AnalyzerOption {
	return func(o *AnalyzerOptions) {
		o.Registry = r
	}
}

// WithWorkers sets the number of concurrent units in ProcessFiles.
func WithWorkers(n int) AnalyzerOption {
	return func(o *AnalyzerOptions) {
		o.Workers = n
	}
}

// WithMemoizedVisibility enables the per-run visibility cache.
func WithMemoizedVisibility(enabled bool) AnalyzerOption {
	return func(o *AnalyzerOptions) {
		o.MemoizeVisibility = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) AnalyzerOption {
	return func(o *AnalyzerOptions) {
		o.Logger = logger
	}
}

// Analyzer drives the front-end and the Builder over compilation units.
//
// Thread Safety: Safe for concurrent use. Every run gets its own Context.
type Analyzer struct {
	options AnalyzerOptions
}

// NewAnalyzer creates an analyzer with the given options.
func NewAnalyzer(opts ...AnalyzerOption) *Analyzer {
	options := AnalyzerOptions{
		Workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(&options)
	}

	if options.Parser == nil {
		options.Parser = ast.NewCppParser()
	}
	if options.Registry == nil {
		options.Registry = ast.NewParserRegistry()
		options.Registry.Register(options.Parser)
	}
	if options.Workers <= 0 {
		options.Workers = 1
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	return &Analyzer{options: options}
}

// Process analyzes one compilation unit held in memory.
//
// Description:
//
//	Creates a fresh Context, runs the front-end, then visits every
//	delivered class definition exactly once in document order.
//
// Inputs:
//
//	ctx - Context for cancellation. Checked after parsing and before each
//	      visit.
//	source - The unit's bytes. Must not be nil.
//	filePath - Used for diagnostics and the Result.
//
// Outputs:
//
//	*Result - The populated maps and counters.
//	error - ErrNilSource, ErrAnalysisCancelled, or the front-end error.
func (a *Analyzer) Process(ctx context.Context, source []byte, filePath string) (*Result, error) {
	return a.run(ctx, a.options.Parser, source, filePath)
}

// ProcessFile reads path and analyzes it with the parser registered for
// its extension.
func (a *Analyzer) ProcessFile(ctx context.Context, path string) (*Result, error) {
	parser, err := a.options.Registry.ForFile(path)
	if err != nil {
		return nil, err
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return a.run(ctx, parser, source, path)
}

// ProcessFiles analyzes each path as an independent unit.
//
// Units run concurrently, bounded by Workers. Results are returned in
// input order. The first failure cancels the remaining units and is
// returned.
func (a *Analyzer) ProcessFiles(ctx context.Context, paths []string) ([]*Result, error) {
	results := make([]*Result, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.options.Workers)

	for i, path := range paths {
		g.Go(func() error {
			result, err := a.ProcessFile(gctx, path)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (a *Analyzer) run(ctx context.Context, parser ast.Parser, source []byte, filePath string) (*Result, error) {
	if source == nil {
		return nil, ErrNilSource
	}

	ctx, span := startAnalysisSpan(ctx, filePath, len(source))
	defer span.End()
	start := time.Now()

	result, err := a.analyze(ctx, parser, source, filePath)
	if err != nil {
		recordAnalysisMetrics(ctx, time.Since(start), 0, false)
		span.RecordError(err)
		return nil, err
	}

	result.DurationMilli = time.Since(start).Milliseconds()
	recordAnalysisMetrics(ctx, time.Since(start), result.Stats.EdgesInserted, true)
	setAnalysisSpanResult(span, result.Stats)

	a.options.Logger.Debug("analysis complete",
		slog.String("run_id", result.RunID),
		slog.String("file", filePath),
		slog.Int("classes", result.ClassesDelivered),
		slog.Int("edges", result.Stats.EdgesInserted),
	)
	return result, nil
}

func (a *Analyzer) analyze(ctx context.Context, parser ast.Parser, source []byte, filePath string) (*Result, error) {
	parsed, err := parser.Parse(ctx, source, filePath)
	if err != nil {
		if isCancellation(err) {
			return nil, fmt.Errorf("%w: %w", ErrAnalysisCancelled, err)
		}
		return nil, fmt.Errorf("analyzing %s: %w", filePath, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysisCancelled, err)
	}

	var builderOpts []BuilderOption
	builderOpts = append(builderOpts, WithBuilderLogger(a.options.Logger))
	if a.options.MemoizeVisibility {
		builderOpts = append(builderOpts, WithVisibilityCache(NewVisibilityCache()))
	}

	runCtx := NewContext()
	builder := NewBuilder(runCtx, builderOpts...)
	for _, decl := range parsed.Classes {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAnalysisCancelled, err)
		}
		builder.Visit(decl)
	}

	return &Result{
		RunID:            uuid.NewString(),
		FilePath:         filePath,
		SourceHash:       parsed.Hash,
		Inheritance:      runCtx.Inheritance.Snapshot(),
		Attributes:       runCtx.Attributes.Snapshot(),
		Stats:            builder.Stats(),
		ClassesDelivered: len(parsed.Classes),
		Diagnostics:      parsed.Errors,
		AnalyzedAtMilli:  time.Now().UnixMilli(),
	}, nil
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
