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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("classmap.ast")
	meter  = otel.Meter("classmap.ast")
)

var (
	parseLatency     metric.Float64Histogram
	classesExtracted metric.Int64Histogram
	parseErrors      metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		parseLatency, err = meter.Float64Histogram(
			"classmap_parse_duration_seconds",
			metric.WithDescription("Duration of C++ front-end parses"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		classesExtracted, err = meter.Int64Histogram(
			"classmap_classes_extracted",
			metric.WithDescription("Number of class definitions delivered per parse"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		parseErrors, err = meter.Int64Counter(
			"classmap_parse_errors_total",
			metric.WithDescription("Total number of failed parses"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordParseMetrics records metrics for a parse operation.
func recordParseMetrics(ctx context.Context, duration time.Duration, classCount int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("language", "cpp"),
		attribute.Bool("success", success),
	)
	parseLatency.Record(ctx, duration.Seconds(), attrs)

	if success {
		classesExtracted.Record(ctx, int64(classCount))
	} else {
		parseErrors.Add(ctx, 1)
	}
}

// startParseSpan creates a span for a parse operation.
func startParseSpan(ctx context.Context, filePath string, contentSize int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "CppParser.Parse",
		trace.WithAttributes(
			attribute.String("ast.file", filePath),
			attribute.Int("ast.content_size", contentSize),
		),
	)
}

// setParseSpanResult sets the result attributes on a parse span.
func setParseSpanResult(span trace.Span, classCount, errorCount int) {
	span.SetAttributes(
		attribute.Int("ast.class_count", classCount),
		attribute.Int("ast.error_count", errorCount),
	)
}
