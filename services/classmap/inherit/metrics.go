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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("classmap.inherit")
	meter  = otel.Meter("classmap.inherit")
)

var (
	analysisLatency metric.Float64Histogram
	analysisTotal   metric.Int64Counter
	edgesRecorded   metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		analysisLatency, err = meter.Float64Histogram(
			"classmap_analysis_duration_seconds",
			metric.WithDescription("Duration of one compilation unit analysis"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		analysisTotal, err = meter.Int64Counter(
			"classmap_analysis_total",
			metric.WithDescription("Total number of compilation unit analyses"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		edgesRecorded, err = meter.Int64Histogram(
			"classmap_edges_recorded",
			metric.WithDescription("Public inheritance edges recorded per analysis"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordAnalysisMetrics(ctx context.Context, duration time.Duration, edgeCount int, success bool) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.Bool("success", success))
	analysisLatency.Record(ctx, duration.Seconds(), attrs)
	analysisTotal.Add(ctx, 1, attrs)

	if success {
		edgesRecorded.Record(ctx, int64(edgeCount))
	}
}

func startAnalysisSpan(ctx context.Context, filePath string, sourceSize int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Analyzer.Process",
		trace.WithAttributes(
			attribute.String("file.path", filePath),
			attribute.Int("file.size", sourceSize),
		),
	)
}

func setAnalysisSpanResult(span trace.Span, stats BuildStats) {
	span.SetAttributes(
		attribute.Int("classmap.classes_visited", stats.ClassesVisited),
		attribute.Int("classmap.edges_inserted", stats.EdgesInserted),
		attribute.Int("classmap.non_public_bases", stats.NonPublicBases),
		attribute.Int("classmap.attribute_writes", stats.AttributeWrites),
	)
}
