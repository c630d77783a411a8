// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires the OpenTelemetry SDK for classmap.
//
// The ast and inherit packages record spans and metrics through the global
// otel.Tracer / otel.Meter. Until Init installs providers those calls are
// no-ops, so library users pay nothing unless they opt in.
//
// # Exporters
//
// Traces: "otlp" (gRPC), "stdout", or "none".
// Metrics: "prometheus" (served by Providers.MetricsHandler), "stdout", or "none".
//
// # Usage
//
//	providers, err := telemetry.Init(ctx, cfg)
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer providers.Shutdown(context.Background())
//
// # Environment Variables
//
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: localhost:4317)
//   - OTEL_TRACES_EXPORTER: otlp, stdout, or none (default: none)
//   - OTEL_METRICS_EXPORTER: prometheus, stdout, or none (default: none)
//   - CLASSMAP_ENV: environment name (default: development)
package telemetry
