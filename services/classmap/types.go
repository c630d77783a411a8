// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classmap

import (
	"github.com/AleutianAI/classmap/services/classmap/inherit"
	"github.com/AleutianAI/classmap/services/classmap/storage/badger"
)

// ServiceVersion is reported by the health endpoint. Overridden at link
// time by the release build.
var ServiceVersion = "dev"

// AnalyzeRequest is the body of POST /v1/classmap/analyze.
type AnalyzeRequest struct {
	// FilePath names the unit. Used for diagnostics and snapshot keys.
	FilePath string `json:"file_path" binding:"required,max=4096"`

	// Source is the unit's C++ text.
	Source string `json:"source"`
}

// AnalyzeResponse is returned by POST /v1/classmap/analyze.
type AnalyzeResponse struct {
	RequestID string          `json:"request_id"`
	Cached    bool            `json:"cached"`
	Result    *inherit.Result `json:"result"`
}

// SnapshotListResponse is returned by GET /v1/classmap/snapshots.
type SnapshotListResponse struct {
	Snapshots []badger.SnapshotInfo `json:"snapshots"`
	Count     int                   `json:"count"`
}

// HealthResponse is returned by GET /v1/classmap/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Store   bool   `json:"store"`
	Cached  int    `json:"cached"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable code.
	Code string `json:"code,omitempty"`

	// Details carries extra context such as a source location.
	Details string `json:"details,omitempty"`
}
