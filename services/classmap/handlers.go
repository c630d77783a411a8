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
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/classmap/services/classmap/ast"
	"github.com/AleutianAI/classmap/services/classmap/inherit"
	"github.com/AleutianAI/classmap/services/classmap/storage/badger"
	"github.com/AleutianAI/classmap/services/classmap/telemetry"
)

// Handlers contains the HTTP handlers for the classmap service.
type Handlers struct {
	svc     *Service
	metrics http.Handler
}

// NewHandlers creates handlers for svc. metrics serves the scrape
// endpoint; nil disables it.
func NewHandlers(svc *Service, metrics http.Handler) *Handlers {
	return &Handlers{svc: svc, metrics: metrics}
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// HandleHealth handles GET /v1/classmap/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: ServiceVersion,
		Store:   h.svc.HasStore(),
		Cached:  h.svc.CachedCount(),
	})
}

// HandleAnalyze handles POST /v1/classmap/analyze.
//
// Description:
//
//	Analyzes one C++ unit and returns its inheritance map and class
//	attributes. Identical requests are served from the result cache.
//
// Request Body:
//
//	AnalyzeRequest
//
// Response:
//
//	200 OK: AnalyzeResponse
//	400 Bad Request: Invalid body or content
//	413 Request Entity Too Large: Source over the limit
//	422 Unprocessable Entity: Source does not parse
//	408 Request Timeout: Client went away mid-analysis
//	500 Internal Server Error: Anything else
func (h *Handlers) HandleAnalyze(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	ctx := c.Request.Context()
	logger := telemetry.LoggerWithTrace(ctx, slog.Default()).With(
		slog.String("request_id", requestID),
		slog.String("handler", "HandleAnalyze"),
	)

	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	result, cached, err := h.svc.Analyze(ctx, req.FilePath, []byte(req.Source))
	if err != nil {
		status, resp := analyzeError(err)
		logger.Warn("analysis failed", slog.String("file", req.FilePath), slog.String("code", resp.Code), slog.String("error", err.Error()))
		c.JSON(status, resp)
		return
	}

	logger.Info("analysis served",
		slog.String("file", req.FilePath),
		slog.Bool("cached", cached),
		slog.Int("bases", len(result.Inheritance)),
		slog.Int("classes", len(result.Attributes)),
	)
	c.JSON(http.StatusOK, AnalyzeResponse{
		RequestID: requestID,
		Cached:    cached,
		Result:    result,
	})
}

func analyzeError(err error) (int, ErrorResponse) {
	resp := ErrorResponse{Error: err.Error()}

	var pe *ast.ParseError
	switch {
	case errors.Is(err, ErrSourceTooLarge), errors.Is(err, ast.ErrFileTooLarge):
		resp.Code = "SOURCE_TOO_LARGE"
		return http.StatusRequestEntityTooLarge, resp
	case errors.Is(err, ast.ErrParseFailed):
		resp.Code = "PARSE_FAILED"
		if errors.As(err, &pe) {
			resp.Details = fmt.Sprintf("%s:%d:%d", pe.FilePath, pe.Line, pe.Column)
		}
		return http.StatusUnprocessableEntity, resp
	case errors.Is(err, ast.ErrInvalidContent), errors.Is(err, inherit.ErrNilSource):
		resp.Code = "INVALID_CONTENT"
		return http.StatusBadRequest, resp
	case errors.Is(err, inherit.ErrAnalysisCancelled):
		resp.Code = "CANCELLED"
		return http.StatusRequestTimeout, resp
	default:
		resp.Code = "ANALYSIS_FAILED"
		return http.StatusInternalServerError, resp
	}
}

// HandleListSnapshots handles GET /v1/classmap/snapshots.
func (h *Handlers) HandleListSnapshots(c *gin.Context) {
	getOrCreateRequestID(c)

	infos, err := h.svc.Snapshots(c.Request.Context())
	if err != nil {
		h.storeError(c, err)
		return
	}
	if infos == nil {
		infos = []badger.SnapshotInfo{}
	}
	c.JSON(http.StatusOK, SnapshotListResponse{Snapshots: infos, Count: len(infos)})
}

// HandleGetSnapshot handles GET /v1/classmap/snapshots/:hash.
func (h *Handlers) HandleGetSnapshot(c *gin.Context) {
	getOrCreateRequestID(c)

	hash := c.Param("hash")
	if len(hash) != 64 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "hash must be a hex SHA-256 digest",
			Code:  "INVALID_HASH",
		})
		return
	}

	result, err := h.svc.Snapshot(c.Request.Context(), hash)
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handlers) storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrStoreDisabled):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: "STORE_DISABLED"})
	case errors.Is(err, badger.ErrSnapshotNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "NOT_FOUND"})
	default:
		slog.Error("snapshot store error", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "STORE_FAILED"})
	}
}

// HandleMetrics handles GET /v1/classmap/metrics.
func (h *Handlers) HandleMetrics(c *gin.Context) {
	if h.metrics == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "prometheus exporter not enabled",
			Code:  "METRICS_DISABLED",
		})
		return
	}
	h.metrics.ServeHTTP(c.Writer, c.Request)
}
