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
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"
)

// RegisterRoutes registers the classmap endpoints on rg.
//
// Endpoints:
//
//	GET  /v1/classmap/health - Liveness and cache status
//	POST /v1/classmap/analyze - Analyze one unit
//	GET  /v1/classmap/snapshots - List stored snapshots
//	GET  /v1/classmap/snapshots/:hash - Stored snapshot by source hash
//	GET  /v1/classmap/metrics - Prometheus scrape endpoint
func RegisterRoutes(rg *gin.RouterGroup, h *Handlers) {
	cm := rg.Group("/classmap")
	{
		cm.GET("/health", h.HandleHealth)
		cm.POST("/analyze", h.HandleAnalyze)
		cm.GET("/snapshots", h.HandleListSnapshots)
		cm.GET("/snapshots/:hash", h.HandleGetSnapshot)
		cm.GET("/metrics", h.HandleMetrics)
	}
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// RateLimit is requests per second for the whole process. 0 disables.
	RateLimit float64

	// RateBurst is the token bucket size.
	RateBurst int

	// ServiceName labels server spans.
	ServiceName string

	// Metrics serves GET /v1/classmap/metrics. Nil answers 404.
	Metrics http.Handler
}

// NewRouter builds a gin engine serving svc under /v1.
func NewRouter(svc *Service, opts RouterOptions) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	name := opts.ServiceName
	if name == "" {
		name = "classmap"
	}
	router.Use(otelgin.Middleware(name))

	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		router.Use(RateLimitMiddleware(rate.NewLimiter(rate.Limit(opts.RateLimit), burst)))
	}

	RegisterRoutes(router.Group("/v1"), NewHandlers(svc, opts.Metrics))
	return router
}

// RateLimitMiddleware rejects requests with 429 when limiter has no token.
func RateLimitMiddleware(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "rate limit exceeded",
				Code:  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
