// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classmap serves inheritance-map analysis over HTTP.
//
// The Service wraps an inherit.Analyzer with an LRU result cache and an
// optional BadgerDB snapshot store. Handlers expose it under /v1/classmap.
package classmap

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/AleutianAI/classmap/services/classmap/inherit"
	"github.com/AleutianAI/classmap/services/classmap/storage/badger"
	"github.com/AleutianAI/classmap/services/classmap/telemetry"
)

// Default service limits.
const (
	DefaultCacheSize      = 256
	DefaultMaxSourceBytes = 4 * 1024 * 1024
)

// ServiceOptions configures a Service.
type ServiceOptions struct {
	CacheSize      int
	MaxSourceBytes int64
	Store          *badger.SnapshotStore
	Logger         *slog.Logger
}

// ServiceOption is a functional option for configuring Service.
type ServiceOption func(*ServiceOptions)

// WithCacheSize sets the number of cached results.
func WithCacheSize(n int) ServiceOption {
	return func(o *ServiceOptions) {
		o.CacheSize = n
	}
}

// WithMaxSourceBytes bounds accepted source size.
func WithMaxSourceBytes(n int64) ServiceOption {
	return func(o *ServiceOptions) {
		o.MaxSourceBytes = n
	}
}

// WithStore persists every fresh result and enables snapshot lookups.
func WithStore(store *badger.SnapshotStore) ServiceOption {
	return func(o *ServiceOptions) {
		o.Store = store
	}
}

// WithServiceLogger sets the logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(o *ServiceOptions) {
		o.Logger = logger
	}
}

// Service analyzes units on behalf of HTTP clients.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	analyzer *inherit.Analyzer
	cache    *lru.Cache[string, *inherit.Result]
	options  ServiceOptions
}

// NewService creates a service around analyzer.
func NewService(analyzer *inherit.Analyzer, opts ...ServiceOption) (*Service, error) {
	options := ServiceOptions{
		CacheSize:      DefaultCacheSize,
		MaxSourceBytes: DefaultMaxSourceBytes,
		Logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	if analyzer == nil {
		analyzer = inherit.NewAnalyzer(inherit.WithLogger(options.Logger))
	}

	cache, err := lru.New[string, *inherit.Result](options.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}

	return &Service{analyzer: analyzer, cache: cache, options: options}, nil
}

// cacheKey identifies a unit by content and path. The same bytes under a
// different path produce a different Result.FilePath, so both are keyed.
func cacheKey(filePath string, source []byte) (key, hash string) {
	sum := sha256.Sum256(source)
	hash = hex.EncodeToString(sum[:])
	return hash + "\x00" + filePath, hash
}

// Analyze returns the result for source, from cache when the same bytes
// were analyzed under the same path before.
//
// Outputs:
//
//	*inherit.Result - The analysis result.
//	bool - True if served from cache.
//	error - ErrSourceTooLarge, or the analyzer error.
func (s *Service) Analyze(ctx context.Context, filePath string, source []byte) (*inherit.Result, bool, error) {
	if int64(len(source)) > s.options.MaxSourceBytes {
		return nil, false, fmt.Errorf("%w: %d > %d bytes", ErrSourceTooLarge, len(source), s.options.MaxSourceBytes)
	}

	logger := telemetry.LoggerWithTrace(ctx, s.options.Logger)
	key, hash := cacheKey(filePath, source)
	if cached, ok := s.cache.Get(key); ok {
		logger.Debug("result cache hit", slog.String("file", filePath), slog.String("hash", hash))
		return cached, true, nil
	}

	result, err := s.analyzer.Process(ctx, source, filePath)
	if err != nil {
		return nil, false, err
	}
	s.cache.Add(key, result)

	if s.options.Store != nil {
		if err := s.options.Store.Put(ctx, result); err != nil {
			// The analysis itself succeeded; a failed snapshot write is logged.
			logger.Warn("snapshot store failed", slog.String("file", filePath), slog.String("error", err.Error()))
		}
	}
	return result, false, nil
}

// Snapshots lists stored snapshots.
func (s *Service) Snapshots(ctx context.Context) ([]badger.SnapshotInfo, error) {
	if s.options.Store == nil {
		return nil, ErrStoreDisabled
	}
	return s.options.Store.List(ctx)
}

// Snapshot returns the stored snapshot for a source hash.
func (s *Service) Snapshot(ctx context.Context, hash string) (*inherit.Result, error) {
	if s.options.Store == nil {
		return nil, ErrStoreDisabled
	}
	return s.options.Store.GetByHash(ctx, hash)
}

// HasStore reports whether snapshots are persisted.
func (s *Service) HasStore() bool {
	return s.options.Store != nil
}

// CachedCount returns the number of cached results.
func (s *Service) CachedCount() int {
	return s.cache.Len()
}
