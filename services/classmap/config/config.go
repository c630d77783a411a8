// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads classmap settings.
//
// Precedence, lowest first: built-in defaults, the YAML file, variables
// from a .env file, then CLASSMAP_* environment variables. Command-line
// flags are applied by the caller on top of the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/classmap/services/classmap/ast"
	"github.com/AleutianAI/classmap/services/classmap/telemetry"
)

// DefaultPath is the config file looked up when no path is given.
const DefaultPath = "classmap.yaml"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete classmap configuration.
type Config struct {
	Log       LogConfig        `yaml:"log"`
	Analysis  AnalysisConfig   `yaml:"analysis"`
	Output    OutputConfig     `yaml:"output"`
	Store     StoreConfig      `yaml:"store"`
	Server    ServerConfig     `yaml:"server"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// AnalysisConfig controls the front-end and the driver.
type AnalysisConfig struct {
	// MaxFileSize rejects units larger than this many bytes.
	MaxFileSize int64 `yaml:"max_file_size" validate:"gt=0"`

	// Strict makes syntax errors fatal.
	Strict bool `yaml:"strict"`

	// Workers bounds concurrent units. 0 means one per CPU.
	Workers int `yaml:"workers" validate:"gte=0,lte=1024"`

	// MemoizeVisibility enables the per-run visibility cache.
	MemoizeVisibility bool `yaml:"memoize_visibility"`
}

// OutputConfig controls CLI rendering.
type OutputConfig struct {
	Format string `yaml:"format" validate:"oneof=json yaml text"`
}

// StoreConfig selects the snapshot database. An empty path disables it.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`

	// RateLimit is requests per second across all clients. 0 disables.
	RateLimit float64 `yaml:"rate_limit" validate:"gte=0"`

	// RateBurst is the token bucket size.
	RateBurst int `yaml:"rate_burst" validate:"gte=1"`

	// CacheSize is the number of results kept in the LRU cache.
	CacheSize int `yaml:"cache_size" validate:"gte=1"`

	// MaxSourceBytes bounds the source field of an analyze request.
	MaxSourceBytes int64 `yaml:"max_source_bytes" validate:"gt=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Analysis: AnalysisConfig{
			MaxFileSize: ast.DefaultMaxFileSize,
			Strict:      true,
		},
		Output: OutputConfig{Format: "text"},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8089",
			RateLimit:      20,
			RateBurst:      40,
			CacheSize:      256,
			MaxSourceBytes: 4 * 1024 * 1024,
		},
		Telemetry: telemetry.DefaultConfig(),
	}
}

// Load builds the configuration.
//
// Description:
//
//	Reads path (or DefaultPath if path is empty and that file exists),
//	loads envFiles into the process environment (or ".env" if present),
//	applies CLASSMAP_* overrides and validates the result.
//
// Outputs:
//
//	*Config - The validated configuration.
//	error - File, parse, override or validation errors. Validation errors
//	        wrap ErrInvalidConfig.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := loadDotEnv(envFiles); err != nil {
		return nil, err
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadDotEnv(files []string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		files = []string{".env"}
	}
	// Variables already set in the process win over the file.
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("loading env file: %w", err)
	}
	return nil
}

var validate = validator.New()

// Validate checks every field constraint.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"CLASSMAP_LOG_LEVEL":  &cfg.Log.Level,
		"CLASSMAP_LOG_FORMAT": &cfg.Log.Format,
		"CLASSMAP_FORMAT":     &cfg.Output.Format,
		"CLASSMAP_STORE":      &cfg.Store.Path,
		"CLASSMAP_ADDR":       &cfg.Server.Addr,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := os.LookupEnv("CLASSMAP_STRICT"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("CLASSMAP_STRICT: %w", err)
		}
		cfg.Analysis.Strict = b
	}
	if v, ok := os.LookupEnv("CLASSMAP_MAX_FILE_SIZE"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("CLASSMAP_MAX_FILE_SIZE: %w", err)
		}
		cfg.Analysis.MaxFileSize = n
	}
	ints := map[string]*int{
		"CLASSMAP_WORKERS":    &cfg.Analysis.Workers,
		"CLASSMAP_CACHE_SIZE": &cfg.Server.CacheSize,
	}
	for key, dst := range ints {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}
	if v, ok := os.LookupEnv("CLASSMAP_RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("CLASSMAP_RATE_LIMIT: %w", err)
		}
		cfg.Server.RateLimit = f
	}
	return nil
}
