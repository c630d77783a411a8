// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/classmap/services/classmap"
	"github.com/AleutianAI/classmap/services/classmap/ast"
	"github.com/AleutianAI/classmap/services/classmap/config"
	"github.com/AleutianAI/classmap/services/classmap/inherit"
	"github.com/AleutianAI/classmap/services/classmap/storage/badger"
	"github.com/AleutianAI/classmap/services/classmap/telemetry"
)

// app carries state shared by every subcommand. It is populated by the
// root command's PersistentPreRunE.
type app struct {
	configPath string
	logLevel   string

	cfg       *config.Config
	logger    *slog.Logger
	telemetry *telemetry.Providers
}

func newApp() *app {
	return &app{}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "classmap",
		Short:         "Build C++ inheritance maps and class attributes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.telemetry.Shutdown(context.Background())
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to classmap.yaml")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newAnalyzeCmd(a),
		newServeCmd(a),
		newSnapshotsCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	logger, err := telemetry.NewLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	cfg.Telemetry.ServiceVersion = classmap.ServiceVersion
	providers, err := telemetry.Init(cmd.Context(), cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	a.telemetry = providers
	return nil
}

// newAnalyzer builds an analyzer from the loaded configuration.
func (a *app) newAnalyzer() *inherit.Analyzer {
	parser := ast.NewCppParser(
		ast.WithCppMaxFileSize(a.cfg.Analysis.MaxFileSize),
		ast.WithCppStrict(a.cfg.Analysis.Strict),
	)
	opts := []inherit.AnalyzerOption{
		inherit.WithParser(parser),
		inherit.WithMemoizedVisibility(a.cfg.Analysis.MemoizeVisibility),
		inherit.WithLogger(a.logger),
	}
	if a.cfg.Analysis.Workers > 0 {
		opts = append(opts, inherit.WithWorkers(a.cfg.Analysis.Workers))
	}
	return inherit.NewAnalyzer(opts...)
}

// openStore opens the snapshot database at path. The returned close
// function is never nil.
func (a *app) openStore(path string) (*badger.SnapshotStore, func(), error) {
	noop := func() {}
	if path == "" {
		return nil, noop, nil
	}

	cfg := badger.ConfigForPath(path)
	cfg.Logger = a.logger
	db, err := badger.Open(cfg)
	if err != nil {
		return nil, noop, fmt.Errorf("open snapshot store: %w", err)
	}
	store, err := badger.NewSnapshotStore(db)
	if err != nil {
		_ = db.Close()
		return nil, noop, err
	}
	return store, func() {
		if err := db.Close(); err != nil {
			a.logger.Warn("closing snapshot store", slog.String("error", err.Error()))
		}
	}, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the classmap version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "classmap %s\n", classmap.ServiceVersion)
			return err
		},
	}
}
