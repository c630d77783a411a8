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
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/classmap/services/classmap"
)

const shutdownTimeout = 10 * time.Second

type serveFlags struct {
	addr  string
	store string
	debug bool
}

func newServeCmd(a *app) *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				flags.addr = a.cfg.Server.Addr
			}
			if !cmd.Flags().Changed("store") {
				flags.store = a.cfg.Store.Path
			}
			return a.runServe(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().StringVar(&flags.store, "store", "", "Snapshot database path; empty disables snapshots")
	cmd.Flags().BoolVar(&flags.debug, "debug", false, "Run gin in debug mode")
	return cmd
}

func (a *app) newService(store string) (*classmap.Service, func(), error) {
	snapshots, closeStore, err := a.openStore(store)
	if err != nil {
		return nil, closeStore, err
	}

	opts := []classmap.ServiceOption{
		classmap.WithCacheSize(a.cfg.Server.CacheSize),
		classmap.WithMaxSourceBytes(a.cfg.Server.MaxSourceBytes),
		classmap.WithServiceLogger(a.logger),
	}
	if snapshots != nil {
		opts = append(opts, classmap.WithStore(snapshots))
	}

	svc, err := classmap.NewService(a.newAnalyzer(), opts...)
	if err != nil {
		closeStore()
		return nil, func() {}, err
	}
	return svc, closeStore, nil
}

func (a *app) runServe(ctx context.Context, flags serveFlags) error {
	if flags.debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	svc, closeStore, err := a.newService(flags.store)
	if err != nil {
		return err
	}
	defer closeStore()

	router := classmap.NewRouter(svc, classmap.RouterOptions{
		RateLimit:   a.cfg.Server.RateLimit,
		RateBurst:   a.cfg.Server.RateBurst,
		ServiceName: a.cfg.Telemetry.ServiceName,
		Metrics:     a.telemetry.MetricsHandler(),
	})

	server := &http.Server{
		Addr:              flags.addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("starting classmap server",
			slog.String("address", flags.addr),
			slog.Bool("store", svc.HasStore()),
		)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down classmap server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
