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
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/classmap/services/classmap/inherit"
	"github.com/AleutianAI/classmap/services/classmap/storage/badger"
)

type analyzeFlags struct {
	format string
	strict bool
	store  string
	watch  bool
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var flags analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze [files...]",
		Short: "Analyze C++ units and print their inheritance maps",
		Long: `Analyze parses each file as one compilation unit and prints the
public inheritance map and the is_template / is_visible attributes of
every class that has at least one base.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("format") {
				flags.format = a.cfg.Output.Format
			}
			if cmd.Flags().Changed("strict") {
				a.cfg.Analysis.Strict = flags.strict
			}
			if !cmd.Flags().Changed("store") {
				flags.store = a.cfg.Store.Path
			}
			return a.runAnalyze(cmd.Context(), cmd.OutOrStdout(), flags, args)
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", formatText, "Output format (text, json, yaml)")
	cmd.Flags().BoolVar(&flags.strict, "strict", true, "Fail on syntax errors instead of reporting diagnostics")
	cmd.Flags().StringVar(&flags.store, "store", "", "Persist results to the snapshot database at this path")
	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "Re-analyze files when they change")
	return cmd
}

func (a *app) runAnalyze(ctx context.Context, out io.Writer, flags analyzeFlags, paths []string) error {
	if err := validFormat(flags.format); err != nil {
		return err
	}

	analyzer := a.newAnalyzer()
	store, closeStore, err := a.openStore(flags.store)
	if err != nil {
		return err
	}
	defer closeStore()

	results, err := analyzer.ProcessFiles(ctx, paths)
	if err != nil {
		return err
	}
	for _, r := range results {
		a.persist(ctx, store, r)
	}
	if err := renderResults(out, flags.format, results); err != nil {
		return err
	}

	if !flags.watch {
		return nil
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.watch(ctx, out, flags.format, analyzer, store, paths)
}

func (a *app) persist(ctx context.Context, store *badger.SnapshotStore, r *inherit.Result) {
	if store == nil {
		return
	}
	if err := store.Put(ctx, r); err != nil {
		a.logger.Warn("snapshot store failed", slog.String("file", r.FilePath), slog.String("error", err.Error()))
	}
}

// watch re-analyzes a file whenever it is written or recreated, until ctx
// is done. Parent directories are watched so that editors which save by
// rename are still observed.
func (a *app) watch(ctx context.Context, out io.Writer, format string, analyzer *inherit.Analyzer, store *badger.SnapshotStore, paths []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	targets := make(map[string]string, len(paths))
	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", p, err)
		}
		targets[abs] = p
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	a.logger.Info("watching for changes", slog.Int("files", len(targets)))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("watcher error", slog.String("error", err.Error()))
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			path, tracked := targets[abs]
			if !tracked {
				continue
			}

			result, err := analyzer.ProcessFile(ctx, path)
			if err != nil {
				if errors.Is(err, inherit.ErrAnalysisCancelled) {
					return nil
				}
				a.logger.Warn("re-analysis failed", slog.String("file", path), slog.String("error", err.Error()))
				continue
			}
			a.persist(ctx, store, result)
			if err := renderResults(out, format, []*inherit.Result{result}); err != nil {
				return err
			}
		}
	}
}
