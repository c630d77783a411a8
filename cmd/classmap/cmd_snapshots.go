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
	"encoding/hex"
	"errors"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/classmap/services/classmap/inherit"
	"github.com/AleutianAI/classmap/services/classmap/storage/badger"
)

var errNoStore = errors.New("no snapshot store configured (use --store or store.path)")

type snapshotFlags struct {
	format string
	store  string
}

func newSnapshotsCmd(a *app) *cobra.Command {
	var flags snapshotFlags

	resolve := func(cmd *cobra.Command) error {
		if !cmd.Flags().Changed("format") {
			flags.format = a.cfg.Output.Format
		}
		if !cmd.Flags().Changed("store") {
			flags.store = a.cfg.Store.Path
		}
		if flags.store == "" {
			return errNoStore
		}
		return validFormat(flags.format)
	}

	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Inspect stored analysis snapshots",
	}
	cmd.PersistentFlags().StringVarP(&flags.format, "format", "f", formatText, "Output format (text, json, yaml)")
	cmd.PersistentFlags().StringVar(&flags.store, "store", "", "Snapshot database path")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolve(cmd); err != nil {
				return err
			}
			store, closeStore, err := a.openStore(flags.store)
			if err != nil {
				return err
			}
			defer closeStore()

			infos, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			return renderSnapshots(cmd.OutOrStdout(), flags.format, infos)
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <file|hash>",
		Short: "Print a stored snapshot by file path or source hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolve(cmd); err != nil {
				return err
			}
			store, closeStore, err := a.openStore(flags.store)
			if err != nil {
				return err
			}
			defer closeStore()

			result, err := lookupSnapshot(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			return renderResults(cmd.OutOrStdout(), flags.format, []*inherit.Result{result})
		},
	}

	cmd.AddCommand(listCmd, showCmd)
	return cmd
}

// lookupSnapshot treats key as a source hash when it looks like one and
// falls back to a file path lookup.
func lookupSnapshot(ctx context.Context, store *badger.SnapshotStore, key string) (*inherit.Result, error) {
	if isSHA256Hex(key) {
		result, err := store.GetByHash(ctx, key)
		if err == nil || !errors.Is(err, badger.ErrSnapshotNotFound) {
			return result, err
		}
	}
	return store.Get(ctx, key)
}

func isSHA256Hex(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
