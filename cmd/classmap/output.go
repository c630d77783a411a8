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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/classmap/services/classmap/inherit"
	"github.com/AleutianAI/classmap/services/classmap/storage/badger"
)

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var errUnknownFormat = errors.New("unknown output format")

var (
	colorTeal  = lipgloss.Color("#2CD7C7")
	colorSlate = lipgloss.Color("#2C4A54")
	colorGold  = lipgloss.Color("#F4D03F")
	colorRed   = lipgloss.Color("#E74C3C")
)

// palette renders text fragments. The plain palette is the identity.
type palette struct {
	title   func(...string) string
	heading func(...string) string
	muted   func(...string) string
	warn    func(...string) string
	fail    func(...string) string
}

func plainPalette() palette {
	id := func(s ...string) string { return strings.Join(s, " ") }
	return palette{title: id, heading: id, muted: id, warn: id, fail: id}
}

func styledPalette() palette {
	return palette{
		title:   lipgloss.NewStyle().Bold(true).Foreground(colorTeal).Render,
		heading: lipgloss.NewStyle().Bold(true).Render,
		muted:   lipgloss.NewStyle().Foreground(colorSlate).Render,
		warn:    lipgloss.NewStyle().Foreground(colorGold).Render,
		fail:    lipgloss.NewStyle().Foreground(colorRed).Render,
	}
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func paletteFor(w io.Writer) palette {
	if isTerminal(w) {
		return styledPalette()
	}
	return plainPalette()
}

func validFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("%w: %q (want text, json or yaml)", errUnknownFormat, format)
	}
}

// renderResults writes results in format. JSON and YAML emit a single
// document: the result itself for one unit, a list for several.
func renderResults(w io.Writer, format string, results []*inherit.Result) error {
	switch format {
	case formatJSON:
		return writeJSON(w, documentOf(results))
	case formatYAML:
		return writeYAML(w, documentOf(results))
	case formatText:
		p := paletteFor(w)
		for i, r := range results {
			if i > 0 {
				fmt.Fprintln(w)
			}
			writeResultText(w, p, r)
		}
		return nil
	default:
		return validFormat(format)
	}
}

func documentOf(results []*inherit.Result) any {
	if len(results) == 1 {
		return results[0]
	}
	return results
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func writeResultText(w io.Writer, p palette, r *inherit.Result) {
	fmt.Fprintf(w, "%s %s\n", p.title(r.FilePath), p.muted(fmt.Sprintf(
		"(%d classes, %d edges, %s)",
		r.ClassesDelivered, r.Stats.EdgesInserted, time.Duration(r.DurationMilli)*time.Millisecond,
	)))

	fmt.Fprintln(w, p.heading("inheritance"))
	if len(r.Inheritance) == 0 {
		fmt.Fprintln(w, p.muted("  (none)"))
	}
	bases := make([]string, 0, len(r.Inheritance))
	for base := range r.Inheritance {
		bases = append(bases, base)
	}
	sort.Strings(bases)
	for _, base := range bases {
		fmt.Fprintf(w, "  %s\n", base)
		for _, derived := range r.Inheritance[base] {
			fmt.Fprintf(w, "    -> %s\n", derived)
		}
	}

	fmt.Fprintln(w, p.heading("attributes"))
	if len(r.Attributes) == 0 {
		fmt.Fprintln(w, p.muted("  (none)"))
	}
	names := make([]string, 0, len(r.Attributes))
	width := 0
	for name := range r.Attributes {
		names = append(names, name)
		width = max(width, len(name))
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-*s  %s\n", width, name, attributeFlags(p, r.Attributes[name]))
	}

	if len(r.Diagnostics) > 0 {
		fmt.Fprintln(w, p.heading("diagnostics"))
		for _, d := range r.Diagnostics {
			fmt.Fprintf(w, "  %s\n", p.warn(d))
		}
	}
}

func attributeFlags(p palette, a inherit.Attributes) string {
	var flags []string
	if a.IsTemplate {
		flags = append(flags, "template")
	}
	if a.IsVisible {
		flags = append(flags, "visible")
	} else {
		flags = append(flags, p.muted("hidden"))
	}
	return strings.Join(flags, " ")
}

// renderSnapshots writes a snapshot listing in format.
func renderSnapshots(w io.Writer, format string, infos []badger.SnapshotInfo) error {
	if infos == nil {
		infos = []badger.SnapshotInfo{}
	}
	switch format {
	case formatJSON:
		return writeJSON(w, infos)
	case formatYAML:
		return writeYAML(w, infos)
	case formatText:
		p := paletteFor(w)
		if len(infos) == 0 {
			fmt.Fprintln(w, p.muted("no snapshots"))
			return nil
		}
		for _, info := range infos {
			stored := time.UnixMilli(info.StoredAtMilli).UTC().Format(time.RFC3339)
			fmt.Fprintf(w, "%s  %s  %d bases  %d classes  %s\n",
				p.title(info.FilePath), info.SourceHash[:min(12, len(info.SourceHash))],
				info.Bases, info.Classes, p.muted(stored))
		}
		return nil
	default:
		return validFormat(format)
	}
}

// renderError formats a fatal error for w.
func renderError(w io.Writer, err error) string {
	p := paletteFor(w)
	return p.fail("error:") + " " + err.Error()
}
