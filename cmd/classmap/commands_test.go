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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/classmap/services/classmap/ast"
	"github.com/AleutianAI/classmap/services/classmap/config"
	"github.com/AleutianAI/classmap/services/classmap/inherit"
)

const widgetSource = `namespace app {
class Base {};
class Widget : public Base {
    class Impl : public Base {};
};
}
`

const gadgetSource = `namespace app {
class Base {};
template <typename T>
class Gadget : private Base {};
}
`

// runCLI executes the root command in an isolated working directory and
// returns what it wrote to stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	root := newRootCmd(newApp())
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

func writeUnit(t *testing.T, dir, name, source string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

// =============================================================================
// ANALYZE
// =============================================================================

func TestAnalyzeCmd_Text(t *testing.T) {
	dir := isolate(t)
	path := writeUnit(t, dir, "widget.hpp", widgetSource)

	out, err := runCLI(t, "analyze", path)
	require.NoError(t, err)

	assert.Contains(t, out, "inheritance")
	assert.Contains(t, out, "  app::Base\n")
	assert.Contains(t, out, "    -> app::Widget\n")
	assert.Contains(t, out, "    -> app::Widget::Impl\n")
	assert.Regexp(t, `app::Widget\s+visible`, out)
	assert.Regexp(t, `app::Widget::Impl\s+hidden`, out)
	assert.NotContains(t, out, "\x1b[")
}

func TestAnalyzeCmd_JSON(t *testing.T) {
	dir := isolate(t)
	path := writeUnit(t, dir, "gadget.hpp", gadgetSource)

	out, err := runCLI(t, "analyze", "--format", "json", path)
	require.NoError(t, err)

	var result inherit.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, path, result.FilePath)
	assert.Empty(t, result.Inheritance)

	attrs, ok := result.AttributesOf("app::Gadget")
	require.True(t, ok)
	assert.True(t, attrs.IsTemplate)
	assert.True(t, attrs.IsVisible)
}

func TestAnalyzeCmd_YAMLMultipleFiles(t *testing.T) {
	dir := isolate(t)
	widget := writeUnit(t, dir, "widget.hpp", widgetSource)
	gadget := writeUnit(t, dir, "gadget.hpp", gadgetSource)

	out, err := runCLI(t, "analyze", "-f", "yaml", widget, gadget)
	require.NoError(t, err)

	var results []inherit.Result
	require.NoError(t, yaml.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	assert.Equal(t, widget, results[0].FilePath)
	assert.Equal(t, gadget, results[1].FilePath)
}

func TestAnalyzeCmd_Errors(t *testing.T) {
	dir := isolate(t)
	good := writeUnit(t, dir, "widget.hpp", widgetSource)
	bad := writeUnit(t, dir, "broken.cpp", "class B : public {")

	t.Run("no files", func(t *testing.T) {
		_, err := runCLI(t, "analyze")
		assert.Error(t, err)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := runCLI(t, "analyze", "--format", "xml", good)
		assert.ErrorIs(t, err, errUnknownFormat)
	})

	t.Run("syntax error in strict mode", func(t *testing.T) {
		_, err := runCLI(t, "analyze", bad)
		assert.ErrorIs(t, err, ast.ErrParseFailed)
	})

	t.Run("syntax error in lenient mode", func(t *testing.T) {
		_, err := runCLI(t, "analyze", "--strict=false", bad)
		assert.NoError(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := runCLI(t, "analyze", filepath.Join(dir, "absent.hpp"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		notes := writeUnit(t, dir, "notes.txt", "class A {};")
		_, err := runCLI(t, "analyze", notes)
		assert.ErrorIs(t, err, ast.ErrUnsupportedLanguage)
	})
}

func TestAnalyzeCmd_ConfigFile(t *testing.T) {
	dir := isolate(t)
	path := writeUnit(t, dir, "widget.hpp", widgetSource)
	cfgPath := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("output:\n  format: json\n"), 0o644))

	out, err := runCLI(t, "--config", cfgPath, "analyze", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "{"), out)
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

func TestSnapshotsCmd_RoundTrip(t *testing.T) {
	dir := isolate(t)
	path := writeUnit(t, dir, "widget.hpp", widgetSource)
	store := filepath.Join(dir, "snapshots")

	out, err := runCLI(t, "analyze", "--format", "json", "--store", store, path)
	require.NoError(t, err)
	var analyzed inherit.Result
	require.NoError(t, json.Unmarshal([]byte(out), &analyzed))

	out, err = runCLI(t, "snapshots", "list", "--store", store, "--format", "json")
	require.NoError(t, err)
	var infos []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, path, infos[0]["file"])

	out, err = runCLI(t, "snapshots", "show", "--store", store, "-f", "json", path)
	require.NoError(t, err)
	var byFile inherit.Result
	require.NoError(t, json.Unmarshal([]byte(out), &byFile))
	assert.Equal(t, analyzed.RunID, byFile.RunID)

	out, err = runCLI(t, "snapshots", "show", "--store", store, "-f", "json", analyzed.SourceHash)
	require.NoError(t, err)
	var byHash inherit.Result
	require.NoError(t, json.Unmarshal([]byte(out), &byHash))
	assert.Equal(t, analyzed.RunID, byHash.RunID)
}

func TestSnapshotsCmd_Errors(t *testing.T) {
	dir := isolate(t)

	_, err := runCLI(t, "snapshots", "list")
	assert.ErrorIs(t, err, errNoStore)

	out, err := runCLI(t, "snapshots", "list", "--store", filepath.Join(dir, "empty"))
	require.NoError(t, err)
	assert.Contains(t, out, "no snapshots")
}

func TestVersionCmd(t *testing.T) {
	isolate(t)

	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "classmap "), out)
}

// =============================================================================
// WATCH
// =============================================================================

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatch_ReanalyzesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeUnit(t, dir, "widget.hpp", "class Lonely {};")

	cfg := config.Default()
	a := &app{cfg: &cfg, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	ctx, cancel := context.WithCancel(context.Background())
	var out syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- a.watch(ctx, &out, formatText, a.newAnalyzer(), nil, []string{path})
	}()

	// Rewrite on every poll so the first write cannot race watcher setup.
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte(widgetSource), 0o644)
		return strings.Contains(out.String(), "-> app::Widget")
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
