// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/AleutianAI/classmap/services/classmap/inherit"
)

func newTestStore(t *testing.T) (*SnapshotStore, *DB) {
	t.Helper()
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewSnapshotStore(db)
	require.NoError(t, err)
	return store, db
}

func sampleResult(file, hash string) *inherit.Result {
	return &inherit.Result{
		RunID:       "run-" + hash,
		FilePath:    file,
		SourceHash:  hash,
		Inheritance: map[string][]string{"Base": {"Derived", "Other"}},
		Attributes: map[string]inherit.Attributes{
			"Derived": {IsVisible: true},
			"Other":   {IsTemplate: true, IsVisible: false},
		},
		Stats: inherit.BuildStats{ClassesVisited: 3, ClassesWithBases: 2, EdgesInserted: 2, AttributeWrites: 2},
	}
}

func TestSnapshotStore_PutGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	want := sampleResult("src/a.cpp", "aaaa")
	require.NoError(t, store.Put(ctx, want))

	got, err := store.Get(ctx, "src/a.cpp")
	require.NoError(t, err)
	assert.Equal(t, want.Inheritance, got.Inheritance)
	assert.Equal(t, want.Attributes, got.Attributes)
	assert.Equal(t, want.Stats, got.Stats)
	assert.Equal(t, want.RunID, got.RunID)

	byHash, err := store.GetByHash(ctx, "aaaa")
	require.NoError(t, err)
	assert.Equal(t, "src/a.cpp", byHash.FilePath)
}

func TestSnapshotStore_NotFound(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing.cpp")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	_, err = store.GetByHash(ctx, "ffff")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestSnapshotStore_PutReplacesFile(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, sampleResult("a.cpp", "1111")))
	require.NoError(t, store.Put(ctx, sampleResult("a.cpp", "2222")))

	got, err := store.Get(ctx, "a.cpp")
	require.NoError(t, err)
	assert.Equal(t, "2222", got.SourceHash)

	// The older content is still addressable by its hash.
	old, err := store.GetByHash(ctx, "1111")
	require.NoError(t, err)
	assert.Equal(t, "run-1111", old.RunID)
}

func TestSnapshotStore_List(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, sampleResult("z.cpp", "zz")))
	require.NoError(t, store.Put(ctx, sampleResult("a.cpp", "aa")))

	infos, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "a.cpp", infos[0].FilePath)
	assert.Equal(t, "z.cpp", infos[1].FilePath)
	assert.Equal(t, 1, infos[0].Bases)
	assert.Equal(t, 2, infos[0].Classes)
	assert.NotZero(t, infos[0].StoredAtMilli)
}

func TestSnapshotStore_InvalidInput(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.Put(ctx, nil), ErrInvalidSnapshot)
	assert.ErrorIs(t, store.Put(ctx, &inherit.Result{FilePath: "a.cpp"}), ErrInvalidSnapshot)

	_, err := NewSnapshotStore(nil)
	assert.Error(t, err)
}

func TestSnapshotStore_SchemaMismatch(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	data, err := msgpack.Marshal(&snapshotRecord{Schema: snapshotSchema + 1, Result: sampleResult("a.cpp", "aa")})
	require.NoError(t, err)
	require.NoError(t, db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte(fileKeyPrefix+"a.cpp"), data)
	}))

	_, err = store.Get(ctx, "a.cpp")
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	infos, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestSnapshotStore_CancelledContext(t *testing.T) {
	store, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.Put(ctx, sampleResult("a.cpp", "aa"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen_Persistent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")
	ctx := context.Background()

	db, err := Open(ConfigForPath(dir))
	require.NoError(t, err)
	assert.Equal(t, dir, db.Path())
	assert.False(t, db.InMemory())

	store, err := NewSnapshotStore(db)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, sampleResult("a.cpp", "aa")))
	require.NoError(t, db.Close())

	reopened, err := Open(ConfigForPath(dir))
	require.NoError(t, err)
	defer reopened.Close()

	store, err = NewSnapshotStore(reopened)
	require.NoError(t, err)
	got, err := store.Get(ctx, "a.cpp")
	require.NoError(t, err)
	assert.Equal(t, "aa", got.SourceHash)
}

func TestOpen_Config(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err, "persistent database without path")

	cfg := ConfigForPath(MemoryPath)
	assert.True(t, cfg.InMemory)

	db, err := Open(cfg)
	require.NoError(t, err)
	assert.True(t, db.InMemory())
	assert.Empty(t, db.Path())
	require.NoError(t, db.Close())
}
