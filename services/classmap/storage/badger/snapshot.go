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
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/AleutianAI/classmap/services/classmap/inherit"
)

// snapshotSchema is bumped whenever the stored record layout changes.
const snapshotSchema uint16 = 1

const (
	fileKeyPrefix = "snapshot/"
	hashKeyPrefix = "hash/"
)

var (
	// ErrSnapshotNotFound is returned when no snapshot exists for a key.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrSchemaMismatch is returned for records written by another layout.
	ErrSchemaMismatch = errors.New("snapshot schema mismatch")

	// ErrInvalidSnapshot is returned when Put receives an unusable result.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

type snapshotRecord struct {
	Schema        uint16          `msgpack:"schema"`
	StoredAtMilli int64           `msgpack:"stored_at"`
	Result        *inherit.Result `msgpack:"result"`
}

// SnapshotInfo summarizes one stored snapshot.
type SnapshotInfo struct {
	FilePath      string `json:"file" yaml:"file"`
	SourceHash    string `json:"source_hash" yaml:"source_hash"`
	RunID         string `json:"run_id" yaml:"run_id"`
	StoredAtMilli int64  `json:"stored_at" yaml:"stored_at"`
	Bases         int    `json:"bases" yaml:"bases"`
	Classes       int    `json:"classes" yaml:"classes"`
}

// SnapshotStore persists analysis results keyed by file path and by
// source hash.
//
// Thread Safety: Safe for concurrent use.
type SnapshotStore struct {
	db *DB
}

// NewSnapshotStore creates a store on an open database.
func NewSnapshotStore(db *DB) (*SnapshotStore, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	return &SnapshotStore{db: db}, nil
}

// Put stores result under its file path and its source hash, replacing
// any earlier snapshot for the same file.
func (s *SnapshotStore) Put(ctx context.Context, result *inherit.Result) error {
	if result == nil || result.FilePath == "" || result.SourceHash == "" {
		return fmt.Errorf("%w: file path and source hash are required", ErrInvalidSnapshot)
	}

	data, err := msgpack.Marshal(&snapshotRecord{
		Schema:        snapshotSchema,
		StoredAtMilli: time.Now().UnixMilli(),
		Result:        result,
	})
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", result.FilePath, err)
	}

	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if err := txn.Set([]byte(fileKeyPrefix+result.FilePath), data); err != nil {
			return fmt.Errorf("store snapshot %s: %w", result.FilePath, err)
		}
		if err := txn.Set([]byte(hashKeyPrefix+result.SourceHash), data); err != nil {
			return fmt.Errorf("store snapshot hash %s: %w", result.SourceHash, err)
		}
		return nil
	})
}

// Get returns the latest snapshot stored for filePath.
func (s *SnapshotStore) Get(ctx context.Context, filePath string) (*inherit.Result, error) {
	rec, err := s.load(ctx, fileKeyPrefix+filePath)
	if err != nil {
		return nil, err
	}
	return rec.Result, nil
}

// GetByHash returns the snapshot of the unit whose bytes hash to hash.
func (s *SnapshotStore) GetByHash(ctx context.Context, hash string) (*inherit.Result, error) {
	rec, err := s.load(ctx, hashKeyPrefix+hash)
	if err != nil {
		return nil, err
	}
	return rec.Result, nil
}

// List summarizes every stored file snapshot, sorted by file path.
func (s *SnapshotStore) List(ctx context.Context) ([]SnapshotInfo, error) {
	var infos []SnapshotInfo

	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(fileKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec snapshotRecord
			if err := it.Item().Value(func(val []byte) error {
				return msgpack.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode snapshot %s: %w", it.Item().Key(), err)
			}
			if rec.Schema != snapshotSchema || rec.Result == nil {
				continue
			}
			infos = append(infos, SnapshotInfo{
				FilePath:      rec.Result.FilePath,
				SourceHash:    rec.Result.SourceHash,
				RunID:         rec.Result.RunID,
				StoredAtMilli: rec.StoredAtMilli,
				Bases:         len(rec.Result.Inheritance),
				Classes:       len(rec.Result.Attributes),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].FilePath < infos[j].FilePath })
	return infos, nil
}

func (s *SnapshotStore) load(ctx context.Context, key string) (*snapshotRecord, error) {
	var rec snapshotRecord

	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrSnapshotNotFound, key)
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", key, err)
		}
		return item.Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}

	if rec.Schema != snapshotSchema {
		return nil, fmt.Errorf("%w: %s has schema %d", ErrSchemaMismatch, key, rec.Schema)
	}
	if rec.Result == nil {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, key)
	}
	return &rec, nil
}
