// Package kv is the key-value storage capability behind learner notes,
// discussion threads, resume state and import history.
//
// Values are opaque strings, mirroring browser local storage. Backends:
//
//   - Memory: process-local map, the default
//   - PG: PostgreSQL through a pgx connection pool
//   - SQL: any database/sql driver (SQLite via modernc.org/sqlite)
//
// Use Open to build the backend named by config.StorageConfig.
package kv

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("kv: key not found")

// Store is the get/set/remove capability.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Backend is a Store owning resources that must be released.
type Backend interface {
	Store
	io.Closer
}

// GetOr returns the stored value for key, or def when the key is unset.
func GetOr(ctx context.Context, s Store, key, def string) (string, error) {
	v, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// NotesKey addresses the autosaved notes for one lesson of a player.
func NotesKey(playerID, lessonID string) string {
	return "notes:" + playerID + ":" + lessonID
}

// DiscussionKey addresses the comment thread of a player.
func DiscussionKey(playerID string) string {
	return "discussion:" + playerID
}

// PlayerKey addresses the resume state of a player.
func PlayerKey(playerID string) string {
	return "player:" + playerID
}

// ImportKey addresses the recorded summary of a finished import run.
func ImportKey(importID string) string {
	return "import:" + importID
}

// SegmentsKey addresses the list of custom student segments.
func SegmentsKey() string {
	return "segments:custom"
}
