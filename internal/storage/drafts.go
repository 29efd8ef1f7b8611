// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/shopdesk/internal/menu"
)

// ErrNoUser is returned when a draft is addressed without a user ID.
var ErrNoUser = errors.New("draft requires a user id")

const schema = `
CREATE TABLE IF NOT EXISTS drafts (
	user_id    TEXT PRIMARY KEY,
	body       TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// Draft is an unsaved arrangement.
type Draft struct {
	Order   menu.Order
	SavedAt time.Time
}

// DB is the local draft database.
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the SQLite database at path. ":memory:" is
// accepted for tests.
func Open(ctx context.Context, path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer; a single connection also keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db: db, now: time.Now}, nil
}

// Close releases the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// SaveDraft stores order as userID's draft, replacing any earlier one.
func (d *DB) SaveDraft(ctx context.Context, userID string, order menu.Order) error {
	if userID == "" {
		return ErrNoUser
	}
	body, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO drafts (user_id, body, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		userID, string(body), d.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// LoadDraft returns userID's draft. ok is false when there is none.
func (d *DB) LoadDraft(ctx context.Context, userID string) (draft Draft, ok bool, err error) {
	if userID == "" {
		return Draft{}, false, ErrNoUser
	}

	var body string
	var updated int64
	err = d.db.QueryRowContext(ctx,
		"SELECT body, updated_at FROM drafts WHERE user_id = ?", userID).Scan(&body, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Draft{}, false, nil
	}
	if err != nil {
		return Draft{}, false, fmt.Errorf("failed to load draft: %w", err)
	}

	if err := json.Unmarshal([]byte(body), &draft.Order); err != nil {
		return Draft{}, false, fmt.Errorf("failed to decode draft: %w", err)
	}
	draft.SavedAt = time.UnixMilli(updated)
	return draft, true, nil
}

// DeleteDraft removes userID's draft. Deleting a missing draft is not an error.
func (d *DB) DeleteDraft(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrNoUser
	}
	if _, err := d.db.ExecContext(ctx, "DELETE FROM drafts WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}
