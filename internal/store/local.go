// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the requested key is not present in the Local Store.
var ErrNotFound = errors.New("store: not found")

// sessionIDKey is the settings key holding the generated anonymous session id.
const sessionIDKey = "anonymous_session_id"

// Local provides access to the on-device store. One snapshot row is kept per
// collection key; snapshot writes always replace the whole value, so they are
// trivially last-write-wins.
type Local struct {
	db *sql.DB
}

// NewLocal wraps an open database handle.
func NewLocal(db *sql.DB) *Local {
	return &Local{db: db}
}

// DB exposes the underlying handle for components that write their own
// tables (the event log handler).
func (l *Local) DB() *sql.DB {
	return l.db
}

// LoadSnapshot returns the stored snapshot for a collection key, or nil if
// no snapshot has been written.
func (l *Local) LoadSnapshot(ctx context.Context, key string) ([]byte, error) {
	var data string
	err := l.db.QueryRowContext(ctx,
		"SELECT data FROM collections WHERE key = ?", key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot %q: %w", key, err)
	}
	return []byte(data), nil
}

// SaveSnapshot replaces the stored snapshot for a collection key.
func (l *Local) SaveSnapshot(ctx context.Context, key string, data []byte) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO collections (key, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving snapshot %q: %w", key, err)
	}
	return nil
}

// ClearSnapshot removes the stored snapshot for a collection key. Clearing
// an absent key is a no-op.
func (l *Local) ClearSnapshot(ctx context.Context, key string) error {
	if _, err := l.db.ExecContext(ctx, "DELETE FROM collections WHERE key = ?", key); err != nil {
		return fmt.Errorf("clearing snapshot %q: %w", key, err)
	}
	return nil
}

// GetSetting returns a flat application setting, or ErrNotFound.
func (l *Local) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := l.db.QueryRowContext(ctx,
		"SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading setting %q: %w", key, err)
	}
	return value, nil
}

// SetSetting stores a flat application setting.
func (l *Local) SetSetting(ctx context.Context, key, value string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("writing setting %q: %w", key, err)
	}
	return nil
}

// SessionID returns the stable id of the anonymous session, generating and
// persisting one on first use.
func (l *Local) SessionID(ctx context.Context) (string, error) {
	id, err := l.GetSetting(ctx, sessionIDKey)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	id = uuid.NewString()
	if err := l.SetSetting(ctx, sessionIDKey, id); err != nil {
		return "", err
	}
	return id, nil
}

// InsertEvent appends a record to the event log.
func (l *Local) InsertEvent(ctx context.Context, level, source, message, data string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO events (level, source, message, data, created_at) VALUES (?, ?, ?, ?, ?)`,
		level, source, message, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}
	return nil
}

// CountEvents returns the number of logged events, optionally filtered by level.
func (l *Local) CountEvents(ctx context.Context, level string) (int64, error) {
	var n int64
	var err error
	if level == "" {
		err = l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&n)
	} else {
		err = l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events WHERE level = ?", level).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("counting events: %w", err)
	}
	return n, nil
}
