// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package migrate implements the one-time transfer of anonymous-session
// records into a newly authenticated user's remote collections.
package migrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/olegiv/wordbook-go/internal/model"
	"github.com/olegiv/wordbook-go/internal/repo"
	"github.com/olegiv/wordbook-go/internal/store"
)

// RemoteStore is the slice of the remote document store migration needs.
// *remote.Store satisfies it.
type RemoteStore interface {
	EnsureRoot(ctx context.Context, uid, email string) error
	PutAll(ctx context.Context, uid string, kind model.Kind, docs map[string][]byte) error
	ServerTime(ctx context.Context) (model.Millis, error)
}

// ErrEmptyUserID is returned when OnLogin is invoked without a user id.
var ErrEmptyUserID = errors.New("migrate: empty user id")

// Coordinator copies the Local Store snapshots into a user's remote
// collections on login. The copy is not atomic as a whole: the batch write
// commits first and the local key is cleared only afterwards, so an
// interruption in between leaves the local snapshot in place and a later
// login re-runs the batch. Writes are keyed by entry id, which makes the
// re-run overwrite identical documents rather than duplicate them.
type Coordinator struct {
	local  *store.Local
	remote RemoteStore
	logger *slog.Logger

	// mu serializes logins within this process; concurrent logins from
	// other processes are handled by the keyed-overwrite property and the
	// transactional root create.
	mu sync.Mutex
}

// NewCoordinator creates a migration coordinator.
func NewCoordinator(local *store.Local, remote RemoteStore, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{local: local, remote: remote, logger: logger}
}

// OnLogin runs the migration for a fresh authenticated session. The caller
// invokes it only on an anonymous-to-authenticated transition, never on
// repeated authenticated events or on logout.
//
// Root-record creation is best-effort metadata: its failure is logged and
// the entry migration proceeds regardless. Per-collection failures are
// collected; a failed collection keeps its local snapshot for the next
// attempt.
func (c *Coordinator) OnLogin(ctx context.Context, uid, email string) error {
	if uid == "" {
		return ErrEmptyUserID
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.remote.EnsureRoot(ctx, uid, email); err != nil {
		c.logger.Error("creating user root record failed, continuing migration",
			"uid", uid, "error", err)
	}

	var errs []error
	if n, err := copyCollection(ctx, c, repo.Vocabulary(), uid); err != nil {
		errs = append(errs, fmt.Errorf("migrating vocabulary: %w", err))
	} else if n > 0 {
		c.logger.Info("migrated local vocabulary", "uid", uid, "count", n)
	}
	if n, err := copyCollection(ctx, c, repo.Articles(), uid); err != nil {
		errs = append(errs, fmt.Errorf("migrating articles: %w", err))
	} else if n > 0 {
		c.logger.Info("migrated local articles", "uid", uid, "count", n)
	}

	return errors.Join(errs...)
}

// copyCollection moves one collection kind: read the local snapshot, batch
// write every entry with a server-time creation stamp, then clear the local
// key. An empty or absent snapshot is a no-op.
func copyCollection[T any](ctx context.Context, c *Coordinator, desc repo.Descriptor[T], uid string) (int, error) {
	key := desc.Kind.LocalKey()

	raw, err := c.local.LoadSnapshot(ctx, key)
	if err != nil {
		return 0, err
	}
	if len(raw) == 0 {
		return 0, nil
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return 0, fmt.Errorf("decoding local %s snapshot: %w", desc.Kind, err)
	}
	if len(items) == 0 {
		return 0, nil
	}

	// Local wall-clock stamps from the anonymous session are not trusted
	// once migrated; the backend's clock replaces them.
	serverNow, err := c.remote.ServerTime(ctx)
	if err != nil {
		c.logger.Warn("server time unavailable during migration, using local clock", "error", err)
		serverNow = model.Now()
	}

	docs := make(map[string][]byte, len(items))
	for _, e := range items {
		id := desc.ID(e)
		if id == "" {
			id = desc.Normalize(desc.Label(e))
		}
		if id == "" {
			c.logger.Warn("skipping local entry without a usable id", "kind", desc.Kind)
			continue
		}

		e = desc.Prepare(e, id)
		e = desc.WithCreated(e, serverNow)
		e = desc.Touch(e, serverNow)

		doc, merr := json.Marshal(e)
		if merr != nil {
			return 0, fmt.Errorf("encoding %s/%s: %w", desc.Kind, id, merr)
		}
		docs[id] = doc
	}
	if len(docs) == 0 {
		return 0, nil
	}

	if err := c.remote.PutAll(ctx, uid, desc.Kind, docs); err != nil {
		// Local snapshot kept: the next login retries the batch.
		return 0, err
	}

	// Clear only after the batch is confirmed committed.
	if err := c.local.ClearSnapshot(ctx, key); err != nil {
		// The copy itself succeeded; a leftover snapshot re-migrates
		// idempotently on the next login.
		c.logger.Warn("clearing migrated local snapshot failed", "kind", desc.Kind, "error", err)
	}

	return len(docs), nil
}
