// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package session wires identity transitions to storage-mode switching: it
// watches the identity event stream, triggers migration on a fresh login
// edge, and re-points every repository at the backend the new owner
// context requires.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/olegiv/wordbook-go/internal/identity"
)

// OwnerAware is anything that switches its active backend per owner
// context; the entry repositories implement it. Flush must persist any
// write the active backend is still debouncing, so the migration
// coordinator reads a complete Local Store snapshot.
type OwnerAware interface {
	Kind() string
	Flush(ctx context.Context) error
	SetOwner(ctx context.Context, owner identity.Owner) error
}

// Migrator runs the one-time local-to-remote record migration; the
// migration coordinator implements it.
type Migrator interface {
	OnLogin(ctx context.Context, uid, email string) error
}

// Switcher consumes the identity event stream and drives the storage-mode
// transitions. Migration fires only on the anonymous-to-authenticated
// edge: repeated authenticated events and logouts never trigger it, and an
// account switch while signed in re-points the repositories without
// touching the (already empty) local snapshots.
type Switcher struct {
	provider *identity.Provider
	migrator Migrator // nil when no remote store is configured
	repos    []OwnerAware
	logger   *slog.Logger

	mu     sync.Mutex
	prev   identity.Owner
	cancel func()
}

// NewSwitcher creates a switcher over the given repositories.
func NewSwitcher(provider *identity.Provider, migrator Migrator, logger *slog.Logger, repos ...OwnerAware) *Switcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Switcher{
		provider: provider,
		migrator: migrator,
		repos:    repos,
		logger:   logger,
	}
}

// Start subscribes to the identity event stream. Events are handled
// synchronously in delivery order. The subscription itself delivers the
// current state immediately, so the lock cannot be held across it.
func (s *Switcher) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	cancel := s.provider.Subscribe(func(owner identity.Owner) {
		s.handle(ctx, owner)
	})

	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
}

// Stop unsubscribes from the identity event stream.
func (s *Switcher) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Switcher) handle(ctx context.Context, next identity.Owner) {
	s.mu.Lock()
	prev := s.prev
	s.prev = next
	s.mu.Unlock()

	if next == prev {
		return
	}

	// Migration runs before the repositories re-subscribe, so the first
	// remote snapshot they observe already includes the migrated entries
	// (or migration is at least known to have started for the failed
	// collections, which retry on the next login). Entries still sitting
	// in a debounce window are flushed first; the coordinator reads the
	// Local Store directly and would miss them otherwise.
	if prev.IsAnonymous() && !next.IsAnonymous() && s.migrator != nil {
		for _, r := range s.repos {
			if err := r.Flush(ctx); err != nil {
				s.logger.Error("flushing before migration failed",
					"collection", r.Kind(), "error", err)
			}
		}
		if err := s.migrator.OnLogin(ctx, next.UserID, next.Email); err != nil {
			s.logger.Error("migrating local records failed", "owner", next.String(), "error", err)
		}
	}

	for _, r := range s.repos {
		if err := r.SetOwner(ctx, next); err != nil {
			s.logger.Error("switching repository owner failed",
				"collection", r.Kind(), "owner", next.String(), "error", err)
		}
	}

	s.logger.Info("owner context switched", "from", prev.String(), "to", next.String())
}
