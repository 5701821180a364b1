// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/olegiv/wordbook-go/internal/identity"
	"github.com/olegiv/wordbook-go/internal/store"
)

// ErrEmptyID is returned when a label normalizes to nothing, so no storage
// key can be derived. The caller surfaces this to the end user.
var ErrEmptyID = errors.New("repo: label normalizes to empty id")

// ErrNoRemote is returned when an authenticated owner context is requested
// but no remote store is configured.
var ErrNoRemote = errors.New("repo: remote store not configured")

// Deps carries the collaborators a repository is built from.
type Deps struct {
	Local  *store.Local
	Remote RemoteStore // may be nil: anonymous-only operation
	Logger *slog.Logger

	// SnapshotDebounce is the coalescing window for anonymous-mode
	// snapshot writes. Zero writes through immediately.
	SnapshotDebounce time.Duration
}

// Repository is the unified CRUD and subscription facade over one record
// collection. It starts in the anonymous owner context; SetOwner switches
// the active backend when the session transitions. It does not migrate data
// itself — that is the migration coordinator's job.
type Repository[T any] struct {
	desc Descriptor[T]
	deps Deps

	mu          sync.Mutex
	owner       identity.Owner
	backend     backend[T]
	cancelWatch func()
	subs        map[int]func([]T)
	nextSub     int
}

// New creates a repository for one collection kind in the anonymous owner
// context.
func New[T any](desc Descriptor[T], deps Deps) *Repository[T] {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Repository[T]{
		desc:    desc,
		deps:    deps,
		backend: newLocalBackend(desc, deps.Local, deps.Logger, deps.SnapshotDebounce),
		subs:    make(map[int]func([]T)),
	}
}

// Kind returns the collection kind this repository serves.
func (r *Repository[T]) Kind() string {
	return string(r.desc.Kind)
}

// Owner returns the current owner context.
func (r *Repository[T]) Owner() identity.Owner {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owner
}

// Snapshot returns the complete current collection ordered by
// most-recent-activity descending.
func (r *Repository[T]) Snapshot(ctx context.Context) ([]T, error) {
	r.mu.Lock()
	b := r.backend
	r.mu.Unlock()

	items, err := b.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	r.order(items)
	return items, nil
}

// Subscribe registers fn for full-snapshot notifications: once immediately
// with the current collection, and again after every change visible to the
// active backend, including changes made by other sessions of the same
// owner. The returned cancel function stops delivery. Subscriptions survive
// owner transitions; the backend watch underneath is torn down and
// re-established per transition.
func (r *Repository[T]) Subscribe(ctx context.Context, fn func([]T)) (func(), error) {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	if err := r.ensureWatchLocked(ctx); err != nil {
		delete(r.subs, id)
		r.mu.Unlock()
		return nil, err
	}
	b := r.backend
	r.mu.Unlock()

	// Initial snapshot delivery. A failed read is logged and swallowed:
	// the stream stays silent until the next change or resubscribe.
	if items, err := b.snapshot(ctx); err != nil {
		r.deps.Logger.Error("initial snapshot failed", "kind", r.desc.Kind, "error", err)
	} else {
		r.order(items)
		fn(items)
	}

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		if len(r.subs) == 0 && r.cancelWatch != nil {
			r.cancelWatch()
			r.cancelWatch = nil
		}
		r.mu.Unlock()
	}, nil
}

// Add constructs the entry id from its label and inserts the entry with a
// fresh creation stamp. Adding an id that already exists is a silent no-op:
// the existing entry is left untouched and its id returned.
func (r *Repository[T]) Add(ctx context.Context, e T) (string, error) {
	id := r.desc.Normalize(r.desc.Label(e))
	if id == "" {
		return "", ErrEmptyID
	}

	b := r.currentBackend()
	if _, exists, err := b.get(ctx, id); err != nil {
		return "", fmt.Errorf("checking %s/%s: %w", r.desc.Kind, id, err)
	} else if exists {
		return id, nil
	}

	now := b.now(ctx)
	e = r.desc.Prepare(e, id)
	e = r.desc.WithCreated(e, now)
	e = r.desc.Touch(e, now)

	if err := b.put(ctx, e); err != nil {
		return "", err
	}
	return id, nil
}

// Update persists an edited entry. When the label still normalizes to the
// stored id the edit is applied in place and the stored creation stamp is
// preserved unless the caller supplies one. When the normalized id changed
// (a rename) the entry is inserted under the new id first and the old id
// deleted after, with a fresh creation stamp; the two writes are not
// atomic, so a crash in between leaves both records, which a later delete
// or re-rename resolves.
func (r *Repository[T]) Update(ctx context.Context, e T) error {
	newID := r.desc.Normalize(r.desc.Label(e))
	if newID == "" {
		return ErrEmptyID
	}

	oldID := r.desc.ID(e)
	if oldID == "" {
		oldID = newID
	}

	b := r.currentBackend()
	now := b.now(ctx)

	if newID != oldID {
		renamed := r.desc.Prepare(e, newID)
		renamed = r.desc.WithCreated(renamed, now)
		renamed = r.desc.Touch(renamed, now)
		if err := b.put(ctx, renamed); err != nil {
			return err
		}
		return b.remove(ctx, oldID)
	}

	updated := r.desc.Prepare(e, newID)
	created := r.desc.Created(updated)
	if created.IsZero() {
		if existing, ok, err := b.get(ctx, newID); err != nil {
			return fmt.Errorf("reading %s/%s: %w", r.desc.Kind, newID, err)
		} else if ok {
			created = r.desc.Created(existing)
		}
		created = created.Or(now)
	}
	updated = r.desc.WithCreated(updated, created)
	updated = r.desc.Touch(updated, now)

	return b.put(ctx, updated)
}

// Delete removes the entry with the given id. Deleting an absent id is a
// no-op.
func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	return r.currentBackend().remove(ctx, id)
}

// SetOwner switches the repository to a new owner context. The previous
// backend watch is cancelled before the new backend is observed, so no
// stale notification can cross the transition. Data is never copied here:
// a login defers to the migration coordinator, which runs before SetOwner;
// a logout simply re-subscribes to the Local Store. Pending writes of the
// old backend are discarded, not flushed — on a login the coordinator has
// already migrated the flushed state and cleared the local key, and a late
// flush would write the migrated entries back into it. The switcher calls
// Flush before migration, so nothing is pending by the time it gets here.
func (r *Repository[T]) SetOwner(ctx context.Context, owner identity.Owner) error {
	r.mu.Lock()
	if owner == r.owner && r.backend != nil {
		r.mu.Unlock()
		return nil
	}

	if r.cancelWatch != nil {
		r.cancelWatch()
		r.cancelWatch = nil
	}
	if r.backend != nil {
		r.backend.close()
	}

	if owner.IsAnonymous() {
		r.backend = newLocalBackend(r.desc, r.deps.Local, r.deps.Logger, r.deps.SnapshotDebounce)
	} else {
		if r.deps.Remote == nil {
			r.backend = newLocalBackend(r.desc, r.deps.Local, r.deps.Logger, r.deps.SnapshotDebounce)
			r.owner = identity.Anonymous()
			r.mu.Unlock()
			return ErrNoRemote
		}
		r.backend = newRemoteBackend(r.desc, r.deps.Remote, owner.UserID, r.deps.Logger)
	}
	r.owner = owner

	err := r.ensureWatchLocked(ctx)
	b := r.backend
	hasSubs := len(r.subs) > 0
	r.mu.Unlock()

	if err != nil {
		// Subscribers get no further notifications until a later
		// subscribe or transition succeeds; writes still work.
		r.deps.Logger.Error("re-subscribing after owner switch failed",
			"kind", r.desc.Kind, "owner", owner.String(), "error", err)
		return nil
	}

	if hasSubs {
		r.deliverSnapshot(ctx, b)
	}
	return nil
}

// Flush synchronously persists any pending write the active backend is
// still holding (the anonymous backend's debounced snapshot). Callers that
// are about to read the Local Store behind the repository's back — the
// migration coordinator does — must flush first or they observe a stale
// snapshot.
func (r *Repository[T]) Flush(ctx context.Context) error {
	return r.currentBackend().flush(ctx)
}

// Close tears down the active watch and flushes pending local writes.
func (r *Repository[T]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelWatch != nil {
		r.cancelWatch()
		r.cancelWatch = nil
	}
	if r.backend != nil {
		if err := r.backend.flush(context.Background()); err != nil {
			r.deps.Logger.Error("flushing on close", "kind", r.desc.Kind, "error", err)
		}
		r.backend.close()
	}
}

// currentBackend returns the active backend.
func (r *Repository[T]) currentBackend() backend[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend
}

// ensureWatchLocked starts the backend watch if subscribers exist and no
// watch is active. Must be called with the lock held.
func (r *Repository[T]) ensureWatchLocked(ctx context.Context) error {
	if r.cancelWatch != nil || len(r.subs) == 0 {
		return nil
	}

	b := r.backend
	cancel, err := b.watch(ctx, func() {
		r.deliverSnapshot(context.Background(), b)
	})
	if err != nil {
		return err
	}
	r.cancelWatch = cancel
	return nil
}

// deliverSnapshot reads the backend's current collection and fans it out to
// every subscriber. Read failures are logged and swallowed per the error
// model: the stream stops emitting until the next successful notification.
func (r *Repository[T]) deliverSnapshot(ctx context.Context, b backend[T]) {
	items, err := b.snapshot(ctx)
	if err != nil {
		r.deps.Logger.Error("snapshot delivery failed", "kind", r.desc.Kind, "error", err)
		return
	}
	r.order(items)

	r.mu.Lock()
	if r.backend != b {
		// Stale notification from a backend that was switched away.
		r.mu.Unlock()
		return
	}
	fns := make([]func([]T), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(items)
	}
}

// order sorts a snapshot by most-recent-activity descending, with the id as
// a deterministic tie-break.
func (r *Repository[T]) order(items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		ai, aj := r.desc.Activity(items[i]), r.desc.Activity(items[j])
		if ai != aj {
			return ai > aj
		}
		return r.desc.ID(items[i]) < r.desc.ID(items[j])
	})
}
