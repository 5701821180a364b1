// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/olegiv/wordbook-go/internal/model"
	"github.com/olegiv/wordbook-go/internal/store"
)

// RemoteStore is the slice of the remote document store the repository
// needs. *remote.Store satisfies it.
type RemoteStore interface {
	Get(ctx context.Context, uid string, kind model.Kind, id string) ([]byte, bool, error)
	Put(ctx context.Context, uid string, kind model.Kind, id string, doc []byte) error
	Delete(ctx context.Context, uid string, kind model.Kind, id string) error
	Snapshot(ctx context.Context, uid string, kind model.Kind) (map[string][]byte, error)
	Watch(ctx context.Context, uid string, kind model.Kind, fn func()) (func(), error)
	ServerTime(ctx context.Context) (model.Millis, error)
}

// backend is one storage mode of a repository. watch delivers bare change
// signals; the repository re-reads the snapshot per signal. flush persists
// any pending writes synchronously; close releases resources and discards
// whatever was not flushed.
type backend[T any] interface {
	snapshot(ctx context.Context) ([]T, error)
	get(ctx context.Context, id string) (T, bool, error)
	put(ctx context.Context, e T) error
	remove(ctx context.Context, id string) error
	watch(ctx context.Context, fn func()) (func(), error)
	now(ctx context.Context) model.Millis
	flush(ctx context.Context) error
	close()
}

// localBackend keeps the collection in memory, persists debounced
// full-snapshot writes to the Local Store, and signals in-process watchers
// after every mutation.
type localBackend[T any] struct {
	desc     Descriptor[T]
	local    *store.Local
	logger   *slog.Logger
	debounce time.Duration

	mu       sync.Mutex
	items    []T
	loaded   bool
	watchers map[int]func()
	nextID   int
	timer    *time.Timer
	closed   bool
}

func newLocalBackend[T any](desc Descriptor[T], local *store.Local, logger *slog.Logger, debounce time.Duration) *localBackend[T] {
	return &localBackend[T]{
		desc:     desc,
		local:    local,
		logger:   logger,
		debounce: debounce,
		watchers: make(map[int]func()),
	}
}

// load reads the stored snapshot on first access. Entries whose creation
// stamp did not survive decoding get current time substituted, the same
// fallback on every read.
func (b *localBackend[T]) load(ctx context.Context) error {
	if b.loaded {
		return nil
	}

	raw, err := b.local.LoadSnapshot(ctx, b.desc.Kind.LocalKey())
	if err != nil {
		return err
	}
	if len(raw) > 0 {
		var items []T
		if err := json.Unmarshal(raw, &items); err != nil {
			return fmt.Errorf("decoding %s snapshot: %w", b.desc.Kind, err)
		}
		now := model.Now()
		for i, e := range items {
			if b.desc.Created(e).IsZero() {
				items[i] = b.desc.WithCreated(e, now)
			}
		}
		b.items = items
	}
	b.loaded = true
	return nil
}

func (b *localBackend[T]) snapshot(ctx context.Context) ([]T, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.load(ctx); err != nil {
		return nil, err
	}
	out := make([]T, len(b.items))
	copy(out, b.items)
	return out, nil
}

func (b *localBackend[T]) get(ctx context.Context, id string) (T, bool, error) {
	var zero T
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.load(ctx); err != nil {
		return zero, false, err
	}
	for _, e := range b.items {
		if b.desc.ID(e) == id {
			return e, true, nil
		}
	}
	return zero, false, nil
}

func (b *localBackend[T]) put(ctx context.Context, e T) error {
	b.mu.Lock()
	if err := b.load(ctx); err != nil {
		b.mu.Unlock()
		return err
	}

	id := b.desc.ID(e)
	replaced := false
	for i, existing := range b.items {
		if b.desc.ID(existing) == id {
			b.items[i] = e
			replaced = true
			break
		}
	}
	if !replaced {
		b.items = append(b.items, e)
	}
	b.scheduleFlushLocked()
	b.mu.Unlock()

	b.notifyWatchers()
	return nil
}

func (b *localBackend[T]) remove(ctx context.Context, id string) error {
	b.mu.Lock()
	if err := b.load(ctx); err != nil {
		b.mu.Unlock()
		return err
	}

	removed := false
	kept := b.items[:0]
	for _, e := range b.items {
		if b.desc.ID(e) == id {
			removed = true
			continue
		}
		kept = append(kept, e)
	}
	b.items = kept
	if removed {
		b.scheduleFlushLocked()
	}
	b.mu.Unlock()

	if removed {
		b.notifyWatchers()
	}
	return nil
}

func (b *localBackend[T]) watch(ctx context.Context, fn func()) (func(), error) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.watchers[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.watchers, id)
		b.mu.Unlock()
	}, nil
}

func (b *localBackend[T]) now(context.Context) model.Millis {
	return model.Now()
}

// scheduleFlushLocked coalesces rapid mutations into one full-snapshot
// write. Must be called with the lock held.
func (b *localBackend[T]) scheduleFlushLocked() {
	if b.closed {
		return
	}
	if b.debounce <= 0 {
		b.flushLocked()
		return
	}
	if b.timer != nil {
		b.timer.Reset(b.debounce)
		return
	}
	b.timer = time.AfterFunc(b.debounce, func() {
		b.mu.Lock()
		b.timer = nil
		if !b.closed {
			b.flushLocked()
		}
		b.mu.Unlock()
	})
}

// flushLocked writes the full collection snapshot. Failures are logged and
// swallowed; the in-memory state stays authoritative and the next mutation
// retries the write.
func (b *localBackend[T]) flushLocked() {
	if err := b.writeSnapshotLocked(context.Background()); err != nil {
		b.logger.Error("saving local snapshot", "kind", b.desc.Kind, "error", err)
	}
}

func (b *localBackend[T]) writeSnapshotLocked(ctx context.Context) error {
	data, err := json.Marshal(b.items)
	if err != nil {
		return fmt.Errorf("marshaling %s snapshot: %w", b.desc.Kind, err)
	}
	return b.local.SaveSnapshot(ctx, b.desc.Kind.LocalKey(), data)
}

// flush persists any pending snapshot write synchronously, stopping the
// debounce timer. A no-op when nothing is pending.
func (b *localBackend[T]) flush(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer == nil {
		return nil
	}
	b.timer.Stop()
	b.timer = nil
	return b.writeSnapshotLocked(ctx)
}

func (b *localBackend[T]) notifyWatchers() {
	b.mu.Lock()
	fns := make([]func(), 0, len(b.watchers))
	for _, fn := range b.watchers {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// close stops the debounce timer and discards any pending snapshot write.
// After migration the local key has been cleared; writing the stale
// in-memory collection here would resurrect already-migrated entries, so
// callers that want the pending state persisted must flush first.
func (b *localBackend[T]) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

// remoteBackend serves one user's collection from the remote document
// store. Timestamps come from the backend's server clock.
type remoteBackend[T any] struct {
	desc   Descriptor[T]
	store  RemoteStore
	uid    string
	logger *slog.Logger
}

func newRemoteBackend[T any](desc Descriptor[T], store RemoteStore, uid string, logger *slog.Logger) *remoteBackend[T] {
	return &remoteBackend[T]{desc: desc, store: store, uid: uid, logger: logger}
}

func (b *remoteBackend[T]) snapshot(ctx context.Context) ([]T, error) {
	docs, err := b.store.Snapshot(ctx, b.uid, b.desc.Kind)
	if err != nil {
		return nil, err
	}

	now := model.Now()
	items := make([]T, 0, len(docs))
	for id, doc := range docs {
		var e T
		if err := json.Unmarshal(doc, &e); err != nil {
			// A single unreadable document must not take the whole
			// collection view down.
			b.logger.Warn("skipping malformed document", "kind", b.desc.Kind, "id", id, "error", err)
			continue
		}
		e = b.desc.Prepare(e, id)
		if b.desc.Created(e).IsZero() {
			e = b.desc.WithCreated(e, now)
		}
		items = append(items, e)
	}
	return items, nil
}

func (b *remoteBackend[T]) get(ctx context.Context, id string) (T, bool, error) {
	var zero T
	doc, ok, err := b.store.Get(ctx, b.uid, b.desc.Kind, id)
	if err != nil || !ok {
		return zero, false, err
	}

	var e T
	if err := json.Unmarshal(doc, &e); err != nil {
		return zero, false, fmt.Errorf("decoding %s/%s: %w", b.desc.Kind, id, err)
	}
	return b.desc.Prepare(e, id), true, nil
}

func (b *remoteBackend[T]) put(ctx context.Context, e T) error {
	doc, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", b.desc.Kind, b.desc.ID(e), err)
	}
	return b.store.Put(ctx, b.uid, b.desc.Kind, b.desc.ID(e), doc)
}

func (b *remoteBackend[T]) remove(ctx context.Context, id string) error {
	return b.store.Delete(ctx, b.uid, b.desc.Kind, id)
}

func (b *remoteBackend[T]) watch(ctx context.Context, fn func()) (func(), error) {
	return b.store.Watch(ctx, b.uid, b.desc.Kind, fn)
}

func (b *remoteBackend[T]) now(ctx context.Context) model.Millis {
	ts, err := b.store.ServerTime(ctx)
	if err != nil {
		b.logger.Warn("server time unavailable, using local clock", "error", err)
		return model.Now()
	}
	return ts
}

func (b *remoteBackend[T]) flush(context.Context) error { return nil }

func (b *remoteBackend[T]) close() {}
