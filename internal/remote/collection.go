// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package remote

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/olegiv/wordbook-go/internal/model"
)

// ErrBadPath indicates an empty user id or entry id, which cannot form a
// valid hierarchical key.
var ErrBadPath = errors.New("remote: empty path segment")

// Get reads a single document. The second return value is false when the
// document does not exist.
func (s *Store) Get(ctx context.Context, uid string, kind model.Kind, id string) ([]byte, bool, error) {
	if uid == "" || id == "" {
		return nil, false, ErrBadPath
	}

	val, err := s.client.HGet(ctx, s.collectionKey(uid, kind), id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s/%s: %w", kind, id, err)
	}
	return []byte(val), true, nil
}

// Put writes a single document and notifies watchers. Writing an existing
// id overwrites the document.
func (s *Store) Put(ctx context.Context, uid string, kind model.Kind, id string, doc []byte) error {
	if uid == "" || id == "" {
		return ErrBadPath
	}

	if err := s.client.HSet(ctx, s.collectionKey(uid, kind), id, string(doc)).Err(); err != nil {
		return fmt.Errorf("writing %s/%s: %w", kind, id, err)
	}
	s.notify(ctx, uid, kind, id)
	return nil
}

// PutAll writes a batch of documents in one transactional pipeline and
// notifies watchers once. Used by migration; writes are keyed, so repeating
// the batch overwrites identical documents instead of duplicating them.
func (s *Store) PutAll(ctx context.Context, uid string, kind model.Kind, docs map[string][]byte) error {
	if uid == "" {
		return ErrBadPath
	}
	if len(docs) == 0 {
		return nil
	}

	key := s.collectionKey(uid, kind)
	pipe := s.client.TxPipeline()
	for id, doc := range docs {
		if id == "" {
			return ErrBadPath
		}
		pipe.HSet(ctx, key, id, string(doc))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("batch writing %d documents to %s: %w", len(docs), kind, err)
	}
	s.notify(ctx, uid, kind, "*")
	return nil
}

// Delete removes a single document. Deleting an absent id is a no-op and
// does not notify watchers.
func (s *Store) Delete(ctx context.Context, uid string, kind model.Kind, id string) error {
	if uid == "" || id == "" {
		return ErrBadPath
	}

	removed, err := s.client.HDel(ctx, s.collectionKey(uid, kind), id).Result()
	if err != nil {
		return fmt.Errorf("deleting %s/%s: %w", kind, id, err)
	}
	if removed > 0 {
		s.notify(ctx, uid, kind, id)
	}
	return nil
}

// Snapshot reads the complete current collection as id -> document.
func (s *Store) Snapshot(ctx context.Context, uid string, kind model.Kind) (map[string][]byte, error) {
	if uid == "" {
		return nil, ErrBadPath
	}

	vals, err := s.client.HGetAll(ctx, s.collectionKey(uid, kind)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading %s snapshot: %w", kind, err)
	}

	docs := make(map[string][]byte, len(vals))
	for id, doc := range vals {
		docs[id] = []byte(doc)
	}
	return docs, nil
}

// Watch subscribes to change notifications for one user collection. fn is
// invoked once per notification, with no payload: watchers re-read the full
// snapshot. The returned cancel function stops delivery and releases the
// subscription; it is safe to call more than once.
func (s *Store) Watch(ctx context.Context, uid string, kind model.Kind, fn func()) (func(), error) {
	if uid == "" {
		return nil, ErrBadPath
	}

	pubsub := s.client.Subscribe(ctx, s.channel(uid, kind))

	// Confirm the subscription before returning so no notification between
	// the caller's initial snapshot read and this point is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribing to %s changes: %w", kind, err)
	}

	go func() {
		for range pubsub.Channel() {
			fn()
		}
	}()

	return func() { _ = pubsub.Close() }, nil
}

// notify publishes a change notification. Publish failures are deliberately
// ignored: the write itself committed, and watchers resynchronize on their
// next notification or resubscribe.
func (s *Store) notify(ctx context.Context, uid string, kind model.Kind, id string) {
	_ = s.client.Publish(ctx, s.channel(uid, kind), id).Err()
}
