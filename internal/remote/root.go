// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/olegiv/wordbook-go/internal/model"
)

// maxEnsureRootRetries bounds optimistic-transaction retries when two
// sessions race root creation. The loser of a race observes an existing
// record on re-check and succeeds without writing.
const maxEnsureRootRetries = 3

// EnsureRoot creates the per-user root record if it does not exist yet.
// The check-then-create runs inside a WATCH/MULTI transaction, so when two
// sessions log in concurrently exactly one creation commits and the other
// sees the existing record untouched.
func (s *Store) EnsureRoot(ctx context.Context, uid, email string) error {
	if uid == "" {
		return ErrBadPath
	}

	key := s.rootKey(uid)

	txf := func(tx *redis.Tx) error {
		_, err := tx.Get(ctx, key).Result()
		if err == nil {
			// Already exists: never overwrite.
			return nil
		}
		if !errors.Is(err, redis.Nil) {
			return err
		}

		now, terr := s.ServerTime(ctx)
		if terr != nil {
			now = model.Now()
		}

		doc, merr := json.Marshal(model.UserRecord{
			UID:       uid,
			Email:     email,
			CreatedAt: now,
		})
		if merr != nil {
			return merr
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, string(doc), 0)
			return nil
		})
		return err
	}

	var err error
	for i := 0; i < maxEnsureRootRetries; i++ {
		err = s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			// Another session committed between our read and write. The
			// record now exists, which is exactly the desired state.
			continue
		}
		return fmt.Errorf("ensuring root record for %q: %w", uid, err)
	}

	// The transaction kept failing; check whether someone else created it.
	if _, rerr := s.client.Get(ctx, key).Result(); rerr == nil {
		return nil
	}
	return fmt.Errorf("ensuring root record for %q: %w", uid, err)
}

// GetRoot reads the per-user root record. The second return value is false
// when no record exists.
func (s *Store) GetRoot(ctx context.Context, uid string) (*model.UserRecord, bool, error) {
	if uid == "" {
		return nil, false, ErrBadPath
	}

	val, err := s.client.Get(ctx, s.rootKey(uid)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading root record for %q: %w", uid, err)
	}

	var rec model.UserRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, false, fmt.Errorf("decoding root record for %q: %w", uid, err)
	}
	return &rec, true, nil
}
