// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package remote implements the per-user remote document store on Redis:
// path-scoped collections with live change subscriptions, conditional root
// record creation, and batched multi-document writes.
package remote

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/olegiv/wordbook-go/internal/model"
)

// Options configures the remote store connection.
type Options struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379/0)
	URL string

	// Prefix is prepended to all keys (e.g., "wordbook:")
	Prefix string

	// PoolSize is the maximum number of connections (0 = use default)
	PoolSize int

	// ConnectTimeout is the timeout for establishing a connection
	ConnectTimeout time.Duration

	// ReadTimeout is the timeout for read operations
	ReadTimeout time.Duration

	// WriteTimeout is the timeout for write operations
	WriteTimeout time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Prefix:         "wordbook:",
		PoolSize:       10,
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    3 * time.Second,
		WriteTimeout:   3 * time.Second,
	}
}

// Store is a Redis-backed document store scoped by user id and collection kind.
type Store struct {
	client *redis.Client
	prefix string
}

// NewStore creates a remote store with the given options and verifies the
// connection.
func NewStore(opts Options) (*Store, error) {
	if opts.URL == "" {
		return nil, errors.New("redis URL is required")
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, err
	}

	if opts.PoolSize > 0 {
		redisOpts.PoolSize = opts.PoolSize
	}
	if opts.ConnectTimeout > 0 {
		redisOpts.DialTimeout = opts.ConnectTimeout
	}
	if opts.ReadTimeout > 0 {
		redisOpts.ReadTimeout = opts.ReadTimeout
	}
	if opts.WriteTimeout > 0 {
		redisOpts.WriteTimeout = opts.WriteTimeout
	}

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Store{
		client: client,
		prefix: opts.Prefix,
	}, nil
}

// NewStoreFromURL creates a remote store from just a URL with default options.
func NewStoreFromURL(url, prefix string) (*Store, error) {
	opts := DefaultOptions()
	opts.URL = url
	if prefix != "" {
		opts.Prefix = prefix
	}
	return NewStore(opts)
}

// ServerTime returns the backend's current time. Migrated documents and
// authenticated-mode creation stamps use this rather than the local clock.
func (s *Store) ServerTime(ctx context.Context) (model.Millis, error) {
	t, err := s.client.Time(ctx).Result()
	if err != nil {
		return 0, err
	}
	return model.FromTime(t), nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}

// rootKey returns the key of a user's root record.
func (s *Store) rootKey(uid string) string {
	return s.prefix + "users:" + uid
}

// collectionKey returns the hash key of one user collection.
func (s *Store) collectionKey(uid string, kind model.Kind) string {
	return s.rootKey(uid) + ":" + string(kind)
}

// channel returns the pub/sub channel carrying change notifications for one
// user collection.
func (s *Store) channel(uid string, kind model.Kind) string {
	return s.collectionKey(uid, kind) + ":changes"
}
