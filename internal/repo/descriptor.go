// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package repo implements the Entry Repository: unified CRUD and live
// subscription over one record collection, delegating to the Local Store
// while the session is anonymous and to the remote document store once a
// user is signed in.
package repo

import (
	"strings"

	"github.com/olegiv/wordbook-go/internal/model"
	"github.com/olegiv/wordbook-go/internal/util"
)

// Descriptor ties an entry type to its collection: how its id derives from
// the human label, which timestamps it carries, and how a snapshot orders.
type Descriptor[T any] struct {
	// Kind names the collection.
	Kind model.Kind

	// Normalize maps a human label to the canonical id (empty = invalid).
	Normalize func(label string) string

	// ID and Label read the entry's storage key and human label.
	ID    func(T) string
	Label func(T) string

	// Prepare returns a copy carrying the given id and a tidied label.
	Prepare func(e T, id string) T

	// Created reads the creation stamp; WithCreated returns a copy with it set.
	Created     func(T) model.Millis
	WithCreated func(T, model.Millis) T

	// Touch returns a copy stamped for a write (bumps updatedAt where the
	// type has one).
	Touch func(T, model.Millis) T

	// Activity is the most-recent-activity sort key.
	Activity func(T) model.Millis
}

// Vocabulary describes the vocabulary entry collection. Ids are normalized
// word forms with internal spacing kept; snapshots order by addedAt.
func Vocabulary() Descriptor[model.VocabularyEntry] {
	return Descriptor[model.VocabularyEntry]{
		Kind:      model.KindVocabulary,
		Normalize: util.NormalizeWord,
		ID:        func(e model.VocabularyEntry) string { return e.ID },
		Label:     func(e model.VocabularyEntry) string { return e.Word },
		Prepare: func(e model.VocabularyEntry, id string) model.VocabularyEntry {
			e.ID = id
			e.Word = strings.TrimSpace(e.Word)
			return e
		},
		Created:     func(e model.VocabularyEntry) model.Millis { return e.AddedAt },
		WithCreated: func(e model.VocabularyEntry, t model.Millis) model.VocabularyEntry { e.AddedAt = t; return e },
		Touch:       func(e model.VocabularyEntry, _ model.Millis) model.VocabularyEntry { return e },
		Activity:    func(e model.VocabularyEntry) model.Millis { return e.AddedAt },
	}
}

// Articles describes the saved article collection. Ids are title slugs;
// snapshots order by updatedAt.
func Articles() Descriptor[model.Article] {
	return Descriptor[model.Article]{
		Kind:      model.KindArticles,
		Normalize: util.Slugify,
		ID:        func(a model.Article) string { return a.ID },
		Label:     func(a model.Article) string { return a.Title },
		Prepare: func(a model.Article, id string) model.Article {
			a.ID = id
			a.Title = strings.TrimSpace(a.Title)
			return a
		},
		Created:     func(a model.Article) model.Millis { return a.CreatedAt },
		WithCreated: func(a model.Article, t model.Millis) model.Article { a.CreatedAt = t; return a },
		Touch:       func(a model.Article, t model.Millis) model.Article { a.UpdatedAt = t; return a },
		Activity:    func(a model.Article) model.Millis { return a.UpdatedAt.Or(a.CreatedAt) },
	}
}
