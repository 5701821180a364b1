// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the domain records kept by the wordbook: vocabulary
// entries, saved articles, collection kinds, and the per-user root record.
package model

import "strings"

// Kind identifies one of the independent record collections.
type Kind string

const (
	// KindVocabulary is the vocabulary entry collection.
	KindVocabulary Kind = "vocabulary"
	// KindArticles is the saved article collection.
	KindArticles Kind = "articles"
)

// LocalKey returns the Local Store snapshot key for this collection kind,
// namespaced to the anonymous session.
func (k Kind) LocalKey() string {
	return "anonymous:" + string(k)
}

// TagDelimiter separates hierarchy levels inside a tag, e.g. "topic#travel".
// The hierarchy is purely a display convention; storage compares tags as
// plain strings.
const TagDelimiter = "#"

// TagParts splits a tag into its hierarchy levels.
func TagParts(tag string) []string {
	return strings.Split(tag, TagDelimiter)
}

// VocabularyEntry is one saved word or phrase. ID is the normalized form of
// Word and serves as the storage key, unique within one owner's collection.
type VocabularyEntry struct {
	ID          string   `json:"id"`
	Word        string   `json:"word"`
	Context     string   `json:"context"`
	Explanation string   `json:"explanation"`
	Translation string   `json:"translation"`
	AddedAt     Millis   `json:"addedAt"`
	Tags        []string `json:"tags,omitempty"`
}

// HasTag reports whether the entry carries the given tag (exact match).
func (e VocabularyEntry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
