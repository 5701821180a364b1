// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package util provides label normalization used to derive storage keys
// for vocabulary entries and articles.
package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// wordRegex matches characters not allowed in a normalized word
	// (everything outside lowercase letters, digits, spaces and hyphens).
	wordRegex = regexp.MustCompile(`[^a-z0-9 -]+`)
	// whitespaceRuns matches runs of whitespace
	whitespaceRuns = regexp.MustCompile(`\s+`)
	// multipleHyphens matches multiple consecutive hyphens
	multipleHyphens = regexp.MustCompile(`-{2,}`)
)

// NormalizeWord converts a human-entered word or phrase to its canonical id.
// It trims surrounding whitespace, removes accents, lowercases, and strips
// every character outside [a-z0-9 -]. Internal spacing is kept as-is, so a
// multi-word phrase normalizes to a spaced id. Idempotent.
func NormalizeWord(s string) string {
	// Decompose accented characters and drop the combining marks
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)

	result = strings.ToLower(strings.TrimSpace(result))
	result = wordRegex.ReplaceAllString(result, "")

	return strings.TrimSpace(result)
}

// Slugify converts a title to a URL-friendly slug: NormalizeWord plus
// collapsing every whitespace run to a single hyphen. Idempotent.
func Slugify(s string) string {
	result := NormalizeWord(s)

	// Collapse whitespace runs to single hyphens
	result = whitespaceRuns.ReplaceAllString(result, "-")

	// Replace multiple hyphens with single hyphen
	result = multipleHyphens.ReplaceAllString(result, "-")

	// Trim hyphens from start and end
	result = strings.Trim(result, "-")

	return result
}

// IsValidSlug checks if a string is a valid slug format.
func IsValidSlug(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-') {
			return false
		}
	}

	if s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}

	return !strings.Contains(s, "--")
}
