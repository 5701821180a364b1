// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package transfer provides import/export functionality for wordbook records.
package transfer

import (
	"time"

	"github.com/olegiv/wordbook-go/internal/model"
)

// ExportVersion is the current version of the export format.
const ExportVersion = "1.0"

// ExportData represents the complete export structure.
type ExportData struct {
	Version    string                  `json:"version"`
	ExportedAt time.Time               `json:"exported_at"`
	Owner      string                  `json:"owner"`
	Vocabulary []model.VocabularyEntry `json:"vocabulary,omitempty"`
	Articles   []model.Article         `json:"articles,omitempty"`
}

// ImportOptions controls how records are merged into the repositories.
type ImportOptions struct {
	// Overwrite replaces existing records with the imported version.
	// When false an imported record whose id already exists is skipped.
	Overwrite bool
}

// ImportResult summarizes an import run.
type ImportResult struct {
	VocabularyImported int
	VocabularySkipped  int
	ArticlesImported   int
	ArticlesSkipped    int
	Errors             []ImportError
}

// ImportError describes one record that could not be imported.
type ImportError struct {
	Kind    model.Kind
	ID      string
	Message string
}
