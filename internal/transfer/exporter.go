// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/olegiv/wordbook-go/internal/model"
	"github.com/olegiv/wordbook-go/internal/repo"
)

// Exporter writes the current record collections as a versioned JSON
// document.
type Exporter struct {
	words    *repo.Repository[model.VocabularyEntry]
	articles *repo.Repository[model.Article]
	logger   *slog.Logger
}

// NewExporter creates an exporter over the given repositories.
func NewExporter(words *repo.Repository[model.VocabularyEntry], articles *repo.Repository[model.Article], logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{words: words, articles: articles, logger: logger}
}

// Export collects both collections into an ExportData document.
func (e *Exporter) Export(ctx context.Context) (*ExportData, error) {
	data := &ExportData{
		Version:    ExportVersion,
		ExportedAt: time.Now().UTC(),
		Owner:      e.words.Owner().String(),
	}

	entries, err := e.words.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("exporting vocabulary: %w", err)
	}
	data.Vocabulary = entries

	items, err := e.articles.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("exporting articles: %w", err)
	}
	data.Articles = items

	e.logger.Info("export collected",
		"vocabulary", len(data.Vocabulary),
		"articles", len(data.Articles))
	return data, nil
}

// ExportToWriter exports both collections as indented JSON.
func (e *Exporter) ExportToWriter(ctx context.Context, w io.Writer) error {
	data, err := e.Export(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("encoding export: %w", err)
	}
	return nil
}

// ExportToFile exports both collections to a JSON file.
func (e *Exporter) ExportToFile(ctx context.Context, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := e.ExportToWriter(ctx, f); err != nil {
		return err
	}
	return f.Close()
}
