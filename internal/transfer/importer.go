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

	"github.com/olegiv/wordbook-go/internal/model"
	"github.com/olegiv/wordbook-go/internal/repo"
)

// Importer merges an ExportData document into the repositories.
type Importer struct {
	words    *repo.Repository[model.VocabularyEntry]
	articles *repo.Repository[model.Article]
	logger   *slog.Logger
}

// NewImporter creates an importer over the given repositories.
func NewImporter(words *repo.Repository[model.VocabularyEntry], articles *repo.Repository[model.Article], logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{words: words, articles: articles, logger: logger}
}

// Import merges the document's records into the repositories. Records whose
// id already exists are skipped unless opts.Overwrite is set. A record that
// fails to import is reported in the result and does not abort the run.
func (i *Importer) Import(ctx context.Context, data *ExportData, opts ImportOptions) (*ImportResult, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}

	result := &ImportResult{}

	result.VocabularyImported, result.VocabularySkipped = importRecords(
		ctx, i.words, data.Vocabulary, opts,
		func(e model.VocabularyEntry) string { return e.ID },
		model.KindVocabulary, result)

	result.ArticlesImported, result.ArticlesSkipped = importRecords(
		ctx, i.articles, data.Articles, opts,
		func(a model.Article) string { return a.ID },
		model.KindArticles, result)

	i.logger.Info("import finished",
		"vocabulary_imported", result.VocabularyImported,
		"vocabulary_skipped", result.VocabularySkipped,
		"articles_imported", result.ArticlesImported,
		"articles_skipped", result.ArticlesSkipped,
		"errors", len(result.Errors))
	return result, nil
}

// ImportFromReader decodes a JSON export document and imports it.
func (i *Importer) ImportFromReader(ctx context.Context, r io.Reader, opts ImportOptions) (*ImportResult, error) {
	var data ExportData
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return nil, fmt.Errorf("decoding import: %w", err)
	}
	return i.Import(ctx, &data, opts)
}

// ImportFromFile imports a JSON export file.
func (i *Importer) ImportFromFile(ctx context.Context, path string, opts ImportOptions) (*ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening import file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return i.ImportFromReader(ctx, f, opts)
}

// Validate checks that a document can be imported.
func Validate(data *ExportData) error {
	if data == nil {
		return fmt.Errorf("nil import document")
	}
	if data.Version != ExportVersion {
		return fmt.Errorf("unsupported export version %q (want %q)", data.Version, ExportVersion)
	}
	return nil
}

func importRecords[T any](ctx context.Context, r *repo.Repository[T], records []T, opts ImportOptions,
	id func(T) string, kind model.Kind, result *ImportResult) (imported, skipped int) {

	existing := make(map[string]bool)
	if snapshot, err := r.Snapshot(ctx); err == nil {
		for _, rec := range snapshot {
			existing[id(rec)] = true
		}
	}

	for _, rec := range records {
		recID := id(rec)
		if existing[recID] && !opts.Overwrite {
			skipped++
			continue
		}

		// Update inserts when the id is absent and keeps the record's own
		// creation stamp, so exported timestamps survive the round trip.
		if err := r.Update(ctx, rec); err != nil {
			result.Errors = append(result.Errors, ImportError{Kind: kind, ID: recID, Message: err.Error()})
			continue
		}
		existing[recID] = true
		imported++
	}
	return imported, skipped
}
