// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package fetch downloads a web page and extracts its readable article
// content, so a learner can save a page as reading material.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/olegiv/wordbook-go/internal/model"
	"github.com/olegiv/wordbook-go/internal/util"
)

const (
	httpTimeout = 30 * time.Second

	// maxBodySize caps the downloaded HTML to keep untrusted pages from
	// exhausting memory.
	maxBodySize = 10 * 1024 * 1024
)

// Fetcher downloads pages and turns them into articles.
type Fetcher struct {
	httpClient *http.Client
}

// NewFetcher creates a Fetcher with a default HTTP client.
func NewFetcher() *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{Timeout: httpTimeout},
	}
}

// Article fetches rawURL and extracts its main text content. The returned
// article carries the page title and has no timestamps set; the caller
// stamps it on save.
func (f *Fetcher) Article(ctx context.Context, rawURL string) (*model.Article, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", parsedURL.Scheme)
	}

	body, err := f.download(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	return f.Extract(body, parsedURL)
}

// Extract runs readability extraction over already-fetched HTML. Split out
// from Article so it can work on local content too.
func (f *Fetcher) Extract(html []byte, pageURL *url.URL) (*model.Article, error) {
	article, err := readability.FromReader(bytes.NewReader(html), pageURL)
	if err != nil {
		return nil, fmt.Errorf("extract article: %w", err)
	}

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = pageURL.Host
	}
	content := strings.TrimSpace(article.TextContent)
	if content == "" {
		return nil, fmt.Errorf("no readable content at %s", pageURL)
	}

	return &model.Article{
		ID:      util.Slugify(title),
		Title:   title,
		Content: content,
	}, nil
}

func (f *Fetcher) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	// Some sites refuse requests without a browser-like user agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch url: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch url: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) >= int64(maxBodySize) {
		return nil, fmt.Errorf("page exceeds %d byte limit", maxBodySize)
	}
	return body, nil
}
