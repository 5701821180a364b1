// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package analysis calls a chat-completion API to explain and translate a
// word or phrase for the learner. One stateless request per call, no retry
// or backoff; the caller decides what to do with a failure.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const httpTimeout = 60 * time.Second

// Analysis is the model's verdict on one piece of text.
type Analysis struct {
	Explanation   string   `json:"explanation"`
	Translation   string   `json:"translation"`
	SuggestedTags []string `json:"suggestedTags,omitempty"`
}

// Options configures the analysis client.
type Options struct {
	// APIKey authenticates against the completion API.
	APIKey string

	// Model is the completion model name.
	Model string

	// TargetLang is the learner's native language for translations.
	TargetLang string

	// RequestsPerSecond caps the outbound call rate.
	RequestsPerSecond float64

	// BaseURL overrides the API endpoint (tests).
	BaseURL string
}

// Client is a rate-limited chat-completion API client.
type Client struct {
	apiKey     string
	model      string
	targetLang string
	baseURL    string
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewClient creates an analysis client.
func NewClient(opts Options) *Client {
	if opts.Model == "" {
		opts.Model = "gpt-4o-mini"
	}
	if opts.TargetLang == "" {
		opts.TargetLang = "Chinese"
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 1
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openai.com/v1"
	}
	return &Client{
		apiKey:     opts.APIKey,
		model:      opts.Model,
		targetLang: opts.TargetLang,
		baseURL:    opts.BaseURL,
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		httpClient: &http.Client{Timeout: httpTimeout},
	}
}

// Analyze asks the model to explain the text and translate it into the
// target language. The model is instructed to answer with a JSON object so
// the response parses predictably.
func (c *Client) Analyze(ctx context.Context, text string) (*Analysis, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("analysis: empty text")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`You are a language learning assistant. Analyze the following English text for a %s speaker.
The text is: %q

Answer with a valid JSON object with three keys:
1. "explanation": a concise explanation of the word or phrase in English, including its part of speech and a simple example sentence.
2. "translation": the most common and accurate %s translation.
3. "suggestedTags": up to three short category tags, hierarchical levels separated by "#" (e.g. "topic#travel").

Do not include any text outside of the JSON object.`, c.targetLang, text, c.targetLang)

	body := map[string]any{
		"model":           c.model,
		"messages":        []map[string]string{{"role": "user", "content": prompt}},
		"temperature":     0.3,
		"response_format": map[string]string{"type": "json_object"},
	}

	respBody, err := c.doJSONRequest(ctx, c.baseURL+"/chat/completions", body)
	if err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("analysis decode: %w", err)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("analysis: no choices returned")
	}

	var out Analysis
	if err := json.Unmarshal([]byte(result.Choices[0].Message.Content), &out); err != nil {
		return nil, fmt.Errorf("analysis content decode: %w", err)
	}
	return &out, nil
}

// doJSONRequest performs a JSON HTTP request with Bearer auth.
func (c *Client) doJSONRequest(ctx context.Context, url string, body any) ([]byte, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
