// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath   string `env:"WORDBOOK_DB_PATH" envDefault:"./data/wordbook.db"`
	Env      string `env:"WORDBOOK_ENV" envDefault:"development"`
	LogLevel string `env:"WORDBOOK_LOG_LEVEL" envDefault:"info"`

	// Remote store configuration. RedisURL empty means the app runs in
	// anonymous-only mode: sign-in and migration are disabled.
	RedisURL    string `env:"WORDBOOK_REDIS_URL"`
	RedisPrefix string `env:"WORDBOOK_REDIS_PREFIX" envDefault:"wordbook:"`

	// SnapshotDebounceMS is the coalescing window for anonymous-mode
	// full-snapshot writes to the Local Store.
	SnapshotDebounceMS int `env:"WORDBOOK_SNAPSHOT_DEBOUNCE_MS" envDefault:"500"`

	// Text-analysis configuration
	OpenAIKey      string  `env:"WORDBOOK_OPENAI_API_KEY"`
	AnalysisModel  string  `env:"WORDBOOK_ANALYSIS_MODEL" envDefault:"gpt-4o-mini"`
	AnalysisRPS    float64 `env:"WORDBOOK_ANALYSIS_RPS" envDefault:"1"`
	AnalysisTarget string  `env:"WORDBOOK_ANALYSIS_TARGET_LANG" envDefault:"Chinese"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// UseRemote returns true if a remote document store is configured.
func (c Config) UseRemote() bool {
	return c.RedisURL != ""
}

// AnalysisEnabled returns true if the text-analysis client is configured.
func (c Config) AnalysisEnabled() bool {
	return c.OpenAIKey != ""
}

// SnapshotDebounce returns the snapshot debounce window as a duration.
func (c Config) SnapshotDebounce() time.Duration {
	return time.Duration(c.SnapshotDebounceMS) * time.Millisecond
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.SnapshotDebounceMS < 0 {
		return nil, fmt.Errorf("WORDBOOK_SNAPSHOT_DEBOUNCE_MS must not be negative, got %d", cfg.SnapshotDebounceMS)
	}
	if cfg.AnalysisRPS <= 0 {
		return nil, fmt.Errorf("WORDBOOK_ANALYSIS_RPS must be positive, got %v", cfg.AnalysisRPS)
	}

	return cfg, nil
}
