package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DBPath != "./data/wordbook.db" {
		t.Errorf("DBPath = %q, want default", cfg.DBPath)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.UseRemote() {
		t.Error("UseRemote should be false without WORDBOOK_REDIS_URL")
	}
	if cfg.AnalysisEnabled() {
		t.Error("AnalysisEnabled should be false without an API key")
	}
	if !cfg.IsDevelopment() {
		t.Error("default env should be development")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WORDBOOK_DB_PATH", "/tmp/test.db")
	t.Setenv("WORDBOOK_REDIS_URL", "redis://localhost:6379/2")
	t.Setenv("WORDBOOK_REDIS_PREFIX", "test:")
	t.Setenv("WORDBOOK_OPENAI_API_KEY", "sk-test")
	t.Setenv("WORDBOOK_SNAPSHOT_DEBOUNCE_MS", "250")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if !cfg.UseRemote() {
		t.Error("UseRemote should be true")
	}
	if cfg.RedisPrefix != "test:" {
		t.Errorf("RedisPrefix = %q", cfg.RedisPrefix)
	}
	if !cfg.AnalysisEnabled() {
		t.Error("AnalysisEnabled should be true")
	}
	if cfg.SnapshotDebounce().Milliseconds() != 250 {
		t.Errorf("SnapshotDebounce = %v", cfg.SnapshotDebounce())
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("WORDBOOK_SNAPSHOT_DEBOUNCE_MS", "-1")
	if _, err := Load(); err == nil {
		t.Error("negative debounce should be rejected")
	}

	t.Setenv("WORDBOOK_SNAPSHOT_DEBOUNCE_MS", "100")
	t.Setenv("WORDBOOK_ANALYSIS_RPS", "0")
	if _, err := Load(); err == nil {
		t.Error("zero analysis rate should be rejected")
	}
}
