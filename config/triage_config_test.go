package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("TRIAGE_TIMEZONE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GovernorInterval != 2100*time.Millisecond {
		t.Errorf("unexpected interval %v", cfg.GovernorInterval)
	}
	if cfg.LLMModel != "llama-3.1-8b-instant" || cfg.LLMMaxTokens != 300 {
		t.Errorf("unexpected completion defaults %q %d", cfg.LLMModel, cfg.LLMMaxTokens)
	}
	if cfg.Location != time.UTC {
		t.Errorf("expected UTC, got %v", cfg.Location)
	}
	if cfg.SyncLookbackDays != 7 || cfg.SyncMaxResults != 50 || cfg.ProcessorBatchSize != 50 {
		t.Errorf("unexpected worker defaults %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LLM_API_KEY", "alias-key")
	t.Setenv("GOVERNOR_INTERVAL_MS", "500")
	t.Setenv("STREAM_ENABLED", "true")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLMAPIKey != "alias-key" {
		t.Errorf("expected alias key, got %q", cfg.LLMAPIKey)
	}
	if cfg.GovernorInterval != 500*time.Millisecond || !cfg.StreamEnabled {
		t.Errorf("unexpected overrides %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins %v", cfg.AllowedOrigins)
	}
}

func TestLoadRejectsBadTimezone(t *testing.T) {
	t.Setenv("TRIAGE_TIMEZONE", "Mars/Olympus")
	if _, err := Load(); err == nil {
		t.Error("expected error for invalid timezone")
	}
}

func TestRequireStorage(t *testing.T) {
	cfg := &Config{}
	if err := cfg.RequireStorage(); err == nil {
		t.Error("expected error without DATABASE_URL")
	}
	cfg.DatabaseURL, cfg.RedisURL = "postgres://x", "redis://y"
	if err := cfg.RequireStorage(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
