package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "BEDROCK_MODEL_ID", "SUPPORTED_LANGUAGES", "FAQ_THRESHOLD", "HISTORY_LIMIT", "LLM_TEMPERATURE", "LLM_MAX_TOKENS", "STORE_BACKEND"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.BedrockModelID != "" {
		t.Fatalf("expected default bedrock model empty, got %s", cfg.BedrockModelID)
	}
	if cfg.StoreBackend != "memory" {
		t.Fatalf("expected memory store backend, got %s", cfg.StoreBackend)
	}
	if len(cfg.SupportedLanguages) != 2 || cfg.SupportedLanguages[0] != "en" || cfg.SupportedLanguages[1] != "ar" {
		t.Fatalf("unexpected supported languages %v", cfg.SupportedLanguages)
	}
	if cfg.FAQThreshold != 75 {
		t.Fatalf("expected faq threshold 75, got %d", cfg.FAQThreshold)
	}
	if cfg.HistoryLimit != 10 {
		t.Fatalf("expected history limit 10, got %d", cfg.HistoryLimit)
	}
	if cfg.LLMTemperature != 0.5 || cfg.LLMMaxTokens != 450 {
		t.Fatalf("unexpected sampling defaults %v/%d", cfg.LLMTemperature, cfg.LLMMaxTokens)
	}
	if cfg.LLMTimeout != 20*time.Second {
		t.Fatalf("expected default llm timeout, got %s", cfg.LLMTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("STORE_BACKEND", " Postgres ")
	t.Setenv("SUPPORTED_LANGUAGES", "EN, ar, ,fr")
	t.Setenv("FAQ_THRESHOLD", "80")
	t.Setenv("HISTORY_LIMIT", "4")
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("DEDUP_TTL", "1h")
	t.Setenv("USE_MEMORY_QUEUE", "false")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected env override, got %s", cfg.Env)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.StoreBackend != "postgres" {
		t.Fatalf("expected normalized backend, got %q", cfg.StoreBackend)
	}
	if got := cfg.SupportedLanguages; len(got) != 3 || got[0] != "en" || got[2] != "fr" {
		t.Fatalf("unexpected languages %v", got)
	}
	if cfg.FAQThreshold != 80 || cfg.HistoryLimit != 4 {
		t.Fatalf("unexpected thresholds %d/%d", cfg.FAQThreshold, cfg.HistoryLimit)
	}
	if cfg.LLMTemperature != 0.2 {
		t.Fatalf("expected temperature override, got %v", cfg.LLMTemperature)
	}
	if cfg.LLMTimeout != 5*time.Second || cfg.DedupTTL != time.Hour {
		t.Fatalf("unexpected durations %s/%s", cfg.LLMTimeout, cfg.DedupTTL)
	}
	if cfg.UseMemoryQueue {
		t.Fatalf("expected memory queue disabled")
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("FAQ_THRESHOLD", "high")
	t.Setenv("LLM_TIMEOUT", "soon")
	cfg := Load()
	if cfg.FAQThreshold != 75 {
		t.Fatalf("expected fallback threshold, got %d", cfg.FAQThreshold)
	}
	if cfg.LLMTimeout != 20*time.Second {
		t.Fatalf("expected fallback timeout, got %s", cfg.LLMTimeout)
	}
}
