package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// setupTestEnv clears the config-related env vars and returns a restore func.
func setupTestEnv(t *testing.T) func() {
	keys := []string{
		"PORT", "GO_ENV", "LOG_LEVEL", "ALLOWED_ORIGINS",
		"PROMPT_CATALOG_PATH", "SOUND_CATALOG_PATH", "CATALOG_CACHE_TTL",
		"RECONNECT_GRACE_SECONDS", "RECONNECT_VOTE_SECONDS",
		"RATE_LIMIT_WS_EVENTS", "OTEL_EXPORTER_OTLP_ENDPOINT",
	}
	orig := make(map[string]string, len(keys))
	for _, k := range keys {
		orig[k] = os.Getenv(k)
		os.Unsetenv(k)
	}
	return func() {
		for k, v := range orig {
			if v != "" {
				os.Setenv(k, v)
			} else {
				os.Unsetenv(k)
			}
		}
	}
}

func TestValidateEnv_Defaults(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	cfg, err := ValidateEnv()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("expected PORT to default to '8080', got '%s'", cfg.Port)
	}
	if cfg.GoEnv != "production" {
		t.Errorf("expected GO_ENV to default to 'production', got '%s'", cfg.GoEnv)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected LOG_LEVEL to default to 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.CatalogCacheTTL != 5*time.Minute {
		t.Errorf("expected CATALOG_CACHE_TTL to default to 5m, got %s", cfg.CatalogCacheTTL)
	}
	if cfg.ReconnectGraceSeconds != 30 {
		t.Errorf("expected RECONNECT_GRACE_SECONDS to default to 30, got %d", cfg.ReconnectGraceSeconds)
	}
	if cfg.ReconnectVoteSeconds != 20 {
		t.Errorf("expected RECONNECT_VOTE_SECONDS to default to 20, got %d", cfg.ReconnectVoteSeconds)
	}
	if cfg.RateLimitWsEvents != "20-S" {
		t.Errorf("expected RATE_LIMIT_WS_EVENTS to default to '20-S', got '%s'", cfg.RateLimitWsEvents)
	}
}

func TestValidateEnv_InvalidPort(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("PORT", "99999")

	_, err := ValidateEnv()
	if err == nil {
		t.Fatal("expected error for invalid PORT, got nil")
	}
	if !strings.Contains(err.Error(), "PORT must be a valid port number") {
		t.Errorf("expected error message about invalid PORT, got: %v", err)
	}
}

func TestValidateEnv_InvalidCatalogCacheTTL(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("CATALOG_CACHE_TTL", "not-a-duration")

	_, err := ValidateEnv()
	if err == nil {
		t.Fatal("expected error for invalid CATALOG_CACHE_TTL, got nil")
	}
	if !strings.Contains(err.Error(), "CATALOG_CACHE_TTL must be a valid duration") {
		t.Errorf("expected error message about CATALOG_CACHE_TTL, got: %v", err)
	}
}

func TestValidateEnv_InvalidReconnectSeconds(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("RECONNECT_GRACE_SECONDS", "-5")

	_, err := ValidateEnv()
	if err == nil {
		t.Fatal("expected error for invalid RECONNECT_GRACE_SECONDS, got nil")
	}
	if !strings.Contains(err.Error(), "RECONNECT_GRACE_SECONDS must be a positive integer") {
		t.Errorf("expected error message about RECONNECT_GRACE_SECONDS, got: %v", err)
	}
}

func TestValidateEnv_CollectsAllErrors(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("PORT", "0")
	os.Setenv("RECONNECT_GRACE_SECONDS", "0")
	os.Setenv("RECONNECT_VOTE_SECONDS", "0")

	_, err := ValidateEnv()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, want := range []string{"PORT must be", "RECONNECT_GRACE_SECONDS must be", "RECONNECT_VOTE_SECONDS must be"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %q, got: %v", want, err)
		}
	}
}

func TestValidateEnv_OverridesApplied(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("PORT", "9090")
	os.Setenv("GO_ENV", "development")
	os.Setenv("PROMPT_CATALOG_PATH", "/tmp/prompts.ndjson")
	os.Setenv("SOUND_CATALOG_PATH", "/tmp/sounds.ndjson")
	os.Setenv("ALLOWED_ORIGINS", "https://example.com")

	cfg, err := ValidateEnv()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("expected PORT '9090', got '%s'", cfg.Port)
	}
	if cfg.GoEnv != "development" {
		t.Errorf("expected GO_ENV 'development', got '%s'", cfg.GoEnv)
	}
	if cfg.PromptCatalogPath != "/tmp/prompts.ndjson" {
		t.Errorf("expected PROMPT_CATALOG_PATH override, got '%s'", cfg.PromptCatalogPath)
	}
	if cfg.SoundCatalogPath != "/tmp/sounds.ndjson" {
		t.Errorf("expected SOUND_CATALOG_PATH override, got '%s'", cfg.SoundCatalogPath)
	}
	if cfg.AllowedOrigins != "https://example.com" {
		t.Errorf("expected ALLOWED_ORIGINS override, got '%s'", cfg.AllowedOrigins)
	}
}
