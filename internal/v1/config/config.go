// Package config validates and exposes the process environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds validated environment configuration.
type Config struct {
	// Required variables
	Port string

	// Optional variables with defaults
	GoEnv          string
	LogLevel       string
	AllowedOrigins string

	// Asset catalog
	PromptCatalogPath string
	SoundCatalogPath  string
	CatalogCacheTTL   time.Duration

	// Disconnection controller timing
	ReconnectGraceSeconds int
	ReconnectVoteSeconds  int

	// Rate limiting
	RateLimitWsEvents string

	// Tracing (optional, disabled unless set)
	OTLPEndpoint string
}

// ValidateEnv validates all required environment variables and returns a
// Config. Returns an error collecting every violation found, not just the
// first, so a misconfigured deploy can be fixed in one pass.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errors []string

	// Required: PORT (valid port number)
	cfg.Port = getEnvOrDefault("PORT", "8080")
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
	}

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.AllowedOrigins = getEnvOrDefault("ALLOWED_ORIGINS", "")

	cfg.PromptCatalogPath = getEnvOrDefault("PROMPT_CATALOG_PATH", "data/prompts.ndjson")
	cfg.SoundCatalogPath = getEnvOrDefault("SOUND_CATALOG_PATH", "data/sounds.ndjson")

	ttlRaw := getEnvOrDefault("CATALOG_CACHE_TTL", "5m")
	ttl, err := time.ParseDuration(ttlRaw)
	if err != nil {
		errors = append(errors, fmt.Sprintf("CATALOG_CACHE_TTL must be a valid duration (got '%s')", ttlRaw))
	}
	cfg.CatalogCacheTTL = ttl

	cfg.ReconnectGraceSeconds = getEnvIntOrDefault("RECONNECT_GRACE_SECONDS", 30, &errors)
	cfg.ReconnectVoteSeconds = getEnvIntOrDefault("RECONNECT_VOTE_SECONDS", 20, &errors)

	cfg.RateLimitWsEvents = getEnvOrDefault("RATE_LIMIT_WS_EVENTS", "20-S")

	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	logValidatedConfig(cfg)
	return cfg, nil
}

func getEnvIntOrDefault(key string, defaultValue int, errors *[]string) int {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		*errors = append(*errors, fmt.Sprintf("%s must be a positive integer (got '%s')", key, raw))
		return defaultValue
	}
	return v
}

func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated",
		"port", cfg.Port,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"prompt_catalog_path", cfg.PromptCatalogPath,
		"sound_catalog_path", cfg.SoundCatalogPath,
		"catalog_cache_ttl", cfg.CatalogCacheTTL.String(),
		"reconnect_grace_seconds", cfg.ReconnectGraceSeconds,
		"reconnect_vote_seconds", cfg.ReconnectVoteSeconds,
		"rate_limit_ws_events", cfg.RateLimitWsEvents,
		"otlp_endpoint_set", cfg.OTLPEndpoint != "",
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}
