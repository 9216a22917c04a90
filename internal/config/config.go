package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the topic intent service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	LogLevel         string

	AllowAnyOrigin bool

	DatabaseURL string

	StaleAfter       time.Duration
	CacheTTL         time.Duration
	ActiveTopicLimit int

	SocialProviderMode string
	SocialHTTPURL      string
	SocialTimeout      time.Duration
	SocialPulseWindow  time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:           envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:   envOrDefault("APP_METRICS_NAMESPACE", "aria"),
		LogLevel:           envOrDefault("APP_LOG_LEVEL", "info"),
		AllowAnyOrigin:     false,
		DatabaseURL:        stringsTrimSpace("DATABASE_URL"),
		SocialProviderMode: envOrDefault("SOCIAL_PROVIDER_MODE", "auto"),
		SocialHTTPURL:      stringsTrimSpace("SOCIAL_HTTP_URL"),
		ShutdownTimeout:    15 * time.Second,
		StaleAfter:         72 * time.Hour,
		CacheTTL:           30 * time.Second,
		ActiveTopicLimit:   10,
		SocialTimeout:      400 * time.Millisecond,
		SocialPulseWindow:  7 * 24 * time.Hour,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.StaleAfter, err = durationFromEnv("INTENT_STALE_AFTER", cfg.StaleAfter)
	if err != nil {
		return Config{}, err
	}
	cfg.CacheTTL, err = durationFromEnv("INTENT_CACHE_TTL", cfg.CacheTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.ActiveTopicLimit, err = intFromEnv("INTENT_ACTIVE_TOPIC_LIMIT", cfg.ActiveTopicLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.SocialTimeout, err = durationFromEnv("SOCIAL_TIMEOUT", cfg.SocialTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SocialPulseWindow, err = durationFromEnv("SOCIAL_PULSE_WINDOW", cfg.SocialPulseWindow)
	if err != nil {
		return Config{}, err
	}

	if cfg.StaleAfter < time.Hour {
		return Config{}, fmt.Errorf("INTENT_STALE_AFTER must be at least 1h")
	}
	if cfg.CacheTTL < 0 {
		return Config{}, fmt.Errorf("INTENT_CACHE_TTL must be >= 0")
	}
	if cfg.ActiveTopicLimit <= 0 {
		return Config{}, fmt.Errorf("INTENT_ACTIVE_TOPIC_LIMIT must be positive")
	}
	if cfg.SocialTimeout <= 0 {
		return Config{}, fmt.Errorf("SOCIAL_TIMEOUT must be positive")
	}
	if cfg.SocialPulseWindow <= 0 {
		return Config{}, fmt.Errorf("SOCIAL_PULSE_WINDOW must be positive")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.SocialProviderMode)) {
	case "auto", "http", "mock", "off":
	default:
		return Config{}, fmt.Errorf("SOCIAL_PROVIDER_MODE must be auto, http, mock or off")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return trimSpace(os.Getenv(key))
}

func trimSpace(v string) string {
	for len(v) > 0 && (v[0] == ' ' || v[0] == '\n' || v[0] == '\t' || v[0] == '\r') {
		v = v[1:]
	}
	for len(v) > 0 {
		c := v[len(v)-1]
		if c == ' ' || c == '\n' || c == '\t' || c == '\r' {
			v = v[:len(v)-1]
			continue
		}
		break
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
