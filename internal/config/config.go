package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/noah-isme/backend-quote/internal/pricing"
)

// Settings backends.
const (
	BackendStatic   = "static"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	RedisPrefix        string
	SettingsBackend    string
	CORSAllowedOrigins []string
	CurrencyCode       string
	AdminAPIToken      string

	// Pricing holds the defaults used when no settings are persisted.
	Pricing pricing.Settings

	QuoteRateLimitMax    int
	QuoteRateLimitWindow time.Duration
	IdempotencyTTL       time.Duration

	HTTPBodyLimitBytes    int64
	SecurityHeadersEnable bool
	ShutdownTimeout       time.Duration
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	defaults := pricing.DefaultSettings()
	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		RedisPrefix:        valueOrDefault(k.String("REDIS_PREFIX"), "quote:"),
		SettingsBackend:    strings.ToLower(valueOrDefault(k.String("SETTINGS_BACKEND"), BackendStatic)),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CurrencyCode:       strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "ZAR")),
		AdminAPIToken:      strings.TrimSpace(k.String("ADMIN_API_TOKEN")),
		Pricing: pricing.Settings{
			MarginRate:            parseFloat(k.String("PRICING_MARGIN_RATE"), defaults.MarginRate),
			VatRate:               parseFloat(k.String("PRICING_VAT_RATE"), defaults.VatRate),
			DeliveryFeeFlat:       parseFloat(k.String("PRICING_DELIVERY_FEE"), defaults.DeliveryFeeFlat),
			DeliveryFreeThreshold: parseFloat(k.String("PRICING_FREE_DELIVERY_THRESHOLD"), defaults.DeliveryFreeThreshold),
		},
		QuoteRateLimitMax:     parseInt(k.String("QUOTE_RATE_LIMIT_MAX"), 60),
		QuoteRateLimitWindow:  parseDuration(k.String("QUOTE_RATE_LIMIT_WINDOW"), "1m"),
		IdempotencyTTL:        parseDuration(k.String("QUOTE_IDEMPOTENCY_TTL"), "24h"),
		HTTPBodyLimitBytes:    int64(parseInt(k.String("HTTP_BODY_LIMIT_BYTES"), 1<<20)),
		SecurityHeadersEnable: parseBoolDefault(k.String("SECURITY_HEADERS_ENABLE"), true),
		ShutdownTimeout:       parseDuration(k.String("HTTP_SHUTDOWN_TIMEOUT"), "10s"),
	}

	if err := cfg.Pricing.Validate(); err != nil {
		return nil, fmt.Errorf("pricing defaults: %w", err)
	}
	switch cfg.SettingsBackend {
	case BackendStatic:
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("REDIS_URL is required when SETTINGS_BACKEND=redis")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required when SETTINGS_BACKEND=postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported SETTINGS_BACKEND %q", cfg.SettingsBackend)
	}
	if cfg.QuoteRateLimitMax < 0 {
		return nil, errors.New("QUOTE_RATE_LIMIT_MAX must not be negative")
	}
	if cfg.HTTPBodyLimitBytes <= 0 {
		return nil, errors.New("HTTP_BODY_LIMIT_BYTES must be positive")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.AppEnv))
	return env == "production" || env == "prod"
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseFloat(value string, fallback float64) float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return fallback
	}
	return f
}

func parseInt(value string, fallback int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return fallback
	}
	return n
}

func parseBoolDefault(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
