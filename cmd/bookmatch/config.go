package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"bookmatch-gateway/internal/handlers"
)

type Config struct {
	Port         string
	CacheBackend string // "memory" or "redis"
	RedisAddr    string
	CachePrefix  string
	CacheTTL     time.Duration

	GeminiEnabled         bool
	GeminiAPIKey          string
	GeminiModel           string
	GeminiAPIVersion      string
	GeminiFallbackVersion string
	GeminiBaseURL         string
	GeminiTimeout         time.Duration

	GoogleBooksAPIKey string

	AllowedOrigins []string
	RatePerMinute  int
}

// loadDotEnv reads .env.local then .env. Variables already set in the
// environment win; a missing file is not an error.
func loadDotEnv() error {
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func LoadConfig() (Config, error) {
	cfg := Config{
		Port:         getenv("PORT", "8080"),
		CacheBackend: getenv("CACHE_BACKEND", "memory"),
		RedisAddr:    getenv("REDIS_ADDR", "127.0.0.1:6379"),
		CachePrefix:  getenv("CACHE_PREFIX", "bookmatch"),

		GeminiAPIKey:          strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:           getenv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiAPIVersion:      getenv("GEMINI_API_VERSION", "v1beta"),
		GeminiFallbackVersion: getenv("GEMINI_FALLBACK_API_VERSION", "v1"),
		GeminiBaseURL:         getenv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),

		GoogleBooksAPIKey: os.Getenv("GOOGLE_BOOKS_API_KEY"),
		AllowedOrigins:    splitList(getenv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
	}

	var err error
	if cfg.CacheTTL, err = getDuration("EXTRACTION_CACHE_TTL", 90*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.GeminiTimeout, err = getDuration("GEMINI_TIMEOUT", 20*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.GeminiEnabled, err = getBool("GEMINI_ENABLED", true); err != nil {
		return Config{}, err
	}
	if cfg.RatePerMinute, err = getInt("RATE_LIMIT_PER_MINUTE", 120); err != nil {
		return Config{}, err
	}

	switch cfg.CacheBackend {
	case "memory", "redis":
	default:
		return Config{}, fmt.Errorf("CACHE_BACKEND must be memory or redis, got %q", cfg.CacheBackend)
	}
	return cfg, nil
}

// Missing lists unset credentials for the config-status endpoint.
func (c Config) Missing() []string {
	missing := []string{}
	if c.GeminiAPIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if c.GoogleBooksAPIKey == "" {
		missing = append(missing, "GOOGLE_BOOKS_API_KEY")
	}
	return missing
}

// Status builds the config-status report. cacheBackend is the backend
// actually serving, which is memory when redis was requested but is down.
func (c Config) Status(cacheBackend string, extractorEnabled bool) handlers.ConfigStatus {
	return handlers.ConfigStatus{
		Missing:         c.Missing(),
		ExternalEnabled: extractorEnabled && c.GeminiAPIKey != "",
		CacheBackend:    cacheBackend,
	}
}

// getenv returns the value of the environment variable key or def if not set.
func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	// Bare numbers are seconds.
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
