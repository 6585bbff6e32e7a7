package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"bookmatch-gateway/internal/cache"
)

const (
	DefaultBaseURL            = "https://generativelanguage.googleapis.com"
	DefaultModel              = "gemini-1.5-flash"
	DefaultAPIVersion         = "v1beta"
	DefaultFallbackAPIVersion = "v1"
)

type Config struct {
	BaseURL string
	// APIKey may be empty; every call then fails fast with KindNoCredentials.
	APIKey string

	DefaultModel       string // used when a request names no model, and after a model 404
	APIVersion         string // tried first
	FallbackAPIVersion string // tried only after a 404 on APIVersion

	Timeout              time.Duration // per HTTP attempt (default: 20s)
	MaxRateLimitAttempts int           // attempts per version on 429 (default: 3)
	RateLimitBackoff     time.Duration // sleep = RateLimitBackoff * attempt (default: 1.5s)

	Cache    cache.ExactCache // nil disables response caching
	CacheTTL time.Duration    // default: 90s

	// Sleep waits between rate-limited attempts. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error

	MaxIdleConnsPerHost int // default: 16

	// Custom HTTP client (for testing or special configs)
	HTTPClient *http.Client
}

// Validate checks the fields WithDefaults cannot repair.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("BaseURL %q must be an http(s) URL", c.BaseURL)
	}
	if c.APIVersion == "" {
		return errors.New("APIVersion is required")
	}
	return nil
}

// WithDefaults returns a copy of Config with defaults applied.
func (c *Config) WithDefaults() Config {
	cfg := *c

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)

	if cfg.DefaultModel == "" {
		cfg.DefaultModel = DefaultModel
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxRateLimitAttempts <= 0 {
		cfg.MaxRateLimitAttempts = 3
	}
	if cfg.RateLimitBackoff <= 0 {
		cfg.RateLimitBackoff = 1500 * time.Millisecond
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 90 * time.Second
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	if cfg.MaxIdleConnsPerHost <= 0 {
		cfg.MaxIdleConnsPerHost = 16
	}

	return cfg
}

// versions lists API versions in the order they are tried.
func (c *Config) versions() []string {
	out := []string{c.APIVersion}
	if c.FallbackAPIVersion != "" && c.FallbackAPIVersion != c.APIVersion {
		out = append(out, c.FallbackAPIVersion)
	}
	return out
}

type client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client for the text-understanding service.
func NewClient(cfg Config, logger *zap.Logger) (Client, error) {
	cfg = cfg.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: defaultTransport(cfg),
		}
	}

	return &client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.Named("llmclient"),
	}, nil
}

func defaultTransport(cfg Config) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConnsPerHost * 2,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// Close releases resources held by the client.
func (c *client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
