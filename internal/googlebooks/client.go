// Package googlebooks looks up book metadata and covers in the Google Books
// volumes API and maps volumes onto catalog books.
package googlebooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"bookmatch-gateway/internal/catalog"
	"bookmatch-gateway/internal/metrics"
)

const (
	DefaultBaseURL    = "https://www.googleapis.com/books/v1"
	DefaultMaxResults = 5
	maxResultsCap     = 40

	pictureMaxPages = 40
	graphicMaxPages = 80
)

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("googlebooks: lookup temporarily unavailable")

type Config struct {
	BaseURL string
	APIKey  string // optional
	Timeout time.Duration

	// Breaker settings.
	FailureThreshold uint32        // consecutive failures before opening (default 5)
	OpenTimeout      time.Duration // time in open state before half-open (default 30s)

	HTTPClient *http.Client
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Timeout <= 0 {
		c.Timeout = 20 * time.Second
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	return c
}

type Client struct {
	cfg     Config
	breaker *gobreaker.CircuitBreaker[[]catalog.Book]
	logger  *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("googlebooks")

	c := &Client{cfg: cfg, logger: logger}
	c.breaker = gobreaker.NewCircuitBreaker[[]catalog.Book](gobreaker.Settings{
		Name:        "googlebooks",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return c
}

// Search returns up to maxResults books for query. An empty query returns
// an empty slice without a network call. language, if set, restricts
// results by its two-letter prefix ("Spanish" -> "sp").
func (c *Client) Search(ctx context.Context, query string, maxResults int, language string) ([]catalog.Book, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []catalog.Book{}, nil
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	if maxResults > maxResultsCap {
		maxResults = maxResultsCap
	}

	books, err := c.breaker.Execute(func() ([]catalog.Book, error) {
		return c.search(ctx, query, maxResults, language)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.LookupCallsTotal.WithLabelValues("open").Inc()
		return nil, ErrUnavailable
	case err != nil:
		metrics.LookupCallsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.LookupCallsTotal.WithLabelValues("ok").Inc()
	return books, nil
}

func (c *Client) search(ctx context.Context, query string, maxResults int, language string) ([]catalog.Book, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("maxResults", strconv.Itoa(maxResults))
	params.Set("printType", "books")
	if c.cfg.APIKey != "" {
		params.Set("key", c.cfg.APIKey)
	}
	if language != "" {
		lr := strings.ToLower(language)
		if len(lr) > 2 {
			lr = lr[:2]
		}
		params.Set("langRestrict", lr)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/volumes?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("googlebooks: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("googlebooks: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("googlebooks: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out volumesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("googlebooks: decode response: %w", err)
	}

	books := make([]catalog.Book, 0, len(out.Items))
	for _, v := range out.Items {
		books = append(books, v.toBook())
	}
	c.logger.Debug("lookup", zap.String("query", query), zap.Int("results", len(books)))
	return books, nil
}
