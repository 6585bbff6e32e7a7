package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const maxResponseSize = 4 * 1024 * 1024

// doWithRetry makes up to MaxRateLimitAttempts POSTs for one (version, model)
// pair. Only 429 is retried, sleeping RateLimitBackoff*attempt in between.
// Transport errors, 404 and every other non-2xx status return immediately.
// When attempts run out the last 429 error is returned.
func (c *client) doWithRetry(ctx context.Context, version, model string, body []byte) ([]byte, error) {
	endpoint := c.endpoint(version, model)
	maxAttempts := c.cfg.MaxRateLimitAttempts

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		start := time.Now()
		status, raw, err := c.post(ctx, endpoint, body)

		c.logger.Debug("llm upstream request",
			zap.String("api_version", version),
			zap.String("model", model),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)

		if err != nil {
			return nil, &CallError{Kind: KindTransport, APIVersion: version, Model: model, Err: err}
		}

		switch {
		case status >= 200 && status < 300:
			return raw, nil
		case status == http.StatusTooManyRequests:
			lastErr = statusError(KindRateLimited, status, version, model, raw)
		case status == http.StatusNotFound:
			return nil, statusError(KindNotFound, status, version, model, raw)
		default:
			return nil, statusError(KindUpstream, status, version, model, raw)
		}

		if attempt == maxAttempts {
			break
		}

		backoff := c.cfg.RateLimitBackoff * time.Duration(attempt)
		c.logger.Info("rate limited, backing off",
			zap.String("api_version", version),
			zap.Duration("backoff", backoff),
			zap.Int("next_attempt", attempt+1),
		)
		if err := c.cfg.Sleep(ctx, backoff); err != nil {
			return nil, &CallError{Kind: KindTransport, APIVersion: version, Model: model, Err: err}
		}
	}

	c.logger.Warn("llm request exhausted rate-limit retries",
		zap.String("api_version", version),
		zap.Int("attempts", maxAttempts),
		zap.Error(lastErr),
	)
	return nil, lastErr
}

// post performs one HTTP attempt bounded by cfg.Timeout and returns the
// status and body.
func (c *client) post(parentCtx context.Context, endpoint string, body []byte) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(parentCtx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("build HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response body: %w", err)
	}
	return resp.StatusCode, raw, nil
}

func (c *client) endpoint(version, model string) string {
	return c.cfg.BaseURL + "/" + url.PathEscape(version) + "/models/" + url.PathEscape(model) + ":generateContent"
}

func statusError(kind Kind, status int, version, model string, body []byte) *CallError {
	var perr providerErrorResponse
	if err := json.Unmarshal(body, &perr); err == nil && perr.Error.Message != "" {
		return &CallError{
			Kind:       kind,
			StatusCode: status,
			APIVersion: version,
			Model:      model,
			Err:        fmt.Errorf("%s (%s)", perr.Error.Message, perr.Error.Status),
		}
	}
	return &CallError{
		Kind:       kind,
		StatusCode: status,
		APIVersion: version,
		Model:      model,
		Err:        errors.New(truncate(string(body), 200)),
	}
}
