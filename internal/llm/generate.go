package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"bookmatch-gateway/internal/cache"
	"bookmatch-gateway/internal/metrics"
)

const maxRequestSize = 512 * 1024

// Generate sends req to the text-understanding service.
//
// Order of operations:
//   - no API key: KindNoCredentials, no network I/O
//   - cache lookup keyed by (payload, model, preferred version)
//   - each API version in turn; only a 404 moves on to the next version
//   - inside a version, 429 is retried and a 404 for a non-default model is
//     retried once with the default model
//
// A successful raw response is cached before it is returned. On failure the
// last CallError is returned; nothing is ever invented here.
func (c *client) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	start := time.Now()

	if req == nil {
		return nil, c.fail(&CallError{Kind: KindInvalid, Err: errors.New("request is nil")})
	}
	if err := req.Validate(); err != nil {
		return nil, c.fail(&CallError{Kind: KindInvalid, Err: err})
	}
	if c.cfg.APIKey == "" {
		return nil, c.fail(&CallError{Kind: KindNoCredentials, Err: errors.New("api key not configured")})
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.cfg.DefaultModel
	}

	body, err := json.Marshal(buildProviderRequest(req))
	if err != nil {
		return nil, c.fail(&CallError{Kind: KindInvalid, Err: fmt.Errorf("marshal request: %w", err)})
	}
	if len(body) > maxRequestSize {
		return nil, c.fail(&CallError{
			Kind: KindInvalid,
			Err:  fmt.Errorf("request too large (%d bytes, max %d)", len(body), maxRequestSize),
		})
	}

	key := cache.BuildKey(body, model, c.cfg.APIVersion).String()

	if resp, ok := c.fromCache(ctx, key); ok {
		metrics.ExternalCallsTotal.WithLabelValues("cache_hit").Inc()
		return resp, nil
	}

	var lastErr error
	for _, version := range c.cfg.versions() {
		raw, usedModel, err := c.callVersion(ctx, version, model, body)
		if err == nil {
			resp, perr := decodeResponse(raw)
			if perr != nil {
				return nil, c.fail(&CallError{Kind: KindMalformed, APIVersion: version, Model: usedModel, Err: perr})
			}
			resp.Model = usedModel
			resp.APIVersion = version

			c.store(ctx, key, cachedResponse{Model: usedModel, APIVersion: version, Body: raw})

			metrics.ExternalCallsTotal.WithLabelValues("ok").Inc()
			c.logger.Info("llm request completed",
				zap.String("model", usedModel),
				zap.String("api_version", version),
				zap.Int("total_tokens", resp.Usage.TotalTokens),
				zap.Duration("duration", time.Since(start)),
			)
			return resp, nil
		}

		lastErr = err
		if KindOf(err) != KindNotFound {
			break
		}
		c.logger.Warn("api version not found, trying next",
			zap.String("api_version", version),
			zap.Error(err),
		)
	}

	c.logger.Warn("llm request failed",
		zap.Error(lastErr),
		zap.Duration("duration", time.Since(start)),
	)
	return nil, c.fail(lastErr)
}

// callVersion runs one API version, retrying once with the default model if
// the requested model is unknown there.
func (c *client) callVersion(ctx context.Context, version, model string, body []byte) ([]byte, string, error) {
	raw, err := c.doWithRetry(ctx, version, model, body)
	if KindOf(err) == KindNotFound && model != c.cfg.DefaultModel {
		c.logger.Info("model not found, retrying with default model",
			zap.String("api_version", version),
			zap.String("model", model),
			zap.String("default_model", c.cfg.DefaultModel),
		)
		model = c.cfg.DefaultModel
		raw, err = c.doWithRetry(ctx, version, model, body)
	}
	return raw, model, err
}

func (c *client) fromCache(ctx context.Context, key string) (*GenerateResponse, bool) {
	if c.cfg.Cache == nil {
		return nil, false
	}

	raw, hit, err := c.cfg.Cache.Get(ctx, key)
	if err != nil {
		// Cache is best-effort; fail open to a fresh call.
		c.logger.Warn("response cache get failed", zap.Error(err))
		return nil, false
	}
	if !hit {
		return nil, false
	}

	var entry cachedResponse
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("cached entry unreadable, ignoring", zap.Error(err))
		return nil, false
	}
	resp, err := decodeResponse(entry.Body)
	if err != nil {
		c.logger.Warn("cached response unreadable, ignoring", zap.Error(err))
		return nil, false
	}
	resp.Model = entry.Model
	resp.APIVersion = entry.APIVersion
	resp.FromCache = true
	return resp, true
}

// cachedResponse is the cache value: the raw provider body plus the model
// and API version that actually served it.
type cachedResponse struct {
	Model      string          `json:"model"`
	APIVersion string          `json:"api_version"`
	Body       json.RawMessage `json:"body"`
}

func (c *client) store(ctx context.Context, key string, entry cachedResponse) {
	if c.cfg.Cache == nil {
		return
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("encode cache entry", zap.Error(err))
		return
	}
	if err := c.cfg.Cache.Set(ctx, key, raw, c.cfg.CacheTTL); err != nil {
		c.logger.Warn("response cache set failed", zap.Error(err))
	}
}

func (c *client) fail(err error) error {
	if kind := KindOf(err); kind != "" {
		metrics.ExternalCallsTotal.WithLabelValues(string(kind)).Inc()
	}
	return err
}

func buildProviderRequest(req *GenerateRequest) providerRequest {
	var contents []providerContent
	if req.System != "" {
		contents = append(contents, providerContent{
			Role:  "user",
			Parts: []providerPart{{Text: req.System}},
		})
	}
	contents = append(contents, providerContent{
		Role:  "user",
		Parts: []providerPart{{Text: req.Input}},
	})

	pReq := providerRequest{Contents: contents}
	if req.Temperature > 0 || req.MaxOutputTokens > 0 {
		pReq.GenerationConfig = &providerGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxOutputTokens,
		}
	}
	return pReq
}

// decodeResponse pulls the first candidate's text out of a raw response.
func decodeResponse(raw []byte) (*GenerateResponse, error) {
	var pResp providerResponse
	if err := json.Unmarshal(raw, &pResp); err != nil {
		return nil, fmt.Errorf("decode upstream response: %w", err)
	}
	if len(pResp.Candidates) == 0 {
		return nil, errors.New("upstream returned no candidates")
	}

	var sb strings.Builder
	for _, p := range pResp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, errors.New("upstream candidate has no text")
	}

	out := &GenerateResponse{Text: text, Usage: &Usage{}}
	if u := pResp.UsageMetadata; u != nil {
		out.Usage.PromptTokens = u.PromptTokenCount
		out.Usage.CompletionTokens = u.CandidatesTokenCount
		out.Usage.TotalTokens = u.TotalTokenCount
	}
	return out, nil
}

// truncate limits string length for logging
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
