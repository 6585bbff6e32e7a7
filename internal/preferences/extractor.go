package preferences

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"bookmatch-gateway/internal/llm"
	"bookmatch-gateway/internal/metrics"
)

// ReasonDisabled is reported when the external service is switched off.
const ReasonDisabled = "disabled"

// Extractor runs extraction through the external service and falls back to
// the rule tables whenever that fails. Extract never returns an error.
type Extractor struct {
	client  llm.Client
	enabled bool
	logger  *zap.Logger
}

// NewExtractor wires an extractor. A nil client behaves like a disabled one.
func NewExtractor(client llm.Client, enabled bool, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		client:  client,
		enabled: enabled && client != nil,
		logger:  logger.Named("extractor"),
	}
}

// Enabled reports whether the external service will be attempted.
func (e *Extractor) Enabled() bool {
	return e.enabled
}

type externalInput struct {
	Text string `json:"text"`
	Meta Meta   `json:"meta"`
}

// Extract returns a preference record for text. modelHint, when set, asks
// the external service for a specific model.
func (e *Extractor) Extract(ctx context.Context, text string, meta Meta, modelHint string) Result {
	start := time.Now()

	if !e.enabled {
		return e.fallback(text, meta, ReasonDisabled)
	}

	input, err := json.Marshal(externalInput{Text: text, Meta: meta})
	if err != nil {
		return e.fallback(text, meta, err.Error())
	}

	resp, err := e.client.Generate(ctx, &llm.GenerateRequest{
		System: systemPrompt,
		Input:  string(input),
		Model:  modelHint,
	})
	if err != nil {
		e.logger.Warn("external extraction failed, using fallback",
			zap.String("kind", string(llm.KindOf(err))),
			zap.Error(err),
		)
		return e.fallback(text, meta, err.Error())
	}

	rec, err := ParseExternal(resp.Text)
	if err != nil {
		e.logger.Warn("external extraction unparseable, using fallback",
			zap.String("kind", string(llm.KindMalformed)),
			zap.String("model", resp.Model),
			zap.Error(err),
		)
		return e.fallback(text, meta, err.Error())
	}

	metrics.ExtractionsTotal.WithLabelValues("external").Inc()
	e.logger.Debug("external extraction succeeded",
		zap.String("model", resp.Model),
		zap.String("api_version", resp.APIVersion),
		zap.Bool("from_cache", resp.FromCache),
		zap.Duration("duration", time.Since(start)),
	)

	return Result{Preferences: rec, UsedExternal: true}
}

func (e *Extractor) fallback(text string, meta Meta, reason string) Result {
	metrics.ExtractionsTotal.WithLabelValues("fallback").Inc()
	return Result{
		Preferences:   Fallback(text, meta),
		UsedExternal:  false,
		ExternalError: reason,
	}
}
