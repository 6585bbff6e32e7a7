package llm

import (
	"context"
	"errors"
	"fmt"
)

// GenerateRequest is one call to the text-understanding service.
// System is the fixed instruction; Input is the caller's payload, usually
// JSON-encoded.
type GenerateRequest struct {
	System          string  `json:"system,omitempty"`
	Input           string  `json:"input"`
	Model           string  `json:"model,omitempty"` // empty = service default
	Temperature     float32 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"max_output_tokens,omitempty"`
}

func (r *GenerateRequest) Validate() error {
	if r.Input == "" {
		return errors.New("input is required")
	}
	if r.Temperature < 0 || r.Temperature > 2 {
		return errors.New("temperature must be between 0 and 2")
	}
	return nil
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type GenerateResponse struct {
	Text       string `json:"text"`
	Model      string `json:"model"`
	APIVersion string `json:"api_version"`
	FromCache  bool   `json:"from_cache"`
	Usage      *Usage `json:"usage,omitempty"`
}

type Client interface {
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)
}

// Kind classifies why a call failed. Callers branch on it instead of
// string-matching errors.
type Kind string

const (
	KindNoCredentials Kind = "no_credentials"
	KindRateLimited   Kind = "rate_limited"
	KindNotFound      Kind = "not_found"
	KindUpstream      Kind = "upstream"
	KindTransport     Kind = "transport"
	KindMalformed     Kind = "malformed"
	KindInvalid       Kind = "invalid_request"
)

// CallError is the only error type Generate returns.
type CallError struct {
	Kind       Kind
	StatusCode int // 0 when no HTTP response was received
	APIVersion string
	Model      string
	Err        error
}

func (e *CallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("llmclient: %s (status %d, %s/%s): %v", e.Kind, e.StatusCode, e.APIVersion, e.Model, e.Err)
	}
	return fmt.Sprintf("llmclient: %s: %v", e.Kind, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// KindOf returns the failure kind carried by err, or "" if err is nil or
// not a CallError.
func KindOf(err error) Kind {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
