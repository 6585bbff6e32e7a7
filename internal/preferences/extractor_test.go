package preferences

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"bookmatch-gateway/internal/cache"
	"bookmatch-gateway/internal/llm"
)

type fakeClient struct {
	text    string
	err     error
	calls   int
	lastReq *llm.GenerateRequest
}

func (f *fakeClient) Generate(_ context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.GenerateResponse{Text: f.text, Model: "gemini-1.5-flash", APIVersion: "v1beta"}, nil
}

func TestExtractUsesExternalService(t *testing.T) {
	client := &fakeClient{text: `{"age": 8, "language": "Spanish", "format": "graphic", "tags": ["sports"], "keywords": ["soccer"]}`}
	ex := NewExtractor(client, true, zaptest.NewLogger(t))

	res := ex.Extract(context.Background(), "futbol comics for my 8 year old", Meta{Language: "English"}, "gemini-1.5-pro")

	assert.True(t, res.UsedExternal)
	assert.Empty(t, res.ExternalError)
	require.NotNil(t, res.Preferences.Age)
	assert.Equal(t, 8, *res.Preferences.Age)
	assert.Equal(t, "Spanish", res.Preferences.Language)
	assert.Equal(t, []string{"sports"}, res.Preferences.Tags)

	require.NotNil(t, client.lastReq)
	assert.Equal(t, "gemini-1.5-pro", client.lastReq.Model)
	assert.Equal(t, systemPrompt, client.lastReq.System)

	var input externalInput
	require.NoError(t, json.Unmarshal([]byte(client.lastReq.Input), &input))
	assert.Equal(t, "futbol comics for my 8 year old", input.Text)
	assert.Equal(t, "English", input.Meta.Language)
}

func TestExtractDisabledSkipsClient(t *testing.T) {
	client := &fakeClient{text: `{}`}
	ex := NewExtractor(client, false, zaptest.NewLogger(t))

	res := ex.Extract(context.Background(), "dragon stories", Meta{}, "")

	assert.Equal(t, 0, client.calls)
	assert.False(t, res.UsedExternal)
	assert.Equal(t, ReasonDisabled, res.ExternalError)
	assert.Contains(t, res.Preferences.Tags, "fantasy")
}

func TestExtractNilClientIsDisabled(t *testing.T) {
	ex := NewExtractor(nil, true, nil)
	assert.False(t, ex.Enabled())

	res := ex.Extract(context.Background(), "x", Meta{}, "")
	assert.Equal(t, ReasonDisabled, res.ExternalError)
}

func TestExtractFallsBackOnClientError(t *testing.T) {
	client := &fakeClient{err: &llm.CallError{Kind: llm.KindRateLimited, StatusCode: 429, Err: io.EOF}}
	ex := NewExtractor(client, true, zaptest.NewLogger(t))

	res := ex.Extract(context.Background(), "a mystery for a 10 year old", Meta{}, "")

	assert.False(t, res.UsedExternal)
	assert.Contains(t, res.ExternalError, "rate_limited")
	assert.Equal(t, Fallback("a mystery for a 10 year old", Meta{}), res.Preferences)
}

func TestExtractFallsBackOnMalformedOutput(t *testing.T) {
	for _, text := range []string{
		"Sure! Here are the preferences you asked for.",
		`{"age": 7, "tags": []}`,
	} {
		client := &fakeClient{text: text}
		ex := NewExtractor(client, true, zaptest.NewLogger(t))

		res := ex.Extract(context.Background(), "rocket books", Meta{}, "")

		assert.False(t, res.UsedExternal, "output %q", text)
		assert.Contains(t, res.ExternalError, ErrMalformed.Error())
		assert.Equal(t, []string{"space"}, res.Preferences.Tags)
	}
}

func TestExtractCachesIdenticalRequests(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"{\"age\":7,\"language\":null,\"format\":null,\"tags\":[\"space\"],\"keywords\":[\"rocket\"]}"}]}}]}`)
	}))
	defer srv.Close()

	store := cache.NewMemoryExactCache(time.Minute, cache.WithoutSweep())
	t.Cleanup(func() { _ = store.Close() })

	client, err := llm.NewClient(llm.Config{
		BaseURL:  srv.URL,
		APIKey:   "k",
		Cache:    store,
		CacheTTL: 90 * time.Second,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	ex := NewExtractor(client, true, zaptest.NewLogger(t))
	meta := Meta{Age: Int(7)}

	first := ex.Extract(context.Background(), "rocket books", meta, "")
	second := ex.Extract(context.Background(), "rocket books", meta, "")

	assert.True(t, first.UsedExternal)
	assert.True(t, second.UsedExternal)
	assert.Equal(t, first.Preferences, second.Preferences)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestExtractWithoutCredentialsFallsBack(t *testing.T) {
	client, err := llm.NewClient(llm.Config{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	ex := NewExtractor(client, true, zaptest.NewLogger(t))
	res := ex.Extract(context.Background(), "chapter books about history", Meta{}, "")

	assert.False(t, res.UsedExternal)
	assert.Contains(t, res.ExternalError, string(llm.KindNoCredentials))
	assert.Equal(t, FormatChapter, res.Preferences.Format)
	assert.Equal(t, []string{"history"}, res.Preferences.Tags)
}
