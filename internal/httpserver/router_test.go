package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"bookmatch-gateway/internal/catalog"
	"bookmatch-gateway/internal/concierge"
	"bookmatch-gateway/internal/googlebooks"
	"bookmatch-gateway/internal/handlers"
	"bookmatch-gateway/internal/preferences"
)

// newServer wires the real components with the external service disabled.
func newServer(t *testing.T, opts Options) (*httptest.Server, *catalog.MemoryStore) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	store := catalog.NewMemoryStore()
	ex := preferences.NewExtractor(nil, false, logger)
	con := concierge.New(nil, false, logger)
	lookup := googlebooks.New(googlebooks.Config{BaseURL: "http://127.0.0.1:1"}, logger)

	r := chi.NewRouter()
	SetupRouter(r, logger, opts, Handlers{
		Preferences:  handlers.NewPreferenceHandler(ex, store, con),
		Books:        handlers.NewBookHandler(store, lookup, con),
		Requests:     handlers.NewRequestHandler(store),
		ConfigStatus: handlers.ConfigStatus{Missing: []string{"GEMINI_API_KEY"}, CacheBackend: "memory"},
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, store
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newServer(t, Options{})

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))

	resp2, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestRecommendEndToEndWithFallbackExtraction(t *testing.T) {
	srv, store := newServer(t, Options{})
	ctx := context.Background()

	for _, b := range []catalog.Book{
		{Title: "Rocket Club", Tags: []string{"space"}, Format: "chapter", AgeMin: preferences.Int(6), AgeMax: preferences.Int(9)},
		{Title: "Pony Days", Tags: []string{"animals"}, Format: "picture"},
	} {
		saved, err := store.UpsertBook(ctx, b)
		require.NoError(t, err)
		_, err = store.SetInventory(ctx, saved.ID, "", 1)
		require.NoError(t, err)
	}

	body := strings.NewReader(`{"text":"chapter books about rockets for my 7 year old"}`)
	resp, err := http.Post(srv.URL+"/api/recommend", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Preferences   preferences.Record    `json:"preferences"`
		UsedExternal  bool                  `json:"used_external_service"`
		ExternalError string                `json:"external_error"`
		Matches       []json.RawMessage     `json:"matches"`
		Explanation   concierge.Explanation `json:"explanation"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	assert.False(t, out.UsedExternal)
	assert.Equal(t, preferences.ReasonDisabled, out.ExternalError)
	assert.Equal(t, []string{"space"}, out.Preferences.Tags)
	require.Len(t, out.Matches, 2)
	assert.Contains(t, string(out.Matches[0]), `"title":"Rocket Club"`)
	assert.Contains(t, out.Explanation.Message, "Rocket Club")
}

func TestAdminRoutesMounted(t *testing.T) {
	srv, _ := newServer(t, Options{})

	resp, err := http.Get(srv.URL + "/api/admin/config-status")
	require.NoError(t, err)
	defer resp.Body.Close()
	var status map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, false, status["configured"])

	resp2, err := http.Get(srv.URL + "/api/admin/requests/unknown/picklist")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestBodyLimitApplied(t *testing.T) {
	srv, _ := newServer(t, Options{MaxBodyBytes: 64})

	payload := bytes.Repeat([]byte("a"), 200)
	resp, err := http.Post(srv.URL+"/api/parse", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestRateLimitAppliedToAPI(t *testing.T) {
	srv, _ := newServer(t, Options{RatePerMinute: 1})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		resp, err := http.Get(srv.URL + "/api/admin/books")
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)

	// /health sits outside the limited group.
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
