package handlers

import "net/http"

// ConfigStatus reports which optional integrations are configured. It is
// computed once at startup.
type ConfigStatus struct {
	Missing         []string
	ExternalEnabled bool
	CacheBackend    string
}

type configStatusResponse struct {
	Missing         []string `json:"missing"`
	Configured      bool     `json:"configured"`
	ExternalEnabled bool     `json:"external_service_enabled"`
	CacheBackend    string   `json:"cache_backend"`
}

// ServeHTTP handles GET /api/admin/config-status.
func (s ConfigStatus) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	missing := s.Missing
	if missing == nil {
		missing = []string{}
	}
	writeJSON(w, http.StatusOK, configStatusResponse{
		Missing:         missing,
		Configured:      len(missing) == 0,
		ExternalEnabled: s.ExternalEnabled,
		CacheBackend:    s.CacheBackend,
	})
}

// Health handles GET /health.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
