package handlers

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"bookmatch-gateway/internal/catalog"
	"bookmatch-gateway/internal/concierge"
	"bookmatch-gateway/internal/preferences"
	"bookmatch-gateway/internal/ranking"
	"bookmatch-gateway/pkg/logging/logging"
)

// PreferenceHandler serves extraction and recommendation.
type PreferenceHandler struct {
	Extractor Extractor
	Store     catalog.Store
	Concierge Concierge
}

func NewPreferenceHandler(ex Extractor, store catalog.Store, c Concierge) *PreferenceHandler {
	return &PreferenceHandler{Extractor: ex, Store: store, Concierge: c}
}

type parseRequest struct {
	Text     string `json:"text" validate:"required,max=4000"`
	Age      *int   `json:"age" validate:"omitempty,min=0,max=150"`
	Language string `json:"language" validate:"omitempty,max=40"`
	Format   string `json:"format" validate:"omitempty,oneof=picture chapter graphic any"`
	Model    string `json:"model" validate:"omitempty,max=80"`
}

func (p parseRequest) meta() preferences.Meta {
	return preferences.Meta{Age: p.Age, Language: p.Language, Format: p.Format}
}

// Parse handles POST /api/parse.
func (h *PreferenceHandler) Parse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res := h.Extractor.Extract(r.Context(), req.Text, req.meta(), req.Model)
	writeJSON(w, http.StatusOK, res)
}

type recommendRequest struct {
	parseRequest
	Query string `json:"q" validate:"omitempty,max=200"`
	Limit int    `json:"limit" validate:"omitempty,min=1,max=20"`
}

type recommendResponse struct {
	preferences.Result
	Matches     []ranking.ScoredBook  `json:"matches"`
	Explanation concierge.Explanation `json:"explanation"`
}

// Recommend handles POST /api/recommend: extract preferences, rank the
// books on the shelf and explain the top picks.
func (h *PreferenceHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	var req recommendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	limit := req.Limit
	if limit == 0 {
		limit = ranking.DefaultTopN
	}

	res := h.Extractor.Extract(ctx, req.Text, req.meta(), req.Model)

	books, err := h.Store.AvailableBooks(ctx)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	top := ranking.Top(ranking.Rank(books, res.Preferences, strings.TrimSpace(req.Query)), limit)
	explanation := h.Concierge.Explain(ctx, req.Text, res.Preferences, top)

	logger.Info("recommendation served",
		zap.Bool("used_external_service", res.UsedExternal),
		zap.Int("candidates", len(books)),
		zap.Int("matches", len(top)),
		zap.Duration("duration", time.Since(start)),
	)

	writeJSON(w, http.StatusOK, recommendResponse{
		Result:      res,
		Matches:     roundScores(top),
		Explanation: explanation,
	})
}

type conciergeRequest struct {
	Message string   `json:"message" validate:"required,max=2000"`
	History []string `json:"history" validate:"max=20"`
	Model   string   `json:"model" validate:"omitempty,max=80"`
}

// Chat handles POST /api/concierge.
func (h *PreferenceHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req conciergeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.Concierge.Chat(r.Context(), req.Message, req.History, req.Model))
}
