package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bookmatch-gateway/internal/catalog"
	"bookmatch-gateway/internal/preferences"
	"bookmatch-gateway/pkg/logging/logging"
)

// RequestHandler serves family requests and the staff fulfilment flow.
type RequestHandler struct {
	Store catalog.Store
}

func NewRequestHandler(store catalog.Store) *RequestHandler {
	return &RequestHandler{Store: store}
}

type matchRequest struct {
	BookID string  `json:"book_id" validate:"required"`
	Score  float64 `json:"score"`
}

type createRequestBody struct {
	RawText           string             `json:"raw_text" validate:"required,max=4000"`
	ParsedPreferences preferences.Record `json:"parsed_preferences"`
	Matched           []matchRequest     `json:"matched" validate:"max=50,dive"`
	LocationID        string             `json:"location_id" validate:"max=80"`
}

// Create handles POST /api/requests.
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if !decodeJSON(w, r, &body) {
		return
	}

	matched := make([]catalog.Match, 0, len(body.Matched))
	for _, m := range body.Matched {
		matched = append(matched, catalog.Match{BookID: m.BookID, Score: m.Score})
	}

	req, err := h.Store.CreateRequest(r.Context(), catalog.Request{
		RawText:           body.RawText,
		ParsedPreferences: body.ParsedPreferences,
		Matched:           matched,
		LocationID:        body.LocationID,
	})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	logging.L(r.Context()).Info("request created",
		zap.String("request_id", req.ID),
		zap.Int("matched", len(req.Matched)),
	)
	writeJSON(w, http.StatusCreated, req)
}

// List handles GET /api/admin/requests?status=.
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status != "" && !catalog.ValidStatus(status) {
		writeError(w, http.StatusBadRequest, "invalid_status", "unknown status "+status)
		return
	}

	reqs, err := h.Store.ListRequests(r.Context(), status)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

type statusBody struct {
	Status string `json:"status" validate:"required"`
}

// UpdateStatus handles POST /api/admin/requests/{id}/status.
func (h *RequestHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body statusBody
	if !decodeJSON(w, r, &body) {
		return
	}

	req, err := h.Store.UpdateRequestStatus(r.Context(), chi.URLParam(r, "id"), body.Status)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// Picklist handles GET /api/admin/requests/{id}/picklist.
func (h *RequestHandler) Picklist(w http.ResponseWriter, r *http.Request) {
	pl, err := h.Store.Picklist(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pl)
}
