package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"bookmatch-gateway/internal/catalog"
	"bookmatch-gateway/internal/googlebooks"
	"bookmatch-gateway/internal/preferences"
	"bookmatch-gateway/internal/ranking"
	"bookmatch-gateway/pkg/logging/logging"
)

// BookHandler serves catalog search and staff book management.
type BookHandler struct {
	Store      catalog.Store
	BookLookup BookLookup
	Concierge  Concierge
}

func NewBookHandler(store catalog.Store, lookup BookLookup, c Concierge) *BookHandler {
	return &BookHandler{Store: store, BookLookup: lookup, Concierge: c}
}

// Search handles GET /api/books/search?age&language&tags&format&q. It ranks
// available books against the query-string preferences and returns the top
// five.
func (h *BookHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	prefs := preferences.Record{
		Language: strings.TrimSpace(q.Get("language")),
		Format:   strings.TrimSpace(q.Get("format")),
	}
	if raw := strings.TrimSpace(q.Get("age")); raw != "" {
		age, err := strconv.Atoi(raw)
		if err != nil || age < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "age must be a non-negative integer")
			return
		}
		prefs.Age = &age
	}
	if raw := q.Get("tags"); raw != "" {
		prefs.Tags = strings.Split(raw, ",")
	}
	prefs = prefs.Normalize()

	books, err := h.Store.AvailableBooks(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	top := ranking.Top(ranking.Rank(books, prefs, q.Get("q")), ranking.DefaultTopN)
	writeJSON(w, http.StatusOK, roundScores(top))
}

// List handles GET /api/admin/books.
func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	books, err := h.Store.ListBooks(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

type createBookRequest struct {
	Title        string   `json:"title" validate:"required,max=300"`
	Author       string   `json:"author" validate:"max=300"`
	Description  string   `json:"description"`
	Tags         []string `json:"tags" validate:"max=30,dive,max=40"`
	AgeMin       *int     `json:"age_min" validate:"omitempty,min=0,max=18"`
	AgeMax       *int     `json:"age_max" validate:"omitempty,min=0,max=18"`
	ReadingLevel string   `json:"reading_level"`
	Language     string   `json:"language"`
	Format       string   `json:"format" validate:"omitempty,oneof=picture chapter graphic"`
	CoverURL     string   `json:"cover_url" validate:"omitempty,url"`
	ISBN         string   `json:"isbn"`
	Source       string   `json:"source"`
	SourceID     string   `json:"source_id"`

	// Optional initial stock at LocationID.
	Quantity   *int   `json:"qty_available" validate:"omitempty,min=0"`
	LocationID string `json:"location_id"`
}

// Create handles POST /api/admin/books.
func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createBookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AgeMin != nil && req.AgeMax != nil && *req.AgeMin > *req.AgeMax {
		writeError(w, http.StatusBadRequest, "invalid_request", "age_min must not exceed age_max")
		return
	}

	book, err := h.Store.UpsertBook(ctx, catalog.Book{
		Title:        req.Title,
		Author:       req.Author,
		Description:  req.Description,
		Tags:         req.Tags,
		AgeMin:       req.AgeMin,
		AgeMax:       req.AgeMax,
		ReadingLevel: req.ReadingLevel,
		Language:     req.Language,
		Format:       req.Format,
		CoverURL:     req.CoverURL,
		ISBN:         req.ISBN,
		Source:       req.Source,
		SourceID:     req.SourceID,
	})
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	if req.Quantity != nil {
		if _, err := h.Store.SetInventory(ctx, book.ID, req.LocationID, *req.Quantity); err != nil {
			writeStoreError(w, r, err)
			return
		}
	}

	logging.L(ctx).Info("book added", zap.String("book_id", book.ID), zap.String("title", book.Title))
	writeJSON(w, http.StatusCreated, book)
}

type inventoryRequest struct {
	LocationID string `json:"location_id" validate:"max=80"`
	Quantity   *int   `json:"qty_available" validate:"required,min=0"`
}

// SetInventory handles PUT /api/admin/books/{id}/inventory.
func (h *BookHandler) SetInventory(w http.ResponseWriter, r *http.Request) {
	var req inventoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.Store.SetInventory(r.Context(), chi.URLParam(r, "id"), req.LocationID, *req.Quantity)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type summaryResponse struct {
	BookID       string `json:"book_id"`
	Summary      string `json:"summary"`
	UsedExternal bool   `json:"used_external_service"`
}

// Summary handles GET /api/admin/books/{id}/summary?model=.
func (h *BookHandler) Summary(w http.ResponseWriter, r *http.Request) {
	book, err := h.Store.GetBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	summary, external := h.Concierge.Summarize(r.Context(), book, r.URL.Query().Get("model"))
	writeJSON(w, http.StatusOK, summaryResponse{BookID: book.ID, Summary: summary, UsedExternal: external})
}

// Lookup handles GET /api/books/lookup?q&language&max.
func (h *BookHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "q is required")
		return
	}
	maxResults := googlebooks.DefaultMaxResults
	if raw := q.Get("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "max must be a positive integer")
			return
		}
		maxResults = n
	}

	books, err := h.BookLookup.Search(r.Context(), query, maxResults, q.Get("language"))
	switch {
	case errors.Is(err, googlebooks.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "lookup_unavailable", err.Error())
		return
	case err != nil:
		logging.L(r.Context()).Warn("book lookup failed", zap.String("query", query), zap.Error(err))
		writeError(w, http.StatusBadGateway, "lookup_failed", "book lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, books)
}
