package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"bookmatch-gateway/internal/catalog"
	"bookmatch-gateway/internal/ranking"
	"bookmatch-gateway/pkg/logging/logging"
)

var validate = validator.New()

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: code, Message: message})
}

// decodeJSON reads a JSON body into dst and validates it. On failure it
// writes the response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		err = validate.Struct(dst)
	}
	if err == nil {
		return true
	}

	var (
		maxErr *http.MaxBytesError
		verrs  validator.ValidationErrors
	)
	switch {
	case errors.As(err, &maxErr):
		writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large")
	case errors.Is(err, io.EOF):
		writeError(w, http.StatusBadRequest, "invalid_request", "request body is empty")
	case errors.As(err, &verrs):
		writeError(w, http.StatusBadRequest, "invalid_request", describeValidation(verrs))
	default:
		logging.L(r.Context()).Debug("invalid json body", zap.Error(err))
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
	}
	return false
}

func describeValidation(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

// writeStoreError maps catalog errors to HTTP statuses.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, catalog.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
	default:
		logging.L(r.Context()).Error("store error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_server_error", "storage failure")
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// roundScores returns scored with every score and signal rounded to two
// decimals for display.
func roundScores(scored []ranking.ScoredBook) []ranking.ScoredBook {
	out := make([]ranking.ScoredBook, len(scored))
	for i, sb := range scored {
		sb.Score = round2(sb.Score)
		sb.Breakdown = ranking.Breakdown{
			Age:      round2(sb.Breakdown.Age),
			Language: round2(sb.Breakdown.Language),
			Format:   round2(sb.Breakdown.Format),
			Tags:     round2(sb.Breakdown.Tags),
			Text:     round2(sb.Breakdown.Text),
		}
		out[i] = sb
	}
	return out
}
