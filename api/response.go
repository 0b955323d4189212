package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fitstack/fitplanner/internal/embedding"
	"github.com/fitstack/fitplanner/internal/knowledge"
	"github.com/fitstack/fitplanner/internal/plan"
	"github.com/fitstack/fitplanner/internal/planner"
	"github.com/fitstack/fitplanner/internal/profile"
	"github.com/fitstack/fitplanner/internal/vecstore"
)

// writeJSON writes a JSON response with the given status code. Encoding
// failures after WriteHeader can only be logged.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, err string, message string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: message})
}

// writeDomainError maps domain sentinels onto HTTP status codes so the
// taxonomy stays in one place.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, profile.ErrNotFound), errors.Is(err, planner.ErrNoActivePlan):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, profile.ErrInvalidProfile),
		errors.Is(err, plan.ErrInvalidRequest),
		errors.Is(err, knowledge.ErrInvalidDocument):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, planner.ErrRegenerationConflict):
		writeError(w, http.StatusConflict, "regeneration_conflict", err.Error())
	case errors.Is(err, plan.ErrGenerationRejected):
		writeError(w, http.StatusUnprocessableEntity, "generation_rejected", err.Error())
	case errors.Is(err, plan.ErrGenerationUnavailable),
		errors.Is(err, embedding.ErrUnavailable),
		errors.Is(err, vecstore.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "backend_unavailable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}
