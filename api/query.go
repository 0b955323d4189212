package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fitstack/fitplanner/internal/log"
)

// QueryHandler serves grounded knowledge Q&A: retrieval plus a cited,
// confidence-labeled answer.
type QueryHandler struct {
	svc    Planner
	logger log.Logger
}

// NewQueryHandler creates a query handler.
func NewQueryHandler(svc Planner, logger log.Logger) *QueryHandler {
	return &QueryHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers the query route on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query", h.query)
}

type queryRequest struct {
	UserID   string `json:"user_id"`
	Query    string `json:"query"`
	Category string `json:"category,omitempty"`
}

func (h *QueryHandler) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}

	result, err := h.svc.Answer(r.Context(), req.UserID, req.Query, req.Category)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
