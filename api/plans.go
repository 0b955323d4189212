package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/fitstack/fitplanner/internal/log"
	"github.com/fitstack/fitplanner/internal/plan"
)

// PlanHandler serves plan generation and lifecycle endpoints.
type PlanHandler struct {
	svc    Planner
	logger log.Logger
}

// NewPlanHandler creates a plan handler.
func NewPlanHandler(svc Planner, logger log.Logger) *PlanHandler {
	return &PlanHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers plan routes on the given mux.
func (h *PlanHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/users/{userID}/plans", h.generate)
	mux.HandleFunc("GET /api/users/{userID}/plans/{planType}", h.active)
	mux.HandleFunc("POST /api/users/{userID}/plans/{planType}/regenerate", h.regenerate)
	mux.HandleFunc("GET /api/users/{userID}/plans/{planType}/history", h.history)
}

// generateRequest is the plan creation payload. Query is optional; an
// empty one is synthesized from the profile.
type generateRequest struct {
	PlanType plan.Type `json:"plan_type"`
	Query    string    `json:"query,omitempty"`
}

func (h *PlanHandler) generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	p, err := h.svc.GeneratePlan(r.Context(), r.PathValue("userID"), req.PlanType, req.Query)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *PlanHandler) active(w http.ResponseWriter, r *http.Request) {
	planType, ok := parsePlanType(w, r)
	if !ok {
		return
	}

	p, err := h.svc.ActivePlan(r.Context(), r.PathValue("userID"), planType)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PlanHandler) regenerate(w http.ResponseWriter, r *http.Request) {
	planType, ok := parsePlanType(w, r)
	if !ok {
		return
	}

	p, err := h.svc.RegeneratePlan(r.Context(), r.PathValue("userID"), planType)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *PlanHandler) history(w http.ResponseWriter, r *http.Request) {
	planType, ok := parsePlanType(w, r)
	if !ok {
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	plans, err := h.svc.PlanHistory(r.Context(), r.PathValue("userID"), planType, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if plans == nil {
		plans = []plan.GeneratedPlan{}
	}
	writeJSON(w, http.StatusOK, plans)
}

func parsePlanType(w http.ResponseWriter, r *http.Request) (plan.Type, bool) {
	planType := plan.Type(r.PathValue("planType"))
	if !planType.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_plan_type",
			"plan type must be 'workout' or 'diet'")
		return "", false
	}
	return planType, true
}
