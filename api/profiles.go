package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/fitstack/fitplanner/internal/log"
	"github.com/fitstack/fitplanner/internal/profile"
)

// ProfileHandler serves profile CRUD and progress check-ins.
type ProfileHandler struct {
	svc      Planner
	profiles ProfileStore
	logger   log.Logger
}

// NewProfileHandler creates a profile handler.
func NewProfileHandler(svc Planner, profiles ProfileStore, logger log.Logger) *ProfileHandler {
	return &ProfileHandler{svc: svc, profiles: profiles, logger: logger}
}

// RegisterRoutes registers profile routes on the given mux.
func (h *ProfileHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("PUT /api/profiles/{userID}", h.put)
	mux.HandleFunc("GET /api/profiles/{userID}", h.get)
	mux.HandleFunc("POST /api/users/{userID}/progress", h.logProgress)
}

func (h *ProfileHandler) put(w http.ResponseWriter, r *http.Request) {
	var prof profile.Profile
	if err := json.NewDecoder(r.Body).Decode(&prof); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	// The path is authoritative for identity.
	prof.UserID = r.PathValue("userID")

	if err := h.profiles.Put(r.Context(), &prof); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prof)
}

func (h *ProfileHandler) get(w http.ResponseWriter, r *http.Request) {
	prof, err := h.profiles.Get(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prof)
}

// progressRequest is the check-in payload. RecordedAt defaults to now.
type progressRequest struct {
	RecordedAt      *time.Time `json:"recorded_at,omitempty"`
	WeightKg        float64    `json:"weight_kg"`
	WorkoutsPlanned int        `json:"workouts_planned"`
	WorkoutsDone    int        `json:"workouts_done"`
	Notes           string     `json:"notes,omitempty"`
}

// progressResponse reports the stored sample plus the regeneration
// decision the check-in produced.
type progressResponse struct {
	Sample   profile.ProgressSample `json:"sample"`
	Decision any                    `json:"decision"`
}

func (h *ProfileHandler) logProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	recordedAt := time.Now().UTC()
	if req.RecordedAt != nil {
		recordedAt = *req.RecordedAt
	}

	sample := profile.ProgressSample{
		UserID:          r.PathValue("userID"),
		RecordedAt:      recordedAt,
		WeightKg:        req.WeightKg,
		WorkoutsPlanned: req.WorkoutsPlanned,
		WorkoutsDone:    req.WorkoutsDone,
		Notes:           req.Notes,
	}

	decision, err := h.svc.LogProgress(r.Context(), &sample)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, progressResponse{Sample: sample, Decision: decision})
}
