// Package plan turns retrieval results into generated, citation-checked
// fitness and diet plans.
package plan

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrGenerationUnavailable indicates the model backend could not
	// produce a response after retries.
	ErrGenerationUnavailable = errors.New("plan generation unavailable")

	// ErrGenerationRejected indicates the model refused or the response
	// was blocked; retrying the same request will not help.
	ErrGenerationRejected = errors.New("plan generation rejected")

	// ErrInvalidRequest indicates a generation request failed validation.
	ErrInvalidRequest = errors.New("invalid plan request")
)

// Type selects which kind of plan to generate.
type Type string

const (
	TypeWorkout Type = "workout"
	TypeDiet    Type = "diet"
)

// Valid reports whether t is a known plan type.
func (t Type) Valid() bool {
	return t == TypeWorkout || t == TypeDiet
}

// Status tracks a plan's lifecycle. Exactly one plan per (user, type)
// is active at a time; regeneration supersedes the previous one
// atomically.
type Status string

const (
	StatusActive     Status = "active"
	StatusSuperseded Status = "superseded"
)

// Confidence marks how well grounded the plan is. Unverified means
// retrieval fell back past the profile filters or the model cited
// chunks outside the provided context.
type Confidence string

const (
	ConfidenceVerified   Confidence = "verified"
	ConfidenceUnverified Confidence = "unverified"
)

// GeneratedPlan is a persisted plan with its citation trail.
type GeneratedPlan struct {
	ID         uuid.UUID  `json:"id"`
	UserID     string     `json:"user_id"`
	PlanType   Type       `json:"plan_type"`
	Content    string     `json:"content"`
	Citations  []string   `json:"citations"`
	Confidence Confidence `json:"confidence"`
	Status     Status     `json:"status"`

	// Reason records what triggered the plan: "initial", "manual", or a
	// trend description like "sustained weight gain".
	Reason string `json:"reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Request carries everything generation needs for one plan.
type Request struct {
	UserID   string
	PlanType Type

	// Query is the retrieval query. When empty, the planner synthesizes
	// a default from the profile.
	Query string

	// ProgressNote, when set, is injected into the prompt so regenerated
	// plans respond to observed trends.
	ProgressNote string
}

// Validate checks the request before any retrieval work happens.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("%w: user ID is empty", ErrInvalidRequest)
	}
	if !r.PlanType.Valid() {
		return fmt.Errorf("%w: unknown plan type %q", ErrInvalidRequest, r.PlanType)
	}
	return nil
}
