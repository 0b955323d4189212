// Package planner orchestrates the pipeline end to end: profile lookup,
// retrieval, generation, atomic plan activation, and progress-driven
// regeneration.
package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/fitstack/fitplanner/internal/config"
	"github.com/fitstack/fitplanner/internal/knowledge"
	"github.com/fitstack/fitplanner/internal/log"
	"github.com/fitstack/fitplanner/internal/plan"
	"github.com/fitstack/fitplanner/internal/profile"
	"github.com/fitstack/fitplanner/internal/rag"
	"github.com/fitstack/fitplanner/internal/vecstore"
)

var (
	// ErrRegenerationConflict indicates a concurrent regeneration won the
	// race; the caller should re-read the active plan instead of retrying.
	ErrRegenerationConflict = errors.New("plan regeneration conflict")

	// ErrNoActivePlan indicates the user has no active plan of the
	// requested type.
	ErrNoActivePlan = errors.New("no active plan")
)

// progressWindow caps how many recent samples trend analysis considers.
const progressWindow = 12

// Citation pairs a cited chunk with the source document it came from.
type Citation struct {
	ChunkID string `json:"chunk_id"`
	Source  string `json:"source"`
}

// AnswerResult is a grounded answer plus the retrieval behind it, so
// clients can show the supporting chunks alongside the answer.
type AnswerResult struct {
	AnswerText string          `json:"answer_text"`
	Citations  []Citation      `json:"citations"`
	Confidence plan.Confidence `json:"confidence"`

	Chunks        []vecstore.ScoredChunk `json:"chunks,omitempty"`
	LowConfidence bool                   `json:"low_confidence,omitempty"`
}

// ProfileStore loads user profiles.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*profile.Profile, error)
	Put(ctx context.Context, prof *profile.Profile) error
}

// ProgressStore persists and lists progress samples, newest first.
type ProgressStore interface {
	Add(ctx context.Context, sample *profile.ProgressSample) error
	Recent(ctx context.Context, userID string, limit int) ([]profile.ProgressSample, error)
}

// PlanStore persists plans. Activate must atomically supersede the
// previous active plan of the same (user, type); when priorID is
// non-nil it must still be the active plan or the call fails with
// ErrRegenerationConflict.
type PlanStore interface {
	Activate(ctx context.Context, p *plan.GeneratedPlan, priorID *string) error
	Active(ctx context.Context, userID string, planType plan.Type) (*plan.GeneratedPlan, error)
	History(ctx context.Context, userID string, planType plan.Type, limit int) ([]plan.GeneratedPlan, error)
}

// Retriever runs profile-enhanced retrieval. Implemented by
// rag.Retriever.
type Retriever interface {
	Retrieve(ctx context.Context, query, category string, prof *profile.Profile) (*rag.Result, error)
}

// Generator produces plans and grounded answers from retrieval results.
// Implemented by plan.Generator.
type Generator interface {
	Generate(ctx context.Context, req *plan.Request, prof *profile.Profile, retrieval *rag.Result) (*plan.GeneratedPlan, error)
	AnswerQuestion(ctx context.Context, query string, prof *profile.Profile, retrieval *rag.Result) (*plan.Answer, error)
}

// Service is the application-facing facade over the pipeline.
type Service struct {
	profiles  ProfileStore
	progress  ProgressStore
	plans     PlanStore
	retriever Retriever
	generator Generator
	regenCfg  config.RegenConfig
	logger    log.Logger
}

// NewService wires the planner service.
func NewService(
	profiles ProfileStore,
	progress ProgressStore,
	plans PlanStore,
	retriever Retriever,
	generator Generator,
	regenCfg config.RegenConfig,
	logger log.Logger,
) *Service {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{
		profiles:  profiles,
		progress:  progress,
		plans:     plans,
		retriever: retriever,
		generator: generator,
		regenCfg:  regenCfg,
		logger:    logger.With("component", "planner"),
	}
}

// categoryFor maps a plan type to its knowledge category.
func categoryFor(planType plan.Type) string {
	if planType == plan.TypeDiet {
		return knowledge.CategoryDiet
	}
	return knowledge.CategoryWorkout
}

// GeneratePlan creates and activates a fresh plan for the user. An
// empty query is synthesized from the profile. Any previously active
// plan of the same type is superseded atomically.
func (s *Service) GeneratePlan(ctx context.Context, userID string, planType plan.Type, query string) (*plan.GeneratedPlan, error) {
	req := &plan.Request{UserID: userID, PlanType: planType, Query: query}
	generated, err := s.buildPlan(ctx, req, "initial")
	if err != nil {
		return nil, err
	}

	// A canceled request must not supersede the user's current plan.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.plans.Activate(ctx, generated, nil); err != nil {
		return nil, fmt.Errorf("activating plan: %w", err)
	}
	return generated, nil
}

// RegeneratePlan replaces the user's active plan in response to
// progress. The new plan's prompt carries the trend analysis so the
// model adjusts rather than repeats. The supersede is conditional on
// the prior plan still being active; a lost race returns
// ErrRegenerationConflict.
func (s *Service) RegeneratePlan(ctx context.Context, userID string, planType plan.Type) (*plan.GeneratedPlan, error) {
	prior, err := s.plans.Active(ctx, userID, planType)
	if err != nil {
		return nil, fmt.Errorf("loading active plan: %w", err)
	}

	prof, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}

	samples, err := s.progress.Recent(ctx, userID, progressWindow)
	if err != nil {
		return nil, fmt.Errorf("loading progress: %w", err)
	}

	analysis := AnalyzeTrend(samples, s.regenCfg)
	decision := Evaluate(prof.Goal, analysis, s.regenCfg)

	req := &plan.Request{
		UserID:       userID,
		PlanType:     planType,
		ProgressNote: ProgressNote(analysis, decision),
	}

	generated, err := s.buildPlanWithProfile(ctx, req, prof, reasonOr(decision.Reason, "manual"))
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	priorID := prior.ID.String()
	if err := s.plans.Activate(ctx, generated, &priorID); err != nil {
		return nil, fmt.Errorf("activating regenerated plan: %w", err)
	}

	s.logger.Info("plan regenerated",
		"user_id", userID,
		"plan_type", planType,
		"trend", analysis.Trend,
		"reason", generated.Reason)

	return generated, nil
}

// LogProgress stores a check-in, then evaluates the regeneration policy.
// When the policy fires and auto-trigger is enabled, the matching plans
// are regenerated; otherwise the decision is returned for the caller to
// act on.
func (s *Service) LogProgress(ctx context.Context, sample *profile.ProgressSample) (*Decision, error) {
	if err := sample.Validate(); err != nil {
		return nil, err
	}
	if err := s.progress.Add(ctx, sample); err != nil {
		return nil, fmt.Errorf("storing progress sample: %w", err)
	}

	prof, err := s.profiles.Get(ctx, sample.UserID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}

	samples, err := s.progress.Recent(ctx, sample.UserID, progressWindow)
	if err != nil {
		return nil, fmt.Errorf("loading progress: %w", err)
	}

	analysis := AnalyzeTrend(samples, s.regenCfg)
	decision := Evaluate(prof.Goal, analysis, s.regenCfg)

	if decision.Regenerate && s.regenCfg.AutoTrigger {
		for _, planType := range []plan.Type{plan.TypeWorkout, plan.TypeDiet} {
			if _, err := s.RegeneratePlan(ctx, sample.UserID, planType); err != nil {
				switch {
				case errors.Is(err, ErrNoActivePlan):
					// Nothing to regenerate for this type.
				case errors.Is(err, ErrRegenerationConflict):
					s.logger.Info("concurrent regeneration already in flight",
						"user_id", sample.UserID, "plan_type", planType)
				default:
					return &decision, fmt.Errorf("auto-regenerating %s plan: %w", planType, err)
				}
			}
		}
	}

	return &decision, nil
}

// ActivePlan returns the user's current plan of the given type.
func (s *Service) ActivePlan(ctx context.Context, userID string, planType plan.Type) (*plan.GeneratedPlan, error) {
	return s.plans.Active(ctx, userID, planType)
}

// PlanHistory returns recent plans, newest first.
func (s *Service) PlanHistory(ctx context.Context, userID string, planType plan.Type, limit int) ([]plan.GeneratedPlan, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.plans.History(ctx, userID, planType, limit)
}

// Answer runs a one-off knowledge question through retrieval and
// generation without touching stored plans. The category is optional.
func (s *Service) Answer(ctx context.Context, userID, query, category string) (*AnswerResult, error) {
	prof, err := s.profiles.Get(ctx, userID)
	if err != nil && !errors.Is(err, profile.ErrNotFound) {
		return nil, fmt.Errorf("loading profile: %w", err)
	}

	retrieval, err := s.retriever.Retrieve(ctx, query, category, prof)
	if err != nil {
		return nil, fmt.Errorf("retrieving: %w", err)
	}

	answer, err := s.generator.AnswerQuestion(ctx, query, prof, retrieval)
	if err != nil {
		return nil, err
	}

	sourceByChunk := make(map[string]string, len(retrieval.Chunks))
	for _, ch := range retrieval.Chunks {
		sourceByChunk[ch.ChunkID] = ch.SourceID
	}
	citations := make([]Citation, 0, len(answer.Citations))
	for _, id := range answer.Citations {
		citations = append(citations, Citation{ChunkID: id, Source: sourceByChunk[id]})
	}

	return &AnswerResult{
		AnswerText:    answer.Text,
		Citations:     citations,
		Confidence:    answer.Confidence,
		Chunks:        retrieval.Chunks,
		LowConfidence: retrieval.LowConfidence,
	}, nil
}

func (s *Service) buildPlan(ctx context.Context, req *plan.Request, reason string) (*plan.GeneratedPlan, error) {
	prof, err := s.profiles.Get(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	return s.buildPlanWithProfile(ctx, req, prof, reason)
}

func (s *Service) buildPlanWithProfile(ctx context.Context, req *plan.Request, prof *profile.Profile, reason string) (*plan.GeneratedPlan, error) {
	query := req.Query
	if query == "" {
		query = plan.DefaultQuery(req.PlanType, prof)
	}

	retrieval, err := s.retriever.Retrieve(ctx, query, categoryFor(req.PlanType), prof)
	if err != nil {
		return nil, fmt.Errorf("retrieving context: %w", err)
	}

	generated, err := s.generator.Generate(ctx, req, prof, retrieval)
	if err != nil {
		return nil, err
	}
	generated.Reason = reason
	return generated, nil
}

func reasonOr(reason, fallback string) string {
	if reason == "" {
		return fallback
	}
	return reason
}
