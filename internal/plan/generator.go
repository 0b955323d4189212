package plan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fitstack/fitplanner/internal/log"
	"github.com/fitstack/fitplanner/internal/profile"
	"github.com/fitstack/fitplanner/internal/rag"
)

// TextGenerator produces model text for a system/user prompt pair.
// Implemented by the Genkit adapter in genkit.go; tests substitute
// canned strings.
type TextGenerator interface {
	GenerateText(ctx context.Context, system, prompt string) (string, error)
}

// Generator assembles prompts from retrieval results, calls the model,
// and validates the citation contract on the way back.
type Generator struct {
	model  TextGenerator
	logger log.Logger
}

// NewGenerator creates a plan generator.
func NewGenerator(model TextGenerator, logger log.Logger) *Generator {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Generator{
		model:  model,
		logger: logger.With("component", "plan-generator"),
	}
}

// Generate produces an unsaved plan from a request and its retrieval
// result. Confidence is verified only when retrieval did not fall back
// and every citation checks out against the provided context.
func (g *Generator) Generate(ctx context.Context, req *Request, prof *profile.Profile, retrieval *rag.Result) (*GeneratedPlan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	prompt := BuildPrompt(req, prof, retrieval.Chunks)

	raw, err := g.model.GenerateText(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("generating %s plan: %w", req.PlanType, err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty response", ErrGenerationUnavailable)
	}

	contextIDs := make([]string, len(retrieval.Chunks))
	for i, ch := range retrieval.Chunks {
		contextIDs[i] = ch.ChunkID
	}

	parsed := parseResponse(raw, contextIDs, g.logger)

	// Empty context means nothing grounded the plan, so it can never be
	// verified no matter what the model cited.
	confidence := ConfidenceVerified
	if len(retrieval.Chunks) == 0 || retrieval.LowConfidence || parsed.MissingLine || len(parsed.Violations) > 0 {
		confidence = ConfidenceUnverified
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating plan ID: %w", err)
	}

	generated := &GeneratedPlan{
		ID:         id,
		UserID:     req.UserID,
		PlanType:   req.PlanType,
		Content:    parsed.Content,
		Citations:  parsed.Citations,
		Confidence: confidence,
		Status:     StatusActive,
		CreatedAt:  time.Now().UTC(),
	}

	g.logger.Info("plan generated",
		"user_id", req.UserID,
		"plan_type", req.PlanType,
		"citations", len(parsed.Citations),
		"confidence", confidence)

	return generated, nil
}
