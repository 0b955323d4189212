package plan

import (
	"context"
	"fmt"
	"strings"

	"github.com/fitstack/fitplanner/internal/profile"
	"github.com/fitstack/fitplanner/internal/rag"
	"github.com/fitstack/fitplanner/internal/vecstore"
)

// Answer is a grounded response to a one-off question, under the same
// citation contract as plan generation.
type Answer struct {
	Text       string     `json:"answer_text"`
	Citations  []string   `json:"citations"`
	Confidence Confidence `json:"confidence"`
}

// AnswerQuestion answers a free-form question from the retrieved
// context. Confidence follows the plan rules: any citation violation,
// fallback retrieval, or empty context makes the answer unverified.
func (g *Generator) AnswerQuestion(ctx context.Context, query string, prof *profile.Profile, retrieval *rag.Result) (*Answer, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", ErrInvalidRequest)
	}

	prompt := buildAnswerPrompt(query, prof, retrieval.Chunks)

	raw, err := g.model.GenerateText(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("answering question: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty response", ErrGenerationUnavailable)
	}

	contextIDs := make([]string, len(retrieval.Chunks))
	for i, ch := range retrieval.Chunks {
		contextIDs[i] = ch.ChunkID
	}

	parsed := parseResponse(raw, contextIDs, g.logger)

	confidence := ConfidenceVerified
	if len(retrieval.Chunks) == 0 || retrieval.LowConfidence || parsed.MissingLine || len(parsed.Violations) > 0 {
		confidence = ConfidenceUnverified
	}

	return &Answer{
		Text:       parsed.Content,
		Citations:  parsed.Citations,
		Confidence: confidence,
	}, nil
}

// buildAnswerPrompt mirrors BuildPrompt minus the progress section,
// which has no bearing on a knowledge question.
func buildAnswerPrompt(query string, prof *profile.Profile, chunks []vecstore.ScoredChunk) string {
	var sb strings.Builder
	sb.WriteString("USER PROFILE:\n")
	sb.WriteString(renderProfile(prof))
	sb.WriteString("\n\nCONTEXT:\n")
	sb.WriteString(renderContext(chunks))
	sb.WriteString("\n\nTASK:\n")
	fmt.Fprintf(&sb, "Answer the following question using only the context above.\nQuestion: %s", query)
	return sb.String()
}
