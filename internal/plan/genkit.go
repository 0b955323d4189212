package plan

import (
	"context"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/fitstack/fitplanner/internal/embedding"
	"github.com/fitstack/fitplanner/internal/log"
)

// generateTimeout bounds one generation attempt. Plans are long
// completions, so this is much looser than the embed timeout.
const generateTimeout = 90 * time.Second

// GenkitModel adapts Genkit generation to the TextGenerator interface,
// adding retry with backoff and mapping blocked responses to
// ErrGenerationRejected.
type GenkitModel struct {
	g           *genkit.Genkit
	modelName   string
	temperature float32
	maxTokens   int
	retry       embedding.RetryConfig
	logger      log.Logger
}

// NewGenkitModel creates the production TextGenerator. modelName is the
// provider-qualified name, e.g. "googleai/gemini-2.5-flash".
func NewGenkitModel(g *genkit.Genkit, modelName string, temperature float32, maxTokens int, logger log.Logger) *GenkitModel {
	if logger == nil {
		logger = log.NewNop()
	}
	return &GenkitModel{
		g:           g,
		modelName:   modelName,
		temperature: temperature,
		maxTokens:   maxTokens,
		retry:       embedding.DefaultRetryConfig(),
		logger:      logger.With("component", "genkit-model"),
	}
}

// GenerateText implements TextGenerator.
func (m *GenkitModel) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	resp, err := embedding.WithRetry(ctx, m.retry, func() (*ai.ModelResponse, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, generateTimeout)
		defer cancel()
		return genkit.Generate(attemptCtx, m.g,
			ai.WithModelName(m.modelName),
			ai.WithSystem(system),
			ai.WithPrompt(prompt),
			ai.WithConfig(map[string]any{
				"temperature":     m.temperature,
				"maxOutputTokens": m.maxTokens,
			}),
		)
	})
	if err != nil {
		m.logger.Error("generation failed", "model", m.modelName, "error", err)
		return "", fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}

	if resp.FinishReason == ai.FinishReasonBlocked {
		m.logger.Warn("generation blocked", "model", m.modelName)
		return "", fmt.Errorf("%w: response blocked by safety settings", ErrGenerationRejected)
	}

	return resp.Text(), nil
}
