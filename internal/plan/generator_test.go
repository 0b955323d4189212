package plan

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitstack/fitplanner/internal/log"
	"github.com/fitstack/fitplanner/internal/profile"
	"github.com/fitstack/fitplanner/internal/rag"
	"github.com/fitstack/fitplanner/internal/vecstore"
)

// fakeModel returns a canned response and records the prompts it saw.
type fakeModel struct {
	response string
	err      error
	system   string
	prompt   string
}

func (f *fakeModel) GenerateText(_ context.Context, system, prompt string) (string, error) {
	f.system = system
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func testProfile() *profile.Profile {
	return &profile.Profile{
		UserID:      "user-1",
		Goal:        profile.GoalMuscleGain,
		Level:       profile.LevelIntermediate,
		DietaryType: profile.DietVegetarian,
		Location:    profile.LocationGym,
		WeightKg:    75,
	}
}

func testRetrieval() *rag.Result {
	return &rag.Result{
		Query: "weekly training program for muscle gain",
		Chunks: []vecstore.ScoredChunk{
			{ChunkID: "chunk-a", Text: "Compound lifts three times a week.", Similarity: 0.92},
			{ChunkID: "chunk-b", Text: "Progressive overload guidance.", Similarity: 0.88},
		},
	}
}

func TestGenerate_VerifiedPlan(t *testing.T) {
	model := &fakeModel{response: "Day 1: bench press.\nCITED_CHUNKS: chunk-a"}
	gen := NewGenerator(model, log.NewNop())

	req := &Request{UserID: "user-1", PlanType: TypeWorkout}
	p, err := gen.Generate(context.Background(), req, testProfile(), testRetrieval())
	require.NoError(t, err)

	assert.Equal(t, ConfidenceVerified, p.Confidence)
	assert.Equal(t, StatusActive, p.Status)
	assert.Equal(t, []string{"chunk-a"}, p.Citations)
	assert.Equal(t, "Day 1: bench press.", p.Content)
	assert.NotEqual(t, p.ID.String(), "00000000-0000-0000-0000-000000000000")
}

func TestGenerate_PromptContainsAllSections(t *testing.T) {
	model := &fakeModel{response: "ok\nCITED_CHUNKS: none"}
	gen := NewGenerator(model, log.NewNop())

	req := &Request{UserID: "user-1", PlanType: TypeDiet, ProgressNote: "sustained weight gain over 4 samples"}
	_, err := gen.Generate(context.Background(), req, testProfile(), testRetrieval())
	require.NoError(t, err)

	for _, section := range []string{"USER PROFILE:", "PROGRESS:", "CONTEXT:", "TASK:"} {
		assert.Contains(t, model.prompt, section)
	}
	assert.Contains(t, model.prompt, "vegetarian")
	assert.Contains(t, model.prompt, "sustained weight gain")
	assert.Contains(t, model.prompt, "[chunk-a]")
	assert.Contains(t, model.system, "CITED_CHUNKS")
	assert.Contains(t, model.system, "medical advice")
}

func TestGenerate_InventedCitationDowngrades(t *testing.T) {
	model := &fakeModel{response: "Plan.\nCITED_CHUNKS: chunk-a, made-up-chunk"}
	gen := NewGenerator(model, log.NewNop())

	p, err := gen.Generate(context.Background(),
		&Request{UserID: "u", PlanType: TypeWorkout}, testProfile(), testRetrieval())
	require.NoError(t, err)

	assert.Equal(t, ConfidenceUnverified, p.Confidence)
	assert.Equal(t, []string{"chunk-a"}, p.Citations, "invalid citation must be dropped, valid kept")
}

func TestGenerate_LowConfidenceRetrievalDowngrades(t *testing.T) {
	model := &fakeModel{response: "Plan.\nCITED_CHUNKS: chunk-a"}
	gen := NewGenerator(model, log.NewNop())

	retrieval := testRetrieval()
	retrieval.LowConfidence = true

	p, err := gen.Generate(context.Background(),
		&Request{UserID: "u", PlanType: TypeWorkout}, testProfile(), retrieval)
	require.NoError(t, err)
	assert.Equal(t, ConfidenceUnverified, p.Confidence)
}

func TestGenerate_MissingCitationLineDowngrades(t *testing.T) {
	model := &fakeModel{response: "Plan with no citation line."}
	gen := NewGenerator(model, log.NewNop())

	p, err := gen.Generate(context.Background(),
		&Request{UserID: "u", PlanType: TypeWorkout}, testProfile(), testRetrieval())
	require.NoError(t, err)
	assert.Equal(t, ConfidenceUnverified, p.Confidence)
}

func TestGenerate_EmptyRetrievalNeverVerified(t *testing.T) {
	model := &fakeModel{response: "General advice: train consistently.\nCITED_CHUNKS: none"}
	gen := NewGenerator(model, log.NewNop())

	req := &Request{UserID: "user-1", PlanType: TypeWorkout}
	p, err := gen.Generate(context.Background(), req, testProfile(), &rag.Result{})
	require.NoError(t, err)

	assert.Equal(t, ConfidenceUnverified, p.Confidence)
	assert.Empty(t, p.Citations)
}

func TestGenerate_InvalidRequest(t *testing.T) {
	gen := NewGenerator(&fakeModel{}, log.NewNop())

	_, err := gen.Generate(context.Background(),
		&Request{UserID: "", PlanType: TypeWorkout}, testProfile(), testRetrieval())
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = gen.Generate(context.Background(),
		&Request{UserID: "u", PlanType: "cardio"}, testProfile(), testRetrieval())
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestGenerate_ModelErrorPropagates(t *testing.T) {
	model := &fakeModel{err: ErrGenerationRejected}
	gen := NewGenerator(model, log.NewNop())

	_, err := gen.Generate(context.Background(),
		&Request{UserID: "u", PlanType: TypeDiet}, testProfile(), testRetrieval())
	assert.ErrorIs(t, err, ErrGenerationRejected)
}

func TestGenerate_EmptyResponse(t *testing.T) {
	model := &fakeModel{response: "   "}
	gen := NewGenerator(model, log.NewNop())

	_, err := gen.Generate(context.Background(),
		&Request{UserID: "u", PlanType: TypeDiet}, testProfile(), testRetrieval())
	assert.ErrorIs(t, err, ErrGenerationUnavailable)
}

func TestDefaultQuery(t *testing.T) {
	prof := testProfile()
	assert.Equal(t, "weekly training program for muscle gain", DefaultQuery(TypeWorkout, prof))
	assert.Equal(t, "weekly meal plan for muscle gain", DefaultQuery(TypeDiet, prof))
	assert.True(t, strings.Contains(DefaultQuery(TypeWorkout, nil), "general fitness"))
}

func TestBuildPrompt_EmptyContext(t *testing.T) {
	prompt := BuildPrompt(&Request{UserID: "u", PlanType: TypeWorkout}, testProfile(), nil)
	assert.Contains(t, prompt, "(no relevant knowledge found)")
	assert.Contains(t, prompt, "(no progress data yet)")
}
