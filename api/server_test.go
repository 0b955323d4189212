package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitstack/fitplanner/internal/log"
	"github.com/fitstack/fitplanner/internal/plan"
	"github.com/fitstack/fitplanner/internal/planner"
	"github.com/fitstack/fitplanner/internal/profile"
	"github.com/fitstack/fitplanner/internal/vecstore"
)

// mockPlanner lets each test pin the behavior of one endpoint.
type mockPlanner struct {
	generateFn   func(ctx context.Context, userID string, planType plan.Type, query string) (*plan.GeneratedPlan, error)
	regenerateFn func(ctx context.Context, userID string, planType plan.Type) (*plan.GeneratedPlan, error)
	activeFn     func(ctx context.Context, userID string, planType plan.Type) (*plan.GeneratedPlan, error)
	historyFn    func(ctx context.Context, userID string, planType plan.Type, limit int) ([]plan.GeneratedPlan, error)
	progressFn   func(ctx context.Context, sample *profile.ProgressSample) (*planner.Decision, error)
	answerFn     func(ctx context.Context, userID, query, category string) (*planner.AnswerResult, error)
}

func (m *mockPlanner) GeneratePlan(ctx context.Context, userID string, planType plan.Type, query string) (*plan.GeneratedPlan, error) {
	return m.generateFn(ctx, userID, planType, query)
}

func (m *mockPlanner) RegeneratePlan(ctx context.Context, userID string, planType plan.Type) (*plan.GeneratedPlan, error) {
	return m.regenerateFn(ctx, userID, planType)
}

func (m *mockPlanner) ActivePlan(ctx context.Context, userID string, planType plan.Type) (*plan.GeneratedPlan, error) {
	return m.activeFn(ctx, userID, planType)
}

func (m *mockPlanner) PlanHistory(ctx context.Context, userID string, planType plan.Type, limit int) ([]plan.GeneratedPlan, error) {
	return m.historyFn(ctx, userID, planType, limit)
}

func (m *mockPlanner) LogProgress(ctx context.Context, sample *profile.ProgressSample) (*planner.Decision, error) {
	return m.progressFn(ctx, sample)
}

func (m *mockPlanner) Answer(ctx context.Context, userID, query, category string) (*planner.AnswerResult, error) {
	return m.answerFn(ctx, userID, query, category)
}

type mockProfiles struct {
	getFn func(ctx context.Context, userID string) (*profile.Profile, error)
	putFn func(ctx context.Context, prof *profile.Profile) error
}

func (m *mockProfiles) Get(ctx context.Context, userID string) (*profile.Profile, error) {
	return m.getFn(ctx, userID)
}

func (m *mockProfiles) Put(ctx context.Context, prof *profile.Profile) error {
	return m.putFn(ctx, prof)
}

func samplePlan(t plan.Type) *plan.GeneratedPlan {
	id, _ := uuid.NewV7()
	return &plan.GeneratedPlan{
		ID: id, UserID: "u1", PlanType: t,
		Content:    "plan body",
		Citations:  []string{"doc_aaa:000"},
		Confidence: plan.ConfidenceVerified,
		Status:     plan.StatusActive,
		CreatedAt:  time.Now().UTC(),
	}
}

func newTestServer(svc Planner, profiles ProfileStore) http.Handler {
	return NewServer(svc, profiles, nil, log.NewNop()).Handler()
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestGeneratePlanEndpoint(t *testing.T) {
	svc := &mockPlanner{
		generateFn: func(_ context.Context, userID string, planType plan.Type, query string) (*plan.GeneratedPlan, error) {
			assert.Equal(t, "u1", userID)
			assert.Equal(t, plan.TypeWorkout, planType)
			assert.Equal(t, "push pull legs", query)
			return samplePlan(planType), nil
		},
	}
	handler := newTestServer(svc, &mockProfiles{})

	rec := doRequest(t, handler, http.MethodPost, "/api/users/u1/plans",
		`{"plan_type":"workout","query":"push pull legs"}`)

	require.Equal(t, http.StatusCreated, rec.Code)

	var got plan.GeneratedPlan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, plan.ConfidenceVerified, got.Confidence)
}

func TestGeneratePlanEndpoint_DomainErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unknown user", profile.ErrNotFound, http.StatusNotFound},
		{"invalid request", plan.ErrInvalidRequest, http.StatusBadRequest},
		{"rejected", plan.ErrGenerationRejected, http.StatusUnprocessableEntity},
		{"model down", plan.ErrGenerationUnavailable, http.StatusServiceUnavailable},
		{"index down", vecstore.ErrUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockPlanner{
				generateFn: func(_ context.Context, _ string, _ plan.Type, _ string) (*plan.GeneratedPlan, error) {
					return nil, tt.err
				},
			}
			handler := newTestServer(svc, &mockProfiles{})

			rec := doRequest(t, handler, http.MethodPost, "/api/users/u1/plans",
				`{"plan_type":"workout"}`)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRegenerateEndpoint_Conflict(t *testing.T) {
	svc := &mockPlanner{
		regenerateFn: func(_ context.Context, _ string, _ plan.Type) (*plan.GeneratedPlan, error) {
			return nil, planner.ErrRegenerationConflict
		},
	}
	handler := newTestServer(svc, &mockProfiles{})

	rec := doRequest(t, handler, http.MethodPost, "/api/users/u1/plans/workout/regenerate", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestActivePlanEndpoint(t *testing.T) {
	svc := &mockPlanner{
		activeFn: func(_ context.Context, _ string, planType plan.Type) (*plan.GeneratedPlan, error) {
			return samplePlan(planType), nil
		},
	}
	handler := newTestServer(svc, &mockProfiles{})

	rec := doRequest(t, handler, http.MethodGet, "/api/users/u1/plans/diet", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestActivePlanEndpoint_NotFound(t *testing.T) {
	svc := &mockPlanner{
		activeFn: func(_ context.Context, _ string, _ plan.Type) (*plan.GeneratedPlan, error) {
			return nil, planner.ErrNoActivePlan
		},
	}
	handler := newTestServer(svc, &mockProfiles{})

	rec := doRequest(t, handler, http.MethodGet, "/api/users/u1/plans/workout", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlanEndpoints_InvalidType(t *testing.T) {
	handler := newTestServer(&mockPlanner{}, &mockProfiles{})

	rec := doRequest(t, handler, http.MethodGet, "/api/users/u1/plans/cardio", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, handler, http.MethodPost, "/api/users/u1/plans/cardio/regenerate", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryEndpoint(t *testing.T) {
	svc := &mockPlanner{
		historyFn: func(_ context.Context, _ string, _ plan.Type, limit int) ([]plan.GeneratedPlan, error) {
			assert.Equal(t, 5, limit)
			return nil, nil
		},
	}
	handler := newTestServer(svc, &mockProfiles{})

	rec := doRequest(t, handler, http.MethodGet, "/api/users/u1/plans/workout/history?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String(), "nil history must serialize as empty array")
}

func TestHistoryEndpoint_BadLimit(t *testing.T) {
	handler := newTestServer(&mockPlanner{}, &mockProfiles{})

	rec := doRequest(t, handler, http.MethodGet, "/api/users/u1/plans/workout/history?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProgressEndpoint(t *testing.T) {
	svc := &mockPlanner{
		progressFn: func(_ context.Context, sample *profile.ProgressSample) (*planner.Decision, error) {
			assert.Equal(t, "u1", sample.UserID)
			assert.False(t, sample.RecordedAt.IsZero(), "recorded_at must default to now")
			return &planner.Decision{Regenerate: true, Reason: "weight plateau against a weight loss goal"}, nil
		},
	}
	handler := newTestServer(svc, &mockProfiles{})

	rec := doRequest(t, handler, http.MethodPost, "/api/users/u1/progress",
		`{"weight_kg":80.5,"workouts_planned":4,"workouts_done":2}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "weight plateau")
}

func TestProgressEndpoint_InvalidSample(t *testing.T) {
	svc := &mockPlanner{
		progressFn: func(_ context.Context, _ *profile.ProgressSample) (*planner.Decision, error) {
			return nil, profile.ErrInvalidProfile
		},
	}
	handler := newTestServer(svc, &mockProfiles{})

	rec := doRequest(t, handler, http.MethodPost, "/api/users/u1/progress", `{"weight_kg":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfileEndpoints(t *testing.T) {
	stored := make(map[string]*profile.Profile)
	profiles := &mockProfiles{
		putFn: func(_ context.Context, p *profile.Profile) error {
			stored[p.UserID] = p
			return nil
		},
		getFn: func(_ context.Context, userID string) (*profile.Profile, error) {
			p, ok := stored[userID]
			if !ok {
				return nil, profile.ErrNotFound
			}
			return p, nil
		},
	}
	handler := newTestServer(&mockPlanner{}, profiles)

	rec := doRequest(t, handler, http.MethodPut, "/api/profiles/u1",
		`{"user_id":"spoofed","goal":"weight_loss","level":"beginner","dietary_type":"vegan","location":"home"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", stored["u1"].UserID, "path user ID must win over body")

	rec = doRequest(t, handler, http.MethodGet, "/api/profiles/u1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, handler, http.MethodGet, "/api/profiles/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQueryEndpoint(t *testing.T) {
	svc := &mockPlanner{
		answerFn: func(_ context.Context, userID, query, category string) (*planner.AnswerResult, error) {
			assert.Equal(t, "u1", userID)
			assert.Equal(t, "nutrition", category)
			return &planner.AnswerResult{
				AnswerText: "Aim for 1.6 g/kg of protein daily.",
				Citations:  []planner.Citation{{ChunkID: "doc_aaa:000", Source: "protein-guide"}},
				Confidence: plan.ConfidenceVerified,
				Chunks:     []vecstore.ScoredChunk{{ChunkID: "doc_aaa:000", Text: "chunk", Similarity: 0.8}},
			}, nil
		},
	}
	handler := newTestServer(svc, &mockProfiles{})

	rec := doRequest(t, handler, http.MethodPost, "/api/query",
		`{"user_id":"u1","query":"protein intake","category":"nutrition"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "answer_text")
	assert.Contains(t, rec.Body.String(), "doc_aaa:000")
	assert.Contains(t, rec.Body.String(), `"confidence":"verified"`)
}

func TestQueryEndpoint_MissingQuery(t *testing.T) {
	handler := newTestServer(&mockPlanner{}, &mockProfiles{})

	rec := doRequest(t, handler, http.MethodPost, "/api/query", `{"user_id":"u1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestServer(&mockPlanner{}, &mockProfiles{})

	rec := doRequest(t, handler, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestReadyEndpoint_NoPool(t *testing.T) {
	handler := newTestServer(&mockPlanner{}, &mockProfiles{})

	rec := doRequest(t, handler, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	svc := &mockPlanner{
		activeFn: func(_ context.Context, _ string, _ plan.Type) (*plan.GeneratedPlan, error) {
			panic("boom")
		},
	}
	handler := newTestServer(svc, &mockProfiles{})

	rec := doRequest(t, handler, http.MethodGet, "/api/users/u1/plans/workout", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestInvalidJSONBodies(t *testing.T) {
	handler := newTestServer(&mockPlanner{}, &mockProfiles{})

	for _, path := range []string{
		"/api/users/u1/plans",
		"/api/users/u1/progress",
		"/api/query",
	} {
		rec := doRequest(t, handler, http.MethodPost, path, `{broken`)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}

	rec := doRequest(t, handler, http.MethodPut, "/api/profiles/u1", `{broken`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
