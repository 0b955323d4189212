package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitstack/fitplanner/internal/plan"
	"github.com/fitstack/fitplanner/internal/planner"
	"github.com/fitstack/fitplanner/internal/profile"
	"github.com/fitstack/fitplanner/internal/testutil"
)

func seedProfile(t *testing.T, store *ProfileStore, userID string) {
	t.Helper()
	require.NoError(t, store.Put(context.Background(), &profile.Profile{
		UserID:      userID,
		Goal:        profile.GoalWeightLoss,
		Level:       profile.LevelBeginner,
		DietaryType: profile.DietOmnivore,
		Location:    profile.LocationGym,
		WeightKg:    80,
	}))
}

func newPlan(userID string, planType plan.Type) *plan.GeneratedPlan {
	id, _ := uuid.NewV7()
	return &plan.GeneratedPlan{
		ID:         id,
		UserID:     userID,
		PlanType:   planType,
		Content:    "plan content",
		Citations:  []string{"doc_aaa:000"},
		Confidence: plan.ConfidenceVerified,
		Status:     plan.StatusActive,
		Reason:     "initial",
		CreatedAt:  time.Now().UTC(),
	}
}

func TestProfileStore_Integration(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := NewProfileStore(db.Pool)
	ctx := context.Background()

	_, err := store.Get(ctx, "nobody")
	assert.ErrorIs(t, err, profile.ErrNotFound)

	seedProfile(t, store, "u1")

	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, profile.GoalWeightLoss, got.Goal)

	got.Goal = profile.GoalMaintenance
	require.NoError(t, store.Put(ctx, got))

	updated, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, profile.GoalMaintenance, updated.Goal)
}

func TestProgressStore_Integration(t *testing.T) {
	db := testutil.SetupTestDB(t)
	profiles := NewProfileStore(db.Pool)
	store := NewProgressStore(db.Pool)
	ctx := context.Background()

	seedProfile(t, profiles, "u1")

	base := time.Date(2026, 4, 6, 8, 0, 0, 0, time.UTC)
	for i, w := range []float64{80, 79.5, 79, 78.2, 77.9} {
		require.NoError(t, store.Add(ctx, &profile.ProgressSample{
			UserID: "u1", RecordedAt: base.AddDate(0, 0, 7*i),
			WeightKg: w, WorkoutsPlanned: 4, WorkoutsDone: 3,
		}))
	}

	samples, err := store.Recent(ctx, "u1", 3)
	require.NoError(t, err)
	require.Len(t, samples, 3, "window must cap at limit")

	// Newest three, ascending in time.
	assert.Equal(t, 79.0, samples[0].WeightKg)
	assert.Equal(t, 77.9, samples[2].WeightKg)
	assert.True(t, samples[0].RecordedAt.Before(samples[1].RecordedAt))
}

func TestPlanStore_Integration(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := NewPlanStore(db.Pool)
	ctx := context.Background()

	t.Run("no active plan", func(t *testing.T) {
		_, err := store.Active(ctx, "u1", plan.TypeWorkout)
		assert.ErrorIs(t, err, planner.ErrNoActivePlan)
	})

	first := newPlan("u1", plan.TypeWorkout)
	require.NoError(t, store.Activate(ctx, first, nil))

	t.Run("activate and read back", func(t *testing.T) {
		got, err := store.Active(ctx, "u1", plan.TypeWorkout)
		require.NoError(t, err)
		assert.Equal(t, first.ID, got.ID)
		assert.Equal(t, []string{"doc_aaa:000"}, got.Citations)
	})

	second := newPlan("u1", plan.TypeWorkout)
	firstID := first.ID.String()

	t.Run("conditional supersede", func(t *testing.T) {
		require.NoError(t, store.Activate(ctx, second, &firstID))

		got, err := store.Active(ctx, "u1", plan.TypeWorkout)
		require.NoError(t, err)
		assert.Equal(t, second.ID, got.ID)
	})

	t.Run("stale prior loses", func(t *testing.T) {
		loser := newPlan("u1", plan.TypeWorkout)
		err := store.Activate(ctx, loser, &firstID)
		assert.ErrorIs(t, err, planner.ErrRegenerationConflict)

		// The winner's plan is untouched.
		got, err := store.Active(ctx, "u1", plan.TypeWorkout)
		require.NoError(t, err)
		assert.Equal(t, second.ID, got.ID)
	})

	t.Run("plan types are independent", func(t *testing.T) {
		diet := newPlan("u1", plan.TypeDiet)
		require.NoError(t, store.Activate(ctx, diet, nil))

		got, err := store.Active(ctx, "u1", plan.TypeDiet)
		require.NoError(t, err)
		assert.Equal(t, diet.ID, got.ID)

		workout, err := store.Active(ctx, "u1", plan.TypeWorkout)
		require.NoError(t, err)
		assert.Equal(t, second.ID, workout.ID)
	})

	t.Run("history newest first", func(t *testing.T) {
		history, err := store.History(ctx, "u1", plan.TypeWorkout, 10)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, plan.StatusActive, history[0].Status)
		assert.Equal(t, plan.StatusSuperseded, history[1].Status)
	})
}
