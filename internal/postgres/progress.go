package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fitstack/fitplanner/internal/profile"
)

// ProgressStore persists progress check-ins.
type ProgressStore struct {
	pool *pgxpool.Pool
}

// NewProgressStore creates a progress store over an existing pool.
func NewProgressStore(pool *pgxpool.Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

// Add stores one check-in.
func (s *ProgressStore) Add(ctx context.Context, sample *profile.ProgressSample) error {
	if err := sample.Validate(); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO progress_samples (user_id, recorded_at, weight_kg, workouts_planned, workouts_done, notes)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		sample.UserID, sample.RecordedAt, sample.WeightKg,
		sample.WorkoutsPlanned, sample.WorkoutsDone, sample.Notes)
	if err != nil {
		return fmt.Errorf("storing progress sample: %w", err)
	}
	return nil
}

// recentSamplesSQL selects the newest samples then reverses them so
// trend analysis sees oldest to newest. The subquery alias must not be
// a reserved keyword ("window" parses as the start of a WINDOW clause).
const recentSamplesSQL = `
	SELECT user_id, recorded_at, weight_kg, workouts_planned, workouts_done, notes
	FROM (
		SELECT user_id, recorded_at, weight_kg, workouts_planned, workouts_done, notes
		FROM progress_samples
		WHERE user_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	) recent
	ORDER BY recorded_at ASC`

// Recent returns the newest samples for a user in recorded-time
// ascending order, capped at limit.
func (s *ProgressStore) Recent(ctx context.Context, userID string, limit int) ([]profile.ProgressSample, error) {
	if limit <= 0 {
		limit = 12
	}

	rows, err := s.pool.Query(ctx, recentSamplesSQL, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("loading progress for %s: %w", userID, err)
	}
	defer rows.Close()

	var samples []profile.ProgressSample
	for rows.Next() {
		var sm profile.ProgressSample
		if err := rows.Scan(&sm.UserID, &sm.RecordedAt, &sm.WeightKg,
			&sm.WorkoutsPlanned, &sm.WorkoutsDone, &sm.Notes); err != nil {
			return nil, fmt.Errorf("scanning progress sample: %w", err)
		}
		samples = append(samples, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading progress samples: %w", err)
	}
	return samples, nil
}
