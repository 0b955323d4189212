// Package postgres implements the persistence interfaces consumed by the
// planner service: profiles, progress samples, and plans with atomic
// activation.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fitstack/fitplanner/internal/profile"
)

// ProfileStore persists user profiles.
type ProfileStore struct {
	pool *pgxpool.Pool
}

// NewProfileStore creates a profile store over an existing pool.
func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

// Get loads a profile by user ID.
func (s *ProfileStore) Get(ctx context.Context, userID string) (*profile.Profile, error) {
	var p profile.Profile
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, display_name, goal, level, dietary_type, location,
		       weight_kg, height_cm, age, created_at, updated_at
		FROM profiles
		WHERE user_id = $1`, userID).Scan(
		&p.UserID, &p.DisplayName, &p.Goal, &p.Level, &p.DietaryType, &p.Location,
		&p.WeightKg, &p.HeightCm, &p.Age, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", profile.ErrNotFound, userID)
		}
		return nil, fmt.Errorf("loading profile %s: %w", userID, err)
	}
	return &p, nil
}

// Put inserts or updates a profile.
func (s *ProfileStore) Put(ctx context.Context, p *profile.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (user_id, display_name, goal, level, dietary_type, location,
		                      weight_kg, height_cm, age, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			goal         = EXCLUDED.goal,
			level        = EXCLUDED.level,
			dietary_type = EXCLUDED.dietary_type,
			location     = EXCLUDED.location,
			weight_kg    = EXCLUDED.weight_kg,
			height_cm    = EXCLUDED.height_cm,
			age          = EXCLUDED.age,
			updated_at   = now()`,
		p.UserID, p.DisplayName, p.Goal, p.Level, p.DietaryType, p.Location,
		p.WeightKg, p.HeightCm, p.Age)
	if err != nil {
		return fmt.Errorf("saving profile %s: %w", p.UserID, err)
	}
	return nil
}
