package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fitstack/fitplanner/internal/plan"
	"github.com/fitstack/fitplanner/internal/planner"
)

// uniqueViolation is the PostgreSQL error code raised when two
// transactions race the partial unique index on active plans.
const uniqueViolation = "23505"

// PlanStore persists plans. The plans table carries a partial unique
// index on (user_id, plan_type) WHERE status = 'active', so the
// invariant of at most one active plan per user and type holds even if
// application logic slips.
type PlanStore struct {
	pool *pgxpool.Pool
}

// NewPlanStore creates a plan store over an existing pool.
func NewPlanStore(pool *pgxpool.Pool) *PlanStore {
	return &PlanStore{pool: pool}
}

// Activate supersedes the current active plan and inserts p as the new
// one, in a single transaction. When priorID is non-nil the supersede
// is conditional: if that plan is no longer active, a concurrent
// regeneration won and the call fails with ErrRegenerationConflict.
func (s *PlanStore) Activate(ctx context.Context, p *plan.GeneratedPlan, priorID *string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning activation: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if priorID != nil {
		tag, err := tx.Exec(ctx, `
			UPDATE plans SET status = 'superseded'
			WHERE id = $1 AND status = 'active'`, *priorID)
		if err != nil {
			return fmt.Errorf("superseding plan %s: %w", *priorID, err)
		}
		if tag.RowsAffected() != 1 {
			return fmt.Errorf("%w: plan %s is no longer active", planner.ErrRegenerationConflict, *priorID)
		}
	} else {
		if _, err := tx.Exec(ctx, `
			UPDATE plans SET status = 'superseded'
			WHERE user_id = $1 AND plan_type = $2 AND status = 'active'`,
			p.UserID, p.PlanType); err != nil {
			return fmt.Errorf("superseding active plan: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO plans (id, user_id, plan_type, content, citations, confidence, status, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.UserID, p.PlanType, p.Content, p.Citations,
		p.Confidence, p.Status, p.Reason, p.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: another plan was activated concurrently", planner.ErrRegenerationConflict)
		}
		return fmt.Errorf("inserting plan: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: another plan was activated concurrently", planner.ErrRegenerationConflict)
		}
		return fmt.Errorf("committing activation: %w", err)
	}
	return nil
}

// Active returns the user's active plan of the given type.
func (s *PlanStore) Active(ctx context.Context, userID string, planType plan.Type) (*plan.GeneratedPlan, error) {
	p, err := s.scanOne(s.pool.QueryRow(ctx, `
		SELECT id, user_id, plan_type, content, citations, confidence, status, reason, created_at
		FROM plans
		WHERE user_id = $1 AND plan_type = $2 AND status = 'active'`,
		userID, planType))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: user %s has no active %s plan", planner.ErrNoActivePlan, userID, planType)
		}
		return nil, fmt.Errorf("loading active plan: %w", err)
	}
	return p, nil
}

// History returns the user's plans of a type, newest first.
func (s *PlanStore) History(ctx context.Context, userID string, planType plan.Type, limit int) ([]plan.GeneratedPlan, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, plan_type, content, citations, confidence, status, reason, created_at
		FROM plans
		WHERE user_id = $1 AND plan_type = $2
		ORDER BY created_at DESC
		LIMIT $3`, userID, planType, limit)
	if err != nil {
		return nil, fmt.Errorf("loading plan history: %w", err)
	}
	defer rows.Close()

	var plans []plan.GeneratedPlan
	for rows.Next() {
		p, err := s.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning plan: %w", err)
		}
		plans = append(plans, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading plans: %w", err)
	}
	return plans, nil
}

func (s *PlanStore) scanOne(row pgx.Row) (*plan.GeneratedPlan, error) {
	var p plan.GeneratedPlan
	if err := row.Scan(&p.ID, &p.UserID, &p.PlanType, &p.Content, &p.Citations,
		&p.Confidence, &p.Status, &p.Reason, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
