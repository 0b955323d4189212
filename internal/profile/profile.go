// Package profile defines the user profile and progress domain types
// shared by retrieval, plan generation, and the regeneration controller.
package profile

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound indicates the requested profile does not exist.
	ErrNotFound = errors.New("profile not found")

	// ErrInvalidProfile indicates a profile failed validation.
	ErrInvalidProfile = errors.New("invalid profile")
)

// Goal is the user's primary training objective.
type Goal string

const (
	GoalWeightLoss  Goal = "weight_loss"
	GoalMuscleGain  Goal = "muscle_gain"
	GoalEndurance   Goal = "endurance"
	GoalMaintenance Goal = "maintenance"
)

// ExperienceLevel is the user's training experience bracket.
type ExperienceLevel string

const (
	LevelBeginner     ExperienceLevel = "beginner"
	LevelIntermediate ExperienceLevel = "intermediate"
	LevelAdvanced     ExperienceLevel = "advanced"
)

// DietaryType is the user's dietary preference, used as a hard retrieval
// filter for diet content.
type DietaryType string

const (
	DietOmnivore   DietaryType = "omnivore"
	DietVegetarian DietaryType = "vegetarian"
	DietVegan      DietaryType = "vegan"
)

// TrainingLocation is where the user trains, used as a hard retrieval
// filter for workout content.
type TrainingLocation string

const (
	LocationGym  TrainingLocation = "gym"
	LocationHome TrainingLocation = "home"
)

// Profile captures the attributes that personalize retrieval and
// generation. Goal and Level bias semantic search; DietaryType and
// Location are hard filters so a vegan user never sees omnivore recipes
// and a home trainer never gets machine-only routines.
type Profile struct {
	UserID      string           `json:"user_id"`
	DisplayName string           `json:"display_name,omitempty"`
	Goal        Goal             `json:"goal"`
	Level       ExperienceLevel  `json:"level"`
	DietaryType DietaryType      `json:"dietary_type"`
	Location    TrainingLocation `json:"location"`
	WeightKg    float64          `json:"weight_kg,omitempty"`
	HeightCm    float64          `json:"height_cm,omitempty"`
	Age         int              `json:"age,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Validate checks the profile fields that retrieval and generation
// depend on. Optional biometrics (weight, height, age) are only range
// checked when present.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return fmt.Errorf("%w: user ID is empty", ErrInvalidProfile)
	}
	switch p.Goal {
	case GoalWeightLoss, GoalMuscleGain, GoalEndurance, GoalMaintenance:
	default:
		return fmt.Errorf("%w: unknown goal %q", ErrInvalidProfile, p.Goal)
	}
	switch p.Level {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
	default:
		return fmt.Errorf("%w: unknown experience level %q", ErrInvalidProfile, p.Level)
	}
	switch p.DietaryType {
	case DietOmnivore, DietVegetarian, DietVegan:
	default:
		return fmt.Errorf("%w: unknown dietary type %q", ErrInvalidProfile, p.DietaryType)
	}
	switch p.Location {
	case LocationGym, LocationHome:
	default:
		return fmt.Errorf("%w: unknown training location %q", ErrInvalidProfile, p.Location)
	}
	if p.WeightKg < 0 || p.WeightKg > 500 {
		return fmt.Errorf("%w: weight %.1f kg out of range", ErrInvalidProfile, p.WeightKg)
	}
	if p.HeightCm < 0 || p.HeightCm > 300 {
		return fmt.Errorf("%w: height %.1f cm out of range", ErrInvalidProfile, p.HeightCm)
	}
	if p.Age < 0 || p.Age > 150 {
		return fmt.Errorf("%w: age %d out of range", ErrInvalidProfile, p.Age)
	}
	return nil
}

// ProgressSample is one logged check-in: a weight measurement plus the
// workout adherence for the period since the previous sample.
type ProgressSample struct {
	UserID string `json:"user_id"`

	// RecordedAt orders samples; trend analysis sorts by it ascending.
	RecordedAt time.Time `json:"recorded_at"`

	WeightKg float64 `json:"weight_kg"`

	// WorkoutsPlanned and WorkoutsDone yield the adherence ratio for the
	// period. Zero planned workouts means adherence is undefined for the
	// sample and it is skipped in the aggregate.
	WorkoutsPlanned int `json:"workouts_planned"`
	WorkoutsDone    int `json:"workouts_done"`

	Notes string `json:"notes,omitempty"`
}

// Validate checks sample sanity before persistence.
func (s *ProgressSample) Validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return fmt.Errorf("%w: user ID is empty", ErrInvalidProfile)
	}
	if s.RecordedAt.IsZero() {
		return fmt.Errorf("%w: recorded_at is zero", ErrInvalidProfile)
	}
	if s.WeightKg <= 0 || s.WeightKg > 500 {
		return fmt.Errorf("%w: weight %.1f kg out of range", ErrInvalidProfile, s.WeightKg)
	}
	if s.WorkoutsPlanned < 0 || s.WorkoutsDone < 0 {
		return fmt.Errorf("%w: negative workout counts", ErrInvalidProfile)
	}
	if s.WorkoutsDone > s.WorkoutsPlanned {
		return fmt.Errorf("%w: done %d exceeds planned %d", ErrInvalidProfile, s.WorkoutsDone, s.WorkoutsPlanned)
	}
	return nil
}

// Adherence returns the completion ratio for the sample and whether it
// is defined (false when no workouts were planned).
func (s *ProgressSample) Adherence() (float64, bool) {
	if s.WorkoutsPlanned == 0 {
		return 0, false
	}
	return float64(s.WorkoutsDone) / float64(s.WorkoutsPlanned), true
}
