package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fitstack/fitplanner/internal/config"
	"github.com/fitstack/fitplanner/internal/profile"
)

// Trend classifies a user's weight trajectory over recent samples.
type Trend string

const (
	TrendLosing       Trend = "losing"
	TrendGaining      Trend = "gaining"
	TrendMaintaining  Trend = "maintaining"
	TrendInsufficient Trend = "insufficient_data"
)

// Analysis is the deterministic summary of a progress window. The same
// samples and thresholds always produce the same analysis.
type Analysis struct {
	Trend         Trend   `json:"trend"`
	WeightDeltaKg float64 `json:"weight_delta_kg"`
	Samples       int     `json:"samples"`

	// Adherence aggregates workout completion across samples that
	// planned at least one workout. Defined is false when none did.
	Adherence        float64 `json:"adherence"`
	AdherenceDefined bool    `json:"adherence_defined"`
}

// AnalyzeTrend computes the weight trend and adherence over the given
// samples. Samples are evaluated in recorded-time order regardless of
// input order; fewer than cfg.MinSamples yields TrendInsufficient.
func AnalyzeTrend(samples []profile.ProgressSample, cfg config.RegenConfig) Analysis {
	a := Analysis{Trend: TrendInsufficient, Samples: len(samples)}
	if len(samples) == 0 {
		return a
	}

	ordered := make([]profile.ProgressSample, len(samples))
	copy(ordered, samples)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].RecordedAt.Before(ordered[j].RecordedAt)
	})

	a.WeightDeltaKg = ordered[len(ordered)-1].WeightKg - ordered[0].WeightKg

	var planned, done int
	for _, s := range ordered {
		planned += s.WorkoutsPlanned
		done += s.WorkoutsDone
	}
	if planned > 0 {
		a.Adherence = float64(done) / float64(planned)
		a.AdherenceDefined = true
	}

	if len(ordered) < cfg.MinSamples {
		return a
	}

	switch {
	case a.WeightDeltaKg > cfg.WeightEpsilonKg:
		a.Trend = TrendGaining
	case a.WeightDeltaKg < -cfg.WeightEpsilonKg:
		a.Trend = TrendLosing
	default:
		a.Trend = TrendMaintaining
	}

	return a
}

// Decision is the outcome of evaluating an analysis against the user's
// goal.
type Decision struct {
	Regenerate bool   `json:"regenerate"`
	Reason     string `json:"reason,omitempty"`

	// Adjustments feed the regeneration prompt so the new plan responds
	// to the observed trend instead of repeating the old one.
	Adjustments []string `json:"adjustments,omitempty"`
}

// Evaluate maps (goal, trend, adherence) to a regeneration decision.
// The mapping is a fixed table: a trend moving against the goal, or a
// stall against a change goal, or poor adherence triggers regeneration.
func Evaluate(goal profile.Goal, a Analysis, cfg config.RegenConfig) Decision {
	if a.Trend == TrendInsufficient {
		return Decision{}
	}

	var d Decision

	switch goal {
	case profile.GoalWeightLoss:
		switch a.Trend {
		case TrendGaining:
			d.Regenerate = true
			d.Reason = "weight gaining against a weight loss goal"
			d.Adjustments = append(d.Adjustments,
				"increase the caloric deficit",
				"add low-intensity cardio volume")
		case TrendMaintaining:
			d.Regenerate = true
			d.Reason = "weight plateau against a weight loss goal"
			d.Adjustments = append(d.Adjustments,
				"tighten portion guidance",
				"vary training stimulus to break the plateau")
		}
	case profile.GoalMuscleGain:
		switch a.Trend {
		case TrendLosing:
			d.Regenerate = true
			d.Reason = "weight dropping against a muscle gain goal"
			d.Adjustments = append(d.Adjustments,
				"increase the caloric surplus",
				"reduce accessory cardio")
		case TrendMaintaining:
			d.Regenerate = true
			d.Reason = "weight plateau against a muscle gain goal"
			d.Adjustments = append(d.Adjustments,
				"raise daily calorie and protein targets")
		}
	case profile.GoalMaintenance:
		if a.Trend != TrendMaintaining {
			d.Regenerate = true
			d.Reason = fmt.Sprintf("weight %s against a maintenance goal", a.Trend)
			d.Adjustments = append(d.Adjustments,
				"rebalance calories toward maintenance")
		}
	case profile.GoalEndurance:
		// Endurance plans do not key off weight; only adherence below.
	}

	if a.AdherenceDefined && a.Adherence < cfg.AdherenceThreshold {
		if !d.Regenerate {
			d.Regenerate = true
			d.Reason = fmt.Sprintf("workout adherence %.0f%% below target", a.Adherence*100)
		}
		d.Adjustments = append(d.Adjustments,
			"reduce weekly session count and per-session volume")
	}

	return d
}

// ProgressNote renders the analysis and decision for the generation
// prompt.
func ProgressNote(a Analysis, d Decision) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Over the last %d check-ins the user's weight changed by %+.1f kg (trend: %s).",
		a.Samples, a.WeightDeltaKg, a.Trend)
	if a.AdherenceDefined {
		fmt.Fprintf(&sb, " Workout adherence was %.0f%%.", a.Adherence*100)
	}
	if d.Reason != "" {
		fmt.Fprintf(&sb, "\nRegeneration trigger: %s.", d.Reason)
	}
	if len(d.Adjustments) > 0 {
		sb.WriteString("\nApply these adjustments:")
		for _, adj := range d.Adjustments {
			fmt.Fprintf(&sb, "\n- %s", adj)
		}
	}
	return sb.String()
}
