package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/fitstack/fitplanner/internal/profile"
)

var (
	progressPlanned int
	progressDone    int
	progressNotes   string
)

var progressCmd = &cobra.Command{
	Use:   "progress <user-id> <weight-kg>",
	Short: "Log a progress check-in",
	Long: `progress records a weight and workout-adherence sample for the user.
When enough samples exist the trend is analyzed and, if auto triggering
is enabled, stale plans are regenerated immediately.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		weight, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid weight %q: %w", args[1], err)
		}

		a, _, err := setupApp(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		sample := &profile.ProgressSample{
			UserID:          args[0],
			RecordedAt:      time.Now().UTC(),
			WeightKg:        weight,
			WorkoutsPlanned: progressPlanned,
			WorkoutsDone:    progressDone,
			Notes:           progressNotes,
		}

		decision, err := a.Planner.LogProgress(ctx, sample)
		if err != nil {
			return err
		}

		fmt.Printf("Logged %.1f kg for %s\n", weight, args[0])
		if decision == nil {
			return nil
		}
		if decision.Regenerate {
			fmt.Printf("Plans regenerated: %s\n", decision.Reason)
			for _, adj := range decision.Adjustments {
				fmt.Printf("  - %s\n", adj)
			}
		} else {
			fmt.Println("Plans unchanged; trend within tolerance.")
		}
		return nil
	},
}

func init() {
	progressCmd.Flags().IntVar(&progressPlanned, "planned", 0, "workouts planned since the last check-in")
	progressCmd.Flags().IntVar(&progressDone, "done", 0, "workouts completed since the last check-in")
	progressCmd.Flags().StringVar(&progressNotes, "notes", "", "free-form notes")
	rootCmd.AddCommand(progressCmd)
}
