package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fitstack/fitplanner/internal/plan"
)

var planQuery string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Generate, regenerate, and inspect plans",
}

var planGenerateCmd = &cobra.Command{
	Use:   "generate <user-id> <workout|diet>",
	Short: "Generate and activate a plan",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		planType := plan.Type(args[1])
		if !planType.Valid() {
			return fmt.Errorf("unknown plan type %q (want workout or diet)", args[1])
		}

		a, _, err := setupApp(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		p, err := a.Planner.GeneratePlan(ctx, args[0], planType, planQuery)
		if err != nil {
			return err
		}
		printPlan(p)
		return nil
	},
}

var planRegenerateCmd = &cobra.Command{
	Use:   "regenerate <user-id> <workout|diet>",
	Short: "Regenerate the active plan from logged progress",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		planType := plan.Type(args[1])
		if !planType.Valid() {
			return fmt.Errorf("unknown plan type %q (want workout or diet)", args[1])
		}

		a, _, err := setupApp(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		p, err := a.Planner.RegeneratePlan(ctx, args[0], planType)
		if err != nil {
			return err
		}
		printPlan(p)
		return nil
	},
}

var planShowCmd = &cobra.Command{
	Use:   "show <user-id> <workout|diet>",
	Short: "Show the active plan",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		planType := plan.Type(args[1])
		if !planType.Valid() {
			return fmt.Errorf("unknown plan type %q (want workout or diet)", args[1])
		}

		a, _, err := setupApp(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		p, err := a.Planner.ActivePlan(ctx, args[0], planType)
		if err != nil {
			return err
		}
		printPlan(p)
		return nil
	},
}

func printPlan(p *plan.GeneratedPlan) {
	fmt.Printf("Plan %s (%s, %s, confidence: %s)\n", p.ID, p.PlanType, p.Status, p.Confidence)
	if p.Reason != "" {
		fmt.Printf("Reason: %s\n", p.Reason)
	}
	fmt.Println()
	fmt.Println(p.Content)
	if len(p.Citations) > 0 {
		fmt.Printf("\nSources: %s\n", strings.Join(p.Citations, ", "))
	}
}

func init() {
	planGenerateCmd.Flags().StringVar(&planQuery, "query", "",
		"retrieval query (default: synthesized from the profile)")

	planCmd.AddCommand(planGenerateCmd, planRegenerateCmd, planShowCmd)
	rootCmd.AddCommand(planCmd)
}
