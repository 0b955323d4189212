package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	askUserID   string
	askCategory string
)

var askShowChunks bool

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the knowledge base a question",
	Long: `ask answers a question from the indexed knowledge, citing the chunks
the answer draws on. With --user the query is enhanced with that user's
goal and experience level and their profile filters apply.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, _, err := setupApp(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		result, err := a.Planner.Answer(ctx, askUserID, strings.Join(args, " "), askCategory)
		if err != nil {
			return err
		}

		if result.LowConfidence {
			fmt.Println("(low confidence: profile filters matched nothing, using category-wide results)")
		}
		fmt.Println(result.AnswerText)
		if result.Confidence != "" {
			fmt.Printf("\nConfidence: %s\n", result.Confidence)
		}
		for _, c := range result.Citations {
			fmt.Printf("  [%s] %s\n", c.ChunkID, c.Source)
		}
		if askShowChunks {
			fmt.Println()
			for _, ch := range result.Chunks {
				fmt.Printf("[%s] %.3f\n%s\n\n", ch.ChunkID, ch.Similarity, ch.Text)
			}
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askUserID, "user", "", "user ID for profile-enhanced retrieval")
	askCmd.Flags().StringVar(&askCategory, "category", "", "restrict to a category (workout, diet, recovery, nutrition)")
	askCmd.Flags().BoolVar(&askShowChunks, "show-chunks", false, "print the retrieved chunks under the answer")
	rootCmd.AddCommand(askCmd)
}
