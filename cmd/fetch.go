package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fitstack/fitplanner/internal/knowledge"
)

var (
	fetchCategory string
	fetchTags     []string
	fetchDepth    int
	fetchMaxPages int
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Import knowledge from a web page",
	Long: `fetch crawls a page (and optionally its same-host links), extracts the
readable article content, and indexes it under the given category. The
page URL becomes the document source ID, so fetching the same page again
replaces its chunks instead of duplicating them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		tags, err := parseTags(fetchTags)
		if err != nil {
			return err
		}

		unlock, err := acquireIngestLock()
		if err != nil {
			return err
		}
		defer unlock()

		a, logger, err := setupApp(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		fetcher := knowledge.NewFetcher(fetchDepth, fetchMaxPages, logger)
		docs, err := fetcher.Fetch(args[0], fetchCategory, tags)
		if err != nil {
			return err
		}
		fmt.Printf("Fetched %d readable pages\n", len(docs))

		report, err := a.Ingester.IngestAll(ctx, docs)
		if err != nil {
			return err
		}
		fmt.Printf("Ingested %d documents (%d chunks)\n", report.Ingested, report.Chunks)
		for sourceID, docErr := range report.Failed {
			fmt.Printf("  FAILED %s: %v\n", sourceID, docErr)
		}
		if len(report.Failed) > 0 {
			return fmt.Errorf("%d pages failed", len(report.Failed))
		}
		return nil
	},
}

// parseTags converts repeated key=value flags into a tag map.
func parseTags(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	tags := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" || value == "" {
			return nil, fmt.Errorf("invalid tag %q (want key=value)", pair)
		}
		tags[key] = value
	}
	return tags, nil
}

func init() {
	fetchCmd.Flags().StringVar(&fetchCategory, "category", "",
		"document category: workout, diet, recovery, or nutrition (required)")
	fetchCmd.Flags().StringArrayVar(&fetchTags, "tag", nil,
		"filterable tag as key=value (repeatable)")
	fetchCmd.Flags().IntVar(&fetchDepth, "depth", 1,
		"crawl depth; 1 fetches only the given URL")
	fetchCmd.Flags().IntVar(&fetchMaxPages, "max-pages", 10,
		"maximum pages to fetch")
	_ = fetchCmd.MarkFlagRequired("category")
	rootCmd.AddCommand(fetchCmd)
}
