package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/fitstack/fitplanner/internal/knowledge"
)

// acquireIngestLock takes an exclusive file lock so concurrent ingest and
// fetch runs can't interleave their delete-then-upsert sequences on the
// same document. Returns an unlock func.
func acquireIngestLock() (func(), error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	lockPath := filepath.Join(home, ".fitplanner", "ingest.lock")
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring ingest lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another ingest is running (lock: %s)", lockPath)
	}
	return func() { _ = fl.Unlock() }, nil
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Index a directory of knowledge documents",
	Long: `ingest loads every .json document under the directory, chunks and
embeds them, and replaces their chunks in the vector index.
Re-ingesting a document is idempotent; documents that fail are reported
and skipped without blocking the rest.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

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

		docs, err := knowledge.LoadDir(args[0])
		if err != nil {
			return err
		}

		report, err := a.Ingester.IngestAll(ctx, docs)
		if err != nil {
			return err
		}

		fmt.Printf("Ingested %d documents (%d chunks)\n", report.Ingested, report.Chunks)
		for sourceID, docErr := range report.Failed {
			fmt.Printf("  FAILED %s: %v\n", sourceID, docErr)
		}
		if len(report.Failed) > 0 {
			logger.Warn("ingest finished with failures", "failed", len(report.Failed))
			return fmt.Errorf("%d documents failed", len(report.Failed))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
