package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	mcpSdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/fitstack/fitplanner/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server on stdio",
	Long: `mcp exposes the planner over the Model Context Protocol so MCP
clients can search the knowledge base, read and generate plans, and log
progress. Communicates over stdin/stdout; logs go to stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, logger, err := setupApp(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		server, err := mcp.NewServer(mcp.Config{
			Name:    "fitplanner",
			Version: AppVersion,
			Planner: a.Planner,
			Logger:  logger,
		})
		if err != nil {
			return fmt.Errorf("creating MCP server: %w", err)
		}

		logger.Info("MCP server ready", "transport", "stdio")
		if err := server.Run(ctx, &mcpSdk.StdioTransport{}); err != nil {
			return fmt.Errorf("MCP server: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
