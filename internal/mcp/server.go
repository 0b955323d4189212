// Package mcp exposes the planner over the Model Context Protocol so MCP
// clients (IDE assistants, desktop agents) can search the knowledge base,
// read plans, and log progress through stdio transport.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/fitstack/fitplanner/internal/log"
	"github.com/fitstack/fitplanner/internal/plan"
	"github.com/fitstack/fitplanner/internal/planner"
	"github.com/fitstack/fitplanner/internal/profile"
)

// Planner is the subset of the planning service the MCP tools call.
type Planner interface {
	GeneratePlan(ctx context.Context, userID string, planType plan.Type, query string) (*plan.GeneratedPlan, error)
	ActivePlan(ctx context.Context, userID string, planType plan.Type) (*plan.GeneratedPlan, error)
	LogProgress(ctx context.Context, sample *profile.ProgressSample) (*planner.Decision, error)
	Answer(ctx context.Context, userID, query, category string) (*planner.AnswerResult, error)
}

// Server wraps the MCP SDK server around the planner.
type Server struct {
	mcpServer *mcp.Server
	svc       Planner
	logger    log.Logger
}

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
	Planner Planner
	Logger  log.Logger
}

// NewServer creates an MCP server with all planner tools registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Planner == nil {
		return nil, fmt.Errorf("planner is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	s := &Server{
		mcpServer: mcp.NewServer(&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		}, nil),
		svc:    cfg.Planner,
		logger: cfg.Logger,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}
	return s, nil
}

// Run starts the MCP server on the given transport. Blocks until the
// transport closes or ctx is canceled.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.mcpServer.Run(ctx, transport)
}

func (s *Server) registerTools() error {
	if err := s.registerSearchKnowledge(); err != nil {
		return err
	}
	if err := s.registerGetActivePlan(); err != nil {
		return err
	}
	if err := s.registerGeneratePlan(); err != nil {
		return err
	}
	return s.registerLogProgress()
}

// SearchKnowledgeInput defines the input schema for the search_knowledge tool.
type SearchKnowledgeInput struct {
	Query    string `json:"query" jsonschema:"The question or topic to search the fitness knowledge base for"`
	UserID   string `json:"user_id,omitempty" jsonschema:"Optional user ID; when set the query is enhanced with that user's goal and experience level"`
	Category string `json:"category,omitempty" jsonschema:"Optional category filter: workout, diet, recovery, or nutrition"`
}

func (s *Server) registerSearchKnowledge() error {
	inputSchema, err := jsonschema.For[SearchKnowledgeInput](nil)
	if err != nil {
		return fmt.Errorf("schema for search_knowledge: %w", err)
	}

	tool := &mcp.Tool{
		Name: "search_knowledge",
		Description: "Answer a fitness or nutrition question from the curated knowledge base. " +
			"Returns a grounded answer with chunk citations and the supporting knowledge chunks.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in SearchKnowledgeInput) (*mcp.CallToolResult, any, error) {
		result, err := s.svc.Answer(ctx, in.UserID, in.Query, in.Category)
		if err != nil {
			return toolError(err), nil, nil
		}
		return textResult(formatAnswer(result)), nil, nil
	})
	return nil
}

// GetActivePlanInput defines the input schema for the get_active_plan tool.
type GetActivePlanInput struct {
	UserID   string `json:"user_id" jsonschema:"The user whose plan to fetch"`
	PlanType string `json:"plan_type" jsonschema:"The plan type: workout or diet"`
}

func (s *Server) registerGetActivePlan() error {
	inputSchema, err := jsonschema.For[GetActivePlanInput](nil)
	if err != nil {
		return fmt.Errorf("schema for get_active_plan: %w", err)
	}

	tool := &mcp.Tool{
		Name:        "get_active_plan",
		Description: "Fetch the user's currently active workout or diet plan, including its knowledge citations.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in GetActivePlanInput) (*mcp.CallToolResult, any, error) {
		planType := plan.Type(in.PlanType)
		if !planType.Valid() {
			return toolErrorf("unknown plan type %q (want workout or diet)", in.PlanType), nil, nil
		}
		p, err := s.svc.ActivePlan(ctx, in.UserID, planType)
		if err != nil {
			return toolError(err), nil, nil
		}
		return textResult(formatPlan(p)), nil, nil
	})
	return nil
}

// GeneratePlanInput defines the input schema for the generate_plan tool.
type GeneratePlanInput struct {
	UserID   string `json:"user_id" jsonschema:"The user to generate a plan for; their profile must exist"`
	PlanType string `json:"plan_type" jsonschema:"The plan type: workout or diet"`
	Query    string `json:"query,omitempty" jsonschema:"Optional retrieval query; defaults to one synthesized from the user's goal"`
}

func (s *Server) registerGeneratePlan() error {
	inputSchema, err := jsonschema.For[GeneratePlanInput](nil)
	if err != nil {
		return fmt.Errorf("schema for generate_plan: %w", err)
	}

	tool := &mcp.Tool{
		Name: "generate_plan",
		Description: "Generate and activate a new grounded workout or diet plan for the user. " +
			"Supersedes the current active plan of the same type.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in GeneratePlanInput) (*mcp.CallToolResult, any, error) {
		planType := plan.Type(in.PlanType)
		if !planType.Valid() {
			return toolErrorf("unknown plan type %q (want workout or diet)", in.PlanType), nil, nil
		}
		p, err := s.svc.GeneratePlan(ctx, in.UserID, planType, in.Query)
		if err != nil {
			return toolError(err), nil, nil
		}
		s.logger.Info("plan generated via mcp", "user_id", in.UserID, "plan_type", in.PlanType)
		return textResult(formatPlan(p)), nil, nil
	})
	return nil
}

// LogProgressInput defines the input schema for the log_progress tool.
type LogProgressInput struct {
	UserID          string  `json:"user_id" jsonschema:"The user logging the check-in"`
	WeightKg        float64 `json:"weight_kg" jsonschema:"Current body weight in kilograms"`
	WorkoutsPlanned int     `json:"workouts_planned,omitempty" jsonschema:"Workouts planned since the last check-in"`
	WorkoutsDone    int     `json:"workouts_done,omitempty" jsonschema:"Workouts completed since the last check-in"`
	Notes           string  `json:"notes,omitempty" jsonschema:"Optional free-form notes"`
}

func (s *Server) registerLogProgress() error {
	inputSchema, err := jsonschema.For[LogProgressInput](nil)
	if err != nil {
		return fmt.Errorf("schema for log_progress: %w", err)
	}

	tool := &mcp.Tool{
		Name: "log_progress",
		Description: "Record a progress check-in (weight and workout adherence). " +
			"When the trend analysis calls for it, stale plans are regenerated automatically.",
		InputSchema: inputSchema,
	}

	mcp.AddTool(s.mcpServer, tool, func(ctx context.Context, req *mcp.CallToolRequest, in LogProgressInput) (*mcp.CallToolResult, any, error) {
		sample := &profile.ProgressSample{
			UserID:          in.UserID,
			RecordedAt:      time.Now().UTC(),
			WeightKg:        in.WeightKg,
			WorkoutsPlanned: in.WorkoutsPlanned,
			WorkoutsDone:    in.WorkoutsDone,
			Notes:           in.Notes,
		}
		decision, err := s.svc.LogProgress(ctx, sample)
		if err != nil {
			return toolError(err), nil, nil
		}
		payload, err := json.MarshalIndent(decision, "", "  ")
		if err != nil {
			return nil, nil, fmt.Errorf("encoding decision: %w", err)
		}
		return textResult(string(payload)), nil, nil
	})
	return nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
		IsError: true,
	}
}

func toolErrorf(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

func formatAnswer(result *planner.AnswerResult) string {
	var b strings.Builder
	if result.LowConfidence {
		b.WriteString("(low confidence: profile filters matched nothing, using category-wide results)\n\n")
	}
	b.WriteString(result.AnswerText)
	fmt.Fprintf(&b, "\n\nConfidence: %s", result.Confidence)
	for _, c := range result.Citations {
		fmt.Fprintf(&b, "\n  [%s] %s", c.ChunkID, c.Source)
	}
	if len(result.Chunks) > 0 {
		b.WriteString("\n\nSupporting chunks:")
		for _, ch := range result.Chunks {
			fmt.Fprintf(&b, "\n[%s] (similarity %.3f)\n%s", ch.ChunkID, ch.Similarity, ch.Text)
		}
	}
	return b.String()
}

func formatPlan(p *plan.GeneratedPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan %s (%s, %s, confidence: %s)\n", p.ID, p.PlanType, p.Status, p.Confidence)
	if p.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", p.Reason)
	}
	b.WriteString("\n")
	b.WriteString(p.Content)
	if len(p.Citations) > 0 {
		fmt.Fprintf(&b, "\n\nSources: %s", strings.Join(p.Citations, ", "))
	}
	return b.String()
}
