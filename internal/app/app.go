// Package app wires the application: config, logging, database pool,
// Genkit, and every pipeline component, with ordered cleanup.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fitstack/fitplanner/db"
	"github.com/fitstack/fitplanner/internal/config"
	"github.com/fitstack/fitplanner/internal/embedding"
	"github.com/fitstack/fitplanner/internal/knowledge"
	"github.com/fitstack/fitplanner/internal/log"
	"github.com/fitstack/fitplanner/internal/observability"
	"github.com/fitstack/fitplanner/internal/plan"
	"github.com/fitstack/fitplanner/internal/planner"
	"github.com/fitstack/fitplanner/internal/postgres"
	"github.com/fitstack/fitplanner/internal/rag"
	"github.com/fitstack/fitplanner/internal/vecstore"
)

// App holds the wired application.
type App struct {
	Config *config.Config
	Logger log.Logger

	DBPool   *pgxpool.Pool
	Genkit   *genkit.Genkit
	Embedder ai.Embedder

	Gateway   *embedding.Gateway
	Index     *vecstore.Store
	Ingester  *knowledge.Ingester
	Retriever *rag.Retriever
	Generator *plan.Generator

	Profiles *postgres.ProfileStore
	Progress *postgres.ProgressStore
	Plans    *postgres.PlanStore

	Planner *planner.Service

	dbCleanup     func()
	traceShutdown func(context.Context) error
}

// Setup initializes the application. On error everything already
// initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, cleanup, err := newDBPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool
	a.dbCleanup = cleanup

	// Tracing must be registered before Genkit initialization so model
	// and embedder spans land on the exported TracerProvider.
	if cfg.Tracing.Enabled {
		shutdown, err := observability.SetupTracing(ctx, observability.Config{
			Endpoint:    cfg.Tracing.OTLPEndpoint,
			Environment: cfg.Tracing.Environment,
			ServiceName: cfg.Tracing.ServiceName,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("setting up tracing: %w", err)
		}
		a.traceShutdown = shutdown
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with gemini provider")
	}
	a.Genkit = g

	a.Embedder = googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if a.Embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}

	a.Gateway = embedding.NewGateway(a.Embedder, cfg.EmbedBatchSize, cfg.EmbedRateLimit, logger)
	a.Index = vecstore.NewStore(pool, logger)
	a.Ingester = knowledge.NewIngester(
		knowledge.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		a.Gateway, a.Index, logger)
	a.Retriever = rag.NewRetriever(a.Gateway, a.Index, cfg.TopK, logger)

	model := plan.NewGenkitModel(g, cfg.FullModelName(), cfg.Temperature, cfg.MaxTokens, logger)
	a.Generator = plan.NewGenerator(model, logger)

	a.Profiles = postgres.NewProfileStore(pool)
	a.Progress = postgres.NewProgressStore(pool)
	a.Plans = postgres.NewPlanStore(pool)

	a.Planner = planner.NewService(
		a.Profiles, a.Progress, a.Plans,
		a.Retriever, a.Generator,
		cfg.Regen, logger)

	return a, nil
}

// Close releases application resources. Spans are flushed before the
// pool closes so shutdown traces still make it out.
func (a *App) Close() error {
	var errs []error

	if a.traceShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.traceShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flushing traces: %w", err))
		}
		cancel()
		a.traceShutdown = nil
	}

	if a.dbCleanup != nil {
		a.dbCleanup()
		a.dbCleanup = nil
	}

	return errors.Join(errs...)
}

// newDBPool runs migrations and opens a pool sized for a small service.
func newDBPool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}
