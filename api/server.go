// Package api exposes the planner over HTTP REST.
//
// Endpoints:
//
//	GET  /health                                liveness probe
//	GET  /ready                                 readiness probe (DB ping)
//	PUT  /api/profiles/{userID}                 create or update a profile
//	GET  /api/profiles/{userID}                 fetch a profile
//	POST /api/users/{userID}/progress           log a progress check-in
//	POST /api/users/{userID}/plans              generate and activate a plan
//	GET  /api/users/{userID}/plans/{type}       fetch the active plan
//	POST /api/users/{userID}/plans/{type}/regenerate  force regeneration
//	GET  /api/users/{userID}/plans/{type}/history     list past plans
//	POST /api/query                             grounded knowledge Q&A
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fitstack/fitplanner/internal/log"
	"github.com/fitstack/fitplanner/internal/plan"
	"github.com/fitstack/fitplanner/internal/planner"
	"github.com/fitstack/fitplanner/internal/profile"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:3500"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads to prevent Slowloris-style
	// connection exhaustion.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 30 * time.Second

	// WriteTimeout is generous because plan generation holds the request
	// open through retrieval and model calls.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the keep-alive idle limit.
	IdleTimeout = 120 * time.Second
)

// Planner is the service surface the handlers consume. Implemented by
// planner.Service; tests substitute a mock.
type Planner interface {
	GeneratePlan(ctx context.Context, userID string, planType plan.Type, query string) (*plan.GeneratedPlan, error)
	RegeneratePlan(ctx context.Context, userID string, planType plan.Type) (*plan.GeneratedPlan, error)
	ActivePlan(ctx context.Context, userID string, planType plan.Type) (*plan.GeneratedPlan, error)
	PlanHistory(ctx context.Context, userID string, planType plan.Type, limit int) ([]plan.GeneratedPlan, error)
	LogProgress(ctx context.Context, sample *profile.ProgressSample) (*planner.Decision, error)
	Answer(ctx context.Context, userID, query, category string) (*planner.AnswerResult, error)
}

// ProfileStore is the profile persistence surface the handlers consume.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*profile.Profile, error)
	Put(ctx context.Context, prof *profile.Profile) error
}

// Server is the HTTP server for the planner REST API.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	health   *HealthHandler
	profiles *ProfileHandler
	plans    *PlanHandler
	query    *QueryHandler
}

// NewServer creates a server with all routes registered. pool is used
// only by the readiness probe.
func NewServer(svc Planner, profiles ProfileStore, pool *pgxpool.Pool, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNop()
	}

	mux := http.NewServeMux()
	s := &Server{
		mux:      mux,
		logger:   logger,
		health:   NewHealthHandler(pool, logger),
		profiles: NewProfileHandler(svc, profiles, logger),
		plans:    NewPlanHandler(svc, logger),
		query:    NewQueryHandler(svc, logger),
	}

	s.health.RegisterRoutes(mux)
	s.profiles.RegisterRoutes(mux)
	s.plans.RegisterRoutes(mux)
	s.query.RegisterRoutes(mux)

	return s
}

// Handler returns the mux with middleware applied.
// Middleware order: recovery -> logging -> handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux, recoveryMiddleware(s.logger), loggingMiddleware(s.logger))
}

// Run starts the server and blocks until the context is cancelled, then
// shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
