// Package server exposes the planner over a small REST API: validate a
// definition, plan it into a named run, and poll run status while an
// external executor works through the plan.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/pipeweave/internal/config"
	"github.com/me/pipeweave/internal/parser"
	"github.com/me/pipeweave/internal/planner"
	"github.com/me/pipeweave/internal/store"
	"github.com/me/pipeweave/internal/validate"
)

// Server is the pipeweave REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.Config
	startTime time.Time
	parser    *parser.Parser
	validator *validate.Validator
	planner   *planner.Planner
	store     store.Store
}

// New creates a Server with all routes registered.
func New(cfg config.Config, st store.Store, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		parser:    parser.New(logger),
		validator: validate.New(logger),
		planner:   planner.New(logger),
		store:     st,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/workflows/validate", s.handleValidateWorkflow)
		r.Post("/plans", s.handleCreatePlan)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Post("/", s.handleCreateRun)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.handleGetRun)
				r.Get("/plan", s.handleGetRunPlan)
				r.Get("/status", s.handleGetRunStatus)
				r.Delete("/", s.handleDeleteRun)
				r.Put("/tasks/{taskID}", s.handleUpdateTask)
			})
		})
	})
}
