package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/rotisserie/eris"

	"github.com/liamcoop/ratebook/automation"
	"github.com/liamcoop/ratebook/internal/logger"
	"github.com/liamcoop/ratebook/rules"
)

// ownerHeader carries the agency user on whose behalf a request is made
const ownerHeader = "X-Owner-ID"

// WorkflowStore is the persistence the workflow routes need
type WorkflowStore interface {
	Create(ctx context.Context, owner string, w *automation.Workflow) (*automation.Workflow, error)
	Get(ctx context.Context, id string) (*automation.Workflow, error)
	List(ctx context.Context, owner string) ([]automation.Summary, error)
	Replace(ctx context.Context, w *automation.Workflow) (*automation.Workflow, error)
	Delete(ctx context.Context, id string) error
	SetActive(ctx context.Context, id string, active bool) error
}

// Options carries the server's dependencies. Workflows may be nil, in which
// case the workflow routes are not mounted.
type Options struct {
	Engine         *rules.Engine
	Workflows      WorkflowStore
	Previewer      *automation.Previewer
	StoreName      string
	Ping           func(ctx context.Context) error
	AllowedOrigins []string
	SlowRequest    time.Duration
}

type Server struct {
	opts   Options
	router *chi.Mux
}

func NewServer(opts Options) *Server {
	if opts.Ping == nil {
		opts.Ping = func(context.Context) error { return nil }
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	s := &Server{opts: opts}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", ownerHeader},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.opts.SlowRequest))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/evaluate", s.handleEvaluate)

		r.Route("/rulesets", func(r chi.Router) {
			r.Get("/", s.handleListRuleSets)
			r.Post("/", s.handleCreateRuleSet)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRuleSet)
				r.Put("/", s.handleReplaceRuleSet)
				r.Delete("/", s.handleDeleteRuleSet)
				r.Post("/evaluate", s.handleCalculate)
			})
		})

		if s.opts.Workflows != nil {
			r.Route("/workflows", func(r chi.Router) {
				r.Get("/", s.handleListWorkflows)
				r.Post("/", s.handleCreateWorkflow)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetWorkflow)
					r.Put("/", s.handleReplaceWorkflow)
					r.Delete("/", s.handleDeleteWorkflow)
					r.Put("/active", s.handleSetActive)
					r.Post("/preview", s.handlePreview)
				})
			})
		}
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Store:     s.opts.StoreName,
		Workflows: s.opts.Workflows != nil,
		Counters:  logger.Snapshot(),
	}
	if err := s.opts.Ping(r.Context()); err != nil {
		resp.Status = "unhealthy"
		resp.Error = err.Error()
		respondJSON(w, r, http.StatusServiceUnavailable, resp)
		return
	}
	respondJSON(w, r, http.StatusOK, resp)
}

// requestLogger logs each request through the slog logger and feeds the
// status counters
func requestLogger(slow time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			logger.CountStatus(status)

			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", elapsed,
				"requestId", middleware.GetReqID(r.Context()),
			}
			switch {
			case status >= 500:
				logger.Logger.Error("request failed", args...)
			case slow > 0 && elapsed > slow:
				logger.CountSlowRequest()
				logger.Logger.Warn("slow request", args...)
			default:
				logger.Debug("request", args...)
			}
		})
	}
}

func owner(r *http.Request) string {
	return r.Header.Get(ownerHeader)
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	render.Status(r, status)
	render.JSON(w, r, data)
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	respondJSON(w, r, status, resp)
}

// respondStoreError maps engine and store errors to a status. Validation
// failures carry their problem list as details.
func respondStoreError(w http.ResponseWriter, r *http.Request, message string, err error) {
	var ruleProblems *rules.ValidationError
	var workflowProblems *automation.ValidationError

	switch {
	case errors.As(err, &ruleProblems):
		respondJSON(w, r, http.StatusUnprocessableEntity, ErrorResponse{Error: "validation failed", Details: ruleProblems.Problems})
	case errors.As(err, &workflowProblems):
		respondJSON(w, r, http.StatusUnprocessableEntity, ErrorResponse{Error: "validation failed", Details: workflowProblems.Problems})
	case errors.Is(err, rules.ErrNotFound) || errors.Is(err, automation.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "not found", err)
	default:
		logger.Error(message, "error", eris.ToString(err, true))
		respondError(w, r, http.StatusInternalServerError, message, nil)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}
