// Package api provides the HTTP API of the AI service.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"taskflow-ai/internal/api/handlers"
	"taskflow-ai/internal/api/middleware"
	"taskflow-ai/internal/api/response"
	"taskflow-ai/internal/config"
	"taskflow-ai/internal/logging"
)

// Version of the HTTP API
const Version = "1.0.0"

// Dependencies are the services the routes dispatch to. A nil MCP handler
// leaves POST /mcp unrouted, and a nil Agent leaves the chat route out.
type Dependencies struct {
	Estimator      handlers.TimeEstimator
	Suggester      handlers.Suggester
	Finder         handlers.SimilarFinder
	Indexer        handlers.TaskIndexer
	Agent          handlers.AgentChatter
	HealthCheckers map[string]handlers.HealthChecker
	MCP            http.Handler
	Logger         logging.Logger
}

// Router represents the main API router
type Router struct {
	config  *config.Config
	mux     *chi.Mux
	deps    Dependencies
	logger  logging.Logger
	openAPI *openapi3.T
}

// NewRouter creates a new API router with middleware and routes
func NewRouter(cfg *config.Config, deps Dependencies) *Router {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	r := &Router{
		config: cfg,
		mux:    chi.NewRouter(),
		deps:   deps,
		logger: logger.WithComponent("api"),
	}

	doc, err := OpenAPISpec(context.Background())
	if err != nil {
		r.logger.Error("OpenAPI document failed to load", "error", err)
	}
	r.openAPI = doc

	r.setupMiddleware()
	r.setupRoutes()
	return r
}

// Handler returns the HTTP handler
func (r *Router) Handler() http.Handler {
	return r.mux
}

// setupMiddleware configures the middleware stack
func (r *Router) setupMiddleware() {
	r.mux.Use(chimiddleware.Recoverer)
	r.mux.Use(middleware.NewLoggingMiddleware(r.deps.Logger).Handler())
	r.mux.Use(r.corsHandler().Handler)
	r.mux.Use(chimiddleware.RequestSize(1 << 20))

	// Heartbeat for load balancer health checks
	r.mux.Use(chimiddleware.Heartbeat("/ping"))

	if timeout := r.config.Server.RequestTimeout; timeout > 0 {
		r.mux.Use(chimiddleware.Timeout(time.Duration(timeout) * time.Second))
	}
}

func (r *Router) corsHandler() *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: r.config.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.OwnerHeader, response.RequestIDHeader},
		ExposedHeaders: []string{response.RequestIDHeader},
		MaxAge:         300,
	})
}

// setupRoutes configures API routes
func (r *Router) setupRoutes() {
	health := handlers.NewHealthHandler(Version, r.deps.HealthCheckers)
	r.mux.Get("/health", health.Handle)
	r.mux.Get("/openapi.json", openAPIHandler(r.openAPI))

	if r.deps.MCP != nil {
		r.mux.Method(http.MethodPost, "/mcp", r.deps.MCP)
	}

	aiHandler := handlers.NewAIHandler(r.deps.Estimator, r.deps.Suggester, r.deps.Finder, r.deps.Logger)
	indexHandler := handlers.NewIndexHandler(r.deps.Indexer, r.deps.Logger)

	r.mux.Route("/api/v1", func(rtr chi.Router) {
		rtr.Use(middleware.RequireOwner)

		rtr.Route("/ai", func(aiRouter chi.Router) {
			aiRouter.Post("/estimate-time", aiHandler.EstimateTime)
			aiRouter.Post("/suggest", aiHandler.Suggest)
			aiRouter.Post("/similar", aiHandler.Similar)
		})

		rtr.Route("/index/tasks", func(indexRouter chi.Router) {
			indexRouter.Put("/{id}", indexHandler.Upsert)
			indexRouter.Delete("/{id}", indexHandler.Delete)
		})

		if r.deps.Agent != nil {
			rtr.Post("/agent/chat", handlers.NewAgentHandler(r.deps.Agent, r.deps.Logger).Chat)
		}
	})

	r.mux.NotFound(r.handleNotFound)
	r.mux.MethodNotAllowed(r.handleMethodNotAllowed)
}

func (r *Router) handleNotFound(w http.ResponseWriter, req *http.Request) {
	response.WriteNotFound(w, "route not found", req.Method+" "+req.URL.Path)
}

func (r *Router) handleMethodNotAllowed(w http.ResponseWriter, req *http.Request) {
	response.WriteMethodNotAllowed(w, "method not allowed", req.Method+" "+req.URL.Path)
}
