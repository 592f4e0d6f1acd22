// Package api provides the HTTP API server and handlers for the enrichment
// service.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/listenupapp/enrichd/internal/metrics"
	"github.com/listenupapp/enrichd/internal/ratelimit"
	"github.com/listenupapp/enrichd/internal/sse"
)

// Options tunes the inbound protections of the server.
type Options struct {
	// TriggerRate and TriggerBurst bound how often one user may start
	// enrichment runs.
	TriggerRate  float64
	TriggerBurst int
	// AllowedOrigins is passed to the CORS middleware. Empty allows any origin.
	AllowedOrigins []string
}

// Server is the HTTP API server.
type Server struct {
	router     *chi.Mux
	api        huma.API
	services   *Services
	sseManager *sse.Manager
	sseHandler *sse.Handler
	metrics    *metrics.Collector
	upgrader   websocket.Upgrader
	logger     *slog.Logger

	triggerLimiter *ratelimit.KeyedRateLimiter
	streamLimiter  *ratelimit.KeyedRateLimiter
}

// NewServer creates a new HTTP server with all routes configured.
// collector may be nil, in which case /metrics is not served.
func NewServer(
	services *Services,
	sseManager *sse.Manager,
	collector *metrics.Collector,
	opts Options,
	logger *slog.Logger,
) *Server {
	router := chi.NewRouter()

	humaConfig := huma.DefaultConfig("enrichd API", "1.0.0")
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s := &Server{
		router:         router,
		services:       services,
		sseManager:     sseManager,
		sseHandler:     sse.NewHandler(sseManager, services.Enrichment, logger),
		metrics:        collector,
		logger:         logger,
		triggerLimiter: ratelimit.New(opts.TriggerRate, opts.TriggerBurst),
		streamLimiter:  NewRateLimiter(60, time.Minute, 20),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(origins),
		},
	}

	s.setupMiddleware(origins)

	// Raw routes are mounted before huma so they keep full control of the
	// response writer.
	s.registerStreamRoutes()

	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerEnrichRoutes()
	s.registerJobRoutes()
	s.registerCacheRoutes()
	s.registerLibraryRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops the background eviction of the server's rate limiters.
func (s *Server) Close() {
	s.triggerLimiter.Stop()
	s.streamLimiter.Stop()
}

// API returns the huma API, mainly for tests.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) setupMiddleware(origins []string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
}

func (s *Server) registerStreamRoutes() {
	s.router.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(s.streamLimiter, s.logger))
		r.Get("/api/v1/enrich/stream", s.handleStream)
		r.Get("/api/v1/enrich/jobs/{id}/events", s.handleJobEvents)
		r.Get("/ws", s.handleWebSocket)
	})

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}
}

func checkOrigin(origins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range origins {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}
