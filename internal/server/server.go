// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/modvault/modvault/internal/config"
	"github.com/modvault/modvault/internal/handlers"
	"github.com/modvault/modvault/internal/metrics"
	"github.com/modvault/modvault/internal/middleware"
	"github.com/modvault/modvault/internal/ratelimit"
	"github.com/modvault/modvault/pkg/logger"
)

// ErrUnknownRoute is returned when mounting a handler on a route that is not
// in the route table.
var ErrUnknownRoute = errors.New("unknown route")

// Server represents the HTTP server.
type Server struct {
	cfg           *config.Config
	log           *logger.Logger
	httpServer    *http.Server
	router        chi.Router
	healthHandler *handlers.HealthHandler
	checker       ratelimit.Checker
	catalog       *ratelimit.Catalog
	verifier      middleware.TokenVerifier
	mounted       map[string]http.Handler
	listener      net.Listener
	running       bool
	mu            sync.RWMutex
}

// Option configures a Server.
type Option func(*Server)

// WithChecker sets the rate limiter. Without one, routes are not limited.
func WithChecker(c ratelimit.Checker) Option {
	return func(s *Server) { s.checker = c }
}

// WithCatalog sets the policy catalog. Defaults to ratelimit.DefaultCatalog.
func WithCatalog(c *ratelimit.Catalog) Option {
	return func(s *Server) { s.catalog = c }
}

// WithVerifier enables bearer token authentication on API routes.
func WithVerifier(v middleware.TokenVerifier) Option {
	return func(s *Server) { s.verifier = v }
}

// New creates a new Server instance.
func New(cfg *config.Config, log *logger.Logger, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:           cfg,
		log:           log,
		healthHandler: handlers.NewHealthHandler(),
		catalog:       ratelimit.DefaultCatalog(),
		mounted:       make(map[string]http.Handler),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Metrics(),
		middleware.RequestID(),
		middleware.Logging(log),
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	if err := s.registerRoutes(r); err != nil {
		return nil, err
	}
	s.router = r

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorLog:     log.StandardLogger(),
	}

	return s, nil
}

// registerRoutes sets up the ops routes and the marketplace route table.
func (s *Server) registerRoutes(r chi.Router) error {
	r.Get("/health", s.healthHandler.Health)
	r.Get("/ready", s.healthHandler.Ready)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	policies := handlers.NewPolicyHandler(s.catalog, s.rateLimited())
	listChain, err := s.routeChain(ratelimit.APIRead)
	if err != nil {
		return err
	}
	r.Method(http.MethodGet, "/api/v1/ratelimit/policies", listChain.ThenFunc(policies.List))

	for _, route := range Routes {
		chain, err := s.routeChain(route.Policy)
		if err != nil {
			return fmt.Errorf("route %s: %w", route.Name, err)
		}
		r.Method(route.Method, route.Pattern, chain.Then(s.dispatch(route.Name)))
	}

	if s.rateLimited() {
		s.log.Info("rate limiting enabled", "policies", len(s.catalog.Names()))
	}
	return nil
}

// routeChain builds the per-route middleware: authentication first so the
// limiter can key on the user, then the route's policy.
func (s *Server) routeChain(policyName string) (*middleware.Chain, error) {
	chain := middleware.New()
	if s.verifier != nil {
		chain = chain.Append(middleware.Authenticate(s.verifier, s.log))
	}
	if !s.rateLimited() {
		return chain, nil
	}

	policy, err := s.catalog.Get(policyName)
	if err != nil {
		return nil, err
	}
	return chain.Append(middleware.RateLimit(s.checker, policy, middleware.RateLimitConfig{
		IPHeader: s.cfg.Rate.IPHeader,
		Logger:   s.log,
	})), nil
}

func (s *Server) rateLimited() bool {
	return s.cfg.Rate.Enabled && s.checker != nil
}

// dispatch resolves the mounted handler for a route at request time.
func (s *Server) dispatch(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		h := s.mounted[name]
		s.mu.RUnlock()

		if h == nil {
			handlers.NotConfigured(w, r)
			return
		}
		h.ServeHTTP(w, r)
	}
}

// Mount attaches a business handler to a named route.
func (s *Server) Mount(routeName string, h http.Handler) error {
	for _, route := range Routes {
		if route.Name == routeName {
			s.mu.Lock()
			s.mounted[routeName] = h
			s.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownRoute, routeName)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := s.cfg.Server.Address()

	// Create listener first to get the actual address (important when port is 0)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	s.log.Info("server starting", "address", listener.Addr().String())

	err = s.httpServer.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("server shutting down")

	// Mark as not ready during shutdown
	s.healthHandler.SetReady(false)

	err := s.httpServer.Shutdown(ctx)

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if err != nil {
		s.log.Error("shutdown error", "error", err.Error())
		return err
	}

	s.log.Info("server stopped")
	return nil
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's address.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// HealthHandler returns the health handler.
func (s *Server) HealthHandler() *handlers.HealthHandler {
	return s.healthHandler
}
