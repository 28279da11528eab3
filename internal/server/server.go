// Package server provides the HTTP/SSE transport observers use to drive
// and watch discussion sessions.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/roundtable/engine/internal/sessionmgr"
	"github.com/roundtable/engine/pkg/types"
)

// Config holds server configuration.
type Config struct {
	Addr           string
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:           ":8080",
		CORSOrigins:    []string{"*"},
		RateLimitRPS:   20,
		RateLimitBurst: 40,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   0, // no write timeout: SSE streams hold the connection open
	}
}

// FromAppConfig builds a server Config from the process-wide types.Config,
// falling back to defaults for anything left unset.
func FromAppConfig(cfg *types.Config) *Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	if cfg.Server.Addr != "" {
		c.Addr = cfg.Server.Addr
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		c.CORSOrigins = cfg.Server.CORSOrigins
	}
	if cfg.Server.RateLimitRPS > 0 {
		c.RateLimitRPS = cfg.Server.RateLimitRPS
	}
	if cfg.Server.RateLimitBurst > 0 {
		c.RateLimitBurst = cfg.Server.RateLimitBurst
	}
	return c
}

// Server is the HTTP server fronting a sessionmgr.Manager.
type Server struct {
	config  *Config
	router  *chi.Mux
	httpSrv *http.Server
	mgr     *sessionmgr.Manager
}

// New creates a new Server instance wired to mgr.
func New(cfg *Config, mgr *sessionmgr.Manager) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Server{
		config: cfg,
		router: chi.NewRouter(),
		mgr:    mgr,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures middleware for the server.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if s.config.RateLimitRPS > 0 {
		s.router.Use(s.rateLimit)
	}
}

// rateLimit applies a single process-wide token bucket to every request.
// A per-observer bucket would need an identity scheme this transport
// doesn't have (no auth), so one shared limiter protects the process
// instead of any one caller's fair share of it.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(s.config.RateLimitRPS), s.config.RateLimitBurst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, ErrCodeRateLimited, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start starts the HTTP server and blocks until it exits.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router returns the chi router, for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
