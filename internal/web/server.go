// Package web serves the generated REST endpoints of every registered
// resource over chi.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/restfab/internal/config"
	"github.com/JonMunkholm/restfab/internal/core"
	mw "github.com/JonMunkholm/restfab/internal/web/middleware"
)

// Server is the HTTP server for the registered resources.
type Server struct {
	cfg       *config.Config
	db        TxBeginner
	limiter   *core.ImportLimiter
	resources []*Resource
	router    *chi.Mux
	server    *http.Server
	rate      *rateLimiter
}

// NewServer builds the router for defs. A definition whose schemas cannot be
// derived fails the whole server.
func NewServer(cfg *config.Config, db TxBeginner, defs []core.Definition) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		db:      db,
		limiter: core.NewImportLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		router:  chi.NewRouter(),
	}
	excluded, err := parseOperations(cfg.API.ExcludeOperations)
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		def.Exclude = append(append([]core.Operation(nil), def.Exclude...), excluded...)
		res, err := NewResource(def, cfg.API)
		if err != nil {
			return nil, err
		}
		s.resources = append(s.resources, res)
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

func parseOperations(names []string) ([]core.Operation, error) {
	ops := make([]core.Operation, 0, len(names))
	for _, name := range names {
		op, err := core.ParseOperation(name)
		if err != nil {
			return nil, fmt.Errorf("API_EXCLUDE_OPERATIONS: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		s.rate = newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute)
		s.router.Use(s.rate.middleware)
	}
}

// setupRoutes mounts every resource under the API base path.
// CSV imports are bounded by the upload timeout, every other route by the
// request timeout.
func (s *Server) setupRoutes() {
	timeout := func(next http.Handler) http.Handler { return next }
	if s.cfg.Server.RequestTimeout > 0 {
		timeout = middleware.Timeout(s.cfg.Server.RequestTimeout)
	}
	s.router.With(timeout).Get("/healthz", s.handleHealth)

	deps := Deps{
		DB:             s.db,
		Limiter:        s.limiter,
		MaxUploadSize:  s.cfg.Upload.MaxFileSize,
		RequestTimeout: s.cfg.Server.RequestTimeout,
		ImportTimeout:  s.cfg.Upload.Timeout,
	}

	s.router.Route(s.cfg.API.BasePath, func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))
		r.With(timeout).Get("/_resources", s.handleIndex)
		for _, res := range s.resources {
			Mount(r, res, deps)
		}
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"resources": len(s.resources),
		"imports":   s.limiter.Status(),
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr, "resources", len(s.resources))
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests and waits for running imports.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.rate != nil {
		s.rate.stop()
	}
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := s.limiter.WaitForDrain(ctx); err != nil {
		return fmt.Errorf("waiting for imports: %w", err)
	}
	return nil
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Resources returns the mounted resources in registration order.
func (s *Server) Resources() []*Resource {
	return s.resources
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// rateLimiter is a fixed-window request counter per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
	done     chan struct{}
	stopOnce sync.Once
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		done:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// cleanup drops visitors idle for two windows until stop is called.
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
		}
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastReset) > rl.window*2 {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// allow consumes a token for ip if one is left in the current window.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists || time.Since(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: time.Now()}
		return true
	}
	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

// middleware rejects clients over their budget with 429. It runs after
// TrustedRealIP, so RemoteAddr is already the client address.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r.RemoteAddr)) {
			w.Header().Set("Retry-After", "60")
			writeDetail(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP strips the port from a RemoteAddr.
func clientIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
