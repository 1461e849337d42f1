package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aai-storage/mining-dashboard/internal/config"
	"github.com/aai-storage/mining-dashboard/internal/service"
)

// RateLimiter is a sliding-window in-memory limiter. Keys idle for a full
// window are swept, so closed or expired sessions do not accumulate.
type RateLimiter struct {
	mu        sync.Mutex
	requests  map[string][]time.Time
	limit     int
	window    time.Duration
	now       func() time.Time
	lastSweep time.Time
}

// NewRateLimiter allows limit requests per key within window
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow records a request for key and reports whether it is within the limit
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.window)

	if now.Sub(rl.lastSweep) >= rl.window {
		rl.sweepLocked(windowStart)
		rl.lastSweep = now
	}

	var valid []time.Time
	for _, t := range rl.requests[key] {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

// Forget drops the history of key
func (rl *RateLimiter) Forget(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.requests, key)
}

// sweepLocked drops keys with no request after windowStart. Times are
// appended in order, so the last one is the newest.
func (rl *RateLimiter) sweepLocked(windowStart time.Time) {
	for key, times := range rl.requests {
		if len(times) == 0 || !times[len(times)-1].After(windowStart) {
			delete(rl.requests, key)
		}
	}
}

// Server is the dashboard HTTP API
type Server struct {
	router        *gin.Engine
	handler       *Handler
	cfg           *config.Config
	gatherer      prometheus.Gatherer
	toggleLimiter *RateLimiter
	srv           *http.Server
}

// NewServer builds the router; call Run to serve
func NewServer(cfg *config.Config, sessions *service.SessionService, gatherer prometheus.Gatherer) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(gin.Logger())

	toggleLimiter := NewRateLimiter(cfg.Mining.ToggleLimit, cfg.Mining.ToggleWindow)

	s := &Server{
		router:        router,
		handler:       NewHandler(sessions, toggleLimiter),
		cfg:           cfg,
		gatherer:      gatherer,
		toggleLimiter: toggleLimiter,
	}

	s.srv = &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "mining-dashboard",
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := s.router.Group("/api/v1")
	{
		api.POST("/sessions", s.handler.CreateSession)
		api.GET("/sessions/:id", s.handler.GetSession)
		api.DELETE("/sessions/:id", s.handler.CloseSession)

		api.POST("/sessions/:id/load", s.handler.LoadStats)
		api.POST("/sessions/:id/toggle", s.handler.ToggleMining)
		api.POST("/sessions/:id/reconcile", s.handler.ReconcileProvider)
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until Shutdown is called
func (s *Server) Run() error {
	log.Printf("[http] Listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", s.srv.Addr, err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones until ctx is done
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
