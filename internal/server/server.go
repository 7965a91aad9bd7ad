// Package server exposes the HTTP API: quoting, swap lifecycle, gas data,
// and the administrative surface.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"chainswitch/internal/metrics"
	"chainswitch/internal/oracle"
	"chainswitch/internal/orchestrator"
	"chainswitch/internal/registry"
)

// Config holds the HTTP surface settings.
type Config struct {
	ListenAddr         string
	AdminKey           string
	RateLimitPerMinute int
}

// Server wires the HTTP routes to the domain components.
type Server struct {
	cfg      Config
	registry *registry.Registry
	orch     *orchestrator.Orchestrator
	oracle   *oracle.Oracle
	metrics  *metrics.Metrics
	logger   *zap.Logger

	httpServer *http.Server
}

// New builds the router and the underlying http.Server.
func New(cfg Config, reg *registry.Registry, orch *orchestrator.Orchestrator, o *oracle.Oracle, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		registry: reg,
		orch:     orch,
		oracle:   o,
		metrics:  m,
		logger:   logger,
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(requestLogger(logger))
	mux.Use(recoverer(logger))
	mux.Use(chimw.Timeout(30 * time.Second))
	if cfg.RateLimitPerMinute > 0 {
		mux.Use(httprate.LimitByIP(cfg.RateLimitPerMinute, time.Minute))
	}

	mux.Get("/healthz", s.handleHealth)
	if m != nil {
		mux.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	}

	mux.Route("/v1", func(r chi.Router) {
		r.Post("/quote", s.handleQuote)

		r.Route("/swaps", func(r chi.Router) {
			r.Post("/", s.handleInitiate)
			r.Get("/{id}", s.handleGetSwap)
			r.Post("/{id}/destination-result", s.handleDestinationResult)
			r.Post("/{id}/complete", s.handleComplete)
			r.Post("/{id}/recover", s.handleRecover)
		})

		r.Route("/users/{addr}", func(r chi.Router) {
			r.Get("/swaps", s.handleUserSwaps)
			r.Get("/preferences", s.handleGetPreferences)
			r.Put("/preferences", s.handleSetPreferences)
		})

		r.Route("/chains", func(r chi.Router) {
			r.Get("/", s.handleChains)
			r.Get("/{id}/gas", s.handleGas)
			r.Get("/{id}/trend", s.handleTrend)
			r.Get("/{id}/stats", s.handleChainStats)
			r.Post("/{id}/gas-price", s.handleGasUpdate)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/pause", s.handlePause(true))
			r.Post("/unpause", s.handlePause(false))
			r.Get("/thresholds", s.handleGetThresholds)
			r.Put("/thresholds", s.handleSetThresholds)
			r.Put("/fee-schedule", s.handleSetFeeSchedule)
			r.Post("/chains", s.handleSetChain)
			r.Post("/chains/{id}/enable", s.handleSetChainEnabled(true))
			r.Post("/chains/{id}/disable", s.handleSetChainEnabled(false))
			r.Post("/keeper-key", s.handleRotateKeeper)
		})
	})

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.ListenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
