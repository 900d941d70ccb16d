package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/driftlab/driftfs/internal/logger"
	"github.com/driftlab/driftfs/pkg/config"
	"github.com/driftlab/driftfs/pkg/impersonate"
	"github.com/driftlab/driftfs/pkg/metrics"
	"github.com/driftlab/driftfs/pkg/registry"
)

// Server is the gateway HTTP server.
//
// It serves the file API, the share listing, the health probe, and the
// Prometheus metrics endpoint, and supports graceful shutdown.
type Server struct {
	server       *http.Server
	config       config.ServerConfig
	shutdownOnce sync.Once
}

// NewServer creates the gateway server in a stopped state. Call Start()
// to begin serving requests.
func NewServer(cfg *config.Config, reg *registry.Registry, switcher *impersonate.Switcher) *Server {
	router := NewRouter(reg, switcher, cfg.Impersonation, metrics.NewOperationMetrics())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		server: server,
		config: cfg.Server,
	}
}

// Start starts the HTTP server and blocks until the context is cancelled
// or the listener fails.
//
// When the context is cancelled, Start initiates graceful shutdown bounded
// by the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", s.server.Addr)

		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errChan <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("gateway shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("gateway server failed: %w", err)
	}
}

// Stop initiates graceful shutdown. Safe to call multiple times and safe
// to call concurrently with Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("gateway shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("gateway shutdown error: %w", err)
			logger.Error("gateway shutdown error", logger.KeyError, err.Error())
		} else {
			logger.Info("gateway stopped gracefully")
		}
	})
	return shutdownErr
}
