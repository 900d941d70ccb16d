package gateway

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/driftlab/driftfs/internal/logger"
	"github.com/driftlab/driftfs/pkg/config"
	"github.com/driftlab/driftfs/pkg/impersonate"
	"github.com/driftlab/driftfs/pkg/metrics"
	"github.com/driftlab/driftfs/pkg/registry"
)

// NewRouter creates and configures the chi router with all middleware and routes.
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /metrics - Prometheus metrics (404 when metrics are disabled)
//   - GET /api/v1/shares - Share listing for the principal
//   - GET /api/v1/shares/{share}/files/* - Read file content
//   - HEAD is served by chi for GET routes
//   - GET /api/v1/shares/{share}/stat/* - File metadata
//   - PUT /api/v1/shares/{share}/files/* - Write file content
//   - DELETE /api/v1/shares/{share}/files/* - Remove file content
func NewRouter(
	reg *registry.Registry,
	switcher *impersonate.Switcher,
	impCfg config.ImpersonationConfig,
	opMetrics *metrics.OperationMetrics,
) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	fileHandler := NewFileHandler(reg, switcher, impCfg, opMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Authentication(reg.GetUserStore()))

		r.Get("/shares", fileHandler.ListShares)
		r.Route("/shares/{share}", func(r chi.Router) {
			r.Get("/files/*", fileHandler.Read)
			r.Put("/files/*", fileHandler.Write)
			r.Delete("/files/*", fileHandler.Remove)
			r.Get("/stat/*", fileHandler.Stat)
		})
	})

	return r
}

// requestLogger is a custom middleware that logs requests using the internal logger.
//
// Health and metrics probes are logged at DEBUG level to reduce noise.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		logger.Debug("request started",
			logger.KeyRequestID, requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		logArgs := []any{
			logger.KeyRequestID, requestID,
			"method", r.Method,
			"path", r.URL.Path,
			logger.KeyStatus, ww.Status(),
			"bytes", ww.BytesWritten(),
			logger.KeyDurationMs, logger.Duration(start),
		}

		if isProbePath(r.URL.Path) {
			logger.Debug("request completed", logArgs...)
		} else {
			logger.Info("request completed", logArgs...)
		}
	})
}

func isProbePath(path string) bool {
	return path == "/metrics" || path == "/health" || strings.HasPrefix(path, "/health/")
}
