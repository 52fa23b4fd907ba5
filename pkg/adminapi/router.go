package adminapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/nfs4d/internal/logger"
	"github.com/marmos91/nfs4d/pkg/adminapi/handlers"
	"github.com/marmos91/nfs4d/pkg/metrics"
)

// NewRouter creates the chi router of the admin API.
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe
//   - GET /metrics - Prometheus metrics (503 without a gatherer)
//   - GET /api/v1/clients - NFSv4 client records
//   - GET /api/v1/clients/{id} - One client (hex id)
//   - GET /api/v1/clients/{id}/sessions - Sessions of one client
//   - DELETE /api/v1/clients/{id} - Evict a client and its sessions
//   - GET /api/v1/sessions - All sessions
//   - GET /api/v1/exports - Exports and their entry caches
//   - GET /api/v1/stats/ops - Per-operation call and error counters
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(deps.State, deps.Exports)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	statsHandler := handlers.NewStatsHandler(deps.Engine, deps.Exports)
	clientHandler := handlers.NewClientHandler(deps.State)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/exports", statsHandler.Exports)
		r.Get("/stats/ops", statsHandler.Ops)

		if clientHandler != nil {
			r.Get("/sessions", clientHandler.ListSessions)
			r.Route("/clients", func(r chi.Router) {
				r.Get("/", clientHandler.List)
				r.Get("/{id}", clientHandler.Get)
				r.Delete("/{id}", clientHandler.Evict)
				r.Get("/{id}/sessions", clientHandler.Sessions)
			})
		}
	})

	return r
}

// requestLogger logs each request through the internal logger. Probe and
// scrape requests are logged at DEBUG.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		}

		if isQuietPath(r.URL.Path) {
			logger.Debug("API request completed", logArgs...)
		} else {
			logger.Info("API request completed", logArgs...)
		}
	})
}

func isQuietPath(path string) bool {
	return path == "/metrics" || path == "/health" || strings.HasPrefix(path, "/health/")
}
