// Package httpapi implements the shared /health endpoint exposed by both
// the ingestor and projector binaries (§6 Process surface).
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kengreim/vnas-stats/internal/logger"
)

// UnhealthyAfter is the failure threshold: no successful fetch/projection
// in this long ⇒ unhealthy (§6).
const UnhealthyAfter = 60 * time.Second

// NewRouter builds the chi router serving /health for one of the two
// binaries. checker reports the binary-specific health payload.
func NewRouter(checker HealthChecker) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	// Liveness: the process is up and serving HTTP. Always 200 — this is not
	// a verdict on whether the loop itself is making progress.
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, healthyResponse(nil))
	})

	// Readiness: the loop has made recent progress per its own threshold.
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		data, healthy, errMsg := checker.CheckHealth()
		if healthy {
			writeJSON(w, http.StatusOK, healthyResponse(data))
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse(data, errMsg))
	})

	return r
}

// HealthChecker reports the current health payload and status for one
// binary's /health endpoint.
type HealthChecker interface {
	CheckHealth() (data interface{}, healthy bool, errMsg string)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("health request",
			"method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration", time.Since(start).String())
	})
}
