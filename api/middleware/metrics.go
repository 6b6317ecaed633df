package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/panelcraft/panelcraft-backend/pkg/metrics"
)

// Metrics records request counts and latencies per chi route pattern.
func Metrics(m *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			route := r.URL.Path
			if ctx := chi.RouteContext(r.Context()); ctx != nil {
				if pattern := ctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			m.ObserveRequest(r.Method, route, defaultStatus(rec.status), time.Since(start))
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
