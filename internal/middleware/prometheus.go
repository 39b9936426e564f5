package middleware

import (
	"net/http"
	"time"

	"github.com/crucial707/irrigation/internal/metrics"
	"github.com/go-chi/chi/v5"
)

// Prometheus records request duration and count, labelled by the matched chi route so
// record ids in the path do not create new series. Unmatched paths are labelled "unmatched".
func Prometheus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		if route == "/metrics" {
			return
		}
		metrics.RecordRequest(r.Method, route, sw.status, time.Since(start).Seconds())
	})
}
