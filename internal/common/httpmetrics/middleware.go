package httpmetrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/garaad/community/internal/observability/metrics"
)

type Collector struct{}

func New() *Collector {
	return &Collector{}
}

// Wrap records request counts and latency. The wrapped writer still
// implements http.Hijacker, so upgrade routes can go through it.
func (c *Collector) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		method := r.Method
		path := NormalizePath(r.URL.Path)

		metrics.CommunityRequestsTotal.WithLabelValues(method, path).Inc()
		metrics.CommunityRequestsInFlight.Inc()
		defer metrics.CommunityRequestsInFlight.Dec()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		statusClass := fmt.Sprintf("%dxx", status/100)
		metrics.CommunityRequestDurationSeconds.WithLabelValues(method, path, statusClass).Observe(time.Since(start).Seconds())
	})
}
