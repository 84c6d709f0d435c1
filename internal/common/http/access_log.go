package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/garaad/community/internal/common/logger"
)

func AccessLogMiddleware(log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				status := ww.Status()
				fields := logger.Fields{
					"method":      r.Method,
					"path":        r.URL.Path,
					"remote_ip":   GetClientIP(r),
					"status":      status,
					"bytes":       ww.BytesWritten(),
					"duration_ms": time.Since(start).Milliseconds(),
					"action":      "http_request",
				}
				if status >= http.StatusInternalServerError {
					log.WithFields(r.Context(), fields).Error("request failed")
					return
				}
				log.WithFields(r.Context(), fields).Debug("request completed")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
