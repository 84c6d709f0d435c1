package http

import (
	"net/http"

	"github.com/garaad/community/internal/common/httpmetrics"
	"github.com/garaad/community/internal/common/logger"
)

func BuildBaseHandler(log *logger.Logger, handler http.Handler) http.Handler {
	metrics := httpmetrics.New()
	recovery := RecoveryMiddleware(log)
	accessLog := AccessLogMiddleware(log)

	return SecurityHeadersMiddleware(recovery(TraceIDMiddleware(accessLog(metrics.Wrap(handler)))))
}

func SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}
