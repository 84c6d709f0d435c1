package http

import (
	"context"
	"net/http"
	"time"

	"github.com/garaad/community/internal/common/logger"
)

// HealthCheck reports whether one dependency (database, broker) is reachable.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

func HealthHandler(log *logger.Logger, checks ...HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			WriteErrorEnvelope(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed", nil, "")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		failed := map[string]any{}
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				log.WithFields(ctx, logger.Fields{
					"dependency": c.Name,
					"action":     "health_check_failed",
				}).Warnf("health check failed: %v", err)
				failed[c.Name] = err.Error()
			}
		}

		if len(failed) > 0 {
			WriteErrorEnvelope(w, http.StatusServiceUnavailable, CodeUnhealthy, "dependency unavailable", failed, TraceIDFromContext(r.Context()))
			return
		}

		log.Debug("health check request")
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
