package http

import (
	"net/http"
	"strconv"

	commonerrors "github.com/garaad/community/internal/common/errors"
	"github.com/garaad/community/internal/common/httpmetrics"
	"github.com/garaad/community/internal/common/logger"
	"github.com/garaad/community/internal/observability/metrics"
)

// retryAfterSeconds is advertised on 503 responses, which here mean the group
// is at capacity or a dependency is briefly unavailable.
const retryAfterSeconds = "5"

type ErrorHandler struct {
	log *logger.Logger
}

func NewErrorHandler(log *logger.Logger) *ErrorHandler {
	return &ErrorHandler{log: log}
}

// HandleError renders err as the JSON error envelope. Errors that are not
// domain errors are reported as INTERNAL_ERROR without leaking their text.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	domainErr, known := commonerrors.AsDomainError(err)
	if !known {
		domainErr = commonerrors.ErrInternalError.WithCause(err)
	}
	status := domainErr.HTTPStatus()

	entry := h.log.WithFields(r.Context(), logger.Fields{
		"path":       r.URL.Path,
		"error_code": domainErr.Code(),
		"status":     status,
	})
	switch {
	case !known:
		entry.Errorf("unhandled error: %v", err)
	case status >= http.StatusInternalServerError:
		entry.Warnf("request failed: %v", err)
	default:
		entry.Debugf("request rejected: %v", err)
	}

	if known {
		metrics.DomainErrorsTotal.WithLabelValues(string(domainErr.Category()), domainErr.Code(), strconv.Itoa(status)).Inc()
	}
	metrics.HTTPErrorsTotal.WithLabelValues(strconv.Itoa(status), httpmetrics.NormalizePath(r.URL.Path), r.Method).Inc()

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", retryAfterSeconds)
	}
	WriteErrorEnvelope(w, status, domainErr.Code(), domainErr.Message(), nil, TraceIDFromContext(r.Context()))
}

func HandleError(w http.ResponseWriter, r *http.Request, err error, log *logger.Logger) {
	NewErrorHandler(log).HandleError(w, r, err)
}
