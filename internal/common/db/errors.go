package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	pgx "github.com/jackc/pgx/v4"

	"github.com/garaad/community/internal/observability/metrics"
)

// HandleQueryError records the query duration and maps "no rows" from either
// driver to notFoundErr.
func HandleQueryError(err error, notFoundErr error, operation, backend string, startTime time.Time) error {
	MeasureQueryDuration(operation, backend, startTime)

	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return notFoundErr
	}
	metrics.DBQueryErrors.WithLabelValues(operation, backend, fmt.Sprintf("%T", err)).Inc()
	return fmt.Errorf("failed to %s: %w", operation, err)
}

func MeasureQueryDuration(operation, backend string, startTime time.Time) {
	metrics.DBQueryDurationSeconds.WithLabelValues(operation, backend).Observe(time.Since(startTime).Seconds())
}
