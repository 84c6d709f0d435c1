package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgconn"
	pgx "github.com/jackc/pgx/v4"

	"github.com/garaad/community/internal/common/logger"
)

type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

var DefaultRetryConfig = RetryConfig{
	MaxAttempts:  3,
	InitialDelay: 50 * time.Millisecond,
	MaxDelay:     500 * time.Millisecond,
	Multiplier:   2.0,
}

// isRetryableError reports transient failures: connection exceptions (class
// 08), serialization failures and deadlocks (class 40), lock timeouts, and
// SQLite lock contention.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "40") || pgErr.Code == "55P03"
	}

	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

// RetryWithBackoff runs fn until it succeeds, fails with a non-transient
// error, or the attempts run out.
func RetryWithBackoff(ctx context.Context, log *logger.Logger, config RetryConfig, operation string, fn func() error) error {
	delay := config.InitialDelay
	var err error

	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			if attempt > 1 {
				log.Infof("%s succeeded after %d attempts", operation, attempt)
			}
			return nil
		}
		if !isRetryableError(err) {
			return err
		}
		if attempt >= config.MaxAttempts {
			return fmt.Errorf("%s failed after %d attempts: %w", operation, attempt, err)
		}

		log.Warnf("%s failed (attempt %d/%d), retrying in %v: %v", operation, attempt, config.MaxAttempts, delay, err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: retry aborted: %w", operation, ctx.Err())
		case <-timer.C:
		}

		delay = min(time.Duration(float64(delay)*config.Multiplier), config.MaxDelay)
	}
}
