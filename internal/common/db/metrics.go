package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/garaad/community/internal/common/constants"
	"github.com/garaad/community/internal/observability/metrics"
)

// StartPoolMetrics samples pool occupancy until ctx is cancelled.
func StartPoolMetrics(ctx context.Context, pool *pgxpool.Pool, interval time.Duration) {
	if interval <= 0 {
		interval = constants.DBPoolMetricsInterval
	}

	record := func() {
		stats := pool.Stat()
		metrics.DirectoryPoolConnections.WithLabelValues("acquired").Set(float64(stats.AcquiredConns()))
		metrics.DirectoryPoolConnections.WithLabelValues("idle").Set(float64(stats.IdleConns()))
		metrics.DirectoryPoolConnections.WithLabelValues("total").Set(float64(stats.TotalConns()))
		metrics.DirectoryPoolConnections.WithLabelValues("max").Set(float64(stats.MaxConns()))
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		record()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				record()
			}
		}
	}()
}
