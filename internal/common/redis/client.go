package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/garaad/community/internal/common/logger"
)

// NewClient parses a URL such as "redis://localhost:6379/0" and verifies the
// server answers before returning.
func NewClient(ctx context.Context, log *logger.Logger, redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Infof("redis client connected: addr=%s db=%d", opts.Addr, opts.DB)
	return rdb, nil
}
