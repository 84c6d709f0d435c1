package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"

	goredis "github.com/redis/go-redis/v9"

	"github.com/garaad/community/internal/common/config"
	commonhttp "github.com/garaad/community/internal/common/http"
	"github.com/garaad/community/internal/common/logger"
	commonredis "github.com/garaad/community/internal/common/redis"
	"github.com/garaad/community/internal/community/group"
	userrepo "github.com/garaad/community/internal/user/repository"
)

type App struct {
	Log       *logger.Logger
	Config    config.CommunityConfig
	UserRepo  userrepo.Repository
	Redis     *goredis.Client
	Transport group.Transport
}

// NewCommunityApp loads configuration and opens the stores the service
// needs. UserRepo is nil without DATABASE_URL and Redis is nil for the
// in-process transport.
func NewCommunityApp(ctx context.Context) (*App, error) {
	log, err := initializeLogger("community")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.LoadCommunityConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	app := &App{Log: log, Config: cfg}

	if cfg.DatabaseURL != "" {
		repo, err := userrepo.Open(ctx, log, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open user directory: %w", err)
		}
		app.UserRepo = repo
	} else {
		log.Warn("DATABASE_URL not set: token claims are trusted without a user lookup")
	}

	switch cfg.GroupTransport {
	case config.TransportRedis:
		rdb, err := commonredis.NewClient(ctx, log, cfg.RedisURL)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Redis = rdb
		app.Transport = group.NewRedisTransport(rdb, log)
	default:
		app.Transport = group.NewMemoryTransport()
	}

	log.Infof("community app initialized: transport=%s require_authentication=%t user_directory=%t",
		app.Transport.Name(), cfg.RequireAuthentication, app.UserRepo != nil)
	return app, nil
}

func (a *App) HealthChecks() []commonhttp.HealthCheck {
	var checks []commonhttp.HealthCheck
	if a.UserRepo != nil {
		checks = append(checks, commonhttp.HealthCheck{Name: "database", Check: a.UserRepo.Ping})
	}
	if a.Redis != nil {
		checks = append(checks, commonhttp.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() },
		})
	}
	return checks
}

// Close releases the stores. The transport is closed by the registry that
// owns it.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.UserRepo != nil {
		errs = append(errs, a.UserRepo.Close())
	}
	return errors.Join(errs...)
}

func initializeLogger(serviceName string) (*logger.Logger, error) {
	log := logger.GetInstance()
	if err := log.Initialize(os.Getenv("LOG_DIR"), serviceName, os.Getenv("LOG_LEVEL")); err != nil {
		return nil, err
	}
	return log, nil
}
