package main

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/garaad/community/internal/common/bootstrap"
	"github.com/garaad/community/internal/common/constants"
	commonhttp "github.com/garaad/community/internal/common/http"
	"github.com/garaad/community/internal/common/logger"
	srv "github.com/garaad/community/internal/common/server"
	"github.com/garaad/community/internal/community/auth"
	"github.com/garaad/community/internal/community/group"
	communityhttp "github.com/garaad/community/internal/community/http"
	"github.com/garaad/community/internal/community/websocket"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.NewCommunityApp(ctx)
	if err != nil {
		logger.GetInstance().Fatalf("failed to initialize app: %v", err)
	}
	log := app.Log
	cfg := app.Config

	registry := group.NewRegistry(app.Transport, log, group.Options{MaxMembers: cfg.WebSocket.MaxConnections})
	if err := registry.Start(ctx); err != nil {
		log.Fatalf("failed to start group registry: %v", err)
	}

	var directory auth.Directory
	if app.UserRepo != nil {
		directory = auth.NewUserDirectory(app.UserRepo, cfg.DirectoryTimeout, log)
	}
	authenticator := auth.NewAuthenticator(cfg.JWTSecret, directory, clockwork.NewRealClock(), auth.Policy{
		RequireAuthentication: cfg.RequireAuthentication,
		Leeway:                cfg.TokenLeeway,
	}, log)

	wsHandler := websocket.NewHandler(
		authenticator,
		registry,
		websocket.OptionsFromConfig(cfg.WebSocket),
		cfg.WebSocket.AllowedOrigins,
		log,
	)

	upgradeLimiter := commonhttp.NewRateLimiter("ws_upgrade", constants.RateLimitUpgradeRequestsPerSecond, constants.RateLimitUpgradeBurst)
	go upgradeLimiter.RunCleanup(ctx, constants.RateLimitCleanupInterval)

	router := communityhttp.NewRouter(communityhttp.Config{
		WebSocket:      wsHandler,
		Stats:          registry,
		JWTSecret:      cfg.JWTSecret,
		UpgradeLimiter: upgradeLimiter,
		HealthChecks:   app.HealthChecks(),
		Log:            log,
	})

	server := srv.NewServer(srv.DefaultServerConfig(cfg.HTTPPort), commonhttp.BuildBaseHandler(log, router))

	err = srv.Run(ctx, server, log, "community", []srv.ShutdownHook{
		func(context.Context) error {
			log.Infof("closing group registry: members=%d", registry.Members(constants.CommunityGroup))
			return registry.Close()
		},
		func(context.Context) error {
			cancel()
			return app.Close()
		},
	})
	if err != nil {
		log.Fatalf("%v", err)
	}
}
