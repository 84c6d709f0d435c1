package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/garaad/community/internal/common/constants"
	"github.com/garaad/community/internal/common/logger"
)

type ShutdownHook func(ctx context.Context) error

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts the
// server down through hooks. A listen failure is returned after the hooks
// have still been given the chance to release resources.
func Run(ctx context.Context, server *http.Server, log *logger.Logger, serviceName string, hooks []ShutdownHook) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("%s service listening on %s", serviceName, server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		} else {
			err = fmt.Errorf("%s service: %w", serviceName, err)
		}
	}

	Shutdown(server, log, serviceName, hooks)
	return err
}

// Shutdown stops accepting connections, runs hooks within the drain period
// and then waits for in-flight requests. Hijacked connections are not
// tracked by the server, so hooks are where they get closed.
func Shutdown(server *http.Server, log *logger.Logger, serviceName string, hooks []ShutdownHook) {
	log.Infof("shutting down %s service...", serviceName)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer shutdownCancel()

	drainCtx, drainCancel := context.WithTimeout(shutdownCtx, constants.DrainTimeout)
	defer drainCancel()

	log.Infof("%s service: stopping accepting new connections (drain period: %v)", serviceName, constants.DrainTimeout)
	server.SetKeepAlivesEnabled(false)

	if len(hooks) > 0 {
		log.Infof("%s service: executing shutdown hooks", serviceName)
		for i, hook := range hooks {
			if err := hook(drainCtx); err != nil {
				log.Errorf("%s service: shutdown hook %d failed: %v", serviceName, i, err)
			}
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("%s service forced to shutdown: %v", serviceName, err)
	} else {
		log.Infof("%s service stopped gracefully", serviceName)
	}
}
