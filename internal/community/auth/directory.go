package auth

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/garaad/community/internal/common/constants"
	commonerrors "github.com/garaad/community/internal/common/errors"
	"github.com/garaad/community/internal/common/logger"
	"github.com/garaad/community/internal/observability/metrics"
	"github.com/garaad/community/internal/user/domain"
	userrepo "github.com/garaad/community/internal/user/repository"
)

// Directory resolves a token subject to a live user.
type Directory interface {
	Lookup(ctx context.Context, userID string) (Identity, error)
}

// UserDirectory looks users up in the account store. Concurrent lookups of
// the same subject share one query, and repeated store failures open a
// circuit breaker.
type UserDirectory struct {
	repo    userrepo.Repository
	calls   singleflight.Group
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	log     *logger.Logger
}

func NewUserDirectory(repo userrepo.Repository, timeout time.Duration, log *logger.Logger) *UserDirectory {
	if timeout <= 0 {
		timeout = constants.DefaultDirectoryTimeout
	}

	const breakerName = "user_directory"
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    breakerName,
		Timeout: constants.DefaultDirectoryBreakerOpen,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= constants.DefaultDirectoryBreakerTrip
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, commonerrors.ErrUserNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			log.Warnf("circuit breaker [%s]: %s -> %s", name, from, to)
		},
	})

	return &UserDirectory{
		repo:    repo,
		breaker: breaker,
		timeout: timeout,
		log:     log,
	}
}

func (d *UserDirectory) Lookup(ctx context.Context, userID string) (Identity, error) {
	v, err, _ := d.calls.Do(userID, func() (any, error) {
		return d.breaker.Execute(func() (any, error) {
			// detached so one caller going away does not fail the shared lookup
			lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
			defer cancel()
			return d.repo.FindByID(lookupCtx, domain.ID(userID))
		})
	})

	switch {
	case err == nil:
		metrics.DirectoryLookupsTotal.WithLabelValues("found").Inc()
	case errors.Is(err, commonerrors.ErrUserNotFound):
		metrics.DirectoryLookupsTotal.WithLabelValues("not_found").Inc()
		return Identity{}, err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.DirectoryLookupsTotal.WithLabelValues("circuit_open").Inc()
		metrics.CircuitBreakerFailures.WithLabelValues("user_directory").Inc()
		return Identity{}, commonerrors.ErrCircuitOpen.WithCause(err)
	default:
		metrics.DirectoryLookupsTotal.WithLabelValues("error").Inc()
		return Identity{}, commonerrors.ErrUserGetFailed.WithCause(err)
	}

	user := v.(domain.User)
	return Identity{UserID: string(user.ID), Username: user.Username}, nil
}

func (d *UserDirectory) State() gobreaker.State {
	return d.breaker.State()
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}
