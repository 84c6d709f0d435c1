package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	commonerrors "github.com/garaad/community/internal/common/errors"
	"github.com/garaad/community/internal/common/jwtverify"
	"github.com/garaad/community/internal/common/logger"
	"github.com/garaad/community/internal/observability/metrics"
)

type Kind int

const (
	Anonymous Kind = iota
	Authenticated
	Rejected
)

func (k Kind) String() string {
	switch k {
	case Authenticated:
		return "authenticated"
	case Rejected:
		return "rejected"
	default:
		return "anonymous"
	}
}

type Identity struct {
	UserID   string
	Username string
}

// Result is the outcome of authenticating one upgrade request. Identity is
// set only for Authenticated; Err only for Rejected.
type Result struct {
	Kind     Kind
	Identity *Identity
	Err      error
}

func (r Result) Reason() string {
	if de, ok := commonerrors.AsDomainError(r.Err); ok {
		return de.Message()
	}
	if r.Err != nil {
		return r.Err.Error()
	}
	return ""
}

type Policy struct {
	// RequireAuthentication rejects connections that would otherwise fall
	// back to anonymous.
	RequireAuthentication bool
	Leeway                time.Duration
}

type Authenticator struct {
	secret    []byte
	directory Directory
	clock     clockwork.Clock
	policy    Policy
	log       *logger.Logger
}

// NewAuthenticator builds an authenticator. With a nil directory the token's
// own claims are trusted as the identity.
func NewAuthenticator(secret string, directory Directory, clock clockwork.Clock, policy Policy, log *logger.Logger) *Authenticator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Authenticator{
		secret:    []byte(secret),
		directory: directory,
		clock:     clock,
		policy:    policy,
		log:       log,
	}
}

func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) Result {
	token, _ := jwtverify.ExtractToken(r)
	return a.AuthenticateToken(ctx, token)
}

func (a *Authenticator) AuthenticateToken(ctx context.Context, token string) Result {
	res := a.authenticate(ctx, token)
	metrics.CommunityAuthResults.WithLabelValues(res.Kind.String()).Inc()
	return res
}

func (a *Authenticator) authenticate(ctx context.Context, token string) Result {
	if token == "" {
		return a.fallback(ctx, "missing credential", commonerrors.ErrAuthenticationRequired)
	}

	claims, err := jwtverify.ParseToken(token, a.secret,
		jwtverify.WithLeeway(a.policy.Leeway),
		jwtverify.WithTimeFunc(a.clock.Now),
	)
	if err != nil {
		if errors.Is(err, commonerrors.ErrMalformedToken) {
			return a.fallback(ctx, "malformed credential", commonerrors.ErrInvalidCredential.WithCause(err))
		}
		a.log.WithFields(ctx, logger.Fields{
			"action": "ws_auth_rejected",
		}).Warnf("websocket credential rejected: %v", err)
		return Result{Kind: Rejected, Err: err}
	}

	if a.directory == nil {
		return Result{Kind: Authenticated, Identity: &Identity{UserID: claims.UserID, Username: claims.Username}}
	}

	identity, err := a.directory.Lookup(ctx, claims.UserID)
	if err != nil {
		if !errors.Is(err, commonerrors.ErrUserNotFound) {
			a.log.WithFields(ctx, logger.Fields{
				"user_id": claims.UserID,
				"action":  "ws_auth_directory_failed",
			}).Errorf("websocket user lookup failed: %v", err)
		}
		return a.fallback(ctx, "user not resolvable", commonerrors.ErrInvalidCredential.WithCause(err))
	}

	return Result{Kind: Authenticated, Identity: &identity}
}

// fallback applies the anonymous policy to a credential that could not
// produce an identity.
func (a *Authenticator) fallback(ctx context.Context, why string, strictErr error) Result {
	if a.policy.RequireAuthentication {
		a.log.WithFields(ctx, logger.Fields{
			"action": "ws_auth_required",
		}).Warnf("websocket connection rejected: %s", why)
		return Result{Kind: Rejected, Err: strictErr}
	}

	a.log.WithFields(ctx, logger.Fields{
		"action": "ws_anonymous_fallback",
	}).Warnf("websocket connection proceeding anonymously: %s", why)
	return Result{Kind: Anonymous}
}
