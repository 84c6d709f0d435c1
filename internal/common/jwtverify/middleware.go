package jwtverify

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	commonerrors "github.com/garaad/community/internal/common/errors"
	commonhttp "github.com/garaad/community/internal/common/http"
	"github.com/garaad/community/internal/common/logger"
	"github.com/garaad/community/internal/observability/metrics"
)

// BearerProtocol is the Sec-WebSocket-Protocol marker that precedes a token
// for clients that cannot set headers on the upgrade request.
const BearerProtocol = "bearer"

type Claims struct {
	UserID    string
	Username  string
	JTI       string
	ExpiresAt time.Time
}

type contextKey string

const claimsKey contextKey = "jwt_claims"

type parseConfig struct {
	leeway time.Duration
	now    func() time.Time
}

type ParseOption func(*parseConfig)

func WithLeeway(d time.Duration) ParseOption {
	return func(c *parseConfig) { c.leeway = d }
}

func WithTimeFunc(now func() time.Time) ParseOption {
	return func(c *parseConfig) { c.now = now }
}

func Middleware(secret string, log *logger.Logger, opts ...ParseOption) func(next http.Handler) http.Handler {
	secretBytes := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := ExtractTokenFromHeader(r)
			if !ok {
				log.Warnf("jwt auth failed path=%s: missing or invalid authorization header", r.URL.Path)
				commonhttp.WriteErrorEnvelope(w, http.StatusUnauthorized, commonhttp.CodeMissingAuthorization, "missing or invalid authorization", nil, "")
				return
			}

			claims, err := ParseToken(tokenString, secretBytes, opts...)
			if err != nil {
				log.Warnf("jwt auth failed path=%s: %v", r.URL.Path, err)
				commonhttp.WriteErrorEnvelope(w, http.StatusUnauthorized, commonhttp.CodeInvalidToken, "invalid token", nil, "")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func FromContext(ctx context.Context) (Claims, bool) {
	val := ctx.Value(claimsKey)
	claims, ok := val.(Claims)
	return claims, ok
}

func ExtractTokenFromHeader(r *http.Request) (string, bool) {
	raw := r.Header.Get("Authorization")
	if raw == "" || !strings.HasPrefix(raw, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	return token, token != ""
}

// ExtractToken looks for a bearer credential on an upgrade request: the
// Authorization header first, then a "bearer, <token>" subprotocol pair, then
// the token query parameter.
func ExtractToken(r *http.Request) (string, bool) {
	if token, ok := ExtractTokenFromHeader(r); ok {
		return token, true
	}

	protocols := websocketProtocols(r)
	for i := 0; i+1 < len(protocols); i++ {
		if strings.EqualFold(protocols[i], BearerProtocol) && protocols[i+1] != "" {
			return protocols[i+1], true
		}
	}

	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token, true
	}

	return "", false
}

func websocketProtocols(r *http.Request) []string {
	var out []string
	for _, header := range r.Header.Values("Sec-WebSocket-Protocol") {
		for _, p := range strings.Split(header, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// ParseToken validates an HS256 token and returns its identity claims. The
// subject is read from user_id and falls back to sub.
func ParseToken(tokenString string, secret []byte, opts ...ParseOption) (Claims, error) {
	metrics.JWTValidationsTotal.Inc()

	claims, err := parseToken(tokenString, secret, opts...)
	if err != nil {
		metrics.JWTValidationsFailed.WithLabelValues(failureReason(err)).Inc()
		return Claims{}, err
	}
	return claims, nil
}

func parseToken(tokenString string, secret []byte, opts ...ParseOption) (Claims, error) {
	cfg := parseConfig{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, commonerrors.ErrInvalidTokenSigningMethod
		}
		return secret, nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.leeway),
		jwt.WithTimeFunc(cfg.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return Claims{}, commonerrors.ErrMalformedToken.WithCause(err)
		}
		return Claims{}, commonerrors.ErrInvalidCredential.WithCause(err)
	}
	if !parsed.Valid {
		return Claims{}, commonerrors.ErrInvalidCredential
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, commonerrors.ErrInvalidTokenClaims
	}

	userID := claimString(mapClaims["user_id"])
	if userID == "" {
		userID = claimString(mapClaims["sub"])
	}
	if userID == "" {
		return Claims{}, commonerrors.ErrInvalidCredential.WithCause(commonerrors.ErrMissingTokenClaims)
	}

	username := claimString(mapClaims["username"])
	if username == "" {
		username = claimString(mapClaims["usr"])
	}

	out := Claims{
		UserID:   userID,
		Username: username,
		JTI:      claimString(mapClaims["jti"]),
	}
	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time.UTC()
	}
	return out, nil
}

func claimString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "signature"
	case errors.Is(err, commonerrors.ErrInvalidTokenSigningMethod):
		return "signing_method"
	case errors.Is(err, commonerrors.ErrMalformedToken):
		return "malformed"
	case errors.Is(err, commonerrors.ErrMissingTokenClaims):
		return "claims"
	default:
		return "invalid"
	}
}
