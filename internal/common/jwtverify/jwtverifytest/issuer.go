// Package jwtverifytest mints tokens shaped like the ones the REST API issues,
// for tests that exercise token validation.
package jwtverifytest

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Issuer struct {
	secret []byte
	now    func() time.Time
	ttl    time.Duration
}

func NewIssuer(secret string, ttl time.Duration, now func() time.Time) *Issuer {
	if now == nil {
		now = time.Now
	}
	return &Issuer{
		secret: []byte(secret),
		now:    now,
		ttl:    ttl,
	}
}

// AccessToken signs an access token carrying the user_id claim the REST API
// emits.
func (i *Issuer) AccessToken(userID, username string) string {
	now := i.now()
	return i.Sign(jwt.MapClaims{
		"token_type": "access",
		"user_id":    userID,
		"username":   username,
		"jti":        "jti-" + userID,
		"iat":        now.Unix(),
		"exp":        now.Add(i.ttl).Unix(),
	})
}

func (i *Issuer) Sign(claims jwt.MapClaims) string {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(i.secret)
	if err != nil {
		panic(err)
	}
	return s
}

func (i *Issuer) SignWith(method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t := jwt.NewWithClaims(method, claims)
	s, err := t.SignedString(key)
	if err != nil {
		panic(err)
	}
	return s
}
