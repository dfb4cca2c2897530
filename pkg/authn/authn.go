// Package authn implements the two service-to-service auth mechanisms
// required by spec.md §4.6 and §6: a static shared API key compared in
// constant time, and a short-lived HS256 JWT naming the calling service.
// Both the REST boundary (pkg/api) and the reputation gRPC boundary
// (pkg/reputation/rpc) verify one of these before doing any work.
package authn

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is the sentinel wrapped by every verification failure.
var ErrUnauthenticated = errors.New("authn: unauthenticated")

// ServiceClaims is the JWT payload described in spec.md §6:
// {service, iat, exp}. Scopes is an addition carried from spec.md §4.6's
// "short-lived signed token carrying {service, issued_at, expires_at, scopes}".
type ServiceClaims struct {
	Service string   `json:"service"`
	Scopes  []string `json:"scopes,omitempty"`
	jwt.RegisteredClaims
}

// HasScope reports whether the token carries the named scope. A token with
// no Scopes at all is treated as carrying every scope (service-key parity —
// internal services calling each other with the full trust of a shared
// secret, matching spec.md's "either a static shared API key ... or a
// short-lived signed token").
func (c ServiceClaims) HasScope(scope string) bool {
	if len(c.Scopes) == 0 {
		return true
	}
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// TokenIssuer mints short-lived HS256 service tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer builds an issuer using secret as the HS256 signing key.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Issue mints a signed token naming service and (optionally) scopes.
func (i *TokenIssuer) Issue(service string, scopes ...string) (string, error) {
	now := time.Now()
	claims := ServiceClaims{
		Service: service,
		Scopes:  scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("authn: sign token: %w", err)
	}
	return signed, nil
}

// TokenVerifier verifies HS256 service tokens minted by a TokenIssuer using
// the same shared secret.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier builds a verifier using secret as the HS256 key.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify parses and validates a token, returning its claims on success.
func (v *TokenVerifier) Verify(raw string) (*ServiceClaims, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: token is required", ErrUnauthenticated)
	}

	claims := &ServiceClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return claims, nil
}

// VerifyServiceKey compares a presented key against the configured shared
// secret in constant time, mirroring original_source's
// secrets.compare_digest(key, Config.SERVICE_API_KEY) check. An empty
// configured key always rejects, since that means the deployment never set
// one — never "open by default".
func VerifyServiceKey(configured, presented string) bool {
	if configured == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) == 1
}
