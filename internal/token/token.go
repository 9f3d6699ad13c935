// Package token implements session-token minting and validation: HS256 JWTs
// signed over a shared server secret, plus a bounded revocation set.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	protoerr "github.com/arcs-rmm/relay/internal/errors"
)

const issuer = "arcs-server"

// DefaultRevocationCapacity bounds the in-memory revoked-token set for a server started
// without an explicit override.
const DefaultRevocationCapacity = 10_000

// Claims carried in every session token.
type Claims struct {
	SessionID   string   `json:"session_id"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// Service mints and validates signed session tokens.
type Service struct {
	secret     []byte
	expiry     time.Duration
	revocation *revocationSet
}

// New creates a token service. secret must be non-empty (validated by the config layer
// at startup, §6.5). expiry is the lifetime granted to newly minted tokens.
// revocationCapacity bounds the LRU-evicted revocation set.
func New(secret []byte, expiry time.Duration, revocationCapacity int) *Service {
	return &Service{
		secret:     secret,
		expiry:     expiry,
		revocation: newRevocationSet(revocationCapacity),
	}
}

// Issue mints a token for deviceID/sessionID with the given permissions.
func (s *Service) Issue(deviceID, sessionID string, permissions []string) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(s.expiry)
	claims := Claims{
		SessionID:   sessionID,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   deviceID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, protoerr.NewAuthError("token.issue", "ERR_INTERNAL", err)
	}
	return signed, exp, nil
}

// Validate returns the claims iff the token is not revoked, its signature is valid under
// the current secret, its issuer matches, and it has not expired. Signature check precedes
// all other checks, per the data-model invariant for tokens.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, protoerr.NewAuthError("token.validate", "INVALID_TOKEN", err)
	}

	if s.revocation.Contains(tokenString) {
		return nil, protoerr.NewAuthError("token.validate", "INVALID_TOKEN", errRevoked)
	}
	if claims.Issuer != issuer {
		return nil, protoerr.NewAuthError("token.validate", "INVALID_TOKEN", errBadIssuer)
	}
	return claims, nil
}

// Revoke adds tokenString to the bounded revocation set; future Validate calls for it fail.
func (s *Service) Revoke(tokenString string) {
	s.revocation.Add(tokenString)
}

var (
	errRevoked   = errors.New("token revoked")
	errBadIssuer = errors.New("unexpected issuer")
)
