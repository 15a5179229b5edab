// Package auth resolves the bearer token on an inbound request into a
// models.Caller. The identity provider that issues tokens (GitHub OAuth per
// spec §1/§6) is out of scope; this package only validates the HS256 JWT a
// trusted issuer produced and maps its claims onto the caller the rest of
// the control plane consults.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/streamspace/playground/internal/models"
)

// Claims is the token payload the identity provider issues after exchanging
// a GitHub OAuth code: enough to resolve a Caller without a further lookup.
type Claims struct {
	UserID       string `json:"sub"`
	RoleID       string `json:"role_id"`
	Admin        bool   `json:"admin"`
	PoolAffinity string `json:"pool_affinity,omitempty"`
	jwt.RegisteredClaims
}

// Manager validates bearer tokens signed with a shared HMAC secret.
type Manager struct {
	secretKey []byte
	issuer    string
}

func NewManager(secretKey, issuer string) *Manager {
	if issuer == "" {
		issuer = "playground-api"
	}
	return &Manager{secretKey: []byte(secretKey), issuer: issuer}
}

// GenerateToken issues a token for the given caller, expiring after ttl.
// Used only by tests and by the identity-provider adapter's token exchange.
func (m *Manager) GenerateToken(caller models.Caller, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID:       caller.ID,
		RoleID:       caller.RoleID,
		Admin:        caller.Admin,
		PoolAffinity: caller.PoolAffinity,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   caller.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// ValidateToken parses and verifies tokenString, rejecting anything not
// signed with HMAC (algorithm substitution) and anything expired.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secretKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// Caller converts validated claims into the models.Caller the rest of the
// control plane consumes.
func (c *Claims) Caller() models.Caller {
	return models.Caller{
		ID:           c.UserID,
		RoleID:       c.RoleID,
		Admin:        c.Admin,
		PoolAffinity: c.PoolAffinity,
	}
}
