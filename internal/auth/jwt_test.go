package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamspace/playground/internal/models"
)

func TestGenerateThenValidateRoundTrip(t *testing.T) {
	m := NewManager("test-secret", "playground-test")
	caller := models.Caller{ID: "user-1", RoleID: "operator", Admin: false, PoolAffinity: "gpu"}

	token, err := m.GenerateToken(caller, time.Hour)
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, caller, claims.Caller())
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	m := NewManager("test-secret", "playground-test")
	token, err := m.GenerateToken(models.Caller{ID: "user-1"}, -time.Minute)
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewManager("secret-a", "playground-test")
	token, err := issuer.GenerateToken(models.Caller{ID: "user-1"}, time.Hour)
	require.NoError(t, err)

	validator := NewManager("secret-b", "playground-test")
	_, err = validator.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsAlgorithmSubstitution(t *testing.T) {
	m := NewManager("test-secret", "playground-test")
	claims := Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.ValidateToken(signed)
	assert.Error(t, err)
}

func TestDefaultIssuerWhenEmpty(t *testing.T) {
	m := NewManager("secret", "")
	assert.Equal(t, "playground-api", m.issuer)
}
