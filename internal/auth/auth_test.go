package auth

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5, "helpdesk")
	agent := &domain.Agent{ID: "agent-1", TenantID: 42, Role: domain.AgentRoleAdmin}

	token, exp, err := tm.GenerateToken(agent)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), exp, 5*time.Second)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "agent-1", claims.AgentID())
	assert.Equal(t, int64(42), claims.TenantID)
	assert.Equal(t, domain.AgentRoleAdmin, claims.Role)
}

func TestParseTokenRejectsForeignSecretAndExpiry(t *testing.T) {
	agent := &domain.Agent{ID: "agent-1", TenantID: 1, Role: domain.AgentRoleAgent}
	token, _, err := NewTokenManager("other", 5, "").GenerateToken(agent)
	require.NoError(t, err)

	_, err = NewTokenManager("secret", 5, "").ParseToken(token)
	assert.Error(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		TenantID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "agent-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	signed, err := expired.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = NewTokenManager("secret", 5, "").ParseToken(signed)
	assert.Error(t, err)
}

func TestHashPassword(t *testing.T) {
	_, err := HashPassword("short", 4)
	assert.ErrorIs(t, err, ErrWeakPassword)

	hash, err := HashPassword("correct horse", 4)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "correct horse"))
	assert.Error(t, ComparePassword(hash, "wrong horse"))
}
