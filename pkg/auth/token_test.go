package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRandomSecret_Uniqueness(t *testing.T) {
	secrets := make(map[string]bool)

	for i := 0; i < 100; i++ {
		secret, err := RandomSecret()
		require.NoError(t, err)

		// 32 bytes base64url without padding
		assert.Len(t, secret, 43)
		assert.False(t, secrets[secret], "duplicate secret generated: %s", secret)
		secrets[secret] = true
	}
}

func TestNewUnusableCredentialHash(t *testing.T) {
	hash, err := NewUnusableCredentialHash()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$"), "expected bcrypt hash, got %q", hash)

	// Nothing a user could type should match
	for _, guess := range []string{"", "password", "changeme"} {
		assert.Error(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte(guess)))
	}

	other, err := NewUnusableCredentialHash()
	require.NoError(t, err)
	assert.NotEqual(t, hash, other)
}

func TestNewJWTTokenService_RequiresSecret(t *testing.T) {
	_, err := NewJWTTokenService(JWTConfig{})
	assert.Error(t, err)
}

func TestJWTTokenService_CreateAndParse(t *testing.T) {
	svc, err := NewJWTTokenService(JWTConfig{
		Secret: []byte("test-secret"),
		TTL:    30 * time.Minute,
		Issuer: "authgate-test",
	})
	require.NoError(t, err)

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	accountID := uuid.New()
	token, err := svc.CreateAccessToken(context.Background(), accountID)
	require.NoError(t, err)
	assert.NotEmpty(t, token.Value)
	assert.Equal(t, fixed.Add(30*time.Minute), token.ExpiresAt)

	claims, err := svc.ParseAccessToken(token.Value)
	require.NoError(t, err)
	assert.Equal(t, accountID.String(), claims.Subject)
	assert.Equal(t, "authgate-test", claims.Issuer)
}

func TestJWTTokenService_ParseRejectsExpired(t *testing.T) {
	svc, err := NewJWTTokenService(JWTConfig{Secret: []byte("test-secret"), TTL: time.Minute})
	require.NoError(t, err)

	issued := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.now = func() time.Time { return issued }
	token, err := svc.CreateAccessToken(context.Background(), uuid.New())
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = svc.ParseAccessToken(token.Value)
	assert.Error(t, err)
}

func TestJWTTokenService_ParseRejectsOtherSecret(t *testing.T) {
	a, err := NewJWTTokenService(JWTConfig{Secret: []byte("secret-a")})
	require.NoError(t, err)
	b, err := NewJWTTokenService(JWTConfig{Secret: []byte("secret-b")})
	require.NoError(t, err)

	token, err := a.CreateAccessToken(context.Background(), uuid.New())
	require.NoError(t, err)

	_, err = b.ParseAccessToken(token.Value)
	assert.Error(t, err)
}
