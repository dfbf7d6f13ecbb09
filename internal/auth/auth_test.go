package auth

import (
	"testing"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/config"
	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager() *TokenManager {
	return NewTokenManager(config.AuthConfig{
		JWTSecret:       "user-secret",
		AdminJWTSecret:  "admin-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
		AdminTokenTTL:   time.Hour,
	})
}

func TestTokenManager_Pair(t *testing.T) {
	t.Parallel()
	m := testManager()

	pair, err := m.IssuePair("user-1", "u@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.RefreshID)

	claims, err := m.ValidateAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "u@example.com", claims.Email)

	refresh, err := m.ValidateRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, pair.RefreshID, refresh.ID)

	// refresh токен нельзя использовать как access и наоборот
	_, err = m.ValidateAccess(pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = m.ValidateRefresh(pair.AccessToken)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestTokenManager_AdminSecretIsSeparate(t *testing.T) {
	t.Parallel()
	m := testManager()

	adminToken, err := m.IssueAdmin("admin-1", "a@example.com")
	require.NoError(t, err)

	claims, err := m.ValidateAdmin(adminToken)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.Subject)

	_, err = m.ValidateAccess(adminToken)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	pair, err := m.IssuePair("user-1", "u@example.com")
	require.NoError(t, err)
	_, err = m.ValidateAdmin(pair.AccessToken)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestTokenManager_Expired(t *testing.T) {
	t.Parallel()
	m := testManager()
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	pair, err := m.IssuePair("user-1", "u@example.com")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ValidateAccess(pair.AccessToken)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Contains(t, err.Error(), "expired")
}

func TestCredentialVerifier(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	tests := []struct {
		name       string
		stored     string
		password   string
		wantErr    bool
		wantRehash bool
	}{
		{name: "bcrypt ok", stored: hash, password: "s3cret"},
		{name: "bcrypt wrong", stored: hash, password: "nope", wantErr: true},
		{name: "legacy ok", stored: "plain", password: "plain", wantRehash: true},
		{name: "legacy wrong", stored: "plain", password: "Plain", wantErr: true, wantRehash: true},
		{name: "empty stored", stored: "", password: "", wantErr: true, wantRehash: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewCredentialVerifier(tt.stored)
			err := v.Verify(tt.password)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidCredentials)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantRehash, v.NeedsRehash())
		})
	}
}

func TestOTP(t *testing.T) {
	t.Parallel()

	code, err := NewOTP()
	require.NoError(t, err)
	assert.Len(t, code, 6)
	assert.True(t, MatchOTP(code, HashOTP(code)))
	assert.False(t, MatchOTP("000000x", HashOTP(code)))

	h, err := RandomHex(20)
	require.NoError(t, err)
	assert.Len(t, h, 20)
}
