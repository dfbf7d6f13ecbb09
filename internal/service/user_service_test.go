package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/auth"
	"github.com/Dhoini/subscription-commerce/internal/config"
	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/identity"
	"github.com/Dhoini/subscription-commerce/internal/mail"
	"github.com/Dhoini/subscription-commerce/internal/repository/memory"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var otpPattern = regexp.MustCompile(`<b>(\d{6})</b>`)

type stubIdentity struct {
	ident *identity.Identity
}

func (s stubIdentity) Verify(_ context.Context, idToken string) (*identity.Identity, error) {
	if s.ident == nil || idToken != "good-token" {
		return nil, identity.ErrInvalidToken
	}
	return s.ident, nil
}

func testTokens() *auth.TokenManager {
	return auth.NewTokenManager(config.AuthConfig{
		JWTSecret:       "user-secret",
		AdminJWTSecret:  "admin-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
		AdminTokenTTL:   time.Hour,
	})
}

func newUserService(t *testing.T, ident identity.Verifier) (UserService, *memory.Store, *mail.LogSender) {
	t.Helper()
	store := memory.NewStore()
	mailer := mail.NewLogSender(logger.NewNop())
	svc := NewUserService(UserDeps{
		Users:         store.Users(),
		Verifications: store.Verifications(),
		Subscriptions: store.Subscriptions(),
		Denylist:      store,
		Tokens:        testTokens(),
		Mailer:        mailer,
		Identity:      ident,
	}, logger.NewNop())
	return svc, store, mailer
}

func lastCode(t *testing.T, mailer *mail.LogSender) string {
	t.Helper()
	sent := mailer.Sent()
	require.NotEmpty(t, sent)
	m := otpPattern.FindStringSubmatch(sent[len(sent)-1].HTMLBody)
	require.Len(t, m, 2)
	return m[1]
}

func registerUser(t *testing.T, svc UserService, mailer *mail.LogSender, email string) (*domain.User, *auth.TokenPair) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, svc.SendOTP(ctx, email))
	require.NoError(t, svc.VerifyOTP(ctx, email, lastCode(t, mailer)))
	user, pair, err := svc.Register(ctx, RegisterInput{Name: "Ann", Email: email, Password: "s3cret-pass"})
	require.NoError(t, err)
	return user, pair
}

func TestRegister_RequiresVerifiedEmail(t *testing.T) {
	t.Parallel()
	svc, _, mailer := newUserService(t, identity.DisabledVerifier{})
	ctx := context.Background()

	_, _, err := svc.Register(ctx, RegisterInput{Name: "Ann", Email: "ann@example.com", Password: "s3cret-pass"})
	require.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, svc.SendOTP(ctx, "Ann@Example.com"))
	err = svc.VerifyOTP(ctx, "ann@example.com", "000000x")
	require.ErrorIs(t, err, domain.ErrValidation)

	user, pair := registerUser(t, svc, mailer, "ann@example.com")
	assert.Equal(t, "ann@example.com", user.Email)
	assert.NotEqual(t, "s3cret-pass", user.PasswordHash)
	assert.NotEmpty(t, pair.AccessToken)

	err = svc.SendOTP(ctx, "ann@example.com")
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestLogin(t *testing.T) {
	t.Parallel()
	svc, _, mailer := newUserService(t, identity.DisabledVerifier{})
	ctx := context.Background()
	registered, _ := registerUser(t, svc, mailer, "ann@example.com")

	_, _, err := svc.Login(ctx, "ann@example.com", "wrong-pass")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	_, _, err = svc.Login(ctx, "ghost@example.com", "s3cret-pass")
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	user, pair, err := svc.Login(ctx, "ANN@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, registered.UserID, user.UserID)

	verified, err := svc.VerifyToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, registered.UserID, verified.UserID)

	_, err = svc.VerifyToken(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrUnauthorized, "refresh token must not pass as access token")
}

func TestRefreshRotation(t *testing.T) {
	t.Parallel()
	svc, _, mailer := newUserService(t, identity.DisabledVerifier{})
	ctx := context.Background()
	_, pair := registerUser(t, svc, mailer, "ann@example.com")

	_, rotated, err := svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshID, rotated.RefreshID)

	_, _, err = svc.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrUnauthorized, "used refresh token is revoked")

	require.NoError(t, svc.Logout(ctx, rotated.RefreshToken))
	_, _, err = svc.Refresh(ctx, rotated.RefreshToken)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	require.NoError(t, svc.Logout(ctx, "garbage"))
}

func TestPasswordReset(t *testing.T) {
	t.Parallel()
	svc, _, mailer := newUserService(t, identity.DisabledVerifier{})
	ctx := context.Background()
	registerUser(t, svc, mailer, "ann@example.com")

	err := svc.ForgotPassword(ctx, "ghost@example.com")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, svc.ForgotPassword(ctx, "ann@example.com"))
	code := lastCode(t, mailer)

	err = svc.ResetPassword(ctx, "ann@example.com", code, "short")
	require.ErrorIs(t, err, domain.ErrValidation)
	require.NoError(t, svc.ResetPassword(ctx, "ann@example.com", code, "brand-new-pass"))

	_, _, err = svc.Login(ctx, "ann@example.com", "s3cret-pass")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	_, _, err = svc.Login(ctx, "ann@example.com", "brand-new-pass")
	require.NoError(t, err)

	err = svc.ResetPassword(ctx, "ann@example.com", code, "another-pass")
	require.ErrorIs(t, err, domain.ErrValidation, "code is single use")
}

func TestGoogleSignIn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("disabled verifier rejects", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newUserService(t, identity.DisabledVerifier{})
		_, _, err := svc.GoogleSignIn(ctx, "good-token")
		require.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("links existing account by email", func(t *testing.T) {
		t.Parallel()
		svc, store, mailer := newUserService(t, stubIdentity{ident: &identity.Identity{UID: "g-1", Email: "ann@example.com", Name: "Ann"}})
		registered, _ := registerUser(t, svc, mailer, "ann@example.com")

		user, pair, err := svc.GoogleSignIn(ctx, "good-token")
		require.NoError(t, err)
		assert.Equal(t, registered.UserID, user.UserID)
		assert.NotEmpty(t, pair.AccessToken)

		linked, err := store.Users().GetByExternalUID(ctx, "g-1")
		require.NoError(t, err)
		assert.Equal(t, registered.UserID, linked.UserID)
	})

	t.Run("creates new account", func(t *testing.T) {
		t.Parallel()
		svc, _, _ := newUserService(t, stubIdentity{ident: &identity.Identity{UID: "g-2", Email: "bob@example.com", Name: "Bob"}})
		first, _, err := svc.GoogleSignIn(ctx, "good-token")
		require.NoError(t, err)
		assert.Equal(t, domain.AuthProviderGoogle, first.Provider)

		second, _, err := svc.GoogleSignIn(ctx, "good-token")
		require.NoError(t, err)
		assert.Equal(t, first.UserID, second.UserID)

		// без пароля вход по e-mail невозможен
		_, _, err = svc.Login(ctx, "bob@example.com", "")
		require.True(t, errors.Is(err, domain.ErrUnauthorized))
	})
}

func TestGetProfile(t *testing.T) {
	t.Parallel()
	svc, store, mailer := newUserService(t, identity.DisabledVerifier{})
	ctx := context.Background()
	user, _ := registerUser(t, svc, mailer, "ann@example.com")

	now := time.Now()
	require.NoError(t, store.Subscriptions().Create(ctx, &domain.Subscription{
		SubscriptionID: "sub-1", BuyerID: user.UserID, PlanID: "p", Status: domain.SubscriptionStatusActive,
		AdminStatus: domain.AdminStatusCompleted, StartedAt: now, CreatedAt: now, UpdatedAt: now,
	}))

	profile, err := svc.GetProfile(ctx, user.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, profile.Counts.Total)
	assert.Equal(t, 1, profile.Counts.Completed)

	_, err = svc.GetProfile(ctx, "ghost")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
