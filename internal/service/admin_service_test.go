package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/mail"
	"github.com/Dhoini/subscription-commerce/internal/repository/memory"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdminService(t *testing.T, credential string) (AdminService, *memory.Store, *mail.LogSender) {
	t.Helper()
	store := memory.NewStore()
	store.PutAdmin(domain.Admin{
		AdminID: "admin-1", Email: "root@example.com", Credential: credential,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	})
	mailer := mail.NewLogSender(logger.NewNop())
	return NewAdminService(store.Admins(), testTokens(), mailer, logger.NewNop()), store, mailer
}

func TestAdminLogin_MigratesLegacyCredential(t *testing.T) {
	t.Parallel()
	svc, store, _ := newAdminService(t, "plain-secret")
	ctx := context.Background()

	_, _, err := svc.Login(ctx, "root@example.com", "wrong")
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	admin, token, err := svc.Login(ctx, "root@example.com", "plain-secret")
	require.NoError(t, err)
	assert.Equal(t, "admin-1", admin.AdminID)

	claims, err := testTokens().ValidateAdmin(token)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.Subject)
	_, err = testTokens().ValidateAccess(token)
	require.ErrorIs(t, err, domain.ErrUnauthorized, "admin token must not pass as user token")

	stored, err := store.Admins().GetByID(ctx, "admin-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.Credential, "$2"), "credential is rehashed with bcrypt")

	_, _, err = svc.Login(ctx, "root@example.com", "plain-secret")
	require.NoError(t, err)
}

func TestAdminUpdatePassword(t *testing.T) {
	t.Parallel()
	svc, _, _ := newAdminService(t, "plain-secret")
	ctx := context.Background()

	err := svc.UpdatePassword(ctx, "admin-1", "wrong", "new-password-1")
	require.ErrorIs(t, err, domain.ErrValidation)
	err = svc.UpdatePassword(ctx, "admin-1", "plain-secret", "short")
	require.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, svc.UpdatePassword(ctx, "admin-1", "plain-secret", "new-password-1"))
	_, _, err = svc.Login(ctx, "root@example.com", "new-password-1")
	require.NoError(t, err)
}

func TestAdminPasswordReset(t *testing.T) {
	t.Parallel()
	svc, _, mailer := newAdminService(t, "plain-secret")
	ctx := context.Background()

	require.NoError(t, svc.ForgotPassword(ctx, "root@example.com"))
	code := lastCode(t, mailer)

	err := svc.ResetPassword(ctx, "root@example.com", "123", "new-password-1")
	require.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, svc.ResetPassword(ctx, "root@example.com", code, "new-password-1"))
	_, _, err = svc.Login(ctx, "root@example.com", "new-password-1")
	require.NoError(t, err)

	err = svc.ResetPassword(ctx, "root@example.com", code, "new-password-2")
	require.ErrorIs(t, err, domain.ErrValidation)
}
