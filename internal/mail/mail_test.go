package mail

import (
	"context"
	"testing"

	"github.com/Dhoini/subscription-commerce/internal/config"
	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOTPMessage(t *testing.T) {
	t.Parallel()

	msg := OTPMessage("a@b.c", "123456", domain.OTPPurposeResetPassword)
	assert.Equal(t, "a@b.c", msg.To)
	assert.Equal(t, "Password reset code", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "123456")

	msg = OTPMessage("a@b.c", "<x>", domain.OTPPurposeVerifyEmail)
	assert.NotContains(t, msg.HTMLBody, "<x>")
}

func TestNewPostmarkSender_RequiresToken(t *testing.T) {
	t.Parallel()

	_, err := NewPostmarkSender(config.MailConfig{SenderEmail: "noreply@example.com"})
	require.ErrorIs(t, err, ErrInvalidConfig)

	s, err := NewPostmarkSender(config.MailConfig{ServerToken: "t", SenderEmail: "noreply@example.com"})
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestLogSender(t *testing.T) {
	t.Parallel()

	s := NewLogSender(logger.NewNop())
	require.NoError(t, s.Send(context.Background(), Message{To: "x@y.z", Subject: "s"}))
	require.Len(t, s.Sent(), 1)
	assert.Equal(t, "x@y.z", s.Sent()[0].To)
}
