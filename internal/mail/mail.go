package mail

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/Dhoini/subscription-commerce/internal/domain"
)

var (
	ErrInvalidConfig = errors.New("mail: invalid configuration")
	ErrSendFailed    = errors.New("mail: failed to send email")
)

// Message - одно транзакционное письмо
type Message struct {
	To       string
	Subject  string
	Tag      string
	HTMLBody string
}

// Sender отправляет письмо
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// OTPMessage собирает письмо с одноразовым кодом
func OTPMessage(to, code string, purpose domain.OTPPurpose) Message {
	subject := "Your verification code"
	intro := "Use this code to verify your e-mail address."
	if purpose == domain.OTPPurposeResetPassword {
		subject = "Password reset code"
		intro = "Use this code to reset your password."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(intro))
	fmt.Fprintf(&b, "<p style=\"font-size:24px;letter-spacing:4px\"><b>%s</b></p>", html.EscapeString(code))
	fmt.Fprintf(&b, "<p>The code expires in %d minutes.</p>", int(domain.OTPTTL.Minutes()))
	return Message{To: to, Subject: subject, Tag: string(purpose), HTMLBody: b.String()}
}
