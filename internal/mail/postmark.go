package mail

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhoini/subscription-commerce/internal/config"
	"github.com/mrz1836/postmark"
)

type postmarkSender struct {
	client  *postmark.Client
	from    string
	replyTo string
}

// NewPostmarkSender создает отправителя через Postmark
func NewPostmarkSender(cfg config.MailConfig) (Sender, error) {
	if cfg.ServerToken == "" {
		return nil, fmt.Errorf("%w: serverToken is required", ErrInvalidConfig)
	}
	if cfg.SenderEmail == "" {
		return nil, fmt.Errorf("%w: senderEmail is required", ErrInvalidConfig)
	}
	replyTo := cfg.SupportEmail
	if replyTo == "" {
		replyTo = cfg.SenderEmail
	}
	return &postmarkSender{
		client:  postmark.NewClient(cfg.ServerToken, cfg.AccountToken),
		from:    cfg.SenderEmail,
		replyTo: replyTo,
	}, nil
}

func (s *postmarkSender) Send(ctx context.Context, msg Message) error {
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:     s.from,
		ReplyTo:  s.replyTo,
		To:       msg.To,
		Subject:  msg.Subject,
		Tag:      msg.Tag,
		HTMLBody: msg.HTMLBody,
	})
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrSendFailed, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}
