package mail

import (
	"context"
	"sync"

	"github.com/Dhoini/subscription-commerce/pkg/logger"
)

// LogSender пишет письма в лог вместо отправки. Для локального запуска и тестов.
type LogSender struct {
	log *logger.Logger

	mu   sync.Mutex
	sent []Message
}

func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{log: log.Named("mail")}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	s.log.Infow("Email not sent, mail delivery disabled", "to", msg.To, "subject", msg.Subject, "tag", msg.Tag)
	return nil
}

// Sent возвращает копию отправленных писем
func (s *LogSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}
