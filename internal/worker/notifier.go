package worker

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/mail"
	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/shopspring/decimal"
)

// ReceiptNotifier отправляет покупателю письмо об активации подписки
type ReceiptNotifier struct {
	users  repository.UserRepository
	mailer mail.Sender
	log    *logger.Logger
}

func NewReceiptNotifier(users repository.UserRepository, mailer mail.Sender, log *logger.Logger) *ReceiptNotifier {
	return &ReceiptNotifier{users: users, mailer: mailer, log: log.Named("notifier")}
}

// Handle обрабатывает событие из Kafka. Остальные типы событий пропускаются.
func (n *ReceiptNotifier) Handle(ctx context.Context, event domain.SubscriptionEvent) error {
	if event.Type != domain.EventSubscriptionActivated {
		return nil
	}
	user, err := n.users.GetByID(ctx, event.BuyerID)
	if err != nil {
		return fmt.Errorf("failed to load buyer %s: %w", event.BuyerID, err)
	}
	if user.Email == "" {
		n.log.Warnw("Buyer has no e-mail, receipt skipped", "buyerID", user.UserID)
		return nil
	}
	if err := n.mailer.Send(ctx, ReceiptMessage(user, event)); err != nil {
		return err
	}
	n.log.Infow("Receipt sent", "subscriptionID", event.SubscriptionID, "buyerID", user.UserID)
	return nil
}

// FormatAmount переводит минорные единицы в строку вида "29.00 USD"
func FormatAmount(amount int64, currency string) string {
	return decimal.New(amount, -2).StringFixed(2) + " " + currency
}

// ReceiptMessage собирает письмо-квитанцию
func ReceiptMessage(user *domain.User, event domain.SubscriptionEvent) mail.Message {
	var b strings.Builder
	name := user.Name
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "<p>Hi %s,</p>", html.EscapeString(name))
	fmt.Fprintf(&b, "<p>Your subscription <b>%s</b> is active.</p>", html.EscapeString(event.PlanName))
	fmt.Fprintf(&b, "<p>Amount paid: %s<br>Order: %s</p>",
		html.EscapeString(FormatAmount(event.Amount, event.Currency)), html.EscapeString(event.OrderID))
	if event.ExpiresAt != nil {
		fmt.Fprintf(&b, "<p>Valid until %s.</p>", event.ExpiresAt.Format("2 January 2006"))
	}
	return mail.Message{
		To:       user.Email,
		Subject:  "Your subscription receipt",
		Tag:      "receipt",
		HTMLBody: b.String(),
	}
}
