package domain

import "time"

// Имена событий подписки в Kafka
const (
	EventSubscriptionActivated = "subscription_activated"
	EventSubscriptionCancelled = "subscription_cancelled"
	EventSubscriptionRenewed   = "subscription_renewed"
)

// SubscriptionEvent - сообщение о смене состояния подписки
type SubscriptionEvent struct {
	Type           string             `json:"type"`
	SubscriptionID string             `json:"subscriptionId"`
	BuyerID        string             `json:"buyerId"`
	PlanID         string             `json:"planId"`
	PlanName       string             `json:"planName"`
	OrderID        string             `json:"orderId,omitempty"`
	Amount         int64              `json:"amount"`
	Currency       string             `json:"currency"`
	Status         SubscriptionStatus `json:"status"`
	ExpiresAt      *time.Time         `json:"expiresAt,omitempty"`
	OccurredAt     time.Time          `json:"occurredAt"`
}

// NewSubscriptionEvent собирает событие из подписки
func NewSubscriptionEvent(eventType string, s *Subscription, at time.Time) SubscriptionEvent {
	return SubscriptionEvent{
		Type:           eventType,
		SubscriptionID: s.SubscriptionID,
		BuyerID:        s.BuyerID,
		PlanID:         s.PlanID,
		PlanName:       s.PlanName,
		OrderID:        s.OrderID,
		Amount:         s.Amount,
		Currency:       s.Currency,
		Status:         s.Status,
		ExpiresAt:      s.ExpiresAt,
		OccurredAt:     at,
	}
}
