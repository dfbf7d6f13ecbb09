package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/auth"
	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/gateway"
	"github.com/Dhoini/subscription-commerce/internal/metrics"
	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
)

// CreateOrderInput - данные для нового заказа
type CreateOrderInput struct {
	BuyerID        string
	PlanID         string
	PricingID      string
	DeliveryTarget string
	Currency       string
	Receipt        string
}

// OrderLedger ведет журнал заказов. Статус меняется только вперед: created -> paid | failed.
type OrderLedger interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error)
	MarkPaid(ctx context.Context, orderID string) (*domain.Order, error)
	MarkFailed(ctx context.Context, orderID string) (*domain.Order, error)
	// RecordGatewayStatus сохраняет статус шлюза, не меняя статус заказа
	RecordGatewayStatus(ctx context.Context, orderID, status string) error
}

type orderLedger struct {
	orders          repository.OrderRepository
	users           repository.UserRepository
	plans           repository.PlanRepository
	gateway         gateway.Gateway
	metrics         metrics.CommerceMetrics
	defaultCurrency string
	log             *logger.Logger
	now             func() time.Time
}

// NewOrderLedger создает журнал заказов
func NewOrderLedger(
	orders repository.OrderRepository,
	users repository.UserRepository,
	plans repository.PlanRepository,
	gw gateway.Gateway,
	m metrics.CommerceMetrics,
	defaultCurrency string,
	log *logger.Logger,
) OrderLedger {
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	return &orderLedger{
		orders:          orders,
		users:           users,
		plans:           plans,
		gateway:         gw,
		metrics:         m,
		defaultCurrency: defaultCurrency,
		log:             log.Named("ledger"),
		now:             time.Now,
	}
}

// CreateOrder проверяет покупателя и тариф, создает заказ в шлюзе и сохраняет его в статусе created.
// Подписка здесь не создается никогда.
func (l *orderLedger) CreateOrder(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	var verr domain.ValidationErrors
	if strings.TrimSpace(in.BuyerID) == "" {
		verr.Add("buyerId", "is required")
	}
	if strings.TrimSpace(in.PlanID) == "" {
		verr.Add("planId", "is required")
	}
	if strings.TrimSpace(in.PricingID) == "" {
		verr.Add("pricingId", "is required")
	}
	if strings.TrimSpace(in.DeliveryTarget) == "" {
		verr.Add("deliveryTarget", "is required")
	}
	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}

	if _, err := l.users.GetByID(ctx, in.BuyerID); err != nil {
		return nil, err
	}
	plan, err := l.plans.GetByID(ctx, in.PlanID)
	if err != nil {
		return nil, err
	}
	tier, ok := plan.FindPricing(in.PricingID)
	if !ok {
		return nil, domain.NewNotFoundError("pricing tier", in.PricingID)
	}

	amount, err := domain.ParsePrice(tier.Price)
	if err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = l.defaultCurrency
	}
	receipt := in.Receipt
	if receipt == "" {
		if receipt, err = auth.RandomHex(20); err != nil {
			return nil, fmt.Errorf("failed to generate receipt: %w", err)
		}
	}

	start := time.Now()
	remote, err := l.gateway.CreateOrder(ctx, gateway.CreateOrderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Notes: map[string]string{
			"buyerId":        in.BuyerID,
			"planId":         in.PlanID,
			"pricingId":      in.PricingID,
			"deliveryTarget": in.DeliveryTarget,
		},
	})
	l.metrics.ObserveGatewayCall("create_order", time.Since(start), err)
	if err != nil {
		l.log.Errorw("Gateway order creation failed", "buyerID", in.BuyerID, "planID", in.PlanID, "error", err)
		pe := domain.NewPaymentError(domain.ErrInternal, "payment gateway unavailable", "", err)
		pe.Retryable = !errors.Is(err, context.Canceled)
		return nil, pe
	}

	order := &domain.Order{
		OrderID:        remote.ID,
		Amount:         amount,
		Currency:       currency,
		Receipt:        receipt,
		BuyerID:        in.BuyerID,
		PlanID:         in.PlanID,
		PricingID:      in.PricingID,
		DeliveryTarget: in.DeliveryTarget,
		Status:         domain.OrderStatusCreated,
		CreatedAt:      l.now(),
	}
	if err := l.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	l.metrics.IncOrderCreated(currency)
	l.log.Infow("Order created", "orderID", order.OrderID, "buyerID", order.BuyerID, "amount", amount, "currency", currency)
	return order, nil
}

// MarkPaid переводит заказ в paid. Повторный вызов возвращает заказ без изменений.
func (l *orderLedger) MarkPaid(ctx context.Context, orderID string) (*domain.Order, error) {
	return l.transition(ctx, orderID, domain.OrderStatusPaid)
}

// MarkFailed переводит заказ в failed. Оплаченный заказ дает Conflict.
func (l *orderLedger) MarkFailed(ctx context.Context, orderID string) (*domain.Order, error) {
	return l.transition(ctx, orderID, domain.OrderStatusFailed)
}

// transitionAttempts ограничивает повторы условной записи. Статус двигается только
// вперед из created, поэтому после одного проигрыша перечитанный заказ уже терминальный.
const transitionAttempts = 3

func (l *orderLedger) transition(ctx context.Context, orderID string, to domain.OrderStatus) (*domain.Order, error) {
	for attempt := 0; attempt < transitionAttempts; attempt++ {
		order, err := l.orders.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		from := order.Status
		changed, err := order.Transition(to)
		if err != nil {
			return nil, err
		}
		if !changed {
			return order, nil
		}
		if to == domain.OrderStatusPaid && order.PaidAt == nil {
			now := l.now()
			order.PaidAt = &now
		}

		saved, err := l.orders.UpdateIfStatus(ctx, order, from)
		if err != nil {
			return nil, fmt.Errorf("failed to update order: %w", err)
		}
		if saved {
			l.log.Infow("Order status changed", "orderID", orderID, "status", to)
			return order, nil
		}
		l.log.Debugw("Order status changed concurrently, re-reading", "orderID", orderID, "attempt", attempt+1)
	}
	return nil, &domain.TransitionError{Entity: "order", ID: orderID, From: "concurrent update", To: string(to)}
}

// RecordGatewayStatus пишет только gateway_status: статус заказа и реквизиты платежа не затрагиваются
func (l *orderLedger) RecordGatewayStatus(ctx context.Context, orderID, status string) error {
	if err := l.orders.SetGatewayStatus(ctx, orderID, status); err != nil {
		return fmt.Errorf("failed to record gateway status: %w", err)
	}
	return nil
}
