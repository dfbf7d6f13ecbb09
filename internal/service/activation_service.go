package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/gateway"
	"github.com/Dhoini/subscription-commerce/internal/metrics"
	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/google/uuid"
)

// VerifyPaymentInput - реквизиты, которые клиент получил от платежной формы
type VerifyPaymentInput struct {
	OrderID   string
	PaymentID string
	Signature string
}

// ActivationResult - итог проверки. Created=false для повторной проверки уже оплаченного заказа.
type ActivationResult struct {
	Subscription *domain.Subscription
	Created      bool
}

// ActivationService проверяет оплату и создает подписку
type ActivationService interface {
	VerifyAndActivate(ctx context.Context, in VerifyPaymentInput) (*ActivationResult, error)
}

type activationService struct {
	ledger  OrderLedger
	orders  repository.OrderRepository
	subs    repository.SubscriptionRepository
	tx      repository.Transactor
	plans   repository.PlanRepository
	gateway gateway.Gateway
	signer  *gateway.Signer
	events  *EventDispatcher
	cache   BuyerCacheInvalidator
	metrics metrics.CommerceMetrics
	timeout time.Duration
	log     *logger.Logger
	now     func() time.Time
}

// ActivationDeps - зависимости активатора
type ActivationDeps struct {
	Ledger        OrderLedger
	Orders        repository.OrderRepository
	Subscriptions repository.SubscriptionRepository
	Transactor    repository.Transactor
	// Plans читается без кеша: имя плана и срок берутся свежими
	Plans   repository.PlanRepository
	Gateway gateway.Gateway
	Signer  *gateway.Signer
	Events  *EventDispatcher
	Cache   BuyerCacheInvalidator
	Metrics metrics.CommerceMetrics
	Timeout time.Duration
}

// NewActivationService создает активатор подписок
func NewActivationService(deps ActivationDeps, log *logger.Logger) ActivationService {
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &activationService{
		ledger:  deps.Ledger,
		orders:  deps.Orders,
		subs:    deps.Subscriptions,
		tx:      deps.Transactor,
		plans:   deps.Plans,
		gateway: deps.Gateway,
		signer:  deps.Signer,
		events:  deps.Events,
		cache:   deps.Cache,
		metrics: deps.Metrics,
		timeout: timeout,
		log:     log.Named("activator"),
		now:     time.Now,
	}
}

// VerifyAndActivate проверяет подпись и статус платежа, затем в одной транзакции
// переводит заказ в paid и создает подписку. Повторный вызов для того же платежа
// возвращает уже созданную подписку.
func (s *activationService) VerifyAndActivate(ctx context.Context, in VerifyPaymentInput) (*ActivationResult, error) {
	var verr domain.ValidationErrors
	if strings.TrimSpace(in.OrderID) == "" {
		verr.Add("orderId", "is required")
	}
	if strings.TrimSpace(in.PaymentID) == "" {
		verr.Add("paymentId", "is required")
	}
	if strings.TrimSpace(in.Signature) == "" {
		verr.Add("signature", "is required")
	}
	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}

	log := s.log.With("orderID", in.OrderID, "paymentID", in.PaymentID)

	order, err := s.orders.GetByID(ctx, in.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		s.metrics.IncVerification(metrics.OutcomeError)
		return nil, domain.NewPaymentError(domain.ErrInternal, "failed to load order", in.OrderID, err)
	}

	if !s.signer.Verify(in.OrderID, in.PaymentID, in.Signature) {
		log.Warnw("Payment signature mismatch")
		s.markFailed(ctx, order.OrderID, log)
		s.metrics.IncVerification(metrics.OutcomeBadSignature)
		return nil, domain.NewPaymentError(domain.ErrSignatureInvalid, "payment signature mismatch", in.OrderID, nil)
	}

	if err := s.confirmCapture(ctx, order, in.PaymentID, log); err != nil {
		return nil, err
	}

	var (
		sub     *domain.Subscription
		created bool
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		sub, created = nil, false

		locked, err := tx.Orders().GetForUpdate(ctx, in.OrderID)
		if err != nil {
			return err
		}
		if locked.Status == domain.OrderStatusPaid && locked.PaymentID != "" && locked.PaymentID != in.PaymentID {
			return fmt.Errorf("%w: order %s is already paid by another payment", domain.ErrConflict, in.OrderID)
		}
		changed, err := locked.MarkPaid(in.PaymentID, in.Signature, s.now())
		if err != nil {
			return err
		}
		if changed {
			locked.GatewayStatus = string(gateway.PaymentStatusCaptured)
			if err := tx.Orders().Update(ctx, locked); err != nil {
				return err
			}
		}

		existing, err := tx.Subscriptions().GetByOrderID(ctx, in.OrderID)
		if err == nil {
			sub = existing
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		sub, err = s.newSubscription(ctx, locked, log)
		if err != nil {
			return err
		}
		if err := tx.Subscriptions().Create(ctx, sub); err != nil {
			return err
		}
		created = true
		return nil
	})

	if err != nil {
		var dup *domain.DuplicateError
		switch {
		case errors.As(err, &dup):
			// Параллельная проверка успела создать подписку по этому заказу
			existing, getErr := s.subs.GetByOrderID(ctx, in.OrderID)
			if getErr != nil {
				s.metrics.IncVerification(metrics.OutcomeError)
				return nil, domain.NewPaymentError(domain.ErrInternal, "failed to load subscription", in.OrderID, getErr)
			}
			sub, created = existing, false
		case errors.Is(err, domain.ErrConflict):
			log.Warnw("Order cannot be activated", "error", err)
			s.metrics.IncVerification(metrics.OutcomeConflict)
			return nil, err
		default:
			log.Errorw("Activation transaction failed", "error", err)
			s.metrics.IncVerification(metrics.OutcomeError)
			return nil, domain.NewPaymentError(domain.ErrInternal, "failed to activate subscription", in.OrderID, err)
		}
	}

	if !created {
		s.metrics.IncVerification(metrics.OutcomeIdempotent)
		log.Infow("Payment already verified", "subscriptionID", sub.SubscriptionID)
		return &ActivationResult{Subscription: sub}, nil
	}

	s.metrics.IncVerification(metrics.OutcomeActivated)
	s.metrics.IncActivation(sub.Currency)
	s.metrics.ObserveActivationAmount(sub.Amount, sub.Currency)
	s.events.Dispatch(ctx, domain.NewSubscriptionEvent(domain.EventSubscriptionActivated, sub, s.now()))
	if s.cache != nil {
		s.cache.InvalidateBuyer(ctx, sub.BuyerID)
	}

	log.Infow("Subscription activated", "subscriptionID", sub.SubscriptionID, "buyerID", sub.BuyerID)
	return &ActivationResult{Subscription: sub, Created: true}, nil
}

// confirmCapture спрашивает у шлюза статус платежа
func (s *activationService) confirmCapture(ctx context.Context, order *domain.Order, paymentID string, log *logger.Logger) error {
	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	payment, err := s.gateway.FetchPayment(fetchCtx, paymentID)
	s.metrics.ObserveGatewayCall("fetch_payment", time.Since(start), err)
	if err != nil {
		s.metrics.IncVerification(metrics.OutcomeGatewayError)
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warnw("Gateway confirmation timed out", "timeout", s.timeout)
			pe := domain.NewPaymentError(domain.ErrPaymentNotCaptured, "payment confirmation timed out", order.OrderID, err)
			pe.Retryable = true
			return pe
		}
		log.Errorw("Gateway confirmation failed", "error", err)
		pe := domain.NewPaymentError(domain.ErrInternal, "payment gateway unavailable", order.OrderID, err)
		pe.Retryable = true
		return pe
	}

	if payment.OrderID != "" && payment.OrderID != order.OrderID {
		log.Warnw("Payment belongs to another order", "paymentOrderID", payment.OrderID)
		s.metrics.IncVerification(metrics.OutcomeNotCaptured)
		pe := domain.NewPaymentError(domain.ErrPaymentNotCaptured, "payment does not belong to this order", order.OrderID, nil)
		pe.GatewayStatus = string(payment.Status)
		return pe
	}

	if payment.Status.IsCaptured() {
		if payment.Amount != order.Amount || !strings.EqualFold(payment.Currency, order.Currency) {
			log.Warnw("Captured payment does not match order amount",
				"paymentAmount", payment.Amount, "paymentCurrency", payment.Currency,
				"orderAmount", order.Amount, "orderCurrency", order.Currency)
			s.metrics.IncVerification(metrics.OutcomeNotCaptured)
			pe := domain.NewPaymentError(domain.ErrPaymentNotCaptured, "payment amount does not match order", order.OrderID, nil)
			pe.GatewayStatus = string(payment.Status)
			return pe
		}
		return nil
	}

	s.metrics.IncVerification(metrics.OutcomeNotCaptured)
	if err := s.ledger.RecordGatewayStatus(ctx, order.OrderID, string(payment.Status)); err != nil {
		log.Warnw("Failed to record gateway status", "error", err)
	}
	if !payment.Status.IsPending() {
		s.markFailed(ctx, order.OrderID, log)
	}
	log.Infow("Payment not captured", "gatewayStatus", payment.Status)
	pe := domain.NewPaymentError(domain.ErrPaymentNotCaptured, "payment is not captured", order.OrderID, nil)
	pe.GatewayStatus = string(payment.Status)
	return pe
}

// markFailed фиксирует отказ. Уже оплаченный заказ не трогаем.
func (s *activationService) markFailed(ctx context.Context, orderID string, log *logger.Logger) {
	if _, err := s.ledger.MarkFailed(ctx, orderID); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			log.Warnw("Order already paid, keeping paid status")
			return
		}
		log.Errorw("Failed to mark order failed", "error", err)
	}
}

// newSubscription собирает подписку из оплаченного заказа и текущего состояния плана
func (s *activationService) newSubscription(ctx context.Context, order *domain.Order, log *logger.Logger) (*domain.Subscription, error) {
	now := s.now()
	sub := &domain.Subscription{
		SubscriptionID: uuid.NewString(),
		BuyerID:        order.BuyerID,
		PlanID:         order.PlanID,
		PricingID:      order.PricingID,
		DeliveryTarget: order.DeliveryTarget,
		OrderID:        order.OrderID,
		PaymentID:      order.PaymentID,
		Amount:         order.Amount,
		Currency:       order.Currency,
		Status:         domain.SubscriptionStatusActive,
		AdminStatus:    domain.AdminStatusInProcess,
		StartedAt:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	plan, err := s.plans.GetByID(ctx, order.PlanID)
	switch {
	case err == nil:
		sub.PlanName = plan.Name
		if plan.HasDuration() {
			expires := domain.AddMonths(now, *plan.DurationMonths)
			sub.ExpiresAt = &expires
		}
	case errors.Is(err, domain.ErrNotFound):
		// Оплата уже списана: подписку создаем даже если план удалили
		log.Warnw("Plan not found while activating, creating subscription without plan details", "planID", order.PlanID)
	default:
		return nil, err
	}
	return sub, nil
}
