package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/metrics"
	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/google/uuid"
)

// UpsertSubscriptionInput - ручное создание или изменение подписки в обход заказа.
// Пустые поля не меняют существующую подписку.
type UpsertSubscriptionInput struct {
	RequesterID string
	// ByAdmin снимает проверку, что запрашивающий - сам покупатель
	ByAdmin   bool
	BuyerID   string
	PlanID    string
	PricingID string
	Currency  string
	Price     string
}

// SubscriptionService управляет жизненным циклом подписок
type SubscriptionService interface {
	Cancel(ctx context.Context, subscriptionID, requesterID string) (*domain.Subscription, error)
	Renew(ctx context.Context, subscriptionID, requesterID string) (*domain.Subscription, error)
	UpdateOrCreate(ctx context.Context, in UpsertSubscriptionInput) (*domain.Subscription, error)
	SetAdminStatus(ctx context.Context, subscriptionID string, status int) (*domain.Subscription, error)
	List(ctx context.Context, filter domain.SubscriptionFilter) ([]domain.SubscriptionView, domain.PageMeta, error)
	ListForBuyer(ctx context.Context, buyerID string) ([]domain.SubscriptionView, int, error)
}

type subscriptionService struct {
	subs    repository.SubscriptionRepository
	plans   repository.PlanRepository
	events  *EventDispatcher
	metrics metrics.CommerceMetrics
	log     *logger.Logger
	now     func() time.Time
}

// NewSubscriptionService создает менеджер жизненного цикла
func NewSubscriptionService(
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	events *EventDispatcher,
	m metrics.CommerceMetrics,
	log *logger.Logger,
) SubscriptionService {
	return &subscriptionService{
		subs:    subs,
		plans:   plans,
		events:  events,
		metrics: m,
		log:     log.Named("subscriptions"),
		now:     time.Now,
	}
}

// loadOwned возвращает подписку, если ей владеет requester
func (s *subscriptionService) loadOwned(ctx context.Context, subscriptionID, requesterID, action string) (*domain.Subscription, error) {
	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if !sub.OwnedBy(requesterID) {
		s.log.Warnw("Subscription access denied", "action", action, "subscriptionID", subscriptionID, "requesterID", requesterID)
		return nil, domain.NewForbiddenError(action, subscriptionID)
	}
	return sub, nil
}

// Cancel отменяет подписку. Повторная отмена ничего не меняет.
func (s *subscriptionService) Cancel(ctx context.Context, subscriptionID, requesterID string) (*domain.Subscription, error) {
	sub, err := s.loadOwned(ctx, subscriptionID, requesterID, "cancel subscription")
	if err != nil {
		return nil, err
	}
	if sub.Status == domain.SubscriptionStatusCancelled {
		return sub, nil
	}

	now := s.now()
	sub.Status = domain.SubscriptionStatusCancelled
	sub.CancelledAt = &now
	sub.UpdatedAt = now
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to cancel subscription: %w", err)
	}

	s.metrics.IncLifecycle("cancel")
	s.events.Dispatch(ctx, domain.NewSubscriptionEvent(domain.EventSubscriptionCancelled, sub, now))
	s.log.Infow("Subscription cancelled", "subscriptionID", sub.SubscriptionID)
	return sub, nil
}

// Renew продлевает подписку на срок плана от текущего момента
func (s *subscriptionService) Renew(ctx context.Context, subscriptionID, requesterID string) (*domain.Subscription, error) {
	sub, err := s.loadOwned(ctx, subscriptionID, requesterID, "renew subscription")
	if err != nil {
		return nil, err
	}

	plan, err := s.plans.GetByID(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}
	if !plan.HasDuration() {
		return nil, fmt.Errorf("%w: plan %s has no duration", domain.ErrInvalidPlan, plan.PlanID)
	}

	now := s.now()
	expires := domain.AddMonths(now, *plan.DurationMonths)
	sub.Status = domain.SubscriptionStatusActive
	sub.StartedAt = now
	sub.ExpiresAt = &expires
	sub.CancelledAt = nil
	sub.UpdatedAt = now
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to renew subscription: %w", err)
	}

	s.metrics.IncLifecycle("renew")
	s.events.Dispatch(ctx, domain.NewSubscriptionEvent(domain.EventSubscriptionRenewed, sub, now))
	s.log.Infow("Subscription renewed", "subscriptionID", sub.SubscriptionID, "expiresAt", expires)
	return sub, nil
}

// UpdateOrCreate меняет последнюю подписку покупателя или создает новую
func (s *subscriptionService) UpdateOrCreate(ctx context.Context, in UpsertSubscriptionInput) (*domain.Subscription, error) {
	if strings.TrimSpace(in.BuyerID) == "" {
		return nil, domain.NewValidationError("buyerId", "is required")
	}
	if !in.ByAdmin && in.RequesterID != in.BuyerID {
		return nil, domain.NewForbiddenError("update subscriptions of", in.BuyerID)
	}

	existing, err := s.subs.GetLatestByBuyer(ctx, in.BuyerID)
	switch {
	case err == nil:
		return s.applyOverride(ctx, existing, in)
	case errors.Is(err, domain.ErrNotFound):
		return s.createManual(ctx, in)
	default:
		return nil, fmt.Errorf("failed to load latest subscription: %w", err)
	}
}

func (s *subscriptionService) applyOverride(ctx context.Context, sub *domain.Subscription, in UpsertSubscriptionInput) (*domain.Subscription, error) {
	now := s.now()

	if in.PlanID != "" && in.PlanID != sub.PlanID {
		plan, err := s.plans.GetByID(ctx, in.PlanID)
		if err != nil {
			return nil, err
		}
		sub.PlanID = plan.PlanID
		sub.PlanName = plan.Name
		if plan.HasDuration() {
			expires := domain.AddMonths(sub.StartedAt, *plan.DurationMonths)
			sub.ExpiresAt = &expires
		} else {
			sub.ExpiresAt = nil
		}
	}
	if in.PricingID != "" {
		tier, err := s.plans.FindPricingTier(ctx, sub.PlanID, in.PricingID)
		if err != nil {
			return nil, err
		}
		sub.PricingID = tier.PricingID
		if in.Price == "" {
			amount, err := domain.ParsePrice(tier.Price)
			if err != nil {
				return nil, err
			}
			sub.Amount = amount
		}
	}
	if in.Price != "" {
		amount, err := domain.ParsePrice(in.Price)
		if err != nil {
			return nil, err
		}
		sub.Amount = amount
	}
	if c := strings.ToUpper(strings.TrimSpace(in.Currency)); c != "" {
		sub.Currency = c
	}
	sub.UpdatedAt = now

	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to update subscription: %w", err)
	}
	s.metrics.IncLifecycle("override")
	s.log.Infow("Subscription overridden", "subscriptionID", sub.SubscriptionID, "requesterID", in.RequesterID, "byAdmin", in.ByAdmin)
	return sub, nil
}

func (s *subscriptionService) createManual(ctx context.Context, in UpsertSubscriptionInput) (*domain.Subscription, error) {
	var verr domain.ValidationErrors
	if in.PlanID == "" {
		verr.Add("planId", "is required to create a subscription")
	}
	if in.PricingID == "" {
		verr.Add("pricingId", "is required to create a subscription")
	}
	if strings.TrimSpace(in.Currency) == "" {
		verr.Add("currency", "is required to create a subscription")
	}
	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}

	plan, err := s.plans.GetByID(ctx, in.PlanID)
	if err != nil {
		return nil, err
	}
	tier, ok := plan.FindPricing(in.PricingID)
	if !ok {
		return nil, domain.NewNotFoundError("pricing tier", in.PricingID)
	}
	price := in.Price
	if price == "" {
		price = tier.Price
	}
	amount, err := domain.ParsePrice(price)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sub := &domain.Subscription{
		SubscriptionID: uuid.NewString(),
		BuyerID:        in.BuyerID,
		PlanID:         plan.PlanID,
		PricingID:      tier.PricingID,
		PlanName:       plan.Name,
		Amount:         amount,
		Currency:       strings.ToUpper(strings.TrimSpace(in.Currency)),
		Status:         domain.SubscriptionStatusActive,
		AdminStatus:    domain.AdminStatusInProcess,
		StartedAt:      now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if plan.HasDuration() {
		expires := domain.AddMonths(now, *plan.DurationMonths)
		sub.ExpiresAt = &expires
	}
	if err := s.subs.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	s.metrics.IncLifecycle("manual_create")
	s.log.Infow("Subscription created manually", "subscriptionID", sub.SubscriptionID, "buyerID", sub.BuyerID, "byAdmin", in.ByAdmin)
	return sub, nil
}

// SetAdminStatus меняет рабочий статус подписки (0 - в работе, 1 - выполнена)
func (s *subscriptionService) SetAdminStatus(ctx context.Context, subscriptionID string, status int) (*domain.Subscription, error) {
	adminStatus := domain.AdminStatus(status)
	if !adminStatus.Valid() {
		return nil, domain.NewValidationError("status", "must be 0 or 1")
	}
	sub, err := s.subs.GetByID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.AdminStatus == adminStatus {
		return sub, nil
	}
	sub.AdminStatus = adminStatus
	sub.UpdatedAt = s.now()
	if err := s.subs.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to update admin status: %w", err)
	}
	s.metrics.IncLifecycle("admin_status")
	return sub, nil
}

// List возвращает страницу подписок с тарифами
func (s *subscriptionService) List(ctx context.Context, filter domain.SubscriptionFilter) ([]domain.SubscriptionView, domain.PageMeta, error) {
	filter = filter.Normalize()
	subs, total, err := s.subs.List(ctx, filter)
	if err != nil {
		return nil, domain.PageMeta{}, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	views, err := s.enrich(ctx, subs)
	if err != nil {
		return nil, domain.PageMeta{}, err
	}
	return views, domain.NewPageMeta(total, filter.Page, filter.PerPage), nil
}

// ListForBuyer возвращает все подписки покупателя
func (s *subscriptionService) ListForBuyer(ctx context.Context, buyerID string) ([]domain.SubscriptionView, int, error) {
	subs, err := s.subs.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list buyer subscriptions: %w", err)
	}
	views, err := s.enrich(ctx, subs)
	if err != nil {
		return nil, 0, err
	}
	return views, len(views), nil
}

// enrich добавляет к подпискам снимок тарифа одним запросом к каталогу
func (s *subscriptionService) enrich(ctx context.Context, subs []domain.Subscription) ([]domain.SubscriptionView, error) {
	views := make([]domain.SubscriptionView, 0, len(subs))
	if len(subs) == 0 {
		return views, nil
	}

	ids := make([]string, 0, len(subs))
	seen := make(map[string]bool, len(subs))
	for _, sub := range subs {
		if !seen[sub.PlanID] {
			seen[sub.PlanID] = true
			ids = append(ids, sub.PlanID)
		}
	}
	plans, err := s.plans.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load plans: %w", err)
	}

	for _, sub := range subs {
		view := domain.SubscriptionView{Subscription: sub}
		if plan, ok := plans[sub.PlanID]; ok {
			if tier, ok := plan.FindPricing(sub.PricingID); ok {
				view.Pricing = tier
			}
		}
		views = append(views, view)
	}
	return views, nil
}
