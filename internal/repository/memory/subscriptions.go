package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/Dhoini/subscription-commerce/internal/domain"
)

type subscriptionRepo struct {
	s    *Store
	inTx bool
}

func (r *subscriptionRepo) Create(_ context.Context, sub *domain.Subscription) error {
	defer r.s.writeLock(r.inTx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if hook := r.s.beforeSubscriptionCreate; hook != nil {
		if err := hook(sub); err != nil {
			return err
		}
	}
	if _, exists := r.s.subscriptions[sub.SubscriptionID]; exists {
		return domain.NewDuplicateError("subscription", "subscription_id", sub.SubscriptionID)
	}
	if sub.OrderID != "" {
		for _, existing := range r.s.subscriptions {
			if existing.OrderID == sub.OrderID {
				return domain.NewDuplicateError("subscription", "order_id", sub.OrderID)
			}
		}
	}
	r.s.subscriptions[sub.SubscriptionID] = *sub
	return nil
}

func (r *subscriptionRepo) GetByID(_ context.Context, subscriptionID string) (*domain.Subscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sub, exists := r.s.subscriptions[subscriptionID]
	if !exists {
		return nil, domain.NewNotFoundError("subscription", subscriptionID)
	}
	return &sub, nil
}

func (r *subscriptionRepo) GetByOrderID(_ context.Context, orderID string) (*domain.Subscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, sub := range r.s.subscriptions {
		if orderID != "" && sub.OrderID == orderID {
			return &sub, nil
		}
	}
	return nil, domain.NewNotFoundError("subscription", orderID)
}

func (r *subscriptionRepo) GetLatestByBuyer(ctx context.Context, buyerID string) (*domain.Subscription, error) {
	subs, err := r.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, domain.NewNotFoundError("subscription", buyerID)
	}
	return &subs[0], nil
}

// ListByBuyer возвращает подписки покупателя, новые первыми
func (r *subscriptionRepo) ListByBuyer(_ context.Context, buyerID string) ([]domain.Subscription, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var subs []domain.Subscription
	for _, sub := range r.s.subscriptions {
		if sub.BuyerID == buyerID {
			subs = append(subs, sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].CreatedAt.Equal(subs[j].CreatedAt) {
			return subs[i].CreatedAt.After(subs[j].CreatedAt)
		}
		return subs[i].SubscriptionID > subs[j].SubscriptionID
	})
	return subs, nil
}

func (r *subscriptionRepo) List(_ context.Context, filter domain.SubscriptionFilter) ([]domain.Subscription, int, error) {
	filter = filter.Normalize()
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	r.s.mu.RLock()
	var matched []domain.Subscription
	for _, sub := range r.s.subscriptions {
		if filter.BuyerID != "" && sub.BuyerID != filter.BuyerID {
			continue
		}
		if filter.AdminStatus != nil && sub.AdminStatus != *filter.AdminStatus {
			continue
		}
		if search != "" && !r.matches(sub, search) {
			continue
		}
		matched = append(matched, sub)
	}
	r.s.mu.RUnlock()

	column := filter.SortColumn()
	sort.SliceStable(matched, func(i, j int) bool {
		c := compareSubscriptions(matched[i], matched[j], column)
		if c == 0 {
			return matched[i].SubscriptionID < matched[j].SubscriptionID
		}
		if filter.SortDesc {
			return c > 0
		}
		return c < 0
	})

	total := len(matched)
	start := (filter.Page - 1) * filter.PerPage
	if start >= total {
		return []domain.Subscription{}, total, nil
	}
	end := start + filter.PerPage
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// matches вызывается под s.mu
func (r *subscriptionRepo) matches(sub domain.Subscription, search string) bool {
	if strings.Contains(strings.ToLower(sub.PlanName), search) ||
		strings.Contains(strings.ToLower(sub.DeliveryTarget), search) {
		return true
	}
	if user, ok := r.s.users[sub.BuyerID]; ok {
		return strings.Contains(strings.ToLower(user.Name), search) ||
			strings.Contains(strings.ToLower(user.Email), search)
	}
	return false
}

func compareSubscriptions(a, b domain.Subscription, column string) int {
	switch column {
	case "amount":
		return compareInt64(a.Amount, b.Amount)
	case "plan_name":
		return strings.Compare(a.PlanName, b.PlanName)
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	case "started_at":
		return a.StartedAt.Compare(b.StartedAt)
	case "expires_at":
		switch {
		case a.ExpiresAt == nil && b.ExpiresAt == nil:
			return 0
		case a.ExpiresAt == nil:
			return 1
		case b.ExpiresAt == nil:
			return -1
		}
		return a.ExpiresAt.Compare(*b.ExpiresAt)
	default:
		return a.CreatedAt.Compare(b.CreatedAt)
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (r *subscriptionRepo) CountByBuyer(_ context.Context, buyerID string) (domain.SubscriptionCounts, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var c domain.SubscriptionCounts
	for _, sub := range r.s.subscriptions {
		if sub.BuyerID != buyerID {
			continue
		}
		c.Total++
		if sub.Status == domain.SubscriptionStatusActive {
			c.Active++
		}
		if sub.AdminStatus == domain.AdminStatusCompleted {
			c.Completed++
		} else {
			c.InProcess++
		}
	}
	return c, nil
}

func (r *subscriptionRepo) Update(_ context.Context, sub *domain.Subscription) error {
	defer r.s.writeLock(r.inTx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.subscriptions[sub.SubscriptionID]; !exists {
		return domain.NewNotFoundError("subscription", sub.SubscriptionID)
	}
	r.s.subscriptions[sub.SubscriptionID] = *sub
	return nil
}
