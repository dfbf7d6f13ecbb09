package repository

import (
	"context"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
)

// CachedSubscriptionRepository кеширует списки подписок покупателя
type CachedSubscriptionRepository struct {
	SubscriptionRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedSubscriptionRepository создает новый репозиторий с кешированием
func NewCachedSubscriptionRepository(
	repo SubscriptionRepository,
	cache *RedisCacheRepository,
	log *logger.Logger,
) *CachedSubscriptionRepository {
	return &CachedSubscriptionRepository{
		SubscriptionRepository: repo,
		cache:                  cache,
		log:                    log,
	}
}

// Create сохраняет подписку и сбрасывает кеш покупателя
func (r *CachedSubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	if err := r.SubscriptionRepository.Create(ctx, sub); err != nil {
		return err
	}
	r.InvalidateBuyer(ctx, sub.BuyerID)
	return nil
}

// Update обновляет подписку и сбрасывает кеш покупателя
func (r *CachedSubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	if err := r.SubscriptionRepository.Update(ctx, sub); err != nil {
		return err
	}
	r.InvalidateBuyer(ctx, sub.BuyerID)
	return nil
}

// ListByBuyer возвращает подписки покупателя (сначала из кеша, потом из БД)
func (r *CachedSubscriptionRepository) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Subscription, error) {
	cached, found, err := r.cache.GetCachedBuyerSubscriptions(ctx, buyerID)
	if err != nil {
		r.log.Warnw("Error getting buyer subscriptions from cache", "error", err, "buyerID", buyerID)
		// Продолжаем выполнение при ошибке кеша
	}
	if found {
		r.log.Debugw("Buyer subscriptions found in cache", "buyerID", buyerID, "count", len(cached))
		return cached, nil
	}

	subs, err := r.SubscriptionRepository.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.CacheBuyerSubscriptions(ctx, buyerID, subs); err != nil {
		r.log.Warnw("Failed to cache buyer subscriptions", "error", err, "buyerID", buyerID)
	}
	return subs, nil
}

// InvalidateBuyer сбрасывает кеш покупателя. Используется после транзакций активации,
// которые пишут в обход декоратора.
func (r *CachedSubscriptionRepository) InvalidateBuyer(ctx context.Context, buyerID string) {
	if err := r.cache.InvalidateBuyerSubscriptions(ctx, buyerID); err != nil {
		r.log.Warnw("Failed to invalidate buyer subscriptions cache", "error", err, "buyerID", buyerID)
	}
}
