package repository

import (
	"context"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
)

// CachedPlanRepository кеширует планы по ID. Каталог меняется редко, а читается на каждом заказе.
type CachedPlanRepository struct {
	PlanRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedPlanRepository создает репозиторий планов с кешированием
func NewCachedPlanRepository(repo PlanRepository, cache *RedisCacheRepository, log *logger.Logger) *CachedPlanRepository {
	return &CachedPlanRepository{PlanRepository: repo, cache: cache, log: log}
}

// GetByID получает план по ID (сначала из кеша, потом из БД)
func (r *CachedPlanRepository) GetByID(ctx context.Context, planID string) (*domain.Plan, error) {
	cached, err := r.cache.GetCachedPlan(ctx, planID)
	if err != nil {
		r.log.Warnw("Error getting plan from cache", "error", err, "planID", planID)
	}
	if cached != nil {
		return cached, nil
	}

	plan, err := r.PlanRepository.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if err := r.cache.CachePlan(ctx, plan); err != nil {
		r.log.Warnw("Failed to cache plan", "error", err, "planID", planID)
	}
	return plan, nil
}

// FindPricingTier использует кешированный план
func (r *CachedPlanRepository) FindPricingTier(ctx context.Context, planID, pricingID string) (*domain.PricingTier, error) {
	plan, err := r.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	tier, ok := plan.FindPricing(pricingID)
	if !ok {
		return nil, domain.NewNotFoundError("pricing tier", pricingID)
	}
	return tier, nil
}

// Update обновляет план и удаляет его из кеша
func (r *CachedPlanRepository) Update(ctx context.Context, plan *domain.Plan) error {
	if err := r.PlanRepository.Update(ctx, plan); err != nil {
		return err
	}
	r.evict(ctx, plan.PlanID)
	return nil
}

// Delete удаляет план и его кеш
func (r *CachedPlanRepository) Delete(ctx context.Context, planID string) error {
	if err := r.PlanRepository.Delete(ctx, planID); err != nil {
		return err
	}
	r.evict(ctx, planID)
	return nil
}

func (r *CachedPlanRepository) evict(ctx context.Context, planID string) {
	if err := r.cache.DeleteCachedPlan(ctx, planID); err != nil {
		r.log.Warnw("Failed to evict plan from cache", "error", err, "planID", planID)
	}
}
