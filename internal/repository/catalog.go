package repository

import (
	"context"

	"github.com/Dhoini/subscription-commerce/internal/domain"
)

// PlanRepository - планы и встроенные тарифы
type PlanRepository interface {
	Create(ctx context.Context, plan *domain.Plan) error
	GetByID(ctx context.Context, planID string) (*domain.Plan, error)
	GetByName(ctx context.Context, name string) (*domain.Plan, error)
	FindByServiceAndSubService(ctx context.Context, serviceID, subServiceID string) (*domain.Plan, error)
	FindPricingTier(ctx context.Context, planID, pricingID string) (*domain.PricingTier, error)
	GetByIDs(ctx context.Context, planIDs []string) (map[string]*domain.Plan, error)
	List(ctx context.Context, filter domain.PlanFilter) ([]domain.Plan, int, error)
	Update(ctx context.Context, plan *domain.Plan) error
	Delete(ctx context.Context, planID string) error
}

// ServiceRepository - услуги и подуслуги
type ServiceRepository interface {
	Create(ctx context.Context, svc *domain.Service) error
	GetByID(ctx context.Context, serviceID string) (*domain.Service, error)
	List(ctx context.Context) ([]domain.Service, error)
	Update(ctx context.Context, svc *domain.Service) error
	ServiceAndSubServiceExist(ctx context.Context, serviceID, subServiceID string) (bool, error)
}
