package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/Dhoini/subscription-commerce/internal/storage"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/google/uuid"
)

// PlanInput - данные плана. При обновлении пустые поля сохраняют старые значения.
type PlanInput struct {
	ServiceID      string
	SubServiceID   string
	Name           string
	Status         domain.PlanStatus
	DurationMonths *int
	Pricing        []domain.PricingTier
}

// PlanService - CRUD планов и тарифов
type PlanService interface {
	Create(ctx context.Context, in PlanInput) (*domain.Plan, error)
	List(ctx context.Context, filter domain.PlanFilter) ([]domain.Plan, domain.PageMeta, error)
	GetByID(ctx context.Context, planID string) (*domain.Plan, error)
	GetByName(ctx context.Context, name string) (*domain.Plan, error)
	GetByServiceAndSubService(ctx context.Context, serviceID, subServiceID string) (*domain.Plan, error)
	Update(ctx context.Context, planID string, in PlanInput) (*domain.Plan, error)
	Delete(ctx context.Context, planID string) error
	DeletePricing(ctx context.Context, planID, pricingID string) (*domain.Plan, error)
}

type planService struct {
	plans    repository.PlanRepository
	services repository.ServiceRepository
	log      *logger.Logger
	now      func() time.Time
}

func NewPlanService(plans repository.PlanRepository, services repository.ServiceRepository, log *logger.Logger) PlanService {
	return &planService{plans: plans, services: services, log: log.Named("plans"), now: time.Now}
}

// validateTiers проверяет цены и выдает ID новым тарифам
func validateTiers(tiers []domain.PricingTier) (domain.PricingTiers, error) {
	var verr domain.ValidationErrors
	out := make(domain.PricingTiers, 0, len(tiers))
	for i, tier := range tiers {
		field := fmt.Sprintf("pricing[%d]", i)
		if strings.TrimSpace(tier.Name) == "" {
			verr.Add(field+".name", "is required")
		}
		if _, err := domain.ParsePrice(tier.Price); err != nil {
			verr.Add(field+".price", "must be a positive amount")
		}
		if tier.PricingID == "" {
			tier.PricingID = uuid.NewString()
		}
		out = append(out, tier)
	}
	return out, verr.ErrOrNil()
}

func (s *planService) Create(ctx context.Context, in PlanInput) (*domain.Plan, error) {
	var verr domain.ValidationErrors
	if in.ServiceID == "" {
		verr.Add("serviceId", "is required")
	}
	if in.SubServiceID == "" {
		verr.Add("subServiceId", "is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		verr.Add("name", "is required")
	}
	if in.Status != "" && !in.Status.Valid() {
		verr.Add("status", "must be Active, Inactive or Pending")
	}
	if in.DurationMonths != nil && *in.DurationMonths < 0 {
		verr.Add("durationMonths", "must not be negative")
	}
	if err := verr.ErrOrNil(); err != nil {
		return nil, err
	}
	tiers, err := validateTiers(in.Pricing)
	if err != nil {
		return nil, err
	}

	exists, err := s.services.ServiceAndSubServiceExist(ctx, in.ServiceID, in.SubServiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to check service: %w", err)
	}
	if !exists {
		return nil, domain.NewNotFoundError("sub service", in.ServiceID+"/"+in.SubServiceID)
	}

	status := in.Status
	if status == "" {
		status = domain.PlanStatusActive
	}
	now := s.now()
	plan := &domain.Plan{
		PlanID:         uuid.NewString(),
		ServiceID:      in.ServiceID,
		SubServiceID:   in.SubServiceID,
		Name:           strings.TrimSpace(in.Name),
		Pricing:        tiers,
		Status:         status,
		DurationMonths: in.DurationMonths,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	// Уникальность пары (service, subService) обеспечивает индекс: дубликат дает DuplicateError
	if err := s.plans.Create(ctx, plan); err != nil {
		return nil, err
	}
	s.log.Infow("Plan created", "planID", plan.PlanID, "name", plan.Name)
	return plan, nil
}

func (s *planService) List(ctx context.Context, filter domain.PlanFilter) ([]domain.Plan, domain.PageMeta, error) {
	filter.Page, filter.PerPage = domain.NormalizePage(filter.Page, filter.PerPage)
	plans, total, err := s.plans.List(ctx, filter)
	if err != nil {
		return nil, domain.PageMeta{}, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, domain.NewPageMeta(total, filter.Page, filter.PerPage), nil
}

func (s *planService) GetByID(ctx context.Context, planID string) (*domain.Plan, error) {
	return s.plans.GetByID(ctx, planID)
}

func (s *planService) GetByName(ctx context.Context, name string) (*domain.Plan, error) {
	return s.plans.GetByName(ctx, name)
}

func (s *planService) GetByServiceAndSubService(ctx context.Context, serviceID, subServiceID string) (*domain.Plan, error) {
	return s.plans.FindByServiceAndSubService(ctx, serviceID, subServiceID)
}

// Update сливает тарифы по pricingId, новые тарифы добавляются в конец
func (s *planService) Update(ctx context.Context, planID string, in PlanInput) (*domain.Plan, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		plan.Name = name
	}
	if in.Status != "" {
		if !in.Status.Valid() {
			return nil, domain.NewValidationError("status", "must be Active, Inactive or Pending")
		}
		plan.Status = in.Status
	}
	if in.DurationMonths != nil {
		if *in.DurationMonths < 0 {
			return nil, domain.NewValidationError("durationMonths", "must not be negative")
		}
		plan.DurationMonths = in.DurationMonths
	}

	if len(in.Pricing) > 0 {
		incoming, err := validateTiers(in.Pricing)
		if err != nil {
			return nil, err
		}
		index := make(map[string]int, len(plan.Pricing))
		for i, tier := range plan.Pricing {
			index[tier.PricingID] = i
		}
		for _, tier := range incoming {
			if i, ok := index[tier.PricingID]; ok {
				plan.Pricing[i] = tier
				continue
			}
			plan.Pricing = append(plan.Pricing, tier)
		}
	}

	plan.UpdatedAt = s.now()
	if err := s.plans.Update(ctx, plan); err != nil {
		return nil, err
	}
	s.log.Infow("Plan updated", "planID", plan.PlanID)
	return plan, nil
}

func (s *planService) Delete(ctx context.Context, planID string) error {
	if err := s.plans.Delete(ctx, planID); err != nil {
		return err
	}
	s.log.Infow("Plan deleted", "planID", planID)
	return nil
}

func (s *planService) DeletePricing(ctx context.Context, planID, pricingID string) (*domain.Plan, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	kept := make(domain.PricingTiers, 0, len(plan.Pricing))
	for _, tier := range plan.Pricing {
		if tier.PricingID != pricingID {
			kept = append(kept, tier)
		}
	}
	if len(kept) == len(plan.Pricing) {
		return nil, domain.NewNotFoundError("pricing tier", pricingID)
	}
	plan.Pricing = kept
	plan.UpdatedAt = s.now()
	if err := s.plans.Update(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// ServiceInput - данные услуги или подуслуги. Logo - загружаемый файл, может быть nil.
type ServiceInput struct {
	Heading     string
	Description string
	Content     domain.ContentBlocks
	Logo        *storage.Object
}

// CatalogService - услуги и подуслуги
type CatalogService interface {
	Create(ctx context.Context, in ServiceInput) (*domain.Service, error)
	AddSubService(ctx context.Context, serviceID string, in ServiceInput) (*domain.Service, error)
	List(ctx context.Context) ([]domain.Service, error)
	GetByID(ctx context.Context, serviceID string) (*domain.Service, error)
	GetSubService(ctx context.Context, serviceID, subServiceID string) (*domain.SubService, error)
	Update(ctx context.Context, serviceID string, in ServiceInput) (*domain.Service, error)
}

type catalogService struct {
	services repository.ServiceRepository
	uploader storage.Uploader
	log      *logger.Logger
	now      func() time.Time
}

func NewCatalogService(services repository.ServiceRepository, uploader storage.Uploader, log *logger.Logger) CatalogService {
	return &catalogService{services: services, uploader: uploader, log: log.Named("catalog"), now: time.Now}
}

func (s *catalogService) uploadLogo(ctx context.Context, prefix string, obj *storage.Object) (string, error) {
	if obj == nil {
		return "", nil
	}
	obj.Prefix = prefix
	url, err := s.uploader.Upload(ctx, *obj)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedType) {
			return "", domain.NewValidationError("logo", "must be png, jpeg, webp or svg")
		}
		return "", fmt.Errorf("failed to upload logo: %w", err)
	}
	return url, nil
}

func (s *catalogService) Create(ctx context.Context, in ServiceInput) (*domain.Service, error) {
	if strings.TrimSpace(in.Heading) == "" {
		return nil, domain.NewValidationError("heading", "is required")
	}
	if in.Logo == nil {
		return nil, domain.NewValidationError("logo", "is required")
	}
	logo, err := s.uploadLogo(ctx, "services", in.Logo)
	if err != nil {
		return nil, err
	}

	now := s.now()
	svc := &domain.Service{
		ServiceID:   uuid.NewString(),
		Heading:     strings.TrimSpace(in.Heading),
		Description: in.Description,
		Logo:        logo,
		Content:     in.Content,
		SubServices: domain.SubServices{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.services.Create(ctx, svc); err != nil {
		return nil, err
	}
	s.log.Infow("Service created", "serviceID", svc.ServiceID)
	return svc, nil
}

func (s *catalogService) AddSubService(ctx context.Context, serviceID string, in ServiceInput) (*domain.Service, error) {
	if strings.TrimSpace(in.Heading) == "" {
		return nil, domain.NewValidationError("heading", "is required")
	}
	svc, err := s.services.GetByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	logo, err := s.uploadLogo(ctx, "sub-services", in.Logo)
	if err != nil {
		return nil, err
	}

	svc.SubServices = append(svc.SubServices, domain.SubService{
		SubServiceID: uuid.NewString(),
		Heading:      strings.TrimSpace(in.Heading),
		Description:  in.Description,
		Logo:         logo,
		Content:      in.Content,
	})
	svc.UpdatedAt = s.now()
	if err := s.services.Update(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *catalogService) List(ctx context.Context) ([]domain.Service, error) {
	return s.services.List(ctx)
}

func (s *catalogService) GetByID(ctx context.Context, serviceID string) (*domain.Service, error) {
	return s.services.GetByID(ctx, serviceID)
}

func (s *catalogService) GetSubService(ctx context.Context, serviceID, subServiceID string) (*domain.SubService, error) {
	svc, err := s.services.GetByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	sub, ok := svc.FindSubService(subServiceID)
	if !ok {
		return nil, domain.NewNotFoundError("sub service", subServiceID)
	}
	return sub, nil
}

func (s *catalogService) Update(ctx context.Context, serviceID string, in ServiceInput) (*domain.Service, error) {
	svc, err := s.services.GetByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if h := strings.TrimSpace(in.Heading); h != "" {
		svc.Heading = h
	}
	if in.Description != "" {
		svc.Description = in.Description
	}
	if in.Content != nil {
		svc.Content = in.Content
	}
	if in.Logo != nil {
		logo, err := s.uploadLogo(ctx, "services", in.Logo)
		if err != nil {
			return nil, err
		}
		svc.Logo = logo
	}
	svc.UpdatedAt = s.now()
	if err := s.services.Update(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}
