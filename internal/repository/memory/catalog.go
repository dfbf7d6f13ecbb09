package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/repository"
)

func (s *Store) Plans() repository.PlanRepository       { return &planRepo{s: s} }
func (s *Store) Services() repository.ServiceRepository { return &serviceRepo{s: s} }

type planRepo struct {
	s *Store
}

func (r *planRepo) Create(_ context.Context, plan *domain.Plan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, p := range r.s.plans {
		if p.ServiceID == plan.ServiceID && p.SubServiceID == plan.SubServiceID {
			return domain.NewDuplicateError("plan", "service_id/sub_service_id", plan.ServiceID+"/"+plan.SubServiceID)
		}
	}
	r.s.plans[plan.PlanID] = clonePlan(*plan)
	return nil
}

func (r *planRepo) GetByID(_ context.Context, planID string) (*domain.Plan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	plan, ok := r.s.plans[planID]
	if !ok {
		return nil, domain.NewNotFoundError("plan", planID)
	}
	p := clonePlan(plan)
	return &p, nil
}

func (r *planRepo) find(pred func(domain.Plan) bool, id string) (*domain.Plan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, plan := range r.s.plans {
		if pred(plan) {
			p := clonePlan(plan)
			return &p, nil
		}
	}
	return nil, domain.NewNotFoundError("plan", id)
}

func (r *planRepo) GetByName(_ context.Context, name string) (*domain.Plan, error) {
	return r.find(func(p domain.Plan) bool { return strings.EqualFold(p.Name, name) }, name)
}

func (r *planRepo) FindByServiceAndSubService(_ context.Context, serviceID, subServiceID string) (*domain.Plan, error) {
	return r.find(func(p domain.Plan) bool {
		return p.ServiceID == serviceID && p.SubServiceID == subServiceID
	}, serviceID+"/"+subServiceID)
}

func (r *planRepo) FindPricingTier(ctx context.Context, planID, pricingID string) (*domain.PricingTier, error) {
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

func (r *planRepo) GetByIDs(_ context.Context, planIDs []string) (map[string]*domain.Plan, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make(map[string]*domain.Plan, len(planIDs))
	for _, id := range planIDs {
		if plan, ok := r.s.plans[id]; ok {
			p := clonePlan(plan)
			out[id] = &p
		}
	}
	return out, nil
}

func (r *planRepo) List(_ context.Context, filter domain.PlanFilter) ([]domain.Plan, int, error) {
	page, perPage := domain.NormalizePage(filter.Page, filter.PerPage)
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	r.s.mu.RLock()
	var plans []domain.Plan
	for _, plan := range r.s.plans {
		if search != "" && !strings.Contains(strings.ToLower(plan.Name), search) {
			continue
		}
		if filter.Status != "" && plan.Status != filter.Status {
			continue
		}
		plans = append(plans, clonePlan(plan))
	}
	r.s.mu.RUnlock()

	sort.Slice(plans, func(i, j int) bool {
		if !plans[i].CreatedAt.Equal(plans[j].CreatedAt) {
			return plans[i].CreatedAt.After(plans[j].CreatedAt)
		}
		return plans[i].PlanID < plans[j].PlanID
	})

	total := len(plans)
	start := (page - 1) * perPage
	if start >= total {
		return []domain.Plan{}, total, nil
	}
	end := min(start+perPage, total)
	return plans[start:end], total, nil
}

func (r *planRepo) Update(_ context.Context, plan *domain.Plan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.plans[plan.PlanID]; !ok {
		return domain.NewNotFoundError("plan", plan.PlanID)
	}
	r.s.plans[plan.PlanID] = clonePlan(*plan)
	return nil
}

func (r *planRepo) Delete(_ context.Context, planID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.plans[planID]; !ok {
		return domain.NewNotFoundError("plan", planID)
	}
	delete(r.s.plans, planID)
	return nil
}

func clonePlan(p domain.Plan) domain.Plan {
	tiers := make(domain.PricingTiers, len(p.Pricing))
	for i, t := range p.Pricing {
		t.Features = append([]string(nil), t.Features...)
		tiers[i] = t
	}
	p.Pricing = tiers
	if p.DurationMonths != nil {
		months := *p.DurationMonths
		p.DurationMonths = &months
	}
	return p
}

type serviceRepo struct {
	s *Store
}

func (r *serviceRepo) Create(_ context.Context, svc *domain.Service) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.services[svc.ServiceID]; ok {
		return domain.NewDuplicateError("service", "service_id", svc.ServiceID)
	}
	r.s.services[svc.ServiceID] = cloneService(*svc)
	return nil
}

func (r *serviceRepo) GetByID(_ context.Context, serviceID string) (*domain.Service, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	svc, ok := r.s.services[serviceID]
	if !ok {
		return nil, domain.NewNotFoundError("service", serviceID)
	}
	c := cloneService(svc)
	return &c, nil
}

func (r *serviceRepo) List(_ context.Context) ([]domain.Service, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]domain.Service, 0, len(r.s.services))
	for _, svc := range r.s.services {
		out = append(out, cloneService(svc))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ServiceID < out[j].ServiceID
	})
	return out, nil
}

func (r *serviceRepo) Update(_ context.Context, svc *domain.Service) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.services[svc.ServiceID]; !ok {
		return domain.NewNotFoundError("service", svc.ServiceID)
	}
	r.s.services[svc.ServiceID] = cloneService(*svc)
	return nil
}

func (r *serviceRepo) ServiceAndSubServiceExist(_ context.Context, serviceID, subServiceID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	svc, ok := r.s.services[serviceID]
	if !ok {
		return false, nil
	}
	_, found := svc.FindSubService(subServiceID)
	return found, nil
}

func cloneService(s domain.Service) domain.Service {
	s.Content = append(domain.ContentBlocks(nil), s.Content...)
	subs := make(domain.SubServices, len(s.SubServices))
	for i, sub := range s.SubServices {
		sub.Content = append(domain.ContentBlocks(nil), sub.Content...)
		subs[i] = sub
	}
	s.SubServices = subs
	return s
}
