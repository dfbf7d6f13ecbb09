package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/jmoiron/sqlx"
)

const planColumns = `plan_id, service_id, sub_service_id, name, pricing, status, duration_months, created_at, updated_at`

// PlanRepository реализует каталог планов через sqlx
type PlanRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPlanRepository создает репозиторий планов
func NewPlanRepository(db *sqlx.DB, log *logger.Logger) *PlanRepository {
	return &PlanRepository{db: db, log: log}
}

// Create сохраняет план. Пара (service, subService) уникальна.
func (r *PlanRepository) Create(ctx context.Context, plan *domain.Plan) error {
	query := `
		INSERT INTO plans (` + planColumns + `)
		VALUES (:plan_id, :service_id, :sub_service_id, :name, :pricing, :status, :duration_months, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, plan); err != nil {
		if repository.IsDuplicateKey(err) {
			return domain.NewDuplicateError("plan", "service_id/sub_service_id", plan.ServiceID+"/"+plan.SubServiceID)
		}
		r.log.Errorw("Failed to create plan", "error", err, "planID", plan.PlanID)
		return fmt.Errorf("failed to create plan: %w", err)
	}
	return nil
}

func (r *PlanRepository) getOne(ctx context.Context, where string, id string, args ...any) (*domain.Plan, error) {
	var plan domain.Plan
	query := `SELECT ` + planColumns + ` FROM plans WHERE ` + where + ` LIMIT 1`
	if err := r.db.GetContext(ctx, &plan, query, args...); err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.NewNotFoundError("plan", id)
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return &plan, nil
}

// GetByID возвращает план по ID
func (r *PlanRepository) GetByID(ctx context.Context, planID string) (*domain.Plan, error) {
	return r.getOne(ctx, "plan_id = $1", planID, planID)
}

// GetByName ищет план по имени без учета регистра
func (r *PlanRepository) GetByName(ctx context.Context, name string) (*domain.Plan, error) {
	return r.getOne(ctx, "lower(name) = lower($1)", name, name)
}

// FindByServiceAndSubService возвращает план подуслуги
func (r *PlanRepository) FindByServiceAndSubService(ctx context.Context, serviceID, subServiceID string) (*domain.Plan, error) {
	return r.getOne(ctx, "service_id = $1 AND sub_service_id = $2", serviceID+"/"+subServiceID, serviceID, subServiceID)
}

// FindPricingTier ищет тариф внутри JSONB массива плана
func (r *PlanRepository) FindPricingTier(ctx context.Context, planID, pricingID string) (*domain.PricingTier, error) {
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

// GetByIDs загружает планы пачкой для обогащения списков
func (r *PlanRepository) GetByIDs(ctx context.Context, planIDs []string) (map[string]*domain.Plan, error) {
	out := make(map[string]*domain.Plan, len(planIDs))
	if len(planIDs) == 0 {
		return out, nil
	}
	query, args, err := sqlx.In(`SELECT `+planColumns+` FROM plans WHERE plan_id IN (?)`, planIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build plans query: %w", err)
	}
	var plans []domain.Plan
	if err := r.db.SelectContext(ctx, &plans, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get plans: %w", err)
	}
	for i := range plans {
		out[plans[i].PlanID] = &plans[i]
	}
	return out, nil
}

// List возвращает страницу планов
func (r *PlanRepository) List(ctx context.Context, filter domain.PlanFilter) ([]domain.Plan, int, error) {
	page, perPage := domain.NormalizePage(filter.Page, filter.PerPage)

	var (
		conds []string
		args  []any
	)
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		conds = append(conds, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM plans`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count plans: %w", err)
	}

	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(`SELECT %s FROM plans%s ORDER BY created_at DESC, plan_id ASC LIMIT $%d OFFSET $%d`,
		planColumns, where, len(args)-1, len(args))

	var plans []domain.Plan
	if err := r.db.SelectContext(ctx, &plans, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, total, nil
}

// Update сохраняет план целиком
func (r *PlanRepository) Update(ctx context.Context, plan *domain.Plan) error {
	query := `
		UPDATE plans
		SET name = :name, pricing = :pricing, status = :status,
			duration_months = :duration_months, updated_at = :updated_at
		WHERE plan_id = :plan_id
	`
	res, err := r.db.NamedExecContext(ctx, query, plan)
	if err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.NewNotFoundError("plan", plan.PlanID)
	}
	return nil
}

// Delete удаляет план
func (r *PlanRepository) Delete(ctx context.Context, planID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM plans WHERE plan_id = $1`, planID)
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.NewNotFoundError("plan", planID)
	}
	return nil
}
