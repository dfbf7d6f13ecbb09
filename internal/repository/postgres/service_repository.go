package postgres

import (
	"context"
	"fmt"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/jmoiron/sqlx"
)

const serviceColumns = `service_id, heading, description, logo, content, sub_services, created_at, updated_at`

// ServiceRepository реализует каталог услуг через sqlx
type ServiceRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewServiceRepository создает репозиторий услуг
func NewServiceRepository(db *sqlx.DB, log *logger.Logger) *ServiceRepository {
	return &ServiceRepository{db: db, log: log}
}

// Create сохраняет услугу
func (r *ServiceRepository) Create(ctx context.Context, svc *domain.Service) error {
	query := `
		INSERT INTO services (` + serviceColumns + `)
		VALUES (:service_id, :heading, :description, :logo, :content, :sub_services, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, svc); err != nil {
		if repository.IsDuplicateKey(err) {
			return domain.NewDuplicateError("service", "service_id", svc.ServiceID)
		}
		return fmt.Errorf("failed to create service: %w", err)
	}
	return nil
}

// GetByID возвращает услугу по ID
func (r *ServiceRepository) GetByID(ctx context.Context, serviceID string) (*domain.Service, error) {
	var svc domain.Service
	query := `SELECT ` + serviceColumns + ` FROM services WHERE service_id = $1`
	if err := r.db.GetContext(ctx, &svc, query, serviceID); err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.NewNotFoundError("service", serviceID)
		}
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return &svc, nil
}

// List возвращает все услуги
func (r *ServiceRepository) List(ctx context.Context) ([]domain.Service, error) {
	var services []domain.Service
	query := `SELECT ` + serviceColumns + ` FROM services ORDER BY created_at ASC, service_id ASC`
	if err := r.db.SelectContext(ctx, &services, query); err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}

// Update сохраняет услугу вместе с подуслугами
func (r *ServiceRepository) Update(ctx context.Context, svc *domain.Service) error {
	query := `
		UPDATE services
		SET heading = :heading, description = :description, logo = :logo,
			content = :content, sub_services = :sub_services, updated_at = :updated_at
		WHERE service_id = :service_id
	`
	res, err := r.db.NamedExecContext(ctx, query, svc)
	if err != nil {
		return fmt.Errorf("failed to update service: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.NewNotFoundError("service", svc.ServiceID)
	}
	return nil
}

// ServiceAndSubServiceExist проверяет наличие подуслуги внутри услуги
func (r *ServiceRepository) ServiceAndSubServiceExist(ctx context.Context, serviceID, subServiceID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM services
			WHERE service_id = $1
			  AND sub_services @> jsonb_build_array(jsonb_build_object('subServiceId', $2::text))
		)
	`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, serviceID, subServiceID); err != nil {
		return false, fmt.Errorf("failed to check service: %w", err)
	}
	return exists, nil
}
