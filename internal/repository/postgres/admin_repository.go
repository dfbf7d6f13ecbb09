package postgres

import (
	"context"
	"fmt"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/jmoiron/sqlx"
)

const adminColumns = `admin_id, email, credential, reset_otp_hash, reset_expires_at, created_at, updated_at`

// AdminRepository реализует хранилище администраторов
type AdminRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

func NewAdminRepository(db *sqlx.DB, log *logger.Logger) *AdminRepository {
	return &AdminRepository{db: db, log: log}
}

func (r *AdminRepository) getOne(ctx context.Context, where, id string) (*domain.Admin, error) {
	var admin domain.Admin
	if err := r.db.GetContext(ctx, &admin, `SELECT `+adminColumns+` FROM admins WHERE `+where, id); err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.NewNotFoundError("admin", id)
		}
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	return &admin, nil
}

func (r *AdminRepository) GetByID(ctx context.Context, adminID string) (*domain.Admin, error) {
	return r.getOne(ctx, "admin_id = $1", adminID)
}

func (r *AdminRepository) GetByEmail(ctx context.Context, email string) (*domain.Admin, error) {
	return r.getOne(ctx, "lower(email) = lower($1)", email)
}

// Update сохраняет учетные данные и состояние сброса пароля
func (r *AdminRepository) Update(ctx context.Context, admin *domain.Admin) error {
	query := `
		UPDATE admins
		SET email = :email, credential = :credential, reset_otp_hash = :reset_otp_hash,
			reset_expires_at = :reset_expires_at, updated_at = :updated_at
		WHERE admin_id = :admin_id
	`
	res, err := r.db.NamedExecContext(ctx, query, admin)
	if err != nil {
		return fmt.Errorf("failed to update admin: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.NewNotFoundError("admin", admin.AdminID)
	}
	return nil
}
