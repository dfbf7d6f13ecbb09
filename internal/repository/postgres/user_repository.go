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

const userColumns = `user_id, name, email, phone, country, calling_code, gender, password_hash,
	provider, external_uid, created_at, updated_at`

// UserRepository реализует хранилище покупателей через sqlx
type UserRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewUserRepository создает репозиторий покупателей
func NewUserRepository(db *sqlx.DB, log *logger.Logger) *UserRepository {
	return &UserRepository{db: db, log: log}
}

// Create сохраняет пользователя; конфликт e-mail или телефона дает DuplicateError
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (:user_id, :name, :email, :phone, :country, :calling_code, :gender, :password_hash,
			:provider, :external_uid, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if repository.IsDuplicateKey(err) {
			field := "email"
			if strings.Contains(repository.ConstraintName(err), "phone") {
				field = "phone"
			}
			return domain.NewDuplicateError("user", field, "")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, where, id string, arg any) (*domain.User, error) {
	var user domain.User
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` LIMIT 1`
	if err := r.db.GetContext(ctx, &user, query, arg); err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.NewNotFoundError("user", id)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	return r.getOne(ctx, "user_id = $1", userID, userID)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "lower(email) = lower($1)", email, email)
}

func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	return r.getOne(ctx, "phone = $1", phone, phone)
}

func (r *UserRepository) GetByExternalUID(ctx context.Context, uid string) (*domain.User, error) {
	return r.getOne(ctx, "external_uid = $1", uid, uid)
}

// List возвращает страницу пользователей с поиском по имени, e-mail и телефону
func (r *UserRepository) List(ctx context.Context, filter domain.UserFilter) ([]domain.User, int, error) {
	page, perPage := domain.NormalizePage(filter.Page, filter.PerPage)

	where := ""
	var args []any
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		where = " WHERE name ILIKE $1 OR email ILIKE $1 OR phone ILIKE $1"
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY %s %s, user_id ASC LIMIT $%d OFFSET $%d`,
		userColumns, where, filter.SortColumn(), direction, len(args)-1, len(args))

	var users []domain.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// Update сохраняет профиль и пароль
func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET name = :name, phone = :phone, country = :country, calling_code = :calling_code,
			gender = :gender, password_hash = :password_hash, provider = :provider,
			external_uid = :external_uid, updated_at = :updated_at
		WHERE user_id = :user_id
	`
	res, err := r.db.NamedExecContext(ctx, query, user)
	if err != nil {
		if repository.IsDuplicateKey(err) {
			return domain.NewDuplicateError("user", "phone", user.Phone)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.NewNotFoundError("user", user.UserID)
	}
	return nil
}
