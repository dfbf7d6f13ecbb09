package repository

import (
	"context"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
)

// UserRepository - покупатели
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	GetByExternalUID(ctx context.Context, uid string) (*domain.User, error)
	List(ctx context.Context, filter domain.UserFilter) ([]domain.User, int, error)
	Update(ctx context.Context, user *domain.User) error
}

// AdminRepository - администраторы
type AdminRepository interface {
	GetByID(ctx context.Context, adminID string) (*domain.Admin, error)
	GetByEmail(ctx context.Context, email string) (*domain.Admin, error)
	Update(ctx context.Context, admin *domain.Admin) error
}

// VerificationRepository - одноразовые коды для e-mail
type VerificationRepository interface {
	Upsert(ctx context.Context, v *domain.EmailVerification) error
	Get(ctx context.Context, email string, purpose domain.OTPPurpose) (*domain.EmailVerification, error)
	Delete(ctx context.Context, email string, purpose domain.OTPPurpose) error
}

// TokenDenylist хранит отозванные refresh-токены до истечения их срока
type TokenDenylist interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
