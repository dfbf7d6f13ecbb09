package postgres

import (
	"context"
	"fmt"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/jmoiron/sqlx"
)

// VerificationRepository хранит одноразовые коды
type VerificationRepository struct {
	db *sqlx.DB
}

func NewVerificationRepository(db *sqlx.DB) *VerificationRepository {
	return &VerificationRepository{db: db}
}

// Upsert заменяет код для пары (email, purpose)
func (r *VerificationRepository) Upsert(ctx context.Context, v *domain.EmailVerification) error {
	query := `
		INSERT INTO email_verifications (email, purpose, code_hash, expires_at, verified, updated_at)
		VALUES (lower(:email), :purpose, :code_hash, :expires_at, :verified, :updated_at)
		ON CONFLICT (email, purpose) DO UPDATE
		SET code_hash = EXCLUDED.code_hash, expires_at = EXCLUDED.expires_at,
			verified = EXCLUDED.verified, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.NamedExecContext(ctx, query, v); err != nil {
		return fmt.Errorf("failed to save verification: %w", err)
	}
	return nil
}

func (r *VerificationRepository) Get(ctx context.Context, email string, purpose domain.OTPPurpose) (*domain.EmailVerification, error) {
	var v domain.EmailVerification
	query := `
		SELECT email, purpose, code_hash, expires_at, verified, updated_at
		FROM email_verifications WHERE email = lower($1) AND purpose = $2
	`
	if err := r.db.GetContext(ctx, &v, query, email, string(purpose)); err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.NewNotFoundError("verification", email)
		}
		return nil, fmt.Errorf("failed to get verification: %w", err)
	}
	return &v, nil
}

func (r *VerificationRepository) Delete(ctx context.Context, email string, purpose domain.OTPPurpose) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM email_verifications WHERE email = lower($1) AND purpose = $2`, email, string(purpose))
	if err != nil {
		return fmt.Errorf("failed to delete verification: %w", err)
	}
	return nil
}
