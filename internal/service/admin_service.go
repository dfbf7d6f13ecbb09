package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/auth"
	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/mail"
	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
)

// AdminService - вход и пароли администраторов
type AdminService interface {
	Login(ctx context.Context, email, password string) (*domain.Admin, string, error)
	UpdatePassword(ctx context.Context, adminID, currentPassword, newPassword string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
}

type adminService struct {
	admins repository.AdminRepository
	tokens *auth.TokenManager
	mailer mail.Sender
	log    *logger.Logger
	now    func() time.Time
}

func NewAdminService(admins repository.AdminRepository, tokens *auth.TokenManager, mailer mail.Sender, log *logger.Logger) AdminService {
	return &adminService{admins: admins, tokens: tokens, mailer: mailer, log: log.Named("admins"), now: time.Now}
}

// Login принимает bcrypt и устаревший открытый пароль. После входа с открытым паролем
// он заменяется bcrypt-хешем.
func (s *adminService) Login(ctx context.Context, email, password string) (*domain.Admin, string, error) {
	admin, err := s.admins.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "", errBadCredentials
		}
		return nil, "", err
	}

	verifier := auth.NewCredentialVerifier(admin.Credential)
	if err := verifier.Verify(password); err != nil {
		s.log.Warnw("Failed admin login attempt", "adminID", admin.AdminID)
		return nil, "", errBadCredentials
	}

	if verifier.NeedsRehash() {
		if err := s.setPassword(ctx, admin, password); err != nil {
			// Вход уже подтвержден, миграция повторится при следующем входе
			s.log.Errorw("Failed to migrate legacy admin credential", "adminID", admin.AdminID, "error", err)
		} else {
			s.log.Infow("Legacy admin credential migrated to bcrypt", "adminID", admin.AdminID)
		}
	}

	token, err := s.tokens.IssueAdmin(admin.AdminID, admin.Email)
	if err != nil {
		return nil, "", err
	}
	return admin, token, nil
}

func (s *adminService) setPassword(ctx context.Context, admin *domain.Admin, password string) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	admin.Credential = hash
	admin.UpdatedAt = s.now()
	return s.admins.Update(ctx, admin)
}

func (s *adminService) UpdatePassword(ctx context.Context, adminID, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return domain.NewValidationError("newPassword", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	admin, err := s.admins.GetByID(ctx, adminID)
	if err != nil {
		return err
	}
	if err := auth.NewCredentialVerifier(admin.Credential).Verify(currentPassword); err != nil {
		return domain.NewValidationError("currentPassword", "is incorrect")
	}
	if err := s.setPassword(ctx, admin, newPassword); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	s.log.Infow("Admin password updated", "adminID", adminID)
	return nil
}

func (s *adminService) ForgotPassword(ctx context.Context, email string) error {
	admin, err := s.admins.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	code, err := auth.NewOTP()
	if err != nil {
		return err
	}
	expires := s.now().Add(domain.OTPTTL)
	admin.ResetOTPHash = auth.HashOTP(code)
	admin.ResetExpires = &expires
	admin.UpdatedAt = s.now()
	if err := s.admins.Update(ctx, admin); err != nil {
		return fmt.Errorf("failed to save reset code: %w", err)
	}
	if err := s.mailer.Send(ctx, mail.OTPMessage(admin.Email, code, domain.OTPPurposeResetPassword)); err != nil {
		return fmt.Errorf("failed to send reset code: %w", err)
	}
	return nil
}

func (s *adminService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return domain.NewValidationError("newPassword", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	admin, err := s.admins.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return err
	}
	if admin.ResetOTPHash == "" || admin.ResetExpires == nil || s.now().After(*admin.ResetExpires) ||
		!auth.MatchOTP(code, admin.ResetOTPHash) {
		return domain.NewValidationError("otp", "is invalid or expired")
	}
	admin.ResetOTPHash = ""
	admin.ResetExpires = nil
	if err := s.setPassword(ctx, admin, newPassword); err != nil {
		return fmt.Errorf("failed to reset password: %w", err)
	}
	s.log.Infow("Admin password reset", "adminID", admin.AdminID)
	return nil
}
