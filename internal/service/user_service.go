package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/auth"
	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/identity"
	"github.com/Dhoini/subscription-commerce/internal/mail"
	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/google/uuid"
)

const minPasswordLength = 8

// RegisterInput - данные регистрации
type RegisterInput struct {
	Name        string
	Email       string
	Phone       string
	Country     string
	CallingCode string
	Gender      int
	Password    string
}

// UserProfile - пользователь со сводкой подписок
type UserProfile struct {
	User   *domain.User              `json:"user"`
	Counts domain.SubscriptionCounts `json:"subscriptions"`
}

// UserService - регистрация, вход и профиль покупателя
type UserService interface {
	SendOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) error
	Register(ctx context.Context, in RegisterInput) (*domain.User, *auth.TokenPair, error)
	Login(ctx context.Context, email, password string) (*domain.User, *auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.User, *auth.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	VerifyToken(ctx context.Context, accessToken string) (*domain.User, error)
	GoogleSignIn(ctx context.Context, idToken string) (*domain.User, *auth.TokenPair, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
	GetProfile(ctx context.Context, userID string) (*UserProfile, error)
	List(ctx context.Context, filter domain.UserFilter) ([]domain.User, domain.PageMeta, error)
}

// UserDeps - зависимости сервиса пользователей
type UserDeps struct {
	Users         repository.UserRepository
	Verifications repository.VerificationRepository
	Subscriptions repository.SubscriptionRepository
	Denylist      repository.TokenDenylist
	Tokens        *auth.TokenManager
	Mailer        mail.Sender
	Identity      identity.Verifier
}

type userService struct {
	UserDeps
	log *logger.Logger
	now func() time.Time
}

func NewUserService(deps UserDeps, log *logger.Logger) UserService {
	return &userService{UserDeps: deps, log: log.Named("users"), now: time.Now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var errBadCredentials = fmt.Errorf("%w: invalid email or password", domain.ErrUnauthorized)

// issueOTP сохраняет хеш нового кода и отправляет код письмом
func issueOTP(ctx context.Context, repo repository.VerificationRepository, mailer mail.Sender, email string, purpose domain.OTPPurpose, now time.Time) error {
	code, err := auth.NewOTP()
	if err != nil {
		return err
	}
	if err := repo.Upsert(ctx, &domain.EmailVerification{
		Email:     email,
		Purpose:   purpose,
		CodeHash:  auth.HashOTP(code),
		ExpiresAt: now.Add(domain.OTPTTL),
		UpdatedAt: now,
	}); err != nil {
		return fmt.Errorf("failed to save otp: %w", err)
	}
	if err := mailer.Send(ctx, mail.OTPMessage(email, code, purpose)); err != nil {
		return fmt.Errorf("failed to send otp: %w", err)
	}
	return nil
}

// checkOTP сверяет код. Ошибка всегда ValidationError, чтобы не раскрывать причину.
func checkOTP(ctx context.Context, repo repository.VerificationRepository, email, code string, purpose domain.OTPPurpose, now time.Time) (*domain.EmailVerification, error) {
	v, err := repo.Get(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewValidationError("otp", "is invalid or expired")
		}
		return nil, err
	}
	if v.Expired(now) || !auth.MatchOTP(code, v.CodeHash) {
		return nil, domain.NewValidationError("otp", "is invalid or expired")
	}
	return v, nil
}

func (s *userService) SendOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return domain.NewValidationError("email", "is required")
	}
	if _, err := s.Users.GetByEmail(ctx, email); err == nil {
		return domain.NewDuplicateError("user", "email", email)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if err := issueOTP(ctx, s.Verifications, s.Mailer, email, domain.OTPPurposeVerifyEmail, s.now()); err != nil {
		return err
	}
	s.log.Infow("Verification code sent", "email", email)
	return nil
}

func (s *userService) VerifyOTP(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)
	v, err := checkOTP(ctx, s.Verifications, email, code, domain.OTPPurposeVerifyEmail, s.now())
	if err != nil {
		return err
	}
	v.Verified = true
	v.UpdatedAt = s.now()
	return s.Verifications.Upsert(ctx, v)
}

func (s *userService) Register(ctx context.Context, in RegisterInput) (*domain.User, *auth.TokenPair, error) {
	email := normalizeEmail(in.Email)
	var verr domain.ValidationErrors
	if strings.TrimSpace(in.Name) == "" {
		verr.Add("name", "is required")
	}
	if email == "" {
		verr.Add("email", "is required")
	}
	if len(in.Password) < minPasswordLength {
		verr.Add("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if err := verr.ErrOrNil(); err != nil {
		return nil, nil, err
	}

	v, err := s.Verifications.Get(ctx, email, domain.OTPPurposeVerifyEmail)
	if err != nil || !v.Verified {
		return nil, nil, domain.NewValidationError("email", "is not verified")
	}
	if in.Phone != "" {
		if _, err := s.Users.GetByPhone(ctx, in.Phone); err == nil {
			return nil, nil, domain.NewDuplicateError("user", "phone", in.Phone)
		}
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, nil, err
	}
	now := s.now()
	user := &domain.User{
		UserID:       uuid.NewString(),
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		Phone:        in.Phone,
		Country:      in.Country,
		CallingCode:  in.CallingCode,
		Gender:       domain.Gender(in.Gender),
		PasswordHash: hash,
		Provider:     domain.AuthProviderLocal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Users.Create(ctx, user); err != nil {
		return nil, nil, err
	}
	if err := s.Verifications.Delete(ctx, email, domain.OTPPurposeVerifyEmail); err != nil {
		s.log.Warnw("Failed to delete used verification", "email", email, "error", err)
	}

	pair, err := s.Tokens.IssuePair(user.UserID, user.Email)
	if err != nil {
		return nil, nil, err
	}
	s.log.Infow("User registered", "userID", user.UserID)
	return user, pair, nil
}

func (s *userService) Login(ctx context.Context, email, password string) (*domain.User, *auth.TokenPair, error) {
	user, err := s.Users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, errBadCredentials
		}
		return nil, nil, err
	}
	if user.PasswordHash == "" {
		// Аккаунт создан через Google
		return nil, nil, errBadCredentials
	}
	if err := auth.NewCredentialVerifier(user.PasswordHash).Verify(password); err != nil {
		s.log.Warnw("Failed login attempt", "userID", user.UserID)
		return nil, nil, errBadCredentials
	}
	pair, err := s.Tokens.IssuePair(user.UserID, user.Email)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Refresh выпускает новую пару и отзывает использованный refresh токен
func (s *userService) Refresh(ctx context.Context, refreshToken string) (*domain.User, *auth.TokenPair, error) {
	claims, err := s.Tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, nil, err
	}
	revoked, err := s.Denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check token: %w", err)
	}
	if revoked {
		return nil, nil, fmt.Errorf("%w: token revoked", domain.ErrUnauthorized)
	}
	user, err := s.Users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: user no longer exists", domain.ErrUnauthorized)
		}
		return nil, nil, err
	}

	s.revoke(ctx, claims)
	pair, err := s.Tokens.IssuePair(user.UserID, user.Email)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

func (s *userService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.Tokens.ValidateRefresh(refreshToken)
	if err != nil {
		// Истекший или чужой токен и так бесполезен
		return nil
	}
	s.revoke(ctx, claims)
	return nil
}

func (s *userService) revoke(ctx context.Context, claims *auth.TokenClaims) {
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if left := claims.ExpiresAt.Sub(s.now()); left > 0 {
			ttl = left
		}
	}
	if err := s.Denylist.Revoke(ctx, claims.ID, ttl); err != nil {
		s.log.Errorw("Failed to revoke refresh token", "userID", claims.Subject, "error", err)
	}
}

func (s *userService) VerifyToken(ctx context.Context, accessToken string) (*domain.User, error) {
	claims, err := s.Tokens.ValidateAccess(accessToken)
	if err != nil {
		return nil, err
	}
	user, err := s.Users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: user no longer exists", domain.ErrUnauthorized)
		}
		return nil, err
	}
	return user, nil
}

// GoogleSignIn находит пользователя по UID провайдера или e-mail, иначе создает нового
func (s *userService) GoogleSignIn(ctx context.Context, idToken string) (*domain.User, *auth.TokenPair, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, nil, domain.NewValidationError("idToken", "is required")
	}
	ident, err := s.Identity.Verify(ctx, idToken)
	if err != nil {
		s.log.Warnw("Google sign-in rejected", "error", err)
		return nil, nil, fmt.Errorf("%w: invalid google token", domain.ErrUnauthorized)
	}

	user, err := s.Users.GetByExternalUID(ctx, ident.UID)
	if errors.Is(err, domain.ErrNotFound) && ident.Email != "" {
		user, err = s.Users.GetByEmail(ctx, normalizeEmail(ident.Email))
		if err == nil && user.ExternalUID == "" {
			user.ExternalUID = ident.UID
			user.UpdatedAt = s.now()
			if err := s.Users.Update(ctx, user); err != nil {
				return nil, nil, err
			}
		}
	}
	if errors.Is(err, domain.ErrNotFound) {
		now := s.now()
		user = &domain.User{
			UserID:      uuid.NewString(),
			Name:        ident.Name,
			Email:       normalizeEmail(ident.Email),
			Phone:       ident.Phone,
			Provider:    domain.AuthProviderGoogle,
			ExternalUID: ident.UID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.Users.Create(ctx, user); err != nil {
			return nil, nil, err
		}
		s.log.Infow("User registered via Google", "userID", user.UserID)
	} else if err != nil {
		return nil, nil, err
	}

	pair, err := s.Tokens.IssuePair(user.UserID, user.Email)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

func (s *userService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if _, err := s.Users.GetByEmail(ctx, email); err != nil {
		return err
	}
	return issueOTP(ctx, s.Verifications, s.Mailer, email, domain.OTPPurposeResetPassword, s.now())
}

func (s *userService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = normalizeEmail(email)
	if len(newPassword) < minPasswordLength {
		return domain.NewValidationError("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if _, err := checkOTP(ctx, s.Verifications, email, code, domain.OTPPurposeResetPassword, s.now()); err != nil {
		return err
	}
	user, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.now()
	if err := s.Users.Update(ctx, user); err != nil {
		return err
	}
	if err := s.Verifications.Delete(ctx, email, domain.OTPPurposeResetPassword); err != nil {
		s.log.Warnw("Failed to delete used reset code", "email", email, "error", err)
	}
	s.log.Infow("Password reset", "userID", user.UserID)
	return nil
}

func (s *userService) GetProfile(ctx context.Context, userID string) (*UserProfile, error) {
	user, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts, err := s.Subscriptions.CountByBuyer(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	return &UserProfile{User: user, Counts: counts}, nil
}

func (s *userService) List(ctx context.Context, filter domain.UserFilter) ([]domain.User, domain.PageMeta, error) {
	filter.Page, filter.PerPage = domain.NormalizePage(filter.Page, filter.PerPage)
	users, total, err := s.Users.List(ctx, filter)
	if err != nil {
		return nil, domain.PageMeta{}, fmt.Errorf("failed to list users: %w", err)
	}
	return users, domain.NewPageMeta(total, filter.Page, filter.PerPage), nil
}
