package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/config"
	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Назначения токенов
const (
	ScopeAccess  = "access"
	ScopeRefresh = "refresh"
	ScopeAdmin   = "admin"
)

// TokenClaims - содержимое JWT
type TokenClaims struct {
	Email string `json:"email"`
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// TokenPair - access и refresh токены пользователя
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	RefreshID    string
	RefreshTTL   time.Duration
}

// TokenManager выпускает и проверяет токены. Пользовательские и админские токены подписаны разными секретами.
type TokenManager struct {
	userSecret  []byte
	adminSecret []byte
	accessTTL   time.Duration
	refreshTTL  time.Duration
	adminTTL    time.Duration
	now         func() time.Time
}

func NewTokenManager(cfg config.AuthConfig) *TokenManager {
	return &TokenManager{
		userSecret:  []byte(cfg.JWTSecret),
		adminSecret: []byte(cfg.AdminJWTSecret),
		accessTTL:   cfg.AccessTokenTTL,
		refreshTTL:  cfg.RefreshTokenTTL,
		adminTTL:    cfg.AdminTokenTTL,
		now:         time.Now,
	}
}

// IssuePair выпускает access и refresh токены пользователя
func (m *TokenManager) IssuePair(userID, email string) (*TokenPair, error) {
	access, _, err := m.sign(m.userSecret, userID, email, ScopeAccess, m.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshID, err := m.sign(m.userSecret, userID, email, ScopeRefresh, m.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, RefreshID: refreshID, RefreshTTL: m.refreshTTL}, nil
}

// IssueAdmin выпускает токен администратора
func (m *TokenManager) IssueAdmin(adminID, email string) (string, error) {
	token, _, err := m.sign(m.adminSecret, adminID, email, ScopeAdmin, m.adminTTL)
	return token, err
}

func (m *TokenManager) sign(secret []byte, subject, email, scope string, ttl time.Duration) (string, string, error) {
	now := m.now()
	id := uuid.NewString()
	claims := TokenClaims{
		Email: email,
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, id, nil
}

// ValidateAccess проверяет access токен пользователя
func (m *TokenManager) ValidateAccess(token string) (*TokenClaims, error) {
	return m.validate(m.userSecret, token, ScopeAccess)
}

// ValidateRefresh проверяет refresh токен. Проверка отзыва - на стороне вызывающего.
func (m *TokenManager) ValidateRefresh(token string) (*TokenClaims, error) {
	return m.validate(m.userSecret, token, ScopeRefresh)
}

// ValidateAdmin проверяет токен администратора
func (m *TokenManager) ValidateAdmin(token string) (*TokenClaims, error) {
	return m.validate(m.adminSecret, token, ScopeAdmin)
}

func (m *TokenManager) validate(secret []byte, tokenString, scope string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: malformed token", domain.ErrUnauthorized)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, fmt.Errorf("%w: invalid token signature", domain.ErrUnauthorized)
		case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, fmt.Errorf("%w: token expired", domain.ErrUnauthorized)
		default:
			return nil, fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
		}
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid token claims", domain.ErrUnauthorized)
	}
	if claims.Scope != scope {
		return nil, fmt.Errorf("%w: wrong token scope", domain.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: subject missing in token", domain.ErrUnauthorized)
	}
	return claims, nil
}
