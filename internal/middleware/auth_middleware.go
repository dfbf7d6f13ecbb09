package middleware

import (
	"net/http"
	"strings"

	"github.com/Dhoini/subscription-commerce/internal/auth"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/Dhoini/subscription-commerce/pkg/res"
	"github.com/gin-gonic/gin"
)

// ContextKey тип для ключей контекста во избежание коллизий.
type ContextKey string

const (
	// ContextUserIDKey ключ ID пользователя в контексте gin
	ContextUserIDKey ContextKey = "userID"
	// ContextAdminIDKey ключ ID администратора в контексте gin
	ContextAdminIDKey ContextKey = "adminID"
	ContextEmailKey   ContextKey = "email"

	authHeaderPrefix = "Bearer "
)

// TokenValidator проверяет bearer токен и возвращает его claims
type TokenValidator interface {
	ValidateAccess(token string) (*auth.TokenClaims, error)
	ValidateAdmin(token string) (*auth.TokenClaims, error)
}

type JWTMiddleware struct {
	log       *logger.Logger
	validator TokenValidator
}

func NewJWTMiddleware(validator TokenValidator, log *logger.Logger) *JWTMiddleware {
	return &JWTMiddleware{
		log:       log.Named("auth"),
		validator: validator,
	}
}

// RequireUser пропускает запросы с access токеном пользователя
func (m *JWTMiddleware) RequireUser() gin.HandlerFunc {
	return m.require(m.validator.ValidateAccess, ContextUserIDKey)
}

// RequireAdmin пропускает запросы с токеном администратора.
// Токен пользователя подписан другим секретом и сюда не проходит.
func (m *JWTMiddleware) RequireAdmin() gin.HandlerFunc {
	return m.require(m.validator.ValidateAdmin, ContextAdminIDKey)
}

func (m *JWTMiddleware) require(validate func(string) (*auth.TokenClaims, error), key ContextKey) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, authHeaderPrefix) {
			m.handleAuthError(c, "Missing authorization token")
			return
		}

		claims, err := validate(strings.TrimSpace(strings.TrimPrefix(authHeader, authHeaderPrefix)))
		if err != nil {
			m.log.Debugw("Token rejected", "path", c.Request.URL.Path, "error", err)
			m.handleAuthError(c, "Invalid or expired token")
			return
		}
		if claims.Subject == "" {
			m.handleAuthError(c, "Token subject is missing")
			return
		}

		c.Set(string(key), claims.Subject)
		c.Set(string(ContextEmailKey), claims.Email)
		c.Next()
	}
}

func (m *JWTMiddleware) handleAuthError(c *gin.Context, message string) {
	m.log.Warnw("HTTP authentication failed", "path", c.Request.URL.Path, "reason", message)
	res.JsonErrorResponse(c.Writer, res.ErrorResponse{
		Error:   "unauthorized",
		Message: message,
	}, http.StatusUnauthorized)
	c.Abort()
}

// UserID возвращает ID пользователя, установленный RequireUser
func UserID(c *gin.Context) string {
	return c.GetString(string(ContextUserIDKey))
}

// AdminID возвращает ID администратора, установленный RequireAdmin
func AdminID(c *gin.Context) string {
	return c.GetString(string(ContextAdminIDKey))
}
