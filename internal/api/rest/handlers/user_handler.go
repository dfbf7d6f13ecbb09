package handlers

import (
	"net/http"

	"github.com/Dhoini/subscription-commerce/internal/auth"
	"github.com/Dhoini/subscription-commerce/internal/config"
	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/service"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/gin-gonic/gin"
)

const refreshCookieName = "refreshToken"

// UserHandler - регистрация, вход и профиль
type UserHandler struct {
	users  service.UserService
	cookie config.AuthConfig
	log    *logger.Logger
}

func NewUserHandler(users service.UserService, cookie config.AuthConfig, log *logger.Logger) *UserHandler {
	return &UserHandler{users: users, cookie: cookie, log: log.Named("user_handler")}
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type otpRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

type registerRequest struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone"`
	Country     string `json:"country"`
	CallingCode string `json:"callingCode"`
	Gender      int    `json:"gender" validate:"gte=0,lte=2"`
	Password    string `json:"password" validate:"required,min=8"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type resetPasswordRequest struct {
	Email    string `json:"email" validate:"required,email"`
	OTP      string `json:"otp" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type tokenRequest struct {
	Token string `json:"token" validate:"required"`
}

type userIDRequest struct {
	UserID string `json:"userId" validate:"required"`
}

// setRefreshCookie кладет refresh токен в httpOnly cookie; в теле он не возвращается
func (h *UserHandler) setRefreshCookie(c *gin.Context, pair *auth.TokenPair) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(refreshCookieName, pair.RefreshToken, int(pair.RefreshTTL.Seconds()), "/", h.cookie.CookieDomain, h.cookie.CookieSecure, true)
}

func (h *UserHandler) clearRefreshCookie(c *gin.Context) {
	c.SetCookie(refreshCookieName, "", -1, "/", h.cookie.CookieDomain, h.cookie.CookieSecure, true)
}

func (h *UserHandler) signedIn(c *gin.Context, status int, user *domain.User, pair *auth.TokenPair) {
	h.setRefreshCookie(c, pair)
	respond(c, status, gin.H{"user": user, "accessToken": pair.AccessToken})
}

func (h *UserHandler) SendOTP(c *gin.Context) {
	body, ok := bind[emailRequest](c)
	if !ok {
		return
	}
	if err := h.users.SendOTP(c.Request.Context(), body.Email); err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Verification code sent"})
}

func (h *UserHandler) VerifyOTP(c *gin.Context) {
	body, ok := bind[otpRequest](c)
	if !ok {
		return
	}
	if err := h.users.VerifyOTP(c.Request.Context(), body.Email, body.OTP); err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Email verified"})
}

func (h *UserHandler) Register(c *gin.Context) {
	body, ok := bind[registerRequest](c)
	if !ok {
		return
	}
	user, pair, err := h.users.Register(c.Request.Context(), service.RegisterInput{
		Name:        body.Name,
		Email:       body.Email,
		Phone:       body.Phone,
		Country:     body.Country,
		CallingCode: body.CallingCode,
		Gender:      body.Gender,
		Password:    body.Password,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	h.signedIn(c, http.StatusCreated, user, pair)
}

func (h *UserHandler) Login(c *gin.Context) {
	body, ok := bind[loginRequest](c)
	if !ok {
		return
	}
	user, pair, err := h.users.Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	h.signedIn(c, http.StatusOK, user, pair)
}

// RefreshToken берет refresh токен из cookie и выдает новую пару
func (h *UserHandler) RefreshToken(c *gin.Context) {
	token, err := c.Cookie(refreshCookieName)
	if err != nil || token == "" {
		respondError(c, h.log, domain.ErrUnauthorized)
		return
	}
	user, pair, err := h.users.Refresh(c.Request.Context(), token)
	if err != nil {
		h.clearRefreshCookie(c)
		respondError(c, h.log, err)
		return
	}
	h.signedIn(c, http.StatusOK, user, pair)
}

func (h *UserHandler) Logout(c *gin.Context) {
	if token, err := c.Cookie(refreshCookieName); err == nil && token != "" {
		if err := h.users.Logout(c.Request.Context(), token); err != nil {
			respondError(c, h.log, err)
			return
		}
	}
	h.clearRefreshCookie(c)
	respond(c, http.StatusOK, gin.H{"message": "Logged out"})
}

func (h *UserHandler) VerifyToken(c *gin.Context) {
	body, ok := bind[tokenRequest](c)
	if !ok {
		return
	}
	user, err := h.users.VerifyToken(c.Request.Context(), body.Token)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"user": user})
}

func (h *UserHandler) GoogleSignIn(c *gin.Context) {
	body, ok := bind[tokenRequest](c)
	if !ok {
		return
	}
	user, pair, err := h.users.GoogleSignIn(c.Request.Context(), body.Token)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	h.signedIn(c, http.StatusOK, user, pair)
}

func (h *UserHandler) ForgotPassword(c *gin.Context) {
	body, ok := bind[emailRequest](c)
	if !ok {
		return
	}
	if err := h.users.ForgotPassword(c.Request.Context(), body.Email); err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Reset code sent"})
}

func (h *UserHandler) ResetPassword(c *gin.Context) {
	body, ok := bind[resetPasswordRequest](c)
	if !ok {
		return
	}
	if err := h.users.ResetPassword(c.Request.Context(), body.Email, body.OTP, body.Password); err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Password updated"})
}

func (h *UserHandler) GetByID(c *gin.Context) {
	body, ok := bind[userIDRequest](c)
	if !ok {
		return
	}
	profile, err := h.users.GetProfile(c.Request.Context(), body.UserID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"user": profile.User, "subscriptions": profile.Counts})
}

// GetAll - список пользователей для администратора
func (h *UserHandler) GetAll(c *gin.Context) {
	var page pageQuery
	if err := c.ShouldBindQuery(&page); err != nil {
		respondBindError(c, err)
		return
	}
	users, meta, err := h.users.List(c.Request.Context(), domain.UserFilter{
		Search:   page.Search,
		SortBy:   page.SortBy,
		SortDesc: page.SortDesc,
		Page:     page.Page,
		PerPage:  page.PerPage,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"users": users, "meta": meta})
}
