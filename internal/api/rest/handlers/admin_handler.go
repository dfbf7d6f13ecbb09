package handlers

import (
	"net/http"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/middleware"
	"github.com/Dhoini/subscription-commerce/internal/service"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/gin-gonic/gin"
)

// AdminHandler - вход администратора и работа с подписками
type AdminHandler struct {
	admins service.AdminService
	subs   service.SubscriptionService
	log    *logger.Logger
}

func NewAdminHandler(admins service.AdminService, subs service.SubscriptionService, log *logger.Logger) *AdminHandler {
	return &AdminHandler{admins: admins, subs: subs, log: log.Named("admin_handler")}
}

type updatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

type tasksRequest struct {
	AdminStatus *int   `json:"adminStatus" validate:"omitempty,oneof=0 1"`
	BuyerID     string `json:"buyerId"`
	Search      string `json:"search"`
	SortBy      string `json:"sortBy"`
	SortDesc    bool   `json:"sortDesc"`
	Page        int    `json:"page"`
	PerPage     int    `json:"perPage"`
}

type updateStatusRequest struct {
	SubscriptionID string `json:"subscriptionId" validate:"required"`
	Status         *int   `json:"status" validate:"required"`
}

func (h *AdminHandler) Login(c *gin.Context) {
	body, ok := bind[loginRequest](c)
	if !ok {
		return
	}
	admin, token, err := h.admins.Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"admin": admin, "token": token})
}

func (h *AdminHandler) UpdatePassword(c *gin.Context) {
	body, ok := bind[updatePasswordRequest](c)
	if !ok {
		return
	}
	if err := h.admins.UpdatePassword(c.Request.Context(), middleware.AdminID(c), body.CurrentPassword, body.NewPassword); err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Password updated"})
}

func (h *AdminHandler) ForgotPassword(c *gin.Context) {
	body, ok := bind[emailRequest](c)
	if !ok {
		return
	}
	if err := h.admins.ForgotPassword(c.Request.Context(), body.Email); err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Reset code sent"})
}

func (h *AdminHandler) ResetPassword(c *gin.Context) {
	body, ok := bind[resetPasswordRequest](c)
	if !ok {
		return
	}
	if err := h.admins.ResetPassword(c.Request.Context(), body.Email, body.OTP, body.Password); err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Password updated"})
}

// Tasks - список подписок для обработки
func (h *AdminHandler) Tasks(c *gin.Context) {
	body, ok := bind[tasksRequest](c)
	if !ok {
		return
	}
	filter := domain.SubscriptionFilter{
		BuyerID:  body.BuyerID,
		Search:   body.Search,
		SortBy:   body.SortBy,
		SortDesc: body.SortDesc,
		Page:     body.Page,
		PerPage:  body.PerPage,
	}
	if body.AdminStatus != nil {
		status := domain.AdminStatus(*body.AdminStatus)
		filter.AdminStatus = &status
	}
	views, meta, err := h.subs.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"subscriptions": views, "meta": meta})
}

func (h *AdminHandler) UpdateStatus(c *gin.Context) {
	body, ok := bind[updateStatusRequest](c)
	if !ok {
		return
	}
	sub, err := h.subs.SetAdminStatus(c.Request.Context(), body.SubscriptionID, *body.Status)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"subscription": sub})
}

func (h *AdminHandler) UpsertSubscription(c *gin.Context) {
	body, ok := bind[upsertSubscriptionRequest](c)
	if !ok {
		return
	}
	sub, err := h.subs.UpdateOrCreate(c.Request.Context(), body.input(middleware.AdminID(c), true))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"subscription": sub})
}
