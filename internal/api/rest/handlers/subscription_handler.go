package handlers

import (
	"net/http"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/middleware"
	"github.com/Dhoini/subscription-commerce/internal/service"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/gin-gonic/gin"
)

// SubscriptionHandler - подписки текущего пользователя
type SubscriptionHandler struct {
	subs service.SubscriptionService
	// selfServiceUpsert разрешает пользователю менять свою подписку через /update
	selfServiceUpsert bool
	log               *logger.Logger
}

func NewSubscriptionHandler(subs service.SubscriptionService, selfServiceUpsert bool, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{subs: subs, selfServiceUpsert: selfServiceUpsert, log: log.Named("subscription_handler")}
}

type subscriptionIDRequest struct {
	SubscriptionID string `json:"subscriptionId" validate:"required"`
}

// User возвращает все подписки пользователя
func (h *SubscriptionHandler) User(c *gin.Context) {
	views, total, err := h.subs.ListForBuyer(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"subscriptions": views, "total": total})
}

// Completed возвращает выполненные подписки пользователя
func (h *SubscriptionHandler) Completed(c *gin.Context) {
	h.listByAdminStatus(c, domain.AdminStatusCompleted)
}

// InProcess возвращает подписки пользователя, которые еще в работе
func (h *SubscriptionHandler) InProcess(c *gin.Context) {
	h.listByAdminStatus(c, domain.AdminStatusInProcess)
}

func (h *SubscriptionHandler) listByAdminStatus(c *gin.Context, status domain.AdminStatus) {
	var page pageQuery
	if err := c.ShouldBindQuery(&page); err != nil {
		respondBindError(c, err)
		return
	}
	views, meta, err := h.subs.List(c.Request.Context(), domain.SubscriptionFilter{
		BuyerID:     middleware.UserID(c),
		AdminStatus: &status,
		Page:        page.Page,
		PerPage:     page.PerPage,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"subscriptions": views, "meta": meta})
}

func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	body, ok := bind[subscriptionIDRequest](c)
	if !ok {
		return
	}
	sub, err := h.subs.Cancel(c.Request.Context(), body.SubscriptionID, middleware.UserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"subscription": sub})
}

func (h *SubscriptionHandler) Renew(c *gin.Context) {
	body, ok := bind[subscriptionIDRequest](c)
	if !ok {
		return
	}
	sub, err := h.subs.Renew(c.Request.Context(), body.SubscriptionID, middleware.UserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"subscription": sub})
}

type upsertSubscriptionRequest struct {
	BuyerID   string `json:"buyerId" validate:"required"`
	PlanID    string `json:"planId"`
	PricingID string `json:"pricingId"`
	Currency  string `json:"currency" validate:"omitempty,len=3"`
	Price     string `json:"price"`
}

func (r upsertSubscriptionRequest) input(requesterID string, byAdmin bool) service.UpsertSubscriptionInput {
	return service.UpsertSubscriptionInput{
		RequesterID: requesterID,
		ByAdmin:     byAdmin,
		BuyerID:     r.BuyerID,
		PlanID:      r.PlanID,
		PricingID:   r.PricingID,
		Currency:    r.Currency,
		Price:       r.Price,
	}
}

// Update меняет или создает подписку самого пользователя. Выключено, если selfServiceUpsert=false.
func (h *SubscriptionHandler) Update(c *gin.Context) {
	if !h.selfServiceUpsert {
		respondError(c, h.log, domain.NewForbiddenError("update subscriptions of", middleware.UserID(c)))
		return
	}
	body, ok := bind[upsertSubscriptionRequest](c)
	if !ok {
		return
	}
	sub, err := h.subs.UpdateOrCreate(c.Request.Context(), body.input(middleware.UserID(c), false))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"subscription": sub})
}
