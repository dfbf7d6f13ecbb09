package handlers

import (
	"net/http"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/service"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/gin-gonic/gin"
)

// PlanHandler - CRUD планов
type PlanHandler struct {
	plans service.PlanService
	log   *logger.Logger
}

func NewPlanHandler(plans service.PlanService, log *logger.Logger) *PlanHandler {
	return &PlanHandler{plans: plans, log: log.Named("plan_handler")}
}

type planRequest struct {
	ServiceID      string               `json:"serviceId"`
	SubServiceID   string               `json:"subServiceId"`
	Name           string               `json:"name"`
	Status         domain.PlanStatus    `json:"status"`
	DurationMonths *int                 `json:"durationMonths" validate:"omitempty,gte=1"`
	Pricing        []domain.PricingTier `json:"pricing" validate:"dive"`
}

func (r planRequest) input() service.PlanInput {
	return service.PlanInput{
		ServiceID:      r.ServiceID,
		SubServiceID:   r.SubServiceID,
		Name:           r.Name,
		Status:         r.Status,
		DurationMonths: r.DurationMonths,
		Pricing:        r.Pricing,
	}
}

type updatePlanRequest struct {
	PlanID string `json:"planId" validate:"required"`
	planRequest
}

type planIDRequest struct {
	PlanID string `json:"planId" validate:"required"`
}

type planNameRequest struct {
	Name string `json:"name" validate:"required"`
}

type planLookupRequest struct {
	ServiceID    string `json:"serviceId" validate:"required"`
	SubServiceID string `json:"subServiceId" validate:"required"`
}

type deletePricingRequest struct {
	PlanID    string `json:"planId" validate:"required"`
	PricingID string `json:"pricingId" validate:"required"`
}

type listPlansRequest struct {
	Search  string            `json:"search"`
	Status  domain.PlanStatus `json:"status"`
	Page    int               `json:"page"`
	PerPage int               `json:"perPage"`
}

func (h *PlanHandler) Create(c *gin.Context) {
	body, ok := bind[planRequest](c)
	if !ok {
		return
	}
	plan, err := h.plans.Create(c.Request.Context(), body.input())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"plan": plan})
}

func (h *PlanHandler) All(c *gin.Context) {
	body, ok := bind[listPlansRequest](c)
	if !ok {
		return
	}
	plans, meta, err := h.plans.List(c.Request.Context(), domain.PlanFilter{
		Search: body.Search, Status: body.Status, Page: body.Page, PerPage: body.PerPage,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"plans": plans, "meta": meta})
}

func (h *PlanHandler) GetByPlanID(c *gin.Context) {
	body, ok := bind[planIDRequest](c)
	if !ok {
		return
	}
	plan, err := h.plans.GetByID(c.Request.Context(), body.PlanID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"plan": plan})
}

func (h *PlanHandler) GetByName(c *gin.Context) {
	body, ok := bind[planNameRequest](c)
	if !ok {
		return
	}
	plan, err := h.plans.GetByName(c.Request.Context(), body.Name)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"plan": plan})
}

func (h *PlanHandler) GetByServiceAndSubService(c *gin.Context) {
	body, ok := bind[planLookupRequest](c)
	if !ok {
		return
	}
	plan, err := h.plans.GetByServiceAndSubService(c.Request.Context(), body.ServiceID, body.SubServiceID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"plan": plan})
}

func (h *PlanHandler) Update(c *gin.Context) {
	body, ok := bind[updatePlanRequest](c)
	if !ok {
		return
	}
	plan, err := h.plans.Update(c.Request.Context(), body.PlanID, body.input())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"plan": plan})
}

func (h *PlanHandler) Delete(c *gin.Context) {
	body, ok := bind[planIDRequest](c)
	if !ok {
		return
	}
	if err := h.plans.Delete(c.Request.Context(), body.PlanID); err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "Plan deleted"})
}

func (h *PlanHandler) DeletePricing(c *gin.Context) {
	body, ok := bind[deletePricingRequest](c)
	if !ok {
		return
	}
	plan, err := h.plans.DeletePricing(c.Request.Context(), body.PlanID, body.PricingID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"plan": plan})
}
