package handlers

import (
	"net/http"

	"github.com/Dhoini/subscription-commerce/internal/service"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/gin-gonic/gin"
)

// PaymentHandler - создание заказа и проверка оплаты
type PaymentHandler struct {
	ledger    service.OrderLedger
	activator service.ActivationService
	log       *logger.Logger
}

func NewPaymentHandler(ledger service.OrderLedger, activator service.ActivationService, log *logger.Logger) *PaymentHandler {
	return &PaymentHandler{ledger: ledger, activator: activator, log: log.Named("payment_handler")}
}

type createOrderRequest struct {
	BuyerID        string `json:"buyerId" validate:"required"`
	PlanID         string `json:"planId" validate:"required"`
	PricingID      string `json:"pricingId" validate:"required"`
	DeliveryTarget string `json:"deliveryTarget" validate:"required"`
	Currency       string `json:"currency" validate:"omitempty,len=3"`
	Receipt        string `json:"receipt" validate:"omitempty,max=40"`
}

// CreateOrder создает заказ в шлюзе. Подписка появится только после verifyPayment.
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	body, ok := bind[createOrderRequest](c)
	if !ok {
		return
	}

	order, err := h.ledger.CreateOrder(c.Request.Context(), service.CreateOrderInput{
		BuyerID:        body.BuyerID,
		PlanID:         body.PlanID,
		PricingID:      body.PricingID,
		DeliveryTarget: body.DeliveryTarget,
		Currency:       body.Currency,
		Receipt:        body.Receipt,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{"order": order})
}

type verifyPaymentRequest struct {
	OrderID   string `json:"gatewayOrderId" validate:"required"`
	PaymentID string `json:"gatewayPaymentId" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

// VerifyPayment проверяет подпись и статус платежа и активирует подписку
func (h *PaymentHandler) VerifyPayment(c *gin.Context) {
	body, ok := bind[verifyPaymentRequest](c)
	if !ok {
		return
	}

	result, err := h.activator.VerifyAndActivate(c.Request.Context(), service.VerifyPaymentInput{
		OrderID:   body.OrderID,
		PaymentID: body.PaymentID,
		Signature: body.Signature,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	message := "Payment verified, subscription activated"
	if !result.Created {
		message = "Payment already verified"
	}
	respond(c, http.StatusOK, gin.H{"message": message, "subscription": result.Subscription})
}
