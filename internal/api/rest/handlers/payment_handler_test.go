package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/service"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) CreateOrder(ctx context.Context, in service.CreateOrderInput) (*domain.Order, error) {
	args := m.Called(ctx, in)
	order, _ := args.Get(0).(*domain.Order)
	return order, args.Error(1)
}

func (m *mockLedger) MarkPaid(ctx context.Context, orderID string) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	order, _ := args.Get(0).(*domain.Order)
	return order, args.Error(1)
}

func (m *mockLedger) MarkFailed(ctx context.Context, orderID string) (*domain.Order, error) {
	args := m.Called(ctx, orderID)
	order, _ := args.Get(0).(*domain.Order)
	return order, args.Error(1)
}

func (m *mockLedger) RecordGatewayStatus(ctx context.Context, orderID, status string) error {
	return m.Called(ctx, orderID, status).Error(0)
}

type mockActivator struct {
	mock.Mock
}

func (m *mockActivator) VerifyAndActivate(ctx context.Context, in service.VerifyPaymentInput) (*service.ActivationResult, error) {
	args := m.Called(ctx, in)
	result, _ := args.Get(0).(*service.ActivationResult)
	return result, args.Error(1)
}

func newPaymentRouter(ledger service.OrderLedger, activator service.ActivationService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewPaymentHandler(ledger, activator, logger.NewNop())
	r := gin.New()
	r.POST("/payment/createOrder", h.CreateOrder)
	r.POST("/payment/verifyPayment", h.VerifyPayment)
	return r
}

func doJSON(t *testing.T, r http.Handler, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload), rec.Body.String())
	return rec, payload
}

func TestPaymentHandler_CreateOrder(t *testing.T) {
	ledger := new(mockLedger)
	ledger.On("CreateOrder", mock.Anything, service.CreateOrderInput{
		BuyerID: "buyer-1", PlanID: "plan-1", PricingID: "tier-1", DeliveryTarget: "@buyer",
	}).Return(&domain.Order{
		OrderID: "order_1", BuyerID: "buyer-1", Amount: 2900, Currency: "USD", Status: domain.OrderStatusCreated,
	}, nil).Once()

	r := newPaymentRouter(ledger, new(mockActivator))
	rec, payload := doJSON(t, r, "/payment/createOrder", `{"buyerId":"buyer-1","planId":"plan-1","pricingId":"tier-1","deliveryTarget":"@buyer"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, payload["success"])
	order, ok := payload["order"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 2900, order["amount"])
	ledger.AssertExpectations(t)
}

func TestPaymentHandler_CreateOrder_InvalidBody(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "missing plan", body: `{"buyerId":"buyer-1","pricingId":"tier-1","deliveryTarget":"@buyer"}`, field: "planId"},
		{name: "missing delivery target", body: `{"buyerId":"buyer-1","planId":"plan-1","pricingId":"tier-1"}`, field: "deliveryTarget"},
		{name: "malformed json", body: `{"buyerId":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := new(mockLedger)
			r := newPaymentRouter(ledger, new(mockActivator))

			rec, payload := doJSON(t, r, "/payment/createOrder", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, false, payload["success"])
			assert.Equal(t, "validation_error", payload["error"])
			if tt.field != "" {
				details, ok := payload["details"].(map[string]any)
				require.True(t, ok)
				assert.Equal(t, "required", details[tt.field])
			}
			ledger.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
		})
	}
}

func TestPaymentHandler_VerifyPayment(t *testing.T) {
	in := service.VerifyPaymentInput{OrderID: "order_1", PaymentID: "pay_1", Signature: "sig"}
	body := `{"gatewayOrderId":"order_1","gatewayPaymentId":"pay_1","signature":"sig"}`

	t.Run("activated", func(t *testing.T) {
		activator := new(mockActivator)
		activator.On("VerifyAndActivate", mock.Anything, in).Return(&service.ActivationResult{
			Subscription: &domain.Subscription{SubscriptionID: "sub-1", OrderID: "order_1"},
			Created:      true,
		}, nil).Once()

		rec, payload := doJSON(t, newPaymentRouter(new(mockLedger), activator), "/payment/verifyPayment", body)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Payment verified, subscription activated", payload["message"])
		assert.NotNil(t, payload["subscription"])
		activator.AssertExpectations(t)
	})

	t.Run("already verified", func(t *testing.T) {
		activator := new(mockActivator)
		activator.On("VerifyAndActivate", mock.Anything, in).Return(&service.ActivationResult{
			Subscription: &domain.Subscription{SubscriptionID: "sub-1", OrderID: "order_1"},
		}, nil).Once()

		rec, payload := doJSON(t, newPaymentRouter(new(mockLedger), activator), "/payment/verifyPayment", body)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Payment already verified", payload["message"])
	})

	t.Run("signature mismatch", func(t *testing.T) {
		activator := new(mockActivator)
		activator.On("VerifyAndActivate", mock.Anything, in).Return(nil, &domain.PaymentError{
			Kind: domain.ErrSignatureInvalid, Message: "Invalid payment signature", OrderID: "order_1",
		}).Once()

		rec, payload := doJSON(t, newPaymentRouter(new(mockLedger), activator), "/payment/verifyPayment", body)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "signature_invalid", payload["error"])
		assert.Equal(t, "Invalid payment signature", payload["message"])
	})
}

func TestRespondError(t *testing.T) {
	gatewayDown := errors.New("dial tcp 10.0.0.1:443: connection refused")

	tests := []struct {
		name      string
		err       error
		status    int
		code      string
		message   string
		retryable bool
	}{
		{
			name:   "validation",
			err:    domain.NewValidationError("planId", "is required"),
			status: http.StatusBadRequest, code: "validation_error",
		},
		{
			name:   "not found",
			err:    domain.NewNotFoundError("order", "order_1"),
			status: http.StatusNotFound, code: "not_found",
		},
		{
			name:   "forbidden",
			err:    domain.NewForbiddenError("cancel", "sub-1"),
			status: http.StatusForbidden, code: "forbidden",
		},
		{
			name:   "wrapped conflict",
			err:    fmt.Errorf("activate: %w", &domain.TransitionError{Entity: "order", ID: "o", From: "failed", To: "paid"}),
			status: http.StatusConflict, code: "conflict",
		},
		{
			name:   "invalid plan",
			err:    fmt.Errorf("renew: %w", domain.ErrInvalidPlan),
			status: http.StatusBadRequest, code: "invalid_plan",
		},
		{
			name: "not captured keeps retryable flag",
			err: &domain.PaymentError{
				Kind: domain.ErrPaymentNotCaptured, Message: "Payment not captured", GatewayStatus: "authorized", Retryable: true,
			},
			status: http.StatusBadRequest, code: "payment_not_captured", message: "Payment not captured", retryable: true,
		},
		{
			name: "internal payment error hides cause",
			err: &domain.PaymentError{
				Kind: domain.ErrInternal, Message: "Gateway unavailable", Retryable: true, OriginalErr: gatewayDown,
			},
			status: http.StatusInternalServerError, code: "internal_error", message: "Internal server error", retryable: true,
		},
		{
			name:   "unknown error",
			err:    gatewayDown,
			status: http.StatusInternalServerError, code: "internal_error", message: "Internal server error",
		},
	}

	gin.SetMode(gin.TestMode)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodPost, "/x", nil)

			respondError(c, logger.NewNop(), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.True(t, c.IsAborted())
			var payload map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
			assert.Equal(t, tt.code, payload["error"])
			assert.Equal(t, false, payload["success"])
			if tt.message != "" {
				assert.Equal(t, tt.message, payload["message"])
			}
			if tt.retryable {
				assert.Equal(t, true, payload["retryable"])
			} else {
				assert.NotContains(t, payload, "retryable")
			}
			assert.NotContains(t, rec.Body.String(), "connection refused")
		})
	}
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestReadiness(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("all dependencies up", func(t *testing.T) {
		r := gin.New()
		r.GET("/ready", Readiness(map[string]Pinger{"postgres": stubPinger{}, "redis": nil}))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"postgres":"ok"`)
		assert.NotContains(t, rec.Body.String(), "redis")
	})

	t.Run("dependency down", func(t *testing.T) {
		r := gin.New()
		r.GET("/ready", Readiness(map[string]Pinger{"redis": stubPinger{err: errors.New("refused")}}))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), `"redis":"unavailable"`)
	})
}
