package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/gateway"
	"github.com/Dhoini/subscription-commerce/internal/metrics"
	"github.com/Dhoini/subscription-commerce/internal/repository/memory"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testKeySecret = "rzp_test_secret"

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateOrder(ctx context.Context, req gateway.CreateOrderRequest) (*gateway.RemoteOrder, error) {
	args := m.Called(ctx, req)
	order, _ := args.Get(0).(*gateway.RemoteOrder)
	return order, args.Error(1)
}

func (m *mockGateway) FetchPayment(ctx context.Context, paymentID string) (*gateway.RemotePayment, error) {
	args := m.Called(ctx, paymentID)
	payment, _ := args.Get(0).(*gateway.RemotePayment)
	return payment, args.Error(1)
}

type capturePublisher struct {
	mu     sync.Mutex
	events []domain.SubscriptionEvent
}

func (p *capturePublisher) PublishSubscriptionEvent(_ context.Context, event domain.SubscriptionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Events() []domain.SubscriptionEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.SubscriptionEvent(nil), p.events...)
}

type fixture struct {
	store     *memory.Store
	gw        *mockGateway
	pub       *capturePublisher
	events    *EventDispatcher
	signer    *gateway.Signer
	ledger    OrderLedger
	activator ActivationService
	subs      SubscriptionService
}

func intPtr(v int) *int { return &v }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	log := logger.NewNop()

	store := memory.NewStore()
	now := time.Now()
	for _, id := range []string{"buyer-1", "buyer-2"} {
		require.NoError(t, store.Users().Create(ctx, &domain.User{
			UserID: id, Name: id, Email: id + "@example.com", CreatedAt: now,
		}))
	}
	require.NoError(t, store.Plans().Create(ctx, &domain.Plan{
		PlanID: "plan-monthly", ServiceID: "svc-1", SubServiceID: "sub-1", Name: "Pro Plan",
		Pricing: domain.PricingTiers{
			{PricingID: "tier-pro", Name: "Pro", Price: "$29.00"},
			{PricingID: "tier-lite", Name: "Lite", Price: "9.99"},
		},
		Status: domain.PlanStatusActive, DurationMonths: intPtr(1), CreatedAt: now,
	}))
	require.NoError(t, store.Plans().Create(ctx, &domain.Plan{
		PlanID: "plan-lifetime", ServiceID: "svc-1", SubServiceID: "sub-2", Name: "Lifetime",
		Pricing: domain.PricingTiers{{PricingID: "tier-once", Name: "Once", Price: "$99"}},
		Status:  domain.PlanStatusActive, CreatedAt: now,
	}))

	gw := &mockGateway{}
	pub := &capturePublisher{}
	events := NewEventDispatcher(pub, log)
	m := metrics.NewCommerceMetrics(prometheus.NewRegistry())
	signer := gateway.NewSigner(testKeySecret)

	ledger := NewOrderLedger(store.Orders(), store.Users(), store.Plans(), gw, m, "USD", log)
	activator := NewActivationService(ActivationDeps{
		Ledger:        ledger,
		Orders:        store.Orders(),
		Subscriptions: store.Subscriptions(),
		Transactor:    store,
		Plans:         store.Plans(),
		Gateway:       gw,
		Signer:        signer,
		Events:        events,
		Metrics:       m,
		Timeout:       100 * time.Millisecond,
	}, log)
	subs := NewSubscriptionService(store.Subscriptions(), store.Plans(), events, m, log)

	return &fixture{
		store: store, gw: gw, pub: pub, events: events, signer: signer,
		ledger: ledger, activator: activator, subs: subs,
	}
}

// seedOrder сохраняет заказ в статусе created напрямую, минуя шлюз
func (f *fixture) seedOrder(t *testing.T, orderID, buyerID string) *domain.Order {
	t.Helper()
	order := &domain.Order{
		OrderID: orderID, Amount: 2900, Currency: "USD", Receipt: "r-" + orderID,
		BuyerID: buyerID, PlanID: "plan-monthly", PricingID: "tier-pro",
		DeliveryTarget: buyerID + "@example.com", Status: domain.OrderStatusCreated, CreatedAt: time.Now(),
	}
	require.NoError(t, f.store.Orders().Create(context.Background(), order))
	return order
}

func (f *fixture) captured(orderID, paymentID string) {
	f.gw.On("FetchPayment", mock.Anything, paymentID).Return(&gateway.RemotePayment{
		ID: paymentID, OrderID: orderID, Status: gateway.PaymentStatusCaptured, Amount: 2900, Currency: "USD",
	}, nil)
}

func (f *fixture) verifyInput(orderID, paymentID string) VerifyPaymentInput {
	return VerifyPaymentInput{OrderID: orderID, PaymentID: paymentID, Signature: f.signer.Sign(orderID, paymentID)}
}

// seedSubscription сохраняет активную подписку
func (f *fixture) seedSubscription(t *testing.T, id, buyerID, planID string, expires *time.Time) *domain.Subscription {
	t.Helper()
	now := time.Now()
	sub := &domain.Subscription{
		SubscriptionID: id, BuyerID: buyerID, PlanID: planID, PricingID: "tier-pro", PlanName: "Pro Plan",
		Amount: 2900, Currency: "USD", Status: domain.SubscriptionStatusActive,
		StartedAt: now, ExpiresAt: expires, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, f.store.Subscriptions().Create(context.Background(), sub))
	return sub
}
