package service

import (
	"context"
	"sync"
	"testing"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/gateway"
	"github.com/Dhoini/subscription-commerce/internal/metrics"
	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      CreateOrderInput
		wantErr error
	}{
		{name: "missing fields", in: CreateOrderInput{BuyerID: "buyer-1"}, wantErr: domain.ErrValidation},
		{name: "missing delivery target", in: CreateOrderInput{BuyerID: "buyer-1", PlanID: "plan-monthly", PricingID: "tier-pro", DeliveryTarget: "  "}, wantErr: domain.ErrValidation},
		{name: "unknown buyer", in: CreateOrderInput{BuyerID: "ghost", PlanID: "plan-monthly", PricingID: "tier-pro", DeliveryTarget: "@ann"}, wantErr: domain.ErrNotFound},
		{name: "unknown plan", in: CreateOrderInput{BuyerID: "buyer-1", PlanID: "nope", PricingID: "tier-pro", DeliveryTarget: "@ann"}, wantErr: domain.ErrNotFound},
		{name: "unknown tier", in: CreateOrderInput{BuyerID: "buyer-1", PlanID: "plan-monthly", PricingID: "tier-x", DeliveryTarget: "@ann"}, wantErr: domain.ErrNotFound},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			_, err := f.ledger.CreateOrder(context.Background(), tt.in)
			require.ErrorIs(t, err, tt.wantErr)
			f.gw.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything)
		})
	}
}

func TestCreateOrder_PriceAndDefaults(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	var sent gateway.CreateOrderRequest
	f.gw.On("CreateOrder", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(1).(gateway.CreateOrderRequest) }).
		Return(&gateway.RemoteOrder{ID: "order_lite"}, nil).Once()

	order, err := f.ledger.CreateOrder(ctx, CreateOrderInput{
		BuyerID: "buyer-1", PlanID: "plan-monthly", PricingID: "tier-lite", Currency: "inr", DeliveryTarget: "@ann",
	})
	require.NoError(t, err)

	assert.Equal(t, "order_lite", order.OrderID)
	assert.Equal(t, int64(999), order.Amount)
	assert.Equal(t, "INR", order.Currency)
	assert.Len(t, order.Receipt, 20)
	assert.Equal(t, order.Receipt, sent.Receipt)
	assert.Equal(t, "buyer-1", sent.Notes["buyerId"])

	stored, err := f.store.Orders().GetByID(ctx, "order_lite")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCreated, stored.Status)
}

func TestCreateOrder_GatewayDown(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.gw.On("CreateOrder", mock.Anything, mock.Anything).Return(nil, gateway.ErrUnavailable)

	_, err := f.ledger.CreateOrder(context.Background(), CreateOrderInput{
		BuyerID: "buyer-1", PlanID: "plan-monthly", PricingID: "tier-pro", DeliveryTarget: "@ann",
	})
	require.ErrorIs(t, err, domain.ErrInternal)
	assert.True(t, domain.IsRetryable(err))
}

func TestLedgerTransitions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, "order_paid", "buyer-1")
	f.seedOrder(t, "order_failed", "buyer-1")

	paid, err := f.ledger.MarkPaid(ctx, "order_paid")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	again, err := f.ledger.MarkPaid(ctx, "order_paid")
	require.NoError(t, err)
	assert.Equal(t, paid.PaidAt.Unix(), again.PaidAt.Unix())

	_, err = f.ledger.MarkFailed(ctx, "order_paid")
	require.ErrorIs(t, err, domain.ErrConflict)

	failed, err := f.ledger.MarkFailed(ctx, "order_failed")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFailed, failed.Status)

	_, err = f.ledger.MarkPaid(ctx, "order_failed")
	require.ErrorIs(t, err, domain.ErrConflict)

	require.NoError(t, f.ledger.RecordGatewayStatus(ctx, "order_failed", "failed"))
	stored, err := f.store.Orders().GetByID(ctx, "order_failed")
	require.NoError(t, err)
	assert.Equal(t, "failed", stored.GatewayStatus)
}

// interleavingOrders выполняет afterRead сразу после первого чтения заказа,
// имитируя запрос, который успел закоммитить изменения между чтением и записью.
type interleavingOrders struct {
	repository.OrderRepository
	once      sync.Once
	afterRead func()
}

func (r *interleavingOrders) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := r.OrderRepository.GetByID(ctx, orderID)
	r.once.Do(r.afterRead)
	return order, err
}

func TestMarkFailed_DoesNotOverwriteConcurrentActivation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, "order_race", "buyer-1")
	f.captured("order_race", "pay_race")

	orders := &interleavingOrders{
		OrderRepository: f.store.Orders(),
		afterRead: func() {
			res, err := f.activator.VerifyAndActivate(ctx, f.verifyInput("order_race", "pay_race"))
			require.NoError(t, err)
			require.True(t, res.Created)
		},
	}
	ledger := NewOrderLedger(orders, f.store.Users(), f.store.Plans(), f.gw,
		metrics.NewCommerceMetrics(prometheus.NewRegistry()), "USD", logger.NewNop())

	_, err := ledger.MarkFailed(ctx, "order_race")
	require.ErrorIs(t, err, domain.ErrConflict)

	order, err := f.store.Orders().GetByID(ctx, "order_race")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	assert.Equal(t, "pay_race", order.PaymentID)
	assert.NotNil(t, order.PaidAt)

	sub, err := f.store.Subscriptions().GetByOrderID(ctx, "order_race")
	require.NoError(t, err)
	assert.Equal(t, "pay_race", sub.PaymentID)
}

func TestRecordGatewayStatus_KeepsPaidOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, "order_1", "buyer-1")
	f.captured("order_1", "pay_1")

	_, err := f.activator.VerifyAndActivate(ctx, f.verifyInput("order_1", "pay_1"))
	require.NoError(t, err)

	// статус от запоздавшего запроса с другим платежом
	require.NoError(t, f.ledger.RecordGatewayStatus(ctx, "order_1", string(gateway.PaymentStatusAuthorized)))

	order, err := f.store.Orders().GetByID(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	assert.Equal(t, "pay_1", order.PaymentID)
	assert.NotNil(t, order.PaidAt)
	assert.Equal(t, string(gateway.PaymentStatusAuthorized), order.GatewayStatus)

	err = f.ledger.RecordGatewayStatus(ctx, "missing", "failed")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
