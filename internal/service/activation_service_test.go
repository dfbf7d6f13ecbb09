package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestVerifyAndActivate_CreatesSubscriptionOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, "order_1", "buyer-1")
	f.captured("order_1", "pay_1")

	before := time.Now()
	first, err := f.activator.VerifyAndActivate(ctx, f.verifyInput("order_1", "pay_1"))
	require.NoError(t, err)
	require.True(t, first.Created)

	sub := first.Subscription
	assert.Equal(t, "buyer-1", sub.BuyerID)
	assert.Equal(t, "Pro Plan", sub.PlanName)
	assert.Equal(t, int64(2900), sub.Amount)
	assert.Equal(t, domain.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, domain.AdminStatusInProcess, sub.AdminStatus)
	require.NotNil(t, sub.ExpiresAt)
	assert.WithinDuration(t, before.AddDate(0, 1, 0), *sub.ExpiresAt, 5*time.Second)

	second, err := f.activator.VerifyAndActivate(ctx, f.verifyInput("order_1", "pay_1"))
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, sub.SubscriptionID, second.Subscription.SubscriptionID)

	order, err := f.store.Orders().GetByID(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	assert.Equal(t, "pay_1", order.PaymentID)
	assert.NotNil(t, order.PaidAt)

	subs, err := f.store.Subscriptions().ListByBuyer(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	f.events.Wait()
	events := f.pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventSubscriptionActivated, events[0].Type)
	assert.Equal(t, sub.SubscriptionID, events[0].SubscriptionID)
}

func TestVerifyAndActivate_TamperedSignature(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, "order_1", "buyer-1")

	in := f.verifyInput("order_1", "pay_1")
	in.Signature = f.signer.Sign("order_1", "pay_other")

	_, err := f.activator.VerifyAndActivate(ctx, in)
	require.ErrorIs(t, err, domain.ErrSignatureInvalid)
	assert.False(t, domain.IsRetryable(err))

	order, err := f.store.Orders().GetByID(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFailed, order.Status)

	_, err = f.store.Subscriptions().GetByOrderID(ctx, "order_1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	f.gw.AssertNotCalled(t, "FetchPayment", mock.Anything, mock.Anything)

	// подпись верная, но заказ уже failed
	f.captured("order_1", "pay_1")
	_, err = f.activator.VerifyAndActivate(ctx, f.verifyInput("order_1", "pay_1"))
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestVerifyAndActivate_TamperedSignatureKeepsPaidOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, "order_1", "buyer-1")
	f.captured("order_1", "pay_1")

	_, err := f.activator.VerifyAndActivate(ctx, f.verifyInput("order_1", "pay_1"))
	require.NoError(t, err)

	_, err = f.activator.VerifyAndActivate(ctx, VerifyPaymentInput{OrderID: "order_1", PaymentID: "pay_1", Signature: "deadbeef"})
	require.ErrorIs(t, err, domain.ErrSignatureInvalid)

	order, err := f.store.Orders().GetByID(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
}

func TestVerifyAndActivate_NotCaptured(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     gateway.PaymentStatus
		wantStatus domain.OrderStatus
	}{
		{name: "authorized stays created", status: gateway.PaymentStatusAuthorized, wantStatus: domain.OrderStatusCreated},
		{name: "created stays created", status: gateway.PaymentStatusCreated, wantStatus: domain.OrderStatusCreated},
		{name: "failed marks failed", status: gateway.PaymentStatusFailed, wantStatus: domain.OrderStatusFailed},
		{name: "refunded marks failed", status: gateway.PaymentStatusRefunded, wantStatus: domain.OrderStatusFailed},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			ctx := context.Background()
			f.seedOrder(t, "order_1", "buyer-1")
			f.gw.On("FetchPayment", mock.Anything, "pay_1").Return(&gateway.RemotePayment{
				ID: "pay_1", OrderID: "order_1", Status: tt.status,
			}, nil)

			_, err := f.activator.VerifyAndActivate(ctx, f.verifyInput("order_1", "pay_1"))
			require.ErrorIs(t, err, domain.ErrPaymentNotCaptured)

			var pe *domain.PaymentError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, string(tt.status), pe.GatewayStatus)

			order, err := f.store.Orders().GetByID(ctx, "order_1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, order.Status)
			assert.Equal(t, string(tt.status), order.GatewayStatus)

			_, err = f.store.Subscriptions().GetByOrderID(ctx, "order_1")
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestVerifyAndActivate_GatewayFailures(t *testing.T) {
	t.Parallel()

	t.Run("timeout is retryable not captured", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.seedOrder(t, "order_1", "buyer-1")
		f.gw.On("FetchPayment", mock.Anything, "pay_1").
			Run(func(args mock.Arguments) {
				<-args.Get(0).(context.Context).Done()
			}).
			Return(nil, context.DeadlineExceeded)

		_, err := f.activator.VerifyAndActivate(context.Background(), f.verifyInput("order_1", "pay_1"))
		require.ErrorIs(t, err, domain.ErrPaymentNotCaptured)
		assert.True(t, domain.IsRetryable(err))

		order, err := f.store.Orders().GetByID(context.Background(), "order_1")
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusCreated, order.Status)
	})

	t.Run("outage is retryable internal", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.seedOrder(t, "order_1", "buyer-1")
		f.gw.On("FetchPayment", mock.Anything, "pay_1").Return(nil, gateway.ErrUnavailable)

		_, err := f.activator.VerifyAndActivate(context.Background(), f.verifyInput("order_1", "pay_1"))
		require.ErrorIs(t, err, domain.ErrInternal)
		assert.True(t, domain.IsRetryable(err))
	})
}

func TestVerifyAndActivate_ConcurrentCallers(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, "order_1", "buyer-1")
	f.captured("order_1", "pay_1")

	const callers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = make(map[string]bool)
		errs    []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.activator.VerifyAndActivate(ctx, f.verifyInput("order_1", "pay_1"))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			ids[res.Subscription.SubscriptionID] = true
			if res.Created {
				created++
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, errs)
	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)

	subs, err := f.store.Subscriptions().ListByBuyer(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

// mixedCallers готовит платежи для конкурирующих запросов к одному заказу
func (f *fixture) mixedCallers(orderID string) []VerifyPaymentInput {
	f.captured(orderID, "pay_ok")
	f.gw.On("FetchPayment", mock.Anything, "pay_declined").Return(&gateway.RemotePayment{
		ID: "pay_declined", OrderID: orderID, Status: gateway.PaymentStatusFailed, Amount: 2900, Currency: "USD",
	}, nil)
	f.gw.On("FetchPayment", mock.Anything, "pay_pending").Return(&gateway.RemotePayment{
		ID: "pay_pending", OrderID: orderID, Status: gateway.PaymentStatusAuthorized, Amount: 2900, Currency: "USD",
	}, nil)

	tampered := f.verifyInput(orderID, "pay_ok")
	tampered.Signature = f.signer.Sign(orderID, "pay_other")

	var inputs []VerifyPaymentInput
	for i := 0; i < 4; i++ {
		inputs = append(inputs,
			f.verifyInput(orderID, "pay_ok"),
			tampered,
			f.verifyInput(orderID, "pay_declined"),
			f.verifyInput(orderID, "pay_pending"),
		)
	}
	return inputs
}

func runConcurrently(inputs []VerifyPaymentInput, fn func(VerifyPaymentInput) error) []error {
	errs := make([]error, len(inputs))
	var wg sync.WaitGroup
	for i, in := range inputs {
		i, in := i, in
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = fn(in)
		}()
	}
	wg.Wait()
	return errs
}

func TestVerifyAndActivate_PaidOrderSurvivesMixedCallers(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, "order_1", "buyer-1")
	inputs := f.mixedCallers("order_1")

	_, err := f.activator.VerifyAndActivate(ctx, f.verifyInput("order_1", "pay_ok"))
	require.NoError(t, err)

	runConcurrently(inputs, func(in VerifyPaymentInput) error {
		_, err := f.activator.VerifyAndActivate(ctx, in)
		return err
	})

	order, err := f.store.Orders().GetByID(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, order.Status)
	assert.Equal(t, "pay_ok", order.PaymentID)
	assert.NotNil(t, order.PaidAt)

	subs, err := f.store.Subscriptions().ListByBuyer(ctx, "buyer-1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "pay_ok", subs[0].PaymentID)
}

// При любом порядке гонки заказ и подписка согласованы:
// paid всегда с одной подпиской, failed без подписки.
func TestVerifyAndActivate_MixedCallersStayConsistent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for round := 0; round < 10; round++ {
		f := newFixture(t)
		f.seedOrder(t, "order_1", "buyer-1")
		inputs := f.mixedCallers("order_1")

		errs := runConcurrently(inputs, func(in VerifyPaymentInput) error {
			_, err := f.activator.VerifyAndActivate(ctx, in)
			return err
		})
		for i, in := range inputs {
			if in == f.verifyInput("order_1", "pay_ok") && errs[i] != nil {
				assert.ErrorIs(t, errs[i], domain.ErrConflict, "round %d", round)
			}
		}

		order, err := f.store.Orders().GetByID(ctx, "order_1")
		require.NoError(t, err)
		subs, err := f.store.Subscriptions().ListByBuyer(ctx, "buyer-1")
		require.NoError(t, err)

		switch order.Status {
		case domain.OrderStatusPaid:
			require.Len(t, subs, 1, "round %d", round)
			assert.Equal(t, "pay_ok", order.PaymentID)
			assert.Equal(t, order.PaymentID, subs[0].PaymentID)
			assert.NotNil(t, order.PaidAt)
		case domain.OrderStatusFailed:
			assert.Empty(t, subs, "round %d", round)
			assert.Empty(t, order.PaymentID)
		default:
			t.Fatalf("round %d: order left in status %s", round, order.Status)
		}
	}
}

func TestVerifyAndActivate_CapturedAmountMismatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		amount   int64
		currency string
	}{
		{name: "smaller amount", amount: 100, currency: "USD"},
		{name: "other currency", amount: 2900, currency: "INR"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			ctx := context.Background()
			f.seedOrder(t, "order_1", "buyer-1")
			f.gw.On("FetchPayment", mock.Anything, "pay_1").Return(&gateway.RemotePayment{
				ID: "pay_1", OrderID: "order_1", Status: gateway.PaymentStatusCaptured,
				Amount: tt.amount, Currency: tt.currency,
			}, nil)

			res, err := f.activator.VerifyAndActivate(ctx, f.verifyInput("order_1", "pay_1"))
			require.Error(t, err)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, domain.ErrPaymentNotCaptured)

			order, err := f.store.Orders().GetByID(ctx, "order_1")
			require.NoError(t, err)
			assert.Equal(t, domain.OrderStatusCreated, order.Status)
			assert.Empty(t, order.PaymentID)

			_, err = f.store.Subscriptions().GetByOrderID(ctx, "order_1")
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestVerifyAndActivate_RollsBackOnInsertFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, "order_1", "buyer-1")
	f.captured("order_1", "pay_1")

	f.store.BeforeSubscriptionCreate(func(*domain.Subscription) error {
		return errors.New("disk full")
	})
	_, err := f.activator.VerifyAndActivate(ctx, f.verifyInput("order_1", "pay_1"))
	require.ErrorIs(t, err, domain.ErrInternal)

	order, err := f.store.Orders().GetByID(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCreated, order.Status, "order must not stay paid without a subscription")

	f.store.BeforeSubscriptionCreate(nil)
	res, err := f.activator.VerifyAndActivate(ctx, f.verifyInput("order_1", "pay_1"))
	require.NoError(t, err)
	assert.True(t, res.Created)
}

func TestVerifyAndActivate_InputErrors(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.activator.VerifyAndActivate(ctx, VerifyPaymentInput{OrderID: "order_1"})
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.activator.VerifyAndActivate(ctx, f.verifyInput("order_missing", "pay_1"))
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVerifyAndActivate_SecondPaymentConflicts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.seedOrder(t, "order_1", "buyer-1")
	f.captured("order_1", "pay_1")
	f.captured("order_1", "pay_2")

	_, err := f.activator.VerifyAndActivate(ctx, f.verifyInput("order_1", "pay_1"))
	require.NoError(t, err)

	_, err = f.activator.VerifyAndActivate(ctx, f.verifyInput("order_1", "pay_2"))
	require.ErrorIs(t, err, domain.ErrConflict)
}

// Сценарий целиком: заказ на "$29.00", оплата, двойная проверка
func TestCheckoutScenario(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.gw.On("CreateOrder", mock.Anything, mock.MatchedBy(func(req gateway.CreateOrderRequest) bool {
		return req.Amount == 2900 && req.Currency == "USD" && len(req.Receipt) == 20
	})).Return(&gateway.RemoteOrder{ID: "order_live"}, nil).Once()

	order, err := f.ledger.CreateOrder(ctx, CreateOrderInput{
		BuyerID: "buyer-1", PlanID: "plan-monthly", PricingID: "tier-pro", DeliveryTarget: "ann@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2900), order.Amount)
	assert.Equal(t, domain.OrderStatusCreated, order.Status)

	// до оплаты подписки нет
	subs, err := f.store.Subscriptions().ListByBuyer(ctx, "buyer-1")
	require.NoError(t, err)
	assert.Empty(t, subs)

	f.captured("order_live", "pay_live")
	for i := 0; i < 2; i++ {
		res, err := f.activator.VerifyAndActivate(ctx, f.verifyInput("order_live", "pay_live"))
		require.NoError(t, err)
		assert.Equal(t, i == 0, res.Created)
	}

	subs, err = f.store.Subscriptions().ListByBuyer(ctx, "buyer-1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, int64(2900), subs[0].Amount)
	assert.Equal(t, "ann@example.com", subs[0].DeliveryTarget)
	f.gw.AssertExpectations(t)
}
