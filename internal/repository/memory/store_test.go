package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOrder(t *testing.T, s *Store, id string) {
	t.Helper()
	err := s.Orders().Create(context.Background(), &domain.Order{
		OrderID:   id,
		Amount:    2900,
		Currency:  "USD",
		BuyerID:   "buyer-1",
		Status:    domain.OrderStatusCreated,
		CreatedAt: time.Now(),
	})
	require.NoError(t, err)
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	t.Parallel()

	s := NewStore()
	seedOrder(t, s, "order_1")
	boom := errors.New("boom")

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		order, err := tx.Orders().GetForUpdate(ctx, "order_1")
		require.NoError(t, err)
		_, err = order.MarkPaid("pay_1", "sig", time.Now())
		require.NoError(t, err)
		require.NoError(t, tx.Orders().Update(ctx, order))
		require.NoError(t, tx.Subscriptions().Create(ctx, &domain.Subscription{
			SubscriptionID: "sub_1",
			BuyerID:        "buyer-1",
			OrderID:        "order_1",
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	order, err := s.Orders().GetByID(context.Background(), "order_1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCreated, order.Status)

	_, err = s.Subscriptions().GetByOrderID(context.Background(), "order_1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWithinTx_Commits(t *testing.T) {
	t.Parallel()

	s := NewStore()
	seedOrder(t, s, "order_2")

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		return tx.Subscriptions().Create(ctx, &domain.Subscription{
			SubscriptionID: "sub_2",
			BuyerID:        "buyer-1",
			OrderID:        "order_2",
		})
	})
	require.NoError(t, err)

	sub, err := s.Subscriptions().GetByOrderID(context.Background(), "order_2")
	require.NoError(t, err)
	assert.Equal(t, "sub_2", sub.SubscriptionID)
}

func TestSubscriptionCreate_UniqueOrderID(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()
	require.NoError(t, s.Subscriptions().Create(ctx, &domain.Subscription{SubscriptionID: "a", OrderID: "order_3"}))

	err := s.Subscriptions().Create(ctx, &domain.Subscription{SubscriptionID: "b", OrderID: "order_3"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConflict)

	// подписки без заказа не конфликтуют между собой
	require.NoError(t, s.Subscriptions().Create(ctx, &domain.Subscription{SubscriptionID: "c"}))
	require.NoError(t, s.Subscriptions().Create(ctx, &domain.Subscription{SubscriptionID: "d"}))
}

func TestSubscriptionList_FilterSortPaginate(t *testing.T) {
	t.Parallel()

	s := NewStore()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	completed := domain.AdminStatusCompleted

	subs := []domain.Subscription{
		{SubscriptionID: "s1", BuyerID: "u1", PlanName: "Logo Design", AdminStatus: domain.AdminStatusCompleted, CreatedAt: base},
		{SubscriptionID: "s2", BuyerID: "u1", PlanName: "SEO", AdminStatus: domain.AdminStatusInProcess, CreatedAt: base.Add(time.Hour)},
		{SubscriptionID: "s3", BuyerID: "u2", PlanName: "Logo Animation", AdminStatus: domain.AdminStatusCompleted, CreatedAt: base},
	}
	for i := range subs {
		require.NoError(t, s.Subscriptions().Create(ctx, &subs[i]))
	}

	got, total, err := s.Subscriptions().List(ctx, domain.SubscriptionFilter{AdminStatus: &completed, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, got, 2)
	// одинаковый created_at - порядок по id
	assert.Equal(t, "s1", got[0].SubscriptionID)
	assert.Equal(t, "s3", got[1].SubscriptionID)

	got, total, err = s.Subscriptions().List(ctx, domain.SubscriptionFilter{Search: "logo", SortBy: "planName", PerPage: 1, Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].SubscriptionID)
}

func TestOrders_UpdateIfStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	seedOrder(t, s, "order_1")

	paid, err := s.Orders().GetByID(ctx, "order_1")
	require.NoError(t, err)
	_, err = paid.MarkPaid("pay_1", "sig", time.Now())
	require.NoError(t, err)
	saved, err := s.Orders().UpdateIfStatus(ctx, paid, domain.OrderStatusCreated)
	require.NoError(t, err)
	assert.True(t, saved)

	// Запись по устаревшему статусу не проходит
	stale := *paid
	stale.Status = domain.OrderStatusFailed
	saved, err = s.Orders().UpdateIfStatus(ctx, &stale, domain.OrderStatusCreated)
	require.NoError(t, err)
	assert.False(t, saved)

	got, err := s.Orders().GetByID(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPaid, got.Status)

	_, err = s.Orders().UpdateIfStatus(ctx, &domain.Order{OrderID: "missing"}, domain.OrderStatusCreated)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestOrders_SetGatewayStatus(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewStore()
	seedOrder(t, s, "order_1")

	require.NoError(t, s.Orders().SetGatewayStatus(ctx, "order_1", "authorized"))
	got, err := s.Orders().GetByID(ctx, "order_1")
	require.NoError(t, err)
	assert.Equal(t, "authorized", got.GatewayStatus)
	assert.Equal(t, domain.OrderStatusCreated, got.Status)

	assert.ErrorIs(t, s.Orders().SetGatewayStatus(ctx, "missing", "authorized"), domain.ErrNotFound)
}
