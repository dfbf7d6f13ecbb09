package memory

import (
	"context"

	"github.com/Dhoini/subscription-commerce/internal/domain"
)

type orderRepo struct {
	s    *Store
	inTx bool
}

func (r *orderRepo) Create(_ context.Context, order *domain.Order) error {
	defer r.s.writeLock(r.inTx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.orders[order.OrderID]; exists {
		return domain.NewDuplicateError("order", "order_id", order.OrderID)
	}
	r.s.orders[order.OrderID] = *order
	return nil
}

func (r *orderRepo) GetByID(_ context.Context, orderID string) (*domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	order, exists := r.s.orders[orderID]
	if !exists {
		return nil, domain.NewNotFoundError("order", orderID)
	}
	return &order, nil
}

// GetForUpdate в памяти эквивалентен GetByID: транзакции уже сериализованы
func (r *orderRepo) GetForUpdate(ctx context.Context, orderID string) (*domain.Order, error) {
	return r.GetByID(ctx, orderID)
}

func (r *orderRepo) Update(_ context.Context, order *domain.Order) error {
	defer r.s.writeLock(r.inTx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.orders[order.OrderID]; !exists {
		return domain.NewNotFoundError("order", order.OrderID)
	}
	r.s.orders[order.OrderID] = *order
	return nil
}

func (r *orderRepo) UpdateIfStatus(_ context.Context, order *domain.Order, expected domain.OrderStatus) (bool, error) {
	defer r.s.writeLock(r.inTx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, exists := r.s.orders[order.OrderID]
	if !exists {
		return false, domain.NewNotFoundError("order", order.OrderID)
	}
	if current.Status != expected {
		return false, nil
	}
	r.s.orders[order.OrderID] = *order
	return true, nil
}

func (r *orderRepo) SetGatewayStatus(_ context.Context, orderID, status string) error {
	defer r.s.writeLock(r.inTx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	order, exists := r.s.orders[orderID]
	if !exists {
		return domain.NewNotFoundError("order", orderID)
	}
	order.GatewayStatus = status
	r.s.orders[orderID] = order
	return nil
}
