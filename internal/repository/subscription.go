package repository

import (
	"context"

	"github.com/Dhoini/subscription-commerce/internal/domain"
)

// OrderRepository определяет методы для работы с журналом заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ в статусе created.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID возвращает заказ по ID шлюза.
	GetByID(ctx context.Context, orderID string) (*domain.Order, error)

	// GetForUpdate возвращает заказ и блокирует строку до конца транзакции.
	GetForUpdate(ctx context.Context, orderID string) (*domain.Order, error)

	// Update сохраняет статус, реквизиты платежа и статус шлюза.
	// Вызывается только под блокировкой GetForUpdate внутри транзакции.
	Update(ctx context.Context, order *domain.Order) error

	// UpdateIfStatus сохраняет заказ, только если его текущий статус равен expected.
	// false без ошибки означает, что статус уже изменил другой запрос.
	UpdateIfStatus(ctx context.Context, order *domain.Order, expected domain.OrderStatus) (bool, error)

	// SetGatewayStatus меняет только статус шлюза, не трогая статус заказа.
	SetGatewayStatus(ctx context.Context, orderID, status string) error
}

// SubscriptionRepository определяет методы для работы с хранилищем подписок.
type SubscriptionRepository interface {
	// Create сохраняет новую подписку. Повтор order_id дает DuplicateError.
	Create(ctx context.Context, sub *domain.Subscription) error

	GetByID(ctx context.Context, subscriptionID string) (*domain.Subscription, error)
	GetByOrderID(ctx context.Context, orderID string) (*domain.Subscription, error)

	// GetLatestByBuyer возвращает самую свежую подписку покупателя.
	GetLatestByBuyer(ctx context.Context, buyerID string) (*domain.Subscription, error)

	ListByBuyer(ctx context.Context, buyerID string) ([]domain.Subscription, error)
	List(ctx context.Context, filter domain.SubscriptionFilter) ([]domain.Subscription, int, error)
	CountByBuyer(ctx context.Context, buyerID string) (domain.SubscriptionCounts, error)

	Update(ctx context.Context, sub *domain.Subscription) error
}

// Tx - репозитории, привязанные к одной транзакции
type Tx interface {
	Orders() OrderRepository
	Subscriptions() SubscriptionRepository
}

// Transactor выполняет fn в одной транзакции: ошибка fn откатывает все изменения.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
