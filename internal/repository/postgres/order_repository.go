package postgres

import (
	"context"
	"fmt"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier - общее подмножество pgxpool.Pool и pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const orderColumns = `order_id, payment_id, signature, amount, currency, receipt, buyer_id,
	plan_id, pricing_id, delivery_target, status, gateway_status, created_at, paid_at`

// OrderRepository реализация журнала заказов через PostgreSQL
type OrderRepository struct {
	db  querier
	log *logger.Logger
}

// NewOrderRepository создает репозиторий заказов поверх пула или транзакции
func NewOrderRepository(db querier, log *logger.Logger) *OrderRepository {
	return &OrderRepository{db: db, log: log}
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var status string
	err := row.Scan(
		&o.OrderID,
		&o.PaymentID,
		&o.Signature,
		&o.Amount,
		&o.Currency,
		&o.Receipt,
		&o.BuyerID,
		&o.PlanID,
		&o.PricingID,
		&o.DeliveryTarget,
		&status,
		&o.GatewayStatus,
		&o.CreatedAt,
		&o.PaidAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	return &o, nil
}

// Create сохраняет новый заказ
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := r.db.Exec(ctx, query,
		order.OrderID,
		order.PaymentID,
		order.Signature,
		order.Amount,
		order.Currency,
		order.Receipt,
		order.BuyerID,
		order.PlanID,
		order.PricingID,
		order.DeliveryTarget,
		string(order.Status),
		order.GatewayStatus,
		order.CreatedAt,
		order.PaidAt,
	)
	if err != nil {
		if repository.IsDuplicateKey(err) {
			return domain.NewDuplicateError("order", "order_id", order.OrderID)
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	r.log.Debugw("Order created", "orderID", order.OrderID, "amount", order.Amount)
	return nil
}

// GetByID возвращает заказ по ID шлюза
func (r *OrderRepository) GetByID(ctx context.Context, orderID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1`

	order, err := scanOrder(r.db.QueryRow(ctx, query, orderID))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.NewNotFoundError("order", orderID)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// GetForUpdate блокирует строку заказа. Вне транзакции блокировка снимается сразу.
func (r *OrderRepository) GetForUpdate(ctx context.Context, orderID string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_id = $1 FOR UPDATE`

	order, err := scanOrder(r.db.QueryRow(ctx, query, orderID))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.NewNotFoundError("order", orderID)
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	return order, nil
}

// Update сохраняет изменяемые поля заказа
func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	query := `
		UPDATE orders
		SET status = $2, payment_id = $3, signature = $4, gateway_status = $5, paid_at = $6
		WHERE order_id = $1
	`
	tag, err := r.db.Exec(ctx, query,
		order.OrderID,
		string(order.Status),
		order.PaymentID,
		order.Signature,
		order.GatewayStatus,
		order.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("order", order.OrderID)
	}
	return nil
}

// UpdateIfStatus - условная запись: строка меняется, только если статус не сдвинулся с expected.
// Под READ COMMITTED UPDATE ждет коммита конкурирующей транзакции и перепроверяет WHERE.
func (r *OrderRepository) UpdateIfStatus(ctx context.Context, order *domain.Order, expected domain.OrderStatus) (bool, error) {
	query := `
		UPDATE orders
		SET status = $2, payment_id = $3, signature = $4, gateway_status = $5, paid_at = $6
		WHERE order_id = $1 AND status = $7
	`
	tag, err := r.db.Exec(ctx, query,
		order.OrderID,
		string(order.Status),
		order.PaymentID,
		order.Signature,
		order.GatewayStatus,
		order.PaidAt,
		string(expected),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// Ноль строк: заказа нет или его статус уже другой
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE order_id = $1)`, order.OrderID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check order: %w", err)
	}
	if !exists {
		return false, domain.NewNotFoundError("order", order.OrderID)
	}
	return false, nil
}

func (r *OrderRepository) SetGatewayStatus(ctx context.Context, orderID, status string) error {
	tag, err := r.db.Exec(ctx, `UPDATE orders SET gateway_status = $2 WHERE order_id = $1`, orderID, status)
	if err != nil {
		return fmt.Errorf("failed to update gateway status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("order", orderID)
	}
	return nil
}
