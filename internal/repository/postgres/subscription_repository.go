package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/jackc/pgx/v5"
)

const subscriptionColumns = `s.subscription_id, s.buyer_id, s.plan_id, s.pricing_id, s.plan_name,
	s.delivery_target, COALESCE(s.order_id, ''), COALESCE(s.payment_id, ''), s.amount, s.currency,
	s.status, s.admin_status, s.started_at, s.expires_at, s.cancelled_at, s.created_at, s.updated_at`

// SubscriptionRepository реализация репозитория подписок через PostgreSQL
type SubscriptionRepository struct {
	db  querier
	log *logger.Logger
}

// NewSubscriptionRepository создает репозиторий подписок поверх пула или транзакции
func NewSubscriptionRepository(db querier, log *logger.Logger) *SubscriptionRepository {
	return &SubscriptionRepository{db: db, log: log}
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var s domain.Subscription
	var status string
	var adminStatus int16
	err := row.Scan(
		&s.SubscriptionID,
		&s.BuyerID,
		&s.PlanID,
		&s.PricingID,
		&s.PlanName,
		&s.DeliveryTarget,
		&s.OrderID,
		&s.PaymentID,
		&s.Amount,
		&s.Currency,
		&status,
		&adminStatus,
		&s.StartedAt,
		&s.ExpiresAt,
		&s.CancelledAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Status = domain.SubscriptionStatus(status)
	s.AdminStatus = domain.AdminStatus(adminStatus)
	return &s, nil
}

func collectSubscriptions(rows pgx.Rows) ([]domain.Subscription, error) {
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}
	return subs, nil
}

// Create сохраняет подписку. Уникальный индекс по order_id не дает создать вторую подписку на заказ.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			subscription_id, buyer_id, plan_id, pricing_id, plan_name, delivery_target,
			order_id, payment_id, amount, currency, status, admin_status,
			started_at, expires_at, cancelled_at, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11, $12,
			$13, $14, $15, $16, $17
		)
	`
	_, err := r.db.Exec(ctx, query,
		sub.SubscriptionID,
		sub.BuyerID,
		sub.PlanID,
		sub.PricingID,
		sub.PlanName,
		sub.DeliveryTarget,
		sub.OrderID,
		sub.PaymentID,
		sub.Amount,
		sub.Currency,
		string(sub.Status),
		int16(sub.AdminStatus),
		sub.StartedAt,
		sub.ExpiresAt,
		sub.CancelledAt,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		if repository.IsDuplicateKey(err) {
			return domain.NewDuplicateError("subscription", "order_id", sub.OrderID)
		}
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	r.log.Debugw("Subscription created", "subscriptionID", sub.SubscriptionID, "orderID", sub.OrderID)
	return nil
}

func (r *SubscriptionRepository) getOne(ctx context.Context, where string, arg any, entityID string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions s WHERE ` + where + ` LIMIT 1`

	sub, err := scanSubscription(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.NewNotFoundError("subscription", entityID)
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return sub, nil
}

// GetByID возвращает подписку по ID
func (r *SubscriptionRepository) GetByID(ctx context.Context, subscriptionID string) (*domain.Subscription, error) {
	return r.getOne(ctx, "s.subscription_id = $1", subscriptionID, subscriptionID)
}

// GetByOrderID возвращает подписку, созданную по заказу
func (r *SubscriptionRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Subscription, error) {
	return r.getOne(ctx, "s.order_id = $1", orderID, orderID)
}

// GetLatestByBuyer возвращает самую свежую подписку покупателя
func (r *SubscriptionRepository) GetLatestByBuyer(ctx context.Context, buyerID string) (*domain.Subscription, error) {
	return r.getOne(ctx, "s.buyer_id = $1 ORDER BY s.created_at DESC, s.subscription_id DESC", buyerID, buyerID)
}

// ListByBuyer возвращает все подписки покупателя, новые первыми
func (r *SubscriptionRepository) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions s
		WHERE s.buyer_id = $1
		ORDER BY s.created_at DESC, s.subscription_id ASC`

	rows, err := r.db.Query(ctx, query, buyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	return collectSubscriptions(rows)
}

// List возвращает страницу подписок по фильтру и общее количество
func (r *SubscriptionRepository) List(ctx context.Context, filter domain.SubscriptionFilter) ([]domain.Subscription, int, error) {
	filter = filter.Normalize()

	var (
		conds []string
		args  []any
	)
	if filter.BuyerID != "" {
		args = append(args, filter.BuyerID)
		conds = append(conds, fmt.Sprintf("s.buyer_id = $%d", len(args)))
	}
	if filter.AdminStatus != nil {
		args = append(args, int16(*filter.AdminStatus))
		conds = append(conds, fmt.Sprintf("s.admin_status = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(s.plan_name ILIKE $%d OR s.delivery_target ILIKE $%d OR u.name ILIKE $%d OR u.email ILIKE $%d)",
			n, n, n, n))
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}
	from := `FROM subscriptions s LEFT JOIN users u ON u.user_id = s.buyer_id ` + where

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) `+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}

	direction := "ASC"
	if filter.SortDesc {
		direction = "DESC"
	}
	args = append(args, filter.PerPage, (filter.Page-1)*filter.PerPage)
	query := fmt.Sprintf(`SELECT %s %s ORDER BY s.%s %s, s.subscription_id ASC LIMIT $%d OFFSET $%d`,
		subscriptionColumns, from, filter.SortColumn(), direction, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	subs, err := collectSubscriptions(rows)
	if err != nil {
		return nil, 0, err
	}
	return subs, total, nil
}

// CountByBuyer считает подписки покупателя по статусам
func (r *SubscriptionRepository) CountByBuyer(ctx context.Context, buyerID string) (domain.SubscriptionCounts, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(*) FILTER (WHERE admin_status = 1),
			COUNT(*) FILTER (WHERE admin_status = 0)
		FROM subscriptions
		WHERE buyer_id = $1
	`
	var c domain.SubscriptionCounts
	if err := r.db.QueryRow(ctx, query, buyerID).Scan(&c.Total, &c.Active, &c.Completed, &c.InProcess); err != nil {
		return c, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	return c, nil
}

// Update сохраняет изменяемые поля подписки
func (r *SubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) error {
	query := `
		UPDATE subscriptions
		SET plan_id = $2, pricing_id = $3, plan_name = $4, amount = $5, currency = $6,
			status = $7, admin_status = $8, started_at = $9, expires_at = $10,
			cancelled_at = $11, updated_at = $12
		WHERE subscription_id = $1
	`
	tag, err := r.db.Exec(ctx, query,
		sub.SubscriptionID,
		sub.PlanID,
		sub.PricingID,
		sub.PlanName,
		sub.Amount,
		sub.Currency,
		string(sub.Status),
		int16(sub.AdminStatus),
		sub.StartedAt,
		sub.ExpiresAt,
		sub.CancelledAt,
		sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("subscription", sub.SubscriptionID)
	}
	return nil
}
