package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhoini/subscription-commerce/internal/repository"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store - журнал заказов и подписок на одном пуле с поддержкой транзакций
type Store struct {
	pool          *pgxpool.Pool
	orders        *OrderRepository
	subscriptions *SubscriptionRepository
	log           *logger.Logger
}

// NewStore создает хранилище заказов и подписок
func NewStore(pool *pgxpool.Pool, log *logger.Logger) *Store {
	return &Store{
		pool:          pool,
		orders:        NewOrderRepository(pool, log),
		subscriptions: NewSubscriptionRepository(pool, log),
		log:           log,
	}
}

func (s *Store) Orders() repository.OrderRepository               { return s.orders }
func (s *Store) Subscriptions() repository.SubscriptionRepository { return s.subscriptions }

type txRepos struct {
	orders        *OrderRepository
	subscriptions *SubscriptionRepository
}

func (t *txRepos) Orders() repository.OrderRepository               { return t.orders }
func (t *txRepos) Subscriptions() repository.SubscriptionRepository { return t.subscriptions }

// WithinTx выполняет fn в транзакции READ COMMITTED. Блокировки строк берет сам fn.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.log.Errorw("Failed to rollback transaction", "error", rbErr)
		}
	}()

	repos := &txRepos{
		orders:        NewOrderRepository(tx, s.log),
		subscriptions: NewSubscriptionRepository(tx, s.log),
	}
	if err = fn(ctx, repos); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
