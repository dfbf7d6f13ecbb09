package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/internal/repository"
)

// Store - хранилище в памяти для локального запуска и тестов.
// Транзакции сериализуются через txMu; при ошибке состояние заказов и подписок откатывается к снимку.
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	orders        map[string]domain.Order
	subscriptions map[string]domain.Subscription
	plans         map[string]domain.Plan
	services      map[string]domain.Service
	users         map[string]domain.User
	admins        map[string]domain.Admin
	verifications map[string]domain.EmailVerification
	revoked       map[string]time.Time

	beforeSubscriptionCreate func(*domain.Subscription) error
}

// NewStore создает пустое хранилище
func NewStore() *Store {
	return &Store{
		orders:        make(map[string]domain.Order),
		subscriptions: make(map[string]domain.Subscription),
		plans:         make(map[string]domain.Plan),
		services:      make(map[string]domain.Service),
		users:         make(map[string]domain.User),
		admins:        make(map[string]domain.Admin),
		verifications: make(map[string]domain.EmailVerification),
		revoked:       make(map[string]time.Time),
	}
}

// BeforeSubscriptionCreate задает хук, вызываемый перед вставкой подписки.
// Ошибка хука прерывает вставку, что позволяет проверять откат транзакции.
func (s *Store) BeforeSubscriptionCreate(fn func(*domain.Subscription) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeSubscriptionCreate = fn
}

func (s *Store) Orders() repository.OrderRepository {
	return &orderRepo{s: s}
}

func (s *Store) Subscriptions() repository.SubscriptionRepository {
	return &subscriptionRepo{s: s}
}

type txView struct {
	s *Store
}

func (t txView) Orders() repository.OrderRepository {
	return &orderRepo{s: t.s, inTx: true}
}

func (t txView) Subscriptions() repository.SubscriptionRepository {
	return &subscriptionRepo{s: t.s, inTx: true}
}

// WithinTx выполняет fn атомарно относительно других транзакций и записей
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	ordersSnapshot := maps.Clone(s.orders)
	subsSnapshot := maps.Clone(s.subscriptions)
	s.mu.RUnlock()

	if err := fn(ctx, txView{s: s}); err != nil {
		s.mu.Lock()
		s.orders = ordersSnapshot
		s.subscriptions = subsSnapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// writeLock захватывает txMu для записей вне транзакции
func (s *Store) writeLock(inTx bool) func() {
	if inTx {
		return func() {}
	}
	s.txMu.Lock()
	return s.txMu.Unlock
}
