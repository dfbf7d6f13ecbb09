package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	// Префиксы ключей для различных типов данных
	planKeyPrefix               = "plan:"
	buyerSubscriptionsKeyPrefix = "buyer_subscriptions:"
	revokedTokenKeyPrefix       = "revoked_token:"

	// TTL для кэша
	defaultCacheTTL = 15 * time.Minute
)

// RedisCacheRepository реализует кеширование для репозиториев с использованием Redis
type RedisCacheRepository struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisCacheRepository создает новый экземпляр Redis репозитория
func NewRedisCacheRepository(ctx context.Context, addr, password string, db int, ttl time.Duration, log *logger.Logger) (*RedisCacheRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Проверяем соединение с Redis
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}

	log.Infow("Connected to Redis successfully", "addr", addr)
	return &RedisCacheRepository{
		client: client,
		ttl:    ttl,
		log:    log,
	}, nil
}

// NewRedisCacheFromClient оборачивает готовый клиент
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisCacheRepository {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCacheRepository{client: client, ttl: ttl, log: log}
}

// Close закрывает соединение с Redis
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

// Ping проверяет доступность Redis для health-check
func (r *RedisCacheRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCacheRepository) setJSON(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache %s: %w", key, err)
	}
	return nil
}

// getJSON возвращает found=false, если ключа нет
func (r *RedisCacheRepository) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get %s from cache: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached %s: %w", key, err)
	}
	return true, nil
}

// CachePlan кеширует план
func (r *RedisCacheRepository) CachePlan(ctx context.Context, plan *domain.Plan) error {
	return r.setJSON(ctx, planKeyPrefix+plan.PlanID, plan)
}

// GetCachedPlan получает план из кеша, nil если его там нет
func (r *RedisCacheRepository) GetCachedPlan(ctx context.Context, planID string) (*domain.Plan, error) {
	var plan domain.Plan
	found, err := r.getJSON(ctx, planKeyPrefix+planID, &plan)
	if err != nil || !found {
		return nil, err
	}
	return &plan, nil
}

// DeleteCachedPlan удаляет план из кеша
func (r *RedisCacheRepository) DeleteCachedPlan(ctx context.Context, planID string) error {
	if err := r.client.Del(ctx, planKeyPrefix+planID).Err(); err != nil {
		return fmt.Errorf("failed to delete plan from cache: %w", err)
	}
	return nil
}

// CacheBuyerSubscriptions кеширует список подписок покупателя
func (r *RedisCacheRepository) CacheBuyerSubscriptions(ctx context.Context, buyerID string, subs []domain.Subscription) error {
	return r.setJSON(ctx, buyerSubscriptionsKeyPrefix+buyerID, subs)
}

// GetCachedBuyerSubscriptions возвращает found=false при промахе
func (r *RedisCacheRepository) GetCachedBuyerSubscriptions(ctx context.Context, buyerID string) ([]domain.Subscription, bool, error) {
	var subs []domain.Subscription
	found, err := r.getJSON(ctx, buyerSubscriptionsKeyPrefix+buyerID, &subs)
	return subs, found, err
}

// InvalidateBuyerSubscriptions удаляет кеш подписок покупателя
func (r *RedisCacheRepository) InvalidateBuyerSubscriptions(ctx context.Context, buyerID string) error {
	if err := r.client.Del(ctx, buyerSubscriptionsKeyPrefix+buyerID).Err(); err != nil {
		return fmt.Errorf("failed to invalidate buyer subscriptions cache: %w", err)
	}
	return nil
}

// Revoke помещает ID токена в список отозванных до истечения ttl
func (r *RedisCacheRepository) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revokedTokenKeyPrefix+tokenID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked проверяет, отозван ли токен
func (r *RedisCacheRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedTokenKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revoked token: %w", err)
	}
	return n > 0, nil
}
