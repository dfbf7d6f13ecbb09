package service

import (
	"context"
	"sync"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
)

// EventPublisher - получатель событий подписки (Kafka продюсер)
type EventPublisher interface {
	PublishSubscriptionEvent(ctx context.Context, event domain.SubscriptionEvent) error
}

// BuyerCacheInvalidator сбрасывает кешированные списки подписок покупателя
type BuyerCacheInvalidator interface {
	InvalidateBuyer(ctx context.Context, buyerID string)
}

// EventDispatcher публикует события асинхронно после коммита.
// Ошибка публикации логируется и не влияет на результат операции.
type EventDispatcher struct {
	pub     EventPublisher
	log     *logger.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewEventDispatcher создает диспетчер. pub может быть nil: тогда события не отправляются.
func NewEventDispatcher(pub EventPublisher, log *logger.Logger) *EventDispatcher {
	return &EventDispatcher{pub: pub, log: log, timeout: 10 * time.Second}
}

// Dispatch отправляет событие в фоне. Отмена ctx запроса не прерывает отправку.
func (d *EventDispatcher) Dispatch(ctx context.Context, event domain.SubscriptionEvent) {
	if d == nil || d.pub == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		if err := d.pub.PublishSubscriptionEvent(pubCtx, event); err != nil {
			d.log.Errorw("Failed to publish subscription event",
				"type", event.Type, "subscriptionID", event.SubscriptionID, "error", err)
		}
	}()
}

// Wait ждет завершения отправок. Вызывается перед закрытием продюсера.
func (d *EventDispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
