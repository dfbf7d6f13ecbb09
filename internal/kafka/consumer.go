package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/IBM/sarama"
)

// EventHandler обрабатывает одно событие подписки
type EventHandler func(ctx context.Context, event domain.SubscriptionEvent) error

// Consumer читает события подписок группой потребителей Sarama
type Consumer struct {
	group   sarama.ConsumerGroup
	topics  []string
	handler EventHandler
	log     *logger.Logger
}

// NewConsumer подключается к брокерам
func NewConsumer(brokers []string, groupID string, handler EventHandler, log *logger.Logger) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are not configured")
	}
	group, err := sarama.NewConsumerGroup(brokers, groupID, NewConsumerConfig())
	if err != nil {
		return nil, fmt.Errorf("kafka: failed to create consumer group: %w", err)
	}
	return &Consumer{
		group:   group,
		topics:  []string{TopicSubscriptionActivated, TopicSubscriptionCancelled, TopicSubscriptionRenewed},
		handler: handler,
		log:     log.Named("kafka-consumer"),
	}, nil
}

// Run блокирует до отмены ctx. Consume вызывается в цикле: после ребалансировки сессия пересоздается.
func (c *Consumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.log.Warnw("Consumer group error", "error", err)
		}
	}()

	h := &groupHandler{handler: c.handler, log: c.log}
	for {
		if err := c.group.Consume(ctx, c.topics, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.log.Errorw("Consume failed", "error", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close останавливает группу
func (c *Consumer) Close() error {
	return c.group.Close()
}

type groupHandler struct {
	handler EventHandler
	log     *logger.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		h.process(session.Context(), msg)
		session.MarkMessage(msg, "")
	}
	return nil
}

// process декодирует и передает событие. Битые сообщения пропускаются, чтобы не блокировать партицию.
func (h *groupHandler) process(ctx context.Context, msg *sarama.ConsumerMessage) {
	var event domain.SubscriptionEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.log.Warnw("Skipping malformed event", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		return
	}
	if err := h.handler(ctx, event); err != nil {
		h.log.Errorw("Event handler failed", "topic", msg.Topic, "subscriptionID", event.SubscriptionID, "error", err)
	}
}
