package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/subscription-commerce/internal/domain"
	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// Топики событий подписки
const (
	TopicSubscriptionActivated = "subscription_activated"
	TopicSubscriptionCancelled = "subscription_cancelled"
	TopicSubscriptionRenewed   = "subscription_renewed"
)

// TopicFor возвращает топик для типа события
func TopicFor(eventType string) (string, bool) {
	switch eventType {
	case domain.EventSubscriptionActivated:
		return TopicSubscriptionActivated, true
	case domain.EventSubscriptionCancelled:
		return TopicSubscriptionCancelled, true
	case domain.EventSubscriptionRenewed:
		return TopicSubscriptionRenewed, true
	default:
		return "", false
	}
}

// Producer определяет интерфейс для публикации событий в Kafka.
type Producer interface {
	// PublishSubscriptionEvent отправляет событие подписки.
	// Ключ сообщения - SubscriptionID, события одной подписки попадают в одну партицию.
	PublishSubscriptionEvent(ctx context.Context, event domain.SubscriptionEvent) error
	Close() error
}

// kafkaProducer реализует Producer, используя segmentio/kafka-go.
type kafkaProducer struct {
	writer *kafka.Writer
	log    *logger.Logger
}

// NewKafkaProducer создает и настраивает новый продюсер Kafka.
func NewKafkaProducer(brokers []string, log *logger.Logger) (Producer, error) {
	if len(brokers) == 0 {
		log.Errorw("Kafka brokers list is empty in config, cannot create producer")
		return nil, errors.New("kafka brokers are not configured")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	log.Infow("Kafka producer initialized", "brokers", brokers)

	return &kafkaProducer{
		writer: writer,
		log:    log.Named("kafka-producer"),
	}, nil
}

// PublishSubscriptionEvent сериализует событие в JSON и отправляет в топик его типа.
func (k *kafkaProducer) PublishSubscriptionEvent(ctx context.Context, event domain.SubscriptionEvent) error {
	topic, ok := TopicFor(event.Type)
	if !ok {
		return fmt.Errorf("kafka: unknown event type %q", event.Type)
	}

	value, err := json.Marshal(event)
	if err != nil {
		k.log.Errorw("Failed to marshal subscription event", "error", err, "subscriptionID", event.SubscriptionID, "topic", topic)
		return fmt.Errorf("kafka: failed to marshal message data: %w", err)
	}

	message := kafka.Message{
		Topic: topic,
		Key:   []byte(event.SubscriptionID),
		Value: value,
		Time:  event.OccurredAt,
	}

	writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := k.writer.WriteMessages(writeCtx, message); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			k.log.Errorw("Kafka write timeout exceeded", "error", err, "topic", topic, "subscriptionID", event.SubscriptionID)
			return fmt.Errorf("kafka: write timeout: %w", err)
		}
		k.log.Errorw("Failed to write message to Kafka", "error", err, "topic", topic, "subscriptionID", event.SubscriptionID)
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}

	k.log.Debugw("Published subscription event", "topic", topic, "subscriptionID", event.SubscriptionID)
	return nil
}

// Close закрывает Writer. Вызывается при graceful shutdown.
func (k *kafkaProducer) Close() error {
	if err := k.writer.Close(); err != nil {
		k.log.Errorw("Failed to close Kafka writer", "error", err)
		return fmt.Errorf("kafka: failed to close writer: %w", err)
	}
	k.log.Infow("Kafka producer writer closed")
	return nil
}

// NopProducer используется, когда Kafka не настроена
type NopProducer struct{}

func (NopProducer) PublishSubscriptionEvent(context.Context, domain.SubscriptionEvent) error {
	return nil
}

func (NopProducer) Close() error { return nil }
