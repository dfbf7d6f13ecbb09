package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/Dhoini/subscription-commerce/pkg/logger"
	kafkaGo "github.com/segmentio/kafka-go"
)

// requiredTopics - топики, которые сервис пишет и читает
func requiredTopics() []kafkaGo.TopicConfig {
	return []kafkaGo.TopicConfig{
		{Topic: TopicSubscriptionActivated, NumPartitions: 3, ReplicationFactor: 1},
		{Topic: TopicSubscriptionCancelled, NumPartitions: 2, ReplicationFactor: 1},
		{Topic: TopicSubscriptionRenewed, NumPartitions: 2, ReplicationFactor: 1},
	}
}

// EnsureKafkaTopics создает отсутствующие топики через контроллер кластера.
func EnsureKafkaTopics(ctx context.Context, brokers []string, log *logger.Logger) error {
	if len(brokers) == 0 || strings.TrimSpace(brokers[0]) == "" {
		return errors.New("kafka broker address is empty")
	}
	broker := strings.TrimSpace(brokers[0])
	if _, _, err := net.SplitHostPort(broker); err != nil {
		return fmt.Errorf("invalid broker address %s: %w", broker, err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, err := kafkaGo.DialContext(connCtx, "tcp", broker)
	if err != nil {
		return fmt.Errorf("kafka connection failed: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller lookup failed: %w", err)
	}
	ctrlConn, err := kafkaGo.DialContext(connCtx, "tcp", net.JoinHostPort(controller.Host, fmt.Sprint(controller.Port)))
	if err != nil {
		return fmt.Errorf("kafka controller connection failed: %w", err)
	}
	defer ctrlConn.Close()

	partitions, err := ctrlConn.ReadPartitions()
	if err != nil {
		return fmt.Errorf("kafka read partitions failed: %w", err)
	}
	existing := make(map[string]bool, len(partitions))
	for _, p := range partitions {
		existing[p.Topic] = true
	}

	var toCreate []kafkaGo.TopicConfig
	for _, tc := range requiredTopics() {
		if !existing[tc.Topic] {
			toCreate = append(toCreate, tc)
		}
	}
	if len(toCreate) == 0 {
		log.Debugw("All required Kafka topics exist")
		return nil
	}

	if err := ctrlConn.CreateTopics(toCreate...); err != nil && !errors.Is(err, kafkaGo.TopicAlreadyExists) {
		log.Errorw("Failed to create topics", "error", err, "topics", topicNames(toCreate))
		return fmt.Errorf("kafka create topics failed: %w", err)
	}
	log.Infow("Kafka topics created", "topics", topicNames(toCreate))
	return nil
}

func topicNames(configs []kafkaGo.TopicConfig) []string {
	names := make([]string, 0, len(configs))
	for _, tc := range configs {
		names = append(names, tc.Topic)
	}
	return names
}
