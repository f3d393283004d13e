package kafka_infra

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"payments-reconciler/internal/domain"
)

// Header names carried by every published outbox message.
const (
	HeaderMessageID     = "message_id"
	HeaderMessageType   = "message_type"
	HeaderAggregateType = "aggregate_type"
)

// Publisher delivers outbox messages to a single topic.
type Publisher interface {
	Publish(ctx context.Context, msg domain.OutboxMessage) error
	Close() error
}

type kafkaPublisher struct {
	writer *kafka.Writer
	topic  string
	logger *zap.Logger
}

// NewPublisher writes synchronously with acks from all replicas, so Publish
// returning nil means the broker has the message. Keys are hashed, keeping
// every event of one transaction on one partition in order.
func NewPublisher(brokerURLs []string, topic string, logger *zap.Logger) Publisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokerURLs...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           10 * time.Second,
		RequiredAcks:           kafka.RequireAll,
		MaxAttempts:            3,
		AllowAutoTopicCreation: false,
		Logger:                 kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Debug(fmt.Sprintf(msg, args...)) }),
		ErrorLogger:            kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Error(fmt.Sprintf(msg, args...)) }),
	}

	return &kafkaPublisher{
		writer: writer,
		topic:  topic,
		logger: logger,
	}
}

func (p *kafkaPublisher) Publish(ctx context.Context, msg domain.OutboxMessage) error {
	publishCtx, cancel := context.WithTimeout(ctx, p.writer.WriteTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(publishCtx, toKafkaMessage(msg)); err != nil {
		return fmt.Errorf("failed to publish %s %s to %s: %w", msg.MessageType, msg.ID, p.topic, err)
	}
	p.logger.Debug("Outbox message delivered",
		zap.String("message_id", msg.ID),
		zap.String("topic", p.topic),
		zap.String("key", msg.Key),
	)
	return nil
}

// toKafkaMessage leaves Topic empty; the writer owns it.
func toKafkaMessage(msg domain.OutboxMessage) kafka.Message {
	return kafka.Message{
		Key:   []byte(msg.Key),
		Value: msg.Payload,
		Time:  msg.CreatedAt,
		Headers: []kafka.Header{
			{Key: HeaderMessageID, Value: []byte(msg.ID)},
			{Key: HeaderMessageType, Value: []byte(msg.MessageType)},
			{Key: HeaderAggregateType, Value: []byte(msg.AggregateType)},
		},
	}
}

func (p *kafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka publisher for %s: %w", p.topic, err)
	}
	p.logger.Info("Kafka publisher closed.", zap.String("topic", p.topic))
	return nil
}
