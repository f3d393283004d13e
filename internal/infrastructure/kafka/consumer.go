package kafka_infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	defaultRetryBackoff    = 500 * time.Millisecond
	defaultMaxRetryBackoff = 30 * time.Second
)

type MessageHandler func(ctx context.Context, msg kafka.Message) error

type Consumer interface {
	// Start blocks until ctx is cancelled or Stop is called.
	Start(ctx context.Context, handler MessageHandler) error
	Stop()
}

// messageReader is the part of *kafka.Reader the consumer drives.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaConsumer struct {
	reader     messageReader
	logger     *zap.Logger
	topic      string
	groupID    string
	cancel     context.CancelFunc
	backoff    time.Duration
	maxBackoff time.Duration
}

func NewConsumer(brokerURLs []string, groupID, topic string, logger *zap.Logger) Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:                brokerURLs,
		GroupID:                groupID,
		Topic:                  topic,
		MinBytes:               10e3,
		MaxBytes:               10e6,
		ReadBatchTimeout:       1 * time.Second,
		Logger:                 kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Debug(fmt.Sprintf(msg, args...)) }),
		ErrorLogger:            kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Error(fmt.Sprintf(msg, args...)) }),
		HeartbeatInterval:      3 * time.Second,
		CommitInterval:         0,
		PartitionWatchInterval: 5 * time.Second,
		MaxAttempts:            3,
	})

	return newConsumer(reader, groupID, topic, logger)
}

func newConsumer(reader messageReader, groupID, topic string, logger *zap.Logger) *kafkaConsumer {
	return &kafkaConsumer{
		reader:     reader,
		logger:     logger,
		topic:      topic,
		groupID:    groupID,
		backoff:    defaultRetryBackoff,
		maxBackoff: defaultMaxRetryBackoff,
	}
}

// Start handles messages one at a time. A message whose handler fails is
// retried in place until it succeeds, so no later offset is ever committed
// past it.
func (c *kafkaConsumer) Start(ctx context.Context, handler MessageHandler) error {
	consumerCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	defer cancel()

	c.logger.Info("Kafka consumer starting", zap.String("topic", c.topic), zap.String("group_id", c.groupID))

	for {
		msg, err := c.reader.FetchMessage(consumerCtx)
		if err != nil {
			if isStopError(err) {
				c.logger.Info("Kafka consumer stopping, closing reader.")
				return c.reader.Close()
			}
			c.logger.Error("Failed to fetch message from Kafka", zap.Error(err))
			if !sleepCtx(consumerCtx, time.Second) {
				return c.reader.Close()
			}
			continue
		}

		if !c.handleUntilDone(consumerCtx, handler, msg) {
			c.logger.Info("Kafka consumer stopping with message unhandled, offset not committed",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset))
			return c.reader.Close()
		}

		if !c.commitUntilDone(consumerCtx, msg) {
			return c.reader.Close()
		}
		c.logger.Debug("Kafka message offset committed",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)
	}
}

// handleUntilDone returns false only when ctx ends before the handler succeeds.
func (c *kafkaConsumer) handleUntilDone(ctx context.Context, handler MessageHandler, msg kafka.Message) bool {
	wait := c.backoff
	for attempt := 1; ; attempt++ {
		err := handler(ctx, msg)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		c.logger.Error("Error handling Kafka message, retrying",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
		if !sleepCtx(ctx, wait) {
			return false
		}
		wait = min(wait*2, c.maxBackoff)
	}
}

// commitUntilDone retries a failed commit before the next fetch. A message
// redelivered after a lost commit is absorbed by the inbox.
func (c *kafkaConsumer) commitUntilDone(ctx context.Context, msg kafka.Message) bool {
	wait := c.backoff
	for {
		err := c.reader.CommitMessages(ctx, msg)
		if err == nil {
			return true
		}
		if isStopError(err) || ctx.Err() != nil {
			return false
		}
		c.logger.Error("Failed to commit offset for Kafka message",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		if !sleepCtx(ctx, wait) {
			return false
		}
		wait = min(wait*2, c.maxBackoff)
	}
}

func (c *kafkaConsumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.logger.Info("Kafka consumer stop signal sent.")
}

func isStopError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
