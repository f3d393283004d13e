package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"payments-reconciler/internal/app/payments"
	"payments-reconciler/internal/domain"
	"payments-reconciler/internal/domain/event"
	kafka_infra "payments-reconciler/internal/infrastructure/kafka"
)

const (
	lockRetries    = 3
	lockRetryDelay = 200 * time.Millisecond
)

// StatusReportMessageHandler decodes gateway status reports and hands them to
// the processor. Malformed messages are logged and skipped.
func StatusReportMessageHandler(processor payments.PaymentProcessor, logger *zap.Logger) kafka_infra.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt event.StatusReportEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("Failed to unmarshal Kafka message value to StatusReportEvent",
				zap.Error(err),
				zap.ByteString("value", msg.Value),
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
			return nil
		}
		if evt.TransactionID == "" || evt.Status == "" {
			logger.Warn("Status report without transaction id or status, skipping",
				zap.String("event_id", evt.EventID),
				zap.Int64("offset", msg.Offset))
			return nil
		}
		if evt.EventID == "" {
			evt.EventID = fmt.Sprintf("%s-%d-%d", msg.Topic, msg.Partition, msg.Offset)
		}

		logger.Info("Processing status report",
			zap.String("event_id", evt.EventID),
			zap.String("transaction_id", evt.TransactionID),
			zap.String("status", evt.Status),
		)

		var err error
		for attempt := 1; attempt <= lockRetries; attempt++ {
			err = processor.ProcessStatusReportEvent(ctx, evt, msg.Value)
			if !errors.Is(err, domain.ErrTransactionLocked) {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * lockRetryDelay):
			}
		}
		if err != nil {
			logger.Error("Failed to process status report",
				zap.String("event_id", evt.EventID),
				zap.String("transaction_id", evt.TransactionID),
				zap.Error(err),
			)
			return fmt.Errorf("failed to process status report for transaction %s: %w", evt.TransactionID, err)
		}
		return nil
	}
}
