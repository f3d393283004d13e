package outbox

import (
	"context"
	"sync"
	"time"

	"payments-reconciler/internal/domain"
	"payments-reconciler/internal/infrastructure/database"
	kafka_infra "payments-reconciler/internal/infrastructure/kafka"

	"go.uber.org/zap"
)

const batchSize = 10

type OutboxRepository interface {
	ClaimPendingTx(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error)
	MarkSentTx(ctx context.Context, querier domain.Querier, id string, sentAt time.Time) error
	RecordFailureTx(ctx context.Context, querier domain.Querier, id string, cause error) error
}

// Processor publishes pending outbox messages to Kafka.
type Processor struct {
	transactor     database.Transactor
	outboxRepo     OutboxRepository
	publisher      kafka_infra.Publisher
	pollInterval   time.Duration
	pollTimeout    time.Duration
	logger         *zap.Logger
	shutdownSignal chan struct{}
	shutdownOnce   sync.Once
	done           chan struct{}
}

func NewProcessor(
	transactor database.Transactor,
	outboxRepo OutboxRepository,
	publisher kafka_infra.Publisher,
	pollInterval time.Duration,
	pollTimeout time.Duration,
	logger *zap.Logger,
) *Processor {
	return &Processor{
		transactor:     transactor,
		outboxRepo:     outboxRepo,
		publisher:      publisher,
		pollInterval:   pollInterval,
		pollTimeout:    pollTimeout,
		logger:         logger,
		shutdownSignal: make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Start polls until ctx is cancelled or Stop is called. It returns
// immediately; use Done to wait for the loop to exit.
func (p *Processor) Start(ctx context.Context) {
	p.logger.Info("Starting outbox processor...")
	ticker := time.NewTicker(p.pollInterval)

	go func() {
		defer close(p.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				p.logger.Info("Outbox processor context cancelled.")
				return
			case <-p.shutdownSignal:
				p.logger.Info("Outbox processor stopped.")
				return
			case <-ticker.C:
				p.ProcessBatch(ctx)
			}
		}
	}()
}

func (p *Processor) Stop() {
	p.shutdownOnce.Do(func() {
		p.logger.Info("Signaling outbox processor to stop...")
		close(p.shutdownSignal)
	})
}

func (p *Processor) Done() <-chan struct{} {
	return p.done
}

// ProcessBatch publishes up to one batch of pending messages. Rows are locked
// for the duration of the batch; a message that fails to publish stays
// PENDING with the failure recorded and is retried on the next tick.
func (p *Processor) ProcessBatch(ctx context.Context) int {
	batchCtx, cancel := context.WithTimeout(ctx, p.pollTimeout)
	defer cancel()

	sent := 0
	err := p.transactor.WithinTx(batchCtx, func(q domain.Querier) error {
		messages, err := p.outboxRepo.ClaimPendingTx(batchCtx, q, batchSize)
		if err != nil {
			return err
		}
		if len(messages) == 0 {
			p.logger.Debug("No pending outbox messages found.")
			return nil
		}

		for _, msg := range messages {
			if pubErr := p.publisher.Publish(batchCtx, msg); pubErr != nil {
				p.logger.Error("Failed to publish outbox message",
					zap.String("message_id", msg.ID),
					zap.String("transaction_id", msg.AggregateID),
					zap.Int("attempt", msg.Attempts+1),
					zap.Error(pubErr))
				if err := p.outboxRepo.RecordFailureTx(batchCtx, q, msg.ID, pubErr); err != nil {
					return err
				}
				continue
			}
			if err := p.outboxRepo.MarkSentTx(batchCtx, q, msg.ID, time.Now()); err != nil {
				return err
			}
			sent++
		}
		p.logger.Info("Outbox batch processed",
			zap.Int("claimed", len(messages)),
			zap.Int("sent", sent))
		return nil
	})
	if err != nil {
		p.logger.Error("Failed to process outbox batch", zap.Error(err))
		return 0
	}
	return sent
}
