// internal/adapters/queue/publisher.go
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/ammerola/beadledger/internal/core/ports"
)

// Enqueuer is the part of *asynq.Client the publisher uses
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// PublisherConfig holds enqueue options
type PublisherConfig struct {
	MaxRetry int
	// VerifyWindow is how long a pending ledger:verify task suppresses duplicates for the same SKU.
	VerifyWindow time.Duration
	Retention    time.Duration
}

// DefaultPublisherConfig returns the defaults used by cmd/api
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		MaxRetry:     3,
		VerifyWindow: 30 * time.Second,
		Retention:    24 * time.Hour,
	}
}

// Publisher hands post-commit work to the asynq workers
type Publisher struct {
	client Enqueuer
	cfg    PublisherConfig
	logger *slog.Logger
}

var _ ports.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a publisher on client
func NewPublisher(client Enqueuer, cfg PublisherConfig, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "publisher")),
	}
}

// PublishLedgerVerify enqueues a ledger replay for skuID. A verification already
// pending for the SKU absorbs the request.
func (p *Publisher) PublishLedgerVerify(ctx context.Context, skuID uuid.UUID) error {
	task, err := NewLedgerVerifyTask(skuID)
	if err != nil {
		return err
	}

	info, err := p.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueLow),
		asynq.MaxRetry(p.cfg.MaxRetry),
		asynq.Unique(p.cfg.VerifyWindow),
		asynq.Retention(p.cfg.Retention))
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			p.logger.DebugContext(ctx, "ledger verification already pending", slog.String("sku_id", skuID.String()))
			return nil
		}
		return fmt.Errorf("failed to enqueue %s: %w", TypeLedgerVerify, err)
	}

	p.logger.DebugContext(ctx, "ledger verification enqueued",
		slog.String("sku_id", skuID.String()),
		slog.String("task_id", info.ID))
	return nil
}

// PublishStockDepleted enqueues a depletion notice
func (p *Publisher) PublishStockDepleted(ctx context.Context, event ports.StockDepletedEvent) error {
	task, err := NewSKUDepletedTask(event)
	if err != nil {
		return err
	}

	info, err := p.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(p.cfg.MaxRetry),
		asynq.Retention(p.cfg.Retention))
	if err != nil {
		return fmt.Errorf("failed to enqueue %s: %w", TypeSKUDepleted, err)
	}

	p.logger.InfoContext(ctx, "stock depleted notice enqueued",
		slog.String("sku_code", event.SKUCode),
		slog.String("task_id", info.ID))
	return nil
}
