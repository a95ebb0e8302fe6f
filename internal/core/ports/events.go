// internal/core/ports/events.go
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// StockDepletedEvent is published when a SKU's available quantity reaches zero.
type StockDepletedEvent struct {
	SKUID      uuid.UUID `json:"sku_id"`
	SKUCode    string    `json:"sku_code"`
	SKUName    string    `json:"sku_name"`
	Action     string    `json:"action"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher hands post-commit work to background workers.
type EventPublisher interface {
	PublishLedgerVerify(ctx context.Context, skuID uuid.UUID) error
	PublishStockDepleted(ctx context.Context, event StockDepletedEvent) error
}

// ErrLockNotObtained is returned by Locker when another holder owns the key.
var ErrLockNotObtained = errors.New("lock not obtained")

// Lock is a held distributed lock
type Lock interface {
	Release(ctx context.Context) error
}

// Locker provides short-lived, best-effort mutual exclusion across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}
