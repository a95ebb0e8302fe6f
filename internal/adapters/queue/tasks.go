// internal/adapters/queue/tasks.go
package queue

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/ammerola/beadledger/internal/core/ports"
)

// Task types
const (
	TypeLedgerVerify = "ledger:verify"
	TypeSKUDepleted  = "sku:depleted"
)

// Queue names, matching the asynq server's priority map
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// LedgerVerifyPayload asks a worker to replay one SKU's ledger
type LedgerVerifyPayload struct {
	SKUID uuid.UUID `json:"sku_id"`
}

// NewLedgerVerifyTask creates a ledger:verify task
func NewLedgerVerifyTask(skuID uuid.UUID) (*asynq.Task, error) {
	b, err := json.Marshal(LedgerVerifyPayload{SKUID: skuID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ledger verify payload: %w", err)
	}
	return asynq.NewTask(TypeLedgerVerify, b), nil
}

// NewSKUDepletedTask creates a sku:depleted task
func NewSKUDepletedTask(event ports.StockDepletedEvent) (*asynq.Task, error) {
	b, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stock depleted payload: %w", err)
	}
	return asynq.NewTask(TypeSKUDepleted, b), nil
}

// ParseLedgerVerify decodes a ledger:verify payload
func ParseLedgerVerify(t *asynq.Task) (LedgerVerifyPayload, error) {
	var p LedgerVerifyPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if p.SKUID == uuid.Nil {
		return p, fmt.Errorf("payload is missing sku_id")
	}
	return p, nil
}

// ParseSKUDepleted decodes a sku:depleted payload
func ParseSKUDepleted(t *asynq.Task) (ports.StockDepletedEvent, error) {
	var e ports.StockDepletedEvent
	if err := json.Unmarshal(t.Payload(), &e); err != nil {
		return e, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return e, nil
}
