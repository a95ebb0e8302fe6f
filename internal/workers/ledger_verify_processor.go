// internal/workers/ledger_verify_processor.go
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/ammerola/beadledger/internal/adapters/queue"
	"github.com/ammerola/beadledger/internal/core/domain"
	"github.com/ammerola/beadledger/internal/core/ports"
)

// LedgerVerifier replays a SKU's ledger
type LedgerVerifier interface {
	VerifyLedger(ctx context.Context, skuID uuid.UUID) (*domain.LedgerReport, error)
}

// LedgerVerifyProcessor checks that a SKU's ledger still reproduces its available quantity
type LedgerVerifyProcessor struct {
	verifier LedgerVerifier
	locker   ports.Locker
	lockTTL  time.Duration
	logger   *slog.Logger
}

// NewLedgerVerifyProcessor creates a new processor. locker may be nil.
func NewLedgerVerifyProcessor(verifier LedgerVerifier, locker ports.Locker, logger *slog.Logger) *LedgerVerifyProcessor {
	return &LedgerVerifyProcessor{
		verifier: verifier,
		locker:   locker,
		lockTTL:  30 * time.Second,
		logger:   logger.With(slog.String("processor", "ledger_verify")),
	}
}

// ProcessTask handles ledger:verify
func (p *LedgerVerifyProcessor) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload, err := queue.ParseLedgerVerify(t)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	skuID := payload.SKUID.String()

	if p.locker != nil {
		lock, err := p.locker.TryLock(ctx, "lock:ledger-verify:"+skuID, p.lockTTL)
		switch {
		case errors.Is(err, ports.ErrLockNotObtained):
			p.logger.DebugContext(ctx, "verification already running", slog.String("sku_id", skuID))
			return nil
		case err != nil:
			p.logger.WarnContext(ctx, "verifying without lock",
				slog.String("sku_id", skuID),
				slog.String("error", err.Error()))
		default:
			defer func() {
				if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
					p.logger.DebugContext(ctx, "failed to release verify lock", slog.String("error", err.Error()))
				}
			}()
		}
	}

	report, err := p.verifier.VerifyLedger(ctx, payload.SKUID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
		}
		return fmt.Errorf("failed to verify ledger for %s: %w", skuID, err)
	}

	if !report.Consistent {
		// A broken chain does not heal on retry; it needs a human.
		p.logger.ErrorContext(ctx, "ledger inconsistent",
			slog.String("sku_id", skuID),
			slog.Int("entries", report.Entries),
			slog.Int("replayed_quantity", report.ReplayedQuantity),
			slog.Int("available_quantity", report.AvailableQuantity),
			slog.String("problems", strings.Join(report.Problems, "; ")))
		return nil
	}

	p.logger.DebugContext(ctx, "ledger verified",
		slog.String("sku_id", skuID),
		slog.Int("entries", report.Entries))
	return nil
}
