// internal/core/services/ledger_service.go
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ammerola/beadledger/internal/core/domain"
	"github.com/ammerola/beadledger/internal/core/ports"
)

// Config tunes the ledger service
type Config struct {
	// PriceTolerance is the relative price difference above which a merge is flagged.
	PriceTolerance decimal.Decimal
	CacheTTL       time.Duration
	LockTTL        time.Duration
	// Location defines "local midnight" for daily code sequences.
	Location *time.Location
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		PriceTolerance: decimal.NewFromFloat(0.05),
		CacheTTL:       5 * time.Minute,
		LockTTL:        10 * time.Second,
		Location:       time.Local,
	}
}

// Option configures a LedgerService
type Option func(*LedgerService)

// WithCache enables the SKU read cache
func WithCache(cache ports.CacheRepository) Option {
	return func(s *LedgerService) { s.cache = cache }
}

// WithPublisher enables post-commit background tasks
func WithPublisher(p ports.EventPublisher) Option {
	return func(s *LedgerService) { s.events = p }
}

// WithLocker enables best-effort distributed locking around SKU creation
func WithLocker(l ports.Locker) Option {
	return func(s *LedgerService) { s.locker = l }
}

// WithConfig overrides DefaultConfig
func WithConfig(cfg Config) Option {
	return func(s *LedgerService) { s.cfg = cfg }
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

// LedgerService implements SKU resolution and every quantity operation on top of a transactional store.
type LedgerService struct {
	store   ports.Store
	queries ports.Queries
	cache   ports.CacheRepository
	events  ports.EventPublisher
	locker  ports.Locker
	cfg     Config
	now     func() time.Time
	logger  *slog.Logger
}

// Statically assert that *LedgerService implements the LedgerService interface.
var _ ports.LedgerService = (*LedgerService)(nil)

// NewLedgerService creates a new ledger service
func NewLedgerService(store ports.Store, queries ports.Queries, logger *slog.Logger, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:   store,
		queries: queries,
		cfg:     DefaultConfig(),
		now:     time.Now,
		logger:  logger.With(slog.String("service", "ledger")),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.Location == nil {
		s.cfg.Location = time.Local
	}
	return s
}

func (s *LedgerService) clock() time.Time {
	return s.now().In(s.cfg.Location)
}

// applyAndLog is the only place a SKU's quantities change. It applies the change,
// persists the SKU and appends the ledger entry, so before + change = after always holds.
func (s *LedgerService) applyAndLog(ctx context.Context, tx ports.Tx, sku *domain.SKU, change domain.QuantityChange) (domain.InventoryLedgerEntry, error) {
	entry, err := sku.Apply(change, s.clock())
	if err != nil {
		return domain.InventoryLedgerEntry{}, err
	}
	if err := tx.UpdateSKU(ctx, sku); err != nil {
		return domain.InventoryLedgerEntry{}, fmt.Errorf("failed to update sku %s: %w", sku.Code, err)
	}
	if err := tx.InsertLedgerEntry(ctx, &entry); err != nil {
		return domain.InventoryLedgerEntry{}, fmt.Errorf("failed to write ledger entry for %s: %w", sku.Code, err)
	}
	return entry, nil
}

// moveMaterial persists a batch whose remaining quantity was just changed, with its ledger entry.
func (s *LedgerService) moveMaterial(ctx context.Context, tx ports.Tx, m *domain.RawMaterialBatch,
	entry domain.MaterialLedgerEntry, skuID *uuid.UUID, note string, actor domain.Actor) error {

	now := s.clock()
	m.UpdatedAt = now
	entry.Stamp(skuID, note, actor, now)

	if err := tx.UpdateMaterialRemaining(ctx, m); err != nil {
		return fmt.Errorf("failed to update material %s: %w", m.Code, err)
	}
	if err := tx.InsertMaterialLedgerEntry(ctx, &entry); err != nil {
		return fmt.Errorf("failed to write material ledger for %s: %w", m.Code, err)
	}
	return nil
}

// afterCommit runs the best-effort follow-ups of a committed SKU mutation.
// Failures are logged; the operation itself already succeeded.
func (s *LedgerService) afterCommit(ctx context.Context, sku *domain.SKU, action domain.LedgerAction) {
	if s.cache != nil {
		s.invalidateSKU(ctx, sku.ID)
	}

	if s.events == nil {
		return
	}
	if err := s.events.PublishLedgerVerify(ctx, sku.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to enqueue ledger verification",
			slog.String("sku_id", sku.ID.String()),
			slog.String("error", err.Error()))
	}
	if sku.AvailableQuantity == 0 && action != domain.LedgerActionCreate {
		event := ports.StockDepletedEvent{
			SKUID:      sku.ID,
			SKUCode:    sku.Code,
			SKUName:    sku.Name,
			Action:     string(action),
			OccurredAt: s.clock(),
		}
		if err := s.events.PublishStockDepleted(ctx, event); err != nil {
			s.logger.WarnContext(ctx, "failed to enqueue stock depleted notice",
				slog.String("sku_id", sku.ID.String()),
				slog.String("error", err.Error()))
		}
	}
}

// invalidateSKU moves the SKU to a fresh cache generation and drops the copies it knows about.
// Readers that loaded the row before the commit can only write back under the retired generation.
func (s *LedgerService) invalidateSKU(ctx context.Context, id uuid.UUID) {
	previous := s.skuGeneration(ctx, id)
	// outlives every entry written under the retired generation
	ttl := 2 * s.cfg.CacheTTL
	if err := s.cache.SetWithTTL(ctx, skuGenerationKey(id), uuid.NewString(), ttl); err != nil {
		s.logger.WarnContext(ctx, "failed to advance sku cache generation",
			slog.String("sku_id", id.String()),
			slog.String("error", err.Error()))
	}
	if err := s.cache.Delete(ctx, skuCacheKey(id, ""), skuCacheKey(id, previous)); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate sku cache",
			slog.String("sku_id", id.String()),
			slog.String("error", err.Error()))
	}
}

// lockMaterials loads and row-locks batches in id order so concurrent operations cannot deadlock.
func lockMaterials(ctx context.Context, tx ports.Tx, ids []uuid.UUID) (map[uuid.UUID]*domain.RawMaterialBatch, error) {
	ordered := sortedIDs(ids)
	batches := make(map[uuid.UUID]*domain.RawMaterialBatch, len(ordered))
	for _, id := range ordered {
		m, err := tx.GetMaterialForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		batches[id] = m
	}
	return batches, nil
}

func sortedIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

// logOutcome records a finished operation, or why it was refused
func (s *LedgerService) logOutcome(ctx context.Context, op string, err error, attrs ...slog.Attr) {
	attrs = append(attrs, slog.String("operation", op))
	switch {
	case err == nil:
		s.logger.LogAttrs(ctx, slog.LevelInfo, op+" completed", attrs...)
	case isBusinessError(err):
		attrs = append(attrs, slog.String("reason", err.Error()))
		s.logger.LogAttrs(ctx, slog.LevelInfo, op+" rejected", attrs...)
	default:
		attrs = append(attrs, slog.String("error", err.Error()))
		s.logger.LogAttrs(ctx, slog.LevelError, op+" failed", attrs...)
	}
}

func isBusinessError(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInsufficientStock) ||
		errors.Is(err, domain.ErrInsufficientMaterial) ||
		errors.Is(err, domain.ErrValidation)
}
