// internal/adapters/memory/store.go
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/beadledger/internal/core/domain"
	"github.com/ammerola/beadledger/internal/core/ports"
)

// Store is an in-process implementation of the store and query ports.
// Transactions run one at a time against a private copy of the data, which
// replaces the shared state only when the unit of work succeeds.
type Store struct {
	mu sync.Mutex
	st *state
}

// Statically assert the ports are implemented.
var (
	_ ports.Store   = (*Store)(nil)
	_ ports.Queries = (*Store)(nil)
)

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{st: newState()}
}

// WithinTx runs fn against a snapshot and commits it if fn succeeds
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ports.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(ctx, &memTx{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction abandoned: %w", err)
	}
	s.st = work
	return nil
}

type state struct {
	seq            int64
	skus           map[uuid.UUID]domain.SKU
	materials      map[uuid.UUID]domain.RawMaterialBatch
	customers      map[uuid.UUID]domain.Customer
	purchases      map[uuid.UUID]domain.CustomerPurchase
	usages         []domain.MaterialUsageRecord
	ledger         []domain.InventoryLedgerEntry
	materialLedger []domain.MaterialLedgerEntry
}

func newState() *state {
	return &state{
		skus:      make(map[uuid.UUID]domain.SKU),
		materials: make(map[uuid.UUID]domain.RawMaterialBatch),
		customers: make(map[uuid.UUID]domain.Customer),
		purchases: make(map[uuid.UUID]domain.CustomerPurchase),
	}
}

func (st *state) clone() *state {
	c := &state{
		seq:            st.seq,
		skus:           make(map[uuid.UUID]domain.SKU, len(st.skus)),
		materials:      make(map[uuid.UUID]domain.RawMaterialBatch, len(st.materials)),
		customers:      make(map[uuid.UUID]domain.Customer, len(st.customers)),
		purchases:      make(map[uuid.UUID]domain.CustomerPurchase, len(st.purchases)),
		usages:         append([]domain.MaterialUsageRecord(nil), st.usages...),
		ledger:         append([]domain.InventoryLedgerEntry(nil), st.ledger...),
		materialLedger: append([]domain.MaterialLedgerEntry(nil), st.materialLedger...),
	}
	for k, v := range st.skus {
		c.skus[k] = v
	}
	for k, v := range st.materials {
		c.materials[k] = v
	}
	for k, v := range st.customers {
		c.customers[k] = v
	}
	for k, v := range st.purchases {
		c.purchases[k] = v
	}
	return c
}

func (st *state) nextSeq() int64 {
	st.seq++
	return st.seq
}

type memTx struct {
	st *state
}

func (t *memTx) GetSKUForUpdate(_ context.Context, id uuid.UUID) (*domain.SKU, error) {
	sku, ok := t.st.skus[id]
	if !ok {
		return nil, domain.NewNotFoundError("sku", id)
	}
	return &sku, nil
}

func (t *memTx) FindSKUBySignature(_ context.Context, hash string) (*domain.SKU, error) {
	for _, sku := range t.st.skus {
		if sku.SignatureHash == hash {
			found := sku
			return &found, nil
		}
	}
	return nil, nil
}

func (t *memTx) CountSKUsCreatedSince(_ context.Context, since time.Time) (int, error) {
	n := 0
	for _, sku := range t.st.skus {
		if !sku.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertSKU(_ context.Context, sku *domain.SKU) error {
	if _, ok := t.st.skus[sku.ID]; ok {
		return fmt.Errorf("sku %s already exists: %w", sku.ID, domain.ErrConflict)
	}
	for _, existing := range t.st.skus {
		if existing.SignatureHash == sku.SignatureHash || existing.Code == sku.Code {
			return fmt.Errorf("sku with signature %s or code %s already exists: %w", sku.SignatureHash, sku.Code, domain.ErrConflict)
		}
	}
	t.st.skus[sku.ID] = *sku
	return nil
}

func (t *memTx) UpdateSKU(_ context.Context, sku *domain.SKU) error {
	if _, ok := t.st.skus[sku.ID]; !ok {
		return domain.NewNotFoundError("sku", sku.ID)
	}
	t.st.skus[sku.ID] = *sku
	return nil
}

func (t *memTx) GetMaterialForUpdate(_ context.Context, id uuid.UUID) (*domain.RawMaterialBatch, error) {
	m, ok := t.st.materials[id]
	if !ok {
		return nil, domain.NewNotFoundError("material", id)
	}
	return &m, nil
}

func (t *memTx) CountMaterialsCreatedSince(_ context.Context, since time.Time) (int, error) {
	n := 0
	for _, m := range t.st.materials {
		if !m.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertMaterial(_ context.Context, m *domain.RawMaterialBatch) error {
	if _, ok := t.st.materials[m.ID]; ok {
		return fmt.Errorf("material %s already exists: %w", m.ID, domain.ErrConflict)
	}
	t.st.materials[m.ID] = *m
	return nil
}

func (t *memTx) UpdateMaterialRemaining(_ context.Context, m *domain.RawMaterialBatch) error {
	stored, ok := t.st.materials[m.ID]
	if !ok {
		return domain.NewNotFoundError("material", m.ID)
	}
	if m.RemainingQuantity < 0 || m.RemainingQuantity > stored.TotalQuantity {
		return fmt.Errorf("remaining quantity %d out of range for %s", m.RemainingQuantity, stored.Code)
	}
	stored.RemainingQuantity = m.RemainingQuantity
	stored.UpdatedAt = m.UpdatedAt
	t.st.materials[m.ID] = stored
	return nil
}

func (t *memTx) InsertUsage(_ context.Context, rec *domain.MaterialUsageRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.Seq = t.st.nextSeq()
	t.st.usages = append(t.st.usages, *rec)
	return nil
}

func (t *memTx) ListUsagesBySKU(_ context.Context, skuID uuid.UUID) ([]domain.MaterialUsageRecord, error) {
	return t.st.usagesFor(skuID), nil
}

func (t *memTx) InsertLedgerEntry(_ context.Context, entry *domain.InventoryLedgerEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.Seq = t.st.nextSeq()
	t.st.ledger = append(t.st.ledger, *entry)
	return nil
}

func (t *memTx) InsertMaterialLedgerEntry(_ context.Context, entry *domain.MaterialLedgerEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.Seq = t.st.nextSeq()
	t.st.materialLedger = append(t.st.materialLedger, *entry)
	return nil
}

// FindCustomer matches on phone first and falls back to name
func (t *memTx) FindCustomer(_ context.Context, phone, name string) (*domain.Customer, error) {
	if phone != "" {
		for _, c := range t.st.customers {
			if c.Phone == phone {
				found := c
				return &found, nil
			}
		}
	}
	if name != "" {
		for _, c := range t.st.customers {
			if c.Name == name {
				found := c
				return &found, nil
			}
		}
	}
	return nil, nil
}

func (t *memTx) InsertCustomer(_ context.Context, c *domain.Customer) error {
	t.st.customers[c.ID] = *c
	return nil
}

func (t *memTx) UpdateCustomer(_ context.Context, c *domain.Customer) error {
	if _, ok := t.st.customers[c.ID]; !ok {
		return domain.NewNotFoundError("customer", c.ID)
	}
	t.st.customers[c.ID] = *c
	return nil
}

func (t *memTx) GetCustomerForUpdate(_ context.Context, id uuid.UUID) (*domain.Customer, error) {
	c, ok := t.st.customers[id]
	if !ok {
		return nil, domain.NewNotFoundError("customer", id)
	}
	return &c, nil
}

func (t *memTx) InsertPurchase(_ context.Context, p *domain.CustomerPurchase) error {
	t.st.purchases[p.ID] = *p
	return nil
}

func (t *memTx) GetPurchaseForUpdate(_ context.Context, id uuid.UUID) (*domain.CustomerPurchase, error) {
	p, ok := t.st.purchases[id]
	if !ok {
		return nil, domain.NewNotFoundError("purchase", id)
	}
	return &p, nil
}

func (t *memTx) UpdatePurchase(_ context.Context, p *domain.CustomerPurchase) error {
	if _, ok := t.st.purchases[p.ID]; !ok {
		return domain.NewNotFoundError("purchase", p.ID)
	}
	t.st.purchases[p.ID] = *p
	return nil
}

func (st *state) usagesFor(skuID uuid.UUID) []domain.MaterialUsageRecord {
	var out []domain.MaterialUsageRecord
	for _, u := range st.usages {
		if u.SKUID == skuID {
			out = append(out, u)
		}
	}
	return out
}
