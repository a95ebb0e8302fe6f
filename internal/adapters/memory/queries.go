// internal/adapters/memory/queries.go
package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/ammerola/beadledger/internal/core/domain"
	"github.com/ammerola/beadledger/internal/core/ports"
)

var _ ports.Tx = (*memTx)(nil)

// read returns the committed snapshot. Committed states are never mutated, so callers
// can use it after the lock is released.
func (s *Store) read() *state {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// GetSKU returns nil, nil when the SKU does not exist
func (s *Store) GetSKU(_ context.Context, id uuid.UUID) (*domain.SKU, error) {
	st := s.read()
	sku, ok := st.skus[id]
	if !ok {
		return nil, nil
	}
	return &sku, nil
}

// ListSKUs filters, sorts and pages SKUs
func (s *Store) ListSKUs(_ context.Context, params ports.SKUListParams) ([]*domain.SKU, int64, error) {
	st := s.read()
	search := strings.ToLower(strings.TrimSpace(params.Search))

	var items []*domain.SKU
	for _, sku := range st.skus {
		if params.Status != "" && string(sku.Status) != params.Status {
			continue
		}
		if params.MinAvailable != nil && sku.AvailableQuantity < *params.MinAvailable {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(sku.Name), search) &&
			!strings.Contains(strings.ToLower(sku.Code), search) {
			continue
		}
		sku := sku
		items = append(items, &sku)
	}

	desc := !strings.EqualFold(params.SortOrder, "asc")
	less := skuLess(params.SortBy)
	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return less(items[j], items[i])
		}
		return less(items[i], items[j])
	})

	total := int64(len(items))
	return page(items, params.Page, params.PageSize), total, nil
}

func skuLess(sortBy string) func(a, b *domain.SKU) bool {
	switch sortBy {
	case "name":
		return func(a, b *domain.SKU) bool { return a.Name < b.Name }
	case "code":
		return func(a, b *domain.SKU) bool { return a.Code < b.Code }
	case "available_quantity":
		return func(a, b *domain.SKU) bool { return a.AvailableQuantity < b.AvailableQuantity }
	case "selling_price":
		return func(a, b *domain.SKU) bool { return a.SellingPrice.LessThan(b.SellingPrice) }
	default:
		return func(a, b *domain.SKU) bool {
			if a.CreatedAt.Equal(b.CreatedAt) {
				return a.Code < b.Code
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
}

func page[T any](items []T, pageNo, size int) []T {
	if size <= 0 {
		return items
	}
	start := (pageNo - 1) * size
	if start < 0 {
		start = 0
	}
	if start >= len(items) {
		return nil
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// ListLedgerEntries returns a SKU's entries in sequence order
func (s *Store) ListLedgerEntries(_ context.Context, skuID uuid.UUID) ([]domain.InventoryLedgerEntry, error) {
	st := s.read()
	var out []domain.InventoryLedgerEntry
	for _, e := range st.ledger {
		if e.SKUID == skuID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListUsages returns a SKU's usage records in insertion order
func (s *Store) ListUsages(_ context.Context, skuID uuid.UUID) ([]domain.MaterialUsageRecord, error) {
	return s.read().usagesFor(skuID), nil
}

// GetMaterial returns nil, nil when the batch does not exist
func (s *Store) GetMaterial(_ context.Context, id uuid.UUID) (*domain.RawMaterialBatch, error) {
	st := s.read()
	m, ok := st.materials[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

// GetMaterials returns the batches that exist among ids
func (s *Store) GetMaterials(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.RawMaterialBatch, error) {
	st := s.read()
	out := make(map[uuid.UUID]*domain.RawMaterialBatch, len(ids))
	for _, id := range ids {
		if m, ok := st.materials[id]; ok {
			out[id] = &m
		}
	}
	return out, nil
}

// ListMaterials filters and pages batches, newest first
func (s *Store) ListMaterials(_ context.Context, params ports.MaterialListParams) ([]*domain.RawMaterialBatch, int64, error) {
	st := s.read()
	search := strings.ToLower(strings.TrimSpace(params.Search))

	var items []*domain.RawMaterialBatch
	for _, m := range st.materials {
		if params.Type != "" && string(m.Type) != params.Type {
			continue
		}
		if params.InStockOnly && m.RemainingQuantity == 0 {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(m.Name), search) &&
			!strings.Contains(strings.ToLower(m.Code), search) {
			continue
		}
		m := m
		items = append(items, &m)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].Code > items[j].Code
		}
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	total := int64(len(items))
	return page(items, params.Page, params.PageSize), total, nil
}

// ListMaterialLedger returns a batch's stock movements in sequence order
func (s *Store) ListMaterialLedger(_ context.Context, materialID uuid.UUID) ([]domain.MaterialLedgerEntry, error) {
	st := s.read()
	var out []domain.MaterialLedgerEntry
	for _, e := range st.materialLedger {
		if e.MaterialID == materialID {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetCustomer returns nil, nil when the customer does not exist
func (s *Store) GetCustomer(_ context.Context, id uuid.UUID) (*domain.Customer, error) {
	st := s.read()
	c, ok := st.customers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// ListCustomerPurchases returns a customer's purchases, newest first
func (s *Store) ListCustomerPurchases(_ context.Context, customerID uuid.UUID) ([]domain.CustomerPurchase, error) {
	st := s.read()
	var out []domain.CustomerPurchase
	for _, p := range st.purchases {
		if p.CustomerID == customerID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PurchaseDate.After(out[j].PurchaseDate) })
	return out, nil
}
