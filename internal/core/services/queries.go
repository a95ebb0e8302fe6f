// internal/core/services/queries.go
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ammerola/beadledger/internal/core/domain"
	"github.com/ammerola/beadledger/internal/core/ports"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// skuCacheKey names the cached copy of a SKU under one cache generation.
// The empty generation is used until the SKU's first committed change.
func skuCacheKey(id uuid.UUID, generation string) string {
	if generation == "" {
		return "sku:" + id.String()
	}
	return "sku:" + id.String() + ":" + generation
}

func skuGenerationKey(id uuid.UUID) string {
	return "sku-gen:" + id.String()
}

// skuGeneration reads the SKU's current cache generation. Any cache error reads as the empty generation.
func (s *LedgerService) skuGeneration(ctx context.Context, id uuid.UUID) string {
	var generation string
	if err := s.cache.Get(ctx, skuGenerationKey(id), &generation); err != nil {
		return ""
	}
	return generation
}

// GetSKU retrieves a SKU, through the cache when one is configured
func (s *LedgerService) GetSKU(ctx context.Context, id uuid.UUID) (*domain.SKU, error) {
	load := func() (interface{}, error) {
		sku, err := s.queries.GetSKU(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get sku: %w", err)
		}
		if sku == nil {
			return nil, domain.NewNotFoundError("sku", id)
		}
		return sku, nil
	}

	if s.cache == nil {
		v, err := load()
		if err != nil {
			return nil, err
		}
		return v.(*domain.SKU), nil
	}

	// a copy loaded before a concurrent commit lands under the generation that commit retires
	var sku domain.SKU
	key := skuCacheKey(id, s.skuGeneration(ctx, id))
	if err := s.cache.GetOrSet(ctx, key, &sku, load, s.cfg.CacheTTL); err != nil {
		return nil, err
	}
	return &sku, nil
}

// ListSKUs retrieves SKUs with filtering and pagination
func (s *LedgerService) ListSKUs(ctx context.Context, params ports.SKUListParams) (*ports.SKUListResult, error) {
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)
	if params.Status != "" && !domain.SKUStatus(params.Status).Valid() {
		return nil, domain.NewValidationError("status", "must be one of ACTIVE INACTIVE")
	}

	items, total, err := s.queries.ListSKUs(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list skus: %w", err)
	}
	if items == nil {
		items = []*domain.SKU{}
	}
	return &ports.SKUListResult{
		Items:      items,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalCount: total,
		TotalPages: totalPages(total, params.PageSize),
	}, nil
}

// GetLedger returns a SKU's ledger in sequence order
func (s *LedgerService) GetLedger(ctx context.Context, skuID uuid.UUID) ([]domain.InventoryLedgerEntry, error) {
	if _, err := s.requireSKU(ctx, skuID); err != nil {
		return nil, err
	}
	entries, err := s.queries.ListLedgerEntries(ctx, skuID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	return entries, nil
}

// GetRecipe derives the per-unit recipe and checks it still hashes to the stored signature.
func (s *LedgerService) GetRecipe(ctx context.Context, skuID uuid.UUID) (*ports.Recipe, error) {
	sku, err := s.requireSKU(ctx, skuID)
	if err != nil {
		return nil, err
	}
	usages, err := s.queries.ListUsages(ctx, skuID)
	if err != nil {
		return nil, fmt.Errorf("failed to list usages: %w", err)
	}
	items := domain.DeriveRecipe(usages)

	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.MaterialID)
	}
	batches, err := s.queries.GetMaterials(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipe materials: %w", err)
	}

	recipe := &ports.Recipe{SKUID: sku.ID, Lines: make([]ports.RecipeLine, 0, len(items))}
	inputs := make([]domain.SignatureInput, 0, len(items))
	for _, item := range items {
		m, ok := batches[item.MaterialID]
		if !ok {
			return nil, domain.NewNotFoundError("material", item.MaterialID)
		}
		recipe.Lines = append(recipe.Lines, ports.RecipeLine{RecipeItem: item, MaterialCode: m.Code, MaterialName: m.Name})
		inputs = append(inputs, domain.MaterialSourceFor(m, item.BeadsPerUnit, item.PiecesPerUnit))
	}

	if len(inputs) > 0 {
		sig, err := domain.ComputeSignature(inputs)
		if err != nil {
			return nil, err
		}
		recipe.Signature = sig.Hash
		recipe.Matches = sig.Hash == sku.SignatureHash
	}
	return recipe, nil
}

// VerifyLedger replays a SKU's ledger against its live available quantity
func (s *LedgerService) VerifyLedger(ctx context.Context, skuID uuid.UUID) (*domain.LedgerReport, error) {
	sku, err := s.requireSKU(ctx, skuID)
	if err != nil {
		return nil, err
	}
	entries, err := s.queries.ListLedgerEntries(ctx, skuID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	report := domain.ReplayLedger(skuID, entries, sku.AvailableQuantity)
	return &report, nil
}

// GetMaterial retrieves a material batch
func (s *LedgerService) GetMaterial(ctx context.Context, id uuid.UUID) (*domain.RawMaterialBatch, error) {
	m, err := s.queries.GetMaterial(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get material: %w", err)
	}
	if m == nil {
		return nil, domain.NewNotFoundError("material", id)
	}
	return m, nil
}

// ListMaterials retrieves material batches with filtering and pagination
func (s *LedgerService) ListMaterials(ctx context.Context, params ports.MaterialListParams) (*ports.MaterialListResult, error) {
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)
	if params.Type != "" && !domain.MaterialType(params.Type).Valid() {
		return nil, domain.NewValidationError("type", "is not a known material type")
	}

	items, total, err := s.queries.ListMaterials(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to list materials: %w", err)
	}
	if items == nil {
		items = []*domain.RawMaterialBatch{}
	}
	return &ports.MaterialListResult{
		Items:      items,
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalCount: total,
		TotalPages: totalPages(total, params.PageSize),
	}, nil
}

// GetMaterialLedger returns every change to a batch's remaining quantity
func (s *LedgerService) GetMaterialLedger(ctx context.Context, materialID uuid.UUID) ([]domain.MaterialLedgerEntry, error) {
	if _, err := s.GetMaterial(ctx, materialID); err != nil {
		return nil, err
	}
	entries, err := s.queries.ListMaterialLedger(ctx, materialID)
	if err != nil {
		return nil, fmt.Errorf("failed to list material ledger: %w", err)
	}
	return entries, nil
}

// GetCustomer returns a customer and their purchases
func (s *LedgerService) GetCustomer(ctx context.Context, id uuid.UUID) (*ports.CustomerDetail, error) {
	c, err := s.queries.GetCustomer(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	if c == nil {
		return nil, domain.NewNotFoundError("customer", id)
	}
	purchases, err := s.queries.ListCustomerPurchases(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	return &ports.CustomerDetail{Customer: c, Purchases: purchases}, nil
}

func (s *LedgerService) requireSKU(ctx context.Context, id uuid.UUID) (*domain.SKU, error) {
	sku, err := s.queries.GetSKU(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get sku: %w", err)
	}
	if sku == nil {
		return nil, domain.NewNotFoundError("sku", id)
	}
	return sku, nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}

func totalPages(total int64, size int) int {
	if size <= 0 {
		return 0
	}
	pages := int(total) / size
	if int(total)%size > 0 {
		pages++
	}
	return pages
}
