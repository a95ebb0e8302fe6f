// internal/core/ports/store.go
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/beadledger/internal/core/domain"
)

// Store runs units of work. Every mutation of SKUs, material stock, usage records and
// ledgers happens inside one WithinTx call and is committed or discarded as a whole.
// Implementations must serialize conflicting transactions and may re-run fn when the
// storage layer aborts it for contention, so fn must not have side effects outside tx.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the transactional persistence port.
// Get*ForUpdate methods return a *domain.NotFoundError when the row is missing;
// Find* methods return nil, nil.
type Tx interface {
	// SKUs
	GetSKUForUpdate(ctx context.Context, id uuid.UUID) (*domain.SKU, error)
	FindSKUBySignature(ctx context.Context, hash string) (*domain.SKU, error)
	CountSKUsCreatedSince(ctx context.Context, since time.Time) (int, error)
	InsertSKU(ctx context.Context, sku *domain.SKU) error
	UpdateSKU(ctx context.Context, sku *domain.SKU) error

	// Raw material batches
	GetMaterialForUpdate(ctx context.Context, id uuid.UUID) (*domain.RawMaterialBatch, error)
	CountMaterialsCreatedSince(ctx context.Context, since time.Time) (int, error)
	InsertMaterial(ctx context.Context, m *domain.RawMaterialBatch) error
	UpdateMaterialRemaining(ctx context.Context, m *domain.RawMaterialBatch) error

	// Append-only records. Inserts assign Seq.
	InsertUsage(ctx context.Context, rec *domain.MaterialUsageRecord) error
	ListUsagesBySKU(ctx context.Context, skuID uuid.UUID) ([]domain.MaterialUsageRecord, error)
	InsertLedgerEntry(ctx context.Context, entry *domain.InventoryLedgerEntry) error
	InsertMaterialLedgerEntry(ctx context.Context, entry *domain.MaterialLedgerEntry) error

	// Customers
	FindCustomer(ctx context.Context, phone, name string) (*domain.Customer, error)
	InsertCustomer(ctx context.Context, c *domain.Customer) error
	UpdateCustomer(ctx context.Context, c *domain.Customer) error
	GetCustomerForUpdate(ctx context.Context, id uuid.UUID) (*domain.Customer, error)
	InsertPurchase(ctx context.Context, p *domain.CustomerPurchase) error
	GetPurchaseForUpdate(ctx context.Context, id uuid.UUID) (*domain.CustomerPurchase, error)
	UpdatePurchase(ctx context.Context, p *domain.CustomerPurchase) error
}

// Queries is the read side. Reads see committed state only.
type Queries interface {
	GetSKU(ctx context.Context, id uuid.UUID) (*domain.SKU, error)
	ListSKUs(ctx context.Context, params SKUListParams) ([]*domain.SKU, int64, error)
	ListLedgerEntries(ctx context.Context, skuID uuid.UUID) ([]domain.InventoryLedgerEntry, error)
	ListUsages(ctx context.Context, skuID uuid.UUID) ([]domain.MaterialUsageRecord, error)
	GetMaterial(ctx context.Context, id uuid.UUID) (*domain.RawMaterialBatch, error)
	GetMaterials(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.RawMaterialBatch, error)
	ListMaterials(ctx context.Context, params MaterialListParams) ([]*domain.RawMaterialBatch, int64, error)
	ListMaterialLedger(ctx context.Context, materialID uuid.UUID) ([]domain.MaterialLedgerEntry, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*domain.Customer, error)
	ListCustomerPurchases(ctx context.Context, customerID uuid.UUID) ([]domain.CustomerPurchase, error)
}
