// internal/core/ports/ledger_service.go
package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ammerola/beadledger/internal/core/domain"
)

// LedgerService is the application service port for SKU reconciliation and stock ledgers.
type LedgerService interface {
	CreateMaterialBatch(ctx context.Context, req CreateMaterialRequest) (*domain.RawMaterialBatch, error)

	// Production
	FindOrCreateSKU(ctx context.Context, req ProductionRequest) (*ProductionResult, error)
	DirectTransform(ctx context.Context, req DirectTransformRequest) (*ProductionResult, error)
	CombinationCraft(ctx context.Context, req ProductionRequest) (*ProductionResult, error)

	// Quantity operations
	Sell(ctx context.Context, skuID uuid.UUID, req SellRequest) (*SellResult, error)
	Destroy(ctx context.Context, skuID uuid.UUID, req DestroyRequest) (*DestroyResult, error)
	Adjust(ctx context.Context, skuID uuid.UUID, req AdjustRequest) (*OperationResult, error)
	Restock(ctx context.Context, skuID uuid.UUID, req RestockRequest) (*RestockResult, error)
	Control(ctx context.Context, skuID uuid.UUID, req ControlRequest) (*OperationResult, error)
	Refund(ctx context.Context, purchaseID uuid.UUID, req RefundRequest) (*RefundResult, error)

	// Reads
	GetSKU(ctx context.Context, id uuid.UUID) (*domain.SKU, error)
	ListSKUs(ctx context.Context, params SKUListParams) (*SKUListResult, error)
	GetLedger(ctx context.Context, skuID uuid.UUID) ([]domain.InventoryLedgerEntry, error)
	GetRecipe(ctx context.Context, skuID uuid.UUID) (*Recipe, error)
	VerifyLedger(ctx context.Context, skuID uuid.UUID) (*domain.LedgerReport, error)
	GetMaterial(ctx context.Context, id uuid.UUID) (*domain.RawMaterialBatch, error)
	ListMaterials(ctx context.Context, params MaterialListParams) (*MaterialListResult, error)
	GetMaterialLedger(ctx context.Context, materialID uuid.UUID) ([]domain.MaterialLedgerEntry, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (*CustomerDetail, error)
}

// CreateMaterialRequest registers a purchased batch
type CreateMaterialRequest struct {
	Name          string               `json:"name" validate:"required,max=200"`
	Type          domain.MaterialType  `json:"type" validate:"required,oneof=LOOSE_BEADS BRACELET ACCESSORIES FINISHED_MATERIAL"`
	Quality       *domain.QualityGrade `json:"quality,omitempty" validate:"omitempty,oneof=AA A AB B C"`
	BeadDiameter  *decimal.Decimal     `json:"bead_diameter,omitempty" validate:"omitempty,gt=0"`
	Specification *decimal.Decimal     `json:"specification,omitempty" validate:"omitempty,gt=0"`
	Quantity      int                  `json:"quantity" validate:"required,gt=0"`
	UnitCost      decimal.Decimal      `json:"unit_cost" validate:"gte=0"`
	Supplier      string               `json:"supplier,omitempty" validate:"max=200"`
	Actor         domain.Actor         `json:"-"`
}

// MaterialUsageRequest is the per-unit consumption of one batch
type MaterialUsageRequest struct {
	PurchaseID         uuid.UUID `json:"purchase_id" validate:"required"`
	QuantityUsedBeads  int       `json:"quantity_used_beads" validate:"gte=0"`
	QuantityUsedPieces int       `json:"quantity_used_pieces" validate:"gte=0"`
}

// ProductionRequest is a combination craft, and the resolver's input
type ProductionRequest struct {
	Materials    []MaterialUsageRequest `json:"materials" validate:"required,min=1,dive"`
	ProductName  string                 `json:"product_name" validate:"required,max=200"`
	SellingPrice decimal.Decimal        `json:"selling_price" validate:"gte=0"`
	LaborCost    decimal.Decimal        `json:"labor_cost" validate:"gte=0"`
	CraftCost    decimal.Decimal        `json:"craft_cost" validate:"gte=0"`
	// Quantity is the number of units produced; zero means one.
	Quantity int          `json:"quantity" validate:"gte=0"`
	Actor    domain.Actor `json:"-"`
}

// DirectTransformRequest turns a finished-material batch into a SKU one piece per unit
type DirectTransformRequest struct {
	PurchaseID   uuid.UUID       `json:"purchase_id" validate:"required"`
	Quantity     int             `json:"quantity" validate:"gte=0"`
	ProductName  string          `json:"product_name,omitempty" validate:"max=200"`
	SellingPrice decimal.Decimal `json:"selling_price" validate:"gte=0"`
	LaborCost    decimal.Decimal `json:"labor_cost" validate:"gte=0"`
	CraftCost    decimal.Decimal `json:"craft_cost" validate:"gte=0"`
	Actor        domain.Actor    `json:"-"`
}

// SellRequest sells units of a SKU to a customer
type SellRequest struct {
	Quantity         int              `json:"quantity" validate:"required,gt=0"`
	CustomerName     string           `json:"customer_name" validate:"required_without=CustomerPhone,max=100"`
	CustomerPhone    string           `json:"customer_phone" validate:"max=30"`
	SaleChannel      string           `json:"sale_channel" validate:"max=50"`
	ActualTotalPrice *decimal.Decimal `json:"actual_total_price,omitempty" validate:"omitempty,gte=0"`
	Actor            domain.Actor     `json:"-"`
}

// DestroyRequest writes off units, optionally giving material back to stock
type DestroyRequest struct {
	Quantity               int               `json:"quantity" validate:"required,gt=0"`
	Reason                 string            `json:"reason" validate:"required,max=500"`
	ReturnToMaterial       bool              `json:"return_to_material"`
	SelectedMaterials      []uuid.UUID       `json:"selected_materials,omitempty"`
	CustomReturnQuantities map[uuid.UUID]int `json:"custom_return_quantities,omitempty" validate:"omitempty,dive,gte=0"`
	Actor                  domain.Actor      `json:"-"`
}

// AdjustRequest sets available quantity to an absolute value
type AdjustRequest struct {
	NewAvailableQuantity *int         `json:"new_available_quantity" validate:"required,gte=0"`
	Reason               string       `json:"reason" validate:"required,max=500"`
	Actor                domain.Actor `json:"-"`
}

// RestockRequest re-runs the SKU's recipe quantity times
type RestockRequest struct {
	Quantity int          `json:"quantity" validate:"required,gt=0"`
	Note     string       `json:"note,omitempty" validate:"max=500"`
	Actor    domain.Actor `json:"-"`
}

// ControlRequest changes price and/or status
type ControlRequest struct {
	SellingPrice *decimal.Decimal  `json:"selling_price,omitempty" validate:"omitempty,gte=0"`
	Status       *domain.SKUStatus `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	PriceReason  string            `json:"price_reason,omitempty" validate:"max=500"`
	StatusReason string            `json:"status_reason,omitempty" validate:"max=500"`
	Actor        domain.Actor      `json:"-"`
}

// RefundRequest returns a completed purchase
type RefundRequest struct {
	Reason string       `json:"reason" validate:"required,max=500"`
	Actor  domain.Actor `json:"-"`
}

// MaterialMovement reports a change to one batch during an operation
type MaterialMovement struct {
	MaterialID     uuid.UUID `json:"material_id"`
	MaterialCode   string    `json:"material_code"`
	MaterialName   string    `json:"material_name"`
	Quantity       int       `json:"quantity"`
	RemainingAfter int       `json:"remaining_after"`
}

// ProductionResult is returned by the resolver
type ProductionResult struct {
	SKU          *domain.SKU                 `json:"sku"`
	IsNew        bool                        `json:"is_new"`
	Signature    string                      `json:"signature"`
	PriceFlagged bool                        `json:"price_flagged"`
	Consumed     []MaterialMovement          `json:"consumed"`
	Ledger       domain.InventoryLedgerEntry `json:"ledger"`
}

// SellResult is returned by Sell
type SellResult struct {
	SKU      *domain.SKU                 `json:"sku"`
	Customer *domain.Customer            `json:"customer"`
	Purchase *domain.CustomerPurchase    `json:"purchase"`
	Ledger   domain.InventoryLedgerEntry `json:"ledger"`
}

// DestroyResult is returned by Destroy
type DestroyResult struct {
	SKU      *domain.SKU                 `json:"sku"`
	Returned []MaterialMovement          `json:"returned"`
	Ledger   domain.InventoryLedgerEntry `json:"ledger"`
}

// RestockResult is returned by Restock
type RestockResult struct {
	SKU       *domain.SKU                 `json:"sku"`
	Consumed  []MaterialMovement          `json:"consumed"`
	TotalCost decimal.Decimal             `json:"total_cost"`
	Ledger    domain.InventoryLedgerEntry `json:"ledger"`
}

// OperationResult is returned by Adjust and Control
type OperationResult struct {
	SKU    *domain.SKU                 `json:"sku"`
	Ledger domain.InventoryLedgerEntry `json:"ledger"`
}

// RefundResult is returned by Refund
type RefundResult struct {
	SKU      *domain.SKU                 `json:"sku"`
	Customer *domain.Customer            `json:"customer"`
	Purchase *domain.CustomerPurchase    `json:"purchase"`
	Ledger   domain.InventoryLedgerEntry `json:"ledger"`
}

// RecipeLine is a recipe item with its material's identity
type RecipeLine struct {
	domain.RecipeItem
	MaterialCode string `json:"material_code"`
	MaterialName string `json:"material_name"`
}

// Recipe is a SKU's per-unit material consumption
type Recipe struct {
	SKUID     uuid.UUID    `json:"sku_id"`
	Lines     []RecipeLine `json:"lines"`
	Signature string       `json:"signature"`
	// Matches is false when the recipe no longer hashes to the SKU's stored signature.
	Matches bool `json:"matches"`
}

// SKUListParams holds parameters for listing SKUs
type SKUListParams struct {
	Search       string
	Status       string
	MinAvailable *int
	SortBy       string
	SortOrder    string
	Page         int
	PageSize     int
}

// SKUListResult holds one page of SKUs
type SKUListResult struct {
	Items      []*domain.SKU `json:"items"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalCount int64         `json:"total_count"`
	TotalPages int           `json:"total_pages"`
}

// MaterialListParams holds parameters for listing material batches
type MaterialListParams struct {
	Search      string
	Type        string
	InStockOnly bool
	Page        int
	PageSize    int
}

// MaterialListResult holds one page of material batches
type MaterialListResult struct {
	Items      []*domain.RawMaterialBatch `json:"items"`
	Page       int                        `json:"page"`
	PageSize   int                        `json:"page_size"`
	TotalCount int64                      `json:"total_count"`
	TotalPages int                        `json:"total_pages"`
}

// CustomerDetail is a customer with their purchase history
type CustomerDetail struct {
	Customer  *domain.Customer          `json:"customer"`
	Purchases []domain.CustomerPurchase `json:"purchases"`
}
