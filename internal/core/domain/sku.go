// internal/core/domain/sku.go
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SKUStatus represents whether a SKU is offered for sale
type SKUStatus string

const (
	SKUStatusActive   SKUStatus = "ACTIVE"
	SKUStatusInactive SKUStatus = "INACTIVE"
)

// Valid reports whether s is a known status
func (s SKUStatus) Valid() bool {
	return s == SKUStatusActive || s == SKUStatusInactive
}

var hundred = decimal.NewFromInt(100)

// CostBreakdown is the per-unit cost of a SKU
type CostBreakdown struct {
	MaterialCost decimal.Decimal `json:"material_cost"`
	LaborCost    decimal.Decimal `json:"labor_cost"`
	CraftCost    decimal.Decimal `json:"craft_cost"`
	TotalCost    decimal.Decimal `json:"total_cost"`
}

// NewCostBreakdown builds a breakdown and its total
func NewCostBreakdown(material, labor, craft decimal.Decimal) CostBreakdown {
	return CostBreakdown{
		MaterialCost: material,
		LaborCost:    labor,
		CraftCost:    craft,
		TotalCost:    material.Add(labor).Add(craft),
	}
}

// BatchCost is the cost of producing quantity units: material + labor×quantity + craft×quantity.
func (c CostBreakdown) BatchCost(quantity int) decimal.Decimal {
	q := decimal.NewFromInt(int64(quantity))
	return c.MaterialCost.Mul(q).Add(c.LaborCost.Mul(q)).Add(c.CraftCost.Mul(q))
}

// ProfitMargin returns (price − cost)/price × 100, rounded to two places. A zero price has no margin.
func ProfitMargin(price, totalCost decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return decimal.Zero
	}
	return price.Sub(totalCost).Div(price).Mul(hundred).Round(2)
}

// SKU is a sellable product definition and the unit of sale
type SKU struct {
	ID                uuid.UUID       `json:"id"`
	Code              string          `json:"code"`
	Name              string          `json:"name"`
	SignatureHash     string          `json:"signature_hash"`
	TotalQuantity     int             `json:"total_quantity"`
	AvailableQuantity int             `json:"available_quantity"`
	Cost              CostBreakdown   `json:"cost"`
	SellingPrice      decimal.Decimal `json:"selling_price"`
	ProfitMargin      decimal.Decimal `json:"profit_margin"`
	TotalValue        decimal.Decimal `json:"total_value"`
	Status            SKUStatus       `json:"status"`
	CreatedBy         string          `json:"created_by,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Recompute refreshes the derived money fields
func (s *SKU) Recompute() {
	s.TotalValue = s.SellingPrice.Mul(decimal.NewFromInt(int64(s.AvailableQuantity)))
	s.ProfitMargin = ProfitMargin(s.SellingPrice, s.Cost.TotalCost)
}

// QuantityChange describes one mutation of a SKU's stock
type QuantityChange struct {
	Action LedgerAction
	Delta  int
	// Produced marks new production; total_quantity grows along with available_quantity.
	Produced      bool
	ReferenceType string
	ReferenceID   string
	Note          string
	Actor         Actor
}

// Apply mutates the SKU and returns the matching ledger entry. Nothing is changed on error.
func (s *SKU) Apply(c QuantityChange, now time.Time) (InventoryLedgerEntry, error) {
	before := s.AvailableQuantity
	after := before + c.Delta
	if after < 0 {
		return InventoryLedgerEntry{}, &InsufficientStockError{SKUCode: s.Code, Available: before, Requested: -c.Delta}
	}

	total := s.TotalQuantity
	if c.Produced {
		if c.Delta < 0 {
			return InventoryLedgerEntry{}, NewValidationError("quantity", "production cannot be negative")
		}
		total += c.Delta
	}
	if after > total {
		return InventoryLedgerEntry{}, NewValidationError("available_quantity",
			fmt.Sprintf("%d exceeds total produced %d for %s", after, total, s.Code))
	}

	switch {
	case c.Delta < 0 && after == 0 && c.Action.DepletesStatus():
		s.Status = SKUStatusInactive
	case c.Delta > 0 && before == 0 && s.Status == SKUStatusInactive && (c.Produced || c.Action == LedgerActionReturn):
		s.Status = SKUStatusActive
	}

	s.TotalQuantity = total
	s.AvailableQuantity = after
	s.UpdatedAt = now
	s.Recompute()

	return InventoryLedgerEntry{
		ID:             uuid.New(),
		SKUID:          s.ID,
		Action:         c.Action,
		QuantityChange: c.Delta,
		QuantityBefore: before,
		QuantityAfter:  after,
		ReferenceType:  c.ReferenceType,
		ReferenceID:    c.ReferenceID,
		Note:           c.Note,
		ActorID:        c.Actor.ID,
		ActorRole:      c.Actor.Role,
		CreatedAt:      now,
	}, nil
}
