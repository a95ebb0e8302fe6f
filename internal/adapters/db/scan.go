// internal/adapters/db/scan.go
package db

import (
	"github.com/google/uuid"

	"github.com/ammerola/beadledger/internal/core/domain"
)

const skuColumns = `id, sku_code, name, signature_hash, total_quantity, available_quantity,
	material_cost, labor_cost, craft_cost, total_cost, selling_price, profit_margin,
	total_value, status, created_by, created_at, updated_at`

func scanSKU(row rowScanner) (*domain.SKU, error) {
	var s domain.SKU
	err := row.Scan(
		&s.ID, &s.Code, &s.Name, &s.SignatureHash, &s.TotalQuantity, &s.AvailableQuantity,
		&s.Cost.MaterialCost, &s.Cost.LaborCost, &s.Cost.CraftCost, &s.Cost.TotalCost,
		&s.SellingPrice, &s.ProfitMargin, &s.TotalValue, &s.Status,
		&s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

const materialColumns = `id, code, name, material_type, quality, bead_diameter, specification,
	total_quantity, remaining_quantity, unit_cost, supplier, created_by, created_at, updated_at`

func scanMaterial(row rowScanner) (*domain.RawMaterialBatch, error) {
	var (
		m       domain.RawMaterialBatch
		quality *string
	)
	err := row.Scan(
		&m.ID, &m.Code, &m.Name, &m.Type, &quality, &m.BeadDiameter, &m.Specification,
		&m.TotalQuantity, &m.RemainingQuantity, &m.UnitCost, &m.Supplier,
		&m.CreatedBy, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if quality != nil {
		g := domain.QualityGrade(*quality)
		m.Quality = &g
	}
	return &m, nil
}

func qualityArg(q *domain.QualityGrade) *string {
	if q == nil {
		return nil
	}
	s := string(*q)
	return &s
}

const usageColumns = `id, seq, sku_id, material_id, action, production_id, beads_used, pieces_used,
	quantity_used, units_produced, created_by, created_at`

func scanUsage(row rowScanner) (*domain.MaterialUsageRecord, error) {
	var (
		u          domain.MaterialUsageRecord
		production uuid.NullUUID
	)
	err := row.Scan(
		&u.ID, &u.Seq, &u.SKUID, &u.MaterialID, &u.Action, &production, &u.BeadsUsed, &u.PiecesUsed,
		&u.QuantityUsed, &u.UnitsProduced, &u.CreatedBy, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if production.Valid {
		u.ProductionID = production.UUID
	}
	return &u, nil
}

// nullUUID stores the zero UUID as NULL
func nullUUID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}

const ledgerColumns = `id, seq, sku_id, action, quantity_change, quantity_before, quantity_after,
	reference_type, reference_id, note, actor_id, actor_role, created_at`

func scanLedgerEntry(row rowScanner) (*domain.InventoryLedgerEntry, error) {
	var e domain.InventoryLedgerEntry
	err := row.Scan(
		&e.ID, &e.Seq, &e.SKUID, &e.Action, &e.QuantityChange, &e.QuantityBefore, &e.QuantityAfter,
		&e.ReferenceType, &e.ReferenceID, &e.Note, &e.ActorID, &e.ActorRole, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

const materialLedgerColumns = `id, seq, material_id, sku_id, action, quantity_change,
	quantity_before, quantity_after, note, actor_id, created_at`

func scanMaterialLedgerEntry(row rowScanner) (*domain.MaterialLedgerEntry, error) {
	var e domain.MaterialLedgerEntry
	err := row.Scan(
		&e.ID, &e.Seq, &e.MaterialID, &e.SKUID, &e.Action, &e.QuantityChange,
		&e.QuantityBefore, &e.QuantityAfter, &e.Note, &e.ActorID, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

const customerColumns = `id, name, phone, total_purchases, total_orders, refunded_orders,
	first_purchase_date, last_purchase_date, created_at, updated_at`

func scanCustomer(row rowScanner) (*domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(
		&c.ID, &c.Name, &c.Phone, &c.TotalPurchases, &c.TotalOrders, &c.RefundedOrders,
		&c.FirstPurchaseDate, &c.LastPurchaseDate, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const purchaseColumns = `id, customer_id, sku_id, sku_code, sku_name, quantity, unit_price,
	total_price, sale_channel, status, refund_reason, purchase_date, refunded_at, created_by`

func scanPurchase(row rowScanner) (*domain.CustomerPurchase, error) {
	var p domain.CustomerPurchase
	err := row.Scan(
		&p.ID, &p.CustomerID, &p.SKUID, &p.SKUCode, &p.SKUName, &p.Quantity, &p.UnitPrice,
		&p.TotalPrice, &p.SaleChannel, &p.Status, &p.RefundReason, &p.PurchaseDate,
		&p.RefundedAt, &p.CreatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
