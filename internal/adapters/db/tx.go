// internal/adapters/db/tx.go
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ammerola/beadledger/internal/core/domain"
	"github.com/ammerola/beadledger/internal/core/ports"
)

// pgTx implements ports.Tx on a live pgx transaction
type pgTx struct {
	tx pgx.Tx
}

var _ ports.Tx = (*pgTx)(nil)

// notFound maps a missing locked row to *domain.NotFoundError
func notFound[T any](entity string, id uuid.UUID, v *T, err error) (*T, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewNotFoundError(entity, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s %s: %w", entity, id, err)
	}
	return v, nil
}

func (t *pgTx) GetSKUForUpdate(ctx context.Context, id uuid.UUID) (*domain.SKU, error) {
	sku, err := scanSKU(t.tx.QueryRow(ctx,
		`SELECT `+skuColumns+` FROM skus WHERE id = $1 FOR UPDATE`, id))
	return notFound("sku", id, sku, err)
}

func (t *pgTx) FindSKUBySignature(ctx context.Context, hash string) (*domain.SKU, error) {
	sku, err := scanOne(t.tx.QueryRow(ctx,
		`SELECT `+skuColumns+` FROM skus WHERE signature_hash = $1 FOR UPDATE`, hash), scanSKU)
	if err != nil {
		return nil, fmt.Errorf("failed to find sku by signature: %w", err)
	}
	return sku, nil
}

func (t *pgTx) CountSKUsCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM skus WHERE created_at >= $1`, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count skus: %w", err)
	}
	return n, nil
}

func (t *pgTx) InsertSKU(ctx context.Context, s *domain.SKU) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO skus (`+skuColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		s.ID, s.Code, s.Name, s.SignatureHash, s.TotalQuantity, s.AvailableQuantity,
		s.Cost.MaterialCost, s.Cost.LaborCost, s.Cost.CraftCost, s.Cost.TotalCost,
		s.SellingPrice, s.ProfitMargin, s.TotalValue, s.Status,
		s.CreatedBy, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sku %s: %w", s.Code, err)
	}
	return nil
}

// UpdateSKU writes the mutable columns. Identity, signature and cost are fixed at creation.
func (t *pgTx) UpdateSKU(ctx context.Context, s *domain.SKU) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE skus SET
			total_quantity = $2, available_quantity = $3, selling_price = $4,
			profit_margin = $5, total_value = $6, status = $7, updated_at = $8
		WHERE id = $1`,
		s.ID, s.TotalQuantity, s.AvailableQuantity, s.SellingPrice,
		s.ProfitMargin, s.TotalValue, s.Status, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update sku %s: %w", s.Code, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("sku", s.ID)
	}
	return nil
}

func (t *pgTx) GetMaterialForUpdate(ctx context.Context, id uuid.UUID) (*domain.RawMaterialBatch, error) {
	m, err := scanMaterial(t.tx.QueryRow(ctx,
		`SELECT `+materialColumns+` FROM raw_material_batches WHERE id = $1 FOR UPDATE`, id))
	return notFound("material", id, m, err)
}

func (t *pgTx) CountMaterialsCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := t.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM raw_material_batches WHERE created_at >= $1`, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count materials: %w", err)
	}
	return n, nil
}

func (t *pgTx) InsertMaterial(ctx context.Context, m *domain.RawMaterialBatch) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO raw_material_batches (`+materialColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		m.ID, m.Code, m.Name, m.Type, qualityArg(m.Quality), m.BeadDiameter, m.Specification,
		m.TotalQuantity, m.RemainingQuantity, m.UnitCost, m.Supplier,
		m.CreatedBy, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert material %s: %w", m.Code, err)
	}
	return nil
}

func (t *pgTx) UpdateMaterialRemaining(ctx context.Context, m *domain.RawMaterialBatch) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE raw_material_batches SET remaining_quantity = $2, updated_at = $3 WHERE id = $1`,
		m.ID, m.RemainingQuantity, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update material %s: %w", m.Code, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("material", m.ID)
	}
	return nil
}

func (t *pgTx) InsertUsage(ctx context.Context, u *domain.MaterialUsageRecord) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO material_usage_records (
			id, sku_id, material_id, action, production_id, beads_used, pieces_used,
			quantity_used, units_produced, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING seq`,
		u.ID, u.SKUID, u.MaterialID, u.Action, nullUUID(u.ProductionID), u.BeadsUsed, u.PiecesUsed,
		u.QuantityUsed, u.UnitsProduced, u.CreatedBy, u.CreatedAt,
	).Scan(&u.Seq)
	if err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

func (t *pgTx) ListUsagesBySKU(ctx context.Context, skuID uuid.UUID) ([]domain.MaterialUsageRecord, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+usageColumns+` FROM material_usage_records WHERE sku_id = $1 ORDER BY seq`, skuID)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}
	return scanMany(rows, scanUsage)
}

func (t *pgTx) InsertLedgerEntry(ctx context.Context, e *domain.InventoryLedgerEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO inventory_ledger (
			id, sku_id, action, quantity_change, quantity_before, quantity_after,
			reference_type, reference_id, note, actor_id, actor_role, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING seq`,
		e.ID, e.SKUID, e.Action, e.QuantityChange, e.QuantityBefore, e.QuantityAfter,
		e.ReferenceType, e.ReferenceID, e.Note, e.ActorID, e.ActorRole, e.CreatedAt,
	).Scan(&e.Seq)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

func (t *pgTx) InsertMaterialLedgerEntry(ctx context.Context, e *domain.MaterialLedgerEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO material_ledger (
			id, material_id, sku_id, action, quantity_change,
			quantity_before, quantity_after, note, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING seq`,
		e.ID, e.MaterialID, e.SKUID, e.Action, e.QuantityChange,
		e.QuantityBefore, e.QuantityAfter, e.Note, e.ActorID, e.CreatedAt,
	).Scan(&e.Seq)
	if err != nil {
		return fmt.Errorf("failed to insert material ledger entry: %w", err)
	}
	return nil
}

// FindCustomer matches on phone first and falls back to name
func (t *pgTx) FindCustomer(ctx context.Context, phone, name string) (*domain.Customer, error) {
	if phone != "" {
		c, err := scanOne(t.tx.QueryRow(ctx,
			`SELECT `+customerColumns+` FROM customers WHERE phone = $1 ORDER BY created_at LIMIT 1 FOR UPDATE`,
			phone), scanCustomer)
		if err != nil || c != nil {
			return c, err
		}
	}
	if name == "" {
		return nil, nil
	}
	return scanOne(t.tx.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE name = $1 ORDER BY created_at LIMIT 1 FOR UPDATE`,
		name), scanCustomer)
}

func (t *pgTx) InsertCustomer(ctx context.Context, c *domain.Customer) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID, c.Name, c.Phone, c.TotalPurchases, c.TotalOrders, c.RefundedOrders,
		c.FirstPurchaseDate, c.LastPurchaseDate, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert customer: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateCustomer(ctx context.Context, c *domain.Customer) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE customers SET
			name = $2, phone = $3, total_purchases = $4, total_orders = $5, refunded_orders = $6,
			first_purchase_date = $7, last_purchase_date = $8, updated_at = $9
		WHERE id = $1`,
		c.ID, c.Name, c.Phone, c.TotalPurchases, c.TotalOrders, c.RefundedOrders,
		c.FirstPurchaseDate, c.LastPurchaseDate, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("customer", c.ID)
	}
	return nil
}

func (t *pgTx) GetCustomerForUpdate(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	c, err := scanCustomer(t.tx.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1 FOR UPDATE`, id))
	return notFound("customer", id, c, err)
}

func (t *pgTx) InsertPurchase(ctx context.Context, p *domain.CustomerPurchase) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO customer_purchases (`+purchaseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		p.ID, p.CustomerID, p.SKUID, p.SKUCode, p.SKUName, p.Quantity, p.UnitPrice,
		p.TotalPrice, p.SaleChannel, p.Status, p.RefundReason, p.PurchaseDate,
		p.RefundedAt, p.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to insert purchase: %w", err)
	}
	return nil
}

func (t *pgTx) GetPurchaseForUpdate(ctx context.Context, id uuid.UUID) (*domain.CustomerPurchase, error) {
	p, err := scanPurchase(t.tx.QueryRow(ctx,
		`SELECT `+purchaseColumns+` FROM customer_purchases WHERE id = $1 FOR UPDATE`, id))
	return notFound("purchase", id, p, err)
}

func (t *pgTx) UpdatePurchase(ctx context.Context, p *domain.CustomerPurchase) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE customer_purchases SET status = $2, refund_reason = $3, refunded_at = $4 WHERE id = $1`,
		p.ID, p.Status, p.RefundReason, p.RefundedAt)
	if err != nil {
		return fmt.Errorf("failed to update purchase: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("purchase", p.ID)
	}
	return nil
}
