// internal/adapters/db/queries.go
package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/ammerola/beadledger/internal/core/domain"
	"github.com/ammerola/beadledger/internal/core/ports"
)

// Queries implements ports.Queries against the connection pool
type Queries struct {
	db     *Database
	logger *slog.Logger
}

var _ ports.Queries = (*Queries)(nil)

// NewQueries creates the read-side repository
func NewQueries(db *Database, logger *slog.Logger) *Queries {
	return &Queries{
		db:     db,
		logger: logger.With(slog.String("repository", "ledger_queries")),
	}
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var skuSortColumns = map[string]string{
	"created_at":         "created_at",
	"name":               "name",
	"code":               "sku_code",
	"available_quantity": "available_quantity",
	"selling_price":      "selling_price",
}

// GetSKU returns nil, nil when the SKU does not exist
func (q *Queries) GetSKU(ctx context.Context, id uuid.UUID) (*domain.SKU, error) {
	return scanOne(q.db.QueryRow(ctx, `SELECT `+skuColumns+` FROM skus WHERE id = $1`, id), scanSKU)
}

// ListSKUs retrieves SKUs with filtering, sorting and pagination
func (q *Queries) ListSKUs(ctx context.Context, params ports.SKUListParams) ([]*domain.SKU, int64, error) {
	where := squirrel.And{}
	if params.Status != "" {
		where = append(where, squirrel.Eq{"status": params.Status})
	}
	if params.MinAvailable != nil {
		where = append(where, squirrel.GtOrEq{"available_quantity": *params.MinAvailable})
	}
	if s := strings.TrimSpace(params.Search); s != "" {
		pattern := "%" + s + "%"
		where = append(where, squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"sku_code": pattern},
		})
	}

	total, err := q.count(ctx, "skus", where)
	if err != nil {
		return nil, 0, err
	}

	column, ok := skuSortColumns[params.SortBy]
	if !ok {
		column = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(params.SortOrder, "asc") {
		order = "ASC"
	}

	qb := psql.Select(skuColumns).From("skus").Where(where).
		OrderBy(fmt.Sprintf("%s %s", column, order), "sku_code "+order)
	qb = paginate(qb, params.Page, params.PageSize)

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list skus: %w", err)
	}
	items, err := scanMany(rows, scanSKU)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan skus: %w", err)
	}
	return pointers(items), total, nil
}

// ListLedgerEntries returns a SKU's entries in sequence order
func (q *Queries) ListLedgerEntries(ctx context.Context, skuID uuid.UUID) ([]domain.InventoryLedgerEntry, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+ledgerColumns+` FROM inventory_ledger WHERE sku_id = $1 ORDER BY seq`, skuID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger: %w", err)
	}
	return scanMany(rows, scanLedgerEntry)
}

// ListUsages returns a SKU's usage records in sequence order
func (q *Queries) ListUsages(ctx context.Context, skuID uuid.UUID) ([]domain.MaterialUsageRecord, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+usageColumns+` FROM material_usage_records WHERE sku_id = $1 ORDER BY seq`, skuID)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage records: %w", err)
	}
	return scanMany(rows, scanUsage)
}

// GetMaterial returns nil, nil when the batch does not exist
func (q *Queries) GetMaterial(ctx context.Context, id uuid.UUID) (*domain.RawMaterialBatch, error) {
	return scanOne(q.db.QueryRow(ctx,
		`SELECT `+materialColumns+` FROM raw_material_batches WHERE id = $1`, id), scanMaterial)
}

// GetMaterials returns the batches that exist among ids
func (q *Queries) GetMaterials(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.RawMaterialBatch, error) {
	out := make(map[uuid.UUID]*domain.RawMaterialBatch, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := q.db.Query(ctx,
		`SELECT `+materialColumns+` FROM raw_material_batches WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get materials: %w", err)
	}
	items, err := scanMany(rows, scanMaterial)
	if err != nil {
		return nil, fmt.Errorf("failed to scan materials: %w", err)
	}
	for i := range items {
		out[items[i].ID] = &items[i]
	}
	return out, nil
}

// ListMaterials filters and pages batches, newest first
func (q *Queries) ListMaterials(ctx context.Context, params ports.MaterialListParams) ([]*domain.RawMaterialBatch, int64, error) {
	where := squirrel.And{}
	if params.Type != "" {
		where = append(where, squirrel.Eq{"material_type": params.Type})
	}
	if params.InStockOnly {
		where = append(where, squirrel.Gt{"remaining_quantity": 0})
	}
	if s := strings.TrimSpace(params.Search); s != "" {
		pattern := "%" + s + "%"
		where = append(where, squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"code": pattern},
		})
	}

	total, err := q.count(ctx, "raw_material_batches", where)
	if err != nil {
		return nil, 0, err
	}

	qb := psql.Select(materialColumns).From("raw_material_batches").Where(where).
		OrderBy("created_at DESC", "code DESC")
	qb = paginate(qb, params.Page, params.PageSize)

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build query: %w", err)
	}
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list materials: %w", err)
	}
	items, err := scanMany(rows, scanMaterial)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan materials: %w", err)
	}
	return pointers(items), total, nil
}

// ListMaterialLedger returns a batch's stock movements in sequence order
func (q *Queries) ListMaterialLedger(ctx context.Context, materialID uuid.UUID) ([]domain.MaterialLedgerEntry, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+materialLedgerColumns+` FROM material_ledger WHERE material_id = $1 ORDER BY seq`, materialID)
	if err != nil {
		return nil, fmt.Errorf("failed to list material ledger: %w", err)
	}
	return scanMany(rows, scanMaterialLedgerEntry)
}

// GetCustomer returns nil, nil when the customer does not exist
func (q *Queries) GetCustomer(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	return scanOne(q.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id), scanCustomer)
}

// ListCustomerPurchases returns a customer's purchases, newest first
func (q *Queries) ListCustomerPurchases(ctx context.Context, customerID uuid.UUID) ([]domain.CustomerPurchase, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+purchaseColumns+` FROM customer_purchases WHERE customer_id = $1 ORDER BY purchase_date DESC, id`,
		customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	return scanMany(rows, scanPurchase)
}

func (q *Queries) count(ctx context.Context, table string, where squirrel.And) (int64, error) {
	query, args, err := psql.Select("COUNT(*)").From(table).Where(where).ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var total int64
	if err := q.db.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return total, nil
}

func paginate(qb squirrel.SelectBuilder, page, size int) squirrel.SelectBuilder {
	if size <= 0 {
		return qb
	}
	if page < 1 {
		page = 1
	}
	return qb.Limit(uint64(size)).Offset(uint64((page - 1) * size))
}

func pointers[T any](items []T) []*T {
	out := make([]*T, len(items))
	for i := range items {
		out[i] = &items[i]
	}
	return out
}
