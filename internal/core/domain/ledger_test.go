// internal/core/domain/ledger_test.go
package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)

func newSKU(total, available int, status SKUStatus) *SKU {
	return &SKU{
		ID:                uuid.New(),
		Code:              "SKU20250315001",
		Name:              "Amethyst Bracelet",
		TotalQuantity:     total,
		AvailableQuantity: available,
		SellingPrice:      decimal.NewFromInt(50),
		Cost:              NewCostBreakdown(decimal.NewFromInt(20), decimal.NewFromInt(5), decimal.Zero),
		Status:            status,
	}
}

func TestSKU_Apply(t *testing.T) {
	tests := []struct {
		name          string
		sku           *SKU
		change        QuantityChange
		wantErr       error
		wantAvailable int
		wantTotal     int
		wantStatus    SKUStatus
	}{
		{
			name:          "production_grows_both_counts",
			sku:           newSKU(5, 3, SKUStatusActive),
			change:        QuantityChange{Action: LedgerActionCreate, Delta: 2, Produced: true},
			wantAvailable: 5, wantTotal: 7, wantStatus: SKUStatusActive,
		},
		{
			name:          "sell_to_zero_deactivates",
			sku:           newSKU(5, 2, SKUStatusActive),
			change:        QuantityChange{Action: LedgerActionSell, Delta: -2},
			wantAvailable: 0, wantTotal: 5, wantStatus: SKUStatusInactive,
		},
		{
			name:          "destroy_to_zero_deactivates",
			sku:           newSKU(5, 1, SKUStatusActive),
			change:        QuantityChange{Action: LedgerActionDestroy, Delta: -1},
			wantAvailable: 0, wantTotal: 5, wantStatus: SKUStatusInactive,
		},
		{
			name:          "adjust_to_zero_keeps_status",
			sku:           newSKU(5, 2, SKUStatusActive),
			change:        QuantityChange{Action: LedgerActionAdjust, Delta: -2},
			wantAvailable: 0, wantTotal: 5, wantStatus: SKUStatusActive,
		},
		{
			name:          "production_from_zero_reactivates",
			sku:           newSKU(5, 0, SKUStatusInactive),
			change:        QuantityChange{Action: LedgerActionCreate, Delta: 1, Produced: true},
			wantAvailable: 1, wantTotal: 6, wantStatus: SKUStatusActive,
		},
		{
			name:          "return_from_zero_reactivates",
			sku:           newSKU(5, 0, SKUStatusInactive),
			change:        QuantityChange{Action: LedgerActionReturn, Delta: 1},
			wantAvailable: 1, wantTotal: 5, wantStatus: SKUStatusActive,
		},
		{
			name:          "adjust_up_from_zero_keeps_inactive",
			sku:           newSKU(5, 0, SKUStatusInactive),
			change:        QuantityChange{Action: LedgerActionAdjust, Delta: 2},
			wantAvailable: 2, wantTotal: 5, wantStatus: SKUStatusInactive,
		},
		{
			name:    "oversell_rejected",
			sku:     newSKU(5, 2, SKUStatusActive),
			change:  QuantityChange{Action: LedgerActionSell, Delta: -3},
			wantErr: ErrInsufficientStock,
		},
		{
			name:    "available_cannot_exceed_total",
			sku:     newSKU(5, 4, SKUStatusActive),
			change:  QuantityChange{Action: LedgerActionAdjust, Delta: 2},
			wantErr: ErrValidation,
		},
		{
			name:    "negative_production_rejected",
			sku:     newSKU(5, 4, SKUStatusActive),
			change:  QuantityChange{Action: LedgerActionCreate, Delta: -1, Produced: true},
			wantErr: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := *tt.sku
			entry, err := tt.sku.Apply(tt.change, now)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, before, *tt.sku, "a rejected change leaves the SKU untouched")
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantAvailable, tt.sku.AvailableQuantity)
			assert.Equal(t, tt.wantTotal, tt.sku.TotalQuantity)
			assert.Equal(t, tt.wantStatus, tt.sku.Status)

			assert.Equal(t, before.AvailableQuantity, entry.QuantityBefore)
			assert.Equal(t, tt.wantAvailable, entry.QuantityAfter)
			assert.Equal(t, tt.change.Delta, entry.QuantityChange)
			assert.Equal(t, tt.sku.ID, entry.SKUID)
			assert.True(t, tt.sku.TotalValue.Equal(decimal.NewFromInt(int64(50*tt.wantAvailable))))
		})
	}
}

func TestInsufficientStockError_Details(t *testing.T) {
	_, err := newSKU(5, 2, SKUStatusActive).Apply(QuantityChange{Action: LedgerActionSell, Delta: -4}, now)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 4, stockErr.Requested)
}

func TestProfitMargin(t *testing.T) {
	assert.Equal(t, "60", ProfitMargin(decimal.NewFromInt(50), decimal.NewFromInt(20)).String())
	assert.Equal(t, "33.33", ProfitMargin(decimal.NewFromInt(30), decimal.NewFromInt(20)).String())
	assert.True(t, ProfitMargin(decimal.Zero, decimal.NewFromInt(20)).IsZero())
}

func TestCostBreakdown_BatchCost(t *testing.T) {
	c := NewCostBreakdown(decimal.RequireFromString("7.5"), decimal.NewFromInt(5), decimal.NewFromInt(2))
	assert.Equal(t, "14.5", c.TotalCost.String())
	assert.Equal(t, "43.5", c.BatchCost(3).String())
}

func TestReplayLedger(t *testing.T) {
	id := uuid.New()
	good := []InventoryLedgerEntry{
		{Seq: 3, QuantityBefore: 5, QuantityChange: -5, QuantityAfter: 0},
		{Seq: 1, QuantityBefore: 0, QuantityChange: 3, QuantityAfter: 3},
		{Seq: 2, QuantityBefore: 3, QuantityChange: 2, QuantityAfter: 5},
	}

	report := ReplayLedger(id, good, 0)
	assert.True(t, report.Consistent)
	assert.Equal(t, 3, report.Entries)
	assert.Empty(t, report.Problems)

	report = ReplayLedger(id, good, 2)
	assert.False(t, report.Consistent)
	assert.Len(t, report.Problems, 1)

	broken := []InventoryLedgerEntry{
		{Seq: 1, QuantityBefore: 0, QuantityChange: 3, QuantityAfter: 3},
		{Seq: 2, QuantityBefore: 4, QuantityChange: -1, QuantityAfter: 3},
	}
	report = ReplayLedger(id, broken, 2)
	assert.False(t, report.Consistent)
	require.Len(t, report.Problems, 1)
	assert.Contains(t, report.Problems[0], "previous entry ended at 3")
}

func TestRawMaterialBatch_ConsumeAndReturn(t *testing.T) {
	m := &RawMaterialBatch{ID: uuid.New(), Code: "PUR20250315001", Name: "Amethyst", Type: MaterialLooseBeads,
		TotalQuantity: 100, RemainingQuantity: 100}

	entry, err := m.Consume(30)
	require.NoError(t, err)
	assert.Equal(t, 70, m.RemainingQuantity)
	assert.Equal(t, MaterialActionConsume, entry.Action)
	assert.Equal(t, -30, entry.QuantityChange)

	_, err = m.Consume(71)
	var matErr *InsufficientMaterialError
	require.ErrorAs(t, err, &matErr)
	assert.Equal(t, 1, matErr.Shortfalls[0].Missing())
	assert.Equal(t, 70, m.RemainingQuantity)

	entry, err = m.Return(30)
	require.NoError(t, err)
	assert.Equal(t, 100, entry.QuantityAfter)

	_, err = m.Return(1)
	assert.ErrorIs(t, err, ErrValidation, "never above the purchased quantity")
}

func TestRawMaterialBatch_UnitsFor(t *testing.T) {
	beads := &RawMaterialBatch{Type: MaterialBracelet}
	pieces := &RawMaterialBatch{Type: MaterialFinishedMaterial}
	assert.Equal(t, 18, beads.UnitsFor(18, 1))
	assert.Equal(t, 1, pieces.UnitsFor(18, 1))
}

func TestCustomer_PurchaseAndRefund(t *testing.T) {
	c := &Customer{Name: "Lin"}
	c.RecordPurchase(decimal.NewFromInt(80), now)
	c.RecordPurchase(decimal.NewFromInt(20), now.Add(time.Hour))
	assert.Equal(t, 2, c.TotalOrders)
	assert.Equal(t, now, *c.FirstPurchaseDate)
	assert.Equal(t, now.Add(time.Hour), *c.LastPurchaseDate)

	c.RecordRefund(decimal.NewFromInt(80), now)
	assert.Equal(t, 1, c.TotalOrders)
	assert.Equal(t, 1, c.RefundedOrders)
	assert.Equal(t, "20", c.TotalPurchases.String())
}
