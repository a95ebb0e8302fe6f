// internal/core/services/operations_test.go
package services_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/beadledger/internal/core/domain"
	"github.com/ammerola/beadledger/internal/core/ports"
	"github.com/ammerola/beadledger/internal/core/services"
	"github.com/ammerola/beadledger/test/helpers"
)

var boss = domain.Actor{ID: "boss-1", Role: "BOSS"}

type fixture struct {
	svc   *services.LedgerService
	beads *domain.RawMaterialBatch
	clasp *domain.RawMaterialBatch
	sku   *domain.SKU
}

// newFixture produces units of a bracelet using 10 beads and 1 clasp per unit
func newFixture(t *testing.T, units int) *fixture {
	t.Helper()
	svc, _ := helpers.NewTestService(t)
	f := &fixture{
		svc:   svc,
		beads: helpers.CreateMaterial(t, svc, "Amethyst 8mm", domain.MaterialLooseBeads, 100, "0.50"),
		clasp: helpers.CreateMaterial(t, svc, "Clasp", domain.MaterialAccessories, 20, "2"),
	}
	req := helpers.NewProductionRequest("Amethyst Bracelet", "50", units, helpers.Usage(f.beads, 10), helpers.Usage(f.clasp, 1))
	req.LaborCost = decimal.NewFromInt(3)
	res, err := svc.CombinationCraft(context.Background(), req)
	require.NoError(t, err)
	f.sku = res.SKU
	return f
}

func (f *fixture) remaining(t *testing.T, m *domain.RawMaterialBatch) int {
	t.Helper()
	got, err := f.svc.GetMaterial(context.Background(), m.ID)
	require.NoError(t, err)
	return got.RemainingQuantity
}

func (f *fixture) current(t *testing.T) *domain.SKU {
	t.Helper()
	got, err := f.svc.GetSKU(context.Background(), f.sku.ID)
	require.NoError(t, err)
	return got
}

func (f *fixture) assertConsistent(t *testing.T) {
	t.Helper()
	report, err := f.svc.VerifyLedger(context.Background(), f.sku.ID)
	require.NoError(t, err)
	assert.True(t, report.Consistent, "%v", report.Problems)
}

func TestLedgerService_Sell(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	res, err := f.svc.Sell(ctx, f.sku.ID, ports.SellRequest{
		Quantity:      2,
		CustomerName:  "Lin",
		CustomerPhone: "13800000000",
		SaleChannel:   "wechat",
		Actor:         boss,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.SKU.AvailableQuantity)
	assert.Equal(t, 3, res.SKU.TotalQuantity)
	assert.Equal(t, "100", res.Purchase.TotalPrice.String())
	assert.Equal(t, "50", res.Purchase.UnitPrice.String())
	assert.Equal(t, domain.PurchaseStatusCompleted, res.Purchase.Status)
	assert.Equal(t, domain.LedgerActionSell, res.Ledger.Action)
	assert.Equal(t, -2, res.Ledger.QuantityChange)
	assert.Equal(t, res.Purchase.ID.String(), res.Ledger.ReferenceID)
	assert.Contains(t, res.Ledger.Note, "via wechat")
	assert.Equal(t, 1, res.Customer.TotalOrders)

	// phone wins over a different name
	again, err := f.svc.Sell(ctx, f.sku.ID, ports.SellRequest{
		Quantity:         1,
		CustomerName:     "Lin Wei",
		CustomerPhone:    "13800000000",
		ActualTotalPrice: decPtr("45"),
		Actor:            boss,
	})
	require.NoError(t, err)
	assert.Equal(t, res.Customer.ID, again.Customer.ID)
	assert.Equal(t, 2, again.Customer.TotalOrders)
	assert.Equal(t, "145", again.Customer.TotalPurchases.String())
	assert.Equal(t, "45", again.Purchase.TotalPrice.String())
	assert.Equal(t, domain.SKUStatusInactive, again.SKU.Status, "selling the last unit deactivates the SKU")

	f.assertConsistent(t)
}

func TestLedgerService_Sell_MatchesByNameWithoutPhone(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	first, err := f.svc.Sell(ctx, f.sku.ID, ports.SellRequest{Quantity: 1, CustomerName: "Mei"})
	require.NoError(t, err)
	second, err := f.svc.Sell(ctx, f.sku.ID, ports.SellRequest{Quantity: 1, CustomerName: " Mei "})
	require.NoError(t, err)
	assert.Equal(t, first.Customer.ID, second.Customer.ID)

	phoneOnly, err := f.svc.Sell(ctx, f.sku.ID, ports.SellRequest{Quantity: 1, CustomerPhone: "139"})
	require.NoError(t, err)
	assert.Equal(t, "139", phoneOnly.Customer.Name, "a phone-only customer is named by the phone")
}

// Scenario E
func TestLedgerService_Sell_InsufficientStock(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.svc.Adjust(ctx, f.sku.ID, ports.AdjustRequest{NewAvailableQuantity: intPtr(0), Reason: "count", Actor: boss})
	require.NoError(t, err)
	ledgerBefore, err := f.svc.GetLedger(ctx, f.sku.ID)
	require.NoError(t, err)

	_, err = f.svc.Sell(ctx, f.sku.ID, ports.SellRequest{Quantity: 1, CustomerName: "Lin"})
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 0, stockErr.Available)
	assert.Equal(t, 1, stockErr.Requested)

	ledgerAfter, err := f.svc.GetLedger(ctx, f.sku.ID)
	require.NoError(t, err)
	assert.Len(t, ledgerAfter, len(ledgerBefore), "no ledger entry for a refused sale")
}

func TestLedgerService_Sell_Errors(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	tests := []struct {
		name    string
		skuID   uuid.UUID
		req     ports.SellRequest
		wantErr error
	}{
		{name: "unknown_sku", skuID: uuid.New(), req: ports.SellRequest{Quantity: 1, CustomerName: "Lin"}, wantErr: domain.ErrNotFound},
		{name: "no_customer", skuID: f.sku.ID, req: ports.SellRequest{Quantity: 1}, wantErr: domain.ErrValidation},
		{name: "zero_quantity", skuID: f.sku.ID, req: ports.SellRequest{CustomerName: "Lin"}, wantErr: domain.ErrValidation},
		{name: "negative_total", skuID: f.sku.ID, req: ports.SellRequest{Quantity: 1, CustomerName: "Lin", ActualTotalPrice: decPtr("-5")}, wantErr: domain.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Sell(ctx, tt.skuID, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Equal(t, 1, f.current(t).AvailableQuantity)
}

// Scenario C
func TestLedgerService_Destroy_ProportionalReturn(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()
	require.Equal(t, 60, f.remaining(t, f.beads))

	res, err := f.svc.Destroy(ctx, f.sku.ID, ports.DestroyRequest{
		Quantity:         1,
		Reason:           "cracked bead",
		ReturnToMaterial: true,
		Actor:            boss,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.SKU.AvailableQuantity)
	assert.Equal(t, 4, res.SKU.TotalQuantity)
	assert.Equal(t, domain.LedgerActionDestroy, res.Ledger.Action)

	// floor(10×1/4) beads and floor(1×1/4) clasps
	require.Len(t, res.Returned, 1)
	assert.Equal(t, f.beads.ID, res.Returned[0].MaterialID)
	assert.Equal(t, 2, res.Returned[0].Quantity)
	assert.Equal(t, 62, f.remaining(t, f.beads))
	assert.Equal(t, 16, f.remaining(t, f.clasp))

	entries, err := f.svc.GetMaterialLedger(ctx, f.beads.ID)
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, domain.MaterialActionReturn, last.Action)
	assert.Equal(t, 2, last.QuantityChange)

	recipe, err := f.svc.GetRecipe(ctx, f.sku.ID)
	require.NoError(t, err)
	assert.True(t, recipe.Matches, "returns never change the recipe")
	f.assertConsistent(t)
}

func TestLedgerService_Destroy_CustomAndSelected(t *testing.T) {
	tests := []struct {
		name          string
		req           func(f *fixture) ports.DestroyRequest
		wantBeads     int
		wantClasp     int
		wantErr       error
		wantAvailable int
	}{
		{
			name: "without_return",
			req: func(f *fixture) ports.DestroyRequest {
				return ports.DestroyRequest{Quantity: 2, Reason: "lost"}
			},
			wantBeads: 60, wantClasp: 16, wantAvailable: 2,
		},
		{
			name: "custom_quantities",
			req: func(f *fixture) ports.DestroyRequest {
				return ports.DestroyRequest{Quantity: 1, Reason: "unstrung", ReturnToMaterial: true,
					CustomReturnQuantities: map[uuid.UUID]int{f.beads.ID: 10, f.clasp.ID: 1}}
			},
			wantBeads: 70, wantClasp: 17, wantAvailable: 3,
		},
		{
			name: "selected_materials_only",
			req: func(f *fixture) ports.DestroyRequest {
				return ports.DestroyRequest{Quantity: 4, Reason: "unstrung", ReturnToMaterial: true,
					SelectedMaterials: []uuid.UUID{f.clasp.ID}}
			},
			wantBeads: 60, wantClasp: 17, wantAvailable: 0,
		},
		{
			name: "return_above_purchased_quantity",
			req: func(f *fixture) ports.DestroyRequest {
				return ports.DestroyRequest{Quantity: 1, Reason: "unstrung", ReturnToMaterial: true,
					CustomReturnQuantities: map[uuid.UUID]int{f.clasp.ID: 5}}
			},
			wantBeads: 60, wantClasp: 16, wantAvailable: 4, wantErr: domain.ErrValidation,
		},
		{
			name: "material_outside_recipe",
			req: func(f *fixture) ports.DestroyRequest {
				return ports.DestroyRequest{Quantity: 1, Reason: "unstrung", ReturnToMaterial: true,
					SelectedMaterials: []uuid.UUID{uuid.New()}}
			},
			wantBeads: 60, wantClasp: 16, wantAvailable: 4, wantErr: domain.ErrValidation,
		},
		{
			name: "more_than_available",
			req: func(f *fixture) ports.DestroyRequest {
				return ports.DestroyRequest{Quantity: 5, Reason: "flood", ReturnToMaterial: true}
			},
			wantBeads: 60, wantClasp: 16, wantAvailable: 4, wantErr: domain.ErrInsufficientStock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 4)
			req := tt.req(f)
			req.Actor = boss

			_, err := f.svc.Destroy(context.Background(), f.sku.ID, req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tt.wantBeads, f.remaining(t, f.beads))
			assert.Equal(t, tt.wantClasp, f.remaining(t, f.clasp))
			assert.Equal(t, tt.wantAvailable, f.current(t).AvailableQuantity)
			f.assertConsistent(t)
		})
	}
}

func TestLedgerService_Adjust(t *testing.T) {
	f := newFixture(t, 4)
	ctx := context.Background()

	res, err := f.svc.Adjust(ctx, f.sku.ID, ports.AdjustRequest{NewAvailableQuantity: intPtr(1), Reason: "stock count", Actor: boss})
	require.NoError(t, err)
	assert.Equal(t, 1, res.SKU.AvailableQuantity)
	assert.Equal(t, -3, res.Ledger.QuantityChange)
	assert.Equal(t, domain.LedgerActionAdjust, res.Ledger.Action)
	assert.Contains(t, res.Ledger.Note, "4 -> 1")
	assert.Equal(t, "boss-1", res.Ledger.ActorID)

	_, err = f.svc.Adjust(ctx, f.sku.ID, ports.AdjustRequest{NewAvailableQuantity: intPtr(5), Reason: "typo", Actor: boss})
	assert.ErrorIs(t, err, domain.ErrValidation, "available never exceeds total produced")

	_, err = f.svc.Adjust(ctx, f.sku.ID, ports.AdjustRequest{NewAvailableQuantity: intPtr(1), Actor: boss})
	assert.ErrorIs(t, err, domain.ErrValidation, "a reason is required")

	_, err = f.svc.Adjust(ctx, f.sku.ID, ports.AdjustRequest{Reason: "missing", Actor: boss})
	assert.ErrorIs(t, err, domain.ErrValidation)

	f.assertConsistent(t)
}

func TestLedgerService_Restock(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	res, err := f.svc.Restock(ctx, f.sku.ID, ports.RestockRequest{Quantity: 3, Note: "weekend market", Actor: boss})
	require.NoError(t, err)
	assert.Equal(t, 5, res.SKU.AvailableQuantity)
	assert.Equal(t, 5, res.SKU.TotalQuantity)
	assert.Equal(t, domain.LedgerActionAdjust, res.Ledger.Action)
	assert.Equal(t, domain.RefRestock, res.Ledger.ReferenceType)
	// material 5+2 per unit, labor 3 per unit
	assert.Equal(t, "30", res.TotalCost.String())
	assert.Len(t, res.Consumed, 2)
	assert.Equal(t, 50, f.remaining(t, f.beads))
	assert.Equal(t, 15, f.remaining(t, f.clasp))

	recipe, err := f.svc.GetRecipe(ctx, f.sku.ID)
	require.NoError(t, err)
	for _, line := range recipe.Lines {
		if line.MaterialID == f.beads.ID {
			assert.Equal(t, 10, line.QuantityPerUnit, "restock records never alter the recipe")
		}
	}
	f.assertConsistent(t)
}

// Scenario D
func TestLedgerService_Restock_InsufficientMaterialIsAtomic(t *testing.T) {
	svc, _ := helpers.NewTestService(t)
	ctx := context.Background()
	beads := helpers.CreateMaterial(t, svc, "Amethyst 8mm", domain.MaterialLooseBeads, 25, "0.50")
	clasp := helpers.CreateMaterial(t, svc, "Clasp", domain.MaterialAccessories, 20, "2")

	res, err := svc.CombinationCraft(ctx, helpers.NewProductionRequest("Bracelet", "50", 1, helpers.Usage(beads, 10), helpers.Usage(clasp, 1)))
	require.NoError(t, err)
	_, err = svc.Restock(ctx, res.SKU.ID, ports.RestockRequest{Quantity: 2, Actor: boss})

	var matErr *domain.InsufficientMaterialError
	require.ErrorAs(t, err, &matErr)
	require.Len(t, matErr.Shortfalls, 1)
	assert.Equal(t, 20, matErr.Shortfalls[0].Required)
	assert.Equal(t, 15, matErr.Shortfalls[0].Remaining)

	b, err := svc.GetMaterial(ctx, beads.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, b.RemainingQuantity)
	c, err := svc.GetMaterial(ctx, clasp.ID)
	require.NoError(t, err)
	assert.Equal(t, 19, c.RemainingQuantity, "the clasp is untouched even though it could cover its part")

	sku, err := svc.GetSKU(ctx, res.SKU.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sku.TotalQuantity)
}

// mergedBatches produces one bracelet from each of two batches of identical beads, so both land on one SKU.
func mergedBatches(t *testing.T, firstQty, secondQty int) (*services.LedgerService, *domain.SKU, *domain.RawMaterialBatch, *domain.RawMaterialBatch) {
	t.Helper()
	svc, _ := helpers.NewTestService(t)
	ctx := context.Background()
	first := helpers.CreateMaterial(t, svc, "Amethyst 8mm", domain.MaterialLooseBeads, firstQty, "0.50")
	second := helpers.CreateMaterial(t, svc, "Amethyst 8mm", domain.MaterialLooseBeads, secondQty, "0.65")

	a, err := svc.CombinationCraft(ctx, helpers.NewProductionRequest("Bracelet", "50", 1, helpers.Usage(first, 10)))
	require.NoError(t, err)
	b, err := svc.CombinationCraft(ctx, helpers.NewProductionRequest("Bracelet", "50", 1, helpers.Usage(second, 10)))
	require.NoError(t, err)
	require.Equal(t, a.SKU.ID, b.SKU.ID)
	return svc, b.SKU, first, second
}

func TestLedgerService_Restock_AfterMergeUsesOneBatch(t *testing.T) {
	svc, sku, first, second := mergedBatches(t, 100, 100)
	ctx := context.Background()

	res, err := svc.Restock(ctx, sku.ID, ports.RestockRequest{Quantity: 1, Actor: boss})
	require.NoError(t, err)
	require.Len(t, res.Consumed, 1)
	assert.Equal(t, first.ID, res.Consumed[0].MaterialID)
	assert.Equal(t, 10, res.Consumed[0].Quantity)
	assert.Equal(t, "5", res.TotalCost.String())

	a, err := svc.GetMaterial(ctx, first.ID)
	require.NoError(t, err)
	b, err := svc.GetMaterial(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, 80, a.RemainingQuantity)
	assert.Equal(t, 90, b.RemainingQuantity)

	recipe, err := svc.GetRecipe(ctx, sku.ID)
	require.NoError(t, err)
	assert.True(t, recipe.Matches)
	require.Len(t, recipe.Lines, 1)
	assert.Equal(t, 10, recipe.Lines[0].QuantityPerUnit)
}

func TestLedgerService_Restock_FallsBackToEquivalentBatch(t *testing.T) {
	svc, sku, first, second := mergedBatches(t, 15, 100)
	ctx := context.Background()

	res, err := svc.Restock(ctx, sku.ID, ports.RestockRequest{Quantity: 2, Actor: boss})
	require.NoError(t, err)
	require.Len(t, res.Consumed, 1)
	assert.Equal(t, second.ID, res.Consumed[0].MaterialID)
	assert.Equal(t, 20, res.Consumed[0].Quantity)
	assert.Equal(t, 70, res.Consumed[0].RemainingAfter)

	a, err := svc.GetMaterial(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, a.RemainingQuantity, "the original batch cannot cover the run and is left alone")

	_, err = svc.Restock(ctx, sku.ID, ports.RestockRequest{Quantity: 8, Actor: boss})
	var matErr *domain.InsufficientMaterialError
	require.ErrorAs(t, err, &matErr)
	require.Len(t, matErr.Shortfalls, 1)
	assert.Equal(t, first.ID, matErr.Shortfalls[0].MaterialID)
	assert.Equal(t, 80, matErr.Shortfalls[0].Required)
}

func TestLedgerService_Restock_ReactivatesDepletedSKU(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	sold, err := f.svc.Sell(ctx, f.sku.ID, ports.SellRequest{Quantity: 1, CustomerName: "Lin"})
	require.NoError(t, err)
	require.Equal(t, domain.SKUStatusInactive, sold.SKU.Status)

	res, err := f.svc.Restock(ctx, f.sku.ID, ports.RestockRequest{Quantity: 1, Actor: boss})
	require.NoError(t, err)
	assert.Equal(t, domain.SKUStatusActive, res.SKU.Status)
}

func TestLedgerService_Control(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	inactive := domain.SKUStatusInactive

	res, err := f.svc.Control(ctx, f.sku.ID, ports.ControlRequest{
		SellingPrice: decPtr("60"),
		PriceReason:  "new season",
		Status:       &inactive,
		Actor:        boss,
	})
	require.NoError(t, err)
	assert.Equal(t, "60", res.SKU.SellingPrice.String())
	assert.Equal(t, domain.SKUStatusInactive, res.SKU.Status)
	assert.Equal(t, 0, res.Ledger.QuantityChange)
	assert.Equal(t, domain.RefControl, res.Ledger.ReferenceType)
	assert.Contains(t, res.Ledger.Note, "price 50.00 -> 60.00 (new season)")
	assert.Contains(t, res.Ledger.Note, "status ACTIVE -> INACTIVE")
	assert.Equal(t, "120", res.SKU.TotalValue.String())

	same, err := f.svc.Control(ctx, f.sku.ID, ports.ControlRequest{SellingPrice: decPtr("60"), Actor: boss})
	require.NoError(t, err)
	assert.Equal(t, "no changes", same.Ledger.Note)

	ledger, err := f.svc.GetLedger(ctx, f.sku.ID)
	require.NoError(t, err)
	assert.Len(t, ledger, 3, "control always leaves a trace")

	_, err = f.svc.Control(ctx, f.sku.ID, ports.ControlRequest{Actor: boss})
	assert.ErrorIs(t, err, domain.ErrValidation)

	bogus := domain.SKUStatus("RETIRED")
	_, err = f.svc.Control(ctx, f.sku.ID, ports.ControlRequest{Status: &bogus, Actor: boss})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestLedgerService_Refund(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	sold, err := f.svc.Sell(ctx, f.sku.ID, ports.SellRequest{Quantity: 1, CustomerName: "Lin", Actor: boss})
	require.NoError(t, err)

	res, err := f.svc.Refund(ctx, sold.Purchase.ID, ports.RefundRequest{Reason: "wrong size", Actor: boss})
	require.NoError(t, err)
	assert.Equal(t, domain.LedgerActionReturn, res.Ledger.Action)
	assert.Equal(t, 1, res.Ledger.QuantityChange)
	assert.Equal(t, 1, res.SKU.AvailableQuantity)
	assert.Equal(t, domain.SKUStatusActive, res.SKU.Status)
	assert.Equal(t, domain.PurchaseStatusRefunded, res.Purchase.Status)
	assert.NotNil(t, res.Purchase.RefundedAt)
	assert.Equal(t, 0, res.Customer.TotalOrders)
	assert.Equal(t, 1, res.Customer.RefundedOrders)
	assert.True(t, res.Customer.TotalPurchases.IsZero())

	_, err = f.svc.Refund(ctx, sold.Purchase.ID, ports.RefundRequest{Reason: "again", Actor: boss})
	assert.ErrorIs(t, err, domain.ErrValidation, "a purchase is refunded once")

	_, err = f.svc.Refund(ctx, uuid.New(), ports.RefundRequest{Reason: "unknown", Actor: boss})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	detail, err := f.svc.GetCustomer(ctx, sold.Customer.ID)
	require.NoError(t, err)
	require.Len(t, detail.Purchases, 1)
	assert.Equal(t, domain.PurchaseStatusRefunded, detail.Purchases[0].Status)
	f.assertConsistent(t)
}

func TestLedgerService_Refund_AfterAdjustUp(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	sold, err := f.svc.Sell(ctx, f.sku.ID, ports.SellRequest{Quantity: 1, CustomerName: "Lin", Actor: boss})
	require.NoError(t, err)
	one := 1
	_, err = f.svc.Adjust(ctx, f.sku.ID, ports.AdjustRequest{NewAvailableQuantity: &one, Reason: "found in drawer", Actor: boss})
	require.NoError(t, err)

	res, err := f.svc.Refund(ctx, sold.Purchase.ID, ports.RefundRequest{Reason: "wrong size", Actor: boss})
	require.NoError(t, err)
	assert.Equal(t, domain.PurchaseStatusRefunded, res.Purchase.Status)
	assert.Equal(t, 0, res.Ledger.QuantityChange)
	assert.Contains(t, res.Ledger.Note, "0 back in stock")
	assert.Equal(t, 1, res.SKU.AvailableQuantity)
	assert.Equal(t, 1, res.SKU.TotalQuantity)
	assert.Equal(t, 1, res.Customer.RefundedOrders)
	assert.True(t, res.Customer.TotalPurchases.IsZero())
	f.assertConsistent(t)
}

func TestLedgerService_Refund_PartialRoom(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	sold, err := f.svc.Sell(ctx, f.sku.ID, ports.SellRequest{Quantity: 3, CustomerName: "Lin", Actor: boss})
	require.NoError(t, err)
	two := 2
	_, err = f.svc.Adjust(ctx, f.sku.ID, ports.AdjustRequest{NewAvailableQuantity: &two, Reason: "recount", Actor: boss})
	require.NoError(t, err)

	res, err := f.svc.Refund(ctx, sold.Purchase.ID, ports.RefundRequest{Reason: "gift returned", Actor: boss})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Ledger.QuantityChange)
	assert.Equal(t, 3, res.SKU.AvailableQuantity)
	f.assertConsistent(t)
}

func TestLedgerService_Queries(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	_, err := f.svc.GetSKU(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.VerifyLedger(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.GetCustomer(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	recipe, err := f.svc.GetRecipe(ctx, f.sku.ID)
	require.NoError(t, err)
	assert.True(t, recipe.Matches)
	assert.Equal(t, f.sku.SignatureHash, recipe.Signature)
	assert.Len(t, recipe.Lines, 2)

	list, err := f.svc.ListSKUs(ctx, ports.SKUListParams{Search: "amethyst"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.TotalCount)
	assert.Equal(t, 1, list.TotalPages)
	assert.Equal(t, 50, list.PageSize)

	_, err = f.svc.ListSKUs(ctx, ports.SKUListParams{Status: "SOLD"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	materials, err := f.svc.ListMaterials(ctx, ports.MaterialListParams{Type: string(domain.MaterialAccessories)})
	require.NoError(t, err)
	require.Len(t, materials.Items, 1)
	assert.Equal(t, f.clasp.ID, materials.Items[0].ID)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func intPtr(i int) *int { return &i }
