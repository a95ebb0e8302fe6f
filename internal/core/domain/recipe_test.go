// internal/core/domain/recipe_test.go
package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyCode(t *testing.T) {
	day := time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "SKU20240315007", DailyCode(SKUCodePrefix, day, 7))
	assert.Equal(t, "PUR20240315123", DailyCode(MaterialCodePrefix, day, 123))
	assert.Equal(t, "SKU202403151000", DailyCode(SKUCodePrefix, day, 1000))
}

func TestStartOfDay(t *testing.T) {
	shanghai, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)

	got := StartOfDay(time.Date(2024, 3, 15, 1, 30, 0, 0, shanghai))
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, shanghai), got)
	assert.Equal(t, shanghai, got.Location())
}

func TestCanonicalSKUName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Amethyst Bracelet #3", "Amethyst Bracelet"},
		{"Amethyst Bracelet#12", "Amethyst Bracelet"},
		{"  Amethyst Bracelet  ", "Amethyst Bracelet"},
		{"Charm #2 Edition", "Charm #2 Edition"},
		{"Plain", "Plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanonicalSKUName(tt.in), tt.in)
	}
}

func TestDeriveRecipe_FirstCreateRecordWins(t *testing.T) {
	beads, clasp := uuid.New(), uuid.New()
	first := uuid.New()

	records := []MaterialUsageRecord{
		// merged production, same recipe, larger batch
		{ID: uuid.New(), Seq: 4, MaterialID: beads, Action: UsageActionCreate, BeadsUsed: 20, QuantityUsed: 60, UnitsProduced: 3},
		{ID: first, Seq: 1, MaterialID: beads, Action: UsageActionCreate, BeadsUsed: 20, QuantityUsed: 40, UnitsProduced: 2},
		{ID: uuid.New(), Seq: 2, MaterialID: clasp, Action: UsageActionCreate, PiecesUsed: 1, QuantityUsed: 2, UnitsProduced: 2},
		{ID: uuid.New(), Seq: 3, MaterialID: beads, Action: UsageActionReturn, BeadsUsed: -20, QuantityUsed: -20, UnitsProduced: 0},
	}

	recipe := DeriveRecipe(records)
	require.Len(t, recipe, 2)

	assert.Equal(t, beads, recipe[0].MaterialID)
	assert.Equal(t, first, recipe[0].SourceRecordID)
	assert.Equal(t, 20, recipe[0].QuantityPerUnit)
	assert.Equal(t, 20, recipe[0].BeadsPerUnit)

	assert.Equal(t, clasp, recipe[1].MaterialID)
	assert.Equal(t, 1, recipe[1].QuantityPerUnit)
}

func TestDeriveRecipe_OnlyFirstProductionRun(t *testing.T) {
	batchA, batchB, clasp := uuid.New(), uuid.New(), uuid.New()
	firstRun, mergedRun := uuid.New(), uuid.New()

	// the second run made the same bracelet from another batch of identical beads
	records := []MaterialUsageRecord{
		{ID: uuid.New(), Seq: 1, MaterialID: batchA, ProductionID: firstRun, Action: UsageActionCreate, BeadsUsed: 10, QuantityUsed: 10, UnitsProduced: 1},
		{ID: uuid.New(), Seq: 2, MaterialID: clasp, ProductionID: firstRun, Action: UsageActionCreate, PiecesUsed: 1, QuantityUsed: 1, UnitsProduced: 1},
		{ID: uuid.New(), Seq: 3, MaterialID: batchB, ProductionID: mergedRun, Action: UsageActionCreate, BeadsUsed: 10, QuantityUsed: 30, UnitsProduced: 3},
		{ID: uuid.New(), Seq: 4, MaterialID: clasp, ProductionID: mergedRun, Action: UsageActionCreate, PiecesUsed: 1, QuantityUsed: 3, UnitsProduced: 3},
	}

	recipe := DeriveRecipe(records)
	require.Len(t, recipe, 2)
	assert.Equal(t, batchA, recipe[0].MaterialID)
	assert.Equal(t, 10, recipe[0].QuantityPerUnit)
	assert.Equal(t, clasp, recipe[1].MaterialID)
	assert.Equal(t, 1, recipe[1].QuantityPerUnit, "merged runs are never summed into the recipe")
}

func TestUsageKey_IgnoresBatchIdentity(t *testing.T) {
	diameter := decimal.NewFromInt(8)
	a := &RawMaterialBatch{ID: uuid.New(), Name: "Amethyst 8mm", Type: MaterialLooseBeads, BeadDiameter: &diameter, UnitCost: decimal.RequireFromString("0.50")}
	b := &RawMaterialBatch{ID: uuid.New(), Name: "Amethyst 8mm", Type: MaterialLooseBeads, BeadDiameter: &diameter, UnitCost: decimal.RequireFromString("0.65")}
	c := &RawMaterialBatch{ID: uuid.New(), Name: "Rose Quartz 8mm", Type: MaterialLooseBeads, BeadDiameter: &diameter}

	keyA, err := UsageKey(PurchaseSourceFor(a, 10, 0))
	require.NoError(t, err)
	keyB, err := UsageKey(PurchaseSourceFor(b, 10, 0))
	require.NoError(t, err)
	keyC, err := UsageKey(PurchaseSourceFor(c, 10, 0))
	require.NoError(t, err)
	keyMore, err := UsageKey(PurchaseSourceFor(a, 12, 0))
	require.NoError(t, err)

	assert.Equal(t, keyA, keyB)
	assert.NotEqual(t, keyA, keyC)
	assert.NotEqual(t, keyA, keyMore)
}

func TestDeriveRecipe_NoCreateRecords(t *testing.T) {
	recipe := DeriveRecipe([]MaterialUsageRecord{
		{Seq: 1, MaterialID: uuid.New(), Action: UsageActionReturn, QuantityUsed: -5},
	})
	assert.Empty(t, recipe)
	assert.NotNil(t, recipe)
}

func TestProportionalReturn(t *testing.T) {
	tests := []struct {
		name                              string
		perUnit, destroyed, totalProduced int
		want                              int
	}{
		{name: "one_of_two", perUnit: 20, destroyed: 1, totalProduced: 2, want: 10},
		{name: "floors_fractions", perUnit: 7, destroyed: 1, totalProduced: 3, want: 2},
		{name: "all_units", perUnit: 20, destroyed: 4, totalProduced: 4, want: 20},
		{name: "nothing_produced", perUnit: 20, destroyed: 1, totalProduced: 0, want: 0},
		{name: "nothing_destroyed", perUnit: 20, destroyed: 0, totalProduced: 4, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProportionalReturn(tt.perUnit, tt.destroyed, tt.totalProduced))
		})
	}
}
