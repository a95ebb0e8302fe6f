// internal/core/domain/signature_test.go
package domain

import (
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func grade(g QualityGrade) *QualityGrade { return &g }

func amethyst() *RawMaterialBatch {
	return &RawMaterialBatch{
		ID:           uuid.New(),
		Name:         "Amethyst 8mm",
		Type:         MaterialLooseBeads,
		Quality:      grade(GradeA),
		BeadDiameter: dec("8"),
	}
}

func clasp() *RawMaterialBatch {
	return &RawMaterialBatch{
		ID:            uuid.New(),
		Name:          "Clasp",
		Type:          MaterialAccessories,
		Specification: dec("12"),
	}
}

func TestComputeSignature_OrderIndependent(t *testing.T) {
	a, c := amethyst(), clasp()

	first, err := ComputeSignature([]SignatureInput{PurchaseSourceFor(a, 20, 0), PurchaseSourceFor(c, 0, 1)})
	require.NoError(t, err)
	second, err := ComputeSignature([]SignatureInput{PurchaseSourceFor(c, 0, 1), PurchaseSourceFor(a, 20, 0)})
	require.NoError(t, err)

	assert.Equal(t, first.Hash, second.Hash)
	assert.Equal(t, first.Canonical, second.Canonical)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{8}$`), first.Hash)
	assert.Equal(t, "Amethyst 8mm", first.Usages[0].Name)
}

func TestComputeSignature_InputShapesAgree(t *testing.T) {
	a, c := amethyst(), clasp()

	fromPurchase, err := ComputeSignature([]SignatureInput{PurchaseSourceFor(a, 20, 0), PurchaseSourceFor(c, 0, 1)})
	require.NoError(t, err)
	fromMaterial, err := ComputeSignature([]SignatureInput{MaterialSourceFor(a, 20, 0), MaterialSourceFor(c, 0, 1)})
	require.NoError(t, err)

	assert.Equal(t, fromPurchase.Hash, fromMaterial.Hash)
}

func TestComputeSignature_Distinguishes(t *testing.T) {
	base, err := ComputeSignature([]SignatureInput{PurchaseSourceFor(amethyst(), 20, 0)})
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(b *RawMaterialBatch) (beads int)
		same   bool
	}{
		{name: "different_batch_same_attributes", mutate: func(b *RawMaterialBatch) int { b.ID = uuid.New(); return 20 }, same: true},
		{name: "trailing_zero_diameter", mutate: func(b *RawMaterialBatch) int { b.BeadDiameter = dec("8.0"); return 20 }, same: true},
		{name: "padded_name", mutate: func(b *RawMaterialBatch) int { b.Name = "  Amethyst 8mm "; return 20 }, same: true},
		{name: "different_quantity", mutate: func(b *RawMaterialBatch) int { return 21 }},
		{name: "different_grade", mutate: func(b *RawMaterialBatch) int { b.Quality = grade(GradeAA); return 20 }},
		{name: "no_grade", mutate: func(b *RawMaterialBatch) int { b.Quality = nil; return 20 }},
		{name: "different_diameter", mutate: func(b *RawMaterialBatch) int { b.BeadDiameter = dec("10"); return 20 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := amethyst()
			beads := tt.mutate(b)
			sig, err := ComputeSignature([]SignatureInput{PurchaseSourceFor(b, beads, 0)})
			require.NoError(t, err)
			if tt.same {
				assert.Equal(t, base.Hash, sig.Hash)
			} else {
				assert.NotEqual(t, base.Hash, sig.Hash)
			}
		})
	}
}

func TestComputeSignature_EmptyGradeMatchesNil(t *testing.T) {
	b := amethyst()
	b.Quality = nil
	withNil, err := ComputeSignature([]SignatureInput{PurchaseSourceFor(b, 20, 0)})
	require.NoError(t, err)

	b.Quality = grade("")
	withEmpty, err := ComputeSignature([]SignatureInput{PurchaseSourceFor(b, 20, 0)})
	require.NoError(t, err)

	assert.Equal(t, withNil.Hash, withEmpty.Hash)
	assert.Nil(t, withEmpty.Usages[0].Quality)
}

func TestComputeSignature_Defaults(t *testing.T) {
	sig, err := ComputeSignature([]SignatureInput{MaterialSource{BeadsUsed: 1}})
	require.NoError(t, err)
	assert.Equal(t, UnknownMaterialName, sig.Usages[0].Name)
	assert.Equal(t, UnknownMaterialType, sig.Usages[0].Type)
	assert.Contains(t, sig.Canonical, `"quality":null`)
}

func TestComputeSignature_ZeroQuantityIsHashed(t *testing.T) {
	a, c := amethyst(), clasp()
	with, err := ComputeSignature([]SignatureInput{PurchaseSourceFor(a, 20, 0), PurchaseSourceFor(c, 0, 0)})
	require.NoError(t, err)
	without, err := ComputeSignature([]SignatureInput{PurchaseSourceFor(a, 20, 0)})
	require.NoError(t, err)
	assert.NotEqual(t, with.Hash, without.Hash)
}

func TestComputeSignature_Empty(t *testing.T) {
	_, err := ComputeSignature(nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = ComputeSignature([]SignatureInput{nil})
	assert.ErrorIs(t, err, ErrValidation)
}
