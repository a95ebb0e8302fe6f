// internal/core/domain/material.go
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaterialType represents the kind of purchased material
type MaterialType string

// Material type constants
const (
	MaterialLooseBeads       MaterialType = "LOOSE_BEADS"
	MaterialBracelet         MaterialType = "BRACELET"
	MaterialAccessories      MaterialType = "ACCESSORIES"
	MaterialFinishedMaterial MaterialType = "FINISHED_MATERIAL"
)

// Valid reports whether t is a known material type
func (t MaterialType) Valid() bool {
	switch t {
	case MaterialLooseBeads, MaterialBracelet, MaterialAccessories, MaterialFinishedMaterial:
		return true
	}
	return false
}

// CountsBeads reports whether stock of this type is counted in beads rather than pieces.
func (t MaterialType) CountsBeads() bool {
	return t == MaterialLooseBeads || t == MaterialBracelet
}

// QualityGrade represents the grading of a crystal material
type QualityGrade string

// Quality grade constants
const (
	GradeAA QualityGrade = "AA"
	GradeA  QualityGrade = "A"
	GradeAB QualityGrade = "AB"
	GradeB  QualityGrade = "B"
	GradeC  QualityGrade = "C"
)

// Valid reports whether g is a known grade
func (g QualityGrade) Valid() bool {
	switch g {
	case GradeAA, GradeA, GradeAB, GradeB, GradeC:
		return true
	}
	return false
}

// RawMaterialBatch represents one purchased lot of material
type RawMaterialBatch struct {
	ID                uuid.UUID        `json:"id"`
	Code              string           `json:"code"`
	Name              string           `json:"name"`
	Type              MaterialType     `json:"type"`
	Quality           *QualityGrade    `json:"quality,omitempty"`
	BeadDiameter      *decimal.Decimal `json:"bead_diameter,omitempty"`
	Specification     *decimal.Decimal `json:"specification,omitempty"`
	TotalQuantity     int              `json:"total_quantity"`
	RemainingQuantity int              `json:"remaining_quantity"`
	UnitCost          decimal.Decimal  `json:"unit_cost"`
	Supplier          string           `json:"supplier,omitempty"`
	CreatedBy         string           `json:"created_by,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// Validate performs domain validation on the batch
func (m *RawMaterialBatch) Validate() error {
	if m.Name == "" {
		return NewValidationError("name", "is required")
	}
	if !m.Type.Valid() {
		return NewValidationError("type", fmt.Sprintf("unknown material type %q", m.Type))
	}
	if m.Quality != nil && !m.Quality.Valid() {
		return NewValidationError("quality", fmt.Sprintf("unknown grade %q", *m.Quality))
	}
	if m.TotalQuantity <= 0 {
		return NewValidationError("total_quantity", "must be positive")
	}
	if m.RemainingQuantity < 0 || m.RemainingQuantity > m.TotalQuantity {
		return NewValidationError("remaining_quantity", "must be between 0 and total_quantity")
	}
	if m.UnitCost.IsNegative() {
		return NewValidationError("unit_cost", "cannot be negative")
	}
	return nil
}

// DiameterOrSpec returns the sizing attribute that is meaningful for the batch type.
func (m *RawMaterialBatch) DiameterOrSpec() *decimal.Decimal {
	if m.Type.CountsBeads() {
		return m.BeadDiameter
	}
	return m.Specification
}

// UnitsFor converts a beads/pieces pair into the batch's counting unit.
func (m *RawMaterialBatch) UnitsFor(beads, pieces int) int {
	if m.Type.CountsBeads() {
		return beads
	}
	return pieces
}

// Consume takes units out of the batch and returns the material ledger entry for it.
func (m *RawMaterialBatch) Consume(units int) (MaterialLedgerEntry, error) {
	if units < 0 {
		return MaterialLedgerEntry{}, NewValidationError("quantity", "cannot consume a negative amount")
	}
	if units > m.RemainingQuantity {
		return MaterialLedgerEntry{}, &InsufficientMaterialError{Shortfalls: []MaterialShortfall{m.shortfall(units)}}
	}
	return m.move(MaterialActionConsume, -units), nil
}

// Return puts units back into the batch. The batch can never hold more than it was purchased with.
func (m *RawMaterialBatch) Return(units int) (MaterialLedgerEntry, error) {
	if units < 0 {
		return MaterialLedgerEntry{}, NewValidationError("quantity", "cannot return a negative amount")
	}
	if m.RemainingQuantity+units > m.TotalQuantity {
		return MaterialLedgerEntry{}, NewValidationError("return_quantity",
			fmt.Sprintf("returning %d to %s would exceed its purchased quantity %d (remaining %d)",
				units, m.Code, m.TotalQuantity, m.RemainingQuantity))
	}
	return m.move(MaterialActionReturn, units), nil
}

func (m *RawMaterialBatch) move(action MaterialAction, change int) MaterialLedgerEntry {
	before := m.RemainingQuantity
	m.RemainingQuantity += change
	return MaterialLedgerEntry{
		MaterialID:     m.ID,
		Action:         action,
		QuantityChange: change,
		QuantityBefore: before,
		QuantityAfter:  m.RemainingQuantity,
	}
}

func (m *RawMaterialBatch) shortfall(required int) MaterialShortfall {
	return MaterialShortfall{
		MaterialID:   m.ID,
		MaterialCode: m.Code,
		MaterialName: m.Name,
		Required:     required,
		Remaining:    m.RemainingQuantity,
	}
}

// PrepareForStorage fills identity, defaults and timestamps for a new batch
func (m *RawMaterialBatch) PrepareForStorage(now time.Time) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
}
