// internal/core/domain/ledger.go
package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Actor identifies who performed an operation. It is supplied by the auth layer and only stamped onto records.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// LedgerAction is the kind of SKU quantity mutation
type LedgerAction string

const (
	LedgerActionCreate  LedgerAction = "CREATE"
	LedgerActionSell    LedgerAction = "SELL"
	LedgerActionDestroy LedgerAction = "DESTROY"
	LedgerActionAdjust  LedgerAction = "ADJUST"
	LedgerActionReturn  LedgerAction = "RETURN"
)

// DepletesStatus reports whether reaching zero stock through this action deactivates the SKU.
func (a LedgerAction) DepletesStatus() bool {
	return a == LedgerActionSell || a == LedgerActionDestroy
}

// Reference types stamped on ledger entries
const (
	RefProduction = "production"
	RefPurchase   = "customer_purchase"
	RefDestroy    = "destroy"
	RefAdjust     = "manual_adjust"
	RefRestock    = "restock"
	RefControl    = "control"
	RefRefund     = "refund"
)

// InventoryLedgerEntry is one immutable SKU quantity mutation
type InventoryLedgerEntry struct {
	ID             uuid.UUID    `json:"id"`
	Seq            int64        `json:"seq"`
	SKUID          uuid.UUID    `json:"sku_id"`
	Action         LedgerAction `json:"action"`
	QuantityChange int          `json:"quantity_change"`
	QuantityBefore int          `json:"quantity_before"`
	QuantityAfter  int          `json:"quantity_after"`
	ReferenceType  string       `json:"reference_type,omitempty"`
	ReferenceID    string       `json:"reference_id,omitempty"`
	Note           string       `json:"note,omitempty"`
	ActorID        string       `json:"actor_id,omitempty"`
	ActorRole      string       `json:"actor_role,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// MaterialAction is the kind of raw material stock mutation
type MaterialAction string

const (
	MaterialActionPurchase MaterialAction = "PURCHASE"
	MaterialActionConsume  MaterialAction = "CONSUME"
	MaterialActionReturn   MaterialAction = "RETURN"
)

// MaterialLedgerEntry is one immutable change to a batch's remaining quantity
type MaterialLedgerEntry struct {
	ID             uuid.UUID      `json:"id"`
	Seq            int64          `json:"seq"`
	MaterialID     uuid.UUID      `json:"material_id"`
	SKUID          *uuid.UUID     `json:"sku_id,omitempty"`
	Action         MaterialAction `json:"action"`
	QuantityChange int            `json:"quantity_change"`
	QuantityBefore int            `json:"quantity_before"`
	QuantityAfter  int            `json:"quantity_after"`
	Note           string         `json:"note,omitempty"`
	ActorID        string         `json:"actor_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Stamp fills the fields the batch does not know about
func (e *MaterialLedgerEntry) Stamp(skuID *uuid.UUID, note string, actor Actor, now time.Time) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.SKUID = skuID
	e.Note = note
	e.ActorID = actor.ID
	e.CreatedAt = now
}

// UsageAction tags a usage record
type UsageAction string

const (
	UsageActionCreate UsageAction = "CREATE"
	UsageActionReturn UsageAction = "RETURN"
)

// MaterialUsageRecord links a SKU to a raw material batch it consumed or gave back.
// QuantityUsed is in the batch's counting unit: positive when consumed, negative when returned.
type MaterialUsageRecord struct {
	ID            uuid.UUID   `json:"id"`
	Seq           int64       `json:"seq"`
	SKUID         uuid.UUID   `json:"sku_id"`
	MaterialID    uuid.UUID   `json:"material_id"`
	Action        UsageAction `json:"action"`
	// ProductionID groups the CREATE rows written by one production or restock run.
	ProductionID  uuid.UUID   `json:"production_id"`
	BeadsUsed     int         `json:"beads_used"`
	PiecesUsed    int         `json:"pieces_used"`
	QuantityUsed  int         `json:"quantity_used"`
	UnitsProduced int         `json:"units_produced"`
	CreatedBy     string      `json:"created_by,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// LedgerReport is the outcome of replaying a SKU's ledger
type LedgerReport struct {
	SKUID             uuid.UUID `json:"sku_id"`
	Entries           int       `json:"entries"`
	ReplayedQuantity  int       `json:"replayed_quantity"`
	AvailableQuantity int       `json:"available_quantity"`
	Consistent        bool      `json:"consistent"`
	Problems          []string  `json:"problems,omitempty"`
}

// ReplayLedger sums the entries in sequence order starting from zero and checks every link of the chain.
func ReplayLedger(skuID uuid.UUID, entries []InventoryLedgerEntry, available int) LedgerReport {
	ordered := make([]InventoryLedgerEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	report := LedgerReport{SKUID: skuID, Entries: len(ordered), AvailableQuantity: available}
	running := 0
	for _, e := range ordered {
		if e.QuantityBefore+e.QuantityChange != e.QuantityAfter {
			report.Problems = append(report.Problems,
				fmt.Sprintf("entry %d: %d %+d != %d", e.Seq, e.QuantityBefore, e.QuantityChange, e.QuantityAfter))
		}
		if e.QuantityBefore != running {
			report.Problems = append(report.Problems,
				fmt.Sprintf("entry %d: starts at %d but previous entry ended at %d", e.Seq, e.QuantityBefore, running))
		}
		running += e.QuantityChange
	}
	report.ReplayedQuantity = running
	if running != available {
		report.Problems = append(report.Problems,
			fmt.Sprintf("replayed quantity %d differs from available %d", running, available))
	}
	report.Consistent = len(report.Problems) == 0
	return report
}
