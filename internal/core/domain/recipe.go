// internal/core/domain/recipe.go
package domain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Code prefixes for human-readable identifiers
const (
	SKUCodePrefix      = "SKU"
	MaterialCodePrefix = "PUR"
)

// DailyCode formats prefix + YYYYMMDD + three digit sequence, e.g. SKU20240315007.
func DailyCode(prefix string, day time.Time, seq int) string {
	return fmt.Sprintf("%s%s%03d", prefix, day.Format("20060102"), seq)
}

// StartOfDay returns local midnight of t in t's location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

var batchSuffix = regexp.MustCompile(`\s*#\d+$`)

// CanonicalSKUName strips a trailing " #N" batch suffix
func CanonicalSKUName(name string) string {
	return strings.TrimSpace(batchSuffix.ReplaceAllString(strings.TrimSpace(name), ""))
}

// RecipeItem is the per-unit consumption of one material
type RecipeItem struct {
	MaterialID      uuid.UUID `json:"material_id"`
	BeadsPerUnit    int       `json:"beads_per_unit"`
	PiecesPerUnit   int       `json:"pieces_per_unit"`
	QuantityPerUnit int       `json:"quantity_per_unit"`
	SourceRecordID  uuid.UUID `json:"source_record_id"`
}

// DeriveRecipe returns the per-unit recipe of the SKU's first production run: the CREATE
// records sharing the earliest record's ProductionID, in insertion order. Later runs, including
// merged productions from other batches of the same material, are history only and never summed in.
func DeriveRecipe(records []MaterialUsageRecord) []RecipeItem {
	ordered := make([]MaterialUsageRecord, 0, len(records))
	for _, r := range records {
		if r.Action == UsageActionCreate {
			ordered = append(ordered, r)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Seq < ordered[j].Seq })

	recipe := make([]RecipeItem, 0, len(ordered))
	if len(ordered) == 0 {
		return recipe
	}
	run := ordered[0].ProductionID

	seen := make(map[uuid.UUID]struct{}, len(ordered))
	for _, r := range ordered {
		// records written before runs were tagged fall back to the first row per material
		if run != uuid.Nil && r.ProductionID != run {
			continue
		}
		if _, ok := seen[r.MaterialID]; ok {
			continue
		}
		seen[r.MaterialID] = struct{}{}

		units := r.UnitsProduced
		if units <= 0 {
			units = 1
		}
		recipe = append(recipe, RecipeItem{
			MaterialID:      r.MaterialID,
			BeadsPerUnit:    r.BeadsUsed,
			PiecesPerUnit:   r.PiecesUsed,
			QuantityPerUnit: r.QuantityUsed / units,
			SourceRecordID:  r.ID,
		})
	}
	return recipe
}

// ProportionalReturn is floor(perUnit × destroyed / totalProduced), measured against all-time production.
func ProportionalReturn(perUnit, destroyed, totalProduced int) int {
	if totalProduced <= 0 || perUnit <= 0 || destroyed <= 0 {
		return 0
	}
	return perUnit * destroyed / totalProduced
}
