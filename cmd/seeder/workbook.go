// cmd/seeder/workbook.go
package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/beadledger/internal/core/domain"
)

// Sheet names read from a seed workbook
const (
	sheetMaterials = "materials"
	sheetProducts  = "products"
)

// materialRow is one purchase on the materials sheet:
// key | name | type | quality | size | quantity | unit_cost | supplier
type materialRow struct {
	Key      string
	Name     string
	Type     domain.MaterialType
	Quality  *domain.QualityGrade
	Size     *decimal.Decimal
	Quantity int
	UnitCost decimal.Decimal
	Supplier string
}

// recipePart is one key:units pair from the recipe column
type recipePart struct {
	Key   string
	Units int
}

// productRow is one production run on the products sheet:
// product_name | selling_price | labor_cost | craft_cost | quantity | recipe
type productRow struct {
	Name         string
	SellingPrice decimal.Decimal
	LaborCost    decimal.Decimal
	CraftCost    decimal.Decimal
	Quantity     int
	Recipe       []recipePart
}

// catalogue is everything the seeder will create
type catalogue struct {
	Materials []materialRow
	Products  []productRow
}

// loadWorkbook reads a seed workbook. Both sheets are optional; the first row of each is a header.
func loadWorkbook(path string) (*catalogue, error) {
	file, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed workbook: %w", err)
	}

	cat := &catalogue{}
	if sheet, ok := file.Sheet[sheetMaterials]; ok {
		err := eachDataRow(sheet, func(line int, get func(int) string) error {
			m, err := parseMaterialRow(get)
			if err != nil {
				return fmt.Errorf("%s row %d: %w", sheetMaterials, line, err)
			}
			if m != nil {
				cat.Materials = append(cat.Materials, *m)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	if sheet, ok := file.Sheet[sheetProducts]; ok {
		err := eachDataRow(sheet, func(line int, get func(int) string) error {
			p, err := parseProductRow(get)
			if err != nil {
				return fmt.Errorf("%s row %d: %w", sheetProducts, line, err)
			}
			if p != nil {
				cat.Products = append(cat.Products, *p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return cat, nil
}

func eachDataRow(sheet *xlsx.Sheet, fn func(line int, get func(int) string) error) error {
	rowIdx := 0
	return sheet.ForEachRow(func(r *xlsx.Row) error {
		rowIdx++
		if rowIdx == 1 {
			return nil
		}
		get := func(i int) string {
			c := r.GetCell(i)
			if c == nil {
				return ""
			}
			if s, err := c.FormattedValue(); err == nil {
				return strings.TrimSpace(s)
			}
			return strings.TrimSpace(c.String())
		}
		return fn(rowIdx, get)
	})
}

func parseMaterialRow(get func(int) string) (*materialRow, error) {
	key := get(0)
	if key == "" {
		return nil, nil
	}

	m := &materialRow{
		Key:      key,
		Name:     get(1),
		Type:     domain.MaterialType(strings.ToUpper(get(2))),
		Supplier: get(7),
	}
	if !m.Type.Valid() {
		return nil, fmt.Errorf("unknown material type %q", get(2))
	}
	if q := strings.ToUpper(get(3)); q != "" {
		grade := domain.QualityGrade(q)
		m.Quality = &grade
	}
	if s := get(4); s != "" {
		size, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid size %q", s)
		}
		m.Size = &size
	}

	qty, err := strconv.Atoi(get(5))
	if err != nil {
		return nil, fmt.Errorf("invalid quantity %q", get(5))
	}
	m.Quantity = qty

	if m.UnitCost, err = parseMoney(get(6)); err != nil {
		return nil, err
	}
	return m, nil
}

func parseProductRow(get func(int) string) (*productRow, error) {
	name := get(0)
	if name == "" {
		return nil, nil
	}

	p := &productRow{Name: name, Quantity: 1}
	var err error
	if p.SellingPrice, err = parseMoney(get(1)); err != nil {
		return nil, err
	}
	if p.LaborCost, err = parseMoney(get(2)); err != nil {
		return nil, err
	}
	if p.CraftCost, err = parseMoney(get(3)); err != nil {
		return nil, err
	}
	if q := get(4); q != "" {
		if p.Quantity, err = strconv.Atoi(q); err != nil {
			return nil, fmt.Errorf("invalid quantity %q", q)
		}
	}
	if p.Recipe, err = parseRecipe(get(5)); err != nil {
		return nil, err
	}
	return p, nil
}

// parseRecipe reads "amethyst-8:20; clasp:1"
func parseRecipe(s string) ([]recipePart, error) {
	var parts []recipePart
	for _, item := range strings.Split(s, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key, units, ok := strings.Cut(item, ":")
		if !ok {
			return nil, fmt.Errorf("recipe item %q is not key:units", item)
		}
		n, err := strconv.Atoi(strings.TrimSpace(units))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("recipe item %q has invalid units", item)
		}
		parts = append(parts, recipePart{Key: strings.TrimSpace(key), Units: n})
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("recipe is empty")
	}
	return parts, nil
}

func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(s, "$"))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	return d, nil
}

// defaultCatalogue is seeded when no workbook is given
func defaultCatalogue() *catalogue {
	dec := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }
	size := func(s string) *decimal.Decimal { d := dec(s); return &d }
	grade := func(g domain.QualityGrade) *domain.QualityGrade { return &g }

	return &catalogue{
		Materials: []materialRow{
			{Key: "amethyst-8", Name: "Amethyst 8mm", Type: domain.MaterialLooseBeads, Quality: grade(domain.GradeA),
				Size: size("8"), Quantity: 400, UnitCost: dec("0.35"), Supplier: "Donghai Crystal"},
			{Key: "rose-quartz-6", Name: "Rose Quartz 6mm", Type: domain.MaterialLooseBeads, Quality: grade(domain.GradeAA),
				Size: size("6"), Quantity: 600, UnitCost: dec("0.20"), Supplier: "Donghai Crystal"},
			{Key: "citrine-strand", Name: "Citrine Bracelet Strand", Type: domain.MaterialBracelet, Quality: grade(domain.GradeAB),
				Size: size("10"), Quantity: 180, UnitCost: dec("0.80"), Supplier: "Yiwu Beads"},
			{Key: "silver-clasp", Name: "Sterling Clasp", Type: domain.MaterialAccessories,
				Size: size("12"), Quantity: 50, UnitCost: dec("2.50"), Supplier: "Yiwu Beads"},
			{Key: "jade-pendant", Name: "Jade Pendant", Type: domain.MaterialFinishedMaterial, Quality: grade(domain.GradeA),
				Size: size("25"), Quantity: 12, UnitCost: dec("18.00"), Supplier: "Hetian Jade"},
		},
		Products: []productRow{
			{Name: "Amethyst Bracelet", SellingPrice: dec("68"), LaborCost: dec("5"), CraftCost: dec("2"), Quantity: 5,
				Recipe: []recipePart{{Key: "amethyst-8", Units: 22}, {Key: "silver-clasp", Units: 1}}},
			{Name: "Rose Quartz Bracelet", SellingPrice: dec("48"), LaborCost: dec("5"), CraftCost: dec("1"), Quantity: 8,
				Recipe: []recipePart{{Key: "rose-quartz-6", Units: 30}}},
			{Name: "Citrine Stack", SellingPrice: dec("88"), LaborCost: dec("8"), CraftCost: dec("2"), Quantity: 3,
				Recipe: []recipePart{{Key: "citrine-strand", Units: 18}, {Key: "rose-quartz-6", Units: 6}, {Key: "silver-clasp", Units: 1}}},
			{Name: "Jade Pendant", SellingPrice: dec("128"), LaborCost: dec("3"), Quantity: 4,
				Recipe: []recipePart{{Key: "jade-pendant", Units: 1}}},
		},
	}
}
