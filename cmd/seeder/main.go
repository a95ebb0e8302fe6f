// cmd/seeder/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ammerola/beadledger/internal/app"
	"github.com/ammerola/beadledger/internal/core/domain"
	"github.com/ammerola/beadledger/internal/core/ports"
	"github.com/ammerola/beadledger/internal/pkg/config"
	"github.com/ammerola/beadledger/internal/pkg/logger"
)

var seedActor = domain.Actor{ID: "seeder", Role: "BOSS"}

func main() {
	var (
		workbook = flag.String("workbook", "", "Excel workbook with materials and products sheets (built-in catalogue when empty)")
		logLevel = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		dryRun   = flag.Bool("dry-run", false, "Print what would be seeded without writing")
		migrate  = flag.Bool("migrate", false, "Apply database migrations first")
	)
	flag.Parse()

	slogger := logger.SetupLogger(logger.LogConfig{Level: *logLevel, Format: "text", ServiceName: "beadledger-seeder"})

	cat := defaultCatalogue()
	if *workbook != "" {
		loaded, err := loadWorkbook(*workbook)
		if err != nil {
			slogger.Error("failed to load workbook", slog.String("error", err.Error()))
			os.Exit(1)
		}
		cat = loaded
	}
	slogger.Info("catalogue loaded",
		slog.Int("materials", len(cat.Materials)),
		slog.Int("products", len(cat.Products)))

	if *dryRun {
		printCatalogue(cat)
		fmt.Println("\n[DRY RUN] No changes were made")
		return
	}

	ctx := context.Background()
	cfg, err := config.Load(ctx, slogger)
	if err != nil {
		slogger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.UsesMemoryStore() {
		slogger.Warn("seeding the in-memory store, nothing will persist after exit")
	}

	deps, err := app.Build(ctx, cfg, slogger, app.Options{Migrate: *migrate})
	if err != nil {
		slogger.Error("failed to initialize dependencies", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer deps.Close()

	summary, err := seed(ctx, deps.Service, cat, slogger)
	printSummary(summary)
	if err != nil {
		slogger.Error("seed operation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slogger.Info("seed operation completed",
		slog.Int("materials_created", len(summary.Materials)),
		slog.Int("skus_produced", len(summary.Products)))
}

// seedSummary records what seed created
type seedSummary struct {
	Materials map[string]string // key -> material code
	Products  []string
	Failed    []string
}

// seed registers every material then runs every production. Production failures are
// collected so one bad recipe does not stop the rest.
func seed(ctx context.Context, svc ports.LedgerService, cat *catalogue, logger *slog.Logger) (*seedSummary, error) {
	summary := &seedSummary{Materials: make(map[string]string)}
	byKey := make(map[string]*domain.RawMaterialBatch, len(cat.Materials))

	for _, row := range cat.Materials {
		if _, dup := byKey[row.Key]; dup {
			return summary, fmt.Errorf("material key %q is listed twice", row.Key)
		}
		m, err := svc.CreateMaterialBatch(ctx, materialRequest(row))
		if err != nil {
			return summary, fmt.Errorf("material %s: %w", row.Key, err)
		}
		byKey[row.Key] = m
		summary.Materials[row.Key] = m.Code
	}

	for _, row := range cat.Products {
		result, err := produce(ctx, svc, row, byKey)
		if err != nil {
			logger.Warn("production failed",
				slog.String("product", row.Name),
				slog.String("error", err.Error()))
			summary.Failed = append(summary.Failed, fmt.Sprintf("%s: %v", row.Name, err))
			continue
		}
		summary.Products = append(summary.Products,
			fmt.Sprintf("%s %s (available %d)", result.SKU.Code, result.SKU.Name, result.SKU.AvailableQuantity))
	}
	return summary, nil
}

func materialRequest(row materialRow) ports.CreateMaterialRequest {
	req := ports.CreateMaterialRequest{
		Name:     row.Name,
		Type:     row.Type,
		Quality:  row.Quality,
		Quantity: row.Quantity,
		UnitCost: row.UnitCost,
		Supplier: row.Supplier,
		Actor:    seedActor,
	}
	if row.Type.CountsBeads() {
		req.BeadDiameter = row.Size
	} else {
		req.Specification = row.Size
	}
	return req
}

// produce uses a direct transform for a single finished material, and a combination craft otherwise
func produce(ctx context.Context, svc ports.LedgerService, row productRow,
	byKey map[string]*domain.RawMaterialBatch) (*ports.ProductionResult, error) {

	usages := make([]ports.MaterialUsageRequest, 0, len(row.Recipe))
	for _, part := range row.Recipe {
		m, ok := byKey[part.Key]
		if !ok {
			return nil, fmt.Errorf("unknown material key %q", part.Key)
		}
		u := ports.MaterialUsageRequest{PurchaseID: m.ID}
		if m.Type.CountsBeads() {
			u.QuantityUsedBeads = part.Units
		} else {
			u.QuantityUsedPieces = part.Units
		}
		usages = append(usages, u)
	}

	if len(row.Recipe) == 1 && row.Recipe[0].Units == 1 &&
		byKey[row.Recipe[0].Key].Type == domain.MaterialFinishedMaterial {
		return svc.DirectTransform(ctx, ports.DirectTransformRequest{
			PurchaseID:   usages[0].PurchaseID,
			Quantity:     row.Quantity,
			ProductName:  row.Name,
			SellingPrice: row.SellingPrice,
			LaborCost:    row.LaborCost,
			CraftCost:    row.CraftCost,
			Actor:        seedActor,
		})
	}

	return svc.CombinationCraft(ctx, ports.ProductionRequest{
		Materials:    usages,
		ProductName:  row.Name,
		SellingPrice: row.SellingPrice,
		LaborCost:    row.LaborCost,
		CraftCost:    row.CraftCost,
		Quantity:     row.Quantity,
		Actor:        seedActor,
	})
}

func printCatalogue(cat *catalogue) {
	fmt.Println("Materials:")
	for _, m := range cat.Materials {
		fmt.Printf("  - %-16s %-26s %-18s qty %-5d @ %s\n", m.Key, m.Name, m.Type, m.Quantity, m.UnitCost.StringFixed(2))
	}
	fmt.Println("Products:")
	for _, p := range cat.Products {
		parts := make([]string, 0, len(p.Recipe))
		for _, r := range p.Recipe {
			parts = append(parts, fmt.Sprintf("%s:%d", r.Key, r.Units))
		}
		fmt.Printf("  - %-24s x%-3d @ %s  [%s]\n", p.Name, p.Quantity, p.SellingPrice.StringFixed(2), strings.Join(parts, "; "))
	}
}

func printSummary(s *seedSummary) {
	if s == nil {
		return
	}
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("SEED SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Material batches created: %d\n", len(s.Materials))
	for key, code := range s.Materials {
		fmt.Printf("  - %s: %s\n", key, code)
	}
	fmt.Printf("SKUs produced: %d\n", len(s.Products))
	for _, p := range s.Products {
		fmt.Printf("  - %s\n", p)
	}
	if len(s.Failed) > 0 {
		fmt.Printf("Failed productions: %d\n", len(s.Failed))
		for _, f := range s.Failed {
			fmt.Printf("  - %s\n", f)
		}
	}
}
