// internal/core/services/ledger_service_test.go
package services_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/beadledger/internal/adapters/memory"
	"github.com/ammerola/beadledger/internal/adapters/redis_adapter"
	"github.com/ammerola/beadledger/internal/core/domain"
	"github.com/ammerola/beadledger/internal/core/ports"
	"github.com/ammerola/beadledger/internal/core/services"
	"github.com/ammerola/beadledger/test/helpers"
	"github.com/ammerola/beadledger/test/mocks"
)

// Scenario A and B: a new recipe creates a SKU, the identical recipe merges into it.
func TestLedgerService_FindOrCreateSKU_CreateThenMerge(t *testing.T) {
	svc, _ := helpers.NewTestService(t)
	ctx := context.Background()
	m := helpers.CreateMaterial(t, svc, "Amethyst 8mm", domain.MaterialLooseBeads, 100, "0.50")

	first, err := svc.FindOrCreateSKU(ctx, helpers.NewProductionRequest("Amethyst Bracelet", "100", 1, helpers.Usage(m, 10)))
	require.NoError(t, err)
	assert.True(t, first.IsNew)
	assert.Equal(t, 1, first.SKU.TotalQuantity)
	assert.Equal(t, 1, first.SKU.AvailableQuantity)
	assert.Equal(t, "5", first.SKU.Cost.MaterialCost.String())
	assert.Equal(t, domain.SKUStatusActive, first.SKU.Status)
	assert.Regexp(t, `^SKU\d{8}001$`, first.SKU.Code)

	ledger, err := svc.GetLedger(ctx, first.SKU.ID)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, domain.LedgerActionCreate, ledger[0].Action)
	assert.Equal(t, 0, ledger[0].QuantityBefore)
	assert.Equal(t, 1, ledger[0].QuantityAfter)

	second, err := svc.FindOrCreateSKU(ctx, helpers.NewProductionRequest("Amethyst Bracelet #2", "105", 1, helpers.Usage(m, 10)))
	require.NoError(t, err)
	assert.False(t, second.IsNew)
	assert.False(t, second.PriceFlagged, "a five percent difference is within tolerance")
	assert.Equal(t, first.SKU.ID, second.SKU.ID)
	assert.Equal(t, first.Signature, second.Signature)
	assert.Equal(t, 2, second.SKU.AvailableQuantity)
	assert.Equal(t, 2, second.SKU.TotalQuantity)
	assert.Equal(t, "100", second.SKU.SellingPrice.String(), "merge never overwrites the price")
	assert.Contains(t, second.Ledger.Note, "merged by signature")

	material, err := svc.GetMaterial(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 80, material.RemainingQuantity)
}

func TestLedgerService_FindOrCreateSKU_PriceFlagged(t *testing.T) {
	svc, _ := helpers.NewTestService(t)
	ctx := context.Background()
	m := helpers.CreateMaterial(t, svc, "Rose Quartz 6mm", domain.MaterialLooseBeads, 100, "0.20")

	_, err := svc.FindOrCreateSKU(ctx, helpers.NewProductionRequest("Rose Bracelet", "100", 1, helpers.Usage(m, 10)))
	require.NoError(t, err)

	res, err := svc.FindOrCreateSKU(ctx, helpers.NewProductionRequest("Rose Bracelet", "120", 1, helpers.Usage(m, 10)))
	require.NoError(t, err)
	assert.True(t, res.PriceFlagged)
	assert.Equal(t, "100", res.SKU.SellingPrice.String())
}

func TestLedgerService_FindOrCreateSKU_DifferentRecipesStaySeparate(t *testing.T) {
	svc, _ := helpers.NewTestService(t)
	ctx := context.Background()
	m := helpers.CreateMaterial(t, svc, "Amethyst 8mm", domain.MaterialLooseBeads, 100, "0.50")
	clasp := helpers.CreateMaterial(t, svc, "Clasp", domain.MaterialAccessories, 10, "2")

	a, err := svc.FindOrCreateSKU(ctx, helpers.NewProductionRequest("Bracelet", "50", 1, helpers.Usage(m, 10)))
	require.NoError(t, err)
	b, err := svc.FindOrCreateSKU(ctx, helpers.NewProductionRequest("Bracelet", "50", 1, helpers.Usage(m, 10), helpers.Usage(clasp, 1)))
	require.NoError(t, err)
	c, err := svc.FindOrCreateSKU(ctx, helpers.NewProductionRequest("Bracelet", "50", 1, helpers.Usage(m, 12)))
	require.NoError(t, err)

	assert.True(t, b.IsNew)
	assert.True(t, c.IsNew)
	assert.NotEqual(t, a.SKU.ID, b.SKU.ID)
	assert.NotEqual(t, a.SKU.ID, c.SKU.ID)
	assert.True(t, strings.HasSuffix(c.SKU.Code, "003"))
}

func TestLedgerService_FindOrCreateSKU_SameAttributesDifferentBatch(t *testing.T) {
	svc, _ := helpers.NewTestService(t)
	ctx := context.Background()
	m1 := helpers.CreateMaterial(t, svc, "Amethyst 8mm", domain.MaterialLooseBeads, 100, "0.50")
	m2 := helpers.CreateMaterial(t, svc, "Amethyst 8mm", domain.MaterialLooseBeads, 100, "0.65")

	a, err := svc.FindOrCreateSKU(ctx, helpers.NewProductionRequest("Bracelet", "50", 1, helpers.Usage(m1, 10)))
	require.NoError(t, err)
	b, err := svc.FindOrCreateSKU(ctx, helpers.NewProductionRequest("Bracelet", "50", 1, helpers.Usage(m2, 10)))
	require.NoError(t, err)

	assert.False(t, b.IsNew, "signatures hash attributes, not batch identity")
	assert.Equal(t, a.SKU.ID, b.SKU.ID)
	assert.Equal(t, 2, b.SKU.AvailableQuantity)
}

func TestLedgerService_FindOrCreateSKU_Errors(t *testing.T) {
	tests := []struct {
		name    string
		request func(m, clasp *domain.RawMaterialBatch) ports.ProductionRequest
		wantErr error
	}{
		{
			name: "insufficient_material_lists_every_shortfall",
			request: func(m, clasp *domain.RawMaterialBatch) ports.ProductionRequest {
				return helpers.NewProductionRequest("Bracelet", "50", 11, helpers.Usage(m, 10), helpers.Usage(clasp, 1))
			},
			wantErr: domain.ErrInsufficientMaterial,
		},
		{
			name: "unknown_material",
			request: func(m, clasp *domain.RawMaterialBatch) ports.ProductionRequest {
				return helpers.NewProductionRequest("Bracelet", "50", 1,
					ports.MaterialUsageRequest{PurchaseID: uuid.New(), QuantityUsedBeads: 1})
			},
			wantErr: domain.ErrNotFound,
		},
		{
			name: "duplicate_material",
			request: func(m, clasp *domain.RawMaterialBatch) ports.ProductionRequest {
				return helpers.NewProductionRequest("Bracelet", "50", 1, helpers.Usage(m, 1), helpers.Usage(m, 2))
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "no_materials",
			request: func(m, clasp *domain.RawMaterialBatch) ports.ProductionRequest {
				return helpers.NewProductionRequest("Bracelet", "50", 1)
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "name_only_batch_suffix",
			request: func(m, clasp *domain.RawMaterialBatch) ports.ProductionRequest {
				return helpers.NewProductionRequest("#4", "50", 1, helpers.Usage(m, 1))
			},
			wantErr: domain.ErrValidation,
		},
		{
			name: "negative_price",
			request: func(m, clasp *domain.RawMaterialBatch) ports.ProductionRequest {
				return helpers.NewProductionRequest("Bracelet", "-1", 1, helpers.Usage(m, 1))
			},
			wantErr: domain.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := helpers.NewTestService(t)
			ctx := context.Background()
			m := helpers.CreateMaterial(t, svc, "Amethyst 8mm", domain.MaterialLooseBeads, 100, "0.50")
			clasp := helpers.CreateMaterial(t, svc, "Clasp", domain.MaterialAccessories, 10, "2")

			_, err := svc.FindOrCreateSKU(ctx, tt.request(m, clasp))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			after, err := svc.GetMaterial(ctx, m.ID)
			require.NoError(t, err)
			assert.Equal(t, 100, after.RemainingQuantity, "nothing is consumed when production fails")

			skus, err := svc.ListSKUs(ctx, ports.SKUListParams{})
			require.NoError(t, err)
			assert.Zero(t, skus.TotalCount)
		})
	}
}

func TestLedgerService_FindOrCreateSKU_ShortfallDetails(t *testing.T) {
	svc, _ := helpers.NewTestService(t)
	m := helpers.CreateMaterial(t, svc, "Amethyst 8mm", domain.MaterialLooseBeads, 100, "0.50")
	clasp := helpers.CreateMaterial(t, svc, "Clasp", domain.MaterialAccessories, 10, "2")

	_, err := svc.FindOrCreateSKU(context.Background(),
		helpers.NewProductionRequest("Bracelet", "50", 11, helpers.Usage(m, 10), helpers.Usage(clasp, 1)))

	var matErr *domain.InsufficientMaterialError
	require.ErrorAs(t, err, &matErr)
	require.Len(t, matErr.Shortfalls, 2)
	assert.Equal(t, 110, matErr.Shortfalls[0].Required)
	assert.Equal(t, 10, matErr.Shortfalls[0].Missing())
	assert.Equal(t, 1, matErr.Shortfalls[1].Missing())
}

func TestLedgerService_DirectTransform(t *testing.T) {
	svc, _ := helpers.NewTestService(t)
	ctx := context.Background()
	pendant := helpers.CreateMaterial(t, svc, "Citrine Pendant", domain.MaterialFinishedMaterial, 5, "30")
	beads := helpers.CreateMaterial(t, svc, "Amethyst 8mm", domain.MaterialLooseBeads, 100, "0.50")

	res, err := svc.DirectTransform(ctx, ports.DirectTransformRequest{
		PurchaseID:   pendant.ID,
		Quantity:     3,
		SellingPrice: decimal.NewFromInt(60),
		Actor:        domain.Actor{ID: "tester", Role: "BOSS"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Citrine Pendant", res.SKU.Name)
	assert.Equal(t, 3, res.SKU.AvailableQuantity)
	assert.Equal(t, "30", res.SKU.Cost.MaterialCost.String())
	assert.Equal(t, "50", res.SKU.ProfitMargin.String())
	require.Len(t, res.Consumed, 1)
	assert.Equal(t, 2, res.Consumed[0].RemainingAfter)

	_, err = svc.DirectTransform(ctx, ports.DirectTransformRequest{PurchaseID: beads.ID, SellingPrice: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.DirectTransform(ctx, ports.DirectTransformRequest{PurchaseID: pendant.ID, Quantity: 3})
	assert.ErrorIs(t, err, domain.ErrInsufficientMaterial)
}

func TestLedgerService_DirectTransform_NameWithOnlyBatchSuffix(t *testing.T) {
	svc, _ := helpers.NewTestService(t)
	ctx := context.Background()
	numbered := helpers.CreateMaterial(t, svc, "#3", domain.MaterialFinishedMaterial, 5, "30")

	for _, name := range []string{"", "#7"} {
		_, err := svc.DirectTransform(ctx, ports.DirectTransformRequest{
			PurchaseID:   numbered.ID,
			ProductName:  name,
			SellingPrice: decimal.NewFromInt(60),
		})
		assert.ErrorIs(t, err, domain.ErrValidation, "product name %q", name)
	}

	after, err := svc.GetMaterial(ctx, numbered.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, after.RemainingQuantity)
	skus, err := svc.ListSKUs(ctx, ports.SKUListParams{})
	require.NoError(t, err)
	assert.Zero(t, skus.TotalCount)

	res, err := svc.DirectTransform(ctx, ports.DirectTransformRequest{
		PurchaseID:   numbered.ID,
		ProductName:  "Charm",
		SellingPrice: decimal.NewFromInt(60),
	})
	require.NoError(t, err)
	assert.Equal(t, "Charm", res.SKU.Name)
}

func TestLedgerService_CreateMaterialBatch(t *testing.T) {
	svc, _ := helpers.NewTestService(t)
	ctx := context.Background()

	first := helpers.CreateMaterial(t, svc, "Amethyst 8mm", domain.MaterialLooseBeads, 100, "0.50")
	second := helpers.CreateMaterial(t, svc, "Clasp", domain.MaterialAccessories, 10, "2")
	assert.Regexp(t, `^PUR\d{8}001$`, first.Code)
	assert.Regexp(t, `^PUR\d{8}002$`, second.Code)
	assert.Equal(t, 100, first.RemainingQuantity)

	entries, err := svc.GetMaterialLedger(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.MaterialActionPurchase, entries[0].Action)
	assert.Equal(t, 100, entries[0].QuantityAfter)

	tests := []struct {
		name     string
		override func(*ports.CreateMaterialRequest)
	}{
		{name: "unknown_type", override: func(r *ports.CreateMaterialRequest) { r.Type = "PLASTIC" }},
		{name: "unknown_grade", override: func(r *ports.CreateMaterialRequest) { g := domain.QualityGrade("Z"); r.Quality = &g }},
		{name: "zero_quantity", override: func(r *ports.CreateMaterialRequest) { r.Quantity = 0 }},
		{name: "negative_cost", override: func(r *ports.CreateMaterialRequest) { r.UnitCost = decimal.NewFromInt(-1) }},
		{name: "missing_name", override: func(r *ports.CreateMaterialRequest) { r.Name = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateMaterialBatch(ctx,
				helpers.NewMaterialRequest("Beads", domain.MaterialLooseBeads, 10, "1", tt.override))
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestLedgerService_DailyCodesFollowConfiguredDay(t *testing.T) {
	day := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	clock := day
	svc, _ := helpers.NewTestService(t, services.WithClock(func() time.Time { return clock }))

	m := helpers.CreateMaterial(t, svc, "Amethyst 8mm", domain.MaterialLooseBeads, 100, "0.50")
	assert.Equal(t, "PUR20240315001", m.Code)

	clock = day.Add(24 * time.Hour)
	next := helpers.CreateMaterial(t, svc, "Amethyst 8mm", domain.MaterialLooseBeads, 100, "0.50")
	assert.Equal(t, "PUR20240316001", next.Code, "the sequence restarts every day")
}

func TestLedgerService_ConcurrentIdenticalProduction(t *testing.T) {
	svc, _ := helpers.NewTestService(t)
	ctx := context.Background()
	m := helpers.CreateMaterial(t, svc, "Amethyst 8mm", domain.MaterialLooseBeads, 1000, "0.50")

	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.FindOrCreateSKU(ctx, helpers.NewProductionRequest("Bracelet", "50", 1, helpers.Usage(m, 10)))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	skus, err := svc.ListSKUs(ctx, ports.SKUListParams{})
	require.NoError(t, err)
	require.Equal(t, int64(1), skus.TotalCount)
	assert.Equal(t, workers, skus.Items[0].AvailableQuantity)

	report, err := svc.VerifyLedger(ctx, skus.Items[0].ID)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, workers, report.Entries)

	material, err := svc.GetMaterial(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 1000-workers*10, material.RemainingQuantity)
}

func TestLedgerService_PublishesAfterCommit(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockEventPublisher(ctrl)
	svc, _ := helpers.NewTestService(t, services.WithPublisher(publisher))
	ctx := context.Background()
	m := helpers.CreateMaterial(t, svc, "Amethyst 8mm", domain.MaterialLooseBeads, 100, "0.50")

	publisher.EXPECT().PublishLedgerVerify(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	publisher.EXPECT().
		PublishStockDepleted(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, event ports.StockDepletedEvent) error {
			assert.Equal(t, "SELL", event.Action)
			assert.NotEmpty(t, event.SKUCode)
			return nil
		}).
		Times(1)

	res, err := svc.CombinationCraft(ctx, helpers.NewProductionRequest("Bracelet", "50", 1, helpers.Usage(m, 10)))
	require.NoError(t, err)

	_, err = svc.Sell(ctx, res.SKU.ID, ports.SellRequest{Quantity: 1, CustomerName: "Lin"})
	require.NoError(t, err)
}

func TestLedgerService_PublishFailureDoesNotFailOperation(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockEventPublisher(ctrl)
	svc, _ := helpers.NewTestService(t, services.WithPublisher(publisher))
	m := helpers.CreateMaterial(t, svc, "Amethyst 8mm", domain.MaterialLooseBeads, 100, "0.50")

	publisher.EXPECT().PublishLedgerVerify(gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

	res, err := svc.CombinationCraft(context.Background(), helpers.NewProductionRequest("Bracelet", "50", 1, helpers.Usage(m, 10)))
	require.NoError(t, err)
	assert.Equal(t, 1, res.SKU.AvailableQuantity)
}

func TestLedgerService_NoPublishOnFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockEventPublisher(ctrl)
	svc, _ := helpers.NewTestService(t, services.WithPublisher(publisher))
	m := helpers.CreateMaterial(t, svc, "Amethyst 8mm", domain.MaterialLooseBeads, 5, "0.50")

	// no expectations: any call fails the test
	_, err := svc.CombinationCraft(context.Background(), helpers.NewProductionRequest("Bracelet", "50", 1, helpers.Usage(m, 10)))
	assert.ErrorIs(t, err, domain.ErrInsufficientMaterial)
}

func TestLedgerService_SignatureLock(t *testing.T) {
	ctrl := gomock.NewController(t)
	locker := mocks.NewMockLocker(ctrl)
	lock := mocks.NewMockLock(ctrl)
	svc, _ := helpers.NewTestService(t, services.WithLocker(locker))
	ctx := context.Background()
	m := helpers.CreateMaterial(t, svc, "Amethyst 8mm", domain.MaterialLooseBeads, 100, "0.50")

	var lockedKey string
	locker.EXPECT().
		TryLock(gomock.Any(), gomock.Any(), 10*time.Second).
		DoAndReturn(func(_ context.Context, key string, _ time.Duration) (ports.Lock, error) {
			lockedKey = key
			return lock, nil
		})
	lock.EXPECT().Release(gomock.Any()).Return(nil)

	res, err := svc.CombinationCraft(ctx, helpers.NewProductionRequest("Bracelet", "50", 1, helpers.Usage(m, 10)))
	require.NoError(t, err)
	assert.Equal(t, "lock:sku-signature:"+res.Signature, lockedKey)

	locker.EXPECT().TryLock(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, ports.ErrLockNotObtained)
	res, err = svc.CombinationCraft(ctx, helpers.NewProductionRequest("Bracelet", "50", 1, helpers.Usage(m, 10)))
	require.NoError(t, err, "the lock is best effort")
	assert.Equal(t, 2, res.SKU.AvailableQuantity)
}

func TestLedgerService_CacheInvalidation(t *testing.T) {
	rdb := helpers.SetupTestRedis(t)
	cache := redis_adapter.NewCache(rdb.Client, time.Minute, helpers.TestLogger())
	svc, _ := helpers.NewTestService(t, services.WithCache(cache))
	ctx := context.Background()
	m := helpers.CreateMaterial(t, svc, "Amethyst 8mm", domain.MaterialLooseBeads, 100, "0.50")

	res, err := svc.CombinationCraft(ctx, helpers.NewProductionRequest("Bracelet", "50", 2, helpers.Usage(m, 10)))
	require.NoError(t, err)
	key := "sku:" + res.SKU.ID.String()

	cached, err := svc.GetSKU(ctx, res.SKU.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, cached.AvailableQuantity)
	assert.True(t, rdb.Server.Exists(key))

	_, err = svc.Sell(ctx, res.SKU.ID, ports.SellRequest{Quantity: 1, CustomerName: "Lin"})
	require.NoError(t, err)
	assert.False(t, rdb.Server.Exists(key), "a committed sale drops the cached copy")

	fresh, err := svc.GetSKU(ctx, res.SKU.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.AvailableQuantity)
}

func TestLedgerService_CacheIgnoresCopiesLoadedBeforeCommit(t *testing.T) {
	rdb := helpers.SetupTestRedis(t)
	cache := redis_adapter.NewCache(rdb.Client, time.Minute, helpers.TestLogger())
	svc, _ := helpers.NewTestService(t, services.WithCache(cache))
	ctx := context.Background()
	m := helpers.CreateMaterial(t, svc, "Amethyst 8mm", domain.MaterialLooseBeads, 100, "0.50")

	res, err := svc.CombinationCraft(ctx, helpers.NewProductionRequest("Bracelet", "50", 2, helpers.Usage(m, 10)))
	require.NoError(t, err)
	stale, err := svc.GetSKU(ctx, res.SKU.ID)
	require.NoError(t, err)
	require.Equal(t, 2, stale.AvailableQuantity)

	_, err = svc.Sell(ctx, res.SKU.ID, ports.SellRequest{Quantity: 1, CustomerName: "Lin"})
	require.NoError(t, err)

	// a reader that loaded the row before the sale committed stores it after the invalidation
	require.NoError(t, cache.SetWithTTL(ctx, "sku:"+res.SKU.ID.String(), stale, time.Minute))

	fresh, err := svc.GetSKU(ctx, res.SKU.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.AvailableQuantity)

	_, err = svc.Sell(ctx, res.SKU.ID, ports.SellRequest{Quantity: 1, CustomerName: "Lin"})
	require.NoError(t, err)
	again, err := svc.GetSKU(ctx, res.SKU.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.AvailableQuantity, "every commit retires the previous generation")
}

func TestLedgerService_CacheFailureFallsBackToStore(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })
	cache := redis_adapter.NewCache(client, time.Minute, helpers.TestLogger())
	svc, _ := helpers.NewTestService(t, services.WithCache(cache))
	ctx := context.Background()
	m := helpers.CreateMaterial(t, svc, "Amethyst 8mm", domain.MaterialLooseBeads, 100, "0.50")

	res, err := svc.CombinationCraft(ctx, helpers.NewProductionRequest("Bracelet", "50", 1, helpers.Usage(m, 10)))
	require.NoError(t, err, "cache invalidation failures only log")

	sku, err := svc.GetSKU(ctx, res.SKU.ID)
	require.NoError(t, err)
	assert.Equal(t, res.SKU.Code, sku.Code)
}

func BenchmarkLedgerService_CombinationCraft(b *testing.B) {
	store := memory.NewStore()
	cfg := services.DefaultConfig()
	cfg.Location = time.UTC
	svc := services.NewLedgerService(store, store,
		slog.New(slog.NewTextHandler(io.Discard, nil)), services.WithConfig(cfg))
	ctx := context.Background()

	m, err := svc.CreateMaterialBatch(ctx, helpers.NewMaterialRequest("Amethyst 8mm", domain.MaterialLooseBeads, b.N*10+10, "0.50"))
	require.NoError(b, err)
	req := helpers.NewProductionRequest("Bracelet", "50", 1, helpers.Usage(m, 10))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.CombinationCraft(ctx, req); err != nil {
			b.Fatal(err)
		}
	}
}
