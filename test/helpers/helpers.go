// test/helpers/helpers.go
package helpers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/beadledger/internal/adapters/db"
	"github.com/ammerola/beadledger/internal/adapters/memory"
	"github.com/ammerola/beadledger/internal/core/domain"
	"github.com/ammerola/beadledger/internal/core/ports"
	"github.com/ammerola/beadledger/internal/core/services"
	"github.com/ammerola/beadledger/internal/pkg/config"
)

// TestDB holds test database resources
type TestDB struct {
	PgxPool  *pgxpool.Pool
	Database *db.Database
	Resource *dockertest.Resource
	Pool     *dockertest.Pool
	Config   *db.Config
}

// TestRedis holds an in-process Redis
type TestRedis struct {
	Client *redis.Client
	Server *miniredis.Miniredis
}

// TestLogger creates a logger for testing
func TestLogger() *slog.Logger {
	level := slog.LevelError
	if testing.Verbose() {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// SetupTestDB starts Postgres in Docker and applies the embedded migrations.
// The test is skipped in -short mode or when Docker is unreachable.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	pool.MaxWait = 2 * time.Minute

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=test",
			"POSTGRES_PASSWORD=test",
			"POSTGRES_DB=test_beadledger",
			"listen_addresses = '*'",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	require.NoError(t, err, "Failed to start postgres container")
	require.NoError(t, resource.Expire(300))

	cfg := &db.Config{
		Host:              "localhost",
		Port:              resource.GetPort("5432/tcp"),
		User:              "test",
		Password:          "test",
		Database:          "test_beadledger",
		SSLMode:           "disable",
		MaxConnections:    20,
		MinConnections:    2,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   time.Minute,
		HealthCheckPeriod: time.Minute,
		ConnectTimeout:    10 * time.Second,
	}

	ctx := context.Background()
	logger := TestLogger()

	var database *db.Database
	err = pool.Retry(func() error {
		var err error
		database, err = db.NewDatabase(ctx, cfg, logger)
		if err != nil {
			return err
		}
		return database.Ping(ctx)
	})
	require.NoError(t, err, "Failed to connect to postgres")

	err = db.RunMigrationsWithRetry(ctx, &db.MigrationConfig{DatabaseURL: cfg.URL()}, logger, 3)
	require.NoError(t, err, "Failed to run migrations")

	t.Cleanup(func() {
		database.Close()
		if err := pool.Purge(resource); err != nil {
			t.Logf("Failed to purge postgres container: %v", err)
		}
	})

	return &TestDB{
		PgxPool:  database.Pool(),
		Database: database,
		Resource: resource,
		Pool:     pool,
		Config:   cfg,
	}
}

// SetupTestRedis creates an in-process Redis instance for testing
func SetupTestRedis(t *testing.T) *TestRedis {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		client.Close()
	})

	return &TestRedis{
		Client: client,
		Server: mr,
	}
}

// LoadTestConfig returns a test configuration
func LoadTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        "beadledger-test",
			Environment: "test",
			Version:     "test",
			LogLevel:    "debug",
			LogFormat:   "text",
			Debug:       true,
		},
		Database: config.DatabaseConfig{
			Host:           "localhost",
			Port:           "5432",
			User:           "test",
			Password:       "test",
			Name:           "test_beadledger",
			SSLMode:        "disable",
			MaxConnections: 10,
			MinConnections: 2,
		},
		Redis: config.RedisConfig{
			Host:     "localhost",
			Port:     "6379",
			PoolSize: 10,
		},
		Ledger: config.LedgerConfig{
			PriceTolerance: 0.05,
			TxTimeout:      5 * time.Second,
			TxMaxRetries:   3,
			CacheTTL:       time.Minute,
			LockTTL:        5 * time.Second,
			StoreDriver:    config.StoreDriverMemory,
			Timezone:       "UTC",
		},
		Security: config.SecurityConfig{
			RateLimitRequests: 100,
			RateLimitDuration: time.Minute,
			AllowedOrigins:    []string{"*"},
		},
		Server: config.ServerConfig{
			Host:         "localhost",
			Port:         "8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
	}
}

// NewTestService builds a ledger service on a fresh in-memory store
func NewTestService(t *testing.T, opts ...services.Option) (*services.LedgerService, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	cfg := services.DefaultConfig()
	cfg.Location = time.UTC
	opts = append([]services.Option{services.WithConfig(cfg)}, opts...)
	return services.NewLedgerService(store, store, TestLogger(), opts...), store
}

// NewMaterialRequest builds a batch purchase request
func NewMaterialRequest(name string, typ domain.MaterialType, quantity int, unitCost string,
	overrides ...func(*ports.CreateMaterialRequest)) ports.CreateMaterialRequest {
	req := ports.CreateMaterialRequest{
		Name:     name,
		Type:     typ,
		Quantity: quantity,
		UnitCost: decimal.RequireFromString(unitCost),
		Supplier: "Test Supplier",
		Actor:    domain.Actor{ID: "tester", Role: "BOSS"},
	}
	if typ.CountsBeads() {
		d := decimal.NewFromInt(8)
		req.BeadDiameter = &d
	} else {
		s := decimal.NewFromInt(10)
		req.Specification = &s
	}
	for _, override := range overrides {
		override(&req)
	}
	return req
}

// CreateMaterial registers a batch through svc
func CreateMaterial(t *testing.T, svc ports.LedgerService, name string, typ domain.MaterialType,
	quantity int, unitCost string) *domain.RawMaterialBatch {
	t.Helper()
	m, err := svc.CreateMaterialBatch(context.Background(), NewMaterialRequest(name, typ, quantity, unitCost))
	require.NoError(t, err, "Failed to create material %s", name)
	return m
}

// Usage is a per-unit recipe line for a production request
func Usage(m *domain.RawMaterialBatch, units int) ports.MaterialUsageRequest {
	u := ports.MaterialUsageRequest{PurchaseID: m.ID}
	if m.Type.CountsBeads() {
		u.QuantityUsedBeads = units
	} else {
		u.QuantityUsedPieces = units
	}
	return u
}

// NewProductionRequest builds a combination craft request
func NewProductionRequest(name, price string, quantity int, usages ...ports.MaterialUsageRequest) ports.ProductionRequest {
	return ports.ProductionRequest{
		Materials:    usages,
		ProductName:  name,
		SellingPrice: decimal.RequireFromString(price),
		LaborCost:    decimal.Zero,
		CraftCost:    decimal.Zero,
		Quantity:     quantity,
		Actor:        domain.Actor{ID: "tester", Role: "BOSS"},
	}
}

// AssertEventuallyWithTimeout asserts that a condition is met within a timeout
func AssertEventuallyWithTimeout(t *testing.T, condition func() bool, timeout time.Duration, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Errorf("Condition not met within %v: %s", timeout, msg)
}

// TruncateAllTables empties every ledger table. TRUNCATE does not fire the
// append-only row triggers.
func TruncateAllTables(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()
	tables := []string{
		"customer_purchases",
		"customers",
		"inventory_ledger",
		"material_ledger",
		"material_usage_records",
		"skus",
		"raw_material_batches",
	}

	for _, table := range tables {
		_, err := pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		require.NoError(t, err, "Failed to truncate table: %s", table)
	}
}
