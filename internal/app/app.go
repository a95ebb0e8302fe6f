// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/ammerola/beadledger/internal/adapters/db"
	"github.com/ammerola/beadledger/internal/adapters/memory"
	"github.com/ammerola/beadledger/internal/adapters/queue"
	"github.com/ammerola/beadledger/internal/adapters/redis_adapter"
	"github.com/ammerola/beadledger/internal/core/ports"
	"github.com/ammerola/beadledger/internal/core/services"
	"github.com/ammerola/beadledger/internal/handlers"
	"github.com/ammerola/beadledger/internal/pkg/config"
)

// Options selects which optional pieces Build wires
type Options struct {
	// Migrate applies the schema before the store is used.
	Migrate bool
	// Publish enqueues post-commit tasks. Workers leave it off so they never enqueue work for themselves.
	Publish bool
}

// Dependencies holds everything a process needs to run the ledger
type Dependencies struct {
	Database    *db.Database
	Store       ports.Store
	Queries     ports.Queries
	RedisClient *redis.Client
	Cache       *redis_adapter.Cache
	Locker      *redis_adapter.Locker
	AsynqClient *asynq.Client
	Inspector   *asynq.Inspector
	Service     *services.LedgerService
}

// Build connects the configured backends and assembles the ledger service
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Dependencies, error) {
	deps := &Dependencies{}

	if err := deps.openStore(ctx, cfg, logger, opts.Migrate); err != nil {
		deps.Close()
		return nil, err
	}

	svcCfg, err := ServiceConfig(cfg)
	if err != nil {
		deps.Close()
		return nil, err
	}
	svcOpts := []services.Option{services.WithConfig(svcCfg)}

	if cfg.Redis.Enabled {
		logger.Info("connecting to Redis", slog.String("addr", cfg.GetRedisAddr()))
		deps.RedisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.GetRedisAddr(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
		if err := deps.RedisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, cache and locks will degrade",
				slog.String("error", err.Error()))
		}
		deps.Cache = redis_adapter.NewCache(deps.RedisClient, cfg.Ledger.CacheTTL, logger)
		deps.Locker = redis_adapter.NewLocker(deps.RedisClient, cfg.Ledger.LockTTL/2, logger)
		svcOpts = append(svcOpts, services.WithCache(deps.Cache), services.WithLocker(deps.Locker))
	}

	if cfg.Asynq.Enabled {
		redisOpt := AsynqRedisOpt(cfg)
		deps.Inspector = asynq.NewInspector(redisOpt)
		if opts.Publish {
			deps.AsynqClient = asynq.NewClient(redisOpt)
			pubCfg := queue.DefaultPublisherConfig()
			if cfg.Asynq.RetryMax > 0 {
				pubCfg.MaxRetry = cfg.Asynq.RetryMax
			}
			svcOpts = append(svcOpts, services.WithPublisher(queue.NewPublisher(deps.AsynqClient, pubCfg, logger)))
		}
	}

	deps.Service = services.NewLedgerService(deps.Store, deps.Queries, logger, svcOpts...)
	logger.Info("ledger service ready",
		slog.String("store", cfg.Ledger.StoreDriver),
		slog.Bool("cache", deps.Cache != nil),
		slog.Bool("publisher", deps.AsynqClient != nil))
	return deps, nil
}

func (d *Dependencies) openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, migrate bool) error {
	if cfg.UsesMemoryStore() {
		logger.Warn("using the in-memory store, data is lost on exit")
		store := memory.NewStore()
		d.Store, d.Queries = store, store
		return nil
	}

	logger.Info("connecting to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Name))

	database, err := db.NewDatabase(ctx, &db.Config{
		Host:               cfg.Database.Host,
		Port:               cfg.Database.Port,
		User:               cfg.Database.User,
		Password:           cfg.Database.Password,
		Database:           cfg.Database.Name,
		SSLMode:            cfg.Database.SSLMode,
		MaxConnections:     cfg.Database.MaxConnections,
		MinConnections:     cfg.Database.MinConnections,
		MaxConnLifetime:    cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:    cfg.Database.MaxConnIdleTime,
		HealthCheckPeriod:  cfg.Database.HealthCheckPeriod,
		ConnectTimeout:     cfg.Database.ConnectTimeout,
		EnableQueryLogging: cfg.Database.EnableQueryLogging,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	d.Database = database

	if migrate {
		if err := RunMigrations(ctx, cfg, logger); err != nil {
			return err
		}
	}

	d.Store = db.NewStore(database, db.TxConfig{
		Timeout:      cfg.Ledger.TxTimeout,
		MaxRetries:   cfg.Ledger.TxMaxRetries,
		RetryBackoff: db.DefaultTxConfig().RetryBackoff,
	}, logger)
	d.Queries = db.NewQueries(database, logger)
	return nil
}

// RunMigrations applies the schema, from MigrationPath when it is set
func RunMigrations(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("running database migrations")
	err := db.RunMigrationsWithRetry(ctx, &db.MigrationConfig{
		DatabaseURL: cfg.GetDatabaseURL(),
		SourcePath:  cfg.Database.MigrationPath,
		TableName:   "schema_migrations",
		SchemaName:  "public",
	}, logger, 3)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// ServiceConfig converts the ledger settings into the service's configuration
func ServiceConfig(cfg *config.Config) (services.Config, error) {
	loc, err := cfg.Ledger.Location()
	if err != nil {
		return services.Config{}, err
	}
	out := services.DefaultConfig()
	out.PriceTolerance = decimal.NewFromFloat(cfg.Ledger.PriceTolerance)
	out.Location = loc
	if cfg.Ledger.CacheTTL > 0 {
		out.CacheTTL = cfg.Ledger.CacheTTL
	}
	if cfg.Ledger.LockTTL > 0 {
		out.LockTTL = cfg.Ledger.LockTTL
	}
	return out, nil
}

// AsynqRedisOpt returns the connection settings shared by the client, inspector and server
func AsynqRedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Asynq.RedisAddr,
		Password: cfg.Asynq.RedisPassword,
		DB:       cfg.Asynq.RedisDB,
	}
}

// HealthHandler builds the health endpoints over whichever backends are configured
func (d *Dependencies) HealthHandler(version, environment string, logger *slog.Logger) *handlers.HealthHandler {
	var (
		database ports.Database
		cache    ports.CacheRepository
		queues   handlers.QueueInspector
	)
	if d.Database != nil {
		database = d.Database
	}
	if d.Cache != nil {
		cache = d.Cache
	}
	if d.Inspector != nil {
		queues = d.Inspector
	}
	return handlers.NewHealthHandler(database, cache, queues, version, environment, logger)
}

// Close releases every connection Build opened
func (d *Dependencies) Close() {
	if d.AsynqClient != nil {
		d.AsynqClient.Close()
	}
	if d.Inspector != nil {
		d.Inspector.Close()
	}
	if d.RedisClient != nil {
		d.RedisClient.Close()
	}
	if d.Database != nil {
		d.Database.Close()
	}
}
