// internal/pkg/config/config.go
package config

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Asynq    AsynqConfig
	AWS      AWSConfig
	Ledger   LedgerConfig
	Notify   NotifyConfig
	Security SecurityConfig
	Server   ServerConfig
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string
	Environment string // development, staging, production
	Version     string
	LogLevel    string
	LogFormat   string // json, text
	Debug       bool
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host               string `required:"true"`
	Port               string
	User               string
	Password           string
	Name               string `required:"true"`
	SSLMode            string
	MaxConnections     int32
	MinConnections     int32
	MaxConnLifetime    time.Duration
	MaxConnIdleTime    time.Duration
	HealthCheckPeriod  time.Duration
	ConnectTimeout     time.Duration
	EnableQueryLogging bool
	AutoMigrate        bool
	// MigrationPath overrides the migrations compiled into the binary.
	MigrationPath string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	Enabled      bool
}

// AsynqConfig holds Asynq configuration
type AsynqConfig struct {
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	Concurrency     int
	Queues          map[string]int // queue name -> priority
	StrictPriority  bool
	RetryMax        int
	ShutdownTimeout time.Duration
	Enabled         bool
}

// AWSConfig holds AWS configuration. When SecretName is set, secrets are read from Secrets Manager.
type AWSConfig struct {
	Region     string
	SecretName string
}

// LedgerConfig tunes SKU resolution and the transactional store
type LedgerConfig struct {
	// PriceTolerance is the relative selling-price difference above which a merge is flagged.
	PriceTolerance float64
	TxTimeout      time.Duration
	TxMaxRetries   int
	CacheTTL       time.Duration
	LockTTL        time.Duration
	// StoreDriver selects the persistence backend: postgres or memory.
	StoreDriver string
	Timezone    string
}

// Location resolves Timezone, falling back to the process location
func (l LedgerConfig) Location() (*time.Location, error) {
	if l.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid ledger timezone %q: %w", l.Timezone, err)
	}
	return loc, nil
}

// NotifyConfig configures stock depletion emails. An empty SMTPHost disables sending.
type NotifyConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	From         string
	To           []string
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	RateLimitRequests int
	RateLimitDuration time.Duration
	AllowedOrigins    []string
	SecureHeaders     bool
	RequestIDHeader   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string `required:"true"`
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	MaxHeaderBytes  int
	GracefulTimeout time.Duration
}

// Load loads configuration from the environment, a .env file in development,
// and AWS Secrets Manager when AWS_SECRET_NAME is set.
func Load(ctx context.Context, logger *slog.Logger) (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	env := v.GetString("app.env")
	if env == "development" || env == "local" {
		if err := godotenv.Load(); err != nil {
			logger.Debug("no .env file found, using environment variables",
				slog.String("error", err.Error()))
		} else {
			logger.Info(".env file loaded successfully")
		}
	}

	cfg := fromViper(v)

	if cfg.AWS.SecretName != "" {
		sm, err := NewAWSSecretsManager(ctx, cfg.AWS.Region, cfg.AWS.SecretName, logger)
		if err != nil {
			return nil, err
		}
		if err := ApplySecrets(ctx, cfg, sm); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	env := v.GetString("app.env")
	redisAddr := fmt.Sprintf("%s:%s", v.GetString("redis.host"), v.GetString("redis.port"))

	return &Config{
		App: AppConfig{
			Name:        v.GetString("app.name"),
			Environment: env,
			Version:     v.GetString("app.version"),
			LogLevel:    v.GetString("log.level"),
			LogFormat:   v.GetString("log.format"),
			Debug:       v.GetBool("app.debug"),
		},
		Database: DatabaseConfig{
			Host:               v.GetString("db.host"),
			Port:               v.GetString("db.port"),
			User:               v.GetString("db.user"),
			Password:           v.GetString("db.password"),
			Name:               v.GetString("db.name"),
			SSLMode:            v.GetString("db.ssl_mode"),
			MaxConnections:     v.GetInt32("db.max_connections"),
			MinConnections:     v.GetInt32("db.min_connections"),
			MaxConnLifetime:    v.GetDuration("db.connection_lifetime"),
			MaxConnIdleTime:    v.GetDuration("db.idle_time"),
			HealthCheckPeriod:  v.GetDuration("db.health_check_period"),
			ConnectTimeout:     v.GetDuration("db.connect_timeout"),
			EnableQueryLogging: v.GetBool("db.query_logging"),
			AutoMigrate:        v.GetBool("db.auto_migrate"),
			MigrationPath:      v.GetString("db.migration_path"),
		},
		Redis: RedisConfig{
			Host:         v.GetString("redis.host"),
			Port:         v.GetString("redis.port"),
			Password:     v.GetString("redis.password"),
			DB:           v.GetInt("redis.db"),
			MaxRetries:   v.GetInt("redis.max_retries"),
			DialTimeout:  v.GetDuration("redis.dial_timeout"),
			ReadTimeout:  v.GetDuration("redis.read_timeout"),
			WriteTimeout: v.GetDuration("redis.write_timeout"),
			PoolSize:     v.GetInt("redis.pool_size"),
			MinIdleConns: v.GetInt("redis.min_idle_conns"),
			Enabled:      v.GetBool("redis.enabled"),
		},
		Asynq: AsynqConfig{
			RedisAddr:       redisAddr,
			RedisPassword:   v.GetString("redis.password"),
			RedisDB:         v.GetInt("asynq.redis_db"),
			Concurrency:     v.GetInt("asynq.concurrency"),
			Queues:          parseQueues(v.GetString("asynq.queues")),
			StrictPriority:  v.GetBool("asynq.strict_priority"),
			RetryMax:        v.GetInt("asynq.retry_max"),
			ShutdownTimeout: v.GetDuration("asynq.shutdown_timeout"),
			Enabled:         v.GetBool("asynq.enabled"),
		},
		AWS: AWSConfig{
			Region:     v.GetString("aws.region"),
			SecretName: v.GetString("aws.secret_name"),
		},
		Ledger: LedgerConfig{
			PriceTolerance: v.GetFloat64("ledger.price_tolerance"),
			TxTimeout:      v.GetDuration("ledger.tx_timeout"),
			TxMaxRetries:   v.GetInt("ledger.tx_max_retries"),
			CacheTTL:       v.GetDuration("ledger.cache_ttl"),
			LockTTL:        v.GetDuration("ledger.lock_ttl"),
			StoreDriver:    v.GetString("ledger.store_driver"),
			Timezone:       v.GetString("ledger.timezone"),
		},
		Notify: NotifyConfig{
			SMTPHost:     v.GetString("smtp.host"),
			SMTPPort:     v.GetInt("smtp.port"),
			SMTPUsername: v.GetString("smtp.username"),
			SMTPPassword: v.GetString("smtp.password"),
			From:         v.GetString("notify.from"),
			To:           splitList(v.GetString("notify.email")),
		},
		Security: SecurityConfig{
			RateLimitRequests: v.GetInt("rate_limit.requests"),
			RateLimitDuration: v.GetDuration("rate_limit.duration"),
			AllowedOrigins:    splitList(v.GetString("allowed.origins")),
			SecureHeaders:     v.GetBool("secure.headers"),
			RequestIDHeader:   v.GetString("request_id.header"),
		},
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetString("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			IdleTimeout:     v.GetDuration("server.idle_timeout"),
			MaxHeaderBytes:  v.GetInt("server.max_header_bytes"),
			GracefulTimeout: v.GetDuration("server.graceful_timeout"),
		},
	}
}

// Validate runs the validators that apply to the configured environment
func (c *Config) Validate() error {
	validators := []Validator{&BasicValidator{}, &LedgerValidator{}}
	if c.IsProduction() {
		validators = append(validators, &ProductionValidator{})
	}
	for _, v := range validators {
		if err := v.Validate(c); err != nil {
			return err
		}
	}
	return nil
}

// GetDatabaseURL returns the formatted database connection string
func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns host:port for the cache client
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// GetServerAddress returns the formatted server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment returns true if running in development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development" || c.App.Environment == "local"
}

// UsesMemoryStore reports whether the ledger runs without Postgres
func (c *Config) UsesMemoryStore() bool {
	return c.Ledger.StoreDriver == StoreDriverMemory
}

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.name", "beadledger-api")
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.debug", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "beadledger")
	v.SetDefault("db.password", "beadledger_dev")
	v.SetDefault("db.name", "beadledger")
	v.SetDefault("db.ssl_mode", "disable")
	v.SetDefault("db.max_connections", 25)
	v.SetDefault("db.min_connections", 2)
	v.SetDefault("db.connection_lifetime", time.Hour)
	v.SetDefault("db.idle_time", 30*time.Minute)
	v.SetDefault("db.health_check_period", time.Minute)
	v.SetDefault("db.connect_timeout", 10*time.Second)
	v.SetDefault("db.query_logging", false)
	v.SetDefault("db.auto_migrate", true)
	v.SetDefault("db.migration_path", "")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.enabled", true)

	v.SetDefault("asynq.redis_db", 0)
	v.SetDefault("asynq.concurrency", 10)
	v.SetDefault("asynq.queues", "critical:6,default:3,low:1")
	v.SetDefault("asynq.strict_priority", false)
	v.SetDefault("asynq.retry_max", 3)
	v.SetDefault("asynq.shutdown_timeout", 30*time.Second)
	v.SetDefault("asynq.enabled", true)

	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.secret_name", "")

	v.SetDefault("ledger.price_tolerance", 0.05)
	v.SetDefault("ledger.tx_timeout", 5*time.Second)
	v.SetDefault("ledger.tx_max_retries", 3)
	v.SetDefault("ledger.cache_ttl", 5*time.Minute)
	v.SetDefault("ledger.lock_ttl", 10*time.Second)
	v.SetDefault("ledger.store_driver", StoreDriverPostgres)
	v.SetDefault("ledger.timezone", "")

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("notify.from", "ledger@localhost")
	v.SetDefault("notify.email", "")

	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.duration", time.Minute)
	v.SetDefault("allowed.origins", "*")
	v.SetDefault("secure.headers", false)
	v.SetDefault("request_id.header", "X-Request-ID")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.max_header_bytes", 1<<20)
	v.SetDefault("server.graceful_timeout", 30*time.Second)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseQueues(queuesStr string) map[string]int {
	queues := make(map[string]int)
	for _, pair := range strings.Split(queuesStr, ",") {
		parts := strings.Split(pair, ":")
		if len(parts) != 2 {
			continue
		}
		name := strings.TrimSpace(parts[0])
		priority, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err == nil && name != "" {
			queues[name] = priority
		}
	}
	if len(queues) == 0 {
		queues["default"] = 1
	}
	return queues
}
