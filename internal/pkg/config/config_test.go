// internal/pkg/config/config_test.go
package config

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	cfg, err := Load(context.Background(), quietLogger())
	require.NoError(t, err)

	assert.Equal(t, 0.05, cfg.Ledger.PriceTolerance)
	assert.Equal(t, 5*time.Second, cfg.Ledger.TxTimeout)
	assert.Equal(t, 3, cfg.Ledger.TxMaxRetries)
	assert.Equal(t, 5*time.Minute, cfg.Ledger.CacheTTL)
	assert.Equal(t, StoreDriverPostgres, cfg.Ledger.StoreDriver)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, map[string]int{"critical": 6, "default": 3, "low": 1}, cfg.Asynq.Queues)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("LEDGER_PRICE_TOLERANCE", "0.1")
	t.Setenv("LEDGER_STORE_DRIVER", "memory")
	t.Setenv("LEDGER_TX_TIMEOUT", "2s")
	t.Setenv("LEDGER_TIMEZONE", "Asia/Shanghai")
	t.Setenv("NOTIFY_EMAIL", "owner@example.com, shop@example.com")
	t.Setenv("SMTP_HOST", "smtp.example.com")

	cfg, err := Load(context.Background(), quietLogger())
	require.NoError(t, err)

	assert.Equal(t, 0.1, cfg.Ledger.PriceTolerance)
	assert.True(t, cfg.UsesMemoryStore())
	assert.Equal(t, 2*time.Second, cfg.Ledger.TxTimeout)
	assert.Equal(t, []string{"owner@example.com", "shop@example.com"}, cfg.Notify.To)

	loc, err := cfg.Ledger.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Shanghai", loc.String())
}

func TestLedgerValidator(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Ledger: LedgerConfig{
				PriceTolerance: 0.05,
				TxTimeout:      5 * time.Second,
				TxMaxRetries:   3,
				StoreDriver:    StoreDriverPostgres,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "negative_tolerance", mutate: func(c *Config) { c.Ledger.PriceTolerance = -0.1 }, wantErr: true},
		{name: "zero_timeout", mutate: func(c *Config) { c.Ledger.TxTimeout = 0 }, wantErr: true},
		{name: "unknown_driver", mutate: func(c *Config) { c.Ledger.StoreDriver = "sqlite" }, wantErr: true},
		{name: "bad_timezone", mutate: func(c *Config) { c.Ledger.Timezone = "Mars/Olympus" }, wantErr: true},
		{
			name: "smtp_without_recipients",
			mutate: func(c *Config) {
				c.Notify.SMTPHost = "smtp.example.com"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := (&LedgerValidator{}).Validate(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProductionValidator_RejectsMemoryStore(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Password: "s3cure", SSLMode: "require"},
		Ledger:   LedgerConfig{StoreDriver: StoreDriverMemory},
		Security: SecurityConfig{SecureHeaders: true, AllowedOrigins: []string{"https://shop.example.com"}},
	}
	assert.Error(t, (&ProductionValidator{}).Validate(cfg))

	cfg.Ledger.StoreDriver = StoreDriverPostgres
	assert.NoError(t, (&ProductionValidator{}).Validate(cfg))
}

type fakeSecrets struct {
	value string
	calls int
	err   error
}

func (f *fakeSecrets) GetSecretValue(_ context.Context, _ *secretsmanager.GetSecretValueInput,
	_ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(f.value)}, nil
}

func TestApplySecrets_FromSecretsManager(t *testing.T) {
	client := &fakeSecrets{value: `{"DB_PASSWORD":"from-aws","REDIS_PASSWORD":"redis-aws"}`}
	sm := newAWSSecretsManager(client, "beadledger/prod", quietLogger())

	cfg := &Config{Database: DatabaseConfig{Password: "local"}, Notify: NotifyConfig{SMTPPassword: "keep"}}
	require.NoError(t, ApplySecrets(context.Background(), cfg, sm))

	assert.Equal(t, "from-aws", cfg.Database.Password)
	assert.Equal(t, "redis-aws", cfg.Redis.Password)
	assert.Equal(t, "redis-aws", cfg.Asynq.RedisPassword)
	assert.Equal(t, "keep", cfg.Notify.SMTPPassword)

	// second read is served from cache
	_, err := sm.GetSecrets(context.Background(), []string{SecretDBPassword})
	require.NoError(t, err)
	assert.Equal(t, 1, client.calls)
}

func TestApplySecrets_Error(t *testing.T) {
	sm := newAWSSecretsManager(&fakeSecrets{err: errors.New("access denied")}, "beadledger/prod", quietLogger())
	err := ApplySecrets(context.Background(), &Config{}, sm)
	assert.ErrorContains(t, err, "access denied")
}
