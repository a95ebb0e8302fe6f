// internal/pkg/logger/logger_test.go
package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestHandler_AddsContextValues(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, LogConfig{Level: "debug", Format: "json", ServiceName: "beadledger-api"}))

	ctx := WithValue(context.Background(), ContextKeyRequestID, "req-123")
	ctx = WithValue(ctx, ContextKeyActorRole, "BOSS")
	log.InfoContext(ctx, "sell completed", slog.String("sku_code", "SKU20250101001"))

	entry := decode(t, &buf)
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "BOSS", entry["actor_role"])
	assert.Equal(t, "SKU20250101001", entry["sku_code"])
	assert.Equal(t, "beadledger-api", entry["service"])
	assert.Equal(t, "INFO", entry["severity"])
}

func TestHandler_Redacts(t *testing.T) {
	tests := []struct {
		name  string
		attr  slog.Attr
		key   string
		check func(t *testing.T, v any)
	}{
		{
			name: "customer_phone_key",
			attr: slog.String("customer_phone", "555-0100"),
			key:  "customer_phone",
			check: func(t *testing.T, v any) {
				assert.Equal(t, redacted, v)
			},
		},
		{
			name: "password_in_value",
			attr: slog.String("dsn", "host=db password=hunter2"),
			key:  "dsn",
			check: func(t *testing.T, v any) {
				assert.NotContains(t, v, "hunter2")
			},
		},
		{
			name: "email_in_value",
			attr: slog.String("recipient", "owner@example.com"),
			key:  "recipient",
			check: func(t *testing.T, v any) {
				assert.Equal(t, redacted, v)
			},
		},
		{
			name: "plain_value_untouched",
			attr: slog.String("sku_name", "Amethyst Bracelet"),
			key:  "sku_name",
			check: func(t *testing.T, v any) {
				assert.Equal(t, "Amethyst Bracelet", v)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(NewHandler(&buf, LogConfig{Format: "json"}))
			log.LogAttrs(context.Background(), slog.LevelInfo, "event", tt.attr)
			tt.check(t, decode(t, &buf)[tt.key])
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestHandler_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, LogConfig{Level: "warn", Format: "json"}))
	log.Info("dropped")
	assert.Zero(t, buf.Len())
	log.Warn("kept")
	assert.NotZero(t, buf.Len())
}
