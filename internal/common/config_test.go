package common

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, 2, cfg.LLM.MaxRetries)
	assert.Equal(t, 50, cfg.Sync.MaxMessages)
	assert.Equal(t, "@every 15m", cfg.Sync.Schedule)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.NoError(t, cfg.Validate(false))
	assert.Error(t, cfg.Validate(true), "DB_URL required when a database is needed")
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
llm:
  provider: anthropic
  max_retries: 3
sync:
  max_messages: 10
  lookback: 48h
merchant_defaults:
  - pattern: elkjop
    warranty_months: 24
    return_days: 14
known_merchant_domains:
  example-shop.no: Example Shop
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ANTHROPIC_API_KEY", "ak-test")
	t.Setenv("SYNC_MAX_MESSAGES", "25")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "claude-3-5-haiku-latest", cfg.LLM.Model)
	assert.Equal(t, "ak-test", cfg.LLM.APIKey)
	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, 25, cfg.Sync.MaxMessages)
	assert.Equal(t, 48*time.Hour, cfg.Sync.Lookback)
	require.Len(t, cfg.MerchantDefaults, 1)
	assert.Equal(t, 24, *cfg.MerchantDefaults[0].WarrantyMonths)
	assert.Equal(t, "Example Shop", cfg.KnownMerchantDomains["example-shop.no"])
}

func TestLoadConfig_BadFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := LoadConfig()
	require.Error(t, err)
	assert.Equal(t, "CONFIG_ERROR", CodeOf(err))
}

func TestValidator_Rules(t *testing.T) {
	bad := "nok"
	v := NewValidator().
		Field("merchant_name", "A", Required, MinLength(2)).
		Optional("currency", &bad, CurrencyCode).
		Optional("total_amount", (*float64)(nil), Range(0, 10)).
		Field("confidence.merchant", 1.5, Range(0, 1)).
		Field("email_type", "order", OneOf("order_confirmation", "unknown")).
		Field("purchase_date", "2024-13-01", ISODate)

	require.True(t, v.HasErrors())
	assert.Len(t, v.Errors(), 5)
	assert.ErrorIs(t, v.Error(), ErrValidation)
}

func TestLogAttrs(t *testing.T) {
	assert.Empty(t, LogAttrs(context.Background()))

	ctx := WithMessageID(WithUserID(WithRequestID(context.Background(), "req-1"), "u1"), "m1")
	assert.Equal(t, []any{"request_id", "req-1", "user_id", "u1", "email_id", "m1"}, LogAttrs(ctx))
}
