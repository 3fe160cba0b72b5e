package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.CartTTL)
	assert.Equal(t, 5*time.Second, cfg.TxLockTimeout)
	assert.Equal(t, 3, cfg.FulfillmentMaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.FulfillmentBaseDelay)
	assert.Equal(t, "fulfillment-tasks", cfg.FulfillmentTopic)
	assert.False(t, cfg.WebhookTrustedMode)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CART_TTL", "2h")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("WEBHOOK_TRUSTED_MODE", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 2*time.Hour, cfg.CartTTL)
	assert.Equal(t, 6543, cfg.DBPort)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.WebhookTrustedMode)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("FULFILLMENT_GROUP=from-file\n"), 0o600))
	t.Setenv("FULFILLMENT_GROUP", "")
	t.Cleanup(func() { os.Unsetenv("FULFILLMENT_GROUP") })
	require.NoError(t, os.Unsetenv("FULFILLMENT_GROUP"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.FulfillmentGroup)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("CART_TTL", "forever")
	t.Setenv("DB_PORT", "x")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CART_TTL")
	assert.Contains(t, err.Error(), "DB_PORT")
}

func TestValidateAPI(t *testing.T) {
	cfg := &Config{}
	err := cfg.ValidateAPI()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "PAYSTACK_SECRET_KEY")

	cfg = &Config{JWTSecret: "s", WebhookTrustedMode: true}
	assert.NoError(t, cfg.ValidateAPI())
}
