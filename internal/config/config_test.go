package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("TAX_RATE", "")
	t.Setenv("TX_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, "postgres", cfg.Store)
	assert.True(t, cfg.TaxRate.IsZero())
	assert.Equal(t, 5*time.Second, cfg.TxTimeout)
	assert.Equal(t, 5, cfg.OrderNumberAttempts)
	assert.True(t, cfg.Migrate)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("TAX_RATE", "0.11")
	t.Setenv("SHIPPING_FEE", "4.50")
	t.Setenv("TX_TIMEOUT", "750ms")
	t.Setenv("MIGRATE", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "0.11", cfg.TaxRate.String())
	assert.Equal(t, "4.5", cfg.ShippingFee.String())
	assert.Equal(t, 750*time.Millisecond, cfg.TxTimeout)
	assert.False(t, cfg.Migrate)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"TAX_RATE":              "abc",
		"SHIPPING_FEE":          "-1",
		"TX_TIMEOUT":            "soon",
		"ORDER_NUMBER_ATTEMPTS": "many",
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv(k, v)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
