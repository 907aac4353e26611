package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PRICING_TOKEN_SECRET", "test-secret")
	t.Setenv("MESSAGING_ENABLED", "false")
	t.Setenv("CACHE_ENABLED", "false")
}

func TestNewDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 20*time.Minute, cfg.Pricing.PreviewTTL)
	assert.True(t, cfg.Pricing.StaleTolerance.IsZero())
	assert.Equal(t, "EUR", cfg.Pricing.Currency)
	assert.True(t, cfg.Invoice.IssueOnApproval)
	assert.Equal(t, "noop", cfg.Cache.Driver)
	assert.Equal(t, "noop", cfg.Messaging.Driver)
	assert.Equal(t, cfg.Database.WriterDSN, cfg.Database.ReaderDSN)
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		wantError string
	}{
		{
			name:      "preview ttl too short",
			env:       map[string]string{"PRICING_PREVIEW_TTL": "5m"},
			wantError: "PRICING_PREVIEW_TTL must be between 15m0s and 30m0s, got 5m0s",
		},
		{
			name:      "missing token secret",
			env:       map[string]string{"PRICING_TOKEN_SECRET": " "},
			wantError: "missing PRICING_TOKEN_SECRET",
		},
		{
			name:      "negative tolerance",
			env:       map[string]string{"PRICING_STALE_TOLERANCE": "-0.01"},
			wantError: "PRICING_STALE_TOLERANCE must not be negative",
		},
		{
			name:      "unknown database driver",
			env:       map[string]string{"DB_DRIVER": "oracle"},
			wantError: "unsupported database driver: oracle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBaseEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := New()
			require.EqualError(t, err, tt.wantError)
		})
	}
}

func TestNewNormalisesCurrency(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PRICING_CURRENCY", "usd")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "USD", cfg.Pricing.Currency)
}

func TestNewRejectsUnknownCurrency(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PRICING_CURRENCY", "XYZ1")

	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid PRICING_CURRENCY")
}

func TestEnvHelpersFallBack(t *testing.T) {
	t.Setenv("TRADEHUB_TEST_INT", "abc")
	t.Setenv("TRADEHUB_TEST_DURATION", " 90s ")
	t.Setenv("TRADEHUB_TEST_LIST", " a, ,b ,")
	t.Setenv("TRADEHUB_TEST_EMPTY_LIST", " , ")

	assert.Equal(t, 7, getEnvAsInt("TRADEHUB_TEST_INT", 7))
	assert.Equal(t, 90*time.Second, getEnvAsDuration("TRADEHUB_TEST_DURATION", time.Second))
	assert.Equal(t, []string{"a", "b"}, getEnvAsStringSlice("TRADEHUB_TEST_LIST", nil))
	assert.Equal(t, []string{"x"}, getEnvAsStringSlice("TRADEHUB_TEST_EMPTY_LIST", []string{"x"}))
	assert.True(t, getEnvAsBool("TRADEHUB_TEST_UNSET", true))
}
