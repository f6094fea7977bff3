package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoad_Defaults tests the defaults applied when nothing is configured.
func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, 1024, cfg.MaxOutputTokens)
	assert.Equal(t, 0.8, cfg.PersonaTemperature)
	assert.Equal(t, 0.5, cfg.SynthesisTemperature)
	assert.Equal(t, 60*time.Second, cfg.UnitTimeout)
	assert.Equal(t, 0, cfg.MaxConcurrent)
	assert.Equal(t, 0, cfg.RequestsPerMinute)
	assert.Equal(t, "info", cfg.LogLevel)
}

// TestLoad_FromEnvironment tests overrides via environment variables.
func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("COUNCIL_MODEL", "gpt-4o-mini")
	t.Setenv("COUNCIL_MAX_CONCURRENT", "3")
	t.Setenv("COUNCIL_UNIT_TIMEOUT", "30s")
	t.Setenv("COUNCIL_PERSONA_TEMPERATURE", "0.6")
	t.Setenv("COUNCIL_WATCHLIST", "AAPL, MSFT,NVDA")
	t.Setenv("COUNCIL_MARKET_SENTIMENT", "bearish")
	t.Setenv("LOG_PRETTY", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, 3, cfg.MaxConcurrent)
	assert.Equal(t, 30*time.Second, cfg.UnitTimeout)
	assert.Equal(t, 0.6, cfg.PersonaTemperature)
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"}, cfg.Watchlist)
	assert.Equal(t, "bearish", cfg.MarketSentiment)
	assert.False(t, cfg.Pretty)
}

// TestLoad_RejectsInvalidValues tests the validation of negative settings.
func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"negative timeout", "COUNCIL_UNIT_TIMEOUT", "-5s"},
		{"negative concurrency", "COUNCIL_MAX_CONCURRENT", "-1"},
		{"negative rate", "COUNCIL_REQUESTS_PER_MINUTE", "-10"},
		{"unknown sentiment", "COUNCIL_MARKET_SENTIMENT", "apocalyptic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

// TestGetEnvHelpers tests the typed fallback behavior on malformed values.
func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "not-a-number")
	t.Setenv("TEST_FLOAT", "nope")
	t.Setenv("TEST_DURATION", "eternity")

	assert.Equal(t, 42, getEnvInt("TEST_INT", 42))
	assert.Equal(t, 1.5, getEnvFloat("TEST_FLOAT", 1.5))
	assert.Equal(t, time.Minute, getEnvDuration("TEST_DURATION", time.Minute))
	assert.Equal(t, "fallback", getEnv("TEST_UNSET_KEY", "fallback"))
}
