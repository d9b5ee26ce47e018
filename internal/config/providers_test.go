package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/pinevolume/internal/exchange"
)

func TestDefaultProvidersConfig(t *testing.T) {
	cfg, err := DefaultProvidersConfig()
	require.NoError(t, err)

	assert.Len(t, cfg.Providers, exchange.Count)
	assert.Equal(t, 8, cfg.Global.MaxConcurrent)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout())

	kraken := cfg.Provider(exchange.Kraken)
	assert.Equal(t, "https://api.kraken.com/0/public/AssetPairs", kraken.URL)
	assert.Equal(t, "api.kraken.com", kraken.Host())
	assert.True(t, kraken.Enabled)
	assert.Equal(t, time.Second, kraken.GetBaseBackoff())
	assert.Equal(t, 8*time.Second, kraken.GetMaxBackoff())
	assert.Equal(t, 30*time.Second, kraken.GetOpenTimeout())

	assert.Equal(t, "https://poloniex.com/public?command=returnTicker", cfg.Provider(exchange.Poloniex).URL)
}

func TestProvidersConfig_WithURL(t *testing.T) {
	cfg, err := DefaultProvidersConfig()
	require.NoError(t, err)

	patched := cfg.WithURL(exchange.Gemini, "http://127.0.0.1:9999/symbols")
	assert.Equal(t, "http://127.0.0.1:9999/symbols", patched.Provider(exchange.Gemini).URL)
	assert.Equal(t, "https://api.gemini.com/v1/symbols", cfg.Provider(exchange.Gemini).URL, "receiver is unchanged")
}

func TestParseProvidersConfig_Invalid(t *testing.T) {
	base, err := os.ReadFile("providers.yaml")
	require.NoError(t, err)

	tests := []struct {
		name          string
		mutate        func(string) string
		errorContains string
	}{
		{
			name:          "unknown_provider",
			mutate:        func(s string) string { return strings.Replace(s, "  binance:", "  okx:", 1) },
			errorContains: "unsupported exchange",
		},
		{
			name:          "bad_scheme",
			mutate:        func(s string) string { return strings.Replace(s, "https://api.gemini.com", "ftp://api.gemini.com", 1) },
			errorContains: "http(s)",
		},
		{
			name:          "zero_concurrency",
			mutate:        func(s string) string { return strings.Replace(s, "max_concurrent: 8", "max_concurrent: 0", 1) },
			errorContains: "max_concurrent",
		},
		{
			name:          "backoff_inverted",
			mutate:        func(s string) string { return strings.Replace(s, "{base: 1000, max: 8000}", "{base: 1000, max: 10}", 1) },
			errorContains: "backoff_ms",
		},
		{
			name:          "no_user_agent",
			mutate:        func(s string) string { return strings.Replace(s, `user_agent: "pinevolume/1.0"`, `user_agent: ""`, 1) },
			errorContains: "user_agent",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProvidersConfig([]byte(tt.mutate(string(base))))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

func TestLoadProvidersConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, defaultProviders, 0644))

	cfg, err := LoadProvidersConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "pinevolume/1.0", cfg.Global.UserAgent)

	_, err = LoadProvidersConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
