package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sawpanic/pinevolume/internal/application"
	"github.com/sawpanic/pinevolume/internal/config"
	"github.com/sawpanic/pinevolume/internal/exchange"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeProviders(t *testing.T, baseURL string) string {
	t.Helper()
	cfg, err := config.DefaultProvidersConfig()
	require.NoError(t, err)
	for _, ex := range exchange.All() {
		cfg = cfg.WithURL(ex, baseURL+"/"+ex.String())
		p := cfg.Providers[ex.String()]
		p.RPS, p.Burst, p.MaxRetries = 1000, 100, 0
		cfg.Providers[ex.String()] = p
	}

	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestGenerateCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/binance" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"symbols": [{"status": "TRADING", "baseAsset": "ADA", "quoteAsset": "BTC", "isSpotTradingAllowed": true}]}`))
	}))
	defer server.Close()

	dir := t.TempDir()
	out := filepath.Join(dir, "volume.pine")
	reportPath := filepath.Join(dir, "report.json")
	metricsPath := filepath.Join(dir, "metrics.prom")

	stdout, _, err := execute(t, "generate",
		"--providers", writeProviders(t, server.URL),
		"--out", out,
		"--report", reportPath,
		"--metrics-file", metricsPath,
		"--json-logs",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote "+out)
	assert.Contains(t, stdout, "bittrex   fetched=0")

	script, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(script), `binanceTicker = syminfo.ticker == "ADABTC" ? "BINANCE:ADABTC" : "GOLD"`)
	assert.Contains(t, string(script), `krakenTicker = "GOLD"`)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	var report application.SyncReport
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, 1, report.Branches)
	require.Len(t, report.Exchanges, exchange.Count)
	assert.Equal(t, "fetch", report.Exchanges[exchange.Gemini].ErrorKind)

	assert.FileExists(t, metricsPath)
}

func TestGenerateCommand_InvalidRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("excluded_crypto_quote_assets: []\n"), 0o644))

	out := filepath.Join(t.TempDir(), "volume.pine")
	_, _, err := execute(t, "generate", "--rules", path, "--out", out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load rules")
	assert.NoFileExists(t, out)
}

func TestGenerateCommand_InvalidLogLevel(t *testing.T) {
	_, _, err := execute(t, "generate", "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestValidateCommand(t *testing.T) {
	stdout, _, err := execute(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Crypto quote assets: ")
	assert.Contains(t, stdout, "BTC")
	for _, ex := range exchange.All() {
		assert.Contains(t, stdout, ex.String())
	}
}

func TestValidateCommand_MissingProviders(t *testing.T) {
	_, _, err := execute(t, "validate", "--providers", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load providers config")
}

func TestSetupLogging_ConcurrentWriters(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, setupLogging(&buf, "info", true))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				log.Info().Int("worker", i).Msg("fetching")
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 400)
	for _, line := range lines {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "interleaved line %q", line)
		assert.Equal(t, "fetching", entry["message"])
	}
}
