package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/gridbot/internal/domain/strategy"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.TickInterval())
	assert.Equal(t, 60*time.Second, cfg.CatchUpInterval())
	assert.Equal(t, "gridbot.db", cfg.Storage.DSN)
	assert.Equal(t, "text", cfg.Log.Format)

	opts := cfg.StrategyOptions()
	assert.Equal(t, strategy.DefaultOptions(), opts)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
engine:
  tick_seconds: 10
strategy:
  grid_step_pct: 0.005
  max_orders: 100
  profit_mode: CUSTOM
  custom_profit_pct: 0.02
storage:
  dsn: ":memory:"
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.TickInterval())
	assert.Equal(t, ":memory:", cfg.Storage.DSN)
	assert.Equal(t, "json", cfg.Log.Format)

	opts := cfg.StrategyOptions()
	assert.Equal(t, 0.005, opts.GridStepPct)
	assert.Equal(t, 100, opts.MaxOrders)
	assert.Equal(t, strategy.ProfitCustom, opts.ProfitMode)
	assert.Equal(t, 0.02, opts.CustomProfitPct)
	// Unset keys keep their defaults.
	assert.Equal(t, 0.05, opts.StagingBandPct)
}

func TestLoadEnvWins(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n  format: text\n")

	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("COINBASE_API_KEY_NAME", "organizations/x/apiKeys/y")
	t.Setenv("GRIDBOT_DSN", "/tmp/override.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "organizations/x/apiKeys/y", cfg.Exchange.APIKeyName)
	assert.Equal(t, "/tmp/override.db", cfg.Storage.DSN)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}
