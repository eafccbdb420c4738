// Package config loads the bot configuration from YAML plus a .env
// file for secrets. Environment variables win over YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/gridbot/internal/domain/strategy"
)

// Config is the full bot configuration.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Strategy StrategyConfig `yaml:"strategy"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// EngineConfig controls the tick cadence.
type EngineConfig struct {
	TickSeconds    int `yaml:"tick_seconds"`
	CatchUpSeconds int `yaml:"catchup_seconds"`
	StatusSeconds  int `yaml:"status_seconds"`
}

// ExchangeConfig holds venue credentials. The key material comes from
// the environment, never from YAML.
type ExchangeConfig struct {
	APIKeyName    string `yaml:"-"`
	APIPrivateKey string `yaml:"-"`
}

// StrategyConfig mirrors the grid strategy settings. Zero values fall
// back to strategy defaults; the config table in storage overrides both.
type StrategyConfig struct {
	GridStepPct            float64 `yaml:"grid_step_pct"`
	StagingBandPct         float64 `yaml:"staging_band_pct"`
	MaxOrders              int     `yaml:"max_orders"`
	BufferEnabled          bool    `yaml:"buffer_enabled"`
	BufferPct              float64 `yaml:"buffer_pct"`
	ProfitMode             string  `yaml:"profit_mode"`
	CustomProfitPct        float64 `yaml:"custom_profit_pct"`
	MonthlyProfitTargetUSD float64 `yaml:"monthly_profit_target_usd"`
	Budget                 float64 `yaml:"budget"`
	SizingMode             string  `yaml:"sizing_mode"`
	FixedUSDPerTrade       float64 `yaml:"fixed_usd_per_trade"`
	CapitalPctPerTrade     float64 `yaml:"capital_pct_per_trade"`
}

// StorageConfig controls where state is persisted.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path, or ":memory:"
}

// LogConfig controls log format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML file at path and overlays .env / environment
// values. A missing file is an error; a missing .env is not.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)
	return &cfg, nil
}

// TickInterval returns the engine tick cadence.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Engine.TickSeconds) * time.Second
}

// CatchUpInterval returns the candle-scan cadence.
func (c *Config) CatchUpInterval() time.Duration {
	return time.Duration(c.Engine.CatchUpSeconds) * time.Second
}

// StatusInterval returns the console status cadence.
func (c *Config) StatusInterval() time.Duration {
	return time.Duration(c.Engine.StatusSeconds) * time.Second
}

// StrategyOptions converts the YAML strategy block into strategy
// options, keeping defaults for anything unset.
func (c *Config) StrategyOptions() strategy.Options {
	o := strategy.DefaultOptions()
	s := c.Strategy

	if s.GridStepPct > 0 {
		o.GridStepPct = s.GridStepPct
	}
	if s.StagingBandPct > 0 {
		o.StagingBandPct = s.StagingBandPct
	}
	if s.MaxOrders > 0 {
		o.MaxOrders = s.MaxOrders
	}
	o.BufferEnabled = s.BufferEnabled
	if s.BufferPct > 0 {
		o.BufferPct = s.BufferPct
	}
	if s.ProfitMode != "" {
		o.ProfitMode = strategy.ProfitMode(s.ProfitMode)
	}
	if s.CustomProfitPct > 0 {
		o.CustomProfitPct = s.CustomProfitPct
	}
	if s.MonthlyProfitTargetUSD > 0 {
		o.MonthlyProfitTargetUSD = s.MonthlyProfitTargetUSD
	}
	if s.Budget > 0 {
		o.Budget = s.Budget
	}
	if s.SizingMode != "" {
		o.SizingMode = strategy.SizingMode(s.SizingMode)
	}
	if s.FixedUSDPerTrade > 0 {
		o.FixedUSDPerTrade = s.FixedUSDPerTrade
	}
	if s.CapitalPctPerTrade > 0 {
		o.CapitalPctPerTrade = s.CapitalPctPerTrade
	}
	return o
}

func applyEnvOverrides(cfg *Config) {
	cfg.Exchange.APIKeyName = os.Getenv("COINBASE_API_KEY_NAME")
	cfg.Exchange.APIPrivateKey = os.Getenv("COINBASE_API_PRIVATE_KEY")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("GRIDBOT_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Engine.TickSeconds <= 0 {
		cfg.Engine.TickSeconds = 5
	}
	if cfg.Engine.CatchUpSeconds <= 0 {
		cfg.Engine.CatchUpSeconds = 60
	}
	if cfg.Engine.StatusSeconds <= 0 {
		cfg.Engine.StatusSeconds = 30
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "gridbot.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
