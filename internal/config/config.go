// Package config provides configuration management for the screener.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "btscreener/internal/errors"
	"btscreener/internal/iex"
)

// Config holds all application configuration.
type Config struct {
	IEX      IEXConfig      `mapstructure:"iex"`
	Collect  CollectConfig  `mapstructure:"collect"`
	Calendar CalendarConfig `mapstructure:"calendar"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Universe UniverseConfig `mapstructure:"universe"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// IEXConfig holds the remote data API settings.
type IEXConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CollectConfig holds collection pipeline settings.
type CollectConfig struct {
	PoolSize        int    `mapstructure:"pool_size"`
	ChartRange      string `mapstructure:"chart_range"`
	DividendRange   string `mapstructure:"dividend_range"`
	FailurePolicy   string `mapstructure:"failure_policy"`   // isolate, fail-fast
	CollisionPolicy string `mapstructure:"collision_policy"` // error, last-wins
}

// CalendarConfig holds calendar estimation settings.
type CalendarConfig struct {
	// NextExFromEarnings estimates the next ex-date from earnings report
	// dates instead of past ex-dates.
	NextExFromEarnings bool `mapstructure:"next_ex_from_earnings"`
}

// BacktestConfig holds the chart statistics settings.
type BacktestConfig struct {
	Strategy       string  `mapstructure:"strategy"` // sma_crossover, rsi_oversold, macd
	InitialCapital float64 `mapstructure:"initial_capital"`
	Slippage       float64 `mapstructure:"slippage"`
	Commission     float64 `mapstructure:"commission"`
}

// UniverseConfig locates the ranking page snapshot and its parsed cache.
type UniverseConfig struct {
	PagePath  string `mapstructure:"page_path"`
	CachePath string `mapstructure:"cache_path"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// Policy names accepted in [collect].
const (
	FailurePolicyIsolate    = "isolate"
	FailurePolicyFailFast   = "fail-fast"
	CollisionPolicyError    = "error"
	CollisionPolicyLastWins = "last-wins"
)

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/btscreener"
	}
	return filepath.Join(home, ".config", "btscreener")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is replaced by a commented template and defaults apply.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v, configDir)
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("iex.base_url", "https://api.iextrading.com/1.0")
	v.SetDefault("iex.token", "")
	v.SetDefault("iex.timeout", "30s")

	v.SetDefault("collect.pool_size", 4)
	v.SetDefault("collect.chart_range", "1m")
	v.SetDefault("collect.dividend_range", "1y")
	v.SetDefault("collect.failure_policy", FailurePolicyIsolate)
	v.SetDefault("collect.collision_policy", CollisionPolicyError)

	v.SetDefault("calendar.next_ex_from_earnings", false)

	v.SetDefault("backtest.strategy", "sma_crossover")
	v.SetDefault("backtest.initial_capital", 100000.0)
	v.SetDefault("backtest.slippage", 0.001)
	v.SetDefault("backtest.commission", 0.0)

	v.SetDefault("universe.page_path", "spx_page.html")
	v.SetDefault("universe.cache_path", "sp500_weights.csv")

	v.SetDefault("storage.db_path", filepath.Join(configDir, "btscreener.db"))

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", false)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "btscreener.log"))
	v.SetDefault("logging.max_size", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("IEX_BASE_URL"); v != "" {
		cfg.IEX.BaseURL = v
	}
	if v := os.Getenv("IEX_TOKEN"); v != "" {
		cfg.IEX.Token = v
	}
	if v := os.Getenv("BTSCREENER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Collect.PoolSize = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.IEX.BaseURL == "" {
		return apperrors.NewConfigError("iex.base_url", "is required")
	}
	if c.IEX.Timeout < 0 {
		return apperrors.NewConfigError("iex.timeout", "must be non-negative")
	}
	if c.Collect.PoolSize < 1 {
		return apperrors.NewConfigError("collect.pool_size", fmt.Sprintf("must be at least 1, got %d", c.Collect.PoolSize))
	}
	if c.Collect.ChartRange != "" && !slices.Contains(iex.ValidRanges, c.Collect.ChartRange) {
		return apperrors.NewConfigError("collect.chart_range", fmt.Sprintf("unknown range %q", c.Collect.ChartRange))
	}
	if c.Collect.DividendRange != "" && !slices.Contains(iex.ValidRanges, c.Collect.DividendRange) {
		return apperrors.NewConfigError("collect.dividend_range", fmt.Sprintf("unknown range %q", c.Collect.DividendRange))
	}
	switch c.Collect.FailurePolicy {
	case FailurePolicyIsolate, FailurePolicyFailFast:
	default:
		return apperrors.NewConfigError("collect.failure_policy",
			fmt.Sprintf("invalid value %q (must be '%s' or '%s')", c.Collect.FailurePolicy, FailurePolicyIsolate, FailurePolicyFailFast))
	}
	switch c.Collect.CollisionPolicy {
	case CollisionPolicyError, CollisionPolicyLastWins:
	default:
		return apperrors.NewConfigError("collect.collision_policy",
			fmt.Sprintf("invalid value %q (must be '%s' or '%s')", c.Collect.CollisionPolicy, CollisionPolicyError, CollisionPolicyLastWins))
	}
	if c.Backtest.InitialCapital <= 0 {
		return apperrors.NewConfigError("backtest.initial_capital", "must be positive")
	}
	if c.Backtest.Slippage < 0 || c.Backtest.Commission < 0 {
		return apperrors.NewConfigError("backtest", "slippage and commission must be non-negative")
	}
	return nil
}
