package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# btscreener configuration

[iex]
# Base URL of the market data API
base_url = "https://api.iextrading.com/1.0"
# Optional API token, sent as ?token=
token = ""
# Per-request timeout
timeout = "30s"

[collect]
# Number of symbols processed concurrently
pool_size = 4
# Lookback range for chart data: 5y, 2y, 1y, ytd, 6m, 3m, 1m, 1d
chart_range = "1m"
# Lookback range for dividend data
dividend_range = "1y"
# What a failed symbol does to the run: "isolate" or "fail-fast"
failure_policy = "isolate"
# Duplicate field between stats and calendar: "error" or "last-wins"
collision_policy = "error"

[calendar]
# Estimate the next ex-dividend date from earnings report dates
next_ex_from_earnings = false

[backtest]
# Strategy: sma_crossover, rsi_oversold, macd
strategy = "sma_crossover"
initial_capital = 100000.0
slippage = 0.001
commission = 0.0

[universe]
# Saved copy of the S&P 500 weights page
page_path = "spx_page.html"
# Parsed weights table, regenerated from page_path when missing
cache_path = "sp500_weights.csv"

[logging]
# Log level: debug, info, warn, error
level = "info"
# Also write a rotating log file
file = false
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}
