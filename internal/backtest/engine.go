// Package backtest derives per-symbol chart statistics from a price history:
// indicator snapshots plus the metrics of a simple long-only strategy
// replayed over the same bars.
package backtest

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	apperrors "btscreener/internal/errors"
	"btscreener/internal/models"
)

const (
	tradingDays = 252

	// Share of free capital committed to each entry.
	positionFraction = 0.95

	annualRiskFree = 0.05
)

// Config configures the replayed strategy.
type Config struct {
	Strategy       string
	InitialCapital float64
	Slippage       float64 // fraction of price, applied against us on entry and exit
	Commission     float64 // fraction of traded value
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		Strategy:       StrategySMACrossover,
		InitialCapital: 100000,
		Slippage:       0.001,
	}
}

// Trade is one closed round trip.
type Trade struct {
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Quantity   int
	PnL        float64
	PnLPercent float64
	Reason     string
}

// EquityPoint is the marked-to-market account value after a bar.
type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
}

// Result holds the outcome of a replay.
type Result struct {
	TotalReturn   float64 // percent
	WinRate       float64 // percent of closed trades with positive PnL
	MaxDrawdown   float64 // percent, peak to trough
	SharpeRatio   float64
	WinningTrades int
	LosingTrades  int
	Trades        []Trade
	EquityCurve   []EquityPoint
}

// Engine replays a strategy over candles.
type Engine struct {
	cfg    Config
	signal SignalGenerator
}

// NewEngine validates cfg and returns an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.InitialCapital <= 0 {
		return nil, apperrors.NewValidationError("initial_capital", cfg.InitialCapital, "must be positive")
	}
	if cfg.Slippage < 0 || cfg.Commission < 0 {
		return nil, apperrors.NewValidationError("slippage/commission", fmt.Sprintf("%v/%v", cfg.Slippage, cfg.Commission), "must be non-negative")
	}
	gen, err := signalGenerator(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, signal: gen}, nil
}

type replayState struct {
	capital     float64
	position    int
	entryPrice  float64
	entryTime   time.Time
	peakEquity  float64
	maxDrawdown float64
}

// Run replays the strategy over candles, which must be sorted oldest first.
// An open position is closed on the last bar.
func (e *Engine) Run(candles []models.Candle) (*Result, error) {
	closes, err := closePrices(candles)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	state := &replayState{
		capital:    e.cfg.InitialCapital,
		peakEquity: e.cfg.InitialCapital,
	}

	for i, candle := range candles {
		switch e.signal(closes[:i+1], i) {
		case Buy:
			if state.position == 0 {
				e.open(state, candle)
			}
		case Sell:
			if state.position > 0 {
				result.Trades = append(result.Trades, e.close(state, candle, "signal"))
			}
		}

		equity := state.capital + float64(state.position)*candle.Close
		if equity > state.peakEquity {
			state.peakEquity = equity
		}
		if dd := (state.peakEquity - equity) / state.peakEquity; dd > state.maxDrawdown {
			state.maxDrawdown = dd
		}
		result.EquityCurve = append(result.EquityCurve, EquityPoint{Timestamp: candle.Timestamp, Equity: equity})
	}

	if state.position > 0 {
		last := candles[len(candles)-1]
		result.Trades = append(result.Trades, e.close(state, last, "end_of_data"))
		result.EquityCurve[len(result.EquityCurve)-1].Equity = state.capital
	}

	e.calculateMetrics(result, state)
	return result, nil
}

func (e *Engine) open(state *replayState, candle models.Candle) {
	price := candle.Close * (1 + e.cfg.Slippage)
	qty := int(state.capital * positionFraction / price)
	if qty <= 0 {
		return
	}
	cost := price * float64(qty)
	state.capital -= cost + cost*e.cfg.Commission
	state.position = qty
	state.entryPrice = price
	state.entryTime = candle.Timestamp
}

func (e *Engine) close(state *replayState, candle models.Candle, reason string) Trade {
	price := candle.Close * (1 - e.cfg.Slippage)
	qty := state.position
	proceeds := price * float64(qty)
	commission := proceeds * e.cfg.Commission

	trade := Trade{
		EntryTime:  state.entryTime,
		ExitTime:   candle.Timestamp,
		EntryPrice: state.entryPrice,
		ExitPrice:  price,
		Quantity:   qty,
		PnL:        (price-state.entryPrice)*float64(qty) - commission,
		PnLPercent: (price - state.entryPrice) / state.entryPrice * 100,
		Reason:     reason,
	}

	state.capital += proceeds - commission
	state.position = 0
	state.entryPrice = 0
	state.entryTime = time.Time{}
	return trade
}

func (e *Engine) calculateMetrics(result *Result, state *replayState) {
	initial := e.cfg.InitialCapital
	final := initial
	if n := len(result.EquityCurve); n > 0 {
		final = result.EquityCurve[n-1].Equity
	}
	result.TotalReturn = (final - initial) / initial * 100
	result.MaxDrawdown = state.maxDrawdown * 100

	for _, t := range result.Trades {
		if t.PnL > 0 {
			result.WinningTrades++
		} else {
			result.LosingTrades++
		}
	}
	if n := len(result.Trades); n > 0 {
		result.WinRate = float64(result.WinningTrades) / float64(n) * 100
	}

	equity := make([]float64, len(result.EquityCurve))
	for i, p := range result.EquityCurve {
		equity[i] = p.Equity
	}
	result.SharpeRatio = sharpeRatio(dailyReturns(equity))
}

// sharpeRatio annualises the mean excess daily return over its deviation.
func sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return (mean - annualRiskFree/tradingDays) / std * math.Sqrt(tradingDays)
}

func closePrices(candles []models.Candle) ([]float64, error) {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		if c.Close <= 0 || math.IsNaN(c.Close) || math.IsInf(c.Close, 0) {
			return nil, fmt.Errorf("invalid close %v at %s", c.Close, c.Timestamp.Format(models.DateLayout))
		}
		closes[i] = c.Close
	}
	return closes, nil
}
