package backtest

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"btscreener/internal/models"
)

// Stats row keys.
const (
	FieldClose         = "close"
	FieldChangePercent = "changePercent"
	FieldSMA20         = "sma20"
	FieldRSI14         = "rsi14"
	FieldVolatility    = "volatility"
	FieldTotalReturn   = "totalReturn"
	FieldWinRate       = "winRate"
	FieldMaxDrawdown   = "maxDrawdown"
	FieldSharpe        = "sharpe"
	FieldTrades        = "trades"
)

// StatsFields lists the stats keys in display order.
var StatsFields = []string{
	FieldClose,
	FieldChangePercent,
	FieldSMA20,
	FieldRSI14,
	FieldVolatility,
	FieldTotalReturn,
	FieldWinRate,
	FieldMaxDrawdown,
	FieldSharpe,
	FieldTrades,
}

// Stats summarises candles as one row of named features. Every key in
// StatsFields is present; a feature the history is too short for is nil.
func (e *Engine) Stats(symbol string, candles []models.Candle) (models.Row, error) {
	row := make(models.Row, len(StatsFields))
	for _, f := range StatsFields {
		row[f] = nil
	}
	if len(candles) == 0 {
		return row, nil
	}

	result, err := e.Run(candles)
	if err != nil {
		return nil, fmt.Errorf("stats for %s: %w", symbol, err)
	}
	closes, _ := closePrices(candles)
	last := len(closes) - 1

	row[FieldClose] = closes[last]
	row[FieldChangePercent] = (closes[last] - closes[0]) / closes[0] * 100
	if v, ok := SMA(closes, last, 20); ok {
		row[FieldSMA20] = v
	}
	if v, ok := RSI(closes, last, 14); ok {
		row[FieldRSI14] = v
	}
	if returns := dailyReturns(closes); len(returns) >= 2 {
		row[FieldVolatility] = stat.StdDev(returns, nil) * math.Sqrt(tradingDays) * 100
	}

	row[FieldTotalReturn] = result.TotalReturn
	row[FieldWinRate] = result.WinRate
	row[FieldMaxDrawdown] = result.MaxDrawdown
	row[FieldSharpe] = result.SharpeRatio
	row[FieldTrades] = len(result.Trades)

	return row, nil
}
