package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// SMA returns the simple moving average of the period closes ending at index.
func SMA(closes []float64, index, period int) (float64, bool) {
	if period <= 0 || index < period-1 || index >= len(closes) {
		return 0, false
	}
	return stat.Mean(closes[index-period+1:index+1], nil), true
}

// RSI returns the relative strength index over the period price changes
// ending at index. A window without any movement reads 50.
func RSI(closes []float64, index, period int) (float64, bool) {
	if period <= 0 || index < period || index >= len(closes) {
		return 0, false
	}

	var gains, losses float64
	for i := index - period + 1; i <= index; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	switch {
	case gains == 0 && losses == 0:
		return 50, true
	case losses == 0:
		return 100, true
	}

	rs := gains / losses
	return 100 - (100 / (1 + rs)), true
}

// ema computes an exponential moving average of values. Entries before the
// seed (the SMA of the first period values from start) are NaN.
func ema(values []float64, start, period int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	seed := start + period - 1
	if period <= 0 || seed >= len(values) {
		return out
	}

	out[seed] = stat.Mean(values[start:seed+1], nil)
	k := 2.0 / float64(period+1)
	for i := seed + 1; i < len(values); i++ {
		out[i] = (values[i]-out[i-1])*k + out[i-1]
	}
	return out
}

// MACD returns the MACD line (fast EMA minus slow EMA) and its signal line.
// Both are NaN until enough history has accumulated.
func MACD(closes []float64, fast, slow, signal int) (macd, signalLine []float64) {
	fastEMA := ema(closes, 0, fast)
	slowEMA := ema(closes, 0, slow)

	macd = make([]float64, len(closes))
	for i := range closes {
		macd[i] = fastEMA[i] - slowEMA[i]
	}

	signalLine = ema(macd, slow-1, signal)
	return macd, signalLine
}

// dailyReturns converts a price or equity series into simple period returns.
func dailyReturns(series []float64) []float64 {
	if len(series) < 2 {
		return nil
	}
	out := make([]float64, 0, len(series)-1)
	for i := 1; i < len(series); i++ {
		if series[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (series[i]-series[i-1])/series[i-1])
	}
	return out
}
