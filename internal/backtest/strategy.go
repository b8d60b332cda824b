package backtest

import (
	"math"
	"strings"

	apperrors "btscreener/internal/errors"
)

// Signal is a strategy's instruction for one bar.
type Signal int

const (
	Hold Signal = iota
	Buy
	Sell
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Strategy names accepted by NewEngine.
const (
	StrategySMACrossover = "sma_crossover"
	StrategyRSIOversold  = "rsi_oversold"
	StrategyMACD         = "macd"
)

// SignalGenerator decides what to do at index given the closes seen so far
// (closes[:index+1]).
type SignalGenerator func(closes []float64, index int) Signal

func signalGenerator(strategy string) (SignalGenerator, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case "", StrategySMACrossover:
		return smaCrossover(10, 20), nil
	case StrategyRSIOversold:
		return rsiOversold(14, 30, 70), nil
	case StrategyMACD:
		return macdCrossover(12, 26, 9), nil
	default:
		return nil, apperrors.NewValidationError("strategy", strategy,
			"must be one of sma_crossover, rsi_oversold, macd")
	}
}

// smaCrossover buys when the short average crosses above the long one and
// sells on the opposite cross.
func smaCrossover(short, long int) SignalGenerator {
	return func(closes []float64, index int) Signal {
		if index < long {
			return Hold
		}
		s, _ := SMA(closes, index, short)
		l, _ := SMA(closes, index, long)
		ps, _ := SMA(closes, index-1, short)
		pl, _ := SMA(closes, index-1, long)

		switch {
		case ps <= pl && s > l:
			return Buy
		case ps >= pl && s < l:
			return Sell
		}
		return Hold
	}
}

// rsiOversold buys when RSI climbs out of the oversold band and sells when it
// drops back from overbought.
func rsiOversold(period int, oversold, overbought float64) SignalGenerator {
	return func(closes []float64, index int) Signal {
		if index < period+1 {
			return Hold
		}
		rsi, _ := RSI(closes, index, period)
		prev, _ := RSI(closes, index-1, period)

		switch {
		case prev <= oversold && rsi > oversold:
			return Buy
		case prev >= overbought && rsi < overbought:
			return Sell
		}
		return Hold
	}
}

// macdCrossover trades crosses of the MACD line over its signal line.
func macdCrossover(fast, slow, signal int) SignalGenerator {
	return func(closes []float64, index int) Signal {
		if index < slow+signal-1 {
			return Hold
		}
		macd, sig := MACD(closes[:index+1], fast, slow, signal)
		m, s := macd[index], sig[index]
		pm, ps := macd[index-1], sig[index-1]
		if math.IsNaN(s) || math.IsNaN(ps) {
			return Hold
		}

		switch {
		case pm <= ps && m > s:
			return Buy
		case pm >= ps && m < s:
			return Sell
		}
		return Hold
	}
}
