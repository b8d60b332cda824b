package backtest

import (
	"testing"
	"time"

	"btscreener/internal/models"
)

func BenchmarkIndicators(b *testing.B) {
	candles := generateTestCandles(500)
	closes, _ := closePrices(candles)
	last := len(closes) - 1

	b.Run("SMA", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			SMA(closes, last, 20)
		}
	})

	b.Run("RSI", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			RSI(closes, last, 14)
		}
	})

	b.Run("MACD", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			MACD(closes, 12, 26, 9)
		}
	})
}

// BenchmarkStats covers one full replay plus the feature row per strategy.
func BenchmarkStats(b *testing.B) {
	candles := generateTestCandles(500)

	for _, strategy := range []string{StrategySMACrossover, StrategyRSIOversold, StrategyMACD} {
		b.Run(strategy, func(b *testing.B) {
			cfg := DefaultConfig()
			cfg.Strategy = strategy
			engine, err := NewEngine(cfg)
			if err != nil {
				b.Fatal(err)
			}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := engine.Stats("bench", candles); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// generateTestCandles generates a saw-tooth daily series.
func generateTestCandles(count int) []models.Candle {
	candles := make([]models.Candle, count)
	basePrice := 100.0
	baseTime := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)

	for i := 0; i < count; i++ {
		change := (float64(i%20) - 10) * 0.05
		open := basePrice + change
		close := open + (float64(i%10)-5)*0.03

		candles[i] = models.Candle{
			Timestamp: baseTime.AddDate(0, 0, i),
			Open:      open,
			High:      open + float64(i%5)*0.05,
			Low:       open - float64(i%5)*0.05,
			Close:     close,
			Volume:    int64(10000 + i*100),
		}
		basePrice = close
	}

	return candles
}
