// Package store persists downloaded bars and finished collection runs.
package store

import (
	"context"
	"time"

	"btscreener/internal/models"
)

// CandleStore saves and reloads price history keyed by symbol and range.
type CandleStore interface {
	SaveCandles(ctx context.Context, symbol, rng string, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol, rng string) ([]models.Candle, error)
}

// RunStore saves collection tables for later display.
type RunStore interface {
	SaveRun(ctx context.Context, run *Run) (int64, error)
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
	GetRun(ctx context.Context, id int64) (*Run, error)
}

// Run is a persisted collection table. Rows read back from the store carry
// JSON-decoded values: numbers are float64 and dates are RFC 3339 strings.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Groups     []string
	Symbols    []string
	Rows       map[string]models.Row
	Errors     map[string]string
}

// RunSummary is one line of the run listing.
type RunSummary struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Groups     []string
	Symbols    int
	Failed     int
}
