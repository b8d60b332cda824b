// Package collector runs the per-symbol collection (chart statistics plus
// the event calendar) over a symbol list and assembles the results into one
// table keyed by symbol.
package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	apperrors "btscreener/internal/errors"
	"btscreener/internal/logging"
	"btscreener/internal/models"
)

// FailurePolicy decides what a failed symbol does to the run.
type FailurePolicy string

const (
	// Isolate records the failure on the symbol's row and carries on.
	Isolate FailurePolicy = "isolate"
	// FailFast cancels the remaining symbols and fails the run.
	FailFast FailurePolicy = "fail-fast"
)

// CollisionPolicy decides what Merge does when both partial rows carry the
// same key.
type CollisionPolicy string

const (
	// CollisionError rejects the merge.
	CollisionError CollisionPolicy = "error"
	// LastWins keeps the later row's value.
	LastWins CollisionPolicy = "last-wins"
)

// ChartSource loads price history.
type ChartSource interface {
	Chart(ctx context.Context, symbol, rng string) ([]models.Candle, error)
}

// StatsEngine turns price history into a row of features.
type StatsEngine interface {
	Stats(symbol string, candles []models.Candle) (models.Row, error)
}

// CalendarBuilder produces a symbol's event calendar.
type CalendarBuilder interface {
	Build(ctx context.Context, symbol string) (models.CalendarSummary, error)
}

// Options configures a Collector.
type Options struct {
	PoolSize        int
	ChartRange      string
	FailurePolicy   FailurePolicy
	CollisionPolicy CollisionPolicy
}

// Collector runs collection units on a bounded pool.
type Collector struct {
	charts   ChartSource
	stats    StatsEngine
	calendar CalendarBuilder
	opts     Options
	logger   zerolog.Logger
}

// New creates a Collector. Zero option values fall back to a pool of one,
// isolate and error.
func New(charts ChartSource, stats StatsEngine, calendar CalendarBuilder, opts Options, logger zerolog.Logger) *Collector {
	if opts.PoolSize < 1 {
		opts.PoolSize = 1
	}
	if opts.FailurePolicy == "" {
		opts.FailurePolicy = Isolate
	}
	if opts.CollisionPolicy == "" {
		opts.CollisionPolicy = CollisionError
	}
	return &Collector{
		charts:   charts,
		stats:    stats,
		calendar: calendar,
		opts:     opts,
		logger:   logger,
	}
}

type unitResult struct {
	row models.Row
	err error
}

// Run collects every distinct symbol and returns the assembled table. Under
// Isolate the table carries an error row for each failed symbol; under
// FailFast the first failure is returned instead.
func (c *Collector) Run(ctx context.Context, symbols []string) (*Table, error) {
	symbols = Dedupe(symbols)
	if len(symbols) == 0 {
		return nil, apperrors.ErrNoSymbols
	}

	table := NewTable()
	table.StartedAt = time.Now()

	results := make([]unitResult, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.PoolSize)

	for i, symbol := range symbols {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = unitResult{err: err}
				return nil
			}
			row, err := c.CollectSymbol(gctx, symbol)
			results[i] = unitResult{row: row, err: err}
			if err != nil && c.opts.FailurePolicy == FailFast {
				return fmt.Errorf("collecting %s: %w", symbol, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, symbol := range symbols {
		res := results[i]
		if res.err != nil {
			logging.LogSymbolFailure(c.logger, symbol, res.err)
			table.SetError(symbol, res.err)
			continue
		}
		table.Set(symbol, res.row)
	}

	table.FinishedAt = time.Now()
	c.logger.Info().
		Int("symbols", table.Len()).
		Int("failed", len(table.Errors)).
		Dur("elapsed", table.FinishedAt.Sub(table.StartedAt)).
		Msg("Collection finished")

	return table, nil
}

// CollectSymbol builds the merged row for one symbol.
func (c *Collector) CollectSymbol(ctx context.Context, symbol string) (models.Row, error) {
	c.logger.Info().Str("symbol", symbol).Msgf("Collecting stats for symbol: %s", symbol)
	log := logging.WithSymbol(c.logger, symbol)

	candles, err := c.charts.Chart(ctx, symbol, c.opts.ChartRange)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("bars", len(candles)).Msg("Loaded chart")

	stats, err := c.stats.Stats(symbol, candles)
	if err != nil {
		return nil, err
	}

	summary, err := c.calendar.Build(ctx, symbol)
	if err != nil {
		return nil, err
	}

	return Merge(symbol, c.opts.CollisionPolicy, stats, summary.Row())
}

// Merge combines partial rows left to right. A key present in more than one
// part is a CollisionError under CollisionError and takes the later value
// under LastWins.
func Merge(symbol string, policy CollisionPolicy, parts ...models.Row) (models.Row, error) {
	out := models.Row{}
	for _, part := range parts {
		for k, v := range part {
			if _, exists := out[k]; exists && policy != LastWins {
				return nil, &apperrors.CollisionError{Symbol: symbol, Field: k}
			}
			out[k] = v
		}
	}
	return out, nil
}

// Dedupe trims symbols and drops blanks and repeats, keeping first-seen order.
// Tickers are case-insensitive, so "AAPL" and "aapl" are one symbol and the
// first spelling is kept.
func Dedupe(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	seen := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// ParseFailurePolicy validates a failure policy name.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch p := FailurePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case Isolate, FailFast:
		return p, nil
	}
	return "", apperrors.NewValidationError("failure_policy", s, "must be isolate or fail-fast")
}

// ParseCollisionPolicy validates a collision policy name.
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch p := CollisionPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case CollisionError, LastWins:
		return p, nil
	}
	return "", apperrors.NewValidationError("collision_policy", s, "must be error or last-wins")
}
