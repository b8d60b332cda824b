package calendar

import (
	"context"
	"time"

	"github.com/guregu/null/v6"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"btscreener/internal/models"
)

// EventSource loads a symbol's corporate event history. A nil slice with a
// nil error means the symbol has no history of that kind.
type EventSource interface {
	Earnings(ctx context.Context, symbol string) ([]models.EarningsRecord, error)
	Dividends(ctx context.Context, symbol, rng string) ([]models.DividendRecord, error)
}

// Builder assembles a CalendarSummary from an EventSource.
type Builder struct {
	Source        EventSource
	DividendRange string

	// NextExFromEarnings estimates the next ex-date from earnings report
	// dates rather than past ex-dates.
	NextExFromEarnings bool

	Now    func() time.Time
	Logger zerolog.Logger
}

// NewBuilder creates a Builder reading from source with the wall clock.
func NewBuilder(source EventSource, logger zerolog.Logger) *Builder {
	return &Builder{
		Source: source,
		Now:    time.Now,
		Logger: logger,
	}
}

// Build loads both event series for symbol and summarises them. Either load
// failing fails the build; an empty series only nulls its fields.
func (b *Builder) Build(ctx context.Context, symbol string) (models.CalendarSummary, error) {
	var (
		earnings  []models.EarningsRecord
		dividends []models.DividendRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		earnings, err = b.Source.Earnings(gctx, symbol)
		return err
	})
	g.Go(func() error {
		var err error
		dividends, err = b.Source.Dividends(gctx, symbol, b.DividendRange)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.CalendarSummary{Symbol: symbol}, err
	}

	summary := Summarize(symbol, earnings, dividends, b.now(), b.NextExFromEarnings)

	b.Logger.Debug().
		Str("symbol", symbol).
		Int("earnings", len(earnings)).
		Int("dividends", len(dividends)).
		Msg("Calendar built")

	return summary, nil
}

func (b *Builder) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}

// Summarize computes the calendar fields from already loaded series.
func Summarize(symbol string, earnings []models.EarningsRecord, dividends []models.DividendRecord, today time.Time, nextExFromEarnings bool) models.CalendarSummary {
	summary := models.CalendarSummary{Symbol: symbol}

	reportDates := make([]time.Time, 0, len(earnings))
	for _, e := range earnings {
		reportDates = append(reportDates, e.ReportDate)
	}

	if len(reportDates) > 0 {
		summary.LastEPSReportDate = null.TimeFrom(latest(reportDates))
		summary.NextEPSReportDate = EstimateNext(reportDates, today)
	}

	if len(dividends) > 0 {
		exDates := make([]time.Time, 0, len(dividends))
		last := dividends[0]
		for _, d := range dividends {
			exDates = append(exDates, d.ExDate)
			if !d.ExDate.Before(last.ExDate) {
				last = d
			}
		}

		summary.LastExDate = null.TimeFrom(last.ExDate)
		summary.LastDividend = last.Amount

		if nextExFromEarnings {
			summary.NextExDate = EstimateNext(reportDates, today)
		} else {
			summary.NextExDate = EstimateNext(exDates, today)
		}
	}

	return summary
}

func latest(dates []time.Time) time.Time {
	newest := dates[0]
	for _, d := range dates[1:] {
		if d.After(newest) {
			newest = d
		}
	}
	return newest
}
