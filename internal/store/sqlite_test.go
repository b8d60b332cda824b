package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "btscreener/internal/errors"
	"btscreener/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleCandles() []models.Candle {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	return []models.Candle{
		{Timestamp: start, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 1000},
		{Timestamp: start.AddDate(0, 0, 1), Open: 10.5, High: 12, Low: 10, Close: 11.75, Volume: 1500},
	}
}

func TestCandleRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCandles(ctx, "aapl", "1m", sampleCandles()))
	// saving again replaces rather than duplicates
	require.NoError(t, s.SaveCandles(ctx, "aapl", "1m", sampleCandles()))

	got, err := s.GetCandles(ctx, "aapl", "1m")
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i, want := range sampleCandles() {
		assert.True(t, want.Timestamp.Equal(got[i].Timestamp))
		assert.Equal(t, want.Close, got[i].Close)
		assert.Equal(t, want.Volume, got[i].Volume)
	}

	other, err := s.GetCandles(ctx, "aapl", "1y")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestCandleRoundTripProperty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	counter := 0
	properties.Property("saved candles read back unchanged", prop.ForAll(
		func(closes []float64) bool {
			counter++
			symbol := fmt.Sprintf("sym%d", counter)
			start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

			candles := make([]models.Candle, len(closes))
			for i, c := range closes {
				candles[i] = models.Candle{Timestamp: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: int64(i)}
			}
			if err := s.SaveCandles(ctx, symbol, "5y", candles); err != nil {
				t.Logf("save: %v", err)
				return false
			}
			got, err := s.GetCandles(ctx, symbol, "5y")
			if err != nil || len(got) != len(candles) {
				return false
			}
			for i := range candles {
				if got[i].Close != candles[i].Close || !got[i].Timestamp.Equal(candles[i].Timestamp) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(0.01, 5000)),
	))

	properties.TestingRun(t)
}

func TestRunRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	started := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	run := &Run{
		StartedAt:  started,
		FinishedAt: started.Add(3 * time.Second),
		Groups:     []string{"faves", "dji"},
		Symbols:    []string{"aapl", "bad"},
		Rows: map[string]models.Row{
			"aapl": {"close": 190.5, "trades": 2, models.FieldNextExDate: time.Date(2024, 8, 9, 0, 0, 0, 0, time.UTC), models.FieldLastDividend: nil},
			"bad":  {"error": "chart unavailable"},
		},
		Errors: map[string]string{"bad": "chart unavailable"},
	}

	id, err := s.SaveRun(ctx, run)
	require.NoError(t, err)
	assert.Equal(t, id, run.ID)

	got, err := s.GetRun(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, []string{"aapl", "bad"}, got.Symbols)
	assert.Equal(t, []string{"faves", "dji"}, got.Groups)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Equal(t, 190.5, got.Rows["aapl"]["close"])
	assert.Equal(t, 2.0, got.Rows["aapl"]["trades"])
	assert.Equal(t, "2024-08-09T00:00:00Z", got.Rows["aapl"][models.FieldNextExDate])
	assert.Contains(t, got.Rows["aapl"], models.FieldLastDividend)
	assert.Nil(t, got.Rows["aapl"][models.FieldLastDividend])
	assert.Equal(t, map[string]string{"bad": "chart unavailable"}, got.Errors)
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := s.SaveRun(ctx, &Run{
			StartedAt:  now.Add(time.Duration(i) * time.Hour),
			FinishedAt: now.Add(time.Duration(i) * time.Hour),
			Symbols:    []string{"a", "b"},
			Rows:       map[string]models.Row{"a": {}, "b": {"error": "x"}},
			Errors:     map[string]string{"b": "x"},
		})
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Greater(t, runs[0].ID, runs[1].ID)
	assert.Equal(t, 2, runs[0].Symbols)
	assert.Equal(t, 1, runs[0].Failed)
	assert.Empty(t, runs[0].Groups)

	all, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), 42)
	assert.ErrorIs(t, err, apperrors.ErrDataNotFound)
}

func TestParquetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "aapl.parquet")
	require.NoError(t, WriteCandlesParquet(path, "aapl", sampleCandles()))

	got, err := ReadCandlesParquet(path)
	require.NoError(t, err)
	assert.Equal(t, sampleCandles(), got)
}
