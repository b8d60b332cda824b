package iex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "btscreener/internal/errors"
)

type requestLog struct {
	mu   sync.Mutex
	uris []string
}

func (l *requestLog) add(uri string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.uris = append(l.uris, uri)
}

func (l *requestLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.uris...)
}

func newTestServer(t *testing.T, routes map[string]string) (*httptest.Server, *requestLog) {
	t.Helper()
	seen := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.add(r.URL.RequestURI())
		body, ok := routes[r.URL.Path]
		if !ok {
			http.Error(w, "Unknown symbol", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func date(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestChart(t *testing.T) {
	srv, seen := newTestServer(t, map[string]string{
		"/stock/aapl/chart/1m": `[
			{"date":"2024-01-03","open":10,"high":12,"low":9,"close":11,"volume":1000},
			{"date":"2024-01-02","open":9,"high":10,"low":8,"close":10,"volume":900}
		]`,
	})
	client := NewClient(WithBaseURL(srv.URL))

	candles, err := client.Chart(context.Background(), "AAPL", "")
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, date("2024-01-02"), candles[0].Timestamp)
	assert.Equal(t, 10.0, candles[0].Close)
	assert.Equal(t, int64(1000), candles[1].Volume)
	assert.Equal(t, []string{"/stock/aapl/chart/1m"}, seen.all())
}

func TestChartIntradayBars(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{
		"/stock/aapl/chart/1d": `[{"date":"20240102","minute":"09:30","close":10.5}]`,
	})
	client := NewClient(WithBaseURL(srv.URL))

	candles, err := client.Chart(context.Background(), "aapl", "1d")
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC), candles[0].Timestamp)
	assert.Equal(t, 10.5, candles[0].Open)
}

func TestChartRejectsUnknownRangeBeforeRequest(t *testing.T) {
	srv, seen := newTestServer(t, nil)
	client := NewClient(WithBaseURL(srv.URL))

	_, err := client.Chart(context.Background(), "aapl", "10y")
	require.Error(t, err)

	var verr *apperrors.ValidationError
	assert.True(t, apperrors.As(err, &verr))
	assert.Empty(t, seen.all())
}

func TestEarnings(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{
		"/stock/msft/earnings": `{"symbol":"MSFT","earnings":[
			{"actualEPS":2.1,"consensusEPS":2.0,"EPSReportDate":"2024-04-25","fiscalEndDate":"2024-03-31","fiscalPeriod":"Q3 2024"},
			{"actualEPS":null,"EPSReportDate":"2024-01-30","fiscalEndDate":"","fiscalPeriod":"Q2 2024"}
		]}`,
	})
	client := NewClient(WithBaseURL(srv.URL))

	records, err := client.Earnings(context.Background(), "msft")
	require.NoError(t, err)
	require.Len(t, records, 2)

	// sorted ascending
	assert.Equal(t, date("2024-01-30"), records[0].ReportDate)
	assert.False(t, records[0].ActualEPS.Valid)
	assert.False(t, records[0].FiscalEndDate.Valid)

	assert.Equal(t, date("2024-04-25"), records[1].ReportDate)
	assert.Equal(t, 2.1, records[1].ActualEPS.Float64)
	assert.Equal(t, date("2024-03-31"), records[1].FiscalEndDate.Time)
}

func TestEarningsAbsence(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"empty array", `[]`},
		{"empty earnings", `{"symbol":"X","earnings":[]}`},
		{"no report dates", `{"earnings":[{"actualEPS":1.0}]}`},
		{"blank body", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, map[string]string{"/stock/x/earnings": tt.body})
			client := NewClient(WithBaseURL(srv.URL))

			records, err := client.Earnings(context.Background(), "x")
			require.NoError(t, err)
			assert.Nil(t, records)
		})
	}
}

func TestEarningsFailures(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		target error
	}{
		{"not json", `Unknown symbol`, apperrors.ErrParse},
		{"wrong shape", `{"earnings":"soon"}`, apperrors.ErrParse},
		{"malformed date", `{"earnings":[{"EPSReportDate":"April 25"}]}`, apperrors.ErrParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, map[string]string{"/stock/x/earnings": tt.body})
			client := NewClient(WithBaseURL(srv.URL))

			_, err := client.Earnings(context.Background(), "x")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)

			var derr *apperrors.DataError
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, DataTypeEarnings, derr.DataType)
			assert.Equal(t, "x", derr.Symbol)
		})
	}
}

func TestStatusErrorIsAPIError(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	client := NewClient(WithBaseURL(srv.URL))

	_, err := client.Earnings(context.Background(), "nope")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "/stock/nope/earnings", apiErr.Endpoint)
}

func TestTransportFailure(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	url := srv.URL
	srv.Close()

	client := NewClient(WithBaseURL(url), WithTimeout(time.Second))
	_, err := client.Dividends(context.Background(), "aapl", "1y")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrConnectionFailed)
}

func TestDividends(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{
		"/stock/ko/dividends/1y": `[
			{"exDate":"2024-06-14","paymentDate":"2024-07-01","recordDate":"2024-06-14","declaredDate":"2024-04-24","amount":0.485,"type":"Dividend income"},
			{"exDate":"2024-03-14","paymentDate":"","recordDate":"2024-03-15","declaredDate":"2024-02-15","amount":"0.485","type":"Dividend income"},
			{"exDate":"","amount":1}
		]`,
	})
	client := NewClient(WithBaseURL(srv.URL))

	records, err := client.Dividends(context.Background(), "KO", "")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, date("2024-03-14"), records[0].ExDate)
	assert.False(t, records[0].PaymentDate.Valid)
	assert.Equal(t, 0.485, records[0].Amount.Float64)

	assert.Equal(t, date("2024-06-14"), records[1].ExDate)
	assert.Equal(t, date("2024-07-01"), records[1].PaymentDate.Time)
	assert.Equal(t, "Dividend income", records[1].Type)
}

func TestDividendsAbsence(t *testing.T) {
	for _, body := range []string{`[]`, `{}`, ``} {
		srv, _ := newTestServer(t, map[string]string{"/stock/tsla/dividends/1y": body})
		client := NewClient(WithBaseURL(srv.URL))

		records, err := client.Dividends(context.Background(), "tsla", "1y")
		require.NoError(t, err, "body %q", body)
		assert.Nil(t, records, "body %q", body)
	}
}

func TestDividendsMalformedAmount(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{
		"/stock/ko/dividends/1y": `[{"exDate":"2024-06-14","amount":"n/a"}]`,
	})
	client := NewClient(WithBaseURL(srv.URL))

	_, err := client.Dividends(context.Background(), "ko", "1y")
	assert.ErrorIs(t, err, apperrors.ErrParse)
}

func TestTokenPropagation(t *testing.T) {
	srv, seen := newTestServer(t, map[string]string{"/stock/aapl/earnings": `[]`})
	client := NewClient(WithBaseURL(srv.URL+"/"), WithToken("pk_test"))

	_, err := client.Earnings(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, []string{"/stock/aapl/earnings?token=pk_test"}, seen.all())
}

func TestContextCancellation(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{"/stock/aapl/earnings": `[]`})
	client := NewClient(WithBaseURL(srv.URL))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Earnings(ctx, "aapl")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTimeoutDoesNotTouchSuppliedClient(t *testing.T) {
	shared := &http.Client{Timeout: 7 * time.Second}

	client := NewClient(WithTimeout(2*time.Second), WithHTTPClient(shared))
	assert.Equal(t, 2*time.Second, client.httpClient.Timeout)
	assert.Equal(t, 7*time.Second, shared.Timeout)
	assert.NotSame(t, shared, client.httpClient)

	client = NewClient(WithHTTPClient(shared), WithTimeout(3*time.Second))
	assert.Equal(t, 3*time.Second, client.httpClient.Timeout)
	assert.Equal(t, 7*time.Second, shared.Timeout)
}

func TestNilHTTPClientFallsBack(t *testing.T) {
	client := NewClient(WithHTTPClient(nil), WithTimeout(time.Second))
	require.NotNil(t, client.httpClient)
	assert.Equal(t, time.Second, client.httpClient.Timeout)
	assert.Equal(t, DefaultTimeout, NewClient().httpClient.Timeout)
}
