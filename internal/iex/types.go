// Package iex provides a client for the IEX-style stock data API: chart
// (OHLC) history, earnings and dividends for a single symbol.
package iex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"

	"btscreener/internal/models"
)

// ValidRanges lists the lookback ranges the chart and dividend endpoints accept.
var ValidRanges = []string{"5y", "2y", "1y", "ytd", "6m", "3m", "1m", "1d"}

// APIError represents a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("IEX API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// chartRecord is one bar as returned by /chart/{range}.
type chartRecord struct {
	Date   string   `json:"date"`
	Minute string   `json:"minute"`
	Open   *float64 `json:"open"`
	High   *float64 `json:"high"`
	Low    *float64 `json:"low"`
	Close  *float64 `json:"close"`
	Volume float64  `json:"volume"`
}

// earningsResponse is the /earnings envelope.
type earningsResponse struct {
	Symbol   string           `json:"symbol"`
	Earnings []earningsRecord `json:"earnings"`
}

type earningsRecord struct {
	EPSReportDate string   `json:"EPSReportDate"`
	FiscalEndDate string   `json:"fiscalEndDate"`
	FiscalPeriod  string   `json:"fiscalPeriod"`
	ActualEPS     *float64 `json:"actualEPS"`
	ConsensusEPS  *float64 `json:"consensusEPS"`
}

type dividendRecord struct {
	ExDate       string          `json:"exDate"`
	PaymentDate  string          `json:"paymentDate"`
	RecordDate   string          `json:"recordDate"`
	DeclaredDate string          `json:"declaredDate"`
	Amount       json.RawMessage `json:"amount"`
	Type         string          `json:"type"`
}

func (r chartRecord) toCandle() (models.Candle, error) {
	ts, err := r.timestamp()
	if err != nil {
		return models.Candle{}, err
	}
	if r.Close == nil {
		return models.Candle{}, fmt.Errorf("bar %s has no close", r.Date)
	}
	c := models.Candle{
		Timestamp: ts,
		Close:     *r.Close,
		Open:      valueOr(r.Open, *r.Close),
		High:      valueOr(r.High, *r.Close),
		Low:       valueOr(r.Low, *r.Close),
		Volume:    int64(r.Volume),
	}
	return c, nil
}

// timestamp handles both daily bars ("2018-05-01") and intraday bars
// ("20180501" plus "09:30").
func (r chartRecord) timestamp() (time.Time, error) {
	if r.Minute != "" {
		t, err := time.Parse("20060102 15:04", r.Date+" "+r.Minute)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing bar time %q %q: %w", r.Date, r.Minute, err)
		}
		return t, nil
	}
	return parseDate(r.Date)
}

func valueOr(p *float64, fallback float64) float64 {
	if p == nil {
		return fallback
	}
	return *p
}

func (r earningsRecord) toModel() (models.EarningsRecord, error) {
	report, err := parseDate(r.EPSReportDate)
	if err != nil {
		return models.EarningsRecord{}, err
	}
	fiscalEnd, err := parseOptionalDate(r.FiscalEndDate)
	if err != nil {
		return models.EarningsRecord{}, err
	}
	return models.EarningsRecord{
		ReportDate:    report,
		FiscalEndDate: fiscalEnd,
		FiscalPeriod:  r.FiscalPeriod,
		ActualEPS:     null.FloatFromPtr(r.ActualEPS),
		ConsensusEPS:  null.FloatFromPtr(r.ConsensusEPS),
	}, nil
}

func (r dividendRecord) toModel() (models.DividendRecord, error) {
	ex, err := parseDate(r.ExDate)
	if err != nil {
		return models.DividendRecord{}, err
	}
	rec := models.DividendRecord{ExDate: ex, Type: r.Type}
	if rec.DeclaredDate, err = parseOptionalDate(r.DeclaredDate); err != nil {
		return models.DividendRecord{}, err
	}
	if rec.PaymentDate, err = parseOptionalDate(r.PaymentDate); err != nil {
		return models.DividendRecord{}, err
	}
	if rec.RecordDate, err = parseOptionalDate(r.RecordDate); err != nil {
		return models.DividendRecord{}, err
	}
	if rec.Amount, err = parseAmount(r.Amount); err != nil {
		return models.DividendRecord{}, err
	}
	return rec, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}

// parseOptionalDate returns null for an empty string and an error for a
// malformed one.
func parseOptionalDate(s string) (null.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return null.Time{}, nil
	}
	t, err := parseDate(s)
	if err != nil {
		return null.Time{}, err
	}
	return null.TimeFrom(t), nil
}

// parseAmount accepts a JSON number, a numeric string, null, or nothing.
func parseAmount(raw json.RawMessage) (null.Float, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return null.Float{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return null.Float{}, fmt.Errorf("parsing amount: %w", err)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return null.Float{}, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return null.Float{}, fmt.Errorf("parsing amount %q: %w", s, err)
		}
		return null.FloatFrom(f), nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return null.Float{}, fmt.Errorf("parsing amount: %w", err)
	}
	return null.FloatFrom(f), nil
}
