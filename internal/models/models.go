// Package models provides domain models for the screener.
package models

import (
	"sort"
	"time"

	"github.com/guregu/null/v6"
)

// DateLayout is the wire format of every date the data API returns.
const DateLayout = "2006-01-02"

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// EarningsRecord is one reported quarter.
type EarningsRecord struct {
	ReportDate    time.Time
	FiscalEndDate null.Time
	FiscalPeriod  string
	ActualEPS     null.Float
	ConsensusEPS  null.Float
}

// DividendRecord is one declared dividend, keyed by its ex-date.
type DividendRecord struct {
	ExDate       time.Time
	DeclaredDate null.Time
	PaymentDate  null.Time
	RecordDate   null.Time
	Amount       null.Float
	Type         string
}

// SortEarnings orders records by report date, oldest first.
func SortEarnings(records []EarningsRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ReportDate.Before(records[j].ReportDate)
	})
}

// SortDividends orders records by ex-date, oldest first.
func SortDividends(records []DividendRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ExDate.Before(records[j].ExDate)
	})
}

// Calendar row keys.
const (
	FieldLastEPSReportDate = "lastEPSReportDate"
	FieldNextEPSReportDate = "nextEPSReportDate"
	FieldLastExDate        = "lastExDate"
	FieldLastDividend      = "lastDividend"
	FieldNextExDate        = "nextExDate"
)

// CalendarFields lists the calendar keys in display order.
var CalendarFields = []string{
	FieldLastEPSReportDate,
	FieldNextEPSReportDate,
	FieldLastExDate,
	FieldLastDividend,
	FieldNextExDate,
}

// CalendarSummary is the fixed-schema event summary for one symbol.
// A field is null when its source series was empty.
type CalendarSummary struct {
	Symbol            string     `json:"symbol"`
	LastEPSReportDate null.Time  `json:"lastEPSReportDate"`
	NextEPSReportDate null.Time  `json:"nextEPSReportDate"`
	LastExDate        null.Time  `json:"lastExDate"`
	LastDividend      null.Float `json:"lastDividend"`
	NextExDate        null.Time  `json:"nextExDate"`
}

// Row returns the summary as a partial table row. Null fields map to nil.
func (c CalendarSummary) Row() Row {
	return Row{
		FieldLastEPSReportDate: timeValue(c.LastEPSReportDate),
		FieldNextEPSReportDate: timeValue(c.NextEPSReportDate),
		FieldLastExDate:        timeValue(c.LastExDate),
		FieldLastDividend:      floatValue(c.LastDividend),
		FieldNextExDate:        timeValue(c.NextExDate),
	}
}

func timeValue(t null.Time) any {
	if !t.Valid {
		return nil
	}
	return t.Time
}

func floatValue(f null.Float) any {
	if !f.Valid {
		return nil
	}
	return f.Float64
}

// Row is one symbol's fields keyed by name. A nil value means the field is absent.
type Row map[string]any

// Keys returns the row's field names in sorted order.
func (r Row) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
