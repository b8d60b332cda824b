package collector

import (
	"sort"
	"time"

	"btscreener/internal/backtest"
	"btscreener/internal/models"
)

// FieldError holds the failure reason on the row of a symbol that could not
// be collected.
const FieldError = "error"

// fieldOrder fixes the column order of the known fields. Anything else sorts
// after them.
var fieldOrder = func() map[string]int {
	order := map[string]int{}
	for _, f := range backtest.StatsFields {
		order[f] = len(order)
	}
	for _, f := range models.CalendarFields {
		order[f] = len(order)
	}
	order[FieldError] = len(order)
	return order
}()

// Table is the result of a collection run: one row per distinct symbol, in
// first-seen order.
type Table struct {
	Symbols    []string
	Rows       map[string]models.Row
	Errors     map[string]error
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{
		Rows:   map[string]models.Row{},
		Errors: map[string]error{},
	}
}

// Set stores row for symbol, appending symbol to the order if new.
func (t *Table) Set(symbol string, row models.Row) {
	if _, ok := t.Rows[symbol]; !ok {
		t.Symbols = append(t.Symbols, symbol)
	}
	t.Rows[symbol] = row
}

// SetError records a failed symbol with an error row.
func (t *Table) SetError(symbol string, err error) {
	t.Set(symbol, models.Row{FieldError: err.Error()})
	t.Errors[symbol] = err
}

// Row returns the row for symbol.
func (t *Table) Row(symbol string) (models.Row, bool) {
	row, ok := t.Rows[symbol]
	return row, ok
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Symbols)
}

// Failed returns the symbols whose collection failed, in table order.
func (t *Table) Failed() []string {
	var out []string
	for _, s := range t.Symbols {
		if _, ok := t.Errors[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Columns returns the union of all row keys in first-seen order.
func (t *Table) Columns() []string {
	var cols []string
	seen := map[string]bool{}
	for _, s := range t.Symbols {
		for _, k := range orderedKeys(t.Rows[s]) {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}

func orderedKeys(row models.Row) []string {
	keys := row.Keys()
	sort.SliceStable(keys, func(i, j int) bool {
		oi, iok := fieldOrder[keys[i]]
		oj, jok := fieldOrder[keys[j]]
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		}
		return keys[i] < keys[j]
	})
	return keys
}
