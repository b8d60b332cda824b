package cli

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"btscreener/internal/collector"
	"btscreener/internal/models"
)

// Missing is printed for an absent field.
const Missing = "-"

// FormatValue renders one table cell.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return Missing
	case time.Time:
		return FormatDate(val)
	case float64:
		return FormatFloat(val)
	case float32:
		return FormatFloat(float64(val))
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case string:
		// Dates in reloaded runs come back as RFC 3339 strings.
		if t, err := time.Parse(time.RFC3339, val); err == nil {
			return FormatDate(t)
		}
		return val
	default:
		return fmt.Sprint(val)
	}
}

// FormatDate formats t as YYYY-MM-DD, or with the clock for intraday times.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return Missing
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format(models.DateLayout)
	}
	return t.Format("2006-01-02 15:04")
}

// FormatFloat rounds to four decimals and drops trailing zeros.
func FormatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Missing
	}
	return strconv.FormatFloat(math.Round(f*10000)/10000, 'f', -1, 64)
}

// FormatPrice formats a price with two decimals.
func FormatPrice(price float64) string {
	return fmt.Sprintf("%.2f", price)
}

// FormatVolume formats volume in compact form.
func FormatVolume(volume int64) string {
	switch {
	case volume >= 1e9:
		return fmt.Sprintf("%.2fB", float64(volume)/1e9)
	case volume >= 1e6:
		return fmt.Sprintf("%.2fM", float64(volume)/1e6)
	case volume >= 1e3:
		return fmt.Sprintf("%.2fK", float64(volume)/1e3)
	}
	return strconv.FormatInt(volume, 10)
}

// renderTable writes an aligned table with a header rule.
func renderTable(w io.Writer, headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))

	rule := make([]string, len(headers))
	for i, h := range headers {
		rule[i] = strings.Repeat("-", len(h))
	}
	fmt.Fprintln(tw, strings.Join(rule, "\t"))

	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// tableRecords flattens a collection table into header and cell rows.
func tableRecords(table *collector.Table) ([]string, [][]string) {
	columns := table.Columns()
	headers := append([]string{"symbol"}, columns...)

	rows := make([][]string, 0, table.Len())
	for _, symbol := range table.Symbols {
		row, _ := table.Row(symbol)
		cells := make([]string, 0, len(headers))
		cells = append(cells, symbol)
		for _, col := range columns {
			cells = append(cells, FormatValue(row[col]))
		}
		rows = append(rows, cells)
	}
	return headers, rows
}

// tableJSON converts a collection table to a list of objects in symbol order.
// Every object carries the full column set so absent fields encode as null.
func tableJSON(table *collector.Table) []map[string]any {
	columns := table.Columns()
	out := make([]map[string]any, 0, table.Len())
	for _, symbol := range table.Symbols {
		row, _ := table.Row(symbol)
		obj := map[string]any{"symbol": symbol}
		for _, col := range columns {
			obj[col] = jsonValue(row[col])
		}
		out = append(out, obj)
	}
	return out
}

// jsonValue renders dates as YYYY-MM-DD so fresh and reloaded tables encode
// the same way.
func jsonValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return FormatDate(val)
	case string:
		if t, err := time.Parse(time.RFC3339, val); err == nil {
			return FormatDate(t)
		}
	}
	return v
}

func renderCollection(output *Output, table *collector.Table) error {
	if output.IsJSON() {
		return output.JSON(tableJSON(table))
	}

	headers, rows := tableRecords(table)
	if err := renderTable(output.Writer(), headers, rows); err != nil {
		return err
	}
	if failed := table.Failed(); len(failed) > 0 {
		output.Println()
		output.Warning("%d of %d symbols failed: %s", len(failed), table.Len(), strings.Join(failed, ", "))
	}
	return nil
}
