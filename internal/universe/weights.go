package universe

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog"

	apperrors "btscreener/internal/errors"
)

// Weight is one row of the S&P 500 ranking table.
type Weight struct {
	Rank    int     `csv:"#" json:"rank"`
	Company string  `csv:"Company" json:"company"`
	Symbol  string  `csv:"Symbol" json:"symbol"`
	Weight  float64 `csv:"Weight" json:"weight"`
	Price   float64 `csv:"Price" json:"price"`
	Change  float64 `csv:"Change" json:"change"`
}

// Loader reads the ranking table, preferring the parsed CSV cache over the
// saved HTML page.
type Loader struct {
	PagePath  string
	CachePath string
	Logger    zerolog.Logger
}

// NewLoader creates a Loader.
func NewLoader(pagePath, cachePath string, logger zerolog.Logger) *Loader {
	return &Loader{
		PagePath:  pagePath,
		CachePath: cachePath,
		Logger:    logger,
	}
}

// SP500Weights returns the ranking table. A missing cache is rebuilt from
// the page and written back; a cache that exists but does not parse is an
// error.
func (l *Loader) SP500Weights() ([]Weight, error) {
	f, err := os.Open(l.CachePath)
	if err == nil {
		defer f.Close()
		weights, err := ReadWeightsCSV(f)
		if err != nil {
			return nil, apperrors.NewDataError("weights", "", "corrupt cache "+l.CachePath,
				fmt.Errorf("%w: %w", apperrors.ErrParse, err))
		}
		l.Logger.Debug().Str("path", l.CachePath).Int("rows", len(weights)).Msg("Loaded weights cache")
		return weights, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NewDataError("weights", "", "opening cache", err)
	}

	page, err := os.Open(l.PagePath)
	if err != nil {
		return nil, apperrors.NewDataError("weights", "", "opening page "+l.PagePath, err)
	}
	defer page.Close()

	weights, err := ParseWeightsHTML(page)
	if err != nil {
		return nil, apperrors.NewDataError("weights", "", "parsing page "+l.PagePath,
			fmt.Errorf("%w: %w", apperrors.ErrParse, err))
	}

	if err := l.writeCache(weights); err != nil {
		l.Logger.Warn().Err(err).Str("path", l.CachePath).Msg("Could not write weights cache")
	} else {
		l.Logger.Info().Str("path", l.CachePath).Int("rows", len(weights)).Msg("Wrote weights cache")
	}
	return weights, nil
}

func (l *Loader) writeCache(weights []Weight) error {
	if dir := filepath.Dir(l.CachePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.Create(l.CachePath)
	if err != nil {
		return err
	}
	if err := WriteWeightsCSV(f, weights); err != nil {
		f.Close()
		os.Remove(l.CachePath)
		return err
	}
	return f.Close()
}

// ReadWeightsCSV decodes a cache written by WriteWeightsCSV.
func ReadWeightsCSV(r io.Reader) ([]Weight, error) {
	var weights []Weight
	if err := gocsv.Unmarshal(r, &weights); err != nil {
		return nil, err
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("no rows")
	}
	for i, w := range weights {
		if strings.TrimSpace(w.Symbol) == "" {
			return nil, fmt.Errorf("row %d: missing symbol", i+1)
		}
	}
	return weights, nil
}

// WriteWeightsCSV encodes weights with a header row.
func WriteWeightsCSV(w io.Writer, weights []Weight) error {
	return gocsv.Marshal(weights, w)
}

// ParseWeightsHTML extracts the ranking table from a saved copy of the
// weights page. Only the first table with a header is read; its columns are
// located by header text.
func ParseWeightsHTML(r io.Reader) ([]Weight, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	tbl := doc.Find("table").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find("thead").Length() > 0
	}).First()
	if tbl.Length() == 0 {
		return nil, fmt.Errorf("page has no table header")
	}

	cols := map[string]int{}
	tbl.Find("thead").First().Find("th").Each(func(i int, th *goquery.Selection) {
		cols[strings.TrimSpace(th.Text())] = i
	})
	if _, ok := cols["Chg"]; ok {
		if _, dup := cols["Change"]; !dup {
			cols["Change"] = cols["Chg"]
		}
	}
	for _, name := range []string{"Symbol", "Weight", "Price", "Change"} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("table has no %q column", name)
		}
	}

	var (
		weights []Weight
		rowErr  error
	)
	tbl.Find("tbody").First().Find("tr").EachWithBreak(func(i int, tr *goquery.Selection) bool {
		var cells []string
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(td.Text()))
		})
		if len(cells) == 0 {
			return true
		}

		w, err := parseWeightRow(cells, cols)
		if err != nil {
			rowErr = fmt.Errorf("row %d: %w", i+1, err)
			return false
		}
		weights = append(weights, w)
		return true
	})
	if rowErr != nil {
		return nil, rowErr
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("table has no rows")
	}
	return weights, nil
}

func parseWeightRow(cells []string, cols map[string]int) (Weight, error) {
	cell := func(name string) (string, bool) {
		i, ok := cols[name]
		if !ok || i >= len(cells) {
			return "", false
		}
		return cells[i], true
	}
	required := func(name string) (string, error) {
		v, ok := cell(name)
		if !ok {
			return "", fmt.Errorf("missing %s cell", name)
		}
		return v, nil
	}

	var (
		w   Weight
		err error
		raw string
	)

	if w.Symbol, err = required("Symbol"); err != nil {
		return w, err
	}
	if w.Symbol == "" {
		return w, fmt.Errorf("empty symbol")
	}

	if raw, err = required("Weight"); err != nil {
		return w, err
	}
	if w.Weight, err = strconv.ParseFloat(raw, 64); err != nil {
		return w, fmt.Errorf("weight %q: %w", raw, err)
	}

	if raw, err = required("Price"); err != nil {
		return w, err
	}
	raw = strings.ReplaceAll(raw, ",", "")
	if w.Price, err = strconv.ParseFloat(raw, 64); err != nil {
		return w, fmt.Errorf("price %q: %w", raw, err)
	}

	if raw, err = required("Change"); err != nil {
		return w, err
	}
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return w, fmt.Errorf("empty change")
	}
	if w.Change, err = strconv.ParseFloat(fields[0], 64); err != nil {
		return w, fmt.Errorf("change %q: %w", raw, err)
	}

	if v, ok := cell("Company"); ok {
		w.Company = v
	}
	if v, ok := cell("#"); ok && v != "" {
		if w.Rank, err = strconv.Atoi(v); err != nil {
			return w, fmt.Errorf("rank %q: %w", v, err)
		}
	}
	return w, nil
}
