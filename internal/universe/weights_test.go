package universe

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "btscreener/internal/errors"
)

func TestParseWeightsHTMLExampleRow(t *testing.T) {
	html := `<table>
<thead><tr><th>Symbol</th><th>Weight</th><th>Price</th><th>Change</th></tr></thead>
<tbody><tr><td>XYZ</td><td>6.789</td><td>1,234.56</td><td>-1.23  (-0.45%)</td></tr></tbody>
</table>`

	weights, err := ParseWeightsHTML(strings.NewReader(html))
	require.NoError(t, err)
	require.Len(t, weights, 1)

	assert.Equal(t, "XYZ", weights[0].Symbol)
	assert.Equal(t, 6.789, weights[0].Weight)
	assert.Equal(t, 1234.56, weights[0].Price)
	assert.Equal(t, -1.23, weights[0].Change)
	assert.Zero(t, weights[0].Rank)
}

func TestParseWeightsHTMLIgnoresLaterTables(t *testing.T) {
	html := `<table><tr><td>menu</td></tr></table>
<table>
<thead><tr><th>#</th><th>Company</th><th>Symbol</th><th>Weight</th><th>Price</th><th>Chg</th></tr></thead>
<tbody>
<tr><td>1</td><td>Apple Inc.</td><td>AAPL</td><td>6.5</td><td>190.10</td><td>1.10 (0.58%)</td></tr>
<tr><td>2</td><td>Microsoft Corp</td><td>MSFT</td><td>6.2</td><td>410.00</td><td>-2.00 (-0.49%)</td></tr>
</tbody>
</table>
<table>
<thead><tr><th>Symbol</th><th>Price</th></tr></thead>
<tbody><tr><td>SPY</td><td>500.00</td></tr></tbody>
</table>`

	weights, err := ParseWeightsHTML(strings.NewReader(html))
	require.NoError(t, err)
	require.Len(t, weights, 2)

	assert.Equal(t, Weight{Rank: 1, Company: "Apple Inc.", Symbol: "AAPL", Weight: 6.5, Price: 190.10, Change: 1.10}, weights[0])
	assert.Equal(t, "MSFT", weights[1].Symbol)
	assert.Equal(t, -2.0, weights[1].Change)
}

func TestParseWeightsHTMLFixture(t *testing.T) {
	f, err := os.Open(filepath.Join("testdata", "spx_page.html"))
	require.NoError(t, err)
	defer f.Close()

	weights, err := ParseWeightsHTML(f)
	require.NoError(t, err)
	require.Len(t, weights, 3)

	assert.Equal(t, Weight{Rank: 1, Company: "Apple Inc.", Symbol: "AAPL", Weight: 6.789, Price: 1234.56, Change: -1.23}, weights[0])
	assert.Equal(t, 2.05, weights[1].Change)
	assert.Equal(t, "BRK.B", weights[2].Symbol)
}

func TestParseWeightsHTMLErrors(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{"no table", `<p>nothing here</p>`},
		{"missing price column", `<table><thead><tr><th>Symbol</th><th>Weight</th><th>Change</th></tr></thead>
<tbody><tr><td>A</td><td>1</td><td>0</td></tr></tbody></table>`},
		{"bad weight", `<table><thead><tr><th>Symbol</th><th>Weight</th><th>Price</th><th>Change</th></tr></thead>
<tbody><tr><td>A</td><td>heavy</td><td>1</td><td>0</td></tr></tbody></table>`},
		{"no rows", `<table><thead><tr><th>Symbol</th><th>Weight</th><th>Price</th><th>Change</th></tr></thead><tbody></tbody></table>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWeightsHTML(strings.NewReader(tt.html))
			assert.Error(t, err)
		})
	}
}

func TestWeightsCSVRoundTrip(t *testing.T) {
	in := []Weight{
		{Rank: 1, Company: "Apple Inc.", Symbol: "AAPL", Weight: 6.789, Price: 1234.56, Change: -1.23},
		{Rank: 2, Company: "Microsoft, Corp", Symbol: "MSFT", Weight: 6.512, Price: 415.1, Change: 2.05},
		{Rank: 3, Company: "Berkshire Hathaway", Symbol: "BRK.B", Weight: 1.702, Price: 412, Change: 0},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteWeightsCSV(&buf, in))

	out, err := ReadWeightsCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestReadWeightsCSVRejectsCorruptInput(t *testing.T) {
	for _, body := range []string{
		"",
		"#,Company,Symbol,Weight,Price,Change\n1,Apple,AAPL,lots,1,0\n",
		"#,Company,Symbol,Weight,Price,Change\n1,Apple,,1,1,0\n",
	} {
		_, err := ReadWeightsCSV(strings.NewReader(body))
		assert.Error(t, err, "body %q", body)
	}
}

func copyFixture(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "spx_page.html"))
	require.NoError(t, err)
	page := filepath.Join(dir, "spx_page.html")
	require.NoError(t, os.WriteFile(page, data, 0644))
	return page
}

func TestSP500WeightsBuildsCacheFromPage(t *testing.T) {
	dir := t.TempDir()
	page := copyFixture(t, dir)
	cache := filepath.Join(dir, "sp500_weights.csv")

	loader := NewLoader(page, cache, zerolog.Nop())
	weights, err := loader.SP500Weights()
	require.NoError(t, err)
	require.Len(t, weights, 3)

	_, err = os.Stat(cache)
	require.NoError(t, err, "cache should be written")

	// second call is served from the cache even without the page
	require.NoError(t, os.Remove(page))
	again, err := loader.SP500Weights()
	require.NoError(t, err)
	assert.Equal(t, weights, again)
}

func TestSP500WeightsPrefersCache(t *testing.T) {
	dir := t.TempDir()
	page := copyFixture(t, dir)
	cache := filepath.Join(dir, "sp500_weights.csv")

	cached := []Weight{{Rank: 1, Symbol: "ONLY", Weight: 100, Price: 1, Change: 0}}
	f, err := os.Create(cache)
	require.NoError(t, err)
	require.NoError(t, WriteWeightsCSV(f, cached))
	require.NoError(t, f.Close())

	weights, err := NewLoader(page, cache, zerolog.Nop()).SP500Weights()
	require.NoError(t, err)
	assert.Equal(t, cached, weights)
}

func TestSP500WeightsCorruptCacheIsAnError(t *testing.T) {
	dir := t.TempDir()
	page := copyFixture(t, dir)
	cache := filepath.Join(dir, "sp500_weights.csv")
	require.NoError(t, os.WriteFile(cache, []byte("#,Symbol,Weight\nx,y,z\n"), 0644))

	_, err := NewLoader(page, cache, zerolog.Nop()).SP500Weights()
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrParse)
}

func TestSP500WeightsMissingPage(t *testing.T) {
	dir := t.TempDir()
	loader := NewLoader(filepath.Join(dir, "missing.html"), filepath.Join(dir, "cache.csv"), zerolog.Nop())

	_, err := loader.SP500Weights()
	require.Error(t, err)

	var derr *apperrors.DataError
	assert.ErrorAs(t, err, &derr)
}
