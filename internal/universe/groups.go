// Package universe resolves the list of symbols a run covers: named groups
// of tickers plus explicit symbols.
package universe

import (
	"context"
	"slices"
	"strings"

	apperrors "btscreener/internal/errors"
)

// Group names.
const (
	GroupFaves = "faves"
	GroupDJI   = "dji"
	GroupSP    = "sp"
)

// Groups lists the accepted group names.
var Groups = []string{GroupFaves, GroupDJI, GroupSP}

// favesComponents are liquid, optionable, well-known tickers.
var favesComponents = []string{
	"aapl", "fb", "amzn", "goog", "nflx",
	"dis", "de", "mcd", "ibm", "cpb",
	"nvda", "amd", "mu", "intc",
	"bac", "usb", "brk.b",
	"x", "cat", "ba", "luv",
	"tsla", "snap", "twtr", "spot",
	"tlry", "cgc", "stz",
	"pfe",
}

// djiComponents are the Dow Jones Industrial Average constituents.
var djiComponents = []string{
	"v", "xom", "wmt", "cat", "cvx", "aapl", "gs", "axp",
	"ibm", "mcd", "mmm", "jpm", "ba", "trv", "msft", "dwdp",
	"pg", "nke", "ko", "mrk", "dis", "csco", "intc", "jnj",
	"pfe", "unh", "hd", "wba", "vz", "utx",
}

// WeightsSource supplies the S&P 500 ranking table.
type WeightsSource interface {
	SP500Weights() ([]Weight, error)
}

// Members returns the symbols of a static group. The sp group is not static
// and is resolved through a WeightsSource.
func Members(group string) ([]string, bool) {
	switch group {
	case GroupFaves:
		return append([]string(nil), favesComponents...), true
	case GroupDJI:
		return append([]string(nil), djiComponents...), true
	}
	return nil, false
}

// LoadSymbolList resolves groups and explicit symbols into one list. Explicit
// symbols come first, then each group in the order given. Symbols are trimmed
// and lower-cased, and repeats are dropped keeping the first occurrence.
// weights is only consulted for the sp group and may be nil otherwise.
func LoadSymbolList(ctx context.Context, groups, symbols []string, weights WeightsSource) ([]string, error) {
	for _, g := range groups {
		if !slices.Contains(Groups, normalize(g)) {
			return nil, apperrors.NewValidationError("group", g,
				"must be one of "+strings.Join(Groups, ", "))
		}
	}

	var out []string
	seen := map[string]bool{}
	add := func(list []string) {
		for _, s := range list {
			s = normalize(s)
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}

	add(symbols)
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g = normalize(g)
		if members, ok := Members(g); ok {
			add(members)
			continue
		}
		// sp
		if weights == nil {
			return nil, apperrors.NewValidationError("group", g, "no ranking table configured")
		}
		table, err := weights.SP500Weights()
		if err != nil {
			return nil, apperrors.Wrap(err, "loading sp group")
		}
		list := make([]string, len(table))
		for i, w := range table {
			list[i] = w.Symbol
		}
		add(list)
	}

	if len(out) == 0 {
		return nil, apperrors.ErrNoSymbols
	}
	return out, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
