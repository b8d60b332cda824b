// Package calendar summarises a symbol's earnings and dividend history and
// projects the next occurrence of each event.
package calendar

import (
	"time"

	"github.com/guregu/null/v6"
)

// Projection offsets, in whole days. Each past event proposes itself one and
// two years ahead.
const (
	oneYear  = 365 * 24 * time.Hour
	twoYears = 730 * 24 * time.Hour
)

// EstimateNext projects the next occurrence of a roughly annual event from its
// past dates. Every date proposes date+365 and date+730 days. A proposal
// survives when it is less than a year before today, i.e. its own +365 falls
// strictly after today. The earliest survivor wins. Null means no estimate.
func EstimateNext(prev []time.Time, today time.Time) null.Time {
	var best time.Time
	found := false

	for _, d := range prev {
		for _, offset := range []time.Duration{oneYear, twoYears} {
			candidate := d.Add(offset)
			if !candidate.Add(oneYear).After(today) {
				continue
			}
			if !found || candidate.Before(best) {
				best = candidate
				found = true
			}
		}
	}

	if !found {
		return null.Time{}
	}
	return null.TimeFrom(best)
}
