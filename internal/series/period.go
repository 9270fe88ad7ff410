package series

import (
	"fmt"
	"strings"
	"time"
)

// Period is a lookback window in the provider's vocabulary (1mo, 1y, ...).
type Period struct {
	Name   string
	years  int
	months int
	days   int
	// limit caps the number of trading-day bars kept (1d, 5d).
	limit int
	ytd   bool
	max   bool
}

var periods = map[string]Period{
	"1d":  {Name: "1d", days: 7, limit: 1},
	"5d":  {Name: "5d", days: 14, limit: 5},
	"1mo": {Name: "1mo", months: 1},
	"3mo": {Name: "3mo", months: 3},
	"6mo": {Name: "6mo", months: 6},
	"1y":  {Name: "1y", years: 1},
	"2y":  {Name: "2y", years: 2},
	"5y":  {Name: "5y", years: 5},
	"10y": {Name: "10y", years: 10},
	"ytd": {Name: "ytd", ytd: true},
	"max": {Name: "max", max: true},
}

// ParsePeriod resolves a period name, case-insensitively.
func ParsePeriod(s string) (Period, error) {
	p, ok := periods[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return p, nil
}

// MustPeriod is ParsePeriod for compile-time constants.
func MustPeriod(s string) Period {
	p, err := ParsePeriod(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Period) String() string { return p.Name }

// Window returns the calendar range [start, end] to request from a provider.
// The 1d and 5d windows are padded to cover weekends and holidays; callers
// trim the result with Limit.
func (p Period) Window(now time.Time) (start, end time.Time) {
	end = now
	switch {
	case p.max:
		start = time.Unix(0, 0).UTC()
	case p.ytd:
		start = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
	default:
		start = now.AddDate(-p.years, -p.months, -p.days)
	}
	return start, end
}

// Limit is the maximum number of bars the period keeps; 0 means unbounded.
func (p Period) Limit() int { return p.limit }
