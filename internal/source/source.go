package source

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"stockanalysis/internal/series"
)

// Source is a provider of daily price series. Every implementation returns
// a raw series.Table; the column naming is the provider's own and is
// resolved later by series.Normalize.
//
//go:generate mockgen -source=source.go -destination=sourcemock/mock_source.go -package=sourcemock
type Source interface {
	Name() string
	DailyBars(ctx context.Context, symbol string, period series.Period) (series.Table, error)
}

// ErrInvalidSymbol is returned for ticker symbols that fail validation.
var ErrInvalidSymbol = errors.New("invalid symbol")

var symbolRe = regexp.MustCompile(`^[A-Z0-9.^=\-]{1,20}$`)

// NormalizeSymbol trims and upper-cases a ticker symbol.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidateSymbol normalizes s and checks it looks like a ticker
// (AAPL, BRK.B, ^GSPC, RELIANCE.NS, EURUSD=X).
func ValidateSymbol(s string) (string, error) {
	sym := NormalizeSymbol(s)
	if !symbolRe.MatchString(sym) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, s)
	}
	return sym, nil
}
