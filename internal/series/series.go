package series

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of every trade date.
const DateLayout = "2006-01-02"

var (
	// ErrNoData is returned when a series has nothing to summarize.
	ErrNoData = errors.New("no price data")
	// ErrInvalidPeriod is returned for period strings outside the supported set.
	ErrInvalidPeriod = errors.New("invalid period")
)

// Row is one dated row of a raw provider table. Column names are
// provider-specific (Open/open/o ...).
type Row struct {
	Date   time.Time
	Values map[string]decimal.Decimal
}

// Table is the raw shape returned by price-series sources.
type Table struct {
	Rows []Row
}

func (t Table) Len() int { return len(t.Rows) }

func (t Table) Empty() bool { return len(t.Rows) == 0 }

// SortByDate orders rows oldest first, keeping input order for equal dates.
func (t Table) SortByDate() {
	sort.SliceStable(t.Rows, func(i, j int) bool { return t.Rows[i].Date.Before(t.Rows[j].Date) })
}

// Tail returns a table holding at most the last n rows. n <= 0 keeps everything.
func (t Table) Tail(n int) Table {
	if n <= 0 || len(t.Rows) <= n {
		return t
	}
	return Table{Rows: t.Rows[len(t.Rows)-n:]}
}

// Clone deep-copies the rows so callers may sort or mutate freely.
func (t Table) Clone() Table {
	if t.Rows == nil {
		return Table{}
	}
	rows := make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		vals := make(map[string]decimal.Decimal, len(r.Values))
		for k, v := range r.Values {
			vals[k] = v
		}
		rows[i] = Row{Date: r.Date, Values: vals}
	}
	return Table{Rows: rows}
}

// PriceBar is the canonical daily OHLCV record served to clients.
// Price fields are nil when the source did not provide the column.
type PriceBar struct {
	TradeDate  string   `json:"trade_date"`
	OpenPrice  *float64 `json:"open_price,omitempty"`
	HighPrice  *float64 `json:"high_price,omitempty"`
	LowPrice   *float64 `json:"low_price,omitempty"`
	ClosePrice *float64 `json:"close_price,omitempty"`
	Volume     *int64   `json:"volume,omitempty"`
}

// Complete reports whether every OHLCV field is present.
func (b PriceBar) Complete() bool {
	return b.OpenPrice != nil && b.HighPrice != nil && b.LowPrice != nil && b.ClosePrice != nil && b.Volume != nil
}

// Validate checks low <= open, close <= high and a non-negative volume on
// whichever fields are present.
func (b PriceBar) Validate() error {
	if _, err := time.Parse(DateLayout, b.TradeDate); err != nil {
		return fmt.Errorf("trade_date %q: %w", b.TradeDate, err)
	}
	if b.Volume != nil && *b.Volume < 0 {
		return fmt.Errorf("volume must be non-negative, got %d", *b.Volume)
	}
	if b.LowPrice != nil && b.HighPrice != nil && *b.LowPrice > *b.HighPrice {
		return fmt.Errorf("low_price %v above high_price %v", *b.LowPrice, *b.HighPrice)
	}
	for name, p := range map[string]*float64{"open_price": b.OpenPrice, "close_price": b.ClosePrice} {
		if p == nil {
			continue
		}
		if b.LowPrice != nil && *p < *b.LowPrice {
			return fmt.Errorf("%s %v below low_price %v", name, *p, *b.LowPrice)
		}
		if b.HighPrice != nil && *p > *b.HighPrice {
			return fmt.Errorf("%s %v above high_price %v", name, *p, *b.HighPrice)
		}
	}
	return nil
}
