package yahoo

import (
	"context"
	"fmt"
	"net/http"
	"time"
	// exchange zones must resolve on hosts without a zoneinfo database
	_ "time/tzdata"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/shopspring/decimal"

	"stockanalysis/internal/series"
)

// Column names as Yahoo reports them.
const (
	ColOpen     = "Open"
	ColHigh     = "High"
	ColLow      = "Low"
	ColClose    = "Close"
	ColAdjClose = "Adj Close"
	ColVolume   = "Volume"
)

// barIterator is the subset of *chart.Iter the source reads.
type barIterator interface {
	Next() bool
	Bar() *finance.ChartBar
	Meta() finance.ChartMeta
	Err() error
}

// chartIter tolerates iterators that failed before any response arrived,
// where *chart.Iter.Meta would panic on a nil meta.
type chartIter struct{ *chart.Iter }

func (c chartIter) Meta() finance.ChartMeta {
	m, _ := c.Iter.Iter.Meta().(finance.ChartMeta)
	return m
}

// exchangeLocation resolves the zone bars are stamped in. Daily timestamps
// are session opens, so dates must be read in the exchange's own zone.
func exchangeLocation(m finance.ChartMeta) *time.Location {
	if m.ExchangeTimezoneName != "" {
		if loc, err := time.LoadLocation(m.ExchangeTimezoneName); err == nil {
			return loc
		}
	}
	if m.Gmtoffset != 0 {
		return time.FixedZone(m.Timezone, m.Gmtoffset)
	}
	return time.UTC
}

// Config configures the Yahoo source.
type Config struct {
	Name string
	// SymbolMap maps friendly names onto Yahoo tickers (SPX -> ^GSPC).
	SymbolMap map[string]string
}

// Source fetches daily bars from Yahoo Finance.
type Source struct {
	cfg   Config
	chart func(*chart.Params) barIterator
	now   func() time.Time
}

// New builds a Yahoo source. A non-nil hc replaces the HTTP client used by
// finance-go, which is process-wide.
func New(cfg Config, hc *http.Client) *Source {
	if cfg.Name == "" {
		cfg.Name = "Yahoo"
	}
	if cfg.SymbolMap == nil {
		cfg.SymbolMap = map[string]string{
			"SPX":    "^GSPC",
			"SPX500": "^GSPC",
			"SP500":  "^GSPC",
			"NIFTY":  "^NSEI",
			"SENSEX": "^BSESN",
		}
	}
	if hc != nil {
		finance.SetHTTPClient(hc)
	}
	return &Source{
		cfg:   cfg,
		chart: func(p *chart.Params) barIterator { return chartIter{chart.Get(p)} },
		now:   time.Now,
	}
}

func (s *Source) Name() string { return s.cfg.Name }

func (s *Source) ticker(symbol string) string {
	if mapped, ok := s.cfg.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// DailyBars returns one row per trading day in the period window. Row dates
// carry the exchange's time zone.
func (s *Source) DailyBars(ctx context.Context, symbol string, period series.Period) (series.Table, error) {
	if err := ctx.Err(); err != nil {
		return series.Table{}, err
	}
	start, end := period.Window(s.now())
	params := &chart.Params{
		Symbol:   s.ticker(symbol),
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	}
	params.Context = &ctx

	iter := s.chart(params)
	loc := exchangeLocation(iter.Meta())
	var t series.Table
	for iter.Next() {
		bar := iter.Bar()
		if bar == nil {
			continue
		}
		// null bars (holidays, halts) come back as zeros
		if bar.Open.IsZero() && bar.High.IsZero() && bar.Low.IsZero() && bar.Close.IsZero() {
			continue
		}
		t.Rows = append(t.Rows, series.Row{
			Date: time.Unix(int64(bar.Timestamp), 0).In(loc),
			Values: map[string]decimal.Decimal{
				ColOpen:     bar.Open,
				ColHigh:     bar.High,
				ColLow:      bar.Low,
				ColClose:    bar.Close,
				ColAdjClose: bar.AdjClose,
				ColVolume:   decimal.NewFromInt(int64(bar.Volume)),
			},
		})
	}
	if err := iter.Err(); err != nil {
		return series.Table{}, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}
	t.SortByDate()
	return t.Tail(period.Limit()), nil
}
