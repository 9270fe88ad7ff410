// Package stocks serves normalized price history and latest-price summaries
// from a configured source.
package stocks

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"stockanalysis/internal/series"
	"stockanalysis/internal/source"
)

// LatestWindow is the period fetched to compute a Summary.
var LatestWindow = series.MustPeriod("3mo")

type Service struct {
	src source.Source
	log zerolog.Logger
}

func NewService(src source.Source, log zerolog.Logger) *Service {
	return &Service{src: src, log: log.With().Str("component", "stocks").Logger()}
}

// canceled reports whether the caller gave up. A deadline, including the
// handler's own request timeout, counts as a slow provider instead.
func canceled(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.Canceled)
}

// Historical returns daily bars for symbol over period, oldest first.
// Provider failures and timeouts are logged and yield an empty result.
func (s *Service) Historical(ctx context.Context, symbol, period string) ([]series.PriceBar, error) {
	sym, err := source.ValidateSymbol(symbol)
	if err != nil {
		return nil, err
	}
	p, err := series.ParsePeriod(period)
	if err != nil {
		return nil, err
	}

	t, err := s.src.DailyBars(ctx, sym, p)
	if err != nil {
		if canceled(ctx) {
			return nil, ctx.Err()
		}
		s.log.Error().Err(err).Str("symbol", sym).Str("period", p.Name).Str("source", s.src.Name()).Msg("fetching historical data")
		return []series.PriceBar{}, nil
	}
	return series.Normalize(t), nil
}

// Latest summarizes the most recent closes of symbol. It returns
// series.ErrNoData when the provider fails, times out or has no closes.
func (s *Service) Latest(ctx context.Context, symbol string) (series.Summary, error) {
	sym, err := source.ValidateSymbol(symbol)
	if err != nil {
		return series.Summary{}, err
	}

	t, err := s.src.DailyBars(ctx, sym, LatestWindow)
	if err != nil {
		if canceled(ctx) {
			return series.Summary{}, ctx.Err()
		}
		s.log.Error().Err(err).Str("symbol", sym).Str("source", s.src.Name()).Msg("fetching latest price")
		return series.Summary{}, series.ErrNoData
	}

	sum, err := series.Summarize(series.Normalize(t))
	if err != nil {
		s.log.Warn().Str("symbol", sym).Msg("no closing prices")
		return series.Summary{}, err
	}
	return sum, nil
}
