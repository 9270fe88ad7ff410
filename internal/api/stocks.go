package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"stockanalysis/internal/series"
	"stockanalysis/internal/source"
)

const defaultPeriod = "1mo"

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.RequestTimeout)
	defer cancel()

	sum, err := s.opts.Stocks.Latest(ctx, symbol)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, sum)
	case errors.Is(err, source.ErrInvalidSymbol):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, series.ErrNoData):
		writeError(w, http.StatusNotFound, fmt.Sprintf("No data found for symbol %s", symbol))
	default:
		s.log.Error().Err(err).Str("symbol", symbol).Msg("latest price")
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("An unexpected error occurred: %v", err))
	}
}

func (s *Server) handleHistorical(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	period := r.URL.Query().Get("period")
	if period == "" {
		period = defaultPeriod
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.opts.RequestTimeout)
	defer cancel()

	bars, err := s.opts.Stocks.Historical(ctx, symbol, period)
	switch {
	case err == nil && len(bars) == 0:
		writeError(w, http.StatusNotFound, fmt.Sprintf("No historical data found for %s with period %s", symbol, period))
	case err == nil:
		writeJSON(w, http.StatusOK, bars)
	case errors.Is(err, source.ErrInvalidSymbol), errors.Is(err, series.ErrInvalidPeriod):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.Error().Err(err).Str("symbol", symbol).Str("period", period).Msg("historical data")
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("An unexpected error occurred: %v", err))
	}
}
