package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"stockanalysis/internal/series"
	"stockanalysis/internal/source"
	"stockanalysis/internal/store"
)

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// storeStatus maps store errors onto HTTP status codes.
func storeStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrAlreadyExists), errors.Is(err, store.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) handleCreateCompany(w http.ResponseWriter, r *http.Request) {
	var in store.NewCompany
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.opts.Store.CreateCompany(r.Context(), in)
	if err != nil {
		code := storeStatus(err)
		if code == http.StatusInternalServerError {
			s.log.Error().Err(err).Msg("create company")
			writeError(w, code, fmt.Sprintf("An unexpected error occurred: %v", err))
			return
		}
		writeError(w, code, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	cs, err := s.opts.Store.ListCompanies(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("list companies")
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to fetch companies: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

// dailyPriceRequest uses pointers so absent fields can be told apart from zeros.
type dailyPriceRequest struct {
	CompanyID  *int64   `json:"company_id"`
	TradeDate  *string  `json:"trade_date"`
	OpenPrice  *float64 `json:"open_price"`
	HighPrice  *float64 `json:"high_price"`
	LowPrice   *float64 `json:"low_price"`
	ClosePrice *float64 `json:"close_price"`
	Volume     *int64   `json:"volume"`
}

func (req dailyPriceRequest) toNew() (store.NewDailyPrice, error) {
	missing := func(name string) error { return fmt.Errorf("field %s is required", name) }
	switch {
	case req.CompanyID == nil:
		return store.NewDailyPrice{}, missing("company_id")
	case req.TradeDate == nil:
		return store.NewDailyPrice{}, missing("trade_date")
	case req.OpenPrice == nil:
		return store.NewDailyPrice{}, missing("open_price")
	case req.HighPrice == nil:
		return store.NewDailyPrice{}, missing("high_price")
	case req.LowPrice == nil:
		return store.NewDailyPrice{}, missing("low_price")
	case req.ClosePrice == nil:
		return store.NewDailyPrice{}, missing("close_price")
	case req.Volume == nil:
		return store.NewDailyPrice{}, missing("volume")
	}
	return store.NewDailyPrice{
		CompanyID:  *req.CompanyID,
		TradeDate:  *req.TradeDate,
		OpenPrice:  *req.OpenPrice,
		HighPrice:  *req.HighPrice,
		LowPrice:   *req.LowPrice,
		ClosePrice: *req.ClosePrice,
		Volume:     *req.Volume,
	}, nil
}

func (s *Server) handleAddDailyPrice(w http.ResponseWriter, r *http.Request) {
	var req dailyPriceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in, err := req.toNew()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.opts.Store.AddDailyPrice(r.Context(), in)
	if err != nil {
		code := storeStatus(err)
		if code == http.StatusInternalServerError {
			s.log.Error().Err(err).Msg("add daily price")
			writeError(w, code, fmt.Sprintf("An unexpected error occurred: %v", err))
			return
		}
		writeError(w, code, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleDailyPrices(w http.ResponseWriter, r *http.Request) {
	symbol, err := source.ValidateSymbol(r.PathValue("symbol"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	start, err := time.Parse(series.DateLayout, q.Get("start_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse(series.DateLayout, q.Get("end_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
		return
	}

	prices, err := s.opts.Store.DailyPricesBySymbol(r.Context(), symbol, start, end)
	if err != nil {
		s.log.Error().Err(err).Str("symbol", symbol).Msg("daily prices")
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to fetch daily prices: %v", err))
		return
	}
	if len(prices) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("No data found for symbol '%s' in the range %s to %s.",
			symbol, start.Format(series.DateLayout), end.Format(series.DateLayout)))
		return
	}
	writeJSON(w, http.StatusOK, prices)
}
