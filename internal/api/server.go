// Package api exposes the stock service, the persistence layer and the
// cleaned CSV files over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"stockanalysis/internal/series"
	"stockanalysis/internal/store"
)

// StockService is implemented by *stocks.Service.
type StockService interface {
	Historical(ctx context.Context, symbol, period string) ([]series.PriceBar, error)
	Latest(ctx context.Context, symbol string) (series.Summary, error)
}

// Store is implemented by *store.Store.
type Store interface {
	CreateCompany(ctx context.Context, in store.NewCompany) (store.Company, error)
	ListCompanies(ctx context.Context) ([]store.Company, error)
	AddDailyPrice(ctx context.Context, in store.NewDailyPrice) (store.DailyPrice, error)
	DailyPricesBySymbol(ctx context.Context, symbol string, start, end time.Time) ([]store.DailyPrice, error)
	Ping(ctx context.Context) error
}

type Options struct {
	Stocks StockService
	// Store enables the /companies and /daily_prices routes. Leave it nil
	// (not a typed nil pointer) to run without persistence.
	Store Store
	// DataDir enables the /api CSV file routes.
	DataDir        string
	AllowedOrigins []string
	// RequestTimeout bounds provider calls made on behalf of a request.
	RequestTimeout time.Duration
	Log            zerolog.Logger
}

type Server struct {
	opts Options
	log  zerolog.Logger
}

func New(opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	return &Server{opts: opts, log: opts.Log.With().Str("component", "api").Logger()}
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if s.opts.Store != nil {
			if err := s.opts.Store.Ping(r.Context()); err != nil {
				s.opts.Log.Error().Err(err).Msg("health check: database unreachable")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("database unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /stocks/latest/{symbol}", s.handleLatest)
	mux.HandleFunc("GET /stocks/historical/{symbol}", s.handleHistorical)

	if s.opts.Store != nil {
		mux.HandleFunc("POST /companies", s.handleCreateCompany)
		mux.HandleFunc("POST /companies/{$}", s.handleCreateCompany)
		mux.HandleFunc("GET /companies", s.handleListCompanies)
		mux.HandleFunc("GET /companies/{$}", s.handleListCompanies)
		mux.HandleFunc("POST /daily_prices", s.handleAddDailyPrice)
		mux.HandleFunc("POST /daily_prices/{$}", s.handleAddDailyPrice)
		mux.HandleFunc("GET /daily_prices/{symbol}", s.handleDailyPrices)
		mux.HandleFunc("GET /daily_prices/{symbol}/{$}", s.handleDailyPrices)
	}
	if s.opts.DataDir != "" {
		mux.HandleFunc("GET /api/files", s.handleListFiles)
		mux.HandleFunc("GET /api/data/{filename}", s.handleGetFile)
	}

	var h http.Handler = mux
	h = limitBody(h)
	h = recoverPanic(s.log)(h)
	h = withGzip(h)
	h = withAccessLog(s.log)(h)
	h = withCORS(s.opts.AllowedOrigins)(h)
	return h
}

// HTTPServer builds an *http.Server on addr with conservative timeouts.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.opts.RequestTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to the Stock Analysis API!"})
}

type errorBody struct {
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, errorBody{Detail: detail})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
