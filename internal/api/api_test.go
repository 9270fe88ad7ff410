package api_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"stockanalysis/internal/api"
	"stockanalysis/internal/series"
	"stockanalysis/internal/source/sourcemock"
	"stockanalysis/internal/stocks"
	"stockanalysis/internal/store"
)

type fixture struct {
	src     *sourcemock.MockSource
	store   *store.Store
	dataDir string
	handler http.Handler
}

func newFixture(t *testing.T, withStore bool) *fixture {
	t.Helper()
	return newFixtureTimeout(t, withStore, time.Second)
}

func newFixtureTimeout(t *testing.T, withStore bool, timeout time.Duration) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{src: sourcemock.NewMockSource(ctrl), dataDir: t.TempDir()}
	f.src.EXPECT().Name().Return("Yahoo").AnyTimes()

	opts := api.Options{
		Stocks:         stocks.NewService(f.src, zerolog.Nop()),
		DataDir:        f.dataDir,
		AllowedOrigins: []string{"http://localhost:3000"},
		RequestTimeout: timeout,
		Log:            zerolog.Nop(),
	}
	if withStore {
		st, err := store.Open(t.Context(), filepath.Join(t.TempDir(), "api.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = st.Close() })
		f.store = st
		opts.Store = st
	}
	f.handler = api.New(opts).Handler()
	return f
}

func (f *fixture) do(t *testing.T, method, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func detail(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body.Detail
}

func closes(vals ...string) series.Table {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var t series.Table
	for i, v := range vals {
		d := decimal.RequireFromString(v)
		t.Rows = append(t.Rows, series.Row{Date: base.AddDate(0, 0, i), Values: map[string]decimal.Decimal{
			"Open": d, "High": d, "Low": d, "Close": d, "Volume": decimal.NewFromInt(1000),
		}})
	}
	return t
}

func TestRoot(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	rr := f.do(t, http.MethodGet, "/", "")

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"message":"Welcome to the Stock Analysis API!"}`, rr.Body.String())

	rr = f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())

	rr = f.do(t, http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHealthz_Store(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	rr := f.do(t, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)

	// Act: a closed database fails the ping
	require.NoError(t, f.store.Close())
	rr = f.do(t, http.MethodGet, "/healthz", "")

	// Assert
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Equal(t, "database unavailable", rr.Body.String())
}

func TestStocks_SlowSourceIsNotFound(t *testing.T) {
	t.Parallel()

	// Arrange: a source that only returns once the request timeout fires
	f := newFixtureTimeout(t, false, 50*time.Millisecond)
	f.src.EXPECT().DailyBars(gomock.Any(), "AAPL", gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string, _ series.Period) (series.Table, error) {
			<-ctx.Done()
			return series.Table{}, ctx.Err()
		}).Times(2)

	// Act
	latest := f.do(t, http.MethodGet, "/stocks/latest/AAPL", "")
	hist := f.do(t, http.MethodGet, "/stocks/historical/AAPL?period=1mo", "")

	// Assert
	require.Equal(t, http.StatusNotFound, latest.Code)
	require.Equal(t, "No data found for symbol AAPL", detail(t, latest))
	require.Equal(t, http.StatusNotFound, hist.Code)
	require.Equal(t, "No historical data found for AAPL with period 1mo", detail(t, hist))
}

func TestLatest(t *testing.T) {
	t.Parallel()

	// Arrange
	f := newFixture(t, false)
	f.src.EXPECT().DailyBars(gomock.Any(), "AAPL", stocks.LatestWindow).Return(closes("10.00", "12.50"), nil)

	// Act
	rr := f.do(t, http.MethodGet, "/stocks/latest/aapl", "")

	// Assert
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.JSONEq(t, `{"price":12.5,"change":2.5,"sparkline_data":[{"value":10},{"value":12.5}]}`, rr.Body.String())
}

func TestLatest_Errors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	f.src.EXPECT().DailyBars(gomock.Any(), "ZZZZ", gomock.Any()).Return(series.Table{}, nil)
	f.src.EXPECT().DailyBars(gomock.Any(), "DOWN", gomock.Any()).Return(series.Table{}, errors.New("provider down"))

	rr := f.do(t, http.MethodGet, "/stocks/latest/ZZZZ", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "No data found for symbol ZZZZ", detail(t, rr))

	rr = f.do(t, http.MethodGet, "/stocks/latest/DOWN", "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodGet, "/stocks/latest/bad%20symbol!", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHistorical(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	f.src.EXPECT().DailyBars(gomock.Any(), "MSFT", series.MustPeriod("1y")).Return(closes("400.123", "401"), nil)

	rr := f.do(t, http.MethodGet, "/stocks/historical/MSFT?period=1y", "")

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var bars []series.PriceBar
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &bars))
	require.Len(t, bars, 2)
	require.Equal(t, "2024-03-01", bars[0].TradeDate)
	require.InDelta(t, 400.123, *bars[0].ClosePrice, 1e-9)
	require.Equal(t, int64(1000), *bars[1].Volume)
}

func TestHistorical_DefaultPeriodAndErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	f.src.EXPECT().DailyBars(gomock.Any(), "AAPL", series.MustPeriod("1mo")).Return(series.Table{}, nil)

	rr := f.do(t, http.MethodGet, "/stocks/historical/AAPL", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "No historical data found for AAPL with period 1mo", detail(t, rr))

	rr = f.do(t, http.MethodGet, "/stocks/historical/AAPL?period=2w", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, detail(t, rr), "invalid period")
}

func TestPersistenceRoutesDisabledWithoutStore(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	rr := f.do(t, http.MethodGet, "/companies/", "")
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCompanies(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)

	rr := f.do(t, http.MethodPost, "/companies/", `{"symbol":"AAPL","company_name":"Apple Inc.","sector":"Technology"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	require.JSONEq(t, `{"id":1,"symbol":"AAPL","company_name":"Apple Inc.","sector":"Technology","industry":null}`, rr.Body.String())

	rr = f.do(t, http.MethodPost, "/companies/", `{"symbol":"AAPL","company_name":"Apple again"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, detail(t, rr), "already exists")

	rr = f.do(t, http.MethodPost, "/companies/", `{"symbol":`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodGet, "/companies", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var cs []store.Company
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cs))
	require.Len(t, cs, 1)
}

func TestDailyPrices(t *testing.T) {
	t.Parallel()

	// Arrange
	f := newFixture(t, true)
	c, err := f.store.CreateCompany(t.Context(), store.NewCompany{Symbol: "AAPL", CompanyName: "Apple"})
	require.NoError(t, err)
	price := `{"company_id":1,"trade_date":"2024-03-01","open_price":10,"high_price":11,"low_price":9,"close_price":10.5,"volume":100}`
	require.Equal(t, int64(1), c.ID)

	// Act + Assert: insert, duplicate, read back
	rr := f.do(t, http.MethodPost, "/daily_prices/", price)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = f.do(t, http.MethodPost, "/daily_prices/", price)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Contains(t, detail(t, rr), "daily price for this company on this date already exists")

	rr = f.do(t, http.MethodPost, "/daily_prices/", `{"company_id":1,"trade_date":"2024-03-02"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "field open_price is required", detail(t, rr))

	rr = f.do(t, http.MethodGet, "/daily_prices/AAPL/?start_date=2024-01-01&end_date=2024-12-31", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var got []store.DailyPrice
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	require.Len(t, got, 1)
	require.Equal(t, 10.5, got[0].ClosePrice)

	rr = f.do(t, http.MethodGet, "/daily_prices/AAPL/?start_date=2025-01-01&end_date=2025-12-31", "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(t, http.MethodGet, "/daily_prices/AAPL/?start_date=yesterday&end_date=2025-12-31", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFiles(t *testing.T) {
	t.Parallel()

	// Arrange
	f := newFixture(t, false)
	require.NoError(t, os.WriteFile(filepath.Join(f.dataDir, "23_24_RELIANCE.csv"), []byte("date,close\n2024-01-02,10\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(f.dataDir, "22_23_RELIANCE.csv"), []byte("date,close\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(f.dataDir, "readme.txt"), []byte("x"), 0o600))

	// Act + Assert
	rr := f.do(t, http.MethodGet, "/api/files", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `["22_23_RELIANCE.csv","23_24_RELIANCE.csv"]`, rr.Body.String())

	rr = f.do(t, http.MethodGet, "/api/data/23_24_RELIANCE.csv", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	require.Equal(t, `attachment; filename=23_24_RELIANCE.csv`, rr.Header().Get("Content-Disposition"))
	require.Equal(t, "date,close\n2024-01-02,10\n", rr.Body.String())

	rr = f.do(t, http.MethodGet, "/api/data/missing.csv", "")
	require.Equal(t, http.StatusNotFound, rr.Code)

	for _, bad := range []string{"..%5Capi.db", ".hidden.csv"} {
		rr = f.do(t, http.MethodGet, "/api/data/"+bad, "")
		require.Equal(t, http.StatusBadRequest, rr.Code, bad)
	}
}

func TestFiles_MissingDir(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	require.NoError(t, os.RemoveAll(f.dataDir))

	rr := f.do(t, http.MethodGet, "/api/files", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `[]`, rr.Body.String())
}

func TestCORS(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)

	req := httptest.NewRequest(http.MethodOptions, "/stocks/latest/AAPL", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/stocks/latest/AAPL", nil)
	req.Header.Set("Origin", "http://evil.test")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rr = httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestGzip(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)

	require.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	b, err := io.ReadAll(zr)
	require.NoError(t, err)
	require.JSONEq(t, `{"message":"Welcome to the Stock Analysis API!"}`, string(b))
}

func TestRecoverPanic(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	f.src.EXPECT().DailyBars(gomock.Any(), "BOOM", gomock.Any()).DoAndReturn(
		func(context.Context, string, series.Period) (series.Table, error) { panic("unexpected") })

	rr := f.do(t, http.MethodGet, "/stocks/latest/BOOM", "")
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, "internal server error", detail(t, rr))
}
