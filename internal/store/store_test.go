package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.Context(), "sqlite://"+filepath.Join(t.TempDir(), "stocks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func TestDSN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{in: "sqlite://data/stocks.db", want: "data/stocks.db?" + pragmas},
		{in: "sqlite:stocks.db", want: "stocks.db?" + pragmas},
		{in: "file:stocks.db?mode=rwc", want: "file:stocks.db?mode=rwc&" + pragmas},
		{in: " stocks.db ", want: "stocks.db?" + pragmas},
		{in: "postgresql://user@localhost/stocks", wantErr: true},
		{in: "", wantErr: true},
		{in: "sqlite://", wantErr: true},
	}
	for _, tt := range tests {
		got, err := DSN(tt.in)
		if tt.wantErr {
			require.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		require.Equal(t, tt.want, got)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	require.NoError(t, s.Migrate(t.Context()))
	require.NoError(t, s.Ping(t.Context()))
}

func TestCompanies(t *testing.T) {
	t.Parallel()

	// Arrange
	s := openTestStore(t)
	ctx := t.Context()

	// Act
	apple, err := s.CreateCompany(ctx, NewCompany{Symbol: "aapl", CompanyName: "Apple Inc.", Sector: strPtr("Technology")})
	require.NoError(t, err)
	msft, err := s.CreateCompany(ctx, NewCompany{Symbol: "MSFT", CompanyName: "Microsoft Corp."})
	require.NoError(t, err)

	// Assert
	require.Equal(t, "AAPL", apple.Symbol)
	require.NotEqual(t, apple.ID, msft.ID)

	all, err := s.ListCompanies(ctx)
	require.NoError(t, err)
	require.Equal(t, []Company{apple, msft}, all)

	got, err := s.CompanyBySymbol(ctx, "msft")
	require.NoError(t, err)
	require.Equal(t, msft, got)
	require.Nil(t, got.Sector)
}

func TestCreateCompany_Errors(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := t.Context()
	_, err := s.CreateCompany(ctx, NewCompany{Symbol: "AAPL", CompanyName: "Apple"})
	require.NoError(t, err)

	_, err = s.CreateCompany(ctx, NewCompany{Symbol: "AAPL", CompanyName: "Apple again"})
	require.ErrorIs(t, err, ErrAlreadyExists)

	_, err = s.CreateCompany(ctx, NewCompany{Symbol: "", CompanyName: "Nameless"})
	require.ErrorIs(t, err, ErrValidation)

	_, err = s.CreateCompany(ctx, NewCompany{Symbol: "IBM"})
	require.ErrorIs(t, err, ErrValidation)

	// a failed insert leaves nothing behind
	all, err := s.ListCompanies(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestCompanyBySymbol_NotFound(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	_, err := s.CompanyBySymbol(t.Context(), "NOPE")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDailyPrices(t *testing.T) {
	t.Parallel()

	// Arrange
	s := openTestStore(t)
	ctx := t.Context()
	c, err := s.CreateCompany(ctx, NewCompany{Symbol: "AAPL", CompanyName: "Apple"})
	require.NoError(t, err)

	for _, p := range []NewDailyPrice{
		{CompanyID: c.ID, TradeDate: "2024-03-04", OpenPrice: 176.15, HighPrice: 176.9, LowPrice: 173.79, ClosePrice: 175.1, Volume: 81510100},
		{CompanyID: c.ID, TradeDate: "2024-03-01", OpenPrice: 179.55, HighPrice: 180.53, LowPrice: 177.38, ClosePrice: 179.66, Volume: 73488000},
		{CompanyID: c.ID, TradeDate: "2024-03-05", OpenPrice: 170.76, HighPrice: 172.04, LowPrice: 169.62, ClosePrice: 170.12, Volume: 95132400},
	} {
		_, err := s.AddDailyPrice(ctx, p)
		require.NoError(t, err)
	}

	// Act
	got, err := s.DailyPricesBySymbol(ctx, "AAPL",
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC))

	// Assert: inclusive range, oldest first
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "2024-03-01", got[0].TradeDate)
	require.Equal(t, "2024-03-04", got[1].TradeDate)
	require.Equal(t, 179.66, got[0].ClosePrice)
	require.Equal(t, int64(81510100), got[1].Volume)
}

func TestAddDailyPrice_RoundsToFourPlaces(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := t.Context()
	c, err := s.CreateCompany(ctx, NewCompany{Symbol: "TSLA", CompanyName: "Tesla"})
	require.NoError(t, err)

	added, err := s.AddDailyPrice(ctx, NewDailyPrice{CompanyID: c.ID, TradeDate: "2024-01-02", OpenPrice: 1.23456, HighPrice: 2, LowPrice: 1, ClosePrice: 1.5, Volume: 1})
	require.NoError(t, err)
	require.Equal(t, 1.2346, added.OpenPrice)

	got, err := s.DailyPricesBySymbol(ctx, "TSLA", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, []DailyPrice{added}, got)
}

func TestAddDailyPrice_Errors(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := t.Context()
	c, err := s.CreateCompany(ctx, NewCompany{Symbol: "AAPL", CompanyName: "Apple"})
	require.NoError(t, err)
	valid := NewDailyPrice{CompanyID: c.ID, TradeDate: "2024-03-01", OpenPrice: 10, HighPrice: 11, LowPrice: 9, ClosePrice: 10.5, Volume: 100}

	_, err = s.AddDailyPrice(ctx, valid)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*NewDailyPrice)
		want   error
	}{
		{"duplicate day", func(*NewDailyPrice) {}, ErrAlreadyExists},
		{"unknown company", func(p *NewDailyPrice) { p.CompanyID = 999 }, ErrValidation},
		{"zero company", func(p *NewDailyPrice) { p.CompanyID = 0 }, ErrValidation},
		{"bad date", func(p *NewDailyPrice) { p.TradeDate = "03/01/2024" }, ErrValidation},
		{"low above high", func(p *NewDailyPrice) { p.LowPrice = 12 }, ErrValidation},
		{"close above high", func(p *NewDailyPrice) { p.TradeDate = "2024-03-02"; p.ClosePrice = 20 }, ErrValidation},
		{"negative volume", func(p *NewDailyPrice) { p.TradeDate = "2024-03-02"; p.Volume = -1 }, ErrValidation},
	}
	for _, tt := range tests {
		p := valid
		tt.mutate(&p)
		_, err := s.AddDailyPrice(ctx, p)
		require.ErrorIs(t, err, tt.want, tt.name)
	}

	got, err := s.DailyPricesBySymbol(ctx, "AAPL", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestDailyPricesBySymbol_UnknownSymbol(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	got, err := s.DailyPricesBySymbol(t.Context(), "NOPE", time.Now().AddDate(-1, 0, 0), time.Now())
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}
