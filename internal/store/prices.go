package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"stockanalysis/internal/series"
)

// priceScale mirrors NUMERIC(10,4).
const priceScale = 4

type NewDailyPrice struct {
	CompanyID  int64   `json:"company_id"`
	TradeDate  string  `json:"trade_date"`
	OpenPrice  float64 `json:"open_price"`
	HighPrice  float64 `json:"high_price"`
	LowPrice   float64 `json:"low_price"`
	ClosePrice float64 `json:"close_price"`
	Volume     int64   `json:"volume"`
}

type DailyPrice struct {
	ID int64 `json:"id"`
	NewDailyPrice
}

// FromBar builds a NewDailyPrice from a complete normalized bar.
func FromBar(companyID int64, b series.PriceBar) (NewDailyPrice, error) {
	if !b.Complete() {
		return NewDailyPrice{}, fmt.Errorf("%w: bar %s is missing fields", ErrValidation, b.TradeDate)
	}
	return NewDailyPrice{
		CompanyID:  companyID,
		TradeDate:  b.TradeDate,
		OpenPrice:  *b.OpenPrice,
		HighPrice:  *b.HighPrice,
		LowPrice:   *b.LowPrice,
		ClosePrice: *b.ClosePrice,
		Volume:     *b.Volume,
	}, nil
}

func (p NewDailyPrice) bar() series.PriceBar {
	return series.PriceBar{
		TradeDate:  p.TradeDate,
		OpenPrice:  &p.OpenPrice,
		HighPrice:  &p.HighPrice,
		LowPrice:   &p.LowPrice,
		ClosePrice: &p.ClosePrice,
		Volume:     &p.Volume,
	}
}

func (p NewDailyPrice) validate() error {
	if p.CompanyID <= 0 {
		return fmt.Errorf("%w: company_id must be positive", ErrValidation)
	}
	for name, v := range map[string]float64{"open_price": p.OpenPrice, "high_price": p.HighPrice, "low_price": p.LowPrice, "close_price": p.ClosePrice} {
		if v < 0 {
			return fmt.Errorf("%w: %s must be non-negative", ErrValidation, name)
		}
	}
	if err := p.bar().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func price(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(priceScale)
}

// AddDailyPrice inserts one daily bar. A second bar for the same company
// and date fails with ErrAlreadyExists.
func (s *Store) AddDailyPrice(ctx context.Context, in NewDailyPrice) (DailyPrice, error) {
	if err := in.validate(); err != nil {
		return DailyPrice{}, err
	}
	var out DailyPrice
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO daily_prices (company_id, trade_date, open_price, high_price, low_price, close_price, volume)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			in.CompanyID, in.TradeDate, price(in.OpenPrice), price(in.HighPrice), price(in.LowPrice), price(in.ClosePrice), in.Volume)
		if err != nil {
			return classify(err, "daily price for this company on this date already exists")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		out = DailyPrice{ID: id, NewDailyPrice: in}
		out.OpenPrice, out.HighPrice, out.LowPrice, out.ClosePrice =
			rounded(in.OpenPrice), rounded(in.HighPrice), rounded(in.LowPrice), rounded(in.ClosePrice)
		return nil
	})
	if err != nil {
		return DailyPrice{}, fmt.Errorf("failed to add daily price: %w", err)
	}
	return out, nil
}

func rounded(v float64) float64 {
	return decimal.NewFromFloat(v).Round(priceScale).InexactFloat64()
}

// DailyPricesBySymbol returns the bars of symbol with start <= trade_date <= end,
// oldest first.
func (s *Store) DailyPricesBySymbol(ctx context.Context, symbol string, start, end time.Time) ([]DailyPrice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT dp.id, dp.company_id, dp.trade_date, dp.open_price, dp.high_price, dp.low_price, dp.close_price, dp.volume
		FROM daily_prices dp
		JOIN companies c ON dp.company_id = c.id
		WHERE c.symbol = ? AND dp.trade_date BETWEEN ? AND ?
		ORDER BY dp.trade_date ASC`,
		symbol, start.Format(series.DateLayout), end.Format(series.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("query daily prices: %w", err)
	}
	defer rows.Close()

	out := []DailyPrice{}
	for rows.Next() {
		var (
			p                DailyPrice
			open, hi, lo, cl string
		)
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.TradeDate, &open, &hi, &lo, &cl, &p.Volume); err != nil {
			return nil, fmt.Errorf("scan daily price: %w", err)
		}
		for _, f := range []struct {
			src string
			dst *float64
		}{{open, &p.OpenPrice}, {hi, &p.HighPrice}, {lo, &p.LowPrice}, {cl, &p.ClosePrice}} {
			d, err := decimal.NewFromString(f.src)
			if err != nil {
				return nil, fmt.Errorf("decode price %q: %w", f.src, err)
			}
			*f.dst = d.InexactFloat64()
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
