package finnhub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"stockanalysis/internal/series"
)

// Column names emitted by the Finnhub source.
const (
	ColOpen   = "open"
	ColHigh   = "high"
	ColLow    = "low"
	ColClose  = "close"
	ColVolume = "volume"
)

// candleResponse mirrors /stock/candle. Arrays are parallel and indexed by t.
//
//	{"c":[217.68],"h":[222.49],"l":[217.19],"o":[221.03],"s":"ok","t":[1569297600],"v":[33463820]}
type candleResponse struct {
	Close     []json.Number `json:"c"`
	High      []json.Number `json:"h"`
	Low       []json.Number `json:"l"`
	Open      []json.Number `json:"o"`
	Volume    []json.Number `json:"v"`
	Timestamp []int64       `json:"t"`
	Status    string        `json:"s"`
}

// DailyBars retrieves daily candles for symbol over the period window.
// A "no_data" status yields an empty table, not an error.
func (c *Client) DailyBars(ctx context.Context, symbol string, period series.Period) (series.Table, error) {
	start, end := period.Window(c.now())
	res, err := c.rest.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":     symbol,
			"resolution": "D",
			"from":       strconv.FormatInt(start.Unix(), 10),
			"to":         strconv.FormatInt(end.Unix(), 10),
		}).
		Get("/stock/candle")
	if err != nil {
		return series.Table{}, fmt.Errorf("performing request: %w", err)
	}

	switch res.StatusCode() {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return series.Table{}, fmt.Errorf("unauthorized")
	case http.StatusTooManyRequests:
		return series.Table{}, fmt.Errorf("rate limited")
	default:
		return series.Table{}, fmt.Errorf("unexpected status code: %d", res.StatusCode())
	}

	var body candleResponse
	dec := json.NewDecoder(bytes.NewReader(res.Body()))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return series.Table{}, fmt.Errorf("decoding candle response: %w", err)
	}
	if body.Status == "no_data" {
		return series.Table{}, nil
	}
	if body.Status != "ok" {
		return series.Table{}, fmt.Errorf("unexpected candle status %q", body.Status)
	}

	t, err := body.table()
	if err != nil {
		return series.Table{}, err
	}
	t.SortByDate()
	return t.Tail(period.Limit()), nil
}

func (r candleResponse) table() (series.Table, error) {
	t := series.Table{Rows: make([]series.Row, 0, len(r.Timestamp))}
	cols := []struct {
		name string
		vals []json.Number
	}{
		{ColOpen, r.Open}, {ColHigh, r.High}, {ColLow, r.Low}, {ColClose, r.Close}, {ColVolume, r.Volume},
	}
	for i, ts := range r.Timestamp {
		row := series.Row{Date: time.Unix(ts, 0).UTC(), Values: make(map[string]decimal.Decimal, len(cols))}
		for _, col := range cols {
			// short arrays leave the column missing for this row
			if i >= len(col.vals) {
				continue
			}
			v, err := decimal.NewFromString(col.vals[i].String())
			if err != nil {
				return series.Table{}, fmt.Errorf("decoding %s[%d]: %w", col.name, i, err)
			}
			row.Values[col.name] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
