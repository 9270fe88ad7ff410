// Package ingest copies daily bars from a price source into the store.
package ingest

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"stockanalysis/internal/series"
	"stockanalysis/internal/source"
	"stockanalysis/internal/store"
)

// Store is the subset of *store.Store the job writes through.
type Store interface {
	CompanyBySymbol(ctx context.Context, symbol string) (store.Company, error)
	CreateCompany(ctx context.Context, in store.NewCompany) (store.Company, error)
	AddDailyPrice(ctx context.Context, in store.NewDailyPrice) (store.DailyPrice, error)
}

// Result counts what a run did.
type Result struct {
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Incomplete int `json:"incomplete"`
	Failed     int `json:"failed"`
}

func (r *Result) add(o Result) {
	r.Inserted += o.Inserted
	r.Duplicates += o.Duplicates
	r.Incomplete += o.Incomplete
	r.Failed += o.Failed
}

type Job struct {
	Source  source.Source
	Store   Store
	Symbols []string
	Period  series.Period
	Log     zerolog.Logger
}

// RunOnce ingests every configured symbol. Per-symbol failures are logged
// and counted; only context cancellation aborts the run.
func (j *Job) RunOnce(ctx context.Context) (Result, error) {
	var total Result
	for _, raw := range j.Symbols {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		sym, err := source.ValidateSymbol(raw)
		if err != nil {
			j.Log.Warn().Err(err).Msg("skipping symbol")
			total.Failed++
			continue
		}
		res, err := j.ingestSymbol(ctx, sym)
		total.add(res)
		if err != nil {
			if ctx.Err() != nil {
				return total, ctx.Err()
			}
			j.Log.Error().Err(err).Str("symbol", sym).Msg("ingest failed")
			total.Failed++
			continue
		}
		j.Log.Info().Str("symbol", sym).Int("inserted", res.Inserted).Int("duplicates", res.Duplicates).Msg("ingested")
	}
	return total, nil
}

func (j *Job) ingestSymbol(ctx context.Context, sym string) (Result, error) {
	var res Result
	company, err := j.ensureCompany(ctx, sym)
	if err != nil {
		return res, err
	}

	t, err := j.Source.DailyBars(ctx, sym, j.Period)
	if err != nil {
		return res, err
	}
	for _, bar := range series.Normalize(t) {
		in, err := store.FromBar(company.ID, bar)
		if err != nil {
			res.Incomplete++
			continue
		}
		_, err = j.Store.AddDailyPrice(ctx, in)
		switch {
		case err == nil:
			res.Inserted++
		case errors.Is(err, store.ErrAlreadyExists):
			res.Duplicates++
		default:
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			j.Log.Warn().Err(err).Str("symbol", sym).Str("trade_date", bar.TradeDate).Msg("bar rejected")
			res.Failed++
		}
	}
	return res, nil
}

// ensureCompany returns the company row for sym, creating a minimal one
// when it does not exist yet.
func (j *Job) ensureCompany(ctx context.Context, sym string) (store.Company, error) {
	c, err := j.Store.CompanyBySymbol(ctx, sym)
	if err == nil || !errors.Is(err, store.ErrNotFound) {
		return c, err
	}
	c, err = j.Store.CreateCompany(ctx, store.NewCompany{Symbol: sym, CompanyName: sym})
	if errors.Is(err, store.ErrAlreadyExists) {
		// created concurrently
		return j.Store.CompanyBySymbol(ctx, sym)
	}
	return c, err
}
