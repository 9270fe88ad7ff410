package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"stockanalysis/internal/series"
	"stockanalysis/internal/source"
)

// PerMinute builds a token bucket refilling rpm tokens per minute and
// holding at most burst. It starts full.
func PerMinute(rpm, burst int) *rate.Limiter {
	if burst <= 0 {
		burst = 1
	}
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), burst)
}

// TokenBucketSource wraps a Source and takes one token per call.
type TokenBucketSource struct {
	S   source.Source
	Lim *rate.Limiter
}

func (t *TokenBucketSource) Name() string { return t.S.Name() }

func (t *TokenBucketSource) DailyBars(ctx context.Context, symbol string, period series.Period) (series.Table, error) {
	if t.Lim != nil {
		if err := t.Lim.Wait(ctx); err != nil {
			return series.Table{}, waitErr(ctx, err)
		}
	}
	return t.S.DailyBars(ctx, symbol, period)
}
