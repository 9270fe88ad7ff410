// Package ratelimit gates calls to a price source.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"stockanalysis/internal/series"
	"stockanalysis/internal/source"
)

// MinInterval wraps a source and enforces a minimum time between calls.
// Concurrent calls queue for the next free slot; a caller whose context ends
// while queued gives its slot back.
type MinInterval struct {
	S        source.Source
	Interval time.Duration

	once sync.Once
	lim  *rate.Limiter
}

func (m *MinInterval) Name() string { return m.S.Name() }

func (m *MinInterval) DailyBars(ctx context.Context, symbol string, period series.Period) (series.Table, error) {
	if m.Interval > 0 {
		m.once.Do(func() { m.lim = rate.NewLimiter(rate.Every(m.Interval), 1) })
		if err := m.lim.Wait(ctx); err != nil {
			return series.Table{}, waitErr(ctx, err)
		}
	}
	return m.S.DailyBars(ctx, symbol, period)
}

// waitErr prefers the context's own error so callers can match it with
// errors.Is. rate reports "would exceed context deadline" without wrapping.
func waitErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if _, ok := ctx.Deadline(); ok {
		return context.DeadlineExceeded
	}
	return err
}
