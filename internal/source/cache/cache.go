package cache

import (
	"context"
	"sync"
	"time"

	"stockanalysis/internal/series"
	"stockanalysis/internal/source"
)

// entry stores a cached table for a single symbol/period with expiry.
type entry struct {
	expiresAt time.Time
	table     series.Table
}

// Source caches tables per (symbol, period) for a TTL.
// Failed refreshes are not cached and never fall back to stale data.
type Source struct {
	S        source.Source
	TTL      time.Duration
	MaxItems int

	mu    sync.RWMutex
	items map[string]entry // key: symbol|period
	now   func() time.Time
}

func (c *Source) Name() string { return c.S.Name() }

func key(symbol string, period series.Period) string {
	return symbol + "|" + period.Name
}

func (c *Source) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// DailyBars returns the cached table when valid, otherwise asks the wrapped source.
func (c *Source) DailyBars(ctx context.Context, symbol string, period series.Period) (series.Table, error) {
	if c.TTL <= 0 {
		return c.S.DailyBars(ctx, symbol, period)
	}

	k := key(symbol, period)
	now := c.clock()

	c.mu.RLock()
	e, ok := c.items[k]
	c.mu.RUnlock()
	if ok && now.Before(e.expiresAt) {
		return e.table.Clone(), nil
	}

	t, err := c.S.DailyBars(ctx, symbol, period)
	if err != nil {
		return series.Table{}, err
	}

	c.mu.Lock()
	if c.items == nil {
		c.items = make(map[string]entry)
	}
	c.items[k] = entry{expiresAt: now.Add(c.TTL), table: t.Clone()}
	c.evictLocked(now, k)
	c.mu.Unlock()

	return t, nil
}

// evictLocked caps the cache size: expired entries first, then arbitrary ones.
func (c *Source) evictLocked(now time.Time, keep string) {
	if c.MaxItems <= 0 || len(c.items) <= c.MaxItems {
		return
	}
	for k, v := range c.items {
		if now.After(v.expiresAt) {
			delete(c.items, k)
		}
	}
	for k := range c.items {
		if len(c.items) <= c.MaxItems {
			break
		}
		if k == keep {
			continue
		}
		delete(c.items, k)
	}
}

// Len reports the number of cached entries.
func (c *Source) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
