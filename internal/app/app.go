// Package app assembles sources and stores from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"stockanalysis/internal/config"
	"stockanalysis/internal/httpx"
	"stockanalysis/internal/source"
	"stockanalysis/internal/source/cache"
	"stockanalysis/internal/source/finnhub"
	"stockanalysis/internal/source/ratelimit"
	"stockanalysis/internal/source/yahoo"
	"stockanalysis/internal/store"
)

// NewSource builds the configured provider, wrapped in rate limiting and
// then caching: cached hits never consume a limiter token.
func NewSource(cfg config.Config, log zerolog.Logger) (source.Source, error) {
	hc := httpx.New(cfg.Server.RequestTimeout(), cfg.Source.Proxy)

	var src source.Source
	switch cfg.Source.Provider {
	case config.ProviderYahoo:
		src = yahoo.New(yahoo.Config{}, hc.HTTP)
	case config.ProviderFinnhub:
		fh, err := finnhub.New(cfg.Source.FinnhubAPIKey,
			finnhub.WithBaseURL(cfg.Source.FinnhubBaseURL),
			finnhub.WithHTTPClient(hc.HTTP),
		)
		if err != nil {
			return nil, err
		}
		src = fh
	default:
		return nil, fmt.Errorf("unknown source provider %q", cfg.Source.Provider)
	}

	sc := cfg.Source
	// prefer token bucket with burst if RPM is set, otherwise min-interval
	if sc.MaxRequestsPerMinute > 0 {
		src = &ratelimit.TokenBucketSource{S: src, Lim: ratelimit.PerMinute(sc.MaxRequestsPerMinute, sc.Burst)}
	} else if sc.MinRequestIntervalSec > 0 {
		src = &ratelimit.MinInterval{S: src, Interval: time.Duration(sc.MinRequestIntervalSec) * time.Second}
	}
	if sc.CacheTTLSeconds > 0 {
		src = &cache.Source{S: src, TTL: time.Duration(sc.CacheTTLSeconds) * time.Second, MaxItems: sc.CacheMaxItems}
	}

	log.Info().
		Str("source", src.Name()).
		Int("max_rpm", sc.MaxRequestsPerMinute).
		Int("cache_ttl_sec", sc.CacheTTLSeconds).
		Msg("price source ready")
	return src, nil
}

// OpenStore opens the configured database. It returns a nil store and no
// error when persistence is not configured.
func OpenStore(ctx context.Context, cfg config.Config) (*store.Store, error) {
	if cfg.Database.URL == "" {
		return nil, nil
	}
	return store.Open(ctx, cfg.Database.URL)
}
