package app

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"stockanalysis/internal/config"
	"stockanalysis/internal/source/cache"
	"stockanalysis/internal/source/finnhub"
	"stockanalysis/internal/source/ratelimit"
	"stockanalysis/internal/source/yahoo"
)

func TestNewSource_Yahoo(t *testing.T) {
	cfg := config.Default()
	cfg.Source.CacheTTLSeconds = 0

	src, err := NewSource(cfg, zerolog.Nop())

	require.NoError(t, err)
	require.IsType(t, &yahoo.Source{}, src)
	require.Equal(t, "Yahoo", src.Name())
}

func TestNewSource_FinnhubDecorated(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Source.Provider = config.ProviderFinnhub
	cfg.Source.FinnhubAPIKey = "key"
	cfg.Source.MaxRequestsPerMinute = 60
	cfg.Source.CacheTTLSeconds = 30

	src, err := NewSource(cfg, zerolog.Nop())
	require.NoError(t, err)

	// cache outside, limiter inside
	c, ok := src.(*cache.Source)
	require.True(t, ok)
	tb, ok := c.S.(*ratelimit.TokenBucketSource)
	require.True(t, ok)
	require.IsType(t, &finnhub.Client{}, tb.S)
	require.Equal(t, "Finnhub", src.Name())
}

func TestNewSource_MinInterval(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Source.Provider = config.ProviderFinnhub
	cfg.Source.FinnhubAPIKey = "key"
	cfg.Source.MinRequestIntervalSec = 2
	cfg.Source.CacheTTLSeconds = 0

	src, err := NewSource(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.IsType(t, &ratelimit.MinInterval{}, src)
}

func TestNewSource_Errors(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Source.Provider = config.ProviderFinnhub
	_, err := NewSource(cfg, zerolog.Nop())
	require.ErrorIs(t, err, finnhub.ErrMissingAPIKey)

	cfg.Source.Provider = "bloomberg"
	_, err = NewSource(cfg, zerolog.Nop())
	require.Error(t, err)
}

func TestOpenStore(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	st, err := OpenStore(t.Context(), cfg)
	require.NoError(t, err)
	require.Nil(t, st)

	cfg.Database.URL = "sqlite://" + filepath.Join(t.TempDir(), "app.db")
	st, err = OpenStore(t.Context(), cfg)
	require.NoError(t, err)
	require.NotNil(t, st)
	require.NoError(t, st.Close())
}
