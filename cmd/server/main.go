package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"stockanalysis/internal/api"
	"stockanalysis/internal/app"
	"stockanalysis/internal/config"
	"stockanalysis/internal/ingest"
	"stockanalysis/internal/logging"
	"stockanalysis/internal/series"
	"stockanalysis/internal/stocks"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	log := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server")
	}
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	src, err := app.NewSource(cfg, log)
	if err != nil {
		return err
	}

	opts := api.Options{
		Stocks:         stocks.NewService(src, log),
		DataDir:        cfg.Server.DataDir,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout(),
		Log:            log,
	}

	st, err := app.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
		opts.Store = st
		log.Info().Msg("persistence enabled")
	}

	var sched *ingest.Scheduler
	if cfg.Ingest.Enabled {
		job := &ingest.Job{
			Source:  src,
			Store:   st,
			Symbols: cfg.Ingest.Symbols,
			Period:  series.MustPeriod(cfg.Ingest.Period),
			Log:     log.With().Str("component", "ingest").Logger(),
		}
		sched, err = ingest.NewScheduler(job, cfg.Ingest.Cron, log)
		if err != nil {
			return err
		}
		sched.Start()
		log.Info().Time("next", sched.Next()).Strs("symbols", cfg.Ingest.Symbols).Msg("ingest scheduled")
	}

	srv := api.New(opts).HTTPServer(":" + cfg.Server.Port)
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("source", src.Name()).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	// graceful shutdown
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
