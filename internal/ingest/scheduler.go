package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// DefaultSpec runs after the US close on weekdays. The first field is seconds.
const DefaultSpec = "0 30 22 * * 1-5"

// Scheduler runs a Job on a cron spec.
type Scheduler struct {
	cron *cron.Cron
	job  *Job
	log  zerolog.Logger
	ctx  context.Context
	stop context.CancelFunc
}

// NewScheduler registers job under spec. Overlapping runs are skipped.
func NewScheduler(job *Job, spec string, log zerolog.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	cl := cronLogger{log: log}
	s := &Scheduler{
		cron: cron.New(cron.WithSeconds(), cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		job:  job,
		log:  log,
	}
	s.ctx, s.stop = context.WithCancel(context.Background())
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("register ingest %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) run() {
	start := time.Now()
	res, err := s.job.RunOnce(s.ctx)
	ev := s.log.Info()
	if err != nil {
		ev = s.log.Warn().Err(err)
	}
	ev.Int("inserted", res.Inserted).
		Int("duplicates", res.Duplicates).
		Int("failed", res.Failed).
		Dur("took", time.Since(start)).
		Msg("scheduled ingest finished")
}

// Start begins scheduling in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("ingest scheduler started")
}

// Stop cancels a running job and waits for it, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	s.stop()
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	s.log.Info().Msg("ingest scheduler stopped")
}

// Next reports when the job fires next; zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
