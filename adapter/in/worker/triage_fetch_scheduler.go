package worker

import (
	"context"
	"sync/atomic"
	"time"

	"triage_server/core/service/triage"

	"github.com/rs/zerolog"
)

// MailboxSyncer syncs every linked mailbox once.
type MailboxSyncer interface {
	SyncAll(ctx context.Context) (triage.SyncReport, error)
}

// FetchScheduler runs SyncAll on a fixed interval. A run still in progress
// when the next tick fires causes that tick to be skipped.
type FetchScheduler struct {
	syncer   MailboxSyncer
	interval time.Duration
	timeout  time.Duration
	running  atomic.Bool
	log      zerolog.Logger
}

// NewFetchScheduler creates the scheduler; interval defaults to one minute.
func NewFetchScheduler(syncer MailboxSyncer, interval time.Duration, log zerolog.Logger) *FetchScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &FetchScheduler{
		syncer:   syncer,
		interval: interval,
		timeout:  5 * time.Minute,
		log:      log.With().Str("component", "fetch_scheduler").Logger(),
	}
}

// Run syncs immediately, then on every tick until ctx is done.
func (s *FetchScheduler) Run(ctx context.Context) {
	s.log.Info().Dur("interval", s.interval).Msg("fetch scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("fetch scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *FetchScheduler) tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Warn().Msg("previous sync still running, skipping tick")
		return
	}

	go func() {
		defer s.running.Store(false)

		runCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		start := time.Now()
		report, err := s.syncer.SyncAll(runCtx)
		if err != nil {
			s.log.Error().Err(err).Msg("sync cycle failed")
			return
		}
		s.log.Info().
			Int("users", report.Users).
			Int("failed", report.Failed).
			Int("stored", report.Stored).
			Dur("took", time.Since(start)).
			Msg("sync cycle finished")
	}()
}
