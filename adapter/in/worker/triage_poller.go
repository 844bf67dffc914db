// Package worker drives the background triage loops.
package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// PendingProcessor handles one page of unprocessed emails.
type PendingProcessor interface {
	ProcessPending(ctx context.Context) (int, error)
}

// PollerConfig configures the processing loop.
type PollerConfig struct {
	IdleSleep    time.Duration // wait after an empty page (default 30s)
	ErrorBackoff time.Duration // wait after a failed page (default 5s)
}

func DefaultPollerConfig() *PollerConfig {
	return &PollerConfig{IdleSleep: 30 * time.Second, ErrorBackoff: 5 * time.Second}
}

// Poller repeatedly drains unprocessed emails. Full pages are followed
// immediately by the next poll.
type Poller struct {
	processor PendingProcessor
	config    *PollerConfig
	log       zerolog.Logger
}

func NewPoller(processor PendingProcessor, config *PollerConfig, log zerolog.Logger) *Poller {
	if config == nil {
		config = DefaultPollerConfig()
	}
	def := DefaultPollerConfig()
	if config.IdleSleep <= 0 {
		config.IdleSleep = def.IdleSleep
	}
	if config.ErrorBackoff <= 0 {
		config.ErrorBackoff = def.ErrorBackoff
	}
	return &Poller{
		processor: processor,
		config:    config,
		log:       log.With().Str("component", "poller").Logger(),
	}
}

// Run blocks until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	p.log.Info().
		Dur("idle_sleep", p.config.IdleSleep).
		Dur("error_backoff", p.config.ErrorBackoff).
		Msg("poller started")

	for {
		n, err := p.processor.ProcessPending(ctx)

		var wait time.Duration
		switch {
		case err != nil:
			p.log.Error().Err(err).Msg("poll failed")
			wait = p.config.ErrorBackoff
		case n == 0:
			wait = p.config.IdleSleep
		}

		if !sleepCtx(ctx, wait) {
			p.log.Info().Msg("poller stopped")
			return
		}
	}
}

// sleepCtx waits d (or not at all when d is zero) and reports whether ctx is
// still live.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
