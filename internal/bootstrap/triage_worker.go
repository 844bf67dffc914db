package bootstrap

import (
	"context"
	"errors"
	"sync"
	"time"

	"triage_server/adapter/in/worker"
	"triage_server/internal/stream"

	"github.com/rs/zerolog"
)

// Worker runs the background loops: the stored-message poller, the mailbox
// fetch scheduler and, when enabled, the Redis stream consumer.
type Worker struct {
	poller   *worker.Poller
	fetcher  *worker.FetchScheduler
	consumer *stream.Consumer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	zlog   zerolog.Logger
}

func NewWorker(deps *Dependencies) *Worker {
	cfg := deps.Config
	zlog := deps.Log.With().Str("component", "worker").Str("worker_id", cfg.WorkerID).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		poller: worker.NewPoller(deps.Processor, &worker.PollerConfig{
			IdleSleep:    cfg.ProcessorIdle,
			ErrorBackoff: cfg.ProcessorErrorBackoff,
		}, deps.Log),
		ctx:    ctx,
		cancel: cancel,
		zlog:   zlog,
	}

	if deps.Sync != nil {
		w.fetcher = worker.NewFetchScheduler(deps.Sync, cfg.SyncInterval, deps.Log)
	} else {
		zlog.Warn().Msg("mailbox sync disabled")
	}

	if cfg.StreamEnabled {
		w.consumer = stream.NewConsumer(deps.Stream, deps.Processor, stream.ConsumerConfig{
			Name:                 cfg.WorkerID,
			PendingCheckInterval: time.Duration(cfg.ConsumerPendingCheckSec) * time.Second,
			MaxRetries:           cfg.ConsumerMaxRetries,
		}, deps.Log)
	}

	return w
}

// Start runs every loop and blocks until Stop is called.
func (w *Worker) Start() {
	w.run("poller", func(ctx context.Context) { w.poller.Run(ctx) })
	if w.fetcher != nil {
		w.run("fetch_scheduler", func(ctx context.Context) { w.fetcher.Run(ctx) })
	}
	if w.consumer != nil {
		w.run("stream_consumer", func(ctx context.Context) {
			if err := w.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.zlog.Error().Err(err).Msg("stream consumer stopped")
			}
		})
	}

	<-w.ctx.Done()
}

// Stop cancels every loop and waits for them to return.
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
}

func (w *Worker) run(name string, fn func(ctx context.Context)) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.zlog.Info().Str("loop", name).Msg("started")
		fn(w.ctx)
		w.zlog.Info().Str("loop", name).Msg("stopped")
	}()
}
