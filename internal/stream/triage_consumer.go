package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// EmailProcessor handles one stored email.
type EmailProcessor interface {
	ProcessOne(ctx context.Context, emailID int64) error
}

// ConsumerConfig holds consumer settings.
type ConsumerConfig struct {
	Name                 string
	PendingCheckInterval time.Duration // default 30s
	PendingIdleTime      time.Duration // default 2m
	MaxRetries           int           // deliveries before dead-lettering (default 3)
}

// Consumer reads email processing jobs for a consumer group. Entries left
// pending by a crashed consumer are reclaimed; entries that keep failing are
// moved to dlq:<stream>.
type Consumer struct {
	stream    *RedisStream
	processor EmailProcessor
	cfg       ConsumerConfig
	log       zerolog.Logger

	reclaimFn func(ctx context.Context)
}

func NewConsumer(stream *RedisStream, processor EmailProcessor, cfg ConsumerConfig, log zerolog.Logger) *Consumer {
	if cfg.Name == "" {
		cfg.Name = "triage-consumer"
	}
	if cfg.PendingCheckInterval <= 0 {
		cfg.PendingCheckInterval = 30 * time.Second
	}
	if cfg.PendingIdleTime <= 0 {
		cfg.PendingIdleTime = 2 * time.Minute
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	c := &Consumer{
		stream:    stream,
		processor: processor,
		cfg:       cfg,
		log:       log.With().Str("component", "stream_consumer").Str("consumer", cfg.Name).Logger(),
	}
	c.reclaimFn = c.reclaim
	return c
}

// Run blocks until ctx is done and the reclaim loop has exited.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.stream.CreateGroup(ctx, StreamEmailProcessing); err != nil {
		c.log.Warn().Err(err).Msg("error creating consumer group")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.reclaimLoop(ctx)
	}()
	defer wg.Wait()

	c.log.Info().Str("stream", StreamEmailProcessing).Msg("consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		streams, err := c.stream.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.stream.group,
			Consumer: c.cfg.Name,
			Streams:  []string{StreamEmailProcessing, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			c.log.Error().Err(err).Msg("stream read error")
			time.Sleep(time.Second)
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				c.handle(ctx, s.Stream, msg)
			}
		}
	}
}

func (c *Consumer) handle(ctx context.Context, stream string, msg redis.XMessage) {
	if err := c.process(ctx, msg); err != nil {
		// left pending; the reclaim loop retries it
		c.log.Error().Err(err).Str("id", msg.ID).Msg("error processing job")
		return
	}
	if err := c.stream.Ack(ctx, stream, msg.ID); err != nil {
		c.log.Error().Err(err).Str("id", msg.ID).Msg("error acknowledging job")
	}
}

func (c *Consumer) process(ctx context.Context, msg redis.XMessage) error {
	data, ok := msg.Values["data"].(string)
	if !ok {
		return fmt.Errorf("invalid message format: missing data field")
	}
	p, err := decodeEmailProcess([]byte(data))
	if err != nil {
		return err
	}
	return c.processor.ProcessOne(ctx, p.EmailID)
}

func (c *Consumer) reclaimLoop(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PendingCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.reclaimFn(ctx)
		}
	}
}

func (c *Consumer) reclaim(ctx context.Context) {
	client := c.stream.client
	pending, err := client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: StreamEmailProcessing,
		Group:  c.stream.group,
		Start:  "-",
		End:    "+",
		Count:  100,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Error().Err(err).Msg("error listing pending jobs")
		}
		return
	}

	for _, p := range pending {
		if p.Idle < c.cfg.PendingIdleTime {
			continue
		}

		if int(p.RetryCount) >= c.cfg.MaxRetries {
			if err := c.deadLetter(ctx, p.ID); err != nil {
				c.log.Error().Err(err).Str("id", p.ID).Msg("error moving job to DLQ")
			}
			_ = c.stream.Ack(ctx, StreamEmailProcessing, p.ID)
			continue
		}

		claimed, err := client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   StreamEmailProcessing,
			Group:    c.stream.group,
			Consumer: c.cfg.Name,
			MinIdle:  c.cfg.PendingIdleTime,
			Messages: []string{p.ID},
		}).Result()
		if err != nil {
			c.log.Error().Err(err).Str("id", p.ID).Msg("error claiming job")
			continue
		}
		for _, msg := range claimed {
			c.handle(ctx, StreamEmailProcessing, msg)
		}
	}
}

func (c *Consumer) deadLetter(ctx context.Context, id string) error {
	client := c.stream.client
	msgs, err := client.XRange(ctx, StreamEmailProcessing, id, id).Result()
	if err != nil {
		return fmt.Errorf("read job for DLQ: %w", err)
	}
	if len(msgs) == 0 {
		return fmt.Errorf("job %s not found", id)
	}

	values := map[string]any{
		"original_stream": StreamEmailProcessing,
		"original_id":     id,
		"failed_at":       time.Now().UTC().Format(time.RFC3339),
		"consumer":        c.cfg.Name,
	}
	for k, v := range msgs[0].Values {
		values["original_"+k] = v
	}

	if err := client.XAdd(ctx, &redis.XAddArgs{Stream: "dlq:" + StreamEmailProcessing, Values: values}).Err(); err != nil {
		return fmt.Errorf("add to DLQ: %w", err)
	}
	c.log.Warn().Str("id", id).Msg("job moved to DLQ")
	return nil
}
