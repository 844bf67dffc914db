// Package llm talks to an OpenAI-compatible chat completion endpoint.
package llm

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net/http"
	"time"

	"triage_server/pkg/apperr"
	"triage_server/pkg/httputil"
	"triage_server/pkg/resilience"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
)

const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.1-8b-instant"
)

// ClientConfig configures the completion client.
type ClientConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MaxAttempts int
}

// DefaultClientConfig returns the settings used for triage prompts.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:     DefaultBaseURL,
		Model:       DefaultModel,
		MaxTokens:   300,
		Temperature: 0.2,
		Timeout:     30 * time.Second,
		MaxAttempts: 3,
	}
}

// Client sends system+user prompts and retries rate limits with exponential
// backoff. The retry loop runs inside a circuit breaker.
type Client struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	maxAttempts int

	cb  *gobreaker.CircuitBreaker
	log zerolog.Logger

	// overridable in tests
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

// NewClient creates a client. Zero fields in cfg take their defaults.
func NewClient(cfg ClientConfig, log zerolog.Logger) *Client {
	def := DefaultClientConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	oc.HTTPClient = httputil.NewClient(httputil.CompletionClientConfig(cfg.Timeout))

	log = log.With().Str("component", "llm_client").Str("model", cfg.Model).Logger()

	return &Client{
		client:      openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
		maxAttempts: cfg.MaxAttempts,
		cb: resilience.NewBreaker(resilience.DefaultBreakerConfig("llm-completion"), func(err error) bool {
			// exhausted rate limits say nothing about endpoint health
			return err == nil || apperr.IsCode(err, apperr.CodeAIRateLimited) || errors.Is(err, context.Canceled)
		}, log),
		log:    log,
		sleep:  sleepCtx,
		jitter: func() time.Duration { return time.Duration(rand.Int63n(int64(time.Second))) },
	}
}

// CompleteWithSystem returns the first choice's content.
func (c *Client) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	out, err := c.cb.Execute(func() (interface{}, error) {
		return c.completeWithRetry(ctx, systemPrompt, userPrompt)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", apperr.AIUnavailable(err)
		}
		return "", err
	}
	return out.(string), nil
}

func (c *Client) completeWithRetry(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", apperr.AIBadResponse("completion returned no choices", nil)
			}
			return resp.Choices[0].Message.Content, nil
		}

		if !isRateLimited(err) {
			c.log.Warn().Err(err).Int("attempt", attempt+1).Msg("completion failed")
			return "", apperr.AIUnavailable(err)
		}
		if attempt == c.maxAttempts-1 {
			c.log.Warn().Int("attempts", c.maxAttempts).Msg("completion rate limited, giving up")
			return "", apperr.AIRateLimited(c.maxAttempts, err)
		}

		wait := backoff(attempt) + c.jitter()
		c.log.Info().Int("attempt", attempt+1).Dur("wait", wait).Msg("completion rate limited, retrying")
		if err := c.sleep(ctx, wait); err != nil {
			return "", err
		}
	}
	return "", apperr.AIRateLimited(c.maxAttempts, nil)
}

// backoff is 2^attempt seconds.
func backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
