// Package resilience builds circuit breakers for upstream API calls.
package resilience

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	Name                string
	MaxRequests         uint32        // allowed while half-open
	Interval            time.Duration // closed-state counter reset
	Timeout             time.Duration // open-state duration before half-open
	ConsecutiveFailures uint32
	MinRequests         uint32
	FailureRatio        float64
}

// DefaultBreakerConfig trips after 5 consecutive failures or a 60% failure
// ratio over at least 10 requests.
func DefaultBreakerConfig(name string) *BreakerConfig {
	return &BreakerConfig{
		Name:                name,
		MaxRequests:         3,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
		MinRequests:         10,
		FailureRatio:        0.6,
	}
}

// NewBreaker creates a gobreaker circuit breaker. isSuccessful may be nil;
// errors it accepts do not count as failures.
func NewBreaker(config *BreakerConfig, isSuccessful func(error) bool, log zerolog.Logger) *gobreaker.CircuitBreaker {
	if config == nil {
		config = DefaultBreakerConfig("default")
	}
	cfg := *config

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures > cfg.ConsecutiveFailures {
				return true
			}
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}
	if isSuccessful != nil {
		settings.IsSuccessful = isSuccessful
	}

	return gobreaker.NewCircuitBreaker(settings)
}
