// Package httputil builds pooled HTTP clients for upstream APIs.
package httputil

import (
	"net"
	"net/http"
	"time"
)

// ClientConfig holds HTTP client configuration.
type ClientConfig struct {
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	DialTimeout         time.Duration
	TLSHandshakeTimeout time.Duration
	Timeout             time.Duration // whole-request deadline
}

// CompletionClientConfig is used for the completion endpoint: one request in
// flight at a time, 30 second deadline.
func CompletionClientConfig(timeout time.Duration) *ClientConfig {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ClientConfig{
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		Timeout:             timeout,
	}
}

// GoogleClientConfig is used as the base transport for Gmail and Calendar.
func GoogleClientConfig() *ClientConfig {
	return &ClientConfig{
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     120 * time.Second,
		DialTimeout:         10 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		Timeout:             60 * time.Second,
	}
}

// NewClient creates an HTTP client with its own connection pool.
func NewClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		cfg = CompletionClientConfig(0)
	}

	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		TLSHandshakeTimeout: cfg.TLSHandshakeTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
}
