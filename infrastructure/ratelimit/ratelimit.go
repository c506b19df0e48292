// Package ratelimit throttles outbound calls the control plane makes
// to tenant-supplied endpoints (notification webhooks), so a
// misbehaving or slow receiver can't be hammered by a busy tenant.
package ratelimit

import (
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimitConfig bounds a single outbound destination's call rate.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig is applied when a caller doesn't override the limit.
func DefaultConfig() RateLimitConfig {
	return RateLimitConfig{RequestsPerSecond: 100, Burst: 200}
}

// RateLimitedClient wraps an *http.Client so every Do call first waits
// on a token bucket instead of failing fast, since the caller (the
// notification dispatch loop) has no cheaper fallback than waiting.
type RateLimitedClient struct {
	http    *http.Client
	limiter *rate.Limiter
}

// NewRateLimitedClient builds a client throttled to cfg. A nil http
// client falls back to http.DefaultClient.
func NewRateLimitedClient(client *http.Client, cfg RateLimitConfig) *RateLimitedClient {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 100
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RequestsPerSecond * 2)
	}
	return &RateLimitedClient{
		http:    client,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}
}

// Do blocks until the rate limiter admits the request's context, then
// issues it.
func (c *RateLimitedClient) Do(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return c.http.Do(req)
}
