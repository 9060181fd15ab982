package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/felixgeelhaar/fortify/retry"
)

// ResilientClient wraps a Client with retry, a circuit breaker and a rate
// limit. WhatsApp providers throttle aggressively; the limiter keeps a
// fan-out burst from tripping provider-side bans.
type ResilientClient struct {
	client         Client
	circuitBreaker circuitbreaker.CircuitBreaker[struct{}]
	retrier        retry.Retry[struct{}]
	rateLimit      ratelimit.RateLimiter
	logger         *slog.Logger
}

// ResilientClientConfig holds configuration for the resilient wrapper
type ResilientClientConfig struct {
	// RatePerSecond for outbound sends (default: 10)
	RatePerSecond int

	// Logger for resilience events
	Logger *slog.Logger
}

// NewResilientClient wraps client with the resilience stack.
func NewResilientClient(client Client, cfg ResilientClientConfig) *ResilientClient {
	rate := cfg.RatePerSecond
	if rate <= 0 {
		rate = 10
	}

	rc := &ResilientClient{
		client: client,
		logger: cfg.Logger,
	}

	rc.circuitBreaker = circuitbreaker.New[struct{}](circuitbreaker.Config{
		MaxRequests: 2,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			if rc.logger != nil {
				rc.logger.Warn("whatsapp client circuit breaker state change",
					"from", from.String(),
					"to", to.String())
			}
		},
	})

	rc.retrier = retry.New[struct{}](retry.Config{
		MaxAttempts:   3,
		InitialDelay:  time.Second,
		MaxDelay:      15 * time.Second,
		Multiplier:    2.0,
		BackoffPolicy: retry.BackoffExponential,
		Jitter:        true,
		IsRetryable: func(err error) bool {
			if err == nil {
				return false
			}
			msg := err.Error()
			for _, pattern := range []string{"status 429", "status 500", "status 502", "status 503", "status 504"} {
				if strings.Contains(msg, pattern) {
					return true
				}
			}
			return false
		},
	})

	rc.rateLimit = ratelimit.New(&ratelimit.Config{
		Rate:     rate,
		Burst:    rate * 2,
		Interval: time.Second,
	})

	return rc
}

func (c *ResilientClient) SendText(ctx context.Context, toPhone, body string) error {
	if !c.rateLimit.Allow(ctx, "whatsapp") {
		return fmt.Errorf("outbound rate limit exceeded")
	}

	_, err := c.circuitBreaker.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		return c.retrier.Do(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.client.SendText(ctx, toPhone, body)
		})
	})
	return err
}

// Close releases resources held by the resilient client
func (c *ResilientClient) Close() error {
	if c.rateLimit != nil {
		return c.rateLimit.Close()
	}
	return nil
}
