package classify

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
)

// ResilientClassifier wraps a Classifier with retry and a circuit breaker
// so a flaky model endpoint degrades to errors fast instead of piling up
// webhook goroutines.
type ResilientClassifier struct {
	classifier     Classifier
	circuitBreaker circuitbreaker.CircuitBreaker[*Action]
	retrier        retry.Retry[*Action]
	logger         *slog.Logger
}

// NewResilientClassifier wraps classifier with the resilience stack.
func NewResilientClassifier(classifier Classifier, logger *slog.Logger) *ResilientClassifier {
	rc := &ResilientClassifier{
		classifier: classifier,
		logger:     logger,
	}

	rc.circuitBreaker = circuitbreaker.New[*Action](circuitbreaker.Config{
		MaxRequests: 2,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			if rc.logger != nil {
				rc.logger.Warn("classifier circuit breaker state change",
					"from", from.String(),
					"to", to.String())
			}
		},
	})

	rc.retrier = retry.New[*Action](retry.Config{
		MaxAttempts:   3,
		InitialDelay:  time.Second,
		MaxDelay:      15 * time.Second,
		Multiplier:    2.0,
		BackoffPolicy: retry.BackoffExponential,
		Jitter:        true,
		IsRetryable:   isRetryableHTTPError,
	})

	return rc
}

func (c *ResilientClassifier) Classify(ctx context.Context, text string) (*Action, error) {
	return c.circuitBreaker.Execute(ctx, func(ctx context.Context) (*Action, error) {
		return c.retrier.Do(ctx, func(ctx context.Context) (*Action, error) {
			return c.classifier.Classify(ctx, text)
		})
	})
}

// isRetryableHTTPError checks if an error is retryable based on HTTP semantics
func isRetryableHTTPError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	retryable := map[string]int{
		"status 429": http.StatusTooManyRequests,
		"status 500": http.StatusInternalServerError,
		"status 502": http.StatusBadGateway,
		"status 503": http.StatusServiceUnavailable,
		"status 504": http.StatusGatewayTimeout,
	}
	for pattern := range retryable {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
