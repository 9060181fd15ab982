package ocr

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/retry"
)

// ResilientExtractor wraps an Extractor with retry and a bulkhead. Vision
// calls are the slowest external dependency the bot has; the bulkhead keeps
// a burst of photos from monopolizing every webhook goroutine.
type ResilientExtractor struct {
	extractor Extractor
	retrier   retry.Retry[*Extraction]
	bulkhead  bulkhead.Bulkhead[*Extraction]
	logger    *slog.Logger
}

// NewResilientExtractor wraps extractor with the resilience stack.
// maxConcurrent bounds in-flight extractions (default 3).
func NewResilientExtractor(extractor Extractor, maxConcurrent int, logger *slog.Logger) *ResilientExtractor {
	if maxConcurrent <= 0 {
		maxConcurrent = 3
	}

	return &ResilientExtractor{
		extractor: extractor,
		logger:    logger,
		retrier: retry.New[*Extraction](retry.Config{
			MaxAttempts:   3,
			InitialDelay:  2 * time.Second,
			MaxDelay:      30 * time.Second,
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
		}),
		bulkhead: bulkhead.New[*Extraction](bulkhead.Config{
			MaxConcurrent: maxConcurrent,
			MaxQueue:      maxConcurrent * 2,
			QueueTimeout:  30 * time.Second,
		}),
	}
}

func (e *ResilientExtractor) Extract(ctx context.Context, image []byte, mimeType string) (*Extraction, error) {
	return e.bulkhead.Execute(ctx, func(ctx context.Context) (*Extraction, error) {
		return e.retrier.Do(ctx, func(ctx context.Context) (*Extraction, error) {
			return e.extractor.Extract(ctx, image, mimeType)
		})
	})
}
