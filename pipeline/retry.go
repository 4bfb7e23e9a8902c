package pipeline

import (
	"context"
	"time"

	"github.com/IBM/ibm-cloud-functions-serverless-ocr-openchecks/pkg/logger"
)

// RetryPolicy re-runs a stage with linearly growing backoff. Fatal errors
// and context cancellation stop the loop immediately.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Do runs fn until it succeeds, fails fatally, or exhausts the attempts.
// The last error is returned; intermediate failures are logged with their
// attempt number.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if IsFatal(err) {
			return err
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		logger.Warn(ctx, "stage failed, will retry",
			"attempt", attempt,
			"max_attempts", attempts,
			"error", err,
		)

		backoff := time.Duration(attempt) * p.BaseDelay
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return lastErr
}
