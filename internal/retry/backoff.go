package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RetryConfig configures retry behavior with exponential backoff
type RetryConfig struct {
	MaxRetries int           `koanf:"max_retries"` // retries after the first attempt
	BaseDelay  time.Duration `koanf:"base_delay"`
	MaxDelay   time.Duration `koanf:"max_delay"`
	Multiplier float64       `koanf:"multiplier"`
	Jitter     bool          `koanf:"jitter"` // up to ±10% random jitter
}

// RetryResult contains information about the retry operation
type RetryResult struct {
	Attempts      int
	TotalDuration time.Duration
	LastError     error
	Success       bool
}

// DefaultRetryConfig returns the configuration used for idempotent Nextcloud reads.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// NoRetry runs the operation exactly once.
func NoRetry() RetryConfig {
	return RetryConfig{MaxRetries: 0, Multiplier: 1}
}

// Retryable is implemented by errors that know whether repeating the call can help.
type Retryable interface {
	Retryable() bool
}

// RetryWithBackoff runs operation until it succeeds, returns a non-retryable error, the
// retries are exhausted, or ctx is done. name labels the log lines.
func RetryWithBackoff(ctx context.Context, config RetryConfig, name string, operation func(ctx context.Context) error) RetryResult {
	return retryWithLogger(ctx, config, operation, log.With().Str("operation", name).Logger())
}

func retryWithLogger(ctx context.Context, config RetryConfig, operation func(ctx context.Context) error, logger zerolog.Logger) RetryResult {
	start := time.Now()
	var result RetryResult

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		result.Attempts = attempt + 1

		err := operation(ctx)
		if err == nil {
			result.Success = true
			result.LastError = nil
			result.TotalDuration = time.Since(start)
			if attempt > 0 {
				logger.Debug().Int("retries", attempt).Dur("duration", result.TotalDuration).Msg("Operation succeeded after retry")
			}
			return result
		}
		result.LastError = err

		if attempt >= config.MaxRetries || !IsRetryableError(err) {
			result.TotalDuration = time.Since(start)
			return result
		}
		if ctx.Err() != nil {
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(start)
			return result
		}

		delay := calculateDelay(config, attempt)
		logger.Warn().Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", config.MaxRetries+1).
			Dur("delay", delay).
			Msg("Operation failed, retrying")

		select {
		case <-ctx.Done():
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(start)
			return result
		case <-time.After(delay):
		}
	}

	result.TotalDuration = time.Since(start)
	return result
}

// calculateDelay calculates the delay for the next retry attempt using exponential backoff
func calculateDelay(config RetryConfig, attempt int) time.Duration {
	delay := float64(config.BaseDelay) * math.Pow(config.Multiplier, float64(attempt))

	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	if config.Jitter {
		jitterRange := delay * 0.1
		delay += (rand.Float64() - 0.5) * 2 * jitterRange
		if delay < 0 {
			delay = float64(config.BaseDelay)
		}
	}

	return time.Duration(delay)
}

// IsRetryableError determines if an error is retryable
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var r Retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}

	errStr := strings.ToLower(err.Error())
	retryableErrors := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"temporary failure",
		"service unavailable",
		"too many requests",
		"no such host",
		"network unreachable",
		"broken pipe",
		"unexpected eof",
	}
	for _, retryable := range retryableErrors {
		if strings.Contains(errStr, retryable) {
			return true
		}
	}
	return false
}
