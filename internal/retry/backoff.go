// Package retry restarts whole-load operations after transient upstream
// failures. The reconciliation core never retries on its own, so this is
// the only retry policy in the process.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/restitch/internal/config"
	"github.com/restitch/internal/sources"
)

// RetryConfig configures retry behavior with exponential backoff.
type RetryConfig struct {
	MaxRetries int           // retry attempts after the first try
	BaseDelay  time.Duration // delay before the first retry
	MaxDelay   time.Duration // upper bound for any single delay
	Multiplier float64       // exponential growth factor
	Jitter     bool          // spread delays by up to 10% either way
}

// RetryResult describes how an operation run went.
type RetryResult struct {
	Attempts      int
	TotalDuration time.Duration
	LastError     error
	Success       bool
}

// DefaultRetryConfig matches the [retry] configuration defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   8 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// FromConfig maps the [retry] section onto a retry configuration.
func FromConfig(cfg *config.Config) RetryConfig {
	return RetryConfig{
		MaxRetries: cfg.Retry.MaxRetries,
		BaseDelay:  time.Duration(cfg.Retry.BaseDelayMs) * time.Millisecond,
		MaxDelay:   time.Duration(cfg.Retry.MaxDelayMs) * time.Millisecond,
		Multiplier: cfg.Retry.Multiplier,
		Jitter:     cfg.Retry.Jitter,
	}
}

// Retryable reports whether restarting the operation could plausibly
// succeed. Only transient upstream failures qualify; status errors, link
// mismatches and cancellations are final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return sources.IsTransient(err)
}

// RetryWithBackoff runs operation until it succeeds, fails permanently,
// the retry budget runs out, or ctx ends.
func RetryWithBackoff(ctx context.Context, cfg RetryConfig, operation func() error, log zerolog.Logger) RetryResult {
	start := time.Now()
	result := RetryResult{}

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result.Attempts = attempt + 1

		err := operation()
		if err == nil {
			result.Success = true
			result.TotalDuration = time.Since(start)
			if attempt > 0 {
				log.Info().Int("attempts", result.Attempts).Dur("total", result.TotalDuration).Msg("operation succeeded after retrying")
			}
			return result
		}
		result.LastError = err

		if !Retryable(err) {
			result.TotalDuration = time.Since(start)
			return result
		}
		if attempt >= cfg.MaxRetries {
			result.TotalDuration = time.Since(start)
			log.Warn().Err(err).Int("attempts", result.Attempts).Msg("giving up after exhausting retries")
			return result
		}

		delay := backoffDelay(cfg, attempt)
		log.Warn().Err(err).Int("attempt", result.Attempts).Dur("delay", delay).Msg("transient failure, retrying")

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

// backoffDelay grows the base delay exponentially, capped at MaxDelay, with
// an optional 10% jitter band.
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))
	if delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	if cfg.Jitter {
		band := delay * 0.1
		delay += (rand.Float64() - 0.5) * 2 * band
		if delay < 0 {
			delay = float64(cfg.BaseDelay)
		}
	}

	return time.Duration(delay)
}
