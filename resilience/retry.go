package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffStrategy defines how delays increase between attempts.
type BackoffStrategy int

const (
	// BackoffExponential multiplies the delay each attempt.
	BackoffExponential BackoffStrategy = iota
	// BackoffLinear increases the delay linearly.
	BackoffLinear
	// BackoffConstant uses the same delay for every attempt.
	BackoffConstant
)

// RetryConfig configures a Retry.
type RetryConfig struct {
	// MaxAttempts includes the first attempt. Default: 3.
	MaxAttempts int `yaml:"max_attempts"`

	// InitialDelay is the wait before the second attempt. Default: 10ms.
	InitialDelay time.Duration `yaml:"initial_delay"`

	// MaxDelay caps a single wait. Default: 1s.
	MaxDelay time.Duration `yaml:"max_delay"`

	// Multiplier applies to BackoffExponential. Default: 2.
	Multiplier float64 `yaml:"multiplier"`

	Strategy BackoffStrategy `yaml:"-"`

	// Jitter adds up to 25% to each wait.
	Jitter bool `yaml:"jitter"`

	// RetryIf filters retryable errors. Permanent errors are never retried.
	RetryIf func(err error) bool `yaml:"-"`

	// OnRetry runs before each wait.
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-"`
}

// Retry runs operations with bounded retries.
type Retry struct {
	config RetryConfig
}

// NewRetry creates a Retry, filling zero fields with defaults.
func NewRetry(config RetryConfig) *Retry {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 10 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.RetryIf == nil {
		config.RetryIf = func(err error) bool { return err != nil }
	}
	return &Retry{config: config}
}

// Once returns a Retry that makes a single attempt.
func Once() *Retry {
	return NewRetry(RetryConfig{MaxAttempts: 1})
}

// Execute runs op until it succeeds, returns a non-retryable error, the
// context ends, or MaxAttempts is reached. A single-attempt Retry returns
// op's error unwrapped.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if IsPermanent(err) || !r.config.RetryIf(err) {
			return err
		}
		if attempt >= r.config.MaxAttempts {
			break
		}

		delay := r.delay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if r.config.MaxAttempts == 1 {
		return lastErr
	}
	return exhausted(r.config.MaxAttempts, lastErr)
}

func (r *Retry) delay(attempt int) time.Duration {
	var d time.Duration
	switch r.config.Strategy {
	case BackoffConstant:
		d = r.config.InitialDelay
	case BackoffLinear:
		d = r.config.InitialDelay * time.Duration(attempt)
	default:
		d = time.Duration(float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1)))
	}

	if d > r.config.MaxDelay {
		d = r.config.MaxDelay
	}
	if r.config.Jitter && d >= 4 {
		// #nosec G404 -- jitter is non-cryptographic timing variance.
		d += time.Duration(rand.Int64N(int64(d / 4)))
	}
	return d
}

// Config returns the effective configuration.
func (r *Retry) Config() RetryConfig {
	return r.config
}
