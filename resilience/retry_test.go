package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("write index: resource temporarily unavailable")

func TestNewRetry_Defaults(t *testing.T) {
	cfg := NewRetry(RetryConfig{}).Config()

	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.MaxAttempts)
	}
	if cfg.InitialDelay != 10*time.Millisecond {
		t.Errorf("InitialDelay = %v, want 10ms", cfg.InitialDelay)
	}
	if cfg.MaxDelay != time.Second {
		t.Errorf("MaxDelay = %v, want 1s", cfg.MaxDelay)
	}
	if cfg.Multiplier != 2.0 {
		t.Errorf("Multiplier = %f, want 2.0", cfg.Multiplier)
	}
}

func TestRetry_SuccessOnFirstAttempt(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 3})

	attempts := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		attempts++
		return nil
	})
	if err != nil {
		t.Errorf("Execute() error = %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetry_SuccessOnRetry(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond})

	attempts := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTransient
		}
		return nil
	})
	if err != nil {
		t.Errorf("Execute() error = %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetry_Exhausted(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond})

	attempts := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		attempts++
		return errTransient
	})
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Errorf("error = %v, want ErrRetriesExhausted", err)
	}
	if !errors.Is(err, errTransient) {
		t.Errorf("error = %v, should wrap the last failure", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetry_OnceReturnsErrorUnwrapped(t *testing.T) {
	err := Once().Execute(context.Background(), func(context.Context) error {
		return errTransient
	})
	if err != errTransient {
		t.Errorf("error = %v, want the operation's error", err)
	}
}

func TestRetry_PermanentStopsImmediately(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond})

	attempts := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		attempts++
		return Permanent(errTransient)
	})
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if !IsPermanent(err) || !errors.Is(err, errTransient) {
		t.Errorf("error = %v, want permanent wrapping errTransient", err)
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestRetry_RetryIf(t *testing.T) {
	skip := errors.New("not retryable")
	r := NewRetry(RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		RetryIf:      func(err error) bool { return !errors.Is(err, skip) },
	})

	attempts := 0
	err := r.Execute(context.Background(), func(context.Context) error {
		attempts++
		return skip
	})
	if !errors.Is(err, skip) || attempts != 1 {
		t.Errorf("err = %v attempts = %d, want skip after 1 attempt", err, attempts)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	r := NewRetry(RetryConfig{MaxAttempts: 10, InitialDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())

	err := r.Execute(ctx, func(context.Context) error {
		cancel()
		return errTransient
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestRetry_OnRetryCallback(t *testing.T) {
	var calls []int
	r := NewRetry(RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			calls = append(calls, attempt)
		},
	})

	_ = r.Execute(context.Background(), func(context.Context) error { return errTransient })
	if len(calls) != 2 || calls[0] != 1 || calls[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", calls)
	}
}

func TestRetry_DelayStrategies(t *testing.T) {
	tests := []struct {
		name     string
		strategy BackoffStrategy
		want     []time.Duration
	}{
		{"constant", BackoffConstant, []time.Duration{10, 10, 10}},
		{"linear", BackoffLinear, []time.Duration{10, 20, 30}},
		{"exponential", BackoffExponential, []time.Duration{10, 20, 40}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRetry(RetryConfig{
				InitialDelay: 10 * time.Millisecond,
				MaxDelay:     35 * time.Millisecond,
				Strategy:     tc.strategy,
			})
			for i, w := range tc.want {
				want := w * time.Millisecond
				if want > 35*time.Millisecond {
					want = 35 * time.Millisecond
				}
				if got := r.delay(i + 1); got != want {
					t.Errorf("delay(%d) = %v, want %v", i+1, got, want)
				}
			}
		})
	}
}

func TestRetry_JitterBounded(t *testing.T) {
	r := NewRetry(RetryConfig{InitialDelay: 100 * time.Millisecond, Jitter: true, Strategy: BackoffConstant})
	for range 50 {
		d := r.delay(1)
		if d < 100*time.Millisecond || d >= 125*time.Millisecond {
			t.Fatalf("jittered delay %v out of range", d)
		}
	}
}
