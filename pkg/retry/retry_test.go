package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(maxRetries int) *Config {
	return &Config{
		MaxRetries:      maxRetries,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     100 * time.Millisecond,
		Multiplier:      2.0,
		JitterFactor:    0,
	}
}

func TestRetrier_Do_Success(t *testing.T) {
	attempts := 0
	result := New(fastConfig(3)).Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return nil
	})

	if result.Err != nil {
		t.Errorf("Err = %v, want nil", result.Err)
	}
	if attempts != 1 {
		t.Errorf("Operation called %d times, want 1", attempts)
	}
}

func TestRetrier_Do_SuccessAfterRetries(t *testing.T) {
	attempts := 0
	result := New(fastConfig(5)).Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if result.Err != nil {
		t.Errorf("Err = %v, want nil", result.Err)
	}
	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
}

func TestRetrier_Do_MaxRetriesExceeded(t *testing.T) {
	attempts := 0
	persistent := errors.New("persistent error")
	result := New(fastConfig(3)).Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return persistent
	})

	if !errors.Is(result.Err, ErrMaxRetriesExceeded) {
		t.Errorf("Err = %v, want ErrMaxRetriesExceeded", result.Err)
	}
	if !errors.Is(result.LastError, persistent) {
		t.Errorf("LastError = %v, want %v", result.LastError, persistent)
	}
	// Initial attempt + 3 retries
	if attempts != 4 {
		t.Errorf("Operation called %d times, want 4", attempts)
	}
}

func TestRetrier_Do_PermanentErrorStopsImmediately(t *testing.T) {
	attempts := 0
	permErr := errors.New("business rejection")
	result := New(fastConfig(5)).Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Permanent(permErr)
	})

	if result.Err == nil || result.Err.Error() != permErr.Error() {
		t.Errorf("Err = %v, want %v", result.Err, permErr)
	}
	if attempts != 1 {
		t.Errorf("Operation called %d times, want 1", attempts)
	}
}

func TestRetrier_Do_ContextCanceled(t *testing.T) {
	cfg := fastConfig(10)
	cfg.InitialInterval = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	result := New(cfg).Do(ctx, func(ctx context.Context) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	})

	if !errors.Is(result.Err, ErrContextCanceled) {
		t.Errorf("Err = %v, want ErrContextCanceled", result.Err)
	}
	if result.Attempts < 2 {
		t.Errorf("Attempts = %d, want >= 2", result.Attempts)
	}
}

func TestDoWithCallback_InvokedBeforeEachRetry(t *testing.T) {
	attempts := 0
	callbacks := 0
	result := DoWithCallback(context.Background(), fastConfig(3),
		func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("error")
			}
			return nil
		},
		func(attempt int, err error, nextInterval time.Duration) {
			callbacks++
		},
	)

	if result.Err != nil {
		t.Errorf("Err = %v, want nil", result.Err)
	}
	// Before retry 2 and retry 3
	if callbacks != 2 {
		t.Errorf("Callback called %d times, want 2", callbacks)
	}
}

func TestCalculateInterval_ExponentialBackoffWithCap(t *testing.T) {
	retrier := New(&Config{
		MaxRetries:      5,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0,
	})

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // 32s capped
		{6, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := retrier.calculateInterval(tt.attempt); got != tt.expected {
			t.Errorf("calculateInterval(%d) = %v, want %v", tt.attempt, got, tt.expected)
		}
	}
}

func TestCalculateInterval_JitterStaysInBounds(t *testing.T) {
	retrier := New(&Config{
		MaxRetries:      5,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	})

	min := time.Duration(float64(time.Second) * 0.9)
	max := time.Duration(float64(time.Second) * 1.1)
	for i := 0; i < 100; i++ {
		if interval := retrier.calculateInterval(0); interval < min || interval > max {
			t.Fatalf("calculateInterval(0) = %v, want between %v and %v", interval, min, max)
		}
	}
}

func TestRetryable_And_Permanent_Wrapping(t *testing.T) {
	err := errors.New("test error")

	var re *RetryableError
	if !errors.As(Retryable(err), &re) || !errors.Is(re.Unwrap(), err) {
		t.Error("Retryable should wrap and unwrap the original error")
	}

	var pe *PermanentError
	if !errors.As(Permanent(err), &pe) || !errors.Is(pe.Unwrap(), err) {
		t.Error("Permanent should wrap and unwrap the original error")
	}

	if Retryable(nil) != nil || Permanent(nil) != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestNew_AppliesDefaultsToZeroValues(t *testing.T) {
	retrier := New(&Config{})

	if retrier.config.InitialInterval != 1*time.Second {
		t.Errorf("InitialInterval = %v, want 1s", retrier.config.InitialInterval)
	}
	if retrier.config.MaxInterval != 30*time.Second {
		t.Errorf("MaxInterval = %v, want 30s", retrier.config.MaxInterval)
	}
	if retrier.config.Multiplier != 2.0 {
		t.Errorf("Multiplier = %f, want 2.0", retrier.config.Multiplier)
	}
}
