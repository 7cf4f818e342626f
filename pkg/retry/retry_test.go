package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"pinscraper/pkg/config"
	errs "pinscraper/pkg/errors"
	"pinscraper/pkg/logger"
)

func quick(attempts int) *Config {
	return &Config{MaxAttempts: attempts, Backoff: Fixed(time.Millisecond)}
}

func TestExponentialDelay(t *testing.T) {
	b := &Exponential{Base: 100 * time.Millisecond, Max: time.Second, Multiplier: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 0},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{9, time.Second},
	}
	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponentialJitterBounds(t *testing.T) {
	b := &Exponential{Base: time.Second, Multiplier: 1, Jitter: 0.5}

	b.rand = func() float64 { return 0 }
	if got := b.Delay(1); got != 500*time.Millisecond {
		t.Errorf("Lowest jitter: got %v, want 500ms", got)
	}
	b.rand = func() float64 { return 0.5 }
	if got := b.Delay(1); got != time.Second {
		t.Errorf("Centred jitter: got %v, want 1s", got)
	}
	b.rand = func() float64 { return 0.999 }
	if got := b.Delay(1); got < 1400*time.Millisecond || got > 1500*time.Millisecond {
		t.Errorf("Highest jitter out of range: %v", got)
	}
}

func TestFixedDelay(t *testing.T) {
	if Fixed(time.Second).Delay(0) != 0 {
		t.Error("Expected no delay before the first attempt")
	}
	if Fixed(time.Second).Delay(3) != time.Second {
		t.Error("Expected constant delay")
	}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	attempts := 0
	var retried []int
	cfg := quick(5)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) { retried = append(retried, attempt) }

	err := Do(func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}, cfg)
	if err != nil {
		t.Errorf("Expected success after retries, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
	if len(retried) != 2 {
		t.Errorf("Expected 2 retry callbacks, got %v", retried)
	}
}

func TestDoMaxAttemptsWrapsLastError(t *testing.T) {
	attempts := 0
	last := errors.New("persistent error")
	err := Do(func() error {
		attempts++
		return last
	}, quick(3))
	if !errors.Is(err, last) {
		t.Errorf("Expected wrapped last error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestDoNonRetryableTransportError(t *testing.T) {
	attempts := 0
	authError := &errs.Error{Type: errs.ErrorTypeAuth, Message: "forbidden", Code: 403}
	err := Do(func() error {
		attempts++
		return authError
	}, quick(5))
	if err != authError {
		t.Errorf("Expected auth error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestDoRetryableTransportError(t *testing.T) {
	attempts := 0
	err := Do(func() error {
		attempts++
		if attempts < 2 {
			return errs.FromStatusCode(503, "unavailable")
		}
		return nil
	}, quick(3))
	if err != nil {
		t.Errorf("Expected success, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
}

func TestDoPermanentError(t *testing.T) {
	missing := errors.New("object not found")
	attempts := 0
	err := Do(func() error {
		attempts++
		return Permanent(missing)
	}, quick(5))
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
	if !errors.Is(err, missing) {
		t.Errorf("Expected the original error to stay reachable, got %v", err)
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestDoContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	cfg := &Config{MaxAttempts: 5, Backoff: Fixed(time.Hour), Context: ctx}

	err := Do(func() error {
		attempts++
		cancel()
		return errors.New("error")
	}, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected cancellation, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestDoStopsOnContextError(t *testing.T) {
	attempts := 0
	err := Do(func() error {
		attempts++
		return context.Canceled
	}, quick(5))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestDoNilConfigRunsOnce(t *testing.T) {
	attempts := 0
	_ = Do(func() error { attempts++; return errors.New("x") }, nil)
	if attempts != 1 {
		t.Errorf("Expected 1 attempt, got %d", attempts)
	}
}

func TestFromSettings(t *testing.T) {
	rc := config.DefaultConfig().Retry
	cfg := FromSettings(context.Background(), rc, logger.NewNopLogger())
	if cfg.MaxAttempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", cfg.MaxAttempts)
	}
	b, ok := cfg.Backoff.(*Exponential)
	if !ok {
		t.Fatal("Expected exponential backoff")
	}
	if b.Base != rc.BaseDelay || b.Multiplier != rc.Multiplier {
		t.Errorf("Backoff does not reflect settings: %+v", b)
	}

	rc.Enabled = false
	if got := FromSettings(context.Background(), rc, nil).MaxAttempts; got != 1 {
		t.Errorf("Expected a single attempt when disabled, got %d", got)
	}
}
