package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/NeKzor/b2"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{}, func(int) error {
		attempts++
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestDoRetriesWithExponentialBackoff(t *testing.T) {
	attempts := 0
	var sleeps []time.Duration
	err := Do(nil, Config{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		Sleeper: func(d time.Duration) {
			sleeps = append(sleeps, d)
		},
	}, func(int) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	wantSleeps := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
	}
	if len(sleeps) != len(wantSleeps) {
		t.Fatalf("expected %d sleeps, got %d", len(wantSleeps), len(sleeps))
	}
	for i, got := range sleeps {
		if got != wantSleeps[i] {
			t.Fatalf("sleep %d: expected %v, got %v", i, wantSleeps[i], got)
		}
	}
}

func TestDoHonorsShouldRetry(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Config{
		MaxAttempts: 3,
		ShouldRetry: func(error) bool { return false },
	}, func(int) error {
		attempts++
		return errors.New("permanent")
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts != 1 {
		t.Fatalf("expected no retries, got %d attempts", attempts)
	}
}

func TestDoUsesCustomDelayFunc(t *testing.T) {
	attempts := 0
	var sleeps []time.Duration
	err := Do(nil, Config{
		MaxAttempts: 3,
		BaseDelay:   10 * time.Millisecond,
		DelayFunc: func(attempt int, _ error) time.Duration {
			return time.Duration(attempt+1) * time.Second
		},
		Sleeper: func(d time.Duration) {
			sleeps = append(sleeps, d)
		},
	}, func(int) error {
		attempts++
		if attempts < 3 {
			return errors.New("again")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	wantSleeps := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(sleeps) != len(wantSleeps) {
		t.Fatalf("expected %d sleeps, got %d", len(wantSleeps), len(sleeps))
	}
	for i, got := range sleeps {
		if got != wantSleeps[i] {
			t.Fatalf("sleep %d: expected %v, got %v", i, wantSleeps[i], got)
		}
	}
}

func TestDoStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Do(ctx, Config{
		MaxAttempts: 5,
		BaseDelay:   1 * time.Millisecond,
	}, func(int) error {
		attempts++
		cancel()
		return errors.New("fail")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected stop after first attempt due to cancel, got %d", attempts)
	}
}

func TestDoReturnsLastErrorWhenExhausted(t *testing.T) {
	lastErr := errors.New("last")
	err := Do(context.Background(), Config{
		MaxAttempts: 2,
		BaseDelay:   1 * time.Millisecond,
	}, func(int) error {
		return lastErr
	})
	if !errors.Is(err, lastErr) {
		t.Fatalf("expected lastErr, got %v", err)
	}
}

func TestTemporary(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"validation error", &b2.ValidationError{Field: "contentSha1", Reason: "bad"}, false},
		{"authorization error", &b2.AuthorizationError{Op: "b2_get_upload_url"}, false},
		{"api 400", &b2.APIError{Status: 400}, false},
		{"api 401", &b2.APIError{Status: 401}, false},
		{"api 429", &b2.APIError{Status: 429}, true},
		{"api 503", &b2.APIError{Status: 503}, true},
		{"wrapped api 500", fmt.Errorf("upload: %w", &b2.APIError{Status: 500}), true},
		{"transport error", errors.New("connection reset"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Temporary(tt.err); got != tt.expected {
				t.Errorf("Temporary(%v) = %v, expected %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestServerDelay(t *testing.T) {
	delay := ServerDelay(100 * time.Millisecond)

	t.Run("prefers retry-after", func(t *testing.T) {
		err := &b2.APIError{Status: 429, RetryAfter: 7 * time.Second}
		if got := delay(0, err); got != 7*time.Second {
			t.Errorf("expected 7s, got %v", got)
		}
	})

	t.Run("falls back to schedule", func(t *testing.T) {
		err := &b2.APIError{Status: 503}
		if got := delay(2, err); got != 400*time.Millisecond {
			t.Errorf("expected 400ms, got %v", got)
		}
	})

	t.Run("non-api errors use schedule", func(t *testing.T) {
		if got := delay(1, errors.New("boom")); got != 200*time.Millisecond {
			t.Errorf("expected 200ms, got %v", got)
		}
	})
}
