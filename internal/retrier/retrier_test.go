package retrier

import (
	"context"
	"errors"
	"testing"
	"time"
)

type tempErr bool

func (e tempErr) Error() string   { return "temp" }
func (e tempErr) Temporary() bool { return bool(e) }

func newTestRetrier(t *testing.T, attempts int) *Retrier {
	t.Helper()
	r, err := New(Settings{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestRunRetriesTemporaryErrors(t *testing.T) {
	r := newTestRetrier(t, 3)
	calls := 0
	err := r.Run(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return tempErr(true)
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("Run = %v after %d calls", err, calls)
	}
}

func TestRunStopsOnPermanentError(t *testing.T) {
	r := newTestRetrier(t, 5)
	calls := 0
	err := r.Run(context.Background(), func(context.Context) error {
		calls++
		return tempErr(false)
	})
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	var te tempErr
	if !errors.As(err, &te) {
		t.Fatalf("err = %v", err)
	}
}

func TestRunExhaustsAttempts(t *testing.T) {
	var retries []int
	r, _ := New(Settings{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		OnRetry:     func(attempt int, _ time.Duration, _ error) { retries = append(retries, attempt) },
	})
	calls := 0
	err := r.Run(context.Background(), func(context.Context) error {
		calls++
		return tempErr(true)
	})
	if calls != 3 || err == nil {
		t.Fatalf("calls = %d, err = %v", calls, err)
	}
	if len(retries) != 2 || retries[0] != 1 || retries[1] != 2 {
		t.Errorf("OnRetry attempts = %v", retries)
	}
}

func TestRunHonoursContext(t *testing.T) {
	r, _ := New(Settings{MaxAttempts: 5, BaseDelay: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Run(ctx, func(context.Context) error { return tempErr(true) })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestDelayStrategies(t *testing.T) {
	tests := []struct {
		name     string
		strategy BackoffStrategy
		want     []time.Duration
	}{
		{"exponential", ExponentialBackoff, []time.Duration{10, 20, 40, 50}},
		{"linear", LinearBackoff, []time.Duration{10, 20, 30, 40}},
		{"fibonacci", FibonacciBackoff, []time.Duration{10, 10, 20, 30}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(Settings{
				MaxAttempts: 5,
				BaseDelay:   10 * time.Millisecond,
				MaxDelay:    50 * time.Millisecond,
				Strategy:    tt.strategy,
			})
			if err != nil {
				t.Fatal(err)
			}
			for i, want := range tt.want {
				if got := r.Delay(i); got != want*time.Millisecond {
					t.Errorf("Delay(%d) = %v, want %v", i, got, want*time.Millisecond)
				}
			}
		})
	}
}

func TestNewValidates(t *testing.T) {
	tests := []Settings{
		{MaxAttempts: 0, BaseDelay: time.Millisecond},
		{MaxAttempts: 1, BaseDelay: 0},
		{MaxAttempts: 1, BaseDelay: time.Millisecond, Factor: 0.5},
		{MaxAttempts: 1, BaseDelay: time.Millisecond, Jitter: 2},
	}
	for i, s := range tests {
		if _, err := New(s); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}
