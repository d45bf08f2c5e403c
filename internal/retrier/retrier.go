package retrier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	minMaxAttempts = 1
	minBaseDelay   = time.Millisecond
	minFactor      = 1.0
	maxJitter      = 1.0
)

// Backoff strategies.
const (
	ExponentialBackoff BackoffStrategy = iota
	LinearBackoff
	FibonacciBackoff
)

var (
	// ErrInvalidMaxAttempts is returned when the max attempts parameter is invalid.
	ErrInvalidMaxAttempts = errors.New("max attempts must be at least 1")
	// ErrInvalidBaseDelay is returned when the base delay parameter is invalid.
	ErrInvalidBaseDelay = errors.New("base delay must be at least 1ms")
	// ErrInvalidFactor is returned when the factor parameter is invalid.
	ErrInvalidFactor = errors.New("factor must be at least 1.0")
	// ErrInvalidJitter is returned when the jitter parameter is invalid.
	ErrInvalidJitter = errors.New("jitter must be between 0 and 1")
)

// BackoffStrategy selects how the delay between attempts grows.
type BackoffStrategy int

// Temporary is implemented by errors that know whether a retry can help.
type Temporary interface {
	Temporary() bool
}

// IsTemporary reports whether err, or anything it wraps, says it is temporary.
func IsTemporary(err error) bool {
	var temp Temporary
	if errors.As(err, &temp) {
		return temp.Temporary()
	}
	return false
}

// Settings 重試參數
type Settings struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Factor      float64
	Jitter      float64
	Strategy    BackoffStrategy

	// Retryable overrides IsTemporary.
	Retryable func(error) bool
	// OnRetry is called before sleeping ahead of the next attempt.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Retrier runs an operation until it succeeds, fails permanently or runs
// out of attempts.
type Retrier struct {
	settings Settings

	fibMu  sync.Mutex
	fibSeq []time.Duration
}

// New validates s and returns a Retrier.
func New(s Settings) (*Retrier, error) {
	if s.MaxAttempts < minMaxAttempts {
		return nil, ErrInvalidMaxAttempts
	}
	if s.BaseDelay < minBaseDelay {
		return nil, ErrInvalidBaseDelay
	}
	if s.Factor == 0 {
		s.Factor = 2
	}
	if s.Factor < minFactor {
		return nil, ErrInvalidFactor
	}
	if s.Jitter < 0 || s.Jitter > maxJitter {
		return nil, ErrInvalidJitter
	}
	if s.MaxDelay < s.BaseDelay {
		s.MaxDelay = s.BaseDelay
	}
	if s.Retryable == nil {
		s.Retryable = IsTemporary
	}

	return &Retrier{
		settings: s,
		fibSeq:   []time.Duration{s.BaseDelay, s.BaseDelay},
	}, nil
}

// Run calls fn until it returns nil or a non-retryable error. The context
// cancels the wait between attempts; fn receives it for its own I/O.
func (r *Retrier) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < r.settings.MaxAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !r.settings.Retryable(err) {
			return err
		}
		if attempt == r.settings.MaxAttempts-1 {
			break
		}

		delay := r.Delay(attempt)
		if r.settings.OnRetry != nil {
			r.settings.OnRetry(attempt+1, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted: %w (last error: %v)", ctx.Err(), err)
		case <-timer.C:
		}
	}

	return fmt.Errorf("max retry attempts reached: %w", err)
}

// Delay returns the wait before attempt+1, jitter included.
func (r *Retrier) Delay(attempt int) time.Duration {
	s := r.settings
	var delay float64

	switch s.Strategy {
	case LinearBackoff:
		delay = float64(s.BaseDelay) * float64(attempt+1)
	case FibonacciBackoff:
		delay = float64(r.fibonacci(attempt))
	default:
		delay = float64(s.BaseDelay) * math.Pow(s.Factor, float64(attempt))
	}

	if delay > float64(s.MaxDelay) {
		delay = float64(s.MaxDelay)
	}
	if s.Jitter > 0 {
		delay += rand.Float64() * s.Jitter * delay
	}
	return time.Duration(delay)
}

func (r *Retrier) fibonacci(attempt int) time.Duration {
	r.fibMu.Lock()
	defer r.fibMu.Unlock()

	for len(r.fibSeq) <= attempt {
		n := len(r.fibSeq)
		next := r.fibSeq[n-1] + r.fibSeq[n-2]
		if next > r.settings.MaxDelay {
			next = r.settings.MaxDelay
		}
		r.fibSeq = append(r.fibSeq, next)
	}
	return r.fibSeq[attempt]
}
