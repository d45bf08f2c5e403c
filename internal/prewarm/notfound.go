package prewarm

import (
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/zap"
)

// notFoundFilter remembers players whose payload had no usable split so
// later passes skip them. Bloom hits are confirmed against the exact set, so
// a false positive never skips a player.
type notFoundFilter struct {
	mu        sync.Mutex
	filter    *bloom.BloomFilter
	members   map[string]struct{}
	expected  uint
	fpRate    float64
	added     uint
	lastReset time.Time
}

func newNotFoundFilter(expected uint, fpRate float64, now time.Time) *notFoundFilter {
	if expected == 0 {
		expected = 5000
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = 0.01
	}
	return &notFoundFilter{
		filter:    bloom.NewWithEstimates(expected, fpRate),
		members:   make(map[string]struct{}),
		expected:  expected,
		fpRate:    fpRate,
		lastReset: now,
	}
}

func (f *notFoundFilter) add(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.members[id]; ok {
		return
	}
	f.filter.AddString(id)
	f.members[id] = struct{}{}
	f.added++
}

func (f *notFoundFilter) test(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.filter.TestString(id) {
		return false
	}
	_, ok := f.members[id]
	return ok
}

// maybeReset starts a fresh filter once every period, so players who
// start producing stats get warmed again.
func (f *notFoundFilter) maybeReset(now time.Time, period time.Duration, logger *zap.Logger) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if period <= 0 || now.Sub(f.lastReset) < period {
		return
	}
	if f.added > 0 {
		logger.Info("Resetting not-found filter", zap.Uint("suppressed", f.added))
	}
	f.filter = bloom.NewWithEstimates(f.expected, f.fpRate)
	f.members = make(map[string]struct{})
	f.added = 0
	f.lastReset = now
}
