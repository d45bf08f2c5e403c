package limited

import (
	"errors"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"
)

// ErrSetDropped is returned when ristretto rejects a write, usually because
// the item costs more than the store admits.
var ErrSetDropped = errors.New("limited store rejected the item")

// Store 以成本為上限的本地快取，用於可從原始資料重建的衍生值
type Store struct {
	cache      *ristretto.Cache
	keys       *keyTracker
	defaultTTL time.Duration
	logger     *zap.Logger
}

// New creates a Store that holds at most maxCost cost units.
func New(maxCost uint64, defaultTTL time.Duration, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	keys := newKeyTracker()
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     int64(maxCost),
		BufferItems: 64,
		Metrics:     true,
		// Callers supply cost in bytes; ristretto's per-item overhead is not counted.
		IgnoreInternalCost: true,
		OnEvict: func(item *ristretto.Item) {
			logger.Debug("Limited store evicted item", zap.Uint64("key_hash", item.Key), zap.Int64("cost", item.Cost))
		},
	})
	if err != nil {
		return nil, err
	}
	return &Store{cache: c, keys: keys, defaultTTL: defaultTTL, logger: logger}, nil
}

// Set stores value with the given cost. A ttl <= 0 uses the default. The
// write is visible once it returns.
func (s *Store) Set(key string, value any, cost int64, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if cost < 1 {
		cost = 1
	}
	if !s.cache.SetWithTTL(key, value, cost, ttl) {
		s.logger.Warn("Ristretto SetWithTTL failed", zap.String("key", key), zap.Int64("cost", cost))
		return ErrSetDropped
	}
	s.cache.Wait()
	s.keys.add(key)
	return nil
}

// Get returns the value for key if it is still admitted and unexpired.
func (s *Store) Get(key string) (any, bool) {
	v, ok := s.cache.Get(key)
	if !ok {
		s.keys.remove(key)
	}
	return v, ok
}

// Delete 刪除快取項目
func (s *Store) Delete(key string) {
	s.cache.Del(key)
	s.keys.remove(key)
}

// DeletePrefix drops every tracked key starting with prefix.
func (s *Store) DeletePrefix(prefix string) int {
	n := 0
	for _, key := range s.keys.withPrefix(prefix) {
		s.Delete(key)
		n++
	}
	return n
}

// Hits reports ristretto's hit counter.
func (s *Store) Hits() uint64 {
	return s.cache.Metrics.Hits()
}

// Close 關閉快取
func (s *Store) Close() {
	s.cache.Close()
}

// keyTracker remembers keys written through the store, ristretto only keeps hashes.
type keyTracker struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newKeyTracker() *keyTracker {
	return &keyTracker{keys: make(map[string]struct{})}
}

func (k *keyTracker) add(key string) {
	k.mu.Lock()
	k.keys[key] = struct{}{}
	k.mu.Unlock()
}

func (k *keyTracker) remove(key string) {
	k.mu.Lock()
	delete(k.keys, key)
	k.mu.Unlock()
}

func (k *keyTracker) withPrefix(prefix string) []string {
	k.mu.Lock()
	defer k.mu.Unlock()
	var out []string
	for key := range k.keys {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			out = append(out, key)
		}
	}
	return out
}
