package models

import (
	"time"
)

// Entry represents a cache entry.
type Entry struct {
	Key      string
	Value    any
	StoredAt time.Time
}

// NewEntry creates a new Entry stored at the given instant.
func NewEntry(key string, value any, storedAt time.Time) *Entry {
	return &Entry{
		Key:      key,
		Value:    value,
		StoredAt: storedAt,
	}
}

// Age reports how long ago the entry was stored.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.StoredAt)
}

// IsFresh checks the entry against a caller supplied TTL. The TTL is not
// stored on the entry, so the same entry can be fresh for one caller and
// stale for another.
func (e *Entry) IsFresh(now time.Time, ttl time.Duration) bool {
	return e.Age(now) < ttl
}
