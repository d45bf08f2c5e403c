package models

import "go.uber.org/atomic"

// Metrics 定義快取統計
type Metrics struct {
	Hits            atomic.Int64
	Misses          atomic.Int64
	StaleServed     atomic.Int64
	Coalesced       atomic.Int64
	Refreshes       atomic.Int64
	RefreshFailures atomic.Int64
	FetchFailures   atomic.Int64
}

// NewMetrics 創建新的 Metrics 實例
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Snapshot copies the counters into a plain value.
func (m *Metrics) Snapshot() CacheStats {
	return CacheStats{
		Hits:            m.Hits.Load(),
		Misses:          m.Misses.Load(),
		StaleServed:     m.StaleServed.Load(),
		Coalesced:       m.Coalesced.Load(),
		Refreshes:       m.Refreshes.Load(),
		RefreshFailures: m.RefreshFailures.Load(),
		FetchFailures:   m.FetchFailures.Load(),
	}
}

// CacheStats is a point-in-time copy of Metrics.
type CacheStats struct {
	Hits            int64 `json:"hits"`
	Misses          int64 `json:"misses"`
	StaleServed     int64 `json:"staleServed"`
	Coalesced       int64 `json:"coalesced"`
	Refreshes       int64 `json:"refreshes"`
	RefreshFailures int64 `json:"refreshFailures"`
	FetchFailures   int64 `json:"fetchFailures"`
	Items           int   `json:"items"`
}
