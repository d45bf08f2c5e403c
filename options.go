package pace

import (
	"time"

	"go.uber.org/zap"

	"goflare.io/pace/internal/config"
)

// Option 定義初始化 Pace 的選項
type Option = config.Option

// TTLs overrides the per data class TTLs; zero fields keep their defaults.
type TTLs = config.TTLConfig

// FromEnv returns the options read from the environment and an optional .env file.
func FromEnv() []Option {
	return config.FromEnv()
}

// WithLogger 設置自定義的日誌記錄器
func WithLogger(logger *zap.Logger) Option {
	return config.WithLogger(logger)
}

// WithShardCount 設置快取分片數量
func WithShardCount(shardCount uint64) Option {
	return config.WithShardCount(shardCount)
}

// WithTTLs 設置各類資料的過期時間
func WithTTLs(ttl TTLs) Option {
	return config.WithTTLs(ttl)
}

// WithFetchTimeout bounds a single upstream fetch.
func WithFetchTimeout(d time.Duration) Option {
	return config.WithFetchTimeout(d)
}

// WithPrewarm sets the pre-warm interval and batching.
func WithPrewarm(interval time.Duration, batchSize int, batchDelay time.Duration) Option {
	return config.WithPrewarm(interval, batchSize, batchDelay)
}

// WithPrewarmEnabled toggles StartPrewarm.
func WithPrewarmEnabled(enabled bool) Option {
	return config.WithPrewarmEnabled(enabled)
}

// WithRosterFile loads the identifier mapping from a JSON file instead of the
// embedded table.
func WithRosterFile(path string) Option {
	return config.WithRosterFile(path)
}

// WithSeason 設置賽季場次、週數與年份
func WithSeason(totalGames, weeks, year int) Option {
	return config.WithSeason(totalGames, weeks, year)
}

// WithUpstreamURLs 設置上游資料來源位址
func WithUpstreamURLs(splits, scoreboard, sleeper string) Option {
	return config.WithUpstreamURLs(splits, scoreboard, sleeper)
}

// WithRateLimit 設置上游請求速率
func WithRateLimit(rps float64, burst int) Option {
	return config.WithRateLimit(rps, burst)
}

// WithRetry tunes upstream retries.
func WithRetry(maxAttempts int, baseDelay, maxDelay time.Duration) Option {
	return config.WithRetry(maxAttempts, baseDelay, maxDelay)
}

// WithRedis keeps parlays in Redis instead of process memory.
func WithRedis(url string) Option {
	return config.WithRedis(url)
}

// WithSerialization 設置序列化方式 ("json" 或 "gob")
func WithSerialization(serializer string) Option {
	return config.WithSerialization(serializer)
}
