package config

import (
	"errors"
	"runtime"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"goflare.io/pace/pkg/serialization"
)

// Config 服務的完整配置
type Config struct {
	ShardCount   uint64
	FetchTimeout time.Duration

	TTL        TTLConfig
	Season     SeasonConfig
	Prewarm    PrewarmConfig
	Upstream   UpstreamConfig
	Resilience ResilienceConfig
	Response   ResponseCacheConfig
	Store      StoreConfig
	HTTP       HTTPConfig
	Logger     *zap.Logger
}

// TTLConfig holds the default TTL for each data class. The cache itself
// takes the TTL per call, these are only the values callers pass.
type TTLConfig struct {
	PlayerStats time.Duration
	Scoreboard  time.Duration
	Roster      time.Duration
	State       time.Duration
	Prewarm     time.Duration
}

// SeasonConfig 賽季相關常數
type SeasonConfig struct {
	TotalGames int
	Weeks      int
	Year       int // 0 lets the provider pick the current season
}

// PrewarmConfig 預熱排程配置
type PrewarmConfig struct {
	Enabled       bool
	Interval      time.Duration
	BatchSize     int
	BatchDelay    time.Duration
	NotFoundReset time.Duration
	ExpectedItems uint
	FalsePositive float64
	RosterFile    string
}

// UpstreamConfig 第三方資料來源
type UpstreamConfig struct {
	ESPNSplitsURL     string
	ESPNScoreboardURL string
	SleeperURL        string
	UserAgent         string
	HTTPTimeout       time.Duration
	RequestsPerSecond float64
	Burst             int
}

// ResilienceConfig 用於設置重試和熔斷器
type ResilienceConfig struct {
	CircuitBreaker gobreaker.Settings
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Factor         float64
	Jitter         float64
}

// ResponseCacheConfig sizes the encoded response store.
type ResponseCacheConfig struct {
	MaxBytes uint64
	TTL      time.Duration
}

// StoreConfig selects the parlay record store.
type StoreConfig struct {
	RedisURL      string
	KeyPrefix     string
	Serialization string
}

// HTTPConfig 對外 HTTP 服務
type HTTPConfig struct {
	Port           int
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// Option 函數類型
type Option func(*Config) error

var (
	ErrShardCountZero   = errors.New("shard count must be at least 1")
	ErrBatchSizeInvalid = errors.New("prewarm batch size must be at least 1")
	ErrSeasonGames      = errors.New("total season games must be at least 1")
	ErrTTLInvalid       = errors.New("ttl must be greater than 0")
	ErrIntervalInvalid  = errors.New("prewarm interval must be greater than 0")
	ErrBatchDelay       = errors.New("prewarm batch delay must not be negative")
	ErrSeasonWeeks      = errors.New("season weeks must be at least 1")
)

// NewConfig 創建一個默認的 Config，允許覆蓋特定參數
func NewConfig(options ...Option) (*Config, error) {
	shardCount := uint64(runtime.NumCPU() * 4)
	if shardCount == 0 {
		shardCount = 1
	}

	cfg := &Config{
		ShardCount:   shardCount,
		FetchTimeout: 30 * time.Second,
		TTL: TTLConfig{
			PlayerStats: 10 * time.Minute,
			Scoreboard:  5 * time.Minute,
			Roster:      6 * time.Hour,
			State:       10 * time.Minute,
			Prewarm:     30 * time.Minute,
		},
		Season: SeasonConfig{
			TotalGames: 17,
			Weeks:      18,
		},
		Prewarm: PrewarmConfig{
			Enabled:       true,
			Interval:      10 * time.Minute,
			BatchSize:     25,
			BatchDelay:    2 * time.Second,
			NotFoundReset: 6 * time.Hour,
			ExpectedItems: 5000,
			FalsePositive: 0.01,
		},
		Upstream: UpstreamConfig{
			ESPNSplitsURL:     "https://site.web.api.espn.com/apis/common/v3/sports/football/nfl/athletes",
			ESPNScoreboardURL: "https://site.api.espn.com/apis/site/v2/sports/football/nfl/scoreboard",
			SleeperURL:        "https://api.sleeper.app/v1",
			UserAgent:         "Mozilla/5.0 (compatible; PaceBot/1.0)",
			HTTPTimeout:       15 * time.Second,
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Resilience: ResilienceConfig{
			CircuitBreaker: gobreaker.Settings{
				MaxRequests: 3,
				Interval:    60 * time.Second,
				Timeout:     30 * time.Second,
				ReadyToTrip: func(counts gobreaker.Counts) bool {
					return counts.ConsecutiveFailures > 5
				},
			},
			MaxAttempts: 3,
			BaseDelay:   200 * time.Millisecond,
			MaxDelay:    2 * time.Second,
			Factor:      2,
			Jitter:      0.1,
		},
		Response: ResponseCacheConfig{
			MaxBytes: 64 << 20,
			TTL:      5 * time.Minute,
		},
		Store: StoreConfig{
			KeyPrefix:     "pace",
			Serialization: serialization.JSONType,
		},
		HTTP: HTTPConfig{
			Port:           8080,
			AllowedOrigins: []string{"*"},
			RequestTimeout: 60 * time.Second,
		},
		Logger: zap.NewNop(),
	}

	// 應用所有選項
	for _, option := range options {
		if err := option(cfg); err != nil {
			return nil, err
		}
	}

	// 最終檢查
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the values the components rely on.
func (c *Config) Validate() error {
	if c.ShardCount == 0 {
		return ErrShardCountZero
	}
	if c.Prewarm.BatchSize < 1 {
		return ErrBatchSizeInvalid
	}
	if c.Prewarm.Interval <= 0 {
		return ErrIntervalInvalid
	}
	if c.Prewarm.BatchDelay < 0 {
		return ErrBatchDelay
	}
	if c.Season.TotalGames < 1 {
		return ErrSeasonGames
	}
	if c.Season.Weeks < 1 {
		return ErrSeasonWeeks
	}
	for _, ttl := range []time.Duration{c.TTL.PlayerStats, c.TTL.Scoreboard, c.TTL.Roster, c.TTL.State, c.TTL.Prewarm} {
		if ttl <= 0 {
			return ErrTTLInvalid
		}
	}
	return nil
}

// WithLogger 設置自定義 Logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) error {
		if logger != nil {
			c.Logger = logger
		}
		return nil
	}
}

// WithShardCount 設置分片數量
func WithShardCount(count uint64) Option {
	return func(c *Config) error {
		if count == 0 {
			return ErrShardCountZero
		}
		c.ShardCount = count
		return nil
	}
}

// WithTTLs overrides the per data class TTLs. Zero fields keep their default.
func WithTTLs(ttl TTLConfig) Option {
	return func(c *Config) error {
		if ttl.PlayerStats > 0 {
			c.TTL.PlayerStats = ttl.PlayerStats
		}
		if ttl.Scoreboard > 0 {
			c.TTL.Scoreboard = ttl.Scoreboard
		}
		if ttl.Roster > 0 {
			c.TTL.Roster = ttl.Roster
		}
		if ttl.State > 0 {
			c.TTL.State = ttl.State
		}
		if ttl.Prewarm > 0 {
			c.TTL.Prewarm = ttl.Prewarm
		}
		return nil
	}
}

// WithFetchTimeout bounds how long a single upstream fetch may hold its key.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return errors.New("fetch timeout must be greater than 0")
		}
		c.FetchTimeout = d
		return nil
	}
}

// WithPrewarm 設置預熱參數
func WithPrewarm(interval time.Duration, batchSize int, batchDelay time.Duration) Option {
	return func(c *Config) error {
		if batchSize < 1 {
			return ErrBatchSizeInvalid
		}
		if interval <= 0 {
			return ErrIntervalInvalid
		}
		if batchDelay < 0 {
			return ErrBatchDelay
		}
		c.Prewarm.Interval = interval
		c.Prewarm.BatchSize = batchSize
		c.Prewarm.BatchDelay = batchDelay
		return nil
	}
}

// WithPrewarmEnabled toggles the background scheduler.
func WithPrewarmEnabled(enabled bool) Option {
	return func(c *Config) error {
		c.Prewarm.Enabled = enabled
		return nil
	}
}

// WithRosterFile points the identifier mapping at a JSON file.
func WithRosterFile(path string) Option {
	return func(c *Config) error {
		c.Prewarm.RosterFile = path
		return nil
	}
}

// WithSeason 設置賽季常數
func WithSeason(totalGames, weeks, year int) Option {
	return func(c *Config) error {
		if totalGames < 1 {
			return ErrSeasonGames
		}
		c.Season.TotalGames = totalGames
		if weeks > 0 {
			c.Season.Weeks = weeks
		}
		c.Season.Year = year
		return nil
	}
}

// WithUpstreamURLs points the provider clients somewhere else, mostly for tests.
func WithUpstreamURLs(splits, scoreboard, sleeper string) Option {
	return func(c *Config) error {
		if splits != "" {
			c.Upstream.ESPNSplitsURL = splits
		}
		if scoreboard != "" {
			c.Upstream.ESPNScoreboardURL = scoreboard
		}
		if sleeper != "" {
			c.Upstream.SleeperURL = sleeper
		}
		return nil
	}
}

// WithRateLimit 設置上游請求速率
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Config) error {
		if rps <= 0 || burst < 1 {
			return errors.New("rate limit must be positive")
		}
		c.Upstream.RequestsPerSecond = rps
		c.Upstream.Burst = burst
		return nil
	}
}

// WithRetry tunes the upstream retrier.
func WithRetry(maxAttempts int, baseDelay, maxDelay time.Duration) Option {
	return func(c *Config) error {
		if maxAttempts < 1 {
			return errors.New("max attempts must be at least 1")
		}
		c.Resilience.MaxAttempts = maxAttempts
		c.Resilience.BaseDelay = baseDelay
		c.Resilience.MaxDelay = maxDelay
		return nil
	}
}

// WithRedis selects the Redis backed parlay store.
func WithRedis(url string) Option {
	return func(c *Config) error {
		c.Store.RedisURL = url
		return nil
	}
}

// WithSerialization 設置 Redis 儲存的序列化方式
func WithSerialization(name string) Option {
	return func(c *Config) error {
		if _, err := serialization.For(name); err != nil {
			return err
		}
		c.Store.Serialization = name
		return nil
	}
}
