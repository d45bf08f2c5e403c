package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// FromEnv builds options from the process environment. A .env file in the
// working directory is loaded first when present.
func FromEnv() []Option {
	_ = godotenv.Load()

	return []Option{
		func(c *Config) error {
			c.HTTP.Port = getEnvInt("PACE_PORT", c.HTTP.Port)
			c.HTTP.AllowedOrigins = getEnvList("PACE_CORS_ORIGINS", c.HTTP.AllowedOrigins)

			c.TTL.PlayerStats = getEnvDuration("PACE_PLAYER_TTL", c.TTL.PlayerStats)
			c.TTL.Scoreboard = getEnvDuration("PACE_SCOREBOARD_TTL", c.TTL.Scoreboard)
			c.TTL.Roster = getEnvDuration("PACE_ROSTER_TTL", c.TTL.Roster)
			c.TTL.State = getEnvDuration("PACE_STATE_TTL", c.TTL.State)
			c.TTL.Prewarm = getEnvDuration("PACE_PREWARM_TTL", c.TTL.Prewarm)
			c.FetchTimeout = getEnvDuration("PACE_FETCH_TIMEOUT", c.FetchTimeout)

			c.Prewarm.Enabled = getEnvBool("PACE_PREWARM_ENABLED", c.Prewarm.Enabled)
			c.Prewarm.Interval = getEnvDuration("PACE_PREWARM_INTERVAL", c.Prewarm.Interval)
			c.Prewarm.BatchSize = getEnvInt("PACE_PREWARM_BATCH_SIZE", c.Prewarm.BatchSize)
			c.Prewarm.BatchDelay = getEnvDuration("PACE_PREWARM_BATCH_DELAY", c.Prewarm.BatchDelay)
			c.Prewarm.NotFoundReset = getEnvDuration("PACE_NOTFOUND_RESET", c.Prewarm.NotFoundReset)
			c.Prewarm.RosterFile = getEnv("PACE_ROSTER_FILE", c.Prewarm.RosterFile)

			c.Season.TotalGames = getEnvInt("PACE_SEASON_GAMES", c.Season.TotalGames)
			c.Season.Weeks = getEnvInt("PACE_SEASON_WEEKS", c.Season.Weeks)
			c.Season.Year = getEnvInt("PACE_SEASON", c.Season.Year)

			c.Upstream.ESPNSplitsURL = getEnv("PACE_ESPN_SPLITS_URL", c.Upstream.ESPNSplitsURL)
			c.Upstream.ESPNScoreboardURL = getEnv("PACE_ESPN_SCOREBOARD_URL", c.Upstream.ESPNScoreboardURL)
			c.Upstream.SleeperURL = getEnv("PACE_SLEEPER_URL", c.Upstream.SleeperURL)
			c.Upstream.HTTPTimeout = getEnvDuration("PACE_HTTP_TIMEOUT", c.Upstream.HTTPTimeout)
			c.Upstream.RequestsPerSecond = getEnvFloat("PACE_UPSTREAM_RPS", c.Upstream.RequestsPerSecond)
			c.Upstream.Burst = getEnvInt("PACE_UPSTREAM_BURST", c.Upstream.Burst)

			c.Response.MaxBytes = uint64(getEnvInt("PACE_RESPONSE_CACHE_BYTES", int(c.Response.MaxBytes)))
			c.Store.RedisURL = getEnv("REDIS_URL", c.Store.RedisURL)
			c.Store.KeyPrefix = getEnv("PACE_REDIS_PREFIX", c.Store.KeyPrefix)
			c.Store.Serialization = getEnv("PACE_STORE_CODEC", c.Store.Serialization)
			return nil
		},
	}
}

// LogLevel returns PACE_LOG_LEVEL, defaulting to info.
func LogLevel() string {
	return getEnv("PACE_LOG_LEVEL", "info")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
