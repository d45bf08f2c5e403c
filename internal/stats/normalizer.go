package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"goflare.io/pace/internal/cache/flight"
	"goflare.io/pace/internal/models"
	"goflare.io/pace/internal/provider/espn"
)

const (
	// CategoryName is the split category holding season totals.
	CategoryName = "split"
	// PreferredSplit is the label of the season-to-date row.
	PreferredSplit = "All Splits"
)

// SplitsFetcher downloads the raw splits document; *espn.Client satisfies it.
type SplitsFetcher interface {
	FetchSplits(ctx context.Context, athleteID string) (*espn.SplitsPayload, error)
}

// Normalizer turns provider splits into flat stat records, through the cache.
type Normalizer struct {
	cache      *flight.Cache
	fetcher    SplitsFetcher
	defaultTTL time.Duration
	logger     *zap.Logger
}

// NewNormalizer creates a Normalizer. defaultTTL applies when a caller passes ttl <= 0.
func NewNormalizer(cache *flight.Cache, fetcher SplitsFetcher, defaultTTL time.Duration, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{
		cache:      cache,
		fetcher:    fetcher,
		defaultTTL: defaultTTL,
		logger:     logger.Named("stats"),
	}
}

// Key is the cache key for an athlete's stats.
func Key(espnID string) string {
	return "player:" + espnID
}

// FetchPlayerStats returns the stat record for an athlete. A payload with
// no usable split is cached like any other result and reported as
// models.ErrStatsNotFound.
func (n *Normalizer) FetchPlayerStats(ctx context.Context, espnID string, ttl time.Duration) (models.PlayerStats, error) {
	if ttl <= 0 {
		ttl = n.defaultTTL
	}
	ps, err := flight.GetOrFetch(ctx, n.cache, Key(espnID), ttl, func(ctx context.Context) (models.PlayerStats, error) {
		payload, err := n.fetcher.FetchSplits(ctx, espnID)
		if err != nil {
			return models.PlayerStats{}, err
		}
		ps := Normalize(espnID, payload)
		switch {
		case !ps.Found:
			n.logger.Debug("No stat split found", zap.String("player_id", espnID))
		case ps.Fallback:
			n.logger.Info("Preferred split missing, using fallback",
				zap.String("player_id", espnID), zap.String("split", ps.Split))
		}
		return ps, nil
	})
	if err != nil {
		return models.PlayerStats{}, fmt.Errorf("fetch stats for player %s: %w", espnID, err)
	}
	if !ps.Found {
		return ps, fmt.Errorf("player %s: %w", espnID, models.ErrStatsNotFound)
	}
	return ps, nil
}

// Normalize zips the stat names with the values of the preferred split of
// the season category, falling back to the category's first split.
func Normalize(playerID string, payload *espn.SplitsPayload) models.PlayerStats {
	ps := models.PlayerStats{PlayerID: playerID, Stats: models.StatRecord{}}
	if payload == nil {
		return ps
	}

	var category *espn.SplitCategory
	for i := range payload.SplitCategories {
		if payload.SplitCategories[i].Name == CategoryName {
			category = &payload.SplitCategories[i]
			break
		}
	}
	if category == nil || len(category.Splits) == 0 {
		return ps
	}

	split := &category.Splits[0]
	ps.Fallback = true
	for i := range category.Splits {
		if category.Splits[i].DisplayName == PreferredSplit {
			split = &category.Splits[i]
			ps.Fallback = false
			break
		}
	}

	for i, name := range payload.Names {
		if i >= len(split.Stats) {
			break
		}
		ps.Stats[name] = CoerceNumber(split.Stats[i])
	}
	ps.Split = split.DisplayName
	ps.Found = true
	return ps
}

// CoerceNumber converts a provider value to a number. Thousands separators
// are stripped; anything that still does not parse becomes 0.
func CoerceNumber(raw any) float64 {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		f, _ = v.Float64()
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
