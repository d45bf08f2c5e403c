package schedule

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"goflare.io/pace/internal/cache/flight"
	"goflare.io/pace/internal/models"
	"goflare.io/pace/internal/provider/espn"
)

// ScoreboardFetcher downloads one week of events; *espn.Client satisfies it.
type ScoreboardFetcher interface {
	FetchScoreboard(ctx context.Context, week int) (*espn.ScoreboardPayload, error)
}

// Resolver counts completed games per team from weekly scoreboards.
type Resolver struct {
	cache   *flight.Cache
	fetcher ScoreboardFetcher
	ttl     time.Duration
	weeks   int
	logger  *zap.Logger
}

// NewResolver creates a Resolver. weeks is the number of regular season weeks.
func NewResolver(cache *flight.Cache, fetcher ScoreboardFetcher, ttl time.Duration, weeks int, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		cache:   cache,
		fetcher: fetcher,
		ttl:     ttl,
		weeks:   weeks,
		logger:  logger.Named("schedule"),
	}
}

// WeekKey is the cache key for one week's aggregated scoreboard.
func WeekKey(week int) string {
	return "scoreboard:week:" + strconv.Itoa(week)
}

func (r *Resolver) validate(week int) error {
	if week < 1 || (r.weeks > 0 && week > r.weeks) {
		return fmt.Errorf("%w: %d (season has %d weeks)", models.ErrInvalidWeek, week, r.weeks)
	}
	return nil
}

// Week returns the completed-game count per team for a single week.
func (r *Resolver) Week(ctx context.Context, week int) (models.Scoreboard, error) {
	if err := r.validate(week); err != nil {
		return nil, err
	}
	return flight.GetOrFetch(ctx, r.cache, WeekKey(week), r.ttl, func(ctx context.Context) (models.Scoreboard, error) {
		payload, err := r.fetcher.FetchScoreboard(ctx, week)
		if err != nil {
			return nil, err
		}
		return Aggregate(payload), nil
	})
}

// Scoreboard sums the weekly counts for weeks 1..throughWeek. Weeks are
// fetched concurrently; the first failure fails the whole call.
func (r *Resolver) Scoreboard(ctx context.Context, throughWeek int) (models.Scoreboard, error) {
	if err := r.validate(throughWeek); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	total := make(models.Scoreboard)

	g, gctx := errgroup.WithContext(ctx)
	for week := 1; week <= throughWeek; week++ {
		g.Go(func() error {
			counts, err := r.Week(gctx, week)
			if err != nil {
				return fmt.Errorf("week %d: %w", week, err)
			}
			mu.Lock()
			defer mu.Unlock()
			for team, n := range counts {
				total[team] += n
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.Debug("Resolved scoreboard", zap.Int("through_week", throughWeek), zap.Int("teams", len(total)))
	return total, nil
}

// GamesCompleted returns how many games team has finished in weeks 1..throughWeek.
func (r *Resolver) GamesCompleted(ctx context.Context, team string, throughWeek int) (int, error) {
	board, err := r.Scoreboard(ctx, throughWeek)
	if err != nil {
		return 0, err
	}
	return board[normalizeTeam(team)], nil
}

// Aggregate counts one completed game for both sides of every final event.
// Teams whose game is not final are present with 0.
func Aggregate(payload *espn.ScoreboardPayload) models.Scoreboard {
	board := make(models.Scoreboard)
	if payload == nil {
		return board
	}
	for _, event := range payload.Events {
		final := event.Final()
		for _, c := range event.Competitors() {
			team := normalizeTeam(c.Team.Abbreviation)
			if team == "" {
				continue
			}
			if final {
				board[team]++
			} else if _, ok := board[team]; !ok {
				board[team] = 0
			}
		}
	}
	return board
}

func normalizeTeam(team string) string {
	return strings.ToUpper(strings.TrimSpace(team))
}
