package pace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"goflare.io/pace/internal/cache/flight"
	"goflare.io/pace/internal/cache/limited"
	"goflare.io/pace/internal/config"
	"goflare.io/pace/internal/models"
	"goflare.io/pace/internal/prewarm"
	"goflare.io/pace/internal/projection"
	"goflare.io/pace/internal/provider/espn"
	"goflare.io/pace/internal/provider/sleeper"
	"goflare.io/pace/internal/roster"
	"goflare.io/pace/internal/schedule"
	"goflare.io/pace/internal/stats"
	"goflare.io/pace/internal/store"
	"goflare.io/pace/internal/upstream"
	"goflare.io/pace/pkg/serialization"
)

const (
	rosterKey = "roster:nfl"
	stateKey  = "state:nfl"

	indexPrefix = "players@"

	// DefaultSearchLimit and MaxSearchLimit bound SearchPlayers results.
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100

	parlayConcurrency = 4
)

type (
	PlayerStats    = models.PlayerStats
	StatRecord     = models.StatRecord
	StatType       = models.StatType
	Scoreboard     = models.Scoreboard
	PaceProjection = models.PaceProjection
	LegProjection  = models.LegProjection
	Parlay         = models.Parlay
	Leg            = models.Leg
	Player         = models.Player
	NFLState       = models.NFLState
	CacheStats     = models.CacheStats
	PrewarmSummary = prewarm.RunSummary
)

// Pace 組合快取、上游資料來源、投影引擎與預熱排程
type Pace struct {
	cfg      *config.Config
	logger   *zap.Logger
	cache    *flight.Cache
	sleeper  *sleeper.Client
	stats    *stats.Normalizer
	schedule *schedule.Resolver
	mapping  *roster.Mapping
	index    *limited.Store
	parlays  store.Store
	prewarm  *prewarm.Scheduler
}

// New 初始化 Pace，接受多個配置選項
func New(ctx context.Context, opts ...Option) (*Pace, error) {
	cfg, err := config.NewConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create config: %w", err)
	}
	logger := cfg.Logger

	mapping, err := roster.Load(cfg.Prewarm.RosterFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster mapping: %w", err)
	}

	espnHTTP, err := upstream.New(upstream.SettingsFromConfig(espn.Provider, cfg))
	if err != nil {
		return nil, err
	}
	sleeperHTTP, err := upstream.New(upstream.SettingsFromConfig(sleeper.Provider, cfg))
	if err != nil {
		return nil, err
	}
	espnClient := espn.NewClient(espnHTTP, cfg.Upstream.ESPNSplitsURL, cfg.Upstream.ESPNScoreboardURL, cfg.Season.Year, logger)

	cache := flight.New(
		flight.WithLogger(logger),
		flight.WithShardCount(cfg.ShardCount),
		flight.WithFetchTimeout(cfg.FetchTimeout),
	)

	index, err := limited.New(cfg.Response.MaxBytes, cfg.Response.TTL, logger.Named("index"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize player index store: %w", err)
	}

	parlays, err := openStore(ctx, cfg)
	if err != nil {
		index.Close()
		return nil, err
	}

	normalizer := stats.NewNormalizer(cache, espnClient, cfg.TTL.PlayerStats, logger)
	p := &Pace{
		cfg:      cfg,
		logger:   logger,
		cache:    cache,
		sleeper:  sleeper.NewClient(sleeperHTTP, cfg.Upstream.SleeperURL, logger),
		stats:    normalizer,
		schedule: schedule.NewResolver(cache, espnClient, cfg.TTL.Scoreboard, cfg.Season.Weeks, logger),
		mapping:  mapping,
		index:    index,
		parlays:  parlays,
		prewarm: prewarm.New(normalizer, mapping, prewarm.Settings{
			Interval:      cfg.Prewarm.Interval,
			BatchSize:     cfg.Prewarm.BatchSize,
			BatchDelay:    cfg.Prewarm.BatchDelay,
			TTL:           cfg.TTL.Prewarm,
			NotFoundReset: cfg.Prewarm.NotFoundReset,
			ExpectedItems: cfg.Prewarm.ExpectedItems,
			FalsePositive: cfg.Prewarm.FalsePositive,
		}, prewarm.WithLogger(logger)),
	}

	logger.Info("Pace initialized",
		zap.Int("tracked_players", mapping.Len()),
		zap.Uint64("shards", cfg.ShardCount),
		zap.Bool("redis_store", cfg.Store.RedisURL != ""))
	return p, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Store.RedisURL == "" {
		return store.NewMemoryStore(cfg.Logger), nil
	}
	codec, err := serialization.For(cfg.Store.Serialization)
	if err != nil {
		return nil, err
	}
	s, err := store.NewRedisStoreFromURL(ctx, cfg.Store.RedisURL, cfg.Store.KeyPrefix, codec, cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open parlay store: %w", err)
	}
	return s, nil
}

// Config returns the resolved configuration.
func (p *Pace) Config() config.Config {
	return *p.cfg
}

// Parlays returns the parlay record store.
func (p *Pace) Parlays() store.Store {
	return p.parlays
}

// PlayerStats returns the season stat record for an ESPN athlete id.
func (p *Pace) PlayerStats(ctx context.Context, espnID string) (PlayerStats, error) {
	return p.stats.FetchPlayerStats(ctx, espnID, p.cfg.TTL.PlayerStats)
}

// Scoreboard returns completed games per team over weeks 1..throughWeek.
func (p *Pace) Scoreboard(ctx context.Context, throughWeek int) (Scoreboard, error) {
	return p.schedule.Scoreboard(ctx, throughWeek)
}

// GamesCompleted returns how many games team finished in weeks 1..throughWeek.
func (p *Pace) GamesCompleted(ctx context.Context, team string, throughWeek int) (int, error) {
	return p.schedule.GamesCompleted(ctx, team, throughWeek)
}

// Roster returns the bulk roster payload as the provider sent it.
func (p *Pace) Roster(ctx context.Context) (json.RawMessage, error) {
	return flight.GetOrFetch[json.RawMessage](ctx, p.cache, rosterKey, p.cfg.TTL.Roster, p.sleeper.Players)
}

// State returns the provider's current season and week.
func (p *Pace) State(ctx context.Context) (NFLState, error) {
	return flight.GetOrFetch[NFLState](ctx, p.cache, stateKey, p.cfg.TTL.State, p.sleeper.State)
}

// SearchPlayers matches query against roster player names. The flattened
// index is rebuilt only when the cached roster changes.
func (p *Pace) SearchPlayers(ctx context.Context, query string, limit int) ([]Player, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	limit = min(limit, MaxSearchLimit)
	if strings.TrimSpace(query) == "" {
		return []Player{}, nil
	}

	raw, err := p.Roster(ctx)
	if err != nil {
		return nil, err
	}
	players, err := p.playerIndex(raw)
	if err != nil {
		return nil, err
	}
	out := sleeper.Search(players, query, limit)
	if out == nil {
		out = []Player{}
	}
	return out, nil
}

func (p *Pace) playerIndex(raw json.RawMessage) ([]Player, error) {
	key := indexPrefix
	if entry, ok := p.cache.Peek(rosterKey); ok {
		key += strconv.FormatInt(entry.StoredAt.UnixNano(), 10)
	}
	if cached, ok := p.index.Get(key); ok {
		if players, ok := cached.([]Player); ok {
			return players, nil
		}
	}

	players, err := sleeper.BuildIndex(raw)
	if err != nil {
		return nil, err
	}
	if n := p.index.DeletePrefix(indexPrefix); n > 0 {
		p.logger.Debug("Dropped stale player index", zap.Int("entries", n))
	}
	if err := p.index.Set(key, players, int64(len(raw)), p.cfg.TTL.Roster); err != nil {
		p.logger.Warn("Player index not cached", zap.Int("players", len(players)), zap.Error(err))
	}
	return players, nil
}

// ProjectLeg projects one leg for a tracked player. week <= 0 uses the
// provider's current week.
func (p *Pace) ProjectLeg(ctx context.Context, playerID string, statType StatType, target float64, week int) (PaceProjection, error) {
	st, err := models.ParseStatType(string(statType))
	if err != nil {
		return PaceProjection{}, err
	}
	if !(target > 0) {
		return PaceProjection{}, fmt.Errorf("%w: got %v", models.ErrInvalidTarget, target)
	}
	entity, err := p.mapping.Lookup(playerID)
	if err != nil {
		return PaceProjection{}, err
	}
	week, err = p.resolveWeek(ctx, week)
	if err != nil {
		return PaceProjection{}, err
	}
	return p.project(ctx, entity, st, target, week)
}

func (p *Pace) project(ctx context.Context, entity models.TrackedEntity, statType StatType, target float64, week int) (PaceProjection, error) {
	record, err := p.stats.FetchPlayerStats(ctx, entity.ProviderID, p.cfg.TTL.PlayerStats)
	if err != nil {
		return PaceProjection{}, err
	}
	current, err := projection.CurrentTotal(record.Stats, statType)
	if err != nil {
		return PaceProjection{}, err
	}
	played, err := p.schedule.GamesCompleted(ctx, entity.TeamAbbreviation, week)
	if err != nil {
		return PaceProjection{}, err
	}
	return projection.Project(current, played, target, p.cfg.Season.TotalGames)
}

func (p *Pace) resolveWeek(ctx context.Context, week int) (int, error) {
	if week > 0 {
		return week, nil
	}
	state, err := p.State(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolve current week: %w", err)
	}
	return min(state.CurrentWeek(), p.cfg.Season.Weeks), nil
}

// ProjectParlay projects every leg of a stored parlay. A leg that cannot be
// projected carries its error message instead of failing the whole parlay.
func (p *Pace) ProjectParlay(ctx context.Context, parlayID string, week int) ([]LegProjection, error) {
	parlay, err := p.parlays.GetParlay(ctx, parlayID)
	if err != nil {
		return nil, err
	}
	if len(parlay.Legs) == 0 {
		return []LegProjection{}, nil
	}
	week, err = p.resolveWeek(ctx, week)
	if err != nil {
		return nil, err
	}

	out := make([]LegProjection, len(parlay.Legs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parlayConcurrency)
	for i, leg := range parlay.Legs {
		out[i].Leg = leg
		g.Go(func() error {
			proj, err := p.projectStoredLeg(gctx, leg, week)
			if err != nil {
				out[i].Error = legError(err)
				p.logger.Debug("Leg not projected",
					zap.String("parlay_id", parlayID), zap.String("leg_id", leg.ID), zap.Error(err))
				return nil
			}
			out[i].Projection = &proj
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}

func (p *Pace) projectStoredLeg(ctx context.Context, leg Leg, week int) (PaceProjection, error) {
	entity, err := p.mapping.Lookup(leg.PlayerID)
	if err != nil {
		return PaceProjection{}, err
	}
	return p.project(ctx, entity, leg.StatType, leg.Target, week)
}

// legError keeps provider URLs and internal details out of API payloads.
func legError(err error) string {
	switch {
	case errors.Is(err, models.ErrStatsNotFound):
		return models.ErrStatsNotFound.Error()
	case errors.Is(err, models.ErrUnknownPlayer):
		return models.ErrUnknownPlayer.Error()
	case errors.Is(err, models.ErrUnknownStatType), errors.Is(err, models.ErrInvalidTarget), errors.Is(err, models.ErrInvalidWeek):
		return err.Error()
	case errors.Is(err, models.ErrUpstreamUnavailable):
		return models.ErrUpstreamUnavailable.Error()
	default:
		return "projection failed"
	}
}

// CacheStats returns the cache counters.
func (p *Pace) CacheStats() CacheStats {
	return p.cache.Stats()
}

// LastPrewarm returns the most recent pre-warm pass summary.
func (p *Pace) LastPrewarm() (PrewarmSummary, bool) {
	return p.prewarm.LastRun()
}

// StartPrewarm starts the background pre-warm schedule unless it is disabled.
func (p *Pace) StartPrewarm(ctx context.Context) error {
	if !p.cfg.Prewarm.Enabled {
		p.logger.Info("Prewarm disabled")
		return nil
	}
	return p.prewarm.Start(ctx)
}

// Prewarm runs a single pre-warm pass synchronously.
func (p *Pace) Prewarm(ctx context.Context) (PrewarmSummary, error) {
	return p.prewarm.RunOnce(ctx)
}

// Close 關閉 Pace，釋放資源
func (p *Pace) Close() error {
	p.prewarm.Stop()
	p.cache.Close()
	p.index.Close()
	return p.parlays.Close()
}
