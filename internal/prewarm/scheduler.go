package prewarm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"goflare.io/pace/internal/metrics"
	"goflare.io/pace/internal/models"
	"goflare.io/pace/internal/utils"
)

var (
	// ErrAlreadyStarted is returned by Start on a running scheduler.
	ErrAlreadyStarted = errors.New("prewarm scheduler already started")
	// ErrPassRunning is returned by RunOnce while another pass is in progress.
	ErrPassRunning = errors.New("prewarm pass already running")
)

// StatsFetcher warms one player; *stats.Normalizer satisfies it.
type StatsFetcher interface {
	FetchPlayerStats(ctx context.Context, espnID string, ttl time.Duration) (models.PlayerStats, error)
}

// Roster yields the entities to warm; *roster.Mapping satisfies it.
type Roster interface {
	Tracked() []models.TrackedEntity
}

// Settings 預熱排程參數
type Settings struct {
	Interval      time.Duration
	BatchSize     int
	BatchDelay    time.Duration
	TTL           time.Duration
	NotFoundReset time.Duration
	ExpectedItems uint
	FalsePositive float64
}

// RunSummary describes one completed pass.
type RunSummary struct {
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Duration   time.Duration `json:"duration"`
	Entities   int           `json:"entities"`
	Batches    int           `json:"batches"`
	Warmed     int64         `json:"warmed"`
	NotFound   int64         `json:"notFound"`
	Skipped    int64         `json:"skipped"`
	Failed     int64         `json:"failed"`
	Error      string        `json:"error,omitempty"`
}

// Scheduler periodically fetches stats for the whole roster so interactive
// reads hit a warm cache.
type Scheduler struct {
	fetcher  StatsFetcher
	roster   Roster
	settings Settings
	logger   *zap.Logger
	tracer   trace.Tracer
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
	notFound *notFoundFilter

	passing atomic.Bool
	runs    atomic.Int64

	mu      sync.Mutex
	last    *RunSummary
	cron    *cron.Cron
	cancel  context.CancelFunc
	startWG sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger 設置日誌記錄器
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSleep replaces the inter-batch wait, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scheduler) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a stopped Scheduler.
func New(fetcher StatsFetcher, roster Roster, settings Settings, opts ...Option) *Scheduler {
	if settings.BatchSize < 1 {
		settings.BatchSize = 1
	}
	s := &Scheduler{
		fetcher:  fetcher,
		roster:   roster,
		settings: settings,
		logger:   zap.NewNop(),
		tracer:   otel.Tracer("goflare.io/pace/prewarm"),
		sleep:    sleepContext,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("prewarm")
	s.notFound = newNotFoundFilter(settings.ExpectedItems, settings.FalsePositive, s.now())
	return s
}

// Batches splits roster into consecutive chunks of at most size entities.
func Batches(roster []models.TrackedEntity, size int) [][]models.TrackedEntity {
	return utils.Partition(roster, size)
}

// Start runs one pass immediately in the background and then one pass per
// interval until Stop. A tick that arrives while a pass is still running is
// skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	clog := cronLogger{s: s.logger.Sugar()}
	c := cron.New(
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)
	c.Schedule(cron.Every(s.settings.Interval), cron.FuncJob(func() { s.scheduledPass(ctx, "scheduled") }))

	s.cron = c
	s.cancel = cancel

	s.startWG.Add(1)
	go func() {
		defer s.startWG.Done()
		s.scheduledPass(ctx, "startup")
	}()
	c.Start()

	s.logger.Info("Prewarm scheduler started",
		zap.Duration("interval", s.settings.Interval),
		zap.Int("batch_size", s.settings.BatchSize),
		zap.Duration("batch_delay", s.settings.BatchDelay))
	return nil
}

// Stop cancels any running pass and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	cancel()
	<-c.Stop().Done()
	s.startWG.Wait()
	s.logger.Info("Prewarm scheduler stopped", zap.Int64("runs", s.runs.Load()))
}

// LastRun returns the summary of the most recent finished pass.
func (s *Scheduler) LastRun() (RunSummary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return RunSummary{}, false
	}
	return *s.last, true
}

// scheduledPass runs a pass and absorbs every failure so the schedule survives.
func (s *Scheduler) scheduledPass(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, ErrPassRunning) {
		s.logger.Error("Prewarm pass failed", zap.String("trigger", trigger), zap.Error(err))
	}
}

// RunOnce warms the roster batch by batch. Entity failures are counted and
// logged; only cancellation or a panic fails the pass.
func (s *Scheduler) RunOnce(ctx context.Context) (summary RunSummary, err error) {
	if !s.passing.CompareAndSwap(false, true) {
		return RunSummary{}, ErrPassRunning
	}
	defer s.passing.Store(false)

	ctx, span := s.tracer.Start(ctx, "prewarm.RunOnce")
	defer span.End()

	start := s.now()
	summary.StartedAt = start
	s.notFound.maybeReset(start, s.settings.NotFoundReset, s.logger)

	var warmed, notFound, skipped, failed atomic.Int64
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("prewarm pass panicked: %v", r)
		}
		summary.FinishedAt = s.now()
		summary.Duration = summary.FinishedAt.Sub(start)
		summary.Warmed, summary.NotFound = warmed.Load(), notFound.Load()
		summary.Skipped, summary.Failed = skipped.Load(), failed.Load()
		s.finish(&summary, err)
		span.SetAttributes(
			attribute.Int("entities", summary.Entities),
			attribute.Int64("failed", summary.Failed),
		)
	}()

	entities := s.roster.Tracked()
	batches := Batches(entities, s.settings.BatchSize)
	summary.Entities = len(entities)
	summary.Batches = len(batches)

	for i, batch := range batches {
		var g errgroup.Group
		for _, entity := range batch {
			g.Go(func() error {
				switch s.warm(ctx, entity) {
				case resultWarmed:
					warmed.Inc()
				case resultNotFound:
					notFound.Inc()
				case resultSkipped:
					skipped.Inc()
				default:
					failed.Inc()
				}
				return nil
			})
		}
		_ = g.Wait()

		if i < len(batches)-1 && s.settings.BatchDelay > 0 {
			if err := s.sleep(ctx, s.settings.BatchDelay); err != nil {
				return summary, fmt.Errorf("prewarm interrupted after batch %d of %d: %w", i+1, len(batches), err)
			}
		}
	}
	return summary, nil
}

type result string

const (
	resultWarmed   result = "warmed"
	resultNotFound result = "not_found"
	resultSkipped  result = "skipped"
	resultFailed   result = "failed"
)

func (s *Scheduler) warm(ctx context.Context, entity models.TrackedEntity) (res result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("Prewarm fetch panicked", zap.String("player_id", entity.ProviderID), zap.Any("panic", r))
			res = resultFailed
		}
		metrics.PrewarmEntities.WithLabelValues(string(res)).Inc()
	}()

	if entity.ProviderID == "" || s.notFound.test(entity.ProviderID) {
		return resultSkipped
	}
	_, err := s.fetcher.FetchPlayerStats(ctx, entity.ProviderID, s.settings.TTL)
	switch {
	case err == nil:
		return resultWarmed
	case errors.Is(err, models.ErrStatsNotFound):
		s.notFound.add(entity.ProviderID)
		s.logger.Debug("No stats for tracked player, suppressing until reset",
			zap.String("player_id", entity.ProviderID), zap.String("source_id", entity.SourceID))
		return resultNotFound
	default:
		s.logger.Warn("Prewarm fetch failed",
			zap.String("player_id", entity.ProviderID), zap.String("source_id", entity.SourceID), zap.Error(err))
		return resultFailed
	}
}

func (s *Scheduler) finish(summary *RunSummary, err error) {
	status := "success"
	if err != nil {
		status = "error"
		summary.Error = err.Error()
	}
	metrics.PrewarmRuns.WithLabelValues(status).Inc()
	metrics.PrewarmDuration.Observe(summary.Duration.Seconds())
	s.runs.Inc()

	s.mu.Lock()
	last := *summary
	s.last = &last
	s.mu.Unlock()

	s.logger.Info("Prewarm pass finished",
		zap.Int("entities", summary.Entities),
		zap.Int("batches", summary.Batches),
		zap.Int64("warmed", summary.Warmed),
		zap.Int64("not_found", summary.NotFound),
		zap.Int64("skipped", summary.Skipped),
		zap.Int64("failed", summary.Failed),
		zap.Duration("duration", summary.Duration))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// cronLogger routes cron's own messages to zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
