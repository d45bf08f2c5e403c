package prewarm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"goflare.io/pace/internal/models"
)

type staticRoster []models.TrackedEntity

func (r staticRoster) Tracked() []models.TrackedEntity { return r }

func rosterOf(n int) staticRoster {
	out := make(staticRoster, n)
	for i := range out {
		out[i] = models.TrackedEntity{SourceID: fmt.Sprintf("s%d", i), ProviderID: fmt.Sprintf("p%d", i)}
	}
	return out
}

type fakeFetcher struct {
	mu       sync.Mutex
	calls    map[string]int
	order    []string
	ttls     []time.Duration
	fail     map[string]error
	panicOn  string
	inFlight int
	maxPar   int
	delay    time.Duration
}

func (f *fakeFetcher) FetchPlayerStats(ctx context.Context, id string, ttl time.Duration) (models.PlayerStats, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[id]++
	f.order = append(f.order, id)
	f.ttls = append(f.ttls, ttl)
	f.inFlight++
	if f.inFlight > f.maxPar {
		f.maxPar = f.inFlight
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inFlight--
	err := f.fail[id]
	f.mu.Unlock()

	if id == f.panicOn {
		panic("boom")
	}
	if err != nil {
		return models.PlayerStats{}, err
	}
	return models.PlayerStats{PlayerID: id, Found: true}, nil
}

type recordingSleep struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return nil
}

func settings() Settings {
	return Settings{
		Interval:      time.Hour,
		BatchSize:     25,
		BatchDelay:    2 * time.Second,
		TTL:           30 * time.Minute,
		NotFoundReset: 6 * time.Hour,
	}
}

func TestBatches(t *testing.T) {
	batches := Batches(rosterOf(53), 25)
	if len(batches) != 3 || len(batches[0]) != 25 || len(batches[1]) != 25 || len(batches[2]) != 3 {
		t.Fatalf("batch sizes = %d", len(batches))
	}
	if batches[2][2].ProviderID != "p52" {
		t.Errorf("last entity = %+v", batches[2][2])
	}
	if len(Batches(nil, 25)) != 0 {
		t.Error("empty roster should yield no batches")
	}
}

func TestRunOnceBatchesWithDelays(t *testing.T) {
	f := &fakeFetcher{
		fail:  map[string]error{"p3": errors.New("upstream down"), "p10": errors.New("timeout")},
		delay: 2 * time.Millisecond,
	}
	sleeper := &recordingSleep{}
	s := New(f, rosterOf(53), settings(), WithSleep(sleeper.sleep))

	summary, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(f.calls) != 53 {
		t.Fatalf("fetched %d entities, want 53", len(f.calls))
	}
	if len(sleeper.delays) != 2 || sleeper.delays[0] != 2*time.Second {
		t.Errorf("delays = %v, want two 2s pauses", sleeper.delays)
	}
	if f.maxPar > 25 {
		t.Errorf("max concurrency %d exceeds batch size", f.maxPar)
	}
	for _, ttl := range f.ttls {
		if ttl != 30*time.Minute {
			t.Fatalf("prewarm used ttl %v", ttl)
		}
	}
	if summary.Batches != 3 || summary.Entities != 53 || summary.Warmed != 51 || summary.Failed != 2 {
		t.Errorf("summary = %+v", summary)
	}
	if last, ok := s.LastRun(); !ok || last.Warmed != 51 {
		t.Errorf("LastRun = %+v, %v", last, ok)
	}
}

func TestBatchesRunSequentially(t *testing.T) {
	f := &fakeFetcher{}
	var mu sync.Mutex
	var seenAtSleep []int
	sleep := func(context.Context, time.Duration) error {
		f.mu.Lock()
		n := len(f.order)
		f.mu.Unlock()
		mu.Lock()
		seenAtSleep = append(seenAtSleep, n)
		mu.Unlock()
		return nil
	}
	s := New(f, rosterOf(53), settings(), WithSleep(sleep))
	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(seenAtSleep) != 2 || seenAtSleep[0] != 25 || seenAtSleep[1] != 50 {
		t.Errorf("fetches settled before each pause = %v, want [25 50]", seenAtSleep)
	}
}

func TestNotFoundPlayersAreSkippedUntilReset(t *testing.T) {
	now := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	f := &fakeFetcher{fail: map[string]error{"p1": fmt.Errorf("player p1: %w", models.ErrStatsNotFound)}}
	s := New(f, rosterOf(3), settings(), WithSleep((&recordingSleep{}).sleep), WithClock(clock))

	first, _ := s.RunOnce(context.Background())
	second, _ := s.RunOnce(context.Background())
	if first.NotFound != 1 || second.Skipped != 1 || second.NotFound != 0 {
		t.Errorf("first = %+v, second = %+v", first, second)
	}
	if f.calls["p1"] != 1 {
		t.Errorf("p1 fetched %d times before reset", f.calls["p1"])
	}

	now = now.Add(7 * time.Hour)
	if _, err := s.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.calls["p1"] != 2 {
		t.Errorf("p1 fetched %d times after reset, want 2", f.calls["p1"])
	}
}

func TestEntityPanicDoesNotAbortPass(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	f := &fakeFetcher{panicOn: "p0"}
	s := New(f, rosterOf(30), settings(), WithSleep((&recordingSleep{}).sleep), WithLogger(zap.New(core)))

	summary, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if summary.Failed != 1 || summary.Warmed != 29 {
		t.Errorf("summary = %+v", summary)
	}
	if logs.FilterMessage("Prewarm fetch panicked").Len() != 1 {
		t.Errorf("logs = %v", logs.All())
	}
}

func TestRunOnceStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sleep := func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	f := &fakeFetcher{}
	s := New(f, rosterOf(60), settings(), WithSleep(sleep))

	summary, err := s.RunOnce(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if len(f.calls) != 25 {
		t.Errorf("fetched %d, want only the first batch", len(f.calls))
	}
	if summary.Error == "" {
		t.Error("summary should carry the error")
	}
}

func TestStartRunsImmediatelyAndStops(t *testing.T) {
	f := &fakeFetcher{}
	s := New(f, rosterOf(5), settings(), WithSleep((&recordingSleep{}).sleep))

	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := s.LastRun(); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("startup pass never finished")
		}
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()
	s.Stop()

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) != 5 {
		t.Errorf("calls = %d, want 5", len(f.calls))
	}
}

func TestNotFoundFilterIgnoresFalsePositives(t *testing.T) {
	start := time.Date(2025, 9, 14, 12, 0, 0, 0, time.UTC)
	// One expected item at a 90% false positive rate sizes the filter to a
	// single bit, so every id collides once anything is added.
	f := newNotFoundFilter(1, 0.9, start)
	f.add("p0")

	if !f.filter.TestString("p1") {
		t.Fatal("expected the undersized filter to report a collision")
	}
	if f.test("p1") {
		t.Error("player never recorded as not found was skipped")
	}
	if !f.test("p0") {
		t.Error("recorded player should be skipped")
	}

	f.maybeReset(start.Add(time.Hour), time.Minute, zap.NewNop())
	if f.test("p0") {
		t.Error("reset should forget recorded players")
	}
}
