package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"goflare.io/pace/internal/cache/flight"
	"goflare.io/pace/internal/models"
	"goflare.io/pace/internal/provider/espn"
)

func game(status, home, away string) espn.Event {
	return espn.Event{
		Status: &espn.Status{Type: espn.StatusType{Name: status}},
		Competitions: []espn.Competition{{
			Competitors: []espn.Competitor{
				{HomeAway: "home", Team: espn.Team{Abbreviation: home}},
				{HomeAway: "away", Team: espn.Team{Abbreviation: away}},
			},
		}},
	}
}

type fakeScoreboards struct {
	mu    sync.Mutex
	weeks map[int]*espn.ScoreboardPayload
	calls map[int]int
	fail  map[int]error
}

func (f *fakeScoreboards) FetchScoreboard(_ context.Context, week int) (*espn.ScoreboardPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[int]int{}
	}
	f.calls[week]++
	if err := f.fail[week]; err != nil {
		return nil, err
	}
	if p, ok := f.weeks[week]; ok {
		return p, nil
	}
	return &espn.ScoreboardPayload{}, nil
}

func newFixture() *fakeScoreboards {
	return &fakeScoreboards{weeks: map[int]*espn.ScoreboardPayload{
		1: {Events: []espn.Event{
			game(espn.StatusFinal, "KC", "BAL"),
			game(espn.StatusFinal, "SF", "NYJ"),
		}},
		2: {Events: []espn.Event{
			game("STATUS_SCHEDULED", "CIN", "KC"),
			game(espn.StatusFinal, "BAL", "LV"),
		}},
	}}
}

func TestGamesCompleted(t *testing.T) {
	r := NewResolver(flight.New(), newFixture(), time.Minute, 18, nil)
	ctx := context.Background()

	tests := []struct {
		team string
		want int
	}{
		{"KC", 1},
		{"kc", 1},
		{"BAL", 2},
		{"SF", 1},
		{"CIN", 0},
		{"DET", 0},
	}
	for _, tt := range tests {
		got, err := r.GamesCompleted(ctx, tt.team, 2)
		if err != nil {
			t.Fatalf("GamesCompleted(%s): %v", tt.team, err)
		}
		if got != tt.want {
			t.Errorf("GamesCompleted(%s) = %d, want %d", tt.team, got, tt.want)
		}
	}
}

func TestWeeksAreCachedIndependently(t *testing.T) {
	f := newFixture()
	r := NewResolver(flight.New(), f, time.Minute, 18, nil)
	ctx := context.Background()

	if _, err := r.Scoreboard(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Scoreboard(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Scoreboard(ctx, 2); err != nil {
		t.Fatal(err)
	}
	if f.calls[1] != 1 || f.calls[2] != 1 {
		t.Errorf("calls = %v, want one fetch per week", f.calls)
	}
}

func TestScoreboardPropagatesWeekFailure(t *testing.T) {
	f := newFixture()
	f.fail = map[int]error{2: &models.UpstreamError{Provider: "espn", StatusCode: 500}}
	r := NewResolver(flight.New(), f, time.Minute, 18, nil)

	if _, err := r.Scoreboard(context.Background(), 2); !errors.Is(err, models.ErrUpstreamUnavailable) {
		t.Fatalf("err = %v", err)
	}
}

func TestInvalidWeek(t *testing.T) {
	r := NewResolver(flight.New(), newFixture(), time.Minute, 18, nil)
	for _, week := range []int{0, -1, 19} {
		if _, err := r.Scoreboard(context.Background(), week); !errors.Is(err, models.ErrInvalidWeek) {
			t.Errorf("week %d: err = %v", week, err)
		}
	}
}

func TestAggregate(t *testing.T) {
	board := Aggregate(&espn.ScoreboardPayload{Events: []espn.Event{
		game(espn.StatusFinal, "kc", "BAL"),
		game("STATUS_IN_PROGRESS", "DAL", "PHI"),
		{Competitions: []espn.Competition{{
			Status:      &espn.Status{Type: espn.StatusType{Name: espn.StatusFinal}},
			Competitors: []espn.Competitor{{Team: espn.Team{Abbreviation: "DET"}}, {Team: espn.Team{Abbreviation: "GB"}}},
		}}},
	}})
	want := models.Scoreboard{"KC": 1, "BAL": 1, "DAL": 0, "PHI": 0, "DET": 1, "GB": 1}
	if len(board) != len(want) {
		t.Fatalf("board = %v", board)
	}
	for team, n := range want {
		if board[team] != n {
			t.Errorf("%s = %d, want %d", team, board[team], n)
		}
	}
	if len(Aggregate(nil)) != 0 {
		t.Error("nil payload should aggregate to an empty board")
	}
}
