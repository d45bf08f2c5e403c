package projection

import (
	"errors"
	"math"
	"testing"

	"goflare.io/pace/internal/models"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestProjectOnPace(t *testing.T) {
	p, err := Project(850, 10, 1200, 17)
	if err != nil {
		t.Fatal(err)
	}
	if !approx(p.PerGameRate, 85) || !approx(p.ProjectedSeasonTotal, 1445) {
		t.Errorf("rate = %v, projected = %v", p.PerGameRate, p.ProjectedSeasonTotal)
	}
	if !approx(p.Remaining, 350) || p.GamesLeft != 7 || !approx(p.NeededPerGame, 50) {
		t.Errorf("remaining = %v, gamesLeft = %d, needed = %v", p.Remaining, p.GamesLeft, p.NeededPerGame)
	}
	if p.Tier != models.TierOnPace {
		t.Errorf("tier = %s", p.Tier)
	}
	if !approx(p.PercentOfTargetProjected, 100) || !approx(p.PercentOfTargetCurrent, 850.0/1200*100) {
		t.Errorf("percents = %v / %v", p.PercentOfTargetCurrent, p.PercentOfTargetProjected)
	}
}

func TestProjectZeroGamesPlayed(t *testing.T) {
	p, err := Project(0, 0, 1000, 17)
	if err != nil {
		t.Fatal(err)
	}
	if p.PerGameRate != 0 || p.ProjectedSeasonTotal != 0 {
		t.Errorf("rate = %v, projected = %v", p.PerGameRate, p.ProjectedSeasonTotal)
	}
	if p.GamesLeft != 17 || !approx(p.NeededPerGame, 1000.0/17) {
		t.Errorf("gamesLeft = %d, needed = %v", p.GamesLeft, p.NeededPerGame)
	}
	if p.Tier != models.TierOff {
		t.Errorf("tier = %s", p.Tier)
	}
}

func TestProjectSeasonOver(t *testing.T) {
	p, err := Project(950, 17, 1000, 17)
	if err != nil {
		t.Fatal(err)
	}
	if p.GamesLeft != 0 || !approx(p.NeededPerGame, 50) {
		t.Errorf("gamesLeft = %d, needed = %v", p.GamesLeft, p.NeededPerGame)
	}
	if p.Tier != models.TierClose {
		t.Errorf("tier = %s, want close", p.Tier)
	}
}

func TestProjectTargetAlreadyHit(t *testing.T) {
	p, err := Project(12, 8, 10, 17)
	if err != nil {
		t.Fatal(err)
	}
	if p.Remaining != 0 || p.NeededPerGame != 0 || p.PercentOfTargetCurrent != 100 {
		t.Errorf("unexpected %+v", p)
	}
}

func TestProjectInvalidTarget(t *testing.T) {
	for _, target := range []float64{0, -5, math.NaN()} {
		if _, err := Project(10, 2, target, 17); !errors.Is(err, models.ErrInvalidTarget) {
			t.Errorf("target %v: err = %v", target, err)
		}
	}
}

func TestProjectDefaultsSeasonLength(t *testing.T) {
	p, _ := Project(10, 1, 100, 0)
	if p.TotalSeasonGames != DefaultSeasonGames {
		t.Errorf("TotalSeasonGames = %d", p.TotalSeasonGames)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		projected, target float64
		want              models.Tier
	}{
		{1000, 1000, models.TierOnPace},
		{1001, 1000, models.TierOnPace},
		{900, 1000, models.TierClose},
		{899.99, 1000, models.TierOff},
		{0, 1, models.TierOff},
	}
	for _, tt := range tests {
		if got := Classify(tt.projected, tt.target); got != tt.want {
			t.Errorf("Classify(%v, %v) = %s, want %s", tt.projected, tt.target, got, tt.want)
		}
	}
}

func TestCurrentTotal(t *testing.T) {
	record := models.StatRecord{"rushingYards": 512, "receivingTouchdowns": 3}
	if v, err := CurrentTotal(record, models.RushingYards); err != nil || v != 512 {
		t.Errorf("rushingYards = (%v, %v)", v, err)
	}
	if v, err := CurrentTotal(record, models.PassingYards); err != nil || v != 0 {
		t.Errorf("missing stat = (%v, %v)", v, err)
	}
	if _, err := CurrentTotal(record, models.StatType("tackles")); !errors.Is(err, models.ErrUnknownStatType) {
		t.Errorf("err = %v", err)
	}
}

func TestParseStatTypeAliases(t *testing.T) {
	tests := map[string]models.StatType{
		"rushingTD":         models.RushingTouchdowns,
		"receivingtd":       models.ReceivingTouchdowns,
		"PassingYards":      models.PassingYards,
		" receivingYards ":  models.ReceivingYards,
		"rushingTouchdowns": models.RushingTouchdowns,
	}
	for in, want := range tests {
		got, err := models.ParseStatType(in)
		if err != nil || got != want {
			t.Errorf("ParseStatType(%q) = (%s, %v)", in, got, err)
		}
	}
	if _, err := models.ParseStatType("sacks"); !errors.Is(err, models.ErrUnknownStatType) {
		t.Errorf("err = %v", err)
	}
}
