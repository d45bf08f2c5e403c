package projection

import (
	"fmt"
	"math"

	"goflare.io/pace/internal/models"
)

// DefaultSeasonGames is the regular season length.
const DefaultSeasonGames = 17

// closeRatio is the share of the target a projection must reach to count as close.
const closeRatio = 0.9

// CurrentTotal returns the season-to-date value of statType from record.
// A stat type missing from the record counts as 0.
func CurrentTotal(record models.StatRecord, statType models.StatType) (float64, error) {
	switch statType {
	case models.RushingYards, models.ReceivingYards, models.PassingYards,
		models.RushingTouchdowns, models.ReceivingTouchdowns:
		return record[string(statType)], nil
	default:
		return 0, fmt.Errorf("%w: %q", models.ErrUnknownStatType, statType)
	}
}

// Project extrapolates the current per-game rate over the season and
// compares it with target. seasonGames <= 0 uses DefaultSeasonGames.
func Project(current float64, gamesPlayed int, target float64, seasonGames int) (models.PaceProjection, error) {
	if target <= 0 || math.IsNaN(target) {
		return models.PaceProjection{}, fmt.Errorf("%w: got %v", models.ErrInvalidTarget, target)
	}
	if seasonGames <= 0 {
		seasonGames = DefaultSeasonGames
	}
	if gamesPlayed < 0 {
		gamesPlayed = 0
	}

	perGame := current / float64(max(gamesPlayed, 1))
	projected := perGame * float64(seasonGames)
	remaining := math.Max(target-current, 0)
	gamesLeft := max(seasonGames-gamesPlayed, 0)

	needed := remaining
	if gamesLeft > 0 {
		needed = remaining / float64(gamesLeft)
	}

	return models.PaceProjection{
		Target:                   target,
		TotalSeasonGames:         seasonGames,
		CurrentTotal:             current,
		GamesPlayed:              gamesPlayed,
		PerGameRate:              perGame,
		ProjectedSeasonTotal:     projected,
		Remaining:                remaining,
		GamesLeft:                gamesLeft,
		NeededPerGame:            needed,
		PercentOfTargetCurrent:   percent(current, target),
		PercentOfTargetProjected: percent(projected, target),
		Tier:                     Classify(projected, target),
	}, nil
}

// Classify buckets a projection against its target.
func Classify(projected, target float64) models.Tier {
	switch {
	case projected >= target:
		return models.TierOnPace
	case projected >= closeRatio*target:
		return models.TierClose
	default:
		return models.TierOff
	}
}

// percent is value as a share of target, capped at 100.
func percent(value, target float64) float64 {
	return math.Min(100, math.Max(0, 100*value/target))
}
