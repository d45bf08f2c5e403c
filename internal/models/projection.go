package models

import (
	"fmt"
	"strings"
)

// StatType names a stat category a leg can target.
type StatType string

const (
	RushingYards        StatType = "rushingYards"
	ReceivingYards      StatType = "receivingYards"
	PassingYards        StatType = "passingYards"
	RushingTouchdowns   StatType = "rushingTouchdowns"
	ReceivingTouchdowns StatType = "receivingTouchdowns"
)

// StatTypes lists every recognized category.
var StatTypes = []StatType{
	RushingYards,
	ReceivingYards,
	PassingYards,
	RushingTouchdowns,
	ReceivingTouchdowns,
}

var statTypeAliases = map[string]StatType{
	"rushingyards":        RushingYards,
	"receivingyards":      ReceivingYards,
	"passingyards":        PassingYards,
	"rushingtouchdowns":   RushingTouchdowns,
	"receivingtouchdowns": ReceivingTouchdowns,
	"rushingtd":           RushingTouchdowns,
	"receivingtd":         ReceivingTouchdowns,
}

// ParseStatType accepts the canonical names plus the short TD aliases.
func ParseStatType(s string) (StatType, error) {
	if t, ok := statTypeAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatType, s)
}

// Tier buckets a projection for presentation.
type Tier string

const (
	TierOnPace Tier = "onPace"
	TierClose  Tier = "close"
	TierOff    Tier = "off"
)

// PaceProjection is the engine output for one leg.
type PaceProjection struct {
	Target                   float64 `json:"target"`
	TotalSeasonGames         int     `json:"totalSeasonGames"`
	CurrentTotal             float64 `json:"currentTotal"`
	GamesPlayed              int     `json:"gamesPlayed"`
	PerGameRate              float64 `json:"perGameRate"`
	ProjectedSeasonTotal     float64 `json:"projectedSeasonTotal"`
	Remaining                float64 `json:"remaining"`
	GamesLeft                int     `json:"gamesLeft"`
	NeededPerGame            float64 `json:"neededPerGame"`
	PercentOfTargetCurrent   float64 `json:"percentOfTargetCurrent"`
	PercentOfTargetProjected float64 `json:"percentOfTargetProjected"`
	Tier                     Tier    `json:"tier"`
}

// LegProjection pairs a stored leg with its projection, or with the reason
// it could not be projected.
type LegProjection struct {
	Leg        Leg             `json:"leg"`
	Projection *PaceProjection `json:"projection,omitempty"`
	Error      string          `json:"error,omitempty"`
}
