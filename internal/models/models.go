package models

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// 定義常見錯誤
var (
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrStatsNotFound       = errors.New("stats not found")
	ErrInvalidTarget       = errors.New("target must be greater than zero")
	ErrUnknownStatType     = errors.New("unknown stat type")
	ErrInvalidWeek         = errors.New("invalid week")
	ErrUnknownPlayer       = errors.New("unknown player")
	ErrParlayNotFound      = errors.New("parlay not found")
	ErrLegNotFound         = errors.New("leg not found")
	ErrInvalidLeg          = errors.New("invalid leg")
	ErrInvalidParlay       = errors.New("invalid parlay")
)

// UpstreamError describes a failed call to a third-party provider.
type UpstreamError struct {
	Provider   string
	URL        string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d from %s", e.Provider, e.StatusCode, e.URL)
	}
	return fmt.Sprintf("%s: request to %s failed: %v", e.Provider, e.URL, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is makes every UpstreamError match ErrUpstreamUnavailable.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

// Temporary reports whether retrying the call may succeed.
func (e *UpstreamError) Temporary() bool {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= http.StatusInternalServerError:
		return true
	case e.StatusCode != 0:
		return false
	}
	if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(e.Err, &netErr) {
		return true
	}
	return e.Err != nil && !errors.Is(e.Err, errDecode)
}

var errDecode = errors.New("decode failed")

// DecodeError wraps a payload decoding failure so it is never retried.
func DecodeError(err error) error {
	return fmt.Errorf("%w: %v", errDecode, err)
}

// StatRecord is a flat stat-name to value mapping for one player.
type StatRecord map[string]float64

// PlayerStats is what the normalizer caches per player.
type PlayerStats struct {
	PlayerID string     `json:"playerId"`
	Stats    StatRecord `json:"stats"`
	Found    bool       `json:"-"`
	Split    string     `json:"-"`
	Fallback bool       `json:"-"`
}

// Scoreboard maps a team abbreviation to its completed games count.
type Scoreboard map[string]int

// TrackedEntity is one member of the pre-warm roster.
type TrackedEntity struct {
	SourceID         string `json:"sourceId"`
	ProviderID       string `json:"providerId"`
	TeamAbbreviation string `json:"team"`
	Name             string `json:"name,omitempty"`
}

// NFLState is the season clock published by the roster provider.
type NFLState struct {
	Season      string `json:"season"`
	SeasonType  string `json:"seasonType"`
	Week        int    `json:"week"`
	DisplayWeek int    `json:"displayWeek"`
}

// CurrentWeek prefers the display week, then the raw week, then 1.
func (s NFLState) CurrentWeek() int {
	if s.DisplayWeek > 0 {
		return s.DisplayWeek
	}
	if s.Week > 0 {
		return s.Week
	}
	return 1
}

// Parlay is a named, ordered collection of legs.
type Parlay struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Order     int       `json:"order"`
	Legs      []Leg     `json:"legs"`
	CreatedAt time.Time `json:"createdAt"`
}

// Leg is one player stat versus target bet within a parlay.
type Leg struct {
	ID          string   `json:"id"`
	ParlayID    string   `json:"parlayId"`
	PlayerID    string   `json:"playerId"`
	PlayerName  string   `json:"playerName,omitempty"`
	HeadshotURL string   `json:"headshotUrl,omitempty"`
	StatType    StatType `json:"statType"`
	Target      float64  `json:"target"`
	Order       int      `json:"order"`
}

// DedupKey identifies a leg within a parlay regardless of its id.
func (l Leg) DedupKey() string {
	return l.ParlayID + "-" + l.PlayerID + "-" + string(l.StatType)
}

// Player is one searchable entry derived from the bulk roster.
type Player struct {
	ID          string `json:"id"`
	FullName    string `json:"fullName"`
	Position    string `json:"position,omitempty"`
	Team        string `json:"team,omitempty"`
	ESPNID      string `json:"espnId,omitempty"`
	HeadshotURL string `json:"headshotUrl,omitempty"`
}
