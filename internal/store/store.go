package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"goflare.io/pace/internal/models"
)

// Store persists parlays and their legs.
type Store interface {
	CreateParlay(ctx context.Context, name string) (models.Parlay, error)
	ListParlays(ctx context.Context) ([]models.Parlay, error)
	GetParlay(ctx context.Context, id string) (models.Parlay, error)
	RenameParlay(ctx context.Context, id, name string) (models.Parlay, error)
	DeleteParlay(ctx context.Context, id string) error
	ReorderParlays(ctx context.Context, ids []string) error

	// AddLeg appends leg to the parlay. A leg with the same player and stat
	// type already in the parlay is returned unchanged with created false.
	AddLeg(ctx context.Context, parlayID string, leg models.Leg) (stored models.Leg, created bool, err error)
	DeleteLeg(ctx context.Context, parlayID, legID string) error
	ReorderLegs(ctx context.Context, parlayID string, legIDs []string) error
	MoveLeg(ctx context.Context, legID, toParlayID string, toIndex int) (models.Leg, error)

	Close() error
}

// state is the whole record set. Both implementations run the same
// mutations over it; they differ only in where it lives.
type state struct {
	Parlays map[string]*models.Parlay
}

func newState() *state {
	return &state{Parlays: make(map[string]*models.Parlay)}
}

type idFunc func() string

func newID() string {
	return uuid.NewString()
}

func (s *state) ordered() []*models.Parlay {
	out := make([]*models.Parlay, 0, len(s.Parlays))
	for _, p := range s.Parlays {
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *state) renumber() {
	for i, p := range s.ordered() {
		p.Order = i
	}
}

func (s *state) parlay(id string) (*models.Parlay, error) {
	p, ok := s.Parlays[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrParlayNotFound, id)
	}
	return p, nil
}

func (s *state) list() []models.Parlay {
	ordered := s.ordered()
	out := make([]models.Parlay, len(ordered))
	for i, p := range ordered {
		out[i] = clone(p)
	}
	return out
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", models.ErrInvalidParlay)
	}
	return name, nil
}

func (s *state) create(id, name string, now time.Time) (models.Parlay, error) {
	name, err := cleanName(name)
	if err != nil {
		return models.Parlay{}, err
	}
	p := &models.Parlay{
		ID:        id,
		Name:      name,
		Order:     len(s.Parlays),
		Legs:      []models.Leg{},
		CreatedAt: now,
	}
	s.Parlays[id] = p
	return clone(p), nil
}

func (s *state) rename(id, name string) (models.Parlay, error) {
	name, err := cleanName(name)
	if err != nil {
		return models.Parlay{}, err
	}
	p, err := s.parlay(id)
	if err != nil {
		return models.Parlay{}, err
	}
	p.Name = name
	return clone(p), nil
}

func (s *state) delete(id string) error {
	if _, err := s.parlay(id); err != nil {
		return err
	}
	delete(s.Parlays, id)
	s.renumber()
	return nil
}

// reorderParlays gives the listed parlays positions 0..n-1; unlisted ones
// keep their relative order after them.
func (s *state) reorderParlays(ids []string) error {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, err := s.parlay(id); err != nil {
			return err
		}
		seen[id] = true
	}
	rest := make([]*models.Parlay, 0)
	for _, p := range s.ordered() {
		if !seen[p.ID] {
			rest = append(rest, p)
		}
	}
	order := 0
	for _, id := range ids {
		if seen[id] {
			s.Parlays[id].Order = order
			order++
			seen[id] = false
		}
	}
	for _, p := range rest {
		p.Order = order
		order++
	}
	return nil
}

func validateLeg(leg models.Leg) (models.Leg, error) {
	leg.PlayerID = strings.TrimSpace(leg.PlayerID)
	if leg.PlayerID == "" {
		return leg, fmt.Errorf("%w: playerId is required", models.ErrInvalidLeg)
	}
	st, err := models.ParseStatType(string(leg.StatType))
	if err != nil {
		return leg, err
	}
	leg.StatType = st
	if leg.Target <= 0 {
		return leg, fmt.Errorf("%w: got %v", models.ErrInvalidTarget, leg.Target)
	}
	return leg, nil
}

func (s *state) addLeg(parlayID string, leg models.Leg, id string) (models.Leg, bool, error) {
	p, err := s.parlay(parlayID)
	if err != nil {
		return models.Leg{}, false, err
	}
	leg, err = validateLeg(leg)
	if err != nil {
		return models.Leg{}, false, err
	}
	leg.ParlayID = parlayID
	for _, existing := range p.Legs {
		if existing.DedupKey() == leg.DedupKey() {
			return existing, false, nil
		}
	}
	leg.ID = id
	leg.Order = len(p.Legs)
	p.Legs = append(p.Legs, leg)
	return leg, true, nil
}

func (s *state) deleteLeg(parlayID, legID string) error {
	p, err := s.parlay(parlayID)
	if err != nil {
		return err
	}
	i := legIndex(p, legID)
	if i < 0 {
		return fmt.Errorf("%w: %s", models.ErrLegNotFound, legID)
	}
	p.Legs = append(p.Legs[:i], p.Legs[i+1:]...)
	renumberLegs(p)
	return nil
}

func (s *state) reorderLegs(parlayID string, legIDs []string) error {
	p, err := s.parlay(parlayID)
	if err != nil {
		return err
	}
	reordered := make([]models.Leg, 0, len(p.Legs))
	used := make(map[string]bool, len(legIDs))
	for _, id := range legIDs {
		i := legIndex(p, id)
		if i < 0 {
			return fmt.Errorf("%w: %s", models.ErrLegNotFound, id)
		}
		if !used[id] {
			reordered = append(reordered, p.Legs[i])
			used[id] = true
		}
	}
	for _, leg := range p.Legs {
		if !used[leg.ID] {
			reordered = append(reordered, leg)
		}
	}
	p.Legs = reordered
	renumberLegs(p)
	return nil
}

func (s *state) moveLeg(legID, toParlayID string, toIndex int) (models.Leg, error) {
	dest, err := s.parlay(toParlayID)
	if err != nil {
		return models.Leg{}, err
	}

	var src *models.Parlay
	idx := -1
	for _, p := range s.Parlays {
		if i := legIndex(p, legID); i >= 0 {
			src, idx = p, i
			break
		}
	}
	if src == nil {
		return models.Leg{}, fmt.Errorf("%w: %s", models.ErrLegNotFound, legID)
	}

	leg := src.Legs[idx]
	if src != dest {
		moved := leg
		moved.ParlayID = dest.ID
		for _, existing := range dest.Legs {
			if existing.DedupKey() == moved.DedupKey() {
				return models.Leg{}, fmt.Errorf("%w: parlay %s already tracks %s for player %s",
					models.ErrInvalidLeg, dest.ID, leg.StatType, leg.PlayerID)
			}
		}
	}

	src.Legs = append(src.Legs[:idx], src.Legs[idx+1:]...)
	renumberLegs(src)

	toIndex = max(0, min(toIndex, len(dest.Legs)))
	leg.ParlayID = dest.ID
	dest.Legs = append(dest.Legs, models.Leg{})
	copy(dest.Legs[toIndex+1:], dest.Legs[toIndex:])
	dest.Legs[toIndex] = leg
	renumberLegs(dest)
	return dest.Legs[toIndex], nil
}

func legIndex(p *models.Parlay, legID string) int {
	for i, leg := range p.Legs {
		if leg.ID == legID {
			return i
		}
	}
	return -1
}

func renumberLegs(p *models.Parlay) {
	for i := range p.Legs {
		p.Legs[i].Order = i
	}
}

func clone(p *models.Parlay) models.Parlay {
	out := *p
	out.Legs = make([]models.Leg, len(p.Legs))
	copy(out.Legs, p.Legs)
	return out
}
