package store

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"goflare.io/pace/internal/models"
)

// MemoryStore keeps records in process memory. Records are lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	state  *state
	ids    idFunc
	now    func() time.Time
	logger *zap.Logger
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		state:  newState(),
		ids:    newID,
		now:    time.Now,
		logger: logger.Named("store"),
	}
}

func (m *MemoryStore) read(fn func(*state)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(m.state)
}

func (m *MemoryStore) write(fn func(*state) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.state)
}

func (m *MemoryStore) CreateParlay(_ context.Context, name string) (models.Parlay, error) {
	var p models.Parlay
	err := m.write(func(s *state) error {
		var err error
		p, err = s.create(m.ids(), name, m.now())
		return err
	})
	if err == nil {
		m.logger.Debug("Created parlay", zap.String("parlay_id", p.ID))
	}
	return p, err
}

func (m *MemoryStore) ListParlays(_ context.Context) ([]models.Parlay, error) {
	var out []models.Parlay
	m.read(func(s *state) { out = s.list() })
	return out, nil
}

func (m *MemoryStore) GetParlay(_ context.Context, id string) (models.Parlay, error) {
	var (
		out models.Parlay
		err error
	)
	m.read(func(s *state) {
		var p *models.Parlay
		if p, err = s.parlay(id); err == nil {
			out = clone(p)
		}
	})
	return out, err
}

func (m *MemoryStore) RenameParlay(_ context.Context, id, name string) (models.Parlay, error) {
	var p models.Parlay
	err := m.write(func(s *state) error {
		var err error
		p, err = s.rename(id, name)
		return err
	})
	return p, err
}

func (m *MemoryStore) DeleteParlay(_ context.Context, id string) error {
	return m.write(func(s *state) error { return s.delete(id) })
}

func (m *MemoryStore) ReorderParlays(_ context.Context, ids []string) error {
	return m.write(func(s *state) error { return s.reorderParlays(ids) })
}

func (m *MemoryStore) AddLeg(_ context.Context, parlayID string, leg models.Leg) (models.Leg, bool, error) {
	var (
		stored  models.Leg
		created bool
	)
	err := m.write(func(s *state) error {
		var err error
		stored, created, err = s.addLeg(parlayID, leg, m.ids())
		return err
	})
	return stored, created, err
}

func (m *MemoryStore) DeleteLeg(_ context.Context, parlayID, legID string) error {
	return m.write(func(s *state) error { return s.deleteLeg(parlayID, legID) })
}

func (m *MemoryStore) ReorderLegs(_ context.Context, parlayID string, legIDs []string) error {
	return m.write(func(s *state) error { return s.reorderLegs(parlayID, legIDs) })
}

func (m *MemoryStore) MoveLeg(_ context.Context, legID, toParlayID string, toIndex int) (models.Leg, error) {
	var leg models.Leg
	err := m.write(func(s *state) error {
		var err error
		leg, err = s.moveLeg(legID, toParlayID, toIndex)
		return err
	})
	return leg, err
}

// Close is a no-op.
func (m *MemoryStore) Close() error {
	return nil
}
