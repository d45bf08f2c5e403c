package roster

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"goflare.io/pace/internal/models"
)

//go:embed default_mapping.json
var defaultMapping []byte

// Entry maps one roster-provider player to the stat provider.
type Entry struct {
	ESPNID string `json:"espnId"`
	Team   string `json:"team"`
	Name   string `json:"name,omitempty"`
}

// Mapping is the static identifier table. It is immutable once built.
type Mapping struct {
	entries map[string]Entry
	tracked []models.TrackedEntity
}

// Default returns the built-in table.
func Default() *Mapping {
	m, err := Parse(defaultMapping)
	if err != nil {
		panic(fmt.Sprintf("roster: embedded mapping is invalid: %v", err))
	}
	return m
}

// Load reads a JSON table from path. An empty path yields the built-in table.
func Load(path string) (*Mapping, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster mapping: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("roster mapping %s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a JSON object of source id to Entry.
func Parse(data []byte) (*Mapping, error) {
	var raw map[string]Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	m := &Mapping{entries: make(map[string]Entry, len(raw))}
	for id, e := range raw {
		id = strings.TrimSpace(id)
		e.ESPNID = strings.TrimSpace(e.ESPNID)
		e.Team = strings.ToUpper(strings.TrimSpace(e.Team))
		if id == "" || e.ESPNID == "" || e.Team == "" {
			return nil, fmt.Errorf("entry %q needs espnId and team", id)
		}
		m.entries[id] = e
		m.tracked = append(m.tracked, toEntity(id, e))
	}
	sort.Slice(m.tracked, func(i, j int) bool {
		return m.tracked[i].SourceID < m.tracked[j].SourceID
	})
	return m, nil
}

func toEntity(id string, e Entry) models.TrackedEntity {
	return models.TrackedEntity{
		SourceID:         id,
		ProviderID:       e.ESPNID,
		TeamAbbreviation: e.Team,
		Name:             e.Name,
	}
}

// Lookup resolves a roster-provider id.
func (m *Mapping) Lookup(id string) (models.TrackedEntity, error) {
	e, ok := m.entries[strings.TrimSpace(id)]
	if !ok {
		return models.TrackedEntity{}, fmt.Errorf("%w: %s", models.ErrUnknownPlayer, id)
	}
	return toEntity(id, e), nil
}

// Tracked returns every mapped player ordered by source id.
func (m *Mapping) Tracked() []models.TrackedEntity {
	out := make([]models.TrackedEntity, len(m.tracked))
	copy(out, m.tracked)
	return out
}

// Len 返回映射數量
func (m *Mapping) Len() int {
	return len(m.entries)
}
