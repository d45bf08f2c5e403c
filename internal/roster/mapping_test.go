package roster

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"goflare.io/pace/internal/models"
)

func TestDefaultMapping(t *testing.T) {
	m := Default()
	if m.Len() != 29 {
		t.Errorf("Len = %d, want 29", m.Len())
	}
	e, err := m.Lookup("4034")
	if err != nil {
		t.Fatal(err)
	}
	if e.ProviderID != "3117251" || e.TeamAbbreviation != "SF" {
		t.Errorf("4034 = %+v", e)
	}

	tracked := m.Tracked()
	if len(tracked) != m.Len() {
		t.Fatalf("Tracked = %d entities", len(tracked))
	}
	for i := 1; i < len(tracked); i++ {
		if tracked[i-1].SourceID >= tracked[i].SourceID {
			t.Fatalf("Tracked not ordered at %d", i)
		}
	}
	tracked[0].ProviderID = "mutated"
	if m.Tracked()[0].ProviderID == "mutated" {
		t.Error("Tracked exposes internal state")
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, err := Default().Lookup("nope"); !errors.Is(err, models.ErrUnknownPlayer) {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	if err := os.WriteFile(path, []byte(`{"1": {"espnId": "99", "team": "kc"}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	m, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	e, err := m.Lookup("1")
	if err != nil || e.TeamAbbreviation != "KC" || e.ProviderID != "99" {
		t.Errorf("Lookup = (%+v, %v)", e, err)
	}

	if m, err := Load(""); err != nil || m.Len() != Default().Len() {
		t.Errorf("empty path should load the default table")
	}
}

func TestParseRejectsIncompleteEntries(t *testing.T) {
	tests := []string{
		`{"1": {"team": "KC"}}`,
		`{"1": {"espnId": "2"}}`,
		`[]`,
	}
	for _, body := range tests {
		if _, err := Parse([]byte(body)); err == nil {
			t.Errorf("Parse(%s) should fail", body)
		}
	}
}
