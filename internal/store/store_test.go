package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"goflare.io/pace/internal/models"
	"goflare.io/pace/pkg/serialization"
)

func leg(player string, stat models.StatType, target float64) models.Leg {
	return models.Leg{PlayerID: player, StatType: stat, Target: target}
}

func legIDs(p models.Parlay) []string {
	ids := make([]string, len(p.Legs))
	for i, l := range p.Legs {
		ids[i] = l.ID
	}
	return ids
}

func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("create list rename delete", func(t *testing.T) {
		s := newStore(t)
		a, err := s.CreateParlay(ctx, "Sunday")
		if err != nil {
			t.Fatal(err)
		}
		b, _ := s.CreateParlay(ctx, "  Monday  ")
		if b.Name != "Monday" || b.Order != 1 || a.Order != 0 {
			t.Errorf("a = %+v, b = %+v", a, b)
		}
		if _, err := s.CreateParlay(ctx, " "); !errors.Is(err, models.ErrInvalidParlay) {
			t.Errorf("blank name err = %v", err)
		}

		renamed, err := s.RenameParlay(ctx, a.ID, "Sunday Night")
		if err != nil || renamed.Name != "Sunday Night" {
			t.Fatalf("rename = (%+v, %v)", renamed, err)
		}
		if _, err := s.RenameParlay(ctx, "missing", "x"); !errors.Is(err, models.ErrParlayNotFound) {
			t.Errorf("rename missing err = %v", err)
		}

		if _, _, err := s.AddLeg(ctx, a.ID, leg("4034", models.RushingYards, 1200)); err != nil {
			t.Fatal(err)
		}
		if err := s.DeleteParlay(ctx, a.ID); err != nil {
			t.Fatal(err)
		}
		if _, err := s.GetParlay(ctx, a.ID); !errors.Is(err, models.ErrParlayNotFound) {
			t.Errorf("deleted parlay still readable: %v", err)
		}
		list, _ := s.ListParlays(ctx)
		if len(list) != 1 || list[0].ID != b.ID || list[0].Order != 0 {
			t.Errorf("list after delete = %+v", list)
		}
	})

	t.Run("reorder parlays", func(t *testing.T) {
		s := newStore(t)
		a, _ := s.CreateParlay(ctx, "a")
		b, _ := s.CreateParlay(ctx, "b")
		c, _ := s.CreateParlay(ctx, "c")

		if err := s.ReorderParlays(ctx, []string{c.ID, a.ID}); err != nil {
			t.Fatal(err)
		}
		list, _ := s.ListParlays(ctx)
		got := []string{list[0].ID, list[1].ID, list[2].ID}
		want := []string{c.ID, a.ID, b.ID}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("order = %v, want %v", got, want)
			}
		}
		if err := s.ReorderParlays(ctx, []string{"nope"}); !errors.Is(err, models.ErrParlayNotFound) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("add leg dedups and appends", func(t *testing.T) {
		s := newStore(t)
		p, _ := s.CreateParlay(ctx, "p")

		first, created, err := s.AddLeg(ctx, p.ID, leg("4034", "rushingTD", 10))
		if err != nil || !created {
			t.Fatalf("AddLeg = (%+v, %v, %v)", first, created, err)
		}
		if first.StatType != models.RushingTouchdowns || first.ParlayID != p.ID || first.ID == "" {
			t.Errorf("first = %+v", first)
		}
		dup, created, err := s.AddLeg(ctx, p.ID, leg("4034", models.RushingTouchdowns, 12))
		if err != nil || created || dup.ID != first.ID || dup.Target != 10 {
			t.Errorf("duplicate = (%+v, %v, %v)", dup, created, err)
		}
		second, _, _ := s.AddLeg(ctx, p.ID, leg("4034", models.RushingYards, 1000))
		if second.Order != 1 {
			t.Errorf("second.Order = %d", second.Order)
		}

		if _, _, err := s.AddLeg(ctx, p.ID, leg("1", models.RushingYards, 0)); !errors.Is(err, models.ErrInvalidTarget) {
			t.Errorf("zero target err = %v", err)
		}
		if _, _, err := s.AddLeg(ctx, p.ID, leg("1", "tackles", 5)); !errors.Is(err, models.ErrUnknownStatType) {
			t.Errorf("bad stat err = %v", err)
		}
		if _, _, err := s.AddLeg(ctx, p.ID, leg("", models.RushingYards, 5)); !errors.Is(err, models.ErrInvalidLeg) {
			t.Errorf("missing player err = %v", err)
		}
		if _, _, err := s.AddLeg(ctx, "missing", leg("1", models.RushingYards, 5)); !errors.Is(err, models.ErrParlayNotFound) {
			t.Errorf("missing parlay err = %v", err)
		}
	})

	t.Run("delete and reorder legs", func(t *testing.T) {
		s := newStore(t)
		p, _ := s.CreateParlay(ctx, "p")
		a, _, _ := s.AddLeg(ctx, p.ID, leg("1", models.RushingYards, 100))
		b, _, _ := s.AddLeg(ctx, p.ID, leg("2", models.RushingYards, 100))
		c, _, _ := s.AddLeg(ctx, p.ID, leg("3", models.RushingYards, 100))

		if err := s.ReorderLegs(ctx, p.ID, []string{c.ID, a.ID}); err != nil {
			t.Fatal(err)
		}
		got, _ := s.GetParlay(ctx, p.ID)
		if ids := legIDs(got); ids[0] != c.ID || ids[1] != a.ID || ids[2] != b.ID {
			t.Errorf("order = %v", ids)
		}
		for i, l := range got.Legs {
			if l.Order != i {
				t.Errorf("leg %s order = %d, want %d", l.ID, l.Order, i)
			}
		}

		if err := s.DeleteLeg(ctx, p.ID, a.ID); err != nil {
			t.Fatal(err)
		}
		if err := s.DeleteLeg(ctx, p.ID, a.ID); !errors.Is(err, models.ErrLegNotFound) {
			t.Errorf("second delete err = %v", err)
		}
		if err := s.ReorderLegs(ctx, p.ID, []string{"ghost"}); !errors.Is(err, models.ErrLegNotFound) {
			t.Errorf("reorder unknown err = %v", err)
		}
		got, _ = s.GetParlay(ctx, p.ID)
		if len(got.Legs) != 2 || got.Legs[1].Order != 1 {
			t.Errorf("legs = %+v", got.Legs)
		}
	})

	t.Run("move leg between parlays", func(t *testing.T) {
		s := newStore(t)
		from, _ := s.CreateParlay(ctx, "from")
		to, _ := s.CreateParlay(ctx, "to")
		moving, _, _ := s.AddLeg(ctx, from.ID, leg("1", models.ReceivingYards, 900))
		_, _, _ = s.AddLeg(ctx, from.ID, leg("2", models.ReceivingYards, 900))
		x, _, _ := s.AddLeg(ctx, to.ID, leg("3", models.ReceivingYards, 900))
		y, _, _ := s.AddLeg(ctx, to.ID, leg("4", models.ReceivingYards, 900))

		moved, err := s.MoveLeg(ctx, moving.ID, to.ID, 1)
		if err != nil {
			t.Fatal(err)
		}
		if moved.ParlayID != to.ID || moved.Order != 1 {
			t.Errorf("moved = %+v", moved)
		}
		dest, _ := s.GetParlay(ctx, to.ID)
		if ids := legIDs(dest); len(ids) != 3 || ids[0] != x.ID || ids[1] != moving.ID || ids[2] != y.ID {
			t.Errorf("dest order = %v", ids)
		}
		src, _ := s.GetParlay(ctx, from.ID)
		if len(src.Legs) != 1 || src.Legs[0].Order != 0 {
			t.Errorf("src legs = %+v", src.Legs)
		}

		if _, err := s.MoveLeg(ctx, moving.ID, to.ID, 99); err != nil {
			t.Fatal(err)
		}
		dest, _ = s.GetParlay(ctx, to.ID)
		if dest.Legs[2].ID != moving.ID {
			t.Errorf("index should clamp to the end: %v", legIDs(dest))
		}

		if _, err := s.MoveLeg(ctx, "ghost", to.ID, 0); !errors.Is(err, models.ErrLegNotFound) {
			t.Errorf("err = %v", err)
		}
		if _, err := s.MoveLeg(ctx, moving.ID, "ghost", 0); !errors.Is(err, models.ErrParlayNotFound) {
			t.Errorf("err = %v", err)
		}

		dupe, _, _ := s.AddLeg(ctx, from.ID, leg("3", models.ReceivingYards, 500))
		if _, err := s.MoveLeg(ctx, dupe.ID, to.ID, 0); !errors.Is(err, models.ErrInvalidLeg) {
			t.Errorf("moving onto a duplicate err = %v", err)
		}
	})

	t.Run("returned parlays are copies", func(t *testing.T) {
		s := newStore(t)
		p, _ := s.CreateParlay(ctx, "p")
		_, _, _ = s.AddLeg(ctx, p.ID, leg("1", models.PassingYards, 4000))
		got, _ := s.GetParlay(ctx, p.ID)
		got.Legs[0].Target = 1
		again, _ := s.GetParlay(ctx, p.ID)
		if again.Legs[0].Target != 4000 {
			t.Error("caller mutation leaked into the store")
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		return NewMemoryStore(nil)
	})
}

// TestRedisStore needs a live server: PACE_TEST_REDIS_URL=redis://localhost:6379/0
func TestRedisStore(t *testing.T) {
	url := os.Getenv("PACE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("PACE_TEST_REDIS_URL not set")
	}
	for _, codecType := range []string{serialization.JSONType, serialization.GobType} {
		t.Run(codecType, func(t *testing.T) {
			codec, _ := serialization.For(codecType)
			runStoreSuite(t, func(t *testing.T) Store {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				prefix := "pace-test-" + uuid.NewString()
				s, err := NewRedisStoreFromURL(ctx, url, prefix, codec, nil)
				if err != nil {
					t.Fatalf("connect: %v", err)
				}
				t.Cleanup(func() {
					_ = s.client.Del(context.Background(), s.key).Err()
					_ = s.Close()
				})
				return s
			})
		})
	}
}

func TestRedisStoreCodecRoundTrip(t *testing.T) {
	for _, codecType := range []string{serialization.JSONType, serialization.GobType} {
		t.Run(codecType, func(t *testing.T) {
			codec, err := serialization.For(codecType)
			if err != nil {
				t.Fatal(err)
			}
			r := &RedisStore{codec: codec}

			st := newState()
			p, _ := st.create("p1", "Sunday", time.Date(2025, 9, 7, 17, 0, 0, 0, time.UTC))
			_, _, _ = st.addLeg(p.ID, leg("4034", models.RushingYards, 1200), "l1")

			data, err := r.encode(st)
			if err != nil {
				t.Fatal(err)
			}
			back, err := r.decode(data)
			if err != nil {
				t.Fatal(err)
			}
			got := back.Parlays["p1"]
			if got == nil || got.Name != "Sunday" || len(got.Legs) != 1 || got.Legs[0].ID != "l1" {
				t.Fatalf("decoded = %+v", got)
			}
			if !got.CreatedAt.Equal(p.CreatedAt) {
				t.Errorf("CreatedAt = %v", got.CreatedAt)
			}
		})
	}
}

func TestNewRedisStoreFromURLRejectsBadURL(t *testing.T) {
	codec, _ := serialization.For("")
	if _, err := NewRedisStoreFromURL(context.Background(), "not a url", "p", codec, nil); err == nil {
		t.Fatal("expected error")
	}
}
