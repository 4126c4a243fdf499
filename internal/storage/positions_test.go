package storage

import (
	"path/filepath"
	"testing"

	"github.com/Kalatco/smartshades/internal/db"
)

func newTestStore(t *testing.T) *PositionStore {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewPositionStore(database.DB)
}

func TestPositionStore_SetGet(t *testing.T) {
	s := newTestStore(t)

	if _, ok, err := s.Get("101"); err != nil || ok {
		t.Fatalf("empty store Get = ok=%v err=%v", ok, err)
	}

	if err := s.Set("101", "living_room", 40); err != nil {
		t.Fatalf("Set: %v", err)
	}

	p, ok, err := s.Get("101")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if p.Position != 40 || p.Room != "living_room" {
		t.Errorf("position = %+v", p)
	}
	if p.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be set")
	}
}

func TestPositionStore_SetOverwrites(t *testing.T) {
	s := newTestStore(t)

	s.Set("101", "living_room", 40)
	if err := s.Set("101", "living_room", 75); err != nil {
		t.Fatalf("Set: %v", err)
	}

	p, _, _ := s.Get("101")
	if p.Position != 75 {
		t.Errorf("position = %d, want 75", p.Position)
	}
}

func TestPositionStore_Room(t *testing.T) {
	s := newTestStore(t)

	s.Set("101", "living_room", 40)
	s.Set("102", "living_room", 60)
	s.Set("201", "bedroom", 0)

	positions, err := s.Room("living_room")
	if err != nil {
		t.Fatalf("Room: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("Room returned %d blinds, want 2", len(positions))
	}
	if positions[0].DeviceID != "101" || positions[1].DeviceID != "102" {
		t.Errorf("order = %s, %s", positions[0].DeviceID, positions[1].DeviceID)
	}
}
