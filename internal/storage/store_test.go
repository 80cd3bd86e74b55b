package storage

import (
	"path/filepath"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndQueryKills(t *testing.T) {
	store := testStore(t)

	if err := store.SaveKills("commons", "alice", []string{"bob", "carol"}); err != nil {
		t.Fatalf("SaveKills() error: %v", err)
	}
	if err := store.SaveKills("commons", "bob", []string{"alice"}); err != nil {
		t.Fatalf("SaveKills() error: %v", err)
	}
	if err := store.SaveKills("other", "alice", []string{"dave"}); err != nil {
		t.Fatalf("SaveKills() error: %v", err)
	}

	top, err := store.TopKillers(10)
	if err != nil {
		t.Fatalf("TopKillers() error: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("len(top) = %d, want 2", len(top))
	}
	if top[0].Attacker != "alice" || top[0].Kills != 3 {
		t.Errorf("top[0] = %+v, want alice with 3 kills", top[0])
	}
	if top[1].Attacker != "bob" || top[1].Kills != 1 {
		t.Errorf("top[1] = %+v, want bob with 1 kill", top[1])
	}

	recent, err := store.RecentKills("commons", 10)
	if err != nil {
		t.Fatalf("RecentKills() error: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("len(recent) = %d, want 3", len(recent))
	}
	// Newest first.
	if recent[0].Attacker != "bob" || recent[0].Victim != "alice" {
		t.Errorf("recent[0] = %+v, want bob -> alice", recent[0])
	}
}

func TestSaveKillsWithNoVictimsIsANoOp(t *testing.T) {
	store := testStore(t)

	if err := store.SaveKills("commons", "alice", nil); err != nil {
		t.Fatalf("SaveKills() error: %v", err)
	}
	top, err := store.TopKillers(10)
	if err != nil {
		t.Fatalf("TopKillers() error: %v", err)
	}
	if len(top) != 0 {
		t.Errorf("len(top) = %d, want 0", len(top))
	}
}

func TestSaveGameCreated(t *testing.T) {
	store := testStore(t)

	if err := store.SaveGameCreated("commons"); err != nil {
		t.Fatalf("SaveGameCreated() error: %v", err)
	}

	var count int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM games WHERE name = ?`, "commons").Scan(&count); err != nil {
		t.Fatalf("query error: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	first, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if err := first.SaveKills("g", "a", []string{"b"}); err != nil {
		t.Fatalf("SaveKills() error: %v", err)
	}
	first.Close()

	second, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer second.Close()

	top, err := second.TopKillers(1)
	if err != nil {
		t.Fatalf("TopKillers() error: %v", err)
	}
	if len(top) != 1 || top[0].Attacker != "a" {
		t.Errorf("data lost across reopen: %+v", top)
	}
}
