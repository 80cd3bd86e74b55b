package game

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/davidsulc/nightwatch-mmo/internal/board"
)

// testState builds a game on the default board with players placed at
// fixed coordinates, all alive.
func testState(t *testing.T, players map[PlayerID]board.Coord) State {
	t.Helper()
	s, err := New()
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	for id, pos := range players {
		if !s.Board.Walkable(pos) {
			t.Fatalf("test placement (%d,%d) is not walkable", pos.Row, pos.Col)
		}
		s.Players[id] = PlayerRecord{Pos: pos, Status: StatusAlive}
	}
	return s
}

func TestNewOptionValidation(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr error
	}{
		{
			name: "defaults",
		},
		{
			name: "valid caps",
			opts: []Option{WithMaxPlayers(4), WithMaxBoardDimension(20)},
		},
		{
			name:    "nil board",
			opts:    []Option{WithBoard(nil)},
			wantErr: &InvalidOptionError{Name: "board"},
		},
		{
			name:    "max players below two",
			opts:    []Option{WithMaxPlayers(1)},
			wantErr: &InvalidOptionError{Name: "max_players"},
		},
		{
			name:    "zero max dimension",
			opts:    []Option{WithMaxBoardDimension(0)},
			wantErr: &InvalidOptionError{Name: "max_board_dimension"},
		},
		{
			name:    "board exceeds max dimension",
			opts:    []Option{WithMaxBoardDimension(5)},
			wantErr: ErrBoardTooLarge,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s, err := New(tc.opts...)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("New() error: %v", err)
				}
				if len(s.Players) != 0 {
					t.Errorf("new state has %d players, want 0", len(s.Players))
				}
				return
			}

			var wantOpt, gotOpt *InvalidOptionError
			if errors.As(tc.wantErr, &wantOpt) {
				if !errors.As(err, &gotOpt) || gotOpt.Name != wantOpt.Name {
					t.Fatalf("New() error = %v, want invalid option %q", err, wantOpt.Name)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("New() error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestSpawn(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	t.Run("places player alive on a walkable cell", func(t *testing.T) {
		s := testState(t, nil)
		next, err := s.Spawn("me", rng)
		if err != nil {
			t.Fatalf("Spawn() error: %v", err)
		}
		rec, ok := next.Players["me"]
		if !ok {
			t.Fatal("player missing after spawn")
		}
		if rec.Status != StatusAlive {
			t.Errorf("status = %v, want alive", rec.Status)
		}
		if !next.Board.Walkable(rec.Pos) {
			t.Errorf("spawned on non-walkable cell %v", rec.Pos)
		}
		if len(s.Players) != 0 {
			t.Error("input state mutated by Spawn")
		}
	})

	t.Run("rejects duplicate id", func(t *testing.T) {
		s := testState(t, map[PlayerID]board.Coord{"me": {Row: 1, Col: 1}})
		if _, err := s.Spawn("me", rng); !errors.Is(err, ErrAlreadySpawned) {
			t.Errorf("error = %v, want ErrAlreadySpawned", err)
		}
	})

	t.Run("enforces player cap", func(t *testing.T) {
		s, err := New(WithMaxPlayers(2))
		if err != nil {
			t.Fatalf("New() error: %v", err)
		}
		for _, id := range []PlayerID{"a", "b"} {
			if s, err = s.Spawn(id, rng); err != nil {
				t.Fatalf("Spawn(%s) error: %v", id, err)
			}
		}
		if _, err := s.Spawn("c", rng); !errors.Is(err, ErrMaxPlayers) {
			t.Errorf("error = %v, want ErrMaxPlayers", err)
		}
	})
}

func TestRespawn(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	t.Run("revives a dead player on a walkable cell", func(t *testing.T) {
		s := testState(t, map[PlayerID]board.Coord{"me": {Row: 1, Col: 1}})
		rec := s.Players["me"]
		rec.Status = StatusDead
		s.Players["me"] = rec

		next, err := s.Respawn("me", rng)
		if err != nil {
			t.Fatalf("Respawn() error: %v", err)
		}
		got := next.Players["me"]
		if got.Status != StatusAlive {
			t.Errorf("status = %v, want alive", got.Status)
		}
		if !next.Board.Walkable(got.Pos) {
			t.Errorf("respawned on non-walkable cell %v", got.Pos)
		}
	})

	t.Run("unknown player", func(t *testing.T) {
		s := testState(t, nil)
		if _, err := s.Respawn("ghost", rng); !errors.Is(err, ErrInvalidPlayer) {
			t.Errorf("error = %v, want ErrInvalidPlayer", err)
		}
	})
}

func TestMove(t *testing.T) {
	tests := []struct {
		name    string
		dest    board.Coord
		wantErr error
	}{
		{"onto neighbor floor", board.Coord{Row: 1, Col: 2}, nil},
		{"in place is a no-op move", board.Coord{Row: 1, Col: 1}, nil},
		{"into border wall", board.Coord{Row: 1, Col: 0}, ErrUnwalkable},
		{"diagonal", board.Coord{Row: 2, Col: 2}, ErrUnreachable},
		{"two cells away", board.Coord{Row: 1, Col: 3}, ErrUnreachable},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := testState(t, map[PlayerID]board.Coord{"me": {Row: 1, Col: 1}})
			next, err := s.Move("me", tc.dest)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Move() error = %v, want %v", err, tc.wantErr)
			}
			if tc.wantErr != nil {
				if next.Players["me"].Pos != (board.Coord{Row: 1, Col: 1}) {
					t.Error("failed move changed the player's position")
				}
				return
			}
			if next.Players["me"].Pos != tc.dest {
				t.Errorf("position = %v, want %v", next.Players["me"].Pos, tc.dest)
			}
		})
	}

	t.Run("unknown player", func(t *testing.T) {
		s := testState(t, nil)
		if _, err := s.Move("ghost", board.Coord{Row: 1, Col: 2}); !errors.Is(err, ErrInvalidPlayer) {
			t.Errorf("error = %v, want ErrInvalidPlayer", err)
		}
	})

	t.Run("dead player cannot move", func(t *testing.T) {
		s := testState(t, map[PlayerID]board.Coord{"me": {Row: 1, Col: 1}})
		rec := s.Players["me"]
		rec.Status = StatusDead
		s.Players["me"] = rec
		if _, err := s.Move("me", board.Coord{Row: 1, Col: 2}); !errors.Is(err, ErrDeadPlayer) {
			t.Errorf("error = %v, want ErrDeadPlayer", err)
		}
	})

	t.Run("players may share a cell", func(t *testing.T) {
		s := testState(t, map[PlayerID]board.Coord{"a": {Row: 1, Col: 1}, "b": {Row: 1, Col: 2}})
		next, err := s.Move("a", board.Coord{Row: 1, Col: 2})
		if err != nil {
			t.Fatalf("Move() error: %v", err)
		}
		if next.Players["a"].Pos != next.Players["b"].Pos {
			t.Error("expected both players on the same cell")
		}
	})
}

func TestAttack(t *testing.T) {
	t.Run("kills everyone in the blast radius except the attacker", func(t *testing.T) {
		// The 3x3 around (2,3) covers rows 1-3, cols 2-4. Players inside
		// die; (2,5) and (8,7) are outside and survive.
		s := testState(t, map[PlayerID]board.Coord{
			"me":   {Row: 2, Col: 3},
			"a":    {Row: 1, Col: 2},
			"c":    {Row: 2, Col: 2},
			"d":    {Row: 2, Col: 3},
			"e":    {Row: 3, Col: 2},
			"g":    {Row: 3, Col: 3},
			"z":    {Row: 1, Col: 4},
			"oor1": {Row: 2, Col: 5},
			"oor2": {Row: 8, Col: 7},
		})

		next, err := s.Attack("me")
		if err != nil {
			t.Fatalf("Attack() error: %v", err)
		}

		wantDead := []PlayerID{"a", "c", "d", "e", "g", "z"}
		for _, id := range wantDead {
			if next.Players[id].Status != StatusDead {
				t.Errorf("%s should be dead", id)
			}
		}
		for _, id := range []PlayerID{"me", "oor1", "oor2"} {
			if next.Players[id].Status != StatusAlive {
				t.Errorf("%s should be alive", id)
			}
		}

		if len(next.Killed) != len(wantDead) {
			t.Fatalf("Killed = %v, want %v", next.Killed, wantDead)
		}
		for i, id := range wantDead {
			if next.Killed[i] != id {
				t.Errorf("Killed[%d] = %s, want %s", i, next.Killed[i], id)
			}
		}
	})

	t.Run("attacker survives their own attack", func(t *testing.T) {
		s := testState(t, map[PlayerID]board.Coord{"me": {Row: 2, Col: 3}})
		next, err := s.Attack("me")
		if err != nil {
			t.Fatalf("Attack() error: %v", err)
		}
		if next.Players["me"].Status != StatusAlive {
			t.Error("attacker killed by own attack")
		}
	})

	t.Run("already-dead victims are not re-killed", func(t *testing.T) {
		s := testState(t, map[PlayerID]board.Coord{"me": {Row: 2, Col: 3}, "corpse": {Row: 2, Col: 2}})
		rec := s.Players["corpse"]
		rec.Status = StatusDead
		s.Players["corpse"] = rec

		next, err := s.Attack("me")
		if err != nil {
			t.Fatalf("Attack() error: %v", err)
		}
		if len(next.Killed) != 0 {
			t.Errorf("Killed = %v, want empty", next.Killed)
		}
	})

	t.Run("dead attacker", func(t *testing.T) {
		s := testState(t, map[PlayerID]board.Coord{"me": {Row: 2, Col: 3}})
		rec := s.Players["me"]
		rec.Status = StatusDead
		s.Players["me"] = rec
		if _, err := s.Attack("me"); !errors.Is(err, ErrDeadPlayer) {
			t.Errorf("error = %v, want ErrDeadPlayer", err)
		}
	})

	t.Run("unknown attacker", func(t *testing.T) {
		s := testState(t, nil)
		if _, err := s.Attack("ghost"); !errors.Is(err, ErrInvalidPlayer) {
			t.Errorf("error = %v, want ErrInvalidPlayer", err)
		}
	})

	t.Run("metadata does not leak into later transitions", func(t *testing.T) {
		s := testState(t, map[PlayerID]board.Coord{"me": {Row: 2, Col: 3}, "other": {Row: 2, Col: 2}})
		next, err := s.Attack("me")
		if err != nil {
			t.Fatalf("Attack() error: %v", err)
		}
		if len(next.Killed) != 1 {
			t.Fatalf("Killed = %v, want [other]", next.Killed)
		}
		moved, err := next.Move("me", board.Coord{Row: 2, Col: 4})
		if err != nil {
			t.Fatalf("Move() error: %v", err)
		}
		if len(moved.Killed) != 0 {
			t.Errorf("Killed survived a later transition: %v", moved.Killed)
		}
	})
}

func TestDrop(t *testing.T) {
	s := testState(t, map[PlayerID]board.Coord{"a": {Row: 1, Col: 1}, "b": {Row: 1, Col: 2}, "c": {Row: 1, Col: 3}})
	next := s.Drop("a", "c", "ghost")

	if _, ok := next.Players["a"]; ok {
		t.Error("a should be gone")
	}
	if _, ok := next.Players["c"]; ok {
		t.Error("c should be gone")
	}
	if _, ok := next.Players["b"]; !ok {
		t.Error("b should remain")
	}
	if len(s.Players) != 3 {
		t.Error("input state mutated by Drop")
	}
}

func TestCoalesce(t *testing.T) {
	t.Run("key set equals the board cell map", func(t *testing.T) {
		s := testState(t, map[PlayerID]board.Coord{"a": {Row: 1, Col: 1}, "b": {Row: 1, Col: 1}})
		tiles := s.Coalesce()

		cells := s.Board.CellMap()
		if len(tiles) != len(cells) {
			t.Fatalf("tile count = %d, want %d", len(tiles), len(cells))
		}
		for c := range cells {
			if _, ok := tiles[c]; !ok {
				t.Errorf("missing tile for %v", c)
			}
		}
	})

	t.Run("players fold into their cells", func(t *testing.T) {
		s := testState(t, map[PlayerID]board.Coord{"a": {Row: 1, Col: 1}, "b": {Row: 1, Col: 1}, "c": {Row: 1, Col: 2}})
		tiles := s.Coalesce()

		if got := len(tiles[board.Coord{Row: 1, Col: 1}].Occupants); got != 2 {
			t.Errorf("occupants at (1,1) = %d, want 2", got)
		}
		if got := len(tiles[board.Coord{Row: 1, Col: 2}].Occupants); got != 1 {
			t.Errorf("occupants at (1,2) = %d, want 1", got)
		}
		if tiles[board.Coord{Row: 1, Col: 3}].Occupants != nil {
			t.Error("empty floor cell should have no occupants map")
		}
		if tiles[board.Coord{Row: 0, Col: 0}].Cell != board.CellWall {
			t.Error("wall cell lost its kind")
		}
	})

	t.Run("player on a wall is a fatal invariant", func(t *testing.T) {
		s := testState(t, nil)
		s.Players["bug"] = PlayerRecord{Pos: board.Coord{Row: 0, Col: 0}, Status: StatusAlive}

		defer func() {
			if recover() == nil {
				t.Error("expected panic for player on wall")
			}
		}()
		s.Coalesce()
	})
}

// Any sequence of successful transitions keeps every player on a
// walkable cell.
func TestPositionsStayWalkable(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	s := testState(t, nil)

	ids := []PlayerID{"p1", "p2", "p3", "p4"}
	for _, id := range ids {
		var err error
		if s, err = s.Spawn(id, rng); err != nil {
			t.Fatalf("Spawn(%s) error: %v", id, err)
		}
	}

	dirs := []board.Coord{{Row: -1, Col: 0}, {Row: 1, Col: 0}, {Row: 0, Col: -1}, {Row: 0, Col: 1}}
	for i := 0; i < 500; i++ {
		id := ids[rng.Intn(len(ids))]
		switch rng.Intn(3) {
		case 0:
			d := dirs[rng.Intn(len(dirs))]
			pos := s.Players[id].Pos
			dest := board.Coord{Row: pos.Row + d.Row, Col: pos.Col + d.Col}
			if next, err := s.Move(id, dest); err == nil {
				s = next
			}
		case 1:
			if next, err := s.Attack(id); err == nil {
				s = next
			}
		case 2:
			if next, err := s.Respawn(id, rng); err == nil {
				s = next
			}
		}

		for id, rec := range s.Players {
			if !s.Board.Walkable(rec.Pos) {
				t.Fatalf("step %d: %s on non-walkable cell %v", i, id, rec.Pos)
			}
		}
	}
}
