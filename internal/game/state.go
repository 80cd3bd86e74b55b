// Package game holds the rules of a grid game as pure state transitions.
// Every transition takes a State and returns a new State plus an
// outcome; a failed transition returns the input state unchanged.
// Randomness enters only through an injected *rand.Rand, so the package
// stays deterministic under test. Ownership of a State belongs to
// exactly one engine actor at a time; nothing here is safe for
// concurrent mutation.
package game

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/davidsulc/nightwatch-mmo/internal/board"
)

// PlayerID identifies a player. Identity is caller-supplied; the engine
// does not authenticate it.
type PlayerID string

// Status is a player's liveness.
type Status int

const (
	StatusAlive Status = iota
	StatusDead
)

// String returns a human-readable name for the status.
func (s Status) String() string {
	switch s {
	case StatusAlive:
		return "alive"
	case StatusDead:
		return "dead"
	default:
		return "unknown"
	}
}

// PlayerRecord is a player's position and liveness.
type PlayerRecord struct {
	Pos    board.Coord
	Status Status
}

// State is the authoritative state of one game: a board, the player
// table and the configured limits. Killed carries the ids newly killed
// by the most recent Attack; it is metadata for the actor and is reset
// by every transition.
type State struct {
	Board      *board.Board
	Players    map[PlayerID]PlayerRecord
	MaxPlayers int // 0 means no cap
	Killed     []PlayerID
}

// New validates the options and returns the initial state with an empty
// player table.
func New(opts ...Option) (State, error) {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}
	if err := s.validate(); err != nil {
		return State{}, err
	}

	b := s.board
	if !s.boardSet {
		b = board.Default()
	}
	if s.maxDimSet && (b.Rows() > s.maxDim || b.Cols() > s.maxDim) {
		return State{}, ErrBoardTooLarge
	}

	return State{
		Board:      b,
		Players:    make(map[PlayerID]PlayerRecord),
		MaxPlayers: s.maxPlayers,
	}, nil
}

// clone returns a state sharing the board but owning a fresh player
// table, with transition metadata cleared.
func (s State) clone() State {
	players := make(map[PlayerID]PlayerRecord, len(s.Players))
	for id, rec := range s.Players {
		players[id] = rec
	}
	return State{
		Board:      s.Board,
		Players:    players,
		MaxPlayers: s.MaxPlayers,
	}
}

// Spawn places a new player on a uniformly random walkable cell, alive.
func (s State) Spawn(id PlayerID, rng *rand.Rand) (State, error) {
	if s.MaxPlayers > 0 && len(s.Players) >= s.MaxPlayers {
		return s, ErrMaxPlayers
	}
	if _, ok := s.Players[id]; ok {
		return s, ErrAlreadySpawned
	}

	next := s.clone()
	next.Players[id] = PlayerRecord{
		Pos:    s.Board.RandomWalkable(rng),
		Status: StatusAlive,
	}
	return next, nil
}

// Respawn places an existing player on a new uniformly random walkable
// cell and marks them alive. This is how dead players return after the
// respawn delay.
func (s State) Respawn(id PlayerID, rng *rand.Rand) (State, error) {
	if _, ok := s.Players[id]; !ok {
		return s, ErrInvalidPlayer
	}

	next := s.clone()
	next.Players[id] = PlayerRecord{
		Pos:    s.Board.RandomWalkable(rng),
		Status: StatusAlive,
	}
	return next, nil
}

// Move updates a player's position to the destination. The destination
// must be a walkable 4-connected neighbor of the player's current cell;
// a player's own cell counts as a neighbor, so moving in place is a
// valid no-op. Multiple players may share a cell.
func (s State) Move(id PlayerID, dest board.Coord) (State, error) {
	rec, ok := s.Players[id]
	if !ok {
		return s, ErrInvalidPlayer
	}
	if rec.Status == StatusDead {
		return s, ErrDeadPlayer
	}
	if !s.Board.Walkable(dest) {
		return s, ErrUnwalkable
	}
	if !s.Board.Neighbors(rec.Pos, dest) {
		return s, ErrUnreachable
	}

	next := s.clone()
	rec.Pos = dest
	next.Players[id] = rec
	return next, nil
}

// Attack kills every other player inside the 8-connected blast radius of
// the attacker's cell. The attacker is never affected by their own
// attack; already-dead victims stay dead. The returned state carries the
// newly killed ids in Killed, sorted for determinism.
func (s State) Attack(id PlayerID) (State, error) {
	attacker, ok := s.Players[id]
	if !ok {
		return s, ErrInvalidPlayer
	}
	if attacker.Status == StatusDead {
		return s, ErrDeadPlayer
	}

	radius := make(map[board.Coord]bool)
	for _, c := range s.Board.BlastRadius(attacker.Pos) {
		radius[c] = true
	}

	next := s.clone()
	for victim, rec := range next.Players {
		if victim == id || rec.Status == StatusDead || !radius[rec.Pos] {
			continue
		}
		rec.Status = StatusDead
		next.Players[victim] = rec
		next.Killed = append(next.Killed, victim)
	}
	sort.Slice(next.Killed, func(i, j int) bool { return next.Killed[i] < next.Killed[j] })
	return next, nil
}

// Drop removes the listed players unconditionally. The engine uses it to
// evict players whose clients have all disconnected.
func (s State) Drop(ids ...PlayerID) State {
	next := s.clone()
	for _, id := range ids {
		delete(next.Players, id)
	}
	return next
}

// Tile is one cell of a coalesced board: the underlying cell plus the
// players standing on it. Occupants is nil for cells with no players.
type Tile struct {
	Cell      board.Cell
	Occupants map[PlayerID]Status
}

// Coalesced is the per-cell view of a game with players folded into
// their cells. Its key set equals the board's cell map key set.
type Coalesced map[board.Coord]Tile

// Coalesce folds every player into the cell at their position, starting
// from the board's cell map. A player standing on a wall means the state
// is corrupt; that is a bug in the engine, not a recoverable condition,
// and Coalesce panics.
func (s State) Coalesce() Coalesced {
	tiles := make(Coalesced, s.Board.Rows()*s.Board.Cols())
	for c, cell := range s.Board.CellMap() {
		tiles[c] = Tile{Cell: cell}
	}

	for id, rec := range s.Players {
		tile := tiles[rec.Pos]
		if tile.Cell == board.CellWall {
			panic(fmt.Sprintf("game: player %q standing on wall at (%d,%d)", id, rec.Pos.Row, rec.Pos.Col))
		}
		if tile.Occupants == nil {
			tile.Occupants = make(map[PlayerID]Status)
		}
		tile.Occupants[id] = rec.Status
		tiles[rec.Pos] = tile
	}
	return tiles
}
