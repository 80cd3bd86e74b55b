package game

import "github.com/davidsulc/nightwatch-mmo/internal/board"

type settings struct {
	board        *board.Board
	boardSet     bool
	maxPlayers   int
	maxPlayerSet bool
	maxDim       int
	maxDimSet    bool
}

// Option configures New.
type Option func(*settings)

// WithBoard plays the game on the given board instead of the default.
func WithBoard(b *board.Board) Option {
	return func(s *settings) {
		s.board = b
		s.boardSet = true
	}
}

// WithMaxPlayers caps the number of players that can spawn. The cap must
// be at least 2.
func WithMaxPlayers(n int) Option {
	return func(s *settings) {
		s.maxPlayers = n
		s.maxPlayerSet = true
	}
}

// WithMaxBoardDimension rejects boards whose rows or cols exceed the
// given limit. The limit must be positive.
func WithMaxBoardDimension(n int) Option {
	return func(s *settings) {
		s.maxDim = n
		s.maxDimSet = true
	}
}

func (s *settings) validate() error {
	if s.boardSet && s.board == nil {
		return &InvalidOptionError{Name: "board"}
	}
	if s.maxPlayerSet && s.maxPlayers <= 1 {
		return &InvalidOptionError{Name: "max_players"}
	}
	if s.maxDimSet && s.maxDim <= 0 {
		return &InvalidOptionError{Name: "max_board_dimension"}
	}
	return nil
}
