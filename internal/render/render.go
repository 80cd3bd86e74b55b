// Package render turns a coalesced board into the picture a single
// player sees. Rendering is a pure function over engine output; the
// display origin is bottom-left, so row 0 is printed last.
package render

import (
	"strings"

	"github.com/davidsulc/nightwatch-mmo/internal/board"
	"github.com/davidsulc/nightwatch-mmo/internal/game"
)

// Picture renders the coalesced board from the viewer's point of view.
// The legend:
//
//	'#'  wall
//	' '  floor with no players
//	'@'  the viewer, alive (other occupants are hidden)
//	'&'  the viewer, dead
//	'x'  only dead players, viewer not present
//	1-9  that many alive players, viewer not present
//	'*'  more than 9 alive players, viewer not present
//
// Rows are emitted from the highest row index down to 0 and every row
// ends with a newline.
func Picture(tiles game.Coalesced, rows, cols int, viewer game.PlayerID) string {
	var sb strings.Builder
	sb.Grow((cols + 1) * rows)

	for r := rows - 1; r >= 0; r-- {
		for c := 0; c < cols; c++ {
			sb.WriteRune(glyph(tiles[board.Coord{Row: r, Col: c}], viewer))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func glyph(tile game.Tile, viewer game.PlayerID) rune {
	if tile.Cell == board.CellWall {
		return '#'
	}
	if len(tile.Occupants) == 0 {
		return ' '
	}

	if status, ok := tile.Occupants[viewer]; ok {
		if status == game.StatusAlive {
			return '@'
		}
		return '&'
	}

	alive := 0
	for _, status := range tile.Occupants {
		if status == game.StatusAlive {
			alive++
		}
	}
	switch {
	case alive == 0:
		return 'x'
	case alive > 9:
		return '*'
	default:
		return rune('0' + alive)
	}
}
