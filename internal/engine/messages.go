package engine

import (
	"github.com/google/uuid"

	"github.com/davidsulc/nightwatch-mmo/internal/board"
	"github.com/davidsulc/nightwatch-mmo/internal/game"
)

// message is a mailbox entry for the game actor. Requests carry a reply
// channel; self-messages do not.
type message interface {
	message()
}

// joinMsg asks the actor to spawn (or re-attach) a player and subscribe
// the client.
type joinMsg struct {
	player game.PlayerID
	client Client
	reply  chan joinReply
}

type joinReply struct {
	frame Frame
	err   error
}

func (joinMsg) message() {}

// moveMsg asks the actor to move a player to a destination cell.
type moveMsg struct {
	player game.PlayerID
	dest   board.Coord
	client Client
	reply  chan error
}

func (moveMsg) message() {}

// attackMsg asks the actor to resolve an attack by the player.
type attackMsg struct {
	player game.PlayerID
	client Client
	reply  chan error
}

func (attackMsg) message() {}

// respawnMsg is the deferred self-message that revives killed players
// and evicts players whose subscriber sets drained while they waited.
type respawnMsg struct {
	ids []game.PlayerID
}

func (respawnMsg) message() {}

// monitorDownMsg reports that a monitored client went away. Exactly one
// is delivered per installed monitor.
type monitorDownMsg struct {
	handle uuid.UUID
}

func (monitorDownMsg) message() {}
