// Package session runs the per-client side of a game: a small actor
// that holds a reference to one game actor, consumes its frame
// broadcasts in monotonic order, translates directional commands into
// board coordinates, and transparently rejoins if the game actor dies.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/davidsulc/nightwatch-mmo/internal/board"
	"github.com/davidsulc/nightwatch-mmo/internal/engine"
	"github.com/davidsulc/nightwatch-mmo/internal/fleet"
	"github.com/davidsulc/nightwatch-mmo/internal/game"
	"github.com/davidsulc/nightwatch-mmo/internal/render"
)

// Direction is one of the four moves a player can make.
type Direction int

const (
	Up    Direction = iota // row - 1
	Down                   // row + 1
	Left                   // col - 1
	Right                  // col + 1
)

// String returns the lower-case direction name.
func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// ParseDirection converts a direction name to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	default:
		return 0, fmt.Errorf("session: unknown direction %q", s)
	}
}

// apply returns the 4-neighbor of the coordinate in this direction.
func (d Direction) apply(c board.Coord) board.Coord {
	switch d {
	case Up:
		c.Row--
	case Down:
		c.Row++
	case Left:
		c.Col--
	case Right:
		c.Col++
	}
	return c
}

// ErrClosed is returned by commands against a session that has
// terminated. Err() carries the terminating cause.
var ErrClosed = errors.New("session: closed")

// Defaults for the reconnect/timeout knobs.
const (
	DefaultReconnectDelay    = 100 * time.Millisecond
	DefaultReconnectAttempts = 3
	DefaultCallTimeout       = 5 * time.Second
)

// Config tunes one session.
type Config struct {
	// ReconnectDelay is how long after the game actor dies the session
	// waits before trying to rejoin.
	ReconnectDelay time.Duration

	// ReconnectAttempts is how many rejoin attempts are made before the
	// session gives up and terminates with the last error.
	ReconnectAttempts int

	// CallTimeout bounds each request to the game actor.
	CallTimeout time.Duration

	// FrameBuffer sizes the client frame channel.
	FrameBuffer int

	// Logger defaults to a stderr logger.
	Logger *log.Logger
}

func (c Config) withDefaults() Config {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.ReconnectAttempts <= 0 {
		c.ReconnectAttempts = DefaultReconnectAttempts
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.FrameBuffer <= 0 {
		c.FrameBuffer = 32
	}
	if c.Logger == nil {
		c.Logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			Prefix:          "session",
		})
	}
	return c
}

// PlayerState is the cached view of the session's own player.
type PlayerState struct {
	Pos    board.Coord
	Status game.Status
}

// GameInfo is the cached board snapshot.
type GameInfo struct {
	Tiles game.Coalesced
	Rows  int
	Cols  int
}

type command struct {
	run func()
}

// Session is the per-client actor. All of its mutable state is owned by
// the run goroutine; public methods communicate with it over a command
// channel.
type Session struct {
	registry *fleet.Fleet
	gameName string
	player   game.PlayerID
	cfg      Config
	logger   *log.Logger

	commands chan command
	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}

	// Owned by the run goroutine after Start returns.
	actor     *engine.Actor
	client    *engine.ChannelClient
	latest    engine.Frame
	latestSeq int64
	viewer    PlayerState
	hasViewer bool
	closeErr  error
}

// Start resolves the game by name, joins it as the given player, and
// launches the session loop. Start fails if the game does not exist or
// the join is rejected.
func Start(registry *fleet.Fleet, gameName string, player game.PlayerID, cfg Config) (*Session, error) {
	cfg = cfg.withDefaults()
	s := &Session{
		registry: registry,
		gameName: gameName,
		player:   player,
		cfg:      cfg,
		logger:   cfg.Logger.With("game", gameName, "player", player),
		commands: make(chan command),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	if err := s.join(); err != nil {
		return nil, err
	}

	go s.run()
	return s, nil
}

// join resolves the game actor, joins it with a fresh client handle and
// primes the cached frame.
func (s *Session) join() error {
	actor, ok := s.registry.Whereis(s.gameName)
	if !ok {
		return fleet.ErrInvalidGame
	}

	client := engine.NewChannelClient(s.cfg.FrameBuffer)
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CallTimeout)
	defer cancel()

	frame, err := actor.Join(ctx, s.player, client)
	if err != nil {
		client.Close()
		return err
	}

	if s.client != nil {
		s.client.Close()
	}
	s.actor = actor
	s.client = client
	s.latest = frame
	s.latestSeq = frame.Seq
	s.refreshViewer()
	return nil
}

func (s *Session) refreshViewer() {
	pos, status, ok := s.latest.ViewerPosition(s.player)
	s.hasViewer = ok
	if ok {
		s.viewer = PlayerState{Pos: pos, Status: status}
	}
}

// run is the session's event loop: frames, commands, game-down and
// reconnect timers, all on one goroutine.
func (s *Session) run() {
	defer close(s.done)
	defer func() {
		if s.client != nil {
			s.client.Close()
		}
	}()

	attempts := 0
	var retry <-chan time.Time
	gameDown := s.actor.Done()
	frames := s.client.Frames()

	for {
		select {
		case f := <-frames:
			s.applyFrame(f)

		case cmd := <-s.commands:
			cmd.run()

		case <-gameDown:
			// Stop selecting on the dead actor and arm the retry timer.
			gameDown = nil
			frames = nil
			s.logger.Warn("game actor down, scheduling reconnect")
			retry = time.After(s.cfg.ReconnectDelay)

		case <-retry:
			retry = nil
			attempts++
			if err := s.join(); err != nil {
				s.logger.Warn("reconnect failed", "attempt", attempts, "err", err)
				if attempts >= s.cfg.ReconnectAttempts {
					s.closeErr = err
					return
				}
				retry = time.After(s.cfg.ReconnectDelay)
				continue
			}
			s.logger.Info("reconnected", "attempt", attempts)
			attempts = 0
			gameDown = s.actor.Done()
			frames = s.client.Frames()

		case <-s.quit:
			return
		}
	}
}

// applyFrame keeps only frames newer than the latest one seen; stale or
// duplicate deliveries are dropped so the exposed view never goes
// backwards.
func (s *Session) applyFrame(f engine.Frame) {
	if f.Seq <= s.latestSeq {
		return
	}
	s.latest = f
	s.latestSeq = f.Seq
	s.refreshViewer()
}

// call runs fn on the session goroutine and waits for it.
func (s *Session) call(fn func()) error {
	ready := make(chan struct{})
	cmd := command{run: func() {
		fn()
		close(ready)
	}}
	select {
	case s.commands <- cmd:
	case <-s.done:
		return s.terminationError()
	}
	select {
	case <-ready:
		return nil
	case <-s.done:
		return s.terminationError()
	}
}

func (s *Session) terminationError() error {
	if s.closeErr != nil {
		return s.closeErr
	}
	return ErrClosed
}

// Move translates the direction into a destination from the cached
// viewer position and forwards it to the game actor. The session does
// not pre-validate walkability; the actor is authoritative.
func (s *Session) Move(dir Direction) error {
	var outcome error
	err := s.call(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CallTimeout)
		defer cancel()
		dest := dir.apply(s.viewer.Pos)
		outcome = s.actor.Move(ctx, s.player, dest, s.client)
	})
	if err != nil {
		return err
	}
	return outcome
}

// Attack forwards an attack to the game actor and returns the outcome
// verbatim.
func (s *Session) Attack() error {
	var outcome error
	err := s.call(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CallTimeout)
		defer cancel()
		outcome = s.actor.Attack(ctx, s.player, s.client)
	})
	if err != nil {
		return err
	}
	return outcome
}

// PlayerState returns the cached position and status of the session's
// player.
func (s *Session) PlayerState() (PlayerState, error) {
	var state PlayerState
	err := s.call(func() {
		state = s.viewer
	})
	return state, err
}

// GameInfo returns the cached board snapshot.
func (s *Session) GameInfo() (GameInfo, error) {
	var info GameInfo
	err := s.call(func() {
		info = GameInfo{
			Tiles: s.latest.Tiles,
			Rows:  s.latest.Rows,
			Cols:  s.latest.Cols,
		}
	})
	return info, err
}

// Render returns the picture of the cached frame from this player's
// point of view.
func (s *Session) Render() (string, error) {
	var picture string
	err := s.call(func() {
		picture = render.Picture(s.latest.Tiles, s.latest.Rows, s.latest.Cols, s.player)
	})
	return picture, err
}

// Player returns the session's player id.
func (s *Session) Player() game.PlayerID {
	return s.player
}

// Game returns the name of the game this session is attached to.
func (s *Session) Game() string {
	return s.gameName
}

// Done returns a channel that closes when the session terminates.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the terminating error, if the session gave up
// reconnecting. Nil before termination and after a clean Close.
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.closeErr
	default:
		return nil
	}
}

// Close shuts the session down. Safe to call multiple times.
func (s *Session) Close() {
	s.quitOnce.Do(func() {
		close(s.quit)
	})
}
