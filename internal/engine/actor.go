// Package engine runs one authoritative actor per game. The actor is
// the sole writer of its game state: every request is serialized through
// a bounded mailbox and handled on a single goroutine, so no lock ever
// guards the state itself. Time, randomness, timers and client handles
// all live here, keeping the game package pure.
package engine

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/davidsulc/nightwatch-mmo/internal/board"
	"github.com/davidsulc/nightwatch-mmo/internal/game"
)

// ErrGameDown is returned by requests against an actor that has
// terminated.
var ErrGameDown = errors.New("engine: game is not running")

// errInternal is replied when a pure transition panics. That is a bug;
// the actor logs it and continues with the unchanged state.
var errInternal = errors.New("engine: internal error")

// DefaultRespawnDelay is how long killed players wait before returning.
const DefaultRespawnDelay = 5 * time.Second

const defaultMailboxSize = 256

// Frame is a versioned snapshot broadcast to every subscriber. Seq is
// strictly increasing across all frames one actor emits, so receivers
// resolve out-of-order delivery by dropping anything older than what
// they have.
type Frame struct {
	Seq   int64
	Tiles game.Coalesced
	Rows  int
	Cols  int
}

// ViewerPosition scans the frame for the given player and returns their
// position and status, or ok=false if the player is not on the board.
func (f Frame) ViewerPosition(id game.PlayerID) (board.Coord, game.Status, bool) {
	for c, tile := range f.Tiles {
		if status, ok := tile.Occupants[id]; ok {
			return c, status, true
		}
	}
	return board.Coord{}, game.StatusDead, false
}

// EventRecorder receives game history events. Implementations must be
// fast or buffer internally; the actor calls them on its own goroutine.
type EventRecorder interface {
	RecordKills(gameName, attacker string, victims []string)
}

// Config tunes one game actor.
type Config struct {
	// RespawnDelay is how long after a kill the victims are revived.
	// Zero means DefaultRespawnDelay.
	RespawnDelay time.Duration

	// MailboxSize bounds the request queue. Zero means the default.
	MailboxSize int

	// Rand drives spawn and respawn placement. Nil means a time-seeded
	// source; tests inject a seeded one.
	Rand *rand.Rand

	// Logger defaults to a stderr logger with the "engine" prefix and the
	// game name as a field.
	Logger *log.Logger

	// Recorder, when set, receives kill events for the history store.
	Recorder EventRecorder
}

func (c Config) withDefaults(name string) Config {
	if c.RespawnDelay <= 0 {
		c.RespawnDelay = DefaultRespawnDelay
	}
	if c.MailboxSize <= 0 {
		c.MailboxSize = defaultMailboxSize
	}
	if c.Rand == nil {
		c.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if c.Logger == nil {
		c.Logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			Prefix:          "engine",
		}).With("game", name)
	}
	return c
}

// monitorTarget records which subscription a monitor handle guards.
type monitorTarget struct {
	player   game.PlayerID
	clientID string
}

// Actor owns one game's state and serializes all access to it.
type Actor struct {
	name    string
	cfg     Config
	logger  *log.Logger
	mailbox chan message

	// quit is closed by Stop; done is closed when the run loop exits
	// for any reason, which is what monitors observe.
	quit     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	// Everything below is owned by the run goroutine.
	state       game.State
	subscribers map[game.PlayerID]map[string]Client
	monitors    map[uuid.UUID]monitorTarget
	lastSeq     int64
}

// Start validates the game options, creates the actor and launches its
// run loop.
func Start(name string, cfg Config, opts ...game.Option) (*Actor, error) {
	state, err := game.New(opts...)
	if err != nil {
		return nil, err
	}

	cfg = cfg.withDefaults(name)
	a := &Actor{
		name:        name,
		cfg:         cfg,
		logger:      cfg.Logger,
		mailbox:     make(chan message, cfg.MailboxSize),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
		state:       state,
		subscribers: make(map[game.PlayerID]map[string]Client),
		monitors:    make(map[uuid.UUID]monitorTarget),
	}

	go a.run()
	return a, nil
}

// Name returns the game name the actor was registered under.
func (a *Actor) Name() string {
	return a.name
}

// Done returns a channel that closes when the actor terminates for any
// reason. Sessions monitor it to drive reconnection.
func (a *Actor) Done() <-chan struct{} {
	return a.done
}

// Stop terminates the actor. Safe to call multiple times.
func (a *Actor) Stop() {
	a.stopOnce.Do(func() {
		close(a.quit)
	})
}

// Join spawns the player (or re-attaches a reconnecting one), subscribes
// the client to frame broadcasts, and returns the current frame. The
// only join failure a caller can see is the player cap.
func (a *Actor) Join(ctx context.Context, player game.PlayerID, client Client) (Frame, error) {
	reply := make(chan joinReply, 1)
	if err := a.post(ctx, joinMsg{player: player, client: client, reply: reply}); err != nil {
		return Frame{}, err
	}
	select {
	case r := <-reply:
		return r.frame, r.err
	case <-a.done:
		return Frame{}, ErrGameDown
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// Move applies a move for the player and returns the pure outcome.
func (a *Actor) Move(ctx context.Context, player game.PlayerID, dest board.Coord, client Client) error {
	reply := make(chan error, 1)
	if err := a.post(ctx, moveMsg{player: player, dest: dest, client: client, reply: reply}); err != nil {
		return err
	}
	return a.awaitOutcome(ctx, reply)
}

// Attack resolves an attack by the player and returns the pure outcome.
// Kills schedule a deferred respawn.
func (a *Actor) Attack(ctx context.Context, player game.PlayerID, client Client) error {
	reply := make(chan error, 1)
	if err := a.post(ctx, attackMsg{player: player, client: client, reply: reply}); err != nil {
		return err
	}
	return a.awaitOutcome(ctx, reply)
}

func (a *Actor) post(ctx context.Context, msg message) error {
	select {
	case a.mailbox <- msg:
		return nil
	case <-a.done:
		return ErrGameDown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// send posts a self-message from a timer or monitor goroutine, giving
// up silently if the actor has terminated.
func (a *Actor) send(msg message) {
	select {
	case a.mailbox <- msg:
	case <-a.done:
	}
}

func (a *Actor) awaitOutcome(ctx context.Context, reply chan error) error {
	select {
	case err := <-reply:
		return err
	case <-a.done:
		return ErrGameDown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the actor's single-writer event loop. Requests are processed
// strictly in mailbox order; the broadcast for request n is delivered
// before request n+1 begins. A panic out of a handler means the state
// violated an invariant; that is fatal to this actor, and the fleet
// does not restart it.
func (a *Actor) run() {
	defer close(a.done)
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("game state corrupt, shutting down", "panic", r)
		}
	}()

	for {
		select {
		case msg := <-a.mailbox:
			a.handle(msg)
		case <-a.quit:
			a.logger.Info("game stopped")
			return
		}
	}
}

func (a *Actor) handle(msg message) {
	switch m := msg.(type) {
	case joinMsg:
		a.handleJoin(m)
	case moveMsg:
		a.handleMove(m)
	case attackMsg:
		a.handleAttack(m)
	case respawnMsg:
		a.handleRespawn(m)
	case monitorDownMsg:
		a.handleMonitorDown(m)
	}
}

// apply guards a pure transition. Transitions report failures as
// errors; a panic out of one is a bug, and the actor keeps running with
// the unchanged state. The coalesce invariant in broadcast is the one
// deliberately fatal path.
func (a *Actor) apply(fn func() (game.State, error)) (next game.State, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("transition panicked, state unchanged", "panic", r)
			next, err = a.state, errInternal
		}
	}()
	return fn()
}

func (a *Actor) handleJoin(m joinMsg) {
	next, err := a.apply(func() (game.State, error) {
		return a.state.Spawn(m.player, a.cfg.Rand)
	})
	switch {
	case err == nil:
		a.state = next
	case errors.Is(err, game.ErrAlreadySpawned):
		// Reconnect: keep the existing record, just attach the client.
	default:
		m.reply <- joinReply{err: err}
		return
	}

	a.subscribe(m.player, m.client)
	frame := a.broadcast()
	m.reply <- joinReply{frame: frame}
}

func (a *Actor) handleMove(m moveMsg) {
	next, err := a.apply(func() (game.State, error) {
		return a.state.Move(m.player, m.dest)
	})
	if err == nil {
		a.state = next
	} else {
		a.logger.Debug("move rejected", "player", m.player, "err", err)
	}

	a.subscribe(m.player, m.client)
	a.broadcast()
	m.reply <- err
}

func (a *Actor) handleAttack(m attackMsg) {
	next, err := a.apply(func() (game.State, error) {
		return a.state.Attack(m.player)
	})
	if err == nil {
		a.state = next
		if len(next.Killed) > 0 {
			a.recordKills(m.player, next.Killed)
			a.scheduleRespawn(next.Killed)
		}
	} else {
		a.logger.Debug("attack rejected", "player", m.player, "err", err)
	}

	a.subscribe(m.player, m.client)
	a.broadcast()
	m.reply <- err
}

// handleRespawn first evicts players whose subscriber sets drained while
// the timer ran, then revives the waiting victims. A victim who was
// evicted in the meantime is silently skipped.
func (a *Actor) handleRespawn(m respawnMsg) {
	var gone []game.PlayerID
	for player, set := range a.subscribers {
		if len(set) == 0 {
			gone = append(gone, player)
			delete(a.subscribers, player)
		}
	}
	if len(gone) > 0 {
		a.state = a.state.Drop(gone...)
		a.logger.Info("evicted disconnected players", "players", gone)
	}

	for _, id := range m.ids {
		next, err := a.state.Respawn(id, a.cfg.Rand)
		if err == nil {
			a.state = next
		}
	}
	a.broadcast()
}

func (a *Actor) handleMonitorDown(m monitorDownMsg) {
	target, ok := a.monitors[m.handle]
	if !ok {
		return
	}
	delete(a.monitors, m.handle)

	// The subscriber entry survives empty until the next respawn tick;
	// eviction is lazy so a quick reconnect keeps the roster slot.
	if set := a.subscribers[target.player]; set != nil {
		delete(set, target.clientID)
	}
	a.logger.Debug("client disconnected", "player", target.player)
}

// subscribe registers the client for frame delivery to the player and
// installs a monitor unless this exact client is already subscribed.
func (a *Actor) subscribe(player game.PlayerID, client Client) {
	if client == nil {
		return
	}
	set := a.subscribers[player]
	if set == nil {
		set = make(map[string]Client)
		a.subscribers[player] = set
	}
	if _, ok := set[client.ID()]; ok {
		return
	}
	set[client.ID()] = client

	handle := uuid.New()
	a.monitors[handle] = monitorTarget{player: player, clientID: client.ID()}
	go a.watch(handle, client)
}

// watch delivers exactly one monitor-down for the handle, unless the
// actor terminates first.
func (a *Actor) watch(handle uuid.UUID, client Client) {
	select {
	case <-client.Done():
		a.send(monitorDownMsg{handle: handle})
	case <-a.done:
	}
}

// broadcast coalesces the current state into a fresh frame and delivers
// it exactly once to every distinct client across all subscriber sets.
func (a *Actor) broadcast() Frame {
	frame := Frame{
		Seq:   a.nextSeq(),
		Tiles: a.state.Coalesce(),
		Rows:  a.state.Board.Rows(),
		Cols:  a.state.Board.Cols(),
	}

	delivered := make(map[string]bool)
	for _, set := range a.subscribers {
		for id, client := range set {
			if delivered[id] {
				continue
			}
			delivered[id] = true
			client.Deliver(frame)
		}
	}
	return frame
}

// nextSeq reads the wall clock in nanoseconds and, when that is not past
// the last sequence, uses the last sequence plus one, so every frame
// this actor emits carries a strictly larger sequence.
func (a *Actor) nextSeq() int64 {
	seq := time.Now().UnixNano()
	if seq <= a.lastSeq {
		seq = a.lastSeq + 1
	}
	a.lastSeq = seq
	return seq
}

func (a *Actor) scheduleRespawn(ids []game.PlayerID) {
	victims := make([]game.PlayerID, len(ids))
	copy(victims, ids)
	time.AfterFunc(a.cfg.RespawnDelay, func() {
		a.send(respawnMsg{ids: victims})
	})
}

func (a *Actor) recordKills(attacker game.PlayerID, killed []game.PlayerID) {
	if a.cfg.Recorder == nil {
		return
	}
	victims := make([]string, len(killed))
	for i, id := range killed {
		victims[i] = string(id)
	}
	a.cfg.Recorder.RecordKills(a.name, string(attacker), victims)
}
