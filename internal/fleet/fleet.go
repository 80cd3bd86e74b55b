// Package fleet is the process-wide registry of running games. It
// enforces name uniqueness and an optional cap on concurrent games, and
// it forgets a game automatically when its actor terminates, whatever
// the cause.
package fleet

import (
	"errors"
	"os"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/davidsulc/nightwatch-mmo/internal/engine"
	"github.com/davidsulc/nightwatch-mmo/internal/game"
)

var (
	// ErrMaxGames is returned by Create when the fleet cap is reached.
	ErrMaxGames = errors.New("fleet: game cap reached")
	// ErrNameTaken is returned by Create when the name is registered.
	ErrNameTaken = errors.New("fleet: game name taken")
	// ErrInvalidGame is returned when a named game does not exist.
	ErrInvalidGame = errors.New("fleet: no such game")
)

// GameRecorder receives fleet lifecycle events for the history store.
type GameRecorder interface {
	RecordGameCreated(name string)
}

// Config tunes the fleet and the actors it starts.
type Config struct {
	// MaxGames caps the number of live games. Zero means no cap.
	MaxGames int

	// Engine is the config template handed to every game actor.
	Engine engine.Config

	// Recorder, when set, is told about created games.
	Recorder GameRecorder

	// Logger defaults to a stderr logger.
	Logger *log.Logger
}

// Fleet is a concurrency-safe name index of live game actors.
type Fleet struct {
	cfg    Config
	logger *log.Logger

	mu    sync.Mutex
	games map[string]*engine.Actor
}

// New creates an empty fleet.
func New(cfg Config) *Fleet {
	if cfg.Logger == nil {
		cfg.Logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			Prefix:          "fleet",
		})
	}
	return &Fleet{
		cfg:    cfg,
		logger: cfg.Logger,
		games:  make(map[string]*engine.Actor),
	}
}

// Create starts a new game actor and registers it under the name. It
// fails with ErrMaxGames when the cap is reached, ErrNameTaken when the
// name is in use, and otherwise with the game's construction error.
func (f *Fleet) Create(name string, opts ...game.Option) (*engine.Actor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cfg.MaxGames > 0 && len(f.games) >= f.cfg.MaxGames {
		return nil, ErrMaxGames
	}
	if _, ok := f.games[name]; ok {
		return nil, ErrNameTaken
	}

	actor, err := engine.Start(name, f.cfg.Engine, opts...)
	if err != nil {
		return nil, err
	}

	f.games[name] = actor
	go f.unregisterOnExit(name, actor)
	if f.cfg.Recorder != nil {
		f.cfg.Recorder.RecordGameCreated(name)
	}
	f.logger.Info("game created", "name", name, "games", len(f.games))
	return actor, nil
}

// unregisterOnExit drops the registry entry when the actor terminates,
// unless the name was already re-registered to a newer actor.
func (f *Fleet) unregisterOnExit(name string, actor *engine.Actor) {
	<-actor.Done()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.games[name] == actor {
		delete(f.games, name)
		f.logger.Info("game unregistered", "name", name, "games", len(f.games))
	}
}

// Whereis looks up a live game actor by name.
func (f *Fleet) Whereis(name string) (*engine.Actor, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	actor, ok := f.games[name]
	return actor, ok
}

// Stop terminates a named game. It reports whether the game existed.
func (f *Fleet) Stop(name string) bool {
	actor, ok := f.Whereis(name)
	if ok {
		actor.Stop()
	}
	return ok
}

// Names returns the names of all live games.
func (f *Fleet) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.games))
	for name := range f.games {
		names = append(names, name)
	}
	return names
}

// Len returns the number of live games.
func (f *Fleet) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.games)
}

// StopAll terminates every live game. Used on shutdown.
func (f *Fleet) StopAll() {
	for _, name := range f.Names() {
		f.Stop(name)
	}
}
