package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/davidsulc/nightwatch-mmo/internal/config"
	"github.com/davidsulc/nightwatch-mmo/internal/engine"
	"github.com/davidsulc/nightwatch-mmo/internal/fleet"
	"github.com/davidsulc/nightwatch-mmo/internal/game"
	"github.com/davidsulc/nightwatch-mmo/internal/platform/tui"
	"github.com/davidsulc/nightwatch-mmo/internal/session"
	"github.com/davidsulc/nightwatch-mmo/internal/storage"
)

var flagPlayer string

var playCmd = &cobra.Command{
	Use:   "play [game]",
	Short: "Join a game in the local terminal",
	Long: `Join a game running in this process. The game is created on first
use; the name defaults to the configured default game.

Controls:
  Arrows/WASD - Move
  Space       - Attack everything in the surrounding cells
  Q/Ctrl+C    - Quit

Examples:
  nightwatch play
  nightwatch play arena
  nightwatch play arena --player alice`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().StringVar(&flagPlayer, "player", "", "Player name (defaults to $USER)")
}

func runPlay(_ *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("play needs an interactive terminal")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	gameName := cfg.SSH.DefaultGame
	if len(args) == 1 {
		gameName = args[0]
	}

	player := game.PlayerID(flagPlayer)
	if player == "" {
		player = game.PlayerID(os.Getenv("USER"))
	}
	if player == "" {
		return fmt.Errorf("no player name: pass --player or set $USER")
	}

	fleetCfg := fleet.Config{
		MaxGames: cfg.MaxGames,
		Engine:   engine.Config{RespawnDelay: cfg.RespawnDelay()},
	}
	if cfg.DBPath != "" {
		store, err := storage.Open(cfg.DBPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "history disabled: %v\n", err)
		} else {
			defer store.Close()
			fleetCfg.Engine.Recorder = store
			fleetCfg.Recorder = store
		}
	}

	registry := fleet.New(fleetCfg)
	defer registry.StopAll()

	var opts []game.Option
	if cfg.MaxPlayers > 0 {
		opts = append(opts, game.WithMaxPlayers(cfg.MaxPlayers))
	}
	if cfg.MaxBoardDimension > 0 {
		opts = append(opts, game.WithMaxBoardDimension(cfg.MaxBoardDimension))
	}
	if _, err := registry.Create(gameName, opts...); err != nil {
		return fmt.Errorf("cannot create game %q: %w", gameName, err)
	}

	play, err := session.Start(registry, gameName, player, sessionConfig(cfg))
	if err != nil {
		return fmt.Errorf("cannot join game %q: %w", gameName, err)
	}
	defer play.Close()

	return tui.Run(play)
}

func sessionConfig(cfg config.Config) session.Config {
	return session.Config{
		ReconnectDelay:    cfg.ReconnectDelay(),
		ReconnectAttempts: cfg.ReconnectAttempts,
	}
}
