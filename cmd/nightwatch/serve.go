package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/davidsulc/nightwatch-mmo/internal/engine"
	"github.com/davidsulc/nightwatch-mmo/internal/fleet"
	"github.com/davidsulc/nightwatch-mmo/internal/platform/tui"
	"github.com/davidsulc/nightwatch-mmo/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the SSH server for remote play",
	Long: `Start an SSH server that drops every connecting user into the
default game as their SSH username.

Host key handling:
  - If ssh.host_key is set in the config, that key file is used
  - Otherwise a key is auto-generated at ~/.nightwatch/host_key

Examples:
  nightwatch serve
  NIGHTWATCH_SSH_ADDRESS=:2222 nightwatch serve

Users connect with:
  ssh -p 23235 <player>@<host>`,
	RunE: runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
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

	server, err := tui.NewSSHServer(cfg, registry)
	if err != nil {
		return fmt.Errorf("cannot create SSH server: %w", err)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	fmt.Printf("Nightwatch SSH server on %s\n", cfg.SSH.Address)
	fmt.Println("Press Ctrl+C to stop")

	select {
	case err := <-errCh:
		return err
	case <-done:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
