package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/google/uuid"

	"github.com/davidsulc/nightwatch-mmo/internal/config"
	"github.com/davidsulc/nightwatch-mmo/internal/fleet"
	"github.com/davidsulc/nightwatch-mmo/internal/game"
	"github.com/davidsulc/nightwatch-mmo/internal/session"
)

// SSHServer serves play sessions over SSH via Wish. Each connection
// joins the configured default game under its SSH username.
type SSHServer struct {
	cfg    config.Config
	fleet  *fleet.Fleet
	server *ssh.Server
	logger *log.Logger
}

// NewSSHServer creates the SSH front end over an existing fleet.
func NewSSHServer(cfg config.Config, registry *fleet.Fleet) (*SSHServer, error) {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "nightwatch-ssh",
	})

	srv := &SSHServer{
		cfg:    cfg,
		fleet:  registry,
		logger: logger,
	}

	hostKeyPath := cfg.SSH.HostKeyPath
	if hostKeyPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot get home directory: %w", err)
		}
		hostKeyPath = filepath.Join(home, ".nightwatch", "host_key")
	}
	if err := os.MkdirAll(filepath.Dir(hostKeyPath), 0o700); err != nil {
		return nil, fmt.Errorf("cannot create host key directory: %w", err)
	}

	server, err := wish.NewServer(
		wish.WithAddress(cfg.SSH.Address),
		wish.WithHostKeyPath(hostKeyPath),
		wish.WithIdleTimeout(cfg.SSH.IdleTimeout()),
		wish.WithMiddleware(
			bubbletea.Middleware(srv.teaHandler),
			srv.loggingMiddleware,
		),
	)
	if err != nil {
		return nil, fmt.Errorf("cannot create SSH server: %w", err)
	}

	srv.server = server
	return srv, nil
}

// teaHandler wires each SSH connection to a play session on the default
// game, creating the game on first use.
func (s *SSHServer) teaHandler(sshSession ssh.Session) (tea.Model, []tea.ProgramOption) {
	if _, _, ok := sshSession.Pty(); !ok {
		s.logger.Warn("no PTY requested", "user", sshSession.User())
		return nil, nil
	}

	player := game.PlayerID(sshSession.User())
	if player == "" {
		player = game.PlayerID("guest-" + uuid.NewString()[:8])
	}

	gameName := s.cfg.SSH.DefaultGame
	if err := s.ensureGame(gameName); err != nil {
		s.logger.Error("cannot create game", "game", gameName, "err", err)
		return nil, nil
	}

	play, err := session.Start(s.fleet, gameName, player, session.Config{
		ReconnectDelay:    s.cfg.ReconnectDelay(),
		ReconnectAttempts: s.cfg.ReconnectAttempts,
	})
	if err != nil {
		s.logger.Error("cannot join game", "game", gameName, "player", player, "err", err)
		return nil, nil
	}

	// The session dies with the connection so the engine evicts the
	// player at the next respawn tick.
	go func() {
		<-sshSession.Context().Done()
		play.Close()
	}()

	return NewModel(play), []tea.ProgramOption{tea.WithAltScreen()}
}

func (s *SSHServer) ensureGame(name string) error {
	var opts []game.Option
	if s.cfg.MaxPlayers > 0 {
		opts = append(opts, game.WithMaxPlayers(s.cfg.MaxPlayers))
	}
	if s.cfg.MaxBoardDimension > 0 {
		opts = append(opts, game.WithMaxBoardDimension(s.cfg.MaxBoardDimension))
	}

	_, err := s.fleet.Create(name, opts...)
	if err != nil && !errors.Is(err, fleet.ErrNameTaken) {
		return err
	}
	return nil
}

// loggingMiddleware logs SSH session events.
func (s *SSHServer) loggingMiddleware(next ssh.Handler) ssh.Handler {
	return func(sshSession ssh.Session) {
		s.logger.Info("session started",
			"user", sshSession.User(),
			"remote", sshSession.RemoteAddr().String(),
		)
		next(sshSession)
		s.logger.Info("session ended", "user", sshSession.User())
	}
}

// ListenAndServe starts serving connections and blocks.
func (s *SSHServer) ListenAndServe() error {
	s.logger.Info("listening", "address", s.cfg.SSH.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *SSHServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
