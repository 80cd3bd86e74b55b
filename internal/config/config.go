// Package config provides YAML-based server configuration with
// environment overrides.
package config

import "time"

// Config holds every tunable of the server: fleet and game caps, the
// engine timing knobs, session reconnect behavior, and the serving
// surfaces.
type Config struct {
	// MaxGames caps concurrently running games. 0 means no cap.
	MaxGames int `yaml:"max_games"`

	// MaxPlayers caps players per game. 0 means no cap; otherwise >= 2.
	MaxPlayers int `yaml:"max_players"`

	// MaxBoardDimension rejects boards larger than this on either axis.
	// 0 disables the check.
	MaxBoardDimension int `yaml:"max_board_dimension"`

	// RespawnDelayMS is how long killed players stay dead.
	RespawnDelayMS int `yaml:"respawn_delay_ms"`

	// ReconnectDelayMS is the pause between session rejoin attempts.
	ReconnectDelayMS int `yaml:"reconnect_delay_ms"`

	// ReconnectAttempts is how many rejoins a session tries before
	// terminating.
	ReconnectAttempts int `yaml:"reconnect_attempts"`

	SSH SSHConfig `yaml:"ssh"`

	// DBPath is where the kill-feed database lives. Empty disables
	// history recording.
	DBPath string `yaml:"db_path"`
}

// SSHConfig configures the remote-play server.
type SSHConfig struct {
	// Address is the host:port to listen on.
	Address string `yaml:"address"`

	// HostKeyPath is the host key file; auto-generated under
	// ~/.nightwatch when empty.
	HostKeyPath string `yaml:"host_key"`

	// DefaultGame is the game SSH users are dropped into.
	DefaultGame string `yaml:"default_game"`

	// IdleTimeoutMin disconnects idle connections after this many
	// minutes.
	IdleTimeoutMin int `yaml:"idle_timeout_min"`
}

// RespawnDelay returns the respawn delay as a duration.
func (c Config) RespawnDelay() time.Duration {
	return time.Duration(c.RespawnDelayMS) * time.Millisecond
}

// ReconnectDelay returns the reconnect delay as a duration.
func (c Config) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelayMS) * time.Millisecond
}

// IdleTimeout returns the SSH idle timeout as a duration.
func (c SSHConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMin) * time.Minute
}
