package config

import (
	_ "embed"
)

//go:embed defaults/server.yaml
var defaultServerYAML []byte

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		RespawnDelayMS:    5000,
		ReconnectDelayMS:  100,
		ReconnectAttempts: 3,
		SSH: SSHConfig{
			Address:        ":23235",
			DefaultGame:    "commons",
			IdleTimeoutMin: 30,
		},
		DBPath: "~/.nightwatch/history.db",
	}
}
