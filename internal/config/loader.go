package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads the server configuration.
// Search order: customPath -> ~/.nightwatch/config.yaml ->
// ./configs/server.yaml -> embedded default. Environment variables
// (optionally loaded from a .env file) override whatever was read.
func Load(customPath string) (Config, error) {
	cfg, err := loadFile(customPath)
	if err != nil {
		return cfg, err
	}
	applyEnv(&cfg)
	return cfg, nil
}

func loadFile(customPath string) (Config, error) {
	var cfg Config

	// An explicit path must exist and parse.
	if customPath != "" {
		data, err := os.ReadFile(customPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", customPath, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", customPath, err)
		}
		return cfg, nil
	}

	if userPath := userConfigPath("config.yaml"); userPath != "" {
		if data, err := os.ReadFile(userPath); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err == nil {
				return cfg, nil
			}
		}
	}

	if data, err := os.ReadFile("configs/server.yaml"); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err == nil {
			return cfg, nil
		}
	}

	if err := yaml.Unmarshal(defaultServerYAML, &cfg); err != nil {
		return Default(), nil
	}
	return cfg, nil
}

// userConfigPath returns the path to a user config file, or empty if
// the home directory is unavailable.
func userConfigPath(filename string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".nightwatch", filename)
}

// applyEnv overlays NIGHTWATCH_* environment variables, loading a .env
// file first if one is present.
func applyEnv(cfg *Config) {
	//nolint:errcheck // a missing .env file is the normal case
	godotenv.Load()

	envInt("NIGHTWATCH_MAX_GAMES", &cfg.MaxGames)
	envInt("NIGHTWATCH_MAX_PLAYERS", &cfg.MaxPlayers)
	envInt("NIGHTWATCH_MAX_BOARD_DIMENSION", &cfg.MaxBoardDimension)
	envInt("NIGHTWATCH_RESPAWN_DELAY_MS", &cfg.RespawnDelayMS)
	envInt("NIGHTWATCH_RECONNECT_DELAY_MS", &cfg.ReconnectDelayMS)
	envInt("NIGHTWATCH_RECONNECT_ATTEMPTS", &cfg.ReconnectAttempts)
	envInt("NIGHTWATCH_SSH_IDLE_TIMEOUT_MIN", &cfg.SSH.IdleTimeoutMin)
	envString("NIGHTWATCH_SSH_ADDRESS", &cfg.SSH.Address)
	envString("NIGHTWATCH_SSH_HOST_KEY", &cfg.SSH.HostKeyPath)
	envString("NIGHTWATCH_SSH_DEFAULT_GAME", &cfg.SSH.DefaultGame)
	envString("NIGHTWATCH_DB_PATH", &cfg.DBPath)
}

func envString(key string, dst *string) {
	if value, ok := os.LookupEnv(key); ok {
		*dst = value
	}
}

func envInt(key string, dst *int) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	if n, err := strconv.Atoi(value); err == nil {
		*dst = n
	}
}
