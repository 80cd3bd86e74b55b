// nightwatch is a multi-player grid game server for the terminal.
//
// Usage:
//
//	nightwatch play [game]   - Join a game in the local terminal
//	nightwatch serve         - Start the SSH server for remote play
//	nightwatch stats         - Show the kill leaderboard
//
// Global flags:
//
//	--config <path>  - Path to a server config YAML
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/davidsulc/nightwatch-mmo/internal/config"
)

var flagConfig string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "nightwatch",
	Short: "Nightwatch - a multi-player grid game in your terminal",
	Long: `Nightwatch runs many concurrent grid games in one process. Players
spawn on a shared board, move around, and attack everything in the
surrounding cells. Killed players respawn after a delay.

Available commands:
  play   - Join a game in the local terminal
  serve  - Start the SSH server for remote play
  stats  - Show the kill leaderboard

Examples:
  nightwatch play
  nightwatch play arena --player alice
  nightwatch serve
  nightwatch stats --limit 20`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to server config YAML")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statsCmd)
}

// loadConfig reads the configuration honoring the global flag.
func loadConfig() (config.Config, error) {
	return config.Load(flagConfig)
}
