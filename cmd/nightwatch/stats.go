package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davidsulc/nightwatch-mmo/internal/storage"
)

var (
	flagStatsLimit int
	flagStatsGame  string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the kill leaderboard",
	Long: `Show aggregated kill statistics from the history database.

Examples:
  nightwatch stats
  nightwatch stats --limit 20
  nightwatch stats --game arena`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().IntVar(&flagStatsLimit, "limit", 10, "Number of rows to show")
	statsCmd.Flags().StringVar(&flagStatsGame, "game", "", "Show the recent kill feed for one game instead")
}

func runStats(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DBPath == "" {
		return fmt.Errorf("history is disabled (empty db_path)")
	}

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("cannot open history: %w", err)
	}
	defer store.Close()

	if flagStatsGame != "" {
		return printKillFeed(store, flagStatsGame, flagStatsLimit)
	}
	return printTopKillers(store, flagStatsLimit)
}

func printTopKillers(store *storage.Store, limit int) error {
	top, err := store.TopKillers(limit)
	if err != nil {
		return err
	}
	if len(top) == 0 {
		fmt.Println("No kills recorded yet.")
		return nil
	}

	fmt.Printf("%-4s %-24s %s\n", "#", "PLAYER", "KILLS")
	for i, stat := range top {
		fmt.Printf("%-4d %-24s %d\n", i+1, stat.Attacker, stat.Kills)
	}
	return nil
}

func printKillFeed(store *storage.Store, gameName string, limit int) error {
	feed, err := store.RecentKills(gameName, limit)
	if err != nil {
		return err
	}
	if len(feed) == 0 {
		fmt.Printf("No kills recorded for %q.\n", gameName)
		return nil
	}

	for _, e := range feed {
		fmt.Printf("%s  %s killed %s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Attacker, e.Victim)
	}
	return nil
}
