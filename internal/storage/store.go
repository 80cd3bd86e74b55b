// Package storage provides SQLite-based persistence for game history.
// Uses the pure-Go modernc.org/sqlite driver to avoid CGO dependencies.
// Only history lives here (kill feed, game lifecycle); the authoritative
// game state itself is memory-only and never restored from disk.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Store manages the SQLite database connection for game history.
type Store struct {
	db *sql.DB
}

// KillEntry is one row of the kill feed.
type KillEntry struct {
	ID        int64
	Game      string
	Attacker  string
	Victim    string
	CreatedAt time.Time
}

// KillerStat aggregates kills per attacker.
type KillerStat struct {
	Attacker string
	Kills    int
}

// Open creates or opens a SQLite database at the given path. It creates
// the parent directories if needed and runs migrations.
func Open(dbPath string) (*Store, error) {
	// Expand ~ to home directory
	if dbPath != "" && dbPath[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("storage: cannot expand home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: cannot create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: cannot connect to database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migration failed: %w", err)
	}
	return store, nil
}

// migrate creates the database schema if it doesn't exist.
func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS games (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_games_name ON games(name);

		CREATE TABLE IF NOT EXISTS kills (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			game TEXT NOT NULL,
			attacker TEXT NOT NULL,
			victim TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_kills_game ON kills(game);
		CREATE INDEX IF NOT EXISTS idx_kills_attacker ON kills(attacker);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveGameCreated records that a game with this name started.
func (s *Store) SaveGameCreated(name string) error {
	_, err := s.db.Exec(`INSERT INTO games (name) VALUES (?)`, name)
	if err != nil {
		return fmt.Errorf("storage: cannot save game: %w", err)
	}
	return nil
}

// SaveKills appends one kill-feed row per victim.
func (s *Store) SaveKills(gameName, attacker string, victims []string) error {
	if len(victims) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("storage: cannot begin transaction: %w", err)
	}
	for _, victim := range victims {
		if _, err := tx.Exec(
			`INSERT INTO kills (game, attacker, victim) VALUES (?, ?, ?)`,
			gameName, attacker, victim,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("storage: cannot save kill: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: cannot commit kills: %w", err)
	}
	return nil
}

// RecordKills implements the engine's recorder interface. Best-effort:
// a storage failure never reaches the game loop.
func (s *Store) RecordKills(gameName, attacker string, victims []string) {
	//nolint:errcheck // history is best-effort
	s.SaveKills(gameName, attacker, victims)
}

// RecordGameCreated implements the fleet's recorder interface.
func (s *Store) RecordGameCreated(name string) {
	//nolint:errcheck // history is best-effort
	s.SaveGameCreated(name)
}

// TopKillers returns the attackers with the most kills, descending,
// limited to n rows.
func (s *Store) TopKillers(n int) ([]KillerStat, error) {
	rows, err := s.db.Query(
		`SELECT attacker, COUNT(*) AS kills
		 FROM kills
		 GROUP BY attacker
		 ORDER BY kills DESC, attacker ASC
		 LIMIT ?`,
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query top killers: %w", err)
	}
	defer rows.Close()

	var stats []KillerStat
	for rows.Next() {
		var st KillerStat
		if err := rows.Scan(&st.Attacker, &st.Kills); err != nil {
			return nil, fmt.Errorf("storage: cannot scan killer row: %w", err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// RecentKills returns the newest kill-feed rows for a game, newest
// first, limited to n rows.
func (s *Store) RecentKills(gameName string, n int) ([]KillEntry, error) {
	rows, err := s.db.Query(
		`SELECT id, game, attacker, victim, created_at
		 FROM kills
		 WHERE game = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		gameName, n,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query kill feed: %w", err)
	}
	defer rows.Close()

	var entries []KillEntry
	for rows.Next() {
		var e KillEntry
		var createdAt any
		if err := rows.Scan(&e.ID, &e.Game, &e.Attacker, &e.Victim, &createdAt); err != nil {
			return nil, fmt.Errorf("storage: cannot scan kill row: %w", err)
		}
		switch v := createdAt.(type) {
		case time.Time:
			e.CreatedAt = v
		case string:
			if parsed, err := time.Parse("2006-01-02 15:04:05", v); err == nil {
				e.CreatedAt = parsed
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
