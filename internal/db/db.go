// Package db persists run recordings: per-session pose samples, issued
// movement commands, and follower state transitions, for post-run
// analysis and plotting.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the SQLite database at path. Run
// MigrateUp before recording.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// modernc sqlite is not safe for concurrent writers over one file.
	db.SetMaxOpenConns(1)
	return &DB{db}, nil
}
