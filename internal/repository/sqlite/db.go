package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New opens dataSourceName; ":memory:" gives a throwaway database
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}
	// every connection to :memory: is a different database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to set busy timeout: %w", err)
	}
	return &DB{db}, nil
}

// RunMigrations creates the schema if it does not exist
func (db *DB) RunMigrations() error {
	migration := `
CREATE TABLE IF NOT EXISTS load_outcomes (
    id TEXT PRIMARY KEY,
    source TEXT NOT NULL,
    resource TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('success', 'empty', 'fault')),
    http_status INTEGER NOT NULL DEFAULT 0,
    count INTEGER NOT NULL DEFAULT 0,
    skipped INTEGER NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    started_at TEXT NOT NULL,
    finished_at TEXT NOT NULL,
    seq INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_load_outcomes_seq ON load_outcomes(seq);

CREATE TABLE IF NOT EXISTS incidents (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    mode_type TEXT NOT NULL,
    lat REAL,
    long REAL,
    year INTEGER NOT NULL,
    month INTEGER NOT NULL,
    hour INTEGER NOT NULL
);
`
	if _, err := db.Exec(migration); err != nil {
		return fmt.Errorf("sqlite: failed to run migrations: %w", err)
	}
	return nil
}
