package shared

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

const memoryDSN = ":memory:"

// sqliteDSN adds the connection options every cratedig database runs with. File databases also get
// WAL journaling and a busy timeout since history records are written from background goroutines.
func sqliteDSN(path string) string {
	opts := url.Values{}
	opts.Set("_foreign_keys", "on")
	if path != memoryDSN {
		opts.Set("_journal_mode", "WAL")
		opts.Set("_busy_timeout", "5000")
	}
	return path + "?" + opts.Encode()
}

// NewDatabase opens and pings the SQLite database at path, which may be ":memory:".
func NewDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// every new connection to :memory: is a fresh, empty database
	if path == memoryDSN {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database %s: %w", path, err)
	}
	return db, nil
}

// OpenDatabase resolves the configured path, applies pool limits, and brings the schema up to date.
func OpenDatabase(cfg DatabaseConfig) (*sql.DB, error) {
	path, err := ResolveDataPath(cfg.Path, appName+".db")
	if err != nil {
		return nil, err
	}

	db, err := NewDatabase(path)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}
