// Package store is the SQLite backend: saved-item values in a versioned
// key/value table and a cache of extracted articles.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=synchronous(normal)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// WAL lets the CLI read while a server holds the writer.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("database ready", "path", path)
	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			version    INTEGER NOT NULL DEFAULT 1,
			updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS articles (
			story_id          INTEGER PRIMARY KEY,
			url               TEXT NOT NULL,
			content           TEXT,
			text_content      TEXT,
			title             TEXT,
			excerpt           TEXT,
			byline            TEXT,
			extraction_failed BOOLEAN NOT NULL DEFAULT FALSE,
			fetched_at        INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_articles_fetched ON articles(fetched_at);
	`)
	return err
}
