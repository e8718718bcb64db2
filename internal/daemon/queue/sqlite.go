package queue

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/grovetools/booth/pkg/models"
	_ "modernc.org/sqlite"
)

// DefaultDBName is the database file created in the queue directory.
const DefaultDBName = "offline_queue.db"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS offline_queue (
	position    INTEGER NOT NULL,
	session_id  TEXT NOT NULL,
	photo_path  TEXT NOT NULL,
	enqueued_at DATETIME NOT NULL,
	PRIMARY KEY (session_id, photo_path)
);`

// SQLitePersister keeps the queue in a SQLite table. Each save rewrites the
// table inside a single transaction, so readers see either the old or the
// new queue and never a partial one.
type SQLitePersister struct {
	db   *sql.DB
	path string
}

// OpenSQLitePersister opens (or creates) the queue database at path.
func OpenSQLitePersister(path string) (*SQLitePersister, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create queue directory: %w", err)
		}
	}

	dsn := path
	if path == ":memory:" {
		dsn = "file::memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open queue database: %w", err)
	}
	// a single connection keeps :memory: databases alive and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil && path != ":memory:" {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create queue table: %w", err)
	}
	return &SQLitePersister{db: db, path: path}, nil
}

// Location returns the database path.
func (p *SQLitePersister) Location() string { return p.path }

// Load reads the queue in position order.
func (p *SQLitePersister) Load() ([]models.QueueItem, error) {
	rows, err := p.db.Query(`SELECT session_id, photo_path, enqueued_at FROM offline_queue ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query queue: %w", err)
	}
	defer rows.Close()

	var items []models.QueueItem
	for rows.Next() {
		var item models.QueueItem
		var enqueued time.Time
		if err := rows.Scan(&item.SessionID, &item.PhotoPath, &enqueued); err != nil {
			return nil, fmt.Errorf("scan queue row: %w", err)
		}
		item.EnqueuedAt = enqueued.UTC()
		items = append(items, item)
	}
	return items, rows.Err()
}

// Save replaces the table contents with items in one transaction.
func (p *SQLitePersister) Save(items []models.QueueItem) error {
	return p.withTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM offline_queue`); err != nil {
			return fmt.Errorf("clear queue: %w", err)
		}
		stmt, err := tx.Prepare(`INSERT INTO offline_queue (position, session_id, photo_path, enqueued_at) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()
		for i, item := range items {
			if _, err := stmt.Exec(i, item.SessionID, item.PhotoPath, item.EnqueuedAt.UTC()); err != nil {
				return fmt.Errorf("insert queue item: %w", err)
			}
		}
		return nil
	})
}

func (p *SQLitePersister) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := p.db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close closes the database.
func (p *SQLitePersister) Close() error {
	return p.db.Close()
}
