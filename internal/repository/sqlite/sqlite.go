package sqlite

import (
	"database/sql"
	"fmt"
	"sync"

	"breastscan/internal/repository"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS image_predictions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	uploaded_image_path VARCHAR(255) NOT NULL,
	output_image_path VARCHAR(255) NOT NULL,
	class_detected VARCHAR(255) NOT NULL,
	score REAL NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_image_predictions_class ON image_predictions(class_detected);
CREATE INDEX IF NOT EXISTS idx_image_predictions_created_at ON image_predictions(created_at);
`

// DB wraps the SQLite database connection with thread-safe access.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// Open opens the database without touching the schema.
func Open(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", repository.ErrStorage, err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	return &DB{conn: conn}, nil
}

// New opens the database and initializes the schema.
func New(dbPath string) (*DB, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.InitSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// InitSchema creates the tables and indexes if they don't exist. Running it
// again is a no-op. Concurrent first runs from separate processes are not
// coordinated.
func (db *DB) InitSchema() error {
	db.Lock()
	defer db.Unlock()

	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("%w: failed to migrate database: %v", repository.ErrStorage, err)
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection for use by repositories.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Lock acquires a write lock.
func (db *DB) Lock() {
	db.mu.Lock()
}

// Unlock releases the write lock.
func (db *DB) Unlock() {
	db.mu.Unlock()
}

// RLock acquires a read lock.
func (db *DB) RLock() {
	db.mu.RLock()
}

// RUnlock releases the read lock.
func (db *DB) RUnlock() {
	db.mu.RUnlock()
}
