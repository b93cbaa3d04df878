// Package storage implements the local SQLite store for the noot entity graph.
//
// All access goes through scoped Read/Write acquisitions: reads may run
// concurrently with each other, writes are exclusive with everything else.
// Each Write call is one SQL transaction; callers that need atomicity across
// several entities (replace-mode import) do all their work inside a single
// Write closure.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"noot/internal/logging"
)

// DB represents the noot database with scoped read/write access
type DB struct {
	conn   *sql.DB
	logger *logging.Logger
	dbPath string
	mu     sync.RWMutex
}

// Queries is the handle passed to Read/Write closures. It wraps the active
// transaction so every entity operation inside the closure shares it.
type Queries struct {
	tx *sql.Tx
}

// Open opens or creates the SQLite database at {dataDir}/noot.db.
// If the database doesn't exist, it is created along with all tables.
func Open(dataDir string, logger *logging.Logger) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "noot.db")
	dbExists := fileExists(dbPath)

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set pragmas for performance and reliability
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	db := &DB{
		conn:   conn,
		logger: logger,
		dbPath: dbPath,
	}

	if !dbExists {
		logger.Info("Creating new database", map[string]interface{}{
			"path": dbPath,
		})
		if err := db.initializeSchema(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to initialize schema: %w", err)
		}
	} else {
		if err := db.runMigrations(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Path returns the on-disk location of the database file.
func (db *DB) Path() string {
	return db.dbPath
}

// Read runs fn under a shared lock inside a read-only transaction.
// The lock and transaction are released on every exit path.
func (db *DB) Read(fn func(q *Queries) error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	return fn(&Queries{tx: tx})
}

// Write runs fn under the exclusive lock inside a transaction. The
// transaction commits when fn returns nil and rolls back otherwise.
func (db *DB) Write(fn func(q *Queries) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p) // Re-throw panic after rollback
		}
	}()

	if err := fn(&Queries{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("failed to rollback transaction", map[string]interface{}{
				"error":          err.Error(),
				"rollback_error": rbErr.Error(),
			})
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
