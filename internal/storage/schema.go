package storage

import (
	"fmt"
	"sort"
)

// Schema version tracking
const currentSchemaVersion = 1

// tableRefs declares, for each table, the tables its rows reference. The
// replace-mode wipe order is computed from this graph instead of being a
// hard-coded list, so adding a table cannot silently break delete ordering.
var tableRefs = map[string][]string{
	"notes":                         {},
	"contexts":                      {},
	"meetings":                      {},
	"calendar_accounts":             {},
	"calendar_events":               {"calendar_accounts"},
	"calendar_series_context_rules": {"contexts"},
	"context_links":                 {"contexts"},
	"note_contexts":                 {"notes", "contexts"},
	"note_links":                    {"notes"},
	"note_meetings":                 {"notes", "meetings"},
	"meeting_contexts":              {"meetings", "contexts"},
	"screen_contexts":               {"notes"},
	"attachments":                   {"notes"},
	"note_sync_states":              {"notes"},
}

// WipeOrder returns every entity table in an order safe for wholesale
// deletion: a table always appears before any table it references.
// Ties break alphabetically so the order is deterministic.
func WipeOrder() []string {
	// Count how many tables reference each table.
	referencedBy := make(map[string]int, len(tableRefs))
	for name := range tableRefs {
		referencedBy[name] = 0
	}
	for _, refs := range tableRefs {
		for _, ref := range refs {
			referencedBy[ref]++
		}
	}

	order := make([]string, 0, len(tableRefs))
	for len(referencedBy) > 0 {
		var ready []string
		for name, n := range referencedBy {
			if n == 0 {
				ready = append(ready, name)
			}
		}
		if len(ready) == 0 {
			// A cycle would be a programming error in tableRefs.
			panic("storage: cyclic table reference graph")
		}
		sort.Strings(ready)
		for _, name := range ready {
			order = append(order, name)
			for _, ref := range tableRefs[name] {
				referencedBy[ref]--
			}
			delete(referencedBy, name)
		}
	}
	return order
}

// ClearAll deletes every row from every entity table in dependency order.
// Used by replace-mode import inside its single atomic transaction.
func (q *Queries) ClearAll() error {
	for _, table := range WipeOrder() {
		if _, err := q.tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("failed to clear table %s: %w", table, err)
		}
	}
	return nil
}

// initializeSchema creates all tables for a new database
func (db *DB) initializeSchema() error {
	return db.Write(func(q *Queries) error {
		for _, ddl := range schemaDDL {
			if _, err := q.tx.Exec(ddl); err != nil {
				return fmt.Errorf("failed to create schema: %w", err)
			}
		}
		if _, err := q.tx.Exec("DELETE FROM schema_version"); err != nil {
			return err
		}
		if _, err := q.tx.Exec("INSERT INTO schema_version (version) VALUES (?)", currentSchemaVersion); err != nil {
			return err
		}

		db.logger.Info("Database schema initialized", map[string]interface{}{
			"version": currentSchemaVersion,
		})
		return nil
	})
}

// runMigrations runs any pending schema migrations on an existing database
func (db *DB) runMigrations() error {
	var version int
	err := db.conn.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		// Missing table means a pre-versioning database; recreate the DDL
		// idempotently and stamp it.
		return db.initializeSchema()
	}

	if version == currentSchemaVersion {
		return nil
	}

	db.logger.Info("Running database migrations", map[string]interface{}{
		"from_version": version,
		"to_version":   currentSchemaVersion,
	})

	// Migration steps are added here as the schema evolves.
	return nil
}

var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		closed_at TEXT,
		archived INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_archived ON notes(archived)`,

	`CREATE TABLE IF NOT EXISTS contexts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL CHECK(type IN ('domain', 'workstream')),
		pinned INTEGER NOT NULL DEFAULT 0,
		archived INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_contexts_name ON contexts(name)`,

	`CREATE TABLE IF NOT EXISTS context_links (
		parent_id TEXT NOT NULL,
		child_id TEXT NOT NULL,
		PRIMARY KEY (parent_id, child_id),
		FOREIGN KEY (parent_id) REFERENCES contexts(id) ON DELETE CASCADE,
		FOREIGN KEY (child_id) REFERENCES contexts(id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS note_contexts (
		note_id TEXT NOT NULL,
		context_id TEXT NOT NULL,
		assigned_at TEXT NOT NULL,
		PRIMARY KEY (note_id, context_id),
		FOREIGN KEY (note_id) REFERENCES notes(id) ON DELETE CASCADE,
		FOREIGN KEY (context_id) REFERENCES contexts(id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS note_links (
		source_id TEXT NOT NULL,
		target_id TEXT NOT NULL,
		relationship TEXT NOT NULL CHECK(relationship IN ('continues', 'informed-by', 'related')),
		PRIMARY KEY (source_id, target_id),
		FOREIGN KEY (source_id) REFERENCES notes(id) ON DELETE CASCADE,
		FOREIGN KEY (target_id) REFERENCES notes(id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS meetings (
		id TEXT PRIMARY KEY,
		title TEXT,
		started_at TEXT NOT NULL,
		ended_at TEXT,
		audio_path TEXT,
		calendar_event_id TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS note_meetings (
		note_id TEXT NOT NULL,
		meeting_id TEXT NOT NULL,
		PRIMARY KEY (note_id, meeting_id),
		FOREIGN KEY (note_id) REFERENCES notes(id) ON DELETE CASCADE,
		FOREIGN KEY (meeting_id) REFERENCES meetings(id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS meeting_contexts (
		meeting_id TEXT NOT NULL,
		context_id TEXT NOT NULL,
		PRIMARY KEY (meeting_id, context_id),
		FOREIGN KEY (meeting_id) REFERENCES meetings(id) ON DELETE CASCADE,
		FOREIGN KEY (context_id) REFERENCES contexts(id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS screen_contexts (
		note_id TEXT PRIMARY KEY,
		app_name TEXT,
		window_name TEXT,
		url TEXT,
		captured_at TEXT NOT NULL,
		FOREIGN KEY (note_id) REFERENCES notes(id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS attachments (
		id TEXT PRIMARY KEY,
		note_id TEXT NOT NULL,
		type TEXT NOT NULL,
		filename TEXT NOT NULL,
		file_path TEXT NOT NULL,
		file_size INTEGER NOT NULL DEFAULT 0,
		duration_seconds REAL NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		FOREIGN KEY (note_id) REFERENCES notes(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attachments_note_id ON attachments(note_id)`,

	`CREATE TABLE IF NOT EXISTS calendar_accounts (
		id TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		email TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS calendar_events (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		series_id TEXT,
		title TEXT NOT NULL,
		starts_at TEXT NOT NULL,
		ends_at TEXT NOT NULL,
		ignored INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (account_id) REFERENCES calendar_accounts(id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS calendar_series_context_rules (
		series_id TEXT NOT NULL,
		context_id TEXT NOT NULL,
		PRIMARY KEY (series_id, context_id),
		FOREIGN KEY (context_id) REFERENCES contexts(id) ON DELETE CASCADE
	)`,

	`CREATE TABLE IF NOT EXISTS note_sync_states (
		note_id TEXT NOT NULL,
		connection_id TEXT NOT NULL,
		remote_page_id TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		synced_at TEXT NOT NULL,
		PRIMARY KEY (note_id, connection_id),
		FOREIGN KEY (note_id) REFERENCES notes(id) ON DELETE CASCADE
	)`,
}
