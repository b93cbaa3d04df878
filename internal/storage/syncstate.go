package storage

import (
	"database/sql"
	"fmt"

	"noot/internal/types"
)

// GetSyncState returns the ledger row for a (note, connection) pair, or nil
// when the note has never been pushed to that connection.
func (q *Queries) GetSyncState(noteID, connectionID string) (*types.NoteSyncState, error) {
	row := q.tx.QueryRow(`
		SELECT note_id, connection_id, remote_page_id, content_hash, synced_at
		FROM note_sync_states WHERE note_id = ? AND connection_id = ?`,
		noteID, connectionID)

	var s types.NoteSyncState
	var syncedAt string
	err := row.Scan(&s.NoteID, &s.ConnectionID, &s.RemotePageID, &s.ContentHash, &syncedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if s.SyncedAt, err = decodeTime(syncedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertSyncState records a successful push, replacing any previous ledger
// row for the same (note, connection) pair.
func (q *Queries) UpsertSyncState(s *types.NoteSyncState) error {
	_, err := q.tx.Exec(`
		INSERT INTO note_sync_states (note_id, connection_id, remote_page_id, content_hash, synced_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(note_id, connection_id) DO UPDATE SET
			remote_page_id = excluded.remote_page_id,
			content_hash = excluded.content_hash,
			synced_at = excluded.synced_at`,
		s.NoteID, s.ConnectionID, s.RemotePageID, s.ContentHash, encodeTime(s.SyncedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert sync state for %s: %w", s.NoteID, err)
	}
	return nil
}

// DeleteSyncStatesForConnection drops every ledger row belonging to one
// connection. Used when a workspace is disconnected or a full resync is
// requested.
func (q *Queries) DeleteSyncStatesForConnection(connectionID string) (int, error) {
	res, err := q.tx.Exec(`DELETE FROM note_sync_states WHERE connection_id = ?`, connectionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sync states: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
