package storage

import (
	"database/sql"
	"fmt"

	"noot/internal/types"
)

// InsertNote writes a note only when its id is not already present.
func (q *Queries) InsertNote(n *types.Note) (InsertOutcome, error) {
	existing, err := q.GetNote(n.ID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return AlreadyExists, nil
	}

	_, err = q.tx.Exec(`
		INSERT INTO notes (id, body, created_at, updated_at, closed_at, archived)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.ID, n.Body, encodeTime(n.CreatedAt), encodeTime(n.UpdatedAt),
		encodeTimePtr(n.ClosedAt), boolToInt(n.Archived))
	if err != nil {
		if isUniqueViolation(err) {
			return AlreadyExists, nil
		}
		return 0, fmt.Errorf("failed to insert note %s: %w", n.ID, err)
	}
	return Inserted, nil
}

// UpdateNote overwrites the mutable fields of an existing note.
func (q *Queries) UpdateNote(n *types.Note) error {
	res, err := q.tx.Exec(`
		UPDATE notes SET body = ?, updated_at = ?, closed_at = ?, archived = ?
		WHERE id = ?`,
		n.Body, encodeTime(n.UpdatedAt), encodeTimePtr(n.ClosedAt),
		boolToInt(n.Archived), n.ID)
	if err != nil {
		return fmt.Errorf("failed to update note %s: %w", n.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("note %s not found", n.ID)
	}
	return nil
}

// GetNote returns the note with the given id, or nil when absent.
func (q *Queries) GetNote(id string) (*types.Note, error) {
	row := q.tx.QueryRow(`
		SELECT id, body, created_at, updated_at, closed_at, archived
		FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return n, err
}

// ListNotes returns all notes, optionally excluding archived ones.
func (q *Queries) ListNotes(includeArchived bool) ([]*types.Note, error) {
	query := `SELECT id, body, created_at, updated_at, closed_at, archived FROM notes`
	if !includeArchived {
		query += ` WHERE archived = 0`
	}
	query += ` ORDER BY created_at`

	rows, err := q.tx.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var notes []*types.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNote(row rowScanner) (*types.Note, error) {
	var n types.Note
	var createdAt, updatedAt string
	var closedAt sql.NullString
	var archived int
	if err := row.Scan(&n.ID, &n.Body, &createdAt, &updatedAt, &closedAt, &archived); err != nil {
		return nil, err
	}
	var err error
	if n.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	if n.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return nil, err
	}
	if n.ClosedAt, err = decodeTimePtr(closedAt); err != nil {
		return nil, err
	}
	n.Archived = archived != 0
	return &n, nil
}

// InsertNoteLink inserts a directed note link; a duplicate pair is a no-op.
func (q *Queries) InsertNoteLink(l *types.NoteLink) (InsertOutcome, error) {
	_, err := q.tx.Exec(`
		INSERT INTO note_links (source_id, target_id, relationship)
		VALUES (?, ?, ?)`,
		l.SourceID, l.TargetID, string(l.Relationship))
	if err != nil {
		if isUniqueViolation(err) {
			return AlreadyExists, nil
		}
		return 0, fmt.Errorf("failed to insert note link %s -> %s: %w", l.SourceID, l.TargetID, err)
	}
	return Inserted, nil
}

// ListNoteLinks returns all note links.
func (q *Queries) ListNoteLinks() ([]*types.NoteLink, error) {
	rows, err := q.tx.Query(`
		SELECT source_id, target_id, relationship
		FROM note_links ORDER BY source_id, target_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list note links: %w", err)
	}
	defer rows.Close()

	var links []*types.NoteLink
	for rows.Next() {
		var l types.NoteLink
		var rel string
		if err := rows.Scan(&l.SourceID, &l.TargetID, &rel); err != nil {
			return nil, err
		}
		l.Relationship = types.LinkRelationship(rel)
		links = append(links, &l)
	}
	return links, rows.Err()
}

// ListNoteLinksFrom returns the outgoing links of one note.
func (q *Queries) ListNoteLinksFrom(noteID string) ([]*types.NoteLink, error) {
	rows, err := q.tx.Query(`
		SELECT source_id, target_id, relationship
		FROM note_links WHERE source_id = ? ORDER BY target_id`, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list note links: %w", err)
	}
	defer rows.Close()

	var links []*types.NoteLink
	for rows.Next() {
		var l types.NoteLink
		var rel string
		if err := rows.Scan(&l.SourceID, &l.TargetID, &rel); err != nil {
			return nil, err
		}
		l.Relationship = types.LinkRelationship(rel)
		links = append(links, &l)
	}
	return links, rows.Err()
}

// InsertNoteContext assigns a note to a context; a duplicate pair is a no-op.
func (q *Queries) InsertNoteContext(nc *types.NoteContext) (InsertOutcome, error) {
	_, err := q.tx.Exec(`
		INSERT INTO note_contexts (note_id, context_id, assigned_at)
		VALUES (?, ?, ?)`,
		nc.NoteID, nc.ContextID, encodeTime(nc.AssignedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return AlreadyExists, nil
		}
		return 0, fmt.Errorf("failed to insert note context %s/%s: %w", nc.NoteID, nc.ContextID, err)
	}
	return Inserted, nil
}

// ListNoteContexts returns all note-context assignments.
func (q *Queries) ListNoteContexts() ([]*types.NoteContext, error) {
	rows, err := q.tx.Query(`
		SELECT note_id, context_id, assigned_at
		FROM note_contexts ORDER BY note_id, context_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list note contexts: %w", err)
	}
	defer rows.Close()

	var ncs []*types.NoteContext
	for rows.Next() {
		var nc types.NoteContext
		var assignedAt string
		if err := rows.Scan(&nc.NoteID, &nc.ContextID, &assignedAt); err != nil {
			return nil, err
		}
		var err error
		if nc.AssignedAt, err = decodeTime(assignedAt); err != nil {
			return nil, err
		}
		ncs = append(ncs, &nc)
	}
	return ncs, rows.Err()
}

// ListContextsForNote returns the contexts a note is assigned to.
func (q *Queries) ListContextsForNote(noteID string) ([]*types.Context, error) {
	rows, err := q.tx.Query(`
		SELECT c.id, c.name, c.type, c.pinned, c.archived, c.created_at
		FROM contexts c
		JOIN note_contexts nc ON nc.context_id = c.id
		WHERE nc.note_id = ?
		ORDER BY c.name`, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list contexts for note: %w", err)
	}
	defer rows.Close()
	return collectContexts(rows)
}

// InsertScreenContext writes the capture metadata for a note only when no
// snapshot exists yet.
func (q *Queries) InsertScreenContext(sc *types.ScreenContext) (InsertOutcome, error) {
	_, err := q.tx.Exec(`
		INSERT INTO screen_contexts (note_id, app_name, window_name, url, captured_at)
		VALUES (?, ?, ?, ?, ?)`,
		sc.NoteID, sc.AppName, sc.WindowName, sc.URL, encodeTime(sc.CapturedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return AlreadyExists, nil
		}
		return 0, fmt.Errorf("failed to insert screen context for %s: %w", sc.NoteID, err)
	}
	return Inserted, nil
}

// UpsertScreenContext writes the capture metadata for a note, replacing any
// previous snapshot.
func (q *Queries) UpsertScreenContext(sc *types.ScreenContext) error {
	_, err := q.tx.Exec(`
		INSERT INTO screen_contexts (note_id, app_name, window_name, url, captured_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(note_id) DO UPDATE SET
			app_name = excluded.app_name,
			window_name = excluded.window_name,
			url = excluded.url,
			captured_at = excluded.captured_at`,
		sc.NoteID, sc.AppName, sc.WindowName, sc.URL, encodeTime(sc.CapturedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert screen context for %s: %w", sc.NoteID, err)
	}
	return nil
}

// GetScreenContext returns the capture metadata of a note, or nil.
func (q *Queries) GetScreenContext(noteID string) (*types.ScreenContext, error) {
	row := q.tx.QueryRow(`
		SELECT note_id, app_name, window_name, url, captured_at
		FROM screen_contexts WHERE note_id = ?`, noteID)

	var sc types.ScreenContext
	var capturedAt string
	err := row.Scan(&sc.NoteID, &sc.AppName, &sc.WindowName, &sc.URL, &capturedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if sc.CapturedAt, err = decodeTime(capturedAt); err != nil {
		return nil, err
	}
	return &sc, nil
}

// ListScreenContexts returns every capture snapshot keyed by note id.
func (q *Queries) ListScreenContexts() ([]*types.ScreenContext, error) {
	rows, err := q.tx.Query(`
		SELECT note_id, app_name, window_name, url, captured_at
		FROM screen_contexts ORDER BY note_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list screen contexts: %w", err)
	}
	defer rows.Close()

	var scs []*types.ScreenContext
	for rows.Next() {
		var sc types.ScreenContext
		var capturedAt string
		if err := rows.Scan(&sc.NoteID, &sc.AppName, &sc.WindowName, &sc.URL, &capturedAt); err != nil {
			return nil, err
		}
		var err error
		if sc.CapturedAt, err = decodeTime(capturedAt); err != nil {
			return nil, err
		}
		scs = append(scs, &sc)
	}
	return scs, rows.Err()
}

// CountScreenContexts returns the number of screen-context rows.
func (q *Queries) CountScreenContexts() (int, error) {
	return q.countRows("screen_contexts")
}

func (q *Queries) countRows(table string) (int, error) {
	var n int
	if err := q.tx.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
