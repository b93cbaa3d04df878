package storage

import (
	"database/sql"
	"fmt"

	"noot/internal/types"
)

// InsertAttachment writes an attachment record only when its id is not
// already present.
func (q *Queries) InsertAttachment(a *types.Attachment) (InsertOutcome, error) {
	_, err := q.tx.Exec(`
		INSERT INTO attachments (id, note_id, type, filename, file_path, file_size, duration_seconds, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.NoteID, string(a.Type), a.FileName, a.FilePath,
		a.FileSize, a.DurationSeconds, encodeTime(a.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return AlreadyExists, nil
		}
		return 0, fmt.Errorf("failed to insert attachment %s: %w", a.ID, err)
	}
	return Inserted, nil
}

// GetAttachment returns the attachment with the given id, or nil when absent.
func (q *Queries) GetAttachment(id string) (*types.Attachment, error) {
	row := q.tx.QueryRow(`
		SELECT id, note_id, type, filename, file_path, file_size, duration_seconds, created_at
		FROM attachments WHERE id = ?`, id)
	a, err := scanAttachment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// ListAttachments returns all attachment records ordered by note then id.
func (q *Queries) ListAttachments() ([]*types.Attachment, error) {
	rows, err := q.tx.Query(`
		SELECT id, note_id, type, filename, file_path, file_size, duration_seconds, created_at
		FROM attachments ORDER BY note_id, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer rows.Close()
	return collectAttachments(rows)
}

// ListAttachmentsForNote returns the attachment records of one note.
func (q *Queries) ListAttachmentsForNote(noteID string) ([]*types.Attachment, error) {
	rows, err := q.tx.Query(`
		SELECT id, note_id, type, filename, file_path, file_size, duration_seconds, created_at
		FROM attachments WHERE note_id = ? ORDER BY id`, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments for note: %w", err)
	}
	defer rows.Close()
	return collectAttachments(rows)
}

func collectAttachments(rows *sql.Rows) ([]*types.Attachment, error) {
	var attachments []*types.Attachment
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

func scanAttachment(row rowScanner) (*types.Attachment, error) {
	var a types.Attachment
	var typ, createdAt string
	if err := row.Scan(&a.ID, &a.NoteID, &typ, &a.FileName, &a.FilePath,
		&a.FileSize, &a.DurationSeconds, &createdAt); err != nil {
		return nil, err
	}
	a.Type = types.AttachmentType(typ)
	var err error
	if a.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, err
	}
	return &a, nil
}
