package storage

import (
	"database/sql"
	"fmt"

	"noot/internal/types"
)

// InsertMeeting writes a meeting only when its id is not already present.
func (q *Queries) InsertMeeting(m *types.Meeting) (InsertOutcome, error) {
	_, err := q.tx.Exec(`
		INSERT INTO meetings (id, title, started_at, ended_at, audio_path, calendar_event_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.Title, encodeTime(m.StartedAt), encodeTimePtr(m.EndedAt),
		m.AudioPath, m.CalendarEventID)
	if err != nil {
		if isUniqueViolation(err) {
			return AlreadyExists, nil
		}
		return 0, fmt.Errorf("failed to insert meeting %s: %w", m.ID, err)
	}
	return Inserted, nil
}

// GetMeeting returns the meeting with the given id, or nil when absent.
func (q *Queries) GetMeeting(id string) (*types.Meeting, error) {
	row := q.tx.QueryRow(`
		SELECT id, title, started_at, ended_at, audio_path, calendar_event_id
		FROM meetings WHERE id = ?`, id)
	m, err := scanMeeting(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// ListMeetings returns all meetings ordered by start time.
func (q *Queries) ListMeetings() ([]*types.Meeting, error) {
	rows, err := q.tx.Query(`
		SELECT id, title, started_at, ended_at, audio_path, calendar_event_id
		FROM meetings ORDER BY started_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	defer rows.Close()

	var meetings []*types.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, m)
	}
	return meetings, rows.Err()
}

func scanMeeting(row rowScanner) (*types.Meeting, error) {
	var m types.Meeting
	var title, audioPath, eventID sql.NullString
	var startedAt string
	var endedAt sql.NullString
	if err := row.Scan(&m.ID, &title, &startedAt, &endedAt, &audioPath, &eventID); err != nil {
		return nil, err
	}
	m.Title = title.String
	m.AudioPath = audioPath.String
	m.CalendarEventID = eventID.String
	var err error
	if m.StartedAt, err = decodeTime(startedAt); err != nil {
		return nil, err
	}
	if m.EndedAt, err = decodeTimePtr(endedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// InsertNoteMeeting associates a note with a meeting; a duplicate pair is a no-op.
func (q *Queries) InsertNoteMeeting(nm *types.NoteMeeting) (InsertOutcome, error) {
	_, err := q.tx.Exec(`
		INSERT INTO note_meetings (note_id, meeting_id) VALUES (?, ?)`,
		nm.NoteID, nm.MeetingID)
	if err != nil {
		if isUniqueViolation(err) {
			return AlreadyExists, nil
		}
		return 0, fmt.Errorf("failed to insert note meeting %s/%s: %w", nm.NoteID, nm.MeetingID, err)
	}
	return Inserted, nil
}

// ListNoteMeetings returns all note-meeting associations.
func (q *Queries) ListNoteMeetings() ([]*types.NoteMeeting, error) {
	rows, err := q.tx.Query(`
		SELECT note_id, meeting_id FROM note_meetings
		ORDER BY note_id, meeting_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list note meetings: %w", err)
	}
	defer rows.Close()

	var nms []*types.NoteMeeting
	for rows.Next() {
		var nm types.NoteMeeting
		if err := rows.Scan(&nm.NoteID, &nm.MeetingID); err != nil {
			return nil, err
		}
		nms = append(nms, &nm)
	}
	return nms, rows.Err()
}

// GetMeetingForNote returns the meeting a note belongs to, or nil. A note is
// expected to belong to at most one meeting; when several rows exist the
// first by meeting id is returned.
func (q *Queries) GetMeetingForNote(noteID string) (*types.Meeting, error) {
	row := q.tx.QueryRow(`
		SELECT m.id, m.title, m.started_at, m.ended_at, m.audio_path, m.calendar_event_id
		FROM meetings m
		JOIN note_meetings nm ON nm.meeting_id = m.id
		WHERE nm.note_id = ?
		ORDER BY m.id LIMIT 1`, noteID)
	m, err := scanMeeting(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// InsertMeetingContext associates a context with a meeting; a duplicate pair
// is a no-op.
func (q *Queries) InsertMeetingContext(mc *types.MeetingContext) (InsertOutcome, error) {
	_, err := q.tx.Exec(`
		INSERT INTO meeting_contexts (meeting_id, context_id) VALUES (?, ?)`,
		mc.MeetingID, mc.ContextID)
	if err != nil {
		if isUniqueViolation(err) {
			return AlreadyExists, nil
		}
		return 0, fmt.Errorf("failed to insert meeting context %s/%s: %w", mc.MeetingID, mc.ContextID, err)
	}
	return Inserted, nil
}

// ListMeetingContexts returns all meeting-context associations.
func (q *Queries) ListMeetingContexts() ([]*types.MeetingContext, error) {
	rows, err := q.tx.Query(`
		SELECT meeting_id, context_id FROM meeting_contexts
		ORDER BY meeting_id, context_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list meeting contexts: %w", err)
	}
	defer rows.Close()

	var mcs []*types.MeetingContext
	for rows.Next() {
		var mc types.MeetingContext
		if err := rows.Scan(&mc.MeetingID, &mc.ContextID); err != nil {
			return nil, err
		}
		mcs = append(mcs, &mc)
	}
	return mcs, rows.Err()
}
