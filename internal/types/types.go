// Package types defines the core entities of the noot knowledge store.
package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Note is a single captured note. The body is free-form markdown; all
// relational metadata lives in the join tables below.
type Note struct {
	ID        string     `json:"id"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	Archived  bool       `json:"archived,omitempty"`
}

// ContextType distinguishes broad organizing areas from narrow streams of work.
type ContextType string

const (
	ContextDomain     ContextType = "domain"
	ContextWorkstream ContextType = "workstream"
)

// IsValid reports whether the context type is one of the known tags.
func (t ContextType) IsValid() bool {
	return t == ContextDomain || t == ContextWorkstream
}

// Context is a user-defined organizing tag. Contexts form a parent→child
// graph via ContextLink.
type Context struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Type      ContextType `json:"type"`
	Pinned    bool        `json:"pinned,omitempty"`
	Archived  bool        `json:"archived,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// ContextLink is a parent→child edge between two contexts. The pair is unique.
type ContextLink struct {
	ParentID string `json:"parent_id"`
	ChildID  string `json:"child_id"`
}

// NoteContext assigns a note to a context. Unique per (note, context) pair.
type NoteContext struct {
	NoteID     string    `json:"note_id"`
	ContextID  string    `json:"context_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// LinkRelationship is the kind of directed edge between two notes.
type LinkRelationship string

const (
	LinkContinues  LinkRelationship = "continues"
	LinkInformedBy LinkRelationship = "informed-by"
	LinkRelated    LinkRelationship = "related"
)

// IsValid reports whether the relationship is one of the known kinds.
func (r LinkRelationship) IsValid() bool {
	switch r {
	case LinkContinues, LinkInformedBy, LinkRelated:
		return true
	}
	return false
}

// NoteLink is a directed edge between two notes. Unique per (source, target).
type NoteLink struct {
	SourceID     string           `json:"source_id"`
	TargetID     string           `json:"target_id"`
	Relationship LinkRelationship `json:"relationship"`
}

// Meeting is a recorded meeting, optionally backed by an audio file and an
// external calendar event.
type Meeting struct {
	ID              string     `json:"id"`
	Title           string     `json:"title,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	AudioPath       string     `json:"audio_path,omitempty"`
	CalendarEventID string     `json:"calendar_event_id,omitempty"`
}

// NoteMeeting associates a note with a meeting.
type NoteMeeting struct {
	NoteID    string `json:"note_id"`
	MeetingID string `json:"meeting_id"`
}

// MeetingContext associates a context with a meeting.
type MeetingContext struct {
	MeetingID string `json:"meeting_id"`
	ContextID string `json:"context_id"`
}

// ScreenContext is per-note capture metadata recorded when a note was taken.
type ScreenContext struct {
	NoteID     string    `json:"note_id"`
	AppName    string    `json:"app_name,omitempty"`
	WindowName string    `json:"window_name,omitempty"`
	URL        string    `json:"url,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// AttachmentType categorizes an attachment's payload.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentAudio AttachmentType = "audio"
	AttachmentFile  AttachmentType = "file"
)

// Attachment is a file referenced by a note. FilePath points into the live
// attachment tree; FileName preserves the original name for export.
type Attachment struct {
	ID              string         `json:"id"`
	NoteID          string         `json:"note_id"`
	Type            AttachmentType `json:"type"`
	FileName        string         `json:"filename"`
	FilePath        string         `json:"file_path"`
	FileSize        int64          `json:"file_size,omitempty"`
	DurationSeconds float64        `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// CalendarAccount is an external calendar the user has connected.
type CalendarAccount struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	Email    string `json:"email"`
}

// CalendarEvent mirrors an event fetched from a connected calendar.
type CalendarEvent struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	SeriesID  string    `json:"series_id,omitempty"`
	Title     string    `json:"title"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Ignored   bool      `json:"ignored,omitempty"`
}

// CalendarSeriesContextRule auto-assigns a context to meetings created from a
// recurring event series.
type CalendarSeriesContextRule struct {
	SeriesID  string `json:"series_id"`
	ContextID string `json:"context_id"`
}

// NoteSyncState is the per (note, connection) ledger row recording what has
// been pushed to a remote workspace. ContentHash covers body, updated
// timestamp, archived flag and associated meeting id; see Note.SyncHash.
type NoteSyncState struct {
	NoteID       string    `json:"note_id"`
	ConnectionID string    `json:"connection_id"`
	RemotePageID string    `json:"remote_page_id"`
	ContentHash  string    `json:"content_hash"`
	SyncedAt     time.Time `json:"synced_at"`
}

// SyncHash computes the content hash the sync ledger is gated on. Any change
// to the body, updated timestamp, archived flag or linked meeting produces a
// different hash; everything else (context assignments, links) does not.
func (n *Note) SyncHash(meetingID string) string {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only fails on invalid key sizes; nil key cannot fail.
		panic(fmt.Sprintf("blake2b: %v", err))
	}
	h.Write([]byte(n.Body))
	h.Write([]byte{0})
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(n.UpdatedAt.UTC().UnixNano()))
	h.Write(ts[:])
	if n.Archived {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	h.Write([]byte(meetingID))
	return hex.EncodeToString(h.Sum(nil))
}
