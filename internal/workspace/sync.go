package workspace

import (
	"context"
	"fmt"
	"strings"
	"time"

	"noot/internal/config"
	"noot/internal/logging"
	"noot/internal/storage"
	"noot/internal/types"
)

// SyncProgress is one progress tick during a sweep. NoteLabel carries the
// first line of the note currently being pushed, when one is in flight.
type SyncProgress struct {
	Phase     string
	Current   int
	Total     int
	NoteLabel string
}

// SyncProgressFunc receives progress ticks. Nil is allowed.
type SyncProgressFunc func(SyncProgress)

// SyncResult is the terminal report of a sweep or single-note push.
type SyncResult struct {
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Unchanged int      `json:"unchanged"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Syncer pushes notes into one remote workspace connection. It keeps a
// per-note ledger of (remote page id, content hash); a note whose hash
// matches its ledger entry is not touched.
//
// The syncer does not serialize concurrent sweeps itself; callers hold a
// single in-flight gate (see the scheduler) so two sweeps cannot race on
// ledger writes.
type Syncer struct {
	db     *storage.DB
	client *Client
	conn   *ConnectionConfig
	cfg    *config.Config
	logger *logging.Logger

	props *propertyIndex
}

// NewSyncer creates a syncer for one connection.
func NewSyncer(db *storage.DB, client *Client, conn *ConnectionConfig, cfg *config.Config, logger *logging.Logger) *Syncer {
	return &Syncer{db: db, client: client, conn: conn, cfg: cfg, logger: logger}
}

// loadSchema builds the case-insensitive property lookup once per session.
func (s *Syncer) loadSchema(ctx context.Context) error {
	if s.props != nil {
		return nil
	}
	container, err := s.client.GetContainer(ctx, s.conn.ContainerID)
	if err != nil {
		return fmt.Errorf("failed to load container schema: %w", err)
	}
	s.props = newPropertyIndex(container)
	return nil
}

// Sweep pushes every eligible note. A single note's failure increments the
// failure counter and appends its error; it never aborts the sweep.
func (s *Syncer) Sweep(ctx context.Context, progress SyncProgressFunc) (*SyncResult, error) {
	if err := s.loadSchema(ctx); err != nil {
		return nil, err
	}

	notes, meetings, states, err := s.readSweepState()
	if err != nil {
		return nil, err
	}

	result := &SyncResult{}
	for i, note := range notes {
		if progress != nil {
			progress(SyncProgress{
				Phase:     "notes",
				Current:   i + 1,
				Total:     len(notes),
				NoteLabel: noteLabel(note),
			})
		}

		if err := s.pushNote(ctx, note, meetings[note.ID], states[note.ID], result); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("note %s: %v", note.ID, err))
			s.logger.Warn("Note sync failed", map[string]interface{}{
				"note_id": note.ID,
				"error":   err.Error(),
			})
		}
	}

	s.logger.Info("Workspace sweep complete", map[string]interface{}{
		"connection": s.conn.ID,
		"created":    result.Created,
		"updated":    result.Updated,
		"unchanged":  result.Unchanged,
		"failed":     result.Failed,
	})
	return result, nil
}

// SyncNote pushes a single note on demand.
func (s *Syncer) SyncNote(ctx context.Context, noteID string) (*SyncResult, error) {
	if err := s.loadSchema(ctx); err != nil {
		return nil, err
	}

	var note *types.Note
	var meetingID string
	var state *types.NoteSyncState
	err := s.db.Read(func(q *storage.Queries) error {
		var err error
		if note, err = q.GetNote(noteID); err != nil {
			return err
		}
		if note == nil {
			return fmt.Errorf("note %s not found", noteID)
		}
		m, err := q.GetMeetingForNote(noteID)
		if err != nil {
			return err
		}
		if m != nil {
			meetingID = m.ID
		}
		state, err = q.GetSyncState(noteID, s.conn.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := &SyncResult{}
	if err := s.pushNote(ctx, note, meetingID, state, result); err != nil {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("note %s: %v", note.ID, err))
	}
	return result, nil
}

func (s *Syncer) readSweepState() ([]*types.Note, map[string]string, map[string]*types.NoteSyncState, error) {
	var notes []*types.Note
	meetings := make(map[string]string)
	states := make(map[string]*types.NoteSyncState)

	err := s.db.Read(func(q *storage.Queries) error {
		var err error
		if notes, err = q.ListNotes(s.cfg.Sync.IncludeArchived); err != nil {
			return err
		}
		noteMeetings, err := q.ListNoteMeetings()
		if err != nil {
			return err
		}
		for _, nm := range noteMeetings {
			if _, ok := meetings[nm.NoteID]; !ok {
				meetings[nm.NoteID] = nm.MeetingID
			}
		}
		for _, n := range notes {
			state, err := q.GetSyncState(n.ID, s.conn.ID)
			if err != nil {
				return err
			}
			if state != nil {
				states[n.ID] = state
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read sweep state: %w", err)
	}
	return notes, meetings, states, nil
}

// pushNote issues create, update, or nothing for one note, based on its
// content hash against the ledger. The ledger row is written only after the
// remote calls succeeded.
func (s *Syncer) pushNote(ctx context.Context, note *types.Note, meetingID string, state *types.NoteSyncState, result *SyncResult) error {
	hash := note.SyncHash(meetingID)

	if state != nil && state.ContentHash == hash {
		result.Unchanged++
		return nil
	}

	if state == nil {
		page, err := s.client.CreatePage(ctx, s.conn.ContainerID, s.pageProperties(note, meetingID))
		if err != nil {
			return err
		}
		if err := s.client.AppendBlocks(ctx, page.ID, MarkdownToBlocks(note.Body)); err != nil {
			return err
		}
		if err := s.writeLedger(note.ID, page.ID, hash); err != nil {
			return err
		}
		result.Created++
		return nil
	}

	if _, err := s.client.UpdatePageProperties(ctx, state.RemotePageID, s.pageProperties(note, meetingID)); err != nil {
		return err
	}
	if err := s.replaceBlocks(ctx, state.RemotePageID, note.Body); err != nil {
		return err
	}
	if err := s.writeLedger(note.ID, state.RemotePageID, hash); err != nil {
		return err
	}
	result.Updated++
	return nil
}

// replaceBlocks deletes every existing block and re-appends the note body
// wholesale. No partial diff is attempted; full replacement keeps remote
// state trivially consistent with the local body.
func (s *Syncer) replaceBlocks(ctx context.Context, pageID, body string) error {
	existing, err := s.client.GetBlocks(ctx, pageID)
	if err != nil {
		return err
	}
	for _, block := range existing {
		if err := s.client.DeleteBlock(ctx, block.ID); err != nil {
			return err
		}
	}
	return s.client.AppendBlocks(ctx, pageID, MarkdownToBlocks(body))
}

func (s *Syncer) writeLedger(noteID, pageID, hash string) error {
	return s.db.Write(func(q *storage.Queries) error {
		return q.UpsertSyncState(&types.NoteSyncState{
			NoteID:       noteID,
			ConnectionID: s.conn.ID,
			RemotePageID: pageID,
			ContentHash:  hash,
			SyncedAt:     time.Now().UTC(),
		})
	})
}

// pageProperties builds the property map for a note, using the container's
// actual property names resolved case-insensitively.
func (s *Syncer) pageProperties(note *types.Note, meetingID string) map[string]interface{} {
	props := make(map[string]interface{})
	set := func(name, typ string, value interface{}) {
		if p, ok := s.props.resolve(name, typ); ok {
			props[p.Name] = value
		}
	}
	set("Title", "title", noteLabel(note))
	set("Note ID", "text", note.ID)
	set("Updated", "date", note.UpdatedAt.UTC().Format(time.RFC3339))
	set("Archived", "checkbox", note.Archived)
	set("Meeting", "text", meetingID)
	return props
}

// noteLabel derives a human-readable title: the first non-empty line of the
// body, stripped of markdown heading markers.
func noteLabel(note *types.Note) string {
	for _, line := range strings.Split(note.Body, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if line != "" {
			if len(line) > 80 {
				return line[:80]
			}
			return line
		}
	}
	return "Untitled note"
}

// ClearLedger removes every sync-state row for this connection, forcing the
// next sweep to re-create all remote pages. Used by full resync and by
// disconnect.
func (s *Syncer) ClearLedger() (int, error) {
	var deleted int
	err := s.db.Write(func(q *storage.Queries) error {
		var err error
		deleted, err = q.DeleteSyncStatesForConnection(s.conn.ID)
		return err
	})
	return deleted, err
}
